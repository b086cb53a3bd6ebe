package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

// Open creates the database for backend under dataDir. The memory backend
// ignores dataDir.
func Open(backend, dataDir string) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendMemory:
		return NewMemDB(), nil
	case "", BackendLevelDB:
		if err := ensureDir(dataDir); err != nil {
			return nil, err
		}
		return NewLevelDB(filepath.Join(dataDir, "state"))
	case BackendBolt:
		if err := ensureDir(dataDir); err != nil {
			return nil, err
		}
		return NewBoltDB(filepath.Join(dataDir, "state.bolt"))
	default:
		return nil, fmt.Errorf("storage: unsupported backend %q", backend)
	}
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("storage: data directory required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("storage: create data dir: %w", err)
	}
	return nil
}
