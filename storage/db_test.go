package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func backends(t *testing.T) map[string]Database {
	t.Helper()
	dir := t.TempDir()
	level, err := NewLevelDB(filepath.Join(dir, "level"))
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	bolt, err := NewBoltDB(filepath.Join(dir, "state.bolt"))
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() {
		_ = level.Close()
		_ = bolt.Close()
	})
	return map[string]Database{
		"memory":  NewMemDB(),
		"leveldb": level,
		"bolt":    bolt,
	}
}

func TestDatabaseRoundTrip(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if err := db.Put([]byte("k"), []byte("v1")); err != nil {
				t.Fatalf("put: %v", err)
			}
			got, err := db.Get([]byte("k"))
			if err != nil || string(got) != "v1" {
				t.Fatalf("get: %q %v", got, err)
			}
			ok, err := db.Has([]byte("k"))
			if err != nil || !ok {
				t.Fatalf("has: %v %v", ok, err)
			}
			if err := db.Delete([]byte("k")); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if ok, _ := db.Has([]byte("k")); ok {
				t.Fatalf("expected key to be deleted")
			}
		})
	}
}

func TestBatchWrite(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_ = db.Put([]byte("gone"), []byte("x"))
			batch := db.NewBatch()
			batch.Put([]byte("a"), []byte("1"))
			batch.Put([]byte("b"), []byte("2"))
			batch.Delete([]byte("gone"))
			if batch.Len() != 3 {
				t.Fatalf("expected 3 ops, got %d", batch.Len())
			}
			if ok, _ := db.Has([]byte("a")); ok {
				t.Fatalf("batch must not apply before Write")
			}
			if err := batch.Write(); err != nil {
				t.Fatalf("write: %v", err)
			}
			for key, want := range map[string]string{"a": "1", "b": "2"} {
				got, err := db.Get([]byte(key))
				if err != nil || string(got) != want {
					t.Fatalf("key %s: got %q err %v", key, got, err)
				}
			}
			if ok, _ := db.Has([]byte("gone")); ok {
				t.Fatalf("expected deleted key")
			}
		})
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	if _, err := Open("rocksdb", t.TempDir()); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	db, err := Open(BackendMemory, "")
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := db.(*MemDB); !ok {
		t.Fatalf("expected MemDB, got %T", db)
	}
}
