// Package eventindex journals committed node events in SQL so clients can
// list the history of an escrow.
package eventindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/erikrakuscek/escrow-ethereum/core/events"
	"github.com/erikrakuscek/escrow-ethereum/core/types"
)

// EscrowIDAttribute is the event attribute used to link rows to an escrow.
const EscrowIDAttribute = "escrowId"

// EventRecord is one committed event.
type EventRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq        uint64    `gorm:"uniqueIndex;not null"`
	Type       string    `gorm:"index;not null"`
	EscrowID   *uint64   `gorm:"index"`
	Attributes string    `gorm:"type:text;not null"`
	CreatedAt  time.Time
}

// Entry is the decoded view of an EventRecord.
type Entry struct {
	Seq        uint64            `json:"seq"`
	Type       string            `json:"type"`
	EscrowID   *uint64           `json:"escrowId,omitempty"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt time.Time         `json:"recordedAt"`
}

// Index persists events through gorm.
type Index struct {
	db     *gorm.DB
	logger *slog.Logger

	mu  sync.Mutex
	seq uint64
}

// Open opens a sqlite-backed index. An empty path yields a private in-memory
// database.
func Open(path string) (*Index, error) {
	dsn := strings.TrimSpace(path)
	if dsn == "" {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open event index: %w", err)
	}
	return New(db)
}

// New migrates the schema on db and resumes the sequence counter.
func New(db *gorm.DB) (*Index, error) {
	if db == nil {
		return nil, errors.New("event index: nil database")
	}
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("migrate event index: %w", err)
	}
	var last EventRecord
	err := db.Order("seq desc").Limit(1).Find(&last).Error
	if err != nil {
		return nil, fmt.Errorf("load event sequence: %w", err)
	}
	return &Index{db: db, logger: slog.Default(), seq: last.Seq}, nil
}

// SetLogger overrides the logger used to report Emit failures.
func (i *Index) SetLogger(l *slog.Logger) {
	if l != nil {
		i.logger = l
	}
}

// Emit implements events.Emitter. Events without an attribute payload are
// skipped; write failures are logged since emitters cannot return errors.
func (i *Index) Emit(evt events.Event) {
	typed, ok := events.Typed(evt)
	if !ok {
		return
	}
	if err := i.Record(context.Background(), typed); err != nil {
		i.logger.Error("event index write failed", slog.String("type", typed.Type), slog.Any("error", err))
	}
}

// Record appends evt to the journal.
func (i *Index) Record(ctx context.Context, evt *types.Event) error {
	if evt == nil {
		return errors.New("event index: nil event")
	}
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	record := EventRecord{
		ID:         uuid.New(),
		Type:       evt.Type,
		Attributes: string(attrs),
	}
	if raw := evt.Attr(EscrowIDAttribute); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("event %s: invalid %s %q", evt.Type, EscrowIDAttribute, raw)
		}
		record.EscrowID = &id
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	record.Seq = i.seq + 1
	if err := i.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	i.seq = record.Seq
	return nil
}

// ListByEscrow returns every event recorded for escrow id, oldest first.
func (i *Index) ListByEscrow(ctx context.Context, id uint64) ([]Entry, error) {
	var records []EventRecord
	err := i.db.WithContext(ctx).Where("escrow_id = ?", id).Order("seq asc").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return decode(records)
}

// ListByType returns the most recent events of one type, newest first.
func (i *Index) ListByType(ctx context.Context, eventType string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []EventRecord
	err := i.db.WithContext(ctx).Where("type = ?", eventType).Order("seq desc").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return decode(records)
}

// Close releases the underlying connection pool.
func (i *Index) Close() error {
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func decode(records []EventRecord) ([]Entry, error) {
	out := make([]Entry, 0, len(records))
	for _, record := range records {
		attrs := map[string]string{}
		if err := json.Unmarshal([]byte(record.Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", record.Seq, err)
		}
		out = append(out, Entry{
			Seq:        record.Seq,
			Type:       record.Type,
			EscrowID:   record.EscrowID,
			Attributes: attrs,
			RecordedAt: record.CreatedAt,
		})
	}
	return out, nil
}
