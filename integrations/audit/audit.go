// Package audit persists every committed ledger notification to a SQL table
// so operators can reconstruct settlements after the websocket history rolls.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"habitledger/core/events"
)

var errSinkClosed = errors.New("audit: sink closed")

// Record is one persisted notification.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Type       string    `gorm:"size:64;index"`
	Subject    string    `gorm:"size:42;index"`
	Amount     string    `gorm:"size:80"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index"`
}

// TableName pins the table name independent of the struct name.
func (Record) TableName() string { return "habits_audit_events" }

// AutoMigrate creates or updates the audit schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}

// Open connects to the audit database. DSNs starting with postgres:// or
// postgresql:// use PostgreSQL; anything else is handed to SQLite.
func Open(dsn string) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, errors.New("audit: dsn required")
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://") {
		dialector = postgres.Open(trimmed)
	} else {
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return db, nil
}

const defaultQueueSize = 256

// Sink records ledger notifications. It implements events.Emitter; rows are
// written by a background worker so a slow database never stalls the ledger,
// and write failures are logged rather than surfaced.
type Sink struct {
	db      *gorm.DB
	logger  *slog.Logger
	nowFn   func() time.Time
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

// job is either a row to persist or a flush barrier.
type job struct {
	record  *Record
	flushed chan struct{}
}

// NewSink wraps an opened database and starts the write worker.
func NewSink(db *gorm.DB, logger *slog.Logger) (*Sink, error) {
	if db == nil {
		return nil, errors.New("audit: database required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	sink := &Sink{
		db:      db,
		logger:  logger,
		nowFn:   time.Now,
		timeout: 5 * time.Second,
		queue:   make(chan job, defaultQueueSize),
	}
	sink.wg.Add(1)
	go sink.worker()
	return sink, nil
}

// Emit implements events.Emitter. The row is stamped immediately and queued;
// a full queue drops it with a warning.
func (s *Sink) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	record, err := s.newRecord(evt)
	if err != nil {
		s.logger.Error("audit: encode failed",
			slog.String("event", evt.EventType()),
			slog.Any("error", err))
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- job{record: record}:
	default:
		s.logger.Warn("audit: queue full, dropping record",
			slog.String("event", record.Type),
			slog.String("subject", record.Subject))
	}
}

// Flush blocks until every record queued before the call has been written.
func (s *Sink) Flush(ctx context.Context) error {
	if s == nil {
		return nil
	}
	barrier := job{flushed: make(chan struct{})}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return errSinkClosed
	}
	select {
	case s.queue <- barrier:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-barrier.flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sink) worker() {
	defer s.wg.Done()
	for next := range s.queue {
		if next.flushed != nil {
			close(next.flushed)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.write(ctx, next.record); err != nil {
			s.logger.Error("audit: record failed",
				slog.String("event", next.record.Type),
				slog.Any("error", err))
		}
		cancel()
	}
}

// Record persists evt synchronously and returns the stored row.
func (s *Sink) Record(ctx context.Context, evt events.Event) (*Record, error) {
	record, err := s.newRecord(evt)
	if err != nil {
		return nil, err
	}
	if err := s.write(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Sink) newRecord(evt events.Event) (*Record, error) {
	payload := events.ToPayload(evt)
	if payload == nil {
		return nil, errors.New("audit: empty event")
	}
	attrs, err := json.Marshal(payload.Attributes)
	if err != nil {
		return nil, err
	}
	return &Record{
		ID:         uuid.New(),
		Type:       payload.Type,
		Subject:    subjectOf(payload.Attributes),
		Amount:     payload.Attributes["amount"],
		Attributes: string(attrs),
		CreatedAt:  s.nowFn().UTC(),
	}, nil
}

func (s *Sink) write(ctx context.Context, record *Record) error {
	return s.db.WithContext(ctx).Create(record).Error
}

// Query filters persisted records. Zero values match everything.
type Query struct {
	Type    string
	Subject string
	Since   time.Time
	Limit   int
}

// List returns matching records in insertion order.
func (s *Sink) List(ctx context.Context, q Query) ([]Record, error) {
	tx := s.db.WithContext(ctx).Model(&Record{})
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.Subject != "" {
		tx = tx.Where("subject = ?", q.Subject)
	}
	if !q.Since.IsZero() {
		tx = tx.Where("created_at >= ?", q.Since.UTC())
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var out []Record
	if err := tx.Order("created_at asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Close writes any queued records and releases the connection pool.
func (s *Sink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func subjectOf(attrs map[string]string) string {
	for _, key := range []string{"user", "operator", "admin"} {
		if v := attrs[key]; v != "" {
			return v
		}
	}
	return ""
}
