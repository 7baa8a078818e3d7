package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"
)

var (
	// ErrItemNotFound is returned when a queue item id does not exist.
	ErrItemNotFound = errors.New("queue item not found")
	// ErrItemTerminal is returned when a transition is attempted on a
	// completed item.
	ErrItemTerminal = errors.New("queue item is completed")
	// ErrItemSyncing is returned when removal is attempted on an item
	// with a publish attempt in flight.
	ErrItemSyncing = errors.New("queue item is syncing")
	// ErrBadTransition is returned for status transitions the state
	// machine does not permit.
	ErrBadTransition = errors.New("invalid queue status transition")
)

// Defaults applied when RecordScan has to invent records for an unknown
// natural key. Scanning must never block on missing catalog data.
const (
	DefaultVATRate  = 0.15
	DefaultMinStock = 10
	DefaultCategory = "Uncategorized"
)

// sqlOpenFunc is swappable in tests.
var sqlOpenFunc = sql.Open

// Store is the device-local durable store: global catalog entries,
// business-scoped overrides, the sync queue, and the settings cache,
// all in one sqlite file.
//
// Mutations serialize on a single writer lock; reads run concurrently.
// Each device owns its store exclusively, so there is no cross-device
// locking anywhere in this package.
type Store struct {
	db *bun.DB

	// mu is the single-writer lock for all mutating operations.
	mu sync.Mutex

	// now is swappable in tests.
	now func() time.Time
}

// Open opens (creating if necessary) the sqlite store at path and runs
// schema migration. Use ":memory:" for an in-memory store in tests.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	sqldb, err := sqlOpenFunc("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: sqlite has a single writer anyway, and a shared
	// in-memory DB disappears when its last connection closes.
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxIdleTime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	s := &Store{
		db:  db,
		now: time.Now,
	}

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	models := []interface{}{
		(*CatalogEntry)(nil),
		(*LocalOverride)(nil),
		(*QueueItem)(nil),
		(*Setting)(nil),
	}
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	if _, err := s.db.NewCreateIndex().
		Model((*QueueItem)(nil)).
		Index("idx_queue_status_created").
		Column("status", "created_at").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
