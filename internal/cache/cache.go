// Package cache keeps the last successful snapshot of each synced collection
// in a local SQLite database so the UI has something to show before the first
// network load completes, or while offline.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/shelfmark/shelf/internal/livesync"
	"github.com/shelfmark/shelf/internal/records"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	collection TEXT NOT NULL,
	owner      TEXT NOT NULL,
	payload    BLOB NOT NULL,
	saved_at   TIMESTAMP NOT NULL,
	PRIMARY KEY (collection, owner)
)`

// DB is a snapshot store.
type DB struct {
	db        *sqlx.DB
	path      string
	closeOnce sync.Once
}

// Open opens or creates the cache database at path. ":memory:" is accepted
// for tests.
func Open(path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &DB{db: db, path: path}, nil
}

// Close closes the database once.
func (d *DB) Close() error {
	var err error
	d.closeOnce.Do(func() {
		err = d.db.Close()
	})
	return err
}

type row struct {
	Payload []byte    `db:"payload"`
	SavedAt time.Time `db:"saved_at"`
}

func (d *DB) load(ctx context.Context, collection, owner string) ([]byte, time.Time, error) {
	var r row
	err := d.db.GetContext(ctx, &r,
		`SELECT payload, saved_at FROM snapshots WHERE collection = ? AND owner = ?`,
		collection, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load %s snapshot: %w", collection, err)
	}
	return r.Payload, r.SavedAt, nil
}

func (d *DB) save(ctx context.Context, collection, owner string, payload []byte) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO snapshots (collection, owner, payload, saved_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (collection, owner) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		collection, owner, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save %s snapshot: %w", collection, err)
	}
	return nil
}

// Purge removes every snapshot belonging to owner. Called on logout.
func (d *DB) Purge(ctx context.Context, owner string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM snapshots WHERE owner = ?`, owner); err != nil {
		return fmt.Errorf("purge snapshots: %w", err)
	}
	return nil
}

// SavedAt reports when the collection was last cached for owner.
func (d *DB) SavedAt(ctx context.Context, collection, owner string) (time.Time, error) {
	_, at, err := d.load(ctx, collection, owner)
	return at, err
}

// Table is a typed view of one collection in the cache.
type Table[T livesync.Record] struct {
	db         *DB
	collection string
	logger     *log.Logger
}

var (
	_ livesync.Cache[records.Folder]   = (*Table[records.Folder])(nil)
	_ livesync.Cache[records.Bookmark] = (*Table[records.Bookmark])(nil)
)

// NewTable returns a typed view for collection.
func NewTable[T livesync.Record](db *DB, collection string, logger *log.Logger) *Table[T] {
	if logger == nil {
		logger = log.Default()
	}
	return &Table[T]{db: db, collection: collection, logger: logger.WithPrefix("cache")}
}

// Load returns the cached items for owner, or nil when none are stored. A
// payload that no longer decodes is treated as absent.
func (t *Table[T]) Load(ctx context.Context, owner string) ([]T, error) {
	payload, _, err := t.db.load(ctx, t.collection, owner)
	if err != nil || payload == nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(payload, &items); err != nil {
		t.logger.Warn("discarding unreadable snapshot", "collection", t.collection, "err", err)
		return nil, nil
	}
	return items, nil
}

// Save replaces the cached items for owner.
func (t *Table[T]) Save(ctx context.Context, owner string, items []T) error {
	if items == nil {
		items = []T{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", t.collection, err)
	}
	return t.db.save(ctx, t.collection, owner, payload)
}
