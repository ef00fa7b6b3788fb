// Package store implements the Store (C1): a typed, embedded document
// store over SQLite with vector, keyword, and hybrid search. It is the
// uniform contract every other core component treats as a black box.
package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jivedev/jivecore/internal/embedding"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Table names are fixed per §4.1; the set never grows at runtime.
const (
	TableWorkItem     = "work_items"
	TableDependency   = "dependencies"
	TableTask         = "tasks"
	TableExecutionLog = "execution_log"
	TableSearchIndex  = "search_index"
)

var knownTables = map[string]bool{
	TableWorkItem:     true,
	TableDependency:   true,
	TableTask:         true,
	TableExecutionLog: true,
	TableSearchIndex:  true,
}

// Store is the SQLite-backed realization of C1. A single *sql.DB with
// SetMaxOpenConns(1) serializes writes, matching the teacher's
// SQLiteOperationalDB/SQLiteLearningDB connection policy.
type Store struct {
	db        *sql.DB
	embedding *embedding.Service

	maxRetries       int
	retryBase        time.Duration
	enableFTS        bool
	normalizeVectors bool

	mu       sync.Mutex
	ftsReady map[string]bool
}

// Options configures a new Store.
type Options struct {
	MaxRetries       int
	RetryBase        time.Duration
	EnableFTS        bool
	NormalizeVectors bool
}

// DefaultOptions matches the configuration defaults named in §6.4.
func DefaultOptions() Options {
	return Options{
		MaxRetries:       3,
		RetryBase:        time.Second,
		EnableFTS:        true,
		NormalizeVectors: false,
	}
}

// Open creates or opens a SQLite database at path and applies the schema.
func Open(path string, embeddingSvc *embedding.Service, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = time.Second
	}

	log.Printf("[STORE] opened database at %s", path)

	return &Store{
		db:               db,
		embedding:        embeddingSvc,
		maxRetries:       opts.MaxRetries,
		retryBase:        opts.RetryBase,
		enableFTS:        opts.EnableFTS,
		normalizeVectors: opts.NormalizeVectors,
		ftsReady:         make(map[string]bool),
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// checkTable validates table is one of the fixed five, returning a plain
// error otherwise; its caller wraps that as NotFound per §4.1's failure
// model.
func checkTable(table string) error {
	if !knownTables[table] {
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}

// withWriteRetry retries fn with exponential backoff (base 1s, factor 2,
// up to maxRetries attempts) matching the Store's write failure model.
// Reads must not call this.
func (s *Store) withWriteRetry(op func() error) error {
	var err error
	wait := s.retryBase
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("[STORE] retrying write (attempt %d) after: %v", attempt+1, err)
			time.Sleep(wait)
			wait *= 2
		}
		if err = op(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("write failed after %d attempts: %w", s.maxRetries, err)
}

func nowUTC() time.Time { return time.Now().UTC() }
