package store

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/i474232898/weather-prediction/internal/logger"
	"github.com/i474232898/weather-prediction/internal/metrics"
	"github.com/i474232898/weather-prediction/internal/weather"
)

// Options configures the SQLite store.
type Options struct {
	// Path of the database file. Parent directories are created.
	Path string

	// LockWait bounds how long a statement waits on a locked database
	// before failing with SQLITE_BUSY.
	LockWait time.Duration

	// Retry controls how busy writes are retried.
	Retry RetryPolicy

	// MaxOpenConns caps the connection pool. WAL mode lets readers proceed
	// alongside the single writer.
	MaxOpenConns int

	Metrics *metrics.Recorder
}

func (o Options) withDefaults() Options {
	if o.LockWait <= 0 {
		o.LockWait = 2 * time.Second
	}
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 4
	}
	o.Retry = o.Retry.withDefaults()
	return o
}

// SQLiteStore persists readings and predictions in one embedded SQLite file.
// All writers go through a single-slot semaphore; SQLite's own file lock
// serializes against writers in other processes.
type SQLiteStore struct {
	db       *gorm.DB
	opts     Options
	writeSem chan struct{}
}

var _ weather.Store = (*SQLiteStore)(nil)

// DSN builds the go-sqlite3 connection string for path.
func DSN(path string, lockWait time.Duration) string {
	params := url.Values{}
	params.Set("_busy_timeout", strconv.FormatInt(lockWait.Milliseconds(), 10))
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_txlock", "immediate")
	return fmt.Sprintf("file:%s?%s", path, params.Encode())
}

// Open migrates the schema and opens the store.
func Open(opts Options) (*SQLiteStore, error) {
	opts = opts.withDefaults()
	if opts.Path == "" {
		return nil, fmt.Errorf("sqlite database path cannot be empty")
	}
	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := DSN(opts.Path, opts.LockWait)
	if err := Migrate(dsn); err != nil {
		return nil, err
	}

	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxOpenConns)

	logger.Infof("store: opened %s", opts.Path)
	return &SQLiteStore{
		db:       db,
		opts:     opts,
		writeSem: make(chan struct{}, 1),
	}, nil
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database answers within the lock wait.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.read(ctx, "ping", func(db *gorm.DB) error {
		return db.Exec("SELECT 1").Error
	})
}
