package blacklist

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Store persists masked-word frequencies to PostgreSQL. Persistence is
// optional; the service runs without it and loses counts on restart.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// StoreConfig contains database configuration for the blacklist store.
type StoreConfig struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	FlushInterval   time.Duration `yaml:"flush_interval" mapstructure:"flush_interval"`
}

// NewStore connects to the database and ensures the blacklist table exists.
func NewStore(config *StoreConfig, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	store := &Store{db: db, logger: logger}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize blacklist store: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS masked_words (
			word TEXT PRIMARY KEY,
			count BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create masked_words table: %w", err)
	}
	return nil
}

// Upsert writes absolute counts for the given entries. The in-memory
// recorder holds process-lifetime totals, so the stored count is replaced
// when larger, not summed.
func (s *Store) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO masked_words (word, count, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (word) DO UPDATE
		SET count = GREATEST(masked_words.count, EXCLUDED.count), updated_at = now()`
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, query, e.Word, e.Count); err != nil {
			return fmt.Errorf("failed to upsert word %q: %w", e.Word, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit blacklist flush: %w", err)
	}
	return nil
}

// Top returns the highest-count entries from the database.
func (s *Store) Top(ctx context.Context, limit int) ([]Entry, error) {
	var entries []Entry
	query := `SELECT word, count FROM masked_words ORDER BY count DESC, word ASC LIMIT $1`
	if err := s.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query blacklist: %w", err)
	}
	return entries, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Flusher periodically persists a Recorder's dirty entries to a Store.
type Flusher struct {
	recorder *Recorder
	store    *Store
	interval time.Duration
	logger   *zap.Logger
}

// NewFlusher creates a Flusher; interval defaults to one minute.
func NewFlusher(recorder *Recorder, store *Store, interval time.Duration, logger *zap.Logger) *Flusher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Flusher{recorder: recorder, store: store, interval: interval, logger: logger}
}

// Run flushes on every tick until the context is cancelled, then flushes one
// final time.
func (f *Flusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.flush(context.Background())
			return
		case <-ticker.C:
			f.flush(ctx)
		}
	}
}

func (f *Flusher) flush(ctx context.Context) {
	entries := f.recorder.takeDirty()
	if len(entries) == 0 {
		return
	}
	if err := f.store.Upsert(ctx, entries); err != nil {
		f.recorder.restoreDirty(entries)
		f.logger.Warn("blacklist flush failed", zap.Error(err), zap.Int("entries", len(entries)))
		return
	}
	f.logger.Debug("blacklist flushed", zap.Int("entries", len(entries)))
}
