package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// lib/pq registers the "postgres" driver used by SQLConfig's DSN.
	_ "github.com/lib/pq"
)

// SQLConfig configures the connection to the checkpoint database. The
// schema is a single table: session_id text primary key, snapshot bytea,
// updated_at timestamptz.
type SQLConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultSQLConfig returns sane defaults for a local CockroachDB/Postgres
// instance.
func DefaultSQLConfig() SQLConfig {
	return SQLConfig{
		Host:            "localhost",
		Port:            26257,
		User:            "root",
		Database:        "orchestrator",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// SQLStore is a Store backed by a single "checkpoints" table in a
// Postgres-compatible database.
type SQLStore struct {
	db *sql.DB

	stmtGet    *sql.Stmt
	stmtPut    *sql.Stmt
	stmtDelete *sql.Stmt

	locker *sessionLocker
}

// NewSQLStore opens a connection pool per cfg, verifies connectivity,
// ensures the checkpoints table exists, and prepares its statements.
func NewSQLStore(cfg SQLConfig) (*SQLStore, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, int(cfg.ConnectTimeout.Seconds()),
	)
	return newSQLStoreWithDSN(dsn, cfg)
}

func newSQLStoreWithDSN(dsn string, cfg SQLConfig) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping checkpoint db: %w", err)
	}

	if _, err := db.ExecContext(pingCtx, schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}

	store := &SQLStore{db: db, locker: newSessionLocker()}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS checkpoints (
	session_id TEXT PRIMARY KEY,
	snapshot   BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func (s *SQLStore) prepareStatements() error {
	var err error
	if s.stmtGet, err = s.db.Prepare(`SELECT snapshot FROM checkpoints WHERE session_id = $1`); err != nil {
		return fmt.Errorf("prepare get: %w", err)
	}
	if s.stmtPut, err = s.db.Prepare(`
		INSERT INTO checkpoints (session_id, snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = now()
	`); err != nil {
		return fmt.Errorf("prepare put: %w", err)
	}
	if s.stmtDelete, err = s.db.Prepare(`DELETE FROM checkpoints WHERE session_id = $1`); err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	return nil
}

// DB exposes the underlying connection pool, e.g. for health checks.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Get fetches the stored snapshot for sessionID.
func (s *SQLStore) Get(ctx context.Context, sessionID string) ([]byte, error) {
	var snapshot []byte
	err := s.stmtGet.QueryRowContext(ctx, sessionID).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint %s: %w", sessionID, err)
	}
	return snapshot, nil
}

// Put upserts the snapshot for sessionID, serialized per session ID.
func (s *SQLStore) Put(ctx context.Context, sessionID string, snapshot []byte) error {
	unlock := s.locker.lock(sessionID)
	defer unlock()

	if _, err := s.stmtPut.ExecContext(ctx, sessionID, snapshot); err != nil {
		return fmt.Errorf("put checkpoint %s: %w", sessionID, err)
	}
	return nil
}

// Delete removes the stored snapshot for sessionID, if any.
func (s *SQLStore) Delete(ctx context.Context, sessionID string) error {
	unlock := s.locker.lock(sessionID)
	defer unlock()

	if _, err := s.stmtDelete.ExecContext(ctx, sessionID); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the prepared statements and the underlying connection pool.
func (s *SQLStore) Close() error {
	var firstErr error
	for _, stmt := range []*sql.Stmt{s.stmtGet, s.stmtPut, s.stmtDelete} {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
