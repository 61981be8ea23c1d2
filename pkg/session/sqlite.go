package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harun/iattom/internal/observability"
	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	defaultTTL       = 30 * 24 * time.Hour
	defaultSweepSpec = "@every 1h"
)

// SQLiteOptions configures a SQLiteStore
type SQLiteOptions struct {
	Path      string
	TTL       time.Duration
	SweepSpec string
	Logger    zerolog.Logger
	Now       func() time.Time
}

// SQLiteStore is a durable Store with a sliding inactivity expiry.
// Every Get and Put pushes the expiry forward by TTL; expired rows are
// invisible to Get and purged by a cron sweep.
type SQLiteStore struct {
	db     *sql.DB
	ttl    time.Duration
	now    func() time.Time
	sweep  *cron.Cron
	logger zerolog.Logger
}

// NewSQLiteStore opens (or creates) the database at opts.Path
func NewSQLiteStore(ctx context.Context, opts SQLiteOptions) (*SQLiteStore, error) {
	observability.EnsureRegistered()

	if opts.Path == "" {
		return nil, fmt.Errorf("sqlite session store requires a path")
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.SweepSpec == "" {
		opts.SweepSpec = defaultSweepSpec
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", opts.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping session database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		ttl:    opts.TTL,
		now:    opts.Now,
		logger: opts.Logger,
	}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session schema: %w", err)
	}

	s.sweep = cron.New()
	if _, err := s.sweep.AddFunc(opts.SweepSpec, s.runSweep); err != nil {
		db.Close()
		return nil, fmt.Errorf("invalid session sweep spec %q: %w", opts.SweepSpec, err)
	}
	s.sweep.Start()

	s.logger.Info().
		Str("backend", BackendSQLite).
		Str("path", opts.Path).
		Dur("ttl", opts.TTL).
		Str("sweep", opts.SweepSpec).
		Msg("Session store initialized")

	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		contact_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Get loads contactID, treating expired rows as absent. A hit refreshes the
// expiry, so contacts who only read (help, wiki:, buscar:) stay active.
func (s *SQLiteStore) Get(ctx context.Context, contactID string) (*Session, error) {
	if err := ValidateContactID(contactID); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { observability.RecordSessionLoad(time.Since(start)) }()

	now := s.now()
	var data string
	err := s.db.QueryRowContext(ctx,
		`UPDATE sessions SET expires_at = ?
		WHERE contact_id = ? AND expires_at > ?
		RETURNING data`,
		now.Add(s.ttl).UnixMilli(), contactID, now.UnixMilli(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return New(contactID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	sess.ContactID = contactID
	return &sess, nil
}

// Put upserts s and refreshes its expiry
func (s *SQLiteStore) Put(ctx context.Context, sess *Session) error {
	if sess == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if err := ValidateContactID(sess.ContactID); err != nil {
		return err
	}
	start := time.Now()
	defer func() { observability.RecordSessionSave(time.Since(start)) }()

	now := s.now().UTC()
	sess.UpdatedAt = now

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (contact_id, data, updated_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(contact_id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`,
		sess.ContactID, string(data), now.UnixMilli(), now.Add(s.ttl).UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes contactID
func (s *SQLiteStore) Delete(ctx context.Context, contactID string) error {
	if err := ValidateContactID(contactID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE contact_id = ?`, contactID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes rows past their expiry and returns how many were removed
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged sessions: %w", err)
	}
	observability.RecordSessionsExpired(n)
	return n, nil
}

func (s *SQLiteStore) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Session sweep failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int64("purged", n).Msg("Expired sessions purged")
	}
}

// Close stops the sweep and closes the database
func (s *SQLiteStore) Close() error {
	if s.sweep != nil {
		<-s.sweep.Stop().Done()
	}
	return s.db.Close()
}
