package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/AgenciaV10/wsnap/internal/core/domain"
	"github.com/AgenciaV10/wsnap/internal/telemetry/metric"
)

// DefaultTable is the mirror table name.
const DefaultTable = "workspaces"

// Config configures the remote mirror.
type Config struct {
	DSN   string
	Table string

	// Timeout bounds each mirror call. Zero means no bound beyond the
	// caller's context.
	Timeout time.Duration
}

// Row is one mirrored workspace.
type Row struct {
	SessionID        string             `json:"session_id"`
	OwnerID          string             `json:"owner_id"`
	Files            []domain.FileEntry `json:"files"`
	LastStartCommand string             `json:"last_start_command,omitempty"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Record converts the row to a snapshot record. Mirrored paths are already
// relative to the workspace root.
func (r *Row) Record() *domain.Record {
	files := r.Files
	if files == nil {
		files = []domain.FileEntry{}
	}
	return &domain.Record{
		SessionID:        r.SessionID,
		CreatedAt:        r.UpdatedAt.UnixMilli(),
		Files:            files,
		LastStartCommand: r.LastStartCommand,
	}
}

// Mirror pushes and fetches workspace rows.
type Mirror struct {
	db      *sql.DB
	dialect string
	table   string
	timeout time.Duration
	logger  *slog.Logger
	metrics *metric.Registry
	now     func() time.Time
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithLogger sets the mirror logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mirror) { m.logger = l }
}

// WithMetrics records mirror operation results.
func WithMetrics(r *metric.Registry) Option {
	return func(m *Mirror) { m.metrics = r }
}

// Open connects to the database named by cfg.DSN and verifies the
// connection.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Mirror, error) {
	driver, dsn, dialect, err := parseDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	if !ValidTable(table) {
		return nil, fmt.Errorf("mirror: invalid table name: %q", table)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("mirror: open db: %w", err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}

	m := &Mirror{
		db:      db,
		dialect: dialect,
		table:   table,
		timeout: cfg.Timeout,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	pctx, cancel := m.bound(ctx)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mirror: ping db: %w", err)
	}
	return m, nil
}

// Dialect returns the SQL dialect in use.
func (m *Mirror) Dialect() string { return m.dialect }

// Migrate creates the mirror table if it does not exist.
func (m *Mirror) Migrate(ctx context.Context) error {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	chat_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	files TEXT NOT NULL,
	last_start_command TEXT,
	updated_at BIGINT NOT NULL
)`, m.table)
	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("mirror: migrate: %w", err)
	}
	return nil
}

// Upsert inserts or replaces the row for sessionID.
func (m *Mirror) Upsert(ctx context.Context, sessionID string, files []domain.FileEntry, ownerID, lastStartCommand string) domain.Result[struct{}] {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return fail[struct{}](m, "upsert", sessionID, err)
	}
	if files == nil {
		files = []domain.FileEntry{}
	}
	payload, err := json.Marshal(files)
	if err != nil {
		return fail[struct{}](m, "upsert", sessionID, err)
	}

	ctx, cancel := m.bound(ctx)
	defer cancel()

	q := rebind(m.dialect, fmt.Sprintf(`INSERT INTO %s (chat_id, user_id, files, last_start_command, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (chat_id) DO UPDATE SET
	user_id = excluded.user_id,
	files = excluded.files,
	last_start_command = excluded.last_start_command,
	updated_at = excluded.updated_at`, m.table))

	_, err = m.db.ExecContext(ctx, q,
		sessionID,
		ownerID,
		string(payload),
		nullString(lastStartCommand),
		m.now().UnixMilli(),
	)
	if err != nil {
		return fail[struct{}](m, "upsert", sessionID, domain.ErrMirrorUnavailable.Wrap(err))
	}

	m.metrics.RecordMirrorOp("upsert", domain.StatusOK.String())
	m.logger.Debug("workspace mirrored", "session_id", sessionID, "files", len(files))
	return domain.OK(struct{}{})
}

// Fetch returns the most recently updated row for (sessionID, ownerID).
func (m *Mirror) Fetch(ctx context.Context, sessionID, ownerID string) domain.Result[*Row] {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return fail[*Row](m, "fetch", sessionID, err)
	}

	ctx, cancel := m.bound(ctx)
	defer cancel()

	q := rebind(m.dialect, fmt.Sprintf(`SELECT chat_id, user_id, files, last_start_command, updated_at
FROM %s
WHERE chat_id = ? AND user_id = ?
ORDER BY updated_at DESC
LIMIT 1`, m.table))

	var (
		row       Row
		payload   string
		command   sql.NullString
		updatedAt int64
	)
	err := m.db.QueryRowContext(ctx, q, sessionID, ownerID).
		Scan(&row.SessionID, &row.OwnerID, &payload, &command, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		m.metrics.RecordMirrorOp("fetch", domain.StatusNotFound.String())
		return domain.NotFound[*Row]()
	}
	if err != nil {
		return fail[*Row](m, "fetch", sessionID, domain.ErrMirrorUnavailable.Wrap(err))
	}

	if err := json.Unmarshal([]byte(payload), &row.Files); err != nil {
		return fail[*Row](m, "fetch", sessionID, domain.ErrSnapshotCorrupted.Wrap(err))
	}
	row.LastStartCommand = command.String
	row.UpdatedAt = time.UnixMilli(updatedAt)

	m.metrics.RecordMirrorOp("fetch", domain.StatusOK.String())
	return domain.OK(&row)
}

// Delete removes the row for sessionID. Deleting a missing row succeeds.
func (m *Mirror) Delete(ctx context.Context, sessionID string) domain.Result[struct{}] {
	ctx, cancel := m.bound(ctx)
	defer cancel()

	q := rebind(m.dialect, fmt.Sprintf(`DELETE FROM %s WHERE chat_id = ?`, m.table))
	if _, err := m.db.ExecContext(ctx, q, sessionID); err != nil {
		return fail[struct{}](m, "delete", sessionID, domain.ErrMirrorUnavailable.Wrap(err))
	}
	m.metrics.RecordMirrorOp("delete", domain.StatusOK.String())
	return domain.OK(struct{}{})
}

// Close closes the database handle.
func (m *Mirror) Close() error {
	return m.db.Close()
}

func (m *Mirror) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout > 0 {
		return context.WithTimeout(ctx, m.timeout)
	}
	return context.WithCancel(ctx)
}

func fail[T any](m *Mirror, op, sessionID string, err error) domain.Result[T] {
	m.metrics.RecordMirrorOp(op, domain.StatusFailed.String())
	m.logger.Warn("remote mirror operation failed",
		"op", op,
		"session_id", sessionID,
		"error", err)
	return domain.Failed[T](err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
