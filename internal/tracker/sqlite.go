package tracker

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS syncs (
	id                   TEXT PRIMARY KEY,
	commit_hash          TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL,
	articles_processed   INTEGER NOT NULL DEFAULT 0,
	articles_failed      INTEGER NOT NULL DEFAULT 0,
	errors               TEXT NOT NULL DEFAULT '[]',
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	started_at           DATETIME NOT NULL,
	completed_at         DATETIME,
	request              TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_syncs_started ON syncs(started_at);
`

// SQLiteStore keeps sync bookkeeping in a SQLite database so history and the
// failure streak survive restarts.
type SQLiteStore struct {
	conn *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("tracker: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tracker: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tracker: apply schema: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

// Save inserts or replaces the status row.
func (s *SQLiteStore) Save(st models.SyncStatus) error {
	errsJSON, err := json.Marshal(nonNil(st.Errors))
	if err != nil {
		return fmt.Errorf("tracker: encode errors of %s: %w", st.SyncID, err)
	}
	var reqJSON []byte
	if st.Request != nil {
		if reqJSON, err = json.Marshal(st.Request); err != nil {
			return fmt.Errorf("tracker: encode request of %s: %w", st.SyncID, err)
		}
	}
	var completed any
	if st.CompletedAt != nil {
		completed = st.CompletedAt.UTC()
	}
	_, err = s.conn.Exec(`
		INSERT INTO syncs (id, commit_hash, status, articles_processed, articles_failed,
		                   errors, consecutive_failures, started_at, completed_at, request)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			commit_hash          = excluded.commit_hash,
			status               = excluded.status,
			articles_processed   = excluded.articles_processed,
			articles_failed      = excluded.articles_failed,
			errors               = excluded.errors,
			consecutive_failures = excluded.consecutive_failures,
			completed_at         = excluded.completed_at,
			request              = excluded.request
	`, st.SyncID, st.CommitHash, string(st.Status), st.ArticlesProcessed, st.ArticlesFailed,
		string(errsJSON), st.ConsecutiveFailures, st.StartedAt.UTC(), completed, string(reqJSON))
	if err != nil {
		return fmt.Errorf("tracker: save %s: %w", st.SyncID, err)
	}
	return nil
}

// Get returns the status with the given id or apperr.ErrNotFound.
func (s *SQLiteStore) Get(id string) (models.SyncStatus, error) {
	row := s.conn.QueryRow(`
		SELECT id, commit_hash, status, articles_processed, articles_failed, errors,
		       consecutive_failures, started_at, completed_at, request
		FROM syncs WHERE id = ?`, id)
	st, err := scanStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SyncStatus{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.SyncStatus{}, fmt.Errorf("tracker: get %s: %w", id, err)
	}
	return st, nil
}

// Recent lists statuses newest first.
func (s *SQLiteStore) Recent(limit int) ([]models.SyncStatus, error) {
	rows, err := s.conn.Query(`
		SELECT id, commit_hash, status, articles_processed, articles_failed, errors,
		       consecutive_failures, started_at, completed_at, request
		FROM syncs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("tracker: recent: %w", err)
	}
	defer rows.Close()

	var out []models.SyncStatus
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("tracker: scan: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStatus(sc scanner) (models.SyncStatus, error) {
	var (
		st        models.SyncStatus
		status    string
		errsJSON  string
		reqJSON   string
		completed sql.NullTime
	)
	if err := sc.Scan(&st.SyncID, &st.CommitHash, &status, &st.ArticlesProcessed, &st.ArticlesFailed,
		&errsJSON, &st.ConsecutiveFailures, &st.StartedAt, &completed, &reqJSON); err != nil {
		return models.SyncStatus{}, err
	}
	st.Status = models.SyncState(status)
	if err := json.Unmarshal([]byte(errsJSON), &st.Errors); err != nil {
		return models.SyncStatus{}, fmt.Errorf("decode errors of %s: %w", st.SyncID, err)
	}
	if st.Errors == nil {
		st.Errors = []string{}
	}
	if completed.Valid {
		t := completed.Time
		st.CompletedAt = &t
	}
	if reqJSON != "" {
		var req models.SyncRequest
		if err := json.Unmarshal([]byte(reqJSON), &req); err != nil {
			return models.SyncStatus{}, fmt.Errorf("decode request of %s: %w", st.SyncID, err)
		}
		st.Request = &req
	}
	return st, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
