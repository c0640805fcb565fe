package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/sprite-ai/prlens/internal/model"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// sqliteTimeLayout is fixed width so stored timestamps compare correctly as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQL is a Store backed by database/sql, either SQLite or PostgreSQL.
type SQL struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// OpenSQLite opens (creating if needed) the SQLite database at path and
// migrates its schema.
func OpenSQLite(ctx context.Context, path string) (*SQL, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One writer at a time avoids SQLITE_BUSY under concurrent workers.
	db.SetMaxOpenConns(1)

	return newSQL(ctx, db, dialectSQLite)
}

// OpenPostgres connects to PostgreSQL through the pgx stdlib driver and
// migrates its schema.
func OpenPostgres(ctx context.Context, dsn string) (*SQL, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return newSQL(ctx, db, dialectPostgres)
}

func newSQL(ctx context.Context, db *sql.DB, d dialect) (*SQL, error) {
	s := &SQL{db: db, dialect: d, now: func() time.Time { return time.Now().UTC() }}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) migrate(ctx context.Context) error {
	tsType := "TEXT"
	if s.dialect == dialectPostgres {
		tsType = "TIMESTAMPTZ"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_jobs (
  id            TEXT PRIMARY KEY,
  repo_url      TEXT NOT NULL,
  pr_number     INTEGER NOT NULL,
  status        TEXT NOT NULL,
  progress      TEXT NOT NULL DEFAULT '',
  result        TEXT,
  error_message TEXT NOT NULL DEFAULT '',
  created_at    ` + tsType + ` NOT NULL,
  updated_at    ` + tsType + ` NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_jobs_status_created ON analysis_jobs (status, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQL) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *SQL) timeArg(t time.Time) any {
	if s.dialect == dialectSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

func (s *SQL) Create(ctx context.Context, job *model.Job) error {
	if err := validateNew(job); err != nil {
		return err
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now()
	}
	job.UpdatedAt = job.CreatedAt

	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO analysis_jobs (id, repo_url, pr_number, status, progress, result, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		job.ID, job.Repo, job.PRNumber, string(job.Status), job.Progress, nullableText(job.Result),
		job.ErrorMessage, s.timeArg(job.CreatedAt), s.timeArg(job.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, job.ID)
		}
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

func (s *SQL) Get(ctx context.Context, id string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, repo_url, pr_number, status, progress, result, error_message, created_at, updated_at
		   FROM analysis_jobs
		  WHERE id = ?`), id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting job: %w", err)
	}
	return job, nil
}

// Transition reads the current row, validates the move and writes the new
// state conditioned on the status it read, so a concurrent writer causes
// ErrInvalidTransition instead of a lost update.
func (s *SQL) Transition(ctx context.Context, id string, to model.JobStatus, u Update) (*model.Job, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(current.Status, to, u); err != nil {
		return nil, err
	}

	next := apply(*current, to, u, s.now())
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE analysis_jobs
		    SET status = ?, progress = ?, result = ?, error_message = ?, updated_at = ?
		  WHERE id = ? AND status = ?`),
		string(next.Status), next.Progress, nullableText(next.Result), next.ErrorMessage, s.timeArg(next.UpdatedAt),
		id, string(current.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("updating job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("updating job: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, id)
	}
	return &next, nil
}

func (s *SQL) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM analysis_jobs
		  WHERE status IN (?, ?) AND created_at < ?`),
		string(model.JobCompleted), string(model.JobFailed), s.timeArg(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting finished jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting finished jobs: %w", err)
	}
	return int(n), nil
}

func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQL) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		job              model.Job
		status           string
		result           sql.NullString
		created, updated any
	)
	if err := row.Scan(&job.ID, &job.Repo, &job.PRNumber, &status, &job.Progress, &result,
		&job.ErrorMessage, &created, &updated); err != nil {
		return nil, err
	}

	job.Status = model.JobStatus(status)
	if result.Valid {
		job.Result = []byte(result.String)
	}

	var err error
	if job.CreatedAt, err = toTime(created); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if job.UpdatedAt, err = toTime(updated); err != nil {
		return nil, fmt.Errorf("updated_at: %w", err)
	}
	return &job, nil
}

// toTime accepts the representations drivers return for timestamp columns.
func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	case []byte:
		return time.Parse(time.RFC3339Nano, string(t))
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func nullableText(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
