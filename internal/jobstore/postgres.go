package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPgxConnConfig builds a pgxpool connection config from a DSN,
// overriding the default QueryExecModeCacheStatement with
// QueryExecModeDescribeExec. This avoids "cached plan must not change
// result type" failures when a schema migration runs while the pool holds
// cached prepared-statement plans — the same gotcha documented and fixed in
// jordigilh-kubernaut's pkg/datastorage/server.NewPgxConnConfig.
func NewPgxConnConfig(dsn string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeDescribeExec
	return cfg, nil
}

// PostgresStore is the production Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres and returns a ready Store.
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := NewPgxConnConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() { s.pool.Close() }

// Ping is used by the Health/Metrics liveness check (spec §4.J).
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Create(ctx context.Context, targetURL string, userID *string) (*Job, error) {
	j := &Job{
		ID:        uuid.NewString(),
		UserID:    userID,
		TargetURL: targetURL,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scan_jobs (id, user_id, target_url, status, attempt_count, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, '', $5, $5)
	`, j.ID, j.UserID, j.TargetURL, j.Status, j.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return j, nil
}

// Transition moves a job from `from` to `to`, rejecting the update if the
// row is no longer in `from` (spec §3 invariant: status is monotonic except
// FAILED->RUNNING via retry).
func (s *PostgresStore) Transition(ctx context.Context, id string, from, to Status, fields TransitionFields) (*Job, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scan_jobs
		SET status = $1,
		    started_at = COALESCE($2, started_at),
		    completed_at = COALESCE($3, completed_at),
		    error_message = COALESCE($4, error_message),
		    attempt_count = COALESCE($5, attempt_count),
		    updated_at = $6
		WHERE id = $7 AND status = $8
	`, to, fields.StartedAt, fields.CompletedAt, fields.ErrorMessage, fields.AttemptCount, time.Now().UTC(), id, from)
	if err != nil {
		return nil, fmt.Errorf("transition job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("job %s not in expected state %s", id, from)
	}
	return s.FindByID(ctx, id)
}

func (s *PostgresStore) FindRecentSuccess(ctx context.Context, targetURL string, since time.Time) (*Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, target_url, status, attempt_count, error_message, created_at, started_at, completed_at
		FROM scan_jobs
		WHERE target_url = $1 AND status = $2 AND completed_at >= $3
		ORDER BY completed_at DESC
		LIMIT 1
	`, targetURL, StatusSuccess, since)
	return scanJob(row)
}

func (s *PostgresStore) FindActive(ctx context.Context, targetURL string) (*Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, target_url, status, attempt_count, error_message, created_at, started_at, completed_at
		FROM scan_jobs
		WHERE target_url = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1
	`, targetURL, StatusPending, StatusRunning)
	return scanJob(row)
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, target_url, status, attempt_count, error_message, created_at, started_at, completed_at
		FROM scan_jobs WHERE id = $1
	`, id)
	j, err := scanJob(row)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, &ErrNotFound{ID: id}
	}
	return j, nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter, page, limit int) (Page, error) {
	page, limit = NormalizePage(page, limit)
	offset := (page - 1) * limit

	where := "WHERE ($1 = '' OR target_url = $1) AND ($2 = '' OR status = $2)"
	args := []interface{}{filter.TargetURL, string(filter.Status)}

	var total int
	countRow := s.pool.QueryRow(ctx, "SELECT count(*) FROM scan_jobs "+where, args...)
	if err := countRow.Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count jobs: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, target_url, status, attempt_count, error_message, created_at, started_at, completed_at
		FROM scan_jobs `+where+`
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, append(args, limit, offset)...)
	if err != nil {
		return Page{}, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var data []*Job
	for rows.Next() {
		j, err := scanJobRows(rows)
		if err != nil {
			return Page{}, err
		}
		data = append(data, j)
	}
	return BuildPage(data, total, page, limit), nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	var status Status
	row := s.pool.QueryRow(ctx, `SELECT status FROM scan_jobs WHERE id = $1`, id)
	if err := row.Scan(&status); err != nil {
		if err == pgx.ErrNoRows {
			return &ErrNotFound{ID: id}
		}
		return fmt.Errorf("lookup job for delete: %w", err)
	}
	if status == StatusRunning {
		return &ErrConflict{ID: id}
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM scan_jobs WHERE id = $1 AND status != $2`, id, StatusRunning); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

// CompleteSuccess pairs the Job->SUCCESS transition with Result creation in
// a single transaction, per spec §4.E/§4.G — partial writes must be
// rejected.
func (s *PostgresStore) CompleteSuccess(ctx context.Context, jobID string, result *Result) error {
	result.ScanJobID = jobID
	if err := result.Validate(); err != nil {
		return fmt.Errorf("invalid result: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `
		UPDATE scan_jobs SET status = $1, completed_at = $2, updated_at = $2
		WHERE id = $3 AND status = $4
	`, StatusSuccess, now, jobID, StatusRunning)
	if err != nil {
		return fmt.Errorf("transition job to success: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not in RUNNING state", jobID)
	}

	rawData, err := json.Marshal(result.RawData)
	if err != nil {
		return fmt.Errorf("marshal raw data: %w", err)
	}

	result.ID = uuid.NewString()
	result.CreatedAt = now

	_, err = tx.Exec(ctx, `
		INSERT INTO scan_results (
			id, scan_job_id, score, risk_level, summary,
			tracker_count, cookie_count, external_domain_count, pages_crawled,
			is_https, has_csp, canvas_fingerprint, webgl_fingerprint, font_fingerprint, keylogger,
			raw_data, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, result.ID, result.ScanJobID, result.Score, result.RiskLevel, result.Summary,
		result.TrackerCount, result.CookieCount, result.ExternalDomainCount, result.PagesCrawled,
		result.IsHTTPS, result.HasCSP, result.CanvasFingerprint, result.WebGLFingerprint, result.FontFingerprint, result.Keylogger,
		rawData, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetResult(ctx context.Context, jobID string) (*Result, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, scan_job_id, score, risk_level, summary,
		       tracker_count, cookie_count, external_domain_count, pages_crawled,
		       is_https, has_csp, canvas_fingerprint, webgl_fingerprint, font_fingerprint, keylogger,
		       raw_data, created_at
		FROM scan_results WHERE scan_job_id = $1
	`, jobID)

	var r Result
	var rawData []byte
	err := row.Scan(&r.ID, &r.ScanJobID, &r.Score, &r.RiskLevel, &r.Summary,
		&r.TrackerCount, &r.CookieCount, &r.ExternalDomainCount, &r.PagesCrawled,
		&r.IsHTTPS, &r.HasCSP, &r.CanvasFingerprint, &r.WebGLFingerprint, &r.FontFingerprint, &r.Keylogger,
		&rawData, &r.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	if len(rawData) > 0 {
		if err := json.Unmarshal(rawData, &r.RawData); err != nil {
			return nil, fmt.Errorf("unmarshal raw data: %w", err)
		}
	}
	return &r, nil
}

// rowScanner abstracts over pgx.Row and pgx.Rows, both of which implement
// Scan, so scanJob can serve both single-row and multi-row queries.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.UserID, &j.TargetURL, &j.Status, &j.AttemptCount, &j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan job row: %w", err)
	}
	return &j, nil
}

func scanJobRows(rows rowScanner) (*Job, error) {
	return scanJob(rows)
}
