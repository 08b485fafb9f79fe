package underwriting

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"underwriting-backend/internal/shared/storage/db"
)

// SQLRunRepo implements RunRepo on any database/sql dialect the db package supports.
type SQLRunRepo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

func (r *SQLRunRepo) q(query string) string {
	return db.Rebind(r.Dialect, query)
}

func (r *SQLRunRepo) Start(ctx context.Context, run Run) error {
	const query = `
INSERT INTO underwriting_runs (
    request_id,
    provider,
    status,
    document_types,
    started_at
) VALUES (?, ?, ?, ?, ?)`
	_, err := r.DB.ExecContext(ctx, r.q(query),
		run.RequestID,
		run.Provider,
		string(run.Status),
		strings.Join(run.DocumentTypes, ","),
		run.StartedAt.UTC(),
	)
	return err
}

// Finish reports ErrRunNotFound when no running row matches requestID.
func (r *SQLRunRepo) Finish(ctx context.Context, requestID string, outcome RunOutcome) error {
	const query = `
UPDATE underwriting_runs
SET status = ?, decisions = ?, result_json = ?, result_sha256 = ?, error_message = ?, completed_at = ?
WHERE request_id = ? AND status = ?`
	res, err := r.DB.ExecContext(ctx, r.q(query),
		string(outcome.Status),
		strings.Join(outcome.Decisions, ","),
		nullString(string(outcome.Result)),
		nullString(outcome.ResultSHA256),
		nullString(outcome.Error),
		outcome.CompletedAt.UTC(),
		requestID,
		string(RunRunning),
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (r *SQLRunRepo) Get(ctx context.Context, requestID string) (Run, error) {
	const query = `
SELECT request_id, provider, status, document_types, decisions, result_json, result_sha256, error_message, started_at, completed_at
FROM underwriting_runs
WHERE request_id = ?`
	run, err := scanRun(r.DB.QueryRowContext(ctx, r.q(query), requestID), true)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

// List returns the newest runs first, without their result documents.
func (r *SQLRunRepo) List(ctx context.Context, limit int) ([]Run, error) {
	const query = `
SELECT request_id, provider, status, document_types, decisions, NULL, result_sha256, error_message, started_at, completed_at
FROM underwriting_runs
ORDER BY started_at DESC
LIMIT ?`
	rows, err := r.DB.QueryContext(ctx, r.q(query), clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner, withResult bool) (Run, error) {
	var run Run
	var status, docTypes string
	var decisions, result, sha, errMsg sql.NullString
	var startedAt, completedAt sql.NullTime
	if err := row.Scan(
		&run.RequestID,
		&run.Provider,
		&status,
		&docTypes,
		&decisions,
		&result,
		&sha,
		&errMsg,
		&startedAt,
		&completedAt,
	); err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	run.DocumentTypes = splitList(docTypes)
	run.Decisions = splitList(decisions.String)
	if withResult && result.Valid && result.String != "" {
		run.Result = []byte(result.String)
	}
	run.ResultSHA256 = sha.String
	run.Error = errMsg.String
	if startedAt.Valid {
		run.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return run, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
