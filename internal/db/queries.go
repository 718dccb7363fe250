package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries runs the ledger statements against a connection or transaction.
type Queries struct {
	db DBTX
}

// New returns Queries bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const runColumns = `id, source_path, output_path, style, reuse, failure_policy, status,
	chapters, illustrated, failed, error, started_at, finished_at`

func scanRun(row interface{ Scan(...interface{}) error }) (Run, error) {
	var r Run
	err := row.Scan(
		&r.ID, &r.SourcePath, &r.OutputPath, &r.Style, &r.Reuse, &r.FailurePolicy, &r.Status,
		&r.Chapters, &r.Illustrated, &r.Failed, &r.Error, &r.StartedAt, &r.FinishedAt,
	)
	return r, err
}

// CreateRunParams holds the fields of a new run.
type CreateRunParams struct {
	ID            string
	SourcePath    string
	OutputPath    string
	Style         string
	Reuse         bool
	FailurePolicy string
	StartedAt     time.Time
}

const createRun = `INSERT INTO runs (id, source_path, output_path, style, reuse, failure_policy, status, started_at)
VALUES (?, ?, ?, ?, ?, ?, '` + RunRunning + `', ?)
RETURNING ` + runColumns

// CreateRun inserts a run in the running state.
func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) (Run, error) {
	row := q.db.QueryRowContext(ctx, createRun,
		arg.ID, arg.SourcePath, arg.OutputPath, arg.Style, arg.Reuse, arg.FailurePolicy, arg.StartedAt.UTC(),
	)
	r, err := scanRun(row)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return r, nil
}

// FinishRunParams holds the final state of a run.
type FinishRunParams struct {
	ID          string
	Status      string
	Chapters    int64
	Illustrated int64
	Failed      int64
	Error       string
	FinishedAt  time.Time
}

const finishRun = `UPDATE runs
SET status = ?, chapters = ?, illustrated = ?, failed = ?, error = ?, finished_at = ?
WHERE id = ?`

// FinishRun records the final state of a run.
func (q *Queries) FinishRun(ctx context.Context, arg FinishRunParams) error {
	res, err := q.db.ExecContext(ctx, finishRun,
		arg.Status, arg.Chapters, arg.Illustrated, arg.Failed, arg.Error, arg.FinishedAt.UTC(), arg.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", arg.ID, sql.ErrNoRows)
	}
	return nil
}

// AddRunProgressParams holds counter increments for a running run.
type AddRunProgressParams struct {
	ID          string
	Illustrated int64
	Failed      int64
}

const addRunProgress = `UPDATE runs
SET illustrated = illustrated + ?, failed = failed + ?
WHERE id = ?`

// AddRunProgress increments the counters of a run.
func (q *Queries) AddRunProgress(ctx context.Context, arg AddRunProgressParams) error {
	res, err := q.db.ExecContext(ctx, addRunProgress, arg.Illustrated, arg.Failed, arg.ID)
	if err != nil {
		return fmt.Errorf("add run progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add run progress: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("add run progress %s: %w", arg.ID, sql.ErrNoRows)
	}
	return nil
}

const getRun = `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

// GetRun returns the run with the given id.
func (q *Queries) GetRun(ctx context.Context, id string) (Run, error) {
	return scanRun(q.db.QueryRowContext(ctx, getRun, id))
}

const listRuns = `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id LIMIT ?`

// ListRuns returns the most recent runs first.
func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]Run, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var items []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return items, nil
}

const countRuns = `SELECT COUNT(*) FROM runs`

// CountRuns returns the number of recorded runs.
func (q *Queries) CountRuns(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countRuns).Scan(&n)
	return n, err
}

// CreateChapterParams holds the fields of a chapter outcome.
type CreateChapterParams struct {
	RunID       string
	ItemID      string
	Href        string
	Sequence    sql.NullInt64
	Status      string
	Prompt      string
	ImagePath   string
	AnchorFound bool
	Error       string
	CreatedAt   time.Time
}

const createChapter = `INSERT INTO chapters (run_id, item_id, href, sequence, status, prompt, image_path, anchor_found, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateChapter records one chapter outcome and returns its row id.
func (q *Queries) CreateChapter(ctx context.Context, arg CreateChapterParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createChapter,
		arg.RunID, arg.ItemID, arg.Href, arg.Sequence, arg.Status, arg.Prompt,
		arg.ImagePath, arg.AnchorFound, arg.Error, arg.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("create chapter: %w", err)
	}
	return res.LastInsertId()
}

const listChaptersByRun = `SELECT id, run_id, item_id, href, sequence, status, prompt, image_path, anchor_found, error, created_at
FROM chapters WHERE run_id = ? ORDER BY id`

// ListChaptersByRun returns the chapter outcomes of a run in processing order.
func (q *Queries) ListChaptersByRun(ctx context.Context, runID string) ([]Chapter, error) {
	rows, err := q.db.QueryContext(ctx, listChaptersByRun, runID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	var items []Chapter
	for rows.Next() {
		var c Chapter
		if err := rows.Scan(
			&c.ID, &c.RunID, &c.ItemID, &c.Href, &c.Sequence, &c.Status, &c.Prompt,
			&c.ImagePath, &c.AnchorFound, &c.Error, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapters: %w", err)
	}
	return items, nil
}
