package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/metalagman/refiner/internal/backlog"
)

// ErrNotFound is returned when a project or run does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Store provides persistence for backlog context rows and review runs.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ImportRows replaces everything stored for rows.Project.ID with rows.
func (s *Store) ImportRows(ctx context.Context, rows backlog.Rows) error {
	pid := rows.Project.ID
	if pid == "" {
		return fmt.Errorf("project id is required")
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	if err := importRows(ctx, tx, rows); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func importRows(ctx context.Context, tx *sql.Tx, rows backlog.Rows) error {
	pid := rows.Project.ID
	if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, pid); err != nil {
		return fmt.Errorf("clear project %s: %w", pid, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO projects(id, name, description, goals) VALUES(?, ?, ?, ?)`,
		pid, rows.Project.Name, rows.Project.Description, rows.Project.Goals); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}

	links := 0
	link := func(insightID, challengeID string) error {
		links++
		_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO insight_challenges(project_id, insight_id, challenge_id, position) VALUES(?, ?, ?, ?)`,
			pid, insightID, challengeID, links)
		if err != nil {
			return fmt.Errorf("link insight %s to challenge %s: %w", insightID, challengeID, err)
		}
		return nil
	}

	for i, c := range rows.Challenges {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO challenges(project_id, id, parent_id, title, description, status, impact, position)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
			pid, c.ID, nullableString(c.ParentID), c.Title, c.Description, c.Status, c.Impact, i); err != nil {
			return fmt.Errorf("insert challenge %s: %w", c.ID, err)
		}
		for _, iid := range c.InsightIDs {
			if err := link(iid, c.ID); err != nil {
				return err
			}
		}
	}
	for i, in := range rows.Insights {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO insights(project_id, id, title, description, category, completed, conversation_id, position)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
			pid, in.ID, in.Title, in.Description, in.Category, in.Completed, in.ConversationID, i); err != nil {
			return fmt.Errorf("insert insight %s: %w", in.ID, err)
		}
		for _, cid := range in.ChallengeIDs {
			if err := link(in.ID, cid); err != nil {
				return err
			}
		}
	}
	for i, o := range rows.Owners {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO owners(project_id, id, name, email, position) VALUES(?, ?, ?, ?, ?)`,
			pid, o.ID, o.Name, o.Email, i); err != nil {
			return fmt.Errorf("insert owner %s: %w", o.ID, err)
		}
	}
	for _, own := range rows.Ownerships {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO challenge_owners(project_id, challenge_id, owner_id) VALUES(?, ?, ?)`,
			pid, own.ChallengeID, own.OwnerID); err != nil {
			return fmt.Errorf("insert ownership %s/%s: %w", own.ChallengeID, own.OwnerID, err)
		}
	}
	return nil
}

// LoadRows returns the raw rows stored for a project. Insight links are
// returned on the insight side.
func (s *Store) LoadRows(ctx context.Context, projectID string) (backlog.Rows, error) {
	var rows backlog.Rows
	err := s.db.QueryRowContext(ctx, `SELECT id, name, description, goals FROM projects WHERE id=?`, projectID).
		Scan(&rows.Project.ID, &rows.Project.Name, &rows.Project.Description, &rows.Project.Goals)
	if errors.Is(err, sql.ErrNoRows) {
		return backlog.Rows{}, fmt.Errorf("project %q: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return backlog.Rows{}, fmt.Errorf("read project: %w", err)
	}

	if err := queryEach(ctx, s.db, `SELECT id, COALESCE(parent_id, ''), title, description, status, impact
		FROM challenges WHERE project_id=? ORDER BY position`, []any{projectID}, func(r *sql.Rows) error {
		var c backlog.ChallengeRow
		if err := r.Scan(&c.ID, &c.ParentID, &c.Title, &c.Description, &c.Status, &c.Impact); err != nil {
			return err
		}
		rows.Challenges = append(rows.Challenges, c)
		return nil
	}); err != nil {
		return backlog.Rows{}, fmt.Errorf("read challenges: %w", err)
	}

	links := make(map[string][]string)
	if err := queryEach(ctx, s.db, `SELECT insight_id, challenge_id FROM insight_challenges WHERE project_id=? ORDER BY position`,
		[]any{projectID}, func(r *sql.Rows) error {
			var iid, cid string
			if err := r.Scan(&iid, &cid); err != nil {
				return err
			}
			links[iid] = append(links[iid], cid)
			return nil
		}); err != nil {
		return backlog.Rows{}, fmt.Errorf("read insight links: %w", err)
	}

	if err := queryEach(ctx, s.db, `SELECT id, title, description, category, completed, conversation_id
		FROM insights WHERE project_id=? ORDER BY position`, []any{projectID}, func(r *sql.Rows) error {
		var in backlog.InsightRow
		if err := r.Scan(&in.ID, &in.Title, &in.Description, &in.Category, &in.Completed, &in.ConversationID); err != nil {
			return err
		}
		in.ChallengeIDs = links[in.ID]
		rows.Insights = append(rows.Insights, in)
		return nil
	}); err != nil {
		return backlog.Rows{}, fmt.Errorf("read insights: %w", err)
	}

	if err := queryEach(ctx, s.db, `SELECT id, name, email FROM owners WHERE project_id=? ORDER BY position`,
		[]any{projectID}, func(r *sql.Rows) error {
			var o backlog.Owner
			if err := r.Scan(&o.ID, &o.Name, &o.Email); err != nil {
				return err
			}
			rows.Owners = append(rows.Owners, o)
			return nil
		}); err != nil {
		return backlog.Rows{}, fmt.Errorf("read owners: %w", err)
	}

	if err := queryEach(ctx, s.db, `SELECT challenge_id, owner_id FROM challenge_owners WHERE project_id=? ORDER BY challenge_id, owner_id`,
		[]any{projectID}, func(r *sql.Rows) error {
			var own backlog.Ownership
			if err := r.Scan(&own.ChallengeID, &own.OwnerID); err != nil {
				return err
			}
			rows.Ownerships = append(rows.Ownerships, own)
			return nil
		}); err != nil {
		return backlog.Rows{}, fmt.Errorf("read ownerships: %w", err)
	}

	return rows, nil
}

// ListProjects returns every stored project ordered by id.
func (s *Store) ListProjects(ctx context.Context) ([]backlog.Project, error) {
	var out []backlog.Project
	err := queryEach(ctx, s.db, `SELECT id, name, description, goals FROM projects ORDER BY id`, nil, func(r *sql.Rows) error {
		var p backlog.Project
		if err := r.Scan(&p.ID, &p.Name, &p.Description, &p.Goals); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return out, nil
}

// RunRecord is a stored review run.
type RunRecord struct {
	ID         string
	ProjectID  string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Summary    string
	PlanJSON   string
	ReportJSON string
	Error      string
}

// CreateRun inserts a run in the running state.
func (s *Store) CreateRun(ctx context.Context, runID, projectID string, startedAt time.Time) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO runs(id, project_id, status, started_at) VALUES(?, ?, ?, ?)`,
		runID, projectID, RunRunning, startedAt.UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RunResult is the final state of a run.
type RunResult struct {
	Status     string
	FinishedAt time.Time
	Summary    string
	PlanJSON   string
	ReportJSON string
	Error      string
}

// FinishRun records the final state of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, res RunResult) error {
	out, err := s.db.ExecContext(ctx, `UPDATE runs SET status=?, finished_at=?, summary=?, plan_json=?, report_json=?, error=? WHERE id=?`,
		res.Status, res.FinishedAt.UTC().Format(timeLayout), res.Summary,
		nullableString(res.PlanJSON), nullableString(res.ReportJSON), nullableString(res.Error), runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := out.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	return nil
}

const runColumns = `id, project_id, status, started_at, finished_at, summary, plan_json, report_json, error`

// GetRun returns one run.
func (s *Store) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=?`, runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("read run: %w", err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs, newest first. An empty projectID
// lists runs of every project; limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, projectID string, limit int) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if projectID != "" {
		query += ` WHERE project_id=?`
		args = append(args, projectID)
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var out []RunRecord
	err := queryEach(ctx, s.db, query, args, func(r *sql.Rows) error {
		rec, err := scanRun(r)
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var rec RunRecord
	var started string
	var finished, plan, report, runErr sql.NullString
	if err := row.Scan(&rec.ID, &rec.ProjectID, &rec.Status, &started, &finished, &rec.Summary, &plan, &report, &runErr); err != nil {
		return RunRecord{}, err
	}
	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return RunRecord{}, fmt.Errorf("parse started_at: %w", err)
	}
	rec.StartedAt = t
	if finished.Valid {
		ft, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return RunRecord{}, fmt.Errorf("parse finished_at: %w", err)
		}
		rec.FinishedAt = &ft
	}
	rec.PlanJSON = plan.String
	rec.ReportJSON = report.String
	rec.Error = runErr.String
	return rec, nil
}

func queryEach(ctx context.Context, db *sql.DB, query string, args []any, fn func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
