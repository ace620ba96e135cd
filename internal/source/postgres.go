package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metalagman/refiner/internal/backlog"
	"github.com/rs/zerolog/log"
)

// Postgres reads rows from a Postgres database that uses the same table
// layout as the local SQLite store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a connection pool for dsn. Connections are opened lazily.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres source requires a dsn")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	log.Debug().Str("host", cfg.ConnConfig.Host).Str("database", cfg.ConnConfig.Database).Msg("postgres source ready")
	return &Postgres{pool: pool}, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Load(ctx context.Context, projectID string) (backlog.Rows, error) {
	var out backlog.Rows
	err := p.pool.QueryRow(ctx, `SELECT id, name, description, goals FROM projects WHERE id=$1`, projectID).
		Scan(&out.Project.ID, &out.Project.Name, &out.Project.Description, &out.Project.Goals)
	if errors.Is(err, pgx.ErrNoRows) {
		return backlog.Rows{}, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	if err != nil {
		return backlog.Rows{}, fmt.Errorf("read project: %w", err)
	}

	out.Challenges, err = collect(ctx, p.pool, `SELECT id, COALESCE(parent_id, ''), title, description, status, impact
		FROM challenges WHERE project_id=$1 ORDER BY position`, projectID,
		func(row pgx.CollectableRow) (backlog.ChallengeRow, error) {
			var c backlog.ChallengeRow
			err := row.Scan(&c.ID, &c.ParentID, &c.Title, &c.Description, &c.Status, &c.Impact)
			return c, err
		})
	if err != nil {
		return backlog.Rows{}, fmt.Errorf("read challenges: %w", err)
	}

	links, err := collect(ctx, p.pool, `SELECT insight_id, challenge_id FROM insight_challenges WHERE project_id=$1 ORDER BY position`, projectID,
		func(row pgx.CollectableRow) ([2]string, error) {
			var l [2]string
			err := row.Scan(&l[0], &l[1])
			return l, err
		})
	if err != nil {
		return backlog.Rows{}, fmt.Errorf("read insight links: %w", err)
	}
	byInsight := make(map[string][]string, len(links))
	for _, l := range links {
		byInsight[l[0]] = append(byInsight[l[0]], l[1])
	}

	out.Insights, err = collect(ctx, p.pool, `SELECT id, title, description, category, completed, conversation_id
		FROM insights WHERE project_id=$1 ORDER BY position`, projectID,
		func(row pgx.CollectableRow) (backlog.InsightRow, error) {
			var in backlog.InsightRow
			if err := row.Scan(&in.ID, &in.Title, &in.Description, &in.Category, &in.Completed, &in.ConversationID); err != nil {
				return in, err
			}
			in.ChallengeIDs = byInsight[in.ID]
			return in, nil
		})
	if err != nil {
		return backlog.Rows{}, fmt.Errorf("read insights: %w", err)
	}

	out.Owners, err = collect(ctx, p.pool, `SELECT id, name, email FROM owners WHERE project_id=$1 ORDER BY position`, projectID,
		func(row pgx.CollectableRow) (backlog.Owner, error) {
			var o backlog.Owner
			err := row.Scan(&o.ID, &o.Name, &o.Email)
			return o, err
		})
	if err != nil {
		return backlog.Rows{}, fmt.Errorf("read owners: %w", err)
	}

	out.Ownerships, err = collect(ctx, p.pool, `SELECT challenge_id, owner_id FROM challenge_owners WHERE project_id=$1 ORDER BY challenge_id, owner_id`, projectID,
		func(row pgx.CollectableRow) (backlog.Ownership, error) {
			var o backlog.Ownership
			err := row.Scan(&o.ChallengeID, &o.OwnerID)
			return o, err
		})
	if err != nil {
		return backlog.Rows{}, fmt.Errorf("read ownerships: %w", err)
	}
	return out, nil
}

func collect[T any](ctx context.Context, pool *pgxpool.Pool, query, projectID string, fn pgx.RowToFunc[T]) ([]T, error) {
	rows, err := pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, fn)
}
