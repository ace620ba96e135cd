package db

import (
	"context"
	"fmt"
	"time"
)

// RetentionPolicy controls run history cleanup.
type RetentionPolicy struct {
	KeepLast int
	KeepDays int
}

// PruneResult summarizes a prune operation.
type PruneResult struct {
	Considered int
	Kept       int
	Deleted    int
}

// PruneRuns deletes runs outside the policy. A run is kept when it is still
// running, is among the KeepLast newest, or started less than KeepDays ago.
// An empty policy keeps everything.
func (s *Store) PruneRuns(ctx context.Context, policy RetentionPolicy, now time.Time, dryRun bool) (PruneResult, error) {
	if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
		return PruneResult{}, nil
	}
	cutoff := time.Time{}
	if policy.KeepDays > 0 {
		cutoff = now.UTC().Add(-time.Duration(policy.KeepDays) * 24 * time.Hour)
	}

	runs, err := s.ListRuns(ctx, "", 0)
	if err != nil {
		return PruneResult{}, err
	}

	res := PruneResult{Considered: len(runs)}
	for idx, run := range runs {
		keep := run.Status == RunRunning
		if !keep && policy.KeepLast > 0 && idx < policy.KeepLast {
			keep = true
		}
		if !keep && policy.KeepDays > 0 && run.StartedAt.After(cutoff) {
			keep = true
		}
		if keep {
			res.Kept++
			continue
		}
		if !dryRun {
			if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id=?`, run.ID); err != nil {
				return res, fmt.Errorf("delete run %s: %w", run.ID, err)
			}
		}
		res.Deleted++
	}
	return res, nil
}
