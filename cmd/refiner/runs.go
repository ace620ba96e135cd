package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/metalagman/refiner/internal/db"
	"github.com/metalagman/refiner/internal/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func runsCmd() *cobra.Command {
	var (
		projectID string
		limit     int
		format    string
	)
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List review runs or show one run's report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			_, store, closeFn, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if len(args) == 1 {
				rec, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return showRun(cmd.OutOrStdout(), rec, format, isTerminal(cmd.OutOrStdout()))
			}
			recs, err := store.ListRuns(cmd.Context(), projectID, limit)
			if err != nil {
				return err
			}
			return listRuns(cmd.OutOrStdout(), recs)
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "only list runs of this project")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().StringVarP(&format, "format", "f", formatMarkdown, "report format: json or markdown")
	cmd.AddCommand(pruneRunsCmd())
	return cmd
}

func pruneRunsCmd() *cobra.Command {
	var (
		keepLast int
		keepDays int
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old review runs outside the retention policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, store, closeFn, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			policy := db.RetentionPolicy{KeepLast: cfg.Retention.KeepLast, KeepDays: cfg.Retention.KeepDays}
			if cmd.Flags().Changed("keep-last") {
				policy.KeepLast = keepLast
			}
			if cmd.Flags().Changed("keep-days") {
				policy.KeepDays = keepDays
			}
			return pruneRuns(cmd.Context(), cmd.OutOrStdout(), store, policy, time.Now(), dryRun)
		},
	}
	cmd.Flags().IntVar(&keepLast, "keep-last", 0, "keep the newest N runs (overrides retention.keep_last)")
	cmd.Flags().IntVar(&keepDays, "keep-days", 0, "keep runs newer than N days (overrides retention.keep_days)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be deleted without deleting")
	return cmd
}

func pruneRuns(ctx context.Context, w io.Writer, store *db.Store, policy db.RetentionPolicy, now time.Time, dryRun bool) error {
	if policy.KeepLast < 0 || policy.KeepDays < 0 {
		return errors.New("retention values must be >= 0")
	}
	res, err := store.PruneRuns(ctx, policy, now, dryRun)
	if err != nil {
		return err
	}
	log.Info().
		Int("considered", res.Considered).
		Int("kept", res.Kept).
		Int("deleted", res.Deleted).
		Bool("dry_run", dryRun).
		Msg("pruned runs")

	verb := "deleted"
	if dryRun {
		verb = "would delete"
	}
	_, err = fmt.Fprintf(w, "%s %d of %d runs (%d kept)\n", verb, res.Deleted, res.Considered, res.Kept)
	return err
}

func listRuns(w io.Writer, recs []db.RunRecord) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, StyleMuted.Render("no runs recorded"))
		return err
	}
	for _, rec := range recs {
		detail := rec.Summary
		if rec.Error != "" {
			detail = rec.Error
		}
		if _, err := fmt.Fprintf(w, "%-36s  %-12s  %-10s  %s  %s\n",
			rec.ID, rec.ProjectID, statusStyle(rec.Status).Render(rec.Status),
			rec.StartedAt.Local().Format(time.DateTime), detail); err != nil {
			return err
		}
	}
	return nil
}

func showRun(w io.Writer, rec db.RunRecord, format string, styled bool) error {
	if rec.ReportJSON == "" {
		msg := fmt.Sprintf("run %s is %s", rec.ID, statusStyle(rec.Status).Render(rec.Status))
		if rec.Error != "" {
			msg += ": " + rec.Error
		}
		_, err := fmt.Fprintln(w, msg)
		return err
	}
	var rep report.Report
	if err := json.Unmarshal([]byte(rec.ReportJSON), &rep); err != nil {
		return fmt.Errorf("decode stored report: %w", err)
	}
	return writeReport(w, rep, format, styled)
}
