package main

import (
	"context"
	"fmt"

	"github.com/metalagman/refiner/internal/backlog"
	"github.com/metalagman/refiner/internal/db"
	"github.com/metalagman/refiner/internal/source"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <backlog.yaml>",
		Short: "Import a YAML backlog into the local database",
		Long:  "Import a YAML backlog document into the local SQLite database, replacing any rows stored for the same project.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, closeFn, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			rows, err := importFile(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s project %s: %d challenges, %d insights, %d owners\n",
				StyleSuccess.Render("imported"), StyleBold.Render(rows.Project.ID),
				len(rows.Challenges), len(rows.Insights), len(rows.Owners))
			return nil
		},
	}
}

func importFile(ctx context.Context, store *db.Store, path string) (backlog.Rows, error) {
	rows, err := source.ReadYAML(path)
	if err != nil {
		return backlog.Rows{}, err
	}
	for _, w := range backlog.NewSnapshot(rows).Warnings() {
		log.Warn().Str("challenge_id", w.ChallengeID).Msg(w.Message)
	}
	if err := store.ImportRows(ctx, rows); err != nil {
		return backlog.Rows{}, err
	}
	return rows, nil
}
