package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/metalagman/refiner/internal/config"
	"github.com/metalagman/refiner/internal/db"
	"github.com/metalagman/refiner/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func sampleReport() report.Report {
	return report.Report{
		RunID:     "r1",
		ProjectID: "p1",
		Summary:   "Tighten payments",
		Updates:   []report.UpdateSuggestion{{ChallengeID: "c1", CurrentTitle: "Payments fail"}},
	}
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, sampleReport(), formatJSON, false))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "r1", decoded["runId"])

	buf.Reset()
	require.NoError(t, writeReport(&buf, sampleReport(), formatMarkdown, false))
	assert.Equal(t, report.Markdown(sampleReport()), buf.String())
}

func TestCheckFormat(t *testing.T) {
	t.Parallel()

	assert.NoError(t, checkFormat(formatJSON))
	assert.NoError(t, checkFormat(formatMarkdown))
	assert.ErrorContains(t, checkFormat("html"), `unsupported format "html"`)
}

func TestPrintSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printSummary(&buf, sampleReport())
	assert.Contains(t, buf.String(), "1 updates, 0 new challenges, 0 no-change")
	assert.NotContains(t, buf.String(), "failed directives")
}

func TestImportFileAndRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	handle, err := db.Open(ctx, db.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })
	store := db.NewStore(handle)

	path := filepath.Join(t.TempDir(), "backlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`project:
  id: p1
  name: Checkout
challenges:
  - id: c1
    title: Payments fail
  - id: c2
    parent_id: c1
    title: Card declines
insights:
  - id: i1
    title: Complaint
    challenge_ids: [c1]
`), 0o644))

	rows, err := importFile(ctx, store, path)
	require.NoError(t, err)
	assert.Len(t, rows.Challenges, 2)

	loaded, err := store.LoadRows(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Checkout", loaded.Project.Name)

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.CreateRun(ctx, "r1", "p1", started))
	raw, err := json.Marshal(sampleReport())
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(ctx, "r1", db.RunResult{Status: db.RunSucceeded, FinishedAt: started, Summary: "Tighten payments", ReportJSON: string(raw)}))
	require.NoError(t, store.CreateRun(ctx, "r2", "p1", started.Add(time.Minute)))

	recs, err := store.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	var list bytes.Buffer
	require.NoError(t, listRuns(&list, recs))
	assert.Contains(t, list.String(), "r1")
	assert.Contains(t, list.String(), "Tighten payments")

	rec, err := store.GetRun(ctx, "r1")
	require.NoError(t, err)
	var shown bytes.Buffer
	require.NoError(t, showRun(&shown, rec, formatMarkdown, false))
	assert.Equal(t, report.Markdown(sampleReport()), shown.String())

	rec, err = store.GetRun(ctx, "r2")
	require.NoError(t, err)
	shown.Reset()
	require.NoError(t, showRun(&shown, rec, formatJSON, false))
	assert.Contains(t, shown.String(), "run r2 is")

	var pruned bytes.Buffer
	policy := db.RetentionPolicy{KeepLast: 1}
	require.NoError(t, pruneRuns(ctx, &pruned, store, policy, started.Add(time.Hour), true))
	assert.Equal(t, "would delete 1 of 2 runs (1 kept)\n", pruned.String())

	pruned.Reset()
	require.NoError(t, pruneRuns(ctx, &pruned, store, policy, started.Add(time.Hour), false))
	assert.Equal(t, "deleted 1 of 2 runs (1 kept)\n", pruned.String())
	_, err = store.GetRun(ctx, "r1")
	require.ErrorIs(t, err, db.ErrNotFound)

	require.Error(t, pruneRuns(ctx, &pruned, store, db.RetentionPolicy{KeepLast: -1}, started, false))
}

func TestImportFile_Invalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("project:\n  name: nameless\n"), 0o644))
	_, err := importFile(context.Background(), nil, path)
	require.ErrorContains(t, err, "project.id is required")
}

func TestServerModule_Graph(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.DBPath = db.MemoryPath
	require.NoError(t, fx.ValidateApp(serverModule(cfg)))
}
