package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	t.Run("creates directory and database", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "subdir", "test.db")

		ctx := context.Background()
		store, err := NewStore(ctx, dbPath)
		require.NoError(t, err)
		defer store.Close()

		_, err = os.Stat(dbPath)
		assert.NoError(t, err)

		var result int
		err = store.QueryRowContext(ctx, "SELECT 1").Scan(&result)
		assert.NoError(t, err)
		assert.Equal(t, 1, result)
	})

	t.Run("sets WAL mode", func(t *testing.T) {
		ctx := context.Background()
		store, err := NewStore(ctx, filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		defer store.Close()

		var mode string
		err = store.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode)
		assert.NoError(t, err)
		assert.Equal(t, "wal", mode)
	})

	t.Run("enables foreign keys", func(t *testing.T) {
		ctx := context.Background()
		store, err := NewStore(ctx, filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		defer store.Close()

		var fk int
		err = store.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk)
		assert.NoError(t, err)
		assert.Equal(t, 1, fk)
	})
}

func TestStore_Migrate(t *testing.T) {
	t.Run("applies migrations", func(t *testing.T) {
		ctx := context.Background()
		store, err := NewStore(ctx, filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		defer store.Close()

		ran, err := store.Migrate(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"001_initial.sql"}, ran)

		for _, table := range []string{"runs", "chapters"} {
			var name string
			err = store.QueryRowContext(ctx,
				"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
			assert.NoError(t, err)
			assert.Equal(t, table, name)
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		ctx := context.Background()
		store, err := NewStore(ctx, filepath.Join(t.TempDir(), "test.db"))
		require.NoError(t, err)
		defer store.Close()

		_, err = store.Migrate(ctx)
		require.NoError(t, err)

		ran, err := store.Migrate(ctx)
		require.NoError(t, err)
		assert.Empty(t, ran)

		applied, err := store.AppliedMigrations(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"001_initial.sql"}, applied)

		count, err := store.CountRuns(ctx)
		assert.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}

func TestExtractUpMigration(t *testing.T) {
	t.Run("extracts up portion", func(t *testing.T) {
		content := `-- +migrate Up
CREATE TABLE test (id INTEGER);

-- +migrate Down
DROP TABLE test;
`
		result := extractUpMigration(content)
		assert.Equal(t, "CREATE TABLE test (id INTEGER);", result)
	})

	t.Run("handles no down marker", func(t *testing.T) {
		content := "CREATE TABLE test (id INTEGER);"
		result := extractUpMigration(content)
		assert.Equal(t, "CREATE TABLE test (id INTEGER);", result)
	})
}

func TestQueries_Runs(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	run, err := store.CreateRun(ctx, CreateRunParams{
		ID:            "run-1",
		SourcePath:    "book.epub",
		OutputPath:    "book_illustrated.epub",
		Style:         "watercolor",
		Reuse:         true,
		FailurePolicy: "skip",
		StartedAt:     start,
	})
	require.NoError(t, err)
	assert.Equal(t, RunRunning, run.Status)
	assert.True(t, run.Reuse)
	assert.False(t, run.FinishedAt.Valid)
	assert.True(t, start.Equal(run.StartedAt))

	_, err = store.CreateRun(ctx, CreateRunParams{ID: "run-2", SourcePath: "b", OutputPath: "c", Style: "ink", FailurePolicy: "abort", StartedAt: start.Add(time.Hour)})
	require.NoError(t, err)

	err = store.FinishRun(ctx, FinishRunParams{
		ID:          "run-1",
		Status:      RunCompleted,
		Chapters:    5,
		Illustrated: 3,
		Failed:      1,
		FinishedAt:  start.Add(time.Minute),
	})
	require.NoError(t, err)

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, got.Status)
	assert.Equal(t, int64(3), got.Illustrated)
	assert.True(t, got.FinishedAt.Valid)

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID, "newest first")

	runs, err = store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	err = store.FinishRun(ctx, FinishRunParams{ID: "missing", Status: RunFailed, FinishedAt: start})
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	require.NoError(t, store.AddRunProgress(ctx, AddRunProgressParams{ID: "run-2", Illustrated: 1}))
	require.NoError(t, store.AddRunProgress(ctx, AddRunProgressParams{ID: "run-2", Illustrated: 1, Failed: 1}))
	got, err = store.GetRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Illustrated)
	assert.Equal(t, int64(1), got.Failed)
	assert.Equal(t, RunRunning, got.Status)

	err = store.AddRunProgress(ctx, AddRunProgressParams{ID: "missing", Failed: 1})
	assert.ErrorIs(t, err, sql.ErrNoRows)

	_, err = store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestQueries_Chapters(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := store.CreateRun(ctx, CreateRunParams{ID: "run-1", SourcePath: "a", OutputPath: "b", Style: "ink", FailurePolicy: "abort", StartedAt: now})
	require.NoError(t, err)

	err = store.InTx(ctx, func(q *Queries) error {
		if _, err := q.CreateChapter(ctx, CreateChapterParams{
			RunID: "run-1", ItemID: "ch1", Href: "Text/ch1.xhtml",
			Sequence: sql.NullInt64{Int64: 0, Valid: true}, Status: "illustrated",
			Prompt: "a prompt", ImagePath: "out/chapter_0_illustration.png", AnchorFound: true, CreatedAt: now,
		}); err != nil {
			return err
		}
		_, err := q.CreateChapter(ctx, CreateChapterParams{
			RunID: "run-1", ItemID: "ch2", Href: "Text/ch2.xhtml", Status: "failed", Error: "rate limited", CreatedAt: now,
		})
		return err
	})
	require.NoError(t, err)

	chapters, err := store.ListChaptersByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, "ch1", chapters[0].ItemID)
	assert.True(t, chapters[0].Sequence.Valid)
	assert.True(t, chapters[0].AnchorFound)
	assert.False(t, chapters[1].Sequence.Valid)
	assert.Equal(t, "rate limited", chapters[1].Error)

	t.Run("foreign key enforced", func(t *testing.T) {
		_, err := store.CreateChapter(ctx, CreateChapterParams{RunID: "nope", ItemID: "x", Href: "x", Status: "failed", CreatedAt: now})
		assert.Error(t, err)
	})

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.InTx(ctx, func(q *Queries) error {
			if _, err := q.CreateChapter(ctx, CreateChapterParams{RunID: "run-1", ItemID: "ch3", Href: "x", Status: "failed", CreatedAt: now}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		chapters, err := store.ListChaptersByRun(ctx, "run-1")
		require.NoError(t, err)
		assert.Len(t, chapters, 2)
	})
}

// NewTestStore provides a test database for use in other packages.
func NewTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	ctx := context.Background()
	store, err := NewStore(ctx, dbPath)
	require.NoError(t, err)

	_, err = store.Migrate(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}
