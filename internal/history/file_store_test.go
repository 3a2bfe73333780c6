package history_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/approtate/internal/history"
	"github.com/systmms/approtate/pkg/directory"
	"github.com/systmms/approtate/pkg/rotation"
	"github.com/systmms/approtate/tests/testutil"
)

var base = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func run(app string, n int, outcome rotation.Outcome) *rotation.Result {
	finished := base.Add(time.Duration(n) * time.Hour)
	return &rotation.Result{
		RunID:       fmt.Sprintf("run-%d", n),
		AppObjectID: app,
		SecretName:  "ClientSecretName",
		StartedAt:   finished.Add(-time.Second),
		FinishedAt:  finished,
		Outcome:     outcome,
		Created:     &directory.Credential{KeyID: fmt.Sprintf("key-%d", n)},
	}
}

func TestFileStore_SaveAndList(t *testing.T) {
	t.Parallel()

	store := history.NewFileStore(t.TempDir())
	require.NoError(t, store.SaveRun(run("app-a", 1, rotation.OutcomeSucceeded)))
	require.NoError(t, store.SaveRun(run("app-a", 3, rotation.OutcomeInconsistent)))
	require.NoError(t, store.SaveRun(run("app-a", 2, rotation.OutcomeFailed)))

	runs, err := store.List("app-a", 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-3", runs[0].RunID)
	assert.Equal(t, "run-2", runs[1].RunID)
	assert.Equal(t, "run-1", runs[2].RunID)
	assert.Equal(t, rotation.OutcomeInconsistent, runs[0].Outcome)
	assert.Equal(t, "key-3", runs[0].Created.KeyID)
	assert.True(t, runs[0].FinishedAt.Equal(base.Add(3*time.Hour)))

	limited, err := store.List("app-a", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestFileStore_ListAllApplications(t *testing.T) {
	t.Parallel()

	store := history.NewFileStore(t.TempDir())
	require.NoError(t, store.SaveRun(run("app-a", 1, rotation.OutcomeSucceeded)))
	require.NoError(t, store.SaveRun(run("app-b", 2, rotation.OutcomeSucceeded)))

	runs, err := store.List("", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "app-b", runs[0].AppObjectID)
	assert.Equal(t, "app-a", runs[1].AppObjectID)
}

func TestFileStore_ListEmpty(t *testing.T) {
	t.Parallel()

	store := history.NewFileStore(filepath.Join(t.TempDir(), "missing"))

	runs, err := store.List("", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	runs, err = store.List("app-a", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestFileStore_Keep(t *testing.T) {
	t.Parallel()

	store := history.NewFileStore(t.TempDir(), history.WithKeep(2))
	for i := 1; i <= 4; i++ {
		require.NoError(t, store.SaveRun(run("app-a", i, rotation.OutcomeSucceeded)))
	}
	require.NoError(t, store.SaveRun(run("app-b", 1, rotation.OutcomeSucceeded)))

	runs, err := store.List("app-a", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-4", runs[0].RunID)
	assert.Equal(t, "run-3", runs[1].RunID)

	other, err := store.List("app-b", 0)
	require.NoError(t, err)
	assert.Len(t, other, 1, "keep applies per application")
}

func TestFileStore_SkipsInvalidFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger := testutil.NewTestLoggerWithDebug(t, true)
	store := history.NewFileStore(dir, history.WithLogger(logger.Logger))
	require.NoError(t, store.SaveRun(run("app-a", 1, rotation.OutcomeSucceeded)))

	bad := filepath.Join(dir, "runs", "app-a", "99999999-999999.000000000-bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))

	runs, err := store.List("app-a", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	logger.AssertContains(t, "Skipping invalid history file")
}

func TestFileStore_SanitizesNames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := history.NewFileStore(dir)

	r := run("../escape", 1, rotation.OutcomeSucceeded)
	r.RunID = "a/b"
	require.NoError(t, store.SaveRun(r))

	entries, err := os.ReadDir(filepath.Join(dir, "runs"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "--escape", entries[0].Name())

	runs, err := store.List("../escape", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "a/b", runs[0].RunID)
}

func TestFileStore_FilesArePrivate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := history.NewFileStore(dir)
	require.NoError(t, store.SaveRun(run("app-a", 1, rotation.OutcomeSucceeded)))

	files, err := filepath.Glob(filepath.Join(dir, "runs", "app-a", "*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	info, err := os.Stat(files[0])
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestDefaultDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Run("data dir override", func(t *testing.T) {
		testutil.SetupTestEnv(t, map[string]string{
			"APPROTATE_DATA_DIR": "/srv/approtate",
			"XDG_DATA_HOME":      "/xdg",
		})
		assert.Equal(t, "/srv/approtate", history.DefaultDir())
	})

	t.Run("xdg data home", func(t *testing.T) {
		testutil.SetupTestEnv(t, map[string]string{
			"APPROTATE_DATA_DIR": "",
			"XDG_DATA_HOME":      "/xdg",
		})
		assert.Equal(t, filepath.Join("/xdg", "approtate"), history.DefaultDir())
	})

	t.Run("home fallback", func(t *testing.T) {
		testutil.SetupTestEnv(t, map[string]string{
			"APPROTATE_DATA_DIR": "",
			"XDG_DATA_HOME":      "",
		})
		assert.Equal(t, filepath.Join(home, ".local", "share", "approtate"), history.DefaultDir())
	})
}
