package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprout/internal/config"
	"sprout/internal/database"
	"sprout/internal/schedule"
	"sprout/internal/sizesync"
)

func writeConfig(t *testing.T) (cfgPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "data", "sprout.db")
	cfgPath = filepath.Join(dir, "sprout.yaml")
	yaml := "media:\n  root: " + filepath.Join(dir, "uploads") + "\n" +
		"database:\n  path: " + dbPath + "\n" +
		"image_size_sync:\n  strategy: manual\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o644))
	return cfgPath, dbPath
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(t.Context())
}

func TestSyncImageSizesWritesOptions(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)

	require.NoError(t, run(t, "--config", cfgPath, "sync-image-sizes"))

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	defer database.Close(db)

	opts := database.NewOptionStore(db)
	hash, ok, err := opts.GetOption(t.Context(), sizesync.HashOption)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, hash)

	w, ok, err := opts.GetOption(t.Context(), "large_size_w")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1024", w)
}

func TestBuildAppSyncOverride(t *testing.T) {
	t.Setenv(schedule.EnvStrategy, "")
	cfgPath, _ := writeConfig(t)
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	cfg.ImageSizeSync.Strategy = "cron"

	a, err := buildApp(t.Context(), cfg, "")
	require.NoError(t, err)
	assert.Equal(t, schedule.Cron, a.svc.SyncStrategy())
	require.NoError(t, a.Close())

	a, err = buildApp(t.Context(), cfg, schedule.Manual)
	require.NoError(t, err)
	assert.Equal(t, schedule.Manual, a.svc.SyncStrategy())
	require.NoError(t, a.Close())
}

func TestMissingRequiredSizeRefusesToStart(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	f, err := os.OpenFile(cfgPath, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("image_sizes:\n  thumbnail:\n    width: 150\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	err = run(t, "--config", cfgPath, "sizes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to start")
}
