package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	// 显式指定的文件不存在时返回错误
	require.Error(t, err)
	assert.Nil(t, cfg)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 200*time.Millisecond, cfg.Database.SlowThreshold)
	assert.Equal(t, "WAL", cfg.Database.SQLitePragmas["journal_mode"])
	assert.Equal(t, 30*time.Second, cfg.Database.MigrationLockWait)
	assert.Equal(t, "doubles", cfg.Match.PlayType)
	assert.Equal(t, 11, cfg.Match.PointsPerGame)
	assert.True(t, cfg.Match.SideOutScoring)
	assert.Equal(t, 15*time.Minute, cfg.Match.IdlePauseAfter)
	assert.Equal(t, 24*time.Hour, cfg.Redis.StateTTL)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
match:
  points_per_game: 15
  best_of: 5
log:
  level: debug
  modules:
    game: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("RALLY_SCORER_SECURITY_JWT_SECRET", "from-env")
	t.Setenv("RALLY_SCORER_MATCH_WIN_BY", "1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 15, cfg.Match.PointsPerGame)
	assert.Equal(t, 5, cfg.Match.BestOf)
	assert.Equal(t, 1, cfg.Match.WinBy)
	assert.Equal(t, "from-env", cfg.Security.JWT.Secret)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "warn", cfg.Log.Modules["game"])
}
