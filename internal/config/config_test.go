package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("GAME_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Game.TickRate)
	assert.Equal(t, 3, cfg.Game.BroadcastEvery)
	assert.Equal(t, 10, cfg.Game.MaxCoins)
	assert.Equal(t, 200, cfg.Network.ServerOutboundLatencyMs)
	assert.Equal(t, 100, cfg.Network.InterpolationDelayMs)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  transport: kcp
  kcp_port: 9999
game:
  max_coins: 20
storage:
  backend: redis
  redis_url: redis://localhost:6379/0
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "kcp", cfg.Server.Transport)
	assert.Equal(t, 20, cfg.Game.MaxCoins)
	assert.Equal(t, 60, cfg.Game.TickRate, "незаданное поле остаётся по умолчанию")
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "0.0.0.0:9999", cfg.Server.ListenAddr())
}

func TestLoad_FromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("game:\n  tick_rate: 30\n"), 0o644))
	t.Setenv("GAME_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Game.TickRate)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  max_players: 1000\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPortEnvFallback(t *testing.T) {
	s := ServerConfig{}
	t.Setenv("GAME_TCP_PORT", "")
	assert.Equal(t, 8888, s.GetTCPPort())

	t.Setenv("GAME_TCP_PORT", "7000")
	assert.Equal(t, 7000, s.GetTCPPort())

	s.TCPPort = 6000
	assert.Equal(t, 6000, s.GetTCPPort(), "значение из конфига важнее окружения")

	t.Setenv("GAME_METRICS_PORT", "abc")
	assert.Equal(t, 2112, s.GetMetricsPort())
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "server.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "tcp", cfg.Server.Transport)
	assert.Equal(t, 8888, cfg.Server.GetTCPPort())
	assert.Equal(t, 1000, cfg.API.LeaderboardCacheMs)
	assert.False(t, cfg.Replay.Enabled)
}
