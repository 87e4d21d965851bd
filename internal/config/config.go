// Package config загружает конфигурацию сервера и бота из YAML.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/annel0/coin-collector/internal/game"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
// Незаданные поля получают значения из Default().
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Game      GameConfig      `yaml:"game"`
	Network   NetworkConfig   `yaml:"network"`
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Replay    ReplayConfig    `yaml:"replay"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	API       APIConfig       `yaml:"api"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Transport   string `yaml:"transport"` // tcp | kcp
	TCPPort     int    `yaml:"tcp_port"`
	KCPPort     int    `yaml:"kcp_port"`
	RESTPort    int    `yaml:"rest_port"`
	MetricsPort int    `yaml:"metrics_port"`
	MaxPlayers  int    `yaml:"max_players"`
}

// GameConfig - параметры симуляции. Размеры мира и скорости общие с клиентом и не настраиваются.
type GameConfig struct {
	TickRate       int   `yaml:"tick_rate"`
	BroadcastEvery int   `yaml:"broadcast_every"`
	MaxCoins       int   `yaml:"max_coins"`
	Seed           int64 `yaml:"seed"` // 0 - от текущего времени
}

// NetworkConfig задаёт искусственные задержки каналов в миллисекундах
type NetworkConfig struct {
	ServerInboundLatencyMs  int `yaml:"server_inbound_latency_ms"`
	ServerOutboundLatencyMs int `yaml:"server_outbound_latency_ms"`
	ClientOutboundLatencyMs int `yaml:"client_outbound_latency_ms"`
	ClientInboundLatencyMs  int `yaml:"client_inbound_latency_ms"`
	InterpolationDelayMs    int `yaml:"interpolation_delay_ms"`
	SendBufferSize          int `yaml:"send_buffer_size"`
}

type LogConfig struct {
	Level     string `yaml:"level"`
	FileLevel string `yaml:"file_level"`
	Dir       string `yaml:"dir"` // пусто - без записи в файл
}

type StorageConfig struct {
	Backend  string `yaml:"backend"` // memory | redis | mysql | mongo
	RedisURL string `yaml:"redis_url"`
	MySQLDSN string `yaml:"mysql_dsn"`
	MongoURI string `yaml:"mongo_uri"`
	MongoDB  string `yaml:"mongo_db"`
}

type EventBusConfig struct {
	Backend   string `yaml:"backend"` // memory | nats
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Capacity  int    `yaml:"capacity"`
}

type ReplayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	// EveryNthBroadcast - записывать каждый N-й разосланный снимок
	EveryNthBroadcast int `yaml:"every_nth_broadcast"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

type APIConfig struct {
	Enabled bool `yaml:"enabled"`
	// JWTSecret - пусто: секрет генерируется при старте
	JWTSecret string `yaml:"jwt_secret"`
	// AdminPasswordHash - bcrypt-хеш пароля администратора
	AdminPasswordHash string `yaml:"admin_password_hash"`
	AdminUser         string `yaml:"admin_user"`
	// LeaderboardCacheMs - сколько миллисекунд ответ /api/leaderboard берётся из кеша
	LeaderboardCacheMs int `yaml:"leaderboard_cache_ms"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	latency := int(game.SimulatedLatency.Milliseconds())
	return &Config{
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Transport:  "tcp",
			MaxPlayers: game.MaxPlayersPerServer,
		},
		Game: GameConfig{
			TickRate:       game.TickRate,
			BroadcastEvery: game.BroadcastEvery,
			MaxCoins:       game.MaxCoins,
		},
		Network: NetworkConfig{
			ServerInboundLatencyMs:  latency,
			ServerOutboundLatencyMs: latency,
			ClientOutboundLatencyMs: latency,
			ClientInboundLatencyMs:  latency,
			InterpolationDelayMs:    int(game.InterpolationDelay.Milliseconds()),
			SendBufferSize:          1024,
		},
		Log: LogConfig{
			Level:     "info",
			FileLevel: "debug",
		},
		Storage: StorageConfig{
			Backend: "memory",
			MongoDB: "coin_collector",
		},
		EventBus: EventBusConfig{
			Backend:   "memory",
			URL:       "nats://127.0.0.1:4222",
			Stream:    "COINS",
			Retention: 24,
			Capacity:  1024,
		},
		Replay: ReplayConfig{
			Path:              "data/replay",
			EveryNthBroadcast: 1,
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4318",
			ServiceName: "coin-collector",
		},
		API: APIConfig{
			Enabled:            true,
			AdminUser:          "admin",
			LeaderboardCacheMs: 1000,
		},
	}
}

// GetTCPPort возвращает TCP порт с поддержкой fallback значений
func (s *ServerConfig) GetTCPPort() int {
	return getPortWithEnvFallback(s.TCPPort, "GAME_TCP_PORT", game.DefaultServerPort)
}

// GetKCPPort возвращает KCP порт с поддержкой fallback значений
func (s *ServerConfig) GetKCPPort() int {
	return getPortWithEnvFallback(s.KCPPort, "GAME_KCP_PORT", game.DefaultServerPort+1)
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "GAME_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "GAME_METRICS_PORT", 2112)
}

// ListenAddr возвращает адрес игрового сокета для выбранного транспорта
func (s *ServerConfig) ListenAddr() string {
	port := s.GetTCPPort()
	if s.Transport == "kcp" {
		port = s.GetKCPPort()
	}
	return fmt.Sprintf("%s:%d", s.Host, port)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации поверх Default().
// Если path == "", берётся ENV GAME_CONFIG; если и он пуст, возвращается Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("GAME_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, от которых зависит формат протокола и симуляция
func (c *Config) Validate() error {
	switch {
	case c.Game.TickRate <= 0:
		return fmt.Errorf("game.tick_rate must be positive, got %d", c.Game.TickRate)
	case c.Game.BroadcastEvery <= 0:
		return fmt.Errorf("game.broadcast_every must be positive, got %d", c.Game.BroadcastEvery)
	case c.Game.MaxCoins < 0 || c.Game.MaxCoins > 255:
		return fmt.Errorf("game.max_coins must be in [0, 255], got %d", c.Game.MaxCoins)
	case c.Server.MaxPlayers <= 0 || c.Server.MaxPlayers > 255:
		return fmt.Errorf("server.max_players must be in [1, 255], got %d", c.Server.MaxPlayers)
	case c.Server.Transport != "tcp" && c.Server.Transport != "kcp":
		return fmt.Errorf("server.transport must be tcp or kcp, got %q", c.Server.Transport)
	}
	return nil
}
