package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/coin-collector/internal/api"
	"github.com/annel0/coin-collector/internal/auth"
	"github.com/annel0/coin-collector/internal/cache"
	"github.com/annel0/coin-collector/internal/config"
	"github.com/annel0/coin-collector/internal/eventbus"
	"github.com/annel0/coin-collector/internal/logging"
	"github.com/annel0/coin-collector/internal/metrics"
	"github.com/annel0/coin-collector/internal/network"
	"github.com/annel0/coin-collector/internal/observability"
	"github.com/annel0/coin-collector/internal/replay"
	"github.com/annel0/coin-collector/internal/server"
	"github.com/annel0/coin-collector/internal/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию ENV GAME_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Некорректная конфигурация: %v", err)
	}

	logging.Configure(logging.Options{
		Dir:          cfg.Log.Dir,
		ConsoleLevel: logging.ParseLevel(cfg.Log.Level),
		FileLevel:    logging.ParseLevel(cfg.Log.FileLevel),
	})
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🎮 Запуск Coin Collector сервера...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error("❌ %v", err)
		os.Exit(1)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func run(ctx context.Context, cfg *config.Config) error {
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry, logging.GetTelemetryLogger())
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.Warn("Ошибка остановки телеметрии: %v", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics(reg)
	metricsHTTP := metrics.StartHTTP(fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()), reg)

	// === ХРАНИЛИЩЕ ОЧКОВ ===
	scores, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open score storage: %w", err)
	}
	leaderboard, err := cache.NewScoreCache(scores, time.Duration(cfg.API.LeaderboardCacheMs)*time.Millisecond)
	if err != nil {
		scores.Close()
		return err
	}
	defer leaderboard.Close()
	logging.Info("💾 Хранилище очков: %s", cfg.Storage.Backend)

	scoreRecorder := storage.NewRecorder(scores, 256, logging.GetStorageLogger())
	scoreRecorder.Start()

	// === ШИНА СОБЫТИЙ ===
	bus := eventbus.NewMemoryBus(cfg.EventBus.Capacity)
	busLogger := logging.GetEventBusLogger()
	if _, err := eventbus.StartLoggingListener(bus, busLogger); err != nil {
		return fmt.Errorf("start event logger: %w", err)
	}

	var remote *eventbus.JetStreamBus
	if cfg.EventBus.Backend == "nats" {
		remote, err = eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream,
			time.Duration(cfg.EventBus.Retention)*time.Hour)
		if err != nil {
			return fmt.Errorf("connect event bus: %w", err)
		}
		if _, err := eventbus.StartForwarder(ctx, bus, remote, eventbus.Filter{}, busLogger); err != nil {
			return fmt.Errorf("start event forwarder: %w", err)
		}
		logging.Info("📡 События пересылаются в NATS JetStream %s (stream=%s)", cfg.EventBus.URL, cfg.EventBus.Stream)
	}

	busExporter := eventbus.NewMetricsExporter(bus, reg, 5*time.Second)
	busExporter.Start()

	hooks := []server.Hook{
		eventbus.NewGamePublisher(bus, "server", busLogger),
		scoreRecorder,
	}

	// === ЗАПИСЬ ПОВТОРОВ ===
	var (
		replayStore    *replay.Store
		replayRecorder *replay.Recorder
	)
	if cfg.Replay.Enabled {
		replayStore, err = replay.Open(cfg.Replay.Path)
		if err != nil {
			return fmt.Errorf("open replay store: %w", err)
		}
		replayRecorder = replay.NewRecorder(replayStore, uuid.NewString(), cfg.Replay.EveryNthBroadcast,
			logging.GetReplayLogger())
		replayRecorder.Start()
		hooks = append(hooks, replayRecorder)
		logging.Info("📼 Запись повторов в %s, сессия %s", cfg.Replay.Path, replayRecorder.Session())
	}

	// === ИГРОВОЙ СЕРВЕР ===
	channelType, err := network.ParseChannelType(cfg.Server.Transport)
	if err != nil {
		return err
	}
	channelConfig := network.DefaultChannelConfig(channelType)
	if cfg.Network.SendBufferSize > 0 {
		channelConfig.BufferSize = cfg.Network.SendBufferSize
	}

	listener, err := network.Listen(cfg.Server.ListenAddr(), channelConfig, logging.GetNetworkLogger())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.ListenAddr(), err)
	}
	defer listener.Close()
	logging.Info("📡 Игровой сокет %s: %s", channelType, listener.Addr())

	gs := server.NewGameServer(listener, server.Options{
		TickRate:       cfg.Game.TickRate,
		BroadcastEvery: cfg.Game.BroadcastEvery,
		MaxPlayers:     cfg.Server.MaxPlayers,
		MaxCoins:       cfg.Game.MaxCoins,
		InboundDelay:   time.Duration(cfg.Network.ServerInboundLatencyMs) * time.Millisecond,
		OutboundDelay:  time.Duration(cfg.Network.ServerOutboundLatencyMs) * time.Millisecond,
		Logger:         logging.GetServerLogger(),
		Metrics:        serverMetrics,
		Hooks:          hooks,
	})

	// === REST API ===
	var restServer *api.RestServer
	if cfg.API.Enabled {
		issuer, err := auth.NewIssuer(cfg.API.JWTSecret, 24*time.Hour)
		if err != nil {
			return fmt.Errorf("init jwt: %w", err)
		}
		admin := auth.NewAdminAccount(cfg.API.AdminUser, cfg.API.AdminPasswordHash)
		if !admin.Enabled() {
			logging.Warn("⚠️ admin_password_hash не задан: административные маршруты недоступны")
		}

		apiCfg := api.Config{
			Addr:       fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
			Game:       gs,
			Scores:     leaderboard,
			Issuer:     issuer,
			Admin:      admin,
			Logger:     logging.GetAPILogger(),
			Registerer: reg,
			Gatherer:   reg,
		}
		if replayStore != nil {
			apiCfg.Replays = replayStore
		}
		restServer = api.NewRestServer(apiCfg)
		restServer.Start()
	}

	logging.Info("🚀 Сервер запущен. Нажмите Ctrl+C для остановки")

	errCh := make(chan error, 1)
	go func() {
		errCh <- gs.Run(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logging.Info("🛑 Получен сигнал завершения, останавливаем сервер...")
		runErr = <-errCh
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if restServer != nil {
		if err := restServer.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Ошибка остановки REST API: %v", err)
		}
	}

	// Симуляция уже остановлена: новых событий не будет
	scoreRecorder.Close()
	if replayRecorder != nil {
		replayRecorder.Close()
		if err := replayStore.Close(); err != nil {
			logging.Warn("Ошибка закрытия хранилища повторов: %v", err)
		}
	}

	busExporter.Stop()
	if err := bus.Close(); err != nil {
		logging.Warn("Ошибка закрытия шины событий: %v", err)
	}
	if remote != nil {
		if err := remote.Close(); err != nil {
			logging.Warn("Ошибка закрытия NATS: %v", err)
		}
	}

	if err := metricsHTTP.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Ошибка остановки /metrics: %v", err)
	}

	return runErr
}
