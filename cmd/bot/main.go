// Бот - безголовый клиент, который подключается к серверу и собирает монеты.
// Несколько ботов в одном процессе удобны для нагрузочной проверки сервера.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/coin-collector/internal/client"
	"github.com/annel0/coin-collector/internal/config"
	"github.com/annel0/coin-collector/internal/logging"
	"github.com/annel0/coin-collector/internal/metrics"
	"github.com/annel0/coin-collector/internal/network"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		configPath  = flag.String("config", "", "путь к YAML конфигурации (по умолчанию ENV GAME_CONFIG)")
		addr        = flag.String("addr", "", "адрес сервера; пусто - из конфигурации")
		bots        = flag.Int("bots", 1, "число ботов")
		duration    = flag.Duration("duration", 0, "время работы; 0 - до Ctrl+C")
		metricsAddr = flag.String("metrics", "", "адрес /metrics, например :2113; пусто - без метрик")
		seed        = flag.Int64("seed", 0, "зерно генератора ввода; 0 - от текущего времени")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	logging.Configure(logging.Options{
		Dir:          cfg.Log.Dir,
		ConsoleLevel: logging.ParseLevel(cfg.Log.Level),
		FileLevel:    logging.ParseLevel(cfg.Log.FileLevel),
	})
	if err := logging.InitDefaultLogger("bot"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	if *addr == "" {
		*addr = fmt.Sprintf("127.0.0.1:%d", cfg.Server.GetTCPPort())
		if cfg.Server.Transport == "kcp" {
			*addr = fmt.Sprintf("127.0.0.1:%d", cfg.Server.GetKCPPort())
		}
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	var clientMetrics *metrics.ClientMetrics
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		clientMetrics = metrics.NewClientMetrics(reg)
		srv := metrics.StartHTTP(*metricsAddr, reg)
		defer srv.Shutdown(context.Background())
	}

	channelType, err := network.ParseChannelType(cfg.Server.Transport)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	logging.Info("🎮 Запуск %d ботов, сервер %s (%s)", *bots, *addr, channelType)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < *bots; i++ {
		b := botRunner{
			index:   i,
			addr:    *addr,
			channel: network.DefaultChannelConfig(channelType),
			cfg:     cfg.Network,
			rng:     rand.New(rand.NewSource(*seed + int64(i))),
			metrics: clientMetrics,
			logger:  logging.GetComponentLogger(fmt.Sprintf("bot-%d", i)),
		}
		g.Go(func() error { return b.run(gctx) })
	}

	if err := g.Wait(); err != nil {
		logging.Error("❌ Бот остановлен с ошибкой: %v", err)
		return
	}
	logging.Info("👋 Боты остановлены")
}

type botRunner struct {
	index   int
	addr    string
	channel *network.ChannelConfig
	cfg     config.NetworkConfig
	rng     *rand.Rand
	metrics *metrics.ClientMetrics
	logger  *logging.Logger
}

func (b botRunner) run(ctx context.Context) error {
	transport, err := network.Dial(ctx, b.addr, b.channel, b.logger)
	if err != nil {
		return err
	}

	input := client.NewCoinSeeker(client.NewRandomWalk(b.rng, 10, 60))
	gc := client.NewGameClient(transport, input, client.Options{
		OutboundDelay:      time.Duration(b.cfg.ClientOutboundLatencyMs) * time.Millisecond,
		InboundDelay:       time.Duration(b.cfg.ClientInboundLatencyMs) * time.Millisecond,
		InterpolationDelay: time.Duration(b.cfg.InterpolationDelayMs) * time.Millisecond,
		Logger:             b.logger,
		Metrics:            b.metrics,
	})
	defer gc.Close()

	if err := gc.Connect(ctx); err != nil {
		return fmt.Errorf("bot %d: %w", b.index, err)
	}
	b.logger.Info("🚀 Бот %d подключён как игрок %d", b.index, gc.PlayerID())

	go b.report(ctx, gc)

	if err := gc.Run(ctx); err != nil {
		return fmt.Errorf("bot %d: %w", b.index, err)
	}
	v := gc.View()
	b.logger.Info("🛑 Бот %d завершён: счёт %d, тик %d", b.index, v.Local.Score, v.Tick)
	return nil
}

func (b botRunner) report(ctx context.Context, gc *client.GameClient) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v := gc.View()
			b.logger.Info("Игрок %d: pos=(%.1f, %.1f) score=%d remote=%d coins=%d rtt=%v pending=%d",
				v.PlayerID, v.Local.Position.X, v.Local.Position.Y, v.Local.Score,
				len(v.Remote), len(v.Coins), v.RTT, v.Pending)
		}
	}
}
