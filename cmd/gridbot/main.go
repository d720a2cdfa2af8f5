package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/alejandrodnm/gridbot/config"
	"github.com/alejandrodnm/gridbot/internal/adapters/exchange"
	_ "github.com/alejandrodnm/gridbot/internal/adapters/exchange/binance"
	"github.com/alejandrodnm/gridbot/internal/adapters/notify"
	"github.com/alejandrodnm/gridbot/internal/adapters/storage"
	"github.com/alejandrodnm/gridbot/internal/application/grid"
	"github.com/alejandrodnm/gridbot/internal/application/topup"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	fresh := flag.Bool("fresh", false, "cancel all orders and rebuild the grid from scratch")
	once := flag.Bool("once", false, "initialize, run one health pass and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "render profit stats as a table")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("gridbot starting",
		"name", cfg.Bot.Name,
		"venue", cfg.Bot.Venue,
		"pair", cfg.Bot.Pair,
		"grids", cfg.Bot.Grids,
		"sandbox", cfg.Bot.Sandbox,
		"fresh", *fresh,
	)

	gateway, err := exchange.New(cfg.Bot.Venue, exchange.Options{
		Pair:      cfg.Bot.Pair,
		APIKey:    cfg.Bot.APIKey,
		APISecret: cfg.Bot.APISecret,
		Sandbox:   cfg.Bot.Sandbox,
	})
	if err != nil {
		slog.Error("failed to build gateway", "err", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup

	notifier, dashboard := buildNotifier(cfg, *table)
	if dashboard != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dashboard.Run(ctx)
		}()
	}

	engine := grid.New(grid.Config{
		Pair:           cfg.Bot.Pair,
		Investment:     cfg.Bot.InvestmentAmount(),
		GridCount:      cfg.Bot.Grids,
		GridPercent:    cfg.Bot.GridPercent(),
		HealthInterval: cfg.Bot.HealthInterval(),
	}, gateway, store, notifier)

	if err := engine.Initialize(ctx, *fresh); err != nil {
		slog.Error("grid initialization failed", "err", err)
		os.Exit(1)
	}

	if *once {
		if err := engine.HealthCheck(ctx); err != nil {
			slog.Error("health check failed", "err", err)
			os.Exit(1)
		}
		cancel()
		wg.Wait()
		slog.Info("gridbot single pass complete")
		return
	}

	if cfg.FeeCoin.Enabled {
		if worker := buildTopup(cfg); worker != nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				worker.Run(ctx)
			}()
		}
	}

	if err := engine.Run(ctx); err != nil {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}
	wg.Wait()

	slog.Info("gridbot stopped cleanly")
}

// buildNotifier assembles the console sink, plus the dashboard sink
// when the frontend is enabled. The returned Dashboard needs its Run
// loop started; nil when disabled.
func buildNotifier(cfg *config.Config, table bool) (ports.Notifier, *notify.Dashboard) {
	console := notify.NewConsole(cfg.Bot.Pair, table)
	if !cfg.Frontend.Enabled {
		return console, nil
	}
	dashboard := notify.NewDashboard(cfg.Bot.Name, cfg.Frontend.Host)
	return notify.NewMulti(console, dashboard), dashboard
}

// buildTopup wires the fee-coin worker against its own gateway, scoped
// to the fee-coin pair on the same venue.
func buildTopup(cfg *config.Config) *topup.Worker {
	quote := cfg.Bot.Pair
	if _, q, ok := strings.Cut(cfg.Bot.Pair, "/"); ok {
		quote = q
	}

	gateway, err := exchange.New(cfg.Bot.Venue, exchange.Options{
		Pair:      cfg.FeeCoin.Coin + "/" + quote,
		APIKey:    cfg.Bot.APIKey,
		APISecret: cfg.Bot.APISecret,
		Sandbox:   cfg.Bot.Sandbox,
	})
	if err != nil {
		slog.Warn("fee-coin gateway unavailable, top-up disabled", "err", err)
		return nil
	}

	return topup.New(topup.Config{
		Coin:              cfg.FeeCoin.Coin,
		RepurchaseBalance: cfg.FeeCoin.RepurchaseBalance(),
		RepurchaseAmount:  cfg.FeeCoin.RepurchaseAmount(),
		Interval:          cfg.FeeCoin.Interval(),
	}, gateway, cfg.Bot.Name)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
