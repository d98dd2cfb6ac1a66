package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KotFed0t/portfolio_tracker/config"
	"github.com/KotFed0t/portfolio_tracker/data"
	"github.com/KotFed0t/portfolio_tracker/data/cache"
	"github.com/KotFed0t/portfolio_tracker/data/repository/postgres"
	"github.com/KotFed0t/portfolio_tracker/data/session"
	"github.com/KotFed0t/portfolio_tracker/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/KotFed0t/portfolio_tracker/internal/externalApi/quoteApi"
	"github.com/KotFed0t/portfolio_tracker/internal/ledger"
	"github.com/KotFed0t/portfolio_tracker/internal/reportGenerator/xslsxGenerator"
	"github.com/KotFed0t/portfolio_tracker/internal/scheduler"
	"github.com/KotFed0t/portfolio_tracker/internal/service/marketService"
	"github.com/KotFed0t/portfolio_tracker/internal/service/portfolioService"
	"github.com/KotFed0t/portfolio_tracker/internal/service/syncService"
	"github.com/KotFed0t/portfolio_tracker/internal/state"
	"github.com/KotFed0t/portfolio_tracker/internal/tgbot"
	"github.com/KotFed0t/portfolio_tracker/internal/transport/rest"
	"github.com/KotFed0t/portfolio_tracker/internal/transport/telegram"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgClient, err := data.NewPostgresClient(cfg)
	if err != nil {
		slog.Error("can't init postgres", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer pgClient.Close()

	pgRepo := postgres.NewPostgres(cfg, pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)
	redisSession := session.NewRedisSession(redisClient)

	oracle, err := newOracle(cfg)
	if err != nil {
		slog.Error("can't init quote oracle", slog.String("err", err.Error()))
		os.Exit(1)
	}

	// интерфейс остается nil, если выгрузка в drive выключена
	var cloud portfolioService.CloudStorage
	drive, err := googleDriveApi.New(ctx, cfg)
	switch {
	case err == nil:
		cloud = drive
	case errors.Is(err, googleDriveApi.ErrDisabled):
		slog.Info("google drive upload disabled")
	default:
		slog.Warn("can't init google drive, upload disabled", slog.String("err", err.Error()))
	}

	sessions := state.NewRegistry()

	syncSrv := syncService.New(pgRepo, redisCache, cfg)
	portfolioSrv := portfolioService.New(cfg, pgRepo, syncSrv, sessions, ledger.New(ledger.DefaultReference), xslsxGenerator.New(), cloud)
	marketSrv := marketService.New(oracle, sessions, nil)

	listener := data.NewPostgresListener(cfg)
	go listener.Run(ctx)
	go syncSrv.WatchChanges(ctx, listener.Events(), sessions)

	sched, err := scheduler.New()
	if err != nil {
		slog.Error("can't init scheduler", slog.String("err", err.Error()))
		os.Exit(1)
	}
	if err = sched.NewIntervalJob("market tick", marketSrv.Tick, cfg.Jobs.MarketTickInterval, false); err != nil {
		os.Exit(1)
	}
	if drive != nil {
		if err = sched.NewIntervalJob("delete old exports", drive.DeleteOldFiles, cfg.Jobs.DriveCleanupInterval, true); err != nil {
			os.Exit(1)
		}
	}
	sched.Start()
	defer sched.Stop()

	restController := rest.NewController(portfolioSrv, marketSrv, redisCache, pgRepo, cfg.Sync.ImportWaitTimeout)
	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      rest.NewRouter(restController),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		slog.Info("http server started", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", slog.String("err", err.Error()))
			cancel()
		}
	}()

	if cfg.Telegram.Token != "" {
		tgController := telegram.NewController(portfolioSrv, marketSrv, redisSession)
		tgBot, err := tgbot.New(cfg, tgController)
		if err != nil {
			slog.Error("can't init tgbot", slog.String("err", err.Error()))
		} else {
			tgBot.Start()
			defer tgBot.Stop()
		}
	}

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	select {
	case <-interrupt:
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err = httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", slog.String("err", err.Error()))
	}
}

func newOracle(cfg *config.Config) (quoteApi.Oracle, error) {
	var oracle quoteApi.Oracle = quoteApi.NewMockOracle()

	if cfg.API.QuoteProvider != quoteApi.ProviderMock {
		api, err := quoteApi.New(cfg)
		if err != nil {
			return nil, err
		}
		oracle = api
	}

	slog.Info("quote oracle", slog.String("provider", oracle.Provider()))

	return quoteApi.NewCachedOracle(oracle, cfg.Cache.QuoteTTL), nil
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
