package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/alm-erp/alm-erp/internal/app"
	"github.com/alm-erp/alm-erp/internal/banking"
	"github.com/alm-erp/alm-erp/internal/fx"
	"github.com/alm-erp/alm-erp/internal/fx/bcv"
	"github.com/alm-erp/alm-erp/internal/platform/cache"
	"github.com/alm-erp/alm-erp/internal/platform/db"
	"github.com/alm-erp/alm-erp/internal/platform/fetch"
	"github.com/alm-erp/alm-erp/internal/shared"
	"github.com/alm-erp/alm-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, rate cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	limiter := fetch.NewRateLimiter(cfg.FetchRateLimit, time.Duration(cfg.FetchRateWin)*time.Second)
	fetchClient := fetch.NewClient(fetch.Config{
		HTTPClient: &http.Client{Timeout: cfg.FetchTimeout},
		Limiter:    limiter,
		Logger:     logger,
	})

	fxRepo := fx.NewRepository(pool)
	var fxCache *fx.Cache
	if redisClient != nil {
		fxCache = fx.NewCache(redisClient, cfg.RatesCacheTTL)
	}
	scraper := bcv.NewScraper(fetchClient, cfg.BCVURL, logger)
	fxService := fx.NewService(fxRepo, fxRepo, scraper, fxCache, logger)

	importKeys := shared.NewImportKeyStore(pool)
	bankingRepo := banking.NewRepository(pool)
	bankingClient := banking.NewClient(fetchClient, cfg.TesoteBaseURL, cfg.TesoteAPIKey, logger)
	bankingService := banking.NewService(bankingClient, bankingRepo, bankingRepo, importKeys, logger)

	ratesTask, err := jobs.NewRatesRefreshTask(time.Now())
	if err != nil {
		logger.Error("build rates task", slog.Any("error", err))
		os.Exit(1)
	}
	syncTask, err := jobs.NewBankSyncTask(jobs.BankSyncPayload{
		CompanyID:    cfg.BankSyncCompanyID,
		LookbackDays: cfg.SyncLookback,
	})
	if err != nil {
		logger.Error("build bank sync task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeRatesRefresh, Handler: jobs.RatesRefreshHandler(fxService, logger)},
			{Type: jobs.TaskTypeBankSync, Handler: jobs.BankSyncHandler(bankingService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RatesRefreshCron, Task: ratesTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.BankSyncCron, Task: syncTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return worker.Run(groupCtx)
	})
	group.Go(func() error {
		tick := time.NewTicker(time.Minute)
		defer tick.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			case <-tick.C:
				limiter.Cleanup()
			}
		}
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
