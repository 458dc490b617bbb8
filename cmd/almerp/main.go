package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/alm-erp/alm-erp/cmd/almerp/cli"
	"github.com/alm-erp/alm-erp/internal/app"
	"github.com/alm-erp/alm-erp/internal/banking"
	"github.com/alm-erp/alm-erp/internal/crossing"
	"github.com/alm-erp/alm-erp/internal/fx"
	"github.com/alm-erp/alm-erp/internal/fx/bcv"
	"github.com/alm-erp/alm-erp/internal/ledger"
	"github.com/alm-erp/alm-erp/internal/lodging"
	"github.com/alm-erp/alm-erp/internal/platform/cache"
	"github.com/alm-erp/alm-erp/internal/platform/db"
	"github.com/alm-erp/alm-erp/internal/platform/fetch"
	"github.com/alm-erp/alm-erp/internal/shared"
	"github.com/alm-erp/alm-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	fxRepo := fx.NewRepository(dbpool)
	var fxCache *fx.Cache
	if redisClient != nil {
		fxCache = fx.NewCache(redisClient, cfg.RatesCacheTTL)
	}
	scraper := bcv.NewScraper(fetchClient, cfg.BCVURL, logger)
	fxService := fx.NewService(fxRepo, fxRepo, scraper, fxCache, logger)
	fxHandler := fx.NewHandler(logger, fxService)

	bases, err := fxRepo.BaseCurrencies(ctx)
	if err != nil {
		logger.Error("load company base currencies", slog.Any("error", err))
		os.Exit(1)
	}
	converter := fx.NewConverter(fxRepo, bases)
	alternates := ledger.NewAlternateComputer(converter)
	postings := ledger.NewRepository(dbpool)

	importKeys := shared.NewImportKeyStore(dbpool)
	bankingRepo := banking.NewRepository(dbpool)
	bankingClient := banking.NewClient(fetchClient, cfg.TesoteBaseURL, cfg.TesoteAPIKey, logger)
	bankingService := banking.NewService(bankingClient, bankingRepo, bankingRepo, importKeys, logger)
	bankingHandler := banking.NewHandler(logger, bankingService, bankingClient)

	crossingRepo := crossing.NewRepository(dbpool)
	crossingInvoices := crossing.NewInvoiceRepository(dbpool)
	crossingService := crossing.NewService(crossingRepo, crossingInvoices, postings, alternates, logger)
	crossingHandler := crossing.NewHandler(logger, crossingService)
	ledgerHandler := ledger.NewHandler(logger, postings, ledger.DefaultSignConvention())

	lodgingRepo := lodging.NewRepository(dbpool)
	liquidity, err := lodgingRepo.LiquidityAccounts(ctx)
	if err != nil {
		logger.Error("load liquidity accounts", slog.Any("error", err))
		os.Exit(1)
	}
	lodgingService := lodging.NewService(lodgingRepo, postings, converter, lodging.Accounts{
		AdvanceAccount:   cfg.HotelAdvanceAccount,
		LiquidityAccount: liquidity,
	}, logger)
	lodgingHandler := lodging.NewHandler(logger, lodgingService)

	if len(os.Args) > 1 {
		os.Exit(runCommand(ctx, cfg, fxService, os.Args[1:]))
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		FXHandler:       fxHandler,
		BankingHandler:  bankingHandler,
		CrossingHandler: crossingHandler,
		LedgerHandler:   ledgerHandler,
		LodgingHandler:  lodgingHandler,
		JobHandler:      jobHandler,
		Pool:            dbpool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runCommand dispatches operational subcommands instead of starting the
// server.
func runCommand(ctx context.Context, cfg *app.Config, rates *fx.Service, args []string) int {
	switch args[0] {
	case "refresh-rates":
		fs := flag.NewFlagSet("refresh-rates", flag.ContinueOnError)
		jsonOut := fs.Bool("json", false, "emit JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		return cli.NewFXOpsCLI(rates).RefreshCommand(ctx, cli.FXRefreshOptions{JSONOutput: *jsonOut})
	case "rates-coverage":
		fs := flag.NewFlagSet("rates-coverage", flag.ContinueOnError)
		company := fs.Int64("company", 0, "company id")
		days := fs.Int("days", 7, "trailing days to check")
		jsonOut := fs.Bool("json", false, "emit JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		return cli.NewFXOpsCLI(rates).CoverageCommand(ctx, cli.FXCoverageOptions{
			CompanyID:  *company,
			Days:       *days,
			JSONOutput: *jsonOut,
		})
	case "trigger-job":
		fs := flag.NewFlagSet("trigger-job", flag.ContinueOnError)
		if err := fs.Parse(args[1:]); err != nil || fs.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "usage: almerp trigger-job <task-type>")
			return 1
		}
		jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr, cfg.BankSyncCompanyID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "trigger-job: %v\n", err)
			return 1
		}
		defer jobsCLI.Close()
		info, err := jobsCLI.Trigger(ctx, fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "trigger-job: %v\n", err)
			return 1
		}
		fmt.Printf("enqueued %s as %s\n", info.Type, info.ID)
		return 0
	case "queue-stats":
		jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr, cfg.BankSyncCompanyID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "queue-stats: %v\n", err)
			return 1
		}
		defer jobsCLI.Close()
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "queue-stats: %v\n", err)
			return 1
		}
		fmt.Printf("queue %s: pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		return 1
	}
}
