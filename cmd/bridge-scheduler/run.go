package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v2"

	"github.com/pixbridge/bridge-scheduler/api"
	"github.com/pixbridge/bridge-scheduler/pkg/alert"
	"github.com/pixbridge/bridge-scheduler/pkg/allocator"
	"github.com/pixbridge/bridge-scheduler/pkg/config"
	"github.com/pixbridge/bridge-scheduler/pkg/db"
	"github.com/pixbridge/bridge-scheduler/pkg/explorer"
	"github.com/pixbridge/bridge-scheduler/pkg/ledger"
	"github.com/pixbridge/bridge-scheduler/pkg/logger"
	"github.com/pixbridge/bridge-scheduler/pkg/matcher"
	"github.com/pixbridge/bridge-scheduler/pkg/notifier"
	"github.com/pixbridge/bridge-scheduler/pkg/payprovider"
	"github.com/pixbridge/bridge-scheduler/pkg/redis"
	"github.com/pixbridge/bridge-scheduler/pkg/scheduler"
	"github.com/pixbridge/bridge-scheduler/pkg/signer"
	"github.com/pixbridge/bridge-scheduler/pkg/tracker"
	"github.com/pixbridge/bridge-scheduler/pkg/verification"
	verificationstore "github.com/pixbridge/bridge-scheduler/pkg/verification/store"
	"github.com/pixbridge/bridge-scheduler/pkg/withdraw"
	withdrawledger "github.com/pixbridge/bridge-scheduler/pkg/withdraw/ledger"
	withdrawstore "github.com/pixbridge/bridge-scheduler/pkg/withdraw/store"
)

var runCmd = &cli.Command{
	Name:    "run",
	Aliases: []string{"s"},
	Usage:   "Run the daemon",
	Action: func(c *cli.Context) error {
		return run(c)
	},
}

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "Apply database migrations and exit",
	Action: func(c *cli.Context) error {
		cfg, err := config.Load(c.String("env-file"))
		if err != nil {
			return err
		}
		if err := logger.Init(c.String("log-level")); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(c.Context, time.Minute)
		defer cancel()
		if err := db.Init(ctx, cfg.PostgresDSN); err != nil {
			return err
		}
		defer db.Close()
		return db.Migrate(ctx)
	},
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return err
	}
	if err := logger.Init(c.String("log-level")); err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Sugar().Infow(
		"run",
		"Subsystems", config.Subsystems(),
		"Timezone", cfg.Timezone,
	)

	if err := db.Init(ctx, cfg.PostgresDSN); err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	if err := redis.Init(cfg.RedisAddr, cfg.RedisPassword); err != nil {
		return err
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return err
	}

	pool, err := db.Client()
	if err != nil {
		return err
	}

	sig := signer.NewSubprocessSigner(cfg.SignerCommand, cfg.SignerSerialize)
	heights := explorer.NewClient(cfg.ExplorerAPI)
	provider := payprovider.NewClient(cfg.ProviderAPI, cfg.ProviderToken)
	ntf := notifier.NewNotifier(cfg.NotifierEndpoint)
	alerter := alert.NewAlerter(cfg.AlertEndpoint)
	trk := tracker.NewTracker()

	userLedger := ledger.NewLedger(pool, cfg.BaselineDailyLimit)
	wstore := withdrawstore.NewStore(pool)
	vstore := verificationstore.NewStore(pool)
	idx := allocator.NewAllocator(pool)
	match := matcher.NewMatcher(sig, heights, cfg.SignerAsset)

	timetable := withdrawledger.NewTimetable(withdrawledger.DefaultTimetable(), location)
	wledger := withdrawledger.New(wstore, idx, sig, ntf, timetable, withdrawledger.Config{
		MinAmount:     cfg.WithdrawMinAmount,
		MaxAmount:     cfg.WithdrawMaxAmount,
		FeePercent:    cfg.FeePercent,
		NetworkFeeMin: cfg.NetworkFeeMin,
		NetworkFeeMax: cfg.NetworkFeeMax,
		Expiry:        cfg.WithdrawExpiry,
		Currency:      cfg.Currency,
	})

	scheduler.RegisterSubsystem(
		withdraw.Subsystem,
		func(ctx context.Context, cancel context.CancelFunc) {
			withdraw.Initialize(ctx, cancel, &withdraw.Deps{
				Store:       wstore,
				Matcher:     match,
				Notifier:    ntf,
				Tolerance:   cfg.TolerancePercent,
				TopUpWindow: 24 * time.Hour,
			})
		},
		withdraw.Finalize,
	)
	scheduler.RegisterSubsystem(
		verification.Subsystem,
		func(ctx context.Context, cancel context.CancelFunc) {
			verification.Initialize(ctx, cancel, &verification.Deps{
				Store:          vstore,
				Provider:       provider,
				Ledger:         userLedger,
				Notifier:       ntf,
				Grace:          cfg.VerificationGrace,
				MaxAge:         cfg.VerificationMaxAge,
				NotFoundExpiry: cfg.VerificationNotFoundExpiry,
			})
		},
		verification.Finalize,
	)

	policy := scheduler.RetryPolicy{
		Cycles:           cfg.RetryCycles,
		AttemptsPerCycle: cfg.RetryAttempts,
		AttemptInterval:  cfg.RetryAttemptInterval,
		CycleInterval:    cfg.RetryCycleInterval,
	}
	orchestrator := scheduler.NewOrchestrator(ctx, location, trk, alerter, policy)

	if err := orchestrator.Register("withdraw-expiry", "@every 1m", false, func(ctx context.Context) error {
		_, err := wledger.SweepExpired(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := orchestrator.Register("limit-reset", "0 0 * * *", true, func(ctx context.Context) error {
		_, err := userLedger.ResetDailyLimits(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := orchestrator.Register("verification-sweep", "@hourly", false, func(ctx context.Context) error {
		_, err := verification.SweepAged(ctx, vstore, ntf, cfg.VerificationMaxAge)
		return err
	}); err != nil {
		return err
	}
	if err := orchestrator.Register("tracker-prune", "@hourly", false, trk.Prune); err != nil {
		return err
	}

	schedCtx, schedCancel := context.WithCancel(ctx)
	defer schedCancel()
	scheduler.Initialize(schedCtx, schedCancel)
	orchestrator.Start()

	server := &http.Server{
		Addr:              cfg.HTTPListenAddr,
		Handler:           api.NewServer(schedCtx, orchestrator, trk).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar().Errorw(
				"run",
				"State", "ListenAndServe",
				"Error", err,
			)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Sugar().Infow(
		"run",
		"State", "Done",
		"Error", ctx.Err(),
	)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = server.Shutdown(shutdownCtx) //nolint
	orchestrator.Shutdown(shutdownCtx)
	scheduler.Finalize(shutdownCtx)

	return nil
}
