package main

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/duplexpay/duplexd/internal/config"
	"github.com/duplexpay/duplexd/internal/core/application"
	"github.com/duplexpay/duplexd/internal/core/ports"
	"github.com/duplexpay/duplexd/internal/infrastructure/conditions"
	"github.com/duplexpay/duplexd/internal/infrastructure/db"
	scheduler "github.com/duplexpay/duplexd/internal/infrastructure/scheduler/gocron"
	"github.com/duplexpay/duplexd/internal/infrastructure/wallet"
	"github.com/duplexpay/duplexd/internal/interface/web"
)

// nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	log.Infof("starting duplexd %s (%s, %s)...", version, commit, date)

	repoSvc, err := db.NewService(db.ServiceConfig{
		DbType:  cfg.DbType,
		BaseDir: cfg.Datadir,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to open db")
	}

	custodySvc, err := wallet.NewService(cfg.Datadir, nil)
	if err != nil {
		log.WithError(err).Fatal("failed to open wallet store")
	}
	poolSvc := wallet.NewPool(custodySvc)

	condRegistry := conditions.NewRegistry()
	var condClient ports.ConditionClient = condRegistry
	if cfg.ConditionGatewayURL != "" {
		condClient = conditions.NewHTTPClient(cfg.ConditionGatewayURL)
	}

	bus := application.NewEventBus()
	clock := application.SystemClock{}

	payRegistry := application.NewPayRegistry(repoSvc.PayResults(), clock, bus)
	payResolver := application.NewPayResolver(
		cfg.Resolver(), payRegistry, condClient, condRegistry, clock, bus,
	)

	limitCaps, err := cfg.ParseBalanceLimits()
	if err != nil {
		log.WithError(err).Fatal("invalid balance limits")
	}
	limits := application.NewBalanceLimits(cfg.BalanceLimitEnabled, limitCaps)

	schedulerSvc := scheduler.NewScheduler()
	schedulerSvc.Start()

	ledgerSvc := application.NewLedgerService(
		application.LedgerConfig{
			Addr:              cfg.Ledger(),
			Owner:             cfg.Owner(),
			MinDisputeTimeout: cfg.MinDisputeTimeout,
			MaxDisputeTimeout: cfg.MaxDisputeTimeout,
		},
		repoSvc, custodySvc, poolSvc, payRegistry, clock, bus, schedulerSvc, limits,
	)

	webSvc := web.NewService(cfg.HTTPPort, ledgerSvc, payResolver)

	log.RegisterExitHandler(webSvc.Stop)

	log.Info("starting service...")
	webSvc.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down service...")
	webSvc.Stop()
	schedulerSvc.Stop()
	repoSvc.Close()
	custodySvc.Close()
	log.Exit(0)
}
