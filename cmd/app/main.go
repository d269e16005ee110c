package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/blablabl4/StreamAssist/internal/bot"
	"github.com/blablabl4/StreamAssist/internal/config"
	"github.com/blablabl4/StreamAssist/internal/domain/ports/adapter"
	payAdapters "github.com/blablabl4/StreamAssist/internal/infra/adapters/payment"
	provAdapters "github.com/blablabl4/StreamAssist/internal/infra/adapters/provision"
	waAdapters "github.com/blablabl4/StreamAssist/internal/infra/adapters/whatsapp"
	pg "github.com/blablabl4/StreamAssist/internal/infra/db/postgres"
	"github.com/blablabl4/StreamAssist/internal/infra/i18n"
	"github.com/blablabl4/StreamAssist/internal/infra/logging"
	"github.com/blablabl4/StreamAssist/internal/infra/metrics"
	red "github.com/blablabl4/StreamAssist/internal/infra/redis"
	"github.com/blablabl4/StreamAssist/internal/infra/sched"
	"github.com/blablabl4/StreamAssist/internal/infra/web"
	"github.com/blablabl4/StreamAssist/internal/infra/worker"
	"github.com/blablabl4/StreamAssist/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateways, no real sends)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	locker := red.NewLocker(redisClient)
	stateRepo := red.NewStateRepo(redisClient, locker, cfg.Redis.StateTTL)

	// ---- Repositories ----
	ledgerRepo := pg.NewLedgerRepo(pool)
	trialRepo := pg.NewTrialRepo(pool)
	credRepo := pg.NewCredentialRepo(pool)
	auditRepo := pg.NewAuditRepo(pool)

	// ---- Gateways ----
	var payGW adapter.PaymentGateway
	var provGW adapter.ProvisioningGateway
	var transport adapter.MessageTransport
	if cfg.Runtime.Dev {
		payGW = payAdapters.NewNoopPaymentGateway()
		provGW = provAdapters.NewNoopProvisioner()
		transport = waAdapters.NewNoopTransport(logger)
	} else {
		payGW, err = payAdapters.NewPagHiperGateway(cfg.Payment.PagHiper)
		if err != nil {
			logger.Fatal().Err(err).Msg("paghiper")
		}
		provGW, err = provAdapters.NewPanelGateway(cfg.Provision)
		if err != nil {
			logger.Fatal().Err(err).Msg("panel")
		}
		transport, err = waAdapters.NewTwilioTransport(cfg.WhatsApp, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("twilio")
		}
	}

	// ---- Use cases ----
	checkUC := usecase.NewPaymentCheckUseCase(payGW,
		cfg.Payment.BurstAttempts, cfg.Payment.BurstInterval,
		cfg.Payment.PollAttempts, cfg.Payment.PollInterval, logger)
	paymentUC := usecase.NewPaymentUseCase(ledgerRepo, credRepo, auditRepo,
		payGW, provGW, checkUC, cfg.Provision.DefaultPackage, logger)
	trialUC := usecase.NewTrialUseCase(trialRepo, credRepo, auditRepo, provGW,
		cfg.Trial.CooldownDays, cfg.Provision.DefaultPackage, logger)
	credUC := usecase.NewCredentialUseCase(credRepo, logger)

	// ---- Dialog ----
	translator, err := i18n.NewTranslator(i18n.LocalesFS, "pt-BR")
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}
	for _, key := range bot.MessageKeys() {
		if !translator.Has(key) {
			logger.Fatal().Str("key", key).Msg("message catalog is missing a key the dialog uses")
		}
	}
	orch := bot.NewOrchestrator(stateRepo, paymentUC, trialUC, credUC,
		transport, translator, cfg.Trial.CooldownDays, cfg.Provision.DefaultPackage, logger)

	dispatcher := worker.NewKeyedDispatcher(cfg.WhatsApp.Workers, logger)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	inbound := func(phone, text string) error {
		return dispatcher.Submit(phone, func(ctx context.Context) error {
			orch.HandleMessage(ctx, phone, text)
			return nil
		})
	}

	// ---- HTTP server (webhooks, health, metrics) ----
	srv := web.NewServer(paymentUC, orch.NotifyProvisioned, inbound, logger)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Web.Port), Handler: srv.Router()}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Pending-payment reconciler ----
	reconciler := sched.NewPaymentReconciler(paymentUC, ledgerRepo,
		sched.ProvisionedNotifier(orch.NotifyProvisioned),
		cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, logger)
	go reconciler.Start(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
	_ = server.Shutdown(context.Background())
	_ = redisClient.Close()
}
