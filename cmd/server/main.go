// main wires configuration, storage, services, background workers, and the
// HTTP surface, and owns the process lifecycle. Business logic lives in the
// internal services.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"workpermit/internal/audit"
	auditkafka "workpermit/internal/audit/kafka"
	deploymenthandler "workpermit/internal/deployment/handler"
	deploymentservice "workpermit/internal/deployment/service"
	deploymentstore "workpermit/internal/deployment/store/deployment"
	partystore "workpermit/internal/deployment/store/party"
	httpapi "workpermit/internal/http"
	permithandler "workpermit/internal/permit/handler"
	permitservice "workpermit/internal/permit/service"
	permitstore "workpermit/internal/permit/store/permit"
	"workpermit/internal/platform/config"
	"workpermit/internal/platform/httpserver"
	"workpermit/internal/platform/logger"
	"workpermit/internal/platform/metrics"
	"workpermit/internal/platform/middleware"
	"workpermit/internal/platform/postgres"
	platformredis "workpermit/internal/platform/redis"
	"workpermit/internal/quota/cache"
	quotahandler "workpermit/internal/quota/handler"
	quotaservice "workpermit/internal/quota/service"
	letterstore "workpermit/internal/quota/store/letter"
	runawayhandler "workpermit/internal/runaway/handler"
	runawayservice "workpermit/internal/runaway/service"
	runawaystore "workpermit/internal/runaway/store/runaway"
	"workpermit/internal/worker/expiry"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	txRunner := postgres.NewTxRunner(db)

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	var summaryCache *cache.SummaryCache
	if redisClient != nil {
		defer redisClient.Close()
		summaryCache = cache.NewSummaryCache(redisClient.Client)
	} else {
		summaryCache = cache.NewSummaryCache(nil)
	}

	// Audit pipeline: services emit to a channel, a worker drains it into
	// the durable postgres store, with Kafka as a best-effort sink.
	auditStore := audit.Store(audit.NewPostgresStore(db))
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := auditkafka.New(ctx, cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = kafkaSink.Close(closeCtx)
		}()
		auditStore = audit.NewFanout(auditStore, kafkaSink)
	}
	auditPublisher := audit.NewChannelPublisher(1024)
	auditWorker := audit.NewWorker(auditStore, auditPublisher.Inbox())

	m := metrics.New()

	letters := letterstore.NewPostgres(db)
	deployments := deploymentstore.NewPostgres(db)
	workers := partystore.NewWorkerPostgres(db)
	employers := partystore.NewEmployerPostgres(db)
	permits := permitstore.NewPostgres(db)
	runaways := runawaystore.NewPostgres(db)

	quotaSvc := quotaservice.New(letters,
		quotaservice.WithLogger(log),
		quotaservice.WithAuditPublisher(auditPublisher),
		quotaservice.WithMetrics(m),
		quotaservice.WithCache(summaryCache),
	)
	deploymentSvc := deploymentservice.New(txRunner, deployments, workers, employers, quotaSvc,
		deploymentservice.WithLogger(log),
		deploymentservice.WithAuditPublisher(auditPublisher),
		deploymentservice.WithMetrics(m),
	)
	permitSvc := permitservice.New(txRunner, permits, deployments,
		permitservice.WithLogger(log),
		permitservice.WithAuditPublisher(auditPublisher),
		permitservice.WithMetrics(m),
	)
	runawaySvc := runawayservice.New(txRunner, runaways, deployments, quotaSvc,
		runawayservice.WithLogger(log),
		runawayservice.WithAuditPublisher(auditPublisher),
		runawayservice.WithMetrics(m),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:     log,
		Metrics:    m,
		Validator:  middleware.NewHMACValidator(cfg.JWTSigningKey),
		Quota:      quotahandler.New(quotaSvc, log),
		Deployment: deploymenthandler.New(deploymentSvc, log),
		Permit:     permithandler.New(permitSvc, log),
		Runaway:    runawayhandler.New(runawaySvc, log),
	})
	srv := httpserver.New(cfg.Addr, router)

	notifier := expiry.New(permits, log, auditPublisher, cfg.ExpiryScanInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting workpermit server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := auditWorker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := notifier.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
