package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"anchorgate/internal/anchoring"
	"anchorgate/internal/collab"
	"anchorgate/internal/credential"
	"anchorgate/internal/notification"
	"anchorgate/internal/platform/config"
	"anchorgate/internal/platform/health"
	"anchorgate/internal/platform/httpserver"
	"anchorgate/internal/platform/logger"
	"anchorgate/internal/platform/metrics"
	"anchorgate/internal/platform/tracer"
	httptransport "anchorgate/internal/transport/http"
	"anchorgate/pkg/platform/circuit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	var tr tracer.Tracer = tracer.NewNoop()
	if cfg.TracingEnabled {
		tr = tracer.NewOTel()
	}

	log.Info("initializing anchorgate",
		"addr", cfg.Addr,
		"document_controller", cfg.DocumentControllerURL,
		"ledger_service", cfg.LedgerServiceURL,
		"auth_service", cfg.AuthServiceURL,
	)

	// One client and one breaker per collaborator; a misbehaving ledger must
	// not trip calls to the document controller.
	docsBreaker := circuit.New("documents")
	ledgerBreaker := circuit.New("ledger")
	authBreaker := circuit.New("auth")

	docsClient := collab.NewDocumentsClient(collab.NewClient(
		"documents", cfg.DocumentControllerURL, cfg.CollaboratorTimeout,
		collab.WithBreaker(docsBreaker),
		collab.WithLogger(log),
		collab.WithMetrics(m),
		collab.WithTracer(tr),
	))
	ledgerClient := collab.NewLedgerClient(collab.NewClient(
		"ledger", cfg.LedgerServiceURL, cfg.CollaboratorTimeout,
		collab.WithBreaker(ledgerBreaker),
		collab.WithLogger(log),
		collab.WithMetrics(m),
		collab.WithTracer(tr),
	))
	authClient := collab.NewAuthClient(collab.NewClient(
		"auth", cfg.AuthServiceURL, cfg.CollaboratorTimeout,
		collab.WithBreaker(authBreaker),
		collab.WithLogger(log),
		collab.WithMetrics(m),
		collab.WithTracer(tr),
	))

	anchorSvc := anchoring.NewService(docsClient, ledgerClient,
		anchoring.WithLogger(log),
		anchoring.WithMetrics(m),
		anchoring.WithTracer(tr),
	)
	credentialSvc := credential.NewService(docsClient, ledgerClient, authClient,
		credential.WithLogger(log),
		credential.WithMetrics(m),
		credential.WithTracer(tr),
	)
	notificationSvc := notification.NewService(docsClient,
		notification.WithLogger(log),
	)

	// Readiness degrades while any collaborator circuit is open.
	healthHandler := health.New()
	for _, b := range []*circuit.Breaker{docsBreaker, ledgerBreaker, authBreaker} {
		healthHandler.RegisterCheck(b.Name()+"_circuit", func() error {
			if b.CurrentState() == circuit.StateOpen {
				return fmt.Errorf("%s circuit open", b.Name())
			}
			return nil
		})
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Resolver:     httptransport.NewResolverHandler(anchorSvc, docsClient, log),
		Credential:   httptransport.NewCredentialHandler(credentialSvc, log),
		Notification: httptransport.NewNotificationHandler(notificationSvc, log),
		Ledger:       httptransport.NewLedgerHandler(ledgerClient, log),
		Health:       healthHandler,
		Logger:       log,
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
