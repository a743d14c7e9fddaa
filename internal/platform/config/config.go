package config

import (
	"os"
	"time"
)

// Server captures HTTP server and collaborator configuration.
// Collaborator base URLs are explicit configuration rather than module-level
// constants so tests can point each client at a double.
type Server struct {
	Addr string

	// Collaborator base URLs.
	DocumentControllerURL string
	LedgerServiceURL      string
	AuthServiceURL        string

	// CollaboratorTimeout bounds every outbound call; a timed-out step is
	// treated like any other transport failure and is never retried here.
	CollaboratorTimeout time.Duration

	// TracingEnabled switches the pipelines from the no-op tracer to the
	// OpenTelemetry adapter. Exporter setup is the deployment's concern.
	TracingEnabled bool
}

// DefaultCollaboratorTimeout bounds outbound calls when no override is set.
var DefaultCollaboratorTimeout = 10 * time.Second

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:                  envOr("ANCHORGATE_ADDR", ":8000"),
		DocumentControllerURL: envOr("DOC_CONTROLLER_URL", "http://localhost:9000"),
		LedgerServiceURL:      envOr("LEDGER_SERVICE_URL", "http://localhost:10000"),
		AuthServiceURL:        envOr("AUTH_SERVICE_URL", "http://localhost:12000"),
		CollaboratorTimeout:   DefaultCollaboratorTimeout,
	}

	if raw := os.Getenv("COLLABORATOR_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.CollaboratorTimeout = d
		}
	}
	cfg.TracingEnabled = os.Getenv("ANCHORGATE_TRACING_ENABLED") == "true"

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
