// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services, and translate errors; business logic stays out of here.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"anchorgate/internal/collab"
	"anchorgate/internal/platform/health"
	"anchorgate/internal/platform/middleware"
)

// sessionCookie is the cookie carrying the caller's opaque session token.
const sessionCookie = "access_token"

// Deps bundles what the router needs from the rest of the gateway.
type Deps struct {
	Resolver     *ResolverHandler
	Credential   *CredentialHandler
	Notification *NotificationHandler
	Ledger       *LedgerHandler
	Health       *health.Handler
	Logger       *slog.Logger
}

// NewRouter wires all public endpoints with the middleware stack.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	deps.Resolver.Register(r)
	deps.Credential.Register(r)
	deps.Notification.Register(r)
	deps.Ledger.Register(r)

	if deps.Health != nil {
		deps.Health.Register(r)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// sessionFromRequest extracts the session token from the access_token cookie.
// A missing cookie yields an empty session; collaborators decide whether the
// operation requires one.
func sessionFromRequest(r *http.Request) collab.Session {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return collab.Session("")
	}
	return collab.Session(cookie.Value)
}
