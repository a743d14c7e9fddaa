package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"anchorgate/internal/collab"
	"anchorgate/internal/platform/middleware"
	"anchorgate/pkg/platform/httputil"
)

// NotificationService creates and revokes notifications.
type NotificationService interface {
	Create(ctx context.Context, notification json.RawMessage, session collab.Session) error
	Revoke(ctx context.Context, notification json.RawMessage, session collab.Session) error
}

// NotificationHandler serves the /notification surface.
type NotificationHandler struct {
	service NotificationService
	logger  *slog.Logger
}

func NewNotificationHandler(service NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{service: service, logger: logger}
}

func (h *NotificationHandler) Register(r chi.Router) {
	r.Post("/notification", h.HandleCreate)
	r.Post("/notification/revoke", h.HandleRevoke)
}

type notificationRequest struct {
	Notification json.RawMessage `json:"notification"`
}

// HandleCreate validates and stores a notification.
func (h *NotificationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[notificationRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.Create(ctx, req.Notification, sessionFromRequest(r)); err != nil {
		h.logger.ErrorContext(ctx, "create notification failed",
			"error", err, "request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"message": "Notification created."})
}

// HandleRevoke accepts a revocation request.
func (h *NotificationHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[notificationRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.Revoke(ctx, req.Notification, sessionFromRequest(r)); err != nil {
		h.logger.ErrorContext(ctx, "revoke notification failed",
			"error", err, "request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Notification revoked."})
}
