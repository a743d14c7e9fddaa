// Package notification creates notifications exchanged between DIDs. A
// notification is accepted only when both the sender and the receiver have a
// registered DID document; the two lookups are independent and run
// concurrently.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"anchorgate/internal/collab"
	"anchorgate/internal/did"
	"anchorgate/internal/schema"
	dErrors "anchorgate/pkg/domain-errors"
)

// DIDRegistry answers existence lookups and persists messages.
type DIDRegistry interface {
	DIDExists(ctx context.Context, companyName, publicKey string, session collab.Session) (bool, error)
	StoreMessage(ctx context.Context, message json.RawMessage, session collab.Session) (json.RawMessage, error)
}

// Option configures the notification service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// Service validates and stores notifications.
type Service struct {
	registry DIDRegistry
	logger   *slog.Logger
}

// NewService creates the notification service.
func NewService(registry DIDRegistry, opts ...Option) *Service {
	s := &Service{registry: registry}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// parties is the subset of notification fields the service reads.
type parties struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
}

// Create validates the notification, verifies both parties have registered
// DID documents, and persists the message. Validation failures are local and
// never reach the document controller.
func (s *Service) Create(ctx context.Context, notification json.RawMessage, session collab.Session) error {
	if len(notification) == 0 {
		return dErrors.WithDetail(dErrors.CodeMissingParameters, "Missing parameters.", "Not found: notification")
	}
	if result := schema.Validate(schema.Notification, notification); !result.Valid {
		return dErrors.WithDetail(dErrors.CodeInvalidInput, "Bad request. Invalid notification.", result.Detail)
	}

	var p parties
	if err := json.Unmarshal(notification, &p); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "Bad request. Invalid notification.")
	}

	senderDID, err := did.Parse(p.Sender)
	if err != nil {
		return dErrors.WithDetail(dErrors.CodeInvalidInput, "Bad request. Invalid notification.", "Invalid DID syntax.")
	}
	receiverDID, err := did.Parse(p.Receiver)
	if err != nil {
		return dErrors.WithDetail(dErrors.CodeInvalidInput, "Bad request. Invalid notification.", "Invalid DID syntax.")
	}

	// Both parties must exist; the checks do not depend on each other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.requireDID(gctx, senderDID, session) })
	g.Go(func() error { return s.requireDID(gctx, receiverDID, session) })
	if err := g.Wait(); err != nil {
		return err
	}

	if _, err := s.registry.StoreMessage(ctx, notification, session); err != nil {
		return collabDomainError(err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "notification created",
			"sender", p.Sender,
			"receiver", p.Receiver,
		)
	}
	return nil
}

func (s *Service) requireDID(ctx context.Context, d did.DID, session collab.Session) error {
	exists, err := s.registry.DIDExists(ctx, d.CompanyName, d.PublicKeyOrFileName, session)
	if err != nil {
		return collabDomainError(err)
	}
	if !exists {
		return dErrors.New(dErrors.CodeUserNotExist, "User does not exist.")
	}
	return nil
}

// Revoke is a declared surface without a backing collaborator operation yet.
// It accepts the request so callers can integrate against the final route.
func (s *Service) Revoke(_ context.Context, _ json.RawMessage, _ collab.Session) error {
	return nil
}

func collabDomainError(err error) error {
	var ce *collab.Error
	if errors.As(err, &ce) {
		return ce.DomainError()
	}
	return dErrors.Wrap(err, dErrors.CodeUpstream, "collaborator call failed")
}
