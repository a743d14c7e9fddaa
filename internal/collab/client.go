// Package collab wraps every call to the external collaborators (document
// controller, ledger service, authentication service) behind one normalized
// result shape, so pipelines never branch on transport-versus-application
// failure differences.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"anchorgate/internal/platform/metrics"
	"anchorgate/internal/platform/tracer"
	"anchorgate/pkg/platform/circuit"
)

// ErrCircuitOpen is returned without issuing a call while a collaborator's
// circuit breaker is open.
var ErrCircuitOpen = errors.New("collaborator circuit open")

// Client issues JSON calls to one collaborator. Each call is independent:
// no persistent connections are owned beyond the standard transport pool,
// and the session token is forwarded, never stored.
type Client struct {
	name       string
	baseURL    string
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     tracer.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBreaker sets the circuit breaker guarding this collaborator.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracer sets the tracer used to span each outbound call.
func WithTracer(t tracer.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// NewClient creates a collaborator client with a bounded per-call timeout.
func NewClient(name, baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		name:    name,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tracer: tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the collaborator name used in logs and metrics.
func (c *Client) Name() string {
	return c.name
}

// Request describes one outbound collaborator call. Lookup keys ride in
// Headers per the collaborator contract; the session rides as a cookie.
type Request struct {
	Method  string
	Path    string
	Query   string
	Headers map[string]string
	Body    any
	Session Session
}

// Call performs the request and returns the collaborator's successful
// payload, or a normalized *Error.
func (c *Client) Call(ctx context.Context, req Request) (json.RawMessage, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, tracer.SpanCollaboratorCall,
		tracer.String(tracer.AttrCollaborator, c.name),
		tracer.String("http.method", req.Method),
		tracer.String("http.path", req.Path),
	)

	payload, err := c.call(ctx, req)
	span.End(err)
	c.observe(start, err)
	return payload, err
}

func (c *Client) call(ctx context.Context, req Request) (json.RawMessage, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		return nil, &Error{Collaborator: c.name, Transport: true, Err: ErrCircuitOpen}
	}

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, &Error{Collaborator: c.name, Transport: true, Err: err}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.recordFailure()
		return nil, &Error{
			Collaborator: c.name,
			Transport:    true,
			Timeout:      isTimeout(ctx, err),
			Err:          err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure()
		return nil, &Error{Collaborator: c.name, Transport: true, Err: err}
	}

	// The collaborator responded; transport-wise this call is healthy even
	// if the response is an application failure.
	c.recordSuccess()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Collaborator: c.name, StatusCode: resp.StatusCode, Body: body}
	}

	var envelope appEnvelope
	if json.Unmarshal(body, &envelope) == nil && envelope.ErrorCode != 0 {
		return nil, &Error{Collaborator: c.name, StatusCode: resp.StatusCode, AppCode: envelope.ErrorCode, Body: body}
	}

	return body, nil
}

// CallJSON performs the request and decodes the successful payload into out.
func (c *Client) CallJSON(ctx context.Context, req Request, out any) error {
	payload, err := c.Call(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &Error{Collaborator: c.name, StatusCode: http.StatusOK, Body: payload,
			Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	url := c.baseURL + req.Path
	if req.Query != "" {
		url += "?" + req.Query
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, err
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if !req.Session.IsZero() {
		httpReq.Header.Set("Cookie", req.Session.Cookie())
	}
	return httpReq, nil
}

func (c *Client) recordFailure() {
	if c.breaker == nil {
		return
	}
	if opened := c.breaker.RecordFailure(); opened {
		if c.logger != nil {
			c.logger.Warn("collaborator circuit opened", "collaborator", c.name)
		}
		if c.metrics != nil {
			c.metrics.CircuitOpened.WithLabelValues(c.name).Inc()
		}
	}
}

func (c *Client) recordSuccess() {
	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
}

func (c *Client) observe(start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.CollaboratorLatency.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	c.metrics.CollaboratorRequests.WithLabelValues(c.name, outcomeLabel(err)).Inc()
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var ce *Error
	if errors.As(err, &ce) {
		switch {
		case ce.Timeout:
			return "timeout"
		case ce.Transport:
			return "transport_error"
		case ce.AppCode != 0:
			return "application_error"
		default:
			return "http_error"
		}
	}
	return "error"
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
