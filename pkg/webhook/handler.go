// Package webhook provides the HTTP handler for GitHub webhook deliveries,
// including signature validation and dispatch of public repository events.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/codeGROOVE-dev/hookcord/pkg/event"
	"github.com/codeGROOVE-dev/hookcord/pkg/logger"
)

// GitHub caps webhook payloads at 25MB.
const maxPayloadSize = 25 << 20

const (
	eventHeader    = "X-GitHub-Event"    //nolint:canonicalheader // GitHub webhook header
	deliveryHeader = "X-GitHub-Delivery" //nolint:canonicalheader // GitHub webhook header
)

// Errors returned by Handler.Process. Only statusFor turns them into HTTP statuses.
var (
	ErrMissingSignature  = errors.New("signature not provided")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrPayloadTooLarge   = errors.New("payload too large")
	ErrReadBody          = errors.New("failed to read body")
	ErrInvalidPayload    = errors.New("invalid payload")
)

// Notifier delivers a notification for a public repository event.
type Notifier interface {
	Notify(ctx context.Context, kind event.Kind, p *event.Payload) error
}

// Outcome describes what happened to an authenticated delivery.
type Outcome int

const (
	// OutcomeIgnored means the event was accepted but not relayed.
	OutcomeIgnored Outcome = iota
	// OutcomeDelivered means the notification was sent.
	OutcomeDelivered
	// OutcomeDeliveryFailed means sending failed. The caller still sees success.
	OutcomeDeliveryFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeDelivered:
		return "delivered"
	case OutcomeDeliveryFailed:
		return "delivery_failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the outcome of processing one delivery.
type Result struct {
	Err     error // delivery error when Outcome is OutcomeDeliveryFailed
	Kind    event.Kind
	Reason  string // why the event was ignored
	Outcome Outcome
}

// Handler handles GitHub webhook deliveries.
type Handler struct {
	notifier Notifier
	secret   string
}

// NewHandler creates a new webhook handler.
func NewHandler(n Notifier, secret string) *Handler {
	return &Handler{notifier: n, secret: secret}
}

// ServeHTTP processes a GitHub webhook delivery.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fields := logger.Fields{
		"event_type":  r.Header.Get(eventHeader),
		"delivery_id": r.Header.Get(deliveryHeader),
		"request_id":  middleware.GetReqID(ctx),
		"remote_addr": r.RemoteAddr,
	}

	res, err := h.Process(r)
	if err != nil {
		status, text := statusFor(err)
		fields["status"] = status
		if status >= http.StatusInternalServerError {
			logger.Error(ctx, "webhook processing failed", err, fields)
		} else {
			logger.Warn(ctx, "webhook rejected: "+err.Error(), fields)
		}
		http.Error(w, text, status)
		return
	}

	fields["outcome"] = res.Outcome.String()
	switch res.Outcome {
	case OutcomeIgnored:
		fields["reason"] = res.Reason
		logger.Info(ctx, "webhook ignored", fields)
	case OutcomeDelivered:
		fields["kind"] = string(res.Kind)
		logger.Info(ctx, "webhook relayed to discord", fields)
	case OutcomeDeliveryFailed:
		fields["kind"] = string(res.Kind)
		logger.Error(ctx, "discord notification failed", res.Err, fields)
	default:
	}

	w.WriteHeader(http.StatusOK)
}

// Process authenticates and dispatches a delivery. A nil error means the
// request succeeded from GitHub's point of view, whatever the Outcome.
func (h *Handler) Process(r *http.Request) (Result, error) {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		return Result{}, ErrMissingSignature
	}

	if r.ContentLength > maxPayloadSize {
		return Result{}, ErrPayloadTooLarge
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadSize+1))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrReadBody, err)
	}
	if len(body) > maxPayloadSize {
		return Result{}, ErrPayloadTooLarge
	}

	if !VerifySignature(h.secret, body, signature) {
		return Result{}, ErrSignatureMismatch
	}

	var p event.Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	if p.Repository == nil {
		return Result{Outcome: OutcomeIgnored, Reason: "no repository"}, nil
	}
	if p.Repository.Private == nil {
		return Result{}, fmt.Errorf("%w: %w: repository.private", ErrInvalidPayload, event.ErrMissingField)
	}
	if !p.Public() {
		return Result{Outcome: OutcomeIgnored, Reason: "private repository"}, nil
	}

	kind, ok := event.KindFor(r.Header.Get(eventHeader))
	if !ok {
		return Result{Outcome: OutcomeIgnored, Reason: "unsupported event type"}, nil
	}
	if err := p.Validate(kind); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	// The notification is sent even if GitHub hangs up first; the outbound
	// clients bound how long that takes.
	ctx := context.WithoutCancel(r.Context())
	if err := h.notifier.Notify(ctx, kind, &p); err != nil {
		return Result{Outcome: OutcomeDeliveryFailed, Kind: kind, Err: err}, nil
	}
	return Result{Outcome: OutcomeDelivered, Kind: kind}, nil
}

// statusFor maps a Process error to the response status and body text.
func statusFor(err error) (status int, text string) {
	switch {
	case errors.Is(err, ErrMissingSignature):
		return http.StatusBadRequest, "Signature not provided"
	case errors.Is(err, ErrSignatureMismatch):
		return http.StatusUnauthorized, "Signature mismatch"
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "payload too large"
	case errors.Is(err, ErrReadBody):
		return http.StatusBadRequest, "bad request"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
