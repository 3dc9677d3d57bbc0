// Package webhook provides the HTTP surface of the gateway: request
// verification, event classification, and handoff to the dispatcher.
package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/droidagent/slack-gateway-go/internal/classify"
	"github.com/droidagent/slack-gateway-go/internal/ctxutil"
	"github.com/droidagent/slack-gateway-go/internal/dispatch"
	gwerrors "github.com/droidagent/slack-gateway-go/internal/errors"
	"github.com/droidagent/slack-gateway-go/internal/event"
	"github.com/droidagent/slack-gateway-go/internal/logger"
	"github.com/droidagent/slack-gateway-go/internal/metrics"
	"github.com/droidagent/slack-gateway-go/internal/ratelimit"
	"github.com/droidagent/slack-gateway-go/internal/verify"
)

// Request bodies larger than this are rejected before verification.
const maxBodyBytes = 1 << 20

// Handler handles Slack webhook requests. Verification happens on the
// request path; everything after the 200 OK runs asynchronously.
type Handler struct {
	verifier   *verify.Verifier
	classifier *classify.Classifier
	router     *dispatch.Router
	metrics    *metrics.Metrics
	logger     *logger.Logger
	seen       *dedupSet
	limiter    *ratelimit.SenderLimiter // nil = no per-sender throttling
	wg         sync.WaitGroup
}

// HandlerConfig holds configuration for creating a new Handler.
type HandlerConfig struct {
	Verifier   *verify.Verifier
	Classifier *classify.Classifier
	Router     *dispatch.Router
	Metrics    *metrics.Metrics
	Logger     *logger.Logger
	Limiter    *ratelimit.SenderLimiter
}

// NewHandler creates a new webhook handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		verifier:   cfg.Verifier,
		classifier: cfg.Classifier,
		router:     cfg.Router,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.WithModule("webhook"),
		seen:       newDedupSet(dedupCapacity),
		limiter:    cfg.Limiter,
	}
}

// HandleEvents is the Gin handler for the Events API endpoint.
func (h *Handler) HandleEvents(c *gin.Context) {
	body, ok := h.verifiedBody(c)
	if !ok {
		return
	}

	// URL verification handshakes are answered inline and never routed.
	if challenge, isChallenge := classify.Challenge(body); isChallenge {
		c.JSON(http.StatusOK, gin.H{"challenge": challenge})
		return
	}

	start := time.Now()
	evt := h.classifier.ClassifyEvent(c.Request.Context(), body, start)
	h.metrics.RecordEvent(string(evt.Kind))

	// Events without a timestamp cannot be told apart, so they are
	// never treated as redeliveries.
	if evt.Timestamp != "" && h.seen.Seen(evt.DedupKey()) {
		h.logger.WithField("dedup_key", evt.DedupKey()).Debug("Duplicate event skipped")
		c.Status(http.StatusOK)
		return
	}

	// Noisy senders are acked but not dispatched.
	if h.limiter != nil && !h.limiter.Allow(evt.SenderID) {
		h.logger.WithField("sender_id", evt.SenderID).Warn("Sender rate limit exceeded")
		c.Status(http.StatusOK)
		return
	}

	// Slack requires an ack within 3 seconds; handlers may run far
	// longer, so processing continues after the response.
	c.Status(http.StatusOK)
	h.processAsync(c.Request.Context(), evt, "event", start)
}

// HandleInteractive is the Gin handler for block-action callbacks. The
// payload arrives form-encoded with the JSON in a "payload" field.
func (h *Handler) HandleInteractive(c *gin.Context) {
	body, ok := h.verifiedBody(c)
	if !ok {
		return
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		h.metrics.RecordVerificationReject(string(gwerrors.ReasonMalformedRequest))
		c.Status(http.StatusBadRequest)
		return
	}
	payload := values.Get("payload")
	if payload == "" {
		h.metrics.RecordVerificationReject(string(gwerrors.ReasonMalformedRequest))
		c.Status(http.StatusBadRequest)
		return
	}

	start := time.Now()
	evt := h.classifier.ClassifyInteractive(c.Request.Context(), []byte(payload), start)
	h.metrics.RecordEvent(string(evt.Kind))

	c.Status(http.StatusOK)
	h.processAsync(c.Request.Context(), evt, "interactive", start)
}

// verifiedBody reads and authenticates the request body. On failure it
// writes the response status and reports false.
func (h *Handler) verifiedBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil || len(body) > maxBodyBytes {
		h.metrics.RecordVerificationReject(string(gwerrors.ReasonMalformedRequest))
		c.Status(http.StatusBadRequest)
		return nil, false
	}

	if err := h.verifier.Verify(c.Request.Header, body, time.Now()); err != nil {
		var verr *gwerrors.VerificationError
		if errors.As(err, &verr) {
			h.metrics.RecordVerificationReject(string(verr.Reason))
			h.logger.WithField("reason", string(verr.Reason)).Warn("Webhook verification failed")
			if verr.Reason == gwerrors.ReasonMalformedRequest {
				c.Status(http.StatusBadRequest)
			} else {
				c.Status(http.StatusUnauthorized)
			}
		} else {
			h.logger.WithError(err).Error("Webhook verification errored")
			c.Status(http.StatusInternalServerError)
		}
		return nil, false
	}
	return body, true
}

// processAsync dispatches the event on a detached context so handler
// work survives the HTTP request ending.
func (h *Handler) processAsync(reqCtx context.Context, evt *event.Event, kind string, start time.Time) {
	ctx := ctxutil.PreserveTracing(reqCtx)
	ctx = ctxutil.WithRequestID(ctx, uuid.NewString())
	ctx = ctxutil.WithChannelID(ctx, evt.ChannelID)
	ctx = ctxutil.WithSenderID(ctx, evt.SenderID)

	requestID, _ := ctxutil.GetRequestID(ctx)
	log := h.logger.WithRequestID(requestID).WithField("event_kind", string(evt.Kind))

	h.wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("Panic in async event processing")
			}
		}()

		outcome := h.router.Dispatch(ctx, evt)
		h.metrics.RecordWebhook(kind, time.Since(start).Seconds())
		log.WithField("outcome", string(outcome)).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Info("Event processed")
	})
}

// Shutdown waits for all async event processing to complete.
// It returns an error if the context is canceled before completion.
func (h *Handler) Shutdown(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		h.wg.Wait()
	}()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
