// Package dispatch routes classified events to handlers and normalizes
// their results into outbound responses.
package dispatch

import (
	"context"
	"errors"
	"time"

	gwerrors "github.com/droidagent/slack-gateway-go/internal/errors"
	"github.com/droidagent/slack-gateway-go/internal/event"
	"github.com/droidagent/slack-gateway-go/internal/handler"
	"github.com/droidagent/slack-gateway-go/internal/logger"
	"github.com/droidagent/slack-gateway-go/internal/metrics"
	"github.com/droidagent/slack-gateway-go/internal/outbound"
	"github.com/droidagent/slack-gateway-go/internal/rules"
	"github.com/droidagent/slack-gateway-go/internal/sentry"
)

// Outcome describes how a dispatch ended. Used as the status label on
// dispatch metrics.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeFailed      Outcome = "failed"
	OutcomeTimeout     Outcome = "timeout"
	OutcomeUnmatched   Outcome = "unmatched"
	OutcomeSkippedSelf Outcome = "skipped_self"
)

// Router evaluates events against the live rule set, invokes the first
// matching rule's handler, and posts the normalized response. All side
// effects go through the configured Poster.
type Router struct {
	store   *rules.Store
	poster  outbound.Poster
	metrics *metrics.Metrics
	log     *logger.Logger

	handlerTimeout time.Duration

	// failureNotice, when set, is posted to the source channel after a
	// failed or timed-out invocation. Empty means fail silently.
	failureNotice string
}

type Config struct {
	Store          *rules.Store
	Poster         outbound.Poster
	Metrics        *metrics.Metrics
	Log            *logger.Logger
	HandlerTimeout time.Duration
	FailureNotice  string
}

func NewRouter(cfg Config) *Router {
	return &Router{
		store:          cfg.Store,
		poster:         cfg.Poster,
		metrics:        cfg.Metrics,
		log:            cfg.Log.WithModule("dispatch"),
		handlerTimeout: cfg.HandlerTimeout,
		failureNotice:  cfg.FailureNotice,
	}
}

// Dispatch routes one event end to end and reports the outcome.
func (r *Router) Dispatch(ctx context.Context, evt *event.Event) Outcome {
	if evt.SelfAuthored {
		r.record("", OutcomeSkippedSelf)
		return OutcomeSkippedSelf
	}

	rule := r.store.Current().Match(evt)
	if rule == nil {
		r.record("", OutcomeUnmatched)
		return OutcomeUnmatched
	}

	log := r.log.WithFields(map[string]any{
		"rule":    rule.Name,
		"handler": rule.HandlerRef,
		"channel": evt.ChannelID,
	})

	invokeCtx, cancel := context.WithTimeout(ctx, r.handlerTimeout)
	defer cancel()

	start := time.Now()
	result, err := rule.Handler.Invoke(invokeCtx, evt)
	r.metrics.RecordHandlerDuration(rule.Handler.Kind(), time.Since(start).Seconds())

	if err != nil {
		outcome := OutcomeFailed
		if errors.Is(err, gwerrors.ErrHandlerTimeout) || errors.Is(invokeCtx.Err(), context.DeadlineExceeded) {
			outcome = OutcomeTimeout
		} else {
			sentry.CaptureExceptionWithContext(ctx, &gwerrors.HandlerError{
				Handler: rule.HandlerRef,
				Rule:    rule.Name,
				Cause:   err,
			})
		}
		log.WithError(err).Error("handler invocation failed")
		r.notifyFailure(ctx, evt)
		r.record(rule.Name, outcome)
		return outcome
	}

	resp := normalize(result, evt)
	if err := r.poster.Post(ctx, resp); err != nil {
		log.WithError(err).Error("posting response failed")
		sentry.CaptureExceptionWithContext(ctx, err)
		r.record(rule.Name, OutcomeFailed)
		return OutcomeFailed
	}

	log.Debug("dispatch completed")
	r.record(rule.Name, OutcomeCompleted)
	return OutcomeCompleted
}

// normalize maps a handler result onto the outbound response,
// defaulting the target channel to the event's channel.
func normalize(result *handler.Result, evt *event.Event) *outbound.Response {
	if result == nil {
		return &outbound.Response{}
	}

	channel := result.TargetChannel
	if channel == "" {
		channel = evt.ChannelID
	}

	resp := &outbound.Response{
		ChannelID:   channel,
		ThreadTS:    result.ThreadRef,
		Text:        result.ResponseText,
		FileContent: result.FileContent,
	}
	if result.Visibility == handler.VisibilitySenderOnly {
		resp.Ephemeral = true
		resp.RecipientID = evt.SenderID
	}
	return resp
}

func (r *Router) notifyFailure(ctx context.Context, evt *event.Event) {
	if r.failureNotice == "" || evt.ChannelID == "" {
		return
	}
	notice := &outbound.Response{
		ChannelID: evt.ChannelID,
		ThreadTS:  evt.ReplyThread(),
		Text:      r.failureNotice,
	}
	if err := r.poster.Post(ctx, notice); err != nil {
		r.log.WithError(err).Warn("failure notice not delivered")
	}
}

func (r *Router) record(rule string, outcome Outcome) {
	r.metrics.RecordDispatch(rule, string(outcome))
}
