// Package classify turns raw Slack payloads into normalized gateway events.
package classify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/droidagent/slack-gateway-go/internal/event"
)

// Directory resolves Slack IDs to human-readable names. Lookups are
// best effort: an empty string means the name is unknown and matchers
// fall back to the raw ID.
type Directory interface {
	ChannelName(ctx context.Context, channelID string) string
	UserName(ctx context.Context, userID string) string
}

// Classifier assigns an event kind to incoming payloads. It never
// fails: shapes it does not recognize become lifecycle events with
// empty text so that downstream matching degrades instead of erroring.
type Classifier struct {
	botUserID string
	directory Directory
}

func New(botUserID string, directory Directory) *Classifier {
	return &Classifier{botUserID: botUserID, directory: directory}
}

// Challenge extracts the url_verification challenge from a payload,
// reporting whether it was one. Challenge requests are answered at the
// transport layer and never reach classification.
func Challenge(body []byte) (string, bool) {
	var probe struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return "", false
	}
	if probe.Type != string(slackevents.URLVerification) {
		return "", false
	}
	return probe.Challenge, true
}

// ClassifyEvent normalizes an Events API callback payload.
func (c *Classifier) ClassifyEvent(ctx context.Context, body []byte, now time.Time) *event.Event {
	api, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		return c.lifecycle(body, now)
	}
	if api.Type != slackevents.CallbackEvent {
		return c.lifecycle(body, now)
	}

	raw := json.RawMessage(body)
	if cb, ok := api.Data.(*slackevents.EventsAPICallbackEvent); ok && cb.InnerEvent != nil {
		raw = *cb.InnerEvent
	}

	switch inner := api.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		evt := &event.Event{
			Kind:        event.KindMention,
			ChannelID:   inner.Channel,
			SenderID:    inner.User,
			Text:        inner.Text,
			MentionsBot: true,
			Timestamp:   inner.TimeStamp,
			ThreadTS:    inner.ThreadTimeStamp,
			ReceivedAt:  now,
			RawPayload:  raw,
		}
		evt.SelfAuthored = c.botUserID != "" && inner.User == c.botUserID
		c.resolveNames(ctx, evt)
		return evt

	case *slackevents.MessageEvent:
		switch inner.SubType {
		case "", "thread_broadcast", "file_share":
		default:
			// Edits, deletions and other subtypes carry no new
			// author intent. Treat them like lifecycle noise.
			return c.lifecycle(raw, now)
		}
		evt := &event.Event{
			Kind:       event.KindMessage,
			ChannelID:  inner.Channel,
			SenderID:   inner.User,
			Text:       inner.Text,
			Timestamp:  inner.TimeStamp,
			ThreadTS:   inner.ThreadTimeStamp,
			ReceivedAt: now,
			RawPayload: raw,
		}
		if c.botUserID != "" && strings.Contains(inner.Text, "<@"+c.botUserID+">") {
			evt.Kind = event.KindMention
			evt.MentionsBot = true
		}
		evt.SelfAuthored = inner.BotID != "" || (c.botUserID != "" && inner.User == c.botUserID)
		c.resolveNames(ctx, evt)
		return evt

	case *slackevents.MemberJoinedChannelEvent:
		evt := c.lifecycle(raw, now)
		evt.ChannelID = inner.Channel
		evt.SenderID = inner.User
		c.resolveNames(ctx, evt)
		return evt

	case *slackevents.MemberLeftChannelEvent:
		evt := c.lifecycle(raw, now)
		evt.ChannelID = inner.Channel
		evt.SenderID = inner.User
		c.resolveNames(ctx, evt)
		return evt

	case *slackevents.ChannelCreatedEvent:
		evt := c.lifecycle(raw, now)
		evt.ChannelID = inner.Channel.ID
		evt.ChannelName = inner.Channel.Name
		evt.SenderID = inner.Channel.Creator
		return evt

	case *slackevents.ChannelDeletedEvent:
		evt := c.lifecycle(raw, now)
		evt.ChannelID = inner.Channel
		return evt

	default:
		return c.lifecycle(raw, now)
	}
}

// ClassifyInteractive normalizes a block-action callback. The payload
// argument is the decoded JSON from the interactive endpoint's form
// field, not the raw form body.
func (c *Classifier) ClassifyInteractive(ctx context.Context, payload []byte, now time.Time) *event.Event {
	var cb slack.InteractionCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return c.lifecycle(payload, now)
	}

	evt := &event.Event{
		Kind:       event.KindInteractiveAction,
		ChannelID:  cb.Channel.ID,
		SenderID:   cb.User.ID,
		Timestamp:  cb.Message.Timestamp,
		ThreadTS:   cb.Message.ThreadTimestamp,
		ReceivedAt: now,
		RawPayload: payload,
	}
	if len(cb.ActionCallback.BlockActions) > 0 {
		evt.Text = cb.ActionCallback.BlockActions[0].Value
	}
	evt.SelfAuthored = c.botUserID != "" && cb.User.ID == c.botUserID
	c.resolveNames(ctx, evt)
	return evt
}

func (c *Classifier) lifecycle(raw []byte, now time.Time) *event.Event {
	// Lifecycle shapes still carry event_ts; without it distinct events
	// would share a dedup key and all but the first would be dropped.
	var probe struct {
		EventTS string `json:"event_ts"`
	}
	_ = json.Unmarshal(raw, &probe)
	return &event.Event{
		Kind:       event.KindLifecycle,
		Timestamp:  probe.EventTS,
		ReceivedAt: now,
		RawPayload: raw,
	}
}

func (c *Classifier) resolveNames(ctx context.Context, evt *event.Event) {
	if c.directory == nil {
		return
	}
	if evt.ChannelID != "" && evt.ChannelName == "" {
		evt.ChannelName = c.directory.ChannelName(ctx, evt.ChannelID)
	}
	if evt.SenderID != "" && evt.SenderName == "" {
		evt.SenderName = c.directory.UserName(ctx, evt.SenderID)
	}
}
