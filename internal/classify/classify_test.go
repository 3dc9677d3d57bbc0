package classify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/droidagent/slack-gateway-go/internal/event"
)

const botUserID = "UBOT42"

type fakeDirectory struct {
	channels map[string]string
	users    map[string]string
}

func (d *fakeDirectory) ChannelName(_ context.Context, id string) string { return d.channels[id] }
func (d *fakeDirectory) UserName(_ context.Context, id string) string    { return d.users[id] }

func callbackBody(innerJSON string) []byte {
	return []byte(fmt.Sprintf(`{"type":"event_callback","team_id":"T1","event":%s}`, innerJSON))
}

func TestClassifyAppMention(t *testing.T) {
	t.Parallel()

	c := New(botUserID, nil)
	body := callbackBody(`{"type":"app_mention","user":"U1","text":"<@UBOT42> deploy","ts":"1700000000.000100","channel":"C1"}`)

	evt := c.ClassifyEvent(context.Background(), body, time.Now())
	if evt.Kind != event.KindMention {
		t.Fatalf("kind = %q, want mention", evt.Kind)
	}
	if !evt.MentionsBot {
		t.Error("MentionsBot should be set for app_mention")
	}
	if evt.ChannelID != "C1" || evt.SenderID != "U1" {
		t.Errorf("channel/sender = %q/%q", evt.ChannelID, evt.SenderID)
	}
	if evt.Timestamp != "1700000000.000100" {
		t.Errorf("timestamp = %q", evt.Timestamp)
	}
}

func TestClassifyPlainMessage(t *testing.T) {
	t.Parallel()

	c := New(botUserID, nil)
	body := callbackBody(`{"type":"message","user":"U1","text":"hello team","ts":"1.2","channel":"C1","channel_type":"channel"}`)

	evt := c.ClassifyEvent(context.Background(), body, time.Now())
	if evt.Kind != event.KindMessage {
		t.Fatalf("kind = %q, want message", evt.Kind)
	}
	if evt.MentionsBot || evt.SelfAuthored {
		t.Error("plain message should not be a mention or self-authored")
	}
	if evt.Text != "hello team" {
		t.Errorf("text = %q", evt.Text)
	}
}

func TestClassifyMessageWithMentionToken(t *testing.T) {
	t.Parallel()

	c := New(botUserID, nil)
	body := callbackBody(`{"type":"message","user":"U1","text":"hey <@UBOT42> status?","ts":"1.2","channel":"C1"}`)

	evt := c.ClassifyEvent(context.Background(), body, time.Now())
	if evt.Kind != event.KindMention {
		t.Fatalf("kind = %q, want mention when text carries the bot token", evt.Kind)
	}
	if !evt.MentionsBot {
		t.Error("MentionsBot should be set")
	}
}

func TestClassifySelfAuthored(t *testing.T) {
	t.Parallel()

	c := New(botUserID, nil)
	cases := []struct {
		name  string
		inner string
	}{
		{"own user id", `{"type":"message","user":"UBOT42","text":"echo","ts":"1.2","channel":"C1"}`},
		{"bot id present", `{"type":"message","user":"U9","bot_id":"B77","text":"from an app","ts":"1.3","channel":"C1"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			evt := c.ClassifyEvent(context.Background(), callbackBody(tc.inner), time.Now())
			if !evt.SelfAuthored {
				t.Error("event should be flagged self-authored")
			}
		})
	}
}

func TestClassifyEditedMessageBecomesLifecycle(t *testing.T) {
	t.Parallel()

	c := New(botUserID, nil)
	body := callbackBody(`{"type":"message","subtype":"message_changed","channel":"C1","ts":"1.4"}`)

	evt := c.ClassifyEvent(context.Background(), body, time.Now())
	if evt.Kind != event.KindLifecycle {
		t.Fatalf("kind = %q, want lifecycle for message_changed", evt.Kind)
	}
}

func TestClassifyMemberJoined(t *testing.T) {
	t.Parallel()

	c := New(botUserID, nil)
	body := callbackBody(`{"type":"member_joined_channel","user":"U5","channel":"C9","channel_type":"C","team":"T1"}`)

	evt := c.ClassifyEvent(context.Background(), body, time.Now())
	if evt.Kind != event.KindLifecycle {
		t.Fatalf("kind = %q, want lifecycle", evt.Kind)
	}
	if evt.ChannelID != "C9" || evt.SenderID != "U5" {
		t.Errorf("channel/sender = %q/%q", evt.ChannelID, evt.SenderID)
	}
}

func TestClassifyLifecycleKeepsEventTimestamp(t *testing.T) {
	t.Parallel()

	c := New(botUserID, nil)
	first := c.ClassifyEvent(context.Background(),
		callbackBody(`{"type":"member_joined_channel","user":"U1","channel":"C1","event_ts":"1700000001.000100"}`), time.Now())
	second := c.ClassifyEvent(context.Background(),
		callbackBody(`{"type":"member_joined_channel","user":"U1","channel":"C1","event_ts":"1700000002.000200"}`), time.Now())

	if first.Timestamp != "1700000001.000100" {
		t.Errorf("timestamp = %q, want event_ts carried through", first.Timestamp)
	}
	if first.DedupKey() == second.DedupKey() {
		t.Errorf("distinct lifecycle events share dedup key %q", first.DedupKey())
	}
}

func TestClassifyUnknownShapesDegrade(t *testing.T) {
	t.Parallel()

	c := New(botUserID, nil)
	cases := []struct {
		name string
		body []byte
	}{
		{"unknown inner type", callbackBody(`{"type":"reaction_added","user":"U1"}`)},
		{"not json", []byte("definitely not json")},
		{"empty object", []byte("{}")},
		{"wrong outer type", []byte(`{"type":"app_rate_limited"}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			evt := c.ClassifyEvent(context.Background(), tc.body, time.Now())
			if evt == nil {
				t.Fatal("classification must never return nil")
			}
			if evt.Kind != event.KindLifecycle {
				t.Errorf("kind = %q, want lifecycle", evt.Kind)
			}
			if evt.Text != "" {
				t.Errorf("degraded event should carry empty text, got %q", evt.Text)
			}
		})
	}
}

func TestClassifyRawPayloadIsInnerEvent(t *testing.T) {
	t.Parallel()

	c := New(botUserID, nil)
	inner := `{"type":"message","user":"U1","text":"payload check","ts":"1.5","channel":"C1"}`

	evt := c.ClassifyEvent(context.Background(), callbackBody(inner), time.Now())
	if string(evt.RawPayload) != inner {
		t.Errorf("raw payload = %s, want inner event object", evt.RawPayload)
	}
}

func TestChallenge(t *testing.T) {
	t.Parallel()

	got, ok := Challenge([]byte(`{"type":"url_verification","challenge":"abc123","token":"tk"}`))
	if !ok || got != "abc123" {
		t.Errorf("Challenge = %q, %v", got, ok)
	}

	if _, ok := Challenge(callbackBody(`{"type":"message"}`)); ok {
		t.Error("event_callback must not be treated as a challenge")
	}
	if _, ok := Challenge([]byte("not json")); ok {
		t.Error("garbage must not be treated as a challenge")
	}
}

func TestClassifyInteractive(t *testing.T) {
	t.Parallel()

	c := New(botUserID, nil)
	payload := []byte(`{
		"type": "block_actions",
		"user": {"id": "U7", "username": "casey"},
		"channel": {"id": "C3", "name": "ops"},
		"message": {"ts": "1700.9", "thread_ts": "1700.1"},
		"actions": [{"action_id": "approve", "value": "deploy-42"}]
	}`)

	evt := c.ClassifyInteractive(context.Background(), payload, time.Now())
	if evt.Kind != event.KindInteractiveAction {
		t.Fatalf("kind = %q, want interactive_action", evt.Kind)
	}
	if evt.ChannelID != "C3" || evt.SenderID != "U7" {
		t.Errorf("channel/sender = %q/%q", evt.ChannelID, evt.SenderID)
	}
	if evt.Text != "deploy-42" {
		t.Errorf("text = %q, want first action value", evt.Text)
	}
}

func TestClassifyInteractiveGarbage(t *testing.T) {
	t.Parallel()

	c := New(botUserID, nil)
	evt := c.ClassifyInteractive(context.Background(), []byte("%%%"), time.Now())
	if evt.Kind != event.KindLifecycle {
		t.Errorf("kind = %q, want lifecycle", evt.Kind)
	}
}

func TestClassifyResolvesNames(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{
		channels: map[string]string{"C1": "ops"},
		users:    map[string]string{"U1": "casey"},
	}
	c := New(botUserID, dir)
	body := callbackBody(`{"type":"message","user":"U1","text":"hi","ts":"1.6","channel":"C1"}`)

	evt := c.ClassifyEvent(context.Background(), body, time.Now())
	if evt.ChannelName != "ops" {
		t.Errorf("channel name = %q, want ops", evt.ChannelName)
	}
	if evt.SenderName != "casey" {
		t.Errorf("sender name = %q, want casey", evt.SenderName)
	}
}
