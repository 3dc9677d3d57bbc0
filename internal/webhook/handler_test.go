package webhook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/droidagent/slack-gateway-go/internal/classify"
	"github.com/droidagent/slack-gateway-go/internal/dispatch"
	"github.com/droidagent/slack-gateway-go/internal/handler"
	"github.com/droidagent/slack-gateway-go/internal/logger"
	"github.com/droidagent/slack-gateway-go/internal/metrics"
	"github.com/droidagent/slack-gateway-go/internal/outbound"
	"github.com/droidagent/slack-gateway-go/internal/rules"
	"github.com/droidagent/slack-gateway-go/internal/verify"
)

const (
	testSecret = "8f742231b10e8888abcd99yyyzzz85a5"
	testBotID  = "UBOT42"
)

type safePoster struct {
	mu        sync.Mutex
	responses []*outbound.Response
}

func (p *safePoster) Post(_ context.Context, resp *outbound.Response) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !resp.Empty() {
		p.responses = append(p.responses, resp)
	}
	return nil
}

func (p *safePoster) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.responses)
}

type testGateway struct {
	handler *Handler
	poster  *safePoster
	router  *gin.Engine
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	gin.SetMode(gin.TestMode)

	scripts := t.TempDir()
	script := "#!/bin/sh\necho '{\"text\":\"ack\"}'\n"
	if err := os.WriteFile(filepath.Join(scripts, "ack.sh"), []byte(script), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	rulesPath := filepath.Join(t.TempDir(), "rules.yaml")
	rulesYAML := "rules:\n  - name: catch-all\n    handler: script:ack.sh\n"
	if err := os.WriteFile(rulesPath, []byte(rulesYAML), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	registry := handler.NewRegistry(handler.RegistryConfig{ScriptsDir: scripts})
	store, err := rules.NewStore(rulesPath, registry)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	verifier, err := verify.New(testSecret)
	if err != nil {
		t.Fatalf("verify.New: %v", err)
	}

	log := logger.NewWithWriter("error", io.Discard)
	m := metrics.New(prometheus.NewRegistry())
	poster := &safePoster{}

	h := NewHandler(HandlerConfig{
		Verifier:   verifier,
		Classifier: classify.New(testBotID, nil),
		Router: dispatch.NewRouter(dispatch.Config{
			Store:          store,
			Poster:         poster,
			Metrics:        m,
			Log:            log,
			HandlerTimeout: 5 * time.Second,
		}),
		Metrics: m,
		Logger:  log,
	})

	r := gin.New()
	r.POST("/slack/events", h.HandleEvents)
	r.POST("/slack/interactive", h.HandleInteractive)

	return &testGateway{handler: h, poster: poster, router: r}
}

// signedRequest builds a request carrying a valid signature for body.
func (g *testGateway) signedRequest(t *testing.T, path, body, contentType string) *http.Request {
	t.Helper()
	verifier, err := verify.New(testSecret)
	if err != nil {
		t.Fatalf("verify.New: %v", err)
	}
	ts := fmt.Sprintf("%d", time.Now().Unix())

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(verify.TimestampHeader, ts)
	req.Header.Set(verify.SignatureHeader, verifier.Sign(ts, []byte(body)))
	return req
}

func (g *testGateway) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := g.handler.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func messageBody(user, text, ts string) string {
	return fmt.Sprintf(`{"type":"event_callback","event":{"type":"message","user":%q,"text":%q,"ts":%q,"channel":"C1"}}`, user, text, ts)
}

func TestEventsEndpointDispatches(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	w := httptest.NewRecorder()
	req := g.signedRequest(t, "/slack/events", messageBody("U1", "hello", "1700.1"), "application/json")
	g.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	g.drain(t)
	if g.poster.count() != 1 {
		t.Errorf("responses = %d, want 1", g.poster.count())
	}
}

func TestEventsEndpointRejectsBadSignature(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	body := messageBody("U1", "hello", "1700.2")
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set(verify.TimestampHeader, fmt.Sprintf("%d", time.Now().Unix()))
	req.Header.Set(verify.SignatureHeader, "v0=deadbeef")

	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	g.drain(t)
	if g.poster.count() != 0 {
		t.Error("unverified requests must not be dispatched")
	}
}

func TestEventsEndpointRejectsMissingHeaders(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestEventsEndpointAnswersChallenge(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	body := `{"type":"url_verification","challenge":"xyzzy"}`
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, g.signedRequest(t, "/slack/events", body, "application/json"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "xyzzy") {
		t.Errorf("body = %q, want the challenge echoed", w.Body.String())
	}
	g.drain(t)
	if g.poster.count() != 0 {
		t.Error("challenges must not be dispatched")
	}
}

func TestEventsEndpointDeduplicatesRedelivery(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	body := messageBody("U1", "once", "1700.3")
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		g.router.ServeHTTP(w, g.signedRequest(t, "/slack/events", body, "application/json"))
		if w.Code != http.StatusOK {
			t.Fatalf("attempt %d: status = %d", i, w.Code)
		}
	}

	g.drain(t)
	if g.poster.count() != 1 {
		t.Errorf("responses = %d, want redeliveries collapsed to 1", g.poster.count())
	}
}

func TestEventsEndpointKeepsDistinctLifecycleEvents(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	// Same channel and user, different event_ts: two joins, not a
	// redelivery.
	for _, ts := range []string{"1700.6", "1700.7"} {
		body := fmt.Sprintf(`{"type":"event_callback","event":{"type":"member_joined_channel","user":"U1","channel":"C1","event_ts":%q}}`, ts)
		w := httptest.NewRecorder()
		g.router.ServeHTTP(w, g.signedRequest(t, "/slack/events", body, "application/json"))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	}

	g.drain(t)
	if g.poster.count() != 2 {
		t.Errorf("responses = %d, want both lifecycle events dispatched", g.poster.count())
	}
}

func TestEventsEndpointNeverDedupsWithoutTimestamp(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	body := `{"type":"event_callback","event":{"type":"channel_deleted","channel":"C1"}}`
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		g.router.ServeHTTP(w, g.signedRequest(t, "/slack/events", body, "application/json"))
		if w.Code != http.StatusOK {
			t.Fatalf("attempt %d: status = %d", i, w.Code)
		}
	}

	g.drain(t)
	if g.poster.count() != 2 {
		t.Errorf("responses = %d, want timestamp-less events passed through", g.poster.count())
	}
}

func TestEventsEndpointSkipsBotAuthored(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	w := httptest.NewRecorder()
	body := messageBody(testBotID, "my own echo", "1700.4")
	g.router.ServeHTTP(w, g.signedRequest(t, "/slack/events", body, "application/json"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	g.drain(t)
	if g.poster.count() != 0 {
		t.Error("bot-authored events must not produce responses")
	}
}

func TestInteractiveEndpointDispatches(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	payload := `{"type":"block_actions","user":{"id":"U7"},"channel":{"id":"C1"},"message":{"ts":"1700.5"},"actions":[{"value":"approve"}]}`
	form := url.Values{"payload": {payload}}.Encode()

	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, g.signedRequest(t, "/slack/interactive", form, "application/x-www-form-urlencoded"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	g.drain(t)
	if g.poster.count() != 1 {
		t.Errorf("responses = %d, want 1", g.poster.count())
	}
}

func TestInteractiveEndpointRejectsMissingPayload(t *testing.T) {
	t.Parallel()
	g := newTestGateway(t)

	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, g.signedRequest(t, "/slack/interactive", "notpayload=1", "application/x-www-form-urlencoded"))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestDedupSetEviction(t *testing.T) {
	t.Parallel()

	d := newDedupSet(3)
	for _, k := range []string{"a", "b", "c"} {
		if d.Seen(k) {
			t.Errorf("key %q reported seen on first insert", k)
		}
	}
	if !d.Seen("b") {
		t.Error("b should still be present")
	}

	// Inserting beyond capacity evicts the oldest.
	d.Seen("d")
	if d.Seen("a") {
		t.Error("a should have been evicted")
	}
}
