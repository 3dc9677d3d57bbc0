package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	gwerrors "github.com/droidagent/slack-gateway-go/internal/errors"
	"github.com/droidagent/slack-gateway-go/internal/event"
)

// scriptHandler runs an executable with the event payload as its single
// argument and parses its stdout as a JSON response.
type scriptHandler struct {
	ref  string
	path string
}

func newScriptHandler(ref, path string) *scriptHandler {
	return &scriptHandler{ref: ref, path: path}
}

func (h *scriptHandler) Kind() string { return "script" }
func (h *scriptHandler) Ref() string  { return h.ref }

// scriptResponse is the JSON contract scripts print on stdout.
type scriptResponse struct {
	Text        string `json:"text"`
	Channel     string `json:"channel,omitempty"`
	ThreadTS    string `json:"thread_ts,omitempty"`
	Visibility  string `json:"visibility,omitempty"`
	FileContent string `json:"file_content,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Invoke executes the script with the raw event payload as argv[1].
// The context deadline kills the process; a killed invocation is reported as
// ErrHandlerTimeout so the dispatcher can distinguish it from a script bug.
func (h *scriptHandler) Invoke(ctx context.Context, evt *event.Event) (*Result, error) {
	payload := evt.RawPayload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	cmd := exec.CommandContext(ctx, h.path, string(payload))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// A killed script can leave children holding the output pipes open;
	// stop waiting on them shortly after cancellation.
	cmd.WaitDelay = 2 * time.Second

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %s", gwerrors.ErrHandlerTimeout, h.ref)
	}
	if err != nil {
		return nil, fmt.Errorf("script %s: %w: %s", h.ref, err, firstLine(stderr.String()))
	}

	var resp scriptResponse
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		return nil, fmt.Errorf("script %s: invalid JSON response: %w", h.ref, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("script %s: %w", h.ref, errors.New(resp.Error))
	}

	visibility := VisibilityBroadcast
	if resp.Visibility == string(VisibilitySenderOnly) {
		visibility = VisibilitySenderOnly
	}

	return &Result{
		ResponseText:  resp.Text,
		TargetChannel: resp.Channel,
		ThreadRef:     resp.ThreadTS,
		Visibility:    visibility,
		FileContent:   resp.FileContent,
	}, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
