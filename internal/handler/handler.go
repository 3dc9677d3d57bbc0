// Package handler defines the invocation boundary to external handlers.
// The gateway core never implements handler logic itself: a handler is either
// an executable script or a prompt-driven agent, both reached through the
// Handler interface. The dispatcher depends only on this interface.
package handler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gwerrors "github.com/droidagent/slack-gateway-go/internal/errors"
	"github.com/droidagent/slack-gateway-go/internal/event"
)

// Visibility controls who sees a posted response.
type Visibility string

const (
	VisibilityBroadcast  Visibility = "broadcast"   // visible to the whole channel
	VisibilitySenderOnly Visibility = "sender_only" // ephemeral, visible to the sender
)

// Result is the normalized output of one handler invocation. It is
// constructed per invocation and never persisted.
type Result struct {
	ResponseText  string
	TargetChannel string     // empty = reply in the source event's channel
	ThreadRef     string     // optional thread timestamp for a threaded reply
	Visibility    Visibility // defaults to broadcast
	FileContent   string     // optional transcript uploaded alongside the response
}

// Handler is the capability interface every external handler implements.
// Invoke must honor ctx cancellation: when the deadline passes the caller
// stops waiting, though the underlying process may run to completion.
type Handler interface {
	// Kind reports the handler variant ("script" or "prompt") for metrics.
	Kind() string

	// Ref returns the reference this handler was resolved from.
	Ref() string

	// Invoke runs the handler against an event and returns its result.
	Invoke(ctx context.Context, evt *event.Event) (*Result, error)
}

// Handler reference prefixes as they appear in rule definitions.
const (
	scriptPrefix = "script:"
	promptPrefix = "prompt:"
)

// RegistryConfig holds the pieces a Registry needs to resolve references.
type RegistryConfig struct {
	ScriptsDir string
	PromptsDir string

	// PromptInvoker runs prompt-driven handlers. Nil disables prompt refs,
	// which then fail resolution at rule load time.
	PromptInvoker PromptInvoker
}

// Registry resolves handler references from rule definitions to concrete
// handlers. Resolution is cached; the registry is safe for concurrent use
// and read-only from the dispatcher's point of view.
type Registry struct {
	cfg RegistryConfig

	mu    sync.Mutex
	cache map[string]Handler
}

// NewRegistry creates a handler registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		cfg:   cfg,
		cache: make(map[string]Handler),
	}
}

// Resolve maps a handler reference ("script:name" or "prompt:name") to a
// concrete handler. It fails with ErrHandlerNotFound when the reference has
// an unknown scheme or its target does not exist, which rule loading treats
// as a configuration error.
func (r *Registry) Resolve(ref string) (Handler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.cache[ref]; ok {
		return h, nil
	}

	h, err := r.build(ref)
	if err != nil {
		return nil, err
	}
	r.cache[ref] = h
	return h, nil
}

func (r *Registry) build(ref string) (Handler, error) {
	switch {
	case strings.HasPrefix(ref, scriptPrefix):
		name := strings.TrimPrefix(ref, scriptPrefix)
		path, err := r.existingPath(r.cfg.ScriptsDir, name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", gwerrors.ErrHandlerNotFound, ref, err)
		}
		return newScriptHandler(ref, path), nil

	case strings.HasPrefix(ref, promptPrefix):
		if r.cfg.PromptInvoker == nil {
			return nil, fmt.Errorf("%w: %s: prompt handlers are not configured", gwerrors.ErrHandlerNotFound, ref)
		}
		name := strings.TrimPrefix(ref, promptPrefix)
		path, err := r.existingPath(r.cfg.PromptsDir, name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", gwerrors.ErrHandlerNotFound, ref, err)
		}
		return newPromptHandler(ref, path, r.cfg.PromptInvoker)

	default:
		return nil, fmt.Errorf("%w: %s: reference must start with %q or %q",
			gwerrors.ErrHandlerNotFound, ref, scriptPrefix, promptPrefix)
	}
}

func (r *Registry) existingPath(dir, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty target name")
	}
	// Refuse path traversal out of the configured directory.
	if strings.Contains(name, "..") {
		return "", fmt.Errorf("target name must not contain %q", "..")
	}
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("target %s is a directory", path)
	}
	return path, nil
}
