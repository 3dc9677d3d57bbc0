package handler

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	gwerrors "github.com/droidagent/slack-gateway-go/internal/errors"
	"github.com/droidagent/slack-gateway-go/internal/event"
)

// PromptInvoker completes a prompt against an external model. The gateway
// treats the model as an opaque collaborator; no reasoning happens here.
type PromptInvoker interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// promptHandler sends the event payload to a model, instructed by a prompt
// file. The file is re-read on every invocation so prompt edits take
// effect without a restart, matching how rule reloads behave.
type promptHandler struct {
	ref     string
	path    string
	invoker PromptInvoker
}

func newPromptHandler(ref, path string, invoker PromptInvoker) (*promptHandler, error) {
	// Fail resolution, not dispatch, when the prompt is unreadable.
	if _, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", gwerrors.ErrHandlerNotFound, ref, err)
	}
	return &promptHandler{
		ref:     ref,
		path:    path,
		invoker: invoker,
	}, nil
}

func (h *promptHandler) Kind() string { return "prompt" }
func (h *promptHandler) Ref() string  { return h.ref }

// Invoke hands the raw event payload to the model as the user message.
// The reply threads onto the source message, matching how the agent
// responses are read in practice.
func (h *promptHandler) Invoke(ctx context.Context, evt *event.Event) (*Result, error) {
	raw, err := os.ReadFile(h.path)
	if err != nil {
		return nil, fmt.Errorf("prompt %s: %w", h.ref, err)
	}

	text, err := h.invoker.Complete(ctx, string(raw), string(evt.RawPayload))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", gwerrors.ErrHandlerTimeout, h.ref)
		}
		return nil, fmt.Errorf("prompt %s: %w", h.ref, err)
	}

	return &Result{
		ResponseText: text,
		ThreadRef:    evt.ReplyThread(),
		Visibility:   VisibilityBroadcast,
	}, nil
}

// OpenAIInvoker implements PromptInvoker over the OpenAI chat completions API.
type OpenAIInvoker struct {
	client openai.Client
	model  shared.ChatModel
}

// NewOpenAIInvoker creates an invoker for the given API key and model.
// Returns nil if apiKey is empty (prompt handlers disabled).
func NewOpenAIInvoker(apiKey, model string) *OpenAIInvoker {
	if apiKey == "" {
		return nil
	}
	return &OpenAIInvoker{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  shared.ChatModel(model),
	}
}

// Complete runs a single non-streaming chat completion.
func (o *OpenAIInvoker) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userMessage),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
