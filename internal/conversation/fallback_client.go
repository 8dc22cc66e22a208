package conversation

import (
	"context"
	"errors"

	"github.com/wolfman30/appointment-agent/pkg/logging"
)

// ErrEmptyCompletion marks a response that carries neither text nor a tool
// selection.
var ErrEmptyCompletion = errors.New("conversation: model returned an empty completion")

// FallbackLLMClient asks the primary model to select an operation and hands
// the same request, tools included, to the fallback when the primary errors
// or answers with nothing usable. A cancelled request is never retried.
type FallbackLLMClient struct {
	primary  LLMClient
	fallback LLMClient
	logger   *logging.Logger
}

// NewFallbackLLMClient wraps primary. A nil fallback leaves primary alone in
// charge.
func NewFallbackLLMClient(primary, fallback LLMClient, logger *logging.Logger) *FallbackLLMClient {
	if primary == nil {
		panic("conversation: primary llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackLLMClient{
		primary:  primary,
		fallback: fallback,
		logger:   logger.Component("conversation.llm"),
	}
}

func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := complete(ctx, c.primary, req)
	if err == nil {
		return resp, nil
	}

	c.logger.Warn("primary model failed",
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
		"tools", len(req.Tools),
	)
	if c.fallback == nil || ctx.Err() != nil {
		return LLMResponse{}, err
	}

	fallbackResp, fallbackErr := complete(ctx, c.fallback, req)
	if fallbackErr != nil {
		c.logger.Error("fallback model failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return LLMResponse{}, fallbackErr
	}

	c.logger.Info("fallback model answered", "tool_selected", fallbackResp.ToolCall != nil)
	return fallbackResp, nil
}

func complete(ctx context.Context, llm LLMClient, req LLMRequest) (LLMResponse, error) {
	resp, err := llm.Complete(ctx, req)
	if err != nil {
		return LLMResponse{}, err
	}
	if resp.ToolCall == nil && resp.Text == "" {
		return LLMResponse{}, ErrEmptyCompletion
	}
	return resp, nil
}
