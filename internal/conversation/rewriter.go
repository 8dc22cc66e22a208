package conversation

import (
	"context"
	"strings"

	"github.com/wolfman30/appointment-agent/pkg/logging"
)

const rephrasePrompt = `You rewrite appointment details for a customer chatting with a booking assistant.
Return the details as a short friendly message. Keep every value exactly as given,
including the user id, dates and times. Do not add information that is not in the input.`

const explainPrompt = `You explain problems to customers of an appointment booking assistant.
Given an error message, reply with one or two plain sentences that tell the customer what
went wrong and what they can do. Do not mention databases, stack traces or internal systems.`

// Rewriter runs the two auxiliary text services: rephrasing formatted
// records and explaining faults. Both return their input when the model
// cannot help, so callers always have something to show.
type Rewriter struct {
	client    LLMClient
	model     string
	maxTokens int32
	logger    *logging.Logger
}

// NewRewriter builds a Rewriter. A nil client makes it a pass-through.
func NewRewriter(client LLMClient, model string, maxTokens int32, logger *logging.Logger) *Rewriter {
	if logger == nil {
		logger = logging.Default()
	}
	if maxTokens <= 0 {
		maxTokens = 400
	}
	return &Rewriter{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		logger:    logger.Component("conversation.rewriter"),
	}
}

// Rephrase turns a labeled record block into conversational text.
func (r *Rewriter) Rephrase(ctx context.Context, text string) string {
	return r.rewrite(ctx, rephrasePrompt, text, "rephrase")
}

// Explain turns a raw fault into customer-facing text.
func (r *Rewriter) Explain(ctx context.Context, fault string) string {
	return r.rewrite(ctx, explainPrompt, fault, "explain")
}

func (r *Rewriter) rewrite(ctx context.Context, system, input, kind string) string {
	if r == nil || r.client == nil || strings.TrimSpace(input) == "" {
		return input
	}
	resp, err := r.client.Complete(ctx, LLMRequest{
		Model:     r.model,
		System:    []string{system},
		Messages:  []ChatMessage{{Role: ChatRoleUser, Content: input}},
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		r.logger.Warn("rewrite failed, returning raw text", "kind", kind, "error", err)
		return input
	}
	if strings.TrimSpace(resp.Text) == "" {
		return input
	}
	return resp.Text
}
