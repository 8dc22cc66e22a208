package conversation

import (
	"context"
	"strings"
	"time"
)

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn of a session's history.
type ChatMessage struct {
	ID        string    `json:"id,omitempty" dynamodbav:"id,omitempty"`
	Role      string    `json:"role" dynamodbav:"role"`
	Content   string    `json:"content" dynamodbav:"content"`
	CreatedAt time.Time `json:"created_at,omitempty" dynamodbav:"created_at"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// ToolParameter describes one argument of a tool. Type is a JSON schema
// primitive ("string" or "integer").
type ToolParameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// ToolSpec is one operation the model may select.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  []ToolParameter
}

// JSONSchema renders the parameters as a JSON schema object.
func (t ToolSpec) JSONSchema() map[string]any {
	props := make(map[string]any, len(t.Parameters))
	required := make([]any, 0, len(t.Parameters))
	for _, p := range t.Parameters {
		props[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// ToolCall is the model's selection of a tool with raw arguments. Numbers
// arrive as json.Number (Bedrock) or float64 (Gemini).
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	Tools       []ToolSpec
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMResponse struct {
	Text       string
	ToolCall   *ToolCall
	Usage      TokenUsage
	StopReason string
}

type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// FoldLeadingAssistant moves assistant turns that precede the first user
// turn into system notes. Sessions can open with a message the business
// sent first, and both Converse and Gemini require user-first history.
func FoldLeadingAssistant(msgs []ChatMessage) (notes []string, rest []ChatMessage) {
	for i, msg := range msgs {
		switch msg.Role {
		case ChatRoleAssistant:
			if content := strings.TrimSpace(msg.Content); content != "" {
				notes = append(notes, "Earlier message sent to the customer: "+content)
			}
		case ChatRoleSystem:
			if content := strings.TrimSpace(msg.Content); content != "" {
				notes = append(notes, content)
			}
		default:
			return notes, msgs[i:]
		}
	}
	return notes, nil
}
