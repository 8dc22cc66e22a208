package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLLM returns canned responses in order and records requests.
type stubLLM struct {
	responses []LLMResponse
	errs      []error
	requests  []LLMRequest
}

func (s *stubLLM) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.requests = append(s.requests, req)
	i := len(s.requests) - 1
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return LLMResponse{}, err
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return LLMResponse{}, nil
}

func TestRewriter_Rephrase(t *testing.T) {
	llm := &stubLLM{responses: []LLMResponse{{Text: "Your appointment is on 10 March at 2 PM."}}}
	rw := NewRewriter(llm, "model", 0, nil)

	got := rw.Rephrase(context.Background(), "Appointment date : 10-03-2025")
	assert.Equal(t, "Your appointment is on 10 March at 2 PM.", got)
	require.Len(t, llm.requests, 1)
	assert.Equal(t, "Appointment date : 10-03-2025", llm.requests[0].Messages[0].Content)
	assert.Empty(t, llm.requests[0].Tools)
}

func TestRewriter_FallsBackToRawText(t *testing.T) {
	ctx := context.Background()

	failing := NewRewriter(&stubLLM{errs: []error{errors.New("down")}}, "model", 0, nil)
	assert.Equal(t, "connection refused", failing.Explain(ctx, "connection refused"))

	empty := NewRewriter(&stubLLM{responses: []LLMResponse{{Text: "  "}}}, "model", 0, nil)
	assert.Equal(t, "raw", empty.Rephrase(ctx, "raw"))

	var nilRewriter *Rewriter
	assert.Equal(t, "raw", nilRewriter.Rephrase(ctx, "raw"))
	assert.Equal(t, "raw", NewRewriter(nil, "", 0, nil).Explain(ctx, "raw"))
}

func TestFallbackLLMClient(t *testing.T) {
	ctx := context.Background()
	req := LLMRequest{Messages: []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}}

	primary := &stubLLM{responses: []LLMResponse{{Text: "primary"}}}
	resp, err := NewFallbackLLMClient(primary, &stubLLM{}, nil).Complete(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Text)

	primary = &stubLLM{errs: []error{errors.New("primary down")}}
	fallback := &stubLLM{responses: []LLMResponse{{Text: "fallback"}}}
	resp, err = NewFallbackLLMClient(primary, fallback, nil).Complete(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Text)

	primary = &stubLLM{errs: []error{errors.New("primary down")}}
	_, err = NewFallbackLLMClient(primary, nil, nil).Complete(ctx, req)
	assert.EqualError(t, err, "primary down")

	primary = &stubLLM{errs: []error{errors.New("primary down")}}
	fallback = &stubLLM{errs: []error{errors.New("fallback down")}}
	_, err = NewFallbackLLMClient(primary, fallback, nil).Complete(ctx, req)
	assert.EqualError(t, err, "fallback down")
}

func TestFallbackLLMClient_EmptyPrimaryAnswer(t *testing.T) {
	ctx := context.Background()
	req := LLMRequest{Messages: []ChatMessage{{Role: ChatRoleUser, Content: "book me"}}}

	fallback := &stubLLM{responses: []LLMResponse{{ToolCall: &ToolCall{Name: "search_data"}}}}
	resp, err := NewFallbackLLMClient(&stubLLM{}, fallback, nil).Complete(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, resp.ToolCall)
	assert.Equal(t, "search_data", resp.ToolCall.Name)

	_, err = NewFallbackLLMClient(&stubLLM{}, nil, nil).Complete(ctx, req)
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestFallbackLLMClient_CancelledRequestIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fallback := &stubLLM{responses: []LLMResponse{{Text: "fallback"}}}
	_, err := NewFallbackLLMClient(&stubLLM{errs: []error{context.Canceled}}, fallback, nil).
		Complete(ctx, LLMRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fallback.requests)
}
