package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/appointment-agent/internal/agent"
)

type scriptedResponder struct {
	seen []string
}

func (s *scriptedResponder) Respond(ctx context.Context, sessionKey, utterance string) (agent.Reply, error) {
	s.seen = append(s.seen, sessionKey+"|"+utterance)
	if utterance == "boom" {
		return agent.Reply{}, errors.New("model unavailable")
	}
	return agent.Reply{Text: "ok: " + utterance}, nil
}

func TestLoop(t *testing.T) {
	r := &scriptedResponder{}
	var out bytes.Buffer

	err := loop(context.Background(), r, defaultSession, strings.NewReader("hello\n\nboom\nEXIT\nnever\n"), &out)
	require.NoError(t, err)

	assert.Equal(t, []string{"01308457363|hello", "01308457363|boom"}, r.seen)
	assert.Contains(t, out.String(), "Assistant: ok: hello")
	assert.Contains(t, out.String(), "Assistant: (error) model unavailable")
	assert.NotContains(t, out.String(), "never")
}

func TestLoop_EndOfInput(t *testing.T) {
	r := &scriptedResponder{}
	var out bytes.Buffer
	require.NoError(t, loop(context.Background(), r, "s", strings.NewReader("hi"), &out))
	assert.Equal(t, []string{"s|hi"}, r.seen)
}
