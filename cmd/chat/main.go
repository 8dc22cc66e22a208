// Command chat talks to the booking assistant from a terminal, using the
// same dispatcher and stores as the API server.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/appointment-agent/internal/agent"
	"github.com/wolfman30/appointment-agent/internal/app/bootstrap"
	appconfig "github.com/wolfman30/appointment-agent/internal/config"
	"github.com/wolfman30/appointment-agent/pkg/logging"
)

const defaultSession = "01308457363"

type responder interface {
	Respond(ctx context.Context, sessionKey, utterance string) (agent.Reply, error)
}

func main() {
	session := flag.String("session", defaultSession, "conversation session key")
	flag.Parse()

	cfg := appconfig.Load()
	// Keep logs out of the conversation unless asked for.
	logger := logging.NewWithWriter(os.Stderr, envOr("LOG_LEVEL", "error"))

	ctx := context.Background()
	services, err := bootstrap.Build(ctx, cfg, prometheus.NewRegistry(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	defer services.Close()

	if err := loop(ctx, services.Dispatcher, *session, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "chat: %v\n", err)
		os.Exit(1)
	}
}

// loop reads one utterance per line until "exit" or end of input.
func loop(ctx context.Context, r responder, session string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if strings.EqualFold(text, "exit") {
			return nil
		}
		reply, err := r.Respond(ctx, session, text)
		if err != nil {
			fmt.Fprintf(out, "Assistant: (error) %v\n", err)
			continue
		}
		fmt.Fprintf(out, "Assistant: %s\n", reply.Text)
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
