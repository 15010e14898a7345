package ollama

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
)

// ErrNotRunning is returned by EnsureReady when no server answers.
var ErrNotRunning = errors.New("Ollama is not running. Start it with: ollama serve")

// EnsureReady verifies the server is up, pulls any of chatModel and models
// that are missing, then sends one short chat to load chatModel into memory.
// Progress goes to w. A failed warm-up is reported but not returned.
func EnsureReady(ctx context.Context, c *Client, chatModel string, models []string, w io.Writer) error {
	if !c.IsRunning(ctx) {
		return ErrNotRunning
	}

	installed, err := c.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, model := range wanted(chatModel, models) {
		if hasModel(installed, model) {
			fmt.Fprintf(w, "model %s: ready\n", model)
			continue
		}
		fmt.Fprintf(w, "model %s: pulling...\n", model)
		if err := c.PullModel(ctx, model, progressPrinter(w)); err != nil {
			return fmt.Errorf("pulling model %s: %w", model, err)
		}
		fmt.Fprintf(w, "model %s: ready\n", model)
	}

	if chatModel != "" {
		warmUp(ctx, c, chatModel, w)
	}
	return nil
}

func wanted(chatModel string, models []string) []string {
	all := append([]string{chatModel}, models...)
	out := all[:0]
	for _, m := range all {
		if m != "" && !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out
}

// hasModel matches name exactly or with a tag suffix such as ":latest".
func hasModel(installed []string, name string) bool {
	return slices.ContainsFunc(installed, func(m string) bool {
		return m == name || strings.HasPrefix(m, name+":")
	})
}

func progressPrinter(w io.Writer) func(PullProgress) {
	return func(p PullProgress) {
		if p.Total <= 0 {
			fmt.Fprintf(w, "  %s\n", p.Status)
			return
		}
		fmt.Fprintf(w, "  %s %d%%\n", p.Status, p.Completed*100/p.Total)
	}
}

func warmUp(ctx context.Context, c *Client, model string, w io.Writer) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	fmt.Fprintf(w, "model %s: warming up...\n", model)
	if _, err := c.Chat(ctx, model, []Message{{Role: "user", Content: "ping"}}, nil, nil); err != nil {
		fmt.Fprintf(w, "model %s: warm-up failed (non-fatal): %v\n", model, err)
		return
	}
	fmt.Fprintf(w, "model %s: warm\n", model)
}
