// Package runner coordinates the async request pipeline: one goroutine per
// outstanding send, with outcomes delivered back to the update loop as
// settle events. A session's pending flag (enforced by the registry) is the
// only serialization needed, so sessions progress fully independently.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/googleapi"

	"github.com/termgpt/termgpt/pkg/models"
	"github.com/termgpt/termgpt/pkg/session"
	"github.com/termgpt/termgpt/pkg/store"
)

// DefaultTimeout bounds a remote call that never returns.
const DefaultTimeout = 120 * time.Second

// Coordinator turns user messages into settled requests without blocking
// the interface.
type Coordinator struct {
	reg      *session.Registry
	provider models.Provider
	model    string
	timeout  time.Duration
	results  chan session.Settle
}

func New(reg *session.Registry, provider models.Provider, modelName string, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Coordinator{
		reg:      reg,
		provider: provider,
		model:    modelName,
		timeout:  timeout,
		results:  make(chan session.Settle, 16),
	}
}

// Results emits one settle per accepted send. The UI pumps this channel
// into its update loop; session state is only mutated there.
func (c *Coordinator) Results() <-chan session.Settle {
	return c.results
}

// Send accepts a user message for the given session and starts the remote
// call in the background. It returns immediately: session.ErrBusy when a
// request is already in flight, session.ErrNotFound for unknown ids.
func (c *Coordinator) Send(ctx context.Context, sessionID, text string) error {
	requestID := uuid.New().String()
	history, err := c.reg.BeginRequest(sessionID, requestID, text)
	if err != nil {
		return err
	}

	slog.Info("Dispatching request", "session", sessionID, "request", requestID, "historyLen", len(history))
	go c.complete(ctx, sessionID, requestID, history)
	return nil
}

func (c *Coordinator) complete(ctx context.Context, sessionID, requestID string, history []store.Message) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chat := make([]models.ChatMessage, 0, len(history))
	for _, m := range history {
		chat = append(chat, models.ChatMessage{Role: m.Role, Content: m.Content})
	}

	res := session.Settle{SessionID: sessionID, RequestID: requestID}

	reply, err := c.provider.Complete(ctx, c.model, chat)
	switch {
	case err != nil:
		res.Failure = c.summarize(err)
		slog.Error("Request failed", "session", sessionID, "request", requestID, "error", err)
	case strings.TrimSpace(reply) == "":
		res.Failure = "model returned an empty reply"
		slog.Error("Request returned empty reply", "session", sessionID, "request", requestID)
	default:
		res.Reply = reply
		slog.Info("Request succeeded", "session", sessionID, "request", requestID)
	}

	// Blocking send: a settle must never be dropped, or the session's
	// pending flag would leak.
	c.results <- res
}

// summarize converts a remote failure into a short, user-readable cause.
func (c *Coordinator) summarize(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("request timed out after %s", c.timeout)
	}
	if errors.Is(err, context.Canceled) {
		return "request canceled"
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			return fmt.Sprintf("authentication failed (HTTP %d)", apiErr.Code)
		case apiErr.Code == 429:
			return "quota exhausted (HTTP 429)"
		case apiErr.Code == 404:
			return fmt.Sprintf("model %q unavailable (HTTP 404)", c.model)
		case apiErr.Code >= 500:
			return fmt.Sprintf("upstream error (HTTP %d)", apiErr.Code)
		}
	}

	return strings.TrimSpace(err.Error())
}
