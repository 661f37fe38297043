// Package models defines the contract for remote completion providers.
package models

import (
	"context"

	"github.com/termgpt/termgpt/pkg/store"
)

// ChatMessage is one turn of conversation context sent to the provider.
type ChatMessage struct {
	Role    store.Role
	Content string
}

// Provider is a remote LLM endpoint. Complete is the only blocking call in
// the system; callers bound it with a context deadline.
type Provider interface {
	// List returns the names of available models.
	List(ctx context.Context) ([]string, error)

	// Complete sends the full ordered history of one session and returns
	// a single reply. An empty reply is an error.
	Complete(ctx context.Context, modelName string, history []ChatMessage) (string, error)
}
