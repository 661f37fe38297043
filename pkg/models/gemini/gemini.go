// Package gemini implements models.Provider on the Google Gemini API.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/termgpt/termgpt/pkg/models"
	"github.com/termgpt/termgpt/pkg/store"
)

// LevelTrace is a custom log level for detailed HTTP traffic.
const LevelTrace = slog.Level(-8)

const systemInstruction = "Make sure to respond in valid Markdown format. " +
	"If you include code, format it within triple backticks and specify the language."

// Provider implements models.Provider using the Google Gemini API.
type Provider struct {
	client *genai.Client
}

// New creates a Gemini-backed provider.
func New(ctx context.Context, apiKey string) (*Provider, error) {
	httpClient := &http.Client{
		Transport: &loggingTransport{
			base:   http.DefaultTransport,
			apiKey: apiKey,
		},
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Provider{client: client}, nil
}

type loggingTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// A custom http.Client bypasses the library's automatic API key
	// injection, so add the key header when it is missing.
	if t.apiKey != "" && req.Header.Get("x-goog-api-key") == "" && req.URL.Query().Get("key") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("x-goog-api-key", t.apiKey)
	}

	if !slog.Default().Enabled(req.Context(), LevelTrace) {
		return t.base.RoundTrip(req)
	}

	reqDump, err := httputil.DumpRequestOut(req, true)
	if err != nil {
		slog.Debug("Failed to dump Gemini request", "error", err)
	} else {
		slog.Debug("Gemini REST Request", "url", req.URL.String(), "dump", string(reqDump))
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	respDump, err := httputil.DumpResponse(resp, true)
	if err != nil {
		slog.Debug("Failed to dump Gemini response", "error", err)
	} else {
		slog.Debug("Gemini REST Response", "dump", string(respDump))
	}

	return resp, nil
}

// Close releases resources.
func (p *Provider) Close() {
	p.client.Close()
}

// List returns available model names.
func (p *Provider) List(ctx context.Context) ([]string, error) {
	iter := p.client.ListModels(ctx)
	var names []string
	for {
		model, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		slog.Debug("Found Gemini model", "name", model.Name)
		names = append(names, model.Name)
	}
	return names, nil
}

// Complete sends the full session history and returns one reply string.
func (p *Provider) Complete(ctx context.Context, modelName string, history []models.ChatMessage) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("empty history")
	}
	slog.Debug("Gemini.Complete", "model", modelName, "messageCount", len(history))

	gm := p.client.GenerativeModel(modelName)
	gm.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}

	var contents []*genai.Content
	for _, msg := range history {
		role := "user"
		if msg.Role == store.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}

	cs := gm.StartChat()
	cs.History = contents[:len(contents)-1]

	last := contents[len(contents)-1]
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", err
	}

	var reply strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				reply.WriteString(string(txt))
			}
		}
	}

	if strings.TrimSpace(reply.String()) == "" {
		return "", fmt.Errorf("model returned an empty reply")
	}
	return reply.String(), nil
}
