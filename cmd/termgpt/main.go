// termgpt is a terminal multi-session chat client. Each conversation is a
// tab backed by an append-only JSONL transcript; replies come from the
// Gemini API without ever blocking the interface.
//
// Usage:
//
//	export GEMINI_API_KEY="your-api-key"
//	termgpt
//
// Commands:
//
//	/new            - Open a new chat tab
//	/close, /delete - Delete the current chat and its transcript
//	/rename <name>  - Rename the current chat
//	/copy           - Toggle the plain-text copy view
//	<message>       - Send a message to the model
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/termgpt/termgpt/pkg/config"
	"github.com/termgpt/termgpt/pkg/models/gemini"
	"github.com/termgpt/termgpt/pkg/runner"
	"github.com/termgpt/termgpt/pkg/session"
	"github.com/termgpt/termgpt/pkg/store/jsonl"
)

func main() {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		fmt.Println("Error: GEMINI_API_KEY environment variable not set.")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	defer f.Close()

	logLevel := parseLevel(cfg.LogLevel)
	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
	slog.Info("Logging initialized", "level", logLevel)

	provider, err := gemini.New(ctx, apiKey)
	if err != nil {
		slog.Error("Failed to initialize Gemini provider", "error", err)
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	defer provider.Close()

	// Best-effort startup check; a failure here only means the first send
	// will surface the real error.
	if names, err := provider.List(ctx); err != nil {
		slog.Warn("Couldn't list models at startup", "error", err)
	} else {
		slog.Info("Models available", "count", len(names))
	}

	reg := session.New(jsonl.New(cfg.HistoryDir))
	if err := reg.RestoreAll(); err != nil {
		slog.Error("Failed to restore sessions", "error", err)
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	coord := runner.New(reg, provider, cfg.Model, cfg.RequestTimeout)

	p := tea.NewProgram(initialModel(ctx, reg, coord), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v\n", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "TRACE":
		return gemini.LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
