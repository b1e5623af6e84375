// AIDM - terminal client for the AI Dungeon Master agent service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"aidm/internal/backend"
	"aidm/internal/config"
	"aidm/internal/game"
	"aidm/internal/store"
	"aidm/internal/tui"
)

func main() {
	transcriptID := flag.String("transcript", "", "print the archived transcript for a session id and exit")
	listSessions := flag.Bool("sessions", false, "list archived sessions and exit")
	flag.Parse()

	// A missing .env just means plain environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	// stdout belongs to the terminal UI; structured logs go to a file.
	if err := setupLogging(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "failed to set up logging:", err)
		os.Exit(1)
	}

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open transcript archive:", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("failed to close transcript archive", "error", closeErr)
		}
	}()

	if *listSessions {
		printSessions(repo)
		return
	}
	if *transcriptID != "" {
		printTranscript(repo, *transcriptID)
		return
	}

	client := backend.NewClient(cfg.BackendURL, cfg.HTTPTimeout)
	orch := game.New(client, repo, game.Options{
		PollInterval: cfg.PollInterval,
		PollTimeout:  cfg.PollTimeout,
		Streaming:    cfg.Streaming,
	})

	slog.Info("starting session", "backend", cfg.BackendURL, "streaming", cfg.Streaming)

	program := tea.NewProgram(tui.New(orch), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "terminal UI failed:", err)
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printSessions(repo store.Repository) {
	sessions, err := repo.Sessions(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to list sessions:", err)
		os.Exit(1)
	}
	if len(sessions) == 0 {
		fmt.Println("no archived sessions")
		return
	}
	for _, s := range sessions {
		fmt.Printf("%s  %-18s  %s\n", s.SessionID, s.Phase, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
}

func printTranscript(repo store.Repository, sessionID string) {
	messages, err := repo.Transcript(context.Background(), sessionID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load transcript:", err)
		os.Exit(1)
	}
	if len(messages) == 0 {
		fmt.Println("no transcript found for session", sessionID)
		return
	}
	for _, msg := range messages {
		fmt.Printf("[%s] %s\n", msg.Sender, msg.Text)
	}
}
