package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"

	"codexchat/codex"
	"codexchat/config"
	"codexchat/core"
	"codexchat/store"
)

const sysPrompt = "You are a helpful assistant."

func main() {
	cfgPath := os.Getenv("CODEXCHAT_CONFIG")
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      cfg.SlogLevel(),
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	sessions, err := store.NewSQLiteStore(cfg.StorePath, logger)
	if err != nil {
		logger.Error("failed to open session store", "path", cfg.StorePath, "err", err)
		os.Exit(1)
	}
	defer sessions.Close()

	model := codex.NewModel(cfg.Model, codex.NewFileStore(cfg.CredentialsPath, logger))
	if cfg.BaseURL != "" {
		model.SetBaseURL(cfg.BaseURL)
	}

	if err := model.WarmCredentials(context.Background()); err != nil {
		if errors.Is(err, codex.ErrMissingCredentials) {
			logger.Error("no credentials found; complete the login flow first", "path", cfg.CredentialsPath)
			os.Exit(1)
		}
		logger.Warn("credential check failed", "err", err)
	}

	sessionID := uuid.NewString()
	logger.Info("starting session", "model", cfg.Model, "session", sessionID)

	client := &http.Client{}
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("\033[34mYou:\033[0m ")
		input, err := reader.ReadString('\n')
		if err != nil {
			logger.Error("failed to read input", "err", err)
			os.Exit(1)
		}
		input = strings.TrimSpace(input)

		if input == ":q" {
			break
		}
		if input == "" {
			continue
		}

		if err := runTurn(logger, sessions, model, client, sessionID, input); err != nil {
			logger.Error("turn failed", "err", err)
		}

		// refresh ahead of time while the user is typing, so the next turn's
		// stricter per-call check rarely blocks on the token endpoint
		if err := model.WarmCredentials(context.Background()); err != nil {
			logger.Warn("credential check failed", "err", err)
		}
	}

	printUsage(sessions.Usage(sessionID))
}

func runTurn(
	logger *slog.Logger,
	sessions store.Store,
	model core.Model,
	client *http.Client,
	sessionID string,
	input string,
) error {
	msgs := sessions.Messages(sessionID)
	stored := len(msgs)

	if stored == 0 {
		msgs = append(msgs, core.NewSystemMessage(sysPrompt))
	}
	msgs = append(msgs, core.NewUserText(input))

	stream, err := model.OpenStream(context.Background(), client, msgs, nil)
	if err != nil {
		return err
	}

	events := make(chan core.Event, 1)
	go stream.Consume(context.Background(), events)

	fmt.Print("\033[32mAssistant:\033[0m ")

	var resp *core.Response
	for ev := range events {
		switch ev.Type {
		case core.EvDelta:
			fmt.Print(ev.Delta)
		case core.EvToolCall:
			// tool execution lives outside this program; surface the
			// request so the user sees what the model wanted
			fmt.Printf("\n[tool call: %s %s]\n", ev.Call.Name, ev.Call.Arguments)
		case core.EvResp:
			r := ev.Response
			resp = &r
		case core.EvError:
			fmt.Println()
			return ev.Err
		}
	}
	fmt.Println()

	if resp == nil {
		return fmt.Errorf("stream ended without a response")
	}

	msgs = append(msgs, resp.Messages()...)
	if err := sessions.Extend(sessionID, msgs[stored:], resp.Usage); err != nil {
		logger.Warn("failed to persist turn", "err", err)
	}

	return nil
}

func printUsage(u core.Usage) {
	fmt.Printf("\n\033[33;1mUsage:\033[0m\n")
	fmt.Printf("  \033[33mInput:\033[0m %d\n", u.Input)
	fmt.Printf("    \033[33mCached:\033[0m %d\n", u.Cached)
	fmt.Printf("  \033[33mOutput:\033[0m %d\n", u.Output)
	fmt.Printf("  \033[33mTotal:\033[0m %d\n", u.Total)
}
