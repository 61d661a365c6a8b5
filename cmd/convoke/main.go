package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/macrae/convoke/internal/api"
	"github.com/macrae/convoke/internal/chat"
	"github.com/macrae/convoke/internal/client"
	"github.com/macrae/convoke/internal/config"
	"github.com/macrae/convoke/internal/engine"
	"github.com/macrae/convoke/internal/llmfactory"
	"github.com/macrae/convoke/internal/logging"
	"github.com/macrae/convoke/internal/observability"
	"github.com/macrae/convoke/internal/repl"
	"github.com/macrae/convoke/internal/store"
	"github.com/macrae/convoke/internal/tools"
)

func main() {
	remote := flag.String("remote", "", "talk to a running convoked at this base URL instead of running locally")
	flag.Parse()

	var err error
	if *remote != "" {
		err = runRemote(*remote)
	} else {
		err = run()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "convoke: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	configPath, err := config.DefaultPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logs go to a file (or nowhere) so the REPL stays clean.
	logger, cleanup := logging.SetupLoggerWithFile(cfg.Logging.Level, cfg.Logging.File)
	defer cleanup()
	slog.SetDefault(logger)

	shutdownOtel, err := observability.Setup(ctx, observability.DefaultConfig())
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer shutdownOtel(context.Background())

	mc, err := cfg.LLM.CurrentModel()
	if err != nil {
		return err
	}
	if err := config.ValidateAPIKeys(mc); err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	registry := tools.NewDefaultRegistry()
	executor := tools.NewExecutor(registry)

	factory := func(ctx context.Context, mc config.ModelConfig) (*engine.Loop, error) {
		gateway, err := llmfactory.NewGateway(ctx, mc, logger)
		if err != nil {
			return nil, err
		}
		return engine.NewLoop(st, gateway, executor, registry.ToDefinitions(),
			engine.WithLogger(logger),
			engine.WithSystemPrompt(systemPrompt),
		), nil
	}

	loop, err := factory(ctx, mc)
	if err != nil {
		return err
	}

	conv, err := newConversation(ctx, st, cfg, mc)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}

	r := repl.New(cfg, st, loop, factory, conv.ID, conv.CurrentThreadID)
	if err := r.Run(ctx); err != nil {
		return err
	}

	loop.Wait()
	return nil
}

// runRemote is a thin line-oriented shell over a convoked daemon. The
// daemon owns the loop, the store, and the model; this side only
// renders the event stream.
func runRemote(baseURL string) error {
	ctx := context.Background()
	c := client.New(baseURL)

	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("daemon at %s not reachable: %w", baseURL, err)
	}

	conv, err := c.CreateConversation(ctx, "default", "", "")
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	fmt.Printf("connected to %s (model %s)\n", baseURL, conv.Model)

	instructions := []chat.Instruction{{Kind: chat.InstructionSource, Value: "human"}}
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/exit" || text == "/quit" {
			return nil
		}

		err := c.SendMessage(ctx, conv.ID, text, instructions, func(ev api.StreamEvent) error {
			return printRemoteEvent(ev)
		})
		if err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func printRemoteEvent(ev api.StreamEvent) error {
	if ev.Type == "error" {
		fmt.Printf("error: %s\n", ev.Error)
		return nil
	}
	if ev.Message == nil {
		return nil
	}
	items, err := chat.UnmarshalItems(ev.Message.Items)
	if err != nil {
		return err
	}
	for _, item := range items {
		switch v := item.(type) {
		case chat.AssistantText:
			fmt.Println(v.Text)
		case chat.ToolCall:
			fmt.Printf("→ %s\n", v.Name)
		case chat.ToolResult:
			if v.IsError {
				fmt.Printf("✗ %s\n", v.ToolName)
			} else {
				fmt.Printf("✓ %s\n", v.ToolName)
			}
		}
	}
	return nil
}

func newConversation(ctx context.Context, st store.Store, cfg *config.Config, mc config.ModelConfig) (*chat.Conversation, error) {
	conv := chat.Conversation{
		ID:              chat.NewID(),
		Project:         "default",
		Provider:        mc.Provider,
		Model:           mc.Model,
		CurrentThreadID: chat.NewID(),
		CreatedAt:       time.Now().UTC(),
	}
	if err := st.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	if err := st.CreateThread(ctx, chat.Thread{
		ID:             conv.CurrentThreadID,
		ConversationID: conv.ID,
	}); err != nil {
		return nil, err
	}
	return &conv, nil
}

func systemPrompt(conv *chat.Conversation) string {
	return "You are convoke, a conversational assistant with access to local tools. " +
		"Use the available tools when they help answer the user, and answer in plain text when they do not."
}
