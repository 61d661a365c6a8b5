// Package repl implements the interactive convoke shell.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/macrae/convoke/internal/chat"
	"github.com/macrae/convoke/internal/config"
	"github.com/macrae/convoke/internal/engine"
	"github.com/macrae/convoke/internal/store"
)

var ErrExit = errors.New("exit requested")

var (
	thinkingStyle = lipgloss.NewStyle().Faint(true).Italic(true)
	toolStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// LoopFactory builds a new engine loop for the given model. Used by
// /model to switch providers without restarting.
type LoopFactory func(ctx context.Context, mc config.ModelConfig) (*engine.Loop, error)

// REPL implements the read-eval-print loop for interactive mode
type REPL struct {
	cfg            *config.Config
	store          store.Store
	loop           *engine.Loop
	newLoop        LoopFactory
	conversationID string
	threadID       string
}

// New creates a new REPL bound to one conversation
func New(cfg *config.Config, st store.Store, loop *engine.Loop, factory LoopFactory, conversationID, threadID string) *REPL {
	return &REPL{
		cfg:            cfg,
		store:          st,
		loop:           loop,
		newLoop:        factory,
		conversationID: conversationID,
		threadID:       threadID,
	}
}

// Run starts the REPL loop. Exits on /exit, /quit, or Ctrl+D.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Printf("convoke is ready (%s).\n", r.cfg.LLM.Current)
	fmt.Println(hintStyle.Render("Type /help for commands."))
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")

		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if err := r.handleCommand(ctx, input); err != nil {
				if errors.Is(err, ErrExit) {
					fmt.Println("Goodbye.")
					break
				}
				fmt.Println(errorStyle.Render(fmt.Sprintf("Error: %v", err)))
			}
			fmt.Println()
			continue
		}

		r.runTurn(ctx, input)
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	return nil
}

// runTurn streams one conversation turn to the terminal.
func (r *REPL) runTurn(ctx context.Context, input string) {
	instructions := []chat.Instruction{{Kind: chat.InstructionSource, Value: "human"}}
	for ev := range r.loop.Run(ctx, r.conversationID, input, instructions) {
		if ev.Err != nil {
			fmt.Println(errorStyle.Render(fmt.Sprintf("Error: %v", ev.Err)))
			return
		}
		for _, item := range ev.Message.Items {
			if line := renderItem(item); line != "" {
				fmt.Println(line)
			}
		}
	}
}

// renderItem formats one content item for terminal output. Returns ""
// for items that should not be shown.
func renderItem(item chat.ContentItem) string {
	switch v := item.(type) {
	case chat.AssistantText:
		return v.Text
	case chat.Thinking:
		return thinkingStyle.Render("· " + summarize(v.Text, 120))
	case chat.ToolCall:
		return toolStyle.Render(fmt.Sprintf("→ %s(%s)", v.Name, summarize(string(v.Input), 80)))
	case chat.ToolResult:
		if v.IsError {
			return errorStyle.Render(fmt.Sprintf("✗ %s: %s", v.ToolName, summarize(chat.TextOf(v), 120)))
		}
		return toolStyle.Render(fmt.Sprintf("✓ %s", v.ToolName))
	case chat.SystemNote:
		return hintStyle.Render(v.Text)
	}
	return ""
}

func summarize(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// handleCommand processes REPL commands starting with /
func (r *REPL) handleCommand(ctx context.Context, input string) error {
	cmd := strings.TrimPrefix(input, "/")
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "model":
		return r.handleModelCommand(ctx)
	case "new":
		return r.handleNewCommand(ctx)
	case "usage":
		return r.handleUsageCommand(ctx)
	case "help":
		return r.handleHelpCommand()
	case "exit", "quit":
		return ErrExit
	default:
		return fmt.Errorf("unknown command: /%s. Type /help for available commands", parts[0])
	}
}

// handleModelCommand shows an interactive selector and rebuilds the
// loop for the chosen model.
func (r *REPL) handleModelCommand(ctx context.Context) error {
	models := r.cfg.LLM.ModelNames()
	current := r.cfg.LLM.Current

	if len(models) <= 1 {
		fmt.Printf("Only one model configured: %s\n", current)
		return nil
	}

	selected, err := RunModelSelector(models, current)
	if err != nil {
		return fmt.Errorf("failed to run selector: %w", err)
	}
	if selected == "" {
		fmt.Println("Cancelled")
		return nil
	}
	if selected == current {
		fmt.Printf("Already using %s\n", current)
		return nil
	}

	mc, ok := r.cfg.LLM.Available[selected]
	if !ok {
		return fmt.Errorf("model %s not found in config", selected)
	}

	loop, err := r.newLoop(ctx, mc)
	if err != nil {
		return fmt.Errorf("failed to switch model: %w", err)
	}
	r.loop = loop
	r.cfg.LLM.Current = selected

	fmt.Printf("\nSwitched to %s (%s/%s)\n", selected, mc.Provider, mc.Model)
	return nil
}

// handleNewCommand starts a fresh conversation, leaving the old one in
// the store untouched.
func (r *REPL) handleNewCommand(ctx context.Context) error {
	mc, err := r.cfg.LLM.CurrentModel()
	if err != nil {
		return err
	}

	conv := chat.Conversation{
		ID:              chat.NewID(),
		Project:         "default",
		Provider:        mc.Provider,
		Model:           mc.Model,
		CurrentThreadID: chat.NewID(),
		CreatedAt:       time.Now().UTC(),
	}
	if err := r.store.CreateConversation(ctx, conv); err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	if err := r.store.CreateThread(ctx, chat.Thread{
		ID:             conv.CurrentThreadID,
		ConversationID: conv.ID,
	}); err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}

	r.conversationID = conv.ID
	r.threadID = conv.CurrentThreadID
	fmt.Println("Started a new conversation.")
	return nil
}

// handleUsageCommand prints the thread's accumulated token usage.
func (r *REPL) handleUsageCommand(ctx context.Context) error {
	summary, err := r.store.UsageSummary(ctx, r.threadID)
	if err != nil {
		return fmt.Errorf("failed to load usage: %w", err)
	}
	fmt.Printf("Turns: %d\n", summary.Turns)
	fmt.Printf("Input tokens: %d (cache writes %d, cache reads %d)\n",
		summary.InputTokens, summary.CacheCreationTokens, summary.CacheReadTokens)
	fmt.Printf("Output tokens: %d (thinking %d)\n",
		summary.OutputTokens, summary.ThinkingTokens)
	return nil
}

// handleHelpCommand displays available commands
func (r *REPL) handleHelpCommand() error {
	help := `Available commands:
  /model    - Switch LLM model
  /new      - Start a new conversation
  /usage    - Show token usage for this thread
  /help     - Show this help
  /exit     - Exit convoke (or use Ctrl+D)
`
	fmt.Print(help)
	return nil
}
