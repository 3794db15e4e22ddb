package cli

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/option"
	"github.com/spf13/cobra"

	"github.com/adilhn/selene/internal/config"
	"github.com/adilhn/selene/internal/logger"
	"github.com/adilhn/selene/internal/observability"
	"github.com/adilhn/selene/internal/tracing"
	"github.com/adilhn/selene/pkg/agent"
	"github.com/adilhn/selene/pkg/failover"
	"github.com/adilhn/selene/pkg/session"
	"github.com/adilhn/selene/pkg/toolexecutor"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session on the terminal. Replies stream as
they are generated; /clear resets the conversation, /quit exits.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return err
	}
	defer lg.Close()
	log := lg.GetZerolog()

	if err := tracing.InitOpenTelemetry("selene"); err != nil {
		log.Warn().Err(err).Msg("Tracing unavailable")
	}
	defer tracing.ShutdownOpenTelemetry(context.Background())

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.MetricsHandler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	orch, store, err := buildOrchestrator(cfg, lg)
	if err != nil {
		return err
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return chatLoop(ctx, orch, store)
}

// buildOrchestrator assembles the full stack from config: providers,
// failover, sessions, compaction and tools.
func buildOrchestrator(cfg *config.Config, lg *logger.Logger) (*agent.Orchestrator, session.Store, error) {
	log := lg.GetZerolog()

	registry := agent.NewRegistry()
	if cfg.Providers.OpenAI.Configured() {
		var opts []openaioption.RequestOption
		if cfg.Providers.OpenAI.BaseURL != "" {
			opts = append(opts, openaioption.WithBaseURL(cfg.Providers.OpenAI.BaseURL))
		}
		if err := registry.Register(agent.NewOpenAIProvider(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.Models, opts...)); err != nil {
			return nil, nil, err
		}
	}
	if cfg.Providers.Anthropic.Configured() {
		var opts []anthropicoption.RequestOption
		if cfg.Providers.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicoption.WithBaseURL(cfg.Providers.Anthropic.BaseURL))
		}
		if err := registry.Register(agent.NewAnthropicProvider(cfg.Providers.Anthropic.APIKey, cfg.Providers.Anthropic.Models, opts...)); err != nil {
			return nil, nil, err
		}
	}

	var retryDelay time.Duration
	if cfg.Failover.RetryDelay != "" {
		d, err := time.ParseDuration(cfg.Failover.RetryDelay)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid retry_delay %q: %w", cfg.Failover.RetryDelay, err)
		}
		retryDelay = d
	}
	executor, err := failover.NewExecutor(failover.Config{
		Ledger:                 failover.NewLedger(log),
		Catalog:                registry,
		Logger:                 log,
		MaxRetriesPerCandidate: cfg.Failover.MaxRetriesPerCandidate,
		RetryDelay:             retryDelay,
	})
	if err != nil {
		return nil, nil, err
	}

	var store session.Store
	switch cfg.Session.Backend {
	case "memory":
		store = session.NewMemoryStore()
	default:
		sqlite, err := session.NewSQLiteStore(cfg.Session.Path)
		if err != nil {
			return nil, nil, err
		}
		store = sqlite
	}
	sessions, err := session.NewManager(store)
	if err != nil {
		return nil, nil, err
	}

	fallbacks, err := parseFallbacks(cfg.Agent.Fallbacks)
	if err != nil {
		return nil, nil, err
	}
	preferred := failover.Candidate{Provider: cfg.Agent.Provider, Model: cfg.Agent.Model}

	summarizer := agent.NewModelSummarizer(registry, executor, preferred, fallbacks)
	compactor := session.NewCompactor(
		summarizer,
		cfg.Compaction.TriggerTokens,
		cfg.Compaction.KeepRecent,
		cfg.Compaction.ContextWindow,
	)

	tools := toolexecutor.New()
	if err := registerBuiltinTools(tools); err != nil {
		return nil, nil, err
	}

	orch, err := agent.New(agent.Config{
		Registry:  registry,
		Tools:     tools,
		Sessions:  sessions,
		Failover:  executor,
		Compactor: compactor,
		Logger:    log,
		Options: agent.Options{
			SystemPrompt:    cfg.Agent.SystemPrompt,
			Temperature:     cfg.Agent.Temperature,
			MaxTokens:       cfg.Agent.MaxTokens,
			MaxToolRounds:   cfg.Agent.MaxToolRounds,
			DefaultProvider: cfg.Agent.Provider,
			DefaultModel:    cfg.Agent.Model,
			Fallbacks:       fallbacks,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return orch, store, nil
}

func parseFallbacks(entries []string) ([]failover.Candidate, error) {
	out := make([]failover.Candidate, 0, len(entries))
	for _, entry := range entries {
		provider, model, err := config.SplitCandidate(entry)
		if err != nil {
			return nil, err
		}
		out = append(out, failover.Candidate{Provider: provider, Model: model})
	}
	return out, nil
}

func registerBuiltinTools(tools *toolexecutor.Executor) error {
	return tools.Register(toolexecutor.Definition{
		Name:        "current_time",
		Description: "Returns the current date and time",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return time.Now().Format(time.RFC1123), nil
		},
	})
}

func chatLoop(ctx context.Context, orch *agent.Orchestrator, store session.Store) error {
	inbound := agent.Inbound{ChannelID: "cli", SenderID: "local"}
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	fmt.Println("selene chat (/clear resets, /quit exits)")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/clear":
			if err := store.Delete(ctx, inbound.SessionKey()); err != nil {
				fmt.Fprintf(os.Stderr, "failed to clear session: %v\n", err)
			} else {
				fmt.Println("session cleared")
			}
			continue
		}

		inbound.Text = line
		stream := orch.ProcessMessageStream(ctx, inbound)
		for chunk := range stream.Text() {
			fmt.Print(chunk)
		}
		if _, err := stream.Wait(); err != nil {
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
			continue
		}
		fmt.Println()
	}
}
