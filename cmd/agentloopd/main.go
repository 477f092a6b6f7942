// Command agentloopd is the research agent runtime's process entrypoint.
// It loads static configuration, wires the vendor adapters the config
// names, registers a small set of demonstration tools, and drives a
// research loop session either synchronously or in the background.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/Shahroz/reels-ai-sub002/internal/config"
	"github.com/Shahroz/reels-ai-sub002/internal/credits"
	"github.com/Shahroz/reels-ai-sub002/internal/evaluator"
	"github.com/Shahroz/reels-ai-sub002/internal/llm"
	"github.com/Shahroz/reels-ai-sub002/internal/llm/providers"
	"github.com/Shahroz/reels-ai-sub002/internal/loop"
	"github.com/Shahroz/reels-ai-sub002/internal/metrics"
	"github.com/Shahroz/reels-ai-sub002/internal/progress"
	"github.com/Shahroz/reels-ai-sub002/internal/session"
	"github.com/Shahroz/reels-ai-sub002/internal/tools"
	"github.com/Shahroz/reels-ai-sub002/internal/ws"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "agentloopd",
		Short:        "Research agent runtime: multi-turn LLM orchestration with tool dispatch",
		Version:      fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage: true,
	}
	root.AddCommand(buildRunCmd(), buildServeCmd())
	return root
}

// buildRunCmd drives a single research-loop session to completion (or, in
// --async mode, in the background while polling status) and prints the
// resulting history to stdout. It exists to exercise RunSync/RunAsync end
// to end outside of a test harness.
func buildRunCmd() *cobra.Command {
	var (
		configPath string
		goal       string
		async      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one research-loop session against the configured LLM vendors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			orch, err := buildOrchestrator(cfg, slog.Default())
			if err != nil {
				return err
			}

			id := orch.Store.CreateSession(session.Config{
				TimeLimit:        cfg.SessionTimeout,
				CompactionPolicy: cfg.CompactionPolicy,
			})

			out := cmd.OutOrStdout()
			sink := progress.Buffered(func(ctx context.Context, update progress.Update) error {
				fmt.Fprintf(out, "[%s] %s: %s\n", update.Timestamp.Format(time.RFC3339), update.Sender, update.Message)
				return nil
			}, 16)

			ctx := cmd.Context()
			if async {
				orch.RunAsync(ctx, id, goal, sink)
				for {
					data := orch.Store.GetSession(id)
					if data == nil || data.Status.IsTerminal() {
						break
					}
					time.Sleep(200 * time.Millisecond)
				}
				data := orch.Store.GetSession(id)
				return printHistory(out, data)
			}

			history, err := orch.RunSync(ctx, id, goal, sink)
			if err != nil {
				return err
			}
			for _, entry := range history {
				fmt.Fprintf(out, "%s: %s\n", entry.Sender, entry.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "agentloopd.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&goal, "goal", "", "Research goal / opening user message")
	cmd.Flags().BoolVar(&async, "async", false, "Run the loop in the background and poll for completion")
	cmd.MarkFlagRequired("goal")
	return cmd
}

func printHistory(out io.Writer, data *session.Data) error {
	if data == nil {
		return fmt.Errorf("session vanished before completion")
	}
	for _, entry := range data.History {
		if _, err := fmt.Fprintf(out, "%s: %s\n", entry.Sender, entry.Message); err != nil {
			return err
		}
	}
	return nil
}

// buildServeCmd exposes the Prometheus metrics endpoint and runs the
// out-of-scope evaluator's poll loop; it does not itself accept sessions
// for execution, which is the host application's job.
func buildServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the metrics endpoint and the evaluator poll loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			store := session.NewStore()
			addr := cfg.MetricsAddr
			if addr == "" {
				addr = ":9090"
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			server := &http.Server{Addr: addr, Handler: mux}

			poller := evaluator.New(store, noopHandler{}, evaluator.Config{SleepSeconds: cfg.EvaluatorSleepSeconds})
			poller.Start(cmd.Context())
			defer poller.Stop()

			slog.Info("agentloopd: serving metrics", "addr", addr)
			return server.ListenAndServe()
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "agentloopd.yaml", "Path to YAML configuration file")
	return cmd
}

type noopHandler struct{}

func (noopHandler) Evaluate(ctx context.Context, data *session.Data) error { return nil }

// buildOrchestrator wires an Orchestrator from static config: vendor
// adapters keyed by name, a tool registry carrying the demonstration
// tools below, and fresh Prometheus instrumentation on a private
// registry so repeated `run` invocations in tests don't collide with
// the default registerer.
func buildOrchestrator(cfg *config.Config, logger *slog.Logger) (*loop.Orchestrator, error) {
	ctx := context.Background()
	var vendors []llm.Vendor

	if cfg.LLM.Anthropic.APIKey != "" {
		vendors = append(vendors, providers.NewAnthropicVendor(cfg.LLM.Anthropic.APIKey, cfg.LLM.Anthropic.BaseURL, cfg.LLM.Anthropic.DefaultModel))
	}
	if cfg.LLM.OpenAI.APIKey != "" {
		vendors = append(vendors, providers.NewOpenAIVendor(cfg.LLM.OpenAI.APIKey, cfg.LLM.OpenAI.DefaultModel))
	}
	if cfg.LLM.Gemini.APIKey != "" {
		v, err := providers.NewGeminiVendor(ctx, cfg.LLM.Gemini.APIKey, cfg.LLM.Gemini.DefaultModel)
		if err != nil {
			return nil, fmt.Errorf("build gemini vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	if cfg.LLM.Bedrock.Region != "" {
		v, err := providers.NewBedrockVendor(ctx, cfg.LLM.Bedrock.Region, cfg.LLM.Bedrock.DefaultModel)
		if err != nil {
			return nil, fmt.Errorf("build bedrock vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	if len(vendors) == 0 {
		return nil, fmt.Errorf("no vendor credentials configured")
	}

	client := llm.NewClient(vendors...)
	client.VendorRateLimit = rate.Limit(cfg.LLM.VendorRateLimitRPS)

	registry := tools.NewRegistry()
	if err := registerDemoTools(registry); err != nil {
		return nil, fmt.Errorf("register demo tools: %w", err)
	}
	registry.Freeze()
	dispatcher := tools.NewDispatcher(registry)
	schema := tools.NewAggregatedSchema(registry)

	store := session.NewStore()
	hub := ws.NewHub(logger)
	recorder := metrics.New(prometheus.NewRegistry())

	return &loop.Orchestrator{
		Store:      store,
		LLM:        client,
		Dispatcher: dispatcher,
		Schema:     schema,
		Config:     cfg,
		Observer:   hub,
		Credits:    tools.Deps{Sessions: store, Observer: hub, Credits: credits.NoopCredits{}},
		Metrics:    recorder,
		Logger:     logger,
	}, nil
}

// registerDemoTools wires two illustrative tools so `agentloopd run` has
// something to dispatch to: "search", matching the shape used throughout
// the test scenarios, and "current_time", a trivial side-effect-free tool.
func registerDemoTools(registry *tools.Registry) error {
	type searchParams struct {
		Query string `json:"q" jsonschema:"required,description=search query"`
	}
	if err := registry.Register("search", "Search the web for a query and return hit counts.", searchParams{},
		func(ctx context.Context, call session.ToolChoice, deps tools.Deps, sid session.ID) (session.FullToolResponse, session.UserToolResponse, error) {
			var params searchParams
			_ = json.Unmarshal(call.Parameters, &params)
			payload, _ := json.Marshal(map[string]any{"query": params.Query, "hits": 0})
			return session.FullToolResponse{ToolName: "search", Response: payload},
				session.UserToolResponse{ToolName: "search", Summary: fmt.Sprintf("Searched for %q", params.Query)}, nil
		}); err != nil {
		return err
	}

	type currentTimeParams struct{}
	return registry.Register("current_time", "Return the current UTC time.", currentTimeParams{},
		func(ctx context.Context, call session.ToolChoice, deps tools.Deps, sid session.ID) (session.FullToolResponse, session.UserToolResponse, error) {
			now := time.Now().UTC().Format(time.RFC3339)
			payload, _ := json.Marshal(map[string]string{"now": now})
			return session.FullToolResponse{ToolName: "current_time", Response: payload},
				session.UserToolResponse{ToolName: "current_time", Summary: now}, nil
		})
}
