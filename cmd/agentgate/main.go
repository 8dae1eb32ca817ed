package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zen-systems/agentgate/pkg/adapter"
	"github.com/zen-systems/agentgate/pkg/classify"
	"github.com/zen-systems/agentgate/pkg/config"
	"github.com/zen-systems/agentgate/pkg/gateway"
	"github.com/zen-systems/agentgate/pkg/route"
	"github.com/zen-systems/agentgate/pkg/schema"
	"github.com/zen-systems/agentgate/pkg/stream"
)

var agentCmdFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:   "agentgate",
		Short: "LLM gateway with complexity-aware routing and stream normalization",
		Long: `Agentgate decides per request whether a direct model call suffices
	or a sandboxed agent run is required, routes direct calls to the best
	model for the detected task with automatic fallback, and normalizes
	every upstream stream into one canonical event sequence.`,
	}

	rootCmd.PersistentFlags().StringVar(&agentCmdFlag, "agent-cmd", "", "command to launch for agent-path requests (reads prompt on stdin, writes JSON lines)")

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(modelsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func chatCmd() *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Send a prompt through the gateway and stream the reply",
		Long: `Classifies the prompt, routes it to the best available model with
	automatic fallback, and streams the normalized reply to stdout.
	Requests that need tool use go to the agent command given with
	--agent-cmd.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			g, _, err := buildGateway(cfg)
			if err != nil {
				return err
			}

			sink := &printSink{out: os.Stdout, errOut: os.Stderr, json: jsonFlag}
			result, err := g.Handle(cmd.Context(), promptRequest(args[0]), sink)
			if err != nil {
				return err
			}
			sink.finish()

			if result.Decision != nil && len(result.Decision.Attempts) > 1 {
				fmt.Fprintf(os.Stderr, "Served by %s after %d attempts\n",
					result.Decision.Attempts[len(result.Decision.Attempts)-1].Model.ID,
					len(result.Decision.Attempts))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "print normalized events as JSON lines")

	return cmd
}

func routeCmd() *cobra.Command {
	var explainFlag bool

	cmd := &cobra.Command{
		Use:   "route [prompt]",
		Short: "Show the routing decision for a prompt without calling any model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			reg, err := cfg.Registry()
			if err != nil {
				return fmt.Errorf("failed to load model catalogue: %w", err)
			}

			complexity, task := buildClassifiers(cfg)
			req := promptRequest(args[0])

			analysis := complexity.Classify(cmd.Context(), req)
			if analysis.NeedsAgent {
				fmt.Printf("agent path (%s)\n", analysis.Reason)
				return nil
			}

			category, confidence := task.Classify(cmd.Context(), req)
			engine := route.NewEngine(reg, adapter.NewMux())
			decision := engine.Plan(category, confidence, req.HasImages())

			fmt.Printf("fast path: %s (confidence %.2f)\n", category, confidence)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ORDER\tMODEL\tPROVIDER\tPRIORITY")
			for i, spec := range decision.Candidates() {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", i+1, spec.ID, spec.Provider, spec.Priority)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if explainFlag {
				fmt.Printf("\nprimary: lowest priority serving %s", category)
				if req.HasImages() {
					fmt.Printf(" among vision-capable models")
				}
				fmt.Printf("\nfallbacks: same vision capability, priority order, capped\n")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&explainFlag, "explain", false, "explain how the chain was built")

	return cmd
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [prompt]",
		Short: "Show the complexity and task classification for a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			complexity, task := buildClassifiers(cfg)
			req := promptRequest(args[0])

			analysis := complexity.Classify(cmd.Context(), req)
			fmt.Printf("needs_agent: %v\n", analysis.NeedsAgent)
			fmt.Printf("reason: %s\n", analysis.Reason)
			if len(analysis.MatchedKeywords) > 0 {
				fmt.Printf("matched: %s\n", strings.Join(analysis.MatchedKeywords, ", "))
			}

			if !analysis.NeedsAgent {
				category, confidence := task.Classify(cmd.Context(), req)
				fmt.Printf("category: %s (confidence %.2f)\n", category, confidence)
			}
			return nil
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the model catalogue and provider readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			reg, err := cfg.Registry()
			if err != nil {
				return fmt.Errorf("failed to load model catalogue: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tPROVIDER\tPRIORITY\tCATEGORIES\tVISION\tSTATUS")

			models := reg.Models()
			sort.Slice(models, func(i, j int) bool { return models[i].Priority < models[j].Priority })
			for _, spec := range models {
				cats := make([]string, 0, len(spec.TaskCategories))
				for _, cat := range spec.TaskCategories {
					cats = append(cats, string(cat))
				}
				status := "no key"
				if cfg.HasProvider(spec.Provider) {
					status = "ready"
				}
				vision := "-"
				if spec.SupportsVision {
					vision = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					spec.ID, spec.Provider, spec.Priority, strings.Join(cats, ","), vision, status)
			}

			return w.Flush()
		},
	}
}

func promptRequest(prompt string) *schema.Request {
	return &schema.Request{
		Messages: []schema.Message{schema.TextMessage(schema.RoleUser, prompt)},
		Stream:   true,
	}
}

func buildClassifiers(cfg *config.Config) (*classify.Complexity, *classify.Task) {
	var verifier classify.Verifier
	if cfg.OpenAIAPIKey != "" {
		v, err := adapter.NewOpenAIVerifier(cfg.OpenAIAPIKey, cfg.VerifierModel)
		if err == nil {
			verifier = v
		}
	}

	var complexityOpts []classify.ComplexityOption
	var taskOpts []classify.TaskOption
	if cfg.VerifyTimeout > 0 {
		complexityOpts = append(complexityOpts, classify.WithVerifyTimeout(cfg.VerifyTimeout))
		taskOpts = append(taskOpts, classify.WithTaskTimeout(cfg.VerifyTimeout))
	}
	log := cfg.Logger(true)
	complexityOpts = append(complexityOpts, classify.WithComplexityLogger(log))
	taskOpts = append(taskOpts, classify.WithTaskLogger(log))

	return classify.NewComplexity(verifier, complexityOpts...), classify.NewTask(verifier, taskOpts...)
}

func buildGateway(cfg *config.Config) (*gateway.Gateway, *route.Engine, error) {
	reg, err := cfg.Registry()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load model catalogue: %w", err)
	}

	backends, err := createBackends(cfg)
	if err != nil {
		return nil, nil, err
	}

	log := cfg.Logger(true)
	engine := route.NewEngine(reg, adapter.NewMux(backends...), route.WithEngineLogger(log))
	complexity, task := buildClassifiers(cfg)

	var agent adapter.Backend
	if agentCmdFlag != "" {
		agent = adapter.NewAgentBackend(&commandRunner{command: agentCmdFlag})
	}

	opts := []gateway.Option{gateway.WithLogger(log)}
	if cfg.IdleTimeout > 0 {
		opts = append(opts, gateway.WithNormalizerOptions(stream.WithIdleTimeout(cfg.IdleTimeout)))
	}

	return gateway.New(complexity, task, engine, agent, opts...), engine, nil
}

func createBackends(cfg *config.Config) ([]adapter.Backend, error) {
	var backends []adapter.Backend

	if cfg.AnthropicAPIKey != "" {
		b, err := adapter.NewAnthropicBackend(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic backend: %w", err)
		}
		backends = append(backends, b)
	}

	if cfg.OpenAIAPIKey != "" {
		b, err := adapter.NewOpenAIBackend(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai backend: %w", err)
		}
		backends = append(backends, b)
	}

	if cfg.GoogleAPIKey != "" {
		b, err := adapter.NewGoogleBackend(cfg.GoogleAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create google backend: %w", err)
		}
		backends = append(backends, b)
	}

	return backends, nil
}

// commandRunner launches an external agent process. The prompt goes to
// its stdin; its stdout must be line-delimited JSON events.
type commandRunner struct {
	command string
}

func (r *commandRunner) Start(ctx context.Context, req *schema.Request) (io.ReadCloser, error) {
	parts := strings.Fields(r.command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty agent command")
	}

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Stdin = strings.NewReader(req.Text())
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &processFeed{ReadCloser: stdout, cmd: cmd}, nil
}

// processFeed reaps the child process when the feed is closed.
type processFeed struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (f *processFeed) Close() error {
	err := f.ReadCloser.Close()
	_ = f.cmd.Wait()
	return err
}

// printSink renders normalized events for a terminal. Reasoning deltas
// go to stderr so piping stdout captures only the answer.
type printSink struct {
	out    io.Writer
	errOut io.Writer
	json   bool

	wroteContent bool
}

func (s *printSink) Send(ev stream.Event) error {
	if s.json {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(s.out, string(data))
		return err
	}

	switch ev.Type {
	case stream.EventContentDelta:
		s.wroteContent = true
		_, err := fmt.Fprint(s.out, ev.Text)
		return err
	case stream.EventReasoningDelta:
		_, err := fmt.Fprint(s.errOut, ev.Text)
		return err
	case stream.EventError:
		_, err := fmt.Fprintf(s.errOut, "error (%s): %s\n", ev.ErrKind, ev.ErrMessage)
		return err
	}
	return nil
}

func (s *printSink) finish() {
	if !s.json && s.wroteContent {
		fmt.Fprintln(s.out)
	}
}
