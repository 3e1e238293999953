package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/arloliu/esotx/cmd/es-sim/engine"
	"github.com/arloliu/esotx/cmd/es-sim/scenario"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newQuickCommand() *cobra.Command {
	cfg := newConfig()

	cmd := &cobra.Command{
		Use:   "quick",
		Short: "Run a scenario a fixed number of times and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.applyEnvOverrides()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return executeQuick(ctx, cmd.OutOrStdout(), cfg)
		},
	}
	cfg.bindCommonFlags(cmd.Flags())
	cmd.Flags().IntVarP(&cfg.Count, "count", "n", cfg.Count, "Number of scenario runs")

	return cmd
}

func newRunCommand() *cobra.Command {
	cfg := newConfig()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario at a steady rate for a duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.applyEnvOverrides()
			if cfg.Rate <= 0 {
				return fmt.Errorf("rate must be positive, got %v", cfg.Rate)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return executeContinuous(ctx, cmd.OutOrStdout(), cfg)
		},
	}
	cfg.bindCommonFlags(cmd.Flags())
	cmd.Flags().DurationVar(&cfg.Duration, "duration", cfg.Duration, "Total simulation time")
	cmd.Flags().Float64Var(&cfg.Rate, "rate", cfg.Rate, "Scenario runs per second")
	cmd.Flags().IntVar(&cfg.Jitter, "jitter", cfg.Jitter, "Timing variation percentage")

	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the embedded scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "Available scenarios:")
			for _, s := range scenario.List() {
				_, _ = fmt.Fprintf(out, "\n  %-10s %s\n", s.Name, s.Description)
				_, _ = fmt.Fprintf(out, "  %-10s %d steps, %d requests per run\n", "", len(s.Steps), s.RequestCount())
			}

			return nil
		},
	}
}

// executeQuick runs the scenario cfg.Count times without jitter.
func executeQuick(ctx context.Context, out io.Writer, cfg *Config) error {
	s, err := loadScenario(cfg)
	if err != nil {
		return err
	}

	eng, err := newEngine(ctx, cfg, 0)
	if err != nil {
		return err
	}
	defer shutdown(eng)

	_, _ = fmt.Fprintf(out, "Running %s %d times (%d requests each)\n", s.Name, cfg.Count, s.RequestCount())

	var total engine.Result
	for i := range cfg.Count {
		res, err := eng.RunScenario(ctx, s)
		total = addResults(total, res)
		if err != nil {
			if ctx.Err() != nil {
				_, _ = fmt.Fprintf(out, "\nInterrupted after %d runs\n", i)
				return nil
			}

			return fmt.Errorf("run %d: %w", i+1, err)
		}
		_, _ = fmt.Fprintf(out, "Run %d/%d: %d requests, %d failed\n", i+1, cfg.Count, res.Requests, res.Failures)
	}

	_, _ = fmt.Fprintf(out, "Done: %d requests, %d failed, %d errors\n", total.Requests, total.Failures, total.Errors)

	return nil
}

// executeContinuous runs the scenario at cfg.Rate until cfg.Duration passes.
func executeContinuous(ctx context.Context, out io.Writer, cfg *Config) error {
	s, err := loadScenario(cfg)
	if err != nil {
		return err
	}

	eng, err := newEngine(ctx, cfg, cfg.Jitter)
	if err != nil {
		return err
	}
	defer shutdown(eng)

	_, _ = fmt.Fprintf(out, "Running %s scenario for %v at %.1f runs/sec\n", s.Name, cfg.Duration, cfg.Rate)

	interval := time.Duration(float64(time.Second) / cfg.Rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	deadline := time.Now().Add(cfg.Duration)
	runs := 0
	var total engine.Result

	for {
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintf(out, "\nInterrupted after %d runs (%d requests)\n", runs, total.Requests)
			return nil
		case <-ticker.C:
			if time.Now().After(deadline) {
				_, _ = fmt.Fprintf(out, "\nCompleted: %d runs, %d requests, %d failed\n", runs, total.Requests, total.Failures)
				return nil
			}

			res, err := eng.RunScenario(ctx, s)
			total = addResults(total, res)
			if err != nil {
				log.Warn().Err(err).Str("scenario", s.Name).Msg("scenario run aborted")
				continue
			}
			runs++
		}
	}
}

func newEngine(ctx context.Context, cfg *Config, jitter int) (*engine.Engine, error) {
	tc, err := cfg.telemetryConfig()
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(ctx, engine.Config{
		Telemetry: tc,
		JitterPct: jitter,
		RateLimit: cfg.RateLimit,
		Logger:    log.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	log.Info().Str("cluster", eng.ClusterURL()).Msg("fake cluster started")

	return eng, nil
}

func shutdown(eng *engine.Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := eng.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown incomplete")
	}
}

func addResults(a, b engine.Result) engine.Result {
	return engine.Result{
		Requests: a.Requests + b.Requests,
		Failures: a.Failures + b.Failures,
		Errors:   a.Errors + b.Errors,
	}
}

func loadScenario(cfg *Config) (*scenario.Scenario, error) {
	if cfg.ScenarioFile != "" {
		return scenario.LoadFromFile(cfg.ScenarioFile)
	}

	s, ok := scenario.Get(cfg.Scenario)
	if !ok {
		return nil, fmt.Errorf("unknown scenario: %s (use 'es-sim list' to see available scenarios)", cfg.Scenario)
	}

	return s, nil
}
