package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var verbosity int

	cmd := &cobra.Command{
		Use:   "es-sim",
		Short: "Elasticsearch telemetry simulator for esotx",
		Long: `es-sim sends Elasticsearch REST requests through the esotx instrumentation
to an in-process fake cluster, so traces, metrics and captured statements can
be inspected without a real cluster.`,
		Example: `  es-sim quick --scenario search --count 5 --exporter console
  es-sim run --scenario indexing --duration 5m --rate 10 --metrics-addr :9464
  es-sim resolve GET /logs-2026.10.19/_search /_cluster/health
  es-sim statements --nats-url nats://127.0.0.1:4222 --limit 20`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogger(cmd.ErrOrStderr(), verbosity)
		},
	}

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug, -vvv trace)")

	cmd.AddCommand(newQuickCommand())
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newResolveCommand())
	cmd.AddCommand(newEndpointsCommand())
	cmd.AddCommand(newStatementsCommand())

	return cmd
}
