package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/arloliu/esotx/resolver"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newResolveCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve METHOD PATH...",
		Short: "Show how request paths resolve to operations",
		Example: `  es-sim resolve GET /logs/_doc/1 /_cat/indices
  es-sim resolve --json POST /logs/_search`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			calls := lo.Map(args[1:], func(path string, _ int) resolver.Call {
				return resolver.Resolve(args[0], path)
			})

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")

				return enc.Encode(calls)
			}
			for _, c := range calls {
				printCall(out, c)
			}

			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the resolved calls as JSON")

	return cmd
}

func printCall(out io.Writer, c resolver.Call) {
	_, _ = fmt.Fprintf(out, "%s %s\n", c.Method, c.Path)
	_, _ = fmt.Fprintf(out, "  operation: %s\n", c.Name)
	if c.APIName != "" {
		_, _ = fmt.Fprintf(out, "  api:       %s\n", c.APIName)
	}
	if len(c.Scope) > 0 {
		_, _ = fmt.Fprintf(out, "  scope:     %s\n", c.ScopePath)
	}
	if c.Index != "" {
		_, _ = fmt.Fprintf(out, "  index:     %s\n", c.Index)
	}
	if c.Type != "" {
		_, _ = fmt.Fprintf(out, "  type:      %s\n", c.Type)
	}
	if len(c.Operands) > 0 {
		_, _ = fmt.Fprintf(out, "  operands:  %s\n", strings.Join(c.Operands, ", "))
	}
}

func newEndpointsCommand() *cobra.Command {
	var unknownOnly bool

	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "Resolve a sample request for every known REST endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			endpoints := resolver.Endpoints()

			unknown := 0
			for _, ep := range endpoints {
				c := ep.Resolve()
				if !c.Known() {
					unknown++
				} else if unknownOnly {
					continue
				}
				_, _ = fmt.Fprintf(out, "%-7s %-60s %s\n", ep.Method, ep.Template, c.Name)
			}
			_, _ = fmt.Fprintf(out, "\n%d endpoints, %d unresolved\n", len(endpoints), unknown)

			return nil
		},
	}
	cmd.Flags().BoolVar(&unknownOnly, "unknown-only", false, "Only list endpoints that do not resolve")

	return cmd
}
