package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"

	esnats "github.com/arloliu/esotx/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type statementsOptions struct {
	URL           string
	Stream        string
	SubjectPrefix string
	Durable       string
	Limit         int
}

func newStatementsCommand() *cobra.Command {
	opts := statementsOptions{
		URL:           nats.DefaultURL,
		Stream:        "ESOTX_STATEMENTS",
		SubjectPrefix: esnats.DefaultSubjectPrefix,
	}

	cmd := &cobra.Command{
		Use:   "statements",
		Short: "Print captured statements consumed from NATS JetStream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return consumeStatements(ctx, cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.URL, "nats-url", opts.URL, "NATS server URL")
	cmd.Flags().StringVar(&opts.Stream, "stream", opts.Stream, "JetStream stream holding statements")
	cmd.Flags().StringVar(&opts.SubjectPrefix, "subject-prefix", opts.SubjectPrefix, "Statement subject prefix")
	cmd.Flags().StringVar(&opts.Durable, "durable", "", "Durable consumer name, ephemeral when empty")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "Stop after this many statements, 0 for no limit")

	return cmd
}

func consumeStatements(ctx context.Context, out io.Writer, opts statementsOptions) error {
	nc, err := nats.Connect(opts.URL, nats.Name("es-sim-statements"))
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create jetstream context: %w", err)
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, opts.Stream, jetstream.ConsumerConfig{
		Durable:       opts.Durable,
		FilterSubject: opts.SubjectPrefix + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer on %s: %w", opts.Stream, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu   sync.Mutex
		seen int
	)
	enc := json.NewEncoder(out)
	handler := esnats.StatementHandler(func(_ context.Context, env *esnats.Envelope, msg jetstream.Msg) {
		mu.Lock()
		defer mu.Unlock()

		if opts.Limit > 0 && seen >= opts.Limit {
			_ = msg.Nak()
			return
		}
		if err := enc.Encode(env); err != nil {
			log.Warn().Err(err).Msg("failed to print statement")
		}
		if err := msg.Ack(); err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject()).Msg("ack failed")
		}
		seen++
		if opts.Limit > 0 && seen >= opts.Limit {
			cancel()
		}
	}, esnats.WithStream(opts.Stream))

	cc, err := cons.Consume(handler)
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}
	defer cc.Stop()

	log.Info().Str("stream", opts.Stream).Str("filter", opts.SubjectPrefix+".>").Msg("waiting for statements")
	<-ctx.Done()

	return nil
}
