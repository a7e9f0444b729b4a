// Command wakunode runs a Waku relay/store/lightpush node behind an
// optional local REST facade (spec §6).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &cliConfig{}

	cmd := &cobra.Command{
		Use:   "wakunode",
		Short: "Run a Waku relay/store/lightpush node",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runNode(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&cfg.relay, "relay", true, "enable Relay")
	flags.BoolVar(&cfg.store, "store", false, "enable Store")
	flags.BoolVar(&cfg.lightpush, "lightpush", false, "enable LightPush (mutually exclusive with --store)")
	flags.IntVar(&cfg.storeCapacity, "store-capacity", 50000, "MessageQueue bound")
	flags.StringSliceVar(&cfg.topics, "topics", nil, "initial subscriptions; defaults to the default pubsub topic")
	flags.StringArrayVar(&cfg.staticNodes, "static-node", nil, "peer multiaddr to dial on start (repeatable)")
	flags.BoolVar(&cfg.rest, "rest", false, "serve the local REST facade on 127.0.0.1:5000")
	flags.StringVar(&cfg.listenAddr, "listen-addr", "/ip4/0.0.0.0/tcp/0", "libp2p listen multiaddr")

	return cmd
}
