package main

import (
	"context"
	"fmt"

	logging "github.com/ipfs/go-log"
	"github.com/libp2p/go-libp2p"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/wakuswarm/wakunode/pkg/node"
	"github.com/wakuswarm/wakunode/pkg/rest"
)

var log = logging.Logger("wakunode")

// cliConfig mirrors the CLI flag table in spec §6.
type cliConfig struct {
	relay         bool
	store         bool
	lightpush     bool
	storeCapacity int
	topics        []string
	staticNodes   []string
	rest          bool
	listenAddr    string
}

// runNode validates cfg, starts the libp2p host and node composer, and
// blocks until ctx is cancelled. Exit is nonzero on an invalid flag
// combination (spec §6).
func runNode(ctx context.Context, cfg *cliConfig) error {
	if cfg.store && cfg.lightpush {
		return fmt.Errorf("wakunode: --store and --lightpush are mutually exclusive")
	}

	staticAddrs := make([]ma.Multiaddr, 0, len(cfg.staticNodes))
	for _, s := range cfg.staticNodes {
		addr, err := ma.NewMultiaddr(s)
		if err != nil {
			return fmt.Errorf("wakunode: parsing --static-node %q: %w", s, err)
		}
		staticAddrs = append(staticAddrs, addr)
	}

	h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.listenAddr))
	if err != nil {
		return fmt.Errorf("wakunode: starting libp2p host: %w", err)
	}

	n, err := node.New(ctx, h, node.Config{
		Relay:         cfg.relay,
		Store:         cfg.store,
		LightPush:     cfg.lightpush,
		StoreCapacity: cfg.storeCapacity,
		Topics:        cfg.topics,
		StaticNodes:   staticAddrs,
	})
	if err != nil {
		return fmt.Errorf("wakunode: starting node: %w", err)
	}
	defer n.Close()

	log.Infof("wakunode: listening on %v, peer id %s", h.Addrs(), h.ID())

	if cfg.rest {
		srv := rest.New(ctx, n)
		defer srv.Close()
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				log.Errorf("wakunode: rest server stopped: %v", err)
			}
		}()
		log.Infof("wakunode: rest facade listening on %s", rest.ListenAddr)
	}

	<-ctx.Done()
	return nil
}
