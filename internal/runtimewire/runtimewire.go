// Package runtimewire assembles the bridge runtime: the request ledger, the
// job dispatcher, the broadcast broker, and the event relay. Handlers take
// the runtime explicitly; nothing is reached through shared state.
package runtimewire

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/turbobackend/mcpbridge/internal/config"
	"github.com/turbobackend/mcpbridge/internal/relay"
	"github.com/turbobackend/mcpbridge/jobqueue"
	jobinmem "github.com/turbobackend/mcpbridge/jobqueue/inmem"
	"github.com/turbobackend/mcpbridge/ledger"
	ledgersqlite "github.com/turbobackend/mcpbridge/ledger/sqlite"
	"github.com/turbobackend/mcpbridge/pubsub"
	pubsubinmem "github.com/turbobackend/mcpbridge/pubsub/inmem"
)

// Runtime carries every dependency the protocol front end needs for one
// process instance.
type Runtime struct {
	Ledger     ledger.Ledger
	Dispatcher jobqueue.Dispatcher
	Broker     pubsub.Broker
	Relay      *relay.Relay
	Logger     *slog.Logger

	ledgerStore *ledgersqlite.Store
}

// New wires the default runtime: SQLite-backed ledger, in-process queue and
// broker. Deployments with an external substrate swap Dispatcher and Broker
// before serving.
func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		return nil, errors.New("new runtime: nil logger")
	}

	store, err := ledgersqlite.Open(cfg.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("new runtime ledger: %w", err)
	}

	return &Runtime{
		Ledger:      store,
		Dispatcher:  jobinmem.New(),
		Broker:      pubsubinmem.New(),
		Relay:       relay.New(store, logger, cfg.StreamIdleTimeout),
		Logger:      logger,
		ledgerStore: store,
	}, nil
}

// Close releases runtime-owned resources.
func (r *Runtime) Close() error {
	if r.ledgerStore == nil {
		return nil
	}
	return r.ledgerStore.Close()
}
