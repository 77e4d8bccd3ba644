// Package coordinator implements the broker core: the job lifecycle state
// machine, the priority queues, per-job leases, chunk aggregation, the node
// registry and the timeout sweeper. All mutable state lives in the store;
// the coordinator holds nothing across requests beyond the sweeper's timers.
package coordinator

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/gridllm/gridllm/coordinator/state"
)

// Coordinator is the broker core bound to a store.
type Coordinator struct {
	store  state.Store
	config *Config
	logger hclog.Logger
}

// New returns a coordinator over the given store.
func New(store state.Store, config *Config, logger hclog.Logger) *Coordinator {
	if config == nil {
		config = DefaultConfig()
	}
	return &Coordinator{
		store:  store,
		config: config,
		logger: logger.Named("coordinator"),
	}
}

// Config exposes the active tuning, mainly for the HTTP layer's verifier.
func (c *Coordinator) Config() *Config {
	return c.config
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
