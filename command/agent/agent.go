package agent

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	metrics "github.com/hashicorp/go-metrics"

	"github.com/gridllm/gridllm/coordinator"
	"github.com/gridllm/gridllm/coordinator/state"
)

// Agent ties the coordinator core to a store backend and runs its
// background loops. The HTTP server is attached separately so tests can
// drive the agent without a listener.
type Agent struct {
	config      *Config
	logger      hclog.Logger
	store       state.Store
	coordinator *coordinator.Coordinator

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
}

// NewAgent builds an agent from config, connects the store, and starts the
// sweeper.
func NewAgent(config *Config, logger hclog.Logger) (*Agent, error) {
	a := &Agent{
		config:     config,
		logger:     logger.Named("agent"),
		shutdownCh: make(chan struct{}),
	}

	if err := a.setupMetrics(); err != nil {
		return nil, err
	}

	if config.DevMode {
		a.logger.Info("running in dev mode, state will not survive restarts")
		a.store = state.NewMemoryStore()
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store, err := state.NewRedisStore(ctx, state.RedisConfig{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		a.store = store
	}

	coordConfig, err := config.CoordinatorConfig()
	if err != nil {
		return nil, err
	}
	a.coordinator = coordinator.New(a.store, coordConfig, a.logger)

	go a.coordinator.Run(a.shutdownCh)
	return a, nil
}

// setupMetrics initializes the in-memory telemetry sink. A USR1 signal dumps
// the aggregated intervals to stderr.
func (a *Agent) setupMetrics() error {
	inm := metrics.NewInmemSink(10*time.Second, time.Minute)
	metrics.DefaultInmemSignal(inm)
	_, err := metrics.NewGlobal(metrics.DefaultConfig("gridllm"), inm)
	return err
}

// Coordinator returns the broker core.
func (a *Agent) Coordinator() *coordinator.Coordinator {
	return a.coordinator
}

// Shutdown stops the background loops and closes the store.
func (a *Agent) Shutdown() error {
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()

	if a.shutdown {
		return nil
	}
	a.logger.Info("requesting shutdown")
	a.shutdown = true
	close(a.shutdownCh)

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			return err
		}
	}
	a.logger.Info("shutdown complete")
	return nil
}
