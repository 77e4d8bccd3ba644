package coordinator

import (
	"time"

	"github.com/gridllm/gridllm/coordinator/structs"
)

// Config tunes the coordinator core. Zero values are not meaningful; start
// from DefaultConfig and override.
type Config struct {
	// LockTTL bounds a job lease. A heartbeat resets it.
	LockTTL time.Duration

	// HeartbeatStale is how long a recorded heartbeat may age before the
	// sweeper treats the job as abandoned.
	HeartbeatStale time.Duration

	// SweepInterval is the cadence of the timeout sweeper.
	SweepInterval time.Duration

	// SignatureWindow is the allowed clock skew on signed envelopes.
	SignatureWindow time.Duration

	// NodeOnlineWindow bounds the authoritative online predicate: a node is
	// online iff it was seen within this window.
	NodeOnlineWindow time.Duration

	// NodeTTL is the soft-TTL on node records, refreshed on every
	// authenticated update.
	NodeTTL time.Duration

	// NodeGCInterval is the cadence of the inactive-node cleanup pass.
	NodeGCInterval time.Duration

	// NodeGCThreshold is the inactivity horizon beyond which nodes are
	// hard-removed.
	NodeGCThreshold time.Duration

	// JobCleanupAge is the default age for cleanup of terminal jobs.
	JobCleanupAge time.Duration

	// Defaults applied to submitted jobs.
	DefaultModel       string
	DefaultMaxTokens   int
	DefaultTemperature float64
}

// DefaultConfig returns the canonical tuning.
func DefaultConfig() *Config {
	return &Config{
		LockTTL:            structs.DefaultLockTTL,
		HeartbeatStale:     structs.DefaultHeartbeatStale,
		SweepInterval:      structs.DefaultSweepInterval,
		SignatureWindow:    structs.DefaultSignatureWindow,
		NodeOnlineWindow:   structs.DefaultNodeOnlineWindow,
		NodeTTL:            structs.DefaultNodeTTL,
		NodeGCInterval:     time.Hour,
		NodeGCThreshold:    structs.DefaultNodeTTL,
		JobCleanupAge:      structs.DefaultJobCleanupAge,
		DefaultModel:       structs.DefaultModel,
		DefaultMaxTokens:   structs.DefaultMaxTokens,
		DefaultTemperature: structs.DefaultTemperature,
	}
}
