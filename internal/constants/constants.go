package constants

import "time"

// RPC Constants
const (
	// DefaultQueryTimeout is the default timeout for a single RPC call
	DefaultQueryTimeout = 30 * time.Second

	// DefaultRequestBurst is the default rate limiter bucket size
	DefaultRequestBurst = 1
)

// Search Constants
const (
	// DefaultLowBlock is the first block searched when no minimum is given.
	// Genesis state cannot be produced by a contract creation transaction.
	DefaultLowBlock uint64 = 1

	// DefaultStrategy is the default search strategy
	DefaultStrategy = "binary"

	// DefaultBias is the default interpolation bias exponent
	DefaultBias = 1.0

	// DefaultConcurrency is the default number of addresses searched in parallel
	DefaultConcurrency = 1

	// MaxConcurrency caps parallel searches against one endpoint
	MaxConcurrency = 64
)

// Metrics Constants
const (
	// DefaultMetricsNamespace is the Prometheus namespace for all metrics
	DefaultMetricsNamespace = "finder"

	// DefaultMetricsListen is the default metrics endpoint address
	DefaultMetricsListen = "localhost:9090"

	// DefaultMetricsPath is the path metrics are served under
	DefaultMetricsPath = "/metrics"

	// DefaultShutdownTimeout is the default graceful shutdown timeout
	DefaultShutdownTimeout = 5 * time.Second

	// DefaultReadHeaderTimeout is the default HTTP read header timeout
	DefaultReadHeaderTimeout = 10 * time.Second
)
