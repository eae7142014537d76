package dingosdk

import (
	"github.com/yuhaijun999/dingo-sdk/internal/resource"
)

type options struct {
	logger         *Logger
	metrics        MetricsCollector
	fanoutWorkers  int
	resourceConfig resource.Config
}

func defaultOptions() options {
	return options{
		logger:        NoopLogger(),
		metrics:       NoopMetricsCollector{},
		fanoutWorkers: 32,
		resourceConfig: resource.Config{
			MaxConcurrentRPCs: 64,
		},
	}
}

// Option configures a Client at construction time.
type Option func(*options)

// WithLogger sets the Client's logger. Defaults to NoopLogger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsCollector sets the Client's MetricsCollector. Defaults to
// NoopMetricsCollector.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithFanoutWorkers sets the size of the goroutine pool used to run RPC
// callbacks off the caller's goroutine. Defaults to 32.
func WithFanoutWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.fanoutWorkers = n
		}
	}
}

// WithMaxConcurrentRPCs bounds the number of RPCs the Client will have
// in flight at once, across every task. Defaults to 64. Zero or a
// negative value limits the Client to one RPC in flight at a time.
func WithMaxConcurrentRPCs(n int64) Option {
	return func(o *options) {
		o.resourceConfig.MaxConcurrentRPCs = n
	}
}

// WithRPCsPerSecond throttles how fast the Client issues new RPCs. Zero
// (the default) means unthrottled.
func WithRPCsPerSecond(n int64) Option {
	return func(o *options) {
		o.resourceConfig.RPCsPerSecond = n
	}
}

// WithInFlightBytesLimit bounds the total request payload size the Client
// will have outstanding at once. Zero (the default) means unbounded.
func WithInFlightBytesLimit(n int64) Option {
	return func(o *options) {
		o.resourceConfig.InFlightBytesLimit = n
	}
}
