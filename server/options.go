package server

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/nczempin/httpc-engine/protocol"
)

const (
	defaultWorkers         = 256
	defaultShutdownTimeout = 5 * time.Second
	instrumentationName    = "github.com/nczempin/httpc-engine/server"
)

type serverConfig struct {
	logger          *zap.Logger
	workers         int
	shutdownTimeout time.Duration
	protocolOpts    []protocol.Option
	meterProvider   metric.MeterProvider
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		logger:          zap.NewNop(),
		workers:         defaultWorkers,
		shutdownTimeout: defaultShutdownTimeout,
		meterProvider:   otel.GetMeterProvider(),
	}
}

// Option configures an HttpServer or Serve.
type Option func(*serverConfig)

func WithLogger(logger *zap.Logger) Option {
	return func(cfg *serverConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithWorkers caps the number of connections Serve handles at once.
func WithWorkers(n int) Option {
	return func(cfg *serverConfig) {
		if n > 0 {
			cfg.workers = n
		}
	}
}

// WithShutdownTimeout bounds how long Serve waits for open connections
// after its context is cancelled.
func WithShutdownTimeout(d time.Duration) Option {
	return func(cfg *serverConfig) {
		if d > 0 {
			cfg.shutdownTimeout = d
		}
	}
}

// WithProtocolOptions forwards options to each connection's Http1Protocol.
func WithProtocolOptions(opts ...protocol.Option) Option {
	return func(cfg *serverConfig) {
		cfg.protocolOpts = append(cfg.protocolOpts, opts...)
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *serverConfig) {
		if mp != nil {
			cfg.meterProvider = mp
		}
	}
}
