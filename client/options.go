package client

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/nczempin/httpc-engine/protocol"
	"github.com/nczempin/httpc-engine/transport"
)

const (
	defaultMaxRedirects = 5
	defaultUserAgent    = "httpc-engine/1.0"
	instrumentationName = "github.com/nczempin/httpc-engine/client"
)

type clientConfig struct {
	resolver        transport.Resolver
	followRedirects bool
	maxRedirects    int
	userAgent       string
	logger          *zap.Logger
	tracerProvider  trace.TracerProvider
	meterProvider   metric.MeterProvider
	protocolOpts    []protocol.Option
}

func defaultClientConfig() clientConfig {
	return clientConfig{
		resolver:        transport.NetResolver{},
		followRedirects: true,
		maxRedirects:    defaultMaxRedirects,
		userAgent:       defaultUserAgent,
		logger:          zap.NewNop(),
		tracerProvider:  otel.GetTracerProvider(),
		meterProvider:   otel.GetMeterProvider(),
	}
}

// Option configures an HttpClient.
type Option func(*clientConfig)

// WithResolver replaces the resolver used by Connect.
func WithResolver(r transport.Resolver) Option {
	return func(cfg *clientConfig) {
		if r != nil {
			cfg.resolver = r
		}
	}
}

// WithFollowRedirects enables or disables automatic redirect following.
func WithFollowRedirects(follow bool) Option {
	return func(cfg *clientConfig) {
		cfg.followRedirects = follow
	}
}

// WithMaxRedirects sets how many redirects one exchange may follow before
// it fails with ProtocolErrorTooManyRedirects. Zero refuses every redirect.
func WithMaxRedirects(n int) Option {
	return func(cfg *clientConfig) {
		if n >= 0 {
			cfg.maxRedirects = n
		}
	}
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cfg *clientConfig) {
		if ua != "" {
			cfg.userAgent = ua
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(cfg *clientConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *clientConfig) {
		if tp != nil {
			cfg.tracerProvider = tp
		}
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *clientConfig) {
		if mp != nil {
			cfg.meterProvider = mp
		}
	}
}

// WithProtocolOptions forwards options to the underlying Http1Protocol.
func WithProtocolOptions(opts ...protocol.Option) Option {
	return func(cfg *clientConfig) {
		cfg.protocolOpts = append(cfg.protocolOpts, opts...)
	}
}
