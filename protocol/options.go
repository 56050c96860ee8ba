package protocol

import "go.uber.org/zap"

const (
	defaultPageSize     = 1024
	defaultMaxLineBytes = 8 << 10
)

type protocolConfig struct {
	pageSize     int
	maxLineBytes int
	logger       *zap.Logger
}

func defaultProtocolConfig() protocolConfig {
	return protocolConfig{
		pageSize:     defaultPageSize,
		maxLineBytes: defaultMaxLineBytes,
		logger:       zap.NewNop(),
	}
}

// Option configures an Http1Protocol.
type Option func(*protocolConfig)

// WithPageSize sets the transfer page size. It is also the per-read length
// used for event streams.
func WithPageSize(n int) Option {
	return func(cfg *protocolConfig) {
		if n > 0 {
			cfg.pageSize = n
		}
	}
}

// WithMaxLineBytes limits the length of start lines, header lines and chunk
// size lines.
func WithMaxLineBytes(n int) Option {
	return func(cfg *protocolConfig) {
		if n > 0 {
			cfg.maxLineBytes = n
		}
	}
}

// WithProtocolLogger sets the logger used for wire level debug output.
func WithProtocolLogger(logger *zap.Logger) Option {
	return func(cfg *protocolConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}
