package server

import (
	"context"
	"net"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nczempin/httpc-engine/transport"
)

// Serve accepts connections from ln and runs an independent HttpServer for
// each one on a bounded worker pool. It returns when ctx is cancelled or
// Accept fails, after waiting up to the shutdown timeout for open
// connections. Connections still open when ctx is cancelled are closed.
func Serve(ctx context.Context, ln net.Listener, handler Handler, userCtx any, opts ...Option) error {
	cfg := defaultServerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	pool, err := ants.NewPool(cfg.workers, ants.WithPanicHandler(func(p any) {
		cfg.logger.Error("handler panicked", zap.Any("panic", p))
	}))
	if err != nil {
		return errors.Wrap(err, "create worker pool")
	}

	stopListener := context.AfterFunc(ctx, func() { ln.Close() })
	defer stopListener()

	cfg.logger.Info("serving", zap.Stringer("addr", ln.Addr()), zap.Int("workers", cfg.workers))

	var acceptErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				acceptErr = errors.Wrap(err, "accept")
			}
			break
		}

		if err := pool.Submit(func() { serveConn(ctx, conn, handler, userCtx, cfg) }); err != nil {
			cfg.logger.Warn("rejecting connection", zap.Stringer("remote", conn.RemoteAddr()), zap.Error(err))
			conn.Close()
		}
	}

	cfg.logger.Info("shutting down", zap.Int("running", pool.Running()))
	return multierr.Combine(acceptErr, pool.ReleaseTimeout(cfg.shutdownTimeout))
}

func serveConn(ctx context.Context, conn net.Conn, handler Handler, userCtx any, cfg serverConfig) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	logger := cfg.logger.With(zap.Stringer("remote", conn.RemoteAddr()))
	connCfg := cfg
	connCfg.logger = logger

	srv := newHttpServer(transport.FromConn(conn), connCfg)
	defer srv.Close()

	if err := srv.Run(ctx, handler, userCtx); err != nil && ctx.Err() == nil {
		logger.Warn("connection ended with error", zap.Error(err))
	}
}
