package server

import (
	"context"
	stderrors "errors"
	"io"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	httperrors "github.com/nczempin/httpc-engine/errors"
	"github.com/nczempin/httpc-engine/protocol"
	"github.com/nczempin/httpc-engine/transport"
)

// Handler serves one request. It reads the request headers and body and
// writes the response through srv. Returning true stops the server loop.
type Handler func(srv *HttpServer, userCtx any, req protocol.HttpRequest) bool

// HttpServer reads requests from one connection and dispatches them to a
// Handler, one at a time. It is not safe for concurrent use.
type HttpServer struct {
	protocol *protocol.Http1Protocol
	logger   *zap.Logger
	requests metric.Int64Counter

	// request body announced by the last head and not read by the handler
	bodyPending bool
}

// NewHttpServer creates a server speaking over an established transport.
func NewHttpServer(t transport.Transport, opts ...Option) *HttpServer {
	cfg := defaultServerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newHttpServer(t, cfg)
}

func newHttpServer(t transport.Transport, cfg serverConfig) *HttpServer {
	protoOpts := append([]protocol.Option{protocol.WithProtocolLogger(cfg.logger)}, cfg.protocolOpts...)
	s := &HttpServer{
		protocol: protocol.NewHttp1Protocol(t, protoOpts...),
		logger:   cfg.logger,
	}

	counter, err := cfg.meterProvider.Meter(instrumentationName).Int64Counter("http1.server.requests",
		metric.WithDescription("Requests dispatched to handlers"),
		metric.WithUnit("{request}"))
	if err != nil {
		s.logger.Warn("request counter unavailable", zap.Error(err))
	}
	s.requests = counter
	return s
}

// Run reads and dispatches requests until the handler asks to stop, the
// peer closes the connection or ctx is done. Lines that are not a request
// line with a known method are skipped without a response. A peer close
// between requests is not an error.
func (s *HttpServer) Run(ctx context.Context, handler Handler, userCtx any) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := s.protocol.ReadLine()
		if err != nil {
			if isClosed(err) {
				return nil
			}
			return err
		}

		req := protocol.ParseRequestLine(line)
		if req.Method == protocol.MethodNull {
			if line != "" {
				s.logger.Debug("skipping unrecognized request line", zap.String("line", line))
			}
			continue
		}

		s.logger.Info("request",
			zap.Stringer("method", req.Method),
			zap.String("path", req.Path),
			zap.String("version", req.Version))

		s.protocol.ResetTransferState()
		if _, err := s.protocol.ReceiveHeaderFields(); err != nil {
			if isClosed(err) {
				return nil
			}
			return err
		}
		s.bodyPending = s.protocol.BodyExpected()

		if s.requests != nil {
			s.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("method", req.Method.String())))
		}

		if handler(s, userCtx, req) {
			return nil
		}
		if err := s.discardRequestBody(); err != nil {
			return err
		}
	}
}

// Close closes the connection.
func (s *HttpServer) Close() error {
	return s.protocol.Close()
}

// HeaderField looks up a request header, or a response header once the
// handler has started adding them.
func (s *HttpServer) HeaderField(key string) string {
	return s.protocol.HeaderField(key)
}

// Headers returns the raw header text of the current request.
func (s *HttpServer) Headers() string {
	return s.protocol.Headers()
}

// AddHeaderField queues a response header.
func (s *HttpServer) AddHeaderField(key, value string) {
	s.protocol.AddHeaderField(key, value)
}

// AddHeaderFields queues a raw block of response headers.
func (s *HttpServer) AddHeaderFields(block string) {
	s.protocol.AddHeaderFields(block)
}

// ReceiveBody reads the request body into sink.
func (s *HttpServer) ReceiveBody(sink io.Writer, opts protocol.TransferOptions) error {
	if !s.bodyPending {
		return nil
	}
	s.bodyPending = false
	return s.protocol.ReceiveBody(sink, opts)
}

// SendResponse writes the status line and queued headers. Any unread
// request body is discarded first.
func (s *HttpServer) SendResponse(resp protocol.HttpResponse) error {
	if err := s.discardRequestBody(); err != nil {
		return err
	}
	s.protocol.OpenHeaders()
	s.protocol.SetChunked(strings.Contains(strings.ToLower(s.protocol.HeaderField("Transfer-Encoding")), "chunked"))
	return s.protocol.SendResponse(resp)
}

// SendBody writes a response body, chunked if the response announced it.
func (s *HttpServer) SendBody(body io.ReadSeeker, opts protocol.TransferOptions) error {
	return s.protocol.SendBody(body, opts)
}

// Respond sends a complete response. Content-Length is derived from body
// unless the handler set it or asked for chunked framing.
func (s *HttpServer) Respond(status protocol.HttpStatus, body io.ReadSeeker) error {
	if err := s.discardRequestBody(); err != nil {
		return err
	}
	s.protocol.OpenHeaders()

	chunked := strings.Contains(strings.ToLower(s.protocol.HeaderField("Transfer-Encoding")), "chunked")
	if !chunked && !s.protocol.HasHeaderField("Content-Length") {
		var size int64
		if body != nil {
			var err error
			if size, err = protocol.Remaining(body); err != nil {
				return httperrors.NewInvalidArgumentError("response body is not seekable").WithCause(err)
			}
		}
		s.protocol.AddHeaderField("Content-Length", strconv.FormatInt(size, 10))
	}

	if err := s.SendResponse(protocol.NewHttpResponse(status)); err != nil {
		return err
	}
	return s.SendBody(body, protocol.TransferOptions{})
}

func (s *HttpServer) discardRequestBody() error {
	if !s.bodyPending {
		return nil
	}
	s.bodyPending = false
	if s.protocol.EventStream() {
		// an open ended request body cannot be skipped
		return httperrors.NewProtocolError(httperrors.ProtocolErrorIncompleteResponse, "unread streaming request body")
	}
	return s.protocol.ReceiveBody(protocol.Discard, protocol.TransferOptions{})
}

func isClosed(err error) bool {
	return stderrors.Is(err, io.EOF) || httperrors.IsConnectionClosed(err)
}
