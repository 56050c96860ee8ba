package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nczempin/httpc-engine/errors"
	"github.com/nczempin/httpc-engine/protocol"
	"github.com/nczempin/httpc-engine/transport"
)

// HttpClient runs HTTP/1.1 exchanges over a single transport connection,
// reconnecting when the server closes it. It is not safe for concurrent use.
type HttpClient struct {
	transport transport.Transport
	protocol  *protocol.Http1Protocol
	cfg       clientConfig
	logger    *zap.Logger
	tracer    trace.Tracer

	exchanges metric.Int64Counter
	redirects metric.Int64Counter

	host      string
	port      int
	active    transport.Address
	connected bool
}

// ExecuteOptions carries the bodies of one exchange.
type ExecuteOptions struct {
	// Request is sent from its current position to its end. It is rewound
	// to that position before a redirect is followed.
	Request io.ReadSeeker
	// Response receives the body. Nil discards it.
	Response io.WriteSeeker
	// Progress is reported while a GET response body is received.
	Progress protocol.ProgressFunc
}

// NewHttpClient creates a client that speaks over t.
func NewHttpClient(t transport.Transport, opts ...Option) *HttpClient {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	protoOpts := append([]protocol.Option{protocol.WithProtocolLogger(cfg.logger)}, cfg.protocolOpts...)
	c := &HttpClient{
		transport: t,
		protocol:  protocol.NewHttp1Protocol(t, protoOpts...),
		cfg:       cfg,
		logger:    cfg.logger,
		tracer:    cfg.tracerProvider.Tracer(instrumentationName),
	}

	meter := cfg.meterProvider.Meter(instrumentationName)
	var err error
	if c.exchanges, err = meter.Int64Counter("http1.client.exchanges",
		metric.WithDescription("HTTP exchanges started"),
		metric.WithUnit("{exchange}")); err != nil {
		c.logger.Warn("exchange counter unavailable", zap.Error(err))
	}
	if c.redirects, err = meter.Int64Counter("http1.client.redirects",
		metric.WithDescription("Redirects followed"),
		metric.WithUnit("{redirect}")); err != nil {
		c.logger.Warn("redirect counter unavailable", zap.Error(err))
	}

	return c
}

// Connect resolves host and tries each candidate address in order, renewing
// the transport before every attempt. The first address that connects becomes
// the active one.
func (c *HttpClient) Connect(ctx context.Context, host string, port int) error {
	addrs, err := c.cfg.resolver.Resolve(ctx, host, port)
	if err != nil {
		return err
	}

	var attempts error
	for _, addr := range addrs {
		if err := ctx.Err(); err != nil {
			return err
		}

		_ = c.protocol.Renew()
		if err := c.protocol.Connect(addr); err != nil {
			c.logger.Debug("connect attempt failed", zap.Stringer("addr", addr), zap.Error(err))
			attempts = multierr.Append(attempts, err)
			continue
		}

		c.host, c.port, c.active, c.connected = host, port, addr, true
		c.logger.Debug("connected", zap.String("host", host), zap.Stringer("addr", addr))
		return nil
	}

	c.connected = false
	return errors.NewConnectionError(fmt.Sprintf("no address of %s:%d accepted a connection", host, port), attempts)
}

// Connected reports whether the client holds an open connection.
func (c *HttpClient) Connected() bool {
	return c.connected
}

// ActiveAddress returns the address of the current or last connection.
func (c *HttpClient) ActiveAddress() transport.Address {
	return c.active
}

// Disconnect closes the connection. The next exchange reconnects to the
// same host.
func (c *HttpClient) Disconnect() error {
	c.connected = false
	return c.protocol.Renew()
}

// Close disconnects and releases the transport's resources.
func (c *HttpClient) Close() error {
	c.connected = false
	err := c.protocol.Close()
	if d, ok := c.transport.(interface{ Destroy() }); ok {
		d.Destroy()
	}
	return err
}

// AddHeaderField queues a header for the next request.
func (c *HttpClient) AddHeaderField(key, value string) {
	c.protocol.AddHeaderField(key, value)
}

// AddHeaderFields queues a raw block of header lines for the next request.
func (c *HttpClient) AddHeaderFields(block string) {
	c.protocol.AddHeaderFields(block)
}

// HeaderField returns a header of the last response, or of the request
// being built once new headers have been added.
func (c *HttpClient) HeaderField(key string) string {
	return c.protocol.HeaderField(key)
}

// Headers returns the raw header text of the last response.
func (c *HttpClient) Headers() string {
	return c.protocol.Headers()
}

// Get performs a GET request
func (c *HttpClient) Get(ctx context.Context, path string, sink io.WriteSeeker) (*protocol.HttpResponse, error) {
	return c.ExecuteMethod(ctx, protocol.MethodGet, path, ExecuteOptions{Response: sink})
}

// Head performs a HEAD request
func (c *HttpClient) Head(ctx context.Context, path string) (*protocol.HttpResponse, error) {
	return c.ExecuteMethod(ctx, protocol.MethodHead, path, ExecuteOptions{})
}

// Post performs a POST request with body
func (c *HttpClient) Post(ctx context.Context, path string, body io.ReadSeeker, sink io.WriteSeeker) (*protocol.HttpResponse, error) {
	return c.ExecuteMethod(ctx, protocol.MethodPost, path, ExecuteOptions{Request: body, Response: sink})
}

// Put performs a PUT request with body
func (c *HttpClient) Put(ctx context.Context, path string, body io.ReadSeeker, sink io.WriteSeeker) (*protocol.HttpResponse, error) {
	return c.ExecuteMethod(ctx, protocol.MethodPut, path, ExecuteOptions{Request: body, Response: sink})
}

// Patch performs a PATCH request with body
func (c *HttpClient) Patch(ctx context.Context, path string, body io.ReadSeeker, sink io.WriteSeeker) (*protocol.HttpResponse, error) {
	return c.ExecuteMethod(ctx, protocol.MethodPatch, path, ExecuteOptions{Request: body, Response: sink})
}

// Delete performs a DELETE request
func (c *HttpClient) Delete(ctx context.Context, path string, sink io.WriteSeeker) (*protocol.HttpResponse, error) {
	return c.ExecuteMethod(ctx, protocol.MethodDelete, path, ExecuteOptions{Response: sink})
}

// ExecuteMethod performs one logical exchange: it connects if needed, sends
// the request with the queued headers, follows redirects and receives the
// final body into opts.Response. On failure the response parsed so far, if
// any, is returned together with the error.
func (c *HttpClient) ExecuteMethod(ctx context.Context, method protocol.HttpMethod, path string, opts ExecuteOptions) (resp *protocol.HttpResponse, err error) {
	ctx, span := c.tracer.Start(ctx, "HTTP "+method.String(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method.String()),
			attribute.String("url.path", path),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if resp != nil {
			span.SetAttributes(attribute.Int("http.response.status_code", int(resp.Status)))
		}
		span.End()
	}()

	if err := validateRequest(method, opts.Request); err != nil {
		return nil, err
	}
	if c.exchanges != nil {
		c.exchanges.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method.String())))
	}

	sink := opts.Response
	if sink == nil {
		sink = protocol.Discard
	}

	var bodyStart int64
	if opts.Request != nil {
		if bodyStart, err = opts.Request.Seek(0, io.SeekCurrent); err != nil {
			return nil, errors.NewInvalidArgumentError("request body is not seekable").WithCause(err)
		}
	}

	// Headers queued by the caller, replayed on every redirect hop.
	callerHeaders := c.protocol.PendingHeaders()
	originHost, originPort := c.host, c.port

	for redirects := 0; ; {
		if err := ctx.Err(); err != nil {
			return resp, err
		}
		if !c.connected {
			if c.host == "" {
				return resp, errors.NewInvalidArgumentError("no host to connect to")
			}
			if err := c.Connect(ctx, c.host, c.port); err != nil {
				return resp, err
			}
		}

		c.protocol.OpenHeaders()
		if redirects > 0 && callerHeaders != "" {
			if c.host != originHost || c.port != originPort {
				c.protocol.AddHeaderFields(protocol.WithoutHeader(callerHeaders, "Host"))
			} else {
				c.protocol.AddHeaderFields(callerHeaders)
			}
		}

		if err := c.sendRequest(method, path, opts.Request); err != nil {
			c.drop()
			return resp, err
		}

		resp, err = c.receiveHead()
		if err != nil {
			c.drop()
			return resp, err
		}

		location := c.protocol.HeaderField("Location")
		if resp.Status.IsRedirect() && c.cfg.followRedirects && location != "" {
			if redirects >= c.cfg.maxRedirects {
				c.drop()
				return resp, errors.NewProtocolError(errors.ProtocolErrorTooManyRedirects,
					fmt.Sprintf("stopped after %d redirects at %s", redirects, location))
			}
			if path, err = c.redirect(ctx, method, resp, path, location, sink); err != nil {
				return resp, err
			}
			if opts.Request != nil {
				if _, err := opts.Request.Seek(bodyStart, io.SeekStart); err != nil {
					return resp, errors.NewInvalidArgumentError("cannot rewind request body").WithCause(err)
				}
			}
			redirects++
			continue
		}

		if bodyAllowed(method, resp.Status) && c.protocol.BodyExpected() {
			var topts protocol.TransferOptions
			if method == protocol.MethodGet {
				topts.Progress = opts.Progress
			}
			if err := c.protocol.ReceiveBody(sink, topts); err != nil {
				c.drop()
				return resp, err
			}
		}

		c.finish(resp)
		c.logger.Debug("exchange complete",
			zap.Stringer("method", method),
			zap.String("path", path),
			zap.Int("status", int(resp.Status)),
			zap.Int("redirects", redirects))
		return resp, nil
	}
}

func validateRequest(method protocol.HttpMethod, body io.ReadSeeker) error {
	switch method {
	case protocol.MethodNull:
		return errors.NewInvalidArgumentError("request method is not set")
	case protocol.MethodGet, protocol.MethodHead:
		if body != nil {
			return errors.NewInvalidArgumentError(fmt.Sprintf("%s request cannot have a body", method))
		}
	}
	return nil
}

// sendRequest fills in the default headers, picks the body framing and
// writes the request.
func (c *HttpClient) sendRequest(method protocol.HttpMethod, path string, body io.ReadSeeker) error {
	c.protocol.ResetTransferState()

	if !c.protocol.HasHeaderField("Host") {
		c.protocol.AddHeaderField("Host", c.hostHeader())
	}
	if !c.protocol.HasHeaderField("Accept") {
		c.protocol.AddHeaderField("Accept", "*/*")
	}
	if !c.protocol.HasHeaderField("User-Agent") {
		c.protocol.AddHeaderField("User-Agent", c.cfg.userAgent)
	}
	if !c.protocol.HasHeaderField("Connection") {
		c.protocol.AddHeaderField("Connection", "keep-alive")
	}

	if strings.Contains(strings.ToLower(c.protocol.HeaderField("Accept")), "text/event-stream") {
		c.protocol.SetEventStream(true)
	}

	if body != nil {
		if strings.Contains(strings.ToLower(c.protocol.HeaderField("Transfer-Encoding")), "chunked") {
			c.protocol.SetChunked(true)
		} else if !c.protocol.HasHeaderField("Content-Length") {
			size, err := protocol.Remaining(body)
			if err != nil {
				return errors.NewInvalidArgumentError("request body is not seekable").WithCause(err)
			}
			c.protocol.AddHeaderField("Content-Length", strconv.FormatInt(size, 10))
		}
	}

	if err := c.protocol.SendRequest(protocol.NewHttpRequest(method, path)); err != nil {
		return err
	}
	if body != nil {
		return c.protocol.SendBody(body, protocol.TransferOptions{})
	}
	return nil
}

// receiveHead reads the status line and header block, skipping interim 1xx
// responses other than 101.
func (c *HttpClient) receiveHead() (*protocol.HttpResponse, error) {
	expectStream := c.protocol.EventStream()
	for {
		line, err := c.protocol.ReadLine()
		if err != nil {
			return nil, err
		}

		resp := protocol.ParseResponseLine(line)
		if resp.Status == 0 {
			return nil, errors.NewProtocolError(errors.ProtocolErrorInvalidStatusLine, fmt.Sprintf("invalid status line %q", line))
		}

		if resp.Status.IsInformational() && resp.Status != protocol.StatusSwitchingProtocols {
			c.logger.Debug("skipping interim response", zap.Int("status", int(resp.Status)))
			if _, err := c.protocol.ReceiveHeaderFields(); err != nil {
				return &resp, err
			}
			c.protocol.SetEventStream(expectStream)
			continue
		}

		if _, err := c.protocol.ReceiveHeaderFields(); err != nil {
			return &resp, err
		}
		return &resp, nil
	}
}

// redirect drains the redirect response, leaves sink where it was and points
// the client at location. It returns the request path for the next hop.
func (c *HttpClient) redirect(ctx context.Context, method protocol.HttpMethod, resp *protocol.HttpResponse, path, location string, sink io.Seeker) (string, error) {
	position, err := sink.Seek(0, io.SeekCurrent)
	if err != nil {
		return "", errors.NewInvalidArgumentError("response sink is not seekable").WithCause(err)
	}

	if bodyAllowed(method, resp.Status) && c.protocol.BodyExpected() {
		if c.protocol.EventStream() {
			// an open ended body cannot be drained
			c.drop()
		} else if err := c.protocol.ReceiveBody(protocol.Discard, protocol.TransferOptions{}); err != nil {
			c.drop()
			return "", err
		}
	}
	c.finish(resp)

	if _, err := sink.Seek(position, io.SeekStart); err != nil {
		return "", errors.NewInvalidArgumentError("cannot restore response sink position").WithCause(err)
	}

	host, port, next, err := c.resolveLocation(path, location)
	if err != nil {
		return "", err
	}
	if host != c.host || port != c.port {
		_ = c.Disconnect()
		c.host, c.port = host, port
	}

	if c.redirects != nil {
		c.redirects.Add(ctx, 1, metric.WithAttributes(attribute.Int("status", int(resp.Status))))
	}
	c.logger.Debug("following redirect",
		zap.Int("status", int(resp.Status)),
		zap.String("from", path),
		zap.String("location", location),
		zap.String("host", host))
	return next, nil
}

// resolveLocation turns a Location value into host, port and request target.
// An absolute path stays on the current host.
func (c *HttpClient) resolveLocation(current, location string) (string, int, string, error) {
	if strings.HasPrefix(location, "/") && !strings.HasPrefix(location, "//") {
		return c.host, c.port, location, nil
	}

	base, err := url.Parse(current)
	if err != nil {
		base = &url.URL{Path: "/"}
	}
	base.Scheme = "http"
	base.Host = net.JoinHostPort(c.host, strconv.Itoa(c.port))

	ref, err := url.Parse(location)
	if err != nil {
		return "", 0, "", errors.NewProtocolError(errors.ProtocolErrorInvalidLocation, fmt.Sprintf("invalid Location %q", location)).WithCause(err)
	}
	target := base.ResolveReference(ref)
	if target.Scheme != "http" {
		return "", 0, "", errors.NewProtocolError(errors.ProtocolErrorInvalidLocation, fmt.Sprintf("unsupported redirect scheme %q", target.Scheme))
	}

	port := 80
	if p := target.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return "", 0, "", errors.NewProtocolError(errors.ProtocolErrorInvalidLocation, fmt.Sprintf("invalid port in Location %q", location))
		}
	}
	return target.Hostname(), port, target.RequestURI(), nil
}

// finish renews the connection when the response does not allow reuse.
func (c *HttpClient) finish(resp *protocol.HttpResponse) {
	connection := strings.ToLower(c.protocol.HeaderField("Connection"))
	switch {
	case connection == "close":
	case c.protocol.EventStream():
	case resp.Version == "HTTP/1.0" && connection != "keep-alive":
	default:
		return
	}
	c.drop()
}

func (c *HttpClient) drop() {
	if err := c.Disconnect(); err != nil {
		c.logger.Debug("closing connection failed", zap.Error(err))
	}
}

func (c *HttpClient) hostHeader() string {
	if c.port == 80 || c.port == 0 || c.active.Network == "unix" {
		return c.host
	}
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

func bodyAllowed(method protocol.HttpMethod, status protocol.HttpStatus) bool {
	if method == protocol.MethodHead {
		return false
	}
	return status != protocol.StatusNoContent && status != protocol.StatusNotModified
}
