package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nczempin/httpc-engine/client"
	"github.com/nczempin/httpc-engine/protocol"
	"github.com/nczempin/httpc-engine/server"
	"github.com/nczempin/httpc-engine/transport"
)

type headerList []string

func (h *headerList) String() string { return strings.Join(*h, ", ") }

func (h *headerList) Set(v string) error {
	if !strings.Contains(v, ":") {
		return fmt.Errorf("header %q is not in key: value form", v)
	}
	*h = append(*h, v)
	return nil
}

type options struct {
	method       string
	data         string
	output       string
	headers      headerList
	follow       bool
	maxRedirects int
	unixSocket   string
	transport    string
	timeout      time.Duration
	serve        string
	workers      int
	logFile      string
	verbose      bool
	otlpEndpoint string
	otlpInsecure bool
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts options
	flag.StringVar(&opts.method, "X", "", "request method (default GET, or POST with -d)")
	flag.StringVar(&opts.data, "d", "", "request body, or @file to send a file")
	flag.StringVar(&opts.output, "o", "", "write the response body to this file instead of stdout")
	flag.Var(&opts.headers, "H", "extra request header, repeatable")
	flag.BoolVar(&opts.follow, "L", true, "follow redirects")
	flag.IntVar(&opts.maxRedirects, "max-redirs", 5, "maximum redirects to follow")
	flag.StringVar(&opts.unixSocket, "unix-socket", "", "connect through this Unix domain socket")
	flag.StringVar(&opts.transport, "transport", "tcp", "socket implementation: tcp, uring or uring2")
	flag.DurationVar(&opts.timeout, "connect-timeout", 10*time.Second, "TCP connect timeout")
	flag.StringVar(&opts.serve, "serve", "", "run an echo server on these comma separated addresses instead of fetching")
	flag.IntVar(&opts.workers, "workers", 256, "concurrent connections per listener in serve mode")
	flag.StringVar(&opts.logFile, "log-file", "", "write logs to this file, rotated")
	flag.BoolVar(&opts.verbose, "v", false, "debug logging")
	flag.StringVar(&opts.otlpEndpoint, "otlp-endpoint", "", "export traces and metrics over OTLP/gRPC to host:port")
	flag.BoolVar(&opts.otlpInsecure, "otlp-insecure", false, "disable TLS for the OTLP exporter")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] http://host[:port]/path\n       %s -serve :8080\n", os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger, err := newLogger(opts.logFile, opts.verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "httpc:", err)
		return 2
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.otlpEndpoint != "" {
		shutdown, err := setupTelemetry(ctx, opts.otlpEndpoint, opts.otlpInsecure)
		if err != nil {
			logger.Error("telemetry setup failed", zap.Error(err))
			return 1
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Warn("telemetry shutdown", zap.Error(err))
			}
		}()
	}

	if opts.serve != "" {
		err = runServe(ctx, logger, opts)
	} else if flag.NArg() == 1 {
		err = runFetch(ctx, logger, opts, flag.Arg(0))
	} else {
		flag.Usage()
		return 2
	}
	if err != nil {
		logger.Error("httpc failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "httpc:", err)
		return 1
	}
	return 0
}

func newLogger(path string, verbose bool) (*zap.Logger, error) {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}

	if path == "" {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg.Build()
	}

	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	})
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, level)
	return zap.New(core, zap.AddCaller()), nil
}

func runFetch(ctx context.Context, logger *zap.Logger, opts options, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" {
		return fmt.Errorf("unsupported scheme %q, only http is spoken", u.Scheme)
	}
	port := 80
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return fmt.Errorf("invalid port %q", p)
		}
	}

	t, err := newTransport(opts)
	if err != nil {
		return err
	}

	clientOpts := []client.Option{
		client.WithLogger(logger),
		client.WithFollowRedirects(opts.follow),
		client.WithMaxRedirects(opts.maxRedirects),
	}
	if opts.unixSocket != "" {
		clientOpts = append(clientOpts, client.WithResolver(transport.PathResolver{Path: opts.unixSocket}))
	}
	c := client.NewHttpClient(t, clientOpts...)
	defer c.Close()

	if err := c.Connect(ctx, u.Hostname(), port); err != nil {
		return err
	}
	for _, h := range opts.headers {
		key, value, _ := strings.Cut(h, ":")
		c.AddHeaderField(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	body, closeBody, err := requestBody(opts.data)
	if err != nil {
		return err
	}
	defer closeBody()

	method := protocol.MethodGet
	if body != nil {
		method = protocol.MethodPost
	}
	if opts.method != "" {
		if method = protocol.ParseMethod(opts.method); method == protocol.MethodNull {
			return fmt.Errorf("unknown method %q", opts.method)
		}
	}

	var sink io.WriteSeeker
	var memory protocol.MemorySink
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		sink = f
	} else {
		sink = &memory
	}

	start := time.Now()
	resp, err := c.ExecuteMethod(ctx, method, u.RequestURI(), client.ExecuteOptions{
		Request:  body,
		Response: sink,
		Progress: func(transferred, total int64) {
			logger.Debug("progress", zap.Int64("bytes", transferred), zap.Int64("total", total))
		},
	})
	if err != nil {
		return err
	}

	logger.Info("response",
		zap.String("status", resp.Version+" "+strconv.Itoa(int(resp.Status))+" "+resp.Reason),
		zap.Duration("elapsed", time.Since(start)))
	if opts.output == "" {
		_, err = os.Stdout.Write(memory.Bytes())
	}
	return err
}

func requestBody(data string) (io.ReadSeeker, func(), error) {
	switch {
	case data == "":
		return nil, func() {}, nil
	case strings.HasPrefix(data, "@"):
		f, err := os.Open(data[1:])
		if err != nil {
			return nil, nil, err
		}
		return f, func() { f.Close() }, nil
	default:
		return strings.NewReader(data), func() {}, nil
	}
}

func runServe(ctx context.Context, logger *zap.Logger, opts options) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, addr := range strings.Split(opts.serve, ",") {
		addr = strings.TrimSpace(addr)
		network := "tcp"
		if strings.HasPrefix(addr, "unix:") {
			network, addr = "unix", strings.TrimPrefix(addr, "unix:")
		}

		ln, err := net.Listen(network, addr)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return server.Serve(gctx, ln, echo, logger,
				server.WithLogger(logger.Named(ln.Addr().String())),
				server.WithWorkers(opts.workers))
		})
	}
	return g.Wait()
}

// echo answers every request with its request line, headers and body.
func echo(srv *server.HttpServer, userCtx any, req protocol.HttpRequest) bool {
	logger := userCtx.(*zap.Logger)

	var out protocol.MemorySink
	fmt.Fprintf(&out, "%s\r\n%s\r\n", req, srv.Headers())
	if err := srv.ReceiveBody(&out, protocol.TransferOptions{}); err != nil {
		logger.Warn("reading request body", zap.Error(err))
		return true
	}

	srv.AddHeaderField("Content-Type", "text/plain")
	if err := srv.Respond(protocol.StatusOK, bytes.NewReader(out.Bytes())); err != nil {
		logger.Warn("writing response", zap.Error(err))
		return true
	}
	return false
}
