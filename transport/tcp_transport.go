package transport

import (
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/pkg/errors"

	httperrors "github.com/nczempin/httpc-engine/errors"
)

// TcpTransport implements the Transport interface using blocking TCP sockets
type TcpTransport struct {
	conn        net.Conn
	dialTimeout time.Duration
}

// NewTcpTransport creates a new TcpTransport instance
func NewTcpTransport() *TcpTransport {
	return &TcpTransport{
		conn: nil,
	}
}

// NewTcpTransportTimeout creates a TcpTransport whose Connect gives up after d.
func NewTcpTransportTimeout(d time.Duration) *TcpTransport {
	return &TcpTransport{dialTimeout: d}
}

// FromConn wraps an already established connection, typically one returned
// by net.Listener.Accept.
func FromConn(conn net.Conn) *TcpTransport {
	return &TcpTransport{conn: conn}
}

// Connect establishes a TCP connection to addr
func (t *TcpTransport) Connect(addr Address) error {
	if t.conn != nil {
		return httperrors.NewTransportError(
			httperrors.TransportErrorSocketConnectFailure,
			"already connected",
			nil,
		)
	}

	dialer := net.Dialer{Timeout: t.dialTimeout}
	conn, err := dialer.Dial("tcp", addr.String())
	if err != nil {
		return classifyDialError(addr, err)
	}

	// Set TCP_NODELAY to disable Nagle's algorithm for lower latency
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			conn.Close()
			return httperrors.NewTransportError(
				httperrors.TransportErrorSocketCreateFailure,
				"failed to set TCP_NODELAY",
				err,
			)
		}
	}

	t.conn = conn
	return nil
}

func classifyDialError(addr Address, err error) error {
	cause := errors.Wrapf(err, "dial %s", addr)
	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		return httperrors.NewTransportError(httperrors.TransportErrorDnsFailure, fmt.Sprintf("failed to resolve %s", addr.Host), cause)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return httperrors.NewTransportError(httperrors.TransportErrorTimeout, fmt.Sprintf("timed out connecting to %s", addr), cause)
	}
	return httperrors.NewTransportError(
		httperrors.TransportErrorSocketConnectFailure,
		fmt.Sprintf("failed to connect to %s", addr),
		cause,
	)
}

// Write sends data over the TCP connection
func (t *TcpTransport) Write(buf []byte) (int, error) {
	return writeConn(t.conn, buf)
}

// Read receives data from the TCP connection
func (t *TcpTransport) Read(buf []byte) (int, error) {
	return readConn(t.conn, buf)
}

// Close closes the TCP connection
func (t *TcpTransport) Close() error {
	err := closeConn(t.conn)
	t.conn = nil
	return err
}

func writeConn(conn net.Conn, buf []byte) (int, error) {
	if conn == nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "not connected", nil)
	}

	n, err := conn.Write(buf)
	if err != nil {
		// Check for broken pipe or connection reset
		if stderrors.Is(err, syscall.EPIPE) || stderrors.Is(err, syscall.ECONNRESET) {
			return n, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed during write", err)
		}
		return n, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "write failed", err)
	}

	return n, nil
}

func readConn(conn net.Conn, buf []byte) (int, error) {
	if conn == nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "not connected", nil)
	}

	n, err := conn.Read(buf)
	if err != nil {
		if stderrors.Is(err, io.EOF) || stderrors.Is(err, syscall.ECONNRESET) {
			return n, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed by peer", err)
		}
		var netErr net.Error
		if stderrors.As(err, &netErr) && netErr.Timeout() {
			return n, httperrors.NewTransportError(httperrors.TransportErrorTimeout, "read timed out", err)
		}
		return n, httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "read failed", err)
	}

	return n, nil
}

func closeConn(conn net.Conn) error {
	if conn == nil {
		return nil // Idempotent close
	}

	if err := conn.Close(); err != nil {
		return httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "failed to close socket", err)
	}
	return nil
}
