package transport

import (
	"fmt"
	"net"

	"github.com/pkg/errors"

	httperrors "github.com/nczempin/httpc-engine/errors"
)

// UnixTransport implements the Transport interface using Unix domain sockets
type UnixTransport struct {
	conn net.Conn
}

// NewUnixTransport creates a new UnixTransport instance
func NewUnixTransport() *UnixTransport {
	return &UnixTransport{
		conn: nil,
	}
}

// Connect establishes a Unix domain socket connection.
// addr.Host is the socket path; the port is ignored.
func (t *UnixTransport) Connect(addr Address) error {
	if t.conn != nil {
		return httperrors.NewTransportError(
			httperrors.TransportErrorSocketConnectFailure,
			"already connected",
			nil,
		)
	}

	conn, err := net.Dial("unix", addr.Host)
	if err != nil {
		return httperrors.NewTransportError(
			httperrors.TransportErrorSocketConnectFailure,
			fmt.Sprintf("failed to connect to %s", addr.Host),
			errors.Wrapf(err, "dial unix %s", addr.Host),
		)
	}

	t.conn = conn
	return nil
}

// Write sends data over the Unix domain socket
func (t *UnixTransport) Write(buf []byte) (int, error) {
	return writeConn(t.conn, buf)
}

// Read receives data from the Unix domain socket
func (t *UnixTransport) Read(buf []byte) (int, error) {
	return readConn(t.conn, buf)
}

// Close closes the Unix domain socket connection
func (t *UnixTransport) Close() error {
	err := closeConn(t.conn)
	t.conn = nil
	return err
}
