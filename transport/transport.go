package transport

import (
	"net"
	"strconv"
)

// Transport defines the interface for blocking stream sockets.
// Implementations include TCP, Unix domain and io_uring backed sockets.
type Transport interface {
	// Connect establishes a connection to the given address.
	Connect(addr Address) error

	// Write sends data over the connection
	// Returns the number of bytes written
	Write(buf []byte) (int, error)

	// Read receives data from the connection
	// Returns the number of bytes read
	Read(buf []byte) (int, error)

	// Close closes the connection. Closing an unconnected transport is a no-op
	// and a closed transport can be connected again.
	Close() error
}

// Address is one connect candidate produced by a Resolver.
type Address struct {
	// Network is "tcp" or "unix".
	Network string
	// Host is an IP literal for tcp and the socket path for unix.
	Host string
	Port int
}

func (a Address) String() string {
	if a.Network == "unix" {
		return a.Host
	}
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}
