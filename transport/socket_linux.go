//go:build linux

package transport

import (
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/nczempin/httpc-engine/errors"
)

// openSocket creates an unconnected stream socket for addr and returns it
// with the sockaddr to connect to. TCP sockets get TCP_NODELAY.
func openSocket(addr Address) (int, unix.Sockaddr, error) {
	family, sa, err := sockaddrOf(addr)
	if err != nil {
		return -1, nil, err
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, nil, errors.NewTransportError(errors.TransportErrorSocketCreateFailure, "failed to create socket", err)
	}

	if family != unix.AF_UNIX {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			unix.Close(fd)
			return -1, nil, errors.NewTransportError(errors.TransportErrorSocketCreateFailure, "failed to set TCP_NODELAY", err)
		}
	}
	return fd, sa, nil
}

func sockaddrOf(addr Address) (int, unix.Sockaddr, error) {
	if addr.Network == "unix" {
		return unix.AF_UNIX, &unix.SockaddrUnix{Name: addr.Host}, nil
	}
	ip := net.ParseIP(addr.Host)
	if ip == nil {
		return 0, nil, errors.NewInvalidArgumentError(fmt.Sprintf("not an IP address: %q", addr.Host))
	}
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa, nil
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], ip.To16())
	return unix.AF_INET6, sa, nil
}

// syscallSockaddr converts sa for APIs still typed on package syscall.
func syscallSockaddr(sa unix.Sockaddr) syscall.Sockaddr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &syscall.SockaddrInet4{Port: sa.Port, Addr: sa.Addr}
	case *unix.SockaddrInet6:
		return &syscall.SockaddrInet6{Port: sa.Port, ZoneId: sa.ZoneId, Addr: sa.Addr}
	case *unix.SockaddrUnix:
		return &syscall.SockaddrUnix{Name: sa.Name}
	}
	return nil
}

func notConnected(kind errors.TransportError) error {
	return errors.NewTransportError(kind, "not connected", nil)
}

func closedByPeer() error {
	return errors.NewTransportError(errors.TransportErrorConnectionClosed, "connection closed by peer", nil)
}
