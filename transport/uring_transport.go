//go:build linux

package transport

import (
	"fmt"

	"github.com/iceber/iouring-go"
	"golang.org/x/sys/unix"

	"github.com/nczempin/httpc-engine/errors"
)

const uringEntries = 32

// UringTransport drives a blocking socket through an iceber/iouring-go ring.
// TCP connects are submitted to the ring too; Unix sockets connect directly.
type UringTransport struct {
	iour *iouring.IOURing
	fd   int
}

func NewUringTransport() (*UringTransport, error) {
	iour, err := iouring.New(uringEntries)
	if err != nil {
		return nil, errors.NewTransportError(errors.TransportErrorIoUringInit, "failed to initialize io_uring", err)
	}
	return &UringTransport{iour: iour, fd: -1}, nil
}

func (t *UringTransport) Connect(addr Address) error {
	if t.fd >= 0 {
		return errors.NewTransportError(errors.TransportErrorSocketConnectFailure, "already connected", nil)
	}

	fd, sa, err := openSocket(addr)
	if err != nil {
		return err
	}

	what := fmt.Sprintf("connect to %s", addr)
	if addr.Network == "unix" {
		if err = unix.Connect(fd, sa); err != nil {
			err = errors.NewTransportError(errors.TransportErrorSocketConnectFailure, "failed to "+what, err)
		}
	} else {
		err = t.connect(fd, sa, what)
	}
	if err != nil {
		unix.Close(fd)
		return err
	}

	t.fd = fd
	return nil
}

func (t *UringTransport) Write(buf []byte) (int, error) {
	if t.fd < 0 {
		return 0, notConnected(errors.TransportErrorSocketWriteFailure)
	}

	written := 0
	for written < len(buf) {
		n, err := t.do(iouring.Send(t.fd, buf[written:], 0), errors.TransportErrorSocketWriteFailure, "write")
		if err != nil {
			return written, err
		}
		if n <= 0 {
			return written, errors.NewTransportError(errors.TransportErrorConnectionClosed, "connection closed during write", nil)
		}
		written += n
	}
	return written, nil
}

func (t *UringTransport) Read(buf []byte) (int, error) {
	if t.fd < 0 {
		return 0, notConnected(errors.TransportErrorSocketReadFailure)
	}

	n, err := t.do(iouring.Recv(t.fd, buf, 0), errors.TransportErrorSocketReadFailure, "read")
	if err != nil {
		return 0, err
	}
	if n == 0 && len(buf) > 0 {
		return 0, closedByPeer()
	}
	return n, nil
}

func (t *UringTransport) connect(fd int, sa unix.Sockaddr, what string) error {
	prep, err := iouring.Connect(fd, syscallSockaddr(sa))
	if err != nil {
		return errors.NewTransportError(errors.TransportErrorSocketConnectFailure, "failed to "+what, err)
	}
	_, err = t.do(prep, errors.TransportErrorSocketConnectFailure, what)
	return err
}

// do submits one request and blocks until it completes. It returns the raw
// completion result; a negative result is reported as kind. Send and Recv
// carry no result resolver, so the errno is decoded here.
func (t *UringTransport) do(prep iouring.PrepRequest, kind errors.TransportError, what string) (int, error) {
	ch := make(chan iouring.Result, 1)
	req, err := t.iour.SubmitRequest(prep, ch)
	if err != nil {
		return 0, errors.NewTransportError(errors.TransportErrorIoUringSubmit, "failed to submit "+what+" request", err)
	}
	<-ch

	if err := req.Err(); err != nil {
		return 0, errors.NewTransportError(kind, what+" failed", err)
	}
	res, err := req.GetRes()
	if err != nil {
		return 0, errors.NewTransportError(kind, what+" failed", err)
	}
	if res < 0 {
		return 0, errors.NewTransportError(kind, what+" failed", unix.Errno(-res))
	}
	return res, nil
}

// Close closes the socket. The ring stays usable for a new Connect.
func (t *UringTransport) Close() error {
	if t.fd < 0 {
		return nil
	}
	fd := t.fd
	t.fd = -1
	if err := unix.Close(fd); err != nil {
		return errors.NewTransportError(errors.TransportErrorConnectionClosed, "failed to close socket", err)
	}
	return nil
}

// Destroy closes the socket and releases the ring.
func (t *UringTransport) Destroy() {
	t.Close()
	if t.iour != nil {
		t.iour.Close()
		t.iour = nil
	}
}
