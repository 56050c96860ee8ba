//go:build linux

package transport

import (
	"fmt"
	"os"

	"github.com/godzie44/go-uring/uring"
	"golang.org/x/sys/unix"

	"github.com/nczempin/httpc-engine/errors"
)

// UringTransportV2 is the godzie44/go-uring flavour of UringTransport. Each
// Read or Write queues a single SQE and waits for its completion.
type UringTransportV2 struct {
	ring *uring.Ring
	fd   int
	file *os.File
}

func NewUringTransportV2() (*UringTransportV2, error) {
	ring, err := uring.New(uringEntries)
	if err != nil {
		return nil, errors.NewTransportError(errors.TransportErrorIoUringInit, "failed to initialize io_uring", err)
	}
	return &UringTransportV2{ring: ring, fd: -1}, nil
}

// Connect connects a blocking socket; reads and writes then go through the ring.
func (t *UringTransportV2) Connect(addr Address) error {
	if t.fd >= 0 {
		return errors.NewTransportError(errors.TransportErrorSocketConnectFailure, "already connected", nil)
	}

	fd, sa, err := openSocket(addr)
	if err != nil {
		return err
	}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return errors.NewTransportError(errors.TransportErrorSocketConnectFailure,
			fmt.Sprintf("failed to connect to %s", addr), err)
	}

	t.fd = fd
	t.file = os.NewFile(uintptr(fd), "socket")
	return nil
}

func (t *UringTransportV2) Write(buf []byte) (int, error) {
	if t.fd < 0 {
		return 0, notConnected(errors.TransportErrorSocketWriteFailure)
	}

	written := 0
	for written < len(buf) {
		// the offset is ignored for sockets
		n, err := t.complete(uring.Write(t.file.Fd(), buf[written:], 0), errors.TransportErrorSocketWriteFailure, "write")
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

func (t *UringTransportV2) Read(buf []byte) (int, error) {
	if t.fd < 0 {
		return 0, notConnected(errors.TransportErrorSocketReadFailure)
	}

	n, err := t.complete(uring.Read(t.file.Fd(), buf, 0), errors.TransportErrorSocketReadFailure, "read")
	if err != nil {
		return 0, err
	}
	if n == 0 && len(buf) > 0 {
		return 0, closedByPeer()
	}
	return n, nil
}

// complete queues op, submits it and waits for its completion result.
func (t *UringTransportV2) complete(op uring.Operation, kind errors.TransportError, what string) (int, error) {
	if err := t.ring.QueueSQE(op, 0, 0); err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			fmt.Sprintf("failed to queue %s request", what),
			err,
		)
	}

	if _, err := t.ring.Submit(); err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			fmt.Sprintf("failed to submit %s request", what),
			err,
		)
	}

	cqe, err := t.ring.WaitCQEvents(1)
	if err != nil {
		return 0, errors.NewTransportError(
			kind,
			fmt.Sprintf("failed to wait for %s completion", what),
			err,
		)
	}

	if err := cqe.Error(); err != nil {
		t.ring.SeenCQE(cqe)
		return 0, errors.NewTransportError(
			kind,
			fmt.Sprintf("%s operation failed", what),
			err,
		)
	}

	n := int(cqe.Res)
	t.ring.SeenCQE(cqe)
	return n, nil
}

func (t *UringTransportV2) Close() error {
	if t.fd < 0 {
		return nil
	}

	var err error
	if t.file != nil {
		err = t.file.Close()
		t.file = nil
	}
	t.fd = -1

	if err != nil {
		return errors.NewTransportError(
			errors.TransportErrorConnectionClosed,
			"failed to close socket",
			err,
		)
	}
	return nil
}

// Destroy closes the socket and releases the ring.
func (t *UringTransportV2) Destroy() {
	t.Close()
	if t.ring != nil {
		t.ring.Close()
		t.ring = nil
	}
}
