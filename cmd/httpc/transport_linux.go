//go:build linux

package main

import (
	"fmt"

	"github.com/nczempin/httpc-engine/transport"
)

func newTransport(opts options) (transport.Transport, error) {
	switch opts.transport {
	case "tcp":
		if opts.unixSocket != "" {
			return transport.NewUnixTransport(), nil
		}
		return transport.NewTcpTransportTimeout(opts.timeout), nil
	case "uring":
		t, err := transport.NewUringTransport()
		if err != nil {
			return nil, err
		}
		return t, nil
	case "uring2":
		t, err := transport.NewUringTransportV2()
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", opts.transport)
	}
}
