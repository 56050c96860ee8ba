//go:build !linux

package main

import (
	"fmt"

	"github.com/nczempin/httpc-engine/transport"
)

func newTransport(opts options) (transport.Transport, error) {
	if opts.transport != "tcp" {
		return nil, fmt.Errorf("transport %q needs io_uring, which is Linux only", opts.transport)
	}
	if opts.unixSocket != "" {
		return transport.NewUnixTransport(), nil
	}
	return transport.NewTcpTransportTimeout(opts.timeout), nil
}
