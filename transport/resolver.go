package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/errors"

	httperrors "github.com/nczempin/httpc-engine/errors"
)

// Resolver turns a host name and port into an ordered list of candidates.
type Resolver interface {
	Resolve(ctx context.Context, host string, port int) ([]Address, error)
}

// NetResolver resolves through a net.Resolver.
type NetResolver struct {
	// Resolver defaults to net.DefaultResolver.
	Resolver *net.Resolver
	// Network selects the address family: "ip", "ip4" or "ip6". Empty means "ip".
	Network string
}

// Resolve implements Resolver. IP literals are returned without a lookup.
func (r NetResolver) Resolve(ctx context.Context, host string, port int) ([]Address, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []Address{{Network: "tcp", Host: ip.String(), Port: port}}, nil
	}

	resolver := r.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	network := r.Network
	if network == "" {
		network = "ip"
	}

	ips, err := resolver.LookupIP(ctx, network, host)
	if err != nil {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorDnsFailure,
			fmt.Sprintf("failed to resolve %s", host),
			errors.Wrapf(err, "lookup %s %s", network, host),
		)
	}
	if len(ips) == 0 {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorDnsFailure,
			fmt.Sprintf("no addresses for %s", host),
			nil,
		)
	}

	addrs := make([]Address, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, Address{Network: "tcp", Host: ip.String(), Port: port})
	}
	return addrs, nil
}

// PathResolver maps every host to a single Unix domain socket path.
type PathResolver struct {
	Path string
}

// Resolve implements Resolver. The port is ignored.
func (r PathResolver) Resolve(_ context.Context, _ string, _ int) ([]Address, error) {
	return []Address{{Network: "unix", Host: r.Path}}, nil
}
