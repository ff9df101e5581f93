package transport

import (
	"context"
	"fmt"
	"net"
)

// Resolve turns a numeric IPv4/IPv6 literal or a hostname into one or more
// candidate UDP addresses honoring the requested address-family
// restriction, matching rudp_address_resolve's IPV4_ONLY|IPV6_ONLY|IP_ANY
// flags from the original implementation (see SPEC_FULL.md's supplemented
// features).
func Resolve(ctx context.Context, host string, port int, family AddressFamily) ([]*net.UDPAddr, error) {
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %q: %w", host, err)
	}

	var out []*net.UDPAddr
	for _, ip := range ips {
		is4 := ip.IP.To4() != nil
		switch family {
		case IPv4Only:
			if !is4 {
				continue
			}
		case IPv6Only:
			if is4 {
				continue
			}
		}
		out = append(out, &net.UDPAddr{IP: ip.IP, Port: port, Zone: ip.Zone})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("transport: no address of the requested family for %q", host)
	}
	return out, nil
}

// WildcardFor returns the wildcard local bind address for the requested
// family — :: for IPv6Only, 0.0.0.0 otherwise — as the client role binds to
// before connecting, per SPEC_FULL.md §4.3.
func WildcardFor(family AddressFamily) *net.UDPAddr {
	if family == IPv6Only {
		return &net.UDPAddr{IP: net.IPv6zero, Port: 0}
	}
	return &net.UDPAddr{IP: net.IPv4zero, Port: 0}
}
