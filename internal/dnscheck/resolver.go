package dnscheck

import (
	"context"
	"net"
	"strings"
	"time"
)

// Resolver answers the two lookups the verification engine needs. Tests
// inject deterministic fixtures; production uses NetResolver.
type Resolver interface {
	LookupA(ctx context.Context, host string) ([]string, error)
	LookupCNAME(ctx context.Context, host string) (string, error)
}

// DefaultResolverAddr is the public resolver queried for verification.
// Going straight to a public resolver avoids false positives from a stale
// local cache after the dealer updates their registrar.
const DefaultResolverAddr = "1.1.1.1:53"

// NetResolver resolves against a fixed public DNS server.
type NetResolver struct {
	resolver *net.Resolver
}

// NewNetResolver creates a resolver that dials addr for every query. An
// empty addr falls back to DefaultResolverAddr.
func NewNetResolver(addr string, timeout time.Duration) *NetResolver {
	if addr == "" {
		addr = DefaultResolverAddr
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &NetResolver{
		resolver: &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
				d := net.Dialer{Timeout: timeout}
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}

// LookupA returns the IPv4 addresses for host.
func (r *NetResolver) LookupA(ctx context.Context, host string) ([]string, error) {
	ips, err := r.resolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, err
	}
	addrs := make([]string, len(ips))
	for i, ip := range ips {
		addrs[i] = ip.String()
	}
	return addrs, nil
}

// LookupCNAME returns the canonical name for host, normalized (lowercase, no
// trailing dot).
func (r *NetResolver) LookupCNAME(ctx context.Context, host string) (string, error) {
	cname, err := r.resolver.LookupCNAME(ctx, host)
	if err != nil {
		return "", err
	}
	return normalizeName(cname), nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}
