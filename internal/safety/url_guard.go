package safety

import (
	"context"
	"fmt"
	"net"
	"net/url"
)

// ResolvedURL is a validated URL together with the addresses DNS resolved
// to, so the caller can pin its HTTP client's dialer to exactly the address
// that was checked — closing the TOCTOU window between validation and
// connect that a DNS-rebinding attacker would otherwise exploit.
type ResolvedURL struct {
	Host  string
	Addrs []net.IP
	Port  string
}

// Resolver resolves hostnames to IP addresses; swappable in tests.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

var defaultResolver Resolver = net.DefaultResolver

// ValidateAndResolveURL validates rawURL (scheme, host, and every resolved
// address) and returns the resolved addresses for DNS pinning. This is the
// preferred entry point for any outbound fetch: it rejects the URL outright
// if any address behind the hostname is loopback, private, link-local,
// unspecified, or broadcast.
func ValidateAndResolveURL(ctx context.Context, rawURL string) (*ResolvedURL, error) {
	return validateAndResolveWith(ctx, rawURL, defaultResolver)
}

func validateAndResolveWith(ctx context.Context, rawURL string, resolver Resolver) (*ResolvedURL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("only http/https allowed, got %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return nil, fmt.Errorf("URL has no host")
	}
	port := parsed.Port()
	if port == "" {
		if parsed.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		if err := checkIPAllowed(ip); err != nil {
			return nil, err
		}
		return &ResolvedURL{Host: host, Addrs: []net.IP{ip}, Port: port}, nil
	}

	resolved, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("DNS resolution failed for domain: %s", host)
	}
	if len(resolved) == 0 {
		return nil, fmt.Errorf("DNS resolved no addresses for: %s", host)
	}

	addrs := make([]net.IP, 0, len(resolved))
	for _, a := range resolved {
		if err := checkIPAllowed(a.IP); err != nil {
			return nil, err
		}
		addrs = append(addrs, a.IP)
	}

	return &ResolvedURL{Host: host, Addrs: addrs, Port: port}, nil
}

// checkIPAllowed blocks loopback, private, link-local, unspecified,
// broadcast, and 0.0.0.0/8 IPv4 addresses, and their IPv6 equivalents
// (including IPv4-mapped IPv6 and the fc00::/7 unique-local range).
func checkIPAllowed(ip net.IP) error {
	if v4 := ip.To4(); v4 != nil {
		if v4.IsLoopback() || v4.IsPrivate() || v4.IsLinkLocalUnicast() ||
			v4.IsLinkLocalMulticast() || v4.IsUnspecified() || v4[0] == 0 ||
			v4.Equal(net.IPv4bcast) {
			return fmt.Errorf("blocked: requests to %s are not allowed", v4)
		}
		return nil
	}

	if ip.IsLoopback() || ip.IsUnspecified() {
		return fmt.Errorf("blocked: requests to %s are not allowed", ip)
	}
	// fe80::/10 link-local
	if ip[0] == 0xfe && ip[1]&0xc0 == 0x80 {
		return fmt.Errorf("blocked: requests to %s are not allowed", ip)
	}
	// fc00::/7 unique local
	if ip[0]&0xfe == 0xfc {
		return fmt.Errorf("blocked: requests to %s are not allowed", ip)
	}
	return nil
}

// CheckSSRF is a convenience wrapper for tools that only need a pass/fail
// check without the resolved addresses (e.g. checking a redirect target
// after the initial fetch already pinned its dialer).
func CheckSSRF(ctx context.Context, rawURL string) error {
	_, err := ValidateAndResolveURL(ctx, rawURL)
	return err
}
