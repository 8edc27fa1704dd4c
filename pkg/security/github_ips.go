package security

import (
	"fmt"
	"net/netip"
)

// GitHubHookCIDRs are the webhook source ranges published at
// https://api.github.com/meta ("hooks"). They change rarely but do change.
var GitHubHookCIDRs = []string{
	"192.30.252.0/22",
	"185.199.108.0/22",
	"140.82.112.0/20",
	"143.55.64.0/20",
	"2a0a:a440::/29",
	"2606:50c0::/32",
}

// IPAllowlist matches client addresses against a fixed set of prefixes.
type IPAllowlist struct {
	prefixes []netip.Prefix
}

// NewIPAllowlist parses cidrs into an allowlist.
func NewIPAllowlist(cidrs []string) (*IPAllowlist, error) {
	a := &IPAllowlist{prefixes: make([]netip.Prefix, 0, len(cidrs))}
	for _, c := range cidrs {
		p, err := netip.ParsePrefix(c)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", c, err)
		}
		a.prefixes = append(a.prefixes, p.Masked())
	}
	return a, nil
}

// Contains reports whether ip falls inside any prefix. Unparseable input never matches.
func (a *IPAllowlist) Contains(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range a.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
