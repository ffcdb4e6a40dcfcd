package auth

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/miekg/dns"

	"dnsgate/internal/model"
)

// Origin restrictions come in exactly three shapes. Each stored value is
// parsed once into a closed tagged variant; there is no pattern engine.
type originKind int

const (
	originIP originKind = iota
	originCIDR
	originDomain
)

type originMatcher struct {
	kind   originKind
	addr   netip.Addr
	prefix netip.Prefix
	labels []string // domain pattern labels, leftmost may be "*"
}

// ValidOriginValue reports whether a restriction value is storable:
// an IP literal, a CIDR block, or a domain pattern.
func ValidOriginValue(value string) error {
	_, err := parseOrigin(value)
	return err
}

// parseOrigin validates and compiles one restriction value. Domain
// patterns may carry a wildcard in the leftmost label only.
func parseOrigin(value string) (originMatcher, error) {
	if addr, err := netip.ParseAddr(value); err == nil {
		return originMatcher{kind: originIP, addr: addr}, nil
	}
	if prefix, err := netip.ParsePrefix(value); err == nil {
		return originMatcher{kind: originCIDR, prefix: prefix}, nil
	}

	name := strings.ToLower(strings.TrimSuffix(value, "."))
	if _, ok := dns.IsDomainName(name); !ok || name == "" {
		return originMatcher{}, fmt.Errorf("origin %q is not an IP, CIDR or domain pattern", value)
	}
	labels := dns.SplitDomainName(name)
	for i, l := range labels {
		if strings.Contains(l, "*") && (i != 0 || l != "*") {
			return originMatcher{}, fmt.Errorf("origin %q: wildcard allowed only as the full leftmost label", value)
		}
	}
	return originMatcher{kind: originDomain, labels: labels}, nil
}

func (m originMatcher) matchIP(addr netip.Addr) bool {
	switch m.kind {
	case originIP:
		return m.addr == addr.Unmap()
	case originCIDR:
		return m.prefix.Contains(addr.Unmap())
	}
	return false
}

func (m originMatcher) matchHost(host string) bool {
	if m.kind != originDomain {
		return false
	}
	labels := dns.SplitDomainName(strings.ToLower(strings.TrimSuffix(host, ".")))
	if len(labels) != len(m.labels) {
		return false
	}
	for i, l := range m.labels {
		if i == 0 && l == "*" {
			continue
		}
		if labels[i] != l {
			return false
		}
	}
	return true
}

// Guard checks a caller's network origin against a client's allow-list.
// Domain patterns are compared against the caller's reverse DNS names.
type Guard struct {
	lookupAddr func(ip string) ([]string, error)
}

func NewGuard() *Guard {
	return &Guard{lookupAddr: net.LookupAddr}
}

// Allowed returns true when the origin set is empty or any entry matches
// the source IP. Unparseable stored entries never match; a broken entry
// must not widen the allow-list.
func (g *Guard) Allowed(origins []model.OriginRestriction, sourceIP string) (bool, error) {
	if len(origins) == 0 {
		return true, nil
	}

	addr, err := netip.ParseAddr(sourceIP)
	if err != nil {
		return false, fmt.Errorf("source address %q: %w", sourceIP, err)
	}

	var ptrNames []string
	resolved := false

	for _, o := range origins {
		m, err := parseOrigin(o.Value)
		if err != nil {
			continue
		}
		switch m.kind {
		case originIP, originCIDR:
			if m.matchIP(addr) {
				return true, nil
			}
		case originDomain:
			if !resolved {
				ptrNames, _ = g.lookupAddr(sourceIP)
				resolved = true
			}
			for _, name := range ptrNames {
				if m.matchHost(name) {
					return true, nil
				}
			}
		}
	}
	return false, nil
}
