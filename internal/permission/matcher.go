// Package permission evaluates concrete DNS operations against a
// client's rule set. Rules combine with plain OR: the first rule that
// survives realm, type and operation filtering authorizes the request.
// There is no explicit-deny rule kind and therefore no priority order.
package permission

import (
	"strings"

	"github.com/miekg/dns"

	"dnsgate/internal/model"
)

// Deny reasons, ordered from least to most specific. They feed the audit
// trail only and never leave the service boundary.
const (
	ReasonNoRealmMatch      = "no_realm_match"
	ReasonTypeMismatch      = "type_mismatch"
	ReasonOperationMismatch = "operation_mismatch"
)

// Tuple is one concrete operation under evaluation.
type Tuple struct {
	Domain     string
	Hostname   string
	RecordType string
	Operation  string
}

// ValidName reports whether s is a usable DNS name.
func ValidName(s string) bool {
	if s == "" || s == "." {
		return false
	}
	_, ok := dns.IsDomainName(s)
	return ok
}

// WithinDomain reports whether host equals domain or sits below it.
func WithinDomain(host, domain string) bool {
	h, d := canonical(host), canonical(domain)
	return h == d || strings.HasSuffix(h, "."+d)
}

// canonical lowercases and fully qualifies a name so comparisons are
// case-insensitive and dot-suffix-insensitive.
func canonical(name string) string {
	return dns.CanonicalName(name)
}

// realmMatches applies the two realm semantics. Exact-host requires the
// literal name; delegation additionally accepts any strict descendant
// (one or more labels prepended).
func realmMatches(rule model.PermissionRule, host string) bool {
	realm := canonical(rule.Realm)
	switch rule.RealmType {
	case model.RealmExactHost:
		return host == realm
	case model.RealmDelegation:
		return host == realm || strings.HasSuffix(host, "."+realm)
	}
	return false
}

func setContains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == model.Wildcard || strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}

// Match evaluates one tuple against the rule set. It returns the
// decision and, on deny, the most specific reason any rule reached:
// a rule that matched realm and type but not operation outranks one
// that never matched the realm.
func Match(rules []model.PermissionRule, t Tuple) (bool, string) {
	host := canonical(t.Hostname)
	reason := ReasonNoRealmMatch

	for _, rule := range rules {
		if !realmMatches(rule, host) {
			continue
		}
		if !setContains(rule.RecordTypes, t.RecordType) {
			if reason == ReasonNoRealmMatch {
				reason = ReasonTypeMismatch
			}
			continue
		}
		if !setContains(rule.Operations, t.Operation) {
			reason = ReasonOperationMismatch
			continue
		}
		return true, ""
	}
	return false, reason
}

// MatchAll checks every record entry of a write request. All entries
// must pass; the first failure rejects the whole request so a bulk
// update is never partially applied. An entry flagged for deletion is
// evaluated as a delete regardless of the request operation.
func MatchAll(rules []model.PermissionRule, domain, operation string, entries []model.RecordEntry) (bool, string, model.RecordEntry) {
	for _, e := range entries {
		op := operation
		if e.Delete {
			op = model.OpDelete
		}
		ok, reason := Match(rules, Tuple{
			Domain:     domain,
			Hostname:   e.Hostname,
			RecordType: e.Type,
			Operation:  op,
		})
		if !ok {
			return false, reason, e
		}
	}
	return true, "", model.RecordEntry{}
}

// CanRead reports whether the client holds any read-capable rule whose
// realm falls inside the queried domain: the realm equals the domain,
// sits below it, or (for delegation rules) contains it. The actual
// records are still filtered individually afterwards.
func CanRead(rules []model.PermissionRule, domain string) bool {
	d := canonical(domain)
	for _, rule := range rules {
		if !setContains(rule.Operations, model.OpRead) {
			continue
		}
		realm := canonical(rule.Realm)
		if realm == d || strings.HasSuffix(realm, "."+d) {
			return true
		}
		if rule.RealmType == model.RealmDelegation && strings.HasSuffix(d, "."+realm) {
			return true
		}
	}
	return false
}

// FilterRecords re-runs every record returned by the upstream through
// the matcher and drops non-permitted records entirely. Nothing is
// redacted in place.
func FilterRecords(rules []model.PermissionRule, domain string, records []model.DNSRecord) []model.DNSRecord {
	var out []model.DNSRecord
	for _, rec := range records {
		ok, _ := Match(rules, Tuple{
			Domain:     domain,
			Hostname:   rec.Hostname,
			RecordType: rec.Type,
			Operation:  model.OpRead,
		})
		if ok {
			out = append(out, rec)
		}
	}
	return out
}
