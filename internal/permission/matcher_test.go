package permission

import (
	"testing"

	"dnsgate/internal/model"
)

func delegationRule(realm string, types, ops []string) model.PermissionRule {
	return model.PermissionRule{RealmType: model.RealmDelegation, Realm: realm, RecordTypes: types, Operations: ops}
}

func exactRule(realm string, types, ops []string) model.PermissionRule {
	return model.PermissionRule{RealmType: model.RealmExactHost, Realm: realm, RecordTypes: types, Operations: ops}
}

func TestMatchExactHostRealm(t *testing.T) {
	rules := []model.PermissionRule{
		exactRule("www.example.com", []string{"A"}, []string{model.OpUpdate}),
	}

	tests := []struct {
		name    string
		tuple   Tuple
		allowed bool
		reason  string
	}{
		{"literal name", Tuple{"example.com", "www.example.com", "A", "update"}, true, ""},
		{"case and dot insensitive", Tuple{"example.com", "WWW.Example.COM.", "A", "update"}, true, ""},
		{"subdomain of exact realm", Tuple{"example.com", "a.www.example.com", "A", "update"}, false, ReasonNoRealmMatch},
		{"sibling", Tuple{"example.com", "mail.example.com", "A", "update"}, false, ReasonNoRealmMatch},
		{"parent", Tuple{"example.com", "example.com", "A", "update"}, false, ReasonNoRealmMatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, reason := Match(rules, tt.tuple)
			if allowed != tt.allowed || reason != tt.reason {
				t.Errorf("Match() = (%t, %q), want (%t, %q)", allowed, reason, tt.allowed, tt.reason)
			}
		})
	}
}

func TestMatchDelegationRealm(t *testing.T) {
	rules := []model.PermissionRule{
		delegationRule("dyn.example.com", []string{"A", "AAAA"}, []string{"read", "update"}),
	}

	tests := []struct {
		name    string
		tuple   Tuple
		allowed bool
		reason  string
	}{
		{"update A under delegation", Tuple{"dyn.example.com", "host1.dyn.example.com", "A", "update"}, true, ""},
		{"delegated name itself", Tuple{"dyn.example.com", "dyn.example.com", "AAAA", "read"}, true, ""},
		{"deeply nested descendant", Tuple{"dyn.example.com", "a.b.host1.dyn.example.com", "A", "update"}, true, ""},
		{"type not granted", Tuple{"dyn.example.com", "host1.dyn.example.com", "MX", "update"}, false, ReasonTypeMismatch},
		{"parent of delegation", Tuple{"example.com", "example.com", "A", "update"}, false, ReasonNoRealmMatch},
		{"sibling zone", Tuple{"example.com", "static.example.com", "A", "update"}, false, ReasonNoRealmMatch},
		{"suffix but not label boundary", Tuple{"example.com", "notdyn.example.com", "A", "update"}, false, ReasonNoRealmMatch},
		{"operation not granted", Tuple{"dyn.example.com", "host1.dyn.example.com", "A", "delete"}, false, ReasonOperationMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, reason := Match(rules, tt.tuple)
			if allowed != tt.allowed || reason != tt.reason {
				t.Errorf("Match() = (%t, %q), want (%t, %q)", allowed, reason, tt.allowed, tt.reason)
			}
		})
	}
}

func TestMatchWildcardSets(t *testing.T) {
	rules := []model.PermissionRule{
		delegationRule("example.com", []string{model.Wildcard}, []string{model.Wildcard}),
	}

	for _, op := range []string{"read", "create", "update", "delete"} {
		allowed, _ := Match(rules, Tuple{"example.com", "x.example.com", "TXT", op})
		if !allowed {
			t.Errorf("wildcard rule denied operation %s", op)
		}
	}
}

func TestMatchIsPureOR(t *testing.T) {
	// A rule that denies by mismatch must never override one that allows.
	rules := []model.PermissionRule{
		exactRule("www.example.com", []string{"TXT"}, []string{"create"}),
		delegationRule("example.com", []string{"A"}, []string{"update"}),
	}
	allowed, _ := Match(rules, Tuple{"example.com", "www.example.com", "A", "update"})
	if !allowed {
		t.Fatal("second rule should authorize regardless of first rule mismatch")
	}
}

func TestMatchMostSpecificReason(t *testing.T) {
	rules := []model.PermissionRule{
		exactRule("other.example.com", []string{"A"}, []string{"update"}),
		delegationRule("dyn.example.com", []string{"A"}, []string{"update"}),
	}
	// Realm matches the second rule, type matches, operation does not:
	// the reported reason must be the deepest stage reached.
	_, reason := Match(rules, Tuple{"dyn.example.com", "h.dyn.example.com", "A", "delete"})
	if reason != ReasonOperationMismatch {
		t.Errorf("reason = %q, want %q", reason, ReasonOperationMismatch)
	}

	_, reason = Match(rules, Tuple{"dyn.example.com", "h.dyn.example.com", "MX", "update"})
	if reason != ReasonTypeMismatch {
		t.Errorf("reason = %q, want %q", reason, ReasonTypeMismatch)
	}
}

func TestMatchRepeatable(t *testing.T) {
	rules := []model.PermissionRule{
		delegationRule("dyn.example.com", []string{"A"}, []string{"read"}),
	}
	tuple := Tuple{"dyn.example.com", "h.dyn.example.com", "A", "read"}
	first, _ := Match(rules, tuple)
	for i := 0; i < 10; i++ {
		again, _ := Match(rules, tuple)
		if again != first {
			t.Fatal("repeated evaluation changed the decision")
		}
	}
}

func TestMatchAllRejectsWholeBatch(t *testing.T) {
	rules := []model.PermissionRule{
		delegationRule("dyn.example.com", []string{"A", "AAAA"}, []string{"update"}),
	}
	entries := []model.RecordEntry{
		{Hostname: "h1.dyn.example.com", Type: "A", Destination: "192.0.2.1"},
		{Hostname: "h2.dyn.example.com", Type: "MX", Destination: "mail.example.com"},
		{Hostname: "h3.dyn.example.com", Type: "A", Destination: "192.0.2.3"},
	}

	ok, reason, failing := MatchAll(rules, "dyn.example.com", "update", entries)
	if ok {
		t.Fatal("batch with one failing entry must be rejected")
	}
	if reason != ReasonTypeMismatch {
		t.Errorf("reason = %q, want %q", reason, ReasonTypeMismatch)
	}
	if failing.Hostname != "h2.dyn.example.com" {
		t.Errorf("failing entry = %q, want h2.dyn.example.com", failing.Hostname)
	}
}

func TestMatchAllDeleteFlagOverridesOperation(t *testing.T) {
	rules := []model.PermissionRule{
		delegationRule("dyn.example.com", []string{"A"}, []string{"update"}),
	}
	entries := []model.RecordEntry{
		{Hostname: "h1.dyn.example.com", Type: "A", Destination: "192.0.2.1", Delete: true},
	}

	ok, reason, _ := MatchAll(rules, "dyn.example.com", "update", entries)
	if ok {
		t.Fatal("delete-flagged entry must be evaluated as a delete")
	}
	if reason != ReasonOperationMismatch {
		t.Errorf("reason = %q, want %q", reason, ReasonOperationMismatch)
	}
}

func TestCanRead(t *testing.T) {
	tests := []struct {
		name   string
		rules  []model.PermissionRule
		domain string
		want   bool
	}{
		{
			"delegation realm equals domain",
			[]model.PermissionRule{delegationRule("dyn.example.com", []string{"A"}, []string{"read"})},
			"dyn.example.com", true,
		},
		{
			"delegation realm contains domain",
			[]model.PermissionRule{delegationRule("example.com", []string{"A"}, []string{"read"})},
			"dyn.example.com", true,
		},
		{
			"exact realm below domain",
			[]model.PermissionRule{exactRule("www.example.com", []string{"A"}, []string{"read"})},
			"example.com", true,
		},
		{
			"rule without read grant",
			[]model.PermissionRule{delegationRule("example.com", []string{"A"}, []string{"update"})},
			"example.com", false,
		},
		{
			"unrelated realm",
			[]model.PermissionRule{delegationRule("other.net", []string{"A"}, []string{"read"})},
			"example.com", false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanRead(tt.rules, tt.domain); got != tt.want {
				t.Errorf("CanRead() = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestFilterRecordsDropsEntirely(t *testing.T) {
	rules := []model.PermissionRule{
		delegationRule("dyn.example.com", []string{"A"}, []string{"read"}),
	}
	records := []model.DNSRecord{
		{Hostname: "h1.dyn.example.com", Type: "A", Destination: "192.0.2.1"},
		{Hostname: "h1.dyn.example.com", Type: "TXT", Destination: "secret"},
		{Hostname: "mail.example.com", Type: "A", Destination: "192.0.2.9"},
	}

	got := FilterRecords(rules, "example.com", records)
	if len(got) != 1 {
		t.Fatalf("FilterRecords() kept %d records, want 1", len(got))
	}
	if got[0].Hostname != "h1.dyn.example.com" || got[0].Type != "A" {
		t.Errorf("unexpected surviving record: %+v", got[0])
	}
}

func TestWithinDomain(t *testing.T) {
	tests := []struct {
		host, domain string
		want         bool
	}{
		{"example.com", "example.com", true},
		{"a.example.com", "example.com", true},
		{"A.Example.Com.", "example.com", true},
		{"notexample.com", "example.com", false},
		{"example.com", "a.example.com", false},
	}
	for _, tt := range tests {
		if got := WithinDomain(tt.host, tt.domain); got != tt.want {
			t.Errorf("WithinDomain(%q, %q) = %t, want %t", tt.host, tt.domain, got, tt.want)
		}
	}
}

func TestValidName(t *testing.T) {
	for _, good := range []string{"example.com", "a.b.c.example.com", "xn--nxasmq6b.example"} {
		if !ValidName(good) {
			t.Errorf("ValidName(%q) = false, want true", good)
		}
	}
	for _, bad := range []string{"", "."} {
		if ValidName(bad) {
			t.Errorf("ValidName(%q) = true, want false", bad)
		}
	}
}
