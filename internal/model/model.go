package model

import "time"

// Wildcard is the stored tag meaning "every value in the closed set".
// It is valid only inside rule record-type and operation sets.
const Wildcard = "*"

// Operations accepted at the API boundary. The set is closed at build
// time; granting a newly introduced kind requires an explicit rule edit.
const (
	OpRead   = "read"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

var operations = map[string]bool{
	OpRead:   true,
	OpCreate: true,
	OpUpdate: true,
	OpDelete: true,
}

func ValidOperation(op string) bool {
	return operations[op]
}

var recordTypes = map[string]bool{
	"A":     true,
	"AAAA":  true,
	"CNAME": true,
	"MX":    true,
	"TXT":   true,
	"NS":    true,
	"SRV":   true,
	"CAA":   true,
}

func ValidRecordType(t string) bool {
	return recordTypes[t]
}

type RealmType string

const (
	// RealmExactHost matches only the literal name.
	RealmExactHost RealmType = "exact"
	// RealmDelegation matches the name itself and every descendant.
	RealmDelegation RealmType = "delegation"
)

// Client is a scoped credential holder. The raw secret is never stored,
// only its bcrypt hash.
type Client struct {
	ID             int64
	ClientID       string
	SecretHash     string
	Active         bool
	FailedAttempts int
	LockedUntil    *time.Time
	ExpiresAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Rules   []PermissionRule
	Origins []OriginRestriction
}

type PermissionRule struct {
	ID          int64
	ClientID    int64
	RealmType   RealmType
	Realm       string
	RecordTypes []string // enum values or Wildcard
	Operations  []string // enum values or Wildcard
	CreatedAt   time.Time
}

// OriginRestriction is one allow-list entry: an IP literal, a CIDR
// block, or a domain pattern with a wildcard in the leftmost label.
type OriginRestriction struct {
	ID        int64
	ClientID  int64
	Value     string
	CreatedAt time.Time
}

const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
)

// AuditEntry is written exactly once per request attempt and never
// mutated. ClientID is empty when no client was identified.
type AuditEntry struct {
	ID            int64
	ClientID      string
	SourceIP      string
	Operation     string
	Domain        string
	Hostname      string
	RecordType    string
	Outcome       string
	Reason        string
	SecurityEvent bool
	CreatedAt     time.Time
}

// RecordEntry is one record in a write request. It lives only for the
// duration of the evaluation and is never persisted.
type RecordEntry struct {
	Hostname    string `json:"hostname"`
	Type        string `json:"type"`
	Destination string `json:"destination"`
	Priority    int    `json:"priority"`
	Delete      bool   `json:"delete"`
}

// DNSRecord is one record returned by the upstream account.
type DNSRecord struct {
	Hostname    string `json:"hostname"`
	Type        string `json:"type"`
	Destination string `json:"destination"`
	TTL         int64  `json:"ttl"`
}
