package proxy

import (
	"context"
	"fmt"
	"log"

	"dnsgate/internal/auth"
	"dnsgate/internal/model"
	"dnsgate/internal/permission"
)

// state tracks how far a request travelled through the pipeline. Every
// request ends in completed, rejected or upstreamFailed, and exactly one
// audit record is written before the caller sees anything.
type state int

const (
	stateReceived state = iota
	stateRateChecked
	stateAuthenticated
	stateOriginChecked
	stateAuthorized
	stateForwarded
	stateCompleted
	stateRejected
	stateUpstreamFailed
)

func (s state) String() string {
	switch s {
	case stateReceived:
		return "received"
	case stateRateChecked:
		return "rate_checked"
	case stateAuthenticated:
		return "authenticated"
	case stateOriginChecked:
		return "origin_checked"
	case stateAuthorized:
		return "authorized"
	case stateForwarded:
		return "forwarded"
	case stateCompleted:
		return "completed"
	case stateRejected:
		return "rejected"
	case stateUpstreamFailed:
		return "upstream_failed"
	}
	return "unknown"
}

type Request struct {
	ClientID  string
	Secret    string
	SourceIP  string
	Operation string
	Domain    string
	Records   []model.RecordEntry
}

type Response struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Records []model.DNSRecord `json:"records,omitempty"`
}

type Authenticator interface {
	Authenticate(clientID, secret string) (*model.Client, string, error)
}

type OriginChecker interface {
	Allowed(origins []model.OriginRestriction, sourceIP string) (bool, error)
}

type RateLimiter interface {
	AllowProxy(sourceIP string) (string, error)
}

type Gateway interface {
	ReadRecords(ctx context.Context, domain string) ([]model.DNSRecord, error)
	ApplyChanges(ctx context.Context, domain, operation string, entries []model.RecordEntry) error
}

type Recorder interface {
	Record(entry model.AuditEntry)
}

// Orchestrator sequences rate limiting, authentication, origin checking,
// authorization and forwarding into one accept/reject decision.
type Orchestrator struct {
	limiter  RateLimiter
	auth     Authenticator
	origins  OriginChecker
	gateway  Gateway
	recorder Recorder
}

func NewOrchestrator(limiter RateLimiter, authn Authenticator, origins OriginChecker, gateway Gateway, recorder Recorder) *Orchestrator {
	return &Orchestrator{
		limiter:  limiter,
		auth:     authn,
		origins:  origins,
		gateway:  gateway,
		recorder: recorder,
	}
}

// Handle runs one request through the pipeline. The returned error is
// always one of the taxonomy types (or an internal failure); the handler
// maps it to a uniform external response. Internal denial reasons live
// only in the audit record.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Response, error) {
	st := stateReceived
	entry := model.AuditEntry{
		SourceIP:  req.SourceIP,
		Operation: req.Operation,
		Domain:    req.Domain,
	}

	deny := func(reason string, security bool, err error) (*Response, error) {
		st = stateRejected
		entry.Outcome = model.OutcomeDenied
		entry.Reason = reason
		entry.SecurityEvent = security
		o.recorder.Record(entry)
		return nil, err
	}
	fail := func(reason string, err error) (*Response, error) {
		log.Printf("request failed in state %s: %v", st, err)
		entry.Outcome = model.OutcomeError
		entry.Reason = reason
		o.recorder.Record(entry)
		return nil, err
	}

	// Rate limiting runs first: a flood must be rejected before any
	// credential or permission work.
	scope, err := o.limiter.AllowProxy(req.SourceIP)
	if err != nil {
		return fail("rate_check_failed", fmt.Errorf("rate check: %w", err))
	}
	if scope != "" {
		return deny("rate_limit_"+scope, false, &RateLimitExceeded{Scope: scope})
	}
	st = stateRateChecked

	if msg := validate(req); msg != "" {
		return deny("malformed_request", false, &ValidationError{Msg: msg})
	}
	entry.ClientID = req.ClientID
	if len(req.Records) > 0 {
		entry.Hostname = req.Records[0].Hostname
		entry.RecordType = req.Records[0].Type
	}

	client, reason, err := o.auth.Authenticate(req.ClientID, req.Secret)
	if err != nil {
		return fail("auth_store_failed", err)
	}
	if reason != "" {
		return deny(reason, false, &AuthenticationError{Reason: reason})
	}
	st = stateAuthenticated

	allowed, err := o.origins.Allowed(client.Origins, req.SourceIP)
	if err != nil || !allowed {
		// An unparseable source address fails closed like a miss.
		return deny("origin_denied", true, &OriginDeniedError{})
	}
	st = stateOriginChecked

	if req.Operation == model.OpRead {
		if !permission.CanRead(client.Rules, req.Domain) {
			return deny("no_read_grant", true, &AuthorizationError{Reason: "no_read_grant"})
		}
	} else {
		ok, reason, failing := permission.MatchAll(client.Rules, req.Domain, req.Operation, req.Records)
		if !ok {
			entry.Hostname = failing.Hostname
			entry.RecordType = failing.Type
			return deny(reason, true, &AuthorizationError{Reason: reason})
		}
	}
	st = stateAuthorized

	var resp *Response
	if req.Operation == model.OpRead {
		records, err := o.gateway.ReadRecords(ctx, req.Domain)
		if err != nil {
			st = stateUpstreamFailed
			return fail("upstream_failure", &UpstreamError{Err: err})
		}
		resp = &Response{
			Status:  "ok",
			Records: permission.FilterRecords(client.Rules, req.Domain, records),
		}
	} else {
		if err := o.gateway.ApplyChanges(ctx, req.Domain, req.Operation, req.Records); err != nil {
			st = stateUpstreamFailed
			return fail("upstream_failure", &UpstreamError{Err: err})
		}
		resp = &Response{
			Status:  "ok",
			Message: fmt.Sprintf("%d record change(s) applied", len(req.Records)),
		}
	}
	st = stateForwarded

	st = stateCompleted
	entry.Outcome = model.OutcomeAllowed
	o.recorder.Record(entry)
	return resp, nil
}

// validate rejects malformed input on the cheapest path, before any
// credential lookup. The returned message is audit detail only.
func validate(req Request) string {
	if !auth.ValidClientID(req.ClientID) {
		return "client identifier has invalid format"
	}
	if !auth.ValidSecret(req.Secret) {
		return "credential has invalid format"
	}
	if !model.ValidOperation(req.Operation) {
		return "unknown operation"
	}
	if !permission.ValidName(req.Domain) {
		return "invalid domain name"
	}
	if req.Operation == model.OpRead {
		return ""
	}
	if len(req.Records) == 0 {
		return "write request carries no records"
	}
	for _, rec := range req.Records {
		if !permission.ValidName(rec.Hostname) {
			return "invalid record hostname"
		}
		if !permission.WithinDomain(rec.Hostname, req.Domain) {
			return "record hostname outside request domain"
		}
		if !model.ValidRecordType(rec.Type) {
			return "unknown record type"
		}
		if rec.Destination == "" && !rec.Delete {
			return "record destination is required"
		}
	}
	return ""
}
