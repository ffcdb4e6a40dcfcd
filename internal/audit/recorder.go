// Package audit writes the decision trail. Every request attempt gets
// exactly one record, written before the caller sees the response.
package audit

import (
	"log"
	"time"

	"dnsgate/internal/model"
	"dnsgate/internal/notify"
)

type Sink interface {
	AppendAudit(entry model.AuditEntry) error
}

// Recorder appends entries with a bounded retry. A failing backend
// raises an alert instead of blocking the decision path forever or
// dropping the record silently.
type Recorder struct {
	sink     Sink
	notifier notify.Notifier
	attempts int
	backoff  time.Duration
}

func NewRecorder(sink Sink, notifier notify.Notifier) *Recorder {
	return &Recorder{
		sink:     sink,
		notifier: notifier,
		attempts: 3,
		backoff:  100 * time.Millisecond,
	}
}

// Record writes one entry synchronously. Security-event denials are
// additionally fanned out to the notifier.
func (r *Recorder) Record(entry model.AuditEntry) {
	var err error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if err = r.sink.AppendAudit(entry); err == nil {
			if entry.SecurityEvent && r.notifier != nil {
				r.notifier.Notify(notify.Event{
					Kind:     notify.KindSecurityEvent,
					ClientID: entry.ClientID,
					SourceIP: entry.SourceIP,
					Detail:   entry.Reason,
				})
			}
			return
		}
		time.Sleep(r.backoff)
	}

	log.Printf("ALERT: audit write failed after %d attempts: %v (client=%q outcome=%s reason=%s)",
		r.attempts, err, entry.ClientID, entry.Outcome, entry.Reason)
	if r.notifier != nil {
		r.notifier.Notify(notify.Event{
			Kind:     notify.KindAuditFailure,
			ClientID: entry.ClientID,
			SourceIP: entry.SourceIP,
			Detail:   "audit backend unavailable",
		})
	}
}
