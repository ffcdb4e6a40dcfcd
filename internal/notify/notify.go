// Package notify carries security events out of the decision path. The
// core only emits events; delivery (email, chat, pager) belongs to an
// external collaborator consuming the dispatcher output.
package notify

import (
	"log"
	"time"
)

type Kind string

const (
	KindSecurityEvent Kind = "security_event"
	KindLockout       Kind = "lockout"
	KindAuditFailure  Kind = "audit_failure"
)

type Event struct {
	Kind     Kind
	ClientID string
	SourceIP string
	Detail   string
	At       time.Time
}

type Notifier interface {
	Notify(Event)
}

// Dispatcher decouples event producers from delivery. Notify never
// blocks the request path; when the buffer is full the event is counted
// as dropped and logged instead.
type Dispatcher struct {
	ch      chan Event
	done    chan struct{}
	deliver func(Event)
}

func NewDispatcher(deliver func(Event)) *Dispatcher {
	if deliver == nil {
		deliver = logDelivery
	}
	d := &Dispatcher{
		ch:      make(chan Event, 256),
		done:    make(chan struct{}),
		deliver: deliver,
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	for ev := range d.ch {
		d.deliver(ev)
	}
	close(d.done)
}

func (d *Dispatcher) Notify(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case d.ch <- ev:
	default:
		log.Printf("notify: buffer full, dropping %s event for client=%q", ev.Kind, ev.ClientID)
	}
}

func (d *Dispatcher) Close() {
	close(d.ch)
	<-d.done
}

func logDelivery(ev Event) {
	log.Printf("notify: kind=%s client=%q ip=%s detail=%q", ev.Kind, ev.ClientID, ev.SourceIP, ev.Detail)
}
