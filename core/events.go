package core

import "context"

// EventKind names a lifecycle event emitted by a strategy operation.
type EventKind string

const (
	EventRegistered            EventKind = "registered"
	EventVerificationRequested EventKind = "verification-requested"
	EventVerified              EventKind = "verified"
	EventResetRequested        EventKind = "reset-requested"
	EventPasswordReset         EventKind = "password-reset"
)

// Event is a lifecycle side effect returned by a strategy operation.
//
// Strategies return events as plain values instead of invoking
// callbacks; the orchestrator forwards them to the Notifier after the
// triggering state change has committed. Token carries the raw
// single-use secret for kinds that mail one out, and is empty
// otherwise.
type Event struct {
	Kind  EventKind
	Email string
	Token string
}

// Notifier receives lifecycle events for outward delivery (mail).
// Delivery is best effort: the orchestrator logs failures and never
// rolls back the state change that produced the event.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, ev Event) error

func (f NotifierFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }
