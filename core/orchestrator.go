package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lborres/tanod/logging"
)

// Operation names a strategy action routed through Handle.
type Operation string

const (
	OpRegister            Operation = "register"
	OpAuthenticate        Operation = "authenticate"
	OpRequestVerification Operation = "request-verification"
	OpVerify              Operation = "verify"
	OpForgotPassword      Operation = "forgot-password"
	OpResetPassword       Operation = "reset-password"
)

// Payload carries the operation input from the transport layer.
type Payload struct {
	Credentials Credentials
	Token       string
	NewPassword string
}

// Orchestrator routes operations to registered strategies, mints
// assertions on successful register/authenticate, and forwards
// lifecycle events to the notifier.
type Orchestrator struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	storage    AuthStorage
	issuer     AssertionIssuer
	notifier   Notifier
	log        logging.Logger
}

func NewOrchestrator(storage AuthStorage, issuer AssertionIssuer, notifier Notifier, log logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.Default()
	}
	return &Orchestrator{
		strategies: make(map[string]Strategy),
		storage:    storage,
		issuer:     issuer,
		notifier:   notifier,
		log:        log,
	}
}

// RegisterStrategy adds a strategy to the routing table. Safe to call
// while the service is handling requests.
// Returns ErrStrategyExists on a duplicate name.
func (o *Orchestrator) RegisterStrategy(s Strategy) error {
	name := s.Name()
	if name == "" {
		return fmt.Errorf("%w: empty strategy name", ErrUnknownStrategy)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.strategies[name]; exists {
		return fmt.Errorf("%w: %s", ErrStrategyExists, name)
	}
	o.strategies[name] = s
	return nil
}

// Strategies returns the registered strategy names.
func (o *Orchestrator) Strategies() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	names := make([]string, 0, len(o.strategies))
	for name := range o.strategies {
		names = append(names, name)
	}
	return names
}

// Handle routes one operation to the named strategy and returns the
// outcome. Successful register and authenticate results carry a signed
// session assertion.
func (o *Orchestrator) Handle(ctx context.Context, strategyName string, op Operation, payload Payload) (*Result, error) {
	o.mu.RLock()
	s, ok := o.strategies[strategyName]
	o.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategyName)
	}

	switch op {
	case OpRegister:
		return o.register(ctx, s, payload)
	case OpAuthenticate:
		return o.authenticate(ctx, s, payload)
	case OpRequestVerification:
		v, ok := s.(Verifier)
		if !ok {
			return nil, fmt.Errorf("%w: %s %s", ErrNotSupported, strategyName, op)
		}
		return o.dispatch(ctx, func() ([]Event, error) {
			return v.RequestVerification(ctx, payload.Credentials.Email)
		})
	case OpVerify:
		v, ok := s.(Verifier)
		if !ok {
			return nil, fmt.Errorf("%w: %s %s", ErrNotSupported, strategyName, op)
		}
		return o.dispatch(ctx, func() ([]Event, error) {
			return v.Verify(ctx, payload.Token)
		})
	case OpForgotPassword:
		r, ok := s.(PasswordResetter)
		if !ok {
			return nil, fmt.Errorf("%w: %s %s", ErrNotSupported, strategyName, op)
		}
		return o.dispatch(ctx, func() ([]Event, error) {
			return r.RequestPasswordReset(ctx, payload.Credentials.Email)
		})
	case OpResetPassword:
		r, ok := s.(PasswordResetter)
		if !ok {
			return nil, fmt.Errorf("%w: %s %s", ErrNotSupported, strategyName, op)
		}
		return o.dispatch(ctx, func() ([]Event, error) {
			return r.ResetPassword(ctx, payload.Token, payload.NewPassword)
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOp, op)
	}
}

func (o *Orchestrator) register(ctx context.Context, s Strategy, payload Payload) (*Result, error) {
	identity, events, err := s.Register(ctx, payload.Credentials)
	if err != nil {
		return nil, err
	}

	assertion, err := o.issuer.Issue(identity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue assertion: %w", err)
	}

	o.notify(ctx, events)

	return &Result{Identity: identity, Assertion: assertion, Events: events}, nil
}

func (o *Orchestrator) authenticate(ctx context.Context, s Strategy, payload Payload) (*Result, error) {
	identity, err := s.Authenticate(ctx, payload.Credentials)
	if err != nil {
		return nil, err
	}

	if err := o.storage.TouchLastLogin(ctx, identity.ID, time.Now().UTC()); err != nil {
		// Bookkeeping only; the login itself already succeeded.
		o.log.Warn(ctx, "failed to record last login", "identity", identity.ID, "error", err)
	}

	assertion, err := o.issuer.Issue(identity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue assertion: %w", err)
	}

	return &Result{Identity: identity, Assertion: assertion}, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, op func() ([]Event, error)) (*Result, error) {
	events, err := op()
	if err != nil {
		return nil, err
	}

	o.notify(ctx, events)

	return &Result{Events: events}, nil
}

// notify forwards events after the state change committed. Failures
// are logged, never propagated: committed state wins over best-effort
// notification.
func (o *Orchestrator) notify(ctx context.Context, events []Event) {
	if o.notifier == nil {
		return
	}
	for _, ev := range events {
		if err := o.notifier.Notify(ctx, ev); err != nil {
			o.log.Error(ctx, "notification failed", "event", string(ev.Kind), "email", ev.Email, "error", err)
		}
	}
}

// VerifyAssertion validates a session assertion and returns the user id
// it was issued for.
func (o *Orchestrator) VerifyAssertion(assertion string) (string, error) {
	userID, err := o.issuer.Verify(assertion)
	if err != nil {
		return "", ErrInvalidAssertion
	}
	return userID, nil
}

// GetIdentity loads the unified identity record, all methods included.
func (o *Orchestrator) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	identity, err := o.storage.GetIdentityByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	return identity, nil
}
