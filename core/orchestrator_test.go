package core_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/lborres/tanod/adapters/memory"
	"github.com/lborres/tanod/core"
	"github.com/lborres/tanod/session"
)

const testSecret = "orchestrator-test-secret-0123456789"

// fakeStrategy implements the bare Strategy surface. It records the
// credentials it saw so tests can assert routing.
type fakeStrategy struct {
	name     string
	identity *core.Identity
	events   []core.Event
	err      error
	seen     []core.Credentials
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Register(_ context.Context, creds core.Credentials) (*core.Identity, []core.Event, error) {
	f.seen = append(f.seen, creds)
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.identity, f.events, nil
}

func (f *fakeStrategy) Authenticate(_ context.Context, creds core.Credentials) (*core.Identity, error) {
	f.seen = append(f.seen, creds)
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

// fakeVerifier adds the verification capability on top of fakeStrategy.
type fakeVerifier struct {
	fakeStrategy
	verified []string
}

func (f *fakeVerifier) RequestVerification(_ context.Context, _ string) ([]core.Event, error) {
	return f.events, f.err
}

func (f *fakeVerifier) Verify(_ context.Context, token string) ([]core.Event, error) {
	f.verified = append(f.verified, token)
	return f.events, f.err
}

// recordingNotifier captures dispatched events; fail makes every
// delivery error.
type recordingNotifier struct {
	events []core.Event
	fail   bool
}

func (r *recordingNotifier) Notify(_ context.Context, ev core.Event) error {
	r.events = append(r.events, ev)
	if r.fail {
		return errors.New("smtp down")
	}
	return nil
}

func newTestOrchestrator(t *testing.T, notifier core.Notifier) (*core.Orchestrator, *memory.Adapter) {
	t.Helper()
	storage := memory.New()
	issuer := session.New(testSecret, 0)
	return core.NewOrchestrator(storage, issuer, notifier, nil), storage
}

// Requirement: operations route to the strategy named in the request,
// and unknown names fail with ErrUnknownStrategy.
func TestOrchestrator_Routing(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	s := &fakeStrategy{name: "fake", identity: &core.Identity{ID: "user-1"}}
	if err := o.RegisterStrategy(s); err != nil {
		t.Fatalf("RegisterStrategy() error = %v", err)
	}

	creds := core.Credentials{Email: "a@example.com"}
	if _, err := o.Handle(context.Background(), "fake", core.OpRegister, core.Payload{Credentials: creds}); err != nil {
		t.Fatalf("Handle(register) error = %v", err)
	}
	if len(s.seen) != 1 || s.seen[0].Email != "a@example.com" {
		t.Errorf("strategy saw %v, want the request credentials", s.seen)
	}

	_, err := o.Handle(context.Background(), "missing", core.OpRegister, core.Payload{})
	if !errors.Is(err, core.ErrUnknownStrategy) {
		t.Errorf("Handle() with unknown strategy error = %v, want ErrUnknownStrategy", err)
	}
}

// Requirement: registering two strategies under one name is rejected.
func TestOrchestrator_DuplicateStrategy(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	if err := o.RegisterStrategy(&fakeStrategy{name: "fake"}); err != nil {
		t.Fatalf("RegisterStrategy() error = %v", err)
	}
	if err := o.RegisterStrategy(&fakeStrategy{name: "fake"}); !errors.Is(err, core.ErrStrategyExists) {
		t.Errorf("duplicate RegisterStrategy() error = %v, want ErrStrategyExists", err)
	}
}

// Requirement: register and authenticate return a verifiable assertion
// bound to the identity.
func TestOrchestrator_IssuesAssertion(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	s := &fakeStrategy{name: "fake", identity: &core.Identity{ID: "user-1"}}
	if err := o.RegisterStrategy(s); err != nil {
		t.Fatalf("RegisterStrategy() error = %v", err)
	}

	for _, op := range []core.Operation{core.OpRegister, core.OpAuthenticate} {
		res, err := o.Handle(context.Background(), "fake", op, core.Payload{})
		if err != nil {
			t.Fatalf("Handle(%s) error = %v", op, err)
		}
		if res.Assertion == "" {
			t.Fatalf("Handle(%s) returned no assertion", op)
		}
		userID, err := o.VerifyAssertion(res.Assertion)
		if err != nil {
			t.Fatalf("VerifyAssertion() error = %v", err)
		}
		if userID != "user-1" {
			t.Errorf("VerifyAssertion() = %q, want user-1", userID)
		}
	}

	if _, err := o.VerifyAssertion("not-a-token"); !errors.Is(err, core.ErrInvalidAssertion) {
		t.Errorf("VerifyAssertion() on garbage error = %v, want ErrInvalidAssertion", err)
	}
}

// Requirement: capability operations fail with ErrNotSupported for
// strategies that do not implement them, and succeed for those that do.
func TestOrchestrator_Capabilities(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	plain := &fakeStrategy{name: "plain", identity: &core.Identity{ID: "user-1"}}
	verifier := &fakeVerifier{fakeStrategy: fakeStrategy{name: "verifiable"}}
	if err := o.RegisterStrategy(plain); err != nil {
		t.Fatalf("RegisterStrategy() error = %v", err)
	}
	if err := o.RegisterStrategy(verifier); err != nil {
		t.Fatalf("RegisterStrategy() error = %v", err)
	}

	for _, op := range []core.Operation{
		core.OpRequestVerification, core.OpVerify,
		core.OpForgotPassword, core.OpResetPassword,
	} {
		if _, err := o.Handle(context.Background(), "plain", op, core.Payload{}); !errors.Is(err, core.ErrNotSupported) {
			t.Errorf("Handle(plain, %s) error = %v, want ErrNotSupported", op, err)
		}
	}

	if _, err := o.Handle(context.Background(), "verifiable", core.OpVerify, core.Payload{Token: "tok"}); err != nil {
		t.Fatalf("Handle(verify) error = %v", err)
	}
	if len(verifier.verified) != 1 || verifier.verified[0] != "tok" {
		t.Errorf("verifier saw tokens %v, want [tok]", verifier.verified)
	}
}

// Requirement: unknown operation names are rejected.
func TestOrchestrator_UnknownOperation(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	if err := o.RegisterStrategy(&fakeStrategy{name: "fake"}); err != nil {
		t.Fatalf("RegisterStrategy() error = %v", err)
	}
	if _, err := o.Handle(context.Background(), "fake", core.Operation("frobnicate"), core.Payload{}); !errors.Is(err, core.ErrUnknownOp) {
		t.Errorf("Handle() error = %v, want ErrUnknownOp", err)
	}
}

// Requirement: events flow to the notifier after success, and delivery
// failures do not fail the operation.
func TestOrchestrator_Notifications(t *testing.T) {
	notifier := &recordingNotifier{fail: true}
	o, _ := newTestOrchestrator(t, notifier)
	s := &fakeStrategy{
		name:     "fake",
		identity: &core.Identity{ID: "user-1"},
		events: []core.Event{
			{Kind: core.EventRegistered, Email: "a@example.com"},
			{Kind: core.EventVerificationRequested, Email: "a@example.com", Token: "raw"},
		},
	}
	if err := o.RegisterStrategy(s); err != nil {
		t.Fatalf("RegisterStrategy() error = %v", err)
	}

	res, err := o.Handle(context.Background(), "fake", core.OpRegister, core.Payload{})
	if err != nil {
		t.Fatalf("Handle() error = %v despite notifier failure", err)
	}
	if len(notifier.events) != 2 {
		t.Fatalf("notifier received %d events, want 2", len(notifier.events))
	}
	if len(res.Events) != 2 {
		t.Errorf("result carries %d events, want 2", len(res.Events))
	}
}

// Requirement: a strategy failure surfaces unchanged and produces no
// assertion and no notifications.
func TestOrchestrator_StrategyFailure(t *testing.T) {
	notifier := &recordingNotifier{}
	o, _ := newTestOrchestrator(t, notifier)
	s := &fakeStrategy{name: "fake", err: core.ErrInvalidCredentials}
	if err := o.RegisterStrategy(s); err != nil {
		t.Fatalf("RegisterStrategy() error = %v", err)
	}

	_, err := o.Handle(context.Background(), "fake", core.OpAuthenticate, core.Payload{})
	if !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("Handle() error = %v, want ErrInvalidCredentials", err)
	}
	if len(notifier.events) != 0 {
		t.Errorf("notifier received %d events on failure, want 0", len(notifier.events))
	}
}

// Requirement: registering strategies while requests are in flight is
// safe; under the race detector this catches unsynchronized access to
// the routing table.
func TestOrchestrator_ConcurrentRegisterAndHandle(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	if err := o.RegisterStrategy(&fakeStrategy{name: "strategy-0", identity: &core.Identity{ID: "user-1"}}); err != nil {
		t.Fatalf("RegisterStrategy() error = %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			name := fmt.Sprintf("strategy-%d", n+1)
			if err := o.RegisterStrategy(&fakeStrategy{name: name, identity: &core.Identity{ID: "user-1"}}); err != nil {
				t.Errorf("RegisterStrategy(%s) error = %v", name, err)
			}
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 16; j++ {
				if _, err := o.Handle(context.Background(), "strategy-0", core.OpAuthenticate, core.Payload{}); err != nil {
					t.Errorf("Handle() error = %v", err)
					return
				}
				o.Strategies()
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := len(o.Strategies()); got != workers+1 {
		t.Errorf("registered %d strategies, want %d", got, workers+1)
	}
}

// Requirement: authenticate records the login time on the identity.
func TestOrchestrator_TouchesLastLogin(t *testing.T) {
	o, storage := newTestOrchestrator(t, nil)
	ctx := context.Background()

	identity, err := storage.CreateIdentityWithMethod(ctx, &core.Method{Strategy: "fake", Key: "a@example.com"})
	if err != nil {
		t.Fatalf("CreateIdentityWithMethod() error = %v", err)
	}
	s := &fakeStrategy{name: "fake", identity: identity}
	if err := o.RegisterStrategy(s); err != nil {
		t.Fatalf("RegisterStrategy() error = %v", err)
	}

	if _, err := o.Handle(ctx, "fake", core.OpAuthenticate, core.Payload{}); err != nil {
		t.Fatalf("Handle(authenticate) error = %v", err)
	}

	got, err := o.GetIdentity(ctx, identity.ID)
	if err != nil {
		t.Fatalf("GetIdentity() error = %v", err)
	}
	if got.LastLoginAt == nil {
		t.Error("LastLoginAt not set after authenticate")
	}
}
