package tanod

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lborres/tanod/adapters/memory"
	"github.com/lborres/tanod/notify"
	"github.com/lborres/tanod/strategies/guest"
	"github.com/lborres/tanod/strategies/local"
)

const testSecret = "01234567890123456789012345678901"

// fastHasher keeps the end-to-end tests quick; argon2id is covered in
// pkg/crypto.
type fastHasher struct{}

func (fastHasher) Hash(password string) (string, error) { return "fast:" + password, nil }

func (fastHasher) Verify(password, hash string) (bool, error) {
	return hash == "fast:"+password, nil
}

type dummyHTTP struct {
	registered *Tanod
}

func (d *dummyHTTP) RegisterRoutes(t *Tanod) error {
	d.registered = t
	return nil
}

func newTestService(t *testing.T) (*Tanod, *notify.RecordingSender) {
	t.Helper()
	sender := notify.NewRecordingSender()
	svc, err := New(Config{
		Secret:         testSecret,
		Storage:        memory.New(),
		Notifier:       notify.NewMailer(notify.Config{From: "auth@example.com", SiteName: "Example App"}, sender),
		PasswordHasher: fastHasher{},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return svc, sender
}

func TestNewShouldValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"missing secret", Config{Storage: memory.New()}, ErrSecretRequired},
		{"short secret", Config{Secret: "short-secret", Storage: memory.New()}, ErrSecretTooShort},
		{"missing storage", Config{Secret: testSecret}, ErrStorageRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v sentinel (errors.Is), got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewShouldIncludeMinimumLengthInSecretError(t *testing.T) {
	_, err := New(Config{Secret: "short-secret", Storage: memory.New()})
	if !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("expected ErrSecretTooShort, got %v", err)
	}
	if !strings.Contains(err.Error(), "32") {
		t.Fatalf("expected error message to include minimum length, got %v", err)
	}
}

func TestNewShouldRegisterBuiltinStrategiesAndRoutes(t *testing.T) {
	adapter := &dummyHTTP{}
	svc, err := New(Config{
		Secret:  testSecret,
		Storage: memory.New(),
		HTTP:    adapter,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if adapter.registered != svc {
		t.Fatal("HTTP adapter was not handed the service")
	}
	if svc.BasePath != "/api/auth" {
		t.Fatalf("BasePath = %q, want the default", svc.BasePath)
	}

	names := svc.Orchestrator.Strategies()
	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	if !found[guest.Name] || !found[local.Name] {
		t.Fatalf("registered strategies = %v, want guest and local", names)
	}

	// A strategy name can only be claimed once.
	if err := svc.Use(guest.New(memory.New())); err == nil {
		t.Fatal("expected duplicate strategy registration to fail")
	}
}

// Full local lifecycle: register, welcome + verification mail, verify,
// token burns on replay.
func TestLocalRegistrationLifecycle(t *testing.T) {
	svc, sender := newTestService(t)
	ctx := context.Background()

	res, err := svc.Handle(ctx, "local", OpRegister, Payload{
		Credentials: Credentials{Email: "alice@example.com", Password: "correct horse"},
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	userID, err := svc.VerifyAssertion(res.Assertion)
	if err != nil {
		t.Fatalf("VerifyAssertion failed: %v", err)
	}
	if userID != res.Identity.ID {
		t.Fatalf("assertion bound to %q, want %q", userID, res.Identity.ID)
	}

	msgs := sender.Messages()
	if len(msgs) != 2 {
		t.Fatalf("registration sent %d mails, want welcome + verification", len(msgs))
	}
	if msgs[0].Subject != "Welcome" {
		t.Fatalf("first mail subject = %q, want Welcome", msgs[0].Subject)
	}

	// The verification mail carries the raw token.
	token := strings.TrimSuffix(strings.TrimPrefix(msgs[1].Body, "Please verify your email address with the token "), ".")
	if token == "" {
		t.Fatal("verification mail carries no token")
	}

	if _, err := svc.Handle(ctx, "local", OpVerify, Payload{Token: token}); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	identity, err := svc.GetIdentity(ctx, userID)
	if err != nil {
		t.Fatalf("GetIdentity failed: %v", err)
	}
	if !identity.Method("local").Verified {
		t.Fatal("local method not verified after token redemption")
	}

	if _, err := svc.Handle(ctx, "local", OpVerify, Payload{Token: token}); !errors.Is(err, ErrTokenConsumed) {
		t.Fatalf("replayed verify error = %v, want ErrTokenConsumed", err)
	}
}

// Full reset lifecycle: forgot-password mails a token, reset swaps the
// credential, old password dies, new one signs in.
func TestPasswordResetLifecycle(t *testing.T) {
	svc, sender := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Handle(ctx, "local", OpRegister, Payload{
		Credentials: Credentials{Email: "alice@example.com", Password: "correct horse"},
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, err := svc.Handle(ctx, "local", OpForgotPassword, Payload{
		Credentials: Credentials{Email: "alice@example.com"},
	}); err != nil {
		t.Fatalf("forgot-password failed: %v", err)
	}

	msgs := sender.Messages()
	last := msgs[len(msgs)-1]
	if last.Subject != "Reset password" {
		t.Fatalf("last mail subject = %q, want Reset password", last.Subject)
	}
	token := strings.TrimSuffix(strings.TrimPrefix(last.Body, "Reset your password with this token "), ".")

	if _, err := svc.Handle(ctx, "local", OpResetPassword, Payload{Token: token, NewPassword: "battery staple"}); err != nil {
		t.Fatalf("reset-password failed: %v", err)
	}

	if _, err := svc.Handle(ctx, "local", OpAuthenticate, Payload{
		Credentials: Credentials{Email: "alice@example.com", Password: "correct horse"},
	}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Handle(ctx, "local", OpAuthenticate, Payload{
		Credentials: Credentials{Email: "alice@example.com", Password: "battery staple"},
	}); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

// Forgot-password for an address nobody registered: success, no mail.
func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	svc, sender := newTestService(t)

	res, err := svc.Handle(context.Background(), "local", OpForgotPassword, Payload{
		Credentials: Credentials{Email: "nobody@example.com"},
	})
	if err != nil {
		t.Fatalf("forgot-password failed: %v", err)
	}
	if len(res.Events) != 0 {
		t.Fatalf("forgot-password emitted %d events, want 0", len(res.Events))
	}
	if len(sender.Messages()) != 0 {
		t.Fatal("forgot-password for unknown email sent mail")
	}
}

// Guest sign-in followed by a local sign-up bound to the guest's
// assertion keeps the same identity.
func TestGuestUpgradeKeepsIdentity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	guestRes, err := svc.Handle(ctx, "guest", OpAuthenticate, Payload{})
	if err != nil {
		t.Fatalf("guest authenticate failed: %v", err)
	}

	localRes, err := svc.Handle(ctx, "local", OpRegister, Payload{
		Credentials: Credentials{
			Email:      "alice@example.com",
			Password:   "correct horse",
			IdentityID: guestRes.Identity.ID,
		},
	})
	if err != nil {
		t.Fatalf("upgrade register failed: %v", err)
	}
	if localRes.Identity.ID != guestRes.Identity.ID {
		t.Fatalf("upgrade created identity %q, want to keep %q", localRes.Identity.ID, guestRes.Identity.ID)
	}

	identity, err := svc.GetIdentity(ctx, guestRes.Identity.ID)
	if err != nil {
		t.Fatalf("GetIdentity failed: %v", err)
	}
	if identity.Method("guest") == nil || identity.Method("local") == nil {
		t.Fatal("upgraded identity must carry both methods")
	}
}

func TestHandleUnknownStrategy(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Handle(context.Background(), "oauth", OpAuthenticate, Payload{})
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("expected ErrUnknownStrategy, got %v", err)
	}
}
