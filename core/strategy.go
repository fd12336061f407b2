package core

import "context"

// Strategy is the capability surface every authentication method
// implements. A strategy owns its own method record on an identity
// (its key, hash, verified flag) and nothing else.
type Strategy interface {
	// Name is the registry key, e.g. "local" or "guest".
	Name() string

	// Register creates (or attaches, when creds.IdentityID is set) the
	// strategy's method and returns the identity plus lifecycle events
	// for the orchestrator to dispatch.
	Register(ctx context.Context, creds Credentials) (*Identity, []Event, error)

	// Authenticate resolves credentials to an identity or fails with
	// ErrInvalidCredentials.
	Authenticate(ctx context.Context, creds Credentials) (*Identity, error)
}

// Verifier is implemented by strategies whose methods require an
// out-of-band verification step (local email verification).
type Verifier interface {
	// RequestVerification reissues a verification token for the method
	// keyed by email, invalidating any previous one.
	RequestVerification(ctx context.Context, email string) ([]Event, error)

	// Verify consumes a verification token and marks the method verified.
	Verify(ctx context.Context, token string) ([]Event, error)
}

// PasswordResetter is implemented by strategies that hold a resettable
// secret.
type PasswordResetter interface {
	// RequestPasswordReset issues a reset token for the method keyed by
	// email. Unknown emails are a silent no-op so the endpoint cannot
	// be used to probe for accounts.
	RequestPasswordReset(ctx context.Context, email string) ([]Event, error)

	// ResetPassword consumes a reset token and replaces the stored hash.
	ResetPassword(ctx context.Context, token, newPassword string) ([]Event, error)
}

// AssertionIssuer turns an authenticated identity into a signed,
// self-contained assertion and verifies assertions presented back.
type AssertionIssuer interface {
	Issue(userID string) (string, error)
	Verify(assertion string) (string, error)
}
