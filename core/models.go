package core

import "time"

// Identity is the canonical user record.
//
// This is "who someone is" - a single identity unifies every
// authentication method linked to it.
type Identity struct {
	ID          string     `json:"id"`
	Methods     []*Method  `json:"methods"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// Method looks up a linked method by strategy name.
// Returns nil if the identity has no method for that strategy.
func (i *Identity) Method(strategy string) *Method {
	for _, m := range i.Methods {
		if m.Strategy == strategy {
			return m
		}
	}
	return nil
}

// Method represents one authentication method linked to an identity.
//
// This is the "credential" - how someone proves who they are.
// (Strategy, Key) is unique across all identities: an email can back
// at most one local method in the whole store.
type Method struct {
	IdentityID   string    `json:"identityId"`
	Strategy     string    `json:"strategy"` // "local", "guest"
	Key          string    `json:"key"`      // email for local, random for guest
	PasswordHash *string   `json:"-"`        // Never expose in JSON
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MethodPatch is a partial update applied to a stored method.
// Nil fields are left untouched.
type MethodPatch struct {
	PasswordHash *string
	Verified     *bool
}

// TokenKind enumerates the single-use token flavors.
type TokenKind string

const (
	TokenVerification  TokenKind = "verification"
	TokenPasswordReset TokenKind = "password-reset"
)

// Token is a stored single-use secret bound to an identity.
// Only the sha256 hash of the value is persisted; the raw value
// leaves the service exactly once, inside a notification event.
type Token struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subjectId"`
	Kind      TokenKind `json:"kind"`
	ValueHash string    `json:"-"` // Never expose in JSON
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Consumed  bool      `json:"consumed"`
}

// Live reports whether the token can still be consumed at the given time.
func (t *Token) Live(now time.Time) bool {
	return !t.Consumed && now.Before(t.ExpiresAt)
}

// Credentials is the payload handed to a strategy operation.
// Strategies read only the fields they understand.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`

	// IdentityID optionally names an existing identity to attach the
	// new method to (e.g. a guest upgrading to a local account).
	IdentityID string `json:"-"`
}

// Result is what Handle returns to the transport layer.
type Result struct {
	Identity  *Identity `json:"identity,omitempty"`
	Assertion string    `json:"assertion,omitempty"`
	Events    []Event   `json:"-"`
}
