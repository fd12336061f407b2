package core

import (
	"context"
	"time"
)

// Storage ports. Adapters translate these contracts onto a concrete
// backend; every mutating call must be a single atomic operation so
// that racing requests cannot observe half-applied state.

// IdentityStorage defines identity-related persistence operations.
// No operation ever deletes an identity.
type IdentityStorage interface {
	// GetIdentityByID loads an identity with all of its methods.
	// Returns ErrIdentityNotFound for unknown ids.
	GetIdentityByID(ctx context.Context, id string) (*Identity, error)

	// GetIdentityByMethodKey resolves the identity bound to
	// (strategy, key). Returns ErrIdentityNotFound when unbound.
	GetIdentityByMethodKey(ctx context.Context, strategy, key string) (*Identity, error)

	// CreateIdentityWithMethod creates a fresh identity and links the
	// given method in one atomic operation. When m.IdentityID is empty
	// the adapter assigns the new identity's id. Returns
	// ErrMethodExists if (strategy, key) is already bound.
	CreateIdentityWithMethod(ctx context.Context, m *Method) (*Identity, error)

	// AttachMethod links a method to an existing identity under the
	// same uniqueness rule. Returns ErrIdentityNotFound for unknown
	// identities and ErrMethodExists on a key conflict.
	AttachMethod(ctx context.Context, identityID string, m *Method) error

	// UpdateMethod applies a partial update to a stored method.
	// Returns ErrMethodNotFound if the identity has no such method.
	UpdateMethod(ctx context.Context, identityID, strategy string, patch MethodPatch) error

	// TouchLastLogin records a successful authentication timestamp.
	TouchLastLogin(ctx context.Context, identityID string, at time.Time) error
}

// TokenStorage defines single-use token persistence operations.
type TokenStorage interface {
	// ReplaceToken invalidates any live token for (t.SubjectID, t.Kind)
	// and inserts t as one atomic operation, so at most one live token
	// per subject per kind ever exists.
	ReplaceToken(ctx context.Context, t *Token) error

	// ConsumeToken marks the token with the given value hash consumed
	// and returns its subject id. The mark is a conditional write:
	// under concurrent attempts exactly one caller wins, the rest get
	// ErrTokenConsumed. Unknown, expired, or kind-mismatched hashes
	// yield ErrTokenInvalid.
	ConsumeToken(ctx context.Context, valueHash string, kind TokenKind, now time.Time) (string, error)
}

// AuthStorage is the full persistence surface the service needs.
type AuthStorage interface {
	IdentityStorage
	TokenStorage
}
