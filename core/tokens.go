package core

import (
	"context"
	"fmt"
	"time"

	"github.com/lborres/tanod/pkg/crypto"
)

// TokenPolicy holds the per-kind expiry windows.
type TokenPolicy struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// DefaultTokenPolicy returns the stock expiry windows: a day to click a
// verification link, an hour to finish a password reset.
func DefaultTokenPolicy() TokenPolicy {
	return TokenPolicy{
		VerificationTTL: 24 * time.Hour,
		ResetTTL:        1 * time.Hour,
	}
}

func (p TokenPolicy) ttl(kind TokenKind) (time.Duration, error) {
	switch kind {
	case TokenVerification:
		return p.VerificationTTL, nil
	case TokenPasswordReset:
		return p.ResetTTL, nil
	default:
		return 0, fmt.Errorf("%w: token kind %q", ErrTokenInvalid, kind)
	}
}

// TokenManager issues and consumes single-use tokens.
//
// Issuing supersedes any live token of the same kind for the same
// subject; consuming succeeds exactly once per token, also under
// concurrent attempts. Both guarantees lean on the storage adapter's
// atomic ReplaceToken / ConsumeToken contracts.
type TokenManager struct {
	storage TokenStorage
	policy  TokenPolicy
	nanoid  *crypto.NanoIDGenerator
}

// IssueResult couples the stored token with the raw value handed to
// the notifier. The raw value is never persisted.
type IssueResult struct {
	Token *Token
	Value string
}

func NewTokenManager(storage TokenStorage, policy TokenPolicy) *TokenManager {
	if policy.VerificationTTL == 0 {
		policy.VerificationTTL = DefaultTokenPolicy().VerificationTTL
	}
	if policy.ResetTTL == 0 {
		policy.ResetTTL = DefaultTokenPolicy().ResetTTL
	}
	return &TokenManager{
		storage: storage,
		policy:  policy,
		nanoid:  crypto.NewNanoID(),
	}
}

// Issue mints a token of the given kind for the subject, atomically
// invalidating any predecessor of the same (subject, kind) pair.
func (tm *TokenManager) Issue(ctx context.Context, subjectID string, kind TokenKind) (*IssueResult, error) {
	ttl, err := tm.policy.ttl(kind)
	if err != nil {
		return nil, err
	}

	pair, err := crypto.GenerateTokenPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	id, err := tm.nanoid.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token id: %w", err)
	}

	now := time.Now().UTC()
	token := &Token{
		ID:        id,
		SubjectID: subjectID,
		Kind:      kind,
		ValueHash: pair.Hash,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	if err := tm.storage.ReplaceToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}

	return &IssueResult{Token: token, Value: pair.Value}, nil
}

// Consume redeems a raw token value of the given kind and returns the
// subject it was bound to. Unknown, expired, or mismatched values fail
// with ErrTokenInvalid; a previously redeemed value fails with
// ErrTokenConsumed.
func (tm *TokenManager) Consume(ctx context.Context, value string, kind TokenKind) (string, error) {
	if value == "" {
		return "", ErrTokenRequired
	}

	subjectID, err := tm.storage.ConsumeToken(ctx, crypto.HashToken(value), kind, time.Now().UTC())
	if err != nil {
		return "", err
	}

	return subjectID, nil
}
