// Package local implements the email+password strategy: registration
// with mailed verification, password authentication, and the
// token-driven verify / reset flows.
package local

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/lborres/tanod/core"
	"github.com/lborres/tanod/pkg/crypto"
)

// Name is the strategy's registry key.
const Name = "local"

const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

// Strategy is the local email+password strategy.
type Strategy struct {
	storage   core.IdentityStorage
	tokens    *core.TokenManager
	passwords crypto.PasswordHandler
}

var (
	_ core.Strategy         = (*Strategy)(nil)
	_ core.Verifier         = (*Strategy)(nil)
	_ core.PasswordResetter = (*Strategy)(nil)
)

func New(storage core.IdentityStorage, tokens *core.TokenManager, passwords crypto.PasswordHandler) *Strategy {
	if passwords == nil {
		passwords = crypto.NewArgon2()
	}
	return &Strategy{
		storage:   storage,
		tokens:    tokens,
		passwords: passwords,
	}
}

func (s *Strategy) Name() string { return Name }

// Register creates an unverified local method, either on a fresh
// identity or attached to an existing one (guest upgrade), and issues
// the first verification token.
func (s *Strategy) Register(ctx context.Context, creds core.Credentials) (*core.Identity, []core.Event, error) {
	email, err := normalizeEmail(creds.Email)
	if err != nil {
		return nil, nil, err
	}
	if err := validatePassword(creds.Password); err != nil {
		return nil, nil, err
	}

	hash, err := s.passwords.Hash(creds.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	method := &core.Method{
		Strategy:     Name,
		Key:          email,
		PasswordHash: &hash,
	}

	var identity *core.Identity
	if creds.IdentityID != "" {
		// Upgrade path: link the local method to an existing identity.
		if err := s.storage.AttachMethod(ctx, creds.IdentityID, method); err != nil {
			return nil, nil, err
		}
		identity, err = s.storage.GetIdentityByID(ctx, creds.IdentityID)
		if err != nil {
			return nil, nil, err
		}
	} else {
		identity, err = s.storage.CreateIdentityWithMethod(ctx, method)
		if err != nil {
			return nil, nil, err
		}
	}

	issued, err := s.tokens.Issue(ctx, identity.ID, core.TokenVerification)
	if err != nil {
		return nil, nil, err
	}

	events := []core.Event{
		{Kind: core.EventRegistered, Email: email},
		{Kind: core.EventVerificationRequested, Email: email, Token: issued.Value},
	}

	return identity, events, nil
}

// Authenticate verifies a submitted password against the stored
// argon2id hash.
func (s *Strategy) Authenticate(ctx context.Context, creds core.Credentials) (*core.Identity, error) {
	email, err := normalizeEmail(creds.Email)
	if err != nil {
		return nil, err
	}
	if creds.Password == "" {
		return nil, core.ErrPasswordRequired
	}

	identity, err := s.storage.GetIdentityByMethodKey(ctx, Name, email)
	if err != nil {
		if errors.Is(err, core.ErrIdentityNotFound) {
			return nil, core.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	method := identity.Method(Name)
	if method == nil || method.PasswordHash == nil {
		return nil, core.ErrInvalidCredentials
	}

	valid, err := s.passwords.Verify(creds.Password, *method.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, core.ErrInvalidCredentials
	}

	return identity, nil
}

// RequestVerification reissues a verification token for the account,
// permanently superseding the previous one.
func (s *Strategy) RequestVerification(ctx context.Context, email string) ([]core.Event, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	identity, err := s.storage.GetIdentityByMethodKey(ctx, Name, email)
	if err != nil {
		return nil, err
	}

	issued, err := s.tokens.Issue(ctx, identity.ID, core.TokenVerification)
	if err != nil {
		return nil, err
	}

	return []core.Event{
		{Kind: core.EventVerificationRequested, Email: email, Token: issued.Value},
	}, nil
}

// Verify consumes a verification token and marks the local method
// verified. A second call with the same token fails ErrTokenConsumed.
func (s *Strategy) Verify(ctx context.Context, token string) ([]core.Event, error) {
	subjectID, err := s.tokens.Consume(ctx, token, core.TokenVerification)
	if err != nil {
		return nil, err
	}

	identity, err := s.storage.GetIdentityByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	method := identity.Method(Name)
	if method == nil {
		return nil, core.ErrMethodNotFound
	}

	verified := true
	if err := s.storage.UpdateMethod(ctx, subjectID, Name, core.MethodPatch{Verified: &verified}); err != nil {
		return nil, err
	}

	return []core.Event{
		{Kind: core.EventVerified, Email: method.Key},
	}, nil
}

// RequestPasswordReset issues a reset token without touching the
// verification state. Unknown emails return success with no event so
// the endpoint cannot be used to enumerate accounts.
func (s *Strategy) RequestPasswordReset(ctx context.Context, email string) ([]core.Event, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	identity, err := s.storage.GetIdentityByMethodKey(ctx, Name, email)
	if err != nil {
		if errors.Is(err, core.ErrIdentityNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	issued, err := s.tokens.Issue(ctx, identity.ID, core.TokenPasswordReset)
	if err != nil {
		return nil, err
	}

	return []core.Event{
		{Kind: core.EventResetRequested, Email: email, Token: issued.Value},
	}, nil
}

// ResetPassword consumes a reset token and replaces the stored hash.
func (s *Strategy) ResetPassword(ctx context.Context, token, newPassword string) ([]core.Event, error) {
	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}

	subjectID, err := s.tokens.Consume(ctx, token, core.TokenPasswordReset)
	if err != nil {
		return nil, err
	}

	identity, err := s.storage.GetIdentityByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	method := identity.Method(Name)
	if method == nil {
		return nil, core.ErrMethodNotFound
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.storage.UpdateMethod(ctx, subjectID, Name, core.MethodPatch{PasswordHash: &hash}); err != nil {
		return nil, err
	}

	return []core.Event{
		{Kind: core.EventPasswordReset, Email: method.Key},
	}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", core.ErrEmailRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", core.ErrInvalidEmail
	}
	return email, nil
}

func validatePassword(password string) error {
	switch {
	case password == "":
		return core.ErrPasswordRequired
	case len(password) < minPasswordLength:
		return core.ErrPasswordTooShort
	case len(password) > maxPasswordLength:
		return core.ErrPasswordTooLong
	}
	return nil
}
