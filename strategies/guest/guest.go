// Package guest implements the anonymous strategy: authentication
// always succeeds and lazily creates an identity, so visitors get a
// stable user id before they ever share an email. The identity can be
// upgraded later by attaching a local method to it.
package guest

import (
	"context"

	"github.com/google/uuid"
	"github.com/lborres/tanod/core"
)

// Name is the strategy's registry key.
const Name = "guest"

// Strategy is the anonymous guest strategy.
type Strategy struct {
	storage core.IdentityStorage
}

var _ core.Strategy = (*Strategy)(nil)

func New(storage core.IdentityStorage) *Strategy {
	return &Strategy{storage: storage}
}

func (s *Strategy) Name() string { return Name }

// Register creates a fresh guest identity. Guests carry no reachable
// address, so no events are emitted.
func (s *Strategy) Register(ctx context.Context, _ core.Credentials) (*core.Identity, []core.Event, error) {
	identity, err := s.create(ctx)
	if err != nil {
		return nil, nil, err
	}
	return identity, nil, nil
}

// Authenticate always succeeds, creating the identity on first use.
func (s *Strategy) Authenticate(ctx context.Context, _ core.Credentials) (*core.Identity, error) {
	return s.create(ctx)
}

func (s *Strategy) create(ctx context.Context) (*core.Identity, error) {
	method := &core.Method{
		Strategy: Name,
		// Random key: guests have no natural unique key of their own.
		Key:      uuid.NewString(),
		Verified: true,
	}

	return s.storage.CreateIdentityWithMethod(ctx, method)
}
