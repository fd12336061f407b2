// Package memory is an in-process storage adapter. It backs the test
// suites and makes the server runnable without external
// infrastructure; data does not survive a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lborres/tanod/core"
)

// Adapter implements core.AuthStorage over mutex-guarded maps.
type Adapter struct {
	mu          sync.RWMutex
	identities  map[string]*core.Identity
	methodIndex map[string]string     // strategy+"\x00"+key -> identity id
	tokens      map[string]*core.Token // value hash -> token
	liveTokens  map[string]string      // subject+"\x00"+kind -> value hash of live token
}

var _ core.AuthStorage = (*Adapter)(nil)

func New() *Adapter {
	return &Adapter{
		identities:  make(map[string]*core.Identity),
		methodIndex: make(map[string]string),
		tokens:      make(map[string]*core.Token),
		liveTokens:  make(map[string]string),
	}
}

func methodKey(strategy, key string) string { return strategy + "\x00" + key }
func tokenKey(subjectID string, kind core.TokenKind) string {
	return subjectID + "\x00" + string(kind)
}

func (a *Adapter) GetIdentityByID(_ context.Context, id string) (*core.Identity, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	identity, ok := a.identities[id]
	if !ok {
		return nil, core.ErrIdentityNotFound
	}
	return copyIdentity(identity), nil
}

func (a *Adapter) GetIdentityByMethodKey(_ context.Context, strategy, key string) (*core.Identity, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	id, ok := a.methodIndex[methodKey(strategy, key)]
	if !ok {
		return nil, core.ErrIdentityNotFound
	}
	return copyIdentity(a.identities[id]), nil
}

func (a *Adapter) CreateIdentityWithMethod(_ context.Context, m *core.Method) (*core.Identity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := methodKey(m.Strategy, m.Key)
	if _, bound := a.methodIndex[idx]; bound {
		return nil, core.ErrMethodExists
	}

	now := time.Now().UTC()
	identity := &core.Identity{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	method := *m
	method.IdentityID = identity.ID
	method.CreatedAt = now
	method.UpdatedAt = now
	identity.Methods = []*core.Method{&method}

	a.identities[identity.ID] = identity
	a.methodIndex[idx] = identity.ID

	return copyIdentity(identity), nil
}

func (a *Adapter) AttachMethod(_ context.Context, identityID string, m *core.Method) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	identity, ok := a.identities[identityID]
	if !ok {
		return core.ErrIdentityNotFound
	}

	idx := methodKey(m.Strategy, m.Key)
	if _, bound := a.methodIndex[idx]; bound {
		return core.ErrMethodExists
	}

	now := time.Now().UTC()
	method := *m
	method.IdentityID = identityID
	method.CreatedAt = now
	method.UpdatedAt = now

	identity.Methods = append(identity.Methods, &method)
	identity.UpdatedAt = now
	a.methodIndex[idx] = identityID

	return nil
}

func (a *Adapter) UpdateMethod(_ context.Context, identityID, strategy string, patch core.MethodPatch) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	identity, ok := a.identities[identityID]
	if !ok {
		return core.ErrMethodNotFound
	}
	method := identity.Method(strategy)
	if method == nil {
		return core.ErrMethodNotFound
	}

	now := time.Now().UTC()
	if patch.PasswordHash != nil {
		hash := *patch.PasswordHash
		method.PasswordHash = &hash
	}
	if patch.Verified != nil {
		method.Verified = *patch.Verified
	}
	method.UpdatedAt = now
	identity.UpdatedAt = now

	return nil
}

func (a *Adapter) TouchLastLogin(_ context.Context, identityID string, at time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	identity, ok := a.identities[identityID]
	if !ok {
		return core.ErrIdentityNotFound
	}
	t := at
	identity.LastLoginAt = &t
	identity.UpdatedAt = at
	return nil
}

func (a *Adapter) ReplaceToken(_ context.Context, t *core.Token) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Supersede the previous live token of this (subject, kind), then
	// insert; one critical section stands in for the transaction.
	live := tokenKey(t.SubjectID, t.Kind)
	if prevHash, ok := a.liveTokens[live]; ok {
		if prev, ok := a.tokens[prevHash]; ok && !prev.Consumed {
			prev.Consumed = true
		}
	}

	token := *t
	a.tokens[token.ValueHash] = &token
	a.liveTokens[live] = token.ValueHash

	return nil
}

func (a *Adapter) ConsumeToken(_ context.Context, valueHash string, kind core.TokenKind, now time.Time) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	token, ok := a.tokens[valueHash]
	if !ok || token.Kind != kind {
		return "", core.ErrTokenInvalid
	}
	if token.Consumed {
		return "", core.ErrTokenConsumed
	}
	if !now.Before(token.ExpiresAt) {
		return "", core.ErrTokenInvalid
	}

	token.Consumed = true
	return token.SubjectID, nil
}

func copyIdentity(identity *core.Identity) *core.Identity {
	out := *identity
	out.Methods = make([]*core.Method, len(identity.Methods))
	for i, m := range identity.Methods {
		method := *m
		if m.PasswordHash != nil {
			hash := *m.PasswordHash
			method.PasswordHash = &hash
		}
		out.Methods[i] = &method
	}
	if identity.LastLoginAt != nil {
		t := *identity.LastLoginAt
		out.LastLoginAt = &t
	}
	return &out
}
