package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lborres/tanod/core"
)

func (a *Adapter) GetIdentityByID(ctx context.Context, id string) (*core.Identity, error) {
	var doc identityDoc
	err := a.identities().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, core.ErrIdentityNotFound
		}
		return nil, mapError(err)
	}

	methods, err := a.loadMethods(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	return doc.toCore(methods), nil
}

func (a *Adapter) GetIdentityByMethodKey(ctx context.Context, strategy, key string) (*core.Identity, error) {
	var method methodDoc
	err := a.methods().FindOne(ctx, bson.M{"strategy": strategy, "key": key}).Decode(&method)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, core.ErrIdentityNotFound
		}
		return nil, mapError(err)
	}

	return a.GetIdentityByID(ctx, method.IdentityID)
}

func (a *Adapter) CreateIdentityWithMethod(ctx context.Context, m *core.Method) (*core.Identity, error) {
	now := time.Now().UTC()
	identity := identityDoc{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	method := methodDoc{
		IdentityID:   identity.ID,
		Strategy:     m.Strategy,
		Key:          m.Key,
		PasswordHash: m.PasswordHash,
		Verified:     m.Verified,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The identity goes first. If the method insert then fails — its
	// unique index is the uniqueness gate — the leftover is an identity
	// no key resolves to, which is harmless. The reverse order would
	// strand a method doc pointing at a missing identity, locking the
	// key out of registration forever.
	if _, err := a.identities().InsertOne(ctx, identity); err != nil {
		return nil, mapError(err)
	}
	if _, err := a.methods().InsertOne(ctx, method); err != nil {
		return nil, mapError(err)
	}

	return identity.toCore([]*core.Method{method.toCore()}), nil
}

func (a *Adapter) AttachMethod(ctx context.Context, identityID string, m *core.Method) error {
	count, err := a.identities().CountDocuments(ctx, bson.M{"_id": identityID})
	if err != nil {
		return mapError(err)
	}
	if count == 0 {
		return core.ErrIdentityNotFound
	}

	now := time.Now().UTC()
	method := methodDoc{
		IdentityID:   identityID,
		Strategy:     m.Strategy,
		Key:          m.Key,
		PasswordHash: m.PasswordHash,
		Verified:     m.Verified,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := a.methods().InsertOne(ctx, method); err != nil {
		return mapError(err)
	}

	*m = *method.toCore()
	return nil
}

func (a *Adapter) UpdateMethod(ctx context.Context, identityID, strategy string, patch core.MethodPatch) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.PasswordHash != nil {
		set["password_hash"] = *patch.PasswordHash
	}
	if patch.Verified != nil {
		set["verified"] = *patch.Verified
	}

	res, err := a.methods().UpdateOne(ctx,
		bson.M{"identity_id": identityID, "strategy": strategy},
		bson.M{"$set": set},
	)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return core.ErrMethodNotFound
	}
	return nil
}

func (a *Adapter) TouchLastLogin(ctx context.Context, identityID string, at time.Time) error {
	res, err := a.identities().UpdateOne(ctx,
		bson.M{"_id": identityID},
		bson.M{"$set": bson.M{"last_login_at": at, "updated_at": at}},
	)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return core.ErrIdentityNotFound
	}
	return nil
}

func (a *Adapter) loadMethods(ctx context.Context, identityID string) ([]*core.Method, error) {
	cursor, err := a.methods().Find(ctx, bson.M{"identity_id": identityID})
	if err != nil {
		return nil, mapError(err)
	}
	defer cursor.Close(ctx)

	var methods []*core.Method
	for cursor.Next(ctx) {
		var doc methodDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, mapError(err)
		}
		methods = append(methods, doc.toCore())
	}
	if err := cursor.Err(); err != nil {
		return nil, mapError(err)
	}
	return methods, nil
}
