package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lborres/tanod/core"
)

func tokenDocID(subjectID string, kind core.TokenKind) string {
	return subjectID + ":" + string(kind)
}

func (a *Adapter) ReplaceToken(ctx context.Context, t *core.Token) error {
	doc := tokenDoc{
		ID:        tokenDocID(t.SubjectID, t.Kind),
		TokenID:   t.ID,
		SubjectID: t.SubjectID,
		Kind:      string(t.Kind),
		ValueHash: t.ValueHash,
		IssuedAt:  t.IssuedAt,
		ExpiresAt: t.ExpiresAt,
	}

	// One document per (subject, kind): replacing it supersedes the
	// previous token in the same write. The superseded value simply no
	// longer resolves, so consuming it fails ErrTokenInvalid.
	_, err := a.tokens().ReplaceOne(ctx,
		bson.M{"_id": doc.ID},
		doc,
		options.Replace().SetUpsert(true),
	)
	return mapError(err)
}

func (a *Adapter) ConsumeToken(ctx context.Context, valueHash string, kind core.TokenKind, now time.Time) (string, error) {
	// Conditional single-document update: exactly one concurrent
	// caller flips consumed, the rest fall through to classification.
	var doc tokenDoc
	err := a.tokens().FindOneAndUpdate(ctx,
		bson.M{
			"value_hash": valueHash,
			"kind":       string(kind),
			"consumed":   false,
			"expires_at": bson.M{"$gt": now},
		},
		bson.M{"$set": bson.M{"consumed": true}},
	).Decode(&doc)
	if err == nil {
		return doc.SubjectID, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return "", mapError(err)
	}

	// Distinguish "already used" from "unknown or expired".
	err = a.tokens().FindOne(ctx,
		bson.M{"value_hash": valueHash, "kind": string(kind)},
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", core.ErrTokenInvalid
		}
		return "", mapError(err)
	}

	if doc.Consumed {
		return "", core.ErrTokenConsumed
	}
	return "", core.ErrTokenInvalid
}
