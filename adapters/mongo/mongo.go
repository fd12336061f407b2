// Package mongo is the MongoDB storage adapter, for deployments that
// keep identities in a document store. Method-key uniqueness rides on
// a compound unique index and token consumption on single-document
// conditional updates, so no multi-document transactions are needed.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/lborres/tanod/core"
)

const (
	// DefaultDBName is the default for Config.DBName.
	DefaultDBName = "tanod"

	identitiesCollection = "identities"
	methodsCollection    = "methods"
	tokensCollection     = "tokens"
)

// Config holds adapter configuration.
// A zero value is a valid configuration.
type Config struct {
	// DBName is the name of the database used by the adapter.
	DBName string
}

// Adapter implements core.AuthStorage over the official mongo driver.
type Adapter struct {
	db *mongo.Database
}

var _ core.AuthStorage = (*Adapter)(nil)

func New(client *mongo.Client, cfg Config) *Adapter {
	if cfg.DBName == "" {
		cfg.DBName = DefaultDBName
	}
	return &Adapter{db: client.Database(cfg.DBName)}
}

// EnsureIndexes creates the indexes the adapter's atomicity guarantees
// depend on. Call once at startup.
func (a *Adapter) EnsureIndexes(ctx context.Context) error {
	_, err := a.db.Collection(methodsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "strategy", Value: 1}, {Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return mapError(err)
	}

	_, err = a.db.Collection(tokensCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "value_hash", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return mapError(err)
}

func (a *Adapter) identities() *mongo.Collection { return a.db.Collection(identitiesCollection) }
func (a *Adapter) methods() *mongo.Collection    { return a.db.Collection(methodsCollection) }
func (a *Adapter) tokens() *mongo.Collection     { return a.db.Collection(tokensCollection) }

// mapError folds driver errors into the core taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return core.ErrMethodExists
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return core.ErrUnavailable
	}
	return err
}

// identityDoc is the stored form of core.Identity.
type identityDoc struct {
	ID          string     `bson:"_id"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
	LastLoginAt *time.Time `bson:"last_login_at,omitempty"`
}

// methodDoc is the stored form of core.Method.
type methodDoc struct {
	IdentityID   string    `bson:"identity_id"`
	Strategy     string    `bson:"strategy"`
	Key          string    `bson:"key"`
	PasswordHash *string   `bson:"password_hash,omitempty"`
	Verified     bool      `bson:"verified"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// tokenDoc is the stored form of core.Token. Its _id is the
// (subject, kind) pair, so a replace-with-upsert atomically supersedes
// the previous token of the same pair.
type tokenDoc struct {
	ID        string    `bson:"_id"` // subject id + ":" + kind
	TokenID   string    `bson:"token_id"`
	SubjectID string    `bson:"subject_id"`
	Kind      string    `bson:"kind"`
	ValueHash string    `bson:"value_hash"`
	IssuedAt  time.Time `bson:"issued_at"`
	ExpiresAt time.Time `bson:"expires_at"`
	Consumed  bool      `bson:"consumed"`
}

func (d *identityDoc) toCore(methods []*core.Method) *core.Identity {
	return &core.Identity{
		ID:          d.ID,
		Methods:     methods,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		LastLoginAt: d.LastLoginAt,
	}
}

func (d *methodDoc) toCore() *core.Method {
	return &core.Method{
		IdentityID:   d.IdentityID,
		Strategy:     d.Strategy,
		Key:          d.Key,
		PasswordHash: d.PasswordHash,
		Verified:     d.Verified,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
