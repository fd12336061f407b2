package mongo

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/lborres/tanod/core"
)

// Requirement: the identity document is written before the method
// document. An interrupted create then leaves at worst an orphan
// identity no key resolves to; the reverse order would strand a method
// doc bound to a missing identity, making its key permanently
// unregistrable.
func TestCreateIdentityWithMethod_WriteOrder(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("identity insert precedes method insert", func(mt *mtest.T) {
		adapter := New(mt.Client, Config{DBName: "tanod_test"})

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)

		identity, err := adapter.CreateIdentityWithMethod(context.Background(),
			&core.Method{Strategy: "local", Key: "a@example.com"})
		if err != nil {
			mt.Fatalf("CreateIdentityWithMethod() error = %v", err)
		}
		if identity.Method("local") == nil {
			mt.Fatal("created identity carries no local method")
		}

		first := mt.GetStartedEvent()
		second := mt.GetStartedEvent()
		if first == nil || second == nil {
			mt.Fatal("expected two insert commands")
		}
		if got := first.Command.Lookup("insert").StringValue(); got != identitiesCollection {
			mt.Fatalf("first insert hit %q, want %q", got, identitiesCollection)
		}
		if got := second.Command.Lookup("insert").StringValue(); got != methodsCollection {
			mt.Fatalf("second insert hit %q, want %q", got, methodsCollection)
		}
	})

	mt.Run("duplicate key on the method insert maps to ErrMethodExists", func(mt *mtest.T) {
		adapter := New(mt.Client, Config{DBName: "tanod_test"})

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{
				Index:   0,
				Code:    11000,
				Message: "E11000 duplicate key error",
			}),
		)

		_, err := adapter.CreateIdentityWithMethod(context.Background(),
			&core.Method{Strategy: "local", Key: "a@example.com"})
		if !errors.Is(err, core.ErrMethodExists) {
			mt.Fatalf("CreateIdentityWithMethod() error = %v, want ErrMethodExists", err)
		}
	})
}
