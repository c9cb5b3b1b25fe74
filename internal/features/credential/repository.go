package credential

import (
	"context"
	"errors"
	"time"

	"go-portal-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CredentialRepository interface {
	GetByPortal(ctx context.Context, portal string) (*PortalCredential, error)
	List(ctx context.Context) ([]PortalCredential, error)
	Upsert(ctx context.Context, cred *PortalCredential) error
	UpdateFields(ctx context.Context, portal string, updates bson.M) error
	EnsureIndexes(ctx context.Context) error
}

type CredentialRepositoryImpl struct {
	collection *mongo.Collection
}

func NewCredentialRepository(db *database.MongodbDB) CredentialRepository {
	return &CredentialRepositoryImpl{
		collection: db.DB.Collection("portal_credentials"),
	}
}

func (r *CredentialRepositoryImpl) GetByPortal(ctx context.Context, portal string) (*PortalCredential, error) {
	var cred PortalCredential
	err := r.collection.FindOne(ctx, bson.M{"portal": portal}).Decode(&cred)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *CredentialRepositoryImpl) List(ctx context.Context) ([]PortalCredential, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "portal", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var creds []PortalCredential
	if err = cursor.All(ctx, &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// Upsert writes the credential keyed by portal; there is at most one
// document per portal.
func (r *CredentialRepositoryImpl) Upsert(ctx context.Context, cred *PortalCredential) error {
	now := time.Now()
	cred.UpdatedAt = now

	update := bson.M{
		"$set":         cred,
		"$setOnInsert": bson.M{"created_at": now},
	}
	cred.CreatedAt = time.Time{} // avoid overwriting created_at on update

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"portal": cred.Portal},
		update,
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *CredentialRepositoryImpl) UpdateFields(ctx context.Context, portal string, updates bson.M) error {
	updates["updated_at"] = time.Now()
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"portal": portal},
		bson.M{"$set": updates},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *CredentialRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "portal", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
