package sync

import (
	"context"
	"errors"
	"time"

	"go-portal-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SyncRepository interface {
	FirstOrCreate(ctx context.Context, vehicleID, portal string) (*SyncRecord, error)
	GetByVehicleAndPortal(ctx context.Context, vehicleID, portal string) (*SyncRecord, error)
	GetByExternalID(ctx context.Context, portal, externalID string) (*SyncRecord, error)
	ListByPortal(ctx context.Context, portal, status string, limit int64) ([]SyncRecord, error)
	ListRetryable(ctx context.Context, maxAttempts int, limit int64) ([]SyncRecord, error)
	UpdateFields(ctx context.Context, id primitive.ObjectID, updates bson.M) error
	IncrementAttempts(ctx context.Context, id primitive.ObjectID) error
	EnsureIndexes(ctx context.Context) error
}

type SyncRepositoryImpl struct {
	collection *mongo.Collection
}

func NewSyncRepository(db *database.MongodbDB) SyncRepository {
	return &SyncRepositoryImpl{
		collection: db.DB.Collection("vehicle_portal_sync"),
	}
}

// FirstOrCreate returns the record for the pair, creating a pending one if
// none exists. The upsert is atomic so concurrent syncs of a new pair
// cannot create duplicates.
func (r *SyncRepositoryImpl) FirstOrCreate(ctx context.Context, vehicleID, portal string) (*SyncRecord, error) {
	now := time.Now()
	filter := bson.M{"vehicle_id": vehicleID, "portal": portal}
	update := bson.M{
		"$setOnInsert": bson.M{
			"vehicle_id": vehicleID,
			"portal":     portal,
			"status":     StatusPending,
			"attempts":   0,
			"created_at": now,
			"updated_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var record SyncRecord
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *SyncRepositoryImpl) GetByVehicleAndPortal(ctx context.Context, vehicleID, portal string) (*SyncRecord, error) {
	var record SyncRecord
	err := r.collection.FindOne(ctx, bson.M{"vehicle_id": vehicleID, "portal": portal}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *SyncRepositoryImpl) GetByExternalID(ctx context.Context, portal, externalID string) (*SyncRecord, error) {
	var record SyncRecord
	err := r.collection.FindOne(ctx, bson.M{"portal": portal, "external_id": externalID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *SyncRepositoryImpl) ListByPortal(ctx context.Context, portal, status string, limit int64) ([]SyncRecord, error) {
	filter := bson.M{"portal": portal}
	if status != "" {
		filter["status"] = status
	}
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}).SetLimit(limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []SyncRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ListRetryable returns pending and errored records that have attempts left.
func (r *SyncRepositoryImpl) ListRetryable(ctx context.Context, maxAttempts int, limit int64) ([]SyncRecord, error) {
	filter := bson.M{
		"status":   bson.M{"$in": []string{StatusPending, StatusError}},
		"attempts": bson.M{"$lt": maxAttempts},
	}
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}}).SetLimit(limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []SyncRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *SyncRepositoryImpl) UpdateFields(ctx context.Context, id primitive.ObjectID, updates bson.M) error {
	updates["updated_at"] = time.Now()
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": updates})
	return err
}

func (r *SyncRepositoryImpl) IncrementAttempts(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"attempts": 1},
		"$set": bson.M{"updated_at": time.Now()},
	})
	return err
}

func (r *SyncRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "vehicle_id", Value: 1}, {Key: "portal", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "portal", Value: 1}, {Key: "external_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}}},
	})
	return err
}
