package calllog

import (
	"context"
	"time"

	"go-portal-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CallLogRepository interface {
	Create(ctx context.Context, entry *CallLog) error
	List(ctx context.Context, filter ListFilter) ([]CallLog, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type CallLogRepositoryImpl struct {
	collection *mongo.Collection
}

func NewCallLogRepository(db *database.MongodbDB) CallLogRepository {
	return &CallLogRepositoryImpl{
		collection: db.DB.Collection("portal_call_logs"),
	}
}

func (r *CallLogRepositoryImpl) Create(ctx context.Context, entry *CallLog) error {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	entry.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, entry)
	return err
}

func (r *CallLogRepositoryImpl) List(ctx context.Context, filter ListFilter) ([]CallLog, error) {
	query := bson.M{}
	if filter.Portal != "" {
		query["portal"] = filter.Portal
	}
	if filter.VehicleID != "" {
		query["vehicle_id"] = filter.VehicleID
	}
	if filter.Result != "" {
		query["result"] = filter.Result
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []CallLog
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *CallLogRepositoryImpl) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *CallLogRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "portal", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "vehicle_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}
