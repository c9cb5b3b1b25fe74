package lead

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

// ErrDuplicateLead marks an insert that collided with the unique
// (portal, external_lead_id) index.
var ErrDuplicateLead = errors.New("lead already ingested")

type LeadRepository interface {
	Create(ctx context.Context, lead *Lead) error
	GetByID(ctx context.Context, id string) (*Lead, error)
	List(ctx context.Context, filter ListFilter) ([]Lead, error)
	UpdateStatus(ctx context.Context, id, status string) error
	EnsureIndexes(ctx context.Context) error
}

type LeadRepositoryImpl struct {
	collection *mongo.Collection
}

func NewLeadRepository(db *database.MongodbDB) LeadRepository {
	return &LeadRepositoryImpl{
		collection: db.DB.Collection("portal_leads"),
	}
}

func (r *LeadRepositoryImpl) Create(ctx context.Context, lead *Lead) error {
	if lead.ID.IsZero() {
		lead.ID = primitive.NewObjectID()
	}
	now := time.Now()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if lead.Status == "" {
		lead.Status = StatusNew
	}

	_, err := r.collection.InsertOne(ctx, lead)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateLead
	}
	return err
}

func (r *LeadRepositoryImpl) GetByID(ctx context.Context, id string) (*Lead, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var lead Lead
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&lead)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *LeadRepositoryImpl) List(ctx context.Context, filter ListFilter) ([]Lead, error) {
	query := bson.M{}
	if filter.Portal != "" {
		query["portal"] = filter.Portal
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.VehicleID != "" {
		query["vehicle_id"] = filter.VehicleID
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

	var leads []Lead
	if err = cursor.All(ctx, &leads); err != nil {
		return nil, err
	}
	return leads, nil
}

func (r *LeadRepositoryImpl) UpdateStatus(ctx context.Context, id, status string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"status": status, "updated_at": time.Now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errors.New("lead not found")
	}
	return nil
}

func (r *LeadRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// Partial: leads stored without an external id must not collide
			// with each other.
			Keys: bson.D{{Key: "portal", Value: 1}, {Key: "external_lead_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "external_lead_id", Value: bson.D{{Key: "$gt", Value: ""}}}}),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "vehicle_id", Value: 1}}},
	})
	return err
}
