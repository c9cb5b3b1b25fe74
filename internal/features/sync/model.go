package sync

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Sync statuses. The record moves pending -> publishing -> published, with
// updating/removing as transient states; error keeps the external id so a
// retry can resume as an update.
const (
	StatusPending    = "pending"
	StatusPublishing = "publishing"
	StatusPublished  = "published"
	StatusUpdating   = "updating"
	StatusRemoving   = "removing"
	StatusRemoved    = "removed"
	StatusError      = "error"
	StatusPaused     = "paused"
)

// Last attempted action on a record.
const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionRemove   = "remove"
	ActionPause    = "pause"
	ActionActivate = "activate"
)

// SyncRecord tracks one vehicle on one portal. There is exactly one record
// per (vehicle_id, portal) pair, enforced by a unique index.
type SyncRecord struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	VehicleID    string             `json:"vehicle_id" bson:"vehicle_id"`
	Portal       string             `json:"portal" bson:"portal"`
	ExternalID   string             `json:"external_id,omitempty" bson:"external_id,omitempty"`
	URL          string             `json:"url,omitempty" bson:"url,omitempty"`
	Status       string             `json:"status" bson:"status"`
	LastAction   string             `json:"last_action,omitempty" bson:"last_action,omitempty"`
	ContentHash  string             `json:"content_hash,omitempty" bson:"content_hash,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty" bson:"error_message,omitempty"`
	Attempts     int                `json:"attempts" bson:"attempts"`
	PublishedAt  *time.Time         `json:"published_at,omitempty" bson:"published_at,omitempty"`
	LastSyncAt   *time.Time         `json:"last_sync_at,omitempty" bson:"last_sync_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" bson:"updated_at"`
}

// SyncResult is the API-facing outcome of a sync operation.
type SyncResult struct {
	Record  *SyncRecord `json:"record"`
	Skipped bool        `json:"skipped"`
	Message string      `json:"message"`
}
