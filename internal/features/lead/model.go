package lead

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Lead sources.
const (
	SourceWebhook = "webhook"
	SourcePolling = "polling"
)

// Lead statuses follow the dealer's sales funnel.
const (
	StatusNew         = "new"
	StatusContacted   = "contacted"
	StatusNegotiating = "negotiating"
	StatusConverted   = "converted"
	StatusLost        = "lost"
	StatusSpam        = "spam"
)

var validStatuses = map[string]bool{
	StatusNew:         true,
	StatusContacted:   true,
	StatusNegotiating: true,
	StatusConverted:   true,
	StatusLost:        true,
	StatusSpam:        true,
}

// Lead is a buyer contact from a portal. The (portal, external_lead_id)
// pair is unique, so a lead delivered by webhook and later seen again while
// polling is stored once. Leads without an external id are exempt.
type Lead struct {
	ID             primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	Portal         string                 `bson:"portal" json:"portal"`
	ExternalLeadID string                 `bson:"external_lead_id" json:"external_lead_id"`
	ExternalAdID   string                 `bson:"external_ad_id,omitempty" json:"external_ad_id,omitempty"`
	VehicleID      string                 `bson:"vehicle_id,omitempty" json:"vehicle_id,omitempty"`
	Name           string                 `bson:"name,omitempty" json:"name,omitempty"`
	Email          string                 `bson:"email,omitempty" json:"email,omitempty"`
	Phone          string                 `bson:"phone,omitempty" json:"phone,omitempty"`
	Message        string                 `bson:"message,omitempty" json:"message,omitempty"`
	Source         string                 `bson:"source" json:"source"`
	Status         string                 `bson:"status" json:"status"`
	Raw            map[string]interface{} `bson:"raw,omitempty" json:"raw,omitempty"`
	ReceivedAt     *time.Time             `bson:"received_at,omitempty" json:"received_at,omitempty"`
	CreatedAt      time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time              `bson:"updated_at" json:"updated_at"`

	// MissingID marks a polled lead the portal delivered without an
	// external id. Kept anyway, losing a contact is worse than a duplicate.
	MissingID bool `bson:"missing_id,omitempty" json:"missing_id,omitempty"`
}

// ListFilter narrows lead queries.
type ListFilter struct {
	Portal    string
	Status    string
	VehicleID string
	Limit     int64
}
