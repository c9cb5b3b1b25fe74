package calllog

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CallLog is one outbound portal interaction. Every HTTP and SOAP call an
// adapter makes ends up here, with secrets already redacted, so the trail
// can be replayed when a portal disputes a sync.
type CallLog struct {
	ID             primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	Portal         string                 `bson:"portal" json:"portal"`
	VehicleID      string                 `bson:"vehicle_id,omitempty" json:"vehicle_id,omitempty"`
	Action         string                 `bson:"action" json:"action"`
	Result         string                 `bson:"result" json:"result"`
	HTTPMethod     string                 `bson:"http_method,omitempty" json:"http_method,omitempty"`
	Endpoint       string                 `bson:"endpoint,omitempty" json:"endpoint,omitempty"`
	HTTPStatus     int                    `bson:"http_status,omitempty" json:"http_status,omitempty"`
	RequestPayload map[string]interface{} `bson:"request_payload,omitempty" json:"request_payload,omitempty"`
	ResponseBody   string                 `bson:"response_body,omitempty" json:"response_body,omitempty"`
	ErrorMessage   string                 `bson:"error_message,omitempty" json:"error_message,omitempty"`
	DurationMs     int64                  `bson:"duration_ms" json:"duration_ms"`
	CreatedAt      time.Time              `bson:"created_at" json:"created_at"`
}

// ListFilter narrows call log queries.
type ListFilter struct {
	Portal    string
	VehicleID string
	Result    string
	Limit     int64
}
