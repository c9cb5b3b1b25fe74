package credential

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PortalCredential is the stored credential material for one portal. Secret
// fields are excluded from JSON so API responses never leak them; redacted
// presence flags are exposed through Status instead.
type PortalCredential struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Portal       string             `bson:"portal" json:"portal"`
	ClientID     string             `bson:"client_id,omitempty" json:"client_id,omitempty"`
	ClientSecret string             `bson:"client_secret,omitempty" json:"-"`
	AccessToken  string             `bson:"access_token,omitempty" json:"-"`
	RefreshToken string             `bson:"refresh_token,omitempty" json:"-"`
	Username     string             `bson:"username,omitempty" json:"username,omitempty"`
	Password     string             `bson:"password,omitempty" json:"-"`
	SessionHash  string             `bson:"session_hash,omitempty" json:"-"`
	UserID       string             `bson:"user_id,omitempty" json:"user_id,omitempty"`
	DealerID     int                `bson:"dealer_id,omitempty" json:"dealer_id,omitempty"`
	CNPJ         string             `bson:"cnpj,omitempty" json:"cnpj,omitempty"`

	// PKCEVerifier holds the verifier between issuing an authorization URL
	// and the callback exchange.
	PKCEVerifier string `bson:"pkce_verifier,omitempty" json:"-"`

	ExpiresAt *time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	CreatedAt time.Time  `bson:"created_at,omitempty" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// Status is the API-facing view of a portal's credential health.
type Status struct {
	Portal       string     `json:"portal"`
	Configured   bool       `json:"configured"`
	HasToken     bool       `json:"has_token"`
	HasRefresh   bool       `json:"has_refresh_token"`
	HasSession   bool       `json:"has_session"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	NeedsRefresh bool       `json:"needs_refresh"`
}
