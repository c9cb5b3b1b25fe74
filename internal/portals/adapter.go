package portals

import (
	"context"
	"errors"
	"time"

	"go-portal-sync/internal/inventory"
)

// Portal names. The set of supported portals is closed; anything else is
// rejected by the registry.
const (
	PortalOLX           = "olx"
	PortalMercadoLivre  = "mercadolivre"
	PortalICarros       = "icarros"
	PortalWebMotors     = "webmotors"      // SOAP dealer integration
	PortalWebMotorsREST = "webmotors_rest" // passive channel integration
)

var (
	ErrUnknownPortal    = errors.New("unknown portal")
	ErrNotAuthenticated = errors.New("portal credentials not available")

	// ErrPushNotSupported is returned before any HTTP call for portals with a
	// passive publication model.
	ErrPushNotSupported = errors.New("portal does not support push publishing; listings are pushed from the portal side")

	// ErrLeadPullNotSupported is returned by webhook-only portals.
	ErrLeadPullNotSupported = errors.New("portal delivers leads via webhook only; polling is not available")
)

// Capabilities describes which operations a portal supports. The sync
// coordinator checks these before calling into the adapter.
type Capabilities struct {
	Push         bool // can publish/update listings from our side
	LeadPull     bool // leads can be fetched by polling
	StatusUpdate bool
	Pagination   bool // published-listing listing is paginated
}

// PublishResult is the outcome of a publish or update call.
type PublishResult struct {
	ExternalID string
	URL        string
	Response   map[string]interface{}
}

// Lead is a normalized buyer contact fetched from a portal.
type Lead struct {
	ExternalID   string
	ExternalAdID string
	Name         string
	Email        string
	Phone        string
	Message      string
	ReceivedAt   time.Time
	Extra        map[string]interface{}
}

// PublishedListing is a listing as reported by the portal's inventory API.
type PublishedListing struct {
	ExternalID string
	Status     string
	Raw        map[string]interface{}
}

// Page is a pagination cursor for GetPublishedVehicles. Token-based portals
// use Token, page-based portals use Number/Size.
type Page struct {
	Token  string
	Number int
	Size   int
}

// HasMore reports whether the portal signalled another page.
func (p Page) HasMore() bool { return p.Token != "" || p.Number > 0 }

// Adapter is the uniform contract over all portal integrations.
type Adapter interface {
	Name() string
	Capabilities() Capabilities

	// Authenticate ensures the adapter holds working credentials,
	// minting a session where the portal requires one.
	Authenticate(ctx context.Context) error
	TestConnection(ctx context.Context) error

	// TransformVehicle maps an inventory vehicle to the portal's payload.
	// The result is deterministic for identical input; the sync engine
	// hashes it for change detection.
	TransformVehicle(ctx context.Context, v *inventory.Vehicle) (map[string]interface{}, error)

	PublishVehicle(ctx context.Context, v *inventory.Vehicle) (*PublishResult, error)
	UpdateVehicle(ctx context.Context, externalID string, v *inventory.Vehicle) (*PublishResult, error)
	RemoveVehicle(ctx context.Context, externalID string) error
	UpdateVehicleStatus(ctx context.Context, externalID, status string) error

	FetchLeads(ctx context.Context, since time.Time) ([]Lead, error)
	GetPublishedVehicles(ctx context.Context, page Page) ([]PublishedListing, Page, error)
}

// Credential is the portal-facing view of stored credentials. The store is
// the single source of truth for tokens; adapters read it on every call so a
// background refresh is picked up immediately.
type Credential struct {
	Portal       string
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	Username     string
	Password     string
	SessionHash  string
	UserID       string // portal-side account id (mercadolivre)
	DealerID     int    // dealer scope (icarros)
	CNPJ         string // webmotors login
	ExpiresAt    time.Time
}

// CredentialStore persists portal credentials and token material.
type CredentialStore interface {
	Get(ctx context.Context, portal string) (*Credential, error)
	SaveTokens(ctx context.Context, portal, accessToken, refreshToken string, expiresAt time.Time) error
	SaveSessionHash(ctx context.Context, portal, hash string) error
}

// CallRecord is one outbound portal interaction. Secrets are already
// redacted by the time a record reaches the recorder.
type CallRecord struct {
	Portal         string
	VehicleID      string
	Action         string
	Result         string // success | error | skipped
	HTTPMethod     string
	Endpoint       string
	HTTPStatus     int
	RequestPayload map[string]interface{}
	ResponseBody   string
	ErrorMessage   string
	Duration       time.Duration
}

const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// CallRecorder receives every outbound interaction, including transport
// failures. Recording must never block the calling path.
type CallRecorder interface {
	Record(ctx context.Context, rec CallRecord)
}
