package portals

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-portal-sync/internal/config"
	"go-portal-sync/internal/inventory"

	"go.uber.org/zap"
)

// WebMotorsRESTAdapter speaks the channel-inventory REST API. The
// integration is passive: WebMotors pulls listings from the dealer feed on
// its side, and this adapter only reports status back, reads the published
// inventory and fetches leads. Publish and update are rejected before any
// HTTP call is made.
type WebMotorsRESTAdapter struct {
	cfg    config.WebMotorsConfig
	store  CredentialStore
	client *client
	log    *zap.Logger
}

func NewWebMotorsRESTAdapter(cfg *config.Config, store CredentialStore, recorder CallRecorder, log *zap.Logger) *WebMotorsRESTAdapter {
	return &WebMotorsRESTAdapter{
		cfg:    cfg.WebMotors,
		store:  store,
		client: newClient(PortalWebMotorsREST, recorder, log),
		log:    log,
	}
}

func (a *WebMotorsRESTAdapter) Name() string { return PortalWebMotorsREST }

func (a *WebMotorsRESTAdapter) Capabilities() Capabilities {
	return Capabilities{Push: false, LeadPull: true, StatusUpdate: true, Pagination: false}
}

func (a *WebMotorsRESTAdapter) token(ctx context.Context) (string, error) {
	cred, err := a.store.Get(ctx, PortalWebMotorsREST)
	if err != nil {
		return "", err
	}
	if cred == nil || cred.AccessToken == "" {
		return "", ErrNotAuthenticated
	}
	return cred.AccessToken, nil
}

func (a *WebMotorsRESTAdapter) Authenticate(ctx context.Context) error {
	_, err := a.token(ctx)
	return err
}

func (a *WebMotorsRESTAdapter) TestConnection(ctx context.Context) error {
	_, err := a.GetInteractions(ctx)
	return err
}

func (a *WebMotorsRESTAdapter) get(ctx context.Context, endpoint, action string, out interface{}) error {
	token, err := a.token(ctx)
	if err != nil {
		return err
	}
	resp, err := a.client.do(ctx, request{
		Method:   "GET",
		URL:      a.cfg.RESTURL() + endpoint,
		Endpoint: endpoint,
		Action:   action,
		Headers:  map[string]string{"Authorization": "Bearer " + token},
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("webmotors rest request failed: %s", parseAPIError(resp.Body, resp.StatusCode))
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return fmt.Errorf("failed to decode webmotors rest response: %w", err)
		}
	}
	return nil
}

// GetInteractions lists the publication requests WebMotors has made against
// the dealer's channel feed.
func (a *WebMotorsRESTAdapter) GetInteractions(ctx context.Context) ([]map[string]interface{}, error) {
	var interactions []map[string]interface{}
	if err := a.get(ctx, "/estoquecanais/v1/interacoes", "GET /estoquecanais/v1/interacoes", &interactions); err != nil {
		return nil, err
	}
	return interactions, nil
}

func (a *WebMotorsRESTAdapter) GetItem(ctx context.Context, itemID string) (map[string]interface{}, error) {
	var item map[string]interface{}
	endpoint := "/estoquecanais/v1/itens/" + itemID
	if err := a.get(ctx, endpoint, "GET /estoquecanais/v1/itens/{id}", &item); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItemStatus reports a listing status back to WebMotors, optionally
// with the published listing URL.
func (a *WebMotorsRESTAdapter) UpdateItemStatus(ctx context.Context, itemID, status, url string) error {
	token, err := a.token(ctx)
	if err != nil {
		return err
	}

	body := map[string]interface{}{"status": status}
	if url != "" {
		body["url"] = url
	}

	endpoint := "/estoquecanais/v1/itens/" + itemID + "/status"
	resp, err := a.client.do(ctx, request{
		Method:   "PATCH",
		URL:      a.cfg.RESTURL() + endpoint,
		Endpoint: endpoint,
		Action:   "PATCH /estoquecanais/v1/itens/{id}/status",
		Headers:  map[string]string{"Authorization": "Bearer " + token},
		JSONBody: body,
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("webmotors rest status update failed: %s", parseAPIError(resp.Body, resp.StatusCode))
	}
	return nil
}

func (a *WebMotorsRESTAdapter) TransformVehicle(ctx context.Context, v *inventory.Vehicle) (map[string]interface{}, error) {
	return nil, ErrPushNotSupported
}

func (a *WebMotorsRESTAdapter) PublishVehicle(ctx context.Context, v *inventory.Vehicle) (*PublishResult, error) {
	return nil, ErrPushNotSupported
}

func (a *WebMotorsRESTAdapter) UpdateVehicle(ctx context.Context, externalID string, v *inventory.Vehicle) (*PublishResult, error) {
	return nil, ErrPushNotSupported
}

func (a *WebMotorsRESTAdapter) RemoveVehicle(ctx context.Context, externalID string) error {
	return a.UpdateItemStatus(ctx, externalID, "removed", "")
}

func (a *WebMotorsRESTAdapter) UpdateVehicleStatus(ctx context.Context, externalID, status string) error {
	mapped := ""
	switch status {
	case "active":
		mapped = "published"
	case "paused":
		mapped = "paused"
	case "sold":
		mapped = "sold"
	case "inactive":
		mapped = "removed"
	default:
		return fmt.Errorf("unsupported status %q", status)
	}
	return a.UpdateItemStatus(ctx, externalID, mapped, "")
}

func (a *WebMotorsRESTAdapter) FetchLeads(ctx context.Context, since time.Time) ([]Lead, error) {
	endpoint := "/leads/v1/leads"
	if !since.IsZero() {
		endpoint += "?startDate=" + since.Format("2006-01-02")
	}

	var raw []map[string]interface{}
	if err := a.get(ctx, endpoint, "GET /leads/v1/leads", &raw); err != nil {
		return nil, err
	}

	leads := make([]Lead, 0, len(raw))
	for _, entry := range raw {
		lead := Lead{
			ExternalID:   stringValue(entry["id"]),
			ExternalAdID: stringValue(entry["adId"]),
			Name:         stringValue(entry["name"]),
			Email:        stringValue(entry["email"]),
			Phone:        stringValue(entry["phone"]),
			Message:      stringValue(entry["message"]),
			Extra:        entry,
		}
		if lead.ExternalID == "" {
			lead.ExternalID = fmt.Sprintf("%.0f", toFloat(entry["id"]))
		}
		if created := stringValue(entry["createdAt"]); created != "" {
			if t, err := time.Parse(time.RFC3339, created); err == nil {
				lead.ReceivedAt = t
			}
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

func (a *WebMotorsRESTAdapter) GetPublishedVehicles(ctx context.Context, page Page) ([]PublishedListing, Page, error) {
	var raw []map[string]interface{}
	if err := a.get(ctx, "/estoquecanais/v1/itens", "GET /estoquecanais/v1/itens", &raw); err != nil {
		return nil, Page{}, err
	}

	listings := make([]PublishedListing, 0, len(raw))
	for _, entry := range raw {
		id := stringValue(entry["id"])
		if id == "" {
			id = fmt.Sprintf("%.0f", toFloat(entry["id"]))
		}
		listings = append(listings, PublishedListing{
			ExternalID: id,
			Status:     stringValue(entry["status"]),
			Raw:        entry,
		})
	}
	return listings, Page{}, nil
}
