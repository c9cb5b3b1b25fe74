package portals

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go-portal-sync/internal/config"
	"go-portal-sync/internal/inventory"

	"go.uber.org/zap"
)

// OLXAdapter talks to the OLX autoupload API. Publication is import-based:
// inserts and deletes are batched into a single PUT /autoupload/import call.
// The API has no lead endpoint; OLX delivers leads via webhook only.
type OLXAdapter struct {
	cfg    config.OLXConfig
	images config.ImagesConfig
	store  CredentialStore
	client *client
	log    *zap.Logger
}

func NewOLXAdapter(cfg *config.Config, store CredentialStore, recorder CallRecorder, log *zap.Logger) *OLXAdapter {
	return &OLXAdapter{
		cfg:    cfg.OLX,
		images: cfg.Images,
		store:  store,
		client: newClient(PortalOLX, recorder, log),
		log:    log,
	}
}

func (a *OLXAdapter) Name() string { return PortalOLX }

func (a *OLXAdapter) Capabilities() Capabilities {
	return Capabilities{Push: true, LeadPull: false, StatusUpdate: true, Pagination: true}
}

func (a *OLXAdapter) token(ctx context.Context) (string, error) {
	cred, err := a.store.Get(ctx, PortalOLX)
	if err != nil {
		return "", err
	}
	if cred == nil || cred.AccessToken == "" {
		return "", ErrNotAuthenticated
	}
	return cred.AccessToken, nil
}

func (a *OLXAdapter) Authenticate(ctx context.Context) error {
	_, err := a.token(ctx)
	return err
}

func (a *OLXAdapter) TestConnection(ctx context.Context) error {
	_, _, err := a.GetPublishedVehicles(ctx, Page{})
	return err
}

// importAds pushes a batch of ad operations. OLX requires the access token
// in both the Authorization header and the request body.
func (a *OLXAdapter) importAds(ctx context.Context, vehicleID string, ads []map[string]interface{}) (map[string]interface{}, error) {
	token, err := a.token(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.do(ctx, request{
		Method:    "PUT",
		URL:       a.cfg.APIURL + "/autoupload/import",
		Endpoint:  "/autoupload/import",
		Action:    "PUT /autoupload/import",
		VehicleID: vehicleID,
		Headers:   map[string]string{"Authorization": "Bearer " + token},
		JSONBody: map[string]interface{}{
			"access_token": token,
			"ad_list":      ads,
		},
		LogPayload: map[string]interface{}{"ad_count": len(ads)},
	})
	if err != nil {
		return nil, err
	}

	body, err := resp.JSON()
	if err != nil {
		return nil, err
	}

	code := -1
	if c, ok := body["statusCode"].(float64); ok {
		code = int(c)
	}
	if !resp.OK() || code != 0 {
		return body, fmt.Errorf("olx import failed: %s", parseImportError(body))
	}
	return body, nil
}

// parseImportError maps the autoupload statusCode taxonomy to a message.
func parseImportError(body map[string]interface{}) string {
	code := -1
	if c, ok := body["statusCode"].(float64); ok {
		code = int(c)
	}
	switch code {
	case -1:
		return "unexpected error"
	case -2:
		return "user blocked for excessive requests"
	case -3:
		return "no ads to import"
	case -4:
		detail, _ := json.Marshal(body["errors"])
		return "ad validation failed: " + string(detail)
	case -5:
		return "import service disabled"
	case -6:
		return "insufficient permissions (requires professional plan)"
	case -7:
		return "insufficient ad slots remaining"
	case -8:
		return "partial import due to time limits"
	}
	if msg, ok := body["statusMessage"].(string); ok && msg != "" {
		return msg
	}
	return "unknown error"
}

func (a *OLXAdapter) PublishVehicle(ctx context.Context, v *inventory.Vehicle) (*PublishResult, error) {
	ad, err := a.TransformVehicle(ctx, v)
	if err != nil {
		return nil, err
	}
	ad["operation"] = "insert"

	body, err := a.importAds(ctx, v.ID, []map[string]interface{}{ad})
	if err != nil {
		return nil, err
	}

	// The import API echoes no per-ad id; the ad id we assigned is the
	// external identity on OLX.
	res := &PublishResult{ExternalID: ad["id"].(string), Response: body}
	return res, nil
}

func (a *OLXAdapter) UpdateVehicle(ctx context.Context, externalID string, v *inventory.Vehicle) (*PublishResult, error) {
	ad, err := a.TransformVehicle(ctx, v)
	if err != nil {
		return nil, err
	}
	ad["id"] = externalID
	ad["operation"] = "insert"

	body, err := a.importAds(ctx, v.ID, []map[string]interface{}{ad})
	if err != nil {
		return nil, err
	}
	return &PublishResult{ExternalID: externalID, Response: body}, nil
}

func (a *OLXAdapter) RemoveVehicle(ctx context.Context, externalID string) error {
	_, err := a.importAds(ctx, "", []map[string]interface{}{
		{"id": externalID, "operation": "delete"},
	})
	return err
}

func (a *OLXAdapter) UpdateVehicleStatus(ctx context.Context, externalID, status string) error {
	switch status {
	case "sold", "inactive", "paused":
		return a.RemoveVehicle(ctx, externalID)
	}
	return nil
}

func (a *OLXAdapter) FetchLeads(ctx context.Context, since time.Time) ([]Lead, error) {
	return nil, ErrLeadPullNotSupported
}

// GetPublishedVehicles lists active autoupload ads; the v1 endpoint pages
// with an opaque next_token.
func (a *OLXAdapter) GetPublishedVehicles(ctx context.Context, page Page) ([]PublishedListing, Page, error) {
	token, err := a.token(ctx)
	if err != nil {
		return nil, Page{}, err
	}

	url := a.cfg.APIURL + "/autoupload/v1/published"
	if page.Token != "" {
		url += "?page_token=" + page.Token
	}

	resp, err := a.client.do(ctx, request{
		Method:   "GET",
		URL:      url,
		Endpoint: "/autoupload/v1/published",
		Action:   "GET /autoupload/v1/published",
		Headers:  map[string]string{"Authorization": "Bearer " + token},
	})
	if err != nil {
		return nil, Page{}, err
	}
	if !resp.OK() {
		return nil, Page{}, fmt.Errorf("olx published listing failed: %s", parseAPIError(resp.Body, resp.StatusCode))
	}

	body, err := resp.JSON()
	if err != nil {
		return nil, Page{}, err
	}

	var listings []PublishedListing
	if ads, ok := body["data"].([]interface{}); ok {
		for _, raw := range ads {
			ad, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			id, _ := ad["id"].(string)
			status, _ := ad["status"].(string)
			listings = append(listings, PublishedListing{ExternalID: id, Status: status, Raw: ad})
		}
	}

	next := Page{}
	if token, ok := body["next_token"].(string); ok {
		next.Token = token
	}
	return listings, next, nil
}

// TransformVehicle maps a vehicle to the autoupload ad shape, including the
// numeric param codes OLX expects for type, gearbox, fuel and color.
func (a *OLXAdapter) TransformVehicle(ctx context.Context, v *inventory.Vehicle) (map[string]interface{}, error) {
	category := a.cfg.CategoryCars
	switch v.CategoryID {
	case 3:
		category = a.cfg.CategoryMoto
	case 2:
		category = a.cfg.CategoryTruck
	}

	title := strings.TrimSpace(fmt.Sprintf("%s %s %d", v.Brand(), v.Model(), v.ModelYear))
	description := v.Notes
	if description == "" {
		description = title
	}

	imageBase := a.images.BaseURL + a.images.PathPrefix
	images := make([]string, 0, len(v.Images))
	for _, name := range v.Images {
		if len(images) == 20 {
			break
		}
		images = append(images, imageBase+name)
	}

	return map[string]interface{}{
		"id":       "v" + v.ID,
		"category": category,
		"subject":  clip(title, 90),
		"body":     clip(description, 6000),
		"phone":    v.AdvertiserPhone,
		"type":     "s",
		"price":    int(v.Price),
		"zipcode":  v.AdvertiserZipCode,
		"images":   images,
		"params": map[string]interface{}{
			"cartype":  olxCarType(v.BodyStyle),
			"gearbox":  olxGearbox(v.Transmission),
			"fuel":     olxFuel(v.Fuel),
			"mileage":  v.Mileage,
			"regdate":  v.ModelYear,
			"doors":    fmt.Sprintf("%d", v.Doors),
			"carcolor": olxColor(v.Color),
		},
	}, nil
}

func olxCarType(body string) string {
	b := strings.ToLower(body)
	switch {
	case strings.Contains(b, "sed"):
		return "1"
	case strings.Contains(b, "hatch"):
		return "2"
	case strings.Contains(b, "perua"), strings.Contains(b, "sw"):
		return "3"
	case strings.Contains(b, "picape"):
		return "4"
	case strings.Contains(b, "suv"):
		return "6"
	case strings.Contains(b, "van"):
		return "7"
	}
	return "1"
}

func olxGearbox(transmission string) string {
	if strings.Contains(strings.ToLower(transmission), "autom") {
		return "2"
	}
	return "1"
}

func olxFuel(fuel string) string {
	f := strings.ToLower(fuel)
	switch {
	case strings.Contains(f, "gasolina") && !strings.Contains(f, "etanol"):
		return "1"
	case strings.Contains(f, "etanol") && !strings.Contains(f, "gasolina"):
		return "2"
	case strings.Contains(f, "flex"), strings.Contains(f, "etanol/gasolina"):
		return "3"
	case strings.Contains(f, "diesel"):
		return "4"
	case strings.Contains(f, "gnv"):
		return "5"
	case strings.Contains(f, "el"):
		return "6"
	}
	return "3"
}

func olxColor(color string) string {
	c := strings.ToLower(color)
	codes := []struct {
		name string
		code string
	}{
		{"preto", "1"}, {"branco", "2"}, {"prata", "3"}, {"cinza", "4"},
		{"vermelho", "5"}, {"azul", "6"}, {"amarelo", "7"}, {"verde", "8"},
		{"laranja", "9"}, {"bege", "10"}, {"marrom", "11"}, {"dourado", "12"},
	}
	for _, entry := range codes {
		if strings.Contains(c, entry.name) {
			return entry.code
		}
	}
	return "16"
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
