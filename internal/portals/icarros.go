package portals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go-portal-sync/internal/config"
	"go-portal-sync/internal/inventory"

	"go.uber.org/zap"
)

// ICarrosAdapter publishes deals through the iCarros dealer API. The API is
// catalog-driven: make, model, trim, color, fuel and transmission must be
// sent as iCarros catalog ids, so the transform resolves dealer-side names
// against the reference-data endpoints. Catalogs are cached per process.
type ICarrosAdapter struct {
	cfg    config.ICarrosConfig
	images config.ImagesConfig
	store  CredentialStore
	client *client
	log    *zap.Logger

	mu       sync.Mutex
	refCache map[string][]RefItem
}

func NewICarrosAdapter(cfg *config.Config, store CredentialStore, recorder CallRecorder, log *zap.Logger) *ICarrosAdapter {
	return &ICarrosAdapter{
		cfg:      cfg.ICarros,
		images:   cfg.Images,
		store:    store,
		client:   newClient(PortalICarros, recorder, log),
		log:      log,
		refCache: make(map[string][]RefItem),
	}
}

func (a *ICarrosAdapter) Name() string { return PortalICarros }

func (a *ICarrosAdapter) Capabilities() Capabilities {
	return Capabilities{Push: true, LeadPull: true, StatusUpdate: true, Pagination: false}
}

func (a *ICarrosAdapter) baseURL() string {
	return a.cfg.APIURL + "/pj/v1/core"
}

func (a *ICarrosAdapter) credential(ctx context.Context) (*Credential, error) {
	cred, err := a.store.Get(ctx, PortalICarros)
	if err != nil {
		return nil, err
	}
	if cred == nil || cred.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}
	return cred, nil
}

func (a *ICarrosAdapter) Authenticate(ctx context.Context) error {
	_, err := a.credential(ctx)
	return err
}

func (a *ICarrosAdapter) TestConnection(ctx context.Context) error {
	_, err := a.GetDealers(ctx)
	return err
}

// get performs an authenticated GET against the core API and decodes the
// response into out.
func (a *ICarrosAdapter) get(ctx context.Context, endpoint, action string, out interface{}) error {
	cred, err := a.credential(ctx)
	if err != nil {
		return err
	}
	resp, err := a.client.do(ctx, request{
		Method:   "GET",
		URL:      a.baseURL() + endpoint,
		Endpoint: endpoint,
		Action:   action,
		Headers:  map[string]string{"Authorization": "Bearer " + cred.AccessToken},
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("icarros request failed: %s", parseAPIError(resp.Body, resp.StatusCode))
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return fmt.Errorf("failed to decode icarros response: %w", err)
		}
	}
	return nil
}

// refData fetches a reference catalog, serving repeated lookups from cache.
func (a *ICarrosAdapter) refData(ctx context.Context, endpoint string) ([]RefItem, error) {
	a.mu.Lock()
	if items, ok := a.refCache[endpoint]; ok {
		a.mu.Unlock()
		return items, nil
	}
	a.mu.Unlock()

	var raw []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := a.get(ctx, endpoint, "GET "+endpoint, &raw); err != nil {
		return nil, err
	}

	items := make([]RefItem, len(raw))
	for i, r := range raw {
		items[i] = RefItem{ID: r.ID, Name: r.Name}
	}

	a.mu.Lock()
	a.refCache[endpoint] = items
	a.mu.Unlock()
	return items, nil
}

func (a *ICarrosAdapter) GetDealers(ctx context.Context) ([]map[string]interface{}, error) {
	var dealers []map[string]interface{}
	if err := a.get(ctx, "/dealers", "GET /dealers", &dealers); err != nil {
		return nil, err
	}
	return dealers, nil
}

func (a *ICarrosAdapter) GetDealer(ctx context.Context, dealerID int) (map[string]interface{}, error) {
	var dealer map[string]interface{}
	endpoint := fmt.Sprintf("/dealers/%d", dealerID)
	if err := a.get(ctx, endpoint, "GET /dealers/{id}", &dealer); err != nil {
		return nil, err
	}
	return dealer, nil
}

// GetDealerPlans lists the publication plans available to the dealer for a
// segment.
func (a *ICarrosAdapter) GetDealerPlans(ctx context.Context, dealerID int, zeroKm bool) ([]map[string]interface{}, error) {
	var plans []map[string]interface{}
	endpoint := fmt.Sprintf("/dealers/%d/plans?segmento=Carro&zeroKm=%t", dealerID, zeroKm)
	if err := a.get(ctx, endpoint, "GET /dealers/{id}/plans", &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

func (a *ICarrosAdapter) dealerID(ctx context.Context) (int, error) {
	cred, err := a.credential(ctx)
	if err != nil {
		return 0, err
	}
	if cred.DealerID == 0 {
		return 0, fmt.Errorf("icarros dealer id not configured")
	}
	return cred.DealerID, nil
}

func (a *ICarrosAdapter) PublishVehicle(ctx context.Context, v *inventory.Vehicle) (*PublishResult, error) {
	cred, err := a.credential(ctx)
	if err != nil {
		return nil, err
	}
	dealerID, err := a.dealerID(ctx)
	if err != nil {
		return nil, err
	}

	deal, err := a.TransformVehicle(ctx, v)
	if err != nil {
		return nil, err
	}
	deal["dealerId"] = dealerID

	resp, err := a.client.do(ctx, request{
		Method:    "POST",
		URL:       a.baseURL() + "/deals",
		Endpoint:  "/deals",
		Action:    "POST /deals",
		VehicleID: v.ID,
		Headers:   map[string]string{"Authorization": "Bearer " + cred.AccessToken},
		JSONBody:  deal,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("icarros publish failed: %s", parseAPIError(resp.Body, resp.StatusCode))
	}

	body, err := resp.JSON()
	if err != nil {
		return nil, err
	}
	dealID := fmt.Sprintf("%.0f", toFloat(body["id"]))

	a.uploadImages(ctx, cred.AccessToken, dealID, v)

	return &PublishResult{
		ExternalID: dealID,
		URL:        "https://www.icarros.com.br/anuncio/" + dealID,
		Response:   body,
	}, nil
}

// uploadImages pushes each photo URL individually; a failed photo is logged
// and skipped, it does not fail the publication.
func (a *ICarrosAdapter) uploadImages(ctx context.Context, token, dealID string, v *inventory.Vehicle) {
	base := a.images.BaseURL + a.images.PathPrefix
	endpoint := fmt.Sprintf("/deals/%s/images", dealID)
	for _, name := range v.Images {
		resp, err := a.client.do(ctx, request{
			Method:    "POST",
			URL:       a.baseURL() + endpoint,
			Endpoint:  endpoint,
			Action:    "POST /deals/{id}/images",
			VehicleID: v.ID,
			Headers:   map[string]string{"Authorization": "Bearer " + token},
			JSONBody:  map[string]interface{}{"photo": base + name},
		})
		if err != nil || !resp.OK() {
			a.log.Warn("failed to upload deal image",
				zap.String("portal", PortalICarros),
				zap.String("deal_id", dealID),
				zap.String("image", name))
		}
	}
}

func (a *ICarrosAdapter) UpdateVehicle(ctx context.Context, externalID string, v *inventory.Vehicle) (*PublishResult, error) {
	cred, err := a.credential(ctx)
	if err != nil {
		return nil, err
	}
	dealerID, err := a.dealerID(ctx)
	if err != nil {
		return nil, err
	}

	deal, err := a.TransformVehicle(ctx, v)
	if err != nil {
		return nil, err
	}
	deal["dealerId"] = dealerID

	endpoint := "/deals/" + externalID
	resp, err := a.client.do(ctx, request{
		Method:    "PUT",
		URL:       a.baseURL() + endpoint,
		Endpoint:  endpoint,
		Action:    "PUT /deals/{id}",
		VehicleID: v.ID,
		Headers:   map[string]string{"Authorization": "Bearer " + cred.AccessToken},
		JSONBody:  deal,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("icarros update failed: %s", parseAPIError(resp.Body, resp.StatusCode))
	}

	body, _ := resp.JSON()
	return &PublishResult{
		ExternalID: externalID,
		URL:        "https://www.icarros.com.br/anuncio/" + externalID,
		Response:   body,
	}, nil
}

func (a *ICarrosAdapter) RemoveVehicle(ctx context.Context, externalID string) error {
	cred, err := a.credential(ctx)
	if err != nil {
		return err
	}
	endpoint := "/deals/" + externalID
	resp, err := a.client.do(ctx, request{
		Method:   "DELETE",
		URL:      a.baseURL() + endpoint,
		Endpoint: endpoint,
		Action:   "DELETE /deals/{id}",
		Headers:  map[string]string{"Authorization": "Bearer " + cred.AccessToken},
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("icarros removal failed: %s", parseAPIError(resp.Body, resp.StatusCode))
	}
	return nil
}

func (a *ICarrosAdapter) UpdateVehicleStatus(ctx context.Context, externalID, status string) error {
	switch status {
	case "sold", "paused", "inactive":
		return a.RemoveVehicle(ctx, externalID)
	}
	return nil
}

// UpdatePrice changes only the deal price, without resending the full deal.
func (a *ICarrosAdapter) UpdatePrice(ctx context.Context, externalID string, price float64) error {
	cred, err := a.credential(ctx)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("/deals/%s/price", externalID)
	resp, err := a.client.do(ctx, request{
		Method:   "PUT",
		URL:      a.baseURL() + endpoint,
		Endpoint: endpoint,
		Action:   "PUT /deals/{id}/price",
		Headers:  map[string]string{"Authorization": "Bearer " + cred.AccessToken},
		JSONBody: map[string]interface{}{"id": externalID, "price": price},
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("icarros price update failed: %s", parseAPIError(resp.Body, resp.StatusCode))
	}
	return nil
}

// UpdateSpotlight toggles the deal's paid spotlight placement.
func (a *ICarrosAdapter) UpdateSpotlight(ctx context.Context, externalID string, spotlight bool) error {
	cred, err := a.credential(ctx)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("/deals/%s/spotlight", externalID)
	resp, err := a.client.do(ctx, request{
		Method:   "PUT",
		URL:      a.baseURL() + endpoint,
		Endpoint: endpoint,
		Action:   "PUT /deals/{id}/spotlight",
		Headers:  map[string]string{"Authorization": "Bearer " + cred.AccessToken},
		JSONBody: map[string]interface{}{"id": externalID, "spotlight": spotlight},
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("icarros spotlight update failed: %s", parseAPIError(resp.Body, resp.StatusCode))
	}
	return nil
}

func (a *ICarrosAdapter) FetchLeads(ctx context.Context, since time.Time) ([]Lead, error) {
	dealerID, err := a.dealerID(ctx)
	if err != nil {
		return nil, err
	}

	end := time.Now()
	start := since
	if start.IsZero() {
		start = end.AddDate(0, 0, -30)
	}

	endpoint := fmt.Sprintf("/dealers/%d/leads?startDate=%s&endDate=%s",
		dealerID, start.Format("2006-01-02"), end.Format("2006-01-02"))

	var raw []map[string]interface{}
	if err := a.get(ctx, endpoint, "GET /dealers/{id}/leads", &raw); err != nil {
		return nil, err
	}

	leads := make([]Lead, 0, len(raw))
	for _, entry := range raw {
		lead := Lead{
			ExternalID:   fmt.Sprintf("%.0f", toFloat(entry["id"])),
			ExternalAdID: fmt.Sprintf("%.0f", toFloat(entry["dealId"])),
			Name:         stringValue(entry["name"]),
			Email:        stringValue(entry["email"]),
			Phone:        stringValue(entry["phone"]),
			Message:      stringValue(entry["message"]),
			Extra:        entry,
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

func (a *ICarrosAdapter) GetPublishedVehicles(ctx context.Context, page Page) ([]PublishedListing, Page, error) {
	dealerID, err := a.dealerID(ctx)
	if err != nil {
		return nil, Page{}, err
	}

	endpoint := fmt.Sprintf("/dealers/%d/inventory", dealerID)
	var raw []map[string]interface{}
	if err := a.get(ctx, endpoint, "GET /dealers/{id}/inventory", &raw); err != nil {
		return nil, Page{}, err
	}

	listings := make([]PublishedListing, 0, len(raw))
	for _, entry := range raw {
		listings = append(listings, PublishedListing{
			ExternalID: fmt.Sprintf("%.0f", toFloat(entry["id"])),
			Status:     stringValue(entry["status"]),
			Raw:        entry,
		})
	}
	return listings, Page{}, nil
}

// TransformVehicle resolves the vehicle against the iCarros catalogs and
// builds the deal payload. Unmatched optional catalogs (color, fuel,
// transmission, equipments) are omitted rather than guessed; an unmatched
// make or model is an error because the API requires them.
func (a *ICarrosAdapter) TransformVehicle(ctx context.Context, v *inventory.Vehicle) (map[string]interface{}, error) {
	makes, err := a.refData(ctx, "/database/makes")
	if err != nil {
		return nil, err
	}
	makeID, ok := matchRefItem(makes, v.Brand(), nil)
	if !ok {
		return nil, fmt.Errorf("make %q not found in icarros catalog", v.Brand())
	}

	models, err := a.refData(ctx, fmt.Sprintf("/database/models?makeId=%d", makeID))
	if err != nil {
		return nil, err
	}
	modelID, ok := matchRefItem(models, v.Model(), nil)
	if !ok {
		return nil, fmt.Errorf("model %q not found in icarros catalog", v.Model())
	}

	deal := map[string]interface{}{
		"text":                        v.Notes,
		"productionYear":              v.ManufactureYear,
		"modelYear":                   v.ModelYear,
		"makeId":                      makeID,
		"makeName":                    v.Brand(),
		"modelId":                     modelID,
		"modelName":                   v.Model(),
		"plate":                       alphanumericUpper(v.Plate),
		"km":                          v.Mileage,
		"doors":                       v.Doors,
		"price":                       v.Price,
		"priority":                    3,
		"spotlight":                   v.Spotlight,
		"usePhotosFromIcarrosGallery": false,
	}

	trims, err := a.refData(ctx, fmt.Sprintf("/database/trims?makeId=%d&modelId=%d&modelYear=%d", makeID, modelID, v.ModelYear))
	if err == nil {
		if trimID, ok := matchRefItem(trims, v.Trim(), nil); ok {
			deal["trimId"] = trimID
			deal["trimName"] = v.Trim()
		}
	}

	if colors, err := a.refData(ctx, "/database/colors"); err == nil {
		if id, ok := matchRefItem(colors, v.Color, colorSynonyms); ok {
			deal["colorId"] = id
			deal["colorName"] = v.Color
		}
	}
	if fuels, err := a.refData(ctx, "/database/fuels"); err == nil {
		if id, ok := matchRefItem(fuels, v.Fuel, fuelSynonyms); ok {
			deal["fuelId"] = id
			deal["fuelName"] = v.Fuel
		}
	}
	if transmissions, err := a.refData(ctx, "/database/transmissions"); err == nil {
		if id, ok := matchRefItem(transmissions, v.Transmission, transmissionSynonyms); ok {
			deal["transmissionId"] = id
		}
	}
	if equipments, err := a.refData(ctx, "/database/equipments"); err == nil {
		ids := make([]int, 0, len(v.Accessories))
		for _, accessory := range v.Accessories {
			if id, ok := matchRefItemExact(equipments, accessory, nil); ok {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			deal["equipments"] = ids
		}
	}

	if videoID := youtubeID(v.VideoURL); videoID != "" {
		deal["video"] = videoID
	}

	return deal, nil
}

// youtubeID extracts the video id from watch, share and embed URL shapes.
func youtubeID(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if !strings.Contains(u.Host, "youtu") {
		return ""
	}
	if id := u.Query().Get("v"); id != "" {
		return id
	}
	path := strings.Trim(u.Path, "/")
	if strings.HasPrefix(path, "embed/") {
		return strings.TrimPrefix(path, "embed/")
	}
	if u.Host == "youtu.be" && path != "" {
		return path
	}
	return ""
}
