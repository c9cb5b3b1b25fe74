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

// MercadoLivreAdapter publishes classified vehicle listings on Mercado Livre.
// Listings are items with the "classified" buying mode; buyer contacts arrive
// as unanswered questions, fetched by polling.
type MercadoLivreAdapter struct {
	cfg    config.MercadoLivreConfig
	images config.ImagesConfig
	store  CredentialStore
	client *client
	log    *zap.Logger
}

func NewMercadoLivreAdapter(cfg *config.Config, store CredentialStore, recorder CallRecorder, log *zap.Logger) *MercadoLivreAdapter {
	return &MercadoLivreAdapter{
		cfg:    cfg.MercadoLivre,
		images: cfg.Images,
		store:  store,
		client: newClient(PortalMercadoLivre, recorder, log),
		log:    log,
	}
}

func (a *MercadoLivreAdapter) Name() string { return PortalMercadoLivre }

func (a *MercadoLivreAdapter) Capabilities() Capabilities {
	return Capabilities{Push: true, LeadPull: true, StatusUpdate: true, Pagination: true}
}

func (a *MercadoLivreAdapter) credential(ctx context.Context) (*Credential, error) {
	cred, err := a.store.Get(ctx, PortalMercadoLivre)
	if err != nil {
		return nil, err
	}
	if cred == nil || cred.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}
	return cred, nil
}

func (a *MercadoLivreAdapter) Authenticate(ctx context.Context) error {
	_, err := a.credential(ctx)
	return err
}

func (a *MercadoLivreAdapter) TestConnection(ctx context.Context) error {
	cred, err := a.credential(ctx)
	if err != nil {
		return err
	}
	resp, err := a.client.do(ctx, request{
		Method:   "GET",
		URL:      a.cfg.APIURL + "/users/me",
		Endpoint: "/users/me",
		Action:   "GET /users/me",
		Headers:  map[string]string{"Authorization": "Bearer " + cred.AccessToken},
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("mercadolivre connection test failed: %s", parseAPIError(resp.Body, resp.StatusCode))
	}
	return nil
}

func (a *MercadoLivreAdapter) PublishVehicle(ctx context.Context, v *inventory.Vehicle) (*PublishResult, error) {
	cred, err := a.credential(ctx)
	if err != nil {
		return nil, err
	}
	item, err := a.TransformVehicle(ctx, v)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.do(ctx, request{
		Method:    "POST",
		URL:       a.cfg.APIURL + "/items",
		Endpoint:  "/items",
		Action:    "POST /items",
		VehicleID: v.ID,
		Headers:   map[string]string{"Authorization": "Bearer " + cred.AccessToken},
		JSONBody:  item,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("mercadolivre publish failed: %s", parseAPIError(resp.Body, resp.StatusCode))
	}

	body, err := resp.JSON()
	if err != nil {
		return nil, err
	}
	itemID, _ := body["id"].(string)
	permalink, _ := body["permalink"].(string)

	if v.Notes != "" {
		if err := a.setDescription(ctx, cred.AccessToken, itemID, v.Notes); err != nil {
			a.log.Warn("failed to set item description",
				zap.String("portal", PortalMercadoLivre),
				zap.String("item_id", itemID),
				zap.Error(err))
		}
	}

	return &PublishResult{ExternalID: itemID, URL: permalink, Response: body}, nil
}

// setDescription tries the update endpoint first and falls back to creation
// for items that have no description yet.
func (a *MercadoLivreAdapter) setDescription(ctx context.Context, token, itemID, text string) error {
	endpoint := fmt.Sprintf("/items/%s/description", itemID)
	for _, method := range []string{"PUT", "POST"} {
		resp, err := a.client.do(ctx, request{
			Method:   method,
			URL:      a.cfg.APIURL + endpoint,
			Endpoint: endpoint,
			Action:   method + " /items/{id}/description",
			Headers:  map[string]string{"Authorization": "Bearer " + token},
			JSONBody: map[string]interface{}{"plain_text": text},
		})
		if err != nil {
			return err
		}
		if resp.OK() {
			return nil
		}
		if method == "POST" {
			return fmt.Errorf("description update failed: %s", parseAPIError(resp.Body, resp.StatusCode))
		}
	}
	return nil
}

// UpdateVehicle only sends the fields Mercado Livre allows changing on an
// active classified: price and pictures.
func (a *MercadoLivreAdapter) UpdateVehicle(ctx context.Context, externalID string, v *inventory.Vehicle) (*PublishResult, error) {
	cred, err := a.credential(ctx)
	if err != nil {
		return nil, err
	}

	update := map[string]interface{}{
		"price":    v.Price,
		"pictures": a.pictures(v),
	}

	endpoint := "/items/" + externalID
	resp, err := a.client.do(ctx, request{
		Method:    "PUT",
		URL:       a.cfg.APIURL + endpoint,
		Endpoint:  endpoint,
		Action:    "PUT /items/{id}",
		VehicleID: v.ID,
		Headers:   map[string]string{"Authorization": "Bearer " + cred.AccessToken},
		JSONBody:  update,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("mercadolivre update failed: %s", parseAPIError(resp.Body, resp.StatusCode))
	}

	body, err := resp.JSON()
	if err != nil {
		return nil, err
	}
	permalink, _ := body["permalink"].(string)
	return &PublishResult{ExternalID: externalID, URL: permalink, Response: body}, nil
}

func (a *MercadoLivreAdapter) setStatus(ctx context.Context, externalID, status string) error {
	cred, err := a.credential(ctx)
	if err != nil {
		return err
	}
	endpoint := "/items/" + externalID
	resp, err := a.client.do(ctx, request{
		Method:   "PUT",
		URL:      a.cfg.APIURL + endpoint,
		Endpoint: endpoint,
		Action:   "PUT /items/{id}",
		Headers:  map[string]string{"Authorization": "Bearer " + cred.AccessToken},
		JSONBody: map[string]interface{}{"status": status},
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("mercadolivre status change failed: %s", parseAPIError(resp.Body, resp.StatusCode))
	}
	return nil
}

func (a *MercadoLivreAdapter) RemoveVehicle(ctx context.Context, externalID string) error {
	return a.setStatus(ctx, externalID, "closed")
}

func (a *MercadoLivreAdapter) UpdateVehicleStatus(ctx context.Context, externalID, status string) error {
	switch status {
	case "active":
		return a.setStatus(ctx, externalID, "active")
	case "paused":
		return a.setStatus(ctx, externalID, "paused")
	case "sold", "inactive":
		return a.setStatus(ctx, externalID, "closed")
	}
	return fmt.Errorf("unsupported status %q", status)
}

// FetchLeads pulls unanswered questions on the seller's items; each question
// is one buyer contact.
func (a *MercadoLivreAdapter) FetchLeads(ctx context.Context, since time.Time) ([]Lead, error) {
	cred, err := a.credential(ctx)
	if err != nil {
		return nil, err
	}
	if cred.UserID == "" {
		return nil, fmt.Errorf("mercadolivre seller id not stored; re-run authorization")
	}

	endpoint := "/questions/search"
	resp, err := a.client.do(ctx, request{
		Method:   "GET",
		URL:      fmt.Sprintf("%s%s?seller_id=%s&status=unanswered", a.cfg.APIURL, endpoint, cred.UserID),
		Endpoint: endpoint,
		Action:   "GET /questions/search",
		Headers:  map[string]string{"Authorization": "Bearer " + cred.AccessToken},
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("mercadolivre question fetch failed: %s", parseAPIError(resp.Body, resp.StatusCode))
	}

	body, err := resp.JSON()
	if err != nil {
		return nil, err
	}

	var leads []Lead
	questions, _ := body["questions"].([]interface{})
	for _, raw := range questions {
		q, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		lead := Lead{
			ExternalID:   fmt.Sprintf("%.0f", toFloat(q["id"])),
			ExternalAdID: stringValue(q["item_id"]),
			Message:      stringValue(q["text"]),
			Extra:        q,
		}
		if from, ok := q["from"].(map[string]interface{}); ok {
			lead.Name = fmt.Sprintf("%.0f", toFloat(from["id"]))
		}
		if created := stringValue(q["date_created"]); created != "" {
			if t, err := time.Parse(time.RFC3339, created); err == nil {
				lead.ReceivedAt = t
			}
		}
		if !since.IsZero() && !lead.ReceivedAt.IsZero() && lead.ReceivedAt.Before(since) {
			continue
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// AnswerQuestion replies to a buyer question on a listed item.
func (a *MercadoLivreAdapter) AnswerQuestion(ctx context.Context, questionID, text string) error {
	cred, err := a.credential(ctx)
	if err != nil {
		return err
	}
	resp, err := a.client.do(ctx, request{
		Method:   "POST",
		URL:      a.cfg.APIURL + "/answers",
		Endpoint: "/answers",
		Action:   "POST /answers",
		Headers:  map[string]string{"Authorization": "Bearer " + cred.AccessToken},
		JSONBody: map[string]interface{}{"question_id": questionID, "text": text},
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("mercadolivre answer failed: %s", parseAPIError(resp.Body, resp.StatusCode))
	}
	return nil
}

// GetPublishedVehicles lists the seller's active items. The search endpoint
// returns ids only, so details come from the multiget endpoint in chunks of
// twenty.
func (a *MercadoLivreAdapter) GetPublishedVehicles(ctx context.Context, page Page) ([]PublishedListing, Page, error) {
	cred, err := a.credential(ctx)
	if err != nil {
		return nil, Page{}, err
	}
	if cred.UserID == "" {
		return nil, Page{}, fmt.Errorf("mercadolivre seller id not stored; re-run authorization")
	}

	if page.Size == 0 {
		page.Size = 50
	}
	endpoint := fmt.Sprintf("/users/%s/items/search", cred.UserID)
	resp, err := a.client.do(ctx, request{
		Method:   "GET",
		URL:      fmt.Sprintf("%s%s?status=active&offset=%d&limit=%d", a.cfg.APIURL, endpoint, page.Number*page.Size, page.Size),
		Endpoint: "/users/{id}/items/search",
		Action:   "GET /users/{id}/items/search",
		Headers:  map[string]string{"Authorization": "Bearer " + cred.AccessToken},
	})
	if err != nil {
		return nil, Page{}, err
	}
	if !resp.OK() {
		return nil, Page{}, fmt.Errorf("mercadolivre item search failed: %s", parseAPIError(resp.Body, resp.StatusCode))
	}

	body, err := resp.JSON()
	if err != nil {
		return nil, Page{}, err
	}

	rawIDs, _ := body["results"].([]interface{})
	ids := make([]string, 0, len(rawIDs))
	for _, raw := range rawIDs {
		if id, ok := raw.(string); ok {
			ids = append(ids, id)
		}
	}

	var listings []PublishedListing
	for start := 0; start < len(ids); start += 20 {
		end := start + 20
		if end > len(ids) {
			end = len(ids)
		}
		chunk, err := a.multigetItems(ctx, cred.AccessToken, ids[start:end])
		if err != nil {
			return nil, Page{}, err
		}
		listings = append(listings, chunk...)
	}

	next := Page{Size: page.Size}
	if len(ids) == page.Size {
		next.Number = page.Number + 1
	}
	return listings, next, nil
}

func (a *MercadoLivreAdapter) multigetItems(ctx context.Context, token string, ids []string) ([]PublishedListing, error) {
	resp, err := a.client.do(ctx, request{
		Method:   "GET",
		URL:      a.cfg.APIURL + "/items?ids=" + strings.Join(ids, ","),
		Endpoint: "/items",
		Action:   "GET /items?ids",
		Headers:  map[string]string{"Authorization": "Bearer " + token},
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("mercadolivre multiget failed: %s", parseAPIError(resp.Body, resp.StatusCode))
	}

	// Multiget wraps each item in {code, body}; only 200 entries carry an item.
	var arr []map[string]interface{}
	if err := json.Unmarshal(resp.Body, &arr); err != nil {
		return nil, fmt.Errorf("failed to decode multiget response: %w", err)
	}

	var listings []PublishedListing
	for _, entry := range arr {
		if toFloat(entry["code"]) != 200 {
			continue
		}
		item, ok := entry["body"].(map[string]interface{})
		if !ok {
			continue
		}
		listings = append(listings, PublishedListing{
			ExternalID: stringValue(item["id"]),
			Status:     stringValue(item["status"]),
			Raw:        item,
		})
	}
	return listings, nil
}

func (a *MercadoLivreAdapter) pictures(v *inventory.Vehicle) []map[string]interface{} {
	base := a.images.BaseURL + a.images.PathPrefix
	pictures := make([]map[string]interface{}, 0, len(v.Images))
	for _, name := range v.Images {
		if len(pictures) == 12 {
			break
		}
		pictures = append(pictures, map[string]interface{}{"source": base + name})
	}
	return pictures
}

// TransformVehicle maps a vehicle to the Mercado Livre item shape.
func (a *MercadoLivreAdapter) TransformVehicle(ctx context.Context, v *inventory.Vehicle) (map[string]interface{}, error) {
	category := a.cfg.CategoryCars
	switch v.CategoryID {
	case 3:
		category = a.cfg.CategoryMoto
	case 2:
		category = a.cfg.CategoryTruck
	}

	title := strings.TrimSpace(fmt.Sprintf("%s %s %s %d", v.Brand(), v.Model(), v.Trim(), v.ModelYear))
	title = strings.Join(strings.Fields(title), " ")

	condition := "used"
	if v.ZeroKm {
		condition = "new"
	}

	return map[string]interface{}{
		"title":              clip(title, 60),
		"category_id":        category,
		"price":              v.Price,
		"currency_id":        "BRL",
		"available_quantity": 1,
		"buying_mode":        "classified",
		"listing_type_id":    "free",
		"condition":          condition,
		"pictures":           a.pictures(v),
		"attributes":         a.attributes(v, condition),
		"channels":           []string{"marketplace"},
	}, nil
}

func (a *MercadoLivreAdapter) attributes(v *inventory.Vehicle, condition string) []map[string]interface{} {
	attrs := make([]map[string]interface{}, 0, 10)
	add := func(id, value string) {
		if value != "" {
			attrs = append(attrs, map[string]interface{}{"id": id, "value_name": value})
		}
	}

	add("LICENSE_PLATE", alphanumericUpper(v.Plate))
	if len(v.Renavam) >= 6 {
		add("VIN_LAST_DIGITS", v.Renavam[len(v.Renavam)-6:])
	}
	add("VEHICLE_YEAR", fmt.Sprintf("%d", v.ModelYear))
	add("KILOMETERS", fmt.Sprintf("%d km", v.Mileage))
	add("FUEL_TYPE", mlFuel(v.Fuel))
	add("TRANSMISSION", mlTransmission(v.Transmission))
	add("COLOR", v.Color)
	if v.Doors > 0 {
		add("DOORS", fmt.Sprintf("%d", v.Doors))
	}
	if condition == "new" {
		add("ITEM_CONDITION", "Novo")
	} else {
		add("ITEM_CONDITION", "Usado")
	}
	return attrs
}

func mlFuel(fuel string) string {
	f := strings.ToLower(fuel)
	switch {
	case strings.Contains(f, "flex"):
		return "Flex"
	case strings.Contains(f, "gasolina"):
		return "Gasolina"
	case strings.Contains(f, "etanol"), strings.Contains(f, "alcool"), strings.Contains(f, "álcool"):
		return "Álcool"
	case strings.Contains(f, "diesel"):
		return "Diesel"
	case strings.Contains(f, "gnv"):
		return "GNV"
	case strings.Contains(f, "el"):
		return "Elétrico"
	case strings.Contains(f, "h"):
		return "Híbrido"
	}
	return "Flex"
}

func mlTransmission(transmission string) string {
	t := strings.ToLower(transmission)
	switch {
	case strings.Contains(t, "automatizad"):
		return "Automatizada"
	case strings.Contains(t, "autom"):
		return "Automática"
	case strings.Contains(t, "manual"), strings.Contains(t, "mec"):
		return "Manual"
	}
	return "Manual"
}

func alphanumericUpper(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

func toFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}
