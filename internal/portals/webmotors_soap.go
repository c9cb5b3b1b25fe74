package portals

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"sync"
	"time"

	"go-portal-sync/internal/config"
	"go-portal-sync/internal/inventory"

	"go.uber.org/zap"
)

// WebMotorsSOAPAdapter manages listings through the WebMotors dealer SOAP
// webservice. Authentication is stateful: AutenticarUsuario trades the dealer
// login for a session hash which every subsequent call carries as
// pHashAutenticacao. Leads are not available on this channel.
type WebMotorsSOAPAdapter struct {
	cfg    config.WebMotorsConfig
	images config.ImagesConfig
	store  CredentialStore
	client *client
	log    *zap.Logger

	mu      sync.Mutex
	makes   []RefItem
	models  map[int][]RefItem
	trims   map[int][]wmVersion
}

func NewWebMotorsSOAPAdapter(cfg *config.Config, store CredentialStore, recorder CallRecorder, log *zap.Logger) *WebMotorsSOAPAdapter {
	return &WebMotorsSOAPAdapter{
		cfg:    cfg.WebMotors,
		images: cfg.Images,
		store:  store,
		client: newClient(PortalWebMotors, recorder, log),
		log:    log,
		models: make(map[int][]RefItem),
		trims:  make(map[int][]wmVersion),
	}
}

func (a *WebMotorsSOAPAdapter) Name() string { return PortalWebMotors }

func (a *WebMotorsSOAPAdapter) Capabilities() Capabilities {
	return Capabilities{Push: true, LeadPull: false, StatusUpdate: true, Pagination: true}
}

type wmVersion struct {
	Code      int    `xml:"CodigoVersao"`
	Name      string `xml:"NomeVersao"`
	YearStart int    `xml:"AnoInicio"`
	YearEnd   int    `xml:"AnoFim"`
}

type wmAdResult struct {
	ErrorMessage string `xml:"MensagemErro"`
	AdCode       string `xml:"CodigoAnuncio"`
	AdURL        string `xml:"UrlAnuncio"`
}

// Authenticate mints a session hash from the stored dealer login when none
// is available yet. The hash is persisted so restarts reuse it.
func (a *WebMotorsSOAPAdapter) Authenticate(ctx context.Context) error {
	cred, err := a.store.Get(ctx, PortalWebMotors)
	if err != nil {
		return err
	}
	if cred == nil {
		return ErrNotAuthenticated
	}
	if cred.SessionHash != "" {
		return nil
	}
	if cred.Username == "" || cred.Password == "" || cred.CNPJ == "" {
		return fmt.Errorf("webmotors login incomplete: email, password and cnpj are required")
	}

	var out struct {
		Hash string `xml:"Body>AutenticarUsuarioResponse>AutenticarUsuarioResult"`
	}
	err = a.call(ctx, "AutenticarUsuario", "", []soapParam{
		{Name: "pEmail", Value: cred.Username},
		{Name: "pSenha", Value: cred.Password},
		{Name: "pCNPJ", Value: digitsOnly(cred.CNPJ)},
	}, &out)
	if err != nil {
		return err
	}
	if out.Hash == "" {
		return fmt.Errorf("webmotors authentication returned an empty session hash")
	}
	return a.store.SaveSessionHash(ctx, PortalWebMotors, out.Hash)
}

func (a *WebMotorsSOAPAdapter) sessionHash(ctx context.Context) (string, error) {
	cred, err := a.store.Get(ctx, PortalWebMotors)
	if err != nil {
		return "", err
	}
	if cred == nil || cred.SessionHash == "" {
		if err := a.Authenticate(ctx); err != nil {
			return "", err
		}
		if cred, err = a.store.Get(ctx, PortalWebMotors); err != nil {
			return "", err
		}
		if cred == nil || cred.SessionHash == "" {
			return "", ErrNotAuthenticated
		}
	}
	return cred.SessionHash, nil
}

// call executes one SOAP method. An empty vehicleID means the call is not
// tied to a specific vehicle.
func (a *WebMotorsSOAPAdapter) call(ctx context.Context, method, vehicleID string, params []soapParam, out interface{}) error {
	envelope := buildSOAPEnvelope(method, params)

	resp, err := a.client.do(ctx, request{
		Method:     "POST",
		URL:        a.cfg.SOAPEndpoint,
		Endpoint:   method,
		Action:     "SOAP:" + method,
		VehicleID:  vehicleID,
		Headers:    map[string]string{"Content-Type": "application/soap+xml; charset=utf-8"},
		RawBody:    envelope,
		LogPayload: soapLogPayload(params),
	})
	if err != nil {
		return err
	}
	if faultErr := soapFaultError(resp.Body); faultErr != nil {
		return fmt.Errorf("webmotors %s failed: %w", method, faultErr)
	}
	if !resp.OK() {
		return fmt.Errorf("webmotors %s failed with HTTP %d", method, resp.StatusCode)
	}
	if out != nil {
		if err := xml.Unmarshal(resp.Body, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", method, err)
		}
	}
	return nil
}

// authedCall appends the session hash before dispatching.
func (a *WebMotorsSOAPAdapter) authedCall(ctx context.Context, method, vehicleID string, params []soapParam, out interface{}) error {
	hash, err := a.sessionHash(ctx)
	if err != nil {
		return err
	}
	params = append(params, soapParam{Name: "pHashAutenticacao", Value: hash})
	return a.call(ctx, method, vehicleID, params, out)
}

func (a *WebMotorsSOAPAdapter) TestConnection(ctx context.Context) error {
	_, err := a.getMakes(ctx)
	return err
}

func (a *WebMotorsSOAPAdapter) getMakes(ctx context.Context) ([]RefItem, error) {
	a.mu.Lock()
	if a.makes != nil {
		defer a.mu.Unlock()
		return a.makes, nil
	}
	a.mu.Unlock()

	var out struct {
		Makes []struct {
			Code int    `xml:"CodigoMarca"`
			Name string `xml:"NomeMarca"`
		} `xml:"Body>ObterMarcaResponse>ObterMarcaResult>MarcaWM"`
	}
	if err := a.authedCall(ctx, "ObterMarca", "", nil, &out); err != nil {
		return nil, err
	}

	items := make([]RefItem, len(out.Makes))
	for i, m := range out.Makes {
		items[i] = RefItem{ID: m.Code, Name: m.Name}
	}
	a.mu.Lock()
	a.makes = items
	a.mu.Unlock()
	return items, nil
}

func (a *WebMotorsSOAPAdapter) getModels(ctx context.Context, makeCode int) ([]RefItem, error) {
	a.mu.Lock()
	if items, ok := a.models[makeCode]; ok {
		a.mu.Unlock()
		return items, nil
	}
	a.mu.Unlock()

	var out struct {
		Models []struct {
			Code int    `xml:"CodigoModelo"`
			Name string `xml:"NomeModelo"`
		} `xml:"Body>ObterModeloResponse>ObterModeloResult>ModeloWM"`
	}
	err := a.authedCall(ctx, "ObterModelo", "", []soapParam{
		{Name: "pCodigoMarca", Value: makeCode},
	}, &out)
	if err != nil {
		return nil, err
	}

	items := make([]RefItem, len(out.Models))
	for i, m := range out.Models {
		items[i] = RefItem{ID: m.Code, Name: m.Name}
	}
	a.mu.Lock()
	a.models[makeCode] = items
	a.mu.Unlock()
	return items, nil
}

func (a *WebMotorsSOAPAdapter) getVersions(ctx context.Context, modelCode int) ([]wmVersion, error) {
	a.mu.Lock()
	if versions, ok := a.trims[modelCode]; ok {
		a.mu.Unlock()
		return versions, nil
	}
	a.mu.Unlock()

	var out struct {
		Versions []wmVersion `xml:"Body>ObterVersaoResponse>ObterVersaoResult>Versao"`
	}
	err := a.authedCall(ctx, "ObterVersao", "", []soapParam{
		{Name: "pCodigoModelo", Value: modelCode},
		{Name: "pDataInicioAtualizacao", Value: "2000-01-01T00:00:00"},
		{Name: "pDataFimAtualizacao", Value: time.Now().Format("2006-01-02T15:04:05")},
	}, &out)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.trims[modelCode] = out.Versions
	a.mu.Unlock()
	return out.Versions, nil
}

func (a *WebMotorsSOAPAdapter) PublishVehicle(ctx context.Context, v *inventory.Vehicle) (*PublishResult, error) {
	ad, err := a.TransformVehicle(ctx, v)
	if err != nil {
		return nil, err
	}

	var out struct {
		Result wmAdResult `xml:"Body>IncluirCarroResponse>IncluirCarroResult"`
	}
	err = a.authedCall(ctx, "IncluirCarro", v.ID, []soapParam{
		{Name: "pAnuncio", Value: adParams(ad)},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Result.ErrorMessage != "" {
		return nil, fmt.Errorf("webmotors publish rejected: %s", out.Result.ErrorMessage)
	}

	a.uploadPhotos(ctx, out.Result.AdCode, v)

	return &PublishResult{ExternalID: out.Result.AdCode, URL: out.Result.AdURL}, nil
}

func (a *WebMotorsSOAPAdapter) uploadPhotos(ctx context.Context, adCode string, v *inventory.Vehicle) {
	base := a.images.BaseURL + a.images.PathPrefix
	for _, name := range v.Images {
		if _, err := a.AddPhotoByURL(ctx, adCode, base+name); err != nil {
			a.log.Warn("failed to upload listing photo",
				zap.String("portal", PortalWebMotors),
				zap.String("ad_code", adCode),
				zap.String("image", name),
				zap.Error(err))
		}
	}
}

// AddPhotoByURL attaches a hosted image to a listing and returns the photo
// code.
func (a *WebMotorsSOAPAdapter) AddPhotoByURL(ctx context.Context, adCode, imageURL string) (string, error) {
	var out struct {
		Result struct {
			ErrorMessage string `xml:"MensagemErro"`
			PhotoCode    string `xml:"CodigoFoto"`
		} `xml:"Body>IncluirFotoUrlResponse>IncluirFotoUrlResult"`
	}
	err := a.authedCall(ctx, "IncluirFotoUrl", "", []soapParam{
		{Name: "oUrlImagem", Value: imageURL},
		{Name: "pCodigoAnuncio", Value: adCode},
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Result.ErrorMessage != "" {
		return "", fmt.Errorf("webmotors photo upload rejected: %s", out.Result.ErrorMessage)
	}
	return out.Result.PhotoCode, nil
}

func (a *WebMotorsSOAPAdapter) RemovePhoto(ctx context.Context, adCode, photoCode string) error {
	return a.authedCall(ctx, "ExcluirFoto", "", []soapParam{
		{Name: "pCodigoFoto", Value: photoCode},
		{Name: "pCodigoAnuncio", Value: adCode},
	}, nil)
}

func (a *WebMotorsSOAPAdapter) GetListingPhotos(ctx context.Context, adCode string) ([]string, error) {
	var out struct {
		Photos []struct {
			PhotoCode string `xml:"CodigoFoto"`
		} `xml:"Body>ObterFotosCarroResponse>ObterFotosCarroResult>FotosWM"`
	}
	err := a.authedCall(ctx, "ObterFotosCarro", "", []soapParam{
		{Name: "pCodigoAnuncio", Value: adCode},
	}, &out)
	if err != nil {
		return nil, err
	}
	codes := make([]string, len(out.Photos))
	for i, p := range out.Photos {
		codes[i] = p.PhotoCode
	}
	return codes, nil
}

func (a *WebMotorsSOAPAdapter) UpdateVehicle(ctx context.Context, externalID string, v *inventory.Vehicle) (*PublishResult, error) {
	ad, err := a.TransformVehicle(ctx, v)
	if err != nil {
		return nil, err
	}
	ad["CodigoAnuncio"] = externalID

	var out struct {
		Result wmAdResult `xml:"Body>AlterarCarroResponse>AlterarCarroResult"`
	}
	err = a.authedCall(ctx, "AlterarCarro", v.ID, []soapParam{
		{Name: "pAnuncio", Value: adParams(ad)},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Result.ErrorMessage != "" {
		return nil, fmt.Errorf("webmotors update rejected: %s", out.Result.ErrorMessage)
	}
	return &PublishResult{ExternalID: externalID, URL: out.Result.AdURL}, nil
}

func (a *WebMotorsSOAPAdapter) RemoveVehicle(ctx context.Context, externalID string) error {
	var out struct {
		Result wmAdResult `xml:"Body>ExcluirCarroResponse>ExcluirCarroResult"`
	}
	// Removal reason 1 = sold, 2 = other.
	err := a.authedCall(ctx, "ExcluirCarro", "", []soapParam{
		{Name: "pCodigoAnuncio", Value: externalID},
		{Name: "pMotivoExclusao", Value: 1},
	}, &out)
	if err != nil {
		return err
	}
	if out.Result.ErrorMessage != "" {
		return fmt.Errorf("webmotors removal rejected: %s", out.Result.ErrorMessage)
	}
	return nil
}

func (a *WebMotorsSOAPAdapter) UpdateVehicleStatus(ctx context.Context, externalID, status string) error {
	switch status {
	case "sold", "inactive":
		return a.RemoveVehicle(ctx, externalID)
	}
	return fmt.Errorf("webmotors soap does not support status %q; only removal is available", status)
}

func (a *WebMotorsSOAPAdapter) FetchLeads(ctx context.Context, since time.Time) ([]Lead, error) {
	return nil, ErrLeadPullNotSupported
}

func (a *WebMotorsSOAPAdapter) GetPublishedVehicles(ctx context.Context, page Page) ([]PublishedListing, Page, error) {
	if page.Number == 0 {
		page.Number = 1
	}
	if page.Size == 0 {
		page.Size = 50
	}

	var out struct {
		Result struct {
			Total       int `xml:"TotalRegistros"`
			CurrentPage int `xml:"PaginaAtual"`
			TotalPages  int `xml:"TotalPaginas"`
			Ads         []struct {
				AdCode string `xml:"CodigoAnuncio"`
				Plate  string `xml:"Placa"`
			} `xml:"Anuncios>Anuncio"`
		} `xml:"Body>ObterEstoqueAtualPaginadoResponse>ObterEstoqueAtualPaginadoResult"`
	}
	err := a.authedCall(ctx, "ObterEstoqueAtualPaginado", "", []soapParam{
		{Name: "pPagina", Value: page.Number},
		{Name: "pTamanho", Value: page.Size},
	}, &out)
	if err != nil {
		return nil, Page{}, err
	}

	listings := make([]PublishedListing, 0, len(out.Result.Ads))
	for _, ad := range out.Result.Ads {
		listings = append(listings, PublishedListing{
			ExternalID: ad.AdCode,
			Status:     "active",
			Raw:        map[string]interface{}{"CodigoAnuncio": ad.AdCode, "Placa": ad.Plate},
		})
	}

	next := Page{Size: page.Size}
	if out.Result.CurrentPage < out.Result.TotalPages {
		next.Number = out.Result.CurrentPage + 1
	}
	return listings, next, nil
}

// TransformVehicle resolves the vehicle against the WebMotors catalogs. Make,
// model and version must be WebMotors codes; the catalogs jam names together
// so matching uses the compact normal form. Versions are filtered by the
// model year range, falling back to the first version covering the year.
func (a *WebMotorsSOAPAdapter) TransformVehicle(ctx context.Context, v *inventory.Vehicle) (map[string]interface{}, error) {
	makes, err := a.getMakes(ctx)
	if err != nil {
		return nil, err
	}
	makeCode, ok := matchCompact(makes, v.Brand())
	if !ok {
		return nil, fmt.Errorf("make %q not found in webmotors catalog", v.Brand())
	}

	models, err := a.getModels(ctx, makeCode)
	if err != nil {
		return nil, err
	}
	modelCode, ok := matchCompact(models, v.Model())
	if !ok {
		return nil, fmt.Errorf("model %q not found in webmotors catalog", v.Model())
	}

	versions, err := a.getVersions(ctx, modelCode)
	if err != nil {
		return nil, err
	}
	versionCode, ok := matchVersion(versions, v.Trim(), v.ModelYear)
	if !ok {
		return nil, fmt.Errorf("version %q (%d) not found in webmotors catalog", v.Trim(), v.ModelYear)
	}

	ad := map[string]interface{}{
		"CodigoMarca":      makeCode,
		"CodigoModelo":     modelCode,
		"CodigoVersao":     versionCode,
		"AnoFabricacao":    v.ManufactureYear,
		"AnoModelo":        v.ModelYear,
		"Quilometragem":    v.Mileage,
		"Placa":            alphanumericUpper(v.Plate),
		"Preco":            v.Price,
		"NumeroPortas":     v.Doors,
		"Observacao":       clip(v.Notes, 2000),
		"Blindado":         v.Armored,
		"ZeroKm":           v.ZeroKm,
		"CodigoModalidade": 1,
	}
	if code, ok := wmColor(v.Color); ok {
		ad["CodigoCor"] = code
	}
	if code, ok := wmFuel(v.Fuel); ok {
		ad["CodigoCombustivel"] = code
	}
	if code, ok := wmTransmission(v.Transmission); ok {
		ad["CodigoCambio"] = code
	}
	return ad, nil
}

// adFieldOrder is the element order the webservice expects inside pAnuncio.
var adFieldOrder = []string{
	"CodigoAnuncio", "CodigoMarca", "CodigoModelo", "CodigoVersao",
	"AnoFabricacao", "AnoModelo", "Quilometragem", "Placa", "Preco",
	"CodigoCor", "CodigoCombustivel", "CodigoCambio", "NumeroPortas",
	"Observacao", "Blindado", "ZeroKm", "CodigoModalidade", "Opcionais",
}

func adParams(ad map[string]interface{}) []soapParam {
	params := make([]soapParam, 0, len(ad))
	for _, field := range adFieldOrder {
		if value, ok := ad[field]; ok {
			params = append(params, soapParam{Name: field, Value: value})
		}
	}
	return params
}

func matchCompact(items []RefItem, name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	search := normalizeCompact(name)
	for _, item := range items {
		if normalizeCompact(item.Name) == search {
			return item.ID, true
		}
	}
	for _, item := range items {
		catalog := normalizeCompact(item.Name)
		if catalog == "" {
			continue
		}
		if strings.Contains(catalog, search) || strings.Contains(search, catalog) {
			return item.ID, true
		}
	}
	return 0, false
}

func matchVersion(versions []wmVersion, name string, year int) (int, bool) {
	search := normalizeCompact(name)
	if search != "" {
		for _, version := range versions {
			if year > 0 {
				end := version.YearEnd
				if end == 0 {
					end = 9999
				}
				if year < version.YearStart || year > end {
					continue
				}
			}
			catalog := normalizeCompact(version.Name)
			if catalog == search || strings.Contains(catalog, search) || strings.Contains(search, catalog) {
				return version.Code, true
			}
		}
	}
	if year > 0 {
		for _, version := range versions {
			end := version.YearEnd
			if end == 0 {
				end = 9999
			}
			if year >= version.YearStart && year <= end {
				return version.Code, true
			}
		}
	}
	return 0, false
}

func wmColor(color string) (int, bool) {
	c := strings.ToLower(color)
	codes := []struct {
		name string
		code int
	}{
		{"preto", 1}, {"branco", 2}, {"prata", 3}, {"cinza", 4},
		{"vermelho", 5}, {"azul", 6}, {"verde", 7}, {"amarelo", 8},
		{"laranja", 9}, {"marrom", 10}, {"bege", 11}, {"dourado", 12},
		{"vinho", 13}, {"rosa", 14},
	}
	for _, entry := range codes {
		if strings.Contains(c, entry.name) {
			return entry.code, true
		}
	}
	return 0, false
}

func wmFuel(fuel string) (int, bool) {
	f := strings.ToLower(fuel)
	switch {
	case strings.Contains(f, "flex"):
		return 1, true
	case strings.Contains(f, "gasolina") && !strings.Contains(f, "etanol"):
		return 2, true
	case strings.Contains(f, "etanol") && !strings.Contains(f, "gasolina"):
		return 3, true
	case strings.Contains(f, "diesel"):
		return 4, true
	case strings.Contains(f, "gnv"):
		return 5, true
	case strings.Contains(f, "el"):
		return 6, true
	case strings.Contains(f, "hibrido"), strings.Contains(f, "híbrido"):
		return 7, true
	}
	return 0, false
}

func wmTransmission(transmission string) (int, bool) {
	t := strings.ToLower(transmission)
	switch {
	case strings.Contains(t, "manual"):
		return 1, true
	case strings.Contains(t, "automatizado"):
		return 4, true
	case strings.Contains(t, "cvt"):
		return 3, true
	case strings.Contains(t, "autom"):
		return 2, true
	}
	return 0, false
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
