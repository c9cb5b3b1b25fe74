package portals

import (
	"context"
	"sync"
	"time"

	"go-portal-sync/internal/config"
	"go-portal-sync/internal/inventory"
)

// fakeStore is an in-memory CredentialStore for adapter tests.
type fakeStore struct {
	mu    sync.Mutex
	creds map[string]*Credential
}

func newFakeStore(creds ...*Credential) *fakeStore {
	s := &fakeStore{creds: make(map[string]*Credential)}
	for _, c := range creds {
		s.creds[c.Portal] = c
	}
	return s
}

func (s *fakeStore) Get(ctx context.Context, portal string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds[portal], nil
}

func (s *fakeStore) SaveTokens(ctx context.Context, portal, accessToken, refreshToken string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred := s.creds[portal]
	if cred == nil {
		cred = &Credential{Portal: portal}
		s.creds[portal] = cred
	}
	cred.AccessToken = accessToken
	if refreshToken != "" {
		cred.RefreshToken = refreshToken
	}
	cred.ExpiresAt = expiresAt
	return nil
}

func (s *fakeStore) SaveSessionHash(ctx context.Context, portal, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred := s.creds[portal]
	if cred == nil {
		cred = &Credential{Portal: portal}
		s.creds[portal] = cred
	}
	cred.SessionHash = hash
	return nil
}

// fakeRecorder captures every call record.
type fakeRecorder struct {
	mu      sync.Mutex
	records []CallRecord
}

func (r *fakeRecorder) Record(ctx context.Context, rec CallRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *fakeRecorder) all() []CallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallRecord, len(r.records))
	copy(out, r.records)
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Images: config.ImagesConfig{
			BaseURL:    "https://cdn.example.com",
			PathPrefix: "/veiculos/",
		},
		OLX: config.OLXConfig{
			Enabled:       true,
			APIURL:        "https://apps.olx.example",
			AuthURL:       "https://auth.olx.example",
			CategoryCars:  2020,
			CategoryMoto:  2060,
			CategoryTruck: 2080,
		},
		MercadoLivre: config.MercadoLivreConfig{
			Enabled:       true,
			APIURL:        "https://api.ml.example",
			AuthURL:       "https://auth.ml.example",
			SiteID:        "MLB",
			CategoryCars:  "MLB1744",
			CategoryMoto:  "MLB1051",
			CategoryTruck: "MLB1766",
		},
		ICarros: config.ICarrosConfig{
			Enabled: true,
			APIURL:  "https://core.icarros.example",
		},
		WebMotors: config.WebMotorsConfig{
			Enabled:      true,
			Environment:  "homologation",
			RESTURLHml:   "https://rest.wm.example",
			SOAPEndpoint: "https://soap.wm.example/service.asmx",
		},
	}
}

func testVehicle() *inventory.Vehicle {
	return &inventory.Vehicle{
		ID:                "4821",
		CategoryID:        1,
		FipeBrandName:     "Chevrolet",
		FipeModelName:     "Onix",
		FipeTrimName:      "1.0 LT",
		ModelYear:         2021,
		ManufactureYear:   2020,
		Price:             65900,
		Mileage:           42000,
		Doors:             4,
		Plate:             "ABC1D23",
		Renavam:           "12345678901",
		Notes:             "Único dono, revisões em dia",
		Color:             "Branco",
		Fuel:              "Flex",
		Transmission:      "Manual",
		BodyStyle:         "Hatch",
		AdvertiserPhone:   "51999990000",
		AdvertiserZipCode: "90000000",
		Images:            []string{"4821-1.jpg", "4821-2.jpg"},
	}
}
