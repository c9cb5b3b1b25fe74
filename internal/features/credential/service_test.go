package credential

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go-portal-sync/internal/config"
	"go-portal-sync/internal/portals"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// memCredRepo is an in-memory CredentialRepository.
type memCredRepo struct {
	mu    sync.Mutex
	creds map[string]*PortalCredential
}

func newMemCredRepo() *memCredRepo {
	return &memCredRepo{creds: make(map[string]*PortalCredential)}
}

func (r *memCredRepo) GetByPortal(ctx context.Context, portal string) (*PortalCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.creds[portal]
	if !ok {
		return nil, nil
	}
	cp := *cred
	return &cp, nil
}

func (r *memCredRepo) List(ctx context.Context) ([]PortalCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PortalCredential, 0, len(r.creds))
	for _, cred := range r.creds {
		out = append(out, *cred)
	}
	return out, nil
}

func (r *memCredRepo) Upsert(ctx context.Context, cred *PortalCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cred
	r.creds[cred.Portal] = &cp
	return nil
}

func (r *memCredRepo) UpdateFields(ctx context.Context, portal string, updates bson.M) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.creds[portal]
	if !ok {
		cred = &PortalCredential{Portal: portal}
		r.creds[portal] = cred
	}
	for k, v := range updates {
		switch k {
		case "access_token":
			cred.AccessToken = v.(string)
		case "refresh_token":
			cred.RefreshToken = v.(string)
		case "session_hash":
			cred.SessionHash = v.(string)
		case "pkce_verifier":
			cred.PKCEVerifier = v.(string)
		case "expires_at":
			t := v.(time.Time)
			cred.ExpiresAt = &t
		}
	}
	cred.UpdatedAt = time.Now()
	return nil
}

func (r *memCredRepo) EnsureIndexes(ctx context.Context) error { return nil }

func TestShouldRefresh(t *testing.T) {
	soon := time.Now().Add(30 * time.Minute)
	later := time.Now().Add(3 * time.Hour)
	closeBy := time.Now().Add(30 * time.Second)

	cases := []struct {
		name string
		cred PortalCredential
		want bool
	}{
		{"olx inside one-hour margin", PortalCredential{Portal: portals.PortalOLX, AccessToken: "t", ExpiresAt: &soon}, true},
		{"olx outside margin", PortalCredential{Portal: portals.PortalOLX, AccessToken: "t", ExpiresAt: &later}, false},
		{"icarros tight margin not due", PortalCredential{Portal: portals.PortalICarros, AccessToken: "t", ExpiresAt: &soon}, false},
		{"icarros due", PortalCredential{Portal: portals.PortalICarros, AccessToken: "t", ExpiresAt: &closeBy}, true},
		{"no expiry treated as due", PortalCredential{Portal: portals.PortalMercadoLivre, AccessToken: "t"}, true},
		{"no token never due", PortalCredential{Portal: portals.PortalOLX}, false},
		{"session portal never due", PortalCredential{Portal: portals.PortalWebMotors, AccessToken: "t"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, shouldRefresh(&tc.cred))
		})
	}
}

func TestStoreKeepsRefreshTokenWhenOmitted(t *testing.T) {
	repo := newMemCredRepo()
	require.NoError(t, repo.Upsert(context.Background(), &PortalCredential{
		Portal:       portals.PortalOLX,
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
	}))

	store := NewStore(repo)
	expiry := time.Now().Add(6 * time.Hour)

	// Refresh responses without a rotated refresh token keep the old one
	require.NoError(t, store.SaveTokens(context.Background(), portals.PortalOLX, "new-access", "", expiry))

	cred, err := store.Get(context.Background(), portals.PortalOLX)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "new-access", cred.AccessToken)
	assert.Equal(t, "old-refresh", cred.RefreshToken)
	assert.WithinDuration(t, expiry, cred.ExpiresAt, time.Second)

	// A rotated refresh token replaces it
	require.NoError(t, store.SaveTokens(context.Background(), portals.PortalOLX, "new-access-2", "new-refresh", expiry))
	cred, err = store.Get(context.Background(), portals.PortalOLX)
	require.NoError(t, err)
	assert.Equal(t, "new-refresh", cred.RefreshToken)
}

func TestRefreshPortalSingleFlight(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"fresh","refresh_token":"r2","token_type":"bearer","expires_in":21600}`))
	}))
	defer srv.Close()

	repo := newMemCredRepo()
	require.NoError(t, repo.Upsert(context.Background(), &PortalCredential{
		Portal:       portals.PortalOLX,
		AccessToken:  "stale",
		RefreshToken: "r1",
	}))

	cfg := &config.Config{}
	cfg.OLX.ClientID = "client"
	cfg.OLX.ClientSecret = "secret"
	cfg.OLX.AuthURL = srv.URL

	svc := NewCredentialService(repo, cfg, zap.NewNop())

	var started, done sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		started.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			started.Done()
			errs <- svc.RefreshPortal(context.Background(), portals.PortalOLX)
		}()
	}
	started.Wait()
	// Let every caller reach the in-flight refresh before it completes
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	cred, err := repo.GetByPortal(context.Background(), portals.PortalOLX)
	require.NoError(t, err)
	assert.Equal(t, "fresh", cred.AccessToken)
	assert.Equal(t, "r2", cred.RefreshToken)
}

func TestStoreGetMissingPortal(t *testing.T) {
	store := NewStore(newMemCredRepo())
	cred, err := store.Get(context.Background(), portals.PortalICarros)
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestStoreSaveSessionHash(t *testing.T) {
	repo := newMemCredRepo()
	store := NewStore(repo)

	require.NoError(t, store.SaveSessionHash(context.Background(), portals.PortalWebMotors, "abc123"))

	cred, err := store.Get(context.Background(), portals.PortalWebMotors)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "abc123", cred.SessionHash)
}
