package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"go-portal-sync/internal/config"
	"go-portal-sync/internal/inventory"
	"go-portal-sync/internal/portals"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// memRepo is an in-memory SyncRepository.
type memRepo struct {
	mu      gosync.Mutex
	records map[string]*SyncRecord
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]*SyncRecord)}
}

func pairKey(vehicleID, portal string) string { return vehicleID + "|" + portal }

func (r *memRepo) FirstOrCreate(ctx context.Context, vehicleID, portal string) (*SyncRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[pairKey(vehicleID, portal)]; ok {
		cp := *rec
		return &cp, nil
	}
	rec := &SyncRecord{
		ID:        primitive.NewObjectID(),
		VehicleID: vehicleID,
		Portal:    portal,
		Status:    StatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.records[pairKey(vehicleID, portal)] = rec
	cp := *rec
	return &cp, nil
}

func (r *memRepo) GetByVehicleAndPortal(ctx context.Context, vehicleID, portal string) (*SyncRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[pairKey(vehicleID, portal)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *memRepo) GetByExternalID(ctx context.Context, portal, externalID string) (*SyncRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Portal == portal && rec.ExternalID == externalID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListByPortal(ctx context.Context, portal, status string, limit int64) ([]SyncRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SyncRecord
	for _, rec := range r.records {
		if rec.Portal == portal && (status == "" || rec.Status == status) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *memRepo) ListRetryable(ctx context.Context, maxAttempts int, limit int64) ([]SyncRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SyncRecord
	for _, rec := range r.records {
		if (rec.Status == StatusPending || rec.Status == StatusError) && rec.Attempts < maxAttempts {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *memRepo) UpdateFields(ctx context.Context, id primitive.ObjectID, updates bson.M) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID != id {
			continue
		}
		for k, v := range updates {
			switch k {
			case "status":
				rec.Status = v.(string)
			case "last_action":
				rec.LastAction = v.(string)
			case "external_id":
				rec.ExternalID = v.(string)
			case "url":
				rec.URL = v.(string)
			case "content_hash":
				rec.ContentHash = v.(string)
			case "error_message":
				rec.ErrorMessage = v.(string)
			case "attempts":
				rec.Attempts = v.(int)
			case "published_at":
				t := v.(time.Time)
				rec.PublishedAt = &t
			case "last_sync_at":
				t := v.(time.Time)
				rec.LastSyncAt = &t
			}
		}
		rec.UpdatedAt = time.Now()
		return nil
	}
	return errors.New("record not found")
}

func (r *memRepo) IncrementAttempts(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			rec.Attempts++
			return nil
		}
	}
	return errors.New("record not found")
}

func (r *memRepo) EnsureIndexes(ctx context.Context) error { return nil }

// fakeSource serves a fixed vehicle set.
type fakeSource struct {
	vehicles map[string]*inventory.Vehicle
}

func (s *fakeSource) GetVehicle(ctx context.Context, vehicleID string) (*inventory.Vehicle, error) {
	v, ok := s.vehicles[vehicleID]
	if !ok {
		return nil, fmt.Errorf("vehicle %s not found", vehicleID)
	}
	cp := *v
	return &cp, nil
}

func (s *fakeSource) ListActiveVehicleIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(s.vehicles))
	for id := range s.vehicles {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *fakeSource) TestConnection(ctx context.Context) error { return nil }

// fakeAdapter is a scriptable portals.Adapter.
type fakeAdapter struct {
	name         string
	caps         portals.Capabilities
	publishErr   error
	publishCalls int
	updateCalls  int
	removeCalls  int

	statusFn  func(externalID, status string) error
	pages     [][]portals.PublishedListing
	pageCalls int
}

func (a *fakeAdapter) Name() string                       { return a.name }
func (a *fakeAdapter) Capabilities() portals.Capabilities { return a.caps }
func (a *fakeAdapter) Authenticate(ctx context.Context) error {
	return nil
}
func (a *fakeAdapter) TestConnection(ctx context.Context) error { return nil }

func (a *fakeAdapter) TransformVehicle(ctx context.Context, v *inventory.Vehicle) (map[string]interface{}, error) {
	return map[string]interface{}{
		"title": v.Brand() + " " + v.Model(),
		"price": v.Price,
	}, nil
}

func (a *fakeAdapter) PublishVehicle(ctx context.Context, v *inventory.Vehicle) (*portals.PublishResult, error) {
	a.publishCalls++
	if a.publishErr != nil {
		return nil, a.publishErr
	}
	return &portals.PublishResult{ExternalID: "ext-" + v.ID, URL: "https://portal.example/ext-" + v.ID}, nil
}

func (a *fakeAdapter) UpdateVehicle(ctx context.Context, externalID string, v *inventory.Vehicle) (*portals.PublishResult, error) {
	a.updateCalls++
	return &portals.PublishResult{ExternalID: externalID}, nil
}

func (a *fakeAdapter) RemoveVehicle(ctx context.Context, externalID string) error {
	a.removeCalls++
	return nil
}

func (a *fakeAdapter) UpdateVehicleStatus(ctx context.Context, externalID, status string) error {
	if a.statusFn != nil {
		return a.statusFn(externalID, status)
	}
	return nil
}

func (a *fakeAdapter) FetchLeads(ctx context.Context, since time.Time) ([]portals.Lead, error) {
	return nil, portals.ErrLeadPullNotSupported
}

func (a *fakeAdapter) GetPublishedVehicles(ctx context.Context, page portals.Page) ([]portals.PublishedListing, portals.Page, error) {
	a.pageCalls++
	if len(a.pages) == 0 {
		return nil, portals.Page{}, nil
	}
	idx := page.Number
	next := portals.Page{}
	if idx+1 < len(a.pages) {
		next.Number = idx + 1
	}
	return a.pages[idx], next, nil
}

// captureRecorder collects call records.
type captureRecorder struct {
	mu      gosync.Mutex
	records []portals.CallRecord
}

func (r *captureRecorder) Record(ctx context.Context, rec portals.CallRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *captureRecorder) all() []portals.CallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]portals.CallRecord, len(r.records))
	copy(out, r.records)
	return out
}

func testService(adapter *fakeAdapter) (SyncService, *memRepo, *captureRecorder) {
	repo := newMemRepo()
	recorder := &captureRecorder{}
	registry := portals.NewStaticRegistry(map[string]portals.Adapter{adapter.name: adapter})
	source := &fakeSource{vehicles: map[string]*inventory.Vehicle{
		"100": {ID: "100", FipeBrandName: "Fiat", FipeModelName: "Argo", Price: 70000},
	}}
	cfg := &config.Config{Sync: config.SyncConfig{MaxRetries: 3, BatchSize: 50}}
	svc := NewSyncService(registry, repo, source, recorder, cfg, zap.NewNop())
	return svc, repo, recorder
}

func pushAdapter() *fakeAdapter {
	return &fakeAdapter{
		name: "olx",
		caps: portals.Capabilities{Push: true, StatusUpdate: true},
	}
}

func TestSyncVehiclePublishes(t *testing.T) {
	adapter := pushAdapter()
	svc, repo, _ := testService(adapter)

	result, err := svc.SyncVehicle(context.Background(), "100", "olx")
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, adapter.publishCalls)

	rec, err := repo.GetByVehicleAndPortal(context.Background(), "100", "olx")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, StatusPublished, rec.Status)
	assert.Equal(t, "ext-100", rec.ExternalID)
	assert.Equal(t, "https://portal.example/ext-100", rec.URL)
	assert.NotEmpty(t, rec.ContentHash)
	assert.Equal(t, 0, rec.Attempts)
	assert.NotNil(t, rec.PublishedAt)
}

func TestSyncVehicleIdempotent(t *testing.T) {
	adapter := pushAdapter()
	svc, _, recorder := testService(adapter)

	_, err := svc.SyncVehicle(context.Background(), "100", "olx")
	require.NoError(t, err)

	result, err := svc.SyncVehicle(context.Background(), "100", "olx")
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, "Vehicle already up to date", result.Message)
	// No second portal call
	assert.Equal(t, 1, adapter.publishCalls)
	assert.Equal(t, 0, adapter.updateCalls)

	// The skip itself is logged
	records := recorder.all()
	require.NotEmpty(t, records)
	last := records[len(records)-1]
	assert.Equal(t, portals.ResultSkipped, last.Result)
	assert.Equal(t, "content unchanged", last.ErrorMessage)
}

func TestSyncVehicleErrorThenRetryAsUpdate(t *testing.T) {
	adapter := pushAdapter()
	svc, repo, _ := testService(adapter)

	// First publish succeeds
	_, err := svc.SyncVehicle(context.Background(), "100", "olx")
	require.NoError(t, err)

	// Simulate a failed update attempt: error state with the external id kept
	rec, _ := repo.GetByVehicleAndPortal(context.Background(), "100", "olx")
	require.NoError(t, repo.UpdateFields(context.Background(), rec.ID, bson.M{
		"status":        StatusError,
		"error_message": "portal timeout",
		"content_hash":  "stale",
	}))

	_, err = svc.SyncVehicle(context.Background(), "100", "olx")
	require.NoError(t, err)

	// The retry resumed as an update against the kept external id
	assert.Equal(t, 1, adapter.publishCalls)
	assert.Equal(t, 1, adapter.updateCalls)

	rec, _ = repo.GetByVehicleAndPortal(context.Background(), "100", "olx")
	assert.Equal(t, StatusPublished, rec.Status)
	assert.Equal(t, "ext-100", rec.ExternalID)
	assert.Empty(t, rec.ErrorMessage)
}

func TestSyncVehiclePublishFailureKeepsErrorState(t *testing.T) {
	adapter := pushAdapter()
	adapter.publishErr = errors.New("listing rejected")
	svc, repo, _ := testService(adapter)

	_, err := svc.SyncVehicle(context.Background(), "100", "olx")
	require.Error(t, err)

	rec, _ := repo.GetByVehicleAndPortal(context.Background(), "100", "olx")
	require.NotNil(t, rec)
	assert.Equal(t, StatusError, rec.Status)
	assert.Equal(t, "listing rejected", rec.ErrorMessage)
	assert.Equal(t, 1, rec.Attempts)
}

func TestSyncVehiclePassivePortalRejected(t *testing.T) {
	adapter := &fakeAdapter{
		name: "webmotors_rest",
		caps: portals.Capabilities{Push: false, LeadPull: true},
	}
	svc, repo, recorder := testService(adapter)

	_, err := svc.SyncVehicle(context.Background(), "100", "webmotors_rest")
	require.Error(t, err)
	assert.ErrorIs(t, err, portals.ErrPushNotSupported)

	// Rejected locally: no adapter call, no record created, but the
	// decision is logged
	assert.Equal(t, 0, adapter.publishCalls)
	rec, _ := repo.GetByVehicleAndPortal(context.Background(), "100", "webmotors_rest")
	assert.Nil(t, rec)

	records := recorder.all()
	require.Len(t, records, 1)
	assert.Equal(t, portals.ResultSkipped, records[0].Result)
}

func TestSyncVehicleUnknownPortal(t *testing.T) {
	svc, _, _ := testService(pushAdapter())
	_, err := svc.SyncVehicle(context.Background(), "100", "nope")
	assert.ErrorIs(t, err, portals.ErrUnknownPortal)
}

func TestRemoveVehicleRequiresPublishedListing(t *testing.T) {
	adapter := pushAdapter()
	svc, _, _ := testService(adapter)

	err := svc.RemoveVehicle(context.Background(), "100", "olx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no published listing")
	assert.Equal(t, 0, adapter.removeCalls)
}

func TestRemoveVehicle(t *testing.T) {
	adapter := pushAdapter()
	svc, repo, _ := testService(adapter)

	_, err := svc.SyncVehicle(context.Background(), "100", "olx")
	require.NoError(t, err)

	require.NoError(t, svc.RemoveVehicle(context.Background(), "100", "olx"))
	assert.Equal(t, 1, adapter.removeCalls)

	rec, _ := repo.GetByVehicleAndPortal(context.Background(), "100", "olx")
	assert.Equal(t, StatusRemoved, rec.Status)
	// External id is kept for audit
	assert.Equal(t, "ext-100", rec.ExternalID)
}

func TestUpdateVehicleStatusMirrorsRecord(t *testing.T) {
	adapter := pushAdapter()
	svc, repo, _ := testService(adapter)

	_, err := svc.SyncVehicle(context.Background(), "100", "olx")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateVehicleStatus(context.Background(), "100", "olx", "paused"))
	rec, _ := repo.GetByVehicleAndPortal(context.Background(), "100", "olx")
	assert.Equal(t, StatusPaused, rec.Status)
	assert.Equal(t, ActionPause, rec.LastAction)

	require.NoError(t, svc.UpdateVehicleStatus(context.Background(), "100", "olx", "sold"))
	rec, _ = repo.GetByVehicleAndPortal(context.Background(), "100", "olx")
	assert.Equal(t, StatusRemoved, rec.Status)
}

func TestUpdateVehicleStatusSerializedPerPair(t *testing.T) {
	adapter := pushAdapter()
	svc, repo, _ := testService(adapter)

	_, err := svc.SyncVehicle(context.Background(), "100", "olx")
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	adapter.statusFn = func(externalID, status string) error {
		close(entered)
		<-release
		return nil
	}

	statusDone := make(chan error, 1)
	go func() {
		statusDone <- svc.UpdateVehicleStatus(context.Background(), "100", "olx", "paused")
	}()
	<-entered

	removeDone := make(chan error, 1)
	go func() {
		removeDone <- svc.RemoveVehicle(context.Background(), "100", "olx")
	}()

	// The remove must wait for the in-flight status change on the same pair
	select {
	case <-removeDone:
		t.Fatal("remove ran while a status change for the same pair was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 0, adapter.removeCalls)

	close(release)
	require.NoError(t, <-statusDone)
	require.NoError(t, <-removeDone)
	assert.Equal(t, 1, adapter.removeCalls)

	rec, _ := repo.GetByVehicleAndPortal(context.Background(), "100", "olx")
	assert.Equal(t, StatusRemoved, rec.Status)
}

func TestGetPublishedWalksAllPages(t *testing.T) {
	adapter := pushAdapter()
	adapter.pages = [][]portals.PublishedListing{
		{{ExternalID: "a1"}, {ExternalID: "a2"}},
		{{ExternalID: "b1"}, {ExternalID: "b2"}},
		{{ExternalID: "c1"}},
	}
	svc, _, _ := testService(adapter)

	listings, next, err := svc.GetPublished(context.Background(), "olx", portals.Page{})
	require.NoError(t, err)
	require.Len(t, listings, 5)
	assert.Equal(t, "c1", listings[4].ExternalID)
	assert.Equal(t, 3, adapter.pageCalls)
	assert.False(t, next.HasMore())
}

func TestFindVehicleByExternalAd(t *testing.T) {
	adapter := pushAdapter()
	svc, _, _ := testService(adapter)

	_, err := svc.SyncVehicle(context.Background(), "100", "olx")
	require.NoError(t, err)

	vehicleID, err := svc.FindVehicleByExternalAd(context.Background(), "olx", "ext-100")
	require.NoError(t, err)
	assert.Equal(t, "100", vehicleID)

	vehicleID, err = svc.FindVehicleByExternalAd(context.Background(), "olx", "unknown")
	require.NoError(t, err)
	assert.Empty(t, vehicleID)
}

func TestContentHashStable(t *testing.T) {
	payload := map[string]interface{}{"b": 2, "a": "x", "nested": map[string]interface{}{"k": 1}}
	first, err := contentHash(payload)
	require.NoError(t, err)
	second, err := contentHash(map[string]interface{}{"a": "x", "nested": map[string]interface{}{"k": 1}, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	changed, err := contentHash(map[string]interface{}{"a": "y", "b": 2, "nested": map[string]interface{}{"k": 1}})
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}
