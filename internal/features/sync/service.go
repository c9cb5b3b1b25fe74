package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"go-portal-sync/internal/config"
	"go-portal-sync/internal/inventory"
	"go-portal-sync/internal/metrics"
	"go-portal-sync/internal/portals"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

type SyncService interface {
	SyncVehicle(ctx context.Context, vehicleID, portal string) (*SyncResult, error)
	SyncVehicleAll(ctx context.Context, vehicleID string) map[string]*SyncResult
	RemoveVehicle(ctx context.Context, vehicleID, portal string) error
	UpdateVehicleStatus(ctx context.Context, vehicleID, portal, status string) error
	PublishAll(ctx context.Context) (published, failed int)
	RetryFailed(ctx context.Context)
	ListRecords(ctx context.Context, portal, status string, limit int64) ([]SyncRecord, error)
	GetPublished(ctx context.Context, portal string, page portals.Page) ([]portals.PublishedListing, portals.Page, error)
	TestPortal(ctx context.Context, portal string) error
	FindVehicleByExternalAd(ctx context.Context, portal, externalAdID string) (string, error)
}

// SyncServiceImpl coordinates publication state. Per (vehicle, portal) work
// is serialized with a keyed mutex so concurrent syncs of the same pair
// cannot interleave state transitions.
type SyncServiceImpl struct {
	registry *portals.Registry
	repo     SyncRepository
	source   inventory.Source
	recorder portals.CallRecorder
	cfg      *config.Config
	log      *zap.Logger

	mu    gosync.Mutex
	locks map[string]*gosync.Mutex
}

func NewSyncService(
	registry *portals.Registry,
	repo SyncRepository,
	source inventory.Source,
	recorder portals.CallRecorder,
	cfg *config.Config,
	log *zap.Logger,
) SyncService {
	return &SyncServiceImpl{
		registry: registry,
		repo:     repo,
		source:   source,
		recorder: recorder,
		cfg:      cfg,
		log:      log,
		locks:    make(map[string]*gosync.Mutex),
	}
}

func (s *SyncServiceImpl) pairLock(vehicleID, portal string) *gosync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := vehicleID + "|" + portal
	lock, ok := s.locks[key]
	if !ok {
		lock = &gosync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// contentHash fingerprints the transformed payload. json.Marshal emits map
// keys in sorted order, so identical payloads always hash identically.
func contentHash(payload map[string]interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to hash payload: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// recordSkip writes a call-log entry for an operation that was decided
// locally, without any portal traffic.
func (s *SyncServiceImpl) recordSkip(ctx context.Context, portal, vehicleID, action, reason string) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(ctx, portals.CallRecord{
		Portal:       portal,
		VehicleID:    vehicleID,
		Action:       action,
		Result:       portals.ResultSkipped,
		ErrorMessage: reason,
	})
}

// SyncVehicle publishes or updates one vehicle on one portal. A published
// record whose content hash matches the current payload is skipped without
// touching the portal.
func (s *SyncServiceImpl) SyncVehicle(ctx context.Context, vehicleID, portal string) (*SyncResult, error) {
	adapter, err := s.registry.Get(portal)
	if err != nil {
		return nil, err
	}

	if !adapter.Capabilities().Push {
		s.recordSkip(ctx, portal, vehicleID, "sync", portals.ErrPushNotSupported.Error())
		return nil, fmt.Errorf("%s: %w", portal, portals.ErrPushNotSupported)
	}

	lock := s.pairLock(vehicleID, portal)
	lock.Lock()
	defer lock.Unlock()

	vehicle, err := s.source.GetVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.FirstOrCreate(ctx, vehicleID, portal)
	if err != nil {
		return nil, err
	}

	payload, err := adapter.TransformVehicle(ctx, vehicle)
	if err != nil {
		s.markError(ctx, record, err)
		metrics.SyncOperations.WithLabelValues(portal, ActionCreate, portals.ResultError).Inc()
		return nil, fmt.Errorf("transform failed for vehicle %s on %s: %w", vehicleID, portal, err)
	}

	hash, err := contentHash(payload)
	if err != nil {
		return nil, err
	}

	if record.Status == StatusPublished && record.ContentHash == hash {
		s.recordSkip(ctx, portal, vehicleID, "sync", "content unchanged")
		metrics.SyncOperations.WithLabelValues(portal, ActionUpdate, portals.ResultSkipped).Inc()
		return &SyncResult{Record: record, Skipped: true, Message: "Vehicle already up to date"}, nil
	}

	isUpdate := record.ExternalID != "" &&
		(record.Status == StatusPublished || record.Status == StatusError || record.Status == StatusUpdating)

	action := ActionCreate
	nextStatus := StatusPublishing
	if isUpdate {
		action = ActionUpdate
		nextStatus = StatusUpdating
	}
	if err := s.repo.UpdateFields(ctx, record.ID, bson.M{
		"status":      nextStatus,
		"last_action": action,
	}); err != nil {
		return nil, err
	}
	if err := s.repo.IncrementAttempts(ctx, record.ID); err != nil {
		s.log.Warn("failed to bump sync attempts", zap.Error(err))
	}

	var result *portals.PublishResult
	if isUpdate {
		result, err = adapter.UpdateVehicle(ctx, record.ExternalID, vehicle)
	} else {
		result, err = adapter.PublishVehicle(ctx, vehicle)
	}
	if err != nil {
		s.markError(ctx, record, err)
		metrics.SyncOperations.WithLabelValues(portal, action, portals.ResultError).Inc()
		return nil, err
	}

	externalID := record.ExternalID
	if result.ExternalID != "" {
		externalID = result.ExternalID
	}
	url := record.URL
	if result.URL != "" {
		url = result.URL
	}

	now := time.Now()
	updates := bson.M{
		"status":        StatusPublished,
		"external_id":   externalID,
		"url":           url,
		"content_hash":  hash,
		"error_message": "",
		"attempts":      0,
		"last_sync_at":  now,
	}
	if record.PublishedAt == nil {
		updates["published_at"] = now
	}
	if err := s.repo.UpdateFields(ctx, record.ID, updates); err != nil {
		return nil, err
	}

	metrics.SyncOperations.WithLabelValues(portal, action, portals.ResultSuccess).Inc()
	s.log.Info("vehicle synced",
		zap.String("portal", portal),
		zap.String("vehicle_id", vehicleID),
		zap.String("action", action),
		zap.String("external_id", externalID))

	record, err = s.repo.GetByVehicleAndPortal(ctx, vehicleID, portal)
	if err != nil {
		return nil, err
	}
	return &SyncResult{Record: record, Message: "Vehicle synced successfully"}, nil
}

func (s *SyncServiceImpl) markError(ctx context.Context, record *SyncRecord, cause error) {
	// The external id is retained so a later retry resumes as an update.
	if err := s.repo.UpdateFields(ctx, record.ID, bson.M{
		"status":        StatusError,
		"error_message": cause.Error(),
	}); err != nil {
		s.log.Warn("failed to persist sync error state",
			zap.String("vehicle_id", record.VehicleID),
			zap.String("portal", record.Portal),
			zap.Error(err))
	}
}

// SyncVehicleAll fans a vehicle out to every push-capable portal. Failures
// are per portal; one portal rejecting the vehicle does not stop the rest.
func (s *SyncServiceImpl) SyncVehicleAll(ctx context.Context, vehicleID string) map[string]*SyncResult {
	results := make(map[string]*SyncResult)
	for _, portal := range s.registry.Names() {
		adapter, err := s.registry.Get(portal)
		if err != nil || !adapter.Capabilities().Push {
			continue
		}
		result, err := s.SyncVehicle(ctx, vehicleID, portal)
		if err != nil {
			results[portal] = &SyncResult{Message: err.Error()}
			continue
		}
		results[portal] = result
	}
	return results
}

// RemoveVehicle delists a vehicle. Removal requires a known external id;
// a vehicle that never published has nothing to remove.
func (s *SyncServiceImpl) RemoveVehicle(ctx context.Context, vehicleID, portal string) error {
	adapter, err := s.registry.Get(portal)
	if err != nil {
		return err
	}

	lock := s.pairLock(vehicleID, portal)
	lock.Lock()
	defer lock.Unlock()

	record, err := s.repo.GetByVehicleAndPortal(ctx, vehicleID, portal)
	if err != nil {
		return err
	}
	if record == nil || record.ExternalID == "" {
		return fmt.Errorf("vehicle %s has no published listing on %s", vehicleID, portal)
	}

	if err := s.repo.UpdateFields(ctx, record.ID, bson.M{
		"status":      StatusRemoving,
		"last_action": ActionRemove,
	}); err != nil {
		return err
	}

	if err := adapter.RemoveVehicle(ctx, record.ExternalID); err != nil {
		s.markError(ctx, record, err)
		metrics.SyncOperations.WithLabelValues(portal, ActionRemove, portals.ResultError).Inc()
		return err
	}

	metrics.SyncOperations.WithLabelValues(portal, ActionRemove, portals.ResultSuccess).Inc()
	return s.repo.UpdateFields(ctx, record.ID, bson.M{
		"status":        StatusRemoved,
		"error_message": "",
	})
}

// UpdateVehicleStatus propagates a dealer-side status change to the portal
// and mirrors it on the sync record.
func (s *SyncServiceImpl) UpdateVehicleStatus(ctx context.Context, vehicleID, portal, status string) error {
	adapter, err := s.registry.Get(portal)
	if err != nil {
		return err
	}

	lock := s.pairLock(vehicleID, portal)
	lock.Lock()
	defer lock.Unlock()

	record, err := s.repo.GetByVehicleAndPortal(ctx, vehicleID, portal)
	if err != nil {
		return err
	}
	if record == nil || record.ExternalID == "" {
		return fmt.Errorf("vehicle %s has no published listing on %s", vehicleID, portal)
	}

	if err := adapter.UpdateVehicleStatus(ctx, record.ExternalID, status); err != nil {
		return err
	}

	updates := bson.M{}
	switch status {
	case "active":
		updates["status"] = StatusPublished
		updates["last_action"] = ActionActivate
	case "paused":
		updates["status"] = StatusPaused
		updates["last_action"] = ActionPause
	case "sold", "inactive":
		updates["status"] = StatusRemoved
		updates["last_action"] = ActionRemove
	default:
		return nil
	}
	return s.repo.UpdateFields(ctx, record.ID, updates)
}

// PublishAll syncs every active inventory vehicle to every push-capable
// portal, bounded by the configured batch size.
func (s *SyncServiceImpl) PublishAll(ctx context.Context) (published, failed int) {
	ids, err := s.source.ListActiveVehicleIDs(ctx)
	if err != nil {
		s.log.Error("failed to list inventory for publish-all", zap.Error(err))
		return 0, 0
	}

	batch := s.cfg.Sync.BatchSize
	if batch > 0 && len(ids) > batch {
		ids = ids[:batch]
	}

	for _, id := range ids {
		for portal, result := range s.SyncVehicleAll(ctx, id) {
			if result.Record != nil {
				published++
			} else {
				failed++
				s.log.Warn("publish-all sync failed",
					zap.String("vehicle_id", id),
					zap.String("portal", portal),
					zap.String("reason", result.Message))
			}
		}
	}
	return published, failed
}

// RetryFailed re-syncs pending and errored records that still have attempts
// left. Called from the scheduler.
func (s *SyncServiceImpl) RetryFailed(ctx context.Context) {
	records, err := s.repo.ListRetryable(ctx, s.cfg.Sync.MaxRetries, int64(s.cfg.Sync.BatchSize))
	if err != nil {
		s.log.Error("failed to list retryable sync records", zap.Error(err))
		return
	}

	for _, record := range records {
		if _, err := s.SyncVehicle(ctx, record.VehicleID, record.Portal); err != nil {
			if errors.Is(err, portals.ErrNotAuthenticated) {
				continue
			}
			s.log.Warn("sync retry failed",
				zap.String("vehicle_id", record.VehicleID),
				zap.String("portal", record.Portal),
				zap.Error(err))
		}
	}
}

func (s *SyncServiceImpl) ListRecords(ctx context.Context, portal, status string, limit int64) ([]SyncRecord, error) {
	return s.repo.ListByPortal(ctx, portal, status, limit)
}

// maxListingPages bounds the reconciliation walk against a portal that
// keeps returning a next page.
const maxListingPages = 500

// GetPublished walks the portal's active listings, following the pagination
// cursor until the portal signals the last page.
func (s *SyncServiceImpl) GetPublished(ctx context.Context, portal string, page portals.Page) ([]portals.PublishedListing, portals.Page, error) {
	adapter, err := s.registry.Get(portal)
	if err != nil {
		return nil, portals.Page{}, err
	}

	var all []portals.PublishedListing
	for pages := 0; ; pages++ {
		if pages >= maxListingPages {
			return nil, portals.Page{}, fmt.Errorf("portal %s pagination did not terminate after %d pages", portal, maxListingPages)
		}
		listings, next, err := adapter.GetPublishedVehicles(ctx, page)
		if err != nil {
			return nil, portals.Page{}, err
		}
		all = append(all, listings...)
		if !next.HasMore() {
			return all, portals.Page{}, nil
		}
		page = next
	}
}

func (s *SyncServiceImpl) TestPortal(ctx context.Context, portal string) error {
	adapter, err := s.registry.Get(portal)
	if err != nil {
		return err
	}
	if err := adapter.Authenticate(ctx); err != nil {
		return err
	}
	return adapter.TestConnection(ctx)
}

// FindVehicleByExternalAd resolves a portal listing id back to the dealer
// vehicle, used when attributing incoming leads.
func (s *SyncServiceImpl) FindVehicleByExternalAd(ctx context.Context, portal, externalAdID string) (string, error) {
	if externalAdID == "" {
		return "", nil
	}
	record, err := s.repo.GetByExternalID(ctx, portal, externalAdID)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", nil
	}
	return record.VehicleID, nil
}
