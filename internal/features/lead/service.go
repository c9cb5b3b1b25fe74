package lead

import (
	"context"
	"fmt"
	"time"

	"go-portal-sync/internal/features/sync"
	"go-portal-sync/internal/metrics"
	"go-portal-sync/internal/portals"
	"go-portal-sync/pkg/utils"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type LeadService interface {
	IngestWebhook(ctx context.Context, portal string, payload map[string]interface{}) error
	PollPortal(ctx context.Context, portal string) (int, error)
	PollAll(ctx context.Context)
	ListLeads(ctx context.Context, filter ListFilter) ([]Lead, error)
	GetLead(ctx context.Context, id string) (*Lead, error)
	UpdateLeadStatus(ctx context.Context, id, status string) error
	ExportLeads(ctx context.Context, filter ListFilter) ([]byte, string, error)
}

type LeadServiceImpl struct {
	repo        LeadRepository
	registry    *portals.Registry
	syncService sync.SyncService
	recorder    portals.CallRecorder
	log         *zap.Logger
}

func NewLeadService(
	repo LeadRepository,
	registry *portals.Registry,
	syncService sync.SyncService,
	recorder portals.CallRecorder,
	log *zap.Logger,
) LeadService {
	return &LeadServiceImpl{
		repo:        repo,
		registry:    registry,
		syncService: syncService,
		recorder:    recorder,
		log:         log,
	}
}

// webhookFields maps each portal's webhook payload keys to our lead fields.
// Portals are not consistent about naming, so each field accepts every
// spelling seen in production payloads, first match wins.
var webhookFields = map[string]map[string][]string{
	portals.PortalOLX: {
		"lead_id": {"lead_id", "id"},
		"ad_id":   {"ad_id", "vehicle_id", "list_id"},
		"name":    {"name", "customer_name"},
		"email":   {"email", "customer_email"},
		"phone":   {"phone", "customer_phone"},
		"message": {"message", "description"},
	},
	portals.PortalWebMotors: {
		"lead_id": {"lead_id", "id", "CodigoLead"},
		"ad_id":   {"ad_id", "CodigoAnuncio"},
		"name":    {"name", "NomeCliente"},
		"email":   {"email", "EmailCliente"},
		"phone":   {"phone", "TelefoneCliente"},
		"message": {"message", "Mensagem"},
	},
	portals.PortalICarros: {
		"lead_id": {"id", "lead_id"},
		"ad_id":   {"dealId", "deal_id", "ad_id"},
		"name":    {"name", "nome"},
		"email":   {"email"},
		"phone":   {"phone", "telefone"},
		"message": {"message", "mensagem"},
	},
}

func pickField(payload map[string]interface{}, keys []string) string {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

// IngestWebhook stores a lead pushed by a portal. A payload without an
// external lead id is logged and acknowledged anyway; portals retry
// endlessly on non-2xx responses. Duplicates are acknowledged too.
func (s *LeadServiceImpl) IngestWebhook(ctx context.Context, portal string, payload map[string]interface{}) error {
	// Mercado Livre pushes topic notifications, not lead bodies; questions
	// are picked up by the next poll.
	if topic, ok := payload["topic"].(string); ok && topic != "" {
		s.log.Info("portal notification received",
			zap.String("portal", portal),
			zap.String("topic", topic))
		return nil
	}

	fields, ok := webhookFields[portal]
	if !ok {
		return fmt.Errorf("%w: %s", portals.ErrUnknownPortal, portal)
	}

	externalLeadID := pickField(payload, fields["lead_id"])
	if externalLeadID == "" {
		s.log.Warn("webhook lead without external id, ignoring",
			zap.String("portal", portal))
		return nil
	}

	lead := &Lead{
		Portal:         portal,
		ExternalLeadID: externalLeadID,
		ExternalAdID:   pickField(payload, fields["ad_id"]),
		Name:           pickField(payload, fields["name"]),
		Email:          pickField(payload, fields["email"]),
		Phone:          pickField(payload, fields["phone"]),
		Message:        pickField(payload, fields["message"]),
		Source:         SourceWebhook,
		Raw:            payload,
	}
	now := time.Now()
	lead.ReceivedAt = &now

	return s.store(ctx, lead)
}

func (s *LeadServiceImpl) store(ctx context.Context, lead *Lead) error {
	if lead.ExternalAdID != "" {
		vehicleID, err := s.syncService.FindVehicleByExternalAd(ctx, lead.Portal, lead.ExternalAdID)
		if err != nil {
			s.log.Warn("failed to match lead to vehicle",
				zap.String("portal", lead.Portal),
				zap.String("external_ad_id", lead.ExternalAdID),
				zap.Error(err))
		}
		lead.VehicleID = vehicleID
	}

	err := s.repo.Create(ctx, lead)
	if err == ErrDuplicateLead {
		metrics.LeadsDuplicate.WithLabelValues(lead.Portal).Inc()
		return nil
	}
	if err != nil {
		return err
	}

	metrics.LeadsIngested.WithLabelValues(lead.Portal, lead.Source).Inc()
	if s.recorder != nil {
		s.recorder.Record(ctx, portals.CallRecord{
			Portal:    lead.Portal,
			VehicleID: lead.VehicleID,
			Action:    "webhook:lead",
			Result:    portals.ResultSuccess,
		})
	}
	s.log.Info("lead ingested",
		zap.String("portal", lead.Portal),
		zap.String("external_lead_id", lead.ExternalLeadID),
		zap.String("source", lead.Source))
	return nil
}

// PollPortal fetches leads from a pull-capable portal and stores the new
// ones. Returns how many were new.
func (s *LeadServiceImpl) PollPortal(ctx context.Context, portal string) (int, error) {
	adapter, err := s.registry.Get(portal)
	if err != nil {
		return 0, err
	}
	if !adapter.Capabilities().LeadPull {
		return 0, fmt.Errorf("%s: %w", portal, portals.ErrLeadPullNotSupported)
	}

	fetched, err := adapter.FetchLeads(ctx, time.Now().AddDate(0, 0, -30))
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, item := range fetched {
		lead := &Lead{
			Portal:         portal,
			ExternalLeadID: item.ExternalID,
			ExternalAdID:   item.ExternalAdID,
			Name:           item.Name,
			Email:          item.Email,
			Phone:          item.Phone,
			Message:        item.Message,
			Source:         SourcePolling,
			Raw:            item.Extra,
		}
		if !item.ReceivedAt.IsZero() {
			received := item.ReceivedAt
			lead.ReceivedAt = &received
		}
		if item.ExternalID == "" {
			// Some portals return contact rows with no id. Keep them,
			// flagged and exempt from dedup.
			lead.MissingID = true
			s.log.Warn("polled lead without external id, storing flagged",
				zap.String("portal", portal))
		}
		if err := s.store(ctx, lead); err != nil {
			s.log.Warn("failed to store polled lead",
				zap.String("portal", portal),
				zap.String("external_lead_id", item.ExternalID),
				zap.Error(err))
			continue
		}
		stored++
	}
	return stored, nil
}

// PollAll sweeps every pull-capable portal. Called from the scheduler.
func (s *LeadServiceImpl) PollAll(ctx context.Context) {
	for _, portal := range s.registry.Names() {
		adapter, err := s.registry.Get(portal)
		if err != nil || !adapter.Capabilities().LeadPull {
			continue
		}
		if _, err := s.PollPortal(ctx, portal); err != nil {
			s.log.Warn("lead poll failed", zap.String("portal", portal), zap.Error(err))
		}
	}
}

func (s *LeadServiceImpl) ListLeads(ctx context.Context, filter ListFilter) ([]Lead, error) {
	return s.repo.List(ctx, filter)
}

func (s *LeadServiceImpl) GetLead(ctx context.Context, id string) (*Lead, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *LeadServiceImpl) UpdateLeadStatus(ctx context.Context, id, status string) error {
	if !validStatuses[status] {
		return fmt.Errorf("invalid lead status %q", status)
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

// ExportLeads writes the filtered leads to an xlsx workbook.
func (s *LeadServiceImpl) ExportLeads(ctx context.Context, filter ListFilter) ([]byte, string, error) {
	if filter.Limit <= 0 {
		filter.Limit = 10000
	}
	leads, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Leads"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Portal", "Lead ID", "Vehicle ID", "Name", "Email", "Phone", "Message", "Status", "Source", "Received At"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for row, lead := range leads {
		received := ""
		if lead.ReceivedAt != nil {
			received = lead.ReceivedAt.Format(time.RFC3339)
		}
		values := []interface{}{
			lead.Portal, lead.ExternalLeadID, lead.VehicleID,
			lead.Name, lead.Email, lead.Phone, lead.Message,
			lead.Status, lead.Source, received,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to build export workbook: %w", err)
	}

	name := "leads"
	if filter.Portal != "" {
		name += "-" + utils.Slugify(filter.Portal)
	}
	filename := fmt.Sprintf("%s-%s.xlsx", name, time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}
