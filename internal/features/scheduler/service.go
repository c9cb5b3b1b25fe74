package scheduler

import (
	"context"
	"fmt"

	"go-portal-sync/internal/config"
	"go-portal-sync/internal/features/credential"
	"go-portal-sync/internal/features/lead"
	"go-portal-sync/internal/features/sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SchedulerService runs the recurring background work: token refresh,
// lead polling and sync retries.
type SchedulerService interface {
	Start() error
	Stop() error
}

type SchedulerServiceImpl struct {
	config            *config.Config
	credentialService credential.CredentialService
	leadService       lead.LeadService
	syncService       sync.SyncService
	log               *zap.Logger

	scheduler *cron.Cron
}

func NewSchedulerService(
	config *config.Config,
	credentialService credential.CredentialService,
	leadService lead.LeadService,
	syncService sync.SyncService,
	log *zap.Logger,
) SchedulerService {
	return &SchedulerServiceImpl{
		config:            config,
		credentialService: credentialService,
		leadService:       leadService,
		syncService:       syncService,
		log:               log,
	}
}

func (s *SchedulerServiceImpl) Start() error {
	s.scheduler = cron.New()

	jobs := []struct {
		schedule string
		name     string
		run      func(context.Context)
	}{
		{
			schedule: "@every 1m",
			name:     "credential-refresh",
			run:      s.credentialService.RefreshAllDue,
		},
		{
			schedule: fmt.Sprintf("@every %dm", s.config.Sync.LeadsIntervalMin),
			name:     "lead-poll",
			run:      s.leadService.PollAll,
		},
		{
			schedule: fmt.Sprintf("@every %dm", s.config.Sync.CheckIntervalMin),
			name:     "sync-retry",
			run:      s.syncService.RetryFailed,
		},
	}

	for _, job := range jobs {
		job := job
		_, err := s.scheduler.AddFunc(job.schedule, func() {
			s.log.Debug("scheduled job starting", zap.String("job", job.name))
			job.run(context.Background())
		})
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
		s.log.Info("scheduled job registered",
			zap.String("job", job.name),
			zap.String("schedule", job.schedule))
	}

	s.scheduler.Start()
	return nil
}

func (s *SchedulerServiceImpl) Stop() error {
	if s.scheduler != nil {
		ctx := s.scheduler.Stop()
		<-ctx.Done()
	}
	return nil
}
