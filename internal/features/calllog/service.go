package calllog

import (
	"context"
	"time"

	"go-portal-sync/internal/portals"

	"go.uber.org/zap"
)

const writeBufferSize = 1000

type CallLogService interface {
	Record(ctx context.Context, rec portals.CallRecord)
	ListCallLogs(ctx context.Context, filter ListFilter) ([]CallLog, error)
	PruneCallLogs(ctx context.Context, olderThan time.Duration) (int64, error)
	Close()
}

// CallLogServiceImpl persists call records through a buffered channel so the
// portal call path never blocks on Mongo. Entries are dropped when the
// buffer is full.
type CallLogServiceImpl struct {
	repo CallLogRepository
	log  *zap.Logger

	writeCh chan CallLog
	done    chan struct{}
}

func NewCallLogService(repo CallLogRepository, log *zap.Logger) CallLogService {
	s := &CallLogServiceImpl{
		repo:    repo,
		log:     log,
		writeCh: make(chan CallLog, writeBufferSize),
		done:    make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

func (s *CallLogServiceImpl) writeLoop() {
	for entry := range s.writeCh {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.repo.Create(ctx, &entry); err != nil {
			s.log.Warn("failed to persist call log entry",
				zap.String("portal", entry.Portal),
				zap.String("action", entry.Action),
				zap.Error(err))
		}
		cancel()
	}
	close(s.done)
}

// Record implements the recorder contract used by the portal adapters.
func (s *CallLogServiceImpl) Record(ctx context.Context, rec portals.CallRecord) {
	entry := CallLog{
		Portal:         rec.Portal,
		VehicleID:      rec.VehicleID,
		Action:         rec.Action,
		Result:         rec.Result,
		HTTPMethod:     rec.HTTPMethod,
		Endpoint:       rec.Endpoint,
		HTTPStatus:     rec.HTTPStatus,
		RequestPayload: rec.RequestPayload,
		ResponseBody:   rec.ResponseBody,
		ErrorMessage:   rec.ErrorMessage,
		DurationMs:     rec.Duration.Milliseconds(),
	}

	select {
	case s.writeCh <- entry:
	default:
		s.log.Warn("call log buffer full, dropping entry",
			zap.String("portal", rec.Portal),
			zap.String("action", rec.Action))
	}
}

func (s *CallLogServiceImpl) ListCallLogs(ctx context.Context, filter ListFilter) ([]CallLog, error) {
	return s.repo.List(ctx, filter)
}

func (s *CallLogServiceImpl) PruneCallLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, time.Now().Add(-olderThan))
}

// Close drains pending writes.
func (s *CallLogServiceImpl) Close() {
	close(s.writeCh)
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
	}
}
