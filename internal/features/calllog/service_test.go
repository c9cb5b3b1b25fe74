package calllog

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-portal-sync/internal/portals"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memCallRepo struct {
	mu      sync.Mutex
	entries []CallLog
}

func (r *memCallRepo) Create(ctx context.Context, entry *CallLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memCallRepo) List(ctx context.Context, filter ListFilter) ([]CallLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CallLog
	for _, entry := range r.entries {
		if filter.Portal != "" && entry.Portal != filter.Portal {
			continue
		}
		if filter.Result != "" && entry.Result != filter.Result {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *memCallRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (r *memCallRepo) EnsureIndexes(ctx context.Context) error { return nil }

func TestRecordPersistsAsynchronously(t *testing.T) {
	repo := &memCallRepo{}
	svc := NewCallLogService(repo, zap.NewNop())

	svc.Record(context.Background(), portals.CallRecord{
		Portal:     "olx",
		VehicleID:  "42",
		Action:     "PUT /autoupload/import",
		Result:     portals.ResultSuccess,
		HTTPMethod: "PUT",
		HTTPStatus: 200,
		Duration:   120 * time.Millisecond,
	})
	svc.Record(context.Background(), portals.CallRecord{
		Portal: "icarros",
		Action: "POST /deals",
		Result: portals.ResultError,
	})

	// Close drains the buffer
	svc.Close()

	entries, err := svc.ListCallLogs(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "olx", entries[0].Portal)
	assert.Equal(t, int64(120), entries[0].DurationMs)

	errored, err := svc.ListCallLogs(context.Background(), ListFilter{Result: portals.ResultError})
	require.NoError(t, err)
	require.Len(t, errored, 1)
	assert.Equal(t, "icarros", errored[0].Portal)
}
