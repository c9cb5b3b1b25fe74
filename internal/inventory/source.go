package inventory

import "context"

// Source supplies vehicle records to the sync engine. The engine treats the
// dealer inventory as read-only.
type Source interface {
	GetVehicle(ctx context.Context, vehicleID string) (*Vehicle, error)
	ListActiveVehicleIDs(ctx context.Context) ([]string, error)
	TestConnection(ctx context.Context) error
}
