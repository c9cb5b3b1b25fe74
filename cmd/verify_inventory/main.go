package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go-portal-sync/internal/config"
	"go-portal-sync/internal/inventory"
)

// Checks that the dealer inventory database is reachable and that vehicles
// load cleanly. Run it after pointing the engine at a new database.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	source, err := inventory.NewSQLSource(cfg)
	if err != nil {
		fmt.Printf("Failed to open inventory database: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := source.TestConnection(ctx); err != nil {
		fmt.Printf("Connection test failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Inventory database reachable")

	ids, err := source.ListActiveVehicleIDs(ctx)
	if err != nil {
		fmt.Printf("Failed to list active vehicles: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d active vehicles\n", len(ids))

	sample := ids
	if len(sample) > 5 {
		sample = sample[:5]
	}
	for _, id := range sample {
		vehicle, err := source.GetVehicle(ctx, id)
		if err != nil {
			fmt.Printf("  %s: FAILED (%v)\n", id, err)
			continue
		}
		fmt.Printf("  %s: %s %s %d, %d photos\n",
			id, vehicle.Brand(), vehicle.Model(), vehicle.ModelYear, len(vehicle.Images))
	}
}
