package sync

import (
	"go-portal-sync/internal/config"
	"go-portal-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type SyncApi struct {
	controller *SyncController
	config     *config.Config
}

func NewSyncApi(controller *SyncController, config *config.Config) *SyncApi {
	return &SyncApi{
		controller: controller,
		config:     config,
	}
}

func (h *SyncApi) Setup(app *fiber.App) {
	group := app.Group("/api/portals", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Get("/", h.controller.ListPortals)
	group.Post("/publish-all", h.controller.PublishAll)
	group.Get("/:portal/test", h.controller.TestPortal)
	group.Get("/:portal/vehicles", h.controller.ListSyncRecords)
	group.Get("/:portal/published", h.controller.ListPublished)
	group.Post("/:portal/vehicles/publish", h.controller.PublishVehicle)
	group.Put("/:portal/vehicles/:vehicleId", h.controller.UpdateVehicle)
	group.Delete("/:portal/vehicles/:vehicleId", h.controller.RemoveVehicle)
	group.Patch("/:portal/vehicles/:vehicleId/status", h.controller.UpdateVehicleStatus)

	vehicles := app.Group("/api/vehicles", middleware.AuthMiddleware(h.config.SkipAuth))
	vehicles.Post("/:vehicleId/publish", h.controller.PublishVehicleAll)
}
