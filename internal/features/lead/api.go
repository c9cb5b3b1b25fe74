package lead

import (
	"go-portal-sync/internal/config"
	"go-portal-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type LeadApi struct {
	controller *LeadController
	config     *config.Config
}

func NewLeadApi(controller *LeadController, config *config.Config) *LeadApi {
	return &LeadApi{
		controller: controller,
		config:     config,
	}
}

func (h *LeadApi) Setup(app *fiber.App) {
	// Webhooks are called by the portals themselves and carry no user token.
	webhooks := app.Group("/webhooks")
	webhooks.Post("/:portal/leads", h.controller.ReceiveWebhook)
	webhooks.Post("/:portal/notifications", h.controller.ReceiveWebhook)

	group := app.Group("/api/leads", middleware.AuthMiddleware(h.config.SkipAuth))
	group.Get("/", h.controller.ListLeads)
	group.Get("/export", h.controller.ExportLeads)
	group.Get("/:id", h.controller.GetLead)
	group.Patch("/:id/status", h.controller.UpdateLeadStatus)

	portalGroup := app.Group("/api/portals", middleware.AuthMiddleware(h.config.SkipAuth))
	portalGroup.Post("/:portal/leads/poll", h.controller.PollPortal)
}
