package credential

import (
	"go-portal-sync/internal/config"
	"go-portal-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type CredentialApi struct {
	controller *CredentialController
	config     *config.Config
}

func NewCredentialApi(controller *CredentialController, config *config.Config) *CredentialApi {
	return &CredentialApi{
		controller: controller,
		config:     config,
	}
}

func (h *CredentialApi) Setup(app *fiber.App) {
	creds := app.Group("/api/credentials", middleware.AuthMiddleware(h.config.SkipAuth))

	creds.Get("/", h.controller.ListStatuses)
	creds.Put("/:portal", h.controller.SaveCredential)
	creds.Get("/:portal/authorize", h.controller.GetAuthorizationURL)
	creds.Post("/:portal/refresh", h.controller.RefreshToken)

	// OAuth callbacks are hit by the portal's redirect, not by our clients.
	app.Get("/oauth/:portal/callback", h.controller.HandleCallback)
}
