package calllog

import (
	"go-portal-sync/internal/config"
	"go-portal-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type CallLogApi struct {
	controller *CallLogController
	config     *config.Config
}

func NewCallLogApi(controller *CallLogController, config *config.Config) *CallLogApi {
	return &CallLogApi{
		controller: controller,
		config:     config,
	}
}

func (h *CallLogApi) Setup(app *fiber.App) {
	logs := app.Group("/api/call-logs", middleware.AuthMiddleware(h.config.SkipAuth))

	logs.Get("/", h.controller.ListCallLogs)
}
