package system

import (
	"context"
	"time"

	"go-portal-sync/internal/database"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
)

type HealthApi struct {
	db *database.MongodbDB
}

func NewHealthApi(db *database.MongodbDB) *HealthApi {
	return &HealthApi{db: db}
}

// Setup registers health check routes
func (h *HealthApi) Setup(app *fiber.App) {
	app.Get("/health", h.HealthCheck)
	app.Get("/health/ready", h.ReadyCheck)
}

func (h *HealthApi) HealthCheck(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// ReadyCheck also pings Mongo so load balancers can tell a wedged
// instance from a healthy one.
func (h *HealthApi) ReadyCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := h.db.DB.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status": "ok",
	})
}
