package calllog

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

type CallLogController struct {
	Service CallLogService
}

func NewCallLogController(service CallLogService) *CallLogController {
	return &CallLogController{
		Service: service,
	}
}

func (ctrl *CallLogController) ListCallLogs(c *fiber.Ctx) error {
	limit, _ := strconv.ParseInt(c.Query("limit", "100"), 10, 64)

	filter := ListFilter{
		Portal:    c.Query("portal"),
		VehicleID: c.Query("vehicle_id"),
		Result:    c.Query("result"),
		Limit:     limit,
	}

	entries, err := ctrl.Service.ListCallLogs(c.UserContext(), filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"data": entries,
	})
}
