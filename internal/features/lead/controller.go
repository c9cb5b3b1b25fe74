package lead

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

type LeadController struct {
	Service LeadService
}

func NewLeadController(service LeadService) *LeadController {
	return &LeadController{
		Service: service,
	}
}

func (ctrl *LeadController) ReceiveWebhook(c *fiber.Ctx) error {
	var payload map[string]interface{}
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid payload",
		})
	}

	if err := ctrl.Service.IngestWebhook(c.UserContext(), c.Params("portal"), payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Lead received",
	})
}

func (ctrl *LeadController) ListLeads(c *fiber.Ctx) error {
	limit, _ := strconv.ParseInt(c.Query("limit", "100"), 10, 64)
	filter := ListFilter{
		Portal:    c.Query("portal"),
		Status:    c.Query("status"),
		VehicleID: c.Query("vehicle_id"),
		Limit:     limit,
	}

	leads, err := ctrl.Service.ListLeads(c.UserContext(), filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"data": leads,
	})
}

func (ctrl *LeadController) GetLead(c *fiber.Ctx) error {
	lead, err := ctrl.Service.GetLead(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if lead == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Lead not found",
		})
	}

	return c.JSON(fiber.Map{
		"data": lead,
	})
}

func (ctrl *LeadController) UpdateLeadStatus(c *fiber.Ctx) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil || body.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "status is required",
		})
	}

	if err := ctrl.Service.UpdateLeadStatus(c.UserContext(), c.Params("id"), body.Status); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Lead status updated successfully",
	})
}

func (ctrl *LeadController) PollPortal(c *fiber.Ctx) error {
	count, err := ctrl.Service.PollPortal(c.UserContext(), c.Params("portal"))
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Poll completed",
		"stored":  count,
	})
}

func (ctrl *LeadController) ExportLeads(c *fiber.Ctx) error {
	limit, _ := strconv.ParseInt(c.Query("limit", "0"), 10, 64)
	filter := ListFilter{
		Portal:    c.Query("portal"),
		Status:    c.Query("status"),
		VehicleID: c.Query("vehicle_id"),
		Limit:     limit,
	}

	data, filename, err := ctrl.Service.ExportLeads(c.UserContext(), filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(data)
}
