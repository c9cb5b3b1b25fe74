package sync

import (
	"strconv"

	"go-portal-sync/internal/portals"

	"github.com/gofiber/fiber/v2"
)

type SyncController struct {
	Service  SyncService
	Registry *portals.Registry
}

func NewSyncController(service SyncService, registry *portals.Registry) *SyncController {
	return &SyncController{
		Service:  service,
		Registry: registry,
	}
}

func (ctrl *SyncController) ListPortals(c *fiber.Ctx) error {
	type portalInfo struct {
		Name         string               `json:"name"`
		Capabilities portals.Capabilities `json:"capabilities"`
	}

	infos := make([]portalInfo, 0)
	for _, name := range ctrl.Registry.Names() {
		adapter, err := ctrl.Registry.Get(name)
		if err != nil {
			continue
		}
		infos = append(infos, portalInfo{Name: name, Capabilities: adapter.Capabilities()})
	}

	return c.JSON(fiber.Map{
		"data": infos,
	})
}

func (ctrl *SyncController) TestPortal(c *fiber.Ctx) error {
	portal := c.Params("portal")
	if err := ctrl.Service.TestPortal(c.UserContext(), portal); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"portal": portal,
			"ok":     false,
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"portal": portal,
		"ok":     true,
	})
}

func (ctrl *SyncController) PublishAll(c *fiber.Ctx) error {
	published, failed := ctrl.Service.PublishAll(c.UserContext())

	return c.JSON(fiber.Map{
		"message":   "Publish all completed",
		"published": published,
		"failed":    failed,
	})
}

func (ctrl *SyncController) ListSyncRecords(c *fiber.Ctx) error {
	limit, _ := strconv.ParseInt(c.Query("limit", "100"), 10, 64)

	records, err := ctrl.Service.ListRecords(c.UserContext(), c.Params("portal"), c.Query("status"), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"data": records,
	})
}

func (ctrl *SyncController) ListPublished(c *fiber.Ctx) error {
	pageNumber, _ := strconv.Atoi(c.Query("page", "0"))
	pageSize, _ := strconv.Atoi(c.Query("size", "0"))
	page := portals.Page{
		Token:  c.Query("page_token"),
		Number: pageNumber,
		Size:   pageSize,
	}

	listings, next, err := ctrl.Service.GetPublished(c.UserContext(), c.Params("portal"), page)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"data":      listings,
		"next_page": next,
	})
}

func (ctrl *SyncController) PublishVehicle(c *fiber.Ctx) error {
	var body struct {
		VehicleID string `json:"vehicle_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.VehicleID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "vehicle_id is required",
		})
	}

	result, err := ctrl.Service.SyncVehicle(c.UserContext(), body.VehicleID, c.Params("portal"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": result.Message,
		"data":    result.Record,
		"skipped": result.Skipped,
	})
}

func (ctrl *SyncController) PublishVehicleAll(c *fiber.Ctx) error {
	results := ctrl.Service.SyncVehicleAll(c.UserContext(), c.Params("vehicleId"))

	return c.JSON(fiber.Map{
		"data": results,
	})
}

func (ctrl *SyncController) UpdateVehicle(c *fiber.Ctx) error {
	result, err := ctrl.Service.SyncVehicle(c.UserContext(), c.Params("vehicleId"), c.Params("portal"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": result.Message,
		"data":    result.Record,
		"skipped": result.Skipped,
	})
}

func (ctrl *SyncController) RemoveVehicle(c *fiber.Ctx) error {
	if err := ctrl.Service.RemoveVehicle(c.UserContext(), c.Params("vehicleId"), c.Params("portal")); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Vehicle removed successfully",
	})
}

func (ctrl *SyncController) UpdateVehicleStatus(c *fiber.Ctx) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil || body.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "status is required",
		})
	}

	err := ctrl.Service.UpdateVehicleStatus(c.UserContext(), c.Params("vehicleId"), c.Params("portal"), body.Status)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Vehicle status updated successfully",
	})
}
