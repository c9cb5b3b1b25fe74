package credential

import (
	"github.com/gofiber/fiber/v2"
)

type CredentialController struct {
	Service CredentialService
}

func NewCredentialController(service CredentialService) *CredentialController {
	return &CredentialController{
		Service: service,
	}
}

func (ctrl *CredentialController) ListStatuses(c *fiber.Ctx) error {
	statuses, err := ctrl.Service.GetStatuses(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"data": statuses,
	})
}

func (ctrl *CredentialController) SaveCredential(c *fiber.Ctx) error {
	var cred PortalCredential
	if err := c.BodyParser(&cred); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	cred.Portal = c.Params("portal")

	if err := ctrl.Service.SaveCredential(c.UserContext(), &cred); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Credentials saved successfully",
	})
}

func (ctrl *CredentialController) GetAuthorizationURL(c *fiber.Ctx) error {
	url, err := ctrl.Service.AuthorizationURL(c.UserContext(), c.Params("portal"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{"authorization_url": url},
	})
}

func (ctrl *CredentialController) HandleCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing authorization code",
		})
	}

	if err := ctrl.Service.HandleCallback(c.UserContext(), c.Params("portal"), code); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Authorization completed successfully",
	})
}

func (ctrl *CredentialController) RefreshToken(c *fiber.Ctx) error {
	if err := ctrl.Service.RefreshPortal(c.UserContext(), c.Params("portal")); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Token refreshed successfully",
	})
}
