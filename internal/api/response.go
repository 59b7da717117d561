package api

import "github.com/gofiber/fiber/v2"

// Wire envelope: {success, data} on the happy path, {success, error} plus
// optional details/retryAfter otherwise.

func respondData(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func respondError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "error": msg})
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func respondValidation(c *fiber.Ctx, details []fieldError) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   "Validation failed",
		"details": details,
	})
}
