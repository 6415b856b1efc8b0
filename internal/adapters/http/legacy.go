package http

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
)

// LegacyEnvelope adds the "success" flag the original dashboard expects to
// every JSON object returned under /api.
func LegacyEnvelope() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		body := c.Response().Body()
		if len(body) == 0 || body[0] != '{' {
			return nil
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil
		}
		ok := c.Response().StatusCode() < fiber.StatusBadRequest
		obj["success"], _ = json.Marshal(ok)
		if msg, found := obj["message"]; found && !ok {
			obj["error"] = msg
		}
		return c.JSON(obj)
	}
}
