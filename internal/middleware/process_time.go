package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HeaderProcessTime reports how long the server spent on a request, in seconds.
const HeaderProcessTime = "X-Process-Time"

// ProcessTime sets the X-Process-Time header on every response, including
// ones produced by the error handler.
func ProcessTime() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		c.Set(HeaderProcessTime, strconv.FormatFloat(time.Since(start).Seconds(), 'f', 6, 64))
		return nil
	}
}
