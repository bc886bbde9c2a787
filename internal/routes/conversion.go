package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aurum-pay/aurum_pay/internal/conversion"
)

// RegisterConversionRoutes wires the balance-mutating endpoints.
func RegisterConversionRoutes(r fiber.Router, h *conversion.Handler) {
	r.Post("/conversions/lock", h.Lock)
	r.Post("/conversions/unlock", h.Unlock)
	r.Post("/transfers", h.Transfer)
}
