package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aurum-pay/aurum_pay/internal/ledger"
)

// RegisterLedgerRoutes wires ledger audit endpoints.
func RegisterLedgerRoutes(r fiber.Router, h *ledger.Handler) {
	r.Get("/ledger", h.List)
	r.Get("/ledger/export", h.Export)
}
