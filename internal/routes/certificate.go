package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aurum-pay/aurum_pay/internal/certificate"
)

// RegisterCertificateRoutes wires certificate listing and on-demand proofs.
func RegisterCertificateRoutes(r fiber.Router, h *certificate.Handler) {
	r.Get("/certificates", h.List)
	r.Get("/certificates/:certId", h.Get)
	r.Post("/certificates/storage/:batchId", h.DeriveStorage)
	r.Post("/certificates/ownership", h.DeriveOwnership)
}
