package wallet

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type balanceResponse struct {
	Kind           string    `json:"kind"`
	AvailableGrams string    `json:"available_grams"`
	ReservedGrams  string    `json:"reserved_grams"`
	USDValue       *string   `json:"usd_value,omitempty"`
	AsOf           time.Time `json:"as_of"`
}

// Balances returns both wallets for the authenticated user.
func (h *Handler) Balances(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	balances, err := h.service.Balances(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]balanceResponse, 0, len(balances))
	for _, b := range balances {
		resp := balanceResponse{
			Kind:           b.Kind,
			AvailableGrams: b.AvailableGrams.String(),
			ReservedGrams:  b.ReservedGrams.String(),
			AsOf:           b.AsOf,
		}
		if b.USDValueKnown {
			usd := b.USDValue.String()
			resp.USDValue = &usd
		}
		out = append(out, resp)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"wallets": out})
}
