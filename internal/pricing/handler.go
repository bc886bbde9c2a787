package pricing

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the current quote over HTTP.
type Handler struct {
	oracle Oracle
}

// NewHandler builds a pricing HTTP handler.
func NewHandler(oracle Oracle) *Handler {
	return &Handler{oracle: oracle}
}

// Current returns the live price per gram.
func (h *Handler) Current(c *fiber.Ctx) error {
	quote, err := h.oracle.Current(c.UserContext())
	if err != nil {
		if errors.Is(err, ErrPriceUnavailable) {
			return fiber.NewError(http.StatusServiceUnavailable, "gold price unavailable")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"price_per_gram": quote.PricePerGram,
		"as_of":          quote.AsOf,
		"source":         quote.Source,
	})
}
