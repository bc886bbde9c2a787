package ledger

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes ledger read endpoints for audit and export.
type Handler struct {
	ledger Ledger
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(ledger Ledger) *Handler {
	return &Handler{ledger: ledger}
}

type entryResponse struct {
	ID                  string         `json:"id"`
	Action              string         `json:"action"`
	WalletKind          string         `json:"wallet_kind"`
	GramsDelta          string         `json:"grams_delta"`
	USDValueAtEvent     string         `json:"usd_value_at_event"`
	PricePerGramAtEvent string         `json:"price_per_gram_at_event"`
	RelatedBatches      []BatchPortion `json:"related_batches,omitempty"`
	BalanceAfterGrams   string         `json:"balance_after_grams"`
	CreatedAt           time.Time      `json:"created_at"`
}

// List returns the authenticated user's ledger entries, oldest first.
func (h *Handler) List(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	entries, err := h.ledger.ListByUser(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ID:                  e.ID,
			Action:              e.Action,
			WalletKind:          e.WalletKind,
			GramsDelta:          e.GramsDelta.String(),
			USDValueAtEvent:     e.USDValueAtEvent.String(),
			PricePerGramAtEvent: e.PricePerGramAtEvent.String(),
			RelatedBatches:      e.RelatedBatches,
			BalanceAfterGrams:   e.BalanceAfterGrams.String(),
			CreatedAt:           e.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"entries": out})
}

// Export streams the user's ledger as CSV for audit download.
func (h *Handler) Export(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	entries, err := h.ledger.ListByUser(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"entry_id", "action", "wallet_kind", "grams_delta",
		"usd_value_at_event", "price_per_gram_at_event", "balance_after_grams", "created_at"})
	for _, e := range entries {
		_ = w.Write([]string{
			e.ID, e.Action, e.WalletKind, e.GramsDelta.String(),
			e.USDValueAtEvent.String(), e.PricePerGramAtEvent.String(),
			e.BalanceAfterGrams.String(), e.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="ledger.csv"`)
	return c.Status(http.StatusOK).Send(buf.Bytes())
}
