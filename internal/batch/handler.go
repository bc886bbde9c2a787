package batch

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes read endpoints over a user's cost-basis lots.
type Handler struct {
	store Store
}

// NewHandler builds a batch HTTP handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type batchResponse struct {
	ID               string    `json:"id"`
	GramsOriginal    string    `json:"grams_original"`
	GramsRemaining   string    `json:"grams_remaining"`
	LockPricePerGram string    `json:"lock_price_per_gram"`
	USDValueReserved string    `json:"usd_value_reserved"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

func toResponse(b Batch) batchResponse {
	return batchResponse{
		ID:               b.ID,
		GramsOriginal:    b.GramsOriginal.String(),
		GramsRemaining:   b.GramsRemaining.String(),
		LockPricePerGram: b.LockPricePerGram.String(),
		USDValueReserved: b.USDValueReserved.String(),
		Status:           b.Status,
		CreatedAt:        b.CreatedAt,
	}
}

// List returns all of the user's lots, oldest first.
func (h *Handler) List(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	lots, err := h.store.ListByUser(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]batchResponse, 0, len(lots))
	for _, b := range lots {
		out = append(out, toResponse(b))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"batches": out})
}

// Get returns one lot, scoped to the requesting user.
func (h *Handler) Get(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	b, err := h.store.Get(c.UserContext(), c.Params("batchId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "batch not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if b.UserID != userID {
		return fiber.NewError(http.StatusNotFound, "batch not found")
	}
	return c.Status(http.StatusOK).JSON(toResponse(b))
}
