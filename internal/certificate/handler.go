package certificate

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/aurum-pay/aurum_pay/internal/batch"
	"github.com/aurum-pay/aurum_pay/internal/ledger"
)

// Handler exposes certificate endpoints: listing issued certificates and deriving
// storage/ownership proofs on demand.
type Handler struct {
	store     Store
	generator *Generator
	batches   batch.Store
	ledger    ledger.Ledger
}

// NewHandler builds a certificate HTTP handler.
func NewHandler(store Store, generator *Generator, batches batch.Store, led ledger.Ledger) *Handler {
	return &Handler{store: store, generator: generator, batches: batches, ledger: led}
}

type certificateResponse struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	Fingerprint    string    `json:"fingerprint"`
	Content        any       `json:"content"`
	LedgerEntryIDs []string  `json:"ledger_entry_ids,omitempty"`
	BatchIDs       []string  `json:"batch_ids,omitempty"`
	Status         string    `json:"status"`
	IssuedAt       time.Time `json:"issued_at"`
}

func toResponse(cert Certificate) certificateResponse {
	return certificateResponse{
		ID:             cert.ID,
		Kind:           cert.Kind,
		Fingerprint:    cert.Fingerprint,
		Content:        cert.Content,
		LedgerEntryIDs: cert.LedgerEntryIDs,
		BatchIDs:       cert.BatchIDs,
		Status:         cert.Status,
		IssuedAt:       cert.IssuedAt,
	}
}

// List returns the user's issued certificates.
func (h *Handler) List(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	certs, err := h.store.ListByUser(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]certificateResponse, 0, len(certs))
	for _, cert := range certs {
		out = append(out, toResponse(cert))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"certificates": out})
}

// Get returns one certificate, scoped to the requesting user.
func (h *Handler) Get(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	cert, err := h.store.Get(c.UserContext(), c.Params("certId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "certificate not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if cert.UserID != userID {
		return fiber.NewError(http.StatusNotFound, "certificate not found")
	}
	return c.Status(http.StatusOK).JSON(toResponse(cert))
}

// DeriveStorage issues a storage proof for one of the user's lots.
func (h *Handler) DeriveStorage(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	b, err := h.batches.Get(c.UserContext(), c.Params("batchId"))
	if err != nil {
		if errors.Is(err, batch.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "batch not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if b.UserID != userID {
		return fiber.NewError(http.StatusNotFound, "batch not found")
	}

	cert, err := h.generator.StorageProof(b)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if err := h.store.Save(c.UserContext(), cert); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(cert))
}

// DeriveOwnership issues an ownership proof over the user's current holdings.
func (h *Handler) DeriveOwnership(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	ctx := c.UserContext()

	market, err := h.ledger.BalanceGrams(ctx, userID, ledger.KindMarket)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	fixed, err := h.ledger.BalanceGrams(ctx, userID, ledger.KindFixed)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	active, err := h.batches.ListActiveFIFO(ctx, userID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	cert, err := h.generator.OwnershipProof(userID, market, fixed, active)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if err := h.store.Save(ctx, cert); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(cert))
}
