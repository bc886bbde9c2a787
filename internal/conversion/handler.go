package conversion

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/aurum-pay/aurum_pay/internal/batch"
	"github.com/aurum-pay/aurum_pay/internal/ledger"
	"github.com/aurum-pay/aurum_pay/internal/pricing"
)

// Handler exposes conversion endpoints.
type Handler struct {
	engine *Engine
}

// NewHandler builds a conversion HTTP handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type amountRequest struct {
	Grams decimal.Decimal `json:"grams"`
}

type transferRequest struct {
	Grams     decimal.Decimal `json:"grams"`
	Direction string          `json:"direction"`
}

// Lock moves grams from the market wallet into a new fixed-wallet lot.
func (h *Handler) Lock(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	userID, _ := c.Locals("user_id").(string)

	res, err := h.engine.Lock(c.UserContext(), userID, req.Grams)
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"batch_id":         res.BatchID,
		"ledger_entry_ids": res.LedgerEntryIDs,
		"certificate_id":   res.CertificateID,
		"price_per_gram":   res.PricePerGram,
		"usd_value_locked": res.USDValueLocked,
	})
}

// Unlock converts fixed-wallet grams back to the market wallet.
func (h *Handler) Unlock(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	userID, _ := c.Locals("user_id").(string)

	res, err := h.engine.Unlock(c.UserContext(), userID, req.Grams)
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"grams_credited":   res.GramsCredited,
		"residual_usd":     res.ResidualUSD,
		"ledger_entry_ids": res.LedgerEntryIDs,
		"batches_consumed": res.BatchesConsumed,
		"certificate_id":   res.CertificateID,
		"price_per_gram":   res.PricePerGram,
		"usd_value_total":  res.USDValueTotal,
	})
}

// Transfer credits or debits the market wallet without price conversion.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	userID, _ := c.Locals("user_id").(string)

	res, err := h.engine.Transfer(c.UserContext(), userID, req.Grams, req.Direction)
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"ledger_entry_ids":    res.LedgerEntryIDs,
		"balance_after_grams": res.BalanceAfterGrams,
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidDirection):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return fiber.NewError(http.StatusBadRequest, "insufficient balance")
	case errors.Is(err, pricing.ErrPriceUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, "gold price unavailable, retry shortly")
	case errors.Is(err, batch.ErrOverConsumption), errors.Is(err, batch.ErrDepleted):
		return fiber.NewError(http.StatusInternalServerError, "conversion failed")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
