package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aurum-pay/aurum_pay/internal/batch"
	"github.com/aurum-pay/aurum_pay/internal/wallet"
)

// RegisterWalletRoutes wires wallet and lot read endpoints.
func RegisterWalletRoutes(r fiber.Router, wh *wallet.Handler, bh *batch.Handler) {
	r.Get("/wallets", wh.Balances)
	r.Get("/batches", bh.List)
	r.Get("/batches/:batchId", bh.Get)
}
