package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bravozulu-films/bzf/internal/billing"
	"github.com/bravozulu-films/bzf/internal/notify"
)

// GET /api/billing/packages
func (s *Server) handlePackages(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"packages": billing.Packages})
}

// handleBalance returns the caller's credit balance.
// GET /api/billing/balance
func (s *Server) handleBalance(c echo.Context) error {
	balance, err := s.billing.Balance(c.Request().Context(), callerID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"balance": balance})
}

// handleTransactions lists the caller's ledger, newest first.
// GET /api/billing/transactions?limit=&offset=
func (s *Server) handleTransactions(c echo.Context) error {
	p, ok := page(c)
	if !ok {
		return badRequest(c, "Invalid limit or offset")
	}
	txs, err := s.billing.Transactions(c.Request().Context(), callerID(c), p)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"transactions": txs})
}

// handlePurchase buys a credit package through the payment provider.
// POST /api/billing/purchase
func (s *Server) handlePurchase(c echo.Context) error {
	var req struct {
		Package string `json:"package"`
	}
	if !bind(c, &req) {
		return invalidBody(c)
	}
	if _, err := billing.FindPackage(req.Package); err != nil {
		return s.fail(c, err)
	}

	ctx := c.Request().Context()
	id := callerID(c)
	tx, err := s.billing.Purchase(ctx, id, req.Package)
	if err != nil {
		return s.fail(c, err)
	}
	balance, err := s.billing.Balance(ctx, id)
	if err != nil {
		return s.fail(c, err)
	}
	s.log.Infow("credits purchased", "user_id", id, "package", req.Package, "reference", tx.Reference)
	return c.JSON(http.StatusCreated, map[string]any{
		"transaction": tx,
		"balance":     balance,
	})
}

// handleGrantCredits credits a member on an admin's behalf and notifies
// them.
// POST /api/admin/credits
func (s *Server) handleGrantCredits(c echo.Context) error {
	var req struct {
		UserID int64  `json:"userId"`
		Amount int64  `json:"amount"`
		Note   string `json:"note"`
	}
	if !bind(c, &req) {
		return invalidBody(c)
	}
	if req.UserID <= 0 {
		return badRequest(c, "userId is required")
	}
	if req.Amount <= 0 || req.Amount > billing.MaxGrant {
		return badRequest(c, fmt.Sprintf("amount must be between 1 and %d", billing.MaxGrant))
	}

	ctx := c.Request().Context()
	tx, err := s.billing.Grant(ctx, req.UserID, req.Amount, req.Note)
	if err != nil {
		return s.fail(c, err)
	}
	s.log.Infow("credits granted", "user_id", req.UserID, "amount", req.Amount, "admin_id", callerID(c))
	s.notify(ctx, req.UserID, notify.KindCredits,
		fmt.Sprintf("You received %d credits", req.Amount), tx.Note, "/billing")
	return c.JSON(http.StatusCreated, tx)
}
