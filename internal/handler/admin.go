package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"cardshop-bot/pkg/apierror"
	"cardshop-bot/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// Reload handles POST /api/v1/admin/reload. It re-reads the catalog file
// and re-applies the sold set.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.shop.Reload(r.Context()); err != nil {
		log.Printf("[Admin] Catalog reload failed: %v", err)
		response.Error(w, apierror.InternalError("catalog reload failed"))
		return
	}

	response.OK(w, map[string]interface{}{
		"reloaded": true,
		"types":    len(h.shop.Catalog().TypesSorted()),
	})
}

// SoldReport handles GET /api/v1/admin/sold.
func (h *Handler) SoldReport(w http.ResponseWriter, r *http.Request) {
	groups, err := h.shop.SoldReport(r.Context())
	if err != nil {
		log.Printf("[Admin] Sold report failed: %v", err)
		response.Error(w, apierror.InternalError("sold report failed"))
		return
	}

	type soldGroup struct {
		Group string   `json:"group"`
		Codes []string `json:"codes"`
	}
	out := make([]soldGroup, len(groups))
	total := 0
	for i, g := range groups {
		out[i] = soldGroup{Group: g.Key, Codes: g.Codes}
		total += len(g.Codes)
	}

	response.OK(w, map[string]interface{}{
		"total":  total,
		"groups": out,
	})
}

// Stats handles GET /api/v1/admin/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	types := h.shop.Catalog().TypesSorted()

	available := 0
	for _, tp := range types {
		for _, sub := range h.shop.Catalog().Subtypes(tp.Name) {
			available += len(h.shop.Catalog().Codes(tp.Name, sub))
		}
	}

	groups, err := h.shop.SoldReport(r.Context())
	if err != nil {
		log.Printf("[Admin] Stats failed: %v", err)
		response.Error(w, apierror.InternalError("stats query failed"))
		return
	}
	sold := 0
	for _, g := range groups {
		sold += len(g.Codes)
	}

	response.OK(w, map[string]interface{}{
		"types":           len(types),
		"available_items": available,
		"sold_codes":      sold,
		"uptime_seconds":  int64(time.Since(StartTime).Seconds()),
	})
}

type setBalanceRequest struct {
	Amount string `json:"amount"`
}

// SetBalance handles PUT /api/v1/admin/users/{userID}/balance.
func (h *Handler) SetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		response.Error(w, apierror.BadRequest("invalid user id"))
		return
	}

	var req setBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(w, apierror.ValidationError("invalid amount", apierror.FieldError{
			Field:   "amount",
			Message: "must be a decimal number",
		}))
		return
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	if err := h.ledger.SetBalance(r.Context(), userID, amount); err != nil {
		log.Printf("[Admin] SetBalance failed for user %d: %v", userID, err)
		response.Error(w, apierror.InternalError("balance update failed"))
		return
	}

	response.OK(w, map[string]interface{}{
		"user_id": userID,
		"balance": amount.StringFixed(2),
	})
}

// GetBalance handles GET /api/v1/admin/users/{userID}/balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		response.Error(w, apierror.BadRequest("invalid user id"))
		return
	}

	balance, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		log.Printf("[Admin] Balance query failed for user %d: %v", userID, err)
		response.Error(w, apierror.InternalError("balance query failed"))
		return
	}

	response.OK(w, map[string]interface{}{
		"user_id": userID,
		"balance": balance.StringFixed(2),
	})
}
