package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"cardshop-bot/internal/repository"
	"cardshop-bot/pkg/apierror"
	"cardshop-bot/pkg/response"
)

// webhookPayload is the gateway's payment notification body.
type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

// PaymentWebhook handles POST /webhook/payments. The gateway retries
// deliveries, so everything past body validation is acknowledged with 200
// to stop the retry loop; crediting stays idempotent on our side.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, apierror.BadRequest("invalid webhook payload"))
		return
	}
	if payload.Data.ID == "" {
		response.Error(w, apierror.BadRequest("missing charge id"))
		return
	}

	err := h.payments.Confirm(r.Context(), payload.Data.ID, payload.Data.Status)
	switch {
	case errors.Is(err, repository.ErrChargeNotFound):
		log.Printf("[Webhook] Unknown charge %s, acknowledging anyway", payload.Data.ID)
	case err != nil:
		log.Printf("[Webhook] Failed to confirm charge %s: %v", payload.Data.ID, err)
		response.Error(w, apierror.InternalError(""))
		return
	}

	response.OK(w, map[string]string{"received": payload.Data.ID})
}
