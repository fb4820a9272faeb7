package handler

import (
	"encoding/json"
	"net/http"

	"cardshop-bot/internal/command"
	"cardshop-bot/pkg/apierror"
	"cardshop-bot/pkg/response"
)

// CommandHandler exposes the bot's command surface over HTTP so any
// messaging front end can drive it.
type CommandHandler struct {
	dispatcher *command.Dispatcher
}

// NewCommandHandler creates a command handler.
func NewCommandHandler(dispatcher *command.Dispatcher) *CommandHandler {
	return &CommandHandler{dispatcher: dispatcher}
}

type commandRequest struct {
	UserID    int64    `json:"user_id"`
	ChatID    int64    `json:"chat_id"`
	Command   string   `json:"command"`
	Args      []string `json:"args"`
	SessionID int64    `json:"session_id,omitempty"`
	Direction string   `json:"direction,omitempty"`
}

type commandResponse struct {
	Reply string `json:"reply"`
}

// Execute handles POST /api/v1/commands. It runs one bot command for the
// given user and returns the text reply the front end should display.
func (h *CommandHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	if req.UserID == 0 {
		response.Error(w, apierror.ValidationError("missing user", apierror.FieldError{
			Field:   "user_id",
			Message: "must be set",
		}))
		return
	}
	if req.ChatID == 0 {
		req.ChatID = req.UserID
	}

	cmdReq := command.Request{UserID: req.UserID, ChatID: req.ChatID, Args: req.Args}

	var reply string
	switch req.Command {
	case "reload":
		reply = h.dispatcher.Reload(r.Context(), cmdReq)
	case "saldo":
		reply = h.dispatcher.Balance(r.Context(), cmdReq)
	case "pix":
		reply = h.dispatcher.Fund(r.Context(), cmdReq)
	case "inicial":
		reply = h.dispatcher.SearchPrefix(r.Context(), cmdReq)
	case "tipo":
		reply = h.dispatcher.SearchType(r.Context(), cmdReq)
	case "navigate":
		reply = h.dispatcher.Navigate(r.Context(), cmdReq, req.SessionID, req.Direction)
	case "buy":
		reply = h.dispatcher.Buy(r.Context(), cmdReq, req.SessionID)
	case "historico":
		reply = h.dispatcher.History(r.Context(), cmdReq)
	case "vendidos":
		reply = h.dispatcher.Sold(r.Context(), cmdReq)
	default:
		response.Error(w, apierror.BadRequest("unknown command"))
		return
	}

	response.OK(w, commandResponse{Reply: reply})
}
