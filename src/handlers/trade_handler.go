// backend/src/handlers/trade_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/security/validation"
	"github.com/username/tradefolio/backend/src/services"
	"github.com/username/tradefolio/backend/src/store"
	"github.com/username/tradefolio/backend/src/utils"
)

type TradeHandler struct {
	tradeService services.TradeService
}

func NewTradeHandler(tradeService services.TradeService) *TradeHandler {
	return &TradeHandler{tradeService: tradeService}
}

func (h *TradeHandler) HandleCreateTrade(w http.ResponseWriter, r *http.Request) {
	var input services.TradeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	trade, err := h.tradeService.CreateTrade(r.Context(), input)
	if err != nil {
		respondServiceError(r.Context(), w, err)
		return
	}
	utils.SendJSON(w, trade, http.StatusCreated)
}

func (h *TradeHandler) HandleGetTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := tradeIDFromURL(w, r)
	if !ok {
		return
	}
	trade, err := h.tradeService.GetTrade(r.Context(), id)
	if err != nil {
		respondServiceError(r.Context(), w, err)
		return
	}
	utils.SendJSON(w, trade, http.StatusOK)
}

func (h *TradeHandler) HandleUpdateTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := tradeIDFromURL(w, r)
	if !ok {
		return
	}

	var patch services.TradePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	trade, err := h.tradeService.UpdateTrade(r.Context(), id, patch)
	if err != nil {
		respondServiceError(r.Context(), w, err)
		return
	}
	utils.SendJSON(w, trade, http.StatusOK)
}

func (h *TradeHandler) HandleDeleteTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := tradeIDFromURL(w, r)
	if !ok {
		return
	}
	if err := h.tradeService.DeleteTrade(r.Context(), id); err != nil {
		respondServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TradeHandler) HandleCloseTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := tradeIDFromURL(w, r)
	if !ok {
		return
	}

	var req models.CloseTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	child, err := h.tradeService.CloseTrade(r.Context(), id, req)
	if err != nil {
		respondServiceError(r.Context(), w, err)
		return
	}
	utils.SendJSON(w, child, http.StatusCreated)
}

func tradeIDFromURL(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		utils.SendJSONError(w, "Invalid trade id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// respondServiceError maps service errors to HTTP statuses: validation
// failures are 400 with the field-level message, missing trades 404, and
// anything else a logged generic 500.
func respondServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, validation.ErrValidationFailed):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrTradeNotFound):
		utils.SendJSONError(w, "Trade not found", http.StatusNotFound)
	default:
		logger.FromContext(ctx).Error("Unexpected service error", "error", err)
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}
