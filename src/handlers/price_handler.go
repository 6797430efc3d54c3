// backend/src/handlers/price_handler.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/username/tradefolio/backend/src/services"
	"github.com/username/tradefolio/backend/src/utils"
)

type PriceHandler struct {
	priceService services.PriceService
}

func NewPriceHandler(priceService services.PriceService) *PriceHandler {
	return &PriceHandler{priceService: priceService}
}

// HandleGetPrices returns current quotes for a comma-separated ticker list.
// Unresolvable symbols come back with status UNAVAILABLE; the endpoint never
// fails because of a single bad symbol.
func (h *PriceHandler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("tickers")
	if strings.TrimSpace(raw) == "" {
		utils.SendJSONError(w, "tickers query parameter is required", http.StatusBadRequest)
		return
	}

	var tickers []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tickers = append(tickers, t)
		}
	}
	if len(tickers) == 0 {
		utils.SendJSONError(w, "tickers query parameter is required", http.StatusBadRequest)
		return
	}

	quotes := h.priceService.GetQuotes(r.Context(), tickers)
	utils.SendJSON(w, quotes, http.StatusOK)
}
