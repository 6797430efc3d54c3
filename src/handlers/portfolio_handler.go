// backend/src/handlers/portfolio_handler.go
package handlers

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/analytics"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/services"
	"github.com/username/tradefolio/backend/src/utils"
)

// cmpParamPrefix marks per-ticker manual CMP overrides in the ledger query
// string, e.g. ?cmp_NIFTY=22100.50. Overrides are request-scoped state:
// they live only for the duration of the call.
const cmpParamPrefix = "cmp_"

type PortfolioHandler struct {
	tradeService services.TradeService
}

func NewPortfolioHandler(tradeService services.TradeService) *PortfolioHandler {
	return &PortfolioHandler{tradeService: tradeService}
}

// HandleGetLedger returns the filtered, sorted ledger view.
func (h *PortfolioHandler) HandleGetLedger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := analytics.Filters{
		Ticker:  q.Get("ticker"),
		Type:    q.Get("type"),
		PnLSign: q.Get("pnl"),
	}
	switch strings.ToUpper(q.Get("status")) {
	case "OPEN":
		filters.Status = models.StatusOpen
	case "CLOSED":
		filters.Status = models.StatusClosed
	}
	if from, ok := parseDateParam(q.Get("from")); ok {
		filters.From = &from
	}
	if to, ok := parseDateParam(q.Get("to")); ok {
		filters.To = &to
	}

	sortSpec := analytics.SortSpec{
		Key:  q.Get("sortKey"),
		Desc: strings.EqualFold(q.Get("sortDir"), "desc"),
	}

	manualCMP := make(map[string]decimal.Decimal)
	for key, values := range q {
		if !strings.HasPrefix(key, cmpParamPrefix) || len(values) == 0 {
			continue
		}
		price, err := decimal.NewFromString(values[0])
		if err != nil {
			logger.FromContext(r.Context()).Warn("Ignoring malformed CMP override", "param", key, "value", values[0])
			continue
		}
		manualCMP[strings.ToUpper(strings.TrimPrefix(key, cmpParamPrefix))] = price
	}

	rows, err := h.tradeService.GetLedger(r.Context(), filters, sortSpec, manualCMP)
	if err != nil {
		respondServiceError(r.Context(), w, err)
		return
	}
	utils.SendJSON(w, rows, http.StatusOK)
}

// HandleGetCampaigns returns the parent/child campaign aggregation.
func (h *PortfolioHandler) HandleGetCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.tradeService.GetCampaigns(r.Context())
	if err != nil {
		respondServiceError(r.Context(), w, err)
		return
	}

	// Stable list output: campaigns ordered by root entry date.
	list := make([]*models.Campaign, 0, len(campaigns))
	for _, c := range campaigns {
		list = append(list, c)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Root.EntryDate.Equal(list[j].Root.EntryDate) {
			return list[i].Root.ID < list[j].Root.ID
		}
		return list[i].Root.EntryDate.Before(list[j].Root.EntryDate)
	})
	utils.SendJSON(w, list, http.StatusOK)
}

// HandleGetStats returns the portfolio statistics object.
func (h *PortfolioHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tradeService.GetStats(r.Context())
	if err != nil {
		respondServiceError(r.Context(), w, err)
		return
	}
	utils.SendJSON(w, stats, http.StatusOK)
}

// parseDateParam accepts RFC3339 timestamps as well as bare dates.
func parseDateParam(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
