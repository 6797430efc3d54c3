package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/models"
)

// Filters are the ANDed ledger predicates. Zero values mean "no filter".
type Filters struct {
	Ticker string        // case-insensitive substring match
	Status models.Status // exact match
	Type   string        // exact match
	From   *time.Time    // inclusive entry-date lower bound
	To     *time.Time    // inclusive entry-date upper bound
	// PnLSign is "positive" or "negative". It only constrains CLOSED trades;
	// OPEN trades always pass.
	PnLSign string
}

// SortSpec is the display sort applied after the chronological pass.
type SortSpec struct {
	Key  string
	Desc bool
}

// PriceFunc resolves a live market price for a ticker. The second return
// value reports availability; lookups must never fail hard.
type PriceFunc func(ticker string) (decimal.Decimal, bool)

// BuildLedger produces the filtered, sorted ledger view.
//
// The running account value is computed over the filtered set in entry-date
// order, seeded at zero, before the display sort is applied, so reordering
// the view never changes any row's accountValue. Rows carry copies of the
// trades; the input slice is never mutated.
//
// CMP resolution for an OPEN row: the live feed price wins over a manual
// override; with neither, the CMP stays unset and the dependent metrics are
// nil. manual is keyed by upper-case ticker.
func BuildLedger(trades []models.Trade, f Filters, s SortSpec, live PriceFunc, manual map[string]decimal.Decimal) []models.LedgerRow {
	filtered := make([]models.Trade, 0, len(trades))
	for _, t := range trades {
		if matchesFilters(&t, f) {
			filtered = append(filtered, t)
		}
	}

	// Chronological pass: entry date ascending, id as a stable tie-breaker.
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].EntryDate.Equal(filtered[j].EntryDate) {
			return filtered[i].ID < filtered[j].ID
		}
		return filtered[i].EntryDate.Before(filtered[j].EntryDate)
	})

	rows := make([]models.LedgerRow, 0, len(filtered))
	accountValue := decimal.Zero
	for i := range filtered {
		t := filtered[i]
		cmp := resolveCMP(&t, live, manual)
		m := ComputeTradeMetrics(&t, cmp)
		if m.NetPnL != nil {
			accountValue = accountValue.Add(*m.NetPnL)
		}
		rows = append(rows, models.LedgerRow{
			Trade:        t,
			CMP:          cmp,
			TradeMetrics: m,
			AccountValue: accountValue,
		})
	}

	if s.Key != "" {
		sortRows(rows, s)
	}
	return rows
}

func matchesFilters(t *models.Trade, f Filters) bool {
	if f.Ticker != "" && !strings.Contains(strings.ToLower(t.Ticker), strings.ToLower(f.Ticker)) {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.From != nil && t.EntryDate.Before(*f.From) {
		return false
	}
	if f.To != nil && t.EntryDate.After(*f.To) {
		return false
	}
	if f.PnLSign != "" && t.Status == models.StatusClosed {
		m := ComputeTradeMetrics(t, nil)
		if m.NetPnL == nil {
			return false
		}
		switch f.PnLSign {
		case "positive":
			if !m.NetPnL.IsPositive() {
				return false
			}
		case "negative":
			if !m.NetPnL.IsNegative() {
				return false
			}
		}
	}
	return true
}

func resolveCMP(t *models.Trade, live PriceFunc, manual map[string]decimal.Decimal) *decimal.Decimal {
	if !t.IsOpen() {
		return nil
	}
	if live != nil {
		if p, ok := live(t.Ticker); ok {
			return &p
		}
	}
	if manual != nil {
		if p, ok := manual[strings.ToUpper(t.Ticker)]; ok {
			return &p
		}
	}
	return nil
}

// sortValue extracts the comparable value for a sort key. Numeric keys
// (including dates, compared by timestamp) come back as decimals, string
// keys lower-cased. null reports an absent value, which always sorts last.
type sortValue struct {
	null bool
	num  decimal.Decimal
	str  string
	text bool
}

func numValue(d *decimal.Decimal) sortValue {
	if d == nil {
		return sortValue{null: true}
	}
	return sortValue{num: *d}
}

func timeValue(t *time.Time) sortValue {
	if t == nil {
		return sortValue{null: true}
	}
	return sortValue{num: decimal.NewFromInt(t.UnixNano())}
}

func strValue(s *string) sortValue {
	if s == nil || *s == "" {
		return sortValue{null: true}
	}
	return sortValue{str: strings.ToLower(*s), text: true}
}

func rowSortValue(r *models.LedgerRow, key string) sortValue {
	switch key {
	case "id":
		return sortValue{num: decimal.NewFromInt(r.ID)}
	case "ticker":
		s := r.Ticker
		return strValue(&s)
	case "type":
		s := r.Type
		return strValue(&s)
	case "side":
		s := string(r.Side)
		return strValue(&s)
	case "status":
		s := string(r.Status)
		return strValue(&s)
	case "strategy":
		return strValue(r.Strategy)
	case "quantity":
		return sortValue{num: r.Quantity}
	case "buyPrice":
		return sortValue{num: r.BuyPrice}
	case "sellPrice":
		return numValue(r.SellPrice)
	case "entryDate":
		t := r.EntryDate
		return timeValue(&t)
	case "exitDate":
		return timeValue(r.ExitDate)
	case "fees":
		return sortValue{num: r.Fees}
	case "stopLoss":
		return numValue(r.StopLoss)
	case "targetPrice":
		return numValue(r.TargetPrice)
	case "leverage":
		return numValue(r.Leverage)
	case "cmp":
		return numValue(r.CMP)
	case "grossPnL":
		return numValue(r.GrossPnL)
	case "netPnL":
		return numValue(r.NetPnL)
	case "gainPct":
		return numValue(r.GainPct)
	case "rMultiple":
		return numValue(r.RMultiple)
	case "accountValue":
		return sortValue{num: r.AccountValue}
	case "holdingDays":
		return sortValue{num: decimal.NewFromInt(int64(r.HoldingDays))}
	default:
		return sortValue{null: true}
	}
}

func sortRows(rows []models.LedgerRow, s SortSpec) {
	sort.SliceStable(rows, func(i, j int) bool {
		a := rowSortValue(&rows[i], s.Key)
		b := rowSortValue(&rows[j], s.Key)

		// Absent values sort to the end regardless of direction.
		if a.null || b.null {
			return !a.null && b.null
		}

		var less bool
		if a.text {
			if a.str == b.str {
				return false
			}
			less = a.str < b.str
		} else {
			c := a.num.Cmp(b.num)
			if c == 0 {
				return false
			}
			less = c < 0
		}
		if s.Desc {
			return !less
		}
		return less
	})
}
