package analytics

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/models"
)

// profitFactorNoLosses is reported when there are winning trades but no
// losing ones, to avoid dividing by a zero loss sum while still signaling
// "no losers".
const profitFactorNoLosses = 99.9

// UncategorizedStrategy is the breakdown bucket for trades without a
// strategy label.
const UncategorizedStrategy = "Uncategorized"

// ComputeStats aggregates portfolio statistics over CLOSED trades, ordered
// by entry date ascending. Open positions are deliberately excluded
// everywhere, including the drawdown curve; unrealized P&L never moves the
// equity curve.
func ComputeStats(trades []models.Trade) models.Stats {
	closed := make([]models.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Status == models.StatusClosed {
			closed = append(closed, t)
		}
	}
	sort.SliceStable(closed, func(i, j int) bool {
		if closed[i].EntryDate.Equal(closed[j].EntryDate) {
			return closed[i].ID < closed[j].ID
		}
		return closed[i].EntryDate.Before(closed[j].EntryDate)
	})

	stats := models.Stats{
		EquityCurve:       []models.EquityPoint{},
		StrategyBreakdown: []models.StrategyPnL{},
	}

	cumulative := decimal.Zero
	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	byStrategy := make(map[string]decimal.Decimal)

	for i := range closed {
		t := closed[i]
		m := ComputeTradeMetrics(&t, nil)

		net := decimal.Zero
		if m.NetPnL != nil {
			net = *m.NetPnL
		}

		stats.TotalTrades++
		if net.IsPositive() {
			stats.WinningTrades++
			grossProfit = grossProfit.Add(net)
		} else if net.IsNegative() {
			stats.LosingTrades++
			grossLoss = grossLoss.Add(net.Abs())
		}

		cumulative = cumulative.Add(net)
		stats.EquityCurve = append(stats.EquityCurve, models.EquityPoint{
			Ticker:        t.Ticker,
			CumulativePnL: cumulative,
			RMultiple:     m.RMultiple,
		})

		bucket := UncategorizedStrategy
		if t.Strategy != nil && *t.Strategy != "" {
			bucket = *t.Strategy
		}
		byStrategy[bucket] = byStrategy[bucket].Add(net)
	}

	stats.NetPnL = cumulative

	if stats.TotalTrades > 0 {
		stats.WinRate = round2(float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100)
	}

	if grossLoss.IsZero() {
		if grossProfit.IsPositive() {
			stats.ProfitFactor = profitFactorNoLosses
		}
	} else {
		pf, _ := grossProfit.Div(grossLoss).Float64()
		stats.ProfitFactor = round2(pf)
	}

	stats.MaxDrawdown = maxDrawdown(stats.EquityCurve)

	for name, pnl := range byStrategy {
		stats.StrategyBreakdown = append(stats.StrategyBreakdown, models.StrategyPnL{
			Strategy: name,
			NetPnL:   pnl,
		})
	}
	sort.Slice(stats.StrategyBreakdown, func(i, j int) bool {
		return stats.StrategyBreakdown[i].Strategy < stats.StrategyBreakdown[j].Strategy
	})

	return stats
}

// maxDrawdown returns the largest peak-to-trough percentage decline of the
// cumulative P&L curve. The running peak only moves forward; drawdown at a
// point is (peak-current)/peak when the peak is positive, else zero.
func maxDrawdown(curve []models.EquityPoint) float64 {
	maxDD := 0.0
	peak := 0.0
	for i, p := range curve {
		v, _ := p.CumulativePnL.Float64()
		if i == 0 || v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return round2(maxDD)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
