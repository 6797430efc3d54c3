// Package analytics holds the pure computation core of the journal: per-trade
// metrics, campaign aggregation, the running ledger and portfolio statistics.
// Everything here is side-effect free and safe for concurrent use.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/models"
)

var hundred = decimal.NewFromInt(100)

// ComputeTradeMetrics derives the P&L and risk figures for a single trade.
//
// currentPrice is an optional market-price override used to project
// unrealized P&L for OPEN trades; it is ignored for CLOSED trades, which
// always settle against their stored sell price. Missing optional inputs
// (sell price, current price, stop loss) propagate as nil fields.
func ComputeTradeMetrics(t *models.Trade, currentPrice *decimal.Decimal) models.TradeMetrics {
	return computeTradeMetricsAt(t, currentPrice, time.Now())
}

func computeTradeMetricsAt(t *models.Trade, currentPrice *decimal.Decimal, now time.Time) models.TradeMetrics {
	m := models.TradeMetrics{}

	var effective *decimal.Decimal
	if t.Status == models.StatusClosed {
		effective = t.SellPrice
	} else {
		effective = currentPrice
	}
	if effective != nil {
		v := *effective
		m.EffectivePrice = &v
	}

	if m.EffectivePrice != nil {
		diff := m.EffectivePrice.Sub(t.BuyPrice)
		if t.Side == models.SideShort {
			diff = diff.Neg()
		}
		gross := diff.Mul(t.Quantity)
		net := gross.Sub(t.Fees)
		m.GrossPnL = &gross
		m.NetPnL = &net

		entryValue := t.BuyPrice.Mul(t.Quantity)
		if !entryValue.IsZero() {
			pct := net.Div(entryValue).Mul(hundred)
			m.GainPct = &pct
		}
	}

	if t.StopLoss != nil {
		rpt := t.BuyPrice.Sub(*t.StopLoss).Abs().Mul(t.Quantity)
		m.RiskPerTrade = &rpt

		if !t.BuyPrice.IsZero() {
			slPct := t.BuyPrice.Sub(*t.StopLoss).Div(t.BuyPrice).Mul(hundred)
			m.StopLossPct = &slPct
		}

		if m.NetPnL != nil && rpt.IsPositive() {
			r := m.NetPnL.Div(rpt)
			m.RMultiple = &r
		}
	}

	end := now
	if t.ExitDate != nil {
		end = *t.ExitDate
	}
	m.HoldingDays = int(end.Sub(t.EntryDate).Hours() / 24)

	return m
}
