package models

import "github.com/shopspring/decimal"

// TradeMetrics holds the derived per-trade figures. Every field except
// HoldingDays is optional: a missing sell price, current price or stop loss
// propagates as nil, never as an error.
type TradeMetrics struct {
	EffectivePrice *decimal.Decimal `json:"effectivePrice,omitempty"`
	GrossPnL       *decimal.Decimal `json:"grossPnL,omitempty"`
	NetPnL         *decimal.Decimal `json:"netPnL,omitempty"`
	GainPct        *decimal.Decimal `json:"gainPct,omitempty"`
	RiskPerTrade   *decimal.Decimal `json:"riskPerTrade,omitempty"`
	StopLossPct    *decimal.Decimal `json:"stopLossPct,omitempty"`
	RMultiple      *decimal.Decimal `json:"rMultiple,omitempty"`
	HoldingDays    int              `json:"holdingDays"`
}

// Campaign is the derived grouping of one root trade and its partial-exit
// children. It is recomputed on every read and never persisted.
type Campaign struct {
	Root             Trade           `json:"root"`
	Children         []Trade         `json:"children"`
	TotalRealizedPnL decimal.Decimal `json:"totalRealizedPnL"`
	OriginalQuantity decimal.Decimal `json:"originalQuantity"`
	// Orphaned marks a child whose root was fully closed and removed; it is
	// promoted to a self-rooted campaign for display.
	Orphaned bool `json:"orphaned,omitempty"`
}

// LedgerRow is one row of the chronological ledger view: the raw trade, its
// resolved current market price, the derived metrics and the running account
// value at that point of the (filtered) history.
type LedgerRow struct {
	Trade
	CMP *decimal.Decimal `json:"cmp,omitempty"`
	TradeMetrics
	AccountValue decimal.Decimal `json:"accountValue"`
}

// EquityPoint is one sample of the closed-trade equity curve. RMultiple is
// the trade's standalone R-multiple, independent of the cumulative curve.
type EquityPoint struct {
	Ticker        string           `json:"ticker"`
	CumulativePnL decimal.Decimal  `json:"cumulativePnL"`
	RMultiple     *decimal.Decimal `json:"rMultiple,omitempty"`
}

// StrategyPnL is the net P&L bucket for one strategy label.
type StrategyPnL struct {
	Strategy string          `json:"strategy"`
	NetPnL   decimal.Decimal `json:"netPnL"`
}

// Stats is the portfolio-level aggregate over closed trades.
type Stats struct {
	NetPnL            decimal.Decimal `json:"netPnL"`
	TotalTrades       int             `json:"totalTrades"`
	WinningTrades     int             `json:"winningTrades"`
	LosingTrades      int             `json:"losingTrades"`
	WinRate           float64         `json:"winRate"`
	ProfitFactor      float64         `json:"profitFactor"`
	MaxDrawdown       float64         `json:"maxDrawdown"`
	EquityCurve       []EquityPoint   `json:"equityCurve"`
	StrategyBreakdown []StrategyPnL   `json:"strategyBreakdown"`
}
