package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade. It drives the P&L sign convention:
// LONG profit = (exit - entry) * qty, SHORT profit = (entry - exit) * qty.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Status is the lifecycle state of a trade record.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Conventional trade categories. The type field is free-form, so custom
// categories are accepted as-is.
const (
	TypeFutures         = "FUTURES"
	TypeEquityIntraday  = "EQUITY_INTRADAY"
	TypeLongTermHolding = "LONG_TERM_HOLDING"
)

// Trade is the single persisted entity of the journal.
//
// A trade with ParentTradeID == nil is a root (the original entry of a
// position). A non-nil ParentTradeID marks a partial-exit child record
// belonging to the campaign rooted at that id. The link is a weak
// back-reference: the referenced root may no longer exist after a full close.
type Trade struct {
	ID                int64            `json:"id"`
	Ticker            string           `json:"ticker"`
	Type              string           `json:"type"`
	Side              Side             `json:"side"`
	Status            Status           `json:"status"`
	Quantity          decimal.Decimal  `json:"quantity"`
	BuyPrice          decimal.Decimal  `json:"buyPrice"`
	SellPrice         *decimal.Decimal `json:"sellPrice,omitempty"`
	EntryDate         time.Time        `json:"entryDate"`
	ExitDate          *time.Time       `json:"exitDate,omitempty"`
	Fees              decimal.Decimal  `json:"fees"`
	StopLoss          *decimal.Decimal `json:"stopLoss,omitempty"`
	TargetPrice       *decimal.Decimal `json:"targetPrice,omitempty"`
	Leverage          *decimal.Decimal `json:"leverage,omitempty"`
	Strategy          *string          `json:"strategy,omitempty"`
	Notes             *string          `json:"notes,omitempty"`
	ChartURL          *string          `json:"chartUrl,omitempty"`
	Sector            *string          `json:"sector,omitempty"`            // investment-only
	FundamentalReason *string          `json:"fundamentalReason,omitempty"` // investment-only
	ParentTradeID     *int64           `json:"parentTradeId,omitempty"`
}

// IsOpen reports whether the trade is still open.
func (t *Trade) IsOpen() bool {
	return t.Status == StatusOpen
}

// IsRoot reports whether the trade carries no parent back-reference.
func (t *Trade) IsRoot() bool {
	return t.ParentTradeID == nil
}

// ChronoDate is the timestamp used when ordering children inside a campaign:
// the exit date when present, the entry date otherwise.
func (t *Trade) ChronoDate() time.Time {
	if t.ExitDate != nil {
		return *t.ExitDate
	}
	return t.EntryDate
}

// CloseTradeRequest carries the parameters of a close/split operation
// against an open root trade.
type CloseTradeRequest struct {
	Quantity  decimal.Decimal `json:"quantity"`
	SellPrice decimal.Decimal `json:"sellPrice"`
	ExitDate  time.Time       `json:"exitDate"`
	Fees      decimal.Decimal `json:"fees"`
}
