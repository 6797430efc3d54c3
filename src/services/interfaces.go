// backend/src/services/interfaces.go
package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/analytics"
	"github.com/username/tradefolio/backend/src/models"
)

// TradeInput carries the caller-supplied fields of a new trade. Decimal
// fields are decoded straight from the request body, so string and numeric
// JSON values both keep their exact textual precision.
type TradeInput struct {
	Ticker            string           `json:"ticker"`
	Type              string           `json:"type"`
	Side              models.Side      `json:"side"`
	Quantity          decimal.Decimal  `json:"quantity"`
	BuyPrice          decimal.Decimal  `json:"buyPrice"`
	EntryDate         time.Time        `json:"entryDate"`
	Fees              decimal.Decimal  `json:"fees"`
	StopLoss          *decimal.Decimal `json:"stopLoss,omitempty"`
	TargetPrice       *decimal.Decimal `json:"targetPrice,omitempty"`
	Leverage          *decimal.Decimal `json:"leverage,omitempty"`
	Strategy          *string          `json:"strategy,omitempty"`
	Notes             *string          `json:"notes,omitempty"`
	ChartURL          *string          `json:"chartUrl,omitempty"`
	Sector            *string          `json:"sector,omitempty"`
	FundamentalReason *string          `json:"fundamentalReason,omitempty"`
}

// TradePatch is a partial update: nil fields stay untouched.
type TradePatch struct {
	Ticker            *string          `json:"ticker,omitempty"`
	Type              *string          `json:"type,omitempty"`
	Side              *models.Side     `json:"side,omitempty"`
	Status            *models.Status   `json:"status,omitempty"`
	Quantity          *decimal.Decimal `json:"quantity,omitempty"`
	BuyPrice          *decimal.Decimal `json:"buyPrice,omitempty"`
	SellPrice         *decimal.Decimal `json:"sellPrice,omitempty"`
	EntryDate         *time.Time       `json:"entryDate,omitempty"`
	ExitDate          *time.Time       `json:"exitDate,omitempty"`
	Fees              *decimal.Decimal `json:"fees,omitempty"`
	StopLoss          *decimal.Decimal `json:"stopLoss,omitempty"`
	TargetPrice       *decimal.Decimal `json:"targetPrice,omitempty"`
	Leverage          *decimal.Decimal `json:"leverage,omitempty"`
	Strategy          *string          `json:"strategy,omitempty"`
	Notes             *string          `json:"notes,omitempty"`
	ChartURL          *string          `json:"chartUrl,omitempty"`
	Sector            *string          `json:"sector,omitempty"`
	FundamentalReason *string          `json:"fundamentalReason,omitempty"`
}

// TradeService is the application core: CRUD over the trade store, the
// close/split operation and the derived read models (ledger, campaigns,
// stats).
type TradeService interface {
	ListTrades(ctx context.Context) ([]models.Trade, error)
	GetTrade(ctx context.Context, id int64) (*models.Trade, error)
	CreateTrade(ctx context.Context, input TradeInput) (*models.Trade, error)
	UpdateTrade(ctx context.Context, id int64, patch TradePatch) (*models.Trade, error)
	DeleteTrade(ctx context.Context, id int64) error

	// CloseTrade fully closes or splits an open root trade. It returns the
	// newly created CLOSED child record.
	CloseTrade(ctx context.Context, id int64, req models.CloseTradeRequest) (*models.Trade, error)

	GetCampaigns(ctx context.Context) (map[int64]*models.Campaign, error)
	GetLedger(ctx context.Context, f analytics.Filters, s analytics.SortSpec, manualCMP map[string]decimal.Decimal) ([]models.LedgerRow, error)
	GetStats(ctx context.Context) (models.Stats, error)
}

// Quote statuses mirror the price feed contract: lookups degrade to
// UNAVAILABLE instead of failing.
const (
	QuoteStatusOK          = "OK"
	QuoteStatusUnavailable = "UNAVAILABLE"
)

// QuoteInfo is one resolved market quote.
type QuoteInfo struct {
	Status        string          `json:"status"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
}

// PriceService fetches current market prices. A failed lookup for one symbol
// must not abort the others; failures come back as UNAVAILABLE entries.
type PriceService interface {
	GetQuotes(ctx context.Context, tickers []string) map[string]QuoteInfo
}
