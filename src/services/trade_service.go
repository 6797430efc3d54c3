// backend/src/services/trade_service.go
package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/analytics"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/security/validation"
	"github.com/username/tradefolio/backend/src/store"
)

const statsCacheKey = "stats"

type tradeServiceImpl struct {
	store       *store.TradeStore
	prices      PriceService
	reportCache *cache.Cache

	// closeLocks serializes close/split operations per root trade id so two
	// concurrent partial closes cannot double-sell the remaining quantity.
	closeLocks sync.Map // int64 -> *sync.Mutex
}

func NewTradeService(tradeStore *store.TradeStore, prices PriceService, reportCache *cache.Cache) TradeService {
	return &tradeServiceImpl{
		store:       tradeStore,
		prices:      prices,
		reportCache: reportCache,
	}
}

func (s *tradeServiceImpl) ListTrades(ctx context.Context) ([]models.Trade, error) {
	return s.store.List(ctx)
}

func (s *tradeServiceImpl) GetTrade(ctx context.Context, id int64) (*models.Trade, error) {
	return s.store.Get(ctx, id)
}

func (s *tradeServiceImpl) CreateTrade(ctx context.Context, input TradeInput) (*models.Trade, error) {
	if err := validateTradeInput(&input); err != nil {
		return nil, err
	}

	trade := models.Trade{
		Ticker:            validation.SanitizeText(input.Ticker),
		Type:              input.Type,
		Side:              input.Side,
		Status:            models.StatusOpen,
		Quantity:          input.Quantity,
		BuyPrice:          input.BuyPrice,
		EntryDate:         input.EntryDate,
		Fees:              input.Fees,
		StopLoss:          input.StopLoss,
		TargetPrice:       input.TargetPrice,
		Leverage:          input.Leverage,
		Strategy:          validation.SanitizeOptionalText(input.Strategy),
		Notes:             validation.SanitizeOptionalText(input.Notes),
		ChartURL:          input.ChartURL,
		Sector:            validation.SanitizeOptionalText(input.Sector),
		FundamentalReason: validation.SanitizeOptionalText(input.FundamentalReason),
	}
	if trade.Type == "" {
		trade.Type = models.TypeFutures
	}
	if trade.Side == "" {
		trade.Side = models.SideLong
	}

	if err := s.store.Create(ctx, &trade); err != nil {
		return nil, err
	}
	s.invalidateReports()
	logger.FromContext(ctx).Info("Trade created", "tradeID", trade.ID, "ticker", trade.Ticker, "quantity", trade.Quantity)
	return &trade, nil
}

func (s *tradeServiceImpl) UpdateTrade(ctx context.Context, id int64, patch TradePatch) (*models.Trade, error) {
	trade, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	applyPatch(trade, patch)
	if err := validateTrade(trade); err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, trade); err != nil {
		return nil, err
	}
	s.invalidateReports()
	logger.FromContext(ctx).Info("Trade updated", "tradeID", id)
	return trade, nil
}

func (s *tradeServiceImpl) DeleteTrade(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateReports()
	logger.FromContext(ctx).Info("Trade deleted", "tradeID", id)
	return nil
}

// CloseTrade executes the close/split state machine over an open root trade.
//
// The two writes (create child, update or delete root) happen in one sqlite
// transaction; readers never observe the child without the root effect or
// vice versa. Precondition failures reject the operation with no side
// effects.
func (s *tradeServiceImpl) CloseTrade(ctx context.Context, id int64, req models.CloseTradeRequest) (*models.Trade, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if err := validateCloseRequest(&req); err != nil {
		return nil, err
	}

	var child models.Trade
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		root, err := s.store.GetTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !root.IsRoot() {
			return fmt.Errorf("%w: trade %d is a partial-exit record and cannot be closed again", validation.ErrValidationFailed, id)
		}
		if !root.IsOpen() {
			return fmt.Errorf("%w: trade %d is already closed", validation.ErrValidationFailed, id)
		}
		if req.Quantity.GreaterThan(root.Quantity) {
			return fmt.Errorf("%w: quantity to sell (%s) exceeds held quantity (%s)",
				validation.ErrValidationFailed, req.Quantity, root.Quantity)
		}

		sellPrice := req.SellPrice
		exitDate := req.ExitDate
		rootID := root.ID
		child = models.Trade{
			Ticker:            root.Ticker,
			Type:              root.Type,
			Side:              root.Side,
			Status:            models.StatusClosed,
			Quantity:          req.Quantity,
			BuyPrice:          root.BuyPrice,
			SellPrice:         &sellPrice,
			EntryDate:         root.EntryDate,
			ExitDate:          &exitDate,
			Fees:              root.Fees.Add(req.Fees),
			StopLoss:          root.StopLoss,
			TargetPrice:       root.TargetPrice,
			Leverage:          root.Leverage,
			Strategy:          root.Strategy,
			Notes:             root.Notes,
			ChartURL:          root.ChartURL,
			Sector:            root.Sector,
			FundamentalReason: root.FundamentalReason,
			ParentTradeID:     &rootID,
		}
		if err := s.store.CreateTx(ctx, tx, &child); err != nil {
			return err
		}

		if req.Quantity.Equal(root.Quantity) {
			// Full close: the child becomes the sole remaining record of
			// this slice of history. Earlier children keep pointing at the
			// dead root id and render as an orphaned campaign.
			return s.store.DeleteTx(ctx, tx, root.ID)
		}
		return s.store.UpdateQuantityTx(ctx, tx, root.ID, root.Quantity.Sub(req.Quantity))
	})
	if err != nil {
		return nil, err
	}

	s.invalidateReports()
	logger.FromContext(ctx).Info("Trade closed", "rootTradeID", id, "childTradeID", child.ID,
		"quantity", req.Quantity, "sellPrice", req.SellPrice)
	return &child, nil
}

func (s *tradeServiceImpl) GetCampaigns(ctx context.Context) (map[int64]*models.Campaign, error) {
	trades, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.BuildCampaigns(trades), nil
}

func (s *tradeServiceImpl) GetLedger(ctx context.Context, f analytics.Filters, sortSpec analytics.SortSpec, manualCMP map[string]decimal.Decimal) ([]models.LedgerRow, error) {
	trades, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	live := s.livePriceFunc(ctx, trades)
	return analytics.BuildLedger(trades, f, sortSpec, live, manualCMP), nil
}

func (s *tradeServiceImpl) GetStats(ctx context.Context) (models.Stats, error) {
	if cached, found := s.reportCache.Get(statsCacheKey); found {
		if stats, ok := cached.(models.Stats); ok {
			return stats, nil
		}
	}

	trades, err := s.store.List(ctx)
	if err != nil {
		return models.Stats{}, err
	}
	stats := analytics.ComputeStats(trades)
	s.reportCache.Set(statsCacheKey, stats, cache.DefaultExpiration)
	return stats, nil
}

// livePriceFunc resolves quotes for the open tickers in one batch and hands
// the ledger a lookup over the result. A price-feed outage degrades to "no
// live prices" rather than failing the read.
func (s *tradeServiceImpl) livePriceFunc(ctx context.Context, trades []models.Trade) analytics.PriceFunc {
	if s.prices == nil {
		return nil
	}
	seen := make(map[string]bool)
	var tickers []string
	for _, t := range trades {
		if !t.IsOpen() {
			continue
		}
		if !seen[t.Ticker] {
			seen[t.Ticker] = true
			tickers = append(tickers, t.Ticker)
		}
	}
	if len(tickers) == 0 {
		return nil
	}

	quotes := s.prices.GetQuotes(ctx, tickers)
	return func(ticker string) (decimal.Decimal, bool) {
		q, ok := quotes[ticker]
		if !ok || q.Status != QuoteStatusOK {
			return decimal.Decimal{}, false
		}
		return q.Price, true
	}
}

func (s *tradeServiceImpl) lockFor(id int64) *sync.Mutex {
	actual, _ := s.closeLocks.LoadOrStore(id, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func (s *tradeServiceImpl) invalidateReports() {
	s.reportCache.Delete(statsCacheKey)
}

func validateTradeInput(input *TradeInput) error {
	if err := validation.ValidateStringNotEmpty(input.Ticker, "ticker"); err != nil {
		return err
	}
	if err := validation.ValidateStringMaxLength(input.Ticker, validation.MaxTickerLength, "ticker"); err != nil {
		return err
	}
	if err := validation.ValidateStringMaxLength(input.Type, validation.MaxTypeLength, "type"); err != nil {
		return err
	}
	if input.Side != "" && input.Side != models.SideLong && input.Side != models.SideShort {
		return fmt.Errorf("%w: side must be LONG or SHORT", validation.ErrValidationFailed)
	}
	if err := validation.ValidatePositiveDecimal(input.Quantity, "quantity"); err != nil {
		return err
	}
	if err := validation.ValidatePositiveDecimal(input.BuyPrice, "buyPrice"); err != nil {
		return err
	}
	if input.EntryDate.IsZero() {
		return fmt.Errorf("%w: entryDate is required", validation.ErrValidationFailed)
	}
	if err := validation.ValidateNonNegativeDecimal(input.Fees, "fees"); err != nil {
		return err
	}
	if err := validation.ValidateOptionalPositiveDecimal(input.StopLoss, "stopLoss"); err != nil {
		return err
	}
	if err := validation.ValidateOptionalPositiveDecimal(input.TargetPrice, "targetPrice"); err != nil {
		return err
	}
	if err := validation.ValidateOptionalPositiveDecimal(input.Leverage, "leverage"); err != nil {
		return err
	}
	if err := validation.ValidateOptionalMaxLength(input.Strategy, validation.MaxStrategyLength, "strategy"); err != nil {
		return err
	}
	if err := validation.ValidateOptionalMaxLength(input.Notes, validation.MaxNotesLength, "notes"); err != nil {
		return err
	}
	if err := validation.ValidateOptionalMaxLength(input.Sector, validation.MaxSectorLength, "sector"); err != nil {
		return err
	}
	if err := validation.ValidateOptionalMaxLength(input.FundamentalReason, validation.MaxReasonLength, "fundamentalReason"); err != nil {
		return err
	}
	return validation.ValidateChartURL(input.ChartURL)
}

// validateTrade re-checks the invariants after a patch has been applied.
func validateTrade(t *models.Trade) error {
	if err := validation.ValidateStringNotEmpty(t.Ticker, "ticker"); err != nil {
		return err
	}
	if t.Side != models.SideLong && t.Side != models.SideShort {
		return fmt.Errorf("%w: side must be LONG or SHORT", validation.ErrValidationFailed)
	}
	if t.Status != models.StatusOpen && t.Status != models.StatusClosed {
		return fmt.Errorf("%w: status must be OPEN or CLOSED", validation.ErrValidationFailed)
	}
	if err := validation.ValidatePositiveDecimal(t.Quantity, "quantity"); err != nil {
		return err
	}
	if err := validation.ValidatePositiveDecimal(t.BuyPrice, "buyPrice"); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDecimal(t.Fees, "fees"); err != nil {
		return err
	}
	if t.Status == models.StatusClosed && t.SellPrice == nil {
		return fmt.Errorf("%w: a closed trade requires a sellPrice", validation.ErrValidationFailed)
	}
	return validation.ValidateChartURL(t.ChartURL)
}

func validateCloseRequest(req *models.CloseTradeRequest) error {
	if err := validation.ValidatePositiveDecimal(req.Quantity, "quantity"); err != nil {
		return err
	}
	if err := validation.ValidatePositiveDecimal(req.SellPrice, "sellPrice"); err != nil {
		return err
	}
	if req.ExitDate.IsZero() {
		return fmt.Errorf("%w: exitDate is required", validation.ErrValidationFailed)
	}
	return validation.ValidateNonNegativeDecimal(req.Fees, "fees")
}

func applyPatch(t *models.Trade, p TradePatch) {
	if p.Ticker != nil {
		t.Ticker = validation.SanitizeText(*p.Ticker)
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Side != nil {
		t.Side = *p.Side
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Quantity != nil {
		t.Quantity = *p.Quantity
	}
	if p.BuyPrice != nil {
		t.BuyPrice = *p.BuyPrice
	}
	if p.SellPrice != nil {
		t.SellPrice = p.SellPrice
	}
	if p.EntryDate != nil {
		t.EntryDate = *p.EntryDate
	}
	if p.ExitDate != nil {
		t.ExitDate = p.ExitDate
	}
	if p.Fees != nil {
		t.Fees = *p.Fees
	}
	if p.StopLoss != nil {
		t.StopLoss = p.StopLoss
	}
	if p.TargetPrice != nil {
		t.TargetPrice = p.TargetPrice
	}
	if p.Leverage != nil {
		t.Leverage = p.Leverage
	}
	if p.Strategy != nil {
		t.Strategy = validation.SanitizeOptionalText(p.Strategy)
	}
	if p.Notes != nil {
		t.Notes = validation.SanitizeOptionalText(p.Notes)
	}
	if p.ChartURL != nil {
		t.ChartURL = p.ChartURL
	}
	if p.Sector != nil {
		t.Sector = validation.SanitizeOptionalText(p.Sector)
	}
	if p.FundamentalReason != nil {
		t.FundamentalReason = validation.SanitizeOptionalText(p.FundamentalReason)
	}
}
