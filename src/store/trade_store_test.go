package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradefolio/backend/src/models"
	_ "modernc.org/sqlite"
)

const testSchema = `
CREATE TABLE trades (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticker TEXT NOT NULL,
    trade_type TEXT NOT NULL DEFAULT 'FUTURES',
    side TEXT NOT NULL DEFAULT 'LONG',
    status TEXT NOT NULL DEFAULT 'OPEN',
    quantity TEXT NOT NULL,
    buy_price TEXT NOT NULL,
    sell_price TEXT,
    entry_date TEXT NOT NULL,
    exit_date TEXT,
    fees TEXT NOT NULL DEFAULT '0',
    stop_loss TEXT,
    target_price TEXT,
    leverage TEXT,
    strategy TEXT,
    notes TEXT,
    chart_url TEXT,
    sector TEXT,
    fundamental_reason TEXT,
    parent_trade_id INTEGER,
    created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
    updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);`

func setupTestStore(t *testing.T) *TradeStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return NewTradeStore(db)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func sp(s string) *string { return &s }

func sampleTrade() models.Trade {
	return models.Trade{
		Ticker:    "NIFTY",
		Type:      models.TypeFutures,
		Side:      models.SideLong,
		Status:    models.StatusOpen,
		Quantity:  d("10"),
		BuyPrice:  d("22150.25"),
		EntryDate: time.Date(2024, 5, 2, 9, 15, 0, 0, time.UTC),
		Fees:      d("42.50"),
	}
}

func TestTradeStore_CreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	trade := sampleTrade()
	trade.StopLoss = dp("22000")
	trade.TargetPrice = dp("22500")
	trade.Leverage = dp("5")
	trade.Strategy = sp("Opening Range Breakout")
	trade.Notes = sp("gap up open, strong breadth")
	trade.Sector = sp("Index")

	require.NoError(t, s.Create(ctx, &trade))
	require.Greater(t, trade.ID, int64(0))

	got, err := s.Get(ctx, trade.ID)
	require.NoError(t, err)

	assert.Equal(t, "NIFTY", got.Ticker)
	assert.Equal(t, models.SideLong, got.Side)
	assert.Equal(t, models.StatusOpen, got.Status)
	assert.True(t, got.Quantity.Equal(d("10")))
	assert.True(t, got.BuyPrice.Equal(d("22150.25")))
	assert.True(t, got.Fees.Equal(d("42.50")))
	require.NotNil(t, got.StopLoss)
	assert.True(t, got.StopLoss.Equal(d("22000")))
	require.NotNil(t, got.Strategy)
	assert.Equal(t, "Opening Range Breakout", *got.Strategy)
	assert.Nil(t, got.SellPrice)
	assert.Nil(t, got.ExitDate)
	assert.Nil(t, got.ParentTradeID)
	assert.True(t, got.EntryDate.Equal(trade.EntryDate))
}

// Decimal columns are TEXT all the way: the stored string must round trip
// without any floating point drift.
func TestTradeStore_DecimalPrecisionRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	trade := sampleTrade()
	trade.Quantity = d("0.00000001")
	trade.BuyPrice = d("123456.789012345678")
	trade.Fees = d("0.1")

	require.NoError(t, s.Create(ctx, &trade))
	got, err := s.Get(ctx, trade.ID)
	require.NoError(t, err)

	assert.Equal(t, "0.00000001", got.Quantity.String())
	assert.Equal(t, "123456.789012345678", got.BuyPrice.String())
	assert.Equal(t, "0.1", got.Fees.String())
}

func TestTradeStore_GetNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Get(context.Background(), 12345)
	assert.True(t, errors.Is(err, ErrTradeNotFound))
}

func TestTradeStore_ListOrdersByEntryDate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	later := sampleTrade()
	later.Ticker = "LATER"
	later.EntryDate = time.Date(2024, 6, 1, 9, 15, 0, 0, time.UTC)
	require.NoError(t, s.Create(ctx, &later))

	earlier := sampleTrade()
	earlier.Ticker = "EARLIER"
	require.NoError(t, s.Create(ctx, &earlier))

	trades, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "EARLIER", trades[0].Ticker)
	assert.Equal(t, "LATER", trades[1].Ticker)
}

func TestTradeStore_ListEmpty(t *testing.T) {
	s := setupTestStore(t)

	trades, err := s.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, trades)
	assert.Empty(t, trades)
}

func TestTradeStore_Update(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	trade := sampleTrade()
	require.NoError(t, s.Create(ctx, &trade))

	exit := time.Date(2024, 5, 3, 15, 30, 0, 0, time.UTC)
	trade.Status = models.StatusClosed
	trade.SellPrice = dp("22300.75")
	trade.ExitDate = &exit
	require.NoError(t, s.Update(ctx, &trade))

	got, err := s.Get(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, got.Status)
	require.NotNil(t, got.SellPrice)
	assert.True(t, got.SellPrice.Equal(d("22300.75")))
	require.NotNil(t, got.ExitDate)
	assert.True(t, got.ExitDate.Equal(exit))
}

func TestTradeStore_UpdateNotFound(t *testing.T) {
	s := setupTestStore(t)

	trade := sampleTrade()
	trade.ID = 999
	err := s.Update(context.Background(), &trade)
	assert.True(t, errors.Is(err, ErrTradeNotFound))
}

func TestTradeStore_Delete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	trade := sampleTrade()
	require.NoError(t, s.Create(ctx, &trade))
	require.NoError(t, s.Delete(ctx, trade.ID))

	_, err := s.Get(ctx, trade.ID)
	assert.True(t, errors.Is(err, ErrTradeNotFound))

	err = s.Delete(ctx, trade.ID)
	assert.True(t, errors.Is(err, ErrTradeNotFound))
}

func TestTradeStore_WithTxRollsBackOnError(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	trade := sampleTrade()
	require.NoError(t, s.Create(ctx, &trade))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		child := sampleTrade()
		child.ParentTradeID = &trade.ID
		if err := s.CreateTx(ctx, tx, &child); err != nil {
			return err
		}
		return boom
	})
	assert.True(t, errors.Is(err, boom))

	trades, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, trades, 1, "rolled-back child must not be visible")
}

func TestTradeStore_ParentBackReference(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	root := sampleTrade()
	require.NoError(t, s.Create(ctx, &root))

	child := sampleTrade()
	child.Status = models.StatusClosed
	child.SellPrice = dp("22400")
	child.ParentTradeID = &root.ID
	require.NoError(t, s.Create(ctx, &child))

	got, err := s.Get(ctx, child.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ParentTradeID)
	assert.Equal(t, root.ID, *got.ParentTradeID)
}
