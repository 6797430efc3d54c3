package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradefolio/backend/src/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func tp(t time.Time) *time.Time { return &t }

func sp(s string) *string { return &s }

var (
	entryDay = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	exitDay  = time.Date(2024, 3, 6, 15, 30, 0, 0, time.UTC)
)

func closedTrade(side models.Side, buy, sell, qty, fees string) models.Trade {
	return models.Trade{
		ID:        1,
		Ticker:    "NIFTY",
		Type:      models.TypeFutures,
		Side:      side,
		Status:    models.StatusClosed,
		Quantity:  d(qty),
		BuyPrice:  d(buy),
		SellPrice: dp(sell),
		EntryDate: entryDay,
		ExitDate:  tp(exitDay),
		Fees:      d(fees),
	}
}

func TestComputeTradeMetrics_LongSignConvention(t *testing.T) {
	trade := closedTrade(models.SideLong, "100", "110", "10", "5")

	m := ComputeTradeMetrics(&trade, nil)

	require.NotNil(t, m.GrossPnL)
	require.NotNil(t, m.NetPnL)
	assert.True(t, m.GrossPnL.Equal(d("100")), "gross = (110-100)*10")
	assert.True(t, m.NetPnL.Equal(d("95")), "net = gross - fees")
}

func TestComputeTradeMetrics_ShortSignConvention(t *testing.T) {
	trade := closedTrade(models.SideShort, "100", "90", "10", "5")

	m := ComputeTradeMetrics(&trade, nil)

	require.NotNil(t, m.NetPnL)
	assert.True(t, m.GrossPnL.Equal(d("100")), "gross = (100-90)*10")
	assert.True(t, m.NetPnL.Equal(d("95")))
}

func TestComputeTradeMetrics_ShortLoss(t *testing.T) {
	trade := closedTrade(models.SideShort, "100", "112", "5", "0")

	m := ComputeTradeMetrics(&trade, nil)

	require.NotNil(t, m.NetPnL)
	assert.True(t, m.NetPnL.Equal(d("-60")))
}

func TestComputeTradeMetrics_OpenWithoutPrice(t *testing.T) {
	trade := models.Trade{
		Ticker:    "RELIANCE",
		Side:      models.SideLong,
		Status:    models.StatusOpen,
		Quantity:  d("10"),
		BuyPrice:  d("2500"),
		EntryDate: entryDay,
	}

	m := ComputeTradeMetrics(&trade, nil)

	assert.Nil(t, m.EffectivePrice)
	assert.Nil(t, m.GrossPnL)
	assert.Nil(t, m.NetPnL)
	assert.Nil(t, m.GainPct)
	assert.Nil(t, m.RMultiple)
}

func TestComputeTradeMetrics_OpenWithCurrentPrice(t *testing.T) {
	trade := models.Trade{
		Ticker:    "RELIANCE",
		Side:      models.SideLong,
		Status:    models.StatusOpen,
		Quantity:  d("10"),
		BuyPrice:  d("2500"),
		Fees:      d("20"),
		EntryDate: entryDay,
	}

	m := ComputeTradeMetrics(&trade, dp("2600"))

	require.NotNil(t, m.NetPnL)
	assert.True(t, m.GrossPnL.Equal(d("1000")))
	assert.True(t, m.NetPnL.Equal(d("980")))
}

func TestComputeTradeMetrics_ClosedIgnoresCurrentPrice(t *testing.T) {
	trade := closedTrade(models.SideLong, "100", "110", "10", "0")

	m := ComputeTradeMetrics(&trade, dp("9999"))

	require.NotNil(t, m.EffectivePrice)
	assert.True(t, m.EffectivePrice.Equal(d("110")), "closed trades settle at sell price")
}

func TestComputeTradeMetrics_GainPctAndZeroEntryGuard(t *testing.T) {
	trade := closedTrade(models.SideLong, "100", "110", "10", "5")
	m := ComputeTradeMetrics(&trade, nil)
	require.NotNil(t, m.GainPct)
	assert.True(t, m.GainPct.Equal(d("9.5")), "95 / 1000 * 100")

	zero := closedTrade(models.SideLong, "0", "10", "10", "0")
	m = ComputeTradeMetrics(&zero, nil)
	assert.Nil(t, m.GainPct, "zero entry value must not divide")
}

func TestComputeTradeMetrics_RiskFields(t *testing.T) {
	trade := closedTrade(models.SideLong, "100", "110", "10", "5")
	trade.StopLoss = dp("95")

	m := ComputeTradeMetrics(&trade, nil)

	require.NotNil(t, m.RiskPerTrade)
	assert.True(t, m.RiskPerTrade.Equal(d("50")), "|100-95|*10")
	require.NotNil(t, m.StopLossPct)
	assert.True(t, m.StopLossPct.Equal(d("5")))
	require.NotNil(t, m.RMultiple)
	assert.True(t, m.RMultiple.Equal(d("1.9")), "95 / 50")
}

func TestComputeTradeMetrics_ZeroRiskSkipsRMultiple(t *testing.T) {
	trade := closedTrade(models.SideLong, "100", "110", "10", "5")
	trade.StopLoss = dp("100") // stop at entry: zero risk

	m := ComputeTradeMetrics(&trade, nil)

	require.NotNil(t, m.RiskPerTrade)
	assert.True(t, m.RiskPerTrade.IsZero())
	assert.Nil(t, m.RMultiple)
}

func TestComputeTradeMetrics_HoldingDays(t *testing.T) {
	trade := closedTrade(models.SideLong, "100", "110", "10", "0")
	m := ComputeTradeMetrics(&trade, nil)
	assert.Equal(t, 5, m.HoldingDays)

	open := models.Trade{
		Status:    models.StatusOpen,
		Quantity:  d("1"),
		BuyPrice:  d("100"),
		EntryDate: entryDay,
	}
	now := entryDay.Add(49 * time.Hour)
	m = computeTradeMetricsAt(&open, nil, now)
	assert.Equal(t, 2, m.HoldingDays, "whole days only")
}

func TestComputeTradeMetrics_Idempotent(t *testing.T) {
	trade := closedTrade(models.SideShort, "100", "90", "10", "5")
	trade.StopLoss = dp("104")

	first := ComputeTradeMetrics(&trade, nil)
	second := ComputeTradeMetrics(&trade, nil)

	assert.Equal(t, first, second)
	assert.True(t, trade.Quantity.Equal(d("10")), "input trade must not be mutated")
}
