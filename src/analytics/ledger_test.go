package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradefolio/backend/src/models"
)

func ledgerFixture() []models.Trade {
	day := func(n int) time.Time {
		return time.Date(2024, 1, n, 9, 15, 0, 0, time.UTC)
	}
	return []models.Trade{
		{
			ID: 1, Ticker: "NIFTY", Type: models.TypeFutures, Side: models.SideLong,
			Status: models.StatusClosed, Quantity: d("10"), BuyPrice: d("100"),
			SellPrice: dp("110"), EntryDate: day(1), ExitDate: tp(day(2)), Fees: d("5"),
		},
		{
			ID: 2, Ticker: "BANKNIFTY", Type: models.TypeFutures, Side: models.SideShort,
			Status: models.StatusClosed, Quantity: d("5"), BuyPrice: d("200"),
			SellPrice: dp("210"), EntryDate: day(3), ExitDate: tp(day(4)), Fees: d("0"),
		},
		{
			ID: 3, Ticker: "RELIANCE", Type: models.TypeLongTermHolding, Side: models.SideLong,
			Status: models.StatusOpen, Quantity: d("4"), BuyPrice: d("2500"),
			EntryDate: day(5), Fees: d("0"),
		},
	}
}

func TestBuildLedger_RunningAccountValue(t *testing.T) {
	rows := BuildLedger(ledgerFixture(), Filters{}, SortSpec{}, nil, nil)

	require.Len(t, rows, 3)
	// Trade 1: net +95. Trade 2 (short, price rose): (200-210)*5 = -50.
	// Trade 3 is open with no price: contributes nothing.
	assert.True(t, rows[0].AccountValue.Equal(d("95")))
	assert.True(t, rows[1].AccountValue.Equal(d("45")))
	assert.True(t, rows[2].AccountValue.Equal(d("45")))
}

// Sorting the display must never change any row's running account value:
// the chronological pass runs before the sort pass.
func TestBuildLedger_AccountValueInvariantUnderSort(t *testing.T) {
	baseline := map[int64]decimal.Decimal{}
	for _, r := range BuildLedger(ledgerFixture(), Filters{}, SortSpec{}, nil, nil) {
		baseline[r.ID] = r.AccountValue
	}

	keys := []string{"ticker", "quantity", "buyPrice", "sellPrice", "entryDate", "netPnL", "status"}
	for _, key := range keys {
		for _, desc := range []bool{false, true} {
			rows := BuildLedger(ledgerFixture(), Filters{}, SortSpec{Key: key, Desc: desc}, nil, nil)
			for _, r := range rows {
				assert.True(t, r.AccountValue.Equal(baseline[r.ID]),
					"sort by %s desc=%v changed account value of trade %d", key, desc, r.ID)
			}
		}
	}
}

func TestBuildLedger_Filters(t *testing.T) {
	trades := ledgerFixture()

	rows := BuildLedger(trades, Filters{Ticker: "nifty"}, SortSpec{}, nil, nil)
	assert.Len(t, rows, 2, "case-insensitive substring matches NIFTY and BANKNIFTY")

	rows = BuildLedger(trades, Filters{Status: models.StatusOpen}, SortSpec{}, nil, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0].ID)

	rows = BuildLedger(trades, Filters{Type: models.TypeLongTermHolding}, SortSpec{}, nil, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0].ID)

	from := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	rows = BuildLedger(trades, Filters{From: &from, To: &to}, SortSpec{}, nil, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].ID)
}

func TestBuildLedger_PnLSignFilterOnlyConstrainsClosed(t *testing.T) {
	trades := ledgerFixture()

	rows := BuildLedger(trades, Filters{PnLSign: "positive"}, SortSpec{}, nil, nil)
	ids := rowIDs(rows)
	assert.ElementsMatch(t, []int64{1, 3}, ids, "winner plus the open trade")

	rows = BuildLedger(trades, Filters{PnLSign: "negative"}, SortSpec{}, nil, nil)
	ids = rowIDs(rows)
	assert.ElementsMatch(t, []int64{2, 3}, ids, "loser plus the open trade")
}

func TestBuildLedger_CMPResolutionOrder(t *testing.T) {
	trades := ledgerFixture()
	live := func(ticker string) (decimal.Decimal, bool) {
		if ticker == "RELIANCE" {
			return d("2600"), true
		}
		return decimal.Zero, false
	}
	manual := map[string]decimal.Decimal{"RELIANCE": d("2550")}

	// Live feed beats the manual override.
	rows := BuildLedger(trades, Filters{Status: models.StatusOpen}, SortSpec{}, live, manual)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].CMP)
	assert.True(t, rows[0].CMP.Equal(d("2600")))
	require.NotNil(t, rows[0].NetPnL)
	assert.True(t, rows[0].NetPnL.Equal(d("400")))

	// No live feed: the manual override applies.
	rows = BuildLedger(trades, Filters{Status: models.StatusOpen}, SortSpec{}, nil, manual)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].CMP)
	assert.True(t, rows[0].CMP.Equal(d("2550")))

	// Neither: CMP unset, dependent metrics nil.
	rows = BuildLedger(trades, Filters{Status: models.StatusOpen}, SortSpec{}, nil, nil)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].CMP)
	assert.Nil(t, rows[0].NetPnL)
	assert.Nil(t, rows[0].GainPct)
}

func TestBuildLedger_ClosedRowsNeverGetCMP(t *testing.T) {
	live := func(string) (decimal.Decimal, bool) { return d("1"), true }
	rows := BuildLedger(ledgerFixture(), Filters{Status: models.StatusClosed}, SortSpec{}, live, nil)
	for _, r := range rows {
		assert.Nil(t, r.CMP)
	}
}

func TestBuildLedger_NullsSortLastBothDirections(t *testing.T) {
	trades := ledgerFixture() // trade 3 has no sell price

	asc := BuildLedger(trades, Filters{}, SortSpec{Key: "sellPrice"}, nil, nil)
	require.Len(t, asc, 3)
	assert.Equal(t, int64(3), asc[2].ID, "nil sellPrice last ascending")

	desc := BuildLedger(trades, Filters{}, SortSpec{Key: "sellPrice", Desc: true}, nil, nil)
	require.Len(t, desc, 3)
	assert.Equal(t, int64(3), desc[2].ID, "nil sellPrice last descending too")
	assert.Equal(t, int64(2), desc[0].ID, "210 before 110 descending")
}

func TestBuildLedger_EntryDateSortsByTimestamp(t *testing.T) {
	rows := BuildLedger(ledgerFixture(), Filters{}, SortSpec{Key: "entryDate", Desc: true}, nil, nil)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(3), rows[0].ID)
	assert.Equal(t, int64(1), rows[2].ID)
}

func TestBuildLedger_StringSortCaseInsensitive(t *testing.T) {
	trades := ledgerFixture()
	trades[0].Ticker = "aapl" // lower-case on purpose

	rows := BuildLedger(trades, Filters{}, SortSpec{Key: "ticker"}, nil, nil)
	require.Len(t, rows, 3)
	assert.Equal(t, "aapl", rows[0].Ticker)
	assert.Equal(t, "BANKNIFTY", rows[1].Ticker)
	assert.Equal(t, "RELIANCE", rows[2].Ticker)
}

func TestBuildLedger_DoesNotMutateInput(t *testing.T) {
	trades := ledgerFixture()
	before := trades[2].Quantity

	live := func(string) (decimal.Decimal, bool) { return d("3000"), true }
	_ = BuildLedger(trades, Filters{}, SortSpec{Key: "netPnL"}, live, nil)

	assert.True(t, trades[2].Quantity.Equal(before))
	assert.Nil(t, trades[2].SellPrice)
	assert.Equal(t, int64(3), trades[2].ID, "input order untouched")
}

func rowIDs(rows []models.LedgerRow) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}
