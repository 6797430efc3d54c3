// Package store implements the trade record store over SQLite. Decimal
// columns are stored as TEXT and parsed at scan time so financial values
// never pass through binary floating point.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/models"
)

// ErrTradeNotFound is returned when an operation references a trade id that
// does not exist.
var ErrTradeNotFound = errors.New("trade not found")

const tradeColumns = `id, ticker, trade_type, side, status, quantity, buy_price, sell_price,
       entry_date, exit_date, fees, stop_loss, target_price, leverage,
       strategy, notes, chart_url, sector, fundamental_reason, parent_trade_id`

type TradeStore struct {
	db *sql.DB
}

func NewTradeStore(db *sql.DB) *TradeStore {
	return &TradeStore{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx, so the same statement
// helpers serve plain reads and the close/split transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// List returns all trades ordered by entry date, then id.
func (s *TradeStore) List(ctx context.Context) ([]models.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tradeColumns+` FROM trades ORDER BY entry_date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trades: %w", err)
	}
	if trades == nil {
		trades = []models.Trade{}
	}
	return trades, nil
}

// Get retrieves a single trade by id.
func (s *TradeStore) Get(ctx context.Context, id int64) (*models.Trade, error) {
	return getTrade(ctx, s.db, id)
}

// GetTx is Get bound to an open transaction.
func (s *TradeStore) GetTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Trade, error) {
	return getTrade(ctx, tx, id)
}

func getTrade(ctx context.Context, q querier, id int64) (*models.Trade, error) {
	row := q.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = ?`, id)
	t, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Create inserts a new trade and fills in its assigned id.
func (s *TradeStore) Create(ctx context.Context, t *models.Trade) error {
	return createTrade(ctx, s.db, t)
}

// CreateTx is Create bound to an open transaction.
func (s *TradeStore) CreateTx(ctx context.Context, tx *sql.Tx, t *models.Trade) error {
	return createTrade(ctx, tx, t)
}

func createTrade(ctx context.Context, q querier, t *models.Trade) error {
	res, err := q.ExecContext(ctx, `
		INSERT INTO trades (ticker, trade_type, side, status, quantity, buy_price, sell_price,
			entry_date, exit_date, fees, stop_loss, target_price, leverage,
			strategy, notes, chart_url, sector, fundamental_reason, parent_trade_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Ticker, t.Type, t.Side, t.Status,
		t.Quantity.String(), t.BuyPrice.String(), decStr(t.SellPrice),
		t.EntryDate.UTC().Format(time.RFC3339), timeStr(t.ExitDate),
		t.Fees.String(), decStr(t.StopLoss), decStr(t.TargetPrice), decStr(t.Leverage),
		t.Strategy, t.Notes, t.ChartURL, t.Sector, t.FundamentalReason, t.ParentTradeID)
	if err != nil {
		return fmt.Errorf("inserting trade: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted trade id: %w", err)
	}
	t.ID = id
	return nil
}

// Update rewrites every mutable column of an existing trade.
func (s *TradeStore) Update(ctx context.Context, t *models.Trade) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trades SET ticker=?, trade_type=?, side=?, status=?, quantity=?, buy_price=?,
			sell_price=?, entry_date=?, exit_date=?, fees=?, stop_loss=?, target_price=?,
			leverage=?, strategy=?, notes=?, chart_url=?, sector=?, fundamental_reason=?,
			parent_trade_id=?, updated_at=?
		WHERE id=?`,
		t.Ticker, t.Type, t.Side, t.Status, t.Quantity.String(), t.BuyPrice.String(),
		decStr(t.SellPrice), t.EntryDate.UTC().Format(time.RFC3339), timeStr(t.ExitDate),
		t.Fees.String(), decStr(t.StopLoss), decStr(t.TargetPrice), decStr(t.Leverage),
		t.Strategy, t.Notes, t.ChartURL, t.Sector, t.FundamentalReason, t.ParentTradeID,
		time.Now().UTC().Format(time.RFC3339), t.ID)
	if err != nil {
		return fmt.Errorf("updating trade %d: %w", t.ID, err)
	}
	return requireRow(res, t.ID)
}

// UpdateQuantityTx decrements a root's stored quantity inside a close
// transaction.
func (s *TradeStore) UpdateQuantityTx(ctx context.Context, tx *sql.Tx, id int64, quantity decimal.Decimal) error {
	res, err := tx.ExecContext(ctx, `UPDATE trades SET quantity=?, updated_at=? WHERE id=?`,
		quantity.String(), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating quantity of trade %d: %w", id, err)
	}
	return requireRow(res, id)
}

// Delete removes a trade by id.
func (s *TradeStore) Delete(ctx context.Context, id int64) error {
	return deleteTrade(ctx, s.db, id)
}

// DeleteTx is Delete bound to an open transaction.
func (s *TradeStore) DeleteTx(ctx context.Context, tx *sql.Tx, id int64) error {
	return deleteTrade(ctx, tx, id)
}

func deleteTrade(ctx context.Context, q querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM trades WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting trade %d: %w", id, err)
	}
	return requireRow(res, id)
}

// WithTx runs fn inside a database transaction, rolling back on error or
// panic. The close/split operation uses it as its atomicity boundary.
func (s *TradeStore) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("trade %d: %w", id, ErrTradeNotFound)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(r rowScanner) (models.Trade, error) {
	var (
		t                     models.Trade
		side, status          string
		quantity, buy, fees   string
		sell, stop, tgt, lev  sql.NullString
		entryDate             string
		exitDate              sql.NullString
		strategy, notes       sql.NullString
		chartURL, sector      sql.NullString
		fundamentalReason     sql.NullString
		parentTradeID         sql.NullInt64
	)
	err := r.Scan(&t.ID, &t.Ticker, &t.Type, &side, &status, &quantity, &buy, &sell,
		&entryDate, &exitDate, &fees, &stop, &tgt, &lev,
		&strategy, &notes, &chartURL, &sector, &fundamentalReason, &parentTradeID)
	if err != nil {
		return t, err
	}

	t.Side = models.Side(side)
	t.Status = models.Status(status)

	if t.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return t, fmt.Errorf("trade %d: malformed quantity %q: %w", t.ID, quantity, err)
	}
	if t.BuyPrice, err = decimal.NewFromString(buy); err != nil {
		return t, fmt.Errorf("trade %d: malformed buy price %q: %w", t.ID, buy, err)
	}
	if t.Fees, err = decimal.NewFromString(fees); err != nil {
		return t, fmt.Errorf("trade %d: malformed fees %q: %w", t.ID, fees, err)
	}
	if t.SellPrice, err = nullDec(sell, t.ID, "sell price"); err != nil {
		return t, err
	}
	if t.StopLoss, err = nullDec(stop, t.ID, "stop loss"); err != nil {
		return t, err
	}
	if t.TargetPrice, err = nullDec(tgt, t.ID, "target price"); err != nil {
		return t, err
	}
	if t.Leverage, err = nullDec(lev, t.ID, "leverage"); err != nil {
		return t, err
	}

	if t.EntryDate, err = time.Parse(time.RFC3339, entryDate); err != nil {
		return t, fmt.Errorf("trade %d: malformed entry date %q: %w", t.ID, entryDate, err)
	}
	if exitDate.Valid {
		ed, err := time.Parse(time.RFC3339, exitDate.String)
		if err != nil {
			return t, fmt.Errorf("trade %d: malformed exit date %q: %w", t.ID, exitDate.String, err)
		}
		t.ExitDate = &ed
	}

	t.Strategy = nullStr(strategy)
	t.Notes = nullStr(notes)
	t.ChartURL = nullStr(chartURL)
	t.Sector = nullStr(sector)
	t.FundamentalReason = nullStr(fundamentalReason)
	if parentTradeID.Valid {
		id := parentTradeID.Int64
		t.ParentTradeID = &id
	}
	return t, nil
}

func decStr(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func timeStr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nullDec(s sql.NullString, id int64, field string) (*decimal.Decimal, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, fmt.Errorf("trade %d: malformed %s %q: %w", id, field, s.String, err)
	}
	return &d, nil
}

func nullStr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
