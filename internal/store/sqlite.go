package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	apperrors "wheel-tracker/internal/errors"
	"wheel-tracker/internal/models"
)

const dateLayout = "2006-01-02"

// SQLiteStore implements PositionStore using SQLite.
type SQLiteStore struct {
	db *sql.DB

	// writeMu serialises write batches.
	writeMu sync.Mutex

	mu          sync.RWMutex
	lastRefresh time.Time
}

// NewSQLiteStore creates a new SQLite-based position store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.NewStoreError("open", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := NewSQLiteStoreFromDB(db)
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, apperrors.NewStoreError("init schema", err)
	}

	return store, nil
}

// NewSQLiteStoreFromDB wraps an already opened database. The schema is assumed
// to exist.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Trades hold authoritative fields only; derived values are recomputed on load.
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		ticker TEXT NOT NULL,
		open_date TEXT NOT NULL,
		action TEXT NOT NULL,
		strategy TEXT,
		credit_debit TEXT NOT NULL,
		price_at_open TEXT,
		expiration TEXT,
		strike TEXT,
		quantity INTEGER NOT NULL,
		premium TEXT NOT NULL,
		fees TEXT NOT NULL,
		status TEXT NOT NULL,
		close_date TEXT,
		close_type TEXT,
		close_quantity INTEGER,
		close_price TEXT,
		close_fee TEXT,
		days_held INTEGER,
		current_share_price TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);
	CREATE INDEX IF NOT EXISTS idx_trades_ticker_open ON trades(ticker, open_date);

	-- Refresh status
	CREATE TABLE IF NOT EXISTS refresh_status (
		name TEXT PRIMARY KEY,
		last_refresh DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Trades Methods
// ============================================================================

const tradeColumns = `id, ticker, open_date, action, strategy, credit_debit, price_at_open, expiration,
	strike, quantity, premium, fees, status, close_date, close_type, close_quantity,
	close_price, close_fee, days_held, current_share_price`

const updateTradeSQL = `
	UPDATE trades SET ticker = ?, open_date = ?, action = ?, strategy = ?, credit_debit = ?,
		price_at_open = ?, expiration = ?, strike = ?, quantity = ?, premium = ?, fees = ?,
		status = ?, close_date = ?, close_type = ?, close_quantity = ?, close_price = ?,
		close_fee = ?, days_held = ?, current_share_price = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`

const updateQuoteSQL = `
	UPDATE trades SET current_share_price = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ? AND status = ?`

// Create inserts a new trade and assigns it a fresh ID.
func (s *SQLiteStore) Create(ctx context.Context, trade *models.Trade) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	trade.ID = uuid.NewString()
	args := append([]interface{}{trade.ID}, tradeArgs(trade)...)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (`+tradeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		return apperrors.NewStoreError("create", err)
	}
	return nil
}

// Get retrieves a single trade by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Trade, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = ?`, id)
	t, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trade %s: %w", id, apperrors.ErrTradeNotFound)
	}
	if err != nil {
		return nil, apperrors.NewStoreError("get", err)
	}
	return t, nil
}

// ListOpen retrieves every trade whose status is Open.
func (s *SQLiteStore) ListOpen(ctx context.Context) ([]models.Trade, error) {
	return s.queryTrades(ctx, "list open", `
		SELECT `+tradeColumns+` FROM trades
		WHERE status = ?
		ORDER BY ticker ASC, open_date ASC
	`, string(models.StatusOpen))
}

// ListAll retrieves every trade ordered by ticker, then open date.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]models.Trade, error) {
	return s.queryTrades(ctx, "list all", `
		SELECT `+tradeColumns+` FROM trades
		ORDER BY ticker ASC, open_date ASC
	`)
}

// Save updates the authoritative fields of an existing trade.
func (s *SQLiteStore) Save(ctx context.Context, trade models.Trade) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	args := append(tradeArgs(&trade), trade.ID)
	res, err := s.db.ExecContext(ctx, updateTradeSQL, args...)
	if err != nil {
		return apperrors.NewStoreError("save", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("trade %s: %w", trade.ID, apperrors.ErrTradeNotFound)
	}
	return nil
}

// SaveBatch updates all trades inside one transaction.
func (s *SQLiteStore) SaveBatch(ctx context.Context, trades []models.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStoreError("begin batch", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, updateTradeSQL)
	if err != nil {
		return apperrors.NewStoreError("prepare batch", err)
	}
	defer stmt.Close()

	for i := range trades {
		args := append(tradeArgs(&trades[i]), trades[i].ID)
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return apperrors.NewStoreError("save batch", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("trade %s: %w", trades[i].ID, apperrors.ErrTradeNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStoreError("commit batch", err)
	}
	return nil
}

// SaveQuotes updates the current share price of trades that are still open.
func (s *SQLiteStore) SaveQuotes(ctx context.Context, trades []models.Trade) ([]string, error) {
	if len(trades) == 0 {
		return nil, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewStoreError("begin quotes", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, updateQuoteSQL)
	if err != nil {
		return nil, apperrors.NewStoreError("prepare quotes", err)
	}
	defer stmt.Close()

	updated := make([]string, 0, len(trades))
	for i := range trades {
		res, err := stmt.ExecContext(ctx, trades[i].CurrentSharePrice, trades[i].ID, string(models.StatusOpen))
		if err != nil {
			return nil, apperrors.NewStoreError("save quotes", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, apperrors.NewStoreError("save quotes", err)
		}
		if n > 0 {
			updated = append(updated, trades[i].ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewStoreError("commit quotes", err)
	}
	return updated, nil
}

func (s *SQLiteStore) queryTrades(ctx context.Context, op, query string, args ...interface{}) ([]models.Trade, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError(op, err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, apperrors.NewStoreError(op, err)
		}
		trades = append(trades, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError(op, err)
	}
	return trades, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (*models.Trade, error) {
	var (
		t                               models.Trade
		openDate, action, creditDebit   string
		status                          string
		strategy, expiration, closeDate sql.NullString
		closeType                       sql.NullString
		closeQuantity, daysHeld         sql.NullInt64
		premium, fees                   decimal.Decimal
		priceAtOpen, strike, closePrice decimal.NullDecimal
		closeFee, currentSharePrice     decimal.NullDecimal
	)

	err := row.Scan(&t.ID, &t.Ticker, &openDate, &action, &strategy, &creditDebit, &priceAtOpen,
		&expiration, &strike, &t.Quantity, &premium, &fees, &status, &closeDate, &closeType,
		&closeQuantity, &closePrice, &closeFee, &daysHeld, &currentSharePrice)
	if err != nil {
		return nil, err
	}

	if t.OpenDate, err = time.Parse(dateLayout, openDate); err != nil {
		return nil, fmt.Errorf("parse open_date %q: %w", openDate, err)
	}
	if t.Expiration, err = parseNullDate(expiration); err != nil {
		return nil, fmt.Errorf("parse expiration: %w", err)
	}
	if t.CloseDate, err = parseNullDate(closeDate); err != nil {
		return nil, fmt.Errorf("parse close_date: %w", err)
	}

	t.Action = models.ActionType(action)
	t.CreditDebit = models.CreditDebit(creditDebit)
	t.Status = models.TradeStatus(status)
	if strategy.Valid {
		st := models.OptionStrategy(strategy.String)
		t.Strategy = &st
	}
	if closeType.Valid {
		ct := models.CloseType(closeType.String)
		t.CloseType = &ct
	}
	t.CloseQuantity = nullIntPtr(closeQuantity)
	t.DaysHeld = nullIntPtr(daysHeld)

	t.Premium = premium
	t.Fees = fees
	t.PriceAtOpen = priceAtOpen
	t.Strike = strike
	t.ClosePrice = closePrice
	t.CloseFee = closeFee
	t.CurrentSharePrice = currentSharePrice

	return &t, nil
}

// tradeArgs returns the column values after id, in tradeColumns order.
func tradeArgs(t *models.Trade) []interface{} {
	var strategy, closeType interface{}
	if t.Strategy != nil {
		strategy = string(*t.Strategy)
	}
	if t.CloseType != nil {
		closeType = string(*t.CloseType)
	}

	return []interface{}{
		t.Ticker,
		t.OpenDate.Format(dateLayout),
		string(t.Action),
		strategy,
		string(t.CreditDebit),
		t.PriceAtOpen,
		formatNullDate(t.Expiration),
		t.Strike,
		t.Quantity,
		t.Premium,
		t.Fees,
		string(t.Status),
		formatNullDate(t.CloseDate),
		closeType,
		intPtrValue(t.CloseQuantity),
		t.ClosePrice,
		t.CloseFee,
		intPtrValue(t.DaysHeld),
		t.CurrentSharePrice,
	}
}

func formatNullDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func parseNullDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func intPtrValue(p *int) interface{} {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// ============================================================================
// Refresh Methods
// ============================================================================

const refreshKey = "quotes"

// GetLastRefresh returns when open positions were last priced, or the zero
// time if they never were.
func (s *SQLiteStore) GetLastRefresh(ctx context.Context) time.Time {
	s.mu.RLock()
	if !s.lastRefresh.IsZero() {
		t := s.lastRefresh
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastRefresh time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT last_refresh FROM refresh_status WHERE name = ?
	`, refreshKey).Scan(&lastRefresh)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.lastRefresh = lastRefresh
	s.mu.Unlock()

	return lastRefresh
}

// SetLastRefresh records the time open positions were last priced.
func (s *SQLiteStore) SetLastRefresh(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO refresh_status (name, last_refresh, updated_at)
		VALUES (?, ?, ?)
	`, refreshKey, t, time.Now())
	if err != nil {
		return apperrors.NewStoreError("set last refresh", err)
	}

	s.mu.Lock()
	s.lastRefresh = t
	s.mu.Unlock()

	return nil
}
