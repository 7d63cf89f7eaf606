package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "wheel-tracker/internal/errors"
	"wheel-tracker/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "wheel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func cspTrade(ticker string, opened time.Time) models.Trade {
	csp := models.StrategyCashSecuredPut
	exp := opened.AddDate(0, 0, 30)
	return models.Trade{
		Ticker:      ticker,
		OpenDate:    opened,
		Action:      models.ActionSellToOpen,
		Strategy:    &csp,
		CreditDebit: models.Credit,
		Expiration:  &exp,
		Strike:      decimal.NewNullDecimal(decimal.RequireFromString("50.00")),
		Quantity:    1,
		Premium:     decimal.RequireFromString("2.50"),
		Fees:        decimal.RequireFromString("0.65"),
		Status:      models.StatusOpen,
	}
}

func TestSQLiteStore_CreateAssignsIDAndRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	trade := cspTrade("AAPL", date(2024, 1, 2))
	trade.PriceAtOpen = decimal.NewNullDecimal(decimal.RequireFromString("51.12"))
	require.NoError(t, s.Create(ctx, &trade))
	require.NotEmpty(t, trade.ID)

	got, err := s.Get(ctx, trade.ID)
	require.NoError(t, err)

	assert.Equal(t, trade.ID, got.ID)
	assert.Equal(t, "AAPL", got.Ticker)
	assert.True(t, got.OpenDate.Equal(trade.OpenDate))
	require.NotNil(t, got.Expiration)
	assert.True(t, got.Expiration.Equal(*trade.Expiration))
	require.NotNil(t, got.Strategy)
	assert.Equal(t, models.StrategyCashSecuredPut, *got.Strategy)
	assert.True(t, got.Premium.Equal(trade.Premium))
	assert.True(t, got.Fees.Equal(trade.Fees))
	assert.True(t, got.Strike.Valid)
	assert.True(t, got.Strike.Decimal.Equal(trade.Strike.Decimal))
	assert.True(t, got.PriceAtOpen.Decimal.Equal(trade.PriceAtOpen.Decimal))
	assert.False(t, got.ClosePrice.Valid)
	assert.False(t, got.CurrentSharePrice.Valid)
	assert.Nil(t, got.CloseDate)
	assert.Nil(t, got.CloseType)
	assert.Nil(t, got.DaysHeld)
}

func TestSQLiteStore_DerivedFieldsAreNotPersisted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	trade := cspTrade("MSFT", date(2024, 3, 1))
	trade.Total = decimal.RequireFromString("249.35")
	trade.Moneyness = decimal.NewNullDecimal(decimal.NewFromInt(96))
	dte := 12
	trade.DTE = &dte
	require.NoError(t, s.Create(ctx, &trade))

	got, err := s.Get(ctx, trade.ID)
	require.NoError(t, err)
	assert.True(t, got.Total.IsZero())
	assert.False(t, got.Moneyness.Valid)
	assert.Nil(t, got.DTE)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTradeNotFound)
}

func TestSQLiteStore_ListOrderingAndOpenFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	msft := cspTrade("MSFT", date(2024, 1, 5))
	aaplLate := cspTrade("AAPL", date(2024, 2, 1))
	aaplEarly := cspTrade("AAPL", date(2024, 1, 1))
	closed := cspTrade("KO", date(2023, 12, 1))
	closed.Status = models.StatusClosed
	exp := models.CloseExpired
	closed.CloseType = &exp
	closedOn := date(2023, 12, 31)
	closed.CloseDate = &closedOn

	for _, tr := range []*models.Trade{&msft, &aaplLate, &aaplEarly, &closed} {
		require.NoError(t, s.Create(ctx, tr))
	}

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, aaplEarly.ID, all[0].ID)
	assert.Equal(t, aaplLate.ID, all[1].ID)
	assert.Equal(t, "KO", all[2].Ticker)
	assert.Equal(t, "MSFT", all[3].Ticker)

	open, err := s.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 3)
	for _, tr := range open {
		assert.Equal(t, models.StatusOpen, tr.Status)
	}
}

func TestSQLiteStore_SaveBatchPersistsQuotesAndCloseFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := cspTrade("AAPL", date(2024, 1, 2))
	b := cspTrade("TSLA", date(2024, 1, 3))
	require.NoError(t, s.Create(ctx, &a))
	require.NoError(t, s.Create(ctx, &b))

	a.CurrentSharePrice = decimal.NewNullDecimal(decimal.RequireFromString("48.00"))
	b.Status = models.StatusClosed
	btc := models.CloseBuyToClose
	b.CloseType = &btc
	closedOn := date(2024, 1, 20)
	b.CloseDate = &closedOn
	b.ClosePrice = decimal.NewNullDecimal(decimal.RequireFromString("1.00"))
	b.CloseFee = decimal.NewNullDecimal(decimal.RequireFromString("0.65"))
	qty := 1
	b.CloseQuantity = &qty

	require.NoError(t, s.SaveBatch(ctx, []models.Trade{a, b}))

	gotA, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, gotA.CurrentSharePrice.Decimal.Equal(decimal.NewFromInt(48)))

	gotB, err := s.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, gotB.Status)
	require.NotNil(t, gotB.CloseType)
	assert.Equal(t, models.CloseBuyToClose, *gotB.CloseType)
	require.NotNil(t, gotB.CloseQuantity)
	assert.Equal(t, 1, *gotB.CloseQuantity)
	assert.True(t, gotB.ClosePrice.Decimal.Equal(decimal.NewFromInt(1)))
	assert.True(t, gotB.CloseDate.Equal(closedOn))
}

func TestSQLiteStore_SaveQuotesSkipsClosedTrades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	open := cspTrade("AAPL", date(2024, 1, 2))
	done := cspTrade("TSLA", date(2024, 1, 3))
	require.NoError(t, s.Create(ctx, &open))
	require.NoError(t, s.Create(ctx, &done))

	// The snapshot a refresh works from: both still open.
	snapshot := []models.Trade{open, done}

	exp := models.CloseExpired
	closedOn := date(2024, 2, 2)
	done.Status = models.StatusClosed
	done.CloseType = &exp
	done.CloseDate = &closedOn
	require.NoError(t, s.Save(ctx, done))

	snapshot[0].CurrentSharePrice = decimal.NewNullDecimal(decimal.RequireFromString("48.00"))
	snapshot[0].Fees = decimal.RequireFromString("99")
	snapshot[1].CurrentSharePrice = decimal.NewNullDecimal(decimal.RequireFromString("210.00"))

	ids, err := s.SaveQuotes(ctx, snapshot)
	require.NoError(t, err)
	assert.Equal(t, []string{open.ID}, ids)

	gotOpen, err := s.Get(ctx, open.ID)
	require.NoError(t, err)
	assert.True(t, gotOpen.CurrentSharePrice.Decimal.Equal(decimal.NewFromInt(48)))
	assert.True(t, gotOpen.Fees.Equal(decimal.RequireFromString("0.65")), "only the quote is written")

	gotDone, err := s.Get(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, gotDone.Status)
	require.NotNil(t, gotDone.CloseType)
	assert.Equal(t, models.CloseExpired, *gotDone.CloseType)
	assert.False(t, gotDone.CurrentSharePrice.Valid)
}

func TestSQLiteStore_SaveUnknownTrade(t *testing.T) {
	s := newTestStore(t)

	trade := cspTrade("AAPL", date(2024, 1, 2))
	trade.ID = "missing"
	err := s.Save(context.Background(), trade)
	assert.ErrorIs(t, err, apperrors.ErrTradeNotFound)
}

func TestSQLiteStore_LastRefresh(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	assert.True(t, s.GetLastRefresh(ctx).IsZero())

	at := time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC)
	require.NoError(t, s.SetLastRefresh(ctx, at))
	assert.True(t, s.GetLastRefresh(ctx).Equal(at))
}
