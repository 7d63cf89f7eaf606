package trading

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "wheel-tracker/internal/errors"
	"wheel-tracker/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func ptr[T any](v T) *T {
	return &v
}

// cspTrade is a one-contract $50 put sold for 2.50 with 0.65 in fees.
func cspTrade() models.Trade {
	return models.Trade{
		ID:          "t-1",
		Ticker:      "KO",
		OpenDate:    day(2024, 6, 3),
		Action:      models.ActionSellToOpen,
		Strategy:    ptr(models.StrategyCashSecuredPut),
		CreditDebit: models.Credit,
		Strike:      nullDec("50"),
		Expiration:  ptr(day(2024, 7, 3)),
		Quantity:    1,
		Premium:     dec("2.50"),
		Fees:        dec("0.65"),
		Status:      models.StatusOpen,
	}
}

func closed(t models.Trade, ct models.CloseType) models.Trade {
	t.Status = models.StatusClosed
	t.CloseType = ptr(ct)
	t.CloseDate = ptr(day(2024, 6, 20))
	return t
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func assertNullDecimal(t *testing.T, want string, got decimal.NullDecimal) {
	t.Helper()
	require.True(t, got.Valid, "want %s, got absent", want)
	assertDecimal(t, want, got.Decimal)
}

func TestRecalculate_CreditTotal(t *testing.T) {
	got := Recalculate(cspTrade(), day(2024, 6, 10), nil)
	assertDecimal(t, "249.35", got.Total)
}

func TestRecalculate_DebitTotal(t *testing.T) {
	tr := cspTrade()
	tr.CreditDebit = models.Debit
	got := Recalculate(tr, day(2024, 6, 10), nil)
	assertDecimal(t, "-250.65", got.Total)
}

func TestRecalculate_Days(t *testing.T) {
	got := Recalculate(cspTrade(), day(2024, 6, 26), nil)
	assert.Equal(t, 30, got.InitialDTE)
	require.NotNil(t, got.DTE)
	assert.Equal(t, 7, *got.DTE)
}

func TestRecalculate_DaysIgnoreTimeOfDay(t *testing.T) {
	today := time.Date(2024, 6, 26, 23, 59, 0, 0, time.FixedZone("EST", -5*3600))
	got := Recalculate(cspTrade(), today, nil)
	require.NotNil(t, got.DTE)
	assert.Equal(t, 7, *got.DTE)
}

func TestRecalculate_NoExpiration(t *testing.T) {
	tr := cspTrade()
	tr.Expiration = nil
	got := Recalculate(tr, day(2024, 6, 10), nil)
	assert.Nil(t, got.DTE)
	assert.Equal(t, 0, got.InitialDTE)
	assert.True(t, got.AnnualReturn.IsZero())
}

func TestRecalculate_Returns(t *testing.T) {
	got := Recalculate(cspTrade(), day(2024, 6, 10), nil)
	// 249.35 / 5000
	assertDecimal(t, "0.04987", got.CalculatedReturn)
	assert.True(t, got.AnnualReturn.Equal(dec("0.04987").Mul(decimal.NewFromInt(365)).Div(decimal.NewFromInt(30))))
	assert.True(t, got.AnnualReturn.GreaterThan(dec("0.6")))
}

func TestRecalculate_CSPMarkToMarket(t *testing.T) {
	q := dec("48")
	got := Recalculate(cspTrade(), day(2024, 6, 10), &q)

	assertNullDecimal(t, "48", got.CurrentSharePrice)
	assertNullDecimal(t, "49.975", got.Breakeven)
	assertNullDecimal(t, "-197.5", got.UnrealizedGainLoss)
	assertNullDecimal(t, "96", got.Moneyness)
	assert.False(t, got.RealizedGainLoss.Valid)
}

func TestRecalculate_CoveredCallHasNoUnrealized(t *testing.T) {
	tr := cspTrade()
	tr.Strategy = ptr(models.StrategyCoveredCall)
	q := dec("48")
	got := Recalculate(tr, day(2024, 6, 10), &q)

	assert.False(t, got.Breakeven.Valid)
	assert.False(t, got.UnrealizedGainLoss.Valid)
	assertNullDecimal(t, "96", got.Moneyness)
}

func TestRecalculate_KeepsStoredQuoteWhenNoneSupplied(t *testing.T) {
	tr := cspTrade()
	tr.CurrentSharePrice = nullDec("55")
	got := Recalculate(tr, day(2024, 6, 10), nil)
	assertNullDecimal(t, "110", got.Moneyness)
}

func TestRecalculate_ZeroStrikeHasNoMoneyness(t *testing.T) {
	tr := cspTrade()
	tr.Strike = nullDec("0")
	q := dec("48")
	got := Recalculate(tr, day(2024, 6, 10), &q)

	assert.False(t, got.Moneyness.Valid)
	assert.True(t, got.CalculatedReturn.IsZero())
}

// A trade without a strike is measured against a capital of 1, so the return
// equals the cash flow itself.
func TestRecalculate_MissingStrikeUsesNominalCapital(t *testing.T) {
	tr := cspTrade()
	tr.Strike = decimal.NullDecimal{}
	got := Recalculate(tr, day(2024, 6, 10), nil)

	assertDecimal(t, "249.35", got.CalculatedReturn)
	assert.False(t, got.Moneyness.Valid)
}

func TestRecalculate_Expired(t *testing.T) {
	got := Recalculate(closed(cspTrade(), models.CloseExpired), day(2024, 7, 5), nil)
	assertNullDecimal(t, "249.35", got.RealizedGainLoss)
	assert.False(t, got.UnrealizedGainLoss.Valid)
}

func TestRecalculate_BuyToCloseShort(t *testing.T) {
	tr := closed(cspTrade(), models.CloseBuyToClose)
	tr.ClosePrice = nullDec("1.00")
	tr.CloseFee = nullDec("0.65")

	got := Recalculate(tr, day(2024, 6, 20), nil)
	assertNullDecimal(t, "148.70", got.RealizedGainLoss)
}

func TestRecalculate_SellToCloseLong(t *testing.T) {
	tr := closed(cspTrade(), models.CloseSellToClose)
	tr.Action = models.ActionBuyShares
	tr.CreditDebit = models.Debit
	tr.ClosePrice = nullDec("3.00")
	tr.CloseFee = nullDec("0.65")

	// -250.65 + 300 - 0.65
	got := Recalculate(tr, day(2024, 6, 20), nil)
	assertNullDecimal(t, "48.70", got.RealizedGainLoss)
}

func TestRecalculate_BuyToCloseWithoutPrice(t *testing.T) {
	got := Recalculate(closed(cspTrade(), models.CloseBuyToClose), day(2024, 6, 20), nil)
	assert.False(t, got.RealizedGainLoss.Valid)
	assertDecimal(t, "249.35", got.Total)
}

func TestRecalculate_BuyToCloseWithoutFee(t *testing.T) {
	tr := closed(cspTrade(), models.CloseBuyToClose)
	tr.ClosePrice = nullDec("1.00")
	got := Recalculate(tr, day(2024, 6, 20), nil)
	assertNullDecimal(t, "149.35", got.RealizedGainLoss)
}

func TestRecalculate_Assigned(t *testing.T) {
	got := Recalculate(closed(cspTrade(), models.CloseAssigned), day(2024, 7, 5), nil)
	assertNullDecimal(t, "249.35", got.RealizedGainLoss)
	require.NotNil(t, got.DaysHeld)
	assert.Equal(t, 17, *got.DaysHeld)
}

func TestRecalculate_AssignedKeepsDaysHeld(t *testing.T) {
	tr := closed(cspTrade(), models.CloseAssigned)
	tr.DaysHeld = ptr(3)
	got := Recalculate(tr, day(2024, 7, 5), nil)
	assert.Equal(t, 3, *got.DaysHeld)
}

func TestRecalculate_Rolled(t *testing.T) {
	tr := closed(cspTrade(), models.CloseRolled)
	tr.ClosePrice = nullDec("1.20")
	tr.CloseQuantity = ptr(1)
	tr.CloseFee = nullDec("0.65")

	// 249.35 + 120 - 0.65
	got := Recalculate(tr, day(2024, 6, 20), nil)
	assertNullDecimal(t, "368.70", got.RealizedGainLoss)
}

func TestRecalculate_RolledMissingData(t *testing.T) {
	tr := closed(cspTrade(), models.CloseRolled)
	tr.ClosePrice = nullDec("1.20")
	got := Recalculate(tr, day(2024, 6, 20), nil)
	assert.False(t, got.RealizedGainLoss.Valid)
}

func TestRecalculate_ClosedWithoutType(t *testing.T) {
	tr := cspTrade()
	tr.Status = models.StatusClosed
	got := Recalculate(tr, day(2024, 6, 20), nil)
	assert.False(t, got.RealizedGainLoss.Valid)
}

func TestRecalculate_ClearsStaleDerivedFields(t *testing.T) {
	tr := cspTrade()
	tr.RealizedGainLoss = nullDec("999")
	tr.Breakeven = nullDec("1")
	tr.DTE = ptr(100)
	tr.Expiration = nil

	got := Recalculate(tr, day(2024, 6, 10), nil)
	assert.False(t, got.RealizedGainLoss.Valid)
	assert.False(t, got.Breakeven.Valid)
	assert.Nil(t, got.DTE)
}

func TestRecalculate_DoesNotMutateInput(t *testing.T) {
	tr := cspTrade()
	q := dec("48")
	_ = Recalculate(tr, day(2024, 6, 10), &q)
	assert.False(t, tr.CurrentSharePrice.Valid)
	assert.True(t, tr.Total.IsZero())
}

func TestNewTrade(t *testing.T) {
	tr := NewTrade(" aapl ", time.Date(2024, 6, 3, 15, 4, 5, 0, time.UTC))
	assert.Equal(t, "AAPL", tr.Ticker)
	assert.Equal(t, day(2024, 6, 3), tr.OpenDate)
	assert.Equal(t, models.ActionSellToOpen, tr.Action)
	assert.Equal(t, models.Credit, tr.CreditDebit)
	assert.Equal(t, 1, tr.Quantity)
	assert.Equal(t, models.StatusOpen, tr.Status)
}

func TestClose_BuyToClose(t *testing.T) {
	got, err := Close(cspTrade(), CloseRequest{
		Type:  models.CloseBuyToClose,
		Price: nullDec("1.00"),
		Fee:   nullDec("0.65"),
	}, day(2024, 6, 20))
	require.NoError(t, err)

	assert.Equal(t, models.StatusClosed, got.Status)
	require.NotNil(t, got.CloseDate)
	assert.Equal(t, day(2024, 6, 20), *got.CloseDate)
	assertNullDecimal(t, "148.70", got.RealizedGainLoss)
}

func TestClose_AlreadyClosed(t *testing.T) {
	tr := closed(cspTrade(), models.CloseExpired)
	_, err := Close(tr, CloseRequest{Type: models.CloseExpired}, day(2024, 7, 5))
	assert.True(t, apperrors.Is(err, apperrors.ErrTradeAlreadyClosed))
}

func TestClose_RejectsBadInput(t *testing.T) {
	_, err := Close(cspTrade(), CloseRequest{Type: "NOPE"}, day(2024, 6, 20))
	assert.True(t, apperrors.Is(err, apperrors.ErrInputValidation))

	_, err = Close(cspTrade(), CloseRequest{Type: models.CloseRolled, Quantity: ptr(0)}, day(2024, 6, 20))
	assert.True(t, apperrors.Is(err, apperrors.ErrInputValidation))

	_, err = Close(cspTrade(), CloseRequest{Type: models.CloseBuyToClose, Fee: nullDec("-1")}, day(2024, 6, 20))
	assert.True(t, apperrors.Is(err, apperrors.ErrInputValidation))
}

func TestPrepareForSave_StampsCloseDate(t *testing.T) {
	tr := cspTrade()
	tr.Status = models.StatusClosed
	tr.CloseType = ptr(models.CloseAssigned)

	got := PrepareForSave(tr, day(2024, 6, 13))
	require.NotNil(t, got.CloseDate)
	assert.Equal(t, day(2024, 6, 13), *got.CloseDate)
	require.NotNil(t, got.DaysHeld)
	assert.Equal(t, 10, *got.DaysHeld)
}
