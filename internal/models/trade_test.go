package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "wheel-tracker/internal/errors"
)

func validTrade() Trade {
	csp := StrategyCashSecuredPut
	return Trade{
		Ticker:      "KO",
		OpenDate:    time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		Action:      ActionSellToOpen,
		Strategy:    &csp,
		CreditDebit: Credit,
		Strike:      decimal.NewNullDecimal(decimal.NewFromInt(50)),
		Quantity:    1,
		Premium:     decimal.RequireFromString("2.50"),
		Fees:        decimal.RequireFromString("0.65"),
		Status:      StatusOpen,
	}
}

func TestTrade_Validate(t *testing.T) {
	badStrategy := OptionStrategy("STRADDLE")
	closeType := CloseExpired
	zero := 0

	tests := []struct {
		name   string
		mutate func(*Trade)
		field  string
	}{
		{name: "valid", mutate: func(*Trade) {}},
		{name: "blank ticker", mutate: func(tr *Trade) { tr.Ticker = "  " }, field: "ticker"},
		{name: "zero quantity", mutate: func(tr *Trade) { tr.Quantity = 0 }, field: "quantity"},
		{name: "negative quantity", mutate: func(tr *Trade) { tr.Quantity = -2 }, field: "quantity"},
		{name: "unknown action", mutate: func(tr *Trade) { tr.Action = "HOLD" }, field: "action"},
		{name: "unknown strategy", mutate: func(tr *Trade) { tr.Strategy = &badStrategy }, field: "strategy"},
		{name: "no strategy", mutate: func(tr *Trade) { tr.Strategy = nil }},
		{name: "bad credit debit", mutate: func(tr *Trade) { tr.CreditDebit = "Both" }, field: "credit_debit"},
		{name: "negative premium", mutate: func(tr *Trade) { tr.Premium = decimal.NewFromInt(-1) }, field: "premium"},
		{name: "negative fees", mutate: func(tr *Trade) { tr.Fees = decimal.NewFromInt(-1) }, field: "fees"},
		{name: "negative strike", mutate: func(tr *Trade) { tr.Strike = decimal.NewNullDecimal(decimal.NewFromInt(-5)) }, field: "strike"},
		{name: "share trade", mutate: func(tr *Trade) { tr.Action = ActionBuyShares; tr.Strategy = nil; tr.Strike = decimal.NullDecimal{} }},
		{name: "share trade with strike", mutate: func(tr *Trade) { tr.Action = ActionBuyShares; tr.Strategy = nil }, field: "strike"},
		{name: "share trade with expiration", mutate: func(tr *Trade) {
			tr.Action = ActionSellShares
			tr.Strike = decimal.NullDecimal{}
			exp := tr.OpenDate.AddDate(0, 1, 0)
			tr.Expiration = &exp
		}, field: "expiration"},
		{name: "option without strike", mutate: func(tr *Trade) { tr.Strike = decimal.NullDecimal{} }},
		{name: "zero close quantity", mutate: func(tr *Trade) { tr.Status = StatusClosed; tr.CloseQuantity = &zero }, field: "close_quantity"},
		{name: "open with close fields", mutate: func(tr *Trade) { tr.CloseType = &closeType }, field: "status"},
		{name: "closed with close fields", mutate: func(tr *Trade) { tr.Status = StatusClosed; tr.CloseType = &closeType }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := validTrade()
			tt.mutate(&tr)
			err := tr.Validate()

			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrInputValidation))

			var ve *apperrors.ValidationError
			require.True(t, apperrors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestParsers(t *testing.T) {
	a, err := ParseAction(" sto ")
	require.NoError(t, err)
	assert.Equal(t, ActionSellToOpen, a)

	s, err := ParseStrategy("cc")
	require.NoError(t, err)
	assert.Equal(t, StrategyCoveredCall, s)

	cd, err := ParseCreditDebit("Debit")
	require.NoError(t, err)
	assert.Equal(t, Debit, cd)

	ct, err := ParseCloseType("roll")
	require.NoError(t, err)
	assert.Equal(t, CloseRolled, ct)

	for _, bad := range []func() error{
		func() error { _, err := ParseAction("buy"); return err },
		func() error { _, err := ParseStrategy("iron condor"); return err },
		func() error { _, err := ParseCreditDebit(""); return err },
		func() error { _, err := ParseCloseType("CLOSED"); return err },
	} {
		assert.True(t, apperrors.Is(bad(), apperrors.ErrInputValidation))
	}
}

func TestTradeFilter(t *testing.T) {
	ko := validTrade()
	pep := validTrade()
	pep.Ticker = "PEP"
	closedKO := validTrade()
	closedKO.Status = StatusClosed

	trades := []Trade{ko, pep, closedKO}

	assert.Len(t, TradeFilter{}.Apply(trades), 3)
	assert.Len(t, TradeFilter{OnlyOpen: true}.Apply(trades), 2)

	got := TradeFilter{Ticker: "k"}.Apply(trades)
	require.Len(t, got, 2)
	assert.Equal(t, "KO", got[0].Ticker)

	got = TradeFilter{Ticker: "ko", OnlyOpen: true}.Apply(trades)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsOpen())
}
