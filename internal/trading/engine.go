package trading

import (
	"time"

	"github.com/shopspring/decimal"

	"wheel-tracker/internal/models"
)

var (
	hundred        = decimal.NewFromInt(100)
	daysPerYear    = decimal.NewFromInt(365)
	nominalCapital = decimal.NewFromInt(1)
	multiplier     = decimal.NewFromInt(models.ContractMultiplier)
)

// Recalculate returns t with every derived field recomputed from its
// authoritative fields, the given day and an optional fresh quote. A non-nil
// quote is stored as the current share price before anything else.
//
// Recalculate performs no I/O and keeps no state; it is safe to call from any
// number of goroutines as long as each call works on its own Trade value.
func Recalculate(t models.Trade, today time.Time, quote *decimal.Decimal) models.Trade {
	if quote != nil {
		t.CurrentSharePrice = decimal.NewNullDecimal(*quote)
	}

	resetDerived(&t)

	if t.Expiration != nil {
		t.InitialDTE = daysBetween(t.OpenDate, *t.Expiration)
		dte := daysBetween(today, *t.Expiration)
		t.DTE = &dte
	}

	t.Total = openingCashFlow(&t)
	t.CalculatedReturn = returnOnCapital(&t)
	if t.InitialDTE > 0 {
		t.AnnualReturn = t.CalculatedReturn.Mul(daysPerYear).Div(decimal.NewFromInt(int64(t.InitialDTE)))
	}

	if t.CurrentSharePrice.Valid && t.Strike.Valid && !t.Strike.Decimal.IsZero() {
		t.Moneyness = decimal.NewNullDecimal(t.CurrentSharePrice.Decimal.Div(t.Strike.Decimal).Mul(hundred))
	}

	switch t.Status {
	case models.StatusClosed:
		settle(&t)
	case models.StatusOpen:
		markToMarket(&t)
	}

	return t
}

func resetDerived(t *models.Trade) {
	t.InitialDTE = 0
	t.DTE = nil
	t.Total = decimal.Zero
	t.CalculatedReturn = decimal.Zero
	t.AnnualReturn = decimal.Zero
	t.Breakeven = decimal.NullDecimal{}
	t.Moneyness = decimal.NullDecimal{}
	t.RealizedGainLoss = decimal.NullDecimal{}
	t.UnrealizedGainLoss = decimal.NullDecimal{}
}

// openingCashFlow is the signed net cash at open: premium received for a
// credit, premium paid for a debit, fees always subtracted.
func openingCashFlow(t *models.Trade) decimal.Decimal {
	gross := t.Premium.Mul(decimal.NewFromInt(int64(t.Quantity))).Mul(multiplier)
	if t.CreditDebit == models.Debit {
		gross = gross.Neg()
	}
	return gross.Sub(t.Fees)
}

// returnOnCapital divides the opening cash flow by the capital at risk. A
// trade without a strike is measured against a nominal capital of 1, which
// makes the ratio equal to the raw cash flow.
func returnOnCapital(t *models.Trade) decimal.Decimal {
	capital := nominalCapital
	if t.Strike.Valid {
		capital = t.Strike.Decimal.Mul(decimal.NewFromInt(int64(t.Quantity))).Mul(multiplier)
	}
	if !capital.IsPositive() {
		return decimal.Zero
	}
	return t.Total.Div(capital)
}

// settle fixes the realized result of a closed trade. Close events missing the
// inputs they need leave the result unset.
func settle(t *models.Trade) {
	if t.CloseType == nil {
		return
	}
	closeFee := t.CloseFee.Decimal
	if !t.CloseFee.Valid {
		closeFee = decimal.Zero
	}

	switch *t.CloseType {
	case models.CloseExpired:
		t.RealizedGainLoss = decimal.NewNullDecimal(t.Total)

	case models.CloseBuyToClose, models.CloseSellToClose:
		if !t.ClosePrice.Valid {
			return
		}
		notional := t.ClosePrice.Decimal.Mul(decimal.NewFromInt(int64(t.Quantity))).Mul(multiplier)
		closeValue := notional.Sub(closeFee)
		if t.Action == models.ActionSellToOpen {
			closeValue = notional.Neg().Sub(closeFee)
		}
		t.RealizedGainLoss = decimal.NewNullDecimal(closeValue.Add(t.Total))

	case models.CloseAssigned:
		t.RealizedGainLoss = decimal.NewNullDecimal(t.Total)
		if t.DaysHeld == nil && t.CloseDate != nil {
			held := daysBetween(t.OpenDate, *t.CloseDate)
			t.DaysHeld = &held
		}

	case models.CloseRolled:
		if !t.ClosePrice.Valid || t.CloseQuantity == nil {
			return
		}
		rolled := t.ClosePrice.Decimal.Mul(decimal.NewFromInt(int64(*t.CloseQuantity))).Mul(multiplier)
		t.RealizedGainLoss = decimal.NewNullDecimal(t.Total.Add(rolled).Sub(closeFee))
	}
}

// markToMarket estimates the open result of a cash-secured put against the
// latest share price.
func markToMarket(t *models.Trade) {
	if !t.StrategyIs(models.StrategyCashSecuredPut) {
		return
	}
	if !t.CurrentSharePrice.Valid || !t.Strike.Valid || t.Quantity <= 0 {
		return
	}
	breakeven := t.Strike.Decimal.Sub(t.Premium.Div(hundred))
	t.Breakeven = decimal.NewNullDecimal(breakeven)
	t.UnrealizedGainLoss = decimal.NewNullDecimal(
		t.CurrentSharePrice.Decimal.Sub(breakeven).Mul(decimal.NewFromInt(int64(t.Quantity))).Mul(multiplier),
	)
}

// daysBetween counts calendar days from one date to another, ignoring time of
// day and location. The result is negative when to is before from.
func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
