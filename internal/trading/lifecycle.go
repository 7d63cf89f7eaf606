package trading

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "wheel-tracker/internal/errors"
	"wheel-tracker/internal/models"
)

// NewTrade returns a trade pre-filled with the usual entry defaults: a
// one-contract credit sold to open today.
func NewTrade(ticker string, today time.Time) models.Trade {
	return models.Trade{
		Ticker:      strings.ToUpper(strings.TrimSpace(ticker)),
		OpenDate:    dateOnly(today),
		Action:      models.ActionSellToOpen,
		CreditDebit: models.Credit,
		Quantity:    1,
		Premium:     decimal.Zero,
		Fees:        decimal.Zero,
		Status:      models.StatusOpen,
	}
}

// CloseRequest carries the user-entered close event for a trade.
type CloseRequest struct {
	Type     models.CloseType
	Date     *time.Time
	Quantity *int
	Price    decimal.NullDecimal
	Fee      decimal.NullDecimal
	DaysHeld *int
}

// Close applies req to an open trade, marks it closed and fixes its realized
// result. The close date defaults to today.
func Close(t models.Trade, req CloseRequest, today time.Time) (models.Trade, error) {
	if !t.IsOpen() {
		return t, apperrors.Wrapf(apperrors.ErrTradeAlreadyClosed, "trade %s", t.ID)
	}
	if !req.Type.Valid() {
		return t, apperrors.NewValidationError("close_type", req.Type, "unknown close type")
	}
	if req.Quantity != nil && *req.Quantity <= 0 {
		return t, apperrors.NewValidationError("close_quantity", *req.Quantity, "must be positive")
	}
	if req.Fee.Valid && req.Fee.Decimal.IsNegative() {
		return t, apperrors.NewValidationError("close_fee", req.Fee.Decimal, "must not be negative")
	}

	closeType := req.Type
	t.Status = models.StatusClosed
	t.CloseType = &closeType
	t.CloseQuantity = req.Quantity
	t.ClosePrice = req.Price
	t.CloseFee = req.Fee
	t.DaysHeld = req.DaysHeld
	if req.Date != nil {
		d := dateOnly(*req.Date)
		t.CloseDate = &d
	}

	return PrepareForSave(t, today), nil
}

// PrepareForSave stamps today's date on closed trades missing a close date and
// recalculates derived fields before the trade is written.
func PrepareForSave(t models.Trade, today time.Time) models.Trade {
	if t.Status == models.StatusClosed && t.CloseDate == nil {
		d := dateOnly(today)
		t.CloseDate = &d
	}
	return Recalculate(t, today, nil)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
