// Package models defines the wheel trade record and the alerts raised for it.
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "wheel-tracker/internal/errors"
)

// ContractMultiplier is the number of shares one option contract controls.
const ContractMultiplier = 100

// ActionType is the opening transaction of a trade.
type ActionType string

const (
	ActionSellToOpen ActionType = "STO"
	ActionBuyToClose ActionType = "BTC"
	ActionBuyShares  ActionType = "BUY_SHARES"
	ActionSellShares ActionType = "SELL_SHARES"
)

// Valid reports whether a is a known action.
func (a ActionType) Valid() bool {
	switch a {
	case ActionSellToOpen, ActionBuyToClose, ActionBuyShares, ActionSellShares:
		return true
	}
	return false
}

// IsOption reports whether the action opens an option leg.
func (a ActionType) IsOption() bool {
	return a == ActionSellToOpen || a == ActionBuyToClose
}

// OptionStrategy is the wheel leg a trade belongs to.
type OptionStrategy string

const (
	StrategyCashSecuredPut OptionStrategy = "CSP"
	StrategyCoveredCall    OptionStrategy = "CC"
	StrategyPut            OptionStrategy = "PUT"
	StrategyCall           OptionStrategy = "CALL"
)

// Valid reports whether s is a known strategy.
func (s OptionStrategy) Valid() bool {
	switch s {
	case StrategyCashSecuredPut, StrategyCoveredCall, StrategyPut, StrategyCall:
		return true
	}
	return false
}

// IsPut reports whether s is a put leg, the side that risks assignment
// when the share price falls toward the strike.
func (s OptionStrategy) IsPut() bool {
	return s == StrategyCashSecuredPut || s == StrategyPut
}

// CreditDebit is the sign convention for the premium.
type CreditDebit string

const (
	Credit CreditDebit = "Credit"
	Debit  CreditDebit = "Debit"
)

// Valid reports whether c is Credit or Debit.
func (c CreditDebit) Valid() bool {
	return c == Credit || c == Debit
}

// TradeStatus is the lifecycle state of a trade.
type TradeStatus string

const (
	StatusOpen   TradeStatus = "Open"
	StatusClosed TradeStatus = "Closed"
)

// Valid reports whether s is Open or Closed.
func (s TradeStatus) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

// CloseType is how a trade was closed.
type CloseType string

const (
	CloseBuyToClose  CloseType = "BTC"
	CloseSellToClose CloseType = "STC"
	CloseExpired     CloseType = "EXP"
	CloseAssigned    CloseType = "ASS"
	CloseRolled      CloseType = "ROLL"
)

// Valid reports whether c is a known close type.
func (c CloseType) Valid() bool {
	switch c {
	case CloseBuyToClose, CloseSellToClose, CloseExpired, CloseAssigned, CloseRolled:
		return true
	}
	return false
}

// ParseAction parses an action name case-insensitively.
func ParseAction(s string) (ActionType, error) {
	a := ActionType(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", apperrors.NewValidationError("action", s, "must be one of STO, BTC, BUY_SHARES, SELL_SHARES")
	}
	return a, nil
}

// ParseStrategy parses a strategy name case-insensitively.
func ParseStrategy(s string) (OptionStrategy, error) {
	st := OptionStrategy(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", apperrors.NewValidationError("strategy", s, "must be one of CSP, CC, PUT, CALL")
	}
	return st, nil
}

// ParseCreditDebit parses "credit" or "debit".
func ParseCreditDebit(s string) (CreditDebit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "credit":
		return Credit, nil
	case "debit":
		return Debit, nil
	}
	return "", apperrors.NewValidationError("credit_debit", s, "must be Credit or Debit")
}

// ParseCloseType parses a close type name case-insensitively.
func ParseCloseType(s string) (CloseType, error) {
	c := CloseType(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", apperrors.NewValidationError("close_type", s, "must be one of BTC, STC, EXP, ASS, ROLL")
	}
	return c, nil
}

// Trade is one opened option or share transaction of a wheel.
//
// Fields above the Derived marker are authoritative and persisted. Derived
// fields are recomputed by trading.Recalculate after every load, refresh and
// save and are never stored.
type Trade struct {
	ID          string
	Ticker      string
	OpenDate    time.Time
	Action      ActionType
	Strategy    *OptionStrategy
	CreditDebit CreditDebit
	PriceAtOpen decimal.NullDecimal
	Expiration  *time.Time
	Strike      decimal.NullDecimal
	Quantity    int
	Premium     decimal.Decimal
	Fees        decimal.Decimal
	Status      TradeStatus

	CloseDate     *time.Time
	CloseType     *CloseType
	CloseQuantity *int
	ClosePrice    decimal.NullDecimal
	CloseFee      decimal.NullDecimal
	DaysHeld      *int

	CurrentSharePrice decimal.NullDecimal

	// Derived
	InitialDTE         int
	DTE                *int
	Total              decimal.Decimal
	CalculatedReturn   decimal.Decimal
	AnnualReturn       decimal.Decimal
	Breakeven          decimal.NullDecimal
	Moneyness          decimal.NullDecimal
	RealizedGainLoss   decimal.NullDecimal
	UnrealizedGainLoss decimal.NullDecimal
}

// IsOpen reports whether the trade is still open.
func (t *Trade) IsOpen() bool {
	return t.Status == StatusOpen
}

// StrategyIs reports whether the trade carries strategy s.
func (t *Trade) StrategyIs(s OptionStrategy) bool {
	return t.Strategy != nil && *t.Strategy == s
}

// Validate checks the entry-boundary invariants of a trade.
func (t *Trade) Validate() error {
	if strings.TrimSpace(t.Ticker) == "" {
		return apperrors.NewValidationError("ticker", t.Ticker, "ticker is required")
	}
	if t.Quantity <= 0 {
		return apperrors.NewValidationError("quantity", t.Quantity, "must be positive")
	}
	if !t.Action.Valid() {
		return apperrors.NewValidationError("action", t.Action, "unknown action")
	}
	if t.Strategy != nil && !t.Strategy.Valid() {
		return apperrors.NewValidationError("strategy", *t.Strategy, "unknown strategy")
	}
	if !t.CreditDebit.Valid() {
		return apperrors.NewValidationError("credit_debit", t.CreditDebit, "must be Credit or Debit")
	}
	if !t.Status.Valid() {
		return apperrors.NewValidationError("status", t.Status, "must be Open or Closed")
	}
	if t.Premium.IsNegative() {
		return apperrors.NewValidationError("premium", t.Premium, "must not be negative")
	}
	if t.Fees.IsNegative() {
		return apperrors.NewValidationError("fees", t.Fees, "must not be negative")
	}
	if t.Strike.Valid && t.Strike.Decimal.IsNegative() {
		return apperrors.NewValidationError("strike", t.Strike.Decimal, "must not be negative")
	}
	if !t.Action.IsOption() && t.Strike.Valid {
		return apperrors.NewValidationError("strike", t.Strike.Decimal, "only option legs have a strike")
	}
	if !t.Action.IsOption() && t.Expiration != nil {
		return apperrors.NewValidationError("expiration", *t.Expiration, "only option legs expire")
	}
	if t.CloseFee.Valid && t.CloseFee.Decimal.IsNegative() {
		return apperrors.NewValidationError("close_fee", t.CloseFee.Decimal, "must not be negative")
	}
	if t.CloseQuantity != nil && *t.CloseQuantity <= 0 {
		return apperrors.NewValidationError("close_quantity", *t.CloseQuantity, "must be positive")
	}
	if t.CloseType != nil && !t.CloseType.Valid() {
		return apperrors.NewValidationError("close_type", *t.CloseType, "unknown close type")
	}
	if t.Status == StatusOpen && (t.CloseType != nil || t.CloseDate != nil) {
		return apperrors.NewValidationError("status", t.Status, "open trade cannot carry close fields")
	}
	return nil
}

// TradeFilter narrows a list of trades for display.
type TradeFilter struct {
	Ticker   string
	OnlyOpen bool
}

// Match reports whether t passes the filter. Ticker matching is a
// case-insensitive substring match.
func (f TradeFilter) Match(t *Trade) bool {
	if f.OnlyOpen && !t.IsOpen() {
		return false
	}
	if f.Ticker != "" && !strings.Contains(strings.ToUpper(t.Ticker), strings.ToUpper(strings.TrimSpace(f.Ticker))) {
		return false
	}
	return true
}

// Apply returns the trades that pass the filter, preserving order.
func (f TradeFilter) Apply(trades []Trade) []Trade {
	out := make([]Trade, 0, len(trades))
	for i := range trades {
		if f.Match(&trades[i]) {
			out = append(out, trades[i])
		}
	}
	return out
}
