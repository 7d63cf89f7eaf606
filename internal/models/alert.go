package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertKind identifies the risk rule that raised an alert.
type AlertKind string

const (
	AlertExpiration AlertKind = "expiration"
	AlertAssignment AlertKind = "assignment"
)

// AlertLevel is the severity an alert is surfaced with.
type AlertLevel string

const (
	LevelInfo    AlertLevel = "info"
	LevelWarning AlertLevel = "warning"
	LevelError   AlertLevel = "error"
)

// Alert is a risk notification raised for an open position.
type Alert struct {
	Kind      AlertKind
	TradeID   string
	Ticker    string
	Level     AlertLevel
	Message   string
	DTE       *int
	Moneyness decimal.NullDecimal
	RaisedAt  time.Time
}
