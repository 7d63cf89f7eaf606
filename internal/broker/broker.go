// Package broker provides market quote sources used to price open positions.
package broker

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	apperrors "wheel-tracker/internal/errors"
)

// QuoteSource defines the interface for fetching the latest share price.
//
// An absent price (Valid == false) with a nil error means the provider had
// nothing to report, such as an unknown symbol or a closed market. A non-nil
// error means the fetch itself failed. Implementations must be safe for
// concurrent use.
type QuoteSource interface {
	GetPrice(ctx context.Context, ticker string) (decimal.NullDecimal, error)
}

// QuoteSourceFunc adapts a function to QuoteSource.
type QuoteSourceFunc func(ctx context.Context, ticker string) (decimal.NullDecimal, error)

// GetPrice calls f.
func (f QuoteSourceFunc) GetPrice(ctx context.Context, ticker string) (decimal.NullDecimal, error) {
	return f(ctx, ticker)
}

// normalizeTicker upper-cases and trims a ticker symbol.
func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// StaticQuoteSource serves prices from a fixed map. Tickers not in the map are
// reported as absent.
type StaticQuoteSource struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewStaticQuoteSource creates a static source from ticker to price strings.
func NewStaticQuoteSource(prices map[string]string) (*StaticQuoteSource, error) {
	s := &StaticQuoteSource{prices: make(map[string]decimal.Decimal, len(prices))}
	for ticker, raw := range prices {
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, apperrors.NewValidationError("quotes.static."+ticker, raw, "not a decimal price")
		}
		s.prices[normalizeTicker(ticker)] = p
	}
	return s, nil
}

// Set stores or replaces the price for ticker.
func (s *StaticQuoteSource) Set(ticker string, price decimal.Decimal) {
	s.mu.Lock()
	s.prices[normalizeTicker(ticker)] = price
	s.mu.Unlock()
}

// GetPrice returns the configured price for ticker.
func (s *StaticQuoteSource) GetPrice(ctx context.Context, ticker string) (decimal.NullDecimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.NullDecimal{}, err
	}
	s.mu.RLock()
	p, ok := s.prices[normalizeTicker(ticker)]
	s.mu.RUnlock()
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	return decimal.NewNullDecimal(p), nil
}
