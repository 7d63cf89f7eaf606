package broker

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wheel-tracker/internal/resilience"
)

// GuardedQuoteSource short-circuits calls to a provider that keeps failing.
// While the breaker is open every call returns an error wrapping
// errors.ErrCircuitOpen without touching the network.
type GuardedQuoteSource struct {
	next    QuoteSource
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// NewGuardedQuoteSource wraps next with breaker.
func NewGuardedQuoteSource(next QuoteSource, breaker *resilience.CircuitBreaker, logger zerolog.Logger) *GuardedQuoteSource {
	return &GuardedQuoteSource{next: next, breaker: breaker, logger: logger}
}

// GetPrice forwards to the wrapped source unless the circuit is open. Absent
// prices count as successes.
func (g *GuardedQuoteSource) GetPrice(ctx context.Context, ticker string) (decimal.NullDecimal, error) {
	before := g.breaker.State()
	price, err := resilience.ExecuteWithResult(ctx, g.breaker, func(ctx context.Context) (decimal.NullDecimal, error) {
		return g.next.GetPrice(ctx, ticker)
	})
	if after := g.breaker.State(); after != before {
		g.logger.Warn().
			Str("provider", g.breaker.Name()).
			Str("from", string(before)).
			Str("to", string(after)).
			Msg("Quote provider circuit changed state")
	}
	return price, err
}

// Breaker exposes the underlying circuit breaker.
func (g *GuardedQuoteSource) Breaker() *resilience.CircuitBreaker {
	return g.breaker
}
