package broker

import (
	"strings"

	"github.com/rs/zerolog"

	"wheel-tracker/internal/config"
	apperrors "wheel-tracker/internal/errors"
	"wheel-tracker/internal/resilience"
)

// NewQuoteSource assembles the configured provider, guarded by a circuit
// breaker and fronted by a TTL cache when those are enabled.
func NewQuoteSource(cfg *config.Config, logger zerolog.Logger) (QuoteSource, error) {
	q := cfg.Quotes
	logger = logger.With().Str("component", "quotes").Str("provider", q.Provider).Logger()

	var (
		source QuoteSource
		remote = true
	)

	switch strings.ToLower(q.Provider) {
	case "yahoo", "":
		opts := []YahooOption{
			WithYahooTimeout(q.Timeout),
			WithYahooRateLimit(q.RateLimit, q.Burst),
			WithYahooRetries(q.Retries),
			WithYahooLogger(logger),
		}
		if q.Yahoo.BaseURL != "" {
			opts = append(opts, WithYahooBaseURL(q.Yahoo.BaseURL))
		}
		source = NewYahooQuoteSource(opts...)
	case "alpaca":
		source = NewAlpacaQuoteSource(AlpacaConfig{
			APIKey:    cfg.Credentials.Alpaca.APIKey,
			APISecret: cfg.Credentials.Alpaca.APISecret,
			BaseURL:   q.Alpaca.BaseURL,
			Feed:      q.Alpaca.Feed,
		}, logger)
	case "static":
		static, err := NewStaticQuoteSource(q.Static)
		if err != nil {
			return nil, err
		}
		source = static
		remote = false
	default:
		return nil, apperrors.Wrapf(apperrors.ErrUnknownProvider, "%q", q.Provider)
	}

	if remote && q.Breaker.Enabled {
		breaker := resilience.NewCircuitBreaker(strings.ToLower(q.Provider), breakerConfig(q.Breaker))
		source = NewGuardedQuoteSource(source, breaker, logger)
	}

	if remote && q.CacheTTL > 0 {
		cached, err := NewCachedQuoteSource(source, q.CacheTTL)
		if err != nil {
			return nil, apperrors.Wrap(err, "creating quote cache")
		}
		source = cached
	}

	logger.Debug().Bool("breaker", remote && q.Breaker.Enabled).Dur("cache_ttl", q.CacheTTL).Msg("Quote source ready")
	return source, nil
}

// breakerConfig overlays the [quotes.breaker] settings on the defaults.
func breakerConfig(b config.BreakerConfig) resilience.CircuitBreakerConfig {
	bc := resilience.DefaultCircuitBreakerConfig()
	if b.FailureThreshold > 0 {
		bc.FailureThreshold = b.FailureThreshold
	}
	if b.Cooldown > 0 {
		bc.Cooldown = b.Cooldown
	}
	return bc
}
