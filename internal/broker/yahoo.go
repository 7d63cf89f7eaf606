package broker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	apperrors "wheel-tracker/internal/errors"
)

const (
	DefaultYahooBaseURL   = "https://query1.finance.yahoo.com"
	DefaultYahooTimeout   = 10 * time.Second
	DefaultYahooRateLimit = 2 // requests per second

	yahooProvider  = "yahoo"
	yahooUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// YahooQuoteSource fetches the regular market price from the Yahoo Finance
// chart endpoint.
type YahooQuoteSource struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// YahooOption configures a YahooQuoteSource.
type YahooOption func(*YahooQuoteSource)

// WithYahooBaseURL overrides the API host.
func WithYahooBaseURL(baseURL string) YahooOption {
	return func(y *YahooQuoteSource) {
		y.http.SetBaseURL(baseURL)
	}
}

// WithYahooTimeout sets the HTTP timeout.
func WithYahooTimeout(timeout time.Duration) YahooOption {
	return func(y *YahooQuoteSource) {
		y.http.SetTimeout(timeout)
	}
}

// WithYahooRateLimit limits outgoing requests per second. Zero disables limiting.
func WithYahooRateLimit(requestsPerSecond float64, burst int) YahooOption {
	return func(y *YahooQuoteSource) {
		if requestsPerSecond <= 0 {
			y.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		y.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithYahooRetries enables transport retries on 5xx and 429 responses.
// Retries are off unless configured.
func WithYahooRetries(count int) YahooOption {
	return func(y *YahooQuoteSource) {
		if count <= 0 {
			return
		}
		y.http.
			SetRetryCount(count).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(5 * time.Second).
			AddRetryCondition(isRetryableResp)
	}
}

// WithYahooLogger sets the logger.
func WithYahooLogger(logger zerolog.Logger) YahooOption {
	return func(y *YahooQuoteSource) {
		y.logger = logger
	}
}

// NewYahooQuoteSource creates a Yahoo Finance quote source.
func NewYahooQuoteSource(opts ...YahooOption) *YahooQuoteSource {
	y := &YahooQuoteSource{
		http: resty.New().
			SetBaseURL(DefaultYahooBaseURL).
			SetTimeout(DefaultYahooTimeout).
			SetHeader("User-Agent", yahooUserAgent).
			SetHeader("Accept", "application/json"),
		limiter: rate.NewLimiter(rate.Limit(DefaultYahooRateLimit), DefaultYahooRateLimit),
		logger:  zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(y)
	}

	return y
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string              `json:"symbol"`
				Currency           string              `json:"currency"`
				RegularMarketPrice decimal.NullDecimal `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetPrice returns the regular market price for ticker.
func (y *YahooQuoteSource) GetPrice(ctx context.Context, ticker string) (decimal.NullDecimal, error) {
	symbol := normalizeTicker(ticker)

	if err := y.limiter.Wait(ctx); err != nil {
		return decimal.NullDecimal{}, apperrors.NewQuoteError(yahooProvider, symbol, fmt.Errorf("rate limit wait: %w", err))
	}

	var out chartResponse
	resp, err := y.http.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParams(map[string]string{"interval": "1d", "range": "1d"}).
		SetResult(&out).
		SetError(&out).
		Get("/v8/finance/chart/{symbol}")
	if err != nil {
		return decimal.NullDecimal{}, apperrors.NewQuoteError(yahooProvider, symbol, err)
	}

	y.logger.Debug().
		Str("ticker", symbol).
		Int("status", resp.StatusCode()).
		Dur("latency", resp.Time()).
		Msg("Yahoo chart request")

	if resp.StatusCode() == http.StatusNotFound {
		return decimal.NullDecimal{}, nil
	}
	if resp.IsError() {
		return decimal.NullDecimal{}, apperrors.NewQuoteError(yahooProvider, symbol,
			fmt.Errorf("unexpected status %d: %w", resp.StatusCode(), apperrors.ErrQuoteUnavailable))
	}

	if out.Chart.Error != nil || len(out.Chart.Result) == 0 {
		return decimal.NullDecimal{}, nil
	}

	price := out.Chart.Result[0].Meta.RegularMarketPrice
	if !price.Valid || !price.Decimal.IsPositive() {
		return decimal.NullDecimal{}, nil
	}
	return price, nil
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}
