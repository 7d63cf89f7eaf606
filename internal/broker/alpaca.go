package broker

import (
	"context"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "wheel-tracker/internal/errors"
)

const alpacaProvider = "alpaca"

// latestTradeClient is the part of the Alpaca market data client we use.
type latestTradeClient interface {
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
}

// AlpacaConfig holds Alpaca market data credentials.
type AlpacaConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
	// Feed is "iex" for free accounts or "sip" for paid ones.
	Feed string
}

// AlpacaQuoteSource prices tickers from the latest trade on Alpaca's market
// data API.
type AlpacaQuoteSource struct {
	client latestTradeClient
	feed   marketdata.Feed
	logger zerolog.Logger
}

// NewAlpacaQuoteSource creates an Alpaca quote source.
func NewAlpacaQuoteSource(cfg AlpacaConfig, logger zerolog.Logger) *AlpacaQuoteSource {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
	})
	return newAlpacaQuoteSource(client, cfg.Feed, logger)
}

func newAlpacaQuoteSource(client latestTradeClient, feed string, logger zerolog.Logger) *AlpacaQuoteSource {
	f := marketdata.Feed(feed)
	if f == "" {
		f = marketdata.IEX
	}
	return &AlpacaQuoteSource{
		client: client,
		feed:   f,
		logger: logger,
	}
}

// GetPrice returns the price of the most recent trade for ticker.
//
// The SDK call does not take a context, so a cancelled ctx is only honoured
// before the request starts.
func (a *AlpacaQuoteSource) GetPrice(ctx context.Context, ticker string) (decimal.NullDecimal, error) {
	symbol := normalizeTicker(ticker)
	if err := ctx.Err(); err != nil {
		return decimal.NullDecimal{}, apperrors.NewQuoteError(alpacaProvider, symbol, err)
	}

	trade, err := a.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{Feed: a.feed})
	if err != nil {
		return decimal.NullDecimal{}, apperrors.NewQuoteError(alpacaProvider, symbol, err)
	}
	if trade == nil || trade.Price <= 0 {
		a.logger.Debug().Str("ticker", symbol).Msg("No latest trade from Alpaca")
		return decimal.NullDecimal{}, nil
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(trade.Price)), nil
}
