package trading

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"wheel-tracker/internal/broker"
	"wheel-tracker/internal/config"
	apperrors "wheel-tracker/internal/errors"
	"wheel-tracker/internal/logging"
	"wheel-tracker/internal/models"
	"wheel-tracker/internal/notify"
	"wheel-tracker/internal/store"
)

// SchedulerConfig holds refresh loop settings.
type SchedulerConfig struct {
	Interval             time.Duration
	ExpirationDTE        int
	AssignmentMoneyness  decimal.Decimal
	MaxConcurrentFetches int
	FetchTimeout         time.Duration
	RunOnStart           bool
	Clock                func() time.Time
}

// DefaultSchedulerConfig returns the default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:             5 * time.Minute,
		ExpirationDTE:        7,
		AssignmentMoneyness:  decimal.NewFromInt(95),
		MaxConcurrentFetches: 8,
		FetchTimeout:         20 * time.Second,
		RunOnStart:           true,
		Clock:                time.Now,
	}
}

// SchedulerConfigFrom builds a SchedulerConfig from the [monitor] section.
func SchedulerConfigFrom(cfg config.MonitorConfig) SchedulerConfig {
	sc := DefaultSchedulerConfig()
	if cfg.Interval > 0 {
		sc.Interval = cfg.Interval
	}
	if cfg.ExpirationDTE >= 0 {
		sc.ExpirationDTE = cfg.ExpirationDTE
	}
	if cfg.AssignmentMoneyness > 0 {
		sc.AssignmentMoneyness = decimal.NewFromFloat(cfg.AssignmentMoneyness)
	}
	if cfg.MaxConcurrentFetches > 0 {
		sc.MaxConcurrentFetches = cfg.MaxConcurrentFetches
	}
	if cfg.FetchTimeout > 0 {
		sc.FetchTimeout = cfg.FetchTimeout
	}
	sc.RunOnStart = cfg.RunOnStart
	return sc
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	def := DefaultSchedulerConfig()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.AssignmentMoneyness.IsZero() {
		c.AssignmentMoneyness = def.AssignmentMoneyness
	}
	if c.MaxConcurrentFetches <= 0 {
		c.MaxConcurrentFetches = def.MaxConcurrentFetches
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = def.FetchTimeout
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

func (c SchedulerConfig) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock()
}

// TickResult summarizes one refresh pass.
type TickResult struct {
	Open   int
	Quoted int
	Failed int
	// Skipped counts trades closed or removed while the pass was running;
	// their rows are left untouched.
	Skipped int
	Saved   bool
	Alerts  []models.Alert
}

// Scheduler periodically reprices open positions, persists the recomputed
// trades and raises risk alerts.
type Scheduler struct {
	store  store.PositionStore
	quotes broker.QuoteSource
	sink   notify.Sink
	logger zerolog.Logger
	cfg    SchedulerConfig

	running atomic.Bool
}

// NewScheduler creates a new Scheduler.
func NewScheduler(st store.PositionStore, quotes broker.QuoteSource, sink notify.Sink, logger zerolog.Logger, cfg SchedulerConfig) *Scheduler {
	if sink == nil {
		sink = notify.NopSink{}
	}
	return &Scheduler{
		store:  st,
		quotes: quotes,
		sink:   sink,
		logger: logger.With().Str("component", "scheduler").Logger(),
		cfg:    cfg.withDefaults(),
	}
}

// Config returns the effective configuration.
func (s *Scheduler) Config() SchedulerConfig {
	return s.cfg
}

// Run ticks every Interval until ctx is cancelled. Ticks run on the calling
// goroutine, so two passes never overlap.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return apperrors.New("scheduler is already running")
	}
	defer s.running.Store(false)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.cfg.Interval).Msg("Refresh loop started")

	if s.cfg.RunOnStart {
		s.tick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Refresh loop stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn().Err(err).Msg("Refresh pass incomplete")
	}
}

// Tick runs one refresh pass over the current open positions.
//
// Every distinct ticker is fetched once, concurrently, and the whole batch is
// awaited before any trade is recomputed. A failed or empty fetch leaves the
// affected trades without a current price and raises no alert for them.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	var result TickResult
	if err := ctx.Err(); err != nil {
		return result, err
	}

	start := time.Now()
	today := s.cfg.now()
	log := logging.WithOperation(s.logger, "refresh")

	trades, err := s.store.ListOpen(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load open positions")
		s.sink.Notify(notify.LevelError, fmt.Sprintf("Failed to load open positions: %v", err))
		return result, err
	}
	result.Open = len(trades)
	if len(trades) == 0 {
		return result, nil
	}

	prices := s.fetchAll(ctx, distinctTickers(trades))

	// Fetches already issued ran to completion; nothing is written for a
	// cancelled pass.
	if err := ctx.Err(); err != nil {
		return result, err
	}

	updated := make([]models.Trade, len(trades))
	priced := make([]bool, len(trades))
	for i, t := range trades {
		p := prices[tickerKey(t.Ticker)]
		if p.Valid {
			q := p.Decimal
			updated[i] = Recalculate(t, today, &q)
			priced[i] = true
			result.Quoted++
			continue
		}
		t.CurrentSharePrice = decimal.NullDecimal{}
		updated[i] = Recalculate(t, today, nil)
		result.Failed++
	}

	// Only the quote is written back, and only to rows that are still open,
	// so a close that lands during the fetches is never undone.
	var saveErr error
	written := make(map[string]bool, len(updated))
	ids, err := s.store.SaveQuotes(ctx, updated)
	if err != nil {
		saveErr = err
		s.logger.Error().Err(err).Int("trades", len(updated)).Msg("Failed to save refreshed positions")
		s.sink.Notify(notify.LevelError, fmt.Sprintf("Failed to save refreshed positions: %v", err))
	} else {
		result.Saved = true
		for _, id := range ids {
			written[id] = true
		}
		result.Skipped = len(updated) - len(ids)
		if result.Skipped > 0 {
			s.logger.Info().Int("skipped", result.Skipped).Msg("Positions changed during refresh were left as stored")
		}
		if rec, ok := s.store.(store.RefreshRecorder); ok {
			if err := rec.SetLastRefresh(ctx, today); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to record refresh time")
			}
		}
	}

	for i, t := range updated {
		if !priced[i] {
			continue
		}
		// A trade closed mid-pass raises nothing. When the save failed the
		// snapshot is all there is to go on.
		if result.Saved && !written[t.ID] {
			continue
		}
		for _, a := range EvaluateAlerts(t, s.cfg) {
			logging.LogAlert(log, a)
			s.sink.Notify(notifyLevel(a.Level), a.Message)
			result.Alerts = append(result.Alerts, a)
		}
	}

	logging.LogRefresh(log, result.Open, result.Quoted, result.Failed, len(result.Alerts), result.Saved, time.Since(start))
	return result, saveErr
}

// fetchAll returns the price of every ticker. Missing entries and invalid
// values both mean no price.
func (s *Scheduler) fetchAll(ctx context.Context, tickers []string) map[string]decimal.NullDecimal {
	var mu sync.Mutex
	prices := make(map[string]decimal.NullDecimal, len(tickers))

	// Each fetch is bounded by its own timeout, not by ctx.
	fetchCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrentFetches)
	for _, ticker := range tickers {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			price := s.fetch(fetchCtx, ticker)
			mu.Lock()
			prices[ticker] = price
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return prices
}

func (s *Scheduler) fetch(ctx context.Context, ticker string) (price decimal.NullDecimal) {
	log := logging.WithTicker(s.logger, ticker)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Quote fetch panicked")
			price = decimal.NullDecimal{}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	p, err := s.quotes.GetPrice(ctx, ticker)
	if err != nil {
		log.Warn().Err(err).Msg("Quote fetch failed")
		return decimal.NullDecimal{}
	}
	if !p.Valid {
		log.Debug().Msg("No quote available")
	}
	return p
}

// EvaluateAlerts returns the risk alerts raised by an open trade.
func EvaluateAlerts(t models.Trade, cfg SchedulerConfig) []models.Alert {
	if !t.IsOpen() {
		return nil
	}

	var alerts []models.Alert
	now := cfg.now()

	if t.DTE != nil && *t.DTE < cfg.ExpirationDTE {
		dte := *t.DTE
		alerts = append(alerts, models.Alert{
			Kind:     models.AlertExpiration,
			TradeID:  t.ID,
			Ticker:   t.Ticker,
			Level:    models.LevelWarning,
			Message:  fmt.Sprintf("%s on %s expires soon (DTE: %d)", positionLabel(t), t.Ticker, dte),
			DTE:      &dte,
			RaisedAt: now,
		})
	}

	// Moneyness below the threshold means the price is closing in on a put
	// strike. For a call the same ratio points away from assignment.
	if t.Strategy != nil && t.Strategy.IsPut() &&
		t.Moneyness.Valid && t.Moneyness.Decimal.LessThan(cfg.AssignmentMoneyness) {
		alerts = append(alerts, models.Alert{
			Kind:      models.AlertAssignment,
			TradeID:   t.ID,
			Ticker:    t.Ticker,
			Level:     models.LevelInfo,
			Message:   fmt.Sprintf("%s at risk: %s%% to strike", t.Ticker, t.Moneyness.Decimal.StringFixed(1)),
			Moneyness: t.Moneyness,
			RaisedAt:  now,
		})
	}

	return alerts
}

func positionLabel(t models.Trade) string {
	if t.Strategy != nil {
		return string(*t.Strategy)
	}
	return string(t.Action)
}

func notifyLevel(l models.AlertLevel) notify.Level {
	switch l {
	case models.LevelError:
		return notify.LevelError
	case models.LevelWarning:
		return notify.LevelWarning
	default:
		return notify.LevelInfo
	}
}

func distinctTickers(trades []models.Trade) []string {
	seen := make(map[string]struct{}, len(trades))
	var out []string
	for _, t := range trades {
		k := tickerKey(t.Ticker)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func tickerKey(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
