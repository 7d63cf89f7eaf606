package cli

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	apperrors "wheel-tracker/internal/errors"
	"wheel-tracker/internal/logging"
	"wheel-tracker/internal/models"
	"wheel-tracker/internal/notify"
	"wheel-tracker/internal/store"
	"wheel-tracker/internal/trading"
)

// addTradeCommands adds trade journal commands.
func addTradeCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAddCmd(app))
	rootCmd.AddCommand(newListCmd(app))
	rootCmd.AddCommand(newShowCmd(app))
	rootCmd.AddCommand(newCloseCmd(app))
}

// tradeView is the JSON shape of a trade.
type tradeView struct {
	ID                 string              `json:"id"`
	Ticker             string              `json:"ticker"`
	OpenDate           string              `json:"open_date"`
	Action             string              `json:"action"`
	Strategy           string              `json:"strategy,omitempty"`
	CreditDebit        string              `json:"credit_debit"`
	Strike             decimal.NullDecimal `json:"strike"`
	PriceAtOpen        decimal.NullDecimal `json:"price_at_open"`
	Expiration         string              `json:"expiration,omitempty"`
	Quantity           int                 `json:"quantity"`
	Premium            decimal.Decimal     `json:"premium"`
	Fees               decimal.Decimal     `json:"fees"`
	Status             string              `json:"status"`
	CloseDate          string              `json:"close_date,omitempty"`
	CloseType          string              `json:"close_type,omitempty"`
	CloseQuantity      *int                `json:"close_quantity,omitempty"`
	ClosePrice         decimal.NullDecimal `json:"close_price"`
	CloseFee           decimal.NullDecimal `json:"close_fee"`
	DaysHeld           *int                `json:"days_held,omitempty"`
	CurrentSharePrice  decimal.NullDecimal `json:"current_share_price"`
	InitialDTE         int                 `json:"initial_dte"`
	DTE                *int                `json:"dte"`
	Total              decimal.Decimal     `json:"total"`
	CalculatedReturn   decimal.Decimal     `json:"calculated_return"`
	AnnualReturn       decimal.Decimal     `json:"annual_return"`
	Breakeven          decimal.NullDecimal `json:"breakeven"`
	Moneyness          decimal.NullDecimal `json:"moneyness"`
	RealizedGainLoss   decimal.NullDecimal `json:"realized_gain_loss"`
	UnrealizedGainLoss decimal.NullDecimal `json:"unrealized_gain_loss"`
}

func newTradeView(t models.Trade) tradeView {
	v := tradeView{
		ID:                 t.ID,
		Ticker:             t.Ticker,
		OpenDate:           t.OpenDate.Format(dateLayout),
		Action:             string(t.Action),
		CreditDebit:        string(t.CreditDebit),
		Strike:             t.Strike,
		PriceAtOpen:        t.PriceAtOpen,
		Quantity:           t.Quantity,
		Premium:            t.Premium,
		Fees:               t.Fees,
		Status:             string(t.Status),
		CloseQuantity:      t.CloseQuantity,
		ClosePrice:         t.ClosePrice,
		CloseFee:           t.CloseFee,
		DaysHeld:           t.DaysHeld,
		CurrentSharePrice:  t.CurrentSharePrice,
		InitialDTE:         t.InitialDTE,
		DTE:                t.DTE,
		Total:              t.Total,
		CalculatedReturn:   t.CalculatedReturn,
		AnnualReturn:       t.AnnualReturn,
		Breakeven:          t.Breakeven,
		Moneyness:          t.Moneyness,
		RealizedGainLoss:   t.RealizedGainLoss,
		UnrealizedGainLoss: t.UnrealizedGainLoss,
	}
	if t.Strategy != nil {
		v.Strategy = string(*t.Strategy)
	}
	if t.Expiration != nil {
		v.Expiration = t.Expiration.Format(dateLayout)
	}
	if t.CloseDate != nil {
		v.CloseDate = t.CloseDate.Format(dateLayout)
	}
	if t.CloseType != nil {
		v.CloseType = string(*t.CloseType)
	}
	return v
}

func newAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <ticker>",
		Short: "Record a new trade",
		Long: `Record a newly opened trade.

Defaults to one contract sold to open for a credit today. Money values are
entered per share, as quoted by the broker.`,
		Example: `  wheel add KO --strategy CSP --strike 60 --exp 2024-07-19 --premium 1.25 --fees 0.65
  wheel add KO --action BUY_SHARES --type debit --qty 1 --premium 60 --date 2024-07-19`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			today := app.today()

			tr := trading.NewTrade(args[0], today)
			if err := applyTradeFlags(cmd, &tr); err != nil {
				return err
			}
			if err := tr.Validate(); err != nil {
				output.Error("Invalid trade: %v", err)
				return err
			}

			st, err := app.store()
			if err != nil {
				return err
			}

			tr = trading.PrepareForSave(tr, today)
			if err := st.Create(cmd.Context(), &tr); err != nil {
				output.Error("Failed to save trade: %v", err)
				return err
			}
			log := logging.WithTradeID(logging.FromContext(cmd.Context()), tr.ID)
			log.Info().Str("ticker", tr.Ticker).Msg("Trade recorded")

			if output.IsJSON() {
				return output.JSON(newTradeView(tr))
			}

			output.Success("✓ Trade recorded")
			printTradeSummary(output, tr)
			return nil
		},
	}

	cmd.Flags().String("date", "", "Open date YYYY-MM-DD (default: today)")
	cmd.Flags().String("action", string(models.ActionSellToOpen), "Action (STO, BTC, BUY_SHARES, SELL_SHARES)")
	cmd.Flags().StringP("strategy", "s", "", "Option strategy (CSP, CC, PUT, CALL)")
	cmd.Flags().String("type", "credit", "Credit or debit")
	cmd.Flags().String("strike", "", "Strike price")
	cmd.Flags().String("price-at-open", "", "Share price when the trade was opened")
	cmd.Flags().String("exp", "", "Expiration date YYYY-MM-DD")
	cmd.Flags().IntP("qty", "q", 1, "Number of contracts or shares")
	cmd.Flags().StringP("premium", "p", "0", "Premium or price per share")
	cmd.Flags().String("fees", "0", "Total fees paid at open")

	return cmd
}

// applyTradeFlags copies the add flags onto tr.
func applyTradeFlags(cmd *cobra.Command, tr *models.Trade) error {
	flags := cmd.Flags()

	if s, _ := flags.GetString("date"); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			return err
		}
		tr.OpenDate = d
	}
	if s, _ := flags.GetString("action"); s != "" {
		a, err := models.ParseAction(s)
		if err != nil {
			return err
		}
		tr.Action = a
	}
	if s, _ := flags.GetString("strategy"); s != "" {
		st, err := models.ParseStrategy(s)
		if err != nil {
			return err
		}
		tr.Strategy = &st
	}
	if s, _ := flags.GetString("type"); s != "" {
		cd, err := models.ParseCreditDebit(s)
		if err != nil {
			return err
		}
		tr.CreditDebit = cd
	}
	if s, _ := flags.GetString("exp"); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			return err
		}
		tr.Expiration = &d
	}

	var err error
	if tr.Strike, err = nullDecimalFlag(cmd, "strike"); err != nil {
		return err
	}
	if tr.PriceAtOpen, err = nullDecimalFlag(cmd, "price-at-open"); err != nil {
		return err
	}
	if tr.Premium, err = decimalFlag(cmd, "premium"); err != nil {
		return err
	}
	if tr.Fees, err = decimalFlag(cmd, "fees"); err != nil {
		return err
	}
	tr.Quantity, _ = flags.GetInt("qty")
	return nil
}

func nullDecimalFlag(cmd *cobra.Command, name string) (decimal.NullDecimal, error) {
	s, _ := cmd.Flags().GetString(name)
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, apperrors.NewValidationError(name, s, "not a number")
	}
	return decimal.NewNullDecimal(d), nil
}

func decimalFlag(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	nd, err := nullDecimalFlag(cmd, name)
	if err != nil || !nd.Valid {
		return decimal.Zero, err
	}
	return nd.Decimal, nil
}

func newListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List trades",
		Long: `List recorded trades ordered by ticker and open date, with derived
returns and gains.`,
		Example: `  wheel list
  wheel list --open --refresh
  wheel list --ticker ko`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			st, err := app.store()
			if err != nil {
				return err
			}

			if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
				quotes, err := app.quotes()
				if err != nil {
					return err
				}
				s := trading.NewScheduler(st, quotes, notify.NopSink{}, app.Logger, app.schedulerConfig())
				if _, err := s.Tick(ctx); err != nil {
					output.Warning("Refresh incomplete: %v", err)
				}
			}

			trades, err := st.ListAll(ctx)
			if err != nil {
				output.Error("Failed to load trades: %v", err)
				return err
			}

			ticker, _ := cmd.Flags().GetString("ticker")
			onlyOpen, _ := cmd.Flags().GetBool("open")
			trades = models.TradeFilter{Ticker: ticker, OnlyOpen: onlyOpen}.Apply(trades)

			today := app.today()
			for i := range trades {
				trades[i] = trading.Recalculate(trades[i], today, nil)
			}

			if output.IsJSON() {
				views := make([]tradeView, len(trades))
				for i, t := range trades {
					views[i] = newTradeView(t)
				}
				return output.JSON(views)
			}

			if len(trades) == 0 {
				output.Dim("No trades found")
				return nil
			}

			threshold := app.schedulerConfig().AssignmentMoneyness
			table := NewTable(output, "ID", "TICKER", "STRATEGY", "STRIKE", "EXP", "DTE", "QTY", "TOTAL", "RETURN", "ANNUAL", "PRICE", "MONEY", "P&L", "STATUS")
			for _, t := range trades {
				pnl := t.RealizedGainLoss
				if t.IsOpen() {
					pnl = t.UnrealizedGainLoss
				}
				table.AddRow(
					ShortID(t.ID),
					t.Ticker,
					strategyLabel(t),
					FormatPrice(t.Strike),
					FormatDate(t.Expiration),
					FormatDays(t.DTE),
					FormatDays(&t.Quantity),
					FormatMoney(t.Total),
					FormatRatio(t.CalculatedReturn),
					FormatRatio(t.AnnualReturn),
					FormatPrice(t.CurrentSharePrice),
					output.FormatMoneyness(t.Moneyness, threshold),
					output.FormatPnL(pnl),
					output.Status(t.Status),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringP("ticker", "t", "", "Filter by ticker (substring)")
	cmd.Flags().Bool("open", false, "Only open trades")
	cmd.Flags().BoolP("refresh", "r", false, "Fetch current prices before listing")

	return cmd
}

func strategyLabel(t models.Trade) string {
	if t.Strategy != nil {
		return string(*t.Strategy)
	}
	return string(t.Action)
}

func newShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one trade in detail",
		Long:  "Show one trade. The ID may be shortened to any unique prefix.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			st, err := app.store()
			if err != nil {
				return err
			}
			tr, err := resolveTrade(cmd.Context(), st, args[0])
			if err != nil {
				output.Error("%v", err)
				return err
			}
			t := trading.Recalculate(*tr, app.today(), nil)

			if output.IsJSON() {
				return output.JSON(newTradeView(t))
			}
			printTradeSummary(output, t)
			return nil
		},
	}
}

func newCloseCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close <id>",
		Short: "Close an open trade",
		Long: `Close an open trade and fix its realized gain or loss.

Close types:
  BTC   bought (or sold) back; needs --price
  STC   sold to close; needs --price
  EXP   expired worthless
  ASS   assigned; days held default to open..close
  ROLL  rolled; needs --price and --qty`,
		Example: `  wheel close 0f1e2d3c --type EXP
  wheel close 0f1e2d3c --type BTC --price 0.35 --fee 0.65
  wheel close 0f1e2d3c --type ROLL --price 1.10 --qty 1 --date 2024-07-12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			req, err := closeRequestFromFlags(cmd)
			if err != nil {
				return err
			}

			st, err := app.store()
			if err != nil {
				return err
			}
			tr, err := resolveTrade(ctx, st, args[0])
			if err != nil {
				output.Error("%v", err)
				return err
			}

			closed, err := trading.Close(*tr, req, app.today())
			if err != nil {
				output.Error("Cannot close trade: %v", err)
				return err
			}
			if err := st.Save(ctx, closed); err != nil {
				output.Error("Failed to save trade: %v", err)
				return err
			}
			log := logging.WithTradeID(logging.FromContext(ctx), closed.ID)
			log.Info().Str("close_type", string(req.Type)).Msg("Trade closed")

			if output.IsJSON() {
				return output.JSON(newTradeView(closed))
			}

			output.Success("✓ Trade closed")
			printTradeSummary(output, closed)
			if !closed.RealizedGainLoss.Valid {
				output.Warning("Not enough close data to compute the realized result")
			}
			return nil
		},
	}

	cmd.Flags().String("type", "", "Close type (BTC, STC, EXP, ASS, ROLL)")
	cmd.Flags().String("date", "", "Close date YYYY-MM-DD (default: today)")
	cmd.Flags().String("price", "", "Close price per share")
	cmd.Flags().String("fee", "", "Close fee")
	cmd.Flags().Int("qty", 0, "Close quantity")
	cmd.Flags().Int("days-held", 0, "Days held (assignment)")
	cmd.MarkFlagRequired("type")

	return cmd
}

func closeRequestFromFlags(cmd *cobra.Command) (trading.CloseRequest, error) {
	var req trading.CloseRequest
	flags := cmd.Flags()

	s, _ := flags.GetString("type")
	ct, err := models.ParseCloseType(s)
	if err != nil {
		return req, err
	}
	req.Type = ct

	if s, _ := flags.GetString("date"); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			return req, err
		}
		req.Date = &d
	}
	if req.Price, err = nullDecimalFlag(cmd, "price"); err != nil {
		return req, err
	}
	if req.Fee, err = nullDecimalFlag(cmd, "fee"); err != nil {
		return req, err
	}
	if flags.Changed("qty") {
		q, _ := flags.GetInt("qty")
		req.Quantity = &q
	}
	if flags.Changed("days-held") {
		d, _ := flags.GetInt("days-held")
		req.DaysHeld = &d
	}
	return req, nil
}

// resolveTrade finds a trade by full ID or by a unique ID prefix.
func resolveTrade(ctx context.Context, st store.PositionStore, id string) (*models.Trade, error) {
	tr, err := st.Get(ctx, id)
	if err == nil {
		return tr, nil
	}
	if !apperrors.Is(err, apperrors.ErrTradeNotFound) {
		return nil, err
	}

	all, err := st.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var match *models.Trade
	for i := range all {
		if !strings.HasPrefix(all[i].ID, id) {
			continue
		}
		if match != nil {
			return nil, apperrors.NewValidationError("id", id, "prefix matches more than one trade")
		}
		match = &all[i]
	}
	if match == nil {
		return nil, apperrors.Wrapf(apperrors.ErrTradeNotFound, "trade %s", id)
	}
	return match, nil
}

func printTradeSummary(output *Output, t models.Trade) {
	title := t.Ticker + " " + strategyLabel(t)
	if t.Strike.Valid {
		title += " " + FormatPrice(t.Strike)
	}

	lines := []string{
		"ID:           " + t.ID,
		"Status:       " + output.Status(t.Status),
		"Opened:       " + t.OpenDate.Format(dateLayout),
		"Expiration:   " + FormatDate(t.Expiration),
		"DTE:          " + FormatDays(t.DTE) + " (initial " + FormatDays(&t.InitialDTE) + ")",
		"Quantity:     " + FormatDays(&t.Quantity) + " " + string(t.CreditDebit),
		"Premium:      " + t.Premium.StringFixed(2) + "  fees " + FormatMoney(t.Fees),
		"Total:        " + FormatMoney(t.Total),
		"Return:       " + FormatRatio(t.CalculatedReturn) + "  annual " + FormatRatio(t.AnnualReturn),
	}

	if t.IsOpen() {
		lines = append(lines,
			"Share Price:  "+FormatPrice(t.CurrentSharePrice),
			"Moneyness:    "+FormatPercent(t.Moneyness),
		)
		if t.Breakeven.Valid {
			lines = append(lines,
				"Breakeven:    "+FormatPrice(t.Breakeven),
				"Unrealized:   "+output.FormatPnL(t.UnrealizedGainLoss),
			)
		}
	} else {
		closeType := "-"
		if t.CloseType != nil {
			closeType = string(*t.CloseType)
		}
		lines = append(lines,
			"Closed:       "+FormatDate(t.CloseDate)+" "+closeType,
			"Close Price:  "+FormatPrice(t.ClosePrice)+"  fee "+FormatNullMoney(t.CloseFee),
			"Realized:     "+output.FormatPnL(t.RealizedGainLoss),
		)
		if t.DaysHeld != nil {
			lines = append(lines, "Days Held:    "+FormatDays(t.DaysHeld))
		}
	}

	output.Box(title, lines)
}
