package cli

import (
	"time"

	"github.com/spf13/cobra"

	"wheel-tracker/internal/models"
	"wheel-tracker/internal/notify"
	"wheel-tracker/internal/store"
	"wheel-tracker/internal/trading"
)

// addMonitoringCommands adds price refresh and monitoring commands.
func addMonitoringCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newRefreshCmd(app))
	rootCmd.AddCommand(newMonitorCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
}

// newDispatcher builds the notification dispatcher from configuration. The
// structured log always receives a copy.
func (app *App) newDispatcher(terminal bool) *notify.Dispatcher {
	cfg := app.Config.Notifications
	cfg.Terminal.Enabled = cfg.Terminal.Enabled && terminal
	d := notify.NewDispatcher(cfg, app.Logger)
	d.AddChannel(notify.NewLogChannel(app.Logger))
	return d
}

func newRefreshCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reprice open positions once",
		Long: `Fetch a current share price for every open position, recompute derived
values, save them and report expiration and assignment alerts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			st, err := app.store()
			if err != nil {
				return err
			}
			quotes, err := app.quotes()
			if err != nil {
				return err
			}

			dispatcher := app.newDispatcher(false)
			dispatcher.Start(ctx)
			defer dispatcher.Stop()

			s := trading.NewScheduler(st, quotes, dispatcher, app.Logger, app.schedulerConfig())
			res, err := s.Tick(ctx)

			if output.IsJSON() {
				if jerr := output.JSON(newRefreshView(res)); jerr != nil {
					return jerr
				}
				return err
			}

			if err != nil {
				output.Error("Refresh failed: %v", err)
				if res.Open == 0 {
					return err
				}
			}
			printRefreshResult(output, res)
			return err
		},
	}
}

func newMonitorCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch open positions until interrupted",
		Long: `Reprice open positions on a fixed interval and raise alerts when an
option nears expiration or the share price nears the strike.

Alerts go to the notification channels enabled in config.toml. Press Ctrl+C
to stop.`,
		Example: `  wheel monitor
  wheel monitor --interval 1m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			st, err := app.store()
			if err != nil {
				return err
			}
			quotes, err := app.quotes()
			if err != nil {
				return err
			}

			cfg := app.schedulerConfig()
			if interval, _ := cmd.Flags().GetDuration("interval"); interval > 0 {
				cfg.Interval = interval
			}

			dispatcher := app.newDispatcher(true)
			dispatcher.Start(ctx)
			defer dispatcher.Stop()

			output.Bold("Monitoring open positions")
			output.Dim("Provider: %s  Interval: %s  Alerts: DTE < %d, moneyness < %s%%",
				app.Config.Quotes.Provider, cfg.Interval, cfg.ExpirationDTE, cfg.AssignmentMoneyness.String())
			output.Println()

			s := trading.NewScheduler(st, quotes, dispatcher, app.Logger, cfg)
			if err := s.Run(ctx); err != nil {
				return err
			}

			output.Dim("Monitor stopped")
			return nil
		},
	}

	cmd.Flags().Duration("interval", 0, "Refresh interval (default from config)")

	return cmd
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show position and refresh status",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			st, err := app.store()
			if err != nil {
				return err
			}
			open, err := st.ListOpen(ctx)
			if err != nil {
				return err
			}

			var lastRefresh time.Time
			if rec, ok := st.(store.RefreshRecorder); ok {
				lastRefresh = rec.GetLastRefresh(ctx)
			}

			if output.IsJSON() {
				status := map[string]interface{}{
					"open_positions": len(open),
					"provider":       app.Config.Quotes.Provider,
				}
				if !lastRefresh.IsZero() {
					status["last_refresh"] = lastRefresh.Format(time.RFC3339)
				}
				return output.JSON(status)
			}

			output.Printf("Open positions: %d\n", len(open))
			output.Printf("Quote provider: %s\n", app.Config.Quotes.Provider)
			if lastRefresh.IsZero() {
				output.Printf("Last refresh:   never\n")
			} else {
				age := app.today().Sub(lastRefresh)
				output.Printf("Last refresh:   %s (%s ago)\n", lastRefresh.Local().Format("2006-01-02 15:04"), FormatDuration(age))
			}
			return nil
		},
	}
}

type alertView struct {
	Kind    string `json:"kind"`
	TradeID string `json:"trade_id"`
	Ticker  string `json:"ticker"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type refreshView struct {
	Open    int         `json:"open"`
	Quoted  int         `json:"quoted"`
	Failed  int         `json:"failed"`
	Skipped int         `json:"skipped"`
	Saved   bool        `json:"saved"`
	Alerts  []alertView `json:"alerts"`
}

func newRefreshView(res trading.TickResult) refreshView {
	v := refreshView{
		Open:    res.Open,
		Quoted:  res.Quoted,
		Failed:  res.Failed,
		Skipped: res.Skipped,
		Saved:   res.Saved,
		Alerts:  make([]alertView, 0, len(res.Alerts)),
	}
	for _, a := range res.Alerts {
		v.Alerts = append(v.Alerts, alertView{
			Kind:    string(a.Kind),
			TradeID: a.TradeID,
			Ticker:  a.Ticker,
			Level:   string(a.Level),
			Message: a.Message,
		})
	}
	return v
}

func printRefreshResult(output *Output, res trading.TickResult) {
	if res.Open == 0 {
		output.Dim("No open positions")
		return
	}

	output.Printf("Repriced %d of %d open positions\n", res.Quoted, res.Open)
	if res.Failed > 0 {
		output.Warning("%d without a current price", res.Failed)
	}
	if res.Skipped > 0 {
		output.Dim("%d closed during the refresh and left unchanged", res.Skipped)
	}
	if len(res.Alerts) == 0 {
		output.Success("✓ No alerts")
		return
	}

	output.Println()
	for _, a := range res.Alerts {
		switch a.Level {
		case models.LevelWarning, models.LevelError:
			output.Warning("⚠ %s", a.Message)
		default:
			output.Info("ℹ %s", a.Message)
		}
	}
}
