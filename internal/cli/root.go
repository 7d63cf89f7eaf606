// Package cli provides the command-line interface for the wheel tracker.
package cli

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"wheel-tracker/internal/broker"
	"wheel-tracker/internal/config"
	"wheel-tracker/internal/logging"
	"wheel-tracker/internal/store"
	"wheel-tracker/internal/trading"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-07-01"
)

// App holds the application dependencies. Fields left nil are built from the
// configuration the first time a command needs them.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.PositionStore
	Quotes broker.QuoteSource
	Clock  func() time.Time
}

// Execute builds the root command and runs it with ctx.
func Execute(ctx context.Context) error {
	app := &App{}
	defer app.Close()
	return NewRootCmd(app).ExecuteContext(ctx)
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	if app.Clock == nil {
		app.Clock = time.Now
	}

	rootCmd := &cobra.Command{
		Use:   "wheel",
		Short: "Wheel Tracker - option wheel trade journal and monitor",
		Long: `Wheel Tracker records cash-secured puts, covered calls and share trades
of the wheel strategy, derives their returns and gains, and watches open
positions for expiration and assignment risk.

Use 'wheel help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/wheel-tracker)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addTradeCommands(rootCmd, app)
	addMonitoringCommands(rootCmd, app)

	return rootCmd
}

// init loads configuration and logging unless they were supplied, then puts
// the logger on the command context.
func (app *App) init(cmd *cobra.Command) error {
	if app.Config == nil {
		dir, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}
		app.Config = cfg
		app.Logger = logging.NewLoggerWithConfig(logging.FromConfig(cfg.Logging, cfg.Dir))
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		app.Logger = app.Logger.Level(zerolog.DebugLevel)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.WithLogger(ctx, app.Logger))
	return nil
}

// store opens the position store on first use.
func (app *App) store() (store.PositionStore, error) {
	if app.Store != nil {
		return app.Store, nil
	}
	st, err := store.NewSQLiteStore(app.Config.Database.Path)
	if err != nil {
		return nil, err
	}
	app.Logger.Debug().Str("path", app.Config.Database.Path).Msg("SQLite store initialized")
	app.Store = st
	return st, nil
}

// quotes builds the configured quote source on first use.
func (app *App) quotes() (broker.QuoteSource, error) {
	if app.Quotes != nil {
		return app.Quotes, nil
	}
	qs, err := broker.NewQuoteSource(app.Config, app.Logger)
	if err != nil {
		return nil, err
	}
	app.Logger.Debug().Str("provider", app.Config.Quotes.Provider).Msg("Quote source initialized")
	app.Quotes = qs
	return qs, nil
}

func (app *App) today() time.Time {
	return app.Clock()
}

// Close releases the store.
func (app *App) Close() error {
	if app.Store != nil {
		return app.Store.Close()
	}
	return nil
}

func (app *App) schedulerConfig() trading.SchedulerConfig {
	cfg := trading.SchedulerConfigFrom(app.Config.Monitor)
	cfg.Clock = app.Clock
	return cfg
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Wheel Tracker v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := config.ConfigPath(app.Config.Dir)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Database")
	output.Printf("  Path:             %s\n", cfg.Database.Path)
	output.Println()

	output.Bold("Quotes")
	output.Printf("  Provider:         %s\n", cfg.Quotes.Provider)
	output.Printf("  Timeout:          %s\n", cfg.Quotes.Timeout)
	output.Printf("  Rate Limit:       %.1f/s (burst %d)\n", cfg.Quotes.RateLimit, cfg.Quotes.Burst)
	output.Printf("  Cache TTL:        %s\n", cfg.Quotes.CacheTTL)
	output.Printf("  Circuit Breaker:  %v\n", cfg.Quotes.Breaker.Enabled)
	output.Println()

	output.Bold("Monitor")
	output.Printf("  Interval:         %s\n", cfg.Monitor.Interval)
	output.Printf("  Expiration DTE:   < %d days\n", cfg.Monitor.ExpirationDTE)
	output.Printf("  Assignment:       < %.1f%% of strike\n", cfg.Monitor.AssignmentMoneyness)
	output.Printf("  Max Fetches:      %d\n", cfg.Monitor.MaxConcurrentFetches)
	output.Printf("  Fetch Timeout:    %s\n", cfg.Monitor.FetchTimeout)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Level:            %s\n", cfg.Notifications.Level)
	output.Printf("  Terminal:         %v\n", cfg.Notifications.Terminal.Enabled)
	output.Printf("  Webhook:          %v\n", cfg.Notifications.Webhook.Enabled)
	output.Printf("  Telegram:         %v\n", cfg.Notifications.Telegram.Enabled)
	output.Printf("  Email:            %v\n", cfg.Notifications.Email.Enabled)

	return nil
}
