package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wheel-tracker/internal/broker"
	"wheel-tracker/internal/config"
	"wheel-tracker/internal/store"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	cfg := config.Default()
	cfg.Dir = t.TempDir()
	cfg.Database.Path = filepath.Join(cfg.Dir, "wheel.db")
	cfg.Quotes.Provider = "static"

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	quotes, err := broker.NewStaticQuoteSource(map[string]string{"KO": "57", "PEP": "170"})
	require.NoError(t, err)

	return &App{
		Config: cfg,
		Logger: zerolog.Nop(),
		Store:  st,
		Quotes: quotes,
		Clock:  func() time.Time { return time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC) },
	}
}

func run(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := NewRootCmd(app)
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func addKOPut(t *testing.T, app *App) tradeView {
	t.Helper()
	out, err := run(t, app, "add", "ko", "--json",
		"--strategy", "csp", "--strike", "60", "--exp", "2024-07-19",
		"--premium", "1.25", "--fees", "0.65", "--date", "2024-06-21")
	require.NoError(t, err)

	var v tradeView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	return v
}

func TestAddCommand(t *testing.T) {
	app := newTestApp(t)
	v := addKOPut(t, app)

	assert.NotEmpty(t, v.ID)
	assert.Equal(t, "KO", v.Ticker)
	assert.Equal(t, "CSP", v.Strategy)
	assert.Equal(t, "124.35", v.Total.String())
	assert.Equal(t, 28, v.InitialDTE)
	require.NotNil(t, v.DTE)
	assert.Equal(t, 4, *v.DTE)
}

func TestAddCommand_RejectsBadInput(t *testing.T) {
	app := newTestApp(t)

	_, err := run(t, app, "add", "KO", "--qty", "0")
	assert.Error(t, err)

	_, err = run(t, app, "add", "KO", "--premium", "abc")
	assert.Error(t, err)

	_, err = run(t, app, "add", "KO", "--exp", "19/07/2024")
	assert.Error(t, err)
}

func TestListCommand_Refresh(t *testing.T) {
	app := newTestApp(t)
	addKOPut(t, app)

	out, err := run(t, app, "list", "--json", "--refresh")
	require.NoError(t, err)

	var views []tradeView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "57", views[0].CurrentSharePrice.Decimal.String())
	assert.Equal(t, "95", views[0].Moneyness.Decimal.String())
	assert.True(t, views[0].UnrealizedGainLoss.Valid)
}

func TestListCommand_Table(t *testing.T) {
	app := newTestApp(t)
	addKOPut(t, app)

	out, err := run(t, app, "list", "--ticker", "k")
	require.NoError(t, err)
	assert.Contains(t, out, "TICKER")
	assert.Contains(t, out, "KO")
	assert.Contains(t, out, "$124.35")

	out, err = run(t, app, "list", "--ticker", "pep")
	require.NoError(t, err)
	assert.Contains(t, out, "No trades found")
}

func TestCloseCommand(t *testing.T) {
	app := newTestApp(t)
	v := addKOPut(t, app)

	out, err := run(t, app, "close", v.ID[:8], "--json", "--type", "btc", "--price", "0.25", "--fee", "0.65", "--date", "2024-07-10")
	require.NoError(t, err)

	var closed tradeView
	require.NoError(t, json.Unmarshal([]byte(out), &closed))
	assert.Equal(t, "Closed", closed.Status)
	assert.Equal(t, "2024-07-10", closed.CloseDate)
	// 124.35 - 25 - 0.65
	assert.Equal(t, "98.7", closed.RealizedGainLoss.Decimal.String())

	_, err = run(t, app, "close", v.ID, "--type", "EXP")
	assert.Error(t, err)
}

func TestTradeCommands_LogTradeID(t *testing.T) {
	app := newTestApp(t)
	var logs bytes.Buffer
	app.Logger = zerolog.New(&logs)

	v := addKOPut(t, app)
	_, err := run(t, app, "close", v.ID, "--type", "EXP", "--date", "2024-07-19")
	require.NoError(t, err)

	var msgs []string
	for _, line := range bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n")) {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["trade_id"] == v.ID {
			msgs = append(msgs, entry["message"].(string))
		}
	}
	assert.Equal(t, []string{"Trade recorded", "Trade closed"}, msgs)
}

func TestShowCommand_UnknownID(t *testing.T) {
	app := newTestApp(t)
	_, err := run(t, app, "show", "does-not-exist")
	assert.Error(t, err)
}

func TestRefreshCommand(t *testing.T) {
	app := newTestApp(t)
	addKOPut(t, app)

	out, err := run(t, app, "refresh", "--json")
	require.NoError(t, err)

	var res refreshView
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.Open)
	assert.Equal(t, 1, res.Quoted)
	assert.True(t, res.Saved)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "expiration", res.Alerts[0].Kind)
	assert.Equal(t, "CSP on KO expires soon (DTE: 4)", res.Alerts[0].Message)

	out, err = run(t, app, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Open positions: 1")
	assert.NotContains(t, out, "never")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, newTestApp(t), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Wheel Tracker v"+Version)
}
