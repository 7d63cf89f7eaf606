package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wheel-tracker/internal/config"
	"wheel-tracker/internal/models"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.TraceLevel, ParseLevel("trace"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
}

func TestFromConfig_Paths(t *testing.T) {
	lc := FromConfig(config.LoggingConfig{Level: "debug"}, "/tmp/wt")
	assert.Equal(t, "/tmp/wt/logs/wheel-tracker.log", lc.FilePath)
	assert.Equal(t, "debug", lc.Level)

	lc = FromConfig(config.LoggingConfig{File: "custom.log", MaxSizeMB: 5}, "/tmp/wt")
	assert.Equal(t, "/tmp/wt/custom.log", lc.FilePath)
	assert.Equal(t, 5, lc.MaxSize)

	lc = FromConfig(config.LoggingConfig{File: "/var/log/wt.log"}, "/tmp/wt")
	assert.Equal(t, "/var/log/wt.log", lc.FilePath)
}

func TestNewLoggerWithConfig_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "wheel.log")
	logger := NewLoggerWithConfig(LogConfig{Level: "info", File: true, FilePath: path, MaxSize: 1})

	logger.Info().Msg("hello")
	logger.Debug().Msg("hidden")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.NotContains(t, string(data), "hidden")
}

func TestLogAlert(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	dte := 3
	LogAlert(WithOperation(logger, "refresh"), models.Alert{
		Kind:      models.AlertAssignment,
		TradeID:   "abc",
		Ticker:    "KO",
		Level:     models.LevelInfo,
		Message:   "KO at risk: 90.0% to strike",
		DTE:       &dte,
		Moneyness: decimal.NewNullDecimal(decimal.NewFromInt(90)),
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "alert", entry["event"])
	assert.Equal(t, "assignment", entry["kind"])
	assert.Equal(t, "90.00", entry["moneyness"])
	assert.Equal(t, float64(3), entry["dte"])
	assert.Equal(t, "refresh", entry["operation"])
}

func TestContextLogger(t *testing.T) {
	assert.Equal(t, zerolog.Nop(), FromContext(context.Background()))

	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), WithTicker(zerolog.New(&buf), "PEP"))
	l := FromContext(ctx)
	l.Info().Msg("x")
	assert.Contains(t, buf.String(), `"ticker":"PEP"`)
}
