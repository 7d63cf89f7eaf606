package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Wheel Tracker Configuration

[database]
# SQLite file holding your trades. Empty means wheel.db next to this file.
path = ""

[quotes]
# Quote provider: "yahoo", "alpaca" or "static"
provider = "yahoo"
# Per-request HTTP timeout
timeout = "10s"
# Requests per second sent to the provider (0 = unlimited)
rate_limit = 2.0
burst = 2
# Transport retries on 5xx/429 responses (0 = never retry)
retries = 0
# How long a fetched price is reused (0 disables caching)
cache_ttl = "30s"

[quotes.yahoo]
base_url = "https://query1.finance.yahoo.com"

[quotes.alpaca]
# API keys go in credentials.toml
base_url = "https://data.alpaca.markets"
# "iex" (free) or "sip"
feed = "iex"

[quotes.breaker]
# Stop calling a provider after repeated failures
enabled = true
failure_threshold = 5
cooldown = "1m"

# Fixed prices used when provider = "static"
[quotes.static]
# AAPL = "190.25"

[monitor]
# Time between background refreshes
interval = "5m"
# Warn when an open trade has fewer days to expiration than this
expiration_dte = 7
# Flag possible assignment when price/strike*100 falls below this
assignment_moneyness = 95.0
# Concurrent quote requests per refresh
max_concurrent_fetches = 8
# Timeout for a single quote fetch
fetch_timeout = "20s"
# Refresh immediately when the monitor starts
run_on_start = true

[notifications]
# Which alerts to deliver: "all", "warnings", "errors_only"
level = "all"
# Pending notifications kept before the oldest is dropped
queue_size = 100
# Delivery attempts per channel before a notification is given up
retries = 3

[notifications.terminal]
enabled = true
color = true

[notifications.webhook]
enabled = false
url = ""

[notifications.telegram]
enabled = false
bot_token = ""
chat_id = ""

[notifications.email]
enabled = false
smtp_host = ""
smtp_port = 587
username = ""
password = ""
from = ""
to = ""

[logging]
# trace, debug, info, warn, error
level = "info"
# Log file path. Empty means wheel-tracker.log in the config directory.
file = ""
max_size_mb = 10
max_backups = 3
max_age_days = 30
# Also log to stderr
console = false
`

const credentialsTemplate = `# Wheel Tracker Credentials
# Keep this file private (chmod 600)

[alpaca]
api_key = ""
api_secret = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, configName+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	// Use restricted permissions for credentials file
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}

	return nil
}
