package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"wheel-tracker/internal/config"
)

const userAgent = "WheelTracker/1.0"

// WebhookChannel posts notifications as JSON to an HTTP endpoint.
type WebhookChannel struct {
	url     string
	enabled bool
	client  *resty.Client
}

// NewWebhookChannel creates a new WebhookChannel.
func NewWebhookChannel(cfg config.WebhookConfig) *WebhookChannel {
	return &WebhookChannel{
		url:     cfg.URL,
		enabled: cfg.Enabled && cfg.URL != "",
		client: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("User-Agent", userAgent),
	}
}

// Name returns the name of the channel.
func (w *WebhookChannel) Name() string {
	return "webhook"
}

// IsEnabled returns whether the channel is enabled.
func (w *WebhookChannel) IsEnabled() bool {
	return w.enabled
}

// Send sends a notification via webhook.
func (w *WebhookChannel) Send(ctx context.Context, n Notification) error {
	payload := map[string]interface{}{
		"level":     n.Level.String(),
		"message":   n.Message,
		"timestamp": n.Timestamp.Format(time.RFC3339),
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}

// TelegramChannel sends notifications through a Telegram bot.
type TelegramChannel struct {
	botToken string
	chatID   string
	enabled  bool
	client   *resty.Client
}

// NewTelegramChannel creates a new TelegramChannel.
func NewTelegramChannel(cfg config.TelegramConfig) *TelegramChannel {
	return &TelegramChannel{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		enabled:  cfg.Enabled && cfg.BotToken != "" && cfg.ChatID != "",
		client: resty.New().
			SetBaseURL("https://api.telegram.org").
			SetTimeout(10 * time.Second),
	}
}

// Name returns the name of the channel.
func (t *TelegramChannel) Name() string {
	return "telegram"
}

// IsEnabled returns whether the channel is enabled.
func (t *TelegramChannel) IsEnabled() bool {
	return t.enabled
}

// Send sends a notification via Telegram.
func (t *TelegramChannel) Send(ctx context.Context, n Notification) error {
	text := fmt.Sprintf("<b>%s</b> %s", levelIcon(n.Level), escapeHTML(n.Message))

	resp, err := t.client.R().
		SetContext(ctx).
		SetPathParam("token", t.botToken).
		SetBody(map[string]interface{}{
			"chat_id":    t.chatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		Post("/bot{token}/sendMessage")
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode())
	}
	return nil
}

// escapeHTML escapes HTML special characters for Telegram.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func levelIcon(l Level) string {
	switch l {
	case LevelWarning:
		return "⚠️"
	case LevelError:
		return "❌"
	default:
		return "ℹ️"
	}
}

// EmailChannel sends notifications via email using SMTP.
type EmailChannel struct {
	smtpHost string
	smtpPort int
	username string
	password string
	from     string
	to       string
	enabled  bool
}

// NewEmailChannel creates a new EmailChannel.
func NewEmailChannel(cfg config.EmailConfig) *EmailChannel {
	return &EmailChannel{
		smtpHost: cfg.SMTPHost,
		smtpPort: cfg.SMTPPort,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		to:       cfg.To,
		enabled:  cfg.Enabled && cfg.SMTPHost != "" && cfg.From != "" && cfg.To != "",
	}
}

// Name returns the name of the channel.
func (e *EmailChannel) Name() string {
	return "email"
}

// IsEnabled returns whether the channel is enabled.
func (e *EmailChannel) IsEnabled() bool {
	return e.enabled
}

// Send sends a notification via email.
func (e *EmailChannel) Send(ctx context.Context, n Notification) error {
	msg := buildEmail(e.from, e.to, n)
	addr := fmt.Sprintf("%s:%d", e.smtpHost, e.smtpPort)

	var auth smtp.Auth
	if e.username != "" && e.password != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.smtpHost)
	}

	// Use TLS for secure connection
	if e.smtpPort == 465 {
		return e.sendWithTLS(addr, auth, msg)
	}

	// Use STARTTLS for port 587 or plain for others
	return smtp.SendMail(addr, auth, e.from, []string{e.to}, []byte(msg))
}

func buildEmail(from, to string, n Notification) string {
	subject := fmt.Sprintf("[Wheel Tracker] %s", n.Level)
	body := fmt.Sprintf("%s\n\n%s", n.Message, n.Timestamp.Format("2006-01-02 15:04:05"))
	return fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)
}

// sendWithTLS sends email using implicit TLS (port 465).
func (e *EmailChannel) sendWithTLS(addr string, auth smtp.Auth, msg string) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: e.smtpHost})
	if err != nil {
		return fmt.Errorf("TLS dial failed: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, e.smtpHost)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth failed: %w", err)
		}
	}
	if err := client.Mail(e.from); err != nil {
		return fmt.Errorf("SMTP MAIL command failed: %w", err)
	}
	if err := client.Rcpt(e.to); err != nil {
		return fmt.Errorf("SMTP RCPT command failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA command failed: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}

// LogChannel writes notifications to the structured log.
type LogChannel struct {
	logger zerolog.Logger
}

// NewLogChannel creates a new LogChannel.
func NewLogChannel(logger zerolog.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

// Name returns the name of the channel.
func (l *LogChannel) Name() string {
	return "log"
}

// IsEnabled returns whether the channel is enabled.
func (l *LogChannel) IsEnabled() bool {
	return true
}

// Send logs the notification at the matching log level.
func (l *LogChannel) Send(_ context.Context, n Notification) error {
	var ev *zerolog.Event
	switch n.Level {
	case LevelError:
		ev = l.logger.Error()
	case LevelWarning:
		ev = l.logger.Warn()
	default:
		ev = l.logger.Info()
	}
	ev.Str("type", "notification").Time("raised_at", n.Timestamp).Msg(n.Message)
	return nil
}
