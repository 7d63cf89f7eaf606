package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "wheel-tracker/internal/errors"
)

const dateLayout = "2006-01-02"

var hundred = decimal.NewFromInt(100)

// FormatMoney formats an amount in dollars with thousands separators.
func FormatMoney(amount decimal.Decimal) string {
	negative := amount.IsNegative()
	str := amount.Abs().StringFixed(2)
	parts := strings.SplitN(str, ".", 2)

	result := "$" + groupThousands(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

// groupThousands inserts a comma every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatNullMoney formats an optional amount, or a dash when absent.
func FormatNullMoney(amount decimal.NullDecimal) string {
	if !amount.Valid {
		return "-"
	}
	return FormatMoney(amount.Decimal)
}

// FormatPnL formats a gain or loss with sign.
func FormatPnL(pnl decimal.Decimal) string {
	formatted := FormatMoney(pnl)
	if pnl.IsPositive() {
		return "+" + formatted
	}
	return formatted
}

// FormatRatio formats a fractional ratio such as 0.0499 as a percentage.
func FormatRatio(ratio decimal.Decimal) string {
	return ratio.Mul(hundred).StringFixed(2) + "%"
}

// FormatPercent formats a value that is already a percentage.
func FormatPercent(pct decimal.NullDecimal) string {
	if !pct.Valid {
		return "-"
	}
	return pct.Decimal.StringFixed(1) + "%"
}

// FormatPrice formats a share or strike price.
func FormatPrice(price decimal.NullDecimal) string {
	if !price.Valid {
		return "-"
	}
	return price.Decimal.StringFixed(2)
}

// FormatDate formats a date, or a dash for nil.
func FormatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}

// FormatDays formats an optional day count.
func FormatDays(days *int) string {
	if days == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *days)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// ShortID returns the first eight characters of a trade ID.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("date", s, "want YYYY-MM-DD")
	}
	return t, nil
}
