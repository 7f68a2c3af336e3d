package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// DateLayout is the locale format transactions are displayed and stored in.
const DateLayout = "02/01/2006"

// SanitizeAmount turns free-form numeric input into a ledger amount.
// Every non-digit rune is dropped, so thousands separators of either locale
// ("1.234.567", "1,234,567") and stray currency symbols are tolerated.
// Input with no digits, or too many to fit, yields 0.
func SanitizeAmount(s string) int64 {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return 0
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// AmountFromNumber converts a model-provided number into a ledger amount.
func AmountFromNumber(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f >= math.MaxInt64 {
		return 0
	}
	return int64(f)
}

// Today formats the civil date of now in DateLayout.
func Today(now time.Time) string {
	return FormatDate(civil.DateOf(now))
}

// FormatDate renders d in DateLayout.
func FormatDate(d civil.Date) string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
}

// DisplayDate rewrites an ISO date ("2023-10-05") into DateLayout. Any other
// input is returned trimmed but otherwise untouched; dates are not validated.
func DisplayDate(s string) string {
	s = strings.TrimSpace(s)
	if d, err := civil.ParseDate(s); err == nil && d.IsValid() {
		return FormatDate(d)
	}
	return s
}

// FormatAmount renders an amount with vi-VN thousands separators
// (1500000 -> "1.500.000").
func FormatAmount(v int64) string {
	s := strconv.FormatInt(v, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String()
}
