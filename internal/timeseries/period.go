package timeseries

import (
	"fmt"
	"math"
	"strings"
	"time"

	"refcache-api/internal/apperr"
)

// Period is a chart range understood by the provider.
type Period string

const (
	Period1M Period = "1m"
	Period3M Period = "3m"
	Period6M Period = "6m"
	Period1Y Period = "1y"
	Period2Y Period = "2y"
	Period5Y Period = "5y"
)

var periodSpans = map[Period]struct{ years, months int }{
	Period1M: {0, 1},
	Period3M: {0, 3},
	Period6M: {0, 6},
	Period1Y: {1, 0},
	Period2Y: {2, 0},
	Period5Y: {5, 0},
}

// ParsePeriod accepts the supported periods case-insensitively.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := periodSpans[p]; !ok {
		return "", fmt.Errorf("%w: unknown period %q", apperr.ErrDomain, s)
	}
	return p, nil
}

// Window returns the first day of the period ending at now (UTC midnight) and
// the number of calendar days it spans.
func Window(p Period, now time.Time) (start time.Time, days int) {
	span := periodSpans[p]
	today := truncateDay(now)
	start = today.AddDate(-span.years, -span.months, 0)
	days = int(today.Sub(start).Hours() / 24)
	return start, days
}

// ExpectedPoints is the minimum number of stored points that counts as full coverage.
func ExpectedPoints(p Period, now time.Time, ratio float64) int {
	_, days := Window(p, now)
	return int(math.Floor(float64(days) * ratio))
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
