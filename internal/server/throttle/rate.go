// Package throttle enforces fixed-window request budgets per scope and
// client, with counters kept in Redis.
package throttle

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rate is a request budget per period.
type Rate struct {
	Limit  int
	Period time.Duration
}

func (r Rate) String() string {
	return fmt.Sprintf("%d/%s", r.Limit, r.Period)
}

// ParseRate parses "N/period" where period is second, minute, hour or day.
// Only the first letter of the period is significant ("5/min", "5/m").
func ParseRate(s string) (Rate, error) {
	num, period, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || period == "" {
		return Rate{}, fmt.Errorf("invalid rate %q", s)
	}

	limit, err := strconv.Atoi(num)
	if err != nil || limit <= 0 {
		return Rate{}, fmt.Errorf("invalid rate %q", s)
	}

	var d time.Duration
	switch period[0] {
	case 's':
		d = time.Second
	case 'm':
		d = time.Minute
	case 'h':
		d = time.Hour
	case 'd':
		d = 24 * time.Hour
	default:
		return Rate{}, fmt.Errorf("invalid rate period %q", period)
	}

	return Rate{Limit: limit, Period: d}, nil
}
