package timeseries

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
)

// IntervalLatest asks for the current value only, no historical window.
const IntervalLatest = "latest"

// intervalWindows maps the recognized interval tokens to their concrete
// time windows. An unknown token is a validation error, never a silent
// default.
var intervalWindows = map[string]time.Duration{
	"30s": 30 * time.Second,
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
}

// IntervalWindow resolves an interval token to its window. The latest token
// resolves to a zero window with ok=true.
func IntervalWindow(token string) (time.Duration, bool) {
	if token == IntervalLatest {
		return 0, true
	}
	window, ok := intervalWindows[strings.ToLower(token)]
	return window, ok
}

// ValidateInterval returns a validation error for unrecognized tokens.
func ValidateInterval(token string) error {
	if _, ok := IntervalWindow(token); !ok {
		return errors.NewValidation("interval",
			fmt.Sprintf("unrecognized token %q, expected one of %s", token, intervalTokenList()))
	}
	return nil
}

func intervalTokenList() string {
	tokens := make([]string, 0, len(intervalWindows)+1)
	for token := range intervalWindows {
		tokens = append(tokens, token)
	}
	tokens = append(tokens, IntervalLatest)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// PointQuery is the parsed form of the restricted pseudo-SQL the adapter
// accepts for historian points.
type PointQuery struct {
	// Tag is the point name. Empty means the data source's default tag.
	Tag string

	// Interval is a validated window token. Empty means the caller's
	// default applies.
	Interval string

	// Dual requests both the current value and the historical window.
	Dual bool
}

// The accepted shape is, case-insensitively:
//
//	SELECT <anything> FROM POINT
//	    [WHERE tag = '<name>']
//	    [INTERVAL '<token>']
//	    [WITH LIVE]
//
// Clause order after FROM POINT is fixed; each clause is optional.
var pointQueryRe = regexp.MustCompile(`(?is)^\s*SELECT\s+.+?\s+FROM\s+POINT` +
	`(?:\s+WHERE\s+tag\s*=\s*'([^']*)')?` +
	`(?:\s+INTERVAL\s+'([^']*)')?` +
	`(\s+WITH\s+LIVE)?\s*;?\s*$`)

// ParsePointQuery parses the restricted pseudo-SQL. Anything that does not
// match the shape is an UnsupportedQueryFormat error; a matching query with
// a bad interval token is a validation error.
func ParsePointQuery(query string) (*PointQuery, error) {
	m := pointQueryRe.FindStringSubmatch(query)
	if m == nil {
		return nil, errors.NewUnsupportedQueryFormat("timeseries",
			"query is neither a URL nor a SELECT ... FROM POINT statement")
	}

	pq := &PointQuery{
		Tag:      strings.TrimSpace(m[1]),
		Interval: strings.ToLower(strings.TrimSpace(m[2])),
		Dual:     m[3] != "",
	}
	if pq.Interval != "" {
		if err := ValidateInterval(pq.Interval); err != nil {
			return nil, err
		}
	}
	return pq, nil
}

// IsURLQuery reports whether query should be fetched opaquely as a URL.
func IsURLQuery(query string) bool {
	q := strings.TrimSpace(strings.ToLower(query))
	return strings.HasPrefix(q, "http://") || strings.HasPrefix(q, "https://")
}
