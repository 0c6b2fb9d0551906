// Package dates converts caller supplied dates into the canonical YYYY-MM-DD form used
// for upstream paid-date filtering.
package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/russellmoss/guest-count-check/internal/domain"
)

// CanonicalLayout is the calendar-day layout expected by the upstream order API.
const CanonicalLayout = "2006-01-02"

var (
	// ErrInvalidDate is matched by every InvalidDateError.
	ErrInvalidDate = errors.New("dates: invalid date")
	// ErrRangeRequired is returned when neither bound of a range is supplied.
	ErrRangeRequired = errors.New("dates: at least one of from or to is required")
	// ErrRangeInverted is returned when the start of a range falls after its end.
	ErrRangeInverted = errors.New("dates: from must not be after to")
)

var canonicalPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Layouts without an explicit zone are read as UTC.
var acceptedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"Mon Jan 02 2006",
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
}

// InvalidDateError reports input that could not be read as a date.
type InvalidDateError struct {
	Field string
	Input string
}

func (e *InvalidDateError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("dates: invalid %s date %q", e.Field, e.Input)
	}
	return fmt.Sprintf("dates: invalid date %q", e.Input)
}

// Is makes errors.Is(err, ErrInvalidDate) hold for every InvalidDateError.
func (e *InvalidDateError) Is(target error) bool {
	return target == ErrInvalidDate
}

// Normalize renders value as YYYY-MM-DD using UTC calendar components. Values already in the
// canonical form are returned unchanged so a date is never shifted twice.
func Normalize(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", &InvalidDateError{Input: value}
	}

	if canonicalPattern.MatchString(trimmed) {
		if _, err := time.Parse(CanonicalLayout, trimmed); err != nil {
			return "", &InvalidDateError{Input: value}
		}
		return trimmed, nil
	}

	instant, ok := parseInstant(trimmed)
	if !ok {
		return "", &InvalidDateError{Input: value}
	}
	return instant.UTC().Format(CanonicalLayout), nil
}

// NewRange normalises optional from/to inputs into a DateRange. Blank inputs are treated as absent.
func NewRange(from, to string) (domain.DateRange, error) {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" && to == "" {
		return domain.DateRange{}, ErrRangeRequired
	}

	var out domain.DateRange
	if from != "" {
		normalized, err := Normalize(from)
		if err != nil {
			return domain.DateRange{}, &InvalidDateError{Field: "from", Input: from}
		}
		out.From = normalized
	}
	if to != "" {
		normalized, err := Normalize(to)
		if err != nil {
			return domain.DateRange{}, &InvalidDateError{Field: "to", Input: to}
		}
		out.To = normalized
	}

	// Canonical strings order lexically.
	if out.From != "" && out.To != "" && out.From > out.To {
		return domain.DateRange{}, fmt.Errorf("%w: %s > %s", ErrRangeInverted, out.From, out.To)
	}
	return out, nil
}

// Format renders t as a canonical day in UTC; empty for nil.
func Format(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(CanonicalLayout)
}

func parseInstant(value string) (time.Time, bool) {
	for _, layout := range acceptedLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
