package types

import (
	"time"

	ierr "github.com/rxledger/statements/internal/errors"
)

// ParseDate parses a calendar day in DateLayout
func ParseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, ierr.WithError(err).
			WithHintf("%s must be a date formatted as YYYY-MM-DD", field).
			Mark(ierr.ErrValidation)
	}
	return t, nil
}

// ParsePeriod parses and validates a [from, to] pair of calendar days
func ParsePeriod(from, to string) (Period, error) {
	f, err := ParseDate("from", from)
	if err != nil {
		return Period{}, err
	}
	t, err := ParseDate("to", to)
	if err != nil {
		return Period{}, err
	}
	p := NewPeriod(f, t)
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}
