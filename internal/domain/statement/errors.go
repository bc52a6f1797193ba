package statement

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrStatementNotFound is returned when no statement matches a lookup
	ErrStatementNotFound = errors.New("no invoice found")

	// ErrAlreadySent is returned when dispatch finds the latest statement already delivered
	ErrAlreadySent = errors.New("statement already sent")

	// ErrNoEmailAddress is returned when the target has no contact address configured
	ErrNoEmailAddress = errors.New("no email address configured")

	// ErrFileMissing is returned when the statement file cannot be found in storage
	ErrFileMissing = errors.New("statement file not found")

	// ErrDeliveryFailed is returned when the email transport rejects a statement
	ErrDeliveryFailed = errors.New("statement delivery failed")
)
