package statement

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rxledger/statements/internal/types"
)

// StatusEntry is one transition in a record's status history
type StatusEntry struct {
	Timestamp time.Time             `json:"t"`
	Status    types.StatementStatus `json:"s"`
}

// StatusHistory is the append-only, oldest-first transition log of a record.
// It is stored as a compact JSON array alongside the record.
type StatusHistory []StatusEntry

// AppendStatus appends status stamped with the current time
func (r *Record) AppendStatus(ctx context.Context, status types.StatementStatus) {
	r.AppendStatusAt(ctx, status, time.Now().UTC())
}

// AppendStatusAt appends {at, status} to the history and bumps the audit fields.
// Record statuses also become the current status; the Sent marker does not.
func (r *Record) AppendStatusAt(ctx context.Context, status types.StatementStatus, at time.Time) {
	r.StatusHistory = append(r.StatusHistory, StatusEntry{Timestamp: at.UTC(), Status: status})
	if status.IsRecordStatus() {
		r.StatementStatus = status
	}
	r.Touch(ctx, at.UTC())
}

// Last returns the most recent entry, if any
func (h StatusHistory) Last() (StatusEntry, bool) {
	if len(h) == 0 {
		return StatusEntry{}, false
	}
	return h[len(h)-1], true
}

// LastRecordStatus returns the most recent entry that is a record status,
// skipping Sent markers
func (h StatusHistory) LastRecordStatus() (types.StatementStatus, bool) {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Status.IsRecordStatus() {
			return h[i].Status, true
		}
	}
	return "", false
}

// Marshal encodes the history densely, without indentation
func (h StatusHistory) Marshal() ([]byte, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]StatusEntry(h))
}

// ParseStatusHistory decodes a stored history. Corrupt or legacy payloads
// decode to an empty history instead of failing the read.
func ParseStatusHistory(data []byte) StatusHistory {
	if len(data) == 0 {
		return StatusHistory{}
	}
	var entries []StatusEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return StatusHistory{}
	}
	return StatusHistory(entries)
}

// Scan implements sql.Scanner
func (h *StatusHistory) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*h = StatusHistory{}
	case []byte:
		*h = ParseStatusHistory(v)
	case string:
		*h = ParseStatusHistory([]byte(v))
	default:
		return fmt.Errorf("unsupported status history type %T", value)
	}
	return nil
}

// Value implements driver.Valuer
func (h StatusHistory) Value() (driver.Value, error) {
	b, err := h.Marshal()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
