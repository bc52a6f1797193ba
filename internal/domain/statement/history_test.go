package statement

import (
	"context"
	"testing"
	"time"

	"github.com/rxledger/statements/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendStatusKeepsOrderAndCurrentStatus(t *testing.T) {
	ctx := context.Background()
	r := NewRecord(ctx, types.PatientTarget(3), types.NewPeriod(day(2024, 1, 1), day(2024, 1, 31)), false, nil)

	t1 := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	r.AppendStatusAt(ctx, types.StatementStatusCompleted, t1)
	r.AppendStatusAt(ctx, types.StatementStatusSent, t1.Add(time.Hour))

	require.Len(t, r.StatusHistory, 3)
	assert.Equal(t, types.StatementStatusPending, r.StatusHistory[0].Status)
	assert.Equal(t, types.StatementStatusCompleted, r.StatusHistory[1].Status)
	assert.Equal(t, types.StatementStatusSent, r.StatusHistory[2].Status)

	// Sent is a marker, the record stays Completed
	assert.Equal(t, types.StatementStatusCompleted, r.StatementStatus)
	last, ok := r.StatusHistory.LastRecordStatus()
	require.True(t, ok)
	assert.Equal(t, r.StatementStatus, last)
	assert.Equal(t, t1.Add(time.Hour), r.UpdatedAt)
}

func TestHistoryRoundTripIsDense(t *testing.T) {
	h := StatusHistory{
		{Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), Status: types.StatementStatusPending},
		{Timestamp: time.Date(2024, 1, 2, 3, 5, 0, 0, time.UTC), Status: types.StatementStatusFailed},
	}

	b, err := h.Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(b), "\n")
	assert.NotContains(t, string(b), " ")

	assert.Equal(t, h, ParseStatusHistory(b))
}

func TestCorruptHistoryDegradesToEmpty(t *testing.T) {
	var h StatusHistory
	require.NoError(t, h.Scan([]byte(`{"legacy":true`)))
	assert.Empty(t, h)

	require.NoError(t, h.Scan(nil))
	assert.Empty(t, h)

	require.NoError(t, h.Scan(`[{"t":"2024-01-02T03:04:05Z","s":"Pending"}]`))
	assert.Len(t, h, 1)

	assert.Error(t, h.Scan(42))
}

func TestEmptyHistoryMarshalsAsArray(t *testing.T) {
	v, err := StatusHistory(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
