package statement

import (
	"context"
	"testing"

	"github.com/rxledger/statements/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrganizationRecord(t *testing.T) {
	ctx := types.SetUserID(context.Background(), "billing-clerk")
	period := types.NewPeriod(day(2024, 1, 1), day(2024, 1, 31))

	r := NewRecord(ctx, types.OrganizationTarget(7), period, false, []int64{1, 2, 2})

	assert.Equal(t, types.StatementStatusPending, r.StatementStatus)
	require.Len(t, r.StatusHistory, 1)
	assert.Equal(t, types.StatementStatusPending, r.StatusHistory[0].Status)
	assert.Nil(t, r.FilePath)
	assert.Equal(t, "billing-clerk", r.CreatedBy)
	require.Len(t, r.WardAllocations, 2)
	for _, a := range r.WardAllocations {
		assert.Empty(t, a.PatientIDs)
	}
	assert.NoError(t, r.Validate())
}

func TestNewPatientRecordHasNoAllocations(t *testing.T) {
	r := NewRecord(context.Background(), types.PatientTarget(3), types.NewPeriod(day(2024, 1, 1), day(2024, 1, 31)), false, []int64{1})
	assert.Empty(t, r.WardAllocations)
}

func TestResetForReuse(t *testing.T) {
	ctx := context.Background()
	r := NewRecord(ctx, types.OrganizationTarget(7), types.NewPeriod(day(2024, 1, 1), day(2024, 1, 31)), false, []int64{1})
	r.MarkCompleted(ctx, "statements/ORG_7_20240201090000.xlsx")
	r.WardAllocations[0].SetPatients([]int64{11, 10})

	next := types.NewPeriod(day(2024, 1, 15), day(2024, 2, 15))
	r.ResetForReuse(ctx, next, true, []int64{1, 5})

	assert.Nil(t, r.FilePath)
	assert.Equal(t, types.StatementStatusPending, r.StatementStatus)
	assert.Equal(t, next, r.Period())
	assert.True(t, r.IsSent)
	require.Len(t, r.StatusHistory, 3)
	require.Len(t, r.WardAllocations, 2)
	assert.Empty(t, r.WardAllocations[0].PatientIDs)
	assert.NoError(t, r.Validate())
}

func TestValidateFileOnlyWhenCompleted(t *testing.T) {
	ctx := context.Background()
	r := NewRecord(ctx, types.PatientTarget(3), types.NewPeriod(day(2024, 1, 1), day(2024, 1, 31)), false, nil)
	path := "statements/PAT_3.xlsx"
	r.FilePath = &path
	assert.Error(t, r.Validate())

	r.MarkFailed(ctx)
	assert.Nil(t, r.FilePath)
	assert.NoError(t, r.Validate())
}

func TestValidateRejectsMissingTarget(t *testing.T) {
	r := NewRecord(context.Background(), types.Target{}, types.NewPeriod(day(2024, 1, 1), day(2024, 1, 31)), false, nil)
	assert.Error(t, r.Validate())
}

func TestWardAllocationPatients(t *testing.T) {
	a := &WardAllocation{}
	a.SetPatients([]int64{11, 10, 11})
	assert.Equal(t, "10,11", a.PatientIDs)
	assert.Equal(t, []int64{10, 11}, a.Patients())

	a.PatientIDs = "10, x,12"
	assert.Equal(t, []int64{10, 12}, a.Patients())

	a.PatientIDs = ""
	assert.Nil(t, a.Patients())
}
