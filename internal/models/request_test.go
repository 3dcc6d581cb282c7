package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusIsProjectedFromStage(t *testing.T) {
	cases := []struct {
		stage Stage
		want  Status
	}{
		{StageRequest, StatusOpen},
		{StageInternalRequisition, StatusOpen},
		{StageProcurementIntake, StatusOpen},
		{StageQuotation, StatusOpen},
		{StagePurchaseOrder, StatusOpen},
		{StagePendingApproval, StatusOpen},
		{StageApproved, StatusApproved},
		{StagePurchaseCompleted, StatusApproved},
		{StageAwaitingDelivery, StatusApproved},
		{StageRejected, StatusRejected},
		{StageClosed, StatusClosed},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusOf(tc.stage), "stage %s", tc.stage)
		r := Request{Stage: tc.stage}
		assert.Equal(t, tc.want, r.Status())
	}
}

func TestTerminalStages(t *testing.T) {
	assert.True(t, StageRejected.Terminal())
	assert.True(t, StageClosed.Terminal())
	assert.False(t, StageApproved.Terminal())
	assert.False(t, StageAwaitingDelivery.Terminal())
}

func TestApprovalValuePrefersFinalOverEstimate(t *testing.T) {
	estimated := 4000.0
	final := 20000.0

	r := Request{}
	assert.Equal(t, 0.0, r.ApprovalValue())

	r.EstimatedValue = &estimated
	assert.Equal(t, 4000.0, r.ApprovalValue())

	r.FinalValue = &final
	assert.Equal(t, 20000.0, r.ApprovalValue())
}

func TestParseAuthorizationLevel(t *testing.T) {
	for _, name := range []string{"requester", "stock", "procurement", "manager", "director", "admin"} {
		level, err := ParseAuthorizationLevel(name)
		require.NoError(t, err)
		assert.Equal(t, name, level.String())
	}

	_, err := ParseAuthorizationLevel("intern")
	assert.Error(t, err)
}

func TestAuthorizationLevelsAreOrdered(t *testing.T) {
	assert.True(t, LevelRequester < LevelStock)
	assert.True(t, LevelStock < LevelProcurement)
	assert.True(t, LevelProcurement < LevelManager)
	assert.True(t, LevelManager < LevelDirector)
	assert.True(t, LevelDirector < LevelAdmin)
}
