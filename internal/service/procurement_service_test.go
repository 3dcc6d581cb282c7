package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/procflow/internal/lifecycle"
	"github.com/example/procflow/internal/metrics"
	"github.com/example/procflow/internal/models"
	"github.com/example/procflow/internal/repository"
	"github.com/example/procflow/internal/sla"
)

func newTestService(t *testing.T) (*ProcurementService, *repository.RequestRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Request{}, &models.MetricSnapshot{}))

	repo := repository.NewRequestRepository(db)
	policy := sla.DefaultPolicy()
	evaluator := sla.NewEvaluator(policy)
	aggregator := metrics.NewAggregator(repo, metrics.NewMemoryStore(), evaluator, time.Hour, nil)
	machine := lifecycle.NewMachine(policy.Limits)
	return NewProcurementService(db, repo, machine, evaluator, aggregator, nil, nil), repo
}

func requesterActor() models.Actor {
	return models.Actor{Username: "ana", Level: models.LevelRequester}
}

func managerActor() models.Actor {
	return models.Actor{Username: "bruno", Level: models.LevelManager}
}

func TestCreateRequestAssignsNumberSLAAndHistory(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	first := &models.Request{Requester: "ana", Department: "TI", Description: "monitor", Priority: models.PriorityUrgent}
	require.NoError(t, svc.CreateRequest(ctx, first, requesterActor(), "need it"))
	assert.Equal(t, 1, first.RequestNumber)
	assert.Equal(t, models.StageRequest, first.Stage)
	assert.Equal(t, 1, first.SLADays)
	require.Len(t, first.History, 1)
	assert.Equal(t, "ana", first.History[0].Actor)
	assert.Equal(t, "need it", first.History[0].Note)

	second := &models.Request{Requester: "ana", Department: "TI", Description: "chair"}
	require.NoError(t, svc.CreateRequest(ctx, second, requesterActor(), ""))
	assert.Equal(t, 2, second.RequestNumber)
	assert.Equal(t, models.PriorityNormal, second.Priority)
	assert.Equal(t, 3, second.SLADays)

	stored, err := repo.FindByNumber(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
}

func TestAdvanceWalksTheWorkflow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	value := 1000.0
	request := &models.Request{Requester: "ana", Department: "TI", Description: "servers", EstimatedValue: &value}
	require.NoError(t, svc.CreateRequest(ctx, request, requesterActor(), ""))

	path := []models.Stage{
		models.StageInternalRequisition,
		models.StageProcurementIntake,
		models.StageQuotation,
		models.StagePurchaseOrder,
		models.StagePendingApproval,
	}
	for _, stage := range path {
		updated, err := svc.Advance(ctx, request.ID, stage, requesterActor(), "")
		require.NoError(t, err)
		assert.Equal(t, stage, updated.Stage)
	}

	decided, err := svc.Decide(ctx, request.ID, true, managerActor(), "within budget")
	require.NoError(t, err)
	assert.Equal(t, models.StageApproved, decided.Stage)
	require.NotNil(t, decided.ApprovalDecidedAt)
	require.Len(t, decided.History, 1+len(path)+1)
}

func TestFailedAdvanceLeavesStoredRequestUnchanged(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	request := &models.Request{Requester: "ana", Department: "TI", Description: "desk"}
	require.NoError(t, svc.CreateRequest(ctx, request, requesterActor(), ""))

	_, err := svc.Advance(ctx, request.ID, models.StageQuotation, requesterActor(), "")
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	stored, err := repo.FindByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageRequest, stored.Stage)
	assert.Len(t, stored.History, 1)
}

func TestDecideRequiresManagerAuthority(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	request := &models.Request{Requester: "ana", Department: "TI", Description: "laptops"}
	require.NoError(t, svc.CreateRequest(ctx, request, requesterActor(), ""))
	for _, stage := range []models.Stage{
		models.StageInternalRequisition,
		models.StageProcurementIntake,
		models.StageQuotation,
		models.StagePurchaseOrder,
		models.StagePendingApproval,
	} {
		_, err := svc.Advance(ctx, request.ID, stage, requesterActor(), "")
		require.NoError(t, err)
	}

	_, err := svc.Decide(ctx, request.ID, true, requesterActor(), "")
	assert.ErrorIs(t, err, lifecycle.ErrInsufficientAuthorization)

	ok, err := svc.CanAdvance(ctx, request.ID, models.StageApproved, managerActor())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRecordPurchaseRequiresPurchaseStage(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	estimated := 4000.0
	request := &models.Request{Requester: "ana", Department: "TI", Description: "racks", EstimatedValue: &estimated}
	require.NoError(t, svc.CreateRequest(ctx, request, requesterActor(), ""))

	_, err := svc.RecordPurchase(ctx, request.ID, 20000, "")
	require.ErrorIs(t, err, lifecycle.ErrPurchaseNotReached)

	stored, err := repo.FindByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.FinalValue)

	for _, stage := range []models.Stage{
		models.StageInternalRequisition,
		models.StageProcurementIntake,
		models.StageQuotation,
		models.StagePurchaseOrder,
	} {
		_, err := svc.Advance(ctx, request.ID, stage, requesterActor(), "")
		require.NoError(t, err)
	}

	updated, err := svc.RecordPurchase(ctx, request.ID, 20000, "supplier picked")
	require.NoError(t, err)
	require.NotNil(t, updated.FinalValue)
	assert.Equal(t, 20000.0, *updated.FinalValue)
	assert.Equal(t, "supplier picked", updated.Notes)

	// the gate now reads the recorded value, not the estimate
	_, err = svc.Advance(ctx, request.ID, models.StagePendingApproval, requesterActor(), "")
	require.NoError(t, err)
	_, err = svc.Decide(ctx, request.ID, true, models.Actor{Username: "diana", Level: models.LevelDirector}, "")
	assert.ErrorIs(t, err, lifecycle.ErrInsufficientAuthorization)

	decided, err := svc.Decide(ctx, request.ID, true, models.Actor{Username: "root", Level: models.LevelAdmin}, "")
	require.NoError(t, err)
	assert.Equal(t, models.StageApproved, decided.Stage)
}

func TestRecordPurchaseRefusedOnTerminalRequest(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	request := &models.Request{Requester: "ana", Department: "TI", Description: "vans"}
	require.NoError(t, svc.CreateRequest(ctx, request, requesterActor(), ""))
	for _, stage := range []models.Stage{
		models.StageInternalRequisition,
		models.StageProcurementIntake,
		models.StageQuotation,
		models.StagePurchaseOrder,
		models.StagePendingApproval,
	} {
		_, err := svc.Advance(ctx, request.ID, stage, requesterActor(), "")
		require.NoError(t, err)
	}
	_, err := svc.Decide(ctx, request.ID, false, managerActor(), "no budget")
	require.NoError(t, err)

	_, err = svc.RecordPurchase(ctx, request.ID, 500, "")
	assert.ErrorIs(t, err, lifecycle.ErrTerminalState)
}

func TestAlertsFlagOverdueRequests(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	stale := time.Now().UTC().Add(-10 * 24 * time.Hour)
	overdue := &models.Request{
		RequestNumber:  1,
		Requester:      "ana",
		Department:     "TI",
		Priority:       models.PriorityUrgent,
		Stage:          models.StageQuotation,
		SLADays:        1,
		CreatedAt:      stale,
		StageEnteredAt: stale,
	}
	require.NoError(t, repo.Create(ctx, overdue))

	fresh := &models.Request{Requester: "bia", Department: "RH", Description: "pens"}
	require.NoError(t, svc.CreateRequest(ctx, fresh, requesterActor(), ""))

	alerts, err := svc.Alerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, overdue.ID.String(), alerts[0].RequestID)
	assert.Equal(t, sla.AlertOverdue, alerts[0].Level)
	assert.Equal(t, 1, alerts[0].SLADays)
}

func TestDashboardCoversEveryMetric(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	request := &models.Request{Requester: "ana", Department: "TI", Description: "cables"}
	require.NoError(t, svc.CreateRequest(ctx, request, requesterActor(), ""))

	dashboard, err := svc.Dashboard(ctx, metrics.PeriodMonth)
	require.NoError(t, err)
	require.Len(t, dashboard, len(dashboardMetrics))
	for _, metricType := range dashboardMetrics {
		assert.Contains(t, dashboard, string(metricType))
	}
	assert.Equal(t, "1", string(dashboard[string(metrics.MetricTotalRequests)]))
}

func TestSLAStatusForReportsDeadline(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	request := &models.Request{Requester: "ana", Department: "TI", Description: "paint", Priority: models.PriorityLow}
	require.NoError(t, svc.CreateRequest(ctx, request, requesterActor(), ""))

	status, err := svc.SLAStatusFor(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, request.RequestNumber, status.RequestNumber)
	assert.Equal(t, 5, status.SLADays)
	assert.Equal(t, 0, status.ElapsedDays)
	assert.True(t, status.Compliant)
	assert.Equal(t, sla.AlertNone, status.AlertLevel)
	assert.True(t, status.Deadline.Equal(request.CreatedAt.Add(5*24*time.Hour)))
}
