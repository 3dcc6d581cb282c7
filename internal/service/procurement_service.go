package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/example/procflow/internal/lifecycle"
	"github.com/example/procflow/internal/metrics"
	"github.com/example/procflow/internal/models"
	"github.com/example/procflow/internal/mq"
	"github.com/example/procflow/internal/notify"
	"github.com/example/procflow/internal/repository"
	"github.com/example/procflow/internal/sla"
)

// ProcurementService bridges persistence, the lifecycle state machine and
// the SLA/metrics engines. The machine itself never touches storage; this
// service wraps each transition in a transaction so the audit-trail
// invariant (one history entry per applied transition) holds under
// concurrent callers.
type ProcurementService struct {
	db         *gorm.DB
	requests   *repository.RequestRepository
	machine    *lifecycle.Machine
	evaluator  *sla.Evaluator
	aggregator *metrics.Aggregator
	mq         mq.Publisher
	logger     *logrus.Logger
}

// NewProcurementService builds a service with dependencies.
func NewProcurementService(db *gorm.DB, repo *repository.RequestRepository, machine *lifecycle.Machine, evaluator *sla.Evaluator, aggregator *metrics.Aggregator, publisher mq.Publisher, logger *logrus.Logger) *ProcurementService {
	if logger == nil {
		logger = logrus.New()
	}
	return &ProcurementService{
		db:         db,
		requests:   repo,
		machine:    machine,
		evaluator:  evaluator,
		aggregator: aggregator,
		mq:         publisher,
		logger:     logger,
	}
}

// CreateRequest allocates the next request number, resolves the SLA days
// from the priority policy and persists the request on its initial stage.
func (s *ProcurementService) CreateRequest(ctx context.Context, request *models.Request, actor models.Actor, note string) error {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewRequestRepository(tx)
		number, err := repo.NextRequestNumber(ctx)
		if err != nil {
			return err
		}
		request.RequestNumber = number
		if request.Priority == "" {
			request.Priority = models.PriorityNormal
		}
		// sla_days is fixed here; later policy changes never apply to it.
		request.SLADays = s.evaluator.Policy().DaysFor(request.Priority)
		s.machine.Initialize(request, actor, note, now)
		return repo.Create(ctx, request)
	})
	if err != nil {
		return err
	}
	if err := s.publishEvent(ctx, "request.created", request); err != nil {
		s.logger.Warnf("publish request.created failed: %v", err)
	}
	return nil
}

// Advance moves the request to the target stage via the state machine and
// persists the result. A validation failure leaves the stored request
// untouched.
func (s *ProcurementService) Advance(ctx context.Context, id uuid.UUID, target models.Stage, actor models.Actor, note string) (*models.Request, error) {
	now := time.Now().UTC()
	var request *models.Request
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewRequestRepository(tx)
		found, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.machine.Transition(found, target, actor, note, now); err != nil {
			return err
		}
		if err := repo.Update(ctx, found); err != nil {
			return err
		}
		request = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.publishEvent(ctx, eventFor(target), request); err != nil {
		s.logger.Warnf("publish %s failed: %v", eventFor(target), err)
	}
	return request, nil
}

// RecordPurchase stores the negotiated final value (and optional notes)
// on a request that has reached the purchase_order stage. From then on
// the approval gate and the valor_total metrics read the final value
// instead of the estimate.
func (s *ProcurementService) RecordPurchase(ctx context.Context, id uuid.UUID, finalValue float64, notes string) (*models.Request, error) {
	var request *models.Request
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewRequestRepository(tx)
		found, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if found.Stage.Terminal() {
			return errors.Wrapf(lifecycle.ErrTerminalState, "request #%d is %s", found.RequestNumber, found.Stage)
		}
		if !lifecycle.Reached(found.Stage, models.StagePurchaseOrder) {
			return errors.Wrapf(lifecycle.ErrPurchaseNotReached, "request #%d is %s", found.RequestNumber, found.Stage)
		}
		found.FinalValue = &finalValue
		if notes != "" {
			found.Notes = notes
		}
		if err := repo.Update(ctx, found); err != nil {
			return err
		}
		request = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.publishEvent(ctx, "request.purchase_recorded", request); err != nil {
		s.logger.Warnf("publish request.purchase_recorded failed: %v", err)
	}
	return request, nil
}

// Decide records a manager-or-above approval decision on a request that
// sits at pending_approval.
func (s *ProcurementService) Decide(ctx context.Context, id uuid.UUID, approved bool, actor models.Actor, note string) (*models.Request, error) {
	target := models.StageRejected
	if approved {
		target = models.StageApproved
	}
	return s.Advance(ctx, id, target, actor, note)
}

// CanAdvance reports whether the actor could move the request to target,
// without mutating anything.
func (s *ProcurementService) CanAdvance(ctx context.Context, id uuid.UUID, target models.Stage, actor models.Actor) (bool, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	return s.machine.CanTransition(request, target, actor), nil
}

// SLAStatus describes where a request stands against its deadline.
type SLAStatus struct {
	RequestNumber int            `json:"request_number"`
	SLADays       int            `json:"sla_days"`
	ElapsedDays   int            `json:"elapsed_days"`
	Deadline      time.Time      `json:"deadline"`
	Compliant     bool           `json:"compliant"`
	AlertLevel    sla.AlertLevel `json:"alert_level"`
}

// SLAStatusFor evaluates one request against the clock.
func (s *ProcurementService) SLAStatusFor(ctx context.Context, id uuid.UUID) (*SLAStatus, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &SLAStatus{
		RequestNumber: request.RequestNumber,
		SLADays:       request.SLADays,
		ElapsedDays:   s.evaluator.ElapsedDays(request, now),
		Deadline:      s.evaluator.Deadline(request),
		Compliant:     s.evaluator.IsCompliant(request, now),
		AlertLevel:    s.evaluator.AlertLevelFor(request, now),
	}, nil
}

// Metric returns the (possibly cached) value for one metric/period pair.
func (s *ProcurementService) Metric(ctx context.Context, metricType metrics.MetricType, period metrics.Period, force bool) (json.RawMessage, error) {
	return s.aggregator.GetOrCompute(ctx, metricType, period, time.Now().UTC(), force)
}

var dashboardMetrics = []metrics.MetricType{
	metrics.MetricTotalRequests,
	metrics.MetricPendingRequests,
	metrics.MetricApprovedRequests,
	metrics.MetricRejectedRequests,
	metrics.MetricTotalValue,
	metrics.MetricAverageApprovalTime,
	metrics.MetricSLACompliance,
	metrics.MetricByDepartment,
	metrics.MetricByStatus,
	metrics.MetricTopRequesters,
}

// Dashboard assembles the full metric set for one period.
func (s *ProcurementService) Dashboard(ctx context.Context, period metrics.Period) (map[string]json.RawMessage, error) {
	now := time.Now().UTC()
	out := make(map[string]json.RawMessage, len(dashboardMetrics))
	for _, metricType := range dashboardMetrics {
		value, err := s.aggregator.GetOrCompute(ctx, metricType, period, now, false)
		if err != nil {
			return nil, err
		}
		out[string(metricType)] = value
	}
	return out, nil
}

// Alerts scans the non-terminal population and returns every request
// whose SLA consumption warrants an alert.
func (s *ProcurementService) Alerts(ctx context.Context) ([]notify.AlertPayload, error) {
	requests, err := s.requests.ListUnfinished(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	var alerts []notify.AlertPayload
	for i := range requests {
		req := &requests[i]
		level := s.evaluator.AlertLevelFor(req, now)
		if level == sla.AlertNone {
			continue
		}
		alerts = append(alerts, notify.AlertPayload{
			RequestID:     req.ID.String(),
			RequestNumber: req.RequestNumber,
			Requester:     req.Requester,
			Department:    req.Department,
			Level:         level,
			ElapsedDays:   s.evaluator.ElapsedDays(req, now),
			SLADays:       req.SLADays,
			Deadline:      s.evaluator.Deadline(req),
		})
	}
	return alerts, nil
}

// PublishAlert emits an SLA alert event for downstream consumers.
func (s *ProcurementService) PublishAlert(ctx context.Context, alert notify.AlertPayload) error {
	if s.mq == nil {
		return nil
	}
	return s.mq.Publish(ctx, "request.sla_alert", alert)
}

func (s *ProcurementService) publishEvent(ctx context.Context, event string, request *models.Request) error {
	if s.mq == nil {
		return nil
	}
	payload := map[string]any{
		"event":         event,
		"requestId":     request.ID.String(),
		"requestNumber": request.RequestNumber,
		"stage":         request.Stage,
		"status":        request.Status(),
		"requester":     request.Requester,
		"department":    request.Department,
		"occurredAt":    time.Now().UTC().Format(time.RFC3339),
	}
	return s.mq.Publish(ctx, event, payload)
}

func eventFor(target models.Stage) string {
	switch target {
	case models.StageApproved:
		return "request.approved"
	case models.StageRejected:
		return "request.rejected"
	case models.StageClosed:
		return "request.closed"
	default:
		return "request.stage_moved"
	}
}
