package sla

import (
	"math"
	"time"

	"github.com/example/procflow/internal/models"
)

// AlertLevel classifies how close a request is to blowing its SLA.
type AlertLevel string

const (
	AlertNone    AlertLevel = "none"
	AlertWarning AlertLevel = "warning" // 80% of the SLA consumed
	AlertDanger  AlertLevel = "danger"  // 100% of the SLA consumed
	AlertOverdue AlertLevel = "overdue" // past deadline and still open
)

// Evaluator computes deadlines and compliance for requests. All methods
// take caller-supplied timestamps so results are deterministic.
type Evaluator struct {
	policy Policy
}

// NewEvaluator creates an evaluator bound to a policy.
func NewEvaluator(policy Policy) *Evaluator {
	return &Evaluator{policy: policy}
}

// Policy returns the policy the evaluator was built with.
func (e *Evaluator) Policy() Policy {
	return e.policy
}

// Deadline is the moment the request is expected to complete by:
// created_at plus the allotted days resolved at creation time.
func (e *Evaluator) Deadline(req *models.Request) time.Time {
	if e.policy.BusinessDays {
		return addBusinessDays(req.CreatedAt, req.SLADays)
	}
	return req.CreatedAt.Add(time.Duration(req.SLADays) * 24 * time.Hour)
}

// ElapsedDays is the number of whole days since creation, never negative.
func (e *Evaluator) ElapsedDays(req *models.Request, now time.Time) int {
	if !now.After(req.CreatedAt) {
		return 0
	}
	if !e.policy.BusinessDays {
		return int(now.Sub(req.CreatedAt).Hours() / 24)
	}
	days := 0
	for t := req.CreatedAt.Add(24 * time.Hour); !t.After(now); t = t.Add(24 * time.Hour) {
		if isBusinessDay(t) {
			days++
		}
	}
	return days
}

// IsCompliant reports whether the request met (or is still meeting) its SLA.
// Open requests are evaluated against now; terminal requests against the
// timestamp that ended them.
func (e *Evaluator) IsCompliant(req *models.Request, now time.Time) bool {
	end := now
	switch {
	case req.Stage == models.StageClosed && req.ClosedAt != nil:
		end = *req.ClosedAt
	case req.Stage == models.StageRejected && req.ApprovalDecidedAt != nil:
		end = *req.ApprovalDecidedAt
	}
	return !end.After(e.Deadline(req))
}

// ComplianceRate is the percentage of compliant requests in the set,
// rounded to two decimals. An empty set is vacuously 100% compliant.
func (e *Evaluator) ComplianceRate(requests []models.Request, now time.Time) float64 {
	if len(requests) == 0 {
		return 100.0
	}
	compliant := 0
	for i := range requests {
		if e.IsCompliant(&requests[i], now) {
			compliant++
		}
	}
	rate := float64(compliant) / float64(len(requests)) * 100
	return math.Round(rate*100) / 100
}

// AlertLevelFor classifies the request for alerting. Terminal requests
// never alert; the work on them is done.
func (e *Evaluator) AlertLevelFor(req *models.Request, now time.Time) AlertLevel {
	if req.Stage.Terminal() {
		return AlertNone
	}
	if now.After(e.Deadline(req)) {
		return AlertOverdue
	}
	if req.SLADays <= 0 {
		return AlertNone
	}
	ratio := float64(e.ElapsedDays(req, now)) / float64(req.SLADays)
	switch {
	case ratio >= 1.0:
		return AlertDanger
	case ratio >= 0.8:
		return AlertWarning
	default:
		return AlertNone
	}
}

func isBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func addBusinessDays(t time.Time, days int) time.Time {
	for i := 0; i < days; i++ {
		t = t.AddDate(0, 0, 1)
		for !isBusinessDay(t) {
			t = t.AddDate(0, 0, 1)
		}
	}
	return t
}
