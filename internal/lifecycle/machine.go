package lifecycle

import (
	"time"

	"github.com/pkg/errors"

	"github.com/example/procflow/internal/models"
	"github.com/example/procflow/internal/sla"
)

// stageOrder is the required forward path of a request. The only branch
// is at pending_approval, which may also move to rejected.
var stageOrder = []models.Stage{
	models.StageRequest,
	models.StageInternalRequisition,
	models.StageProcurementIntake,
	models.StageQuotation,
	models.StagePurchaseOrder,
	models.StagePendingApproval,
	models.StageApproved,
	models.StagePurchaseCompleted,
	models.StageAwaitingDelivery,
	models.StageClosed,
}

// Machine validates and applies stage transitions. It owns no storage and
// performs no I/O; it mutates only the request handed to it, and only
// after every precondition has passed.
type Machine struct {
	limits sla.ApprovalLimits
}

// NewMachine creates a machine enforcing the given approval thresholds.
func NewMachine(limits sla.ApprovalLimits) *Machine {
	return &Machine{limits: limits}
}

// Initialize records the creation of a request as its first history entry
// and places it on the initial stage.
func (m *Machine) Initialize(req *models.Request, actor models.Actor, note string, ts time.Time) {
	req.Stage = models.StageRequest
	req.CreatedAt = ts
	req.StageEnteredAt = ts
	req.History = append(req.History, models.StageTransition{
		ToStage:   models.StageRequest,
		Actor:     actor.Username,
		Timestamp: ts,
		Note:      note,
	})
}

// Transition moves the request to target, stamping timestamps and the
// history entry. On failure the request is left entirely unchanged.
func (m *Machine) Transition(req *models.Request, target models.Stage, actor models.Actor, note string, ts time.Time) error {
	if err := m.validate(req, target, actor); err != nil {
		return err
	}

	req.History = append(req.History, models.StageTransition{
		FromStage: req.Stage,
		ToStage:   target,
		Actor:     actor.Username,
		Timestamp: ts,
		Note:      note,
	})
	req.Stage = target
	req.StageEnteredAt = ts

	switch target {
	case models.StageApproved, models.StageRejected:
		decided := ts
		req.ApprovalDecidedAt = &decided
	case models.StageClosed:
		closed := ts
		req.ClosedAt = &closed
	}
	return nil
}

// CanTransition is the pure predicate form of Transition, used by
// collaborators to decide whether to expose an action.
func (m *Machine) CanTransition(req *models.Request, target models.Stage, actor models.Actor) bool {
	return m.validate(req, target, actor) == nil
}

func (m *Machine) validate(req *models.Request, target models.Stage, actor models.Actor) error {
	if req.Stage.Terminal() {
		return errors.Wrapf(ErrTerminalState, "request #%d is %s", req.RequestNumber, req.Stage)
	}
	if !isSuccessor(req.Stage, target) {
		return errors.Wrapf(ErrInvalidTransition, "%s to %s", req.Stage, target)
	}
	if target == models.StageApproved || target == models.StageRejected {
		if req.ApprovalDecidedAt != nil {
			return errors.Wrapf(ErrAlreadyDecided, "request #%d decided at %s", req.RequestNumber, req.ApprovalDecidedAt)
		}
		if err := m.authorizeDecision(req, target, actor); err != nil {
			return err
		}
	}
	return nil
}

// authorizeDecision enforces the approval-threshold gate. Any decision
// needs at least manager authority; approvals above the manager limit
// need a director, above the director limit the highest tier.
func (m *Machine) authorizeDecision(req *models.Request, target models.Stage, actor models.Actor) error {
	required := models.LevelManager
	if target == models.StageApproved {
		value := req.ApprovalValue()
		switch {
		case value > m.limits.Director:
			required = models.LevelAdmin
		case value > m.limits.Manager:
			required = models.LevelDirector
		}
	}
	if actor.Level < required {
		return errors.Wrapf(ErrInsufficientAuthorization,
			"actor %s is %s, %s required for value %.2f",
			actor.Username, actor.Level, required, req.ApprovalValue())
	}
	return nil
}

func isSuccessor(current, target models.Stage) bool {
	if current == models.StagePendingApproval && target == models.StageRejected {
		return true
	}
	i := stageIndex(current)
	return i >= 0 && i+1 < len(stageOrder) && stageOrder[i+1] == target
}

// Reached reports whether current sits at or past milestone on the
// forward path. Stages off the path (rejected) never qualify.
func Reached(current, milestone models.Stage) bool {
	ci, mi := stageIndex(current), stageIndex(milestone)
	return ci >= 0 && mi >= 0 && ci >= mi
}

func stageIndex(stage models.Stage) int {
	for i, s := range stageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}
