package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Priority classifies how quickly a purchase request is expected to complete.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Stage is a discrete position in the ordered procurement workflow.
type Stage string

const (
	StageRequest             Stage = "request"
	StageInternalRequisition Stage = "internal_requisition"
	StageProcurementIntake   Stage = "procurement_intake"
	StageQuotation           Stage = "quotation"
	StagePurchaseOrder       Stage = "purchase_order"
	StagePendingApproval     Stage = "pending_approval"
	StageApproved            Stage = "approved"
	StageRejected            Stage = "rejected"
	StagePurchaseCompleted   Stage = "purchase_completed"
	StageAwaitingDelivery    Stage = "awaiting_delivery"
	StageClosed              Stage = "closed"
)

// Terminal reports whether no further transition is permitted from the stage.
func (s Stage) Terminal() bool {
	return s == StageRejected || s == StageClosed
}

// Status is a coarse summary of a request, always derived from its stage.
type Status string

const (
	StatusOpen     Status = "open"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusClosed   Status = "closed"
)

// StatusOf projects a stage onto its summary status. Status is never stored
// independently, which keeps stage and status from drifting apart.
func StatusOf(stage Stage) Status {
	switch stage {
	case StageRejected:
		return StatusRejected
	case StageClosed:
		return StatusClosed
	case StageApproved, StagePurchaseCompleted, StageAwaitingDelivery:
		return StatusApproved
	default:
		return StatusOpen
	}
}

// StageTransition is one entry of the append-only audit trail of a request.
type StageTransition struct {
	FromStage Stage     `json:"from_stage"`
	ToStage   Stage     `json:"to_stage"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// Request represents a purchase request tracked from creation to closure.
type Request struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RequestNumber int       `gorm:"uniqueIndex" json:"requestNumber"`

	Requester       string   `json:"requester"`
	Department      string   `json:"department"`
	Description     string   `json:"description"`
	ApplicationSite string   `json:"applicationSite"`
	Notes           string   `json:"notes"`
	Priority        Priority `json:"priority"`

	Stage   Stage `gorm:"index" json:"stage"`
	SLADays int   `json:"slaDays"`

	EstimatedValue *float64 `json:"estimatedValue"`
	FinalValue     *float64 `json:"finalValue"`

	CreatedAt         time.Time  `json:"createdAt"`
	StageEnteredAt    time.Time  `json:"stageEnteredAt"`
	ApprovalDecidedAt *time.Time `json:"approvalDecidedAt"`
	ClosedAt          *time.Time `json:"closedAt"`

	History []StageTransition `gorm:"type:jsonb;serializer:json" json:"history"`
}

// BeforeCreate is a GORM hook that populates the primary key and defaults.
func (r *Request) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Stage == "" {
		r.Stage = StageRequest
	}
	if r.Priority == "" {
		r.Priority = PriorityNormal
	}
	if r.StageEnteredAt.IsZero() {
		r.StageEnteredAt = r.CreatedAt
	}
	return nil
}

// Status returns the derived summary status of the request.
func (r *Request) Status() Status {
	return StatusOf(r.Stage)
}

// ApprovalValue is the monetary value the approval gate checks: the final
// value once a purchase has been recorded, otherwise the estimate.
func (r *Request) ApprovalValue() float64 {
	if r.FinalValue != nil {
		return *r.FinalValue
	}
	if r.EstimatedValue != nil {
		return *r.EstimatedValue
	}
	return 0
}
