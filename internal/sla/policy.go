package sla

import "github.com/example/procflow/internal/models"

// ApprovalLimits are the monetary thresholds of the approval gate.
// Values above Manager need director sign-off, values above Director need
// the highest tier.
type ApprovalLimits struct {
	Manager  float64
	Director float64
}

// Policy maps a request priority to its allotted days and carries the
// approval thresholds. A request resolves its SLA days from the policy
// once, at creation; later policy changes never retroactively apply.
type Policy struct {
	Days        map[models.Priority]int
	DefaultDays int
	Limits      ApprovalLimits

	// BusinessDays switches deadline and elapsed-day arithmetic to skip
	// weekends instead of counting calendar days.
	BusinessDays bool
}

// DefaultPolicy returns the stock policy table.
func DefaultPolicy() Policy {
	return Policy{
		Days: map[models.Priority]int{
			models.PriorityUrgent: 1,
			models.PriorityHigh:   2,
			models.PriorityNormal: 3,
			models.PriorityLow:    5,
		},
		DefaultDays: 3,
		Limits: ApprovalLimits{
			Manager:  5000.0,
			Director: 15000.0,
		},
	}
}

// DaysFor resolves the allotted days for a priority.
func (p Policy) DaysFor(priority models.Priority) int {
	if days, ok := p.Days[priority]; ok {
		return days
	}
	return p.DefaultDays
}
