package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/procflow/internal/notify"
	"github.com/example/procflow/internal/service"
	"github.com/example/procflow/internal/sla"
)

// SLAMonitor periodically scans non-terminal requests, classifies their
// alert level and dispatches alerts to the event exchange and the
// webhook receiver. A (request, level) pair is dispatched once while the
// request stays in the alert set; escalation to a higher level
// dispatches again, and entries for requests that left the set are
// pruned on the next pass.
type SLAMonitor struct {
	id       string
	service  *service.ProcurementService
	webhook  *notify.WebhookClient
	interval time.Duration
	logger   *logrus.Logger
	sent     map[string]sla.AlertLevel
}

// NewSLAMonitor creates the monitor with a random identifier.
func NewSLAMonitor(svc *service.ProcurementService, webhook *notify.WebhookClient, interval time.Duration, logger *logrus.Logger) *SLAMonitor {
	if logger == nil {
		logger = logrus.New()
	}
	return &SLAMonitor{
		id:       uuid.New().String(),
		service:  svc,
		webhook:  webhook,
		interval: interval,
		logger:   logger,
		sent:     make(map[string]sla.AlertLevel),
	}
}

// Run starts the polling loop and should be launched in its own goroutine.
func (m *SLAMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("sla monitor shutting down")
			return
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

// Poll performs a single scan-and-dispatch pass.
func (m *SLAMonitor) Poll(ctx context.Context) {
	alerts, err := m.service.Alerts(ctx)
	if err != nil {
		m.logger.Errorf("scan sla alerts: %v", err)
		return
	}
	current := make(map[string]struct{}, len(alerts))
	for _, alert := range alerts {
		current[alert.RequestID] = struct{}{}
	}
	for id := range m.sent {
		if _, ok := current[id]; !ok {
			delete(m.sent, id)
		}
	}

	dispatched := 0
	for _, alert := range alerts {
		if last, ok := m.sent[alert.RequestID]; ok && !escalated(last, alert.Level) {
			continue
		}
		if err := m.service.PublishAlert(ctx, alert); err != nil {
			m.logger.Errorf("publish alert for request #%d failed: %v", alert.RequestNumber, err)
		}
		if err := m.webhook.SendAlert(ctx, alert); err != nil {
			m.logger.Errorf("webhook alert for request #%d failed: %v", alert.RequestNumber, err)
		}
		m.sent[alert.RequestID] = alert.Level
		dispatched++
	}
	if dispatched > 0 {
		m.logger.Infof("sla monitor dispatched %d of %d alerts", dispatched, len(alerts))
	}
}

var levelRank = map[sla.AlertLevel]int{
	sla.AlertNone:    0,
	sla.AlertWarning: 1,
	sla.AlertDanger:  2,
	sla.AlertOverdue: 3,
}

func escalated(previous, current sla.AlertLevel) bool {
	return levelRank[current] > levelRank[previous]
}
