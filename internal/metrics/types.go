package metrics

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// MetricType names one dashboard computation. The wire names are kept
// from the legacy system so existing dashboards keep working.
type MetricType string

const (
	MetricTotalRequests       MetricType = "total_solicitacoes"
	MetricPendingRequests     MetricType = "solicitacoes_pendentes"
	MetricApprovedRequests    MetricType = "solicitacoes_aprovadas"
	MetricRejectedRequests    MetricType = "solicitacoes_reprovadas"
	MetricTotalValue          MetricType = "valor_total_mes"
	MetricAverageApprovalTime MetricType = "tempo_medio_aprovacao"
	MetricSLACompliance       MetricType = "sla_cumprido"
	MetricByDepartment        MetricType = "solicitacoes_por_departamento"
	MetricByStatus            MetricType = "solicitacoes_por_status"
	MetricTopRequesters       MetricType = "top_solicitantes"
)

// Period selects the date window a metric is computed over.
type Period string

const (
	PeriodToday   Period = "hoje"
	PeriodWeek    Period = "semana"
	PeriodMonth   Period = "mes"
	PeriodQuarter Period = "trimestre"
	PeriodYear    Period = "ano"
	PeriodAll     Period = "total"
)

// Aggregator lookup failures.
var (
	ErrUnknownMetricType = errors.New("unknown metric type")
	ErrUnknownPeriod     = errors.New("unknown period")
)

var knownMetricTypes = map[MetricType]struct{}{
	MetricTotalRequests:       {},
	MetricPendingRequests:     {},
	MetricApprovedRequests:    {},
	MetricRejectedRequests:    {},
	MetricTotalValue:          {},
	MetricAverageApprovalTime: {},
	MetricSLACompliance:       {},
	MetricByDepartment:        {},
	MetricByStatus:            {},
	MetricTopRequesters:       {},
}

var knownPeriods = map[Period]struct{}{
	PeriodToday:   {},
	PeriodWeek:    {},
	PeriodMonth:   {},
	PeriodQuarter: {},
	PeriodYear:    {},
	PeriodAll:     {},
}

// Snapshot is one cached metric value keyed by (metric type, period).
type Snapshot struct {
	MetricType MetricType      `json:"metric_type"`
	Period     Period          `json:"period"`
	Value      json.RawMessage `json:"value"`
	ComputedAt time.Time       `json:"computed_at"`
}

// TopRequester is one entry of the top_solicitantes ranking.
type TopRequester struct {
	Requester string `json:"requester"`
	Count     int    `json:"count"`
}
