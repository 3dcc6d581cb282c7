package metrics

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/procflow/internal/models"
	"github.com/example/procflow/internal/sla"
)

// DefaultFreshness is how long a snapshot may be served from cache
// before it must be recomputed.
const DefaultFreshness = time.Hour

// RequestSource supplies the request population the aggregator scans.
type RequestSource interface {
	AllRequests(ctx context.Context) ([]models.Request, error)
}

// Aggregator computes time-windowed dashboard statistics over the request
// population and caches them in an explicit snapshot store.
type Aggregator struct {
	source    RequestSource
	store     SnapshotStore
	evaluator *sla.Evaluator
	freshness time.Duration
	logger    *logrus.Logger
}

// NewAggregator builds an aggregator. A freshness of zero falls back to
// DefaultFreshness.
func NewAggregator(source RequestSource, store SnapshotStore, evaluator *sla.Evaluator, freshness time.Duration, logger *logrus.Logger) *Aggregator {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Aggregator{
		source:    source,
		store:     store,
		evaluator: evaluator,
		freshness: freshness,
		logger:    logger,
	}
}

// GetOrCompute returns the cached value for (metricType, period) when it
// is younger than the freshness window, otherwise recomputes it and
// replaces the snapshot. force skips the cache entirely.
func (a *Aggregator) GetOrCompute(ctx context.Context, metricType MetricType, period Period, now time.Time, force bool) (json.RawMessage, error) {
	if _, ok := knownMetricTypes[metricType]; !ok {
		return nil, errors.Wrapf(ErrUnknownMetricType, "%q", metricType)
	}
	if _, ok := knownPeriods[period]; !ok {
		return nil, errors.Wrapf(ErrUnknownPeriod, "%q", period)
	}

	if !force {
		snap, err := a.store.Get(ctx, metricType, period)
		if err != nil {
			return nil, err
		}
		if snap != nil && now.Sub(snap.ComputedAt) < a.freshness {
			return snap.Value, nil
		}
	}

	requests, err := a.source.AllRequests(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load request population")
	}
	filtered := filterByPeriod(requests, period, now)

	value, err := json.Marshal(a.compute(metricType, filtered, now))
	if err != nil {
		return nil, errors.Wrap(err, "encode metric value")
	}

	snap := Snapshot{MetricType: metricType, Period: period, Value: value, ComputedAt: now}
	if err := a.store.Put(ctx, snap); err != nil {
		return nil, errors.Wrap(err, "cache metric value")
	}
	a.logger.WithFields(logrus.Fields{
		"metric": metricType,
		"period": period,
	}).Debug("metric recomputed")
	return value, nil
}

func (a *Aggregator) compute(metricType MetricType, requests []models.Request, now time.Time) any {
	switch metricType {
	case MetricTotalRequests:
		return len(requests)

	case MetricPendingRequests:
		count := 0
		for i := range requests {
			switch requests[i].Stage {
			case models.StageApproved, models.StageRejected, models.StageClosed:
			default:
				count++
			}
		}
		return count

	case MetricApprovedRequests:
		return countStage(requests, models.StageApproved)

	case MetricRejectedRequests:
		return countStage(requests, models.StageRejected)

	case MetricTotalValue:
		total := 0.0
		for i := range requests {
			status := requests[i].Status()
			if status != models.StatusApproved && status != models.StatusClosed {
				continue
			}
			if requests[i].FinalValue != nil {
				total += *requests[i].FinalValue
			}
		}
		return total

	case MetricAverageApprovalTime:
		days := 0
		decided := 0
		for i := range requests {
			if requests[i].ApprovalDecidedAt == nil {
				continue
			}
			days += int(requests[i].ApprovalDecidedAt.Sub(requests[i].CreatedAt).Hours() / 24)
			decided++
		}
		if decided == 0 {
			return 0.0
		}
		avg := float64(days) / float64(decided)
		return math.Round(avg*100) / 100

	case MetricSLACompliance:
		return a.evaluator.ComplianceRate(requests, now)

	case MetricByDepartment:
		byDept := make(map[string]int)
		for i := range requests {
			byDept[requests[i].Department]++
		}
		return byDept

	case MetricByStatus:
		byStatus := make(map[string]int)
		for i := range requests {
			byStatus[string(requests[i].Status())]++
		}
		return byStatus

	case MetricTopRequesters:
		return topRequesters(requests, 10)
	}
	return nil
}

func countStage(requests []models.Request, stage models.Stage) int {
	count := 0
	for i := range requests {
		if requests[i].Stage == stage {
			count++
		}
	}
	return count
}

// topRequesters ranks requesters by request count, descending, capped at
// limit. Ties keep first-encountered order (stable sort).
func topRequesters(requests []models.Request, limit int) []TopRequester {
	counts := make(map[string]int)
	var order []string
	for i := range requests {
		name := requests[i].Requester
		if _, seen := counts[name]; !seen {
			order = append(order, name)
		}
		counts[name]++
	}

	ranked := make([]TopRequester, 0, len(order))
	for _, name := range order {
		ranked = append(ranked, TopRequester{Requester: name, Count: counts[name]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// filterByPeriod narrows the population to the date window the period
// implies, relative to now.
func filterByPeriod(requests []models.Request, period Period, now time.Time) []models.Request {
	if period == PeriodAll {
		return requests
	}

	keep := func(created time.Time) bool { return true }
	switch period {
	case PeriodToday:
		y, m, d := now.Date()
		keep = func(created time.Time) bool {
			cy, cm, cd := created.Date()
			return cy == y && cm == m && cd == d
		}
	case PeriodWeek:
		keep = sinceFilter(startOfWeek(now), now)
	case PeriodMonth:
		keep = func(created time.Time) bool {
			return created.Year() == now.Year() && created.Month() == now.Month()
		}
	case PeriodQuarter:
		month := int(now.Month())
		quarterStart := time.Date(now.Year(), time.Month((month-1)/3*3+1), 1, 0, 0, 0, 0, now.Location())
		keep = sinceFilter(quarterStart, now)
	case PeriodYear:
		keep = func(created time.Time) bool { return created.Year() == now.Year() }
	}

	filtered := make([]models.Request, 0, len(requests))
	for i := range requests {
		if keep(requests[i].CreatedAt) {
			filtered = append(filtered, requests[i])
		}
	}
	return filtered
}

func sinceFilter(start, now time.Time) func(time.Time) bool {
	return func(created time.Time) bool {
		return !created.Before(start) && !created.After(now)
	}
}

// startOfWeek is midnight of the Monday of now's week.
func startOfWeek(now time.Time) time.Time {
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week that started the previous Monday
	}
	day := now.AddDate(0, 0, -(weekday - 1))
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location())
}
