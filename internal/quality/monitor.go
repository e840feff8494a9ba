// Package quality judges whether a resource degraded between two
// snapshots of its metrics. Which direction is "worse" is metric-specific
// and encoded in a signed-comparison table rather than ad hoc
// conditionals; the thresholds come from the operator's rollout policy.
package quality

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/strataops/vantage/internal/config"
	"github.com/strataops/vantage/internal/domain"
)

// Direction is the sign that turns a metric delta into "how much worse".
// Multiplying (observed - baseline) by the direction yields a positive
// number exactly when the metric degraded.
type Direction int8

const (
	HigherIsWorse Direction = 1
	LowerIsWorse  Direction = -1
)

// directions is the signed-comparison table for the known quality signals.
var directions = map[string]Direction{
	"latency_ms":        HigherIsWorse,
	"latency_p95_ms":    HigherIsWorse,
	"error_rate":        HigherIsWorse,
	"queue_depth":       HigherIsWorse,
	"cost_per_hour":     HigherIsWorse,
	"quality_score":     LowerIsWorse,
	"throughput_rps":    LowerIsWorse,
	"tokens_per_second": LowerIsWorse,
}

// DirectionOf returns the degradation direction for a metric. Unknown
// metrics default to higher-is-worse, the common case for raw signals.
func DirectionOf(metric string) Direction {
	if d, ok := directions[metric]; ok {
		return d
	}
	return HigherIsWorse
}

// Breach describes one threshold the observed snapshot violated.
type Breach struct {
	Metric   string               `json:"metric"`
	Baseline float64              `json:"baseline"`
	Observed float64              `json:"observed"`
	Worse    float64              `json:"worse"` // signed degradation, positive = worse
	Limit    float64              `json:"limit"`
	Mode     config.ThresholdMode `json:"mode"`
}

// Monitor aggregates readings from the external metrics store. It keeps
// no state beyond the request at hand.
type Monitor struct {
	src        domain.MetricsSource
	thresholds []config.ThresholdSpec
	window     time.Duration
	logger     *zap.Logger
}

func NewMonitor(src domain.MetricsSource, policy config.RolloutPolicy, logger *zap.Logger) *Monitor {
	return &Monitor{
		src:        src,
		thresholds: policy.Thresholds,
		window:     policy.BaselineWindow.Std(),
		logger:     logger,
	}
}

// Snapshot reads the mean of each policy metric over the trailing window.
// Metrics with no readings are omitted rather than reported as zero.
func (m *Monitor) Snapshot(ctx context.Context, resourceID string) (map[string]float64, error) {
	now := time.Now()
	out := make(map[string]float64, len(m.thresholds))

	for _, th := range m.thresholds {
		points, err := m.src.Query(ctx, resourceID, th.Metric, now.Add(-m.window), now)
		if err != nil {
			return nil, err
		}
		if len(points) == 0 {
			m.logger.Debug("no readings for metric",
				zap.String("resource_id", resourceID),
				zap.String("metric", th.Metric))
			continue
		}
		sum := 0.0
		for _, p := range points {
			sum += p.Value
		}
		out[th.Metric] = sum / float64(len(points))
	}
	return out, nil
}

// Delta returns observed minus baseline for every metric present in both.
func Delta(baseline, observed map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(observed))
	for metric, o := range observed {
		if b, ok := baseline[metric]; ok {
			out[metric] = o - b
		}
	}
	return out
}

// Judge compares two snapshots against the policy thresholds. The verdict
// fails on the first metric whose signed degradation exceeds its limit;
// all breaches are returned for the audit trail. Metrics missing from
// either snapshot are skipped: absence of data is not degradation.
func (m *Monitor) Judge(baseline, observed map[string]float64) (domain.PhaseVerdict, []Breach) {
	var breaches []Breach

	for _, th := range m.thresholds {
		b, okB := baseline[th.Metric]
		o, okO := observed[th.Metric]
		if !okB || !okO {
			continue
		}

		worse := (o - b) * float64(DirectionOf(th.Metric))
		if worse <= 0 {
			continue
		}

		exceeded := false
		switch th.Mode {
		case config.ThresholdRelative:
			if b == 0 {
				// Degrading from a zero baseline has no finite relative
				// size; any worsening counts.
				exceeded = true
			} else {
				exceeded = worse/math.Abs(b) > th.Limit
			}
		case config.ThresholdAbsolute:
			exceeded = worse > th.Limit
		}

		if exceeded {
			breaches = append(breaches, Breach{
				Metric:   th.Metric,
				Baseline: b,
				Observed: o,
				Worse:    worse,
				Limit:    th.Limit,
				Mode:     th.Mode,
			})
		}
	}

	if len(breaches) > 0 {
		return domain.VerdictFail, breaches
	}
	return domain.VerdictPass, nil
}
