package metricsrc

import (
	"context"
	"sync"
	"time"

	"github.com/strataops/vantage/internal/domain"
)

// MockSource is a configurable metrics source for testing and local
// development. Series are keyed by resource and metric; queries return
// the points inside the requested range.
type MockSource struct {
	mu     sync.Mutex
	series map[string]map[string][]domain.MetricPoint
	err    error
}

func NewMockSource() *MockSource {
	return &MockSource{series: make(map[string]map[string][]domain.MetricPoint)}
}

// Set replaces the series for one (resource, metric) pair.
func (s *MockSource) Set(resourceID, metric string, points []domain.MetricPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.series[resourceID] == nil {
		s.series[resourceID] = make(map[string][]domain.MetricPoint)
	}
	s.series[resourceID][metric] = points
}

// SetConstant fills the series with a single reading stamped now, which
// makes any trailing-window query return that value.
func (s *MockSource) SetConstant(resourceID, metric string, value float64) {
	s.Set(resourceID, metric, []domain.MetricPoint{{Timestamp: time.Now(), Value: value}})
}

// Fail makes every subsequent query return err.
func (s *MockSource) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MockSource) Query(_ context.Context, resourceID, metric string, from, to time.Time) ([]domain.MetricPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.MetricPoint
	for _, p := range s.series[resourceID][metric] {
		if !p.Timestamp.Before(from) && !p.Timestamp.After(to) {
			out = append(out, p)
		}
	}
	return out, nil
}
