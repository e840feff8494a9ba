package metricsrc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/strataops/vantage/internal/domain"
)

// HTTPSource queries a metrics store over its HTTP range-query API:
// GET {base}/v1/query?resource=...&metric=...&from=...&to=... returning
// {"points": [{"timestamp": ..., "value": ...}]}.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type queryResponse struct {
	Points []domain.MetricPoint `json:"points"`
	Error  string               `json:"error,omitempty"`
}

func (s *HTTPSource) Query(ctx context.Context, resourceID, metric string, from, to time.Time) ([]domain.MetricPoint, error) {
	op := fmt.Sprintf("metrics query %s/%s", resourceID, metric)

	q := url.Values{}
	q.Set("resource", resourceID)
	q.Set("metric", metric)
	q.Set("from", from.UTC().Format(time.RFC3339Nano))
	q.Set("to", to.UTC().Format(time.RFC3339Nano))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/query?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create query request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, domain.Transient(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.Transient(op, err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.Transient(op, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(body))
	}

	var result queryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal query response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("%s: %s", op, result.Error)
	}
	return result.Points, nil
}
