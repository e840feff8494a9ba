// Package metricsrc provides clients for the external metrics store the
// quality monitor reads from.
package metricsrc

import (
	"fmt"
	"time"

	"github.com/strataops/vantage/internal/domain"
)

// Provider constants
const (
	ProviderHTTP = "http"
	ProviderMock = "mock"
)

// NewSource creates a metrics source based on the provider name.
// Returns an error if the provider is unknown or the base URL is empty
// (except for mock).
func NewSource(provider, baseURL string, timeout time.Duration) (domain.MetricsSource, error) {
	switch provider {
	case ProviderHTTP:
		if baseURL == "" {
			return nil, fmt.Errorf("METRICS_BASE_URL is required for the http metrics provider")
		}
		return NewHTTPSource(baseURL, timeout), nil

	case ProviderMock:
		return NewMockSource(), nil

	default:
		return nil, fmt.Errorf("unknown metrics provider: %s (valid options: http, mock)", provider)
	}
}
