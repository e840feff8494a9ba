package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRolloutPolicy_MissingFileUsesDefaults(t *testing.T) {
	policy, err := LoadRolloutPolicy(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err, "missing file must fall back to defaults")

	require.Len(t, policy.Phases, 3)
	assert.Equal(t, 0.10, policy.Phases[0].Fraction)
	assert.Equal(t, 1.0, policy.Phases[2].Fraction)
	assert.Equal(t, 3, policy.Retry.Attempts)
	assert.Equal(t, 2*time.Second, policy.Retry.Backoff.Std())
}

func TestLoadRolloutPolicy_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	raw := `
phases:
  - fraction: 0.25
    dwell: 1m
  - fraction: 1.0
    dwell: 30s
baseline_window: 5m
thresholds:
  - metric: latency_ms
    mode: relative
    limit: 0.2
retry:
  attempts: 5
  backoff: 1s
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	policy, err := LoadRolloutPolicy(path)
	require.NoError(t, err)

	require.Len(t, policy.Phases, 2)
	assert.Equal(t, time.Minute, policy.Phases[0].Dwell.Std())
	assert.Equal(t, 5*time.Minute, policy.BaselineWindow.Std())
	assert.Equal(t, 5, policy.Retry.Attempts)
}

func TestLoadRolloutPolicy_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"descending fractions": `
phases:
  - {fraction: 0.5, dwell: 1m}
  - {fraction: 0.1, dwell: 1m}
`,
		"missing full traffic": `
phases:
  - {fraction: 0.5, dwell: 1m}
`,
		"bad threshold mode": `
phases:
  - {fraction: 1.0, dwell: 1m}
thresholds:
  - {metric: latency_ms, mode: sideways, limit: 0.1}
`,
		"fraction above one": `
phases:
  - {fraction: 1.5, dwell: 1m}
`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "policy.yaml")
			require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

			_, err := LoadRolloutPolicy(path)
			assert.Error(t, err, "invalid policy must be rejected")
		})
	}
}
