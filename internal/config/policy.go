package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so policy files can say "5m" or "2s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// PhaseSpec is one fractional rollout step with its dwell time: how long to
// let traffic soak at that fraction before judging quality.
type PhaseSpec struct {
	Fraction float64  `yaml:"fraction"`
	Dwell    Duration `yaml:"dwell"`
}

// ThresholdMode says how a threshold limit is compared: as a relative
// change against baseline, or as an absolute delta.
type ThresholdMode string

const (
	ThresholdRelative ThresholdMode = "relative"
	ThresholdAbsolute ThresholdMode = "absolute"
)

// ThresholdSpec is the degradation rule for one metric.
type ThresholdSpec struct {
	Metric string        `yaml:"metric"`
	Mode   ThresholdMode `yaml:"mode"`
	Limit  float64       `yaml:"limit"`
}

// RetrySpec bounds retries for agent RPCs during rollout execution.
type RetrySpec struct {
	Attempts int      `yaml:"attempts"`
	Backoff  Duration `yaml:"backoff"`
}

// RolloutPolicy is the operator-tunable rollout and quality policy. The
// source material leaves the degradation rule underspecified (relative vs
// absolute, per-metric vs composite), so it is a per-metric table here
// rather than a hardcoded constant.
type RolloutPolicy struct {
	Phases         []PhaseSpec     `yaml:"phases"`
	BaselineWindow Duration        `yaml:"baseline_window"`
	Thresholds     []ThresholdSpec `yaml:"thresholds"`
	Retry          RetrySpec       `yaml:"retry"`
}

// DefaultRolloutPolicy returns the compiled-in policy: 10/50/100 phases
// with proportional dwell, 10% relative degradation limits, and a 5
// percentage point error-rate ceiling.
func DefaultRolloutPolicy() RolloutPolicy {
	return RolloutPolicy{
		Phases: []PhaseSpec{
			{Fraction: 0.10, Dwell: Duration(5 * time.Minute)},
			{Fraction: 0.50, Dwell: Duration(10 * time.Minute)},
			{Fraction: 1.00, Dwell: Duration(2 * time.Minute)},
		},
		BaselineWindow: Duration(10 * time.Minute),
		Thresholds: []ThresholdSpec{
			{Metric: "latency_ms", Mode: ThresholdRelative, Limit: 0.10},
			{Metric: "error_rate", Mode: ThresholdAbsolute, Limit: 0.05},
			{Metric: "quality_score", Mode: ThresholdRelative, Limit: 0.10},
		},
		Retry: RetrySpec{Attempts: 3, Backoff: Duration(2 * time.Second)},
	}
}

// LoadRolloutPolicy reads the YAML policy at path, falling back to the
// defaults when the file does not exist. A present-but-invalid file is an
// error; silently running with defaults would mask operator mistakes.
func LoadRolloutPolicy(path string) (RolloutPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultRolloutPolicy(), nil
		}
		return RolloutPolicy{}, fmt.Errorf("failed to read rollout policy %s: %w", path, err)
	}

	policy := DefaultRolloutPolicy()
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return RolloutPolicy{}, fmt.Errorf("failed to parse rollout policy %s: %w", path, err)
	}

	if err := policy.Validate(); err != nil {
		return RolloutPolicy{}, fmt.Errorf("invalid rollout policy %s: %w", path, err)
	}
	return policy, nil
}

// Validate checks phase fractions are ascending in (0,1] and end at full
// traffic, and that thresholds and retry bounds are sane.
func (p RolloutPolicy) Validate() error {
	if len(p.Phases) == 0 {
		return fmt.Errorf("at least one phase is required")
	}
	prev := 0.0
	for i, ph := range p.Phases {
		if ph.Fraction <= 0 || ph.Fraction > 1 {
			return fmt.Errorf("phase %d: fraction %v outside (0,1]", i, ph.Fraction)
		}
		if ph.Fraction <= prev {
			return fmt.Errorf("phase %d: fractions must be strictly ascending", i)
		}
		if ph.Dwell <= 0 {
			return fmt.Errorf("phase %d: dwell must be positive", i)
		}
		prev = ph.Fraction
	}
	if p.Phases[len(p.Phases)-1].Fraction != 1.0 {
		return fmt.Errorf("final phase must reach full traffic")
	}
	for i, th := range p.Thresholds {
		if th.Metric == "" {
			return fmt.Errorf("threshold %d: metric is required", i)
		}
		if th.Mode != ThresholdRelative && th.Mode != ThresholdAbsolute {
			return fmt.Errorf("threshold %d: unknown mode %q", i, th.Mode)
		}
		if th.Limit <= 0 {
			return fmt.Errorf("threshold %d: limit must be positive", i)
		}
	}
	if p.Retry.Attempts <= 0 {
		return fmt.Errorf("retry attempts must be positive")
	}
	if p.Retry.Backoff <= 0 {
		return fmt.Errorf("retry backoff must be positive")
	}
	return nil
}
