package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by VANTAGE_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("VANTAGE_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// OperatorAPIKey is the static key the operator portal authenticates with.
func OperatorAPIKey() string {
	return os.Getenv("OPERATOR_API_KEY")
}

// HeartbeatInterval is H: how often agents are expected to heartbeat.
// Defaults to 30s.
func HeartbeatInterval() time.Duration {
	return durationEnv("HEARTBEAT_INTERVAL", 30*time.Second)
}

// MissedThreshold is M: how long an agent may stay silent before it is
// considered unreachable. Defaults to 1.5x the heartbeat interval.
func MissedThreshold() time.Duration {
	return durationEnv("MISSED_THRESHOLD", HeartbeatInterval()*3/2)
}

// MonitorInterval is the health monitor tick. Defaults to H/2 so a silent
// agent is marked unreachable within one tick of crossing the threshold.
func MonitorInterval() time.Duration {
	return durationEnv("MONITOR_INTERVAL", HeartbeatInterval()/2)
}

// EvictAfter is how long a silent agent stays visible in the registry
// before it is evicted from listings. Defaults to 2x the missed threshold.
// History is retained in the database either way.
func EvictAfter() time.Duration {
	return durationEnv("EVICT_AFTER", MissedThreshold()*2)
}

// CoordinationWindow bounds how long a trigger waits for agent proposals.
// Defaults to 30s.
func CoordinationWindow() time.Duration {
	return durationEnv("COORDINATION_WINDOW", 30*time.Second)
}

// AgentRPCTimeout is the per-call timeout for agent Execute/Rollback and
// metrics-store reads. Defaults to 10s.
func AgentRPCTimeout() time.Duration {
	return durationEnv("AGENT_RPC_TIMEOUT", 10*time.Second)
}

// LivenessBackend selects the heartbeat tracker.
// Valid values: memory, redis. Defaults to "memory".
func LivenessBackend() string {
	b := os.Getenv("LIVENESS_BACKEND")
	if b == "" {
		return "memory"
	}
	return b
}

func RedisAddr() string {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return "localhost:6379"
	}
	return addr
}

// MetricsProvider selects the metrics-store client.
// Valid values: http, mock. Defaults to "http".
func MetricsProvider() string {
	p := os.Getenv("METRICS_PROVIDER")
	if p == "" {
		return "http"
	}
	return p
}

// MetricsBaseURL is the base URL of the external metrics store.
func MetricsBaseURL() string {
	return os.Getenv("METRICS_BASE_URL")
}

// RolloutPolicyPath points at the YAML rollout/quality policy file.
// Defaults to "policy.yaml"; compiled-in defaults apply if it is absent.
func RolloutPolicyPath() string {
	p := os.Getenv("ROLLOUT_POLICY_PATH")
	if p == "" {
		return "policy.yaml"
	}
	return p
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

func durationEnv(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
