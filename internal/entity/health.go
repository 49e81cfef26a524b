package entity

import "time"

type HealthOutcome string

const (
	HealthOutcomeHealthy     HealthOutcome = "healthy"
	HealthOutcomeUnhealthy   HealthOutcome = "unhealthy"
	HealthOutcomeUnreachable HealthOutcome = "unreachable"
)

// HealthCheckResult is one probe observation. Results live only for
// the duration of a release attempt; they are never persisted.
type HealthCheckResult struct {
	Timestamp time.Time
	Outcome   HealthOutcome
	Latency   time.Duration
	Detail    string
}
