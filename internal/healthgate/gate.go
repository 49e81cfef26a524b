package healthgate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/yz4230/shipd/internal/entity"
	"resty.dev/v3"
)

// Gate polls a deployed service until it reports healthy or the
// timeout elapses. Unreachable and unhealthy gate identically; the
// report keeps them apart for diagnostics.
type Gate interface {
	WaitHealthy(ctx context.Context, target string) (Report, error)
}

type Config struct {
	Timeout      time.Duration
	Interval     time.Duration
	ProbeTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timeout:      2 * time.Minute,
		Interval:     5 * time.Second,
		ProbeTimeout: 3 * time.Second,
	}
}

// Report collects the probe results of one gating attempt.
type Report struct {
	Results []entity.HealthCheckResult
}

func (r Report) Counts() (healthy, unhealthy, unreachable int) {
	for _, res := range r.Results {
		switch res.Outcome {
		case entity.HealthOutcomeHealthy:
			healthy++
		case entity.HealthOutcomeUnhealthy:
			unhealthy++
		case entity.HealthOutcomeUnreachable:
			unreachable++
		}
	}
	return
}

type httpGate struct {
	client *resty.Client
	cfg    Config
}

func New(cfg Config) Gate {
	client := resty.New().
		SetTimeout(cfg.ProbeTimeout).
		SetHeader("User-Agent", "shipd-healthgate")
	return &httpGate{client: client, cfg: cfg}
}

// WaitHealthy probes target at a fixed interval, terminating on the
// first healthy result. Termination is bounded by Timeout plus one
// interval.
func (g *httpGate) WaitHealthy(ctx context.Context, target string) (Report, error) {
	log := zerolog.Ctx(ctx)

	var report Report
	timeout := time.After(g.cfg.Timeout)
	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()

	for {
		res := g.probe(ctx, target)
		report.Results = append(report.Results, res)
		log.Debug().
			Str("target", target).
			Str("outcome", string(res.Outcome)).
			Dur("latency", res.Latency).
			Str("detail", res.Detail).
			Msg("health probe")

		if res.Outcome == entity.HealthOutcomeHealthy {
			return report, nil
		}

		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case <-timeout:
			healthy, unhealthy, unreachable := report.Counts()
			log.Warn().
				Int("healthy", healthy).
				Int("unhealthy", unhealthy).
				Int("unreachable", unreachable).
				Msg("health gate expired")
			return report, fmt.Errorf("%w: %s after %s", entity.ErrHealthTimeout, target, g.cfg.Timeout)
		case <-ticker.C:
		}
	}
}

func (g *httpGate) probe(ctx context.Context, target string) entity.HealthCheckResult {
	start := time.Now()
	resp, err := g.client.R().SetContext(ctx).Get(target)
	res := entity.HealthCheckResult{
		Timestamp: start,
		Latency:   time.Since(start),
	}
	switch {
	case err != nil:
		res.Outcome = entity.HealthOutcomeUnreachable
		res.Detail = err.Error()
	case resp.IsSuccess():
		res.Outcome = entity.HealthOutcomeHealthy
	default:
		res.Outcome = entity.HealthOutcomeUnhealthy
		res.Detail = resp.Status()
	}
	return res
}
