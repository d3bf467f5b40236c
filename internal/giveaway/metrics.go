package giveaway

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	active      metric.Int64UpDownCounter
	ticks       metric.Int64Counter
	resolutions metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	active, err := meter.Int64UpDownCounter("giveaway.sessions.active",
		metric.WithDescription("Giveaway sessions currently counting down or resolving."),
	)
	if err != nil {
		return nil, fmt.Errorf("creating active sessions counter: %w", err)
	}

	ticks, err := meter.Int64Counter("giveaway.ticks",
		metric.WithDescription("Countdown ticks processed across all sessions."),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	resolutions, err := meter.Int64Counter("giveaway.resolutions",
		metric.WithDescription("Giveaways resolved, by outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resolutions counter: %w", err)
	}

	return &metrics{active: active, ticks: ticks, resolutions: resolutions}, nil
}
