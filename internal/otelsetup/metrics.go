package otelsetup

import "go.opentelemetry.io/otel/metric"

// Metrics holds all Brewva metric instruments.
type Metrics struct {
	IngressDuration    metric.Float64Histogram
	IngressRejects     metric.Int64Counter
	DispatchDuration    metric.Float64Histogram
	DispatchTotal      metric.Int64Counter
	DiscussRoundsTotal metric.Int64Counter
	RuntimePoolSize    metric.Int64UpDownCounter
	RuntimeEvictions   metric.Int64Counter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.IngressDuration, err = meter.Float64Histogram("brewva.ingress.duration",
		metric.WithDescription("Webhook ingress handling duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.IngressRejects, err = meter.Int64Counter("brewva.ingress.rejects",
		metric.WithDescription("Webhook requests rejected by auth or malformed-body checks"),
	)
	if err != nil {
		return nil, err
	}

	m.DispatchDuration, err = meter.Float64Histogram("brewva.coordinator.dispatch.duration",
		metric.WithDescription("Coordinator dispatch operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.DispatchTotal, err = meter.Int64Counter("brewva.coordinator.dispatch.total",
		metric.WithDescription("Total coordinator dispatch operations (fan_out, discuss, a2a_send, a2a_broadcast)"),
	)
	if err != nil {
		return nil, err
	}

	m.DiscussRoundsTotal, err = meter.Int64Counter("brewva.coordinator.discuss.rounds",
		metric.WithDescription("Total discussion rounds run across all discuss() calls"),
	)
	if err != nil {
		return nil, err
	}

	m.RuntimePoolSize, err = meter.Int64UpDownCounter("brewva.runtimepool.size",
		metric.WithDescription("Current number of live agent runtimes held by the pool"),
	)
	if err != nil {
		return nil, err
	}

	m.RuntimeEvictions, err = meter.Int64Counter("brewva.runtimepool.evictions",
		metric.WithDescription("Total runtime evictions, by reason (lru_eviction, idle_ttl)"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
