// Package kafkatrace propagates distributed trace context across the
// broker boundary using Kafka record headers.
//
// The sampling decision is resolved from environment state once at
// process start and cached for the process lifetime. When tracing is
// off, injection adds no headers and extraction returns the context
// unchanged, so the hot path carries no propagation cost.
package kafkatrace

import (
	"context"
	"os"
	"sync"

	"github.com/Shopify/sarama"
	"go.opentelemetry.io/otel/propagation"
)

var (
	enabledOnce sync.Once
	enabled     bool
)

// Enabled reports whether trace context should cross the broker.
// Follows the standard OTEL_TRACES_SAMPLER environment contract.
func Enabled() bool {
	enabledOnce.Do(func() {
		switch os.Getenv("OTEL_TRACES_SAMPLER") {
		case "always_off", "parentbased_always_off":
			enabled = false
			return
		}
		enabled = os.Getenv("OTEL_TRACES_SAMPLER_ARG") != "0"
	})
	return enabled
}

// Propagator injects and extracts trace context over Kafka headers.
// Any tracing backend is pluggable behind the embedded text-map pair.
type Propagator struct {
	TextMap propagation.TextMapPropagator
	Enable  bool
}

// NewPropagator builds a W3C trace-context propagator with the
// process-wide sampling decision.
func NewPropagator() *Propagator {
	return &Propagator{
		TextMap: propagation.TraceContext{},
		Enable:  Enabled(),
	}
}

// Inject renders the trace context of ctx as Kafka record headers.
// Returns nil when tracing is disabled or no context is set.
func (p *Propagator) Inject(ctx context.Context) []sarama.RecordHeader {
	if !p.Enable {
		return nil
	}
	carrier := make(mapCarrier)
	p.TextMap.Inject(ctx, carrier)
	if len(carrier) == 0 {
		return nil
	}
	headers := make([]sarama.RecordHeader, 0, len(carrier))
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte(k),
			Value: []byte(v),
		})
	}
	return headers
}

// Extract returns a child context carrying the trace context found in
// the message headers.
func (p *Propagator) Extract(ctx context.Context, headers []*sarama.RecordHeader) context.Context {
	if !p.Enable || len(headers) == 0 {
		return ctx
	}
	carrier := make(mapCarrier, len(headers))
	for _, h := range headers {
		if h == nil {
			continue
		}
		carrier[string(h.Key)] = string(h.Value)
	}
	return p.TextMap.Extract(ctx, carrier)
}

// mapCarrier adapts a plain map to the otel text-map carrier.
type mapCarrier map[string]string

func (c mapCarrier) Get(key string) string { return c[key] }

func (c mapCarrier) Set(key, value string) { c[key] = value }

func (c mapCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

var _ propagation.TextMapCarrier = (mapCarrier)(nil)
