package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	WebhookDeliveries   metric.Int64Counter
	CommentOutcomes     metric.Int64Counter
	GenerationDuration  metric.Float64Histogram
	GenerationFallbacks metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
	CredentialRefreshes metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("social-autoreply-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	webhookDeliveries, err := meter.Int64Counter(
		"webhook.deliveries.total",
		metric.WithDescription("Webhook notification deliveries by result"),
	)
	if err != nil {
		return nil, err
	}

	commentOutcomes, err := meter.Int64Counter(
		"autoreply.comments.total",
		metric.WithDescription("Comment events by terminal state"),
	)
	if err != nil {
		return nil, err
	}

	generationDuration, err := meter.Float64Histogram(
		"autoreply.generation.duration",
		metric.WithDescription("Reply generation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	generationFallbacks, err := meter.Int64Counter(
		"autoreply.generation.fallbacks",
		metric.WithDescription("Replies that used the fixed fallback text"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	credentialRefreshes, err := meter.Int64Counter(
		"instagram.credential.refreshes",
		metric.WithDescription("Access token refresh attempts"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		WebhookDeliveries:   webhookDeliveries,
		CommentOutcomes:     commentOutcomes,
		GenerationDuration:  generationDuration,
		GenerationFallbacks: generationFallbacks,
		CircuitBreakerState: circuitBreakerState,
		CredentialRefreshes: credentialRefreshes,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordDelivery(result string) {
	if m == nil {
		return
	}
	m.WebhookDeliveries.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("webhook.result", result)))
}

// RecordCommentOutcome counts one comment reaching a terminal state.
func (m *Metrics) RecordCommentOutcome(outcome string) {
	if m == nil {
		return
	}
	m.CommentOutcomes.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("autoreply.outcome", outcome)))
}

func (m *Metrics) RecordGeneration(model string, duration float64, fallback bool) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("generation.model", model),
		attribute.Bool("generation.fallback", fallback),
	}
	m.GenerationDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
	if fallback {
		m.GenerationFallbacks.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	}
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordCredentialRefresh(success bool) {
	if m == nil {
		return
	}
	m.CredentialRefreshes.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Bool("refresh.success", success)))
}
