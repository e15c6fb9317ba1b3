package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/credlock/credlock/internal/config"
)

type AppMetrics struct {
	authRegistrationCounter     metric.Int64Counter
	authLoginCounter            metric.Int64Counter
	authLogoutCounter           metric.Int64Counter
	webauthnCeremonyCounter     metric.Int64Counter
	authReqDuration             metric.Float64Histogram
	rateLimitDecisionCounter    metric.Int64Counter
	middlewareValidationCounter metric.Int64Counter
	healthCheckResultCounter    metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "auth.request.duration"},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
				},
			},
		)),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("credlock")
	registrationCounter, err := meter.Int64Counter("auth.registration.attempts")
	if err != nil {
		return nil, err
	}
	loginCounter, err := meter.Int64Counter("auth.login.attempts")
	if err != nil {
		return nil, err
	}
	logoutCounter, err := meter.Int64Counter("auth.logout.attempts")
	if err != nil {
		return nil, err
	}
	ceremonyCounter, err := meter.Int64Counter("webauthn.ceremony.events")
	if err != nil {
		return nil, err
	}
	authReqDuration, err := meter.Float64Histogram("auth.request.duration", metric.WithUnit("s"), metric.WithDescription("Duration of auth endpoint requests in seconds"))
	if err != nil {
		return nil, err
	}
	rateLimitDecisionCounter, err := meter.Int64Counter("http.rate_limit.decisions")
	if err != nil {
		return nil, err
	}
	middlewareValidationCounter, err := meter.Int64Counter("http.middleware.validation.events")
	if err != nil {
		return nil, err
	}
	healthCheckResultCounter, err := meter.Int64Counter("health.check.results")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		authRegistrationCounter:     registrationCounter,
		authLoginCounter:            loginCounter,
		authLogoutCounter:           logoutCounter,
		webauthnCeremonyCounter:     ceremonyCounter,
		authReqDuration:             authReqDuration,
		rateLimitDecisionCounter:    rateLimitDecisionCounter,
		middlewareValidationCounter: middlewareValidationCounter,
		healthCheckResultCounter:    healthCheckResultCounter,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func RecordAuthRegistration(ctx context.Context, status string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.authRegistrationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordAuthLogin counts login attempts per method ("password" or
// "webauthn") and status.
func RecordAuthLogin(ctx context.Context, method, status string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.authLoginCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("status", status),
		),
	)
}

func RecordAuthLogout(ctx context.Context) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.authLogoutCounter.Add(ctx, 1)
}

// RecordWebAuthnCeremony counts ceremony lifecycle events: ceremony is
// "registration" or "authentication", outcome one of options_issued,
// options_rejected, success, failure.
func RecordWebAuthnCeremony(ctx context.Context, ceremony, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.webauthnCeremonyCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("ceremony", ceremony),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordAuthRequestDuration(ctx context.Context, endpoint, status string, duration time.Duration) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.authReqDuration.Record(
		ctx,
		duration.Seconds(),
		metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("status", status),
		),
	)
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.rateLimitDecisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	))
}

func RecordMiddlewareValidationEvent(ctx context.Context, layer, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.middlewareValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("layer", layer),
		attribute.String("outcome", outcome),
	))
}

func RecordHealthCheck(ctx context.Context, check string, healthy bool) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	outcome := "healthy"
	if !healthy {
		outcome = "unhealthy"
	}
	m.healthCheckResultCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check", check),
		attribute.String("outcome", outcome),
	))
}
