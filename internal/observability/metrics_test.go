package observability

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecordMetricHelpersNoPanicWhenUninitialized(t *testing.T) {
	ctx := context.Background()
	metricsMu.Lock()
	appMetrics = nil
	metricsMu.Unlock()

	// Smoke-call every helper with appMetrics=nil; they should all no-op safely.
	RecordAuthRegistration(ctx, "success")
	RecordAuthLogin(ctx, "password", "success")
	RecordAuthLogout(ctx)
	RecordWebAuthnCeremony(ctx, "registration", "success")
	RecordAuthRequestDuration(ctx, "login", "success", 10*time.Millisecond)
	RecordRateLimitDecision(ctx, "auth", "allowed")
	RecordMiddlewareValidationEvent(ctx, "cors", "allow_origin")
	RecordHealthCheck(ctx, "db", true)
}

func TestRecordMetricHelpersEmitMeasurements(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()

	meter := provider.Meter("credlock-test")
	registration, err := meter.Int64Counter("auth.registration.attempts")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	login, err := meter.Int64Counter("auth.login.attempts")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	logout, err := meter.Int64Counter("auth.logout.attempts")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	ceremony, err := meter.Int64Counter("webauthn.ceremony.events")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	duration, err := meter.Float64Histogram("auth.request.duration")
	if err != nil {
		t.Fatalf("histogram: %v", err)
	}
	rate, err := meter.Int64Counter("http.rate_limit.decisions")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	validation, err := meter.Int64Counter("http.middleware.validation.events")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	healthCounter, err := meter.Int64Counter("health.check.results")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		authRegistrationCounter:     registration,
		authLoginCounter:            login,
		authLogoutCounter:           logout,
		webauthnCeremonyCounter:     ceremony,
		authReqDuration:             duration,
		rateLimitDecisionCounter:    rate,
		middlewareValidationCounter: validation,
		healthCheckResultCounter:    healthCounter,
	}
	metricsMu.Unlock()
	defer func() {
		metricsMu.Lock()
		appMetrics = nil
		metricsMu.Unlock()
	}()

	RecordAuthRegistration(ctx, "success")
	RecordAuthLogin(ctx, "webauthn", "success")
	RecordAuthLogin(ctx, "password", "failure")
	RecordAuthLogout(ctx)
	RecordWebAuthnCeremony(ctx, "authentication", "success")
	RecordAuthRequestDuration(ctx, "login", "success", 25*time.Millisecond)
	RecordRateLimitDecision(ctx, "auth", "rejected")
	RecordMiddlewareValidationEvent(ctx, "body_limit", "rejected_too_large")
	RecordHealthCheck(ctx, "redis", false)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected recorded metrics")
	}

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	for _, want := range []string{
		"auth.registration.attempts",
		"auth.login.attempts",
		"auth.logout.attempts",
		"webauthn.ceremony.events",
		"auth.request.duration",
		"http.rate_limit.decisions",
		"http.middleware.validation.events",
		"health.check.results",
	} {
		if !names[want] {
			t.Fatalf("metric %s not recorded; got %v", want, names)
		}
	}
}
