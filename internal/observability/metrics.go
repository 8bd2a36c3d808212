package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/quickserve/pos-device-access/internal/config"
)

type AppMetrics struct {
	repositoryOpCounter     metric.Int64Counter
	sessionEventCounter     metric.Int64Counter
	authzDecisionCounter    metric.Int64Counter
	registrationCounter     metric.Int64Counter
	deviceTransitionCounter metric.Int64Counter
	tokenValidationCounter  metric.Int64Counter
	rateLimitCounter        metric.Int64Counter
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
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("pos-device-access")
	repoCounter, err := meter.Int64Counter("repository.operations")
	if err != nil {
		return nil, err
	}
	sessionCounter, err := meter.Int64Counter("session.events")
	if err != nil {
		return nil, err
	}
	authzCounter, err := meter.Int64Counter("device.authorization.decisions")
	if err != nil {
		return nil, err
	}
	registrationCounter, err := meter.Int64Counter("device.registrations")
	if err != nil {
		return nil, err
	}
	transitionCounter, err := meter.Int64Counter("device.status.transitions")
	if err != nil {
		return nil, err
	}
	tokenCounter, err := meter.Int64Counter("session.token.validations")
	if err != nil {
		return nil, err
	}
	rateLimitCounter, err := meter.Int64Counter("http.rate_limit.decisions")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		repositoryOpCounter:     repoCounter,
		sessionEventCounter:     sessionCounter,
		authzDecisionCounter:    authzCounter,
		registrationCounter:     registrationCounter,
		deviceTransitionCounter: transitionCounter,
		tokenValidationCounter:  tokenCounter,
		rateLimitCounter:        rateLimitCounter,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.repositoryOpCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordSessionEvent(ctx context.Context, event, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.sessionEventCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("event", event),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordAuthorizationDecision(ctx context.Context, outcome, iface string) {
	m := current()
	if m == nil {
		return
	}
	m.authzDecisionCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("interface", iface),
		),
	)
}

func RecordDeviceRegistration(ctx context.Context, deviceType, status string) {
	m := current()
	if m == nil {
		return
	}
	m.registrationCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("device_type", deviceType),
			attribute.String("status", status),
		),
	)
}

func RecordDeviceTransition(ctx context.Context, action string) {
	m := current()
	if m == nil {
		return
	}
	m.deviceTransitionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

func RecordTokenValidation(ctx context.Context, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.tokenValidationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("outcome", outcome),
		),
	)
}
