package metrics

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "minimarket-auth"

// Outcome labels for the register and login counters.
const (
	OutcomeSuccess     = "success"
	OutcomeResurrected = "resurrected"
)

// AppMetrics holds the application's metric instruments.
// All methods are safe on a nil receiver so tests can pass nil.
type AppMetrics struct {
	RegisterTotal            metric.Int64Counter
	LoginTotal               metric.Int64Counter
	GhostsResurrectedTotal   metric.Int64Counter
	ProfileSyncFailuresTotal metric.Int64Counter
	FlowDurationSeconds      metric.Float64Histogram
	DbQueryDurationSeconds   metric.Float64Histogram
	DbQueryErrorsTotal       metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// NewAppMetrics creates every instrument on the given meter.
func NewAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	var err error
	m := &AppMetrics{}

	if m.RegisterTotal, err = meter.Int64Counter(
		"auth_register_total",
		metric.WithDescription("Total number of completed register requests by outcome"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("create auth_register_total: %w", err)
	}

	if m.LoginTotal, err = meter.Int64Counter(
		"auth_login_total",
		metric.WithDescription("Total number of completed login requests by outcome"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("create auth_login_total: %w", err)
	}

	if m.GhostsResurrectedTotal, err = meter.Int64Counter(
		"auth_ghosts_resurrected_total",
		metric.WithDescription("Identities without a profile that were reclaimed during registration"),
		metric.WithUnit("{identity}"),
	); err != nil {
		return nil, fmt.Errorf("create auth_ghosts_resurrected_total: %w", err)
	}

	if m.ProfileSyncFailuresTotal, err = meter.Int64Counter(
		"auth_profile_sync_failures_total",
		metric.WithDescription("Profile writes that failed after the identity was created"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, fmt.Errorf("create auth_profile_sync_failures_total: %w", err)
	}

	if m.FlowDurationSeconds, err = meter.Float64Histogram(
		"auth_flow_duration_seconds",
		metric.WithDescription("Duration of register and login flows in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create auth_flow_duration_seconds: %w", err)
	}

	if m.DbQueryDurationSeconds, err = meter.Float64Histogram(
		"db_query_duration_seconds",
		metric.WithDescription("Duration of database queries in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create db_query_duration_seconds: %w", err)
	}

	if m.DbQueryErrorsTotal, err = meter.Int64Counter(
		"db_query_errors_total",
		metric.WithDescription("Total number of database query errors"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, fmt.Errorf("create db_query_errors_total: %w", err)
	}

	return m, nil
}

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		m, err := NewAppMetrics(otel.GetMeterProvider().Meter(meterName))
		if err != nil {
			log.Fatalf("Metrics: %v", err)
		}
		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance, or nil when
// InitAppMetrics was never called.
func Get() *AppMetrics {
	return appMetrics
}

func (m *AppMetrics) RecordRegister(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RegisterTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.FlowDurationSeconds.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("flow", "register")))
}

func (m *AppMetrics) RecordLogin(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.LoginTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.FlowDurationSeconds.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("flow", "login")))
}

func (m *AppMetrics) RecordGhostResurrected(ctx context.Context) {
	if m == nil {
		return
	}
	m.GhostsResurrectedTotal.Add(ctx, 1)
}

func (m *AppMetrics) RecordProfileSyncFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.ProfileSyncFailuresTotal.Add(ctx, 1)
}

// RecordDBQuery observes one query against table with the given operation.
func (m *AppMetrics) RecordDBQuery(ctx context.Context, table, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("db.sql.table", table), attribute.String("db.operation", operation))
	m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		m.DbQueryErrorsTotal.Add(ctx, 1, attrs)
	}
}
