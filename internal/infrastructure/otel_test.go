package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maizemap/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestOTelInitialization(t *testing.T) {
	var traces bytes.Buffer
	cfg := &OTelConfig{
		ServiceName:    "maizemap-test",
		ServiceVersion: "v0.0.1",
		TraceExporter:  "stdout",
		TraceWriter:    &traces,
		MetricExporter: "prometheus",
		SampleRatio:    1.0,
	}

	providers, err := InitializeOTel(cfg, quietLogger())
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	_, span := providers.Tracer.Start(context.Background(), "seasonal")
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, providers.Shutdown(ctx))

	assert.Contains(t, traces.String(), `"Name": "seasonal"`)
}

func TestOTelConfiguration(t *testing.T) {
	tests := []struct {
		name        string
		config      *OTelConfig
		wantTracing bool
		wantMetrics bool
		wantErr     bool
	}{
		{
			name:        "defaults",
			config:      nil,
			wantMetrics: true,
		},
		{
			name:        "from run config with tracing",
			config:      OTelConfigFrom(config.TelemetryConfig{ServiceName: "maizemap", Tracing: true}, "v1"),
			wantTracing: true,
			wantMetrics: true,
		},
		{
			name:   "everything disabled",
			config: &OTelConfig{ServiceName: "maizemap", TraceExporter: "none", MetricExporter: "none"},
		},
		{
			name:    "unknown trace exporter",
			config:  &OTelConfig{ServiceName: "maizemap", TraceExporter: "otlp"},
			wantErr: true,
		},
		{
			name:    "unknown metric exporter",
			config:  &OTelConfig{ServiceName: "maizemap", MetricExporter: "statsd"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.config != nil && tt.config.TraceExporter == "stdout" {
				tt.config.TraceWriter = io.Discard
			}
			providers, err := InitializeOTel(tt.config, quietLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.wantTracing, providers.TracerProvider != nil)
			assert.Equal(t, tt.wantMetrics, providers.MeterProvider != nil)
			assert.NotNil(t, providers.Tracer)
			assert.NotNil(t, providers.Meter)

			assert.NoError(t, providers.Shutdown(context.Background()))
		})
	}
}

func TestPipelineMetricsExported(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{ServiceName: "maizemap", MetricExporter: "prometheus"}, quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreatePipelineMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	RecordStepMetrics(ctx, metrics, "seasonal", 250*time.Millisecond, nil)
	RecordStepMetrics(ctx, metrics, "grid", time.Millisecond, errors.New("bad boundary"))
	RecordDecomposition(ctx, metrics, 41, 3)
	RecordSurfaceMetrics(ctx, metrics, "idw", 44, 1200, time.Second)
	RecordRunMetrics(ctx, metrics, "run-1", 2*time.Second, nil)

	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	text := string(body)
	assert.Contains(t, text, "markets_decomposed_total")
	assert.Contains(t, text, "markets_insufficient_total")
	assert.Contains(t, text, "cells_interpolated_total")
	assert.Contains(t, text, "pipeline_step_errors_total")
	assert.Contains(t, text, `method="idw"`)
}

func TestRecordHelpersTolerateNilMetrics(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordStepMetrics(ctx, nil, "seasonal", time.Second, nil)
		RecordDecomposition(ctx, nil, 1, 1)
		RecordSurfaceMetrics(ctx, nil, "tps", 1, 1, time.Second)
		RecordRunMetrics(ctx, nil, "run", time.Second, nil)
	})
}

func TestSpanHelpers(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{
		ServiceName:   "maizemap",
		TraceExporter: "stdout",
		TraceWriter:   io.Discard,
		SampleRatio:   1.0,
	}, quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := providers.Tracer.Start(context.Background(), "interpolate")
	defer span.End()

	SetSpanAttributes(ctx, map[string]interface{}{
		"method":  "tps",
		"samples": 44,
		"lambda":  0.5,
		"geo":     false,
		"cells":   int64(1200),
		"other":   time.Second,
	})
	AddSpanEvent(ctx, "surface.ready", map[string]interface{}{"cells": 1200})
	RecordError(ctx, errors.New("singular system"))

	assert.True(t, span.IsRecording())
	assert.NotEmpty(t, TraceIDFromContext(ctx))
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestRuntimeMetricsCollect(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{ServiceName: "maizemap", MetricExporter: "prometheus"}, quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	rm, err := NewRuntimeMetrics(providers.Meter)
	require.NoError(t, err)

	stats := rm.Collect(context.Background())
	assert.Positive(t, stats.Goroutines)
	assert.Positive(t, stats.HeapInUse)
}

func TestMetricsServer(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{ServiceName: "maizemap", MetricExporter: "prometheus"}, quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	srv := NewMetricsServer("127.0.0.1:0", providers.PrometheusHTTP, quietLogger())
	require.NoError(t, srv.Start())
	defer srv.Shutdown(context.Background())

	base := "http://" + srv.Addr()

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health["status"])

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsServerShutdownBeforeStart(t *testing.T) {
	srv := NewMetricsServer("127.0.0.1:0", nil, nil)
	assert.NoError(t, srv.Shutdown(context.Background()))
	assert.Equal(t, "127.0.0.1:0", srv.Addr())
}
