package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maizemap/internal/config"
	"maizemap/internal/exporter"
)

var cycle = [12]float64{-12, -9, -5, -1, 3, 8, 11, 9, 4, -2, -3, -3}

// writeInputs creates a price table for four markets over three years and a
// rectangular boundary around them.
func writeInputs(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	var b strings.Builder
	b.WriteString("Market,Region,Longitude,Latitude,Year,Month,Maize_Price\n")
	markets := []struct {
		id       string
		lon, lat float64
		level    float64
	}{
		{"Lilongwe", 33.78, -13.96, 1.0},
		{"Blantyre", 35.00, -15.80, 1.2},
		{"Mzuzu", 34.01, -11.46, 0.9},
		{"Zomba", 35.32, -15.38, 1.1},
	}
	for _, m := range markets {
		for i := 0; i < 36; i++ {
			month := time.Month(i%12 + 1)
			price := m.level * (120 + 0.4*float64(i) + cycle[i%12])
			fmt.Fprintf(&b, "%s,South,%g,%g,%d,%s,%g\n", m.id, m.lon, m.lat, 2014+i/12, month, price)
		}
	}
	fmt.Fprintf(&b, "Nkhata Bay,North,-,-,2014,May,-\n")

	input := filepath.Join(dir, "prices.csv")
	require.NoError(t, os.WriteFile(input, []byte(b.String()), 0o644))

	boundary := filepath.Join(dir, "boundary.geojson")
	require.NoError(t, os.WriteFile(boundary, []byte(
		`{"type":"Polygon","coordinates":[[[32.5,-17.2],[36,-17.2],[36,-9.3],[32.5,-9.3],[32.5,-17.2]]]}`), 0o644))
	return input, boundary
}

func TestRunEndToEnd(t *testing.T) {
	t.Setenv("MAIZE_LOGGING_LEVEL", "error")
	input, boundary := writeInputs(t)
	out := filepath.Join(t.TempDir(), "results")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-input", input,
		"-boundary", boundary,
		"-out", out,
		"-anchor", "Lilongwe",
		"-methods", "idw,tps",
		"-resolution", "0.5",
		"-cross-validate",
	}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	for _, name := range []string{
		exporter.ProfilesFile, exporter.IndicesFile, exporter.SamplesFile, exporter.ValidationFile,
		exporter.WorkbookFile, "surface_idw.asc", "surface_tps.asc",
	} {
		assert.FileExists(t, filepath.Join(out, name))
	}
	assert.NoFileExists(t, filepath.Join(out, "surface_rf.asc"))

	data, err := os.ReadFile(filepath.Join(out, exporter.IndicesFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Blantyre,35,-15.8,")
	assert.Contains(t, string(data), "Nkhata Bay,NA,NA,NA,0")
}

func TestRunUsageErrors(t *testing.T) {
	t.Setenv("MAIZE_LOGGING_LEVEL", "error")
	input, boundary := writeInputs(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"unknown flag", []string{"-bogus"}, exitUsage},
		{"missing anchor", []string{"-input", input, "-boundary", boundary}, exitUsage},
		{"missing input", []string{"-anchor", "Lilongwe", "-boundary", boundary}, exitUsage},
		{"unknown method", []string{"-input", input, "-boundary", boundary, "-anchor", "Lilongwe", "-methods", "kriging"}, exitUsage},
		{"help", []string{"-h"}, exitOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.want, run(context.Background(), tt.args, &stdout, &stderr))
		})
	}
}

func TestRunPipelineFailure(t *testing.T) {
	t.Setenv("MAIZE_LOGGING_LEVEL", "error")
	input, boundary := writeInputs(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-input", input, "-boundary", boundary, "-out", out,
		"-anchor", "Nowhere", "-methods", "idw",
	}, &stdout, &stderr)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr.String(), "ANCHOR_NOT_FOUND")
	// steps before the failure still export their tables
	assert.FileExists(t, filepath.Join(out, exporter.ProfilesFile))
	assert.NoFileExists(t, filepath.Join(out, exporter.IndicesFile))
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitOK, run(context.Background(), []string{"-version"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "pricesurface v")
}

func TestApplyOnlySetFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-anchor", "Mzuzu", "-covariates", "a.asc, b.asc,"}, &bytes.Buffer{})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Interpolation.Resolution = 0.1
	opts.apply(cfg)
	assert.Equal(t, "Mzuzu", cfg.Pipeline.Anchor)
	assert.Equal(t, []string{"a.asc", "b.asc"}, cfg.Paths.Covariates)
	assert.Equal(t, 0.1, cfg.Interpolation.Resolution, "unset flag keeps configured value")
	assert.Equal(t, []string{"tps", "idw", "rf"}, cfg.Interpolation.Methods)
}

func TestRunRejectsMissingInputs(t *testing.T) {
	t.Setenv("MAIZE_LOGGING_LEVEL", "error")
	input, _ := writeInputs(t)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-input", input,
		"-boundary", filepath.Join(t.TempDir(), "absent.geojson"),
		"-covariates", input,
		"-out", t.TempDir(),
		"-anchor", "Lilongwe",
	}, &stdout, &stderr)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr.String(), "boundary:")
	assert.Contains(t, stderr.String(), "covariate:")
}

type failingShutdown struct{ err error }

func (f failingShutdown) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("shutdown without deadline")
	}
	return f.err
}

func TestShutdownLogsFailure(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	shutdown(failingShutdown{}, "metrics server", logger)
	assert.Empty(t, logs.String())

	shutdown(failingShutdown{err: errors.New("listener busy")}, "metrics server", logger)
	assert.Contains(t, logs.String(), `"msg":"metrics server shutdown failed"`)
	assert.Contains(t, logs.String(), `"error":"listener busy"`)
}
