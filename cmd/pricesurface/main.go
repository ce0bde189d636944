// Command pricesurface turns monthly market maize prices into seasonal
// profiles, relative price indices and interpolated price surfaces.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"maizemap/internal/config"
	apperrors "maizemap/internal/errors"
	"maizemap/internal/exporter"
	"maizemap/internal/grid"
	"maizemap/internal/infrastructure"
	"maizemap/internal/ingest"
	"maizemap/internal/operations"
	"maizemap/internal/validation"
	"maizemap/pkg/contracts"
)

// Exit codes
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitCanceled = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// options are the command line flags. Set flags override the configuration.
type options struct {
	configPath    string
	input         string
	boundary      string
	covariates    string
	out           string
	anchor        string
	methods       string
	resolution    float64
	seasonal      string
	indexMode     string
	crossValidate bool
	workbook      bool
	sheet         string
	metricsAddr   string
	showVersion   bool
	set           map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("pricesurface", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "path to the YAML configuration file")
	fs.StringVar(&o.input, "input", "", "price table (.csv or .xlsx)")
	fs.StringVar(&o.boundary, "boundary", "", "country boundary (GeoJSON)")
	fs.StringVar(&o.covariates, "covariates", "", "comma separated ESRI ASCII covariate grids")
	fs.StringVar(&o.out, "out", "", "output directory")
	fs.StringVar(&o.anchor, "anchor", "", "market the relative index is anchored to")
	fs.StringVar(&o.methods, "methods", "", "comma separated estimators: tps, idw, rf")
	fs.Float64Var(&o.resolution, "resolution", 0, "grid resolution in degrees")
	fs.StringVar(&o.seasonal, "seasonal", "", "seasonal model: additive or multiplicative")
	fs.StringVar(&o.indexMode, "index-mode", "", "relative index: ratio or difference")
	fs.BoolVar(&o.crossValidate, "cross-validate", false, "score every estimator by leave-one-out")
	fs.BoolVar(&o.workbook, "workbook", true, "also write an XLSX workbook of the tables")
	fs.StringVar(&o.sheet, "sheet", "", "worksheet of an XLSX price table")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address")
	fs.BoolVar(&o.showVersion, "version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// apply copies set flags over the configuration
func (o *options) apply(cfg *config.Config) {
	if o.set["input"] {
		cfg.Paths.Input = o.input
	}
	if o.set["boundary"] {
		cfg.Paths.Boundary = o.boundary
	}
	if o.set["covariates"] {
		cfg.Paths.Covariates = splitList(o.covariates)
	}
	if o.set["out"] {
		cfg.Paths.OutputDir = o.out
	}
	if o.set["anchor"] {
		cfg.Pipeline.Anchor = o.anchor
	}
	if o.set["methods"] {
		cfg.Interpolation.Methods = splitList(o.methods)
	}
	if o.set["resolution"] {
		cfg.Interpolation.Resolution = o.resolution
	}
	if o.set["seasonal"] {
		cfg.Pipeline.SeasonalMethod = o.seasonal
	}
	if o.set["index-mode"] {
		cfg.Pipeline.IndexMode = o.indexMode
	}
	if o.set["cross-validate"] {
		cfg.Pipeline.CrossValidate = o.crossValidate
	}
	if o.set["metrics-addr"] {
		cfg.Telemetry.MetricsAddr = o.metricsAddr
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if opts.showVersion {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return exitOK
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "pricesurface: %v\n", err)
		return exitUsage
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "pricesurface: %v\n", err)
		return exitUsage
	}
	if cfg.Paths.Input == "" || cfg.Paths.Boundary == "" {
		fmt.Fprintln(stderr, "pricesurface: -input and -boundary are required")
		return exitUsage
	}

	logger, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "pricesurface: %v\n", err)
		return exitFailure
	}
	defer logger.Close()
	slog.SetDefault(logger.Logger)

	if err := execute(ctx, cfg, opts, logger.Logger); err != nil {
		logger.Error("run failed", slog.String("error", err.Error()))
		fmt.Fprintf(stderr, "pricesurface: %v\n", err)
		if apperrors.CodeOf(err) == apperrors.CodeCancelled {
			return exitCanceled
		}
		return exitFailure
	}
	return exitOK
}

func execute(ctx context.Context, cfg *config.Config, opts *options, logger *slog.Logger) error {
	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry, contracts.Version), logger)
	if err != nil {
		return fmt.Errorf("failed to initialise telemetry: %w", err)
	}
	defer shutdown(providers, "telemetry", logger)

	if cfg.Telemetry.MetricsAddr != "" {
		srv := infrastructure.NewMetricsServer(cfg.Telemetry.MetricsAddr, providers.PrometheusHTTP, logger)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer shutdown(srv, "metrics server", logger)
	}

	req, err := buildRequest(cfg, opts, logger)
	if err != nil {
		return err
	}

	tracer, err := operations.NewOperationTracer(providers)
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	opCfg := operations.FromPipelineConfig(cfg.Pipeline)
	manager, err := operations.NewPipelineManager(opCfg, tracer, logger)
	if err != nil {
		return err
	}

	resp, runErr := manager.Execute(ctx, req)
	if resp == nil || resp.Artifacts == nil {
		return runErr
	}
	for _, st := range resp.Summaries() {
		if st.Status != operations.StepStatusCompleted {
			logger.Warn("step did not complete",
				slog.String("step", st.ID),
				slog.String("status", string(st.Status)),
				slog.String("message", st.Message))
		}
	}

	files, err := exporter.NewRunExporter(cfg.Paths.OutputDir, logger).Export(resp.Artifacts, exporter.RunInfo{
		ID:         resp.ID,
		Covariates: layerNames(req.Covariates),
		Workbook:   opts.workbook,
	})
	if err != nil {
		return fmt.Errorf("failed to export results: %w", err)
	}
	logger.Info("results written",
		slog.String("run_id", resp.ID),
		slog.String("status", string(resp.Status)),
		slog.Duration("duration", resp.Duration),
		slog.Int("files", len(files)))
	return runErr
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdown stops s within five seconds and logs a failure
func shutdown(s shutdowner, name string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Warn(name+" shutdown failed", slog.String("error", err.Error()))
	}
}

// buildRequest reads every input named by the configuration
func buildRequest(cfg *config.Config, opts *options, logger *slog.Logger) (operations.Request, error) {
	files := validation.NewFileValidator(logger)
	inputs := []validation.Input{
		{Role: "input", Path: cfg.Paths.Input, Extensions: []string{".csv", ".xlsx", ".xlsm"}},
		{Role: "boundary", Path: cfg.Paths.Boundary, Extensions: []string{".geojson", ".json"}},
	}
	for _, path := range cfg.Paths.Covariates {
		inputs = append(inputs, validation.Input{Role: "covariate", Path: path, Extensions: []string{".asc"}})
	}
	if err := files.ValidateInputs(inputs...); err != nil {
		return operations.Request{}, err
	}
	if err := files.ValidateOutputDirectory(cfg.Paths.OutputDir); err != nil {
		return operations.Request{}, err
	}

	settings, err := operations.SettingsFromConfig(cfg)
	if err != nil {
		return operations.Request{}, err
	}

	reader := ingest.NewReader(ingest.Options{Sentinel: cfg.Pipeline.MissingSentinel, Sheet: opts.sheet}, logger)
	obs, err := reader.ReadFile(cfg.Paths.Input)
	if err != nil {
		return operations.Request{}, err
	}
	boundary, err := ingest.ReadBoundary(cfg.Paths.Boundary)
	if err != nil {
		return operations.Request{}, err
	}

	layers := make([]grid.Layer, 0, len(cfg.Paths.Covariates))
	for _, path := range cfg.Paths.Covariates {
		r, err := ingest.ReadCovariate(path)
		if err != nil {
			return operations.Request{}, err
		}
		layers = append(layers, r)
	}

	return operations.Request{
		Observations: obs,
		Boundary:     boundary,
		Covariates:   layers,
		Settings:     settings,
	}, nil
}

func layerNames(layers []grid.Layer) []string {
	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = l.Name()
	}
	return names
}
