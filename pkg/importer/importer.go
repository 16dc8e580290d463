package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/packdock/packdock/pkg/catalog"
	"github.com/packdock/packdock/pkg/discovery"
	"github.com/packdock/packdock/pkg/manifest"
	"github.com/packdock/packdock/pkg/provision"
	"github.com/packdock/packdock/pkg/telemetry"
)

// StaleScope controls which actions are considered for disabling when an
// import requests that vanished actions be disabled.
type StaleScope string

const (
	// StaleScopePackage only disables vanished actions of the package
	// being imported. This is the default.
	StaleScopePackage StaleScope = "package"

	// StaleScopeAllPackages snapshots actions across all packages and
	// disables every one not seen during this import. Only meaningful
	// for bulk re-imports that are known to cover the whole catalog.
	StaleScopeAllPackages StaleScope = "all"
)

// Config holds importer-level configuration.
type Config struct {
	// Frozen requires every package to ship a manifest; unmanaged
	// imports become validation errors. Used in locked deployments.
	Frozen bool

	// StaleScope selects the snapshot scope for disable-not-imported.
	// Defaults to StaleScopePackage.
	StaleScope StaleScope

	// DefaultInterpreter hosts the discovery tool for unmanaged
	// packages. Defaults to "python" resolved from PATH.
	DefaultInterpreter string

	// ProbeArgs, ListArgs and SkipLintArg override the discovery-tool
	// invocation. Zero values use the tool defaults.
	ProbeArgs   []string
	ListArgs    []string
	SkipLintArg string
}

// Options are the per-call parameters of an import.
type Options struct {
	// DataDir is the data root; package directories under it are stored
	// as relative paths.
	DataDir string `validate:"required"`

	// PackageDir is the candidate action-package directory.
	PackageDir string `validate:"required"`

	// Name overrides the display name; defaults to the directory name.
	Name string

	// DisableNotImported disables previously known actions that are no
	// longer discovered, instead of leaving them untouched.
	DisableNotImported bool

	// SkipLint skips the tool's static-lint checks during discovery.
	SkipLint bool
}

// Importer runs the import pipeline against a catalog store.
type Importer struct {
	store       catalog.Store
	provisioner provision.Provisioner
	cfg         Config
	logger      zerolog.Logger
	metrics     *telemetry.Metrics
	tracer      *telemetry.Tracer
	validate    *validator.Validate
}

// New creates an Importer.
func New(store catalog.Store, provisioner provision.Provisioner, cfg Config, logger zerolog.Logger) *Importer {
	if cfg.StaleScope == "" {
		cfg.StaleScope = StaleScopePackage
	}
	if cfg.DefaultInterpreter == "" {
		cfg.DefaultInterpreter = "python"
	}
	return &Importer{
		store:       store,
		provisioner: provisioner,
		cfg:         cfg,
		logger:      logger.With().Str("component", "importer").Logger(),
		validate:    validator.New(),
	}
}

// WithTelemetry attaches metrics and tracing. Both are optional.
func (imp *Importer) WithTelemetry(metrics *telemetry.Metrics, tracer *telemetry.Tracer) *Importer {
	imp.metrics = metrics
	imp.tracer = tracer
	return imp
}

// Import discovers the actions of the package at opts.PackageDir and
// reconciles them into the catalog as one atomic transaction.
//
// Import does not serialize concurrent calls for the same package name;
// callers must not issue them concurrently, or must accept the storage
// isolation level as the tie-break. Subprocesses run without a deadline
// unless ctx carries one.
func (imp *Importer) Import(ctx context.Context, opts Options) (err error) {
	start := time.Now()
	imp.metrics.RecordImportStarted()

	var span trace.Span
	if imp.tracer != nil {
		ctx, span = imp.tracer.Start(ctx, "importer.Import",
			trace.WithAttributes(
				attribute.String("package.dir", opts.PackageDir),
				attribute.Bool("import.disable_not_imported", opts.DisableNotImported),
				attribute.Bool("import.skip_lint", opts.SkipLint),
			))
		defer func() { telemetry.EndSpan(span, err) }()
	}

	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
			imp.metrics.RecordError(string(KindOf(err)))
		}
		imp.metrics.RecordImportCompleted(status, time.Since(start))
	}()

	if verr := imp.validate.Struct(opts); verr != nil {
		return newImportError(ErrorKindStructural, "invalid import options", verr)
	}

	dataDir, err := filepath.Abs(opts.DataDir)
	if err != nil {
		return newImportError(ErrorKindStructural, "unable to resolve data dir", err)
	}
	importPath, err := filepath.Abs(opts.PackageDir)
	if err != nil {
		return newImportError(ErrorKindStructural, "unable to resolve package dir", err)
	}

	imp.logger.Debug().Str("dir", importPath).Msg("Importing action package")

	info, statErr := os.Stat(importPath)
	if statErr != nil {
		return newImportError(ErrorKindStructural,
			fmt.Sprintf("unable to import action package from directory: %s (directory does not exist)", importPath), statErr)
	}
	if !info.IsDir() {
		return newImportError(ErrorKindStructural,
			fmt.Sprintf("expected %s to be a directory", importPath), nil)
	}

	mf, mErr := manifest.Load(importPath, manifest.Options{Frozen: imp.cfg.Frozen}, imp.logger)
	if mErr != nil {
		return newImportError(ErrorKindManifest, "", mErr)
	}
	if span != nil {
		span.AddEvent("manifest resolved", trace.WithAttributes(
			attribute.Bool("manifest.unmanaged", mf.Unmanaged)))
	}

	envVars := map[string]string{}
	interpreter := imp.cfg.DefaultInterpreter

	if !mf.Unmanaged {
		imp.logger.Info().
			Str("manifest", mf.Path).
			Msg("Action package seems ok. Bootstrapping environment (this can take a long time on first import)")

		envInfo, pErr := imp.provisioner.Provision(ctx, mf.Path, mf.Hash)
		if pErr != nil {
			return newImportError(ErrorKindProvisioning, "it was not possible to bootstrap the environment", pErr)
		}
		if !envInfo.Success {
			// The bootstrap message is surfaced verbatim.
			return newImportError(ErrorKindProvisioning,
				fmt.Sprintf("it was not possible to bootstrap the environment. Error: %s", envInfo.Message), nil)
		}
		if envInfo.Result == nil {
			return newImportError(ErrorKindProvisioning,
				"it was not possible to get the environment when bootstrapping", nil)
		}
		envVars = envInfo.Result.Env
		if envVars == nil {
			envVars = map[string]string{}
		}
		interpreter = envInfo.Result.InterpreterPath

		imp.logger.Info().Str("interpreter", interpreter).Msg("Interpreter path")
		if span != nil {
			span.AddEvent("environment provisioned")
		}
	}

	tool := discovery.NewTool(interpreter, importPath, provision.BuildLaunchEnv(envVars), imp.logger)
	tool.ProbeArgs = imp.cfg.ProbeArgs
	tool.ListArgs = imp.cfg.ListArgs
	tool.SkipLintArg = imp.cfg.SkipLintArg

	if gErr := imp.gateVersion(ctx, tool, mf); gErr != nil {
		return gErr
	}

	name := opts.Name
	if name == "" {
		name = filepath.Base(importPath)
	}

	imp.logger.Debug().Str("package", name).Msg("Collecting actions")

	outcome, dErr := tool.List(ctx, opts.SkipLint)
	if dErr != nil {
		return newImportError(ErrorKindDiscovery, "", dErr)
	}
	if outcome.Lint != nil {
		return newImportError(ErrorKindLint, outcome.Lint.Format(), nil)
	}
	if span != nil {
		span.AddEvent("actions discovered", trace.WithAttributes(
			attribute.Int("import.actions", len(outcome.Actions))))
	}

	envJSON, jErr := json.Marshal(envVars)
	if jErr != nil {
		return newImportError(ErrorKindStorage, "failed to serialize environment", jErr)
	}

	pkg := &catalog.ActionPackage{
		Name:           name,
		Directory:      Relativize(dataDir, importPath),
		DependencyHash: mf.Hash,
		EnvJSON:        string(envJSON),
	}

	actions := make([]*catalog.Action, 0, len(outcome.Actions))
	for _, rec := range outcome.Actions {
		file := rec.File
		if !filepath.IsAbs(file) {
			file = filepath.Join(importPath, file)
		}
		actions = append(actions, &catalog.Action{
			Name:            rec.Name,
			Docs:            rec.Docs,
			File:            Relativize(importPath, file),
			LineNo:          rec.Line,
			InputSchema:     string(rec.InputSchema),
			OutputSchema:    string(rec.OutputSchema),
			Enabled:         true,
			IsConsequential: rec.Consequential(),
		})
	}

	if rErr := imp.reconcile(ctx, pkg, actions, opts.DisableNotImported); rErr != nil {
		return rErr
	}

	imp.logger.Info().
		Str("package", name).
		Int("actions", len(actions)).
		Msg("Action package imported")

	return nil
}

// gateVersion probes the tool version and rejects environments below the
// minimum. The below-minimum message depends on whether a manifest file
// is present: a pinned version can be bumped in place, an ambient
// environment has to be upgraded.
func (imp *Importer) gateVersion(ctx context.Context, tool *discovery.Tool, mf *manifest.Manifest) error {
	v, err := tool.Probe(ctx)
	if err != nil {
		return newImportError(ErrorKindVersionGate, "", err)
	}

	if v.Compare(discovery.MinimumToolVersion) >= 0 {
		return nil
	}

	if !mf.Unmanaged {
		return newImportError(ErrorKindVersionGate,
			fmt.Sprintf("the actions SDK version is %s, expected %s or higher. Please update the pinned version in: %s",
				v, discovery.MinimumToolVersion, mf.Path), nil)
	}
	return newImportError(ErrorKindVersionGate,
		fmt.Sprintf("the actions SDK version is %s, expected %s or higher. Please update the SDK in the ambient environment (interpreter: %s)",
			v, discovery.MinimumToolVersion, tool.Interpreter), nil)
}
