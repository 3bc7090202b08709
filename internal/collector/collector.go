// Package collector drives a support dump run: it sequences every collection
// step, keeps going when individual steps fail, and archives whatever was
// gathered.
package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"sigs.k8s.io/yaml"

	"supportdump/internal/archive"
	"supportdump/internal/config"
	"supportdump/internal/discovery"
	dumperrors "supportdump/internal/errors"
	"supportdump/internal/executor"
	"supportdump/internal/kubecli"
	"supportdump/internal/logging"
	"supportdump/internal/metrics"
	"supportdump/internal/outdir"
	"supportdump/internal/version"
)

// Files written at the top of the output tree.
const (
	FileRunLog      = "dumptool.log"
	FileTimestamp   = "timestamp.info"
	FileToolVersion = "dumptool-version.info"
	FileKubeContext = "k8s-context.info"
	FileK8sVersion  = "k8s-version.info"
	FileNodes       = "nodes.info"
	FileNamespace   = "namespace.yml"
	FileEvents      = "events"
	FilePVCList     = "pvc.list"
	FileConfigMaps  = "configmap.list"
	FileDescribe    = "describe-pods"
	FileMetrics     = "collection-metrics.prom"
)

// StepOutcome records how one orchestrator step ended.
type StepOutcome struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Report summarizes a run.
type Report struct {
	RunID     string
	OutputDir string
	Steps     []StepOutcome
	Warnings  int
	// Files lists every path written into the output tree, relative to it.
	Files   []string
	Archive archive.Result
}

// Failed returns the steps that did not complete.
func (r *Report) Failed() []StepOutcome {
	var out []StepOutcome
	for _, s := range r.Steps {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Option configures a Collector.
type Option func(*Collector)

// WithCatalog replaces the default resource catalog.
func WithCatalog(c ResourceCatalog) Option {
	return func(col *Collector) { col.catalog = c }
}

// WithContainerCommands replaces the default diagnostic command catalog.
func WithContainerCommands(c ContainerCommandCatalog) Option {
	return func(col *Collector) { col.commands = c }
}

// WithMetrics shares a recorder, typically the one also observing the
// executor.
func WithMetrics(r *metrics.Recorder) Option {
	return func(col *Collector) { col.metrics = r }
}

// WithConsole sets where and at which level progress is printed.
func WithConsole(w io.Writer, level string) Option {
	return func(col *Collector) {
		col.console = w
		col.logLevel = level
	}
}

// WithContextInfo overrides how the kubeconfig context is read.
func WithContextInfo(f func() (kubecli.ContextInfo, error)) Option {
	return func(col *Collector) { col.contextInfo = f }
}

// Collector runs one support dump.
type Collector struct {
	rc          config.RunContext
	client      kubecli.Client
	discovery   *discovery.Discoverer
	catalog     ResourceCatalog
	commands    ContainerCommandCatalog
	archiver    archive.Archiver
	metrics     *metrics.Recorder
	console     io.Writer
	logLevel    string
	contextInfo func() (kubecli.ContextInfo, error)

	tree     *outdir.Tree
	warnings int
}

// New creates a Collector for rc using client.
func New(rc config.RunContext, client kubecli.Client, opts ...Option) *Collector {
	c := &Collector{
		rc:        rc,
		client:    client,
		discovery: discovery.New(client),
		catalog:   DefaultResourceCatalog.With(rc.ExtraResources...),
		commands:  DefaultContainerCommands,
		archiver:  archive.Archiver{DeleteAfter: rc.DeleteAfterArchive},
		console:   os.Stderr,
		logLevel:  "info",
		contextInfo: func() (kubecli.ContextInfo, error) {
			return kubecli.CurrentContext(rc.Kubeconfig)
		},
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewRecorder()
	}
	return c
}

type step struct {
	name string
	run  func(ctx context.Context) error
}

func (c *Collector) steps() []step {
	return []step{
		{"run info", c.collectRunInfo},
		{"kubernetes version", c.fileStep(FileK8sVersion, c.client.Version)},
		{"nodes", c.fileStep(FileNodes, c.client.GetNodes)},
		{"namespace", c.fileStep(FileNamespace, c.client.GetNamespace)},
		{"events", c.fileStep(FileEvents, c.client.GetEvents)},
		{"pvc list", c.fileStep(FilePVCList, func(ctx context.Context) (executor.Result, error) {
			return c.client.ListResource(ctx, "pvc")
		})},
		{"configmap list", c.fileStep(FileConfigMaps, func(ctx context.Context) (executor.Result, error) {
			return c.client.ListResource(ctx, "configmap")
		})},
		{"describe pods", c.fileStep(FileDescribe, c.client.DescribePods)},
		{"api resources", c.collectResources},
		{"pg logs", c.collectPGLogs},
		{"pod logs", c.collectPodLogs},
		{"pg pod details", c.collectPGPodDetails},
	}
}

// Run executes every collection step in order and archives the result.
// Only failing to create the output directory or the archive is returned as
// an error; all other problems are logged and counted in the report.
func (c *Collector) Run(ctx context.Context) (*Report, error) {
	tree, err := outdir.Create(c.rc.OutputDir)
	if err != nil {
		return nil, dumperrors.WrapWithContext(dumperrors.ErrCodeOutputDir,
			"cannot create output directory", err, map[string]any{"dir": c.rc.OutputDir})
	}
	c.tree = tree

	logFile, err := tree.OpenFile(FileRunLog)
	if err != nil {
		return nil, dumperrors.Wrap(dumperrors.ErrCodeOutputDir, "cannot create run log", err)
	}
	defer logFile.Close()
	restore := logging.SetDefault(logging.Options{Console: c.console, Level: c.logLevel, File: logFile})
	defer restore()

	slog.Info("saving support dump files", "dir", c.rc.OutputDir, "namespace", c.rc.Namespace,
		"cli", c.client.Backend(), "run", c.rc.RunID, "version", version.Get().String())
	slog.Info("only metadata and logs are gathered; no data and no secrets")

	report := &Report{RunID: c.rc.RunID, OutputDir: c.rc.OutputDir}
	var interrupted error
	for _, s := range c.steps() {
		if err := ctx.Err(); err != nil {
			interrupted = err
			c.warn("collection interrupted; archiving what was gathered", "next", s.name, "error", err)
			break
		}
		slog.Info("collecting", "step", s.name)
		start := time.Now()
		err := s.run(ctx)
		outcome := StepOutcome{Name: s.name, Err: err, Duration: time.Since(start)}
		report.Steps = append(report.Steps, outcome)
		c.metrics.ObserveStep(s.name, err)
		if err != nil {
			c.warn("step failed", "step", s.name, "error", err)
		}
	}

	report.Warnings = c.warnings
	c.writeMetrics()
	report.Files = tree.Written()

	res, err := c.archiver.Create(tree.Root())
	if err != nil {
		slog.Error("archiving failed", "error", err)
		return report, dumperrors.Wrap(dumperrors.ErrCodeArchive, "cannot create archive", err)
	}
	report.Archive = res

	slog.Info("support dump complete", "archive", res.Path, "steps", len(report.Steps),
		"failedSteps", len(report.Failed()), "warnings", report.Warnings)
	return report, interrupted
}

// warn logs a non-fatal problem and counts it.
func (c *Collector) warn(msg string, args ...any) {
	c.warnings++
	c.metrics.Warn()
	slog.Warn(msg, args...)
}

// hintNoPods explains the most common reasons discovery comes back empty.
func (c *Collector) hintNoPods(purpose string, err error) {
	slog.Warn("could not find "+purpose+" pods", "namespace", c.rc.Namespace, "error", err)
	slog.Warn("hint: check that the namespace is correct", "namespace", c.rc.Namespace)
	slog.Warn("hint: pods are found by the operator's default labels; customized labels are not detected")
}

// fileStep adapts a single CLI call into a step that saves its output.
func (c *Collector) fileStep(file string, fetch func(context.Context) (executor.Result, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		res, err := fetch(ctx)
		if err != nil {
			return err
		}
		if err := res.Err(); err != nil {
			return err
		}
		if err := c.tree.WriteFile(file, res.Output); err != nil {
			return err
		}
		slog.Info("collected", "file", file)
		return nil
	}
}

type runInfo struct {
	RunID     string `json:"runId"`
	Namespace string `json:"namespace"`
	CLI       string `json:"cli"`
	Directory string `json:"directory"`
	StartedAt string `json:"startedAt"`
}

// collectRunInfo writes the files describing the run itself.
func (c *Collector) collectRunInfo(_ context.Context) error {
	info := runInfo{
		RunID:     c.rc.RunID,
		Namespace: c.rc.Namespace,
		CLI:       string(c.client.Backend()),
		Directory: c.rc.DirName,
		StartedAt: c.rc.StartedAt.Format(time.RFC3339),
	}
	if err := c.writeYAML(FileTimestamp, info); err != nil {
		return err
	}
	if err := c.writeYAML(FileToolVersion, version.Get()); err != nil {
		return err
	}

	kc, err := c.contextInfo()
	if err != nil {
		c.warn("kubeconfig context unavailable", "error", err)
		return nil
	}
	return c.writeYAML(FileKubeContext, kc)
}

func (c *Collector) writeYAML(file string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", file, err)
	}
	return c.tree.WriteFile(file, data)
}

func (c *Collector) writeMetrics() {
	path, err := c.tree.Reserve(FileMetrics)
	if err != nil {
		c.warn("cannot write collection metrics", "error", err)
		return
	}
	if err := c.metrics.WriteTextfile(path); err != nil {
		c.tree.Release(FileMetrics)
		c.warn("cannot write collection metrics", "error", err)
	}
}
