// Package config turns the command-line surface into the RunContext every
// component receives. Nothing here is global; a RunContext is built once per
// run and passed by value.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/validation"

	dumperrors "supportdump/internal/errors"
	"supportdump/internal/kubecli"
)

const (
	// DefaultPGLogCount is how many rotated database log files are copied
	// per pod.
	DefaultPGLogCount = 2
	// DefaultExecTimeout bounds each in-container diagnostic command.
	DefaultExecTimeout = 60 * time.Second
	// DirPrefix starts every generated output directory name.
	DirPrefix = "support_dump_"
	// timestampLayout is used in the output directory name.
	timestampLayout = "20060102-150405"
)

// Options is the raw configuration as supplied by flags.
type Options struct {
	Namespace          string
	Destination        string
	PGLogCount         int
	DeleteAfterArchive bool
	Backend            string
	ExecTimeout        time.Duration
	ExtraResources     []string
	Kubeconfig         string
}

// DefaultOptions returns Options with every optional field at its default.
func DefaultOptions() Options {
	return Options{
		PGLogCount:  DefaultPGLogCount,
		ExecTimeout: DefaultExecTimeout,
	}
}

// ValidateTarget checks only what is needed to reach the cluster: the
// namespace and the backend override. It is enough for a read-only check.
func (o Options) ValidateTarget() error {
	if errs := o.targetErrors(); len(errs) > 0 {
		return dumperrors.Wrap(dumperrors.ErrCodeInvalidConfig, "invalid configuration", errors.Join(errs...))
	}
	return nil
}

func (o Options) targetErrors() []error {
	var errs []error
	if o.Namespace == "" {
		errs = append(errs, errors.New("namespace is required"))
	} else if msgs := validation.IsDNS1123Label(o.Namespace); len(msgs) > 0 {
		errs = append(errs, fmt.Errorf("invalid namespace %q: %s", o.Namespace, strings.Join(msgs, "; ")))
	}
	if _, err := kubecli.ParseBackend(o.Backend); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// Validate checks the options and returns every problem at once.
func (o Options) Validate() error {
	errs := o.targetErrors()

	if strings.TrimSpace(o.Destination) == "" {
		errs = append(errs, errors.New("destination directory is required"))
	}
	if o.PGLogCount < 1 {
		errs = append(errs, fmt.Errorf("pg log count must be at least 1, got %d", o.PGLogCount))
	}
	if o.ExecTimeout <= 0 {
		errs = append(errs, fmt.Errorf("exec timeout must be positive, got %s", o.ExecTimeout))
	}
	for _, r := range o.ExtraResources {
		if IsSecretKind(r) {
			errs = append(errs, fmt.Errorf("resource %q is not collected: secrets never leave the cluster", r))
		}
	}

	if len(errs) > 0 {
		return dumperrors.Wrap(dumperrors.ErrCodeInvalidConfig, "invalid configuration", errors.Join(errs...))
	}
	return nil
}

// IsSecretKind reports whether kind names the Secret resource in any of the
// forms the CLIs accept.
func IsSecretKind(kind string) bool {
	k := strings.ToLower(strings.TrimSpace(kind))
	if i := strings.IndexByte(k, '.'); i >= 0 {
		k = k[:i]
	}
	return k == "secret" || k == "secrets"
}

// RunContext is the immutable configuration of one collection run.
type RunContext struct {
	RunID              string
	Namespace          string
	Backend            kubecli.Backend
	Destination        string
	DirName            string
	OutputDir          string
	PGLogCount         int
	DeleteAfterArchive bool
	ExecTimeout        time.Duration
	ExtraResources     []string
	Kubeconfig         string
	StartedAt          time.Time
}

// NewRunContext validates opts and derives the run's paths from now.
func NewRunContext(opts Options, backend kubecli.Backend, now time.Time) (RunContext, error) {
	if err := opts.Validate(); err != nil {
		return RunContext{}, err
	}

	dest, err := filepath.Abs(opts.Destination)
	if err != nil {
		return RunContext{}, dumperrors.Wrap(dumperrors.ErrCodeInvalidConfig, "cannot resolve destination directory", err)
	}

	dirName := DirPrefix + now.Format(timestampLayout)
	return RunContext{
		RunID:              uuid.NewString(),
		Namespace:          opts.Namespace,
		Backend:            backend,
		Destination:        dest,
		DirName:            dirName,
		OutputDir:          filepath.Join(dest, dirName),
		PGLogCount:         opts.PGLogCount,
		DeleteAfterArchive: opts.DeleteAfterArchive,
		ExecTimeout:        opts.ExecTimeout,
		ExtraResources:     append([]string(nil), opts.ExtraResources...),
		Kubeconfig:         opts.Kubeconfig,
		StartedAt:          now,
	}, nil
}
