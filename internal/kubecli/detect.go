package kubecli

import (
	"context"
	"log/slog"

	dumperrors "supportdump/internal/errors"
	"supportdump/internal/executor"
)

// Detect selects the cluster CLI and validates access once.
//
// With an override, only that backend is considered. Otherwise backends are
// probed in ProbeOrder and the first one present on PATH that passes the
// access check is used.
func Detect(ctx context.Context, runner executor.Runner, namespace string, override Backend) (Client, error) {
	candidates := ProbeOrder
	if override != "" {
		if _, err := ParseBackend(string(override)); err != nil {
			return nil, dumperrors.Wrap(dumperrors.ErrCodeInvalidConfig, "invalid cluster CLI override", err)
		}
		candidates = []Backend{override}
	}

	var found []Backend
	var lastErr error
	for _, b := range candidates {
		path, err := runner.LookPath(string(b))
		if err != nil {
			slog.Debug("cluster CLI not found", "cli", b, "error", err)
			continue
		}
		found = append(found, b)
		slog.Debug("cluster CLI found", "cli", b, "path", path)

		client := New(b, namespace, runner)
		res, err := client.CheckAccess(ctx)
		if err == nil {
			err = res.Err()
		}
		if err != nil {
			slog.Warn("cluster access check failed", "cli", b, "error", err)
			lastErr = err
			continue
		}
		slog.Info("using cluster CLI", "cli", b, "path", path)
		return client, nil
	}

	if len(found) == 0 {
		return nil, dumperrors.WrapWithContext(dumperrors.ErrCodeNoClient,
			"no supported cluster CLI found on PATH", nil,
			map[string]any{"candidates": candidates})
	}
	return nil, dumperrors.WrapWithContext(dumperrors.ErrCodeClusterAccess,
		"not connected to a Kubernetes cluster", lastErr,
		map[string]any{"candidates": found})
}
