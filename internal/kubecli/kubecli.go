// Package kubecli talks to the cluster through one of the supported
// command-line clients. All operations are read-only and scoped to a single
// namespace; authentication is whatever session the CLI already holds.
package kubecli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/yaml"

	"supportdump/internal/executor"
)

// Backend names a supported cluster CLI.
type Backend string

const (
	// Kubectl is the upstream Kubernetes CLI.
	Kubectl Backend = "kubectl"
	// OC is the OpenShift CLI.
	OC Backend = "oc"
)

// ProbeOrder is the order backends are tried in when none is configured.
var ProbeOrder = []Backend{OC, Kubectl}

// ParseBackend validates a backend name. An empty name is valid and means
// "detect".
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "", Kubectl, OC:
		return b, nil
	default:
		if near, ok := closestBackend(string(b)); ok {
			return "", fmt.Errorf("unsupported cluster CLI %q, did you mean %q?", s, near)
		}
		return "", fmt.Errorf("unsupported cluster CLI %q (supported: %s, %s)", s, Kubectl, OC)
	}
}

// closestBackend suggests a backend within two edits of name.
func closestBackend(name string) (Backend, bool) {
	best, bestDist := Backend(""), 3
	for _, b := range ProbeOrder {
		if d := levenshtein.ComputeDistance(name, string(b)); d < bestDist {
			best, bestDist = b, d
		}
	}
	return best, best != ""
}

// Client is the cluster capability used by the collectors.
type Client interface {
	Backend() Backend
	Namespace() string

	Version(ctx context.Context) (executor.Result, error)
	GetNodes(ctx context.Context) (executor.Result, error)
	GetNamespace(ctx context.Context) (executor.Result, error)
	GetEvents(ctx context.Context) (executor.Result, error)
	ListResource(ctx context.Context, kind string) (executor.Result, error)
	GetResource(ctx context.Context, kind string) (executor.Result, error)
	DescribePods(ctx context.Context) (executor.Result, error)
	GetPodsBySelector(ctx context.Context, selector string) ([]string, error)
	GetContainerNames(ctx context.Context, pod string) ([]string, error)
	GetPodLogs(ctx context.Context, pod, container string) (executor.Result, error)
	ExecInContainer(ctx context.Context, pod, container, shellCmd string, timeout time.Duration) (executor.Result, error)
	CopyFileFromContainer(ctx context.Context, pod, container, remotePath, localPath string) (executor.Result, error)
	CheckAccess(ctx context.Context) (executor.Result, error)
}

// CLI implements Client by shelling out to kubectl or oc.
type CLI struct {
	backend   Backend
	namespace string
	runner    executor.Runner
}

// New returns a Client for backend bound to namespace.
func New(backend Backend, namespace string, runner executor.Runner) *CLI {
	return &CLI{backend: backend, namespace: namespace, runner: runner}
}

// Backend implements Client.
func (c *CLI) Backend() Backend { return c.backend }

// Namespace implements Client.
func (c *CLI) Namespace() string { return c.namespace }

func (c *CLI) run(ctx context.Context, args ...string) (executor.Result, error) {
	return c.runner.Run(ctx, 0, string(c.backend), args...)
}

// Version implements Client.
func (c *CLI) Version(ctx context.Context) (executor.Result, error) {
	return c.run(ctx, "version")
}

// GetNodes implements Client.
func (c *CLI) GetNodes(ctx context.Context) (executor.Result, error) {
	return c.run(ctx, "get", "nodes", "-o", "wide")
}

// GetNamespace implements Client. OpenShift users usually lack rights on the
// namespace object itself, so oc describes the project instead.
func (c *CLI) GetNamespace(ctx context.Context) (executor.Result, error) {
	if c.backend == OC {
		return c.run(ctx, "describe", "project", c.namespace)
	}
	return c.run(ctx, "get", "namespace", c.namespace, "-o", "yaml")
}

// GetEvents implements Client.
func (c *CLI) GetEvents(ctx context.Context) (executor.Result, error) {
	return c.run(ctx, "get", "events", "-n", c.namespace)
}

// ListResource implements Client.
func (c *CLI) ListResource(ctx context.Context, kind string) (executor.Result, error) {
	return c.run(ctx, "get", kind, "-n", c.namespace)
}

// GetResource implements Client.
func (c *CLI) GetResource(ctx context.Context, kind string) (executor.Result, error) {
	return c.run(ctx, "get", kind, "-n", c.namespace, "-o", "yaml")
}

// DescribePods implements Client.
func (c *CLI) DescribePods(ctx context.Context) (executor.Result, error) {
	return c.run(ctx, "describe", "pods", "-n", c.namespace)
}

// GetPodsBySelector implements Client.
func (c *CLI) GetPodsBySelector(ctx context.Context, selector string) ([]string, error) {
	res, err := c.run(ctx, "get", "pods", "-n", c.namespace, "-l", selector, "-o", "json")
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	var list corev1.PodList
	if err := yaml.Unmarshal(res.Output, &list); err != nil {
		return nil, fmt.Errorf("failed to decode pod list for selector %q: %w", selector, err)
	}

	names := make([]string, 0, len(list.Items))
	for _, p := range list.Items {
		names = append(names, p.Name)
	}
	return names, nil
}

// GetContainerNames implements Client. Init containers are not included;
// their logs are rarely useful once the pod is running.
func (c *CLI) GetContainerNames(ctx context.Context, pod string) ([]string, error) {
	res, err := c.run(ctx, "get", "pod", pod, "-n", c.namespace, "-o", "json")
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	var p corev1.Pod
	if err := yaml.Unmarshal(res.Output, &p); err != nil {
		return nil, fmt.Errorf("failed to decode pod %s: %w", pod, err)
	}

	names := make([]string, 0, len(p.Spec.Containers))
	for _, ctr := range p.Spec.Containers {
		names = append(names, ctr.Name)
	}
	return names, nil
}

// GetPodLogs implements Client.
func (c *CLI) GetPodLogs(ctx context.Context, pod, container string) (executor.Result, error) {
	return c.run(ctx, "logs", "-n", c.namespace, pod, "-c", container)
}

// ExecInContainer implements Client. The command is run through /bin/sh so
// globs and pipes work the same in every image.
func (c *CLI) ExecInContainer(ctx context.Context, pod, container, shellCmd string, timeout time.Duration) (executor.Result, error) {
	return c.runner.Run(ctx, timeout, string(c.backend),
		"exec", "-n", c.namespace, pod, "-c", container, "--", "/bin/sh", "-c", shellCmd)
}

// CopyFileFromContainer implements Client.
func (c *CLI) CopyFileFromContainer(ctx context.Context, pod, container, remotePath, localPath string) (executor.Result, error) {
	return c.run(ctx, "cp", "-n", c.namespace, "-c", container, pod+":"+remotePath, localPath)
}

// CheckAccess implements Client.
func (c *CLI) CheckAccess(ctx context.Context) (executor.Result, error) {
	if c.backend == OC {
		return c.run(ctx, "whoami")
	}
	return c.run(ctx, "cluster-info")
}
