// Package discovery resolves the pods and containers a dump targets.
//
// The operator has labeled its pods differently across releases, so each
// purpose (all workload pods, operator pods, database pods) is described by a
// Chain of selector strategies, one per schema generation, tried in order
// until one yields pods.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/sets"
)

var (
	// ErrNoPods is returned when every strategy of a chain came back empty.
	ErrNoPods = errors.New("no pods matched")
	// ErrNoContainers is returned for a pod that lists no containers.
	ErrNoContainers = errors.New("no containers found")
)

// Lister is the part of the cluster client discovery needs.
type Lister interface {
	GetPodsBySelector(ctx context.Context, selector string) ([]string, error)
	GetContainerNames(ctx context.Context, pod string) ([]string, error)
}

// Strategy is one label selector tagged with the schema generation it
// belongs to.
type Strategy struct {
	Generation string
	Selector   labels.Selector
}

// Chain is an ordered list of strategies for one discovery purpose.
type Chain struct {
	Purpose    string
	Strategies []Strategy
}

// NewChain builds a chain from (generation, selector) pairs. It panics on a
// malformed selector; chains are static configuration.
func NewChain(purpose string, pairs ...[2]string) Chain {
	c := Chain{Purpose: purpose}
	for _, p := range pairs {
		c.Strategies = append(c.Strategies, Strategy{Generation: p[0], Selector: mustParse(p[1])})
	}
	return c
}

func mustParse(s string) labels.Selector {
	sel, err := labels.Parse(s)
	if err != nil {
		panic(fmt.Sprintf("invalid label selector %q: %v", s, err))
	}
	return sel
}

// Built-in chains. v4 labels are tried before v5 labels.
var (
	WorkloadPods = NewChain("workload",
		[2]string{"v4", "vendor=crunchydata"},
		[2]string{"v5", "postgres-operator.crunchydata.com/cluster"},
	)
	OperatorPods = NewChain("operator",
		[2]string{"v4", "name=postgres-operator"},
		[2]string{"v5", "postgres-operator.crunchydata.com/control-plane"},
	)
	DatabasePods = NewChain("database",
		[2]string{"v4", "pgo-pg-database=true,vendor=crunchydata"},
		[2]string{"v5", "postgres-operator.crunchydata.com/data=postgres"},
	)
)

// Resolve tries each strategy in order and returns the first non-empty pod
// set together with the generation that produced it. A strategy whose
// listing fails counts as empty.
func (c Chain) Resolve(ctx context.Context, l Lister) ([]string, string, error) {
	var lastErr error
	for _, s := range c.Strategies {
		selector := s.Selector.String()
		pods, err := l.GetPodsBySelector(ctx, selector)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			slog.Warn("pod listing failed", "purpose", c.Purpose, "generation", s.Generation,
				"selector", selector, "error", err)
			lastErr = err
			continue
		}
		if len(pods) > 0 {
			slog.Debug("pods discovered", "purpose", c.Purpose, "generation", s.Generation,
				"selector", selector, "count", len(pods))
			return pods, s.Generation, nil
		}
		slog.Debug("no pods for selector", "purpose", c.Purpose, "generation", s.Generation, "selector", selector)
	}

	if lastErr != nil {
		return nil, "", fmt.Errorf("%s pods: %w (last error: %w)", c.Purpose, ErrNoPods, lastErr)
	}
	return nil, "", fmt.Errorf("%s pods: %w", c.Purpose, ErrNoPods)
}

// Discoverer resolves pods and containers through a Lister.
type Discoverer struct {
	lister   Lister
	workload []Chain
	database Chain
}

// New returns a Discoverer using the built-in chains.
func New(l Lister) *Discoverer {
	return &Discoverer{
		lister:   l,
		workload: []Chain{WorkloadPods, OperatorPods},
		database: DatabasePods,
	}
}

// AllPods returns the union of workload and operator pods in first-seen
// order. It fails only when every chain is empty.
func (d *Discoverer) AllPods(ctx context.Context) ([]string, error) {
	seen := sets.New[string]()
	var out []string
	var errs []error

	for _, c := range d.workload {
		pods, _, err := c.Resolve(ctx, d.lister)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, err)
			continue
		}
		for _, p := range pods {
			if !seen.Has(p) {
				seen.Insert(p)
				out = append(out, p)
			}
		}
	}

	if len(out) == 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// DatabasePods returns the database-role pods.
func (d *Discoverer) DatabasePods(ctx context.Context) ([]string, error) {
	pods, _, err := d.database.Resolve(ctx, d.lister)
	return pods, err
}

// Containers returns the container names of pod.
func (d *Discoverer) Containers(ctx context.Context, pod string) ([]string, error) {
	names, err := d.lister.GetContainerNames(ctx, pod)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers of %s: %w", pod, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("pod %s: %w", pod, ErrNoContainers)
	}
	return names, nil
}
