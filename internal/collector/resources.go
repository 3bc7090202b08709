package collector

import (
	"context"
	"log/slog"

	"supportdump/internal/executor"
)

// FetchedResource is the YAML dump of one resource kind.
type FetchedResource struct {
	Kind     string
	Document []byte
}

// FileName is where the resource is saved in the output tree.
func (r FetchedResource) FileName() string {
	return r.Kind + ".yml"
}

// FetchResource returns the YAML of every object of kind in the namespace.
// A kind the cluster does not serve, or a failed call, yields ok=false and a
// counted warning.
func (c *Collector) FetchResource(ctx context.Context, kind string) ([]byte, bool) {
	res, err := c.client.GetResource(ctx, kind)
	if err != nil {
		c.warn("failed to get resource", "kind", kind, "error", err)
		return nil, false
	}
	if !res.Success() {
		c.warn("resource not available", "kind", kind, "command", res.Command,
			"exitCode", res.ExitCode, "output", executor.Truncate(res.Output, executor.MaxLoggedOutput))
		return nil, false
	}
	return res.Output, true
}

// FetchAll fetches every kind of catalog applicable to the client's backend,
// in catalog order, omitting the ones that are unavailable.
func (c *Collector) FetchAll(ctx context.Context, catalog ResourceCatalog) []FetchedResource {
	var out []FetchedResource
	for _, k := range catalog.For(c.client.Backend()) {
		if ctx.Err() != nil {
			break
		}
		doc, ok := c.FetchResource(ctx, k.Name)
		if !ok {
			continue
		}
		out = append(out, FetchedResource{Kind: k.Name, Document: doc})
	}
	return out
}

func (c *Collector) collectResources(ctx context.Context) error {
	fetched := c.FetchAll(ctx, c.catalog)
	for _, r := range fetched {
		if err := c.tree.WriteFile(r.FileName(), r.Document); err != nil {
			c.warn("failed to save resource", "kind", r.Kind, "error", err)
			continue
		}
		slog.Debug("collected", "file", r.FileName())
	}
	slog.Info("api resources collected", "kinds", len(fetched))
	return ctx.Err()
}
