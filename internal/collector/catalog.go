package collector

import (
	"strings"

	"supportdump/internal/config"
	"supportdump/internal/kubecli"
)

// ResourceKind is one entry of the resource catalog.
type ResourceKind struct {
	Name string
	// OnlyFor restricts the kind to one CLI backend; empty means any.
	OnlyFor kubecli.Backend
}

// ResourceCatalog is the ordered set of kinds dumped as YAML.
type ResourceCatalog []ResourceKind

// DefaultResourceCatalog covers the workload objects plus both generations
// of the operator's custom resources.
var DefaultResourceCatalog = ResourceCatalog{
	{Name: "pods"},
	{Name: "replicasets"},
	{Name: "deployments"},
	{Name: "statefulsets"},
	{Name: "jobs"},
	{Name: "cronjobs"},
	{Name: "services"},
	{Name: "routes", OnlyFor: kubecli.OC},
	{Name: "ingresses"},
	{Name: "pvc"},
	{Name: "configmaps"},
	{Name: "pgreplicas"},
	{Name: "pgclusters"},
	{Name: "pgpolicies"},
	{Name: "pgtasks"},
	{Name: "postgresclusters"},
	{Name: "pgupgrades"},
	{Name: "pgadmins"},
}

// With returns a copy of the catalog with extra kinds appended.
func (c ResourceCatalog) With(extra ...string) ResourceCatalog {
	out := append(ResourceCatalog(nil), c...)
	for _, e := range extra {
		out = append(out, ResourceKind{Name: e})
	}
	return out
}

// For returns the kinds applicable to backend in catalog order. Duplicates
// (compared case-insensitively) and secret kinds are dropped, which keeps one
// output file per kind.
func (c ResourceCatalog) For(backend kubecli.Backend) ResourceCatalog {
	seen := make(map[string]bool, len(c))
	var out ResourceCatalog
	for _, k := range c {
		key := strings.ToLower(strings.TrimSpace(k.Name))
		if key == "" || seen[key] || config.IsSecretKind(key) {
			continue
		}
		if k.OnlyFor != "" && k.OnlyFor != backend {
			continue
		}
		seen[key] = true
		out = append(out, ResourceKind{Name: key, OnlyFor: k.OnlyFor})
	}
	return out
}

// DatabaseContainer is the container that runs PostgreSQL in database pods.
const DatabaseContainer = "database"

// ContainerCommandCatalog lists diagnostic shell commands per container role.
type ContainerCommandCatalog struct {
	// Common runs in every container.
	Common []string
	// ByRole adds commands for containers with the given name.
	ByRole map[string][]string
}

// DefaultContainerCommands is used for database pod details.
var DefaultContainerCommands = ContainerCommandCatalog{
	Common: []string{"ps aux"},
	ByRole: map[string][]string{
		DatabaseContainer: {"patronictl list", "patronictl history"},
	},
}

// For returns the commands to run in container, common ones first.
func (c ContainerCommandCatalog) For(container string) []string {
	out := make([]string, 0, len(c.Common)+len(c.ByRole[container]))
	out = append(out, c.Common...)
	return append(out, c.ByRole[container]...)
}
