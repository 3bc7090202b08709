package kubecli

import (
	"fmt"

	"k8s.io/client-go/tools/clientcmd"
)

// ContextInfo identifies the kubeconfig context a dump was taken through.
// It deliberately carries no credentials.
type ContextInfo struct {
	Context   string `json:"context"`
	Cluster   string `json:"cluster"`
	Server    string `json:"server"`
	User      string `json:"user"`
	Namespace string `json:"namespace,omitempty"`
}

// CurrentContext reads the active kubeconfig context. An empty path uses the
// default loading rules (KUBECONFIG, then ~/.kube/config).
func CurrentContext(kubeconfig string) (ContextInfo, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}

	raw, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).RawConfig()
	if err != nil {
		return ContextInfo{}, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	if raw.CurrentContext == "" {
		return ContextInfo{}, fmt.Errorf("kubeconfig has no current context")
	}

	ctx, ok := raw.Contexts[raw.CurrentContext]
	if !ok || ctx == nil {
		return ContextInfo{}, fmt.Errorf("current context %q not defined in kubeconfig", raw.CurrentContext)
	}

	info := ContextInfo{
		Context:   raw.CurrentContext,
		Cluster:   ctx.Cluster,
		User:      ctx.AuthInfo,
		Namespace: ctx.Namespace,
	}
	if cluster, ok := raw.Clusters[ctx.Cluster]; ok && cluster != nil {
		info.Server = cluster.Server
	}
	return info, nil
}
