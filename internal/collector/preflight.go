package collector

import (
	"context"

	"supportdump/internal/discovery"
	"supportdump/internal/kubecli"
)

// ChainResult is what one discovery chain found during a preflight check.
type ChainResult struct {
	Purpose    string
	Generation string
	Pods       []string
	Err        error
}

// PreflightReport describes whether a namespace is ready for collection.
type PreflightReport struct {
	Backend    kubecli.Backend
	Namespace  string
	Context    kubecli.ContextInfo
	ContextErr error
	Chains     []ChainResult
}

// Ready reports whether at least one chain found pods.
func (p PreflightReport) Ready() bool {
	for _, c := range p.Chains {
		if len(c.Pods) > 0 {
			return true
		}
	}
	return false
}

// Preflight resolves every discovery chain without writing anything. The
// client is expected to have passed its access check already.
func Preflight(ctx context.Context, client kubecli.Client, contextInfo func() (kubecli.ContextInfo, error)) PreflightReport {
	report := PreflightReport{Backend: client.Backend(), Namespace: client.Namespace()}
	report.Context, report.ContextErr = contextInfo()

	for _, chain := range []discovery.Chain{discovery.WorkloadPods, discovery.OperatorPods, discovery.DatabasePods} {
		pods, gen, err := chain.Resolve(ctx, client)
		report.Chains = append(report.Chains, ChainResult{
			Purpose:    chain.Purpose,
			Generation: gen,
			Pods:       pods,
			Err:        err,
		})
	}
	return report
}
