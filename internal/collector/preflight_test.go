package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdump/internal/discovery"
	"supportdump/internal/kubecli"
)

func TestPreflight(t *testing.T) {
	f := v5Cluster()
	f.selectors[selectorOf(discovery.OperatorPods, "v4")] = []string{"postgres-operator-7d9c"}

	report := Preflight(context.Background(), f, func() (kubecli.ContextInfo, error) {
		return kubecli.ContextInfo{Context: "prod"}, nil
	})

	assert.True(t, report.Ready())
	assert.Equal(t, kubecli.Kubectl, report.Backend)
	assert.Equal(t, "pgdb", report.Namespace)
	assert.Equal(t, "prod", report.Context.Context)
	require.Len(t, report.Chains, 3)

	assert.Equal(t, "workload", report.Chains[0].Purpose)
	assert.Equal(t, "v5", report.Chains[0].Generation)
	assert.Len(t, report.Chains[0].Pods, 2)

	assert.Equal(t, "v4", report.Chains[1].Generation)
	assert.Equal(t, []string{"postgres-operator-7d9c"}, report.Chains[1].Pods)

	assert.Equal(t, "database", report.Chains[2].Purpose)
	assert.NoError(t, report.Chains[2].Err)
}

func TestPreflight_EmptyNamespace(t *testing.T) {
	report := Preflight(context.Background(), newFakeCluster(), func() (kubecli.ContextInfo, error) {
		return kubecli.ContextInfo{}, errors.New("no kubeconfig")
	})

	assert.False(t, report.Ready())
	assert.Error(t, report.ContextErr)
	for _, c := range report.Chains {
		assert.ErrorIs(t, c.Err, discovery.ErrNoPods, c.Purpose)
		assert.Empty(t, c.Generation)
	}
}
