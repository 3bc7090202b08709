package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	pods       map[string][]string
	failing    map[string]error
	containers map[string][]string
	queried    []string
}

func (f *fakeLister) GetPodsBySelector(_ context.Context, selector string) ([]string, error) {
	f.queried = append(f.queried, selector)
	if err, ok := f.failing[selector]; ok {
		return nil, err
	}
	return f.pods[selector], nil
}

func (f *fakeLister) GetContainerNames(_ context.Context, pod string) ([]string, error) {
	names, ok := f.containers[pod]
	if !ok {
		return nil, errors.New("pods \"" + pod + "\" not found")
	}
	return names, nil
}

func TestChain_FallsBackToV5(t *testing.T) {
	l := &fakeLister{pods: map[string][]string{
		"postgres-operator.crunchydata.com/data=postgres": {"hippo-instance1-abcd-0", "hippo-instance1-efgh-0"},
	}}

	pods, gen, err := DatabasePods.Resolve(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, "v5", gen)
	assert.Equal(t, []string{"hippo-instance1-abcd-0", "hippo-instance1-efgh-0"}, pods)
	assert.Equal(t, []string{
		"pgo-pg-database=true,vendor=crunchydata",
		"postgres-operator.crunchydata.com/data=postgres",
	}, l.queried)
}

func TestChain_PrimaryWins(t *testing.T) {
	l := &fakeLister{pods: map[string][]string{
		"pgo-pg-database=true,vendor=crunchydata":         {"hippo-0"},
		"postgres-operator.crunchydata.com/data=postgres": {"other-0"},
	}}

	pods, gen, err := DatabasePods.Resolve(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, "v4", gen)
	assert.Equal(t, []string{"hippo-0"}, pods)
	assert.Len(t, l.queried, 1)
}

func TestChain_AllEmpty(t *testing.T) {
	_, _, err := WorkloadPods.Resolve(context.Background(), &fakeLister{})
	require.ErrorIs(t, err, ErrNoPods)
}

func TestChain_FailureCountsAsEmpty(t *testing.T) {
	listErr := errors.New("forbidden")
	l := &fakeLister{
		failing: map[string]error{"vendor=crunchydata": listErr},
		pods:    map[string][]string{"postgres-operator.crunchydata.com/cluster": {"hippo-0"}},
	}

	pods, gen, err := WorkloadPods.Resolve(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, "v5", gen)
	assert.Equal(t, []string{"hippo-0"}, pods)

	l.pods = nil
	_, _, err = WorkloadPods.Resolve(context.Background(), l)
	assert.ErrorIs(t, err, ErrNoPods)
	assert.ErrorIs(t, err, listErr)
}

func TestNewChain_PanicsOnBadSelector(t *testing.T) {
	assert.Panics(t, func() { NewChain("bad", [2]string{"v4", "a in (b"}) })
}

func TestDiscoverer_AllPodsUnion(t *testing.T) {
	l := &fakeLister{pods: map[string][]string{
		"vendor=crunchydata":    {"hippo-0", "hippo-1", "postgres-operator-7d9"},
		"name=postgres-operator": {"postgres-operator-7d9"},
	}}

	pods, err := New(l).AllPods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"hippo-0", "hippo-1", "postgres-operator-7d9"}, pods)
}

func TestDiscoverer_AllPodsOperatorOnly(t *testing.T) {
	l := &fakeLister{pods: map[string][]string{
		"postgres-operator.crunchydata.com/control-plane": {"pgo-5f6"},
	}}

	pods, err := New(l).AllPods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"pgo-5f6"}, pods)
}

func TestDiscoverer_AllPodsNothing(t *testing.T) {
	_, err := New(&fakeLister{}).AllPods(context.Background())
	assert.ErrorIs(t, err, ErrNoPods)
}

func TestDiscoverer_Containers(t *testing.T) {
	l := &fakeLister{containers: map[string][]string{
		"hippo-0": {"database", "pgbackrest"},
		"empty-0": {},
	}}
	d := New(l)

	names, err := d.Containers(context.Background(), "hippo-0")
	require.NoError(t, err)
	assert.Equal(t, []string{"database", "pgbackrest"}, names)

	_, err = d.Containers(context.Background(), "empty-0")
	assert.ErrorIs(t, err, ErrNoContainers)

	_, err = d.Containers(context.Background(), "missing-0")
	assert.ErrorContains(t, err, "failed to list containers of missing-0")
}
