package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dumperrors "supportdump/internal/errors"
	"supportdump/internal/kubecli"
)

func validOptions(dest string) Options {
	o := DefaultOptions()
	o.Namespace = "pgdb"
	o.Destination = dest
	return o
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr string
	}{
		{name: "valid", mutate: func(*Options) {}},
		{name: "missing namespace", mutate: func(o *Options) { o.Namespace = "" }, wantErr: "namespace is required"},
		{name: "bad namespace", mutate: func(o *Options) { o.Namespace = "PG_DB" }, wantErr: "invalid namespace"},
		{name: "missing destination", mutate: func(o *Options) { o.Destination = " " }, wantErr: "destination directory is required"},
		{name: "zero pg logs", mutate: func(o *Options) { o.PGLogCount = 0 }, wantErr: "pg log count"},
		{name: "zero timeout", mutate: func(o *Options) { o.ExecTimeout = 0 }, wantErr: "exec timeout"},
		{name: "unsupported cli", mutate: func(o *Options) { o.Backend = "helm" }, wantErr: "unsupported cluster CLI"},
		{name: "secret resource", mutate: func(o *Options) { o.ExtraResources = []string{"Secrets"} }, wantErr: "secrets never leave"},
		{name: "oc backend", mutate: func(o *Options) { o.Backend = "oc" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOptions("/tmp")
			tt.mutate(&o)
			err := o.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, dumperrors.ErrCodeInvalidConfig, dumperrors.CodeOf(err))
		})
	}
}

func TestOptions_ValidateTarget(t *testing.T) {
	o := DefaultOptions()
	o.Namespace = "pgdb"
	assert.NoError(t, o.ValidateTarget())
	assert.Error(t, o.Validate(), "collection still needs a destination")

	o.Backend = "helm"
	err := o.ValidateTarget()
	require.Error(t, err)
	assert.Equal(t, dumperrors.ErrCodeInvalidConfig, dumperrors.CodeOf(err))

	o = DefaultOptions()
	assert.ErrorContains(t, o.ValidateTarget(), "namespace is required")
}

func TestIsSecretKind(t *testing.T) {
	for _, k := range []string{"secret", "Secrets", "secrets.v1", " secret "} {
		assert.True(t, IsSecretKind(k), k)
	}
	for _, k := range []string{"configmap", "secretstores", "pgclusters"} {
		assert.False(t, IsSecretKind(k), k)
	}
}

func TestNewRunContext(t *testing.T) {
	dest := t.TempDir()
	now := time.Date(2026, 10, 17, 9, 5, 30, 0, time.UTC)

	opts := validOptions(dest)
	opts.ExtraResources = []string{"pgupgrades"}

	rc, err := NewRunContext(opts, kubecli.OC, now)
	require.NoError(t, err)

	assert.Equal(t, "support_dump_20261017-090530", rc.DirName)
	assert.Equal(t, filepath.Join(dest, rc.DirName), rc.OutputDir)
	assert.Equal(t, kubecli.OC, rc.Backend)
	assert.Equal(t, DefaultPGLogCount, rc.PGLogCount)
	assert.Equal(t, DefaultExecTimeout, rc.ExecTimeout)
	assert.Equal(t, now, rc.StartedAt)
	_, err = uuid.Parse(rc.RunID)
	assert.NoError(t, err)

	opts.ExtraResources[0] = "mutated"
	assert.Equal(t, []string{"pgupgrades"}, rc.ExtraResources)
}

func TestNewRunContext_RelativeDestination(t *testing.T) {
	rc, err := NewRunContext(validOptions("dumps"), kubecli.Kubectl, time.Now())
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(rc.Destination))
}

func TestNewRunContext_Invalid(t *testing.T) {
	_, err := NewRunContext(Options{}, kubecli.Kubectl, time.Now())
	assert.Equal(t, dumperrors.ErrCodeInvalidConfig, dumperrors.CodeOf(err))
}
