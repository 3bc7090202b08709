package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdump/internal/executor"
)

func TestRecorder_Commands(t *testing.T) {
	r := NewRecorder()

	r.ObserveCommand(executor.Result{Duration: time.Second})
	r.ObserveCommand(executor.Result{ExitCode: 1})
	r.ObserveCommand(executor.Result{ExitCode: -1, TimedOut: true, Duration: time.Minute})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.commands.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.commands.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.commands.WithLabelValues("timeout")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.commandDuration))
}

func TestRecorder_StepsAndWarnings(t *testing.T) {
	r := NewRecorder()

	r.ObserveStep("events", nil)
	r.ObserveStep("pod logs", errors.New("no pods"))
	r.Warn()
	r.Warn()

	assert.Equal(t, 1.0, testutil.ToFloat64(r.steps.WithLabelValues("events", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.steps.WithLabelValues("pod logs", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.warnings))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveStep("events", nil)

	path := filepath.Join(t.TempDir(), "collection-metrics.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `supportdump_steps_total{result="ok",step="events"} 1`)
}
