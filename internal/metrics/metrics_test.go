package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-d/course-bidding/pkg/solver"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.ObserveSolve(solver.StatusOptimal, 120*time.Millisecond, 27)
	r.ObserveSolve(solver.StatusInfeasible, 10*time.Millisecond, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.solves.WithLabelValues("Optimal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.solves.WithLabelValues("Infeasible")))
	assert.Equal(t, 27.0, testutil.ToFloat64(r.objective), "failed solves keep the last objective")
	assert.Equal(t, 2, testutil.CollectAndCount(r.solveDuration))

	r.RecordBids([]string{"A", "B"}, []int{30, 20})
	r.RecordBids([]string{"A", "B"}, []int{5, 0})
	assert.Equal(t, 35.0, testutil.ToFloat64(r.bids.WithLabelValues("A")))

	r.RecordEnrollment(map[string][]int{"A": {1, 2, 3}, "B": {}})
	assert.Equal(t, 3.0, testutil.ToFloat64(r.enrolled.WithLabelValues("A")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.enrolled.WithLabelValues("B")))

	_, err = reg.Gather()
	assert.NoError(t, err)
}

func TestNewRecorder_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg)
	require.NoError(t, err)
	_, err = NewRecorder(reg)
	assert.Error(t, err)
}
