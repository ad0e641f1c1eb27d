package term

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-d/course-bidding/internal/catalog"
	"github.com/llm-d/course-bidding/internal/logging/logtest"
	"github.com/llm-d/course-bidding/internal/metrics"
	"github.com/llm-d/course-bidding/pkg/config"
	"github.com/llm-d/course-bidding/pkg/core"
	"github.com/llm-d/course-bidding/pkg/solver"
)

func smallConfig() config.TermConfig {
	cfg := config.Default()
	cfg.NumStudents = 12
	cfg.PointsPerStudent = 20
	cfg.NumCoursesOffered = 3
	cfg.MinClassSize = 2
	cfg.MaxClassSize = 8
	cfg.MaxClassesPerStudent = 2
	cfg.Seed = 7
	cfg.SolverTimeLimit = 20 * time.Second
	return cfg
}

func testContext(t *testing.T) context.Context {
	return logr.NewContext(context.Background(), logtest.New(t))
}

func TestNew_CollectsEveryBid(t *testing.T) {
	ctx := testContext(t)
	term, err := New(ctx, smallConfig())
	require.NoError(t, err)

	assert.Len(t, term.Offered(), 3)
	assert.Equal(t, 12, term.Roster().Len())
	assert.True(t, term.Roster().IsComplete())
	assert.False(t, term.IsFilled())
	assert.Nil(t, term.Assignment())
	assert.Contains(t, term.String(), "students=12")

	for _, s := range term.Roster().Students() {
		assert.Equal(t, core.StateBid, s.State())
		assert.Equal(t, 20, s.Bids().Total(), "student %d", s.ID())
		assert.True(t, s.Bids().Covers(term.Offered()))
	}
	for _, code := range term.Offered() {
		_, ok := term.Catalog().Title(code)
		assert.True(t, ok, code)
	}
}

func TestNew_IsReproducibleForASeed(t *testing.T) {
	ctx := testContext(t)
	a, err := New(ctx, smallConfig())
	require.NoError(t, err)
	b, err := New(ctx, smallConfig())
	require.NoError(t, err)

	assert.Equal(t, a.Offered(), b.Offered())
	assert.NotEqual(t, a.ID(), b.ID())

	ma, err := a.Roster().BidMatrix()
	require.NoError(t, err)
	mb, err := b.Roster().BidMatrix()
	require.NoError(t, err)
	if diff := cmp.Diff(ma, mb); diff != "" {
		t.Errorf("bid matrices differ (-a +b):\n%s", diff)
	}
}

func TestEnroll(t *testing.T) {
	ctx := testContext(t)
	cfg := smallConfig()
	term, err := New(ctx, cfg)
	require.NoError(t, err)

	a, err := term.Enroll(ctx)
	require.NoError(t, err)
	assert.Contains(t, []string{solver.StatusOptimal.String(), solver.StatusFeasible.String()}, a.Status)
	assert.True(t, term.IsFilled())
	assert.Same(t, a, term.Assignment())

	byCourse := term.CourseEnrollment()
	perStudent := map[int]int{}
	for _, code := range term.Offered() {
		ids := byCourse[code]
		assert.GreaterOrEqual(t, len(ids), cfg.MinClassSize, code)
		assert.LessOrEqual(t, len(ids), cfg.MaxClassSize, code)
		for _, id := range ids {
			perStudent[id]++
			s, err := term.FetchStudent(id)
			require.NoError(t, err)
			assert.Contains(t, s.Enrolled(), code)
		}
	}

	objective := 0
	for _, s := range term.Roster().Students() {
		assert.Equal(t, core.StateEnrolled, s.State())
		n := perStudent[s.ID()]
		assert.GreaterOrEqual(t, n, 1, "student %d", s.ID())
		assert.LessOrEqual(t, n, cfg.MaxClassesPerStudent, "student %d", s.ID())
		for _, c := range s.Enrolled() {
			objective += s.Bids()[c]
		}
	}
	assert.Equal(t, objective, a.Objective)

	_, err = term.Enroll(ctx)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)

	report := term.Report()
	assert.Equal(t, term.ID().String(), report.TermID)
	assert.Equal(t, a.Objective, report.Objective)
	assert.True(t, report.Filled)
	assert.Empty(t, report.Unassigned)
	require.Len(t, report.Courses, 3)
	total := 0
	for _, c := range report.Courses {
		assert.NotEmpty(t, c.Title)
		assert.Equal(t, byCourse[c.Code], c.Students)
		total += c.BidPoints
	}
	assert.Equal(t, cfg.NumStudents*cfg.PointsPerStudent, total)
}

func TestEnroll_BackendsAgree(t *testing.T) {
	ctx := testContext(t)
	cfg := smallConfig()

	viaFlow, err := New(ctx, cfg)
	require.NoError(t, err)
	a, err := viaFlow.Enroll(ctx)
	require.NoError(t, err)

	cfg.SolverBackend = config.SolverBackendMILP
	viaBranch, err := New(ctx, cfg)
	require.NoError(t, err)
	b, err := viaBranch.Enroll(ctx)
	require.NoError(t, err)

	assert.Equal(t, a.Objective, b.Objective)
}

func TestEnroll_InfeasibleLeavesStudentsBid(t *testing.T) {
	ctx := testContext(t)
	cfg := smallConfig()
	cfg.MaxClassSize = 3 // 12 students cannot fit in 3 courses of 3

	term, err := New(ctx, cfg)
	require.NoError(t, err)

	_, err = term.Enroll(ctx)
	var infeasible *solver.InfeasibleAssignmentError
	require.True(t, errors.As(err, &infeasible), "got %v", err)
	assert.Equal(t, 12, infeasible.NumStudents)
	assert.Equal(t, 3, infeasible.MaxClassSize)

	assert.False(t, term.IsFilled())
	assert.Nil(t, term.Assignment())
	for _, s := range term.Roster().Students() {
		assert.Equal(t, core.StateBid, s.State())
		assert.Empty(t, s.Enrolled())
	}
	assert.Len(t, term.Report().Unassigned, 12)
}

func TestEnroll_RecordsMetrics(t *testing.T) {
	ctx := testContext(t)
	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(reg)
	require.NoError(t, err)

	cfg := smallConfig()
	term, err := New(ctx, cfg, WithRecorder(recorder))
	require.NoError(t, err)
	a, err := term.Enroll(ctx)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch mf.GetName() {
			case "coursebid_bid_points_total":
				got["bids"] += m.GetCounter().GetValue()
			case "coursebid_course_enrollment":
				got["enrolled"] += m.GetGauge().GetValue()
			case "coursebid_solver_objective":
				got["objective"] = m.GetGauge().GetValue()
			case "coursebid_solver_solves_total":
				got["solves"] += m.GetCounter().GetValue()
			}
		}
	}
	enrolled := 0
	for _, ids := range term.CourseEnrollment() {
		enrolled += len(ids)
	}
	assert.Equal(t, float64(cfg.NumStudents*cfg.PointsPerStudent), got["bids"])
	assert.Equal(t, float64(enrolled), got["enrolled"])
	assert.InDelta(t, float64(a.Objective), got["objective"], 1e-6)
	assert.Equal(t, float64(1), got["solves"])
	assert.Equal(t, 3, testutil.CollectAndCount(reg, "coursebid_course_enrollment"))
}

func TestNew_CatalogSources(t *testing.T) {
	ctx := testContext(t)

	custom, err := catalog.New(map[string]string{"X1": "Topology", "X2": "Set Theory", "X3": "Graph Theory"})
	require.NoError(t, err)
	term, err := New(ctx, smallConfig(), WithCatalog(custom))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"X1", "X2", "X3"}, term.Offered())

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Y1: Optics\nY2: Acoustics\nY3: Mechanics\nY4: Fluids\n"), 0o600))
	cfg := smallConfig()
	cfg.CatalogFile = path
	term, err = New(ctx, cfg, WithCatalog(custom))
	require.NoError(t, err)
	for _, code := range term.Offered() {
		assert.Contains(t, []string{"Y1", "Y2", "Y3", "Y4"}, code)
	}

	cfg.NumCoursesOffered = 5
	_, err = New(ctx, cfg)
	assert.ErrorContains(t, err, "catalog size")
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.NumStudents = 0
	cfg.BidFraction = 2
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorContains(t, err, "numStudents")
	assert.ErrorContains(t, err, "bidFraction")
}

func TestOfferings(t *testing.T) {
	term, err := New(testContext(t), smallConfig())
	require.NoError(t, err)

	offerings := term.Offerings()
	require.Len(t, offerings, 3)
	for i, o := range offerings {
		assert.Equal(t, term.Offered()[i], o.Code)
		assert.NotEmpty(t, o.Title)
		assert.Equal(t, 2, o.MinSeats)
		assert.Equal(t, 8, o.MaxSeats)
	}
	assert.Equal(t, "2-8", term.Report().Courses[0].Seats)
}
