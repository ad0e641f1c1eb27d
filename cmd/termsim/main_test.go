package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/llm-d/course-bidding/internal/term"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand_PrintsReport(t *testing.T) {
	out, err := execute(t,
		"--students", "10", "--points", "30", "--courses", "3",
		"--min-class-size", "1", "--max-class-size", "10", "--max-classes-per-student", "2",
		"--seed", "3", "--print-metrics")
	require.NoError(t, err, out)

	var report term.Report
	dec := yaml.NewDecoder(bytes.NewBufferString(out))
	require.NoError(t, dec.Decode(&report))
	assert.Equal(t, 10, report.Students)
	assert.True(t, report.Filled)
	assert.Len(t, report.Courses, 3)
	assert.Empty(t, report.Unassigned)

	assert.Contains(t, out, "# TYPE coursebid_course_enrollment gauge")
	assert.Contains(t, out, "coursebid_solver_solves_total{status=\"Optimal\"} 1")
}

func TestRootCommand_ConfigFileAndFlagOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "term.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
numStudents: 6
pointsPerStudent: 12
numCoursesOffered: 2
minClassSize: 1
maxClassSize: 6
maxClassesPerStudent: 1
seed: 11
`), 0o600))

	out, err := execute(t, "--config", path, "--students", "4")
	require.NoError(t, err, out)

	var report term.Report
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Equal(t, 4, report.Students)
	assert.Len(t, report.Courses, 2)
	enrolled := 0
	for _, c := range report.Courses {
		enrolled += len(c.Students)
	}
	assert.Equal(t, 4, enrolled)
}

func TestRootCommand_Infeasible(t *testing.T) {
	_, err := execute(t, "--students", "20", "--courses", "2", "--max-class-size", "5", "--min-class-size", "1")
	assert.ErrorContains(t, err, "no feasible assignment")
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	_, err := execute(t, "--bid-fraction", "0")
	assert.ErrorContains(t, err, "bidFraction")
}
