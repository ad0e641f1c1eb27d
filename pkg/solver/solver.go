/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/llm-d/course-bidding/internal/logging"
	"github.com/llm-d/course-bidding/pkg/core"
)

const (
	// SelectionTolerance is the smallest variable value treated as selected.
	// Backends return floating point values even for binary variables.
	SelectionTolerance = 0.99

	// DefaultTimeLimit bounds a single solve when Params.TimeLimit is zero.
	DefaultTimeLimit = 30 * time.Second

	modelName = "course-assignment"
)

// Params holds the capacity constants of the program.
type Params struct {
	MinClassSize         int
	MaxClassSize         int
	MaxClassesPerStudent int
	// TimeLimit is the wall-clock budget of one solve; zero means DefaultTimeLimit.
	TimeLimit time.Duration
}

// Validate checks the capacity constants.
func (p Params) Validate() error {
	if p.MinClassSize < 1 {
		return fmt.Errorf("minClassSize must be >= 1, got %d", p.MinClassSize)
	}
	if p.MaxClassSize < p.MinClassSize {
		return fmt.Errorf("maxClassSize (%d) must be >= minClassSize (%d)", p.MaxClassSize, p.MinClassSize)
	}
	if p.MaxClassesPerStudent < 1 {
		return fmt.Errorf("maxClassesPerStudent must be >= 1, got %d", p.MaxClassesPerStudent)
	}
	if p.TimeLimit < 0 {
		return fmt.Errorf("timeLimit must be >= 0, got %s", p.TimeLimit)
	}
	return nil
}

// Observer receives the outcome of every backend call.
type Observer interface {
	ObserveSolve(status Status, elapsed time.Duration, objective float64)
}

// Option configures an AssignmentSolver.
type Option func(*AssignmentSolver)

// WithObserver reports solve outcomes to o.
func WithObserver(o Observer) Option {
	return func(s *AssignmentSolver) {
		s.observer = o
	}
}

// WithClock replaces the clock used to time solves.
func WithClock(c clock.PassiveClock) Option {
	return func(s *AssignmentSolver) {
		s.clock = c
	}
}

// AssignmentSolver formulates and solves the course assignment program.
type AssignmentSolver struct {
	backend  Backend
	params   Params
	observer Observer
	clock    clock.PassiveClock
}

// NewAssignmentSolver creates a solver for the given capacity constants.
func NewAssignmentSolver(backend Backend, params Params, opts ...Option) (*AssignmentSolver, error) {
	if backend == nil {
		return nil, fmt.Errorf("solver backend cannot be nil")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid solver params: %w", err)
	}
	if params.TimeLimit == 0 {
		params.TimeLimit = DefaultTimeLimit
	}
	s := &AssignmentSolver{
		backend: backend,
		params:  params,
		clock:   clock.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Params returns the effective parameters.
func (s *AssignmentSolver) Params() Params {
	return s.params
}

// Solve computes the assignment maximizing total selected bids.
func (s *AssignmentSolver) Solve(ctx context.Context, m *core.BidMatrix) (*core.Assignment, error) {
	logger := logr.FromContextOrDiscard(ctx)

	if m == nil || m.NumStudents() == 0 || m.NumCourses() == 0 {
		return nil, fmt.Errorf("bid matrix must have at least one student and one course")
	}
	numStudents, numCourses := m.NumStudents(), m.NumCourses()

	if reason := s.capacityConflict(numStudents, numCourses); reason != "" {
		err := s.infeasible(numStudents, numCourses, reason)
		logger.Info("Capacity configuration is infeasible", "reason", reason)
		return nil, err
	}

	model, vars, err := s.formulate(m)
	if err != nil {
		return nil, fmt.Errorf("formulating course assignment: %w", err)
	}
	logger.V(logging.DEBUG).Info("Formulated course assignment",
		"variables", len(vars),
		"constraints", 2*(numStudents+numCourses),
		"timeLimit", s.params.TimeLimit)

	solveCtx, cancel := context.WithTimeout(ctx, s.params.TimeLimit)
	defer cancel()

	start := s.clock.Now()
	sol, err := model.Optimize(solveCtx)
	elapsed := s.clock.Since(start)
	if err != nil {
		return nil, fmt.Errorf("optimizing course assignment: %w", err)
	}
	if s.observer != nil {
		s.observer.ObserveSolve(sol.Status, elapsed, sol.Objective)
	}

	switch sol.Status {
	case StatusOptimal:
		logger.Info("Course assignment solved", "status", sol.Status, "objective", sol.Objective, "elapsed", elapsed)
	case StatusFeasible:
		logger.Info("Course assignment solved without optimality proof",
			"status", sol.Status,
			"objective", sol.Objective,
			"bestPossible", sol.Bound,
			"gap", sol.Bound-sol.Objective,
			"elapsed", elapsed)
	case StatusNoSolutionFound:
		return nil, &SolverTimeoutError{Bound: sol.Bound, TimeLimit: s.params.TimeLimit}
	case StatusInfeasible:
		return nil, s.infeasible(numStudents, numCourses, "reported by solver backend")
	default:
		return nil, &UnknownSolverStatusError{Status: sol.Status}
	}

	if len(sol.Values) != len(vars) {
		return nil, fmt.Errorf("solver returned %d values for %d variables", len(sol.Values), len(vars))
	}

	assignment := core.NewAssignment(m)
	for i := range numStudents {
		for j := range numCourses {
			assignment.Selected[i][j] = sol.Values[vars[i*numCourses+j]] >= SelectionTolerance
		}
	}
	if reason := s.violation(assignment); reason != "" {
		return nil, &InvalidSolutionError{Status: sol.Status, Reason: reason}
	}
	score, err := assignment.Score(m)
	if err != nil {
		return nil, err
	}
	assignment.Objective = score
	assignment.Status = sol.Status.String()
	assignment.Bound = sol.Bound
	return assignment, nil
}

// formulate builds the program; variable i*numCourses+j is x[i][j].
func (s *AssignmentSolver) formulate(m *core.BidMatrix) (Model, []Var, error) {
	numStudents, numCourses := m.NumStudents(), m.NumCourses()
	model := s.backend.NewModel(modelName)
	vars := model.AddBinaryVars(numStudents * numCourses)
	if len(vars) != numStudents*numCourses {
		return nil, nil, fmt.Errorf("backend created %d variables, want %d", len(vars), numStudents*numCourses)
	}

	objective := make([]Term, 0, len(vars))
	for i := range numStudents {
		for j := range numCourses {
			objective = append(objective, Term{Var: vars[i*numCourses+j], Coef: float64(m.Bids[i][j])})
		}
	}
	if err := model.SetObjective(objective, true); err != nil {
		return nil, nil, err
	}

	maxPerStudent := float64(min(s.params.MaxClassesPerStudent, numCourses))
	for i := range numStudents {
		row := make([]Term, numCourses)
		for j := range numCourses {
			row[j] = Term{Var: vars[i*numCourses+j], Coef: 1}
		}
		if err := model.AddConstraint(row, LessOrEqual, maxPerStudent); err != nil {
			return nil, nil, err
		}
		if err := model.AddConstraint(row, GreaterOrEqual, 1); err != nil {
			return nil, nil, err
		}
	}

	for j := range numCourses {
		col := make([]Term, numStudents)
		for i := range numStudents {
			col[i] = Term{Var: vars[i*numCourses+j], Coef: 1}
		}
		if err := model.AddConstraint(col, LessOrEqual, float64(s.params.MaxClassSize)); err != nil {
			return nil, nil, err
		}
		if err := model.AddConstraint(col, GreaterOrEqual, float64(s.params.MinClassSize)); err != nil {
			return nil, nil, err
		}
	}
	return model, vars, nil
}

// capacityConflict returns a non-empty reason when seat counts alone rule out
// any assignment.
func (s *AssignmentSolver) capacityConflict(numStudents, numCourses int) string {
	maxPerStudent := min(s.params.MaxClassesPerStudent, numCourses)
	if need, have := s.params.MinClassSize*numCourses, numStudents*maxPerStudent; need > have {
		return fmt.Sprintf("course minimums need %d seats but students can fill at most %d", need, have)
	}
	if need, have := numStudents, s.params.MaxClassSize*numCourses; need > have {
		return fmt.Sprintf("every student needs a seat but courses offer at most %d for %d students", have, need)
	}
	return ""
}

// violation returns a non-empty reason when the selected cells break a
// student or course bound.
func (s *AssignmentSolver) violation(a *core.Assignment) string {
	maxPerStudent := min(s.params.MaxClassesPerStudent, len(a.Courses))
	for i, id := range a.StudentIDs {
		if n := a.StudentCount(i); n < 1 || n > maxPerStudent {
			return fmt.Sprintf("student %d holds %d courses, want 1..%d", id, n, maxPerStudent)
		}
	}
	for j, c := range a.Courses {
		if n := a.CourseCount(j); n < s.params.MinClassSize || n > s.params.MaxClassSize {
			return fmt.Sprintf("course %s holds %d students, want %d..%d", c, n, s.params.MinClassSize, s.params.MaxClassSize)
		}
	}
	return ""
}

func (s *AssignmentSolver) infeasible(numStudents, numCourses int, reason string) *InfeasibleAssignmentError {
	return &InfeasibleAssignmentError{
		NumStudents:          numStudents,
		NumCourses:           numCourses,
		MinClassSize:         s.params.MinClassSize,
		MaxClassSize:         s.params.MaxClassSize,
		MaxClassesPerStudent: s.params.MaxClassesPerStudent,
		Reason:               reason,
	}
}
