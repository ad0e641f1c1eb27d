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

package term

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/llm-d/course-bidding/internal/bidding"
	"github.com/llm-d/course-bidding/internal/catalog"
	"github.com/llm-d/course-bidding/internal/enrollment"
	"github.com/llm-d/course-bidding/internal/metrics"
	"github.com/llm-d/course-bidding/internal/roster"
	"github.com/llm-d/course-bidding/pkg/config"
	"github.com/llm-d/course-bidding/pkg/core"
	"github.com/llm-d/course-bidding/pkg/solver"
	"github.com/llm-d/course-bidding/pkg/solver/flow"
	"github.com/llm-d/course-bidding/pkg/solver/milp"
)

// ErrAlreadyEnrolled is returned by a second call to Enroll.
var ErrAlreadyEnrolled = errors.New("term already enrolled")

// catalogStream is the PCG stream used for the course draw; student streams
// use the student id, which starts at 1.
const catalogStream = 0

type options struct {
	backend  solver.Backend
	catalog  *catalog.Catalog
	recorder *metrics.Recorder
}

// Option configures a Term.
type Option func(*options)

// WithBackend replaces the backend named by the config.
func WithBackend(b solver.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithCatalog sets the catalog to draw from. A CatalogFile in the config takes precedence.
func WithCatalog(c *catalog.Catalog) Option {
	return func(o *options) {
		o.catalog = c
	}
}

// WithRecorder reports bids, solves and enrollment to r.
func WithRecorder(r *metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// Term is one round of bidding and enrollment. It is not safe for concurrent use.
type Term struct {
	id         uuid.UUID
	config     config.TermConfig
	catalog    *catalog.Catalog
	offered    []string
	roster     *roster.Roster
	solver     *solver.AssignmentSolver
	registry   *enrollment.Registry
	recorder   *metrics.Recorder
	assignment *core.Assignment
}

// New draws the offered courses and collects every student's bid.
func New(ctx context.Context, cfg config.TermConfig, opts ...Option) (*Term, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid term config: %w", err)
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	cat := o.catalog
	if cfg.CatalogFile != "" {
		loaded, err := catalog.Load(cfg.CatalogFile)
		if err != nil {
			return nil, err
		}
		cat = loaded
	}
	if cat == nil {
		cat = catalog.Default()
	}
	if err := cfg.ValidateCatalogSize(cat.Len()); err != nil {
		return nil, fmt.Errorf("invalid term config: %w", err)
	}

	backend := o.backend
	if backend == nil {
		backend = newBackend(cfg)
	}
	solverOpts := []solver.Option{}
	if o.recorder != nil {
		solverOpts = append(solverOpts, solver.WithObserver(o.recorder))
	}
	assignmentSolver, err := solver.NewAssignmentSolver(backend, solver.Params{
		MinClassSize:         cfg.MinClassSize,
		MaxClassSize:         cfg.MaxClassSize,
		MaxClassesPerStudent: cfg.MaxClassesPerStudent,
		TimeLimit:            cfg.SolverTimeLimit,
	}, solverOpts...)
	if err != nil {
		return nil, err
	}

	engine, err := bidding.NewEngine(cfg.BidFraction)
	if err != nil {
		return nil, err
	}
	r, err := roster.New(roster.Config{
		NumStudents: cfg.NumStudents,
		Budget:      cfg.PointsPerStudent,
		Seed:        cfg.Seed,
		Parallelism: cfg.BidParallelism,
	}, engine, core.NewIDGenerator())
	if err != nil {
		return nil, err
	}

	t := &Term{
		id:       uuid.New(),
		config:   cfg,
		catalog:  cat,
		roster:   r,
		solver:   assignmentSolver,
		recorder: o.recorder,
	}
	ctx = t.withLogger(ctx)
	logger := logr.FromContextOrDiscard(ctx)

	t.offered, err = cat.Draw(cfg.NumCoursesOffered, rand.New(rand.NewPCG(cfg.Seed, catalogStream)))
	if err != nil {
		return nil, err
	}
	t.registry = enrollment.NewRegistry(r, t.offered)
	logger.Info("Offering courses", "courses", t.offered, "students", cfg.NumStudents, "points", cfg.PointsPerStudent)

	if err := r.CollectBids(ctx, t.offered); err != nil {
		return nil, fmt.Errorf("collecting bids: %w", err)
	}
	if t.recorder != nil {
		m, err := r.BidMatrix()
		if err != nil {
			return nil, err
		}
		t.recorder.RecordBids(m.Courses, columnTotals(m))
	}
	return t, nil
}

func newBackend(cfg config.TermConfig) solver.Backend {
	if cfg.SolverBackend == config.SolverBackendMILP {
		return &milp.Backend{MaxNodes: cfg.SolverMaxNodes}
	}
	return flow.NewBackend()
}

func (t *Term) withLogger(ctx context.Context) context.Context {
	return logr.NewContext(ctx, logr.FromContextOrDiscard(ctx).WithValues("term", t.id.String()))
}

// Enroll solves the assignment and finalizes the enrollment. Nothing is
// enrolled when the solve fails.
func (t *Term) Enroll(ctx context.Context) (*core.Assignment, error) {
	if t.assignment != nil {
		return nil, ErrAlreadyEnrolled
	}
	ctx = t.withLogger(ctx)

	m, err := t.roster.BidMatrix()
	if err != nil {
		return nil, err
	}
	a, err := t.solver.Solve(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("term %s: %w", t.id, err)
	}
	if err := t.registry.Finalize(ctx, a); err != nil {
		return nil, fmt.Errorf("term %s: %w", t.id, err)
	}
	t.assignment = a
	if t.recorder != nil {
		t.recorder.RecordEnrollment(t.registry.EnrollmentByCourse())
	}
	return a, nil
}

// ID returns the identifier used in logs.
func (t *Term) ID() uuid.UUID {
	return t.id
}

// Config returns the validated configuration.
func (t *Term) Config() config.TermConfig {
	return t.config
}

// Offered returns the offered course codes in draw order.
func (t *Term) Offered() []string {
	return append([]string(nil), t.offered...)
}

// Offerings returns the offered courses with their titles and seat bounds.
func (t *Term) Offerings() []core.CourseOffering {
	out := make([]core.CourseOffering, 0, len(t.offered))
	for _, code := range t.offered {
		title, _ := t.catalog.Title(code)
		out = append(out, core.CourseOffering{
			Code:     code,
			Title:    title,
			MinSeats: t.config.MinClassSize,
			MaxSeats: t.config.MaxClassSize,
		})
	}
	return out
}

// Catalog returns the catalog the courses were drawn from.
func (t *Term) Catalog() *catalog.Catalog {
	return t.catalog
}

// Roster returns the students of the term.
func (t *Term) Roster() *roster.Roster {
	return t.roster
}

// Assignment returns the accepted assignment, or nil before Enroll succeeds.
func (t *Term) Assignment() *core.Assignment {
	return t.assignment
}

// IsFilled reports whether every offered course has at least one student.
func (t *Term) IsFilled() bool {
	return t.registry.IsFilled()
}

// CourseEnrollment maps each offered course to its enrolled student ids.
func (t *Term) CourseEnrollment() map[string][]int {
	return t.registry.EnrollmentByCourse()
}

// FetchStudent looks up a student by id.
func (t *Term) FetchStudent(id int) (*core.Student, error) {
	return t.registry.Fetch(id)
}

func (t *Term) String() string {
	return fmt.Sprintf("Term(id=%s, students=%d, courses=%d, filled=%t)",
		t.id, t.roster.Len(), len(t.offered), t.IsFilled())
}

func columnTotals(m *core.BidMatrix) []int {
	totals := make([]int, m.NumCourses())
	for _, row := range m.Bids {
		for j, b := range row {
			totals[j] += b
		}
	}
	return totals
}
