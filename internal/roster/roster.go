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

// Package roster holds the students of a term and gathers their bids into a
// bid matrix for the assignment solver.
package roster

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/llm-d/course-bidding/internal/bidding"
	"github.com/llm-d/course-bidding/internal/logging"
	"github.com/llm-d/course-bidding/pkg/core"
)

// Config holds the settings for a Roster.
type Config struct {
	// NumStudents is the population size; must be at least 1.
	NumStudents int
	// Budget is the number of points every student receives.
	Budget int
	// Seed selects the random streams students bid with.
	Seed uint64
	// Parallelism bounds the number of students bidding at once; values
	// below 2 bid sequentially in id order.
	Parallelism int
}

// Roster owns every student of a term. Students are never removed.
type Roster struct {
	config   Config
	engine   *bidding.Engine
	ids      *core.IDGenerator
	students map[int]*core.Student
	order    []int
	courses  []string
}

// New creates the students, taking their ids from ids.
func New(config Config, engine *bidding.Engine, ids *core.IDGenerator) (*Roster, error) {
	if config.NumStudents < 1 {
		return nil, fmt.Errorf("roster needs at least one student, got %d", config.NumStudents)
	}
	if config.Budget < 0 {
		return nil, fmt.Errorf("student budget must be >= 0, got %d", config.Budget)
	}
	if engine == nil {
		return nil, fmt.Errorf("bidding engine cannot be nil")
	}
	if ids == nil {
		ids = core.NewIDGenerator()
	}
	r := &Roster{
		config:   config,
		engine:   engine,
		ids:      ids,
		students: make(map[int]*core.Student, config.NumStudents),
		order:    make([]int, 0, config.NumStudents),
	}
	for range config.NumStudents {
		s := core.NewStudent(ids.Next(), config.Budget)
		r.students[s.ID()] = s
		r.order = append(r.order, s.ID())
	}
	// Students and BidMatrix rely on ascending ids
	slices.Sort(r.order)
	return r, nil
}

// Len returns the number of students.
func (r *Roster) Len() int {
	return len(r.order)
}

// Students returns the students in ascending id order.
func (r *Roster) Students() []*core.Student {
	out := make([]*core.Student, len(r.order))
	for i, id := range r.order {
		out[i] = r.students[id]
	}
	return out
}

// Get looks up a student by id.
func (r *Roster) Get(id int) (*core.Student, error) {
	s, ok := r.students[id]
	if !ok {
		return nil, fmt.Errorf("roster lookup of id %d: %w", id, core.ErrStudentNotFound)
	}
	return s, nil
}

// Courses returns the course order established by CollectBids.
func (r *Roster) Courses() []string {
	return slices.Clone(r.courses)
}

// IsComplete reports whether every student has bid.
func (r *Roster) IsComplete() bool {
	return len(r.missingBids()) == 0
}

// CollectBids asks every student to bid on offered. The order of offered
// becomes the column order of BidMatrix. Once any student has bid, further
// calls fail with an AlreadyBidError and change nothing.
func (r *Roster) CollectBids(ctx context.Context, offered []string) error {
	logger := logr.FromContextOrDiscard(ctx)

	if len(offered) == 0 {
		return fmt.Errorf("cannot collect bids without offered courses")
	}
	// a rejected call leaves the roster and its column order untouched
	for _, s := range r.Students() {
		if s.HasBid() {
			return &core.AlreadyBidError{StudentID: s.ID()}
		}
	}
	if r.courses != nil && !slices.Equal(r.courses, offered) {
		return fmt.Errorf("bids were requested for courses %v, not %v", r.courses, offered)
	}
	r.courses = slices.Clone(offered)

	if r.config.Parallelism < 2 {
		for _, s := range r.Students() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.bid(s); err != nil {
				return err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.config.Parallelism)
		for _, s := range r.Students() {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return r.bid(s)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	logger.V(logging.DEBUG).Info("Collected bids",
		"students", r.Len(),
		"courses", len(r.courses),
		"parallelism", r.config.Parallelism)
	return nil
}

func (r *Roster) bid(s *core.Student) error {
	_, err := r.engine.PlaceBid(s, r.courses, bidding.StreamFor(r.config.Seed, s.ID()))
	return err
}

// BidMatrix returns the bids of all students, rows in ascending id order and
// columns in the order bids were requested.
func (r *Roster) BidMatrix() (*core.BidMatrix, error) {
	if missing := r.missingBids(); len(missing) > 0 {
		return nil, &core.IncompleteBiddingError{Missing: missing}
	}
	rows := make([][]int, len(r.order))
	for i, id := range r.order {
		bids := r.students[id].Bids()
		if !bids.Covers(r.courses) {
			return nil, fmt.Errorf("bid of student %d does not cover courses %v", id, r.courses)
		}
		row := make([]int, len(r.courses))
		for j, c := range r.courses {
			row[j] = bids[c]
		}
		rows[i] = row
	}
	return core.NewBidMatrix(r.order, r.courses, rows)
}

func (r *Roster) missingBids() []int {
	var missing []int
	for _, id := range r.order {
		if !r.students[id].HasBid() {
			missing = append(missing, id)
		}
	}
	return missing
}
