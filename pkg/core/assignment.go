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

package core

import (
	"fmt"
	"slices"
)

// Assignment is the 0/1 enrollment decision for a BidMatrix.
// Selected has the same shape as the matrix it was solved from.
type Assignment struct {
	StudentIDs []int
	Courses    []string
	Selected   [][]bool

	// Status is the solver status the assignment was accepted with.
	Status string
	// Objective is the sum of bids over the selected pairs.
	Objective int
	// Bound is the best objective bound reported by the solver.
	Bound float64
}

// NewAssignment returns an empty assignment shaped like m.
func NewAssignment(m *BidMatrix) *Assignment {
	selected := make([][]bool, m.NumStudents())
	for i := range selected {
		selected[i] = make([]bool, m.NumCourses())
	}
	return &Assignment{
		StudentIDs: slices.Clone(m.StudentIDs),
		Courses:    slices.Clone(m.Courses),
		Selected:   selected,
	}
}

// CoursesFor returns the selected courses of row i in column order.
func (a *Assignment) CoursesFor(i int) []string {
	var out []string
	for j, ok := range a.Selected[i] {
		if ok {
			out = append(out, a.Courses[j])
		}
	}
	return out
}

// ByStudent maps each student id to its selected courses in column order.
func (a *Assignment) ByStudent() map[int][]string {
	out := make(map[int][]string, len(a.StudentIDs))
	for i, id := range a.StudentIDs {
		out[id] = a.CoursesFor(i)
	}
	return out
}

// CourseCount returns the number of students selected into column j.
func (a *Assignment) CourseCount(j int) int {
	n := 0
	for i := range a.Selected {
		if a.Selected[i][j] {
			n++
		}
	}
	return n
}

// StudentCount returns the number of courses selected for row i.
func (a *Assignment) StudentCount(i int) int {
	n := 0
	for _, ok := range a.Selected[i] {
		if ok {
			n++
		}
	}
	return n
}

// Score sums the bids of m over the selected pairs. m must have the same shape.
func (a *Assignment) Score(m *BidMatrix) (int, error) {
	if m.NumStudents() != len(a.Selected) || m.NumCourses() != len(a.Courses) {
		return 0, fmt.Errorf("assignment shape %dx%d does not match bid matrix %dx%d",
			len(a.Selected), len(a.Courses), m.NumStudents(), m.NumCourses())
	}
	total := 0
	for i, row := range a.Selected {
		for j, ok := range row {
			if ok {
				total += m.Bids[i][j]
			}
		}
	}
	return total, nil
}

// CourseOffering is an offered course with its capacity bounds.
type CourseOffering struct {
	Code     string
	Title    string
	MinSeats int
	MaxSeats int
}

// IDGenerator hands out monotonically increasing student ids.
// Each roster owns its generator, so ids are deterministic per term.
type IDGenerator struct {
	next int
}

// NewIDGenerator returns a generator whose first id is 1.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{next: 1}
}

// Next returns the next unused id. A zero IDGenerator starts at 1.
func (g *IDGenerator) Next() int {
	if g.next < 1 {
		g.next = 1
	}
	id := g.next
	g.next++
	return id
}

// Reset makes the generator start again from 1.
func (g *IDGenerator) Reset() {
	g.next = 1
}
