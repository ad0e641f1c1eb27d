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
	"cmp"
	"fmt"
	"maps"
	"slices"
)

// BidVector maps an offered course code to the points bid on it.
type BidVector map[string]int

// CourseBid is a single (course, points) entry of a BidVector.
type CourseBid struct {
	Course string
	Points int
}

// Clone returns a copy of the vector; a nil vector stays nil.
func (v BidVector) Clone() BidVector {
	if v == nil {
		return nil
	}
	return maps.Clone(v)
}

// Total returns the sum of all bids.
func (v BidVector) Total() int {
	total := 0
	for _, p := range v {
		total += p
	}
	return total
}

// Validate checks that every bid is non-negative and that the bids exhaust budget.
func (v BidVector) Validate(budget int) error {
	for course, p := range v {
		if p < 0 {
			return fmt.Errorf("negative bid %d on course %s", p, course)
		}
	}
	if total := v.Total(); total != budget {
		return fmt.Errorf("bids sum to %d, budget is %d", total, budget)
	}
	return nil
}

// Covers reports whether the vector has exactly one entry per course in courses.
func (v BidVector) Covers(courses []string) bool {
	if len(v) != len(courses) {
		return false
	}
	for _, c := range courses {
		if _, ok := v[c]; !ok {
			return false
		}
	}
	return true
}

// Ranked returns the entries ordered by points descending, then course code.
func (v BidVector) Ranked() []CourseBid {
	out := make([]CourseBid, 0, len(v))
	for c, p := range v {
		out = append(out, CourseBid{Course: c, Points: p})
	}
	slices.SortFunc(out, func(a, b CourseBid) int {
		if a.Points != b.Points {
			return cmp.Compare(b.Points, a.Points)
		}
		return cmp.Compare(a.Course, b.Course)
	})
	return out
}

// BidMatrix lays out bid vectors with students as rows and courses as columns.
type BidMatrix struct {
	// StudentIDs holds the row order.
	StudentIDs []int
	// Courses holds the column order.
	Courses []string
	// Bids[i][j] is the bid of StudentIDs[i] on Courses[j].
	Bids [][]int
}

// NewBidMatrix builds a matrix and checks that bids has the shape implied by
// studentIDs and courses.
func NewBidMatrix(studentIDs []int, courses []string, bids [][]int) (*BidMatrix, error) {
	if len(bids) != len(studentIDs) {
		return nil, fmt.Errorf("bid matrix has %d rows for %d students", len(bids), len(studentIDs))
	}
	for i, row := range bids {
		if len(row) != len(courses) {
			return nil, fmt.Errorf("bid matrix row for student %d has %d columns, want %d",
				studentIDs[i], len(row), len(courses))
		}
		for j, b := range row {
			if b < 0 {
				return nil, fmt.Errorf("negative bid %d by student %d on course %s", b, studentIDs[i], courses[j])
			}
		}
	}
	return &BidMatrix{
		StudentIDs: slices.Clone(studentIDs),
		Courses:    slices.Clone(courses),
		Bids:       bids,
	}, nil
}

// NumStudents returns the number of rows.
func (m *BidMatrix) NumStudents() int {
	return len(m.StudentIDs)
}

// NumCourses returns the number of columns.
func (m *BidMatrix) NumCourses() int {
	return len(m.Courses)
}

// RowTotal returns the sum of row i.
func (m *BidMatrix) RowTotal(i int) int {
	total := 0
	for _, b := range m.Bids[i] {
		total += b
	}
	return total
}
