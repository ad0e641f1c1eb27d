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
	"fmt"
	"slices"
)

// Report summarizes a term for printing.
type Report struct {
	TermID     string         `yaml:"termId"`
	Students   int            `yaml:"students"`
	Status     string         `yaml:"status,omitempty"`
	Objective  int            `yaml:"objective"`
	Filled     bool           `yaml:"filled"`
	Courses    []CourseReport `yaml:"courses"`
	Unassigned []int          `yaml:"unassigned,omitempty"`
}

// CourseReport is the enrollment of one offered course.
type CourseReport struct {
	Code      string `yaml:"code"`
	Title     string `yaml:"title"`
	Seats     string `yaml:"seats"`
	BidPoints int    `yaml:"bidPoints"`
	Students  []int  `yaml:"students"`
}

// Report builds the summary of the term. Before Enroll succeeds the course
// student lists are empty and every student is listed as unassigned.
func (t *Term) Report() Report {
	byCourse := t.registry.EnrollmentByCourse()
	points := map[string]int{}
	if m, err := t.roster.BidMatrix(); err == nil {
		for j, total := range columnTotals(m) {
			points[m.Courses[j]] = total
		}
	}

	r := Report{
		TermID:   t.id.String(),
		Students: t.roster.Len(),
		Filled:   t.registry.IsFilled(),
	}
	if t.assignment != nil {
		r.Status = t.assignment.Status
		r.Objective = t.assignment.Objective
	}

	seen := map[int]bool{}
	for _, o := range t.Offerings() {
		ids := byCourse[o.Code]
		for _, id := range ids {
			seen[id] = true
		}
		r.Courses = append(r.Courses, CourseReport{
			Code:      o.Code,
			Title:     o.Title,
			Seats:     fmt.Sprintf("%d-%d", o.MinSeats, o.MaxSeats),
			BidPoints: points[o.Code],
			Students:  slices.Clone(ids),
		})
	}
	for _, s := range t.roster.Students() {
		if !seen[s.ID()] {
			r.Unassigned = append(r.Unassigned, s.ID())
		}
	}
	return r
}
