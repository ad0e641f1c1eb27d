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

// Package enrollment records the final enrollment of a term and derives the
// per-course view of it.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/llm-d/course-bidding/pkg/core"
)

// ErrAlreadyFinalized is returned by a second call to Finalize.
var ErrAlreadyFinalized = errors.New("enrollment already finalized")

// StudentLookup resolves student ids. *roster.Roster satisfies it.
type StudentLookup interface {
	Get(id int) (*core.Student, error)
	Students() []*core.Student
}

// Registry holds the enrolled course lists of one term.
// Finalize must be called at most once, and only with an accepted assignment.
type Registry struct {
	students  StudentLookup
	offered   []string
	finalized bool
}

// NewRegistry creates a registry over the students and offered courses of a term.
func NewRegistry(students StudentLookup, offered []string) *Registry {
	return &Registry{
		students: students,
		offered:  slices.Clone(offered),
	}
}

// Finalize writes each student's enrolled courses from the assignment.
// Assignment columns must be offered courses.
func (r *Registry) Finalize(ctx context.Context, a *core.Assignment) error {
	logger := logr.FromContextOrDiscard(ctx)

	if r.finalized {
		return ErrAlreadyFinalized
	}
	if a == nil {
		return fmt.Errorf("cannot finalize without an assignment")
	}
	offered := sets.New(r.offered...)
	if unknown := sets.New(a.Courses...).Difference(offered); unknown.Len() > 0 {
		return fmt.Errorf("assignment contains courses that are not offered: %v", sets.List(unknown))
	}

	// resolve everyone first so a bad id leaves no partial enrollment behind
	students := make([]*core.Student, len(a.StudentIDs))
	for i, id := range a.StudentIDs {
		s, err := r.students.Get(id)
		if err != nil {
			return &core.StudentNotFoundError{StudentID: id, Err: err}
		}
		if s.State() != core.StateBid {
			return fmt.Errorf("student %d cannot be enrolled in state %s", id, s.State())
		}
		students[i] = s
	}
	for i, s := range students {
		if err := s.Enroll(a.CoursesFor(i)); err != nil {
			return err
		}
	}
	r.finalized = true

	logger.Info("Enrollment finalized", "students", len(students), "courses", len(r.offered), "filled", r.IsFilled())
	return nil
}

// Finalized reports whether Finalize has succeeded.
func (r *Registry) Finalized() bool {
	return r.finalized
}

// EnrollmentByCourse maps every offered course to the ascending ids of the
// students enrolled in it. It is recomputed from the students on every call.
func (r *Registry) EnrollmentByCourse() map[string][]int {
	out := make(map[string][]int, len(r.offered))
	for _, c := range r.offered {
		out[c] = []int{}
	}
	for _, s := range r.students.Students() {
		for _, c := range s.Enrolled() {
			if ids, ok := out[c]; ok {
				out[c] = append(ids, s.ID())
			}
		}
	}
	for _, ids := range out {
		slices.Sort(ids)
	}
	return out
}

// EnrolledStudents returns the students enrolled in course, ascending by id.
func (r *Registry) EnrolledStudents(course string) ([]*core.Student, error) {
	ids, ok := r.EnrollmentByCourse()[course]
	if !ok {
		return nil, fmt.Errorf("course %s is not offered", course)
	}
	out := make([]*core.Student, 0, len(ids))
	for _, id := range ids {
		s, err := r.Fetch(id)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Fetch looks up a student by id.
func (r *Registry) Fetch(id int) (*core.Student, error) {
	s, err := r.students.Get(id)
	if err != nil {
		return nil, &core.StudentNotFoundError{StudentID: id, Err: err}
	}
	return s, nil
}

// IsFilled reports whether every offered course has at least one student.
func (r *Registry) IsFilled() bool {
	for _, ids := range r.EnrollmentByCourse() {
		if len(ids) == 0 {
			return false
		}
	}
	return true
}
