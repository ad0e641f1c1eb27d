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
	"strings"
)

// StudentState is the lifecycle state of a Student within a term.
type StudentState int

const (
	// StateUnbid is the initial state; the student has not placed a bid.
	StateUnbid StudentState = iota
	// StateBid means the bid vector is recorded and immutable.
	StateBid
	// StateEnrolled means the final enrollment has been written.
	StateEnrolled
)

func (s StudentState) String() string {
	switch s {
	case StateUnbid:
		return "Unbid"
	case StateBid:
		return "Bid"
	case StateEnrolled:
		return "Enrolled"
	default:
		return fmt.Sprintf("StudentState(%d)", int(s))
	}
}

// Student is a single bidder in a term.
// A Student is not safe for concurrent use; bidding only ever touches the
// student being bid for.
type Student struct {
	id       int
	budget   int
	state    StudentState
	bids     BidVector
	enrolled []string
}

// NewStudent creates an unbid student. Ids are expected to come from an IDGenerator.
func NewStudent(id, budget int) *Student {
	return &Student{
		id:     id,
		budget: budget,
		state:  StateUnbid,
	}
}

// ID returns the student id.
func (s *Student) ID() int {
	return s.id
}

// Budget returns the total bidding points available to the student.
func (s *Student) Budget() int {
	return s.budget
}

// State returns the current lifecycle state.
func (s *Student) State() StudentState {
	return s.state
}

// HasBid reports whether a bid vector has been recorded.
func (s *Student) HasBid() bool {
	return s.state != StateUnbid
}

// Bids returns a copy of the recorded bid vector, or nil before bidding.
func (s *Student) Bids() BidVector {
	return s.bids.Clone()
}

// Enrolled returns a copy of the enrolled course codes.
func (s *Student) Enrolled() []string {
	return slices.Clone(s.enrolled)
}

// RecordBid stores the bid vector. It fails with an AlreadyBidError if a
// vector is already recorded, leaving the stored one untouched.
func (s *Student) RecordBid(bids BidVector) error {
	if s.state != StateUnbid {
		return &AlreadyBidError{StudentID: s.id}
	}
	if err := bids.Validate(s.budget); err != nil {
		return fmt.Errorf("invalid bid for student %d: %w", s.id, err)
	}
	s.bids = bids.Clone()
	s.state = StateBid
	return nil
}

// Enroll writes the final list of enrolled courses. It may be called once,
// and only after the student has bid.
func (s *Student) Enroll(courses []string) error {
	switch s.state {
	case StateUnbid:
		return fmt.Errorf("student %d cannot be enrolled before bidding", s.id)
	case StateEnrolled:
		return fmt.Errorf("student %d is already enrolled", s.id)
	}
	s.enrolled = slices.Clone(courses)
	s.state = StateEnrolled
	return nil
}

// String summarizes the student; once bid, the three highest bids are shown.
func (s *Student) String() string {
	if s.state == StateUnbid {
		return fmt.Sprintf("Student (id=%d, points=%d)", s.id, s.budget)
	}
	top := s.bids.Ranked()
	if len(top) > 3 {
		top = top[:3]
	}
	picks := make([]string, len(top))
	for i, b := range top {
		picks[i] = fmt.Sprintf("%s=%d", b.Course, b.Points)
	}
	return fmt.Sprintf("Student (id=%d, Top 3 Picks: (%s))", s.id, strings.Join(picks, ", "))
}
