package core

import (
	"errors"
	"fmt"
)

// ErrStudentNotFound is returned by lookups of an unknown student id.
var ErrStudentNotFound = errors.New("student not found")

// AlreadyBidError is returned when a student that already bid is asked to bid again.
type AlreadyBidError struct {
	StudentID int
}

func (e *AlreadyBidError) Error() string {
	return fmt.Sprintf("student (id=%d) already used all bidding points", e.StudentID)
}

// IncompleteBiddingError is returned when a bid matrix is requested before
// every student has bid.
type IncompleteBiddingError struct {
	// Missing holds the ids of students without a bid, ascending.
	Missing []int
}

func (e *IncompleteBiddingError) Error() string {
	return fmt.Sprintf("bidding incomplete: %d student(s) without a bid, ids %v", len(e.Missing), e.Missing)
}

// StudentNotFoundError wraps a failed lookup with the offending id.
type StudentNotFoundError struct {
	StudentID int
	Err       error
}

func (e *StudentNotFoundError) Error() string {
	return fmt.Sprintf("student id %d not found: %v", e.StudentID, e.Err)
}

func (e *StudentNotFoundError) Unwrap() error {
	return e.Err
}
