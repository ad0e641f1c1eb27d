package solver

import (
	"fmt"
	"time"
)

// InfeasibleAssignmentError reports that the capacity configuration admits
// no assignment.
type InfeasibleAssignmentError struct {
	NumStudents          int
	NumCourses           int
	MinClassSize         int
	MaxClassSize         int
	MaxClassesPerStudent int
	// Reason describes which condition failed.
	Reason string
}

func (e *InfeasibleAssignmentError) Error() string {
	return fmt.Sprintf("no feasible assignment for %d students and %d courses "+
		"(class size %d..%d, at most %d classes per student): %s",
		e.NumStudents, e.NumCourses, e.MinClassSize, e.MaxClassSize, e.MaxClassesPerStudent, e.Reason)
}

// SolverTimeoutError reports that the backend stopped before finding any
// solution. The instance may still be feasible.
type SolverTimeoutError struct {
	// Bound is the best objective bound known when the solver stopped.
	Bound     float64
	TimeLimit time.Duration
}

func (e *SolverTimeoutError) Error() string {
	return fmt.Sprintf("no feasible solution found within %s, best bound is %g", e.TimeLimit, e.Bound)
}

// UnknownSolverStatusError reports a status the solver cannot interpret.
type UnknownSolverStatusError struct {
	Status Status
}

func (e *UnknownSolverStatusError) Error() string {
	return fmt.Sprintf("unknown solution status: %s", e.Status)
}

// InvalidSolutionError reports an accepted backend solution whose selection
// breaks a capacity bound of the program.
type InvalidSolutionError struct {
	Status Status
	Reason string
}

func (e *InvalidSolutionError) Error() string {
	return fmt.Sprintf("%s solution violates the program: %s", e.Status, e.Reason)
}
