// Package solver turns a bid matrix into an enrollment by solving a 0/1
// integer program.
//
// The solver package contains the formulation and the status handling; the
// numerical work is delegated to a Backend.
//
// Key Components:
//
//   - AssignmentSolver: builds the program and interprets the outcome
//   - Backend / Model: the MILP capability (binary variables, linear
//     constraints, a linear objective, Optimize)
//   - flow: an exact Backend for bipartite b-matching programs, solved as a
//     minimum cost circulation (the default for terms)
//   - milp: a Backend for general 0/1 programs using gonum's simplex with
//     branch and bound
//
// Formulation:
//
//	maximize    sum_i sum_j bid[i][j] * x[i][j]
//	subject to  1 <= sum_j x[i][j] <= min(maxClassesPerStudent, numCourses)   for every student i
//	            minClassSize <= sum_i x[i][j] <= maxClassSize                  for every course j
//	            x[i][j] in {0, 1}
//
// Example usage:
//
//	s, err := solver.NewAssignmentSolver(flow.NewBackend(), solver.Params{
//	    MinClassSize:         3,
//	    MaxClassSize:         50,
//	    MaxClassesPerStudent: 5,
//	    TimeLimit:            30 * time.Second,
//	})
//	if err != nil {
//	    return err
//	}
//
//	assignment, err := s.Solve(ctx, matrix)
//	var infeasible *solver.InfeasibleAssignmentError
//	if errors.As(err, &infeasible) {
//	    log.Error(err, "capacity configuration admits no assignment")
//	}
//
// Solve statuses map to outcomes as follows:
//   - Optimal, Feasible: accepted; variables at or above 0.99 are selected
//   - NoSolutionFound: SolverTimeoutError carrying the best bound
//   - Infeasible: InfeasibleAssignmentError
//   - Unknown: UnknownSolverStatusError
//
// Every call is a fresh solve; nothing is cached between calls.
package solver
