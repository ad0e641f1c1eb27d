// Package term runs one course-bidding term from course draw to final
// enrollment.
//
// Architecture:
//
// A term follows a pipeline pattern:
//
//	Course Draw → Bid Collection → Assignment Solve → Enrollment
//	  (catalog)      (roster)         (solver)         (enrollment)
//
// The Term sits in the middle, wiring these components together and
// reporting to the metrics recorder.
//
// Example usage:
//
//	t, err := term.New(ctx, config.Default(), term.WithRecorder(recorder))
//	if err != nil {
//	    return err
//	}
//
//	if _, err := t.Enroll(ctx); err != nil {
//	    log.Error(err, "enrollment failed")
//	    return err
//	}
//
//	log.Info("term finalized", "term", t.ID(), "filled", t.IsFilled())
//
// Term Flow:
//
//  1. Draw Courses
//     - Validate the configuration against the catalog
//     - Draw the offered courses without replacement
//
//  2. Collect Bids
//     - Create the students with ids from a fresh generator
//     - Every student bids once over the offered courses
//
//  3. Solve
//     - Build the bid matrix
//     - Solve the 0/1 program within the configured time limit
//
//  4. Enroll
//     - Write each student's courses
//     - Update the enrollment metrics
//
// Error Handling:
//
// A failed solve leaves every student in the Bid state; nothing is enrolled
// and the caller must change the configuration and run a new term.
package term
