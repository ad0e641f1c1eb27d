// Package core provides the data model shared by the bidding, solving and
// enrollment stages of a course-bidding term.
//
// This package contains the domain types that describe a term:
//
//   - Student: a bidder with a fixed point budget and an explicit lifecycle
//     state (Unbid, Bid, Enrolled)
//   - BidVector: one student's point allocation across the offered courses
//   - BidMatrix: all bid vectors laid out as rows (students) by columns (courses)
//   - Assignment: the 0/1 enrollment decision of the same shape as a BidMatrix
//   - CourseOffering: an offered course with its capacity bounds
//   - IDGenerator: a per-term source of monotonically increasing student ids
//
// Example usage:
//
//	ids := core.NewIDGenerator()
//	s := core.NewStudent(ids.Next(), 50)
//
//	if err := s.RecordBid(core.BidVector{"C101": 30, "C102": 20}); err != nil {
//	    return err
//	}
//
//	fmt.Println(s.State()) // Bid
//
// The core package is designed to be:
//   - Free of randomness and solving logic (pure domain state)
//   - Explicit about lifecycle transitions (no implicit truthiness)
//   - Safe to share between packages without import cycles
package core
