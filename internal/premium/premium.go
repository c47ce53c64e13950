// Package premium holds the pure pricing and proration arithmetic.
// All amounts are int64 in the smallest currency unit; division truncates
// toward zero and the rounding dust is retained by the pool.
package premium

import "time"

// RateBasisPoints is the flat premium rate: 5% of the coverage amount.
const RateBasisPoints = 5

// ForCoverage computes the premium for a coverage amount:
// premium = floor(coverage * 5 / 100).
func ForCoverage(coverageAmount int64) int64 {
	return coverageAmount * RateBasisPoints / 100
}

// ProratedRefund computes the unused-premium refund on cancellation:
// floor(premium * timeRemaining / coveragePeriod). A non-positive
// timeRemaining yields zero.
func ProratedRefund(paid int64, timeRemaining, coveragePeriod time.Duration) int64 {
	if timeRemaining <= 0 {
		return 0
	}
	if timeRemaining > coveragePeriod {
		timeRemaining = coveragePeriod
	}
	return paid * int64(timeRemaining) / int64(coveragePeriod)
}
