package core

import "errors"

var (
	// ErrStoreUnavailable wraps persistence failures. A cycle hitting it
	// aborts entirely and is retried at the next interval.
	ErrStoreUnavailable = errors.New("persistent store unavailable")

	// ErrDecisionUnavailable wraps classification failures and timeouts.
	// The candidate stays unseen and is retried next cycle.
	ErrDecisionUnavailable = errors.New("decision unavailable")

	// ErrRateLimited defers a candidate. Not a failure.
	ErrRateLimited = errors.New("rate limited")

	// ErrSignatureInvalid rejects a callback before any state is touched.
	ErrSignatureInvalid = errors.New("callback signature invalid")

	// ErrStalePost skips a candidate older than the configured age cap.
	ErrStalePost = errors.New("post too old")

	// ErrQualityFiltered skips a candidate failing the quality predicate.
	ErrQualityFiltered = errors.New("post filtered out")

	// ErrActionFailed marks a post whose platform action exhausted retries.
	ErrActionFailed = errors.New("platform action failed permanently")

	// ErrApprovalNotFound means no pending approval exists for a token.
	ErrApprovalNotFound = errors.New("approval not found")

	// ErrApprovalResolved means the approval already left the pending state.
	ErrApprovalResolved = errors.New("approval already resolved")

	// ErrIllegalTransition guards the approval state machine.
	ErrIllegalTransition = errors.New("illegal approval status transition")

	// ErrSeenConflict is returned when a seen mark would change the
	// timestamp of an existing record. Existing marks are never updated.
	ErrSeenConflict = errors.New("seen record already exists")
)
