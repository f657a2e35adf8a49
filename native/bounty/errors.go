package bounty

import "errors"

// Every failure is terminal for the invoking operation: callers observe the
// sentinel, no partial mutation, and may retry after correcting the
// condition.
var (
	ErrBountyNotFound      = errors.New("bounty: not found")
	ErrBountyExists        = errors.New("bounty: already initialized")
	ErrInvalidAmount       = errors.New("bounty: amount must be positive")
	ErrInvalidDeadline     = errors.New("bounty: deadline must be in the future")
	ErrUnauthorizedCreator = errors.New("bounty: caller is not the creator")
	ErrUnauthorizedHunter  = errors.New("bounty: caller is not the approved hunter")
	ErrBountyNotOpen       = errors.New("bounty: not open")
	ErrBountyNotInReview   = errors.New("bounty: not in review")
	ErrBountyNotApproved   = errors.New("bounty: not approved")
	ErrBountyClosed        = errors.New("bounty: already settled")
	ErrHunterAssigned      = errors.New("bounty: hunter already assigned")
	ErrHunterRequired      = errors.New("bounty: hunter required")
	ErrQuotaNotSingle      = errors.New("bounty: direct submission requires a single-winner bounty")
	ErrReportTooLong       = errors.New("bounty: report reference too long")
	ErrReportRequired      = errors.New("bounty: report reference required")
	ErrDeadlineNotPassed   = errors.New("bounty: deadline not passed")
	ErrDeadlineNotReached  = errors.New("bounty: auto-release window not reached")

	ErrInvalidSeverity     = errors.New("bounty: severity out of range")
	ErrInvalidSubmissionID = errors.New("bounty: invalid submission id")
	ErrContentRefTooLong   = errors.New("bounty: content reference too long")
	ErrDescriptionTooLong  = errors.New("bounty: description too long")
	ErrSubmissionExists    = errors.New("bounty: submission already recorded")
	ErrSubmissionNotFound  = errors.New("bounty: submission not found")
	ErrSubmissionMismatch  = errors.New("bounty: submission id mismatch")
	ErrAlreadyWinner       = errors.New("bounty: submission already selected as winner")
	ErrWinnersQuotaMet     = errors.New("bounty: winners quota exhausted")
	ErrPayoutExceedsCap    = errors.New("bounty: payout exceeds per-winner cap")
	ErrFinalizeNotReady    = errors.New("bounty: finalize conditions not met")

	ErrInvalidVault     = errors.New("bounty: invalid escrow vault account")
	ErrInsufficientPool = errors.New("bounty: insufficient pooled balance")
)
