package errors

import "errors"

var (
	ErrInvalidAmount    = errors.New("declared allocation must be greater than zero")
	ErrInvalidSchedule  = errors.New("schedule timing parameters are inconsistent")
	ErrInvalidFraction  = errors.New("cliff fraction exceeds the fraction base")
	ErrInvalidReward    = errors.New("reward fraction exceeds the allowed maximum")

	ErrScheduleNotFound         = errors.New("schedule not found")
	ErrScheduleInactive         = errors.New("schedule is not accepting claims")
	ErrAlreadyEnrolledElsewhere = errors.New("recipient is enrolled in a different schedule")
	ErrEnrollmentClosed         = errors.New("enrollment window has closed for new recipients")
	ErrProofInvalid             = errors.New("membership proof does not match the commitment root")

	ErrClaimNotAllowed   = errors.New("deferred entitlement is not yet releasable")
	ErrNoTokensToClaim   = errors.New("no tokens currently claimable")
	ErrTransferFailed    = errors.New("token transfer failed after claim commit")
	ErrClaimRecordNotFound = errors.New("claim record not found")

	ErrOutboxMessageNotFound = errors.New("outbox message not found")
)
