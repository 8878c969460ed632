package domain

import "errors"

// Error kinds. Use errors.Is against these to classify a failure.
var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalid             = errors.New("invalid")
	ErrInvalidState        = errors.New("invalid state")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrAlreadyEnrolled     = errors.New("already enrolled")
	ErrAttemptLimitReached = errors.New("attempt limit reached")
	ErrExpired             = errors.New("expired")
	ErrLimitReached        = errors.New("limit reached")
	ErrEmailMismatch       = errors.New("email mismatch")
	ErrNotEnrolled         = errors.New("not enrolled")
	// ErrConflict is reported by stores on a uniqueness violation.
	ErrConflict = errors.New("conflict")
)

// Error is an expected, caller-recoverable failure with a stable code.
type Error struct {
	Code    string
	Message string
	Kind    error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, code, message string) *Error {
	return &Error{Code: code, Message: message, Kind: kind}
}

var (
	ErrCourseNotFound      = newError(ErrNotFound, "course_not_found", "course not found")
	ErrLessonNotFound      = newError(ErrNotFound, "lesson_not_found", "lesson not found")
	ErrUserNotFound        = newError(ErrNotFound, "user_not_found", "user not found")
	ErrQuizNotFound        = newError(ErrNotFound, "quiz_not_found", "quiz not found")
	ErrAttemptNotFound     = newError(ErrNotFound, "attempt_not_found", "quiz attempt not found")
	ErrCertificateNotFound = newError(ErrNotFound, "certificate_not_found", "certificate not found")
	ErrInviteNotFound      = newError(ErrNotFound, "invite_not_found", "invalid invite code")
	ErrEnrollmentNotFound  = newError(ErrNotFound, "enrollment_not_found", "enrollment not found")
	ErrProgressNotFound    = newError(ErrNotFound, "progress_not_found", "progress not found")

	ErrSelfEnrollmentDisabled = newError(ErrForbidden, "self_enrollment_disabled", "self-enrollment is not allowed for this course")
	ErrInvitationRequired     = newError(ErrForbidden, "invitation_required", "this course requires an invitation")
	ErrEnrollmentNotOpen      = newError(ErrForbidden, "enrollment_not_open", "enrollment has not started yet")
	ErrEnrollmentClosed       = newError(ErrForbidden, "enrollment_closed", "enrollment period has ended")
	ErrNotAttemptOwner        = newError(ErrForbidden, "not_attempt_owner", "this is not your quiz attempt")
	ErrNotCourseInstructor    = newError(ErrForbidden, "not_course_instructor", "you can only manage your own courses")
	ErrAdminRequired          = newError(ErrForbidden, "admin_required", "administrator access required")

	ErrCourseFull           = newError(ErrCapacityExceeded, "capacity_exceeded", "course has reached maximum enrollment capacity")
	ErrDuplicateEnrollment  = newError(ErrAlreadyEnrolled, "already_enrolled", "you are already enrolled in this course")
	ErrNotEnrolledInCourse  = newError(ErrNotEnrolled, "not_enrolled", "you are not enrolled in this course")
	ErrMaxAttempts          = newError(ErrAttemptLimitReached, "attempt_limit_reached", "you have reached the maximum number of attempts")
	ErrAttemptSubmitted     = newError(ErrInvalidState, "attempt_already_submitted", "this quiz attempt has already been submitted")
	ErrInviteNotPending     = newError(ErrInvalid, "invite_invalid", "this invite code is no longer valid")
	ErrInviteExpired        = newError(ErrExpired, "invite_expired", "this invite code has expired")
	ErrInviteUsedUp         = newError(ErrLimitReached, "invite_limit_reached", "this invite code has reached its usage limit")
	ErrInviteEmailMismatch  = newError(ErrEmailMismatch, "invite_email_mismatch", "this invite code is for a different email address")
	ErrInvalidInviteUses    = newError(ErrInvalid, "invalid_max_uses", "maxUses must be at least 1")
	ErrMissingInviteCode    = newError(ErrInvalid, "invite_code_required", "invite code is required")
	ErrInvalidQuestionType  = newError(ErrInvalid, "invalid_question_type", "quiz has a question of unknown type")
	ErrMissingPrincipal     = newError(ErrUnauthorized, "unauthorized", "you must be logged in")
	ErrCertificateIssueRace = newError(ErrConflict, "certificate_number_collision", "could not allocate a unique certificate number")
)
