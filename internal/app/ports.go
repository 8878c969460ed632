package app

import (
	"context"
	"time"

	"lms-progress-service/internal/domain"
)

// Store implementations return the matching domain.Err*NotFound error for a
// missing record and an error of kind domain.ErrConflict when a uniqueness
// constraint rejects a create.

// CourseRepository resolves course structure.
type CourseRepository interface {
	GetCourse(ctx context.Context, courseID string) (domain.Course, error)
	GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error)
	CountLessons(ctx context.Context, courseID string) (int, error)
}

// UserRepository resolves identity records owned by the surrounding system.
type UserRepository interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
}

type EnrollmentRepository interface {
	// FindEnrollment returns the non-cancelled enrollment for the pair.
	FindEnrollment(ctx context.Context, userID, courseID string) (domain.Enrollment, error)
	CountActiveEnrollments(ctx context.Context, courseID string) (int, error)
	CreateEnrollment(ctx context.Context, e domain.Enrollment) error
	UpdateEnrollment(ctx context.Context, e domain.Enrollment) error
}

type ProgressRepository interface {
	FindProgress(ctx context.Context, userID, lessonID string) (domain.Progress, error)
	CreateProgress(ctx context.Context, p domain.Progress) error
	UpdateProgress(ctx context.Context, p domain.Progress) error
	// CountCompletedLessons counts completed rows with a lesson reference.
	CountCompletedLessons(ctx context.Context, userID, courseID string) (int, error)
	ListProgress(ctx context.Context, userID, courseID string) ([]domain.Progress, error)
}

type AttemptRepository interface {
	ListAttempts(ctx context.Context, userID, quizID string) ([]domain.QuizAttempt, error)
	ListCourseAttempts(ctx context.Context, userID, courseID string) ([]domain.QuizAttempt, error)
	GetAttempt(ctx context.Context, attemptID string) (domain.QuizAttempt, error)
	CreateAttempt(ctx context.Context, a domain.QuizAttempt) error
	// GradeAttempt stores a graded attempt only while the stored row is still
	// in progress; otherwise it returns domain.ErrAttemptSubmitted.
	GradeAttempt(ctx context.Context, a domain.QuizAttempt) error
}

type CertificateRepository interface {
	FindCertificate(ctx context.Context, userID, courseID string) (domain.Certificate, error)
	GetCertificate(ctx context.Context, certificateID string) (domain.Certificate, error)
	GetCertificateByNumber(ctx context.Context, number string) (domain.Certificate, error)
	ListCertificates(ctx context.Context, userID string) ([]domain.Certificate, error)
	CreateCertificate(ctx context.Context, c domain.Certificate) error
	UpdateCertificate(ctx context.Context, c domain.Certificate) error
}

type InviteRepository interface {
	// GetInviteByCode locks the invite row for the rest of the transaction
	// when called inside WithinTx.
	GetInviteByCode(ctx context.Context, code string) (domain.Invite, error)
	CreateInvite(ctx context.Context, inv domain.Invite) error
	UpdateInvite(ctx context.Context, inv domain.Invite) error
	ExpireInvites(ctx context.Context, now time.Time) (int, error)
}

// Store is the entity store the engine persists through.
type Store interface {
	CourseRepository
	UserRepository
	EnrollmentRepository
	ProgressRepository
	AttemptRepository
	CertificateRepository
	InviteRepository

	// WithinTx runs fn atomically. Nested calls join the outer transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// QuizRepository loads quiz content with answer keys (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Locker serializes read-modify-write sequences on a key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// EventBus fans out learner events.
type EventBus interface {
	Publish(ctx context.Context, ev domain.Event) error
	Subscribe(ctx context.Context, userID string) (<-chan domain.Event, func(), error)
}
