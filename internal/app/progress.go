package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"lms-progress-service/internal/domain"
)

// ProgressService records lesson completion and rolls it up into the
// enrollment, issuing a certificate on completion.
type ProgressService struct {
	base
	certificates *CertificateService
}

// LessonCompletion is the result of completing a lesson.
type LessonCompletion struct {
	Progress    domain.Progress     `json:"progress"`
	Enrollment  domain.Enrollment   `json:"enrollment"`
	Completed   bool                `json:"courseCompleted"`
	Certificate *domain.Certificate `json:"certificate,omitempty"`
}

// CompleteLesson marks lessonID completed for the caller and recomputes the
// course progress. Repeat calls keep the first completedAt.
func (s *ProgressService) CompleteLesson(ctx context.Context, p domain.Principal, lessonID string) (LessonCompletion, error) {
	if err := requireUser(p); err != nil {
		return LessonCompletion{}, err
	}
	lesson, err := s.store.GetLesson(ctx, lessonID)
	if err != nil {
		return LessonCompletion{}, err
	}

	unlock, err := s.lock(ctx, progressLockKey(p.UserID, lesson.CourseID))
	if err != nil {
		return LessonCompletion{}, err
	}
	defer unlock()

	var out LessonCompletion
	var newlyCompleted bool
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		enrollment, err := activeEnrollment(ctx, tx, p.UserID, lesson.CourseID)
		if err != nil {
			return err
		}
		progress, err := s.markCompleted(ctx, tx, p.UserID, lesson)
		if err != nil {
			return err
		}
		roll, err := s.recompute(ctx, tx, enrollment)
		if err != nil {
			return err
		}
		out = LessonCompletion{
			Progress:    progress,
			Enrollment:  roll.enrollment,
			Completed:   roll.enrollment.Status == domain.EnrollmentCompleted,
			Certificate: roll.certificate,
		}
		newlyCompleted = roll.newlyCompleted
		return nil
	})
	if err != nil {
		return LessonCompletion{}, err
	}

	now := s.now()
	events := []domain.Event{
		domain.NewEvent(domain.EventLessonCompleted, p.UserID, lesson.CourseID, out.Progress, now),
		domain.NewEvent(domain.EventCourseProgress, p.UserID, lesson.CourseID, out.Enrollment, now),
	}
	if newlyCompleted {
		s.log.Info("course completed", "user_id", p.UserID, "course_id", lesson.CourseID, "enrollment_id", out.Enrollment.ID)
		events = append(events, domain.NewEvent(domain.EventCourseCompleted, p.UserID, lesson.CourseID, out.Enrollment, now))
		if out.Certificate != nil {
			events = append(events, domain.NewEvent(domain.EventCertificateIssued, p.UserID, lesson.CourseID, out.Certificate.Public(), now))
		}
	}
	s.publish(ctx, events...)
	return out, nil
}

// RecomputeCourseProgress recomputes the enrollment of userID in courseID from
// its lesson progress. It is a no-op for courses without lessons.
func (s *ProgressService) RecomputeCourseProgress(ctx context.Context, userID, courseID string) (domain.Enrollment, error) {
	unlock, err := s.lock(ctx, progressLockKey(userID, courseID))
	if err != nil {
		return domain.Enrollment{}, err
	}
	defer unlock()

	var out domain.Enrollment
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		enrollment, err := tx.FindEnrollment(ctx, userID, courseID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrEnrollmentNotFound
			}
			return fmt.Errorf("find enrollment: %w", err)
		}
		roll, err := s.recompute(ctx, tx, enrollment)
		if err != nil {
			return err
		}
		out = roll.enrollment
		return nil
	})
	return out, err
}

// CourseProgressView is the learner's own view of a course.
type CourseProgressView struct {
	Enrollment     domain.Enrollment    `json:"enrollment"`
	LessonProgress []domain.Progress    `json:"lessonProgress"`
	QuizAttempts   []domain.QuizAttempt `json:"quizAttempts"`
}

// CourseProgress returns the caller's enrollment, lesson progress and quiz
// attempts for courseID.
func (s *ProgressService) CourseProgress(ctx context.Context, p domain.Principal, courseID string) (CourseProgressView, error) {
	if err := requireUser(p); err != nil {
		return CourseProgressView{}, err
	}
	enrollment, err := s.store.FindEnrollment(ctx, p.UserID, courseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return CourseProgressView{}, domain.ErrNotEnrolledInCourse
		}
		return CourseProgressView{}, fmt.Errorf("find enrollment: %w", err)
	}
	progress, err := s.store.ListProgress(ctx, p.UserID, courseID)
	if err != nil {
		return CourseProgressView{}, fmt.Errorf("list progress: %w", err)
	}
	attempts, err := s.store.ListCourseAttempts(ctx, p.UserID, courseID)
	if err != nil {
		return CourseProgressView{}, fmt.Errorf("list attempts: %w", err)
	}
	for i := range attempts {
		attempts[i].Answers = nil
	}
	return CourseProgressView{Enrollment: enrollment, LessonProgress: progress, QuizAttempts: attempts}, nil
}

// markCompleted upserts the (user, lesson) progress row to completed.
func (s *ProgressService) markCompleted(ctx context.Context, tx Store, userID string, lesson domain.Lesson) (domain.Progress, error) {
	now := s.now()
	existing, err := tx.FindProgress(ctx, userID, lesson.ID)
	switch {
	case err == nil:
		updated := completeProgress(existing, now)
		if err := tx.UpdateProgress(ctx, updated); err != nil {
			return domain.Progress{}, fmt.Errorf("update progress: %w", err)
		}
		return updated, nil
	case errors.Is(err, domain.ErrNotFound):
		created := completeProgress(domain.Progress{
			ID:        uuid.NewString(),
			UserID:    userID,
			CourseID:  lesson.CourseID,
			ModuleID:  lesson.ModuleID,
			LessonID:  lesson.ID,
			StartedAt: now,
		}, now)
		if err := tx.CreateProgress(ctx, created); err != nil {
			return domain.Progress{}, fmt.Errorf("create progress: %w", err)
		}
		return created, nil
	default:
		return domain.Progress{}, fmt.Errorf("find progress: %w", err)
	}
}

// completeProgress sets a row to completed; completedAt is only set once.
func completeProgress(p domain.Progress, now time.Time) domain.Progress {
	p.Status = domain.ProgressCompleted
	p.ProgressPercent = 100
	if p.CompletedAt == nil {
		p.CompletedAt = timePtr(now)
	}
	p.LastAccessedAt = now
	return p
}

type rollup struct {
	enrollment     domain.Enrollment
	newlyCompleted bool
	certificate    *domain.Certificate
}

// recompute runs the progress pipeline: count, compute, then one commit for
// the enrollment and, on a completion transition, one for the certificate.
func (s *ProgressService) recompute(ctx context.Context, tx Store, enrollment domain.Enrollment) (rollup, error) {
	course, err := tx.GetCourse(ctx, enrollment.CourseID)
	if err != nil {
		return rollup{}, err
	}
	total, err := tx.CountLessons(ctx, course.ID)
	if err != nil {
		return rollup{}, fmt.Errorf("count lessons: %w", err)
	}
	if total == 0 {
		return rollup{enrollment: enrollment}, nil
	}
	completed, err := tx.CountCompletedLessons(ctx, enrollment.UserID, course.ID)
	if err != nil {
		return rollup{}, fmt.Errorf("count completed lessons: %w", err)
	}

	next, newlyCompleted := computeProgress(enrollment, course, completed, total, s.now())
	if err := tx.UpdateEnrollment(ctx, next); err != nil {
		return rollup{}, fmt.Errorf("update enrollment: %w", err)
	}
	out := rollup{enrollment: next, newlyCompleted: newlyCompleted}
	if newlyCompleted && course.CertificateEnabled {
		cert, err := s.certificates.issue(ctx, tx, next, course)
		if err != nil {
			return rollup{}, err
		}
		out.certificate = &cert
	}
	return out, nil
}

// computeProgress is the pure step of the rollup. A completed enrollment is
// never moved back to active, and completedAt is only set on the transition.
func computeProgress(e domain.Enrollment, c domain.Course, completed, total int, now time.Time) (domain.Enrollment, bool) {
	percent := progressPercent(completed, total)
	e.Progress = percent
	e.LastAccessedAt = timePtr(now)
	if percent >= c.CompletionThreshold() && e.Status == domain.EnrollmentActive {
		e.Status = domain.EnrollmentCompleted
		e.CompletedAt = timePtr(now)
		return e, true
	}
	return e, false
}

func progressPercent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	percent := int(math.Round(float64(completed) / float64(total) * 100))
	if percent > 100 {
		percent = 100
	}
	return percent
}

func activeEnrollment(ctx context.Context, tx Store, userID, courseID string) (domain.Enrollment, error) {
	enrollment, err := tx.FindEnrollment(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Enrollment{}, domain.ErrNotEnrolledInCourse
		}
		return domain.Enrollment{}, fmt.Errorf("find enrollment: %w", err)
	}
	if enrollment.Status != domain.EnrollmentActive {
		return domain.Enrollment{}, domain.ErrNotEnrolledInCourse
	}
	return enrollment, nil
}

func progressLockKey(userID, courseID string) string {
	return "progress:" + userID + ":" + courseID
}
