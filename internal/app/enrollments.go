package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"lms-progress-service/internal/domain"
)

// EnrollmentService creates enrollments (self, invite, admin bulk).
type EnrollmentService struct {
	base
	invites         *InviteService
	bulkConcurrency int
}

// EnrollSelf enrolls the caller in a publicly open course.
func (s *EnrollmentService) EnrollSelf(ctx context.Context, p domain.Principal, courseID string) (domain.Enrollment, error) {
	if err := requireUser(p); err != nil {
		return domain.Enrollment{}, err
	}
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return domain.Enrollment{}, err
	}
	if err := checkSelfEnrollment(course, s.now()); err != nil {
		return domain.Enrollment{}, err
	}

	// Capacity is a read-then-write on the course as a whole.
	if course.MaxEnrollments != nil {
		unlock, err := s.lock(ctx, capacityLockKey(course.ID))
		if err != nil {
			return domain.Enrollment{}, err
		}
		defer unlock()
	}

	var created domain.Enrollment
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		if course.MaxEnrollments != nil {
			count, err := tx.CountActiveEnrollments(ctx, course.ID)
			if err != nil {
				return fmt.Errorf("count enrollments: %w", err)
			}
			if count >= *course.MaxEnrollments {
				return domain.ErrCourseFull
			}
		}
		if err := ensureNotEnrolled(ctx, tx, p.UserID, course.ID); err != nil {
			return err
		}
		created, err = s.create(ctx, tx, domain.Enrollment{
			UserID:   p.UserID,
			CourseID: course.ID,
			Type:     domain.EnrollmentSelf,
		})
		return err
	})
	if err != nil {
		return domain.Enrollment{}, err
	}
	s.log.Info("enrollment created", "enrollment_id", created.ID, "user_id", p.UserID, "course_id", course.ID, "type", created.Type)
	return created, nil
}

// EnrollViaInvite redeems code and enrolls the caller in the invite's course.
// Redemption and enrollment commit together or not at all.
func (s *EnrollmentService) EnrollViaInvite(ctx context.Context, p domain.Principal, code string) (domain.Enrollment, error) {
	if err := requireUser(p); err != nil {
		return domain.Enrollment{}, err
	}
	if code == "" {
		return domain.Enrollment{}, domain.ErrMissingInviteCode
	}

	var created domain.Enrollment
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		invite, err := s.invites.redeem(ctx, tx, p, code)
		if err != nil {
			return err
		}
		if err := ensureNotEnrolled(ctx, tx, p.UserID, invite.CourseID); err != nil {
			return err
		}
		created, err = s.create(ctx, tx, domain.Enrollment{
			UserID:     p.UserID,
			CourseID:   invite.CourseID,
			Type:       domain.EnrollmentInvite,
			InviteCode: invite.Code,
			InvitedBy:  invite.InvitedBy,
		})
		return err
	})
	if err != nil {
		return domain.Enrollment{}, err
	}
	s.log.Info("enrollment created", "enrollment_id", created.ID, "user_id", p.UserID, "course_id", created.CourseID, "type", created.Type)
	return created, nil
}

// Bulk enrollment outcomes.
const (
	BulkEnrolled        = "enrolled"
	BulkAlreadyEnrolled = "already_enrolled"
	BulkFailed          = "failed"
)

// BulkResult reports the outcome for one user of a bulk enrollment.
type BulkResult struct {
	UserID       string `json:"userId"`
	Status       string `json:"status"`
	EnrollmentID string `json:"enrollmentId,omitempty"`
	Error        string `json:"error,omitempty"`
}

// BulkEnroll enrolls each user independently; one failure never aborts the others.
func (s *EnrollmentService) BulkEnroll(ctx context.Context, p domain.Principal, userIDs []string, courseID string) ([]BulkResult, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	results := make([]BulkResult, len(userIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.bulkConcurrency)
	for i, userID := range userIDs {
		i, userID := i, userID // per-iteration copy (Go <1.22 loop semantics)
		g.Go(func() error {
			results[i] = s.enrollOne(gctx, userID, course)
			return nil
		})
	}
	_ = g.Wait()

	enrolled := 0
	for _, r := range results {
		if r.Status == BulkEnrolled {
			enrolled++
		}
	}
	s.log.Info("bulk enrollment finished", "course_id", course.ID, "requested", len(userIDs), "enrolled", enrolled)
	return results, nil
}

func (s *EnrollmentService) enrollOne(ctx context.Context, userID string, course domain.Course) BulkResult {
	res := BulkResult{UserID: userID}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		res.Status = BulkFailed
		res.Error = errorMessage(err)
		return res
	}
	var created domain.Enrollment
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		if err := ensureNotEnrolled(ctx, tx, userID, course.ID); err != nil {
			return err
		}
		var err error
		created, err = s.create(ctx, tx, domain.Enrollment{
			UserID:   userID,
			CourseID: course.ID,
			Type:     domain.EnrollmentAdmin,
		})
		return err
	})
	switch {
	case err == nil:
		res.Status = BulkEnrolled
		res.EnrollmentID = created.ID
	case errors.Is(err, domain.ErrAlreadyEnrolled):
		res.Status = BulkAlreadyEnrolled
	default:
		res.Status = BulkFailed
		res.Error = errorMessage(err)
		var de *domain.Error
		if !errors.As(err, &de) {
			s.log.Error("bulk enroll user failed", "user_id", userID, "course_id", course.ID, "error", err)
		}
	}
	return res
}

// create persists a new active enrollment at progress 0.
func (s *EnrollmentService) create(ctx context.Context, tx Store, e domain.Enrollment) (domain.Enrollment, error) {
	now := s.now()
	e.ID = uuid.NewString()
	e.Status = domain.EnrollmentActive
	e.Progress = 0
	e.EnrolledAt = now
	e.LastAccessedAt = timePtr(now)
	if err := tx.CreateEnrollment(ctx, e); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.Enrollment{}, domain.ErrDuplicateEnrollment
		}
		return domain.Enrollment{}, fmt.Errorf("create enrollment: %w", err)
	}
	return e, nil
}

func ensureNotEnrolled(ctx context.Context, tx Store, userID, courseID string) error {
	_, err := tx.FindEnrollment(ctx, userID, courseID)
	switch {
	case err == nil:
		return domain.ErrDuplicateEnrollment
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("find enrollment: %w", err)
	}
}

// checkSelfEnrollment applies the course's self-enrollment rules at now.
func checkSelfEnrollment(c domain.Course, now time.Time) error {
	if !c.AllowSelfEnrollment {
		return domain.ErrSelfEnrollmentDisabled
	}
	if c.Visibility == domain.VisibilityPrivate || c.Visibility == domain.VisibilityInviteOnly {
		return domain.ErrInvitationRequired
	}
	if c.EnrollmentStartDate != nil && now.Before(*c.EnrollmentStartDate) {
		return domain.ErrEnrollmentNotOpen
	}
	if c.EnrollmentEndDate != nil && now.After(*c.EnrollmentEndDate) {
		return domain.ErrEnrollmentClosed
	}
	return nil
}

func capacityLockKey(courseID string) string { return "capacity:" + courseID }

func errorMessage(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
