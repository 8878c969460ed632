package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms-progress-service/internal/app"
	"lms-progress-service/internal/domain"
	"lms-progress-service/internal/infra/memory"
)

var (
	ada        = domain.Principal{UserID: "user-1", Email: "ada@example.com", Name: "Ada Lovelace"}
	alan       = domain.Principal{UserID: "user-2", Email: "alan@example.com", Name: "Alan Turing"}
	instructor = domain.Principal{UserID: "instructor-1", Email: "grace@example.com"}
	admin      = domain.Principal{UserID: "admin-1", Admin: true}
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	ctx    context.Context
	store  *memory.Store
	events *memory.EventBus
	clock  *testClock
	engine *app.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, memory.SeedDemo(ctx, store))

	f := &fixture{
		ctx:    ctx,
		store:  store,
		events: memory.NewEventBus(),
		clock:  &testClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
	f.engine = app.NewWithClock(app.Options{
		Store:         store,
		Quizzes:       memory.NewQuizRepository(store, 0),
		Locker:        memory.NewLocker(),
		Events:        f.events,
		VerifyBaseURL: "https://lms.example.com/",
	}, f.clock.Now)
	return f
}

// addCourse stores an open course with one module holding lessonIDs.
func (f *fixture) addCourse(t *testing.T, course domain.Course, lessonIDs ...string) {
	t.Helper()
	if course.Visibility == "" {
		course.Visibility = domain.VisibilityPublic
		course.AllowSelfEnrollment = true
	}
	require.NoError(t, f.store.PutCourse(f.ctx, course))
	moduleID := course.ID + "-module"
	require.NoError(t, f.store.PutModule(f.ctx, domain.Module{ID: moduleID, CourseID: course.ID, Title: "Module", Order: 1}))
	for i, id := range lessonIDs {
		require.NoError(t, f.store.PutLesson(f.ctx, domain.Lesson{ID: id, ModuleID: moduleID, Title: id, Order: i + 1}))
	}
}

func (f *fixture) enroll(t *testing.T, p domain.Principal, courseID string) domain.Enrollment {
	t.Helper()
	e, err := f.engine.Enrollments.EnrollSelf(f.ctx, p, courseID)
	require.NoError(t, err)
	return e
}

// completeCourse enrolls p in a fresh single-lesson course and completes it.
func (f *fixture) completeCourse(t *testing.T, p domain.Principal, courseID string) app.LessonCompletion {
	t.Helper()
	f.enroll(t, p, courseID)
	out, err := f.engine.Progress.CompleteLesson(f.ctx, p, courseID+"-lesson")
	require.NoError(t, err)
	return out
}

func TestEnrollSelf(t *testing.T) {
	f := newFixture(t)

	e := f.enroll(t, ada, "course-go")
	assert.Equal(t, domain.EnrollmentSelf, e.Type)
	assert.Equal(t, domain.EnrollmentActive, e.Status)
	assert.Equal(t, 0, e.Progress)
	assert.Equal(t, f.clock.Now(), e.EnrolledAt)

	_, err := f.engine.Enrollments.EnrollSelf(f.ctx, ada, "course-go")
	require.ErrorIs(t, err, domain.ErrAlreadyEnrolled)

	_, err = f.engine.Enrollments.EnrollSelf(f.ctx, ada, "course-private")
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.engine.Enrollments.EnrollSelf(f.ctx, ada, "course-missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.engine.Enrollments.EnrollSelf(f.ctx, domain.Principal{}, "course-go")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestEnrollSelfDateWindow(t *testing.T) {
	f := newFixture(t)
	start := f.clock.Now().Add(time.Hour)
	end := f.clock.Now().Add(2 * time.Hour)
	f.addCourse(t, domain.Course{
		ID:                  "course-window",
		Title:               "Windowed",
		Visibility:          domain.VisibilityPublic,
		AllowSelfEnrollment: true,
		EnrollmentStartDate: &start,
		EnrollmentEndDate:   &end,
	})

	_, err := f.engine.Enrollments.EnrollSelf(f.ctx, ada, "course-window")
	require.ErrorIs(t, err, domain.ErrForbidden)

	f.clock.Advance(90 * time.Minute)
	f.enroll(t, ada, "course-window")

	f.clock.Advance(time.Hour)
	_, err = f.engine.Enrollments.EnrollSelf(f.ctx, alan, "course-window")
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestEnrollSelfCapacity(t *testing.T) {
	f := newFixture(t)
	limit := 1
	f.addCourse(t, domain.Course{ID: "course-small", Title: "Small", MaxEnrollments: &limit})

	f.enroll(t, ada, "course-small")

	_, err := f.engine.Enrollments.EnrollSelf(f.ctx, alan, "course-small")
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)

	// A full course reports capacity before the duplicate check.
	_, err = f.engine.Enrollments.EnrollSelf(f.ctx, ada, "course-small")
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)
}

func TestEnrollSelfCapacityCountsActiveOnly(t *testing.T) {
	f := newFixture(t)
	limit := 1
	f.addCourse(t, domain.Course{ID: "course-small", Title: "Small", MaxEnrollments: &limit}, "course-small-lesson")

	f.completeCourse(t, ada, "course-small")
	f.enroll(t, alan, "course-small")
}

func TestBulkEnroll(t *testing.T) {
	f := newFixture(t)

	first, err := f.engine.Enrollments.BulkEnroll(f.ctx, admin, []string{"user-1"}, "course-private")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, app.BulkEnrolled, first[0].Status)

	results, err := f.engine.Enrollments.BulkEnroll(f.ctx, admin, []string{"user-1", "user-2", "ghost"}, "course-private")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, app.BulkAlreadyEnrolled, results[0].Status)
	assert.Equal(t, app.BulkEnrolled, results[1].Status)
	assert.NotEmpty(t, results[1].EnrollmentID)
	assert.Equal(t, app.BulkFailed, results[2].Status)
	assert.Equal(t, "user not found", results[2].Error)

	e, err := f.store.FindEnrollment(f.ctx, "user-2", "course-private")
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentAdmin, e.Type)

	_, err = f.engine.Enrollments.BulkEnroll(f.ctx, instructor, []string{"user-1"}, "course-private")
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.engine.Enrollments.BulkEnroll(f.ctx, admin, []string{"user-1"}, "course-missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInviteSingleUse(t *testing.T) {
	f := newFixture(t)

	invite, err := f.engine.Invites.Create(f.ctx, instructor, "course-private", app.InviteRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, invite.MaxUses)
	assert.Equal(t, domain.InvitePending, invite.Status)
	assert.Equal(t, "instructor-1", invite.InvitedBy)

	e, err := f.engine.Enrollments.EnrollViaInvite(f.ctx, ada, invite.Code)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentInvite, e.Type)
	assert.Equal(t, invite.Code, e.InviteCode)
	assert.Equal(t, "instructor-1", e.InvitedBy)

	stored, err := f.store.GetInviteByCode(f.ctx, invite.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsedCount)
	assert.Equal(t, domain.InviteAccepted, stored.Status)
	assert.Equal(t, "user-1", stored.UsedBy)

	_, err = f.engine.Enrollments.EnrollViaInvite(f.ctx, alan, invite.Code)
	require.ErrorIs(t, err, domain.ErrLimitReached)

	_, err = f.engine.Enrollments.EnrollViaInvite(f.ctx, alan, "")
	require.ErrorIs(t, err, domain.ErrMissingInviteCode)
}

func TestInviteCreateRules(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Invites.Create(f.ctx, ada, "course-private", app.InviteRequest{})
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.engine.Invites.Create(f.ctx, admin, "course-private", app.InviteRequest{MaxUses: -1})
	require.ErrorIs(t, err, domain.ErrInvalid)

	_, err = f.engine.Invites.Create(f.ctx, admin, "course-missing", app.InviteRequest{})
	require.ErrorIs(t, err, domain.ErrNotFound)

	inv, err := f.engine.Invites.Create(f.ctx, admin, "course-private", app.InviteRequest{MaxUses: 5, Email: " alan@example.com "})
	require.NoError(t, err)
	assert.Equal(t, 5, inv.MaxUses)
	assert.Equal(t, "alan@example.com", inv.Email)
}

func TestInviteEmailAndExpiry(t *testing.T) {
	f := newFixture(t)
	expires := f.clock.Now().Add(time.Hour)

	inv, err := f.engine.Invites.Create(f.ctx, instructor, "course-private", app.InviteRequest{
		Email:     "ALAN@example.com",
		ExpiresAt: &expires,
	})
	require.NoError(t, err)

	_, err = f.engine.Enrollments.EnrollViaInvite(f.ctx, ada, inv.Code)
	require.ErrorIs(t, err, domain.ErrEmailMismatch)

	_, err = f.engine.Enrollments.EnrollViaInvite(f.ctx, alan, "INV-NOPE")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.engine.Enrollments.EnrollViaInvite(f.ctx, alan, "")
	require.ErrorIs(t, err, domain.ErrInvalid)

	f.clock.Advance(2 * time.Hour)
	_, err = f.engine.Enrollments.EnrollViaInvite(f.ctx, alan, inv.Code)
	require.ErrorIs(t, err, domain.ErrExpired)

	_, err = f.store.FindEnrollment(f.ctx, "user-2", "course-private")
	require.ErrorIs(t, err, domain.ErrNotFound)

	n, err := f.engine.Invites.ExpireStale(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := f.store.GetInviteByCode(f.ctx, inv.Code)
	require.NoError(t, err)
	assert.Equal(t, domain.InviteExpired, stored.Status)
	assert.Equal(t, 0, stored.UsedCount)
}

func TestInviteRedemptionRolledBackWhenAlreadyEnrolled(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Enrollments.BulkEnroll(f.ctx, admin, []string{"user-1"}, "course-private")
	require.NoError(t, err)

	inv, err := f.engine.Invites.Create(f.ctx, instructor, "course-private", app.InviteRequest{})
	require.NoError(t, err)

	_, err = f.engine.Enrollments.EnrollViaInvite(f.ctx, ada, inv.Code)
	require.ErrorIs(t, err, domain.ErrAlreadyEnrolled)

	stored, err := f.store.GetInviteByCode(f.ctx, inv.Code)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.UsedCount)
	assert.Equal(t, domain.InvitePending, stored.Status)
}

func TestConcurrentInviteRedemption(t *testing.T) {
	f := newFixture(t)

	invite, err := f.engine.Invites.Create(f.ctx, instructor, "course-private", app.InviteRequest{})
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		limited int
	)
	for _, p := range []domain.Principal{ada, alan} {
		wg.Add(1)
		go func(p domain.Principal) {
			defer wg.Done()
			_, err := f.engine.Enrollments.EnrollViaInvite(f.ctx, p, invite.Code)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, domain.ErrLimitReached):
				limited++
			default:
				t.Errorf("unexpected redemption error: %v", err)
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, 1, limited)

	stored, err := f.store.GetInviteByCode(f.ctx, invite.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsedCount)
	assert.Equal(t, domain.InviteAccepted, stored.Status)
}

func TestCourseCompletionIssuesOneCertificate(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, ada, "course-go")

	events, cancel, err := f.events.Subscribe(f.ctx, ada.UserID)
	require.NoError(t, err)
	defer cancel()

	first, err := f.engine.Progress.CompleteLesson(f.ctx, ada, "lesson-types")
	require.NoError(t, err)
	assert.Equal(t, 50, first.Enrollment.Progress)
	assert.False(t, first.Completed)
	assert.Nil(t, first.Certificate)

	f.clock.Advance(time.Hour)
	second, err := f.engine.Progress.CompleteLesson(f.ctx, ada, "lesson-interfaces")
	require.NoError(t, err)
	assert.Equal(t, 100, second.Enrollment.Progress)
	assert.True(t, second.Completed)
	assert.Equal(t, domain.EnrollmentCompleted, second.Enrollment.Status)
	require.NotNil(t, second.Enrollment.CompletedAt)
	assert.Equal(t, f.clock.Now(), *second.Enrollment.CompletedAt)

	require.NotNil(t, second.Certificate)
	cert := *second.Certificate
	assert.Equal(t, "Ada Lovelace", cert.RecipientName)
	assert.Equal(t, "Go Fundamentals", cert.CourseTitle)
	assert.Equal(t, "2025-03-01", cert.CompletionDate)
	assert.Equal(t, domain.CertificateIssued, cert.Status)
	assert.Equal(t, "https://lms.example.com/api/certificates/verify/"+cert.CertificateNumber, cert.VerificationURL)

	// Recomputing or issuing again never produces a second certificate.
	e, err := f.engine.Progress.RecomputeCourseProgress(f.ctx, ada.UserID, "course-go")
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentCompleted, e.Status)
	again, err := f.engine.Certificates.IssueIfAbsent(f.ctx, e)
	require.NoError(t, err)
	assert.Equal(t, cert.CertificateNumber, again.CertificateNumber)

	mine, err := f.engine.Certificates.Mine(f.ctx, ada)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	// Lessons of a completed course can no longer be recorded.
	_, err = f.engine.Progress.CompleteLesson(f.ctx, ada, "lesson-types")
	require.ErrorIs(t, err, domain.ErrNotEnrolled)

	want := []domain.EventType{
		domain.EventLessonCompleted,
		domain.EventCourseProgress,
		domain.EventLessonCompleted,
		domain.EventCourseProgress,
		domain.EventCourseCompleted,
		domain.EventCertificateIssued,
	}
	for _, typ := range want {
		select {
		case ev := <-events:
			assert.Equal(t, typ, ev.Type)
			assert.Equal(t, "course-go", ev.CourseID)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestConcurrentCompletionIssuesOneCertificate(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, ada, "course-go")

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		lessonID := "lesson-types"
		if i%2 == 1 {
			lessonID = "lesson-interfaces"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Calls landing after the course completed see no active enrollment.
			_, err := f.engine.Progress.CompleteLesson(f.ctx, ada, lessonID)
			if err != nil && !errors.Is(err, domain.ErrNotEnrolled) {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	mine, err := f.engine.Certificates.Mine(f.ctx, ada)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	e, err := f.store.FindEnrollment(f.ctx, ada.UserID, "course-go")
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentCompleted, e.Status)
	assert.Equal(t, 100, e.Progress)
}

func TestCompleteLessonKeepsFirstCompletedAt(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, ada, "course-go")

	first, err := f.engine.Progress.CompleteLesson(f.ctx, ada, "lesson-types")
	require.NoError(t, err)
	require.NotNil(t, first.Progress.CompletedAt)

	f.clock.Advance(time.Hour)
	second, err := f.engine.Progress.CompleteLesson(f.ctx, ada, "lesson-types")
	require.NoError(t, err)
	assert.Equal(t, first.Progress.ID, second.Progress.ID)
	assert.Equal(t, *first.Progress.CompletedAt, *second.Progress.CompletedAt)
	assert.Equal(t, f.clock.Now(), second.Progress.LastAccessedAt)
	assert.Equal(t, 50, second.Enrollment.Progress)
}

func TestCompleteLessonRequiresEnrollment(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Progress.CompleteLesson(f.ctx, ada, "lesson-types")
	require.ErrorIs(t, err, domain.ErrNotEnrolled)

	_, err = f.engine.Progress.CompleteLesson(f.ctx, ada, "lesson-missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecomputeWithoutLessonsIsNoop(t *testing.T) {
	f := newFixture(t)
	f.addCourse(t, domain.Course{ID: "course-empty", Title: "Empty", CertificateEnabled: true})
	f.enroll(t, ada, "course-empty")

	e, err := f.engine.Progress.RecomputeCourseProgress(f.ctx, ada.UserID, "course-empty")
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentActive, e.Status)
	assert.Equal(t, 0, e.Progress)

	_, err = f.store.FindCertificate(f.ctx, ada.UserID, "course-empty")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCourseProgressView(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, ada, "course-go")
	_, err := f.engine.Progress.CompleteLesson(f.ctx, ada, "lesson-types")
	require.NoError(t, err)
	_, err = f.engine.Quizzes.StartAttempt(f.ctx, ada, "quiz-basics")
	require.NoError(t, err)

	view, err := f.engine.Progress.CourseProgress(f.ctx, ada, "course-go")
	require.NoError(t, err)
	assert.Equal(t, 50, view.Enrollment.Progress)
	assert.Len(t, view.LessonProgress, 1)
	assert.Len(t, view.QuizAttempts, 1)

	_, err = f.engine.Progress.CourseProgress(f.ctx, alan, "course-go")
	require.ErrorIs(t, err, domain.ErrNotEnrolled)
}

func TestQuizAttemptLifecycle(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, ada, "course-go")

	started, err := f.engine.Quizzes.StartAttempt(f.ctx, ada, "quiz-basics")
	require.NoError(t, err)
	assert.False(t, started.Resumed)
	assert.Equal(t, 1, started.Attempt.AttemptNumber)
	assert.Equal(t, domain.AttemptInProgress, started.Attempt.Status)
	require.Len(t, started.Quiz.Questions, 4)

	raw, err := json.Marshal(started)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correctAnswer")

	resumed, err := f.engine.Quizzes.StartAttempt(f.ctx, ada, "quiz-basics")
	require.NoError(t, err)
	assert.True(t, resumed.Resumed)
	assert.Equal(t, started.Attempt.ID, resumed.Attempt.ID)

	f.clock.Advance(90 * time.Second)
	submitted, err := f.engine.Quizzes.SubmitAttempt(f.ctx, ada, started.Attempt.ID, map[string]domain.Answer{
		"q1": domain.Text("b"),
		"q2": domain.Bool(true),
		"q3": domain.Set("c", "a"),
		"q4": domain.Text("GO"),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, submitted.Results.Score)
	assert.Equal(t, 5, submitted.Results.MaxScore)
	assert.Equal(t, 100, submitted.Results.PercentageScore)
	assert.True(t, submitted.Results.Passed)
	assert.Len(t, submitted.Results.Answers, 4)
	assert.Equal(t, domain.AttemptGraded, submitted.Attempt.Status)
	assert.Equal(t, 90, submitted.Attempt.TimeSpent)

	_, err = f.engine.Quizzes.SubmitAttempt(f.ctx, ada, started.Attempt.ID, nil)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	next, err := f.engine.Quizzes.StartAttempt(f.ctx, ada, "quiz-basics")
	require.NoError(t, err)
	assert.Equal(t, 2, next.Attempt.AttemptNumber)

	graded, err := f.engine.Quizzes.SubmitAttempt(f.ctx, ada, next.Attempt.ID, map[string]domain.Answer{
		"q1": domain.Text("b"),
		"q2": domain.Bool(true),
	})
	require.NoError(t, err)
	assert.Equal(t, 40, graded.Results.PercentageScore)
	assert.False(t, graded.Results.Passed)
}

func TestQuizAttemptOwnership(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, ada, "course-go")
	f.enroll(t, alan, "course-go")

	started, err := f.engine.Quizzes.StartAttempt(f.ctx, ada, "quiz-basics")
	require.NoError(t, err)

	_, err = f.engine.Quizzes.SubmitAttempt(f.ctx, alan, started.Attempt.ID, nil)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.engine.Quizzes.SubmitAttempt(f.ctx, ada, "attempt-missing", nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQuizAttemptRequiresEnrollment(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Quizzes.StartAttempt(f.ctx, ada, "quiz-basics")
	require.ErrorIs(t, err, domain.ErrNotEnrolled)

	_, err = f.engine.Quizzes.StartAttempt(f.ctx, ada, "quiz-missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQuizAttemptLimit(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, ada, "course-go")

	var last app.StartedAttempt
	for i := 0; i < 3; i++ {
		started, err := f.engine.Quizzes.StartAttempt(f.ctx, ada, "quiz-basics")
		require.NoError(t, err)
		last = started
		if i < 2 {
			_, err = f.engine.Quizzes.SubmitAttempt(f.ctx, ada, started.Attempt.ID, nil)
			require.NoError(t, err)
		}
	}

	// The third attempt is still open, so it resumes even at the limit.
	resumed, err := f.engine.Quizzes.StartAttempt(f.ctx, ada, "quiz-basics")
	require.NoError(t, err)
	assert.Equal(t, last.Attempt.ID, resumed.Attempt.ID)

	_, err = f.engine.Quizzes.SubmitAttempt(f.ctx, ada, last.Attempt.ID, nil)
	require.NoError(t, err)

	_, err = f.engine.Quizzes.StartAttempt(f.ctx, ada, "quiz-basics")
	require.ErrorIs(t, err, domain.ErrAttemptLimitReached)
}

func TestQuizHiddenAnswers(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.PutQuiz(f.ctx, domain.Quiz{
		ID:       "quiz-hidden",
		CourseID: "course-go",
		Title:    "Hidden",
		Questions: []domain.Question{
			{ID: "h1", QuizID: "quiz-hidden", Type: domain.TrueFalse, CorrectAnswer: domain.Bool(true), Order: 1},
			{ID: "h2", QuizID: "quiz-hidden", Type: domain.ShortAnswer, CorrectAnswer: domain.Set("Paris"), Order: 2},
		},
	}))
	f.enroll(t, ada, "course-go")

	started, err := f.engine.Quizzes.StartAttempt(f.ctx, ada, "quiz-hidden")
	require.NoError(t, err)

	submitted, err := f.engine.Quizzes.SubmitAttempt(f.ctx, ada, started.Attempt.ID, map[string]domain.Answer{
		"h1": domain.Bool(true),
		"h2": domain.Text("London"),
	})
	require.NoError(t, err)
	assert.Equal(t, 50, submitted.Results.PercentageScore)
	assert.False(t, submitted.Results.Passed)
	assert.Nil(t, submitted.Results.Answers)
	assert.Nil(t, submitted.Attempt.Answers)

	stored, err := f.store.GetAttempt(f.ctx, started.Attempt.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Answers, 2)
	assert.False(t, stored.Answers["h2"].IsCorrect)
}

func TestQuizShuffleStableOnResume(t *testing.T) {
	f := newFixture(t)
	questions := make([]domain.Question, 8)
	for i := range questions {
		questions[i] = domain.Question{
			ID:            "s" + string(rune('1'+i)),
			QuizID:        "quiz-shuffle",
			Type:          domain.MCQSingle,
			CorrectAnswer: domain.Text("a"),
			Order:         i + 1,
		}
	}
	require.NoError(t, f.store.PutQuiz(f.ctx, domain.Quiz{
		ID:               "quiz-shuffle",
		CourseID:         "course-go",
		Title:            "Shuffled",
		ShuffleQuestions: true,
		Questions:        questions,
	}))
	f.enroll(t, ada, "course-go")

	order := func(q domain.PublicQuiz) []string {
		ids := make([]string, len(q.Questions))
		for i, pq := range q.Questions {
			ids[i] = pq.ID
		}
		return ids
	}

	started, err := f.engine.Quizzes.StartAttempt(f.ctx, ada, "quiz-shuffle")
	require.NoError(t, err)
	resumed, err := f.engine.Quizzes.StartAttempt(f.ctx, ada, "quiz-shuffle")
	require.NoError(t, err)
	assert.Equal(t, order(started.Quiz), order(resumed.Quiz))
	assert.ElementsMatch(t, order(started.Quiz), []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8"})
}

func TestCertificateVerifyAndRevoke(t *testing.T) {
	f := newFixture(t)
	f.addCourse(t, domain.Course{ID: "course-one", Title: "One", CertificateEnabled: true}, "course-one-lesson")
	out := f.completeCourse(t, ada, "course-one")
	require.NotNil(t, out.Certificate)
	number := out.Certificate.CertificateNumber

	v, err := f.engine.Certificates.Verify(f.ctx, " "+number+" ")
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, "Ada Lovelace", v.Certificate.RecipientName)

	_, err = f.engine.Certificates.Verify(f.ctx, "CERT-UNKNOWN")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.engine.Certificates.Revoke(f.ctx, ada, out.Certificate.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)

	revoked, err := f.engine.Certificates.Revoke(f.ctx, admin, out.Certificate.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CertificateRevoked, revoked.Status)
	require.NotNil(t, revoked.RevokedAt)
	revokedAt := *revoked.RevokedAt

	f.clock.Advance(time.Hour)
	again, err := f.engine.Certificates.Revoke(f.ctx, admin, out.Certificate.ID)
	require.NoError(t, err)
	assert.Equal(t, revokedAt, *again.RevokedAt)

	v, err = f.engine.Certificates.Verify(f.ctx, number)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, domain.CertificateRevoked, v.Certificate.Status)
}

func TestCertificateDisabledCourse(t *testing.T) {
	f := newFixture(t)
	f.addCourse(t, domain.Course{ID: "course-plain", Title: "Plain"}, "course-plain-lesson")

	out := f.completeCourse(t, ada, "course-plain")
	assert.True(t, out.Completed)
	assert.Nil(t, out.Certificate)
}

func TestCertificateNumberCollisionRetries(t *testing.T) {
	f := newFixture(t)
	f.addCourse(t, domain.Course{ID: "course-one", Title: "One", CertificateEnabled: true}, "course-one-lesson")

	numbers := []string{"CERT-FIXED", "CERT-FIXED", "CERT-FIXED", "CERT-NEXT"}
	var mu sync.Mutex
	f.engine.SetCertificateNumbers(func(time.Time) string {
		mu.Lock()
		defer mu.Unlock()
		n := numbers[0]
		numbers = numbers[1:]
		return n
	})

	first := f.completeCourse(t, ada, "course-one")
	require.NotNil(t, first.Certificate)
	assert.Equal(t, "CERT-FIXED", first.Certificate.CertificateNumber)

	second := f.completeCourse(t, alan, "course-one")
	require.NotNil(t, second.Certificate)
	assert.Equal(t, "CERT-NEXT", second.Certificate.CertificateNumber)
}

func TestCertificateCollisionExhaustionRollsBackCompletion(t *testing.T) {
	f := newFixture(t)
	f.addCourse(t, domain.Course{ID: "course-one", Title: "One", CertificateEnabled: true}, "course-one-lesson")
	f.engine.SetCertificateNumbers(func(time.Time) string { return "CERT-FIXED" })

	f.completeCourse(t, ada, "course-one")

	f.enroll(t, alan, "course-one")
	_, err := f.engine.Progress.CompleteLesson(f.ctx, alan, "course-one-lesson")
	require.ErrorIs(t, err, domain.ErrConflict)

	e, err := f.store.FindEnrollment(f.ctx, alan.UserID, "course-one")
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentActive, e.Status)
	assert.Equal(t, 0, e.Progress)
}
