package app

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"lms-progress-service/internal/domain"
)

// QuizService runs the quiz attempt state machine: in_progress -> graded.
type QuizService struct {
	base
	quizzes QuizRepository
}

// StartedAttempt is returned by StartAttempt. Quiz never carries answer keys.
type StartedAttempt struct {
	Attempt domain.QuizAttempt `json:"attempt"`
	Quiz    domain.PublicQuiz  `json:"quiz"`
	Resumed bool               `json:"resumed"`
}

// StartAttempt opens an attempt for the caller, or resumes the one already
// in progress.
func (s *QuizService) StartAttempt(ctx context.Context, p domain.Principal, quizID string) (StartedAttempt, error) {
	if err := requireUser(p); err != nil {
		return StartedAttempt{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return StartedAttempt{}, err
	}
	if _, err := activeEnrollment(ctx, s.store, p.UserID, quiz.CourseID); err != nil {
		return StartedAttempt{}, err
	}

	unlock, err := s.lock(ctx, attemptLockKey(p.UserID, quiz.ID))
	if err != nil {
		return StartedAttempt{}, err
	}
	defer unlock()

	prior, err := s.store.ListAttempts(ctx, p.UserID, quiz.ID)
	if err != nil {
		return StartedAttempt{}, fmt.Errorf("list attempts: %w", err)
	}
	// An open attempt resumes even when the limit has been reached.
	for _, a := range prior {
		if a.Status == domain.AttemptInProgress {
			return StartedAttempt{Attempt: a, Quiz: deliverQuiz(quiz, a.ID), Resumed: true}, nil
		}
	}
	if quiz.MaxAttempts != nil && len(prior) >= *quiz.MaxAttempts {
		return StartedAttempt{}, domain.ErrMaxAttempts
	}

	attempt := domain.QuizAttempt{
		ID:            uuid.NewString(),
		UserID:        p.UserID,
		QuizID:        quiz.ID,
		CourseID:      quiz.CourseID,
		AttemptNumber: len(prior) + 1,
		Status:        domain.AttemptInProgress,
		StartedAt:     s.now(),
		Answers:       map[string]domain.GradedAnswer{},
	}
	if err := s.store.CreateAttempt(ctx, attempt); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Another instance opened an attempt between our read and write.
			return s.resume(ctx, p.UserID, quiz)
		}
		return StartedAttempt{}, fmt.Errorf("create attempt: %w", err)
	}
	return StartedAttempt{Attempt: attempt, Quiz: deliverQuiz(quiz, attempt.ID)}, nil
}

func (s *QuizService) resume(ctx context.Context, userID string, quiz domain.Quiz) (StartedAttempt, error) {
	prior, err := s.store.ListAttempts(ctx, userID, quiz.ID)
	if err != nil {
		return StartedAttempt{}, fmt.Errorf("list attempts: %w", err)
	}
	for _, a := range prior {
		if a.Status == domain.AttemptInProgress {
			return StartedAttempt{Attempt: a, Quiz: deliverQuiz(quiz, a.ID), Resumed: true}, nil
		}
	}
	return StartedAttempt{}, fmt.Errorf("create attempt: %w", domain.ErrConflict)
}

// SubmittedAttempt is returned by SubmitAttempt. Per-question detail is only
// present when the quiz shows correct answers.
type SubmittedAttempt struct {
	Attempt domain.QuizAttempt `json:"attempt"`
	Results domain.GradeResult `json:"results"`
}

// SubmitAttempt grades an in-progress attempt owned by the caller.
func (s *QuizService) SubmitAttempt(ctx context.Context, p domain.Principal, attemptID string, answers map[string]domain.Answer) (SubmittedAttempt, error) {
	if err := requireUser(p); err != nil {
		return SubmittedAttempt{}, err
	}
	attempt, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return SubmittedAttempt{}, err
	}
	if attempt.UserID != p.UserID {
		return SubmittedAttempt{}, domain.ErrNotAttemptOwner
	}
	if attempt.Status != domain.AttemptInProgress {
		return SubmittedAttempt{}, domain.ErrAttemptSubmitted
	}
	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return SubmittedAttempt{}, err
	}

	now := s.now()
	result := gradeAttempt(quiz, answers)
	attempt.Status = domain.AttemptGraded
	attempt.SubmittedAt = timePtr(now)
	attempt.TimeSpent = elapsedSeconds(attempt.StartedAt, now)
	attempt.Score = result.Score
	attempt.MaxScore = result.MaxScore
	attempt.PercentageScore = result.PercentageScore
	attempt.Passed = result.Passed
	attempt.Answers = result.Answers

	// Conditional write: a concurrent submit loses with ErrAttemptSubmitted.
	if err := s.store.GradeAttempt(ctx, attempt); err != nil {
		return SubmittedAttempt{}, err
	}

	if !quiz.ShowCorrectAnswers {
		result.Answers = nil
		attempt.Answers = nil
	}
	s.publish(ctx, domain.NewEvent(domain.EventQuizGraded, p.UserID, quiz.CourseID, map[string]any{
		"attemptId":       attempt.ID,
		"quizId":          quiz.ID,
		"percentageScore": result.PercentageScore,
		"passed":          result.Passed,
	}, now))
	return SubmittedAttempt{Attempt: attempt, Results: result}, nil
}

// deliverQuiz strips answer keys and, when requested, shuffles questions with
// a seed derived from the attempt so a resumed attempt sees the same order.
func deliverQuiz(quiz domain.Quiz, attemptID string) domain.PublicQuiz {
	pub := quiz.Public()
	if quiz.ShuffleQuestions && len(pub.Questions) > 1 {
		h := fnv.New64a()
		_, _ = h.Write([]byte(attemptID))
		rnd := rand.New(rand.NewSource(int64(h.Sum64())))
		rnd.Shuffle(len(pub.Questions), func(i, j int) {
			pub.Questions[i], pub.Questions[j] = pub.Questions[j], pub.Questions[i]
		})
	}
	return pub
}

func elapsedSeconds(start, end time.Time) int {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return int(d.Round(time.Second) / time.Second)
}

func attemptLockKey(userID, quizID string) string {
	return "attempt:" + userID + ":" + quizID
}
