package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lms-progress-service/internal/domain"
)

// QuizLoader loads a quiz and its ordered questions from Postgres.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var (
		quiz        domain.Quiz
		maxAttempts *int32
	)
	err := l.pool.QueryRow(ctx, `
		SELECT id, course_id, title, passing_score, max_attempts, time_limit,
		       shuffle_questions, show_correct_answers
		FROM quizzes WHERE id = $1`, quizID).
		Scan(&quiz.ID, &quiz.CourseID, &quiz.Title, &quiz.PassingScore, &maxAttempts,
			&quiz.TimeLimit, &quiz.ShuffleQuestions, &quiz.ShowCorrectAnswers)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	if maxAttempts != nil {
		n := int(*maxAttempts)
		quiz.MaxAttempts = &n
	}

	rows, err := l.pool.Query(ctx, `
		SELECT id, type, prompt, options, correct_answer, points, case_sensitive,
		       explanation, position
		FROM questions WHERE quiz_id = $1
		ORDER BY position, id`, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q             domain.Question
			qType         string
			options       []byte
			correctAnswer []byte
		)
		if err := rows.Scan(&q.ID, &qType, &q.Prompt, &options, &correctAnswer, &q.Points,
			&q.CaseSensitive, &q.Explanation, &q.Order); err != nil {
			return domain.Quiz{}, fmt.Errorf("scan question: %w", err)
		}
		q.QuizID = quizID
		q.Type = domain.QuestionType(qType)
		if len(options) > 0 {
			if err := json.Unmarshal(options, &q.Options); err != nil {
				return domain.Quiz{}, fmt.Errorf("unmarshal options of %s: %w", q.ID, err)
			}
		}
		if len(correctAnswer) > 0 {
			if err := json.Unmarshal(correctAnswer, &q.CorrectAnswer); err != nil {
				return domain.Quiz{}, fmt.Errorf("unmarshal answer key of %s: %w", q.ID, err)
			}
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz %s: %w", quizID, err)
	}
	return quiz, nil
}
