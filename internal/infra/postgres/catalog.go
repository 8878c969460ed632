package postgres

import (
	"context"
	"fmt"

	"lms-progress-service/internal/app"
	"lms-progress-service/internal/domain"
)

// Catalog writes upsert by primary key. They are used for seeding; the
// catalog is otherwise owned by the content service.

func (s *Store) PutUser(ctx context.Context, u domain.User) error {
	m := userModel{ID: u.ID, Username: u.Username, Email: u.Email}
	_, err := s.idb.NewInsert().
		Model(&m).
		On("CONFLICT (id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("email = EXCLUDED.email").
		Exec(ctx)
	return err
}

func (s *Store) PutCourse(ctx context.Context, c domain.Course) error {
	m := newCourseModel(c)
	_, err := s.idb.NewInsert().
		Model(&m).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("instructor_id = EXCLUDED.instructor_id").
		Set("visibility = EXCLUDED.visibility").
		Set("allow_self_enrollment = EXCLUDED.allow_self_enrollment").
		Set("enrollment_start_date = EXCLUDED.enrollment_start_date").
		Set("enrollment_end_date = EXCLUDED.enrollment_end_date").
		Set("max_enrollments = EXCLUDED.max_enrollments").
		Set("completion_percentage = EXCLUDED.completion_percentage").
		Set("certificate_enabled = EXCLUDED.certificate_enabled").
		Exec(ctx)
	return err
}

func (s *Store) PutModule(ctx context.Context, mod domain.Module) error {
	m := moduleModel{ID: mod.ID, CourseID: mod.CourseID, Title: mod.Title, Position: mod.Order}
	_, err := s.idb.NewInsert().
		Model(&m).
		On("CONFLICT (id) DO UPDATE").
		Set("course_id = EXCLUDED.course_id").
		Set("title = EXCLUDED.title").
		Set("position = EXCLUDED.position").
		Exec(ctx)
	return err
}

func (s *Store) PutLesson(ctx context.Context, l domain.Lesson) error {
	m := lessonModel{ID: l.ID, ModuleID: l.ModuleID, Title: l.Title, Position: l.Order}
	_, err := s.idb.NewInsert().
		Model(&m).
		On("CONFLICT (id) DO UPDATE").
		Set("module_id = EXCLUDED.module_id").
		Set("title = EXCLUDED.title").
		Set("position = EXCLUDED.position").
		Exec(ctx)
	return err
}

// PutQuiz replaces the quiz and its full question list.
func (s *Store) PutQuiz(ctx context.Context, q domain.Quiz) error {
	if err := q.Validate(); err != nil {
		return err
	}
	return s.WithinTx(ctx, func(ctx context.Context, txStore app.Store) error {
		tx := txStore.(*Store).idb
		m := quizModel{
			ID:                 q.ID,
			CourseID:           q.CourseID,
			Title:              q.Title,
			PassingScore:       q.PassThreshold(),
			MaxAttempts:        q.MaxAttempts,
			TimeLimit:          q.TimeLimit,
			ShuffleQuestions:   q.ShuffleQuestions,
			ShowCorrectAnswers: q.ShowCorrectAnswers,
		}
		_, err := tx.NewInsert().
			Model(&m).
			On("CONFLICT (id) DO UPDATE").
			Set("course_id = EXCLUDED.course_id").
			Set("title = EXCLUDED.title").
			Set("passing_score = EXCLUDED.passing_score").
			Set("max_attempts = EXCLUDED.max_attempts").
			Set("time_limit = EXCLUDED.time_limit").
			Set("shuffle_questions = EXCLUDED.shuffle_questions").
			Set("show_correct_answers = EXCLUDED.show_correct_answers").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert quiz: %w", err)
		}
		if _, err := tx.NewDelete().Model((*questionModel)(nil)).Where("quiz_id = ?", q.ID).Exec(ctx); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
		if len(q.Questions) == 0 {
			return nil
		}
		rows := make([]questionModel, 0, len(q.Questions))
		for i, qn := range q.Questions {
			order := qn.Order
			if order == 0 {
				order = i + 1
			}
			options := qn.Options
			if options == nil {
				options = []domain.Option{}
			}
			rows = append(rows, questionModel{
				ID:            qn.ID,
				QuizID:        q.ID,
				Type:          string(qn.Type),
				Prompt:        qn.Prompt,
				Options:       options,
				CorrectAnswer: qn.CorrectAnswer,
				Points:        qn.Weight(),
				CaseSensitive: qn.CaseSensitive,
				Explanation:   qn.Explanation,
				Position:      order,
			})
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
		return nil
	})
}
