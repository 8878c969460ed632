package memory

import (
	"context"

	"lms-progress-service/internal/domain"
)

// CatalogWriter accepts the identity and course content the engine reads.
type CatalogWriter interface {
	PutUser(ctx context.Context, u domain.User) error
	PutCourse(ctx context.Context, c domain.Course) error
	PutModule(ctx context.Context, m domain.Module) error
	PutLesson(ctx context.Context, l domain.Lesson) error
	PutQuiz(ctx context.Context, q domain.Quiz) error
}

// SeedDemo loads a small demo catalog.
func SeedDemo(ctx context.Context, w CatalogWriter) error {
	users := []domain.User{
		{ID: "user-1", Username: "Ada Lovelace", Email: "ada@example.com"},
		{ID: "user-2", Username: "Alan Turing", Email: "alan@example.com"},
		{ID: "instructor-1", Username: "Grace Hopper", Email: "grace@example.com"},
	}
	for _, u := range users {
		if err := w.PutUser(ctx, u); err != nil {
			return err
		}
	}

	courses := []domain.Course{
		{
			ID:                  "course-go",
			Title:               "Go Fundamentals",
			InstructorID:        "instructor-1",
			Visibility:          domain.VisibilityPublic,
			AllowSelfEnrollment: true,
			CertificateEnabled:  true,
		},
		{
			ID:                 "course-private",
			Title:              "Distributed Systems Seminar",
			InstructorID:       "instructor-1",
			Visibility:         domain.VisibilityInviteOnly,
			CertificateEnabled: true,
		},
	}
	for _, c := range courses {
		if err := w.PutCourse(ctx, c); err != nil {
			return err
		}
	}

	modules := []domain.Module{
		{ID: "module-basics", CourseID: "course-go", Title: "Basics", Order: 1},
		{ID: "module-seminar", CourseID: "course-private", Title: "Consensus", Order: 1},
	}
	for _, m := range modules {
		if err := w.PutModule(ctx, m); err != nil {
			return err
		}
	}
	lessons := []domain.Lesson{
		{ID: "lesson-types", ModuleID: "module-basics", Title: "Types", Order: 1},
		{ID: "lesson-interfaces", ModuleID: "module-basics", Title: "Interfaces", Order: 2},
		{ID: "lesson-raft", ModuleID: "module-seminar", Title: "Raft", Order: 1},
	}
	for _, l := range lessons {
		if err := w.PutLesson(ctx, l); err != nil {
			return err
		}
	}

	maxAttempts := 3
	return w.PutQuiz(ctx, domain.Quiz{
		ID:                 "quiz-basics",
		CourseID:           "course-go",
		Title:              "Basics check",
		MaxAttempts:        &maxAttempts,
		ShowCorrectAnswers: true,
		Questions: []domain.Question{
			{
				ID:     "q1",
				QuizID: "quiz-basics",
				Type:   domain.MCQSingle,
				Prompt: "What is 2 + 2?",
				Options: []domain.Option{
					{ID: "a", Text: "3"},
					{ID: "b", Text: "4"},
					{ID: "c", Text: "5"},
				},
				CorrectAnswer: domain.Text("b"),
				Points:        1,
				Order:         1,
			},
			{
				ID:            "q2",
				QuizID:        "quiz-basics",
				Type:          domain.TrueFalse,
				Prompt:        "Interfaces in Go are satisfied implicitly.",
				CorrectAnswer: domain.Bool(true),
				Points:        1,
				Order:         2,
			},
			{
				ID:     "q3",
				QuizID: "quiz-basics",
				Type:   domain.MCQMultiple,
				Prompt: "Which are reference types?",
				Options: []domain.Option{
					{ID: "a", Text: "map"},
					{ID: "b", Text: "int"},
					{ID: "c", Text: "slice"},
				},
				CorrectAnswer: domain.Set("a", "c"),
				Points:        2,
				Order:         3,
			},
			{
				ID:            "q4",
				QuizID:        "quiz-basics",
				Type:          domain.ShortAnswer,
				Prompt:        "Which keyword starts a goroutine?",
				CorrectAnswer: domain.Set("go"),
				Explanation:   "The go statement runs a call in a new goroutine.",
				Points:        1,
				Order:         4,
			},
		},
	})
}
