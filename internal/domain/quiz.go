package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// QuestionType selects the correctness rule applied to a question.
type QuestionType string

const (
	MCQSingle   QuestionType = "mcq_single"
	MCQMultiple QuestionType = "mcq_multiple"
	TrueFalse   QuestionType = "true_false"
	ShortAnswer QuestionType = "short_answer"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case MCQSingle, MCQMultiple, TrueFalse, ShortAnswer:
		return true
	}
	return false
}

// DefaultPassingScore applies when a quiz does not set its own threshold.
const DefaultPassingScore = 70

// Answer is a submitted or expected value. It is either a single scalar or a
// set of scalars; booleans and numbers are normalized to their string form.
type Answer struct {
	Value   string
	Values  []string
	Multi   bool
	Present bool
}

// Text builds a scalar answer.
func Text(v string) Answer { return Answer{Value: v, Present: true} }

// Bool builds a true/false answer.
func Bool(v bool) Answer { return Text(fmt.Sprint(v)) }

// Set builds a multi-valued answer.
func Set(vs ...string) Answer {
	return Answer{Values: append([]string(nil), vs...), Multi: true, Present: true}
}

// List returns the answer as a slice: Values for multi answers, otherwise a
// single-element slice (or nil when absent).
func (a Answer) List() []string {
	if a.Multi {
		return a.Values
	}
	if !a.Present {
		return nil
	}
	return []string{a.Value}
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch {
	case a.Multi:
		vs := a.Values
		if vs == nil {
			vs = []string{}
		}
		return json.Marshal(vs)
	case a.Present:
		return json.Marshal(a.Value)
	default:
		return []byte("null"), nil
	}
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	*a = Answer{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		values := make([]string, 0, len(raw))
		for _, item := range raw {
			v, ok, err := scalar(item)
			if err != nil {
				return err
			}
			if ok {
				values = append(values, v)
			}
		}
		*a = Answer{Values: values, Multi: true, Present: true}
		return nil
	}
	v, ok, err := scalar(data)
	if err != nil {
		return err
	}
	if ok {
		*a = Text(v)
	}
	return nil
}

func scalar(data []byte) (string, bool, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", false, err
	}
	switch t := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return t, true, nil
	case bool:
		return fmt.Sprint(t), true, nil
	case json.Number:
		return t.String(), true, nil
	default:
		return "", false, fmt.Errorf("answer: unsupported value %s", data)
	}
}

// Option is a selectable choice of a choice-type question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is a tagged variant: Type decides how CorrectAnswer is shaped and
// compared. Scalar for mcq_single and true_false, a set for mcq_multiple, and a
// list of acceptable strings for short_answer.
type Question struct {
	ID            string       `json:"id"`
	QuizID        string       `json:"quizId"`
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"prompt"`
	Options       []Option     `json:"options,omitempty"`
	CorrectAnswer Answer       `json:"correctAnswer"`
	Points        int          `json:"points"` // defaults to 1 if zero
	CaseSensitive bool         `json:"caseSensitive,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
	Order         int          `json:"order"`
}

// Weight returns the question's point value.
func (q Question) Weight() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// Quiz belongs to a course and holds its questions in order.
type Quiz struct {
	ID                 string     `json:"id"`
	CourseID           string     `json:"courseId"`
	Title              string     `json:"title"`
	PassingScore       int        `json:"passingScore"` // 0 means DefaultPassingScore
	MaxAttempts        *int       `json:"maxAttempts,omitempty"`
	TimeLimit          int        `json:"timeLimit,omitempty"` // minutes
	ShuffleQuestions   bool       `json:"shuffleQuestions"`
	ShowCorrectAnswers bool       `json:"showCorrectAnswers"`
	Questions          []Question `json:"questions"`
}

// Validate rejects quizzes holding a question of unknown type.
func (q Quiz) Validate() error {
	for _, question := range q.Questions {
		if !question.Type.Valid() {
			return fmt.Errorf("question %s type %q: %w", question.ID, question.Type, ErrInvalidQuestionType)
		}
	}
	return nil
}

// PassThreshold returns the effective passing percentage.
func (q Quiz) PassThreshold() int {
	if q.PassingScore <= 0 {
		return DefaultPassingScore
	}
	return q.PassingScore
}

// PublicQuestion never carries the answer key or explanation.
type PublicQuestion struct {
	ID      string       `json:"id"`
	Type    QuestionType `json:"type"`
	Prompt  string       `json:"prompt"`
	Options []Option     `json:"options,omitempty"`
	Points  int          `json:"points"`
	Order   int          `json:"order"`
}

// PublicQuiz is the quiz as delivered to a learner taking it.
type PublicQuiz struct {
	ID                 string           `json:"id"`
	CourseID           string           `json:"courseId"`
	Title              string           `json:"title"`
	PassingScore       int              `json:"passingScore"`
	MaxAttempts        *int             `json:"maxAttempts,omitempty"`
	TimeLimit          int              `json:"timeLimit,omitempty"`
	ShowCorrectAnswers bool             `json:"showCorrectAnswers"`
	Questions          []PublicQuestion `json:"questions"`
}

// Public strips answer keys, keeping question order.
func (q Quiz) Public() PublicQuiz {
	questions := make([]PublicQuestion, 0, len(q.Questions))
	for _, question := range q.Questions {
		questions = append(questions, PublicQuestion{
			ID:      question.ID,
			Type:    question.Type,
			Prompt:  question.Prompt,
			Options: question.Options,
			Points:  question.Weight(),
			Order:   question.Order,
		})
	}
	return PublicQuiz{
		ID:                 q.ID,
		CourseID:           q.CourseID,
		Title:              q.Title,
		PassingScore:       q.PassThreshold(),
		MaxAttempts:        q.MaxAttempts,
		TimeLimit:          q.TimeLimit,
		ShowCorrectAnswers: q.ShowCorrectAnswers,
		Questions:          questions,
	}
}

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptGraded     AttemptStatus = "graded"
)

// GradedAnswer is the per-question outcome recorded on a graded attempt.
type GradedAnswer struct {
	UserAnswer  Answer `json:"userAnswer"`
	IsCorrect   bool   `json:"isCorrect"`
	Points      int    `json:"points"`
	Explanation string `json:"explanation,omitempty"`
}

// QuizAttempt moves from in_progress to graded and never back.
type QuizAttempt struct {
	ID              string                  `json:"id"`
	UserID          string                  `json:"userId"`
	QuizID          string                  `json:"quizId"`
	CourseID        string                  `json:"courseId"`
	AttemptNumber   int                     `json:"attemptNumber"`
	Status          AttemptStatus           `json:"status"`
	StartedAt       time.Time               `json:"startedAt"`
	SubmittedAt     *time.Time              `json:"submittedAt,omitempty"`
	TimeSpent       int                     `json:"timeSpent"` // seconds
	Score           int                     `json:"score"`
	MaxScore        int                     `json:"maxScore"`
	PercentageScore int                     `json:"percentageScore"`
	Passed          bool                    `json:"passed"`
	Answers         map[string]GradedAnswer `json:"answers"`
}

// GradeResult is returned to the learner after submission. Answers is only
// populated when the quiz shows correct answers.
type GradeResult struct {
	Score           int                     `json:"score"`
	MaxScore        int                     `json:"maxScore"`
	PercentageScore int                     `json:"percentageScore"`
	Passed          bool                    `json:"passed"`
	Answers         map[string]GradedAnswer `json:"answers,omitempty"`
}
