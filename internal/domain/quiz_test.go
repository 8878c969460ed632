package domain

import (
	"errors"
	"testing"
)

func TestQuizValidate(t *testing.T) {
	valid := Quiz{Questions: []Question{
		{ID: "q1", Type: MCQSingle},
		{ID: "q2", Type: MCQMultiple},
		{ID: "q3", Type: TrueFalse},
		{ID: "q4", Type: ShortAnswer},
	}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	invalid := Quiz{Questions: []Question{{ID: "q1", Type: MCQSingle}, {ID: "q2", Type: "essay"}}}
	err := invalid.Validate()
	if !errors.Is(err, ErrInvalidQuestionType) || !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected invalid question type, got %v", err)
	}
}
