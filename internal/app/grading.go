package app

import (
	"math"
	"strings"

	"lms-progress-service/internal/domain"
)

// gradeQuestion reports whether answer is correct for q. Each question type
// has exactly one rule; unknown types are never correct.
func gradeQuestion(q domain.Question, answer domain.Answer) bool {
	switch q.Type {
	case domain.MCQSingle, domain.TrueFalse:
		key := q.CorrectAnswer
		return answer.Present && !answer.Multi && key.Present && !key.Multi && answer.Value == key.Value
	case domain.MCQMultiple:
		var submitted, correct []string
		if answer.Multi {
			submitted = answer.Values
		}
		if q.CorrectAnswer.Multi {
			correct = q.CorrectAnswer.Values
		}
		return sameSet(submitted, correct)
	case domain.ShortAnswer:
		if !answer.Present || answer.Multi {
			return false
		}
		for _, accepted := range q.CorrectAnswer.List() {
			if q.CaseSensitive && answer.Value == accepted {
				return true
			}
			if !q.CaseSensitive && strings.EqualFold(answer.Value, accepted) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// sameSet compares a and b as sets: equal cardinality and every element of
// a present in b.
func sameSet(a, b []string) bool {
	as := toSet(a)
	bs := toSet(b)
	if len(as) != len(bs) {
		return false
	}
	for v := range as {
		if _, ok := bs[v]; !ok {
			return false
		}
	}
	return true
}

func toSet(vs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		set[v] = struct{}{}
	}
	return set
}

// gradeAttempt scores answers against every question of quiz. Unanswered
// questions count toward maxScore and score zero.
func gradeAttempt(quiz domain.Quiz, answers map[string]domain.Answer) domain.GradeResult {
	res := domain.GradeResult{Answers: make(map[string]domain.GradedAnswer, len(quiz.Questions))}
	for _, q := range quiz.Questions {
		points := q.Weight()
		res.MaxScore += points

		submitted := answers[q.ID]
		correct := gradeQuestion(q, submitted)
		awarded := 0
		if correct {
			awarded = points
			res.Score += points
		}
		res.Answers[q.ID] = domain.GradedAnswer{
			UserAnswer:  submitted,
			IsCorrect:   correct,
			Points:      awarded,
			Explanation: q.Explanation,
		}
	}
	res.PercentageScore = percentage(res.Score, res.MaxScore)
	res.Passed = res.PercentageScore >= quiz.PassThreshold()
	return res
}

func percentage(score, maxScore int) int {
	if maxScore <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(maxScore) * 100))
}
