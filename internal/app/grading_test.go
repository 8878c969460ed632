package app

import (
	"errors"
	"testing"
	"time"

	"lms-progress-service/internal/domain"
)

func TestGradeQuestion(t *testing.T) {
	single := domain.Question{Type: domain.MCQSingle, CorrectAnswer: domain.Text("b")}
	trueFalse := domain.Question{Type: domain.TrueFalse, CorrectAnswer: domain.Bool(false)}
	multi := domain.Question{Type: domain.MCQMultiple, CorrectAnswer: domain.Set("A", "C")}
	short := domain.Question{Type: domain.ShortAnswer, CorrectAnswer: domain.Set("paris", "Paris City")}
	shortCase := domain.Question{Type: domain.ShortAnswer, CorrectAnswer: domain.Set("Go"), CaseSensitive: true}

	tests := []struct {
		name   string
		q      domain.Question
		answer domain.Answer
		want   bool
	}{
		{"single correct", single, domain.Text("b"), true},
		{"single wrong", single, domain.Text("a"), false},
		{"single missing", single, domain.Answer{}, false},
		{"single given as set", single, domain.Set("b"), false},
		{"true_false correct", trueFalse, domain.Bool(false), true},
		{"true_false wrong", trueFalse, domain.Bool(true), false},
		{"multi exact", multi, domain.Set("A", "C"), true},
		{"multi reordered", multi, domain.Set("C", "A"), true},
		{"multi subset", multi, domain.Set("A"), false},
		{"multi superset", multi, domain.Set("A", "B", "C"), false},
		{"multi scalar is empty set", multi, domain.Text("A"), false},
		{"short case-insensitive", short, domain.Text("PARIS"), true},
		{"short second accepted", short, domain.Text("paris city"), true},
		{"short untrimmed", short, domain.Text(" paris"), false},
		{"short case-sensitive hit", shortCase, domain.Text("Go"), true},
		{"short case-sensitive miss", shortCase, domain.Text("go"), false},
		{"unknown type", domain.Question{Type: "essay", CorrectAnswer: domain.Text("x")}, domain.Text("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gradeQuestion(tt.q, tt.answer); got != tt.want {
				t.Fatalf("gradeQuestion = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGradeQuestionEmptyMultiKey(t *testing.T) {
	q := domain.Question{Type: domain.MCQMultiple, CorrectAnswer: domain.Set()}
	if !gradeQuestion(q, domain.Set()) {
		t.Fatalf("empty submission should match empty key")
	}
	if !gradeQuestion(q, domain.Answer{}) {
		t.Fatalf("missing submission should match empty key")
	}
}

func TestGradeAttemptScoring(t *testing.T) {
	quiz := domain.Quiz{
		Questions: []domain.Question{
			{ID: "q1", Type: domain.MCQSingle, CorrectAnswer: domain.Text("a"), Points: 1},
			{ID: "q2", Type: domain.MCQMultiple, CorrectAnswer: domain.Set("x", "y"), Points: 2},
			{ID: "q3", Type: domain.ShortAnswer, CorrectAnswer: domain.Set("go")},
		},
	}

	res := gradeAttempt(quiz, map[string]domain.Answer{
		"q1": domain.Text("a"),
		"q2": domain.Set("y", "x"),
	})
	if res.Score != 3 || res.MaxScore != 4 {
		t.Fatalf("expected 3/4, got %d/%d", res.Score, res.MaxScore)
	}
	if res.PercentageScore != 75 || !res.Passed {
		t.Fatalf("expected 75%% passed, got %d%% passed=%v", res.PercentageScore, res.Passed)
	}
	if got := res.Answers["q3"]; got.IsCorrect || got.Points != 0 || got.UserAnswer.Present {
		t.Fatalf("unanswered question should score zero, got %+v", got)
	}
	if got := res.Answers["q2"]; !got.IsCorrect || got.Points != 2 {
		t.Fatalf("expected q2 worth 2 points, got %+v", got)
	}
}

func TestGradeAttemptPassBoundary(t *testing.T) {
	questions := make([]domain.Question, 10)
	for i := range questions {
		questions[i] = domain.Question{ID: string(rune('a' + i)), Type: domain.MCQSingle, CorrectAnswer: domain.Text("ok")}
	}
	answers := func(n int) map[string]domain.Answer {
		out := map[string]domain.Answer{}
		for i := 0; i < n; i++ {
			out[questions[i].ID] = domain.Text("ok")
		}
		return out
	}

	quiz := domain.Quiz{Questions: questions}
	if res := gradeAttempt(quiz, answers(7)); res.PercentageScore != 70 || !res.Passed {
		t.Fatalf("70%% should pass the default threshold, got %+v", res)
	}
	if res := gradeAttempt(quiz, answers(6)); res.Passed {
		t.Fatalf("60%% should fail the default threshold")
	}

	quiz.PassingScore = 80
	if res := gradeAttempt(quiz, answers(7)); res.Passed {
		t.Fatalf("70%% should fail an 80%% threshold")
	}
}

func TestGradeAttemptNoQuestions(t *testing.T) {
	res := gradeAttempt(domain.Quiz{}, nil)
	if res.MaxScore != 0 || res.PercentageScore != 0 || res.Passed {
		t.Fatalf("empty quiz should score 0 and fail, got %+v", res)
	}
}

func TestPercentageRounding(t *testing.T) {
	tests := []struct {
		score, max, want int
	}{
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := percentage(tt.score, tt.max); got != tt.want {
			t.Fatalf("percentage(%d,%d) = %d, want %d", tt.score, tt.max, got, tt.want)
		}
	}
}

func TestComputeProgress(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	course := domain.Course{ID: "c1"}
	active := domain.Enrollment{ID: "e1", Status: domain.EnrollmentActive}

	next, done := computeProgress(active, course, 1, 2, now)
	if done || next.Progress != 50 || next.Status != domain.EnrollmentActive {
		t.Fatalf("expected 50%% active, got %+v done=%v", next, done)
	}

	next, done = computeProgress(active, course, 2, 2, now)
	if !done || next.Status != domain.EnrollmentCompleted || next.CompletedAt == nil || !next.CompletedAt.Equal(now) {
		t.Fatalf("expected completion transition, got %+v done=%v", next, done)
	}

	// A completed enrollment stays completed even if lessons are added later.
	later := now.Add(time.Hour)
	again, done := computeProgress(next, course, 2, 3, later)
	if done || again.Status != domain.EnrollmentCompleted || !again.CompletedAt.Equal(now) {
		t.Fatalf("completed enrollment must not revert, got %+v", again)
	}
	if again.Progress != 67 {
		t.Fatalf("expected progress 67, got %d", again.Progress)
	}

	partial := domain.Course{ID: "c2", CompletionPercentage: 50}
	if _, done := computeProgress(active, partial, 1, 2, now); !done {
		t.Fatalf("expected completion at a 50%% threshold")
	}
}

func TestApplyRedemption(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	p := domain.Principal{UserID: "u1", Email: "Ada@Example.com"}

	tests := []struct {
		name    string
		invite  domain.Invite
		wantErr error
	}{
		{"used up before status", domain.Invite{MaxUses: 1, UsedCount: 1, Status: domain.InviteAccepted}, domain.ErrLimitReached},
		{"cancelled", domain.Invite{MaxUses: 1, Status: domain.InviteCancelled}, domain.ErrInvalid},
		{"expired", domain.Invite{MaxUses: 1, Status: domain.InvitePending, ExpiresAt: &past}, domain.ErrExpired},
		{"email mismatch", domain.Invite{MaxUses: 1, Status: domain.InvitePending, Email: "bob@example.com"}, domain.ErrEmailMismatch},
		{"email case-insensitive", domain.Invite{MaxUses: 1, Status: domain.InvitePending, Email: "ada@example.com"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := applyRedemption(tt.invite, p, now)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestApplyRedemptionCountsUses(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	inv := domain.Invite{MaxUses: 2, Status: domain.InvitePending}

	inv, err := applyRedemption(inv, domain.Principal{UserID: "u1"}, now)
	if err != nil {
		t.Fatalf("first use: %v", err)
	}
	if inv.UsedCount != 1 || inv.Status != domain.InvitePending {
		t.Fatalf("expected 1 use still pending, got %+v", inv)
	}
	inv, err = applyRedemption(inv, domain.Principal{UserID: "u2"}, now)
	if err != nil {
		t.Fatalf("second use: %v", err)
	}
	if inv.UsedCount != 2 || inv.Status != domain.InviteAccepted || inv.UsedBy != "u2" {
		t.Fatalf("expected accepted after last use, got %+v", inv)
	}
}

func TestCheckSelfEnrollment(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tomorrow := now.Add(24 * time.Hour)
	yesterday := now.Add(-24 * time.Hour)

	tests := []struct {
		name   string
		course domain.Course
		want   error
	}{
		{"open", domain.Course{Visibility: domain.VisibilityPublic, AllowSelfEnrollment: true}, nil},
		{"disabled", domain.Course{Visibility: domain.VisibilityPublic}, domain.ErrSelfEnrollmentDisabled},
		{"private", domain.Course{Visibility: domain.VisibilityPrivate, AllowSelfEnrollment: true}, domain.ErrInvitationRequired},
		{"invite only", domain.Course{Visibility: domain.VisibilityInviteOnly, AllowSelfEnrollment: true}, domain.ErrInvitationRequired},
		{"not open yet", domain.Course{Visibility: domain.VisibilityPublic, AllowSelfEnrollment: true, EnrollmentStartDate: &tomorrow}, domain.ErrEnrollmentNotOpen},
		{"closed", domain.Course{Visibility: domain.VisibilityPublic, AllowSelfEnrollment: true, EnrollmentEndDate: &yesterday}, domain.ErrEnrollmentClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := checkSelfEnrollment(tt.course, now); err != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewCodeFormat(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	code := newCertificateNumber(now)
	if len(code) < len("CERT--XXXX") || code[:5] != "CERT-" {
		t.Fatalf("unexpected certificate number %q", code)
	}
	if newInviteCode(now) == newInviteCode(now) {
		t.Fatalf("invite codes should differ")
	}
}
