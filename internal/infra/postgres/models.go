package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"lms-progress-service/internal/domain"
)

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID       string `bun:"id,pk"`
	Username string `bun:"username,notnull"`
	Email    string `bun:"email,notnull"`
}

func (m userModel) toDomain() domain.User {
	return domain.User{ID: m.ID, Username: m.Username, Email: m.Email}
}

type courseModel struct {
	bun.BaseModel `bun:"table:courses,alias:c"`

	ID                   string     `bun:"id,pk"`
	Title                string     `bun:"title,notnull"`
	InstructorID         string     `bun:"instructor_id,notnull"`
	Visibility           string     `bun:"visibility,notnull"`
	AllowSelfEnrollment  bool       `bun:"allow_self_enrollment,notnull"`
	EnrollmentStartDate  *time.Time `bun:"enrollment_start_date"`
	EnrollmentEndDate    *time.Time `bun:"enrollment_end_date"`
	MaxEnrollments       *int       `bun:"max_enrollments"`
	CompletionPercentage int        `bun:"completion_percentage,notnull"`
	CertificateEnabled   bool       `bun:"certificate_enabled,notnull"`
}

func newCourseModel(c domain.Course) courseModel {
	return courseModel{
		ID:                   c.ID,
		Title:                c.Title,
		InstructorID:         c.InstructorID,
		Visibility:           string(c.Visibility),
		AllowSelfEnrollment:  c.AllowSelfEnrollment,
		EnrollmentStartDate:  c.EnrollmentStartDate,
		EnrollmentEndDate:    c.EnrollmentEndDate,
		MaxEnrollments:       c.MaxEnrollments,
		CompletionPercentage: c.CompletionThreshold(),
		CertificateEnabled:   c.CertificateEnabled,
	}
}

func (m courseModel) toDomain() domain.Course {
	return domain.Course{
		ID:                   m.ID,
		Title:                m.Title,
		InstructorID:         m.InstructorID,
		Visibility:           domain.Visibility(m.Visibility),
		AllowSelfEnrollment:  m.AllowSelfEnrollment,
		EnrollmentStartDate:  m.EnrollmentStartDate,
		EnrollmentEndDate:    m.EnrollmentEndDate,
		MaxEnrollments:       m.MaxEnrollments,
		CompletionPercentage: m.CompletionPercentage,
		CertificateEnabled:   m.CertificateEnabled,
	}
}

type moduleModel struct {
	bun.BaseModel `bun:"table:modules,alias:m"`

	ID       string `bun:"id,pk"`
	CourseID string `bun:"course_id,notnull"`
	Title    string `bun:"title,notnull"`
	Position int    `bun:"position,notnull"`
}

type lessonModel struct {
	bun.BaseModel `bun:"table:lessons,alias:l"`

	ID       string `bun:"id,pk"`
	ModuleID string `bun:"module_id,notnull"`
	Title    string `bun:"title,notnull"`
	Position int    `bun:"position,notnull"`
	// resolved through modules
	CourseID string `bun:"course_id,scanonly"`
}

func (m lessonModel) toDomain() domain.Lesson {
	return domain.Lesson{ID: m.ID, ModuleID: m.ModuleID, CourseID: m.CourseID, Title: m.Title, Order: m.Position}
}

type quizModel struct {
	bun.BaseModel `bun:"table:quizzes,alias:qz"`

	ID                 string `bun:"id,pk"`
	CourseID           string `bun:"course_id,notnull"`
	Title              string `bun:"title,notnull"`
	PassingScore       int    `bun:"passing_score,notnull"`
	MaxAttempts        *int   `bun:"max_attempts"`
	TimeLimit          int    `bun:"time_limit,notnull"`
	ShuffleQuestions   bool   `bun:"shuffle_questions,notnull"`
	ShowCorrectAnswers bool   `bun:"show_correct_answers,notnull"`
}

type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:qn"`

	ID            string          `bun:"id,pk"`
	QuizID        string          `bun:"quiz_id,notnull"`
	Type          string          `bun:"type,notnull"`
	Prompt        string          `bun:"prompt,notnull"`
	Options       []domain.Option `bun:"options,type:jsonb,notnull"`
	CorrectAnswer domain.Answer   `bun:"correct_answer,type:jsonb"`
	Points        int             `bun:"points,notnull"`
	CaseSensitive bool            `bun:"case_sensitive,notnull"`
	Explanation   string          `bun:"explanation,notnull"`
	Position      int             `bun:"position,notnull"`
}

type enrollmentModel struct {
	bun.BaseModel `bun:"table:enrollments,alias:e"`

	ID             string     `bun:"id,pk"`
	UserID         string     `bun:"user_id,notnull"`
	CourseID       string     `bun:"course_id,notnull"`
	Type           string     `bun:"enrollment_type,notnull"`
	Status         string     `bun:"status,notnull"`
	Progress       int        `bun:"progress,notnull"`
	InviteCode     string     `bun:"invite_code,notnull"`
	InvitedBy      string     `bun:"invited_by,notnull"`
	EnrolledAt     time.Time  `bun:"enrolled_at,notnull"`
	LastAccessedAt *time.Time `bun:"last_accessed_at"`
	CompletedAt    *time.Time `bun:"completed_at"`
}

func newEnrollmentModel(e domain.Enrollment) enrollmentModel {
	return enrollmentModel{
		ID:             e.ID,
		UserID:         e.UserID,
		CourseID:       e.CourseID,
		Type:           string(e.Type),
		Status:         string(e.Status),
		Progress:       e.Progress,
		InviteCode:     e.InviteCode,
		InvitedBy:      e.InvitedBy,
		EnrolledAt:     e.EnrolledAt,
		LastAccessedAt: e.LastAccessedAt,
		CompletedAt:    e.CompletedAt,
	}
}

func (m enrollmentModel) toDomain() domain.Enrollment {
	return domain.Enrollment{
		ID:             m.ID,
		UserID:         m.UserID,
		CourseID:       m.CourseID,
		Type:           domain.EnrollmentType(m.Type),
		Status:         domain.EnrollmentStatus(m.Status),
		Progress:       m.Progress,
		InviteCode:     m.InviteCode,
		InvitedBy:      m.InvitedBy,
		EnrolledAt:     m.EnrolledAt,
		LastAccessedAt: m.LastAccessedAt,
		CompletedAt:    m.CompletedAt,
	}
}

type progressModel struct {
	bun.BaseModel `bun:"table:progress,alias:p"`

	ID              string     `bun:"id,pk"`
	UserID          string     `bun:"user_id,notnull"`
	CourseID        string     `bun:"course_id,notnull"`
	ModuleID        string     `bun:"module_id,notnull"`
	LessonID        string     `bun:"lesson_id,notnull"`
	Status          string     `bun:"status,notnull"`
	ProgressPercent int        `bun:"progress_percent,notnull"`
	StartedAt       time.Time  `bun:"started_at,notnull"`
	CompletedAt     *time.Time `bun:"completed_at"`
	LastAccessedAt  time.Time  `bun:"last_accessed_at,notnull"`
}

func newProgressModel(p domain.Progress) progressModel {
	return progressModel{
		ID:              p.ID,
		UserID:          p.UserID,
		CourseID:        p.CourseID,
		ModuleID:        p.ModuleID,
		LessonID:        p.LessonID,
		Status:          string(p.Status),
		ProgressPercent: p.ProgressPercent,
		StartedAt:       p.StartedAt,
		CompletedAt:     p.CompletedAt,
		LastAccessedAt:  p.LastAccessedAt,
	}
}

func (m progressModel) toDomain() domain.Progress {
	return domain.Progress{
		ID:              m.ID,
		UserID:          m.UserID,
		CourseID:        m.CourseID,
		ModuleID:        m.ModuleID,
		LessonID:        m.LessonID,
		Status:          domain.ProgressStatus(m.Status),
		ProgressPercent: m.ProgressPercent,
		StartedAt:       m.StartedAt,
		CompletedAt:     m.CompletedAt,
		LastAccessedAt:  m.LastAccessedAt,
	}
}

type attemptModel struct {
	bun.BaseModel `bun:"table:quiz_attempts,alias:a"`

	ID              string                         `bun:"id,pk"`
	UserID          string                         `bun:"user_id,notnull"`
	QuizID          string                         `bun:"quiz_id,notnull"`
	CourseID        string                         `bun:"course_id,notnull"`
	AttemptNumber   int                            `bun:"attempt_number,notnull"`
	Status          string                         `bun:"status,notnull"`
	StartedAt       time.Time                      `bun:"started_at,notnull"`
	SubmittedAt     *time.Time                     `bun:"submitted_at"`
	TimeSpent       int                            `bun:"time_spent,notnull"`
	Score           int                            `bun:"score,notnull"`
	MaxScore        int                            `bun:"max_score,notnull"`
	PercentageScore int                            `bun:"percentage_score,notnull"`
	Passed          bool                           `bun:"passed,notnull"`
	Answers         map[string]domain.GradedAnswer `bun:"answers,type:jsonb,notnull"`
}

func newAttemptModel(a domain.QuizAttempt) attemptModel {
	answers := a.Answers
	if answers == nil {
		answers = map[string]domain.GradedAnswer{}
	}
	return attemptModel{
		ID:              a.ID,
		UserID:          a.UserID,
		QuizID:          a.QuizID,
		CourseID:        a.CourseID,
		AttemptNumber:   a.AttemptNumber,
		Status:          string(a.Status),
		StartedAt:       a.StartedAt,
		SubmittedAt:     a.SubmittedAt,
		TimeSpent:       a.TimeSpent,
		Score:           a.Score,
		MaxScore:        a.MaxScore,
		PercentageScore: a.PercentageScore,
		Passed:          a.Passed,
		Answers:         answers,
	}
}

func (m attemptModel) toDomain() domain.QuizAttempt {
	return domain.QuizAttempt{
		ID:              m.ID,
		UserID:          m.UserID,
		QuizID:          m.QuizID,
		CourseID:        m.CourseID,
		AttemptNumber:   m.AttemptNumber,
		Status:          domain.AttemptStatus(m.Status),
		StartedAt:       m.StartedAt,
		SubmittedAt:     m.SubmittedAt,
		TimeSpent:       m.TimeSpent,
		Score:           m.Score,
		MaxScore:        m.MaxScore,
		PercentageScore: m.PercentageScore,
		Passed:          m.Passed,
		Answers:         m.Answers,
	}
}

type certificateModel struct {
	bun.BaseModel `bun:"table:certificates,alias:cert"`

	ID                string     `bun:"id,pk"`
	CertificateNumber string     `bun:"certificate_number,notnull"`
	UserID            string     `bun:"user_id,notnull"`
	CourseID          string     `bun:"course_id,notnull"`
	EnrollmentID      string     `bun:"enrollment_id,notnull"`
	RecipientName     string     `bun:"recipient_name,notnull"`
	CourseTitle       string     `bun:"course_title,notnull"`
	Grade             string     `bun:"grade,notnull"`
	IssuedAt          time.Time  `bun:"issued_at,notnull"`
	CompletionDate    time.Time  `bun:"completion_date,type:date,notnull"`
	Status            string     `bun:"status,notnull"`
	VerificationURL   string     `bun:"verification_url,notnull"`
	RevokedAt         *time.Time `bun:"revoked_at"`
}

func newCertificateModel(c domain.Certificate) (certificateModel, error) {
	completion, err := time.Parse(time.DateOnly, c.CompletionDate)
	if err != nil {
		return certificateModel{}, err
	}
	return certificateModel{
		ID:                c.ID,
		CertificateNumber: c.CertificateNumber,
		UserID:            c.UserID,
		CourseID:          c.CourseID,
		EnrollmentID:      c.EnrollmentID,
		RecipientName:     c.RecipientName,
		CourseTitle:       c.CourseTitle,
		Grade:             c.Grade,
		IssuedAt:          c.IssuedAt,
		CompletionDate:    completion,
		Status:            string(c.Status),
		VerificationURL:   c.VerificationURL,
		RevokedAt:         c.RevokedAt,
	}, nil
}

func (m certificateModel) toDomain() domain.Certificate {
	return domain.Certificate{
		ID:                m.ID,
		CertificateNumber: m.CertificateNumber,
		UserID:            m.UserID,
		CourseID:          m.CourseID,
		EnrollmentID:      m.EnrollmentID,
		RecipientName:     m.RecipientName,
		CourseTitle:       m.CourseTitle,
		Grade:             m.Grade,
		IssuedAt:          m.IssuedAt,
		CompletionDate:    m.CompletionDate.Format(time.DateOnly),
		Status:            domain.CertificateStatus(m.Status),
		VerificationURL:   m.VerificationURL,
		RevokedAt:         m.RevokedAt,
	}
}

type inviteModel struct {
	bun.BaseModel `bun:"table:invites,alias:i"`

	ID         string     `bun:"id,pk"`
	Code       string     `bun:"code,notnull"`
	CourseID   string     `bun:"course_id,notnull"`
	Email      string     `bun:"email,notnull"`
	InvitedBy  string     `bun:"invited_by,notnull"`
	Message    string     `bun:"message,notnull"`
	MaxUses    int        `bun:"max_uses,notnull"`
	UsedCount  int        `bun:"used_count,notnull"`
	UsedBy     string     `bun:"used_by,notnull"`
	Status     string     `bun:"status,notnull"`
	ExpiresAt  *time.Time `bun:"expires_at"`
	AcceptedAt *time.Time `bun:"accepted_at"`
	CreatedAt  time.Time  `bun:"created_at,notnull"`
}

func newInviteModel(inv domain.Invite) inviteModel {
	return inviteModel{
		ID:         inv.ID,
		Code:       inv.Code,
		CourseID:   inv.CourseID,
		Email:      inv.Email,
		InvitedBy:  inv.InvitedBy,
		Message:    inv.Message,
		MaxUses:    inv.MaxUses,
		UsedCount:  inv.UsedCount,
		UsedBy:     inv.UsedBy,
		Status:     string(inv.Status),
		ExpiresAt:  inv.ExpiresAt,
		AcceptedAt: inv.AcceptedAt,
		CreatedAt:  inv.CreatedAt,
	}
}

func (m inviteModel) toDomain() domain.Invite {
	return domain.Invite{
		ID:         m.ID,
		Code:       m.Code,
		CourseID:   m.CourseID,
		Email:      m.Email,
		InvitedBy:  m.InvitedBy,
		Message:    m.Message,
		MaxUses:    m.MaxUses,
		UsedCount:  m.UsedCount,
		UsedBy:     m.UsedBy,
		Status:     domain.InviteStatus(m.Status),
		ExpiresAt:  m.ExpiresAt,
		AcceptedAt: m.AcceptedAt,
		CreatedAt:  m.CreatedAt,
	}
}
