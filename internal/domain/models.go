package domain

import "time"

// Visibility controls who may discover and self-enroll in a course.
type Visibility string

const (
	VisibilityPublic     Visibility = "public"
	VisibilityPrivate    Visibility = "private"
	VisibilityInviteOnly Visibility = "invite_only"
)

// DefaultCompletionPercentage applies when a course does not set its own threshold.
const DefaultCompletionPercentage = 100

// Principal is an already-authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Admin  bool
}

// User is the subset of the identity record the engine needs.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Course holds the enrollment and completion rules of a course.
type Course struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	InstructorID         string     `json:"instructorId,omitempty"`
	Visibility           Visibility `json:"visibility"`
	AllowSelfEnrollment  bool       `json:"allowSelfEnrollment"`
	EnrollmentStartDate  *time.Time `json:"enrollmentStartDate,omitempty"`
	EnrollmentEndDate    *time.Time `json:"enrollmentEndDate,omitempty"`
	MaxEnrollments       *int       `json:"maxEnrollments,omitempty"`
	CompletionPercentage int        `json:"completionPercentage"` // 0 means DefaultCompletionPercentage
	CertificateEnabled   bool       `json:"certificateEnabled"`
}

// CompletionThreshold returns the effective completion percentage.
func (c Course) CompletionThreshold() int {
	if c.CompletionPercentage <= 0 {
		return DefaultCompletionPercentage
	}
	return c.CompletionPercentage
}

// Module groups lessons inside a course.
type Module struct {
	ID       string `json:"id"`
	CourseID string `json:"courseId"`
	Title    string `json:"title"`
	Order    int    `json:"order"`
}

// Lesson is the unit of progress. CourseID is resolved through its module.
type Lesson struct {
	ID       string `json:"id"`
	ModuleID string `json:"moduleId"`
	CourseID string `json:"courseId"`
	Title    string `json:"title"`
	Order    int    `json:"order"`
}

type EnrollmentType string

const (
	EnrollmentSelf   EnrollmentType = "self"
	EnrollmentInvite EnrollmentType = "invite"
	EnrollmentAdmin  EnrollmentType = "admin"
)

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentExpired   EnrollmentStatus = "expired"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

// Enrollment links a learner to a course. At most one non-cancelled
// enrollment exists per (UserID, CourseID).
type Enrollment struct {
	ID             string           `json:"id"`
	UserID         string           `json:"userId"`
	CourseID       string           `json:"courseId"`
	Type           EnrollmentType   `json:"enrollmentType"`
	Status         EnrollmentStatus `json:"status"`
	Progress       int              `json:"progress"`
	InviteCode     string           `json:"inviteCode,omitempty"`
	InvitedBy      string           `json:"invitedBy,omitempty"`
	EnrolledAt     time.Time        `json:"enrolledAt"`
	LastAccessedAt *time.Time       `json:"lastAccessedAt,omitempty"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
}

type ProgressStatus string

const (
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
)

// Progress is the per-lesson record of a learner. LessonID may be empty for
// rows tracked at a coarser granularity; those never count toward completion.
type Progress struct {
	ID              string         `json:"id"`
	UserID          string         `json:"userId"`
	CourseID        string         `json:"courseId"`
	ModuleID        string         `json:"moduleId,omitempty"`
	LessonID        string         `json:"lessonId,omitempty"`
	Status          ProgressStatus `json:"status"`
	ProgressPercent int            `json:"progressPercent"`
	StartedAt       time.Time      `json:"startedAt"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty"`
	LastAccessedAt  time.Time      `json:"lastAccessedAt"`
}

type CertificateStatus string

const (
	CertificateIssued  CertificateStatus = "issued"
	CertificateRevoked CertificateStatus = "revoked"
)

// Certificate is issued at most once per (UserID, CourseID).
type Certificate struct {
	ID                string            `json:"id"`
	CertificateNumber string            `json:"certificateNumber"`
	UserID            string            `json:"userId"`
	CourseID          string            `json:"courseId"`
	EnrollmentID      string            `json:"enrollmentId"`
	RecipientName     string            `json:"recipientName"`
	CourseTitle       string            `json:"courseTitle"`
	Grade             string            `json:"grade,omitempty"`
	IssuedAt          time.Time         `json:"issuedAt"`
	CompletionDate    string            `json:"completionDate"` // YYYY-MM-DD
	Status            CertificateStatus `json:"status"`
	VerificationURL   string            `json:"verificationUrl"`
	RevokedAt         *time.Time        `json:"revokedAt,omitempty"`
}

// PublicCertificate is the view exposed to unauthenticated verification.
type PublicCertificate struct {
	CertificateNumber string            `json:"certificateNumber"`
	RecipientName     string            `json:"recipientName"`
	CourseTitle       string            `json:"courseTitle"`
	CompletionDate    string            `json:"completionDate"`
	IssuedAt          time.Time         `json:"issuedAt"`
	Status            CertificateStatus `json:"status"`
	Grade             string            `json:"grade,omitempty"`
}

// Public strips identifiers and internal keys.
func (c Certificate) Public() PublicCertificate {
	return PublicCertificate{
		CertificateNumber: c.CertificateNumber,
		RecipientName:     c.RecipientName,
		CourseTitle:       c.CourseTitle,
		CompletionDate:    c.CompletionDate,
		IssuedAt:          c.IssuedAt,
		Status:            c.Status,
		Grade:             c.Grade,
	}
}

// Verification is the result of looking up a certificate number.
type Verification struct {
	Valid       bool              `json:"valid"`
	Certificate PublicCertificate `json:"certificate"`
}

type InviteStatus string

const (
	InvitePending   InviteStatus = "pending"
	InviteAccepted  InviteStatus = "accepted"
	InviteExpired   InviteStatus = "expired"
	InviteCancelled InviteStatus = "cancelled"
)

// Invite grants enrollment into a course. UsedCount never exceeds MaxUses.
type Invite struct {
	ID         string       `json:"id"`
	Code       string       `json:"code"`
	CourseID   string       `json:"courseId"`
	Email      string       `json:"email,omitempty"`
	InvitedBy  string       `json:"invitedBy,omitempty"`
	Message    string       `json:"message,omitempty"`
	MaxUses    int          `json:"maxUses"`
	UsedCount  int          `json:"usedCount"`
	UsedBy     string       `json:"usedBy,omitempty"`
	Status     InviteStatus `json:"status"`
	ExpiresAt  *time.Time   `json:"expiresAt,omitempty"`
	AcceptedAt *time.Time   `json:"acceptedAt,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
}
