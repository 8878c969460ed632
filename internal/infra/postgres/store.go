package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"lms-progress-service/internal/app"
	"lms-progress-service/internal/domain"
)

// Store implements app.Store on Postgres through bun.
// Inserts use ON CONFLICT DO NOTHING so a uniqueness clash reports
// domain.ErrConflict without aborting the surrounding transaction.
type Store struct {
	db   *bun.DB
	idb  bun.IDB
	inTx bool
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db, idb: db}
}

var _ app.Store = (*Store)(nil)

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx app.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Store{db: s.db, idb: tx, inTx: true})
	})
}

func notFound(err error, nf error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nf
	}
	return fmt.Errorf("%s: %w", op, err)
}

// inserted maps a zero-row insert to a conflict.
func inserted(res sql.Result, err error, what string) error {
	if err != nil {
		return fmt.Errorf("insert %s: %w", what, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrConflict)
	}
	return nil
}

// updated maps a zero-row update to nf.
func updated(res sql.Result, err error, nf error, what string) error {
	if err != nil {
		return fmt.Errorf("update %s: %w", what, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nf
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var m userModel
	if err := s.idb.NewSelect().Model(&m).Where("id = ?", userID).Scan(ctx); err != nil {
		return domain.User{}, notFound(err, domain.ErrUserNotFound, "get user")
	}
	return m.toDomain(), nil
}

func (s *Store) GetCourse(ctx context.Context, courseID string) (domain.Course, error) {
	var m courseModel
	if err := s.idb.NewSelect().Model(&m).Where("id = ?", courseID).Scan(ctx); err != nil {
		return domain.Course{}, notFound(err, domain.ErrCourseNotFound, "get course")
	}
	return m.toDomain(), nil
}

func (s *Store) GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	var m lessonModel
	err := s.idb.NewSelect().
		Model(&m).
		ColumnExpr("l.*").
		ColumnExpr("m.course_id").
		Join("JOIN modules AS m ON m.id = l.module_id").
		Where("l.id = ?", lessonID).
		Scan(ctx)
	if err != nil {
		return domain.Lesson{}, notFound(err, domain.ErrLessonNotFound, "get lesson")
	}
	return m.toDomain(), nil
}

func (s *Store) CountLessons(ctx context.Context, courseID string) (int, error) {
	return s.idb.NewSelect().
		Model((*lessonModel)(nil)).
		Join("JOIN modules AS m ON m.id = l.module_id").
		Where("m.course_id = ?", courseID).
		Count(ctx)
}

func (s *Store) FindEnrollment(ctx context.Context, userID, courseID string) (domain.Enrollment, error) {
	var m enrollmentModel
	err := s.idb.NewSelect().
		Model(&m).
		Where("user_id = ?", userID).
		Where("course_id = ?", courseID).
		Where("status <> ?", domain.EnrollmentCancelled).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Enrollment{}, notFound(err, domain.ErrEnrollmentNotFound, "find enrollment")
	}
	return m.toDomain(), nil
}

func (s *Store) CountActiveEnrollments(ctx context.Context, courseID string) (int, error) {
	return s.idb.NewSelect().
		Model((*enrollmentModel)(nil)).
		Where("course_id = ?", courseID).
		Where("status = ?", domain.EnrollmentActive).
		Count(ctx)
}

func (s *Store) CreateEnrollment(ctx context.Context, e domain.Enrollment) error {
	m := newEnrollmentModel(e)
	res, err := s.idb.NewInsert().Model(&m).On("CONFLICT DO NOTHING").Exec(ctx)
	return inserted(res, err, "enrollment")
}

func (s *Store) UpdateEnrollment(ctx context.Context, e domain.Enrollment) error {
	m := newEnrollmentModel(e)
	res, err := s.idb.NewUpdate().Model(&m).WherePK().Exec(ctx)
	return updated(res, err, domain.ErrEnrollmentNotFound, "enrollment")
}

func (s *Store) FindProgress(ctx context.Context, userID, lessonID string) (domain.Progress, error) {
	var m progressModel
	err := s.idb.NewSelect().
		Model(&m).
		Where("user_id = ?", userID).
		Where("lesson_id = ?", lessonID).
		Scan(ctx)
	if err != nil {
		return domain.Progress{}, notFound(err, domain.ErrProgressNotFound, "find progress")
	}
	return m.toDomain(), nil
}

func (s *Store) CreateProgress(ctx context.Context, p domain.Progress) error {
	m := newProgressModel(p)
	res, err := s.idb.NewInsert().Model(&m).On("CONFLICT DO NOTHING").Exec(ctx)
	return inserted(res, err, "progress")
}

func (s *Store) UpdateProgress(ctx context.Context, p domain.Progress) error {
	m := newProgressModel(p)
	res, err := s.idb.NewUpdate().Model(&m).WherePK().Exec(ctx)
	return updated(res, err, domain.ErrProgressNotFound, "progress")
}

func (s *Store) CountCompletedLessons(ctx context.Context, userID, courseID string) (int, error) {
	return s.idb.NewSelect().
		Model((*progressModel)(nil)).
		Where("user_id = ?", userID).
		Where("course_id = ?", courseID).
		Where("lesson_id <> ''").
		Where("status = ?", domain.ProgressCompleted).
		Count(ctx)
}

func (s *Store) ListProgress(ctx context.Context, userID, courseID string) ([]domain.Progress, error) {
	var rows []progressModel
	err := s.idb.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Where("course_id = ?", courseID).
		Order("started_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Progress, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *Store) ListAttempts(ctx context.Context, userID, quizID string) ([]domain.QuizAttempt, error) {
	return s.listAttempts(ctx, "quiz_id = ?", userID, quizID)
}

func (s *Store) ListCourseAttempts(ctx context.Context, userID, courseID string) ([]domain.QuizAttempt, error) {
	return s.listAttempts(ctx, "course_id = ?", userID, courseID)
}

func (s *Store) listAttempts(ctx context.Context, filter, userID, value string) ([]domain.QuizAttempt, error) {
	var rows []attemptModel
	err := s.idb.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Where(filter, value).
		Order("quiz_id ASC", "attempt_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.QuizAttempt, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *Store) GetAttempt(ctx context.Context, attemptID string) (domain.QuizAttempt, error) {
	var m attemptModel
	if err := s.idb.NewSelect().Model(&m).Where("id = ?", attemptID).Scan(ctx); err != nil {
		return domain.QuizAttempt{}, notFound(err, domain.ErrAttemptNotFound, "get attempt")
	}
	return m.toDomain(), nil
}

func (s *Store) CreateAttempt(ctx context.Context, a domain.QuizAttempt) error {
	m := newAttemptModel(a)
	res, err := s.idb.NewInsert().Model(&m).On("CONFLICT DO NOTHING").Exec(ctx)
	return inserted(res, err, "quiz attempt")
}

func (s *Store) GradeAttempt(ctx context.Context, a domain.QuizAttempt) error {
	m := newAttemptModel(a)
	res, err := s.idb.NewUpdate().
		Model(&m).
		WherePK().
		Where("status = ?", domain.AttemptInProgress).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("grade attempt: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := s.GetAttempt(ctx, a.ID); err != nil {
			return err
		}
		return domain.ErrAttemptSubmitted
	}
	return nil
}

func (s *Store) FindCertificate(ctx context.Context, userID, courseID string) (domain.Certificate, error) {
	return s.getCertificate(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("user_id = ?", userID).Where("course_id = ?", courseID)
	})
}

func (s *Store) GetCertificate(ctx context.Context, certificateID string) (domain.Certificate, error) {
	return s.getCertificate(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("id = ?", certificateID)
	})
}

func (s *Store) GetCertificateByNumber(ctx context.Context, number string) (domain.Certificate, error) {
	return s.getCertificate(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("certificate_number = ?", number)
	})
}

func (s *Store) getCertificate(ctx context.Context, filter func(*bun.SelectQuery) *bun.SelectQuery) (domain.Certificate, error) {
	var m certificateModel
	if err := s.idb.NewSelect().Model(&m).Apply(filter).Scan(ctx); err != nil {
		return domain.Certificate{}, notFound(err, domain.ErrCertificateNotFound, "get certificate")
	}
	return m.toDomain(), nil
}

func (s *Store) ListCertificates(ctx context.Context, userID string) ([]domain.Certificate, error) {
	var rows []certificateModel
	err := s.idb.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Order("issued_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Certificate, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *Store) CreateCertificate(ctx context.Context, c domain.Certificate) error {
	m, err := newCertificateModel(c)
	if err != nil {
		return fmt.Errorf("certificate completion date: %w", err)
	}
	res, err := s.idb.NewInsert().Model(&m).On("CONFLICT DO NOTHING").Exec(ctx)
	return inserted(res, err, "certificate")
}

func (s *Store) UpdateCertificate(ctx context.Context, c domain.Certificate) error {
	m, err := newCertificateModel(c)
	if err != nil {
		return fmt.Errorf("certificate completion date: %w", err)
	}
	res, err := s.idb.NewUpdate().Model(&m).WherePK().Exec(ctx)
	return updated(res, err, domain.ErrCertificateNotFound, "certificate")
}

// GetInviteByCode locks the invite row for the rest of the transaction, so
// concurrent redemptions of one code are serialized.
func (s *Store) GetInviteByCode(ctx context.Context, code string) (domain.Invite, error) {
	var m inviteModel
	q := s.idb.NewSelect().Model(&m).Where("code = ?", code)
	if s.inTx {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return domain.Invite{}, notFound(err, domain.ErrInviteNotFound, "get invite")
	}
	return m.toDomain(), nil
}

func (s *Store) CreateInvite(ctx context.Context, inv domain.Invite) error {
	m := newInviteModel(inv)
	res, err := s.idb.NewInsert().Model(&m).On("CONFLICT DO NOTHING").Exec(ctx)
	return inserted(res, err, "invite")
}

func (s *Store) UpdateInvite(ctx context.Context, inv domain.Invite) error {
	m := newInviteModel(inv)
	res, err := s.idb.NewUpdate().Model(&m).WherePK().Exec(ctx)
	return updated(res, err, domain.ErrInviteNotFound, "invite")
}

func (s *Store) ExpireInvites(ctx context.Context, now time.Time) (int, error) {
	res, err := s.idb.NewUpdate().
		Model((*inviteModel)(nil)).
		Set("status = ?", domain.InviteExpired).
		Where("status = ?", domain.InvitePending).
		Where("expires_at IS NOT NULL").
		Where("expires_at < ?", now).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("expire invites: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
