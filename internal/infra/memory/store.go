package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"lms-progress-service/internal/app"
	"lms-progress-service/internal/domain"
)

// Store is an in-memory implementation of app.Store.
// Notes:
//   - Transactions are serialized on txMu and roll back by restoring a
//     snapshot taken when the transaction began.
//   - Writes outside a transaction also take txMu, so they never interleave
//     with (or get undone by) a rolled-back transaction.
type Store struct {
	mu   *sync.RWMutex
	txMu *sync.Mutex
	data *state
	inTx bool
}

type state struct {
	users        map[string]domain.User
	courses      map[string]domain.Course
	modules      map[string]domain.Module
	lessons      map[string]domain.Lesson
	quizzes      map[string]domain.Quiz
	enrollments  map[string]domain.Enrollment
	progress     map[string]domain.Progress
	attempts     map[string]domain.QuizAttempt
	certificates map[string]domain.Certificate
	invites      map[string]domain.Invite
}

func newState() *state {
	return &state{
		users:        make(map[string]domain.User),
		courses:      make(map[string]domain.Course),
		modules:      make(map[string]domain.Module),
		lessons:      make(map[string]domain.Lesson),
		quizzes:      make(map[string]domain.Quiz),
		enrollments:  make(map[string]domain.Enrollment),
		progress:     make(map[string]domain.Progress),
		attempts:     make(map[string]domain.QuizAttempt),
		certificates: make(map[string]domain.Certificate),
		invites:      make(map[string]domain.Invite),
	}
}

func (s *state) clone() *state {
	return &state{
		users:        maps.Clone(s.users),
		courses:      maps.Clone(s.courses),
		modules:      maps.Clone(s.modules),
		lessons:      maps.Clone(s.lessons),
		quizzes:      maps.Clone(s.quizzes),
		enrollments:  maps.Clone(s.enrollments),
		progress:     maps.Clone(s.progress),
		attempts:     maps.Clone(s.attempts),
		certificates: maps.Clone(s.certificates),
		invites:      maps.Clone(s.invites),
	}
}

func NewStore() *Store {
	return &Store{
		mu:   &sync.RWMutex{},
		txMu: &sync.Mutex{},
		data: newState(),
	}
}

var _ app.Store = (*Store)(nil)

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx app.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	tx := &Store{mu: s.mu, txMu: s.txMu, data: s.data, inTx: true}
	if err := fn(ctx, tx); err != nil {
		s.mu.Lock()
		*s.data = *snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// write runs fn under the write lock, joining txMu when outside a transaction.
func (s *Store) write(fn func(st *state) error) error {
	if !s.inTx {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

func conflict(what string) error {
	return fmt.Errorf("%s: %w", what, domain.ErrConflict)
}

// Catalog writes. Users, courses and content are owned elsewhere; these
// exist for seeding.

func (s *Store) PutUser(_ context.Context, u domain.User) error {
	return s.write(func(st *state) error { st.users[u.ID] = u; return nil })
}

func (s *Store) PutCourse(_ context.Context, c domain.Course) error {
	return s.write(func(st *state) error { st.courses[c.ID] = c; return nil })
}

func (s *Store) PutModule(_ context.Context, m domain.Module) error {
	return s.write(func(st *state) error { st.modules[m.ID] = m; return nil })
}

// PutLesson stores l, resolving its course through its module.
func (s *Store) PutLesson(_ context.Context, l domain.Lesson) error {
	return s.write(func(st *state) error {
		m, ok := st.modules[l.ModuleID]
		if !ok {
			return fmt.Errorf("put lesson %s: module %s not found", l.ID, l.ModuleID)
		}
		l.CourseID = m.CourseID
		st.lessons[l.ID] = l
		return nil
	})
}

// PutQuiz keeps its own copy of the questions, ordered by Order.
func (s *Store) PutQuiz(_ context.Context, q domain.Quiz) error {
	if err := q.Validate(); err != nil {
		return err
	}
	q.Questions = slices.Clone(q.Questions)
	sort.SliceStable(q.Questions, func(i, j int) bool { return q.Questions[i].Order < q.Questions[j].Order })
	return s.write(func(st *state) error { st.quizzes[q.ID] = q; return nil })
}

// LoadQuiz lets the store act as the quiz loader behind a QuizRepository.
func (s *Store) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	var (
		q  domain.Quiz
		ok bool
	)
	s.read(func(st *state) { q, ok = st.quizzes[quizID] })
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	q.Questions = slices.Clone(q.Questions)
	return q, nil
}

func (s *Store) GetUser(_ context.Context, userID string) (domain.User, error) {
	var (
		u  domain.User
		ok bool
	)
	s.read(func(st *state) { u, ok = st.users[userID] })
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) GetCourse(_ context.Context, courseID string) (domain.Course, error) {
	var (
		c  domain.Course
		ok bool
	)
	s.read(func(st *state) { c, ok = st.courses[courseID] })
	if !ok {
		return domain.Course{}, domain.ErrCourseNotFound
	}
	return c, nil
}

func (s *Store) GetLesson(_ context.Context, lessonID string) (domain.Lesson, error) {
	var (
		l  domain.Lesson
		ok bool
	)
	s.read(func(st *state) { l, ok = st.lessons[lessonID] })
	if !ok {
		return domain.Lesson{}, domain.ErrLessonNotFound
	}
	return l, nil
}

func (s *Store) CountLessons(_ context.Context, courseID string) (int, error) {
	n := 0
	s.read(func(st *state) {
		for _, l := range st.lessons {
			if l.CourseID == courseID {
				n++
			}
		}
	})
	return n, nil
}

func (s *Store) FindEnrollment(_ context.Context, userID, courseID string) (domain.Enrollment, error) {
	var (
		e  domain.Enrollment
		ok bool
	)
	s.read(func(st *state) {
		for _, cand := range st.enrollments {
			if cand.UserID == userID && cand.CourseID == courseID && cand.Status != domain.EnrollmentCancelled {
				e, ok = cand, true
				return
			}
		}
	})
	if !ok {
		return domain.Enrollment{}, domain.ErrEnrollmentNotFound
	}
	return e, nil
}

func (s *Store) CountActiveEnrollments(_ context.Context, courseID string) (int, error) {
	n := 0
	s.read(func(st *state) {
		for _, e := range st.enrollments {
			if e.CourseID == courseID && e.Status == domain.EnrollmentActive {
				n++
			}
		}
	})
	return n, nil
}

func (s *Store) CreateEnrollment(_ context.Context, e domain.Enrollment) error {
	return s.write(func(st *state) error {
		for _, cand := range st.enrollments {
			if cand.UserID == e.UserID && cand.CourseID == e.CourseID && cand.Status != domain.EnrollmentCancelled {
				return conflict("enrollment")
			}
		}
		st.enrollments[e.ID] = e
		return nil
	})
}

func (s *Store) UpdateEnrollment(_ context.Context, e domain.Enrollment) error {
	return s.write(func(st *state) error {
		if _, ok := st.enrollments[e.ID]; !ok {
			return domain.ErrEnrollmentNotFound
		}
		st.enrollments[e.ID] = e
		return nil
	})
}

func (s *Store) FindProgress(_ context.Context, userID, lessonID string) (domain.Progress, error) {
	var (
		p  domain.Progress
		ok bool
	)
	s.read(func(st *state) {
		for _, cand := range st.progress {
			if cand.UserID == userID && cand.LessonID == lessonID {
				p, ok = cand, true
				return
			}
		}
	})
	if !ok {
		return domain.Progress{}, domain.ErrProgressNotFound
	}
	return p, nil
}

func (s *Store) CreateProgress(_ context.Context, p domain.Progress) error {
	return s.write(func(st *state) error {
		if p.LessonID != "" {
			for _, cand := range st.progress {
				if cand.UserID == p.UserID && cand.LessonID == p.LessonID {
					return conflict("progress")
				}
			}
		}
		st.progress[p.ID] = p
		return nil
	})
}

func (s *Store) UpdateProgress(_ context.Context, p domain.Progress) error {
	return s.write(func(st *state) error {
		if _, ok := st.progress[p.ID]; !ok {
			return domain.ErrProgressNotFound
		}
		st.progress[p.ID] = p
		return nil
	})
}

func (s *Store) CountCompletedLessons(_ context.Context, userID, courseID string) (int, error) {
	n := 0
	s.read(func(st *state) {
		for _, p := range st.progress {
			if p.UserID == userID && p.CourseID == courseID && p.Status == domain.ProgressCompleted && p.LessonID != "" {
				n++
			}
		}
	})
	return n, nil
}

func (s *Store) ListProgress(_ context.Context, userID, courseID string) ([]domain.Progress, error) {
	var out []domain.Progress
	s.read(func(st *state) {
		for _, p := range st.progress {
			if p.UserID == userID && p.CourseID == courseID {
				out = append(out, p)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListAttempts(_ context.Context, userID, quizID string) ([]domain.QuizAttempt, error) {
	return s.listAttempts(func(a domain.QuizAttempt) bool { return a.UserID == userID && a.QuizID == quizID }), nil
}

func (s *Store) ListCourseAttempts(_ context.Context, userID, courseID string) ([]domain.QuizAttempt, error) {
	return s.listAttempts(func(a domain.QuizAttempt) bool { return a.UserID == userID && a.CourseID == courseID }), nil
}

func (s *Store) listAttempts(match func(domain.QuizAttempt) bool) []domain.QuizAttempt {
	var out []domain.QuizAttempt
	s.read(func(st *state) {
		for _, a := range st.attempts {
			if match(a) {
				out = append(out, a)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuizID != out[j].QuizID {
			return out[i].QuizID < out[j].QuizID
		}
		return out[i].AttemptNumber < out[j].AttemptNumber
	})
	return out
}

func (s *Store) GetAttempt(_ context.Context, attemptID string) (domain.QuizAttempt, error) {
	var (
		a  domain.QuizAttempt
		ok bool
	)
	s.read(func(st *state) { a, ok = st.attempts[attemptID] })
	if !ok {
		return domain.QuizAttempt{}, domain.ErrAttemptNotFound
	}
	return a, nil
}

func (s *Store) CreateAttempt(_ context.Context, a domain.QuizAttempt) error {
	return s.write(func(st *state) error {
		for _, cand := range st.attempts {
			if cand.UserID != a.UserID || cand.QuizID != a.QuizID {
				continue
			}
			if cand.AttemptNumber == a.AttemptNumber || cand.Status == domain.AttemptInProgress {
				return conflict("quiz attempt")
			}
		}
		st.attempts[a.ID] = a
		return nil
	})
}

func (s *Store) GradeAttempt(_ context.Context, a domain.QuizAttempt) error {
	return s.write(func(st *state) error {
		cur, ok := st.attempts[a.ID]
		if !ok {
			return domain.ErrAttemptNotFound
		}
		if cur.Status != domain.AttemptInProgress {
			return domain.ErrAttemptSubmitted
		}
		st.attempts[a.ID] = a
		return nil
	})
}

func (s *Store) FindCertificate(_ context.Context, userID, courseID string) (domain.Certificate, error) {
	return s.findCertificate(func(c domain.Certificate) bool { return c.UserID == userID && c.CourseID == courseID })
}

func (s *Store) GetCertificate(_ context.Context, certificateID string) (domain.Certificate, error) {
	return s.findCertificate(func(c domain.Certificate) bool { return c.ID == certificateID })
}

func (s *Store) GetCertificateByNumber(_ context.Context, number string) (domain.Certificate, error) {
	return s.findCertificate(func(c domain.Certificate) bool { return c.CertificateNumber == number })
}

func (s *Store) findCertificate(match func(domain.Certificate) bool) (domain.Certificate, error) {
	var (
		c  domain.Certificate
		ok bool
	)
	s.read(func(st *state) {
		for _, cand := range st.certificates {
			if match(cand) {
				c, ok = cand, true
				return
			}
		}
	})
	if !ok {
		return domain.Certificate{}, domain.ErrCertificateNotFound
	}
	return c, nil
}

func (s *Store) ListCertificates(_ context.Context, userID string) ([]domain.Certificate, error) {
	var out []domain.Certificate
	s.read(func(st *state) {
		for _, c := range st.certificates {
			if c.UserID == userID {
				out = append(out, c)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

func (s *Store) CreateCertificate(_ context.Context, c domain.Certificate) error {
	return s.write(func(st *state) error {
		for _, cand := range st.certificates {
			if cand.CertificateNumber == c.CertificateNumber || (cand.UserID == c.UserID && cand.CourseID == c.CourseID) {
				return conflict("certificate")
			}
		}
		st.certificates[c.ID] = c
		return nil
	})
}

func (s *Store) UpdateCertificate(_ context.Context, c domain.Certificate) error {
	return s.write(func(st *state) error {
		if _, ok := st.certificates[c.ID]; !ok {
			return domain.ErrCertificateNotFound
		}
		st.certificates[c.ID] = c
		return nil
	})
}

func (s *Store) GetInviteByCode(_ context.Context, code string) (domain.Invite, error) {
	var (
		inv domain.Invite
		ok  bool
	)
	s.read(func(st *state) {
		for _, cand := range st.invites {
			if cand.Code == code {
				inv, ok = cand, true
				return
			}
		}
	})
	if !ok {
		return domain.Invite{}, domain.ErrInviteNotFound
	}
	return inv, nil
}

func (s *Store) CreateInvite(_ context.Context, inv domain.Invite) error {
	return s.write(func(st *state) error {
		for _, cand := range st.invites {
			if cand.Code == inv.Code {
				return conflict("invite")
			}
		}
		st.invites[inv.ID] = inv
		return nil
	})
}

func (s *Store) UpdateInvite(_ context.Context, inv domain.Invite) error {
	return s.write(func(st *state) error {
		if _, ok := st.invites[inv.ID]; !ok {
			return domain.ErrInviteNotFound
		}
		st.invites[inv.ID] = inv
		return nil
	})
}

func (s *Store) ExpireInvites(_ context.Context, now time.Time) (int, error) {
	n := 0
	err := s.write(func(st *state) error {
		for id, inv := range st.invites {
			if inv.Status == domain.InvitePending && inv.ExpiresAt != nil && inv.ExpiresAt.Before(now) {
				inv.Status = domain.InviteExpired
				st.invites[id] = inv
				n++
			}
		}
		return nil
	})
	return n, err
}
