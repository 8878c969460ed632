package app

import (
	"context"
	"log/slog"
	"time"

	"lms-progress-service/internal/domain"
)

// Options wires the engine's collaborators.
type Options struct {
	Store   Store
	Quizzes QuizRepository
	// Locker may be nil when the store serializes writers on its own.
	Locker Locker
	Events EventBus
	Logger *slog.Logger
	// VerifyBaseURL prefixes certificate verification links.
	VerifyBaseURL string
	// BulkConcurrency bounds parallel enrollments in BulkEnroll (default 4).
	BulkConcurrency int
}

// Engine groups the progress, completion and assessment use cases.
type Engine struct {
	Enrollments  *EnrollmentService
	Invites      *InviteService
	Progress     *ProgressService
	Quizzes      *QuizService
	Certificates *CertificateService
}

// New builds an Engine from opts.
func New(opts Options) *Engine {
	return NewWithClock(opts, time.Now)
}

// NewWithClock is used by tests for deterministic timestamps.
func NewWithClock(opts Options, now func() time.Time) *Engine {
	b := newBase(opts, now)
	certs := &CertificateService{base: b, verifyBaseURL: opts.VerifyBaseURL, newNumber: newCertificateNumber}
	invites := &InviteService{base: b, newCode: newInviteCode}
	concurrency := opts.BulkConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Engine{
		Enrollments:  &EnrollmentService{base: b, invites: invites, bulkConcurrency: concurrency},
		Invites:      invites,
		Progress:     &ProgressService{base: b, certificates: certs},
		Quizzes:      &QuizService{base: b, quizzes: opts.Quizzes},
		Certificates: certs,
	}
}

// base carries what every service shares.
type base struct {
	store  Store
	locker Locker
	events EventBus
	log    *slog.Logger
	now    func() time.Time
}

func newBase(opts Options, now func() time.Time) base {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return base{
		store:  opts.Store,
		locker: opts.Locker,
		events: opts.Events,
		log:    logger,
		now:    now,
	}
}

func (b base) lock(ctx context.Context, key string) (func(), error) {
	if b.locker == nil {
		return func() {}, nil
	}
	return b.locker.Lock(ctx, key)
}

// publish is best-effort; a failed publish never fails the operation.
func (b base) publish(ctx context.Context, events ...domain.Event) {
	if b.events == nil {
		return
	}
	for _, ev := range events {
		if err := b.events.Publish(ctx, ev); err != nil {
			b.log.Warn("publish event failed", "type", ev.Type, "user_id", ev.UserID, "error", err)
		}
	}
}

func requireUser(p domain.Principal) error {
	if p.UserID == "" {
		return domain.ErrMissingPrincipal
	}
	return nil
}

func requireAdmin(p domain.Principal) error {
	if err := requireUser(p); err != nil {
		return err
	}
	if !p.Admin {
		return domain.ErrAdminRequired
	}
	return nil
}

func timePtr(t time.Time) *time.Time { return &t }
