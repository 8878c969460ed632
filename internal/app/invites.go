package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"lms-progress-service/internal/domain"
)

// InviteService creates, redeems and expires invite codes.
type InviteService struct {
	base
	newCode func(time.Time) string
}

// InviteRequest describes a new invite.
type InviteRequest struct {
	Email     string     `json:"email"`
	MaxUses   int        `json:"maxUses"` // 0 means 1
	ExpiresAt *time.Time `json:"expiresAt"`
	Message   string     `json:"message"`
}

// Create issues an invite for courseID. Only the course instructor or an
// admin may invite.
func (s *InviteService) Create(ctx context.Context, p domain.Principal, courseID string, req InviteRequest) (domain.Invite, error) {
	if err := requireUser(p); err != nil {
		return domain.Invite{}, err
	}
	if req.MaxUses == 0 {
		req.MaxUses = 1
	}
	if req.MaxUses < 1 {
		return domain.Invite{}, domain.ErrInvalidInviteUses
	}
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return domain.Invite{}, err
	}
	if !p.Admin && course.InstructorID != p.UserID {
		return domain.Invite{}, domain.ErrNotCourseInstructor
	}

	now := s.now()
	invite := domain.Invite{
		ID:        uuid.NewString(),
		Code:      s.newCode(now),
		CourseID:  course.ID,
		Email:     strings.TrimSpace(req.Email),
		InvitedBy: p.UserID,
		Message:   req.Message,
		MaxUses:   req.MaxUses,
		Status:    domain.InvitePending,
		ExpiresAt: req.ExpiresAt,
		CreatedAt: now,
	}
	if err := s.store.CreateInvite(ctx, invite); err != nil {
		return domain.Invite{}, fmt.Errorf("create invite: %w", err)
	}
	s.log.Info("invite created", "invite_id", invite.ID, "course_id", course.ID, "max_uses", invite.MaxUses)
	return invite, nil
}

// ExpireStale marks every pending invite past its expiry as expired.
func (s *InviteService) ExpireStale(ctx context.Context) (int, error) {
	n, err := s.store.ExpireInvites(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expire invites: %w", err)
	}
	if n > 0 {
		s.log.Info("invites expired", "count", n)
	}
	return n, nil
}

// redeem validates code for p and persists the usage increment on tx. The
// caller owns the transaction so that a failed enrollment rolls it back.
func (s *InviteService) redeem(ctx context.Context, tx Store, p domain.Principal, code string) (domain.Invite, error) {
	invite, err := tx.GetInviteByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Invite{}, domain.ErrInviteNotFound
		}
		return domain.Invite{}, fmt.Errorf("get invite: %w", err)
	}
	updated, err := applyRedemption(invite, p, s.now())
	if err != nil {
		return domain.Invite{}, err
	}
	if err := tx.UpdateInvite(ctx, updated); err != nil {
		return domain.Invite{}, fmt.Errorf("update invite: %w", err)
	}
	s.log.Info("invite redeemed", "invite_id", updated.ID, "user_id", p.UserID, "used", updated.UsedCount, "max_uses", updated.MaxUses)
	return updated, nil
}

// applyRedemption checks an invite against p at now and returns it with one
// more use recorded. The usage limit is checked before the status so that a
// fully used invite reports LimitReached rather than Invalid.
func applyRedemption(inv domain.Invite, p domain.Principal, now time.Time) (domain.Invite, error) {
	if inv.UsedCount >= inv.MaxUses {
		return inv, domain.ErrInviteUsedUp
	}
	if inv.Status != domain.InvitePending {
		return inv, domain.ErrInviteNotPending
	}
	if inv.ExpiresAt != nil && inv.ExpiresAt.Before(now) {
		return inv, domain.ErrInviteExpired
	}
	if inv.Email != "" && !strings.EqualFold(inv.Email, p.Email) {
		return inv, domain.ErrInviteEmailMismatch
	}
	inv.UsedCount++
	inv.UsedBy = p.UserID
	inv.AcceptedAt = timePtr(now)
	if inv.UsedCount >= inv.MaxUses {
		inv.Status = domain.InviteAccepted
	}
	return inv, nil
}
