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

// maxNumberAttempts bounds retries on a certificate number collision.
const maxNumberAttempts = 3

// CertificateService issues, verifies and revokes certificates.
type CertificateService struct {
	base
	verifyBaseURL string
	newNumber     func(time.Time) string
}

// IssueIfAbsent returns the certificate for the enrollment's (user, course),
// issuing it first if none exists.
func (s *CertificateService) IssueIfAbsent(ctx context.Context, enrollment domain.Enrollment) (domain.Certificate, error) {
	var cert domain.Certificate
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		course, err := tx.GetCourse(ctx, enrollment.CourseID)
		if err != nil {
			return err
		}
		cert, err = s.issue(ctx, tx, enrollment, course)
		return err
	})
	return cert, err
}

func (s *CertificateService) issue(ctx context.Context, tx Store, enrollment domain.Enrollment, course domain.Course) (domain.Certificate, error) {
	existing, err := tx.FindCertificate(ctx, enrollment.UserID, course.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Certificate{}, fmt.Errorf("find certificate: %w", err)
	}
	user, err := tx.GetUser(ctx, enrollment.UserID)
	if err != nil {
		return domain.Certificate{}, err
	}

	now := s.now()
	completedAt := now
	if enrollment.CompletedAt != nil {
		completedAt = *enrollment.CompletedAt
	}
	for i := 0; i < maxNumberAttempts; i++ {
		number := s.newNumber(now)
		cert := domain.Certificate{
			ID:                uuid.NewString(),
			CertificateNumber: number,
			UserID:            enrollment.UserID,
			CourseID:          course.ID,
			EnrollmentID:      enrollment.ID,
			RecipientName:     user.Username,
			CourseTitle:       course.Title,
			IssuedAt:          now,
			CompletionDate:    completedAt.UTC().Format(time.DateOnly),
			Status:            domain.CertificateIssued,
			VerificationURL:   s.verificationURL(number),
		}
		err := tx.CreateCertificate(ctx, cert)
		if err == nil {
			s.log.Info("certificate issued", "certificate_number", number, "user_id", cert.UserID, "course_id", cert.CourseID)
			return cert, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return domain.Certificate{}, fmt.Errorf("create certificate: %w", err)
		}
		// Either a concurrent issuance won the (user, course) slot, or the
		// number collided and a fresh suffix is needed.
		if existing, err := tx.FindCertificate(ctx, enrollment.UserID, course.ID); err == nil {
			return existing, nil
		}
	}
	return domain.Certificate{}, domain.ErrCertificateIssueRace
}

// Verify looks up a certificate by number. Only public fields are returned.
func (s *CertificateService) Verify(ctx context.Context, number string) (domain.Verification, error) {
	cert, err := s.store.GetCertificateByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return domain.Verification{}, err
	}
	return domain.Verification{
		Valid:       cert.Status == domain.CertificateIssued,
		Certificate: cert.Public(),
	}, nil
}

// Revoke marks a certificate revoked. The record is kept so verification
// still resolves it.
func (s *CertificateService) Revoke(ctx context.Context, p domain.Principal, certificateID string) (domain.Certificate, error) {
	if err := requireAdmin(p); err != nil {
		return domain.Certificate{}, err
	}
	var out domain.Certificate
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		cert, err := tx.GetCertificate(ctx, certificateID)
		if err != nil {
			return err
		}
		if cert.Status == domain.CertificateRevoked {
			out = cert
			return nil
		}
		cert.Status = domain.CertificateRevoked
		cert.RevokedAt = timePtr(s.now())
		if err := tx.UpdateCertificate(ctx, cert); err != nil {
			return fmt.Errorf("update certificate: %w", err)
		}
		out = cert
		return nil
	})
	if err != nil {
		return domain.Certificate{}, err
	}
	s.log.Info("certificate revoked", "certificate_id", out.ID, "certificate_number", out.CertificateNumber, "by", p.UserID)
	return out, nil
}

// Mine lists the caller's certificates, newest first.
func (s *CertificateService) Mine(ctx context.Context, p domain.Principal) ([]domain.Certificate, error) {
	if err := requireUser(p); err != nil {
		return nil, err
	}
	certs, err := s.store.ListCertificates(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return certs, nil
}

func (s *CertificateService) verificationURL(number string) string {
	return strings.TrimRight(s.verifyBaseURL, "/") + "/api/certificates/verify/" + number
}
