package postgres

import (
	"testing"
	"time"

	"lms-progress-service/internal/domain"
)

func TestCertificateModelKeepsCompletionDate(t *testing.T) {
	cert := domain.Certificate{
		ID:                "c1",
		CertificateNumber: "CERT-ABC-1234",
		CompletionDate:    "2025-03-01",
		IssuedAt:          time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
		Status:            domain.CertificateIssued,
	}
	m, err := newCertificateModel(cert)
	if err != nil {
		t.Fatalf("to model: %v", err)
	}
	if got := m.toDomain(); got.CompletionDate != "2025-03-01" || got.CertificateNumber != cert.CertificateNumber {
		t.Fatalf("unexpected certificate %+v", got)
	}

	cert.CompletionDate = "March 1st"
	if _, err := newCertificateModel(cert); err == nil {
		t.Fatalf("expected malformed completion date to fail")
	}
}

func TestAttemptModelNeverStoresNullAnswers(t *testing.T) {
	m := newAttemptModel(domain.QuizAttempt{ID: "a1", Status: domain.AttemptInProgress})
	if m.Answers == nil {
		t.Fatalf("expected empty answers map")
	}
}
