package app

import "time"

// SetCertificateNumbers replaces the certificate number generator.
func (e *Engine) SetCertificateNumbers(fn func(time.Time) string) {
	e.Certificates.newNumber = fn
}

// SetInviteCodes replaces the invite code generator.
func (e *Engine) SetInviteCodes(fn func(time.Time) string) {
	e.Invites.newCode = fn
}
