package certificates

import (
	"strings"

	"github.com/certifychain/certifychain/internal/models"
)

// Filter returns the certificates whose student name, student ID, course or
// certificate ID contains text, ignoring case. An empty text matches all.
// The input slice is not modified.
func Filter(certs []models.Certificate, text string) []models.Certificate {
	needle := strings.ToLower(strings.TrimSpace(text))

	out := make([]models.Certificate, 0, len(certs))
	for _, cert := range certs {
		if needle == "" || matches(cert, needle) {
			out = append(out, cert)
		}
	}
	return out
}

func matches(cert models.Certificate, needle string) bool {
	for _, field := range []string{cert.StudentName, cert.StudentID, cert.Course, cert.CertificateID} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// FilterStatus keeps certificates with the given status. An empty status
// matches all.
func FilterStatus(certs []models.Certificate, status models.CertificateStatus) []models.Certificate {
	if status == "" {
		return certs
	}

	out := make([]models.Certificate, 0, len(certs))
	for _, cert := range certs {
		if strings.EqualFold(string(cert.Status), string(status)) {
			out = append(out, cert)
		}
	}
	return out
}

// Summary counts certificates by status.
type Summary struct {
	Total   int
	Issued  int
	Revoked int
	Draft   int
}

// Summarize counts certs by status.
func Summarize(certs []models.Certificate) Summary {
	s := Summary{Total: len(certs)}
	for _, cert := range certs {
		switch cert.Status {
		case models.CertificateStatusIssued:
			s.Issued++
		case models.CertificateStatusRevoked:
			s.Revoked++
		case models.CertificateStatusDraft:
			s.Draft++
		}
	}
	return s
}
