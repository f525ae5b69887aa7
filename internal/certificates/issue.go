package certificates

import (
	"context"
	"time"

	"github.com/certifychain/certifychain/internal/models"
)

// Issuer submits certificate requests to the backend.
type Issuer interface {
	IssueCertificate(ctx context.Context, req models.IssueCertificateRequest) (*models.Certificate, error)
}

// Issue validates form and, only if it is valid, submits it through issuer.
func Issue(ctx context.Context, issuer Issuer, form IssueForm, now time.Time) (*models.Certificate, error) {
	if err := form.Validate(now); err != nil {
		return nil, err
	}
	return issuer.IssueCertificate(ctx, form.Request())
}
