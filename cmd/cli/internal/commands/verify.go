package commands

import (
	"context"
	"errors"
	"fmt"
)

// ErrVerificationFailed is returned by VerifyCmd when the certificate is not
// valid, so the process exits non-zero.
var ErrVerificationFailed = errors.New("verification failed")

// VerifyCmd checks a certificate ID against the backend.
type VerifyCmd struct {
	CertificateID string `arg:"" name:"certificate-id" help:"Certificate ID to verify"`
}

func (c *VerifyCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := newApp(globals)
	if err != nil {
		return err
	}

	result, err := a.api.VerifyCertificate(ctx, c.CertificateID)
	if err != nil {
		return fmt.Errorf("failed to verify certificate: %w", err)
	}

	out := globals.stdout()

	if !result.IsValid {
		fmt.Fprintln(out, "Verification Failed")
		fmt.Fprintln(out, result.Error)
		return ErrVerificationFailed
	}

	fmt.Fprintln(out, "Certificate Verified")
	if result.Certificate != nil {
		fmt.Fprintln(out)
		return printCertificate(out, result.Certificate)
	}

	return nil
}
