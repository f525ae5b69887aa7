package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/certifychain/certifychain/internal/models"
)

// ListCertificates returns every certificate recorded on the chain.
func (c *Client) ListCertificates(ctx context.Context) ([]models.Certificate, error) {
	var certs []models.Certificate
	if err := doJSON(ctx, c.public, http.MethodGet, c.config.ServerURL+certificateListPath, nil, nil, &certs); err != nil {
		return nil, err
	}
	return certs, nil
}

// GetCertificate returns a single certificate by its record ID.
func (c *Client) GetCertificate(ctx context.Context, id string) (*models.Certificate, error) {
	var cert models.Certificate
	path := certificatesPath + "/" + url.PathEscape(strings.TrimSpace(id))
	if err := doJSON(ctx, c.http, http.MethodGet, c.config.ServerURL+path, nil, nil, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

type verifyRequest struct {
	CertificateID string `json:"certificate_id"`
}

// VerifyCertificate asks the backend whether certificateID is valid.
//
// A rejection by the backend, whether reported in the body or as an error
// status, is returned as a result with IsValid false and the backend's text
// in Error. Only transport failures are returned as errors.
func (c *Client) VerifyCertificate(ctx context.Context, certificateID string) (*models.VerificationResult, error) {
	certificateID = strings.TrimSpace(certificateID)
	if certificateID == "" {
		return nil, ErrEmptyCertificateID
	}

	var result models.VerificationResult
	err := doJSON(ctx, c.http, http.MethodPost, c.config.ServerURL+certificateVerifyPath, nil,
		verifyRequest{CertificateID: certificateID}, &result)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return &models.VerificationResult{IsValid: false, Error: VerifyErrorText(apiErr)}, nil
		}
		return nil, err
	}

	if !result.IsValid && result.Error == "" {
		result.Error = result.Message
		if result.Error == "" {
			result.Error = VerifyFallbackMessage
		}
	}

	return &result, nil
}

// IssueCertificate creates a certificate. The request should already have
// passed client-side validation.
func (c *Client) IssueCertificate(ctx context.Context, req models.IssueCertificateRequest) (*models.Certificate, error) {
	if req.Metadata == nil {
		req.Metadata = map[string]any{}
	}

	var cert models.Certificate
	if err := doJSON(ctx, c.http, http.MethodPost, c.config.ServerURL+certificateIssuePath, nil, req, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// ListInstitutions returns the institution directory.
func (c *Client) ListInstitutions(ctx context.Context) ([]models.Institution, error) {
	var institutions []models.Institution
	if err := doJSON(ctx, c.public, http.MethodGet, c.config.ServerURL+institutionsPath, nil, nil, &institutions); err != nil {
		return nil, err
	}
	return institutions, nil
}

// Profile returns the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := doJSON(ctx, c.http, http.MethodGet, c.config.ServerURL+c.config.ProfilePath, nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
