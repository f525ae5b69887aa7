package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/certifychain/certifychain/internal/models"
)

var (
	// ErrPasswordMismatch is returned when the confirmation does not match
	// the password.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrMissingField is wrapped with the name of a required field left blank.
	ErrMissingField = errors.New("missing required field")
)

// Registration is the sign-up payload. The institution fields are only sent
// for institution accounts.
type Registration struct {
	Email              string `json:"email"`
	Password           string `json:"password"`
	ConfirmPassword    string `json:"confirm_password"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	UserType           string `json:"user_type"`
	InstitutionName    string `json:"institution_name,omitempty"`
	InstitutionAddress string `json:"institution_address,omitempty"`
	InstitutionWebsite string `json:"institution_website,omitempty"`
}

// Validate checks r before it is sent for an account of userType.
func (r Registration) Validate(userType string) error {
	type field struct{ name, value string }

	required := []field{
		{"email", r.Email},
		{"password", r.Password},
	}
	if userType == models.UserTypeInstitution {
		required = append(required,
			field{"institution_name", r.InstitutionName},
			field{"institution_address", r.InstitutionAddress},
		)
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}

	if r.Password != r.ConfirmPassword {
		return ErrPasswordMismatch
	}

	if r.InstitutionWebsite != "" {
		u, err := url.Parse(r.InstitutionWebsite)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid institution_website %q", r.InstitutionWebsite)
		}
	}

	return nil
}

// RegisterEmployer creates an employer account.
func (a *AuthClient) RegisterEmployer(ctx context.Context, r Registration) (*models.User, error) {
	r.InstitutionName, r.InstitutionAddress, r.InstitutionWebsite = "", "", ""
	return a.register(ctx, a.config.RegisterEmployerPath, models.UserTypeEmployer, r)
}

// RegisterInstitution creates an institution account together with its
// institution record.
func (a *AuthClient) RegisterInstitution(ctx context.Context, r Registration) (*models.User, error) {
	return a.register(ctx, a.config.RegisterInstitutionPath, models.UserTypeInstitution, r)
}

func (a *AuthClient) register(ctx context.Context, path, userType string, r Registration) (*models.User, error) {
	r.UserType = userType
	if err := r.Validate(userType); err != nil {
		return nil, err
	}

	var user models.User
	if err := doJSON(ctx, a.http, http.MethodPost, a.config.ServerURL+path, nil, r, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ProfileUpdate holds the editable profile fields. Empty fields are left
// unchanged.
type ProfileUpdate struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// UpdateProfile patches the signed-in user's profile and returns the stored
// result.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*models.User, error) {
	var user models.User
	if err := doJSON(ctx, c.http, http.MethodPatch, c.config.ServerURL+c.config.ProfilePath, nil, update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
