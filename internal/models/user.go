package models

import "strings"

// User types as assigned by the backend.
const (
	UserTypeAdmin       = "ADMIN"
	UserTypeInstitution = "INSTITUTION"
	UserTypeEmployer    = "EMPLOYER"
)

// User is the profile record returned by the profile endpoint, or embedded
// in the access token as the "user" claim.
type User struct {
	ID          int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Email       string `json:"email" yaml:"email"`
	FirstName   string `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	UserType    string `json:"user_type,omitempty" yaml:"user_type,omitempty"`
	Institution *int64 `json:"institution,omitempty" yaml:"institution,omitempty"`
}

// DisplayName returns the full name when known, falling back to the email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// IsInstitution reports whether the user may issue certificates.
func (u *User) IsInstitution() bool {
	return u != nil && u.UserType == UserTypeInstitution
}
