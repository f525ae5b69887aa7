package certificates

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/certifychain/certifychain/internal/models"
)

// DateLayout is the format of completion and expiry dates.
const DateLayout = "2006-01-02"

// Form field names, matching the request body keys.
const (
	FieldStudentName    = "student_name"
	FieldStudentID      = "student_id"
	FieldCourse         = "course"
	FieldGrade          = "grade"
	FieldCompletionDate = "issue_date"
	FieldExpiryDate     = "expiry_date"
)

// ValidationError holds field-level messages for an invalid form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "invalid certificate: " + strings.Join(parts, "; ")
}

// IssueForm is the input for issuing a certificate.
type IssueForm struct {
	StudentName    string         `yaml:"studentName" json:"student_name"`
	StudentID      string         `yaml:"studentId" json:"student_id"`
	StudentEmail   string         `yaml:"studentEmail" json:"student_email"`
	Course         string         `yaml:"course" json:"course"`
	Grade          string         `yaml:"grade" json:"grade"`
	CompletionDate string         `yaml:"completionDate" json:"issue_date"`
	ExpiryDate     string         `yaml:"expiryDate" json:"expiry_date"`
	Institution    *int64         `yaml:"institution" json:"institution"`
	Metadata       map[string]any `yaml:"metadata" json:"metadata"`
}

// Validate checks the required fields. A completion date after today (in
// now's location) is rejected. It returns nil or a *ValidationError.
func (f IssueForm) Validate(now time.Time) error {
	fields := make(map[string]string)

	name := strings.TrimSpace(f.StudentName)
	switch {
	case name == "":
		fields[FieldStudentName] = "Student name is required"
	case len([]rune(name)) < 2:
		fields[FieldStudentName] = "Student name must be at least 2 characters"
	}

	if strings.TrimSpace(f.StudentID) == "" {
		fields[FieldStudentID] = "Student ID is required"
	}

	if strings.TrimSpace(f.Course) == "" {
		fields[FieldCourse] = "Course name is required"
	}

	if strings.TrimSpace(f.Grade) == "" {
		fields[FieldGrade] = "Grade is required"
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	completion := strings.TrimSpace(f.CompletionDate)
	if completion == "" {
		fields[FieldCompletionDate] = "Completion date is required"
	} else if date, err := time.ParseInLocation(DateLayout, completion, now.Location()); err != nil {
		fields[FieldCompletionDate] = "Completion date must be in YYYY-MM-DD format"
	} else if date.After(today) {
		fields[FieldCompletionDate] = "Completion date cannot be in the future"
	}

	if expiry := strings.TrimSpace(f.ExpiryDate); expiry != "" {
		if _, err := time.ParseInLocation(DateLayout, expiry, now.Location()); err != nil {
			fields[FieldExpiryDate] = "Expiry date must be in YYYY-MM-DD format"
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Request converts a validated form into the issue request body.
func (f IssueForm) Request() models.IssueCertificateRequest {
	metadata := f.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return models.IssueCertificateRequest{
		Institution:  f.Institution,
		StudentName:  strings.TrimSpace(f.StudentName),
		StudentID:    strings.TrimSpace(f.StudentID),
		StudentEmail: strings.TrimSpace(f.StudentEmail),
		Course:       strings.TrimSpace(f.Course),
		Grade:        strings.TrimSpace(f.Grade),
		IssueDate:    strings.TrimSpace(f.CompletionDate),
		ExpiryDate:   strings.TrimSpace(f.ExpiryDate),
		Metadata:     metadata,
	}
}
