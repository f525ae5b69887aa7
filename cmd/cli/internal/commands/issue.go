package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/certifychain/certifychain/internal/certificates"
	"github.com/certifychain/certifychain/internal/client"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// IssueCmd issues a certificate from flags or a YAML/JSON file.
type IssueCmd struct {
	StudentName    string            `help:"Student full name"`
	StudentID      string            `help:"Student ID"`
	StudentEmail   string            `help:"Student email"`
	Course         string            `help:"Course name"`
	Grade          string            `help:"Grade"`
	CompletionDate string            `help:"Completion date (YYYY-MM-DD)" default:"${today}"`
	ExpiryDate     string            `help:"Expiry date (YYYY-MM-DD)"`
	Institution    int64             `help:"Institution ID (defaults to the signed-in institution)"`
	Metadata       map[string]string `help:"Additional metadata"`
	Config         string            `help:"YAML/JSON file with the certificate fields" type:"existingfile"`
}

func (c *IssueCmd) Run(ctx context.Context, globals *Globals) error {
	form := c.form()

	if c.Config != "" {
		if err := loadIssueFile(c.Config, &form); err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}
	}

	now := time.Now()

	// Nothing is sent until the form is valid.
	if err := form.Validate(now); err != nil {
		printValidationError(globals, err)
		return err
	}

	a, err := newApp(globals)
	if err != nil {
		return err
	}

	if err := a.requireLogin(ctx); err != nil {
		return err
	}

	if user := a.manager.Session().User; user != nil && !user.IsInstitution() {
		log.Warn().Str("user_type", user.UserType).Msg("only institution accounts can issue certificates")
	}

	cert, err := certificates.Issue(ctx, a.api, form, now)
	if err != nil {
		log.Debug().Err(err).Msg("issue failed")
		return errors.New(client.IssueErrorText(err))
	}

	out := globals.stdout()
	fmt.Fprintln(out, "Certificate issued successfully")
	fmt.Fprintln(out)

	return printCertificate(out, cert)
}

func (c *IssueCmd) form() certificates.IssueForm {
	form := certificates.IssueForm{
		StudentName:    c.StudentName,
		StudentID:      c.StudentID,
		StudentEmail:   c.StudentEmail,
		Course:         c.Course,
		Grade:          c.Grade,
		CompletionDate: c.CompletionDate,
		ExpiryDate:     c.ExpiryDate,
	}
	if c.Institution > 0 {
		id := c.Institution
		form.Institution = &id
	}
	if len(c.Metadata) > 0 {
		form.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			form.Metadata[k] = v
		}
	}
	return form
}

// loadIssueFile overlays the non-empty fields of a YAML or JSON file onto
// form. The file takes precedence over flags.
func loadIssueFile(path string, form *certificates.IssueForm) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var file certificates.IssueForm

	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := json.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	overlay(&form.StudentName, file.StudentName)
	overlay(&form.StudentID, file.StudentID)
	overlay(&form.StudentEmail, file.StudentEmail)
	overlay(&form.Course, file.Course)
	overlay(&form.Grade, file.Grade)
	overlay(&form.CompletionDate, file.CompletionDate)
	overlay(&form.ExpiryDate, file.ExpiryDate)
	if file.Institution != nil {
		form.Institution = file.Institution
	}
	if len(file.Metadata) > 0 {
		if form.Metadata == nil {
			form.Metadata = make(map[string]any, len(file.Metadata))
		}
		for k, v := range file.Metadata {
			form.Metadata[k] = v
		}
	}

	return nil
}

func overlay(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func printValidationError(globals *Globals, err error) {
	var verr *certificates.ValidationError
	if !errors.As(err, &verr) {
		return
	}

	names := make([]string, 0, len(verr.Fields))
	for name := range verr.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	out := globals.stderr()
	fmt.Fprintln(out, "Please fix the following fields:")
	for _, name := range names {
		fmt.Fprintf(out, "  %s: %s\n", name, verr.Fields[name])
	}
}
