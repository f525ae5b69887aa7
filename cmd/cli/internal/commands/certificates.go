package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/certifychain/certifychain/internal/certificates"
	"github.com/certifychain/certifychain/internal/client"
	"github.com/certifychain/certifychain/internal/models"
)

// CertificatesCmd browses certificates.
type CertificatesCmd struct {
	List CertificatesListCmd `cmd:"" help:"List certificates"`
	Show CertificatesShowCmd `cmd:"" help:"Show certificate details"`
}

type CertificatesListCmd struct {
	Filter   string        `help:"Only show certificates whose student name, student ID, course or certificate ID contains this text" short:"f"`
	Status   string        `help:"Status to filter by (draft, issued, revoked)"`
	Watch    bool          `help:"Watch for changes" default:"false"`
	Interval time.Duration `help:"Refresh interval when watching" default:"5s"`
}

func (c *CertificatesListCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := newApp(globals)
	if err != nil {
		return err
	}

	if c.Watch {
		return c.watch(ctx, a.api, globals.stdout())
	}

	return c.list(ctx, a.api, globals.stdout())
}

func (c *CertificatesListCmd) list(ctx context.Context, api *client.Client, out io.Writer) error {
	certs, err := api.ListCertificates(ctx)
	if err != nil {
		return fmt.Errorf("failed to list certificates: %w", err)
	}

	certs = certificates.Filter(certs, c.Filter)
	certs = certificates.FilterStatus(certs, models.CertificateStatus(strings.ToUpper(c.Status)))

	printCertificates(out, certs)
	return nil
}

// watch polls every Interval. Failed polls are retried with exponential
// backoff, capped at ten intervals.
func (c *CertificatesListCmd) watch(ctx context.Context, api *client.Client, out io.Writer) error {
	fmt.Fprintln(out, "Watching certificates (press Ctrl+C to stop)...")
	fmt.Fprintln(out)

	if err := c.list(ctx, api, out); err != nil {
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.Interval
	bo.MaxInterval = 10 * c.Interval

	timer := time.NewTimer(c.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			fmt.Fprint(out, "\033[2J\033[H") // clear screen, cursor to top
			fmt.Fprintf(out, "Certificates (updated at %s)\n\n", time.Now().Format("15:04:05"))

			next := c.Interval
			if err := c.list(ctx, api, out); err != nil {
				next = bo.NextBackOff()
				fmt.Fprintf(out, "Error updating certificate list: %v (retrying in %s)\n", err, next.Round(time.Second))
			} else {
				bo.Reset()
			}
			timer.Reset(next)
		}
	}
}

func printCertificates(out io.Writer, certs []models.Certificate) {
	if len(certs) == 0 {
		fmt.Fprintln(out, "No certificates found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CERTIFICATE ID\tSTUDENT\tSTUDENT ID\tCOURSE\tISSUED\tSTATUS")
	for _, cert := range certs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			cert.CertificateID, cert.StudentName, cert.StudentID, truncate(cert.Course, 30), cert.IssueDate, cert.Status)
	}
	w.Flush()

	s := certificates.Summarize(certs)
	fmt.Fprintf(out, "\nTotal: %d  Issued: %d  Revoked: %d  Draft: %d\n", s.Total, s.Issued, s.Revoked, s.Draft)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

type CertificatesShowCmd struct {
	ID string `arg:"" help:"Numeric certificate record ID"`
}

func (c *CertificatesShowCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := newApp(globals)
	if err != nil {
		return err
	}

	if err := a.requireLogin(ctx); err != nil {
		return err
	}

	cert, err := a.api.GetCertificate(ctx, c.ID)
	if err != nil {
		if client.IsNotFound(err) {
			return fmt.Errorf("certificate %s not found", c.ID)
		}
		if client.IsUnauthorized(err) {
			return ErrSessionExpired
		}
		return fmt.Errorf("failed to get certificate: %w", err)
	}

	return printCertificate(globals.stdout(), cert)
}

func printCertificate(out io.Writer, cert *models.Certificate) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Certificate ID:\t%s\n", cert.CertificateID)
	fmt.Fprintf(w, "Student:\t%s (%s)\n", cert.StudentName, cert.StudentID)
	if cert.StudentEmail != "" {
		fmt.Fprintf(w, "Email:\t%s\n", cert.StudentEmail)
	}
	fmt.Fprintf(w, "Course:\t%s\n", cert.Course)
	if cert.Grade != "" {
		fmt.Fprintf(w, "Grade:\t%s\n", cert.Grade)
	}
	if cert.InstitutionName != "" {
		fmt.Fprintf(w, "Institution:\t%s\n", cert.InstitutionName)
	}
	fmt.Fprintf(w, "Issued:\t%s\n", cert.IssueDate)
	if cert.ExpiryDate != nil && *cert.ExpiryDate != "" {
		fmt.Fprintf(w, "Expires:\t%s\n", *cert.ExpiryDate)
	}
	if cert.Status != "" {
		fmt.Fprintf(w, "Status:\t%s\n", cert.Status)
	}
	if cert.BlockchainTx != "" {
		fmt.Fprintf(w, "Transaction:\t%s\n", cert.BlockchainTx)
	}
	return w.Flush()
}
