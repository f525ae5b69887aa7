package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
)

// InstitutionsCmd browses issuing institutions.
type InstitutionsCmd struct {
	List InstitutionsListCmd `cmd:"" help:"List institutions"`
}

type InstitutionsListCmd struct{}

func (c *InstitutionsListCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := newApp(globals)
	if err != nil {
		return err
	}

	institutions, err := a.api.ListInstitutions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list institutions: %w", err)
	}

	out := globals.stdout()
	if len(institutions) == 0 {
		fmt.Fprintln(out, "No institutions found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tADDRESS\tWEBSITE")
	for _, inst := range institutions {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", inst.ID, inst.Name, inst.Address, inst.Website)
	}

	return w.Flush()
}
