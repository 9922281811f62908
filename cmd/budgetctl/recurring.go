package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"budgetplaner/internal/services"
)

func recurringCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Recurring transaction scheduler",
	}
	cmd.AddCommand(recurringRunCmd())
	return cmd
}

func recurringRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Book every recurring transaction that is due",
		Long: `Evaluate recurring definitions once, for one user or for everyone, as
the server does at startup and on every tick. Definitions already booked
this month are skipped, so repeated runs are safe.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, _ := cmd.Flags().GetString("owner")
			rawDate, _ := cmd.Flags().GetString("date")

			now := time.Now()
			if rawDate != "" {
				d, err := time.ParseInLocation("2006-01-02", rawDate, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --date %q: %w", rawDate, err)
				}
				now = d.Add(12 * time.Hour)
			}

			h, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer h.Close()

			var res services.ProcessResult
			if owner == "" {
				res, err = h.processor.ProcessDue(cmd.Context(), now)
			} else {
				u, uerr := h.ownerByEmail(cmd.Context(), owner)
				if uerr != nil {
					return uerr
				}
				res, err = h.processor.ProcessOwner(cmd.Context(), u.ID, now)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, t := range res.Created {
				fmt.Fprintf(out, "booked %-30s %10s  %s\n", t.Description, t.Amount, t.Month)
			}
			for _, f := range res.Failed {
				fmt.Fprintf(cmd.ErrOrStderr(), "definition %s failed: %v\n", f.DefinitionID, f.Err)
			}
			fmt.Fprintf(out, "checked %d, created %d, skipped %d, failed %d\n",
				res.Checked, len(res.Created), skippedTotal(res), len(res.Failed))
			return nil
		},
	}
	cmd.Flags().String("owner", "", "email of a single user (default: all users)")
	cmd.Flags().String("date", "", "evaluate as of this day, YYYY-MM-DD (default: today)")
	return cmd
}

func skippedTotal(res services.ProcessResult) int {
	n := 0
	for _, c := range res.Skipped {
		n += c
	}
	return n
}
