package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"budgetplaner/internal/backup"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's transactions as JSON, CSV or XLSX",
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, _ := cmd.Flags().GetString("owner")
			rawFormat, _ := cmd.Flags().GetString("format")
			out, _ := cmd.Flags().GetString("out")

			format, err := backup.ParseFormat(rawFormat)
			if err != nil {
				return err
			}

			h, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer h.Close()

			u, err := h.ownerByEmail(cmd.Context(), owner)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				if info, err := os.Stat(out); err == nil && info.IsDir() {
					out = filepath.Join(out, format.Filename(time.Now()))
				}
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			if err := h.data.Export(cmd.Context(), u.ID, format, w); err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
			}
			return nil
		},
	}
	cmd.Flags().String("owner", "", "email of the user to export")
	cmd.Flags().String("format", "json", "json, csv or xlsx")
	cmd.Flags().StringP("out", "o", "", "output file or directory (default: stdout)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import transactions into a user's ledger",
		Long: `Import a JSON, CSV or XLSX document. The format is taken from --format,
or from the file extension when --format is not given. Invalid rows are
reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, _ := cmd.Flags().GetString("owner")
			rawFormat, _ := cmd.Flags().GetString("format")
			if rawFormat == "" {
				rawFormat = strings.TrimPrefix(filepath.Ext(args[0]), ".")
			}
			format, err := backup.ParseFormat(rawFormat)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			h, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer h.Close()

			u, err := h.ownerByEmail(cmd.Context(), owner)
			if err != nil {
				return err
			}

			res, err := h.data.Import(cmd.Context(), u.ID, format, f)
			if err != nil {
				return err
			}
			for _, e := range res.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "line %d (id %s): %s\n", e.Line, e.ID, e.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d transactions and %d categories, %d rows skipped\n",
				res.Imported, res.Categories, len(res.Errors))
			return nil
		},
	}
	cmd.Flags().String("owner", "", "email of the user to import into")
	cmd.Flags().String("format", "", "json, csv or xlsx (default: from the file extension)")
	return cmd
}
