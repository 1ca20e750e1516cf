package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"shopledger/backend/internal/backup"
	"shopledger/backend/internal/service"
)

func newExportCmd(svc func() *service.Service) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every collection to a JSON backup",
		Example: `  ledgerctl export -o backup.json
  ledgerctl export > backup.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := svc().Export(cmd.Context())
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			return backup.Write(w, doc)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write (default: stdout)")
	return cmd
}

func newRestoreCmd(svc func() *service.Service) *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Replace all data with a JSON backup",
		Long: `Restore clears every collection and loads the backup in a single transaction.
Existing data is lost. Pass --yes to confirm.`,
		Example: `  ledgerctl restore backup.json --yes`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()
			doc, err := backup.Read(f)
			if err != nil {
				return err
			}
			counts, err := svc().Restore(cmd.Context(), doc, confirmed)
			if err != nil {
				return err
			}
			total := 0
			for _, n := range counts {
				total += n
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d records from %s\n", total, args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm that existing data will be replaced")
	return cmd
}
