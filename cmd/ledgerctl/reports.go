package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"shopledger/backend/internal/service"
)

func newPayrollCmd(svc func() *service.Service) *cobra.Command {
	payroll := &cobra.Command{
		Use:   "payroll",
		Short: "Payroll settlement",
	}
	payroll.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Pay every employee their salary less outstanding advances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := svc()
			result, err := s.RunPayroll(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.NothingToProcess {
				fmt.Fprintln(out, "nothing to process")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EMPLOYEE\tSALARY\tADVANCES\tPAID")
			for _, line := range result.Paid {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", line.Name, s.FormatAmount(line.Salary), s.FormatAmount(line.Advances), s.FormatAmount(line.NetDue))
			}
			for _, line := range result.Skipped {
				fmt.Fprintf(tw, "%s\t%s\t%s\tskipped\n", line.Name, s.FormatAmount(line.Salary), s.FormatAmount(line.Advances))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "total paid %s (expense %s)\n", s.FormatAmount(result.TotalPaid), result.ExpenseID)
			return nil
		},
	})
	return payroll
}

func newReconcileCmd(svc func() *service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Compare cached balances with the transaction log",
		Long: `Reconcile recomputes every party balance from its transactions and lists the
parties whose stored balance differs. Nothing is repaired. The command fails
when drift is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := svc().Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(report.Drift) == 0 {
				fmt.Fprintf(out, "%d balances checked, no drift\n", report.Checked)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tID\tNAME\tCACHED\tCOMPUTED")
			for _, d := range report.Drift {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", d.PartyKind, d.PartyID, d.Name, d.Cached, d.Computed)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			return fmt.Errorf("balance drift in %d of %d parties", len(report.Drift), report.Checked)
		},
	}
}

func newStockCmd(svc func() *service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "stock",
		Short: "Print on-hand stock, valuation and expiring lots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := svc().StockReport(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PRODUCT\tON HAND\tVALUATION\tNEAREST EXPIRY\tEXPIRING LOTS")
			for _, line := range report.Products {
				expiry := "-"
				if line.NearestExpiry != nil {
					expiry = line.NearestExpiry.Format("2006-01-02")
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\n", line.Name, line.OnHand, line.Valuation.StringFixed(2), expiry, len(line.Expiring))
			}
			fmt.Fprintf(tw, "TOTAL\t\t%s\t\t\n", report.TotalValuation.StringFixed(2))
			return tw.Flush()
		},
	}
}
