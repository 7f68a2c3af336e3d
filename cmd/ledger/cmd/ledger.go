package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/ledger"
	"github.com/spf13/cobra"
)

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the ledger",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			printLedger(cmd, c.app.Ledger.Snapshot())
			return nil
		}),
	}
}

func printLedger(cmd *cobra.Command, doc domain.LedgerDocument) {
	out := cmd.OutOrStdout()
	for _, f := range domain.InfoFields {
		fmt.Fprintf(out, "%s: %s\n", domain.InfoLabel(f), doc.Info.Get(f))
	}
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\t%s\t%s\t\n",
		domain.TransactionLabel(domain.TxDate),
		domain.TransactionLabel(domain.TxDescription),
		domain.TransactionLabel(domain.TxAmount))
	for _, tx := range doc.Transactions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", tx.ID, tx.Date, tx.Description, domain.FormatAmount(tx.Amount))
	}
	fmt.Fprintf(tw, "\t\tTổng cộng\t%s\t\n", domain.FormatAmount(doc.Total()))
	tw.Flush()
}

func (c *cli) infoCmd() *cobra.Command {
	info := &cobra.Command{
		Use:   "info",
		Short: "Edit the tax payer header",
	}
	info.AddCommand(&cobra.Command{
		Use:       "set <field> <value>",
		Short:     "Set a header field (name, address, taxId, location, period)",
		Args:      cobra.ExactArgs(2),
		ValidArgs: infoFieldNames(),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			field, err := domain.ParseInfoField(args[0])
			if err != nil {
				return err
			}
			if err := c.app.Ledger.UpdateInfoField(field, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", domain.InfoLabel(field), args[1])
			return nil
		}),
	})
	return info
}

func infoFieldNames() []string {
	names := make([]string, len(domain.InfoFields))
	for i, f := range domain.InfoFields {
		names[i] = string(f)
	}
	return names
}

func (c *cli) txCmd() *cobra.Command {
	tx := &cobra.Command{
		Use:   "tx",
		Short: "Add, edit or remove sales lines",
	}

	var date, desc, amount string
	add := &cobra.Command{
		Use:   "add",
		Short: "Append a sales line; omitted fields get defaults",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			var in ledger.NewTransaction
			if cmd.Flags().Changed("date") {
				in.Date = &date
			}
			if cmd.Flags().Changed("desc") {
				in.Description = &desc
			}
			if cmd.Flags().Changed("amount") {
				v := domain.SanitizeAmount(amount)
				in.Amount = &v
			}
			id, err := c.app.Ledger.AddTransaction(in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		}),
	}
	add.Flags().StringVar(&date, "date", "", "date as dd/mm/yyyy (default today)")
	add.Flags().StringVar(&desc, "desc", "", "description")
	add.Flags().StringVar(&amount, "amount", "", "amount; separators and symbols are ignored")

	set := &cobra.Command{
		Use:   "set <id> <field> <value>",
		Short: "Set a field (date, description, amount) of a sales line",
		Args:  cobra.ExactArgs(3),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			field, err := domain.ParseTransactionField(args[1])
			if err != nil {
				return err
			}
			found, err := c.app.Ledger.UpdateTransaction(args[0], field, args[2])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("transaction %s not found", args[0])
			}
			return nil
		}),
	}

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a sales line",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			removed, err := c.app.Ledger.RemoveTransaction(args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("transaction %s not found", args[0])
			}
			return nil
		}),
	}

	tx.AddCommand(add, set, rm)
	return tx
}

func (c *cli) resetCmd() *cobra.Command {
	var yes bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Erase the stored ledger and start over from the sample",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := confirm(cmd, "Xóa toàn bộ dữ liệu sổ và khôi phục dữ liệu mẫu?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Reset cancelled.")
					return nil
				}
			}
			if err := c.app.Ledger.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Ledger reset.")
			return nil
		}),
	}
	reset.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return reset
}
