package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/dvloznov/voice-ledger/internal/export"
	"github.com/spf13/cobra"
)

func (c *cli) exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the ledger spreadsheet to a file",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			artifact, err := export.Render(c.app.Ledger.Snapshot())
			if err != nil {
				return err
			}
			path := out
			if path == "" {
				path = artifact.Name
			}
			if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default derived from the tax payer name)")
	return cmd
}

func (c *cli) shareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "share",
		Short: "Share the spreadsheet, falling back to download plus email draft",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			res, err := c.app.Sharer.Share(cmd.Context(), c.app.Ledger.Snapshot())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s via %s: %s\n", res.FileName, res.Sink, res.Location)
			return nil
		}),
	}
}

func (c *cli) driveCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Download the spreadsheet and open Google Drive to upload it",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			var confirmer export.Confirmer = export.PromptConfirmer{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
			if yes {
				confirmer = export.ConfirmFunc(func(ctx context.Context, q string) (bool, error) { return true, nil })
			}
			res, err := c.app.Sharer.SaveToDriveAssist(cmd.Context(), c.app.Ledger.Snapshot(), confirmer)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Path)
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "open the drive page without asking")
	return cmd
}
