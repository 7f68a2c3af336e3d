package cmd

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/dvloznov/voice-ledger/internal/capture"
	"github.com/dvloznov/voice-ledger/internal/ledger"
	"github.com/spf13/cobra"
)

func (c *cli) dictateCmd() *cobra.Command {
	var kind, field, id, mimeType string
	dictate := &cobra.Command{
		Use:   "dictate <audio-file>",
		Short: "Fill a field or add a sales line from a voice recording",
		Long: `dictate sends a finished recording to the AI service and writes the
result into the chosen target:

  --target info --field name        standardized header value
  --target tx --id ID --field date  standardized transaction field
  --target tx --id ID --field description  plain transcript
  --target new                      parse a whole sales line`,
		Args: cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			target, err := ledger.ParseTarget(kind, field, id)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read recording: %w", err)
			}
			if mimeType == "" {
				mimeType = mime.TypeByExtension(filepath.Ext(args[0]))
			}

			applied, err := c.app.Pipeline.Capture(cmd.Context(), target, capture.Audio{Data: data, MIMEType: mimeType})
			if err != nil {
				if n, ok := c.app.Pipeline.Notification(); ok {
					fmt.Fprintln(cmd.ErrOrStderr(), n.Message)
				}
				return err
			}

			if target.Kind == ledger.TargetNewTransaction {
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", applied.TransactionID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", target, applied.Value)
			return nil
		}),
	}
	dictate.Flags().StringVar(&kind, "target", string(ledger.TargetNewTransaction), "info | tx | new")
	dictate.Flags().StringVar(&field, "field", "", "field to fill for info and tx targets")
	dictate.Flags().StringVar(&id, "id", "", "transaction id for tx targets")
	dictate.Flags().StringVar(&mimeType, "mime", "", "recording MIME type (default from file extension)")
	return dictate
}
