// Package cmd provides the commands of the ledger CLI.
package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/voice-ledger/internal/app"
	"github.com/dvloznov/voice-ledger/internal/config"
	"github.com/dvloznov/voice-ledger/internal/export"
	"github.com/dvloznov/voice-ledger/internal/logger"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds the final save after a command.
const shutdownTimeout = 10 * time.Second

// cli carries state shared by all subcommands of one invocation.
type cli struct {
	cfgFile   string
	ephemeral bool
	debug     bool

	// opts is handed to app.New; tests inject stores and fakes here.
	opts app.Options
	app  *app.App
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRootCmd(app.Options{}).Execute()
}

// NewRootCmd builds the command tree. opts overrides parts of the
// application assembly.
func NewRootCmd(opts app.Options) *cobra.Command {
	c := &cli{opts: opts}

	root := &cobra.Command{
		Use:   "ledger",
		Short: "Keep a household business revenue ledger by voice",
		Long: `ledger edits the revenue ledger (tax payer header plus sales lines),
fills fields from voice recordings and exports the ledger as a spreadsheet.

Every change is saved automatically.

Example:
  ledger show
  ledger tx add --amount "1.500.000" --desc "Bán hàng tạp hóa"
  ledger dictate recording.webm --target new
  ledger export --out so-doanh-thu.xlsx`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default voiceledger.yaml in . or ~/.voice-ledger)")
	root.PersistentFlags().BoolVar(&c.ephemeral, "ephemeral", false, "keep the ledger in memory only")
	root.PersistentFlags().BoolVar(&c.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		c.showCmd(),
		c.infoCmd(),
		c.txCmd(),
		c.dictateCmd(),
		c.exportCmd(),
		c.shareCmd(),
		c.driveCmd(),
		c.resetCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if c.debug {
		level = "debug"
	}
	log := logger.NewWithOptions(logger.Options{Level: level, JSON: cfg.Log.JSON, Out: cmd.ErrOrStderr()})

	opts := c.opts
	opts.Ephemeral = opts.Ephemeral || c.ephemeral
	a, err := app.New(cmd.Context(), cfg, log, opts)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

// run wraps a subcommand body: it assembles the app first and flushes the
// pending save afterwards, also when the body fails.
func (c *cli) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := c.setup(cmd); err != nil {
			return err
		}
		err := fn(cmd, args)
		ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), shutdownTimeout)
		defer cancel()
		shutdownErr := c.app.Shutdown(ctx)
		c.app = nil
		return errors.Join(err, shutdownErr)
	}
}

// confirm asks a yes/no question on the command's streams.
func confirm(cmd *cobra.Command, question string) (bool, error) {
	return export.PromptConfirmer{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}.Confirm(cmd.Context(), question)
}
