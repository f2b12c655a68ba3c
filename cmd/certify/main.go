// Package main provides the certify command line tool for running issuance batches from local rosters.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jnst/certificate-issuance/internal/config"
	"github.com/jnst/certificate-issuance/internal/logger"
	"github.com/jnst/certificate-issuance/internal/render"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalOptions struct {
	templatePath string
	verbose      bool
	cfg          *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "certify",
		Short: "Issue participation certificates from a roster",
		Long: `certify renders a certificate for every participant of a roster, records the
issuance and emails the certificate to the participant.

Settings come from the environment (or a .env file), the same variables the API server reads.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if opts.verbose {
				cfg.LogLevel = "debug"
			}

			opts.cfg = cfg

			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.templatePath, "template", "", "certificate template YAML (default: TEMPLATE_PATH or built-in)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newTemplateCmd(opts))

	return root
}

func (o *globalOptions) template() (render.CertificateTemplate, error) {
	path := o.templatePath
	if path == "" && o.cfg != nil {
		path = o.cfg.TemplatePath
	}

	if path == "" {
		return render.DefaultTemplate(), nil
	}

	return render.LoadTemplate(path)
}

func (o *globalOptions) logger(cmd *cobra.Command) *slog.Logger {
	return logger.New(cmd.ErrOrStderr(), o.cfg.LogLevel, o.cfg.LogFormat)
}
