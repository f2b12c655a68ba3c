package main

import (
	"github.com/spf13/cobra"
)

func newTemplateCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "template",
		Short: "Print the effective certificate template as YAML",
		Long: `Template prints the template a run would use. Save the output, edit it and pass it
back with --template to change the certificate text, layout or email.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tmpl, err := global.template()
			if err != nil {
				return err
			}

			out, err := tmpl.Marshal()
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(out)

			return err
		},
	}
}
