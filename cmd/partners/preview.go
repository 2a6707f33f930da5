package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/deppfellow/partners/internal/config"
	"github.com/deppfellow/partners/internal/lib/email"
)

func previewEmailCmd() *cobra.Command {
	var appURL string

	cmd := &cobra.Command{
		Use:   "preview-email [template]",
		Short: "Render an email template with sample data to stdout",
		Long: `Render an email template with sample data to stdout.

Examples:
  partners preview-email new_commission > /tmp/commission.html
  partners preview-email --app-url http://localhost:3000 partner_invited`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl := email.Template(args[0])
			if !slices.Contains(email.Templates, tmpl) {
				return fmt.Errorf("unknown template %q, expected one of %v", args[0], email.Templates)
			}

			log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
			client := email.NewClient(&config.Config{
				Integration: config.IntegrationConfig{AppURL: appURL},
			}, &log)

			html, err := client.Render(tmpl, email.PreviewData[tmpl])
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "Subject: %s\n", email.Subject(tmpl, email.PreviewData[tmpl]))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), html)
			return err
		},
	}

	cmd.Flags().StringVar(&appURL, "app-url", "http://localhost:3000", "base URL used for links")
	return cmd
}
