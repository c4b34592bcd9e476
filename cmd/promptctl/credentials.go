package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/status-im/promptctl/models"
	"github.com/status-im/promptctl/vault"
)

func newCredentialsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "credentials",
		Aliases: []string{"creds"},
		Short:   "Manage provider API keys",
	}

	cmd.AddCommand(
		newCredentialsListCmd(c),
		newCredentialsGetCmd(c),
		newCredentialsSetCmd(c),
		newCredentialsDeleteCmd(c),
	)
	return cmd
}

func newCredentialsListCmd(c *cli) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored credentials with masked keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds := c.app.vault.List(cmd.Context())

			switch format {
			case "json":
				out, err := json.Marshal(creds)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			case "table":
				if len(creds) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No credentials stored.")
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "PROVIDER\tAPI KEY")
				for _, cred := range creds {
					fmt.Fprintf(w, "%s\t%s\n", cred.Provider, cred.APIKey)
				}
				return w.Flush()
			default:
				return models.Errorf(models.ErrInvalidArgument, "Invalid format %q: must be \"table\" or \"json\"", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")
	return cmd
}

func newCredentialsGetCmd(c *cli) *cobra.Command {
	var show bool

	cmd := &cobra.Command{
		Use:   "get <provider>",
		Short: "Show the key stored for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := c.app.vault.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if show {
				fmt.Fprintln(cmd.OutOrStdout(), record.APIKey)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", record.Provider, vault.Mask(record.APIKey))
			return nil
		},
	}

	cmd.Flags().BoolVar(&show, "show", false, "print the key unmasked")
	return cmd
}

func newCredentialsSetCmd(c *cli) *cobra.Command {
	var apiKey string

	cmd := &cobra.Command{
		Use:   "set <provider> --api-key <key>",
		Short: "Store or replace the key for a provider",
		Long: `Store or replace the key for a provider.

Pass --api-key - to read the key from standard input, which keeps it out of
the shell history.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "-" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return models.Wrapf(models.ErrInvalidArgument, err, "Cannot read API key from standard input")
				}
				apiKey = strings.TrimSpace(line)
			}

			if err := c.app.vault.Set(cmd.Context(), args[0], apiKey); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored credentials for %s (%s)\n", args[0], vault.Mask(apiKey))
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "the API key, or - to read it from stdin")
	_ = cmd.MarkFlagRequired("api-key")
	return cmd
}

func newCredentialsDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <provider>",
		Aliases: []string{"rm"},
		Short:   "Remove the key stored for a provider",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.vault.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted credentials for %s\n", args[0])
			return nil
		},
	}
}
