package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/status-im/promptctl/apikeys"
	"github.com/status-im/promptctl/models"
)

// kindLister is implemented by backends that can enumerate what they serve
type kindLister interface {
	Kinds() []models.GenerationKind
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the credential store, configured backends and stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			out := cmd.OutOrStdout()

			if a.store != nil {
				sealed := ""
				if a.store.Sealed {
					sealed = ", sealed"
				}
				fmt.Fprintf(out, "Store: %s (%s%s)\n", a.store.Kind, a.store.Location, sealed)
			}

			providers, err := a.vault.Providers(cmd.Context())
			if err != nil {
				return err
			}
			stored := make(map[string]bool, len(providers))
			for _, p := range providers {
				stored[p] = true
			}

			backends := a.registry.Backends()
			fmt.Fprintf(out, "\nBackends (%d):\n", len(backends))
			if len(backends) > 0 {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "  NAME\tKINDS\tKEY")
				for _, b := range backends {
					fmt.Fprintf(w, "  %s\t%s\t%s\n", b.Name(), kindsOf(b), keyState(b.Name(), stored, c.getenv()))
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}

			fmt.Fprintf(out, "\nStored credentials (%d):\n", len(providers))
			for _, p := range providers {
				fmt.Fprintf(out, "  %s\n", p)
			}
			return nil
		},
	}
}

func kindsOf(b interface{ Supports(models.GenerationKind) bool }) string {
	if kl, ok := b.(kindLister); ok {
		names := make([]string, 0, len(kl.Kinds()))
		for _, k := range kl.Kinds() {
			names = append(names, k.String())
		}
		return strings.Join(names, ",")
	}

	var names []string
	for _, k := range []models.GenerationKind{models.KindText, models.KindImage} {
		if b.Supports(k) {
			names = append(names, k.String())
		}
	}
	return strings.Join(names, ",")
}

func keyState(provider string, stored map[string]bool, getenv func(string) string) string {
	var sources []string
	if stored[provider] {
		sources = append(sources, "vault")
	}
	if getenv(apikeys.EnvVarName(provider)) != "" {
		sources = append(sources, "env")
	}
	if len(sources) == 0 {
		return "missing"
	}
	return strings.Join(sources, "+")
}
