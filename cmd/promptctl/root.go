package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// cli carries state shared by the command tree of one invocation
type cli struct {
	flags     globalFlags
	overrides overrides
	app       *app
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "promptctl",
		Short: "Validate generation requests, manage provider credentials and save generated artifacts",
		Long: `promptctl turns command-line parameters into a validated text or image
generation request, keeps per-provider API keys in a local credential vault
and writes generated images to disk without ever touching system directories.

Examples:
  $ promptctl credentials set openai --api-key sk-...
  $ promptctl generate text "Explain quantum computing" --temperature 0.2
  $ promptctl generate image "A red fox at dawn" --output fox.png`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(&c.flags, cmd.Flags().Changed, c.overrides.getenv)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, cmd.ErrOrStderr(), c.overrides)
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/promptctl/config.yaml, or $PROMPTCTL_CONFIG)")
	pf.StringVar(&c.flags.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	pf.StringVar(&c.flags.logFormat, "log-format", "text", "log format: text or json")
	pf.StringVar(&c.flags.store, "store", "file", "credential store: file, memory or keydb")

	root.AddCommand(
		newCredentialsCmd(c),
		newGenerateCmd(c),
		newCheckCmd(c),
		newStatusCmd(c),
	)

	return root
}

// run executes one invocation and returns the process exit code
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return runWith(ctx, args, stdin, stdout, stderr, overrides{})
}

func runWith(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, ov overrides) int {
	c := &cli{overrides: ov}
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if c.app != nil {
		c.app.close()
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", userMessage(err))
		return 1
	}
	return 0
}

func (c *cli) getenv() func(string) string {
	if c.overrides.getenv != nil {
		return c.overrides.getenv
	}
	return os.Getenv
}
