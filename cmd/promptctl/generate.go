package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/status-im/promptctl/models"
	"github.com/status-im/promptctl/output"
	"github.com/status-im/promptctl/request"
)

// requestFlags are the raw generation parameters shared by generate and check
type requestFlags struct {
	provider    string
	model       string
	temperature string
	topP        string
	topK        string
	maxTokens   string
	system      string
}

func (f *requestFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.provider, "provider", "", "provider that must serve the request")
	flags.StringVar(&f.model, "model", "", "model preferences as provider:model[,provider:model...]")
	flags.StringVar(&f.temperature, "temperature", "", fmt.Sprintf("sampling temperature (%.1f-%.1f)", request.MinTemperature, request.MaxTemperature))
	flags.StringVar(&f.topP, "top-p", "", fmt.Sprintf("nucleus sampling probability (%.1f-%.1f)", request.MinTopP, request.MaxTopP))
	flags.StringVar(&f.topK, "top-k", "", "top-k sampling (positive integer)")
	flags.StringVar(&f.maxTokens, "max-tokens", "", "maximum tokens to generate (positive integer)")
	flags.StringVar(&f.system, "system", "", "system instruction")
}

func (f *requestFlags) raw(kind, prompt string) request.RawOptions {
	return request.RawOptions{
		Kind:        kind,
		Prompt:      prompt,
		Provider:    f.provider,
		Model:       f.model,
		Temperature: f.temperature,
		TopP:        f.topP,
		TopK:        f.topK,
		MaxTokens:   f.maxTokens,
		System:      f.system,
	}
}

// build validates raw and counts rejections
func (a *app) build(raw request.RawOptions) (*models.GenerationRequest, error) {
	req, err := request.Build(raw)
	if err != nil {
		a.metrics.RecordValidationFailure(kindLabel(err))
		return nil, err
	}
	a.logger.Debug("Built request", "request_id", req.ID.String(), "kind", req.Kind.String(), "output", req.Output.String())
	return req, nil
}

func kindLabel(err error) string {
	if kind := models.KindOf(err); kind != nil {
		return kind.Error()
	}
	return "other"
}

func newGenerateCmd(c *cli) *cobra.Command {
	var (
		rf     requestFlags
		out    string
		stdout bool
	)

	cmd := &cobra.Command{
		Use:   "generate <text|image> <prompt>",
		Short: "Generate text or an image",
		Long: `Generate text or an image from a prompt.

Text is printed. An image is printed as a data URI unless --output names a
file to write or --stdout asks for the raw bytes.`,
		Example: `  promptctl generate text "Summarise RFC 9110" --model openai:gpt-4o,anthropic:claude-3-5-sonnet
  promptctl generate image "A lighthouse in a storm" --output lighthouse.png`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			raw := rf.raw(args[0], args[1])
			raw.Output = out
			raw.Stdout = stdout

			req, err := a.build(raw)
			if err != nil {
				return err
			}

			// Reject a bad destination before any backend call
			if req.Output.Mode == models.OutputFile {
				if _, err := a.writer.Resolve(req.Output.Path); err != nil {
					return err
				}
			}

			result, err := a.registry.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}

			return a.deliver(cmd, req.Output, result)
		},
	}

	rf.bind(cmd)
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the result to this file")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "write raw image bytes to standard output")
	return cmd
}

func (a *app) deliver(cmd *cobra.Command, target models.OutputTarget, result models.Result) error {
	w := cmd.OutOrStdout()

	switch res := result.(type) {
	case models.TextResult:
		if target.Mode == models.OutputFile {
			final, err := a.writer.WriteBytes(target.Path, []byte(res.Text))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", final)
			return nil
		}
		fmt.Fprintln(w, res.Text)
		return nil

	case models.ImageResult:
		switch target.Mode {
		case models.OutputFile:
			final, err := a.writer.WriteDataURI(target.Path, res.DataURI())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", final)
			return nil
		case models.OutputStdout:
			_, data, err := output.DecodeDataURI(res.DataURI())
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		default:
			fmt.Fprintln(w, res.DataURI())
			return nil
		}

	default:
		return fmt.Errorf("unexpected result type %T", result)
	}
}
