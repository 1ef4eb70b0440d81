package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mpilhlt/dhamps-anonymizer/internal/client"
	"github.com/mpilhlt/dhamps-anonymizer/internal/models"
	"github.com/mpilhlt/dhamps-anonymizer/internal/scrubber"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
)

func openAPICommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "openapi",
		Short: "Print the OpenAPI document as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.server.API().OpenAPI().YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}

func scrubCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scrub [file]",
		Short: "Anonymize a file or stdin locally, without a server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return scrub(cmd.Context(), a.engine, in, cmd.OutOrStdout())
		},
	}
}

func anonymizeCommand() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "anonymize [text...]",
		Short: "Send text (or stdin) to a running service",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, options *models.Options) {
			c, err := client.New(baseURL, client.WithAPIKey(options.APIKey))
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				os.Exit(1)
			}
			text := strings.Join(args, " ")
			if len(args) == 0 {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
					os.Exit(1)
				}
				text = string(b)
			}
			if err := remoteAnonymize(cmd.Context(), c, text, cmd.OutOrStdout()); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				os.Exit(1)
			}
		}),
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:3000", "Base URL of the anonymization service")
	return cmd
}

// scrub cleans everything read from r and writes the result to w.
func scrub(ctx context.Context, engine scrubber.Engine, r io.Reader, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	out, err := engine.Clean(ctx, string(b))
	if err != nil {
		return fmt.Errorf("scrubbing input: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

func remoteAnonymize(ctx context.Context, c *client.Client, text string, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out, err := c.Anonymize(ctx, text)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
