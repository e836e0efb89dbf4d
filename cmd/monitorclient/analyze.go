package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newTextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "text [TEXT...]",
		Short: "Analyze text (read from stdin when no arguments are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(data)
			}
			return printOutput(cmd, a.controller.AnalyzeText(cmd.Context(), text))
		},
	}
}

func newImageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "image PATH",
		Short: "Analyze an image file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return printOutput(cmd, a.controller.AnalyzeImageFile(cmd.Context(), path))
		},
	}
}

func newParseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parse URL",
		Short: "Parse a page through the backend demo parser",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pageURL string
			if len(args) == 1 {
				pageURL = args[0]
			}
			return printOutput(cmd, a.controller.ParseURL(cmd.Context(), pageURL))
		},
	}
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.client.Health(cmd.Context())
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
				return errShown
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s (%s)\n", a.client.BaseURL(), h.Status, h.Service, h.Version)
			return nil
		},
	}
}
