// Package cmd assembles the mcpbridge command line interface.
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Execute runs the CLI and reports the process exit code. Cobra's own error
// output is silenced; failures are printed to stderr here instead.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if ctx == nil {
		ctx = context.Background()
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

// RootOptions holds global flags shared by the client-side commands.
type RootOptions struct {
	BaseURL string
	Token   string
	Verbose bool
}

// NewRootCommand creates the root command for the mcpbridge CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "mcpbridge",
		Short:         "Streaming MCP bridge for the TurboBackend job substrate",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", "http://127.0.0.1:8080", "bridge base URL")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "bearer token for the bridge")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewToolsCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))

	return cmd
}
