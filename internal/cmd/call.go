package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turbobackend/mcpbridge/client"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Arguments string
}

// NewCallCommand creates the call command: it invokes one tool and follows
// its progress stream until the terminal result arrives.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <tool-name>",
		Short: "Invoke a tool and stream its progress",
		Long: `Invoke a tool and stream its progress.

Progress notifications go to stderr as they arrive; the terminal result is
printed to stdout as JSON.

Example:
  mcpbridge call spin_up_new_backend_project --args '{"projectName":"demo"}'
  mcpbridge call modifyProject --args '{"modificationRequest":"add a /health route"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Arguments, "args", "{}", "tool arguments as a JSON object")

	return cmd
}

func runCall(cmd *cobra.Command, opts *CallOptions, toolName string) error {
	var arguments map[string]any
	if err := json.Unmarshal([]byte(opts.Arguments), &arguments); err != nil {
		return fmt.Errorf("parse --args: %w", err)
	}

	apiClient, err := client.New(opts.BaseURL, opts.Token, nil)
	if err != nil {
		return err
	}

	onProgress := func(message string, progress float64) {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%3.0f%%] %s\n", progress, message)
	}

	result, err := apiClient.CallTool(cmd.Context(), toolName, arguments, onProgress)
	if err != nil {
		return fmt.Errorf("call %s: %w", toolName, err)
	}

	encoded, err := json.MarshalIndent(result.Content, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))

	if result.IsError {
		return fmt.Errorf("%s reported an error", toolName)
	}
	return nil
}
