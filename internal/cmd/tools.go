package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turbobackend/mcpbridge/client"
)

// NewToolsCommand creates the tools command: it fetches and prints the
// bridge's advertised tool catalog.
func NewToolsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the advertised tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			apiClient, err := client.New(rootOpts.BaseURL, rootOpts.Token, nil)
			if err != nil {
				return err
			}

			tools, err := apiClient.ListTools(cmd.Context())
			if err != nil {
				return fmt.Errorf("list tools: %w", err)
			}

			for _, tool := range tools {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n    %s\n", tool.Name, tool.Description)
			}
			return nil
		},
	}
}
