package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func buildMcpCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Inspect configured MCP servers",
	}
	cmd.AddCommand(buildMcpStatusCmd(logger))
	return cmd
}

func buildMcpStatusCmd(logger *slog.Logger) *cobra.Command {
	var (
		configPath string
		connect    bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List configured MCP servers and whether they are connected",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(configPath, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			if connect {
				if _, err := rt.mcpExecutor.AvailableTools(cmd.Context()); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: discovery failed: %v\n", err)
				}
			}

			live := make(map[string]int)
			connected := make(map[string]bool)
			for _, s := range rt.mcpExecutor.Status() {
				live[s.ID] = s.Tools
				connected[s.ID] = s.Connected
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "SERVER\tTRANSPORT\tENABLED\tCONNECTED\tTOOLS")
			for _, meta := range rt.catalog.AllServers() {
				tools := "-"
				connectedStr := "no"
				if meta.Enabled {
					if connected[meta.ID] {
						connectedStr = "yes"
						tools = fmt.Sprintf("%d", live[meta.ID])
					}
				} else {
					connectedStr = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", meta.ID, meta.Config.Transport, meta.Enabled, connectedStr, tools)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to the engine configuration file")
	cmd.Flags().BoolVar(&connect, "connect", false, "Connect to every enabled server before reporting tool counts")
	return cmd
}
