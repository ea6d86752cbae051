package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func buildInvokeCmd(logger *slog.Logger) *cobra.Command {
	var (
		configPath string
		sessionID  string
	)
	cmd := &cobra.Command{
		Use:   "invoke <message>",
		Short: "Invoke the agent once with a single user message and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(configPath, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			resp, err := rt.agent.Invoke(cmd.Context(), sessionID, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to the engine configuration file")
	cmd.Flags().StringVar(&sessionID, "session", "default", "Session id to invoke against")
	return cmd
}
