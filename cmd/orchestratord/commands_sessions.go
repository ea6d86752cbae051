package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func buildSessionsCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage session checkpoints",
	}
	cmd.AddCommand(buildSessionsClearCmd(logger))
	return cmd
}

func buildSessionsClearCmd(logger *slog.Logger) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Delete a session's checkpointed state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(configPath, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.agent.ClearSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared session %q\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to the engine configuration file")
	return cmd
}
