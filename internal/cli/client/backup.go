package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type backupHandle struct {
	Handle string `json:"handle"`
}

// BackupCmd creates the backup command.
func BackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the whole index",
		Long:  "Writes a snapshot of every document and chunk and prints its handle for restore.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := NewAPIClientWithCmd(cmd).Post(cmd.Context(), "/backups", nil)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			var handle backupHandle
			if err := json.Unmarshal(resp.Data, &handle); err != nil {
				return fmt.Errorf("failed to parse backup handle: %w", err)
			}
			if outputJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), handle)
			}
			fmt.Fprintln(cmd.OutOrStdout(), handle.Handle)
			return nil
		},
	}
}

// RestoreCmd creates the restore command.
func RestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <handle>",
		Short: "Replace the index with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := NewAPIClientWithCmd(cmd).Post(cmd.Context(), "/backups/restore", backupHandle{Handle: args[0]}); err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", args[0])
			return nil
		},
	}
}
