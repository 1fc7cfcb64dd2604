package main

import (
	"fmt"
	"os"

	"github.com/etvincen/boredapi/internal/cli"
	"github.com/etvincen/boredapi/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "boredapi",
		Short: "boredapi CLI - search and manage indexed content",
		Long: `boredapi CLI talks to a running boredapid server.

Environment variables:
  BOREDAPI_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.SuggestCmd())
	rootCmd.AddCommand(client.GetCmd())
	rootCmd.AddCommand(client.IngestCmd())
	rootCmd.AddCommand(client.DeleteCmd())
	rootCmd.AddCommand(client.BackupCmd())
	rootCmd.AddCommand(client.RestoreCmd())
	rootCmd.AddCommand(client.StatsCmd())

	if handled, err := cli.HandleHelpJSON(rootCmd, os.Args[1:], os.Stdout); handled {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
