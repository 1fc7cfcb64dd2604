package admin

import (
	"encoding/json"
	"fmt"

	"github.com/etvincen/boredapi/internal/config"
	"github.com/etvincen/boredapi/internal/jobs"
	"github.com/spf13/cobra"
)

func ReembedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reembed",
		Short: "Embed documents stored without vectors",
		Long:  "Run one re-embedding pass over documents whose embeddings are pending",
		RunE:  runReembed,
	}

	cmd.Flags().IntP("limit", "n", jobs.DefaultReembedBatch, "Maximum documents to process")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runReembed(cmd *cobra.Command, args []string) error {
	ctx, cancel := exitOnSignal()
	defer cancel()

	limit, _ := cmd.Flags().GetInt("limit")
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := newApp(ctx, cfg, newLogger(cfg.Debug))
	if err != nil {
		return err
	}
	defer a.Close()

	done, err := a.index.ReembedPending(ctx, limit)
	if err != nil {
		return fmt.Errorf("re-embedding stopped after %d documents: %w", done, err)
	}
	stats, err := a.index.Stats(ctx)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"embedded":           done,
			"pending_embeddings": stats.PendingEmbeddings,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d documents, %d still pending\n", done, stats.PendingEmbeddings)
	return nil
}
