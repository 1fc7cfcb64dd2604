package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/etvincen/boredapi/internal/domain"
	"github.com/etvincen/boredapi/internal/service"
	"github.com/spf13/cobra"
)

// GetCmd creates the get command.
func GetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <document_id>",
		Short:   "Get an indexed document by ID",
		Aliases: []string{"view"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := NewAPIClientWithCmd(cmd).Get(cmd.Context(), "/documents/"+url.PathEscape(args[0]))
			if err != nil {
				return fmt.Errorf("failed to get document: %w", err)
			}

			var doc domain.ContentDocument
			if err := json.Unmarshal(resp.Data, &doc); err != nil {
				return fmt.Errorf("failed to parse document: %w", err)
			}
			if outputJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), doc)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Title: %s\n", doc.Title)
			fmt.Fprintf(out, "URL: %s\n", doc.URL)
			fmt.Fprintf(out, "Type: %s\n", doc.ContentType)
			fmt.Fprintf(out, "Updated: %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05Z07:00"))
			if doc.EmbeddingStatus != "" {
				fmt.Fprintf(out, "Embeddings: %s\n", doc.EmbeddingStatus)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "--- Content ---")
			fmt.Fprintln(out, doc.Body)
			return nil
		},
	}
}

// IngestCmd creates the ingest command.
func IngestCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index a batch of documents",
		Long: `Index a JSON array of documents read from a file or stdin.

Examples:
  boredapi ingest --file pages.json
  cat pages.json | boredapi ingest`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readDocuments(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			resp, err := NewAPIClientWithCmd(cmd).Post(cmd.Context(), "/documents", docs)
			if err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}

			var report service.IngestReport
			if err := json.Unmarshal(resp.Data, &report); err != nil {
				return fmt.Errorf("failed to parse ingest report: %w", err)
			}
			if outputJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Received %d: %d created, %d updated, %d unchanged, %d skipped, %d failed\n",
				report.Received, report.Created, report.Updated, report.Unchanged, report.Skipped, report.Failed)
			if report.Pending > 0 {
				fmt.Fprintf(out, "%d documents are waiting for embeddings\n", report.Pending)
			}
			for _, e := range report.Errors {
				fmt.Fprintf(out, "  %s: %s (%s)\n", e.DocumentID, e.Message, e.Code)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Input file with a JSON array of documents (default stdin)")

	return cmd
}

func readDocuments(stdin io.Reader, file string) ([]domain.ContentDocument, error) {
	r := stdin
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var docs []domain.ContentDocument
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to parse documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents to ingest")
	}
	return docs, nil
}

// DeleteCmd creates the delete command.
func DeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document_id>...",
		Short: "Remove documents from the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := NewAPIClientWithCmd(cmd)
			for _, id := range args {
				if err := api.Delete(cmd.Context(), "/documents/"+url.PathEscape(id)); err != nil {
					return fmt.Errorf("failed to delete %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
			return nil
		},
	}
}

// StatsCmd creates the stats command.
func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := NewAPIClientWithCmd(cmd).Get(cmd.Context(), "/stats")
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}

			var stats domain.IndexStats
			if err := json.Unmarshal(resp.Data, &stats); err != nil {
				return fmt.Errorf("failed to parse stats: %w", err)
			}
			if outputJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), stats)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Documents: %d\n", stats.Documents)
			fmt.Fprintf(out, "Chunks: %d\n", stats.Chunks)
			fmt.Fprintf(out, "Pending embeddings: %d\n", stats.PendingEmbeddings)
			for _, ct := range domain.ContentTypes() {
				if n := stats.ByContentType[ct]; n > 0 {
					fmt.Fprintf(out, "  %s: %d\n", ct, n)
				}
			}
			return nil
		},
	}
}
