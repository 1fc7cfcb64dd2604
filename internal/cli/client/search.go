package client

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/etvincen/boredapi/internal/api/handlers"
	"github.com/spf13/cobra"
)

// SearchOptions mirrors the /search query parameters.
type SearchOptions struct {
	Size          int
	MinScore      float64
	Mode          string
	ContentType   string
	LexicalWeight float64
	VectorWeight  float64
	IncludeStats  bool
}

func (o SearchOptions) values(query string, cmd *cobra.Command) url.Values {
	v := url.Values{}
	v.Set("q", query)
	if o.Size > 0 {
		v.Set("size", strconv.Itoa(o.Size))
	}
	if o.Mode != "" {
		v.Set("mode", o.Mode)
	}
	if o.ContentType != "" {
		v.Set("content_type", o.ContentType)
	}
	if o.IncludeStats {
		v.Set("include_stats", "true")
	}
	if cmd == nil || cmd.Flags().Changed("min-score") {
		v.Set("min_score", strconv.FormatFloat(o.MinScore, 'f', -1, 64))
	}
	if cmd == nil || cmd.Flags().Changed("lexical-weight") {
		v.Set("lexical_weight", strconv.FormatFloat(o.LexicalWeight, 'f', -1, 64))
	}
	if cmd == nil || cmd.Flags().Changed("vector-weight") {
		v.Set("vector_weight", strconv.FormatFloat(o.VectorWeight, 'f', -1, 64))
	}
	return v
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var opts SearchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed content",
		Long:  "Runs a hybrid, semantic or keyword search and prints the ranked documents.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			api := NewAPIClientWithCmd(cmd)

			var resp handlers.SearchResponse
			if err := api.GetJSON(cmd.Context(), "/search?"+opts.values(query, cmd).Encode(), &resp); err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if outputJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printSearch(cmd, resp)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Size, "size", "n", 10, "Maximum number of results (1-50)")
	cmd.Flags().Float64Var(&opts.MinScore, "min-score", 0, "Drop results with a lower fused score")
	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", "", "Search mode: hybrid, semantic or keyword")
	cmd.Flags().StringVarP(&opts.ContentType, "type", "t", "", "Filter by content type")
	cmd.Flags().Float64Var(&opts.LexicalWeight, "lexical-weight", 0.5, "Lexical fusion weight")
	cmd.Flags().Float64Var(&opts.VectorWeight, "vector-weight", 0.5, "Vector fusion weight")
	cmd.Flags().BoolVar(&opts.IncludeStats, "stats", false, "Include document statistics")

	return cmd
}

func printSearch(cmd *cobra.Command, resp handlers.SearchResponse) {
	out := cmd.OutOrStdout()
	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return
	}

	fmt.Fprintf(out, "Found %d results (%s, %dms):\n\n", resp.Total, resp.Mode, resp.Performance.TookMS)
	for i, result := range resp.Results {
		fmt.Fprintf(out, "%d. %s (%.3f)\n", i+1, result.Title, result.FusedScore)
		if result.URL != "" {
			fmt.Fprintf(out, "   %s\n", result.URL)
		}
		if result.TextPreview != "" {
			fmt.Fprintf(out, "   %s\n", result.TextPreview)
		}
		fmt.Fprintf(out, "   ID: %s\n", result.DocumentID)
		if i < len(resp.Results)-1 {
			fmt.Fprintln(out, strings.Repeat("-", 40))
		}
	}
	if resp.Mode == "keyword-fallback" {
		fmt.Fprintln(out, "\nSemantic search unavailable, results are keyword-only.")
	}
}

// SuggestCmd creates the suggest command.
func SuggestCmd() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "suggest <prefix>",
		Short: "Suggest titles for a prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := url.Values{}
			v.Set("q", args[0])
			if size > 0 {
				v.Set("size", strconv.Itoa(size))
			}

			var resp handlers.SuggestResponse
			if err := NewAPIClientWithCmd(cmd).GetJSON(cmd.Context(), "/suggest?"+v.Encode(), &resp); err != nil {
				return fmt.Errorf("suggest failed: %w", err)
			}
			if outputJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			for _, s := range resp.Suggestions {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&size, "size", "n", 5, "Maximum number of suggestions (1-10)")

	return cmd
}
