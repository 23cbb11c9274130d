package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/shopbot/internal/core/domain"
)

var (
	searchK        int
	searchTypes    []string
	searchCategory string
	searchBrand    string
	searchInStock  bool
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Show what retrieval finds for a query",
	Long: `Embeds the query once and runs a similarity search per entity type
(products and document chunks), printing the merged ranking without asking
the language model.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchK, "k-per-type", "k", 0, "hits per entity type (default from settings)")
	searchCmd.Flags().StringSliceVarP(&searchTypes, "type", "t", nil, "entity types to search: product, doc_chunk")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "only products in this category")
	searchCmd.Flags().StringVar(&searchBrand, "brand", "", "only products of this brand")
	searchCmd.Flags().BoolVar(&searchInStock, "in-stock", false, "only products with stock")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	opts := domain.RetrieveOptions{
		KPerType: searchK,
		Filters: domain.Filters{
			Category:    searchCategory,
			Brand:       searchBrand,
			InStockOnly: searchInStock,
		},
	}
	for _, name := range searchTypes {
		t, err := domain.ParseEntityType(name)
		if err != nil {
			return err
		}
		opts.Types = append(opts.Types, t)
	}

	svc, err := loadServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck // best effort on exit

	result, err := svc.Retriever.Retrieve(cmd.Context(), strings.Join(args, " "), opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, result)
	}
	outputSearchTable(cmd, result)
	return nil
}

type searchHit struct {
	Type  string  `json:"type"`
	Key   string  `json:"key"`
	Score float64 `json:"score"`
	Title string  `json:"title"`
	Text  string  `json:"text"`
}

func outputSearchJSON(cmd *cobra.Command, result domain.QueryResult) error {
	hits := make([]searchHit, len(result.Items))
	for i, item := range result.Items {
		hits[i] = searchHit{
			Type:  item.Type.String(),
			Key:   item.Key(),
			Score: item.Score,
			Title: hitTitle(item),
			Text:  hitText(item),
		}
	}
	data, err := json.MarshalIndent(hits, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, result domain.QueryResult) {
	if len(result.Items) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, item := range result.Items {
		// Format: [N] type Title (Score)
		cmd.Printf("  [%d] %-9s %s (%.3f)\n", i+1, item.Type, hitTitle(item), item.Score)
		if text := snippet(hitText(item), 160); text != "" {
			cmd.Printf("      %s\n", text)
		}
		cmd.Println()
	}
}

func hitTitle(item domain.ScoredEntity) string {
	switch {
	case item.Product != nil:
		return item.Product.Name
	case item.Chunk != nil:
		if item.Chunk.DocumentTitle != "" {
			return fmt.Sprintf("%s #%d", item.Chunk.DocumentTitle, item.Chunk.ChunkIndex)
		}
		return item.Chunk.Key()
	}
	return item.Key()
}

func hitText(item domain.ScoredEntity) string {
	switch {
	case item.Product != nil:
		return item.Product.SerializedText
	case item.Chunk != nil:
		return item.Chunk.Text
	}
	return ""
}

// snippet collapses whitespace and cuts s to at most n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
