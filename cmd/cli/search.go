package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shopmcp/storefront-mcp/internal/catalog"
	"github.com/shopmcp/storefront-mcp/internal/database"
	"github.com/shopmcp/storefront-mcp/internal/embed"
	"github.com/shopmcp/storefront-mcp/internal/resolver"
	"github.com/shopmcp/storefront-mcp/internal/search"
)

var (
	searchSlug      string
	searchLimit     int
	searchAvailable bool
	searchV2        bool
	searchTone      string
	searchSort      string
	searchBudgetMax int64
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a product search against the indexed catalog",
	Long: `Run a hybrid lexical and vector product search directly against the
database, bypassing the HTTP transport. Prints the tool response as JSON.`,
	Example: `  storefront-mcp search "vitamin c serum"
  storefront-mcp search "red lipstick" --slug acme --limit 5
  storefront-mcp search "foundation" --v2 --tone deep --budget-max 4500`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&searchSlug, "slug", "", "Store slug (auto-selected when empty)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum number of results")
	searchCmd.Flags().BoolVar(&searchAvailable, "available-only", false, "Only return in-stock products")
	searchCmd.Flags().BoolVar(&searchV2, "v2", false, "Use the v2 scored search path")
	searchCmd.Flags().StringVar(&searchTone, "tone", "", "Skin tone hint for v2 ranking")
	searchCmd.Flags().StringVar(&searchSort, "sort", "", "v2 sort mode: best_match, price_low_to_high, price_high_to_low")
	searchCmd.Flags().Int64Var(&searchBudgetMax, "budget-max", 0, "Budget ceiling in cents for v2 ranking")
}

func runSearch(cmd *cobra.Command, args []string) error {
	defer database.Close()

	query := strings.Join(args, " ")

	cat := catalog.New(database.Pool(), cfg.Database.StatementTimeout)
	res := resolver.New(cat, cfg.Search.PreferredStore)
	emb := embed.New(cfg.Embedder)
	engine := search.NewEngine(cat, res, emb, cfg.Search)

	params := search.Params{
		Query:         query,
		Limit:         searchLimit,
		AvailableOnly: searchAvailable,
		Slug:          searchSlug,
	}

	var (
		resp map[string]any
		err  error
	)
	if searchV2 {
		v2 := search.V2Params{Params: params, SkinTone: searchTone, Sort: searchSort}
		if searchBudgetMax > 0 {
			v2.BudgetMaxCents = &searchBudgetMax
		}
		resp, err = engine.SearchV2(cmd.Context(), v2)
	} else {
		resp, err = engine.Search(cmd.Context(), params)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
