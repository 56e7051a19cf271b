package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shopmcp/storefront-mcp/internal/catalog"
	"github.com/shopmcp/storefront-mcp/internal/database"
)

var storesLimit int

// storesCmd represents the stores command
var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "List indexed stores",
	Long: `List the stores currently indexed in the catalog, largest catalog first,
with their platform, product count, and last index time.`,
	Example: `  storefront-mcp stores
  storefront-mcp stores --limit 100`,
	RunE: runStores,
}

func init() {
	rootCmd.AddCommand(storesCmd)

	storesCmd.Flags().IntVar(&storesLimit, "limit", 25, "Maximum number of stores to list")
}

func runStores(cmd *cobra.Command, args []string) error {
	defer database.Close()

	cat := catalog.New(database.Pool(), cfg.Database.StatementTimeout)
	stores, err := cat.ListStores(cmd.Context(), storesLimit)
	if err != nil {
		return fmt.Errorf("failed to list stores: %w", err)
	}

	if len(stores) == 0 {
		fmt.Println("No stores indexed yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tNAME\tPLATFORM\tPRODUCTS\tINDEXED AT")
	for _, s := range stores {
		indexedAt := "-"
		if s.IndexedAt != nil {
			indexedAt = s.IndexedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", s.Slug, s.Name, s.Platform, s.ProductCount, indexedAt)
	}
	return w.Flush()
}
