package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the vector index from the episode store",
	Long: `Index re-embeds every stored episode into the vector index. Use it
after restoring the store from backup, after changing the embedder, or
whenever search results look stale.

Examples:
  recalld index`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if a.chromem == nil {
		return fmt.Errorf("oracle.provider is %q; indexing requires chromem", a.cfg.Oracle.Provider)
	}

	listing, err := a.store.List(cmd.Context())
	if err != nil {
		return err
	}

	if err := a.chromem.Index(cmd.Context(), listing.Episodes); err != nil {
		return fmt.Errorf("indexing episodes: %w", err)
	}

	if jsonOut {
		return printJSON(map[string]int{
			"indexed":            len(listing.Episodes),
			"unreadable_records": len(listing.Errors),
		})
	}
	fmt.Printf("indexed %d episodes\n", len(listing.Episodes))
	if len(listing.Errors) > 0 {
		fmt.Printf("warning: %d unreadable records skipped\n", len(listing.Errors))
	}
	return nil
}
