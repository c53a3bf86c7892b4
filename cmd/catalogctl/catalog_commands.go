package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ingredient-detector/internal/core/catalog"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the catalog schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store catalog.Store) error {
				// Open 已執行遷移；再跑一次確認冪等
				if err := store.Migrate(cmd.Context()); err != nil {
					return err
				}
				n, err := store.Count(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Catalog schema up to date (%d ingredients)\n", n)
				return nil
			})
		},
	}
}

func newSeedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file]",
		Short: "Upsert ingredients from a JSON file, or the built-in set when no file is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, source, err := loadSeeds(args)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(store catalog.Store) error {
				n, err := catalog.SeedStore(cmd.Context(), store, entries)
				if err != nil {
					return err
				}
				total, err := store.Count(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d ingredients from %s (catalog now has %d)\n", n, source, total)
				return nil
			})
		},
	}
}

func loadSeeds(args []string) ([]catalog.Entry, string, error) {
	if len(args) == 0 {
		entries, err := catalog.DefaultSeeds()
		return entries, "built-in seed set", err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, "", fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	entries, err := catalog.ParseSeeds(f)
	if err != nil {
		return nil, "", fmt.Errorf("parse %s: %w", args[0], err)
	}
	return entries, args[0], nil
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var similar bool
	cmd := &cobra.Command{
		Use:   "search <term>...",
		Short: "Look up catalog entries by name or alias",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store catalog.Store) error {
				if similar {
					cfg, err := ctx.ensureConfig()
					if err != nil {
						return err
					}
					return printSimilar(cmd, store, args, cfg.Detection.TrigramMinSimilarity)
				}
				entries, err := store.SearchByTerms(cmd.Context(), args)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No matching ingredients")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{e.Name, categoryLabel(string(e.Category)), strings.Join(e.Aliases, ", "), e.ID})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{textColumn("Name"), textColumn("Category"), textColumn("Aliases"), textColumn("ID")}, rows))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&similar, "similar", false, "Use trigram similarity instead of substring matching")
	return cmd
}

func printSimilar(cmd *cobra.Command, store catalog.Store, terms []string, min float64) error {
	groups, err := store.SearchSimilar(cmd.Context(), terms, min, 3)
	if err != nil {
		return err
	}
	var rows [][]string
	for i, term := range terms {
		for _, e := range groups[i] {
			rows = append(rows, []string{term, e.Name, scoreCell(e.Similarity)})
		}
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No similar ingredients")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{textColumn("Term"), textColumn("Name"), numericColumn("Similarity")}, rows))
	return nil
}

func categoryLabel(c string) string {
	if c == "" {
		return "-"
	}
	return c
}
