package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"ingredient-detector/internal/core/ai/cache"
	"ingredient-detector/internal/core/ai/image"
	"ingredient-detector/internal/core/ai/vision"
	"ingredient-detector/internal/core/catalog"
	"ingredient-detector/internal/core/detection"
	"ingredient-detector/internal/infrastructure/config"
)

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var (
		providerFlag string
		maxResults   int
		threshold    float64
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "detect <image>",
		Short: "Detect catalog ingredients in an image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			provider, err := vision.ParseProvider(providerFlag)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			if err := image.NewProcessor(cfg.Image.MaxSizeBytes).Validate(data); err != nil {
				return err
			}

			return ctx.withStore(cmd.Context(), func(store catalog.Store) error {
				cacheStore, err := cache.New(cmd.Context(), cfg.Cache)
				if err != nil {
					return err
				}
				if cacheStore != nil {
					defer cacheStore.Close()
				}

				svc := detection.NewServiceFromConfig(cfg.Detection, vision.NewRegistryFromConfig(cfg, cacheStore), store)
				result, err := svc.DetectIngredients(cmd.Context(), data, detection.Options{
					MaxResults:          maxResults,
					ConfidenceThreshold: threshold,
					Provider:            provider,
				})
				if err != nil {
					return err
				}

				if asJSON {
					return writeJSON(cmd, result)
				}
				printDetection(cmd, result)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&providerFlag, "provider", "", "Vision provider (openai or gemini); defaults to the first configured")
	cmd.Flags().IntVar(&maxResults, "max", 0, "Maximum number of results (default from config)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum model confidence (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func printDetection(cmd *cobra.Command, result *detection.Result) {
	out := cmd.OutOrStdout()
	if len(result.DetectedIngredients) == 0 {
		fmt.Fprintln(out, "No ingredients detected")
		return
	}
	rows := make([][]string, 0, len(result.DetectedIngredients))
	for _, m := range result.DetectedIngredients {
		rows = append(rows, []string{
			m.Name,
			categoryLabel(string(m.Category)),
			scoreCell(m.Confidence),
			daysCell(m.ShelfLifeDays),
			strings.Join(m.Aliases, ", "),
		})
	}
	fmt.Fprintln(out, renderTable([]column{
		textColumn("Name"),
		textColumn("Category"),
		numericColumn("Confidence"),
		numericColumn("Shelf life (days)"),
		textColumn("Aliases"),
	}, rows))
}

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List vision providers and whether their API keys are configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]column{textColumn("Provider"), textColumn("Model"), textColumn("API key"), textColumn("Default")},
				providerRows(cfg, vision.NewRegistryFromConfig(cfg, nil)),
			))
			return nil
		},
	}
}

func providerRows(cfg *config.Config, registry *vision.Registry) [][]string {
	keys := map[vision.Provider]string{
		vision.ProviderOpenAI: cfg.Providers.OpenAI.APIKey,
		vision.ProviderGemini: cfg.Providers.Gemini.APIKey,
	}
	def, _ := registry.Default()

	rows := make([][]string, 0, len(vision.KnownProviders))
	for _, p := range vision.KnownProviders {
		rec, ok := registry.Get(p)
		if !ok {
			continue
		}
		key := "not set"
		if rec.Configured() {
			key = config.MaskAPIKey(keys[p])
		}
		rows = append(rows, []string{string(p), rec.Model(), key, yesNo(p == def)})
	}
	return rows
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
