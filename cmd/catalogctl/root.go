package main

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"ingredient-detector/internal/core/catalog"
	"ingredient-detector/internal/infrastructure/config"
	"ingredient-detector/internal/pkg/common"
)

type commandContext struct {
	driverFlag *string
	dsnFlag    *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newRootCommand() *cobra.Command {
	var driverFlag string
	var dsnFlag string

	ctx := &commandContext{driverFlag: &driverFlag, dsnFlag: &dsnFlag}

	rootCmd := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Manage the ingredient catalog and run detections from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return common.InitLogger(cfg.LogLevel, cfg.LogFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "Catalog driver (sqlite or postgres); overrides CATALOG_DRIVER")
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "Catalog DSN; overrides DATABASE_URL")

	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newSeedCommand(ctx))
	rootCmd.AddCommand(newSearchCommand(ctx))
	rootCmd.AddCommand(newDetectCommand(ctx))
	rootCmd.AddCommand(newProvidersCommand(ctx))

	return rootCmd
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.LoadConfig()
		if err != nil {
			c.configErr = err
			return
		}
		if v := strings.TrimSpace(*c.driverFlag); v != "" {
			cfg.Catalog.Driver = v
		}
		if v := strings.TrimSpace(*c.dsnFlag); v != "" {
			cfg.Catalog.DSN = v
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore 開啟目錄後執行 fn，結束時關閉
func (c *commandContext) withStore(ctx context.Context, fn func(catalog.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := catalog.Open(ctx, cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
