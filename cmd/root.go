package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbmob/viario-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "viario",
	Short: "Street network extractor for Brazilian municipalities",
	Long:  "Resolves IBGE municipality codes, geocodes their boundaries, downloads the OSM street network clipped to each boundary, projects it to UTM, and writes one GeoPackage layer per municipality.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
