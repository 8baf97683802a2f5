package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/urbmob/viario-cli/internal/pipeline"
)

var resolveCodes string

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve municipality codes to place names without downloading",
	RunE: func(cmd *cobra.Command, args []string) error {
		codes, err := pipeline.ParseCodes(resolveCodes)
		if err != nil {
			return err
		}

		resolver, err := newResolver()
		if err != nil {
			return err
		}

		for _, code := range codes {
			place, err := resolver.Resolve(cmd.Context(), code)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\n", code, place.Query())
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveCodes, "codes", "", "municipality codes, separated by ';' ',' or whitespace (required)")
	_ = resolveCmd.MarkFlagRequired("codes")
	rootCmd.AddCommand(resolveCmd)
}
