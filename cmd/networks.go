package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/urbmob/viario-cli/internal/osm"
)

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List the available network types",
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := osm.LoadFilters()
		if err != nil {
			return err
		}
		for _, nt := range filters.Types() {
			fmt.Println(nt)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(networksCmd)
}
