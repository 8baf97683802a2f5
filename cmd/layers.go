package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/urbmob/viario-cli/internal/gpkg"
)

var layersValidate bool

var layersCmd = &cobra.Command{
	Use:   "layers <file.gpkg>",
	Short: "List the layers of a GeoPackage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg, err := gpkg.Open(args[0])
		if err != nil {
			return err
		}
		defer pkg.Close() //nolint:errcheck

		layers, err := pkg.ListLayers(cmd.Context())
		if err != nil {
			return err
		}
		if len(layers) == 0 {
			return eris.Errorf("no layers in %s", args[0])
		}

		for _, l := range layers {
			if layersValidate {
				count, err := pkg.ValidateLayer(cmd.Context(), l.Name)
				if err != nil {
					return eris.Wrapf(err, "layer %s failed validation", l.Name)
				}
				fmt.Printf("%-24s %6d features  ok\n", l.Name, count)
				continue
			}
			fmt.Println(l.Name)
		}
		return nil
	},
}

func init() {
	layersCmd.Flags().BoolVar(&layersValidate, "validate", false, "check each layer loads and decodes")
	rootCmd.AddCommand(layersCmd)
}
