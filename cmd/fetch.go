package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbmob/viario-cli/internal/osm"
	"github.com/urbmob/viario-cli/internal/pipeline"
	"github.com/urbmob/viario-cli/internal/store"
)

var (
	fetchCodes          string
	fetchNetworkType    string
	fetchBufferMeters   float64
	fetchOutput         string
	fetchBoundarySource string
	fetchNoStore        bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download street networks for municipality codes into a GeoPackage",
	Long:  `Processes each IBGE code in order: resolves the municipality, fetches its boundary, downloads the OSM street network clipped to it, projects to UTM and writes one layer per municipality into a single GeoPackage. The first failure aborts the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		codes, err := pipeline.ParseCodes(fetchCodes)
		if err != nil {
			return err
		}

		filters, err := osm.LoadFilters()
		if err != nil {
			return err
		}
		nt, err := filters.ParseNetworkType(fetchNetworkType)
		if err != nil {
			return err
		}

		p, err := buildPipeline(fetchBoundarySource)
		if err != nil {
			return err
		}

		req := pipeline.Request{
			Codes:        codes,
			NetworkType:  nt,
			BufferMeters: fetchBufferMeters,
			OutputPath:   fetchOutput,
		}

		var st *store.Store
		var runID string
		if !fetchNoStore {
			st, err = openStore()
			if err != nil {
				return err
			}
		}
		if st != nil {
			defer st.Close() //nolint:errcheck

			run, err := st.CreateRun(ctx, store.RunParams{
				Codes:          codes,
				NetworkType:    string(nt),
				BufferMeters:   fetchBufferMeters,
				OutputPath:     fetchOutput,
				BoundarySource: fetchBoundarySource,
			})
			if err != nil {
				return err
			}
			runID = run.ID
			if err := st.SetRunning(ctx, runID); err != nil {
				return err
			}

			p.OnStage = func(code, stage, status, detail string) {
				if err := st.AddStage(context.Background(), runID, code, stage, status, detail); err != nil {
					zap.L().Warn("record stage failed", zap.Error(err))
				}
			}
		}

		result, err := p.Run(ctx, req)
		if err != nil {
			if st != nil {
				if ferr := st.FailRun(context.Background(), runID, err); ferr != nil {
					zap.L().Warn("record run failure failed", zap.Error(ferr))
				}
			}
			return eris.Wrap(err, "fetch")
		}

		if st != nil {
			layers := make([]string, len(result.Layers))
			for i, l := range result.Layers {
				layers[i] = l.Name
			}
			if err := st.CompleteRun(ctx, runID, &store.RunResult{
				OutputPath: result.OutputPath,
				Layers:     layers,
			}); err != nil {
				zap.L().Warn("record run completion failed", zap.Error(err))
			}
		}

		fmt.Printf("wrote %s\n", result.OutputPath)
		for _, l := range result.Layers {
			fmt.Printf("  %-24s %6d features  EPSG:%d  (%s)\n", l.Name, l.FeatureCount, l.EPSG, l.DisplayName)
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchCodes, "codes", "", "municipality codes, separated by ';' ',' or whitespace (required)")
	fetchCmd.Flags().StringVar(&fetchNetworkType, "network-type", "drive", "network type: drive, drive_service, walk, bike or all")
	fetchCmd.Flags().Float64Var(&fetchBufferMeters, "buffer", 0, "boundary buffer in meters")
	fetchCmd.Flags().StringVar(&fetchOutput, "output", "viario_segments.gpkg", "output GeoPackage path")
	fetchCmd.Flags().StringVar(&fetchBoundarySource, "boundary-source", "", "boundary source: nominatim, malha or auto (default from config)")
	fetchCmd.Flags().BoolVar(&fetchNoStore, "no-store", false, "skip recording the run in the history database")
	_ = fetchCmd.MarkFlagRequired("codes")
	rootCmd.AddCommand(fetchCmd)
}
