package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/urbmob/viario-cli/internal/osm"
	"github.com/urbmob/viario-cli/internal/pipeline"
	"github.com/urbmob/viario-cli/internal/store"
)

var servePort int

type jobRequest struct {
	Codes          string  `json:"codes"`
	NetworkType    string  `json:"network_type"`
	BufferMeters   float64 `json:"buffer_meters"`
	Output         string  `json:"output"`
	BoundarySource string  `json:"boundary_source"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a job server for extraction requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore()
		if err != nil {
			return err
		}
		if st == nil {
			return eris.New("serve requires the run store; enable it in config")
		}
		defer st.Close() //nolint:errcheck

		filters, err := osm.LoadFilters()
		if err != nil {
			return err
		}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		}))

		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/jobs", func(w http.ResponseWriter, req *http.Request) {
			var body jobRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}

			codes, err := pipeline.ParseCodes(body.Codes)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			if body.NetworkType == "" {
				body.NetworkType = "drive"
			}
			nt, err := filters.ParseNetworkType(body.NetworkType)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			if body.Output == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "output is required"})
				return
			}

			p, err := buildPipeline(body.BoundarySource)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}

			run, err := st.CreateRun(req.Context(), store.RunParams{
				Codes:          codes,
				NetworkType:    string(nt),
				BufferMeters:   body.BufferMeters,
				OutputPath:     body.Output,
				BoundarySource: body.BoundarySource,
			})
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}

			// The job outlives the request but not the server.
			go runJob(ctx, st, p, run.ID, pipeline.Request{
				Codes:        codes,
				NetworkType:  nt,
				BufferMeters: body.BufferMeters,
				OutputPath:   body.Output,
			})

			writeJSON(w, http.StatusAccepted, map[string]string{
				"id":     run.ID,
				"status": string(store.RunQueued),
			})
		})

		r.Get("/jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
			run, err := st.GetRun(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"id":         run.ID,
				"status":     run.Status,
				"params":     run.Params,
				"result":     run.Result,
				"error":      run.Error,
				"created_at": run.CreatedAt,
				"updated_at": run.UpdatedAt,
			})
		})

		r.Get("/jobs/{id}/stages", func(w http.ResponseWriter, req *http.Request) {
			stages, err := st.RunStages(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			out := make([]map[string]any, 0, len(stages))
			for _, s := range stages {
				out = append(out, map[string]any{
					"code":       s.Code,
					"stage":      s.Name,
					"status":     s.Status,
					"detail":     s.Detail,
					"started_at": s.StartedAt,
				})
			}
			writeJSON(w, http.StatusOK, out)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

// runJob executes one queued extraction and records its outcome.
func runJob(ctx context.Context, st *store.Store, p *pipeline.Pipeline, runID string, req pipeline.Request) {
	if err := st.SetRunning(ctx, runID); err != nil {
		zap.L().Error("mark run running failed", zap.String("run", runID), zap.Error(err))
		return
	}

	p.OnStage = func(code, stage, status, detail string) {
		if err := st.AddStage(context.Background(), runID, code, stage, status, detail); err != nil {
			zap.L().Warn("record stage failed", zap.String("run", runID), zap.Error(err))
		}
	}

	result, err := p.Run(ctx, req)
	if err != nil {
		zap.L().Error("job failed", zap.String("run", runID), zap.Error(err))
		if ferr := st.FailRun(context.Background(), runID, err); ferr != nil {
			zap.L().Error("record job failure failed", zap.String("run", runID), zap.Error(ferr))
		}
		return
	}

	layers := make([]string, len(result.Layers))
	for i, l := range result.Layers {
		layers[i] = l.Name
	}
	if err := st.CompleteRun(context.Background(), runID, &store.RunResult{
		OutputPath: result.OutputPath,
		Layers:     layers,
	}); err != nil {
		zap.L().Error("record job completion failed", zap.String("run", runID), zap.Error(err))
		return
	}
	zap.L().Info("job complete",
		zap.String("run", runID),
		zap.String("output", result.OutputPath),
		zap.Int("layers", len(result.Layers)),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
