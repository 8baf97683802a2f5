// Package pipeline orchestrates the per-municipality extraction flow:
// resolve the code, fetch the boundary, download the clipped street
// network, project it, and write one GeoPackage layer per municipality.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/urbmob/viario-cli/internal/boundary"
	"github.com/urbmob/viario-cli/internal/gpkg"
	"github.com/urbmob/viario-cli/internal/osm"
	"github.com/urbmob/viario-cli/internal/proj"
	"github.com/urbmob/viario-cli/pkg/ibge"
)

// NetworkFetcher downloads a street network clipped to a boundary.
type NetworkFetcher interface {
	Download(ctx context.Context, boundary geom.T, nt osm.NetworkType) (*osm.Network, error)
}

// Request is one pipeline invocation.
type Request struct {
	Codes        []string
	NetworkType  osm.NetworkType
	BufferMeters float64
	OutputPath   string
}

// Layer describes one written GeoPackage layer.
type Layer struct {
	Code         string
	Name         string
	DisplayName  string
	FeatureCount int
	EPSG         int
}

// Result is the outcome of a successful run.
type Result struct {
	OutputPath string
	Layers     []Layer
}

// StageError reports which municipality and stage aborted the run.
type StageError struct {
	Code  string
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed for municipality %s: %v", e.Stage, e.Code, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline wires the resolver, boundary source and network fetcher into the
// extraction flow. Any stage failure aborts the whole run so a partial
// GeoPackage is never reported as success.
type Pipeline struct {
	Resolver   ibge.Resolver
	Boundaries boundary.Source
	Fetcher    NetworkFetcher

	// OnStage, when set, observes stage transitions. Status is "ok",
	// "warn" or "failed".
	OnStage func(code, stage, status, detail string)
}

func (p *Pipeline) notify(code, stage, status, detail string) {
	if p.OnStage != nil {
		p.OnStage(code, stage, status, detail)
	}
}

func (p *Pipeline) fail(code, stage string, err error) error {
	p.notify(code, stage, "failed", err.Error())
	return &StageError{Code: code, Stage: stage, Err: err}
}

// Run executes the pipeline for every code in order, writing all layers
// into a single GeoPackage at the request's output path.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Codes) == 0 {
		return nil, eris.New("pipeline: no municipality codes given")
	}

	outputPath, err := NormalizeOutputPath(req.OutputPath)
	if err != nil {
		return nil, err
	}

	pkg, err := gpkg.Open(outputPath)
	if err != nil {
		return nil, err
	}
	defer pkg.Close() //nolint:errcheck

	result := &Result{OutputPath: outputPath}
	for _, code := range req.Codes {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pipeline: run canceled")
		}

		layer, err := p.processCode(ctx, pkg, code, req)
		if err != nil {
			return nil, err
		}
		result.Layers = append(result.Layers, *layer)
	}

	zap.L().Info("pipeline: run complete",
		zap.String("output", outputPath),
		zap.Int("layers", len(result.Layers)),
	)
	return result, nil
}

func (p *Pipeline) processCode(ctx context.Context, pkg *gpkg.Package, code string, req Request) (*Layer, error) {
	log := zap.L().With(zap.String("code", code))
	log.Info("pipeline: processing municipality")

	place, err := p.Resolver.Resolve(ctx, code)
	if err != nil {
		return nil, p.fail(code, "resolve", err)
	}
	p.notify(code, "resolve", "ok", place.Query())
	log.Info("pipeline: resolved place", zap.String("query", place.Query()))

	b, err := p.Boundaries.Fetch(ctx, *place)
	if err != nil {
		return nil, p.fail(code, "boundary", err)
	}
	p.notify(code, "boundary", "ok", b.Source)

	geometry := b.Geometry
	if req.BufferMeters > 0 {
		buffered, err := proj.BufferMeters(geometry, req.BufferMeters)
		if err != nil {
			// A failed buffer falls back to the raw boundary rather
			// than aborting the run.
			log.Warn("pipeline: buffer failed, using unbuffered boundary",
				zap.Float64("buffer_m", req.BufferMeters),
				zap.Error(err),
			)
			p.notify(code, "buffer", "warn", err.Error())
		} else {
			geometry = buffered
			p.notify(code, "buffer", "ok", fmt.Sprintf("%.0fm", req.BufferMeters))
		}
	}

	net, err := p.Fetcher.Download(ctx, geometry, req.NetworkType)
	if err != nil {
		return nil, p.fail(code, "download", err)
	}
	p.notify(code, "download", "ok", fmt.Sprintf("%d edges", len(net.Edges)))

	if err := net.ProjectUTM(); err != nil {
		return nil, p.fail(code, "project", err)
	}
	p.notify(code, "project", "ok", fmt.Sprintf("EPSG:%d", net.Projected.EPSG()))

	name := LayerName(code)
	if err := pkg.WriteEdgeLayer(ctx, name, net.Edges); err != nil {
		return nil, p.fail(code, "write", err)
	}

	count, err := pkg.ValidateLayer(ctx, name)
	if err != nil {
		return nil, p.fail(code, "validate", err)
	}
	p.notify(code, "write", "ok", fmt.Sprintf("%s: %d features", name, count))

	log.Info("pipeline: layer written",
		zap.String("layer", name),
		zap.Int("features", count),
		zap.Int("epsg", net.Projected.EPSG()),
	)

	return &Layer{
		Code:         code,
		Name:         name,
		DisplayName:  DisplayName(place.Name, place.UF, string(req.NetworkType), req.BufferMeters),
		FeatureCount: count,
		EPSG:         net.Projected.EPSG(),
	}, nil
}
