// Package boundary fetches municipal boundary polygons from pluggable
// sources: the Nominatim geocoder, the IBGE malha municipal files, or a
// cascade of both.
package boundary

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/urbmob/viario-cli/pkg/ibge"
	"github.com/urbmob/viario-cli/pkg/nominatim"
)

// Boundary is a municipal boundary in WGS84.
type Boundary struct {
	Geometry    geom.T // Polygon or MultiPolygon
	DisplayName string
	Source      string
}

// Source resolves a place to its boundary polygon.
type Source interface {
	Name() string
	Fetch(ctx context.Context, place ibge.Place) (*Boundary, error)
}

// Geocoder is the slice of the Nominatim client the source needs.
type Geocoder interface {
	SearchBoundary(ctx context.Context, query string) (*nominatim.Boundary, error)
}

// NominatimSource geocodes the place query string to an area geometry.
type NominatimSource struct {
	Client Geocoder
}

// Name implements Source.
func (s *NominatimSource) Name() string { return "nominatim" }

// Fetch implements Source.
func (s *NominatimSource) Fetch(ctx context.Context, place ibge.Place) (*Boundary, error) {
	b, err := s.Client.SearchBoundary(ctx, place.Query())
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: geocode %q", place.Query())
	}
	return &Boundary{
		Geometry:    b.Geometry,
		DisplayName: b.DisplayName,
		Source:      s.Name(),
	}, nil
}

// Cascade tries sources in order until one returns a boundary.
type Cascade struct {
	Sources []Source
}

// Name implements Source.
func (c *Cascade) Name() string { return "cascade" }

// Fetch implements Source. A source error is logged and the next source is
// tried; only when every source fails does Fetch return the last error.
func (c *Cascade) Fetch(ctx context.Context, place ibge.Place) (*Boundary, error) {
	if len(c.Sources) == 0 {
		return nil, eris.New("boundary: cascade has no sources")
	}

	var lastErr error
	for _, s := range c.Sources {
		b, err := s.Fetch(ctx, place)
		if err != nil {
			zap.L().Warn("boundary: source failed, trying next",
				zap.String("source", s.Name()),
				zap.String("code", place.Code),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		return b, nil
	}
	return nil, eris.Wrapf(lastErr, "boundary: all sources failed for code %s", place.Code)
}
