package main

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/urbmob/viario-cli/internal/boundary"
	"github.com/urbmob/viario-cli/internal/malha"
	"github.com/urbmob/viario-cli/internal/osm"
	"github.com/urbmob/viario-cli/internal/pipeline"
	"github.com/urbmob/viario-cli/internal/store"
	"github.com/urbmob/viario-cli/pkg/ibge"
	"github.com/urbmob/viario-cli/pkg/nominatim"
	"github.com/urbmob/viario-cli/pkg/overpass"
)

// newResolver picks the municipality code resolver: the DTB spreadsheet when
// configured (offline), otherwise the localidades API.
func newResolver() (ibge.Resolver, error) {
	if cfg.IBGE.DTBPath != "" {
		return ibge.NewDTBResolver(cfg.IBGE.DTBPath)
	}
	return ibge.NewClient(ibge.ClientOptions{
		BaseURL: cfg.IBGE.BaseURL,
		Timeout: time.Duration(cfg.IBGE.TimeoutSecs) * time.Second,
	}), nil
}

func newNominatimSource() *boundary.NominatimSource {
	return &boundary.NominatimSource{
		Client: nominatim.NewClient(nominatim.ClientOptions{
			BaseURL:    cfg.Nominatim.BaseURL,
			UserAgent:  cfg.Nominatim.UserAgent,
			Email:      cfg.Nominatim.EmailContact,
			Timeout:    time.Duration(cfg.Nominatim.TimeoutSecs) * time.Second,
			RatePerSec: cfg.Nominatim.RatePerSec,
		}),
	}
}

func newMalhaSource() (*malha.Source, error) {
	return malha.NewSource(malha.Options{
		FTPBase: cfg.Malha.FTPURL,
		TempDir: cfg.Malha.TempDir,
		Timeout: time.Duration(cfg.Malha.TimeoutSecs) * time.Second,
	})
}

// newBoundarySource builds the boundary source named by override, or by
// config when override is empty.
func newBoundarySource(override string) (boundary.Source, error) {
	name := override
	if name == "" {
		name = cfg.Boundary.Source
	}

	switch name {
	case "", "nominatim":
		return newNominatimSource(), nil
	case "malha":
		return newMalhaSource()
	case "auto":
		m, err := newMalhaSource()
		if err != nil {
			return nil, err
		}
		return &boundary.Cascade{Sources: []boundary.Source{newNominatimSource(), m}}, nil
	default:
		return nil, eris.Errorf("unknown boundary source %q (want nominatim, malha or auto)", name)
	}
}

func newFetcher() (*osm.Downloader, error) {
	client := overpass.NewClient(overpass.ClientOptions{
		BaseURL:    cfg.Overpass.BaseURL,
		RatePerSec: cfg.Overpass.RatePerSec,
		Timeout:    time.Duration(cfg.Overpass.QueryTimeout+60) * time.Second,
	})
	return osm.NewDownloader(client, cfg.Overpass.QueryTimeout)
}

// buildPipeline wires the configured resolver, boundary source and
// downloader into a pipeline.
func buildPipeline(boundaryOverride string) (*pipeline.Pipeline, error) {
	resolver, err := newResolver()
	if err != nil {
		return nil, err
	}
	boundaries, err := newBoundarySource(boundaryOverride)
	if err != nil {
		return nil, err
	}
	fetcher, err := newFetcher()
	if err != nil {
		return nil, err
	}
	return &pipeline.Pipeline{
		Resolver:   resolver,
		Boundaries: boundaries,
		Fetcher:    fetcher,
	}, nil
}

// openStore opens the run-history store, or returns nil when disabled.
func openStore() (*store.Store, error) {
	if cfg.Store.Disabled {
		return nil, nil
	}
	return store.Open(cfg.Store.Path)
}
