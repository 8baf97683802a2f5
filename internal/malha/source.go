package malha

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urbmob/viario-cli/internal/boundary"
	"github.com/urbmob/viario-cli/pkg/ibge"
)

// defaultZipPattern is the malha municipal path layout on geoftp, relative
// to the configured base URL. %[1]s is the state abbreviation.
const defaultZipPattern = "municipio_2022/UFs/%[1]s/%[1]s_Municipios_2022.zip"

// Options configures the malha boundary source.
type Options struct {
	// FTPBase is the ftp:// URL of the malhas_municipais directory.
	FTPBase string
	// ZipPattern overrides the per-state archive path layout.
	ZipPattern string
	// TempDir holds downloaded and extracted files; defaults to a fresh
	// os temp directory.
	TempDir string
	Timeout time.Duration
}

// Source fetches boundaries from per-state malha shapefiles. Downloads are
// cached per state for the lifetime of the Source, so a multi-municipality
// run transfers each state archive once.
type Source struct {
	opts Options
	// shpByUF caches extracted shapefile paths per state.
	shpByUF map[string]string
}

// NewSource creates a malha Source.
func NewSource(opts Options) (*Source, error) {
	if opts.FTPBase == "" {
		opts.FTPBase = "ftp://geoftp.ibge.gov.br/organizacao_do_territorio/malhas_territoriais/malhas_municipais"
	}
	if opts.ZipPattern == "" {
		opts.ZipPattern = defaultZipPattern
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.TempDir == "" {
		dir, err := os.MkdirTemp("", "viario-malha-")
		if err != nil {
			return nil, eris.Wrap(err, "malha: create temp dir")
		}
		opts.TempDir = dir
	}
	return &Source{opts: opts, shpByUF: make(map[string]string)}, nil
}

// Name implements boundary.Source.
func (s *Source) Name() string { return "malha" }

// Fetch implements boundary.Source by looking the code up in the state's
// malha shapefile.
func (s *Source) Fetch(ctx context.Context, place ibge.Place) (*boundary.Boundary, error) {
	if place.UF == "" {
		return nil, eris.Errorf("malha: place for code %s has no state abbreviation", place.Code)
	}

	shpPath, err := s.stateShapefile(ctx, place.UF)
	if err != nil {
		return nil, err
	}

	mun, err := findMunicipality(shpPath, place.Code)
	if err != nil {
		return nil, err
	}

	display := mun.Name
	if display == "" {
		display = place.Name
	}

	return &boundary.Boundary{
		Geometry:    mun.Geometry,
		DisplayName: fmt.Sprintf("%s, %s, Brasil", display, place.UF),
		Source:      s.Name(),
	}, nil
}

// stateShapefile downloads and extracts the malha archive of a state,
// reusing the cached copy when present.
func (s *Source) stateShapefile(ctx context.Context, uf string) (string, error) {
	if path, ok := s.shpByUF[uf]; ok {
		return path, nil
	}

	zipURL := s.opts.FTPBase + "/" + fmt.Sprintf(s.opts.ZipPattern, uf)
	zipPath := filepath.Join(s.opts.TempDir, uf+".zip")

	zap.L().Info("malha: downloading state archive",
		zap.String("uf", uf),
		zap.String("url", zipURL),
	)

	if err := downloadFTP(ctx, zipURL, zipPath, s.opts.Timeout); err != nil {
		return "", err
	}

	extractDir := filepath.Join(s.opts.TempDir, uf)
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrap(err, "malha: create extract dir")
	}

	shpPath, err := extractZip(zipPath, extractDir)
	if err != nil {
		return "", err
	}

	s.shpByUF[uf] = shpPath
	return shpPath, nil
}
