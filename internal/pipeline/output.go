package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// NormalizeOutputPath forces a .gpkg extension on the output path. Multiple
// layers in one file need GeoPackage; a .shp request is redirected with a
// warning and any other extension is replaced.
func NormalizeOutputPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", eris.New("pipeline: output path is empty")
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gpkg":
		return path, nil
	case ".shp":
		zap.L().Warn("pipeline: shapefile output does not support multiple layers, using GeoPackage instead",
			zap.String("requested", path),
		)
	case "":
	default:
		zap.L().Warn("pipeline: replacing output extension with .gpkg",
			zap.String("requested", path),
		)
	}

	return strings.TrimSuffix(path, filepath.Ext(path)) + ".gpkg", nil
}
