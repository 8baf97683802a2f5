package pipeline

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// foldAccents strips diacritics so place names like "São Paulo" produce
// filesystem and attribute friendly identifiers.
func foldAccents(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return s
	}
	return out
}

// slugify folds accents and replaces separator runs with single underscores.
func slugify(s string) string {
	s = foldAccents(s)
	var b strings.Builder
	lastUnderscore := true
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// LayerName is the GeoPackage layer name for a municipality's segments.
func LayerName(code string) string {
	return "osm_segments_" + code
}

// DisplayName builds a human-readable description of a produced layer, e.g.
// "OSM_Sao_Paulo_SP_drive_segments_buf500m".
func DisplayName(name, uf, networkType string, bufferMeters float64) string {
	s := fmt.Sprintf("OSM_%s_%s_%s_segments", slugify(name), uf, networkType)
	if bufferMeters > 0 {
		s += fmt.Sprintf("_buf%dm", int(bufferMeters))
	}
	return s
}
