package pipeline

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ParseCodes splits a raw municipality code list on semicolons, commas and
// whitespace, keeps only the digits of each entry, and drops duplicates
// while preserving first-seen order. Codes whose length is not the usual 6
// or 7 digits are kept but logged, since the IBGE API is the authority on
// what resolves.
func ParseCodes(raw string) ([]string, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == ',' || unicode.IsSpace(r)
	})

	seen := make(map[string]struct{}, len(fields))
	codes := make([]string, 0, len(fields))
	for _, f := range fields {
		code := digitsOnly(f)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		if len(code) != 6 && len(code) != 7 {
			zap.L().Warn("pipeline: municipality code has unusual length",
				zap.String("code", code),
				zap.Int("length", len(code)),
			)
		}
		codes = append(codes, code)
	}

	if len(codes) == 0 {
		return nil, eris.New("pipeline: no municipality codes given")
	}
	return codes, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
