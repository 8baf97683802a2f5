package ibge

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// ufByCodePrefix maps the two leading digits of a municipality code to the
// state abbreviation, per the IBGE territorial code scheme.
var ufByCodePrefix = map[string]string{
	"11": "RO", "12": "AC", "13": "AM", "14": "RR", "15": "PA", "16": "AP", "17": "TO",
	"21": "MA", "22": "PI", "23": "CE", "24": "RN", "25": "PB", "26": "PE", "27": "AL",
	"28": "SE", "29": "BA",
	"31": "MG", "32": "ES", "33": "RJ", "35": "SP",
	"41": "PR", "42": "SC", "43": "RS",
	"50": "MS", "51": "MT", "52": "GO", "53": "DF",
}

// DTBResolver resolves municipality codes offline from the IBGE DTB
// (Divisão Territorial Brasileira) spreadsheet.
type DTBResolver struct {
	byCode map[string]Place
}

// NewDTBResolver loads the DTB spreadsheet at path. The sheet layout is the
// published DTB one: a header block followed by rows whose last two relevant
// columns are the full municipality code and name.
func NewDTBResolver(path string) (*DTBResolver, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "dtb: open spreadsheet")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("dtb: spreadsheet has no sheets")
	}

	sheet := f.Sheets[0]
	byCode := make(map[string]Place)

	codeCol, nameCol := -1, -1
	for _, row := range sheet.Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, c := range row.Cells {
			cells = append(cells, strings.TrimSpace(c.String()))
		}

		// Locate the header row once; the published workbook names the
		// columns "Código Município Completo" and "Nome_Município".
		if codeCol < 0 {
			for i, v := range cells {
				lower := strings.ToLower(v)
				switch {
				case strings.Contains(lower, "município completo"), strings.Contains(lower, "municipio completo"):
					codeCol = i
				case strings.Contains(lower, "nome_munic"), strings.Contains(lower, "nome munic"):
					nameCol = i
				}
			}
			continue
		}

		if codeCol >= len(cells) || nameCol < 0 || nameCol >= len(cells) {
			continue
		}

		code := digitsOnly(cells[codeCol])
		name := cells[nameCol]
		if len(code) != 7 || name == "" {
			continue
		}

		byCode[code] = Place{
			Code: code,
			Name: name,
			UF:   ufByCodePrefix[code[:2]],
		}
	}

	if codeCol < 0 {
		return nil, eris.New("dtb: header row with municipality columns not found")
	}
	if len(byCode) == 0 {
		return nil, eris.New("dtb: no municipality rows parsed")
	}

	zap.L().Info("dtb: spreadsheet loaded", zap.Int("municipalities", len(byCode)))

	return &DTBResolver{byCode: byCode}, nil
}

// Resolve implements Resolver from the in-memory DTB table. Six-digit codes
// (the pre-check-digit form some services use) match on prefix.
func (r *DTBResolver) Resolve(_ context.Context, code string) (*Place, error) {
	if p, ok := r.byCode[code]; ok {
		return &p, nil
	}

	if len(code) == 6 {
		for full, p := range r.byCode {
			if strings.HasPrefix(full, code) {
				return &p, nil
			}
		}
	}

	return nil, eris.Errorf("dtb: no municipality found for code %s", code)
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
