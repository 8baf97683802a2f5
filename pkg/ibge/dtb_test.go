package ibge

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeTestDTB(t *testing.T) string {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("DTB_2024")
	require.NoError(t, err)

	addRow := func(cells ...string) {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}

	addRow("UF", "Nome_UF", "Município", "Código Município Completo", "Nome_Município")
	addRow("43", "Rio Grande do Sul", "14902", "4314902", "Porto Alegre")
	addRow("43", "Rio Grande do Sul", "05108", "4305108", "Caxias do Sul")
	addRow("35", "São Paulo", "50308", "3550308", "São Paulo")

	path := filepath.Join(t.TempDir(), "dtb.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestDTBResolver(t *testing.T) {
	r, err := NewDTBResolver(writeTestDTB(t))
	require.NoError(t, err)

	place, err := r.Resolve(context.Background(), "4314902")
	require.NoError(t, err)
	assert.Equal(t, "Porto Alegre", place.Name)
	assert.Equal(t, "RS", place.UF)

	place, err = r.Resolve(context.Background(), "3550308")
	require.NoError(t, err)
	assert.Equal(t, "São Paulo", place.Name)
	assert.Equal(t, "SP", place.UF)
}

func TestDTBResolverSixDigitPrefix(t *testing.T) {
	r, err := NewDTBResolver(writeTestDTB(t))
	require.NoError(t, err)

	place, err := r.Resolve(context.Background(), "431490")
	require.NoError(t, err)
	assert.Equal(t, "Porto Alegre", place.Name)
}

func TestDTBResolverUnknownCode(t *testing.T) {
	r, err := NewDTBResolver(writeTestDTB(t))
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), "9999999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "9999999")
}

func TestDTBResolverMissingHeader(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Plan1")
	require.NoError(t, err)
	row := sheet.AddRow()
	row.AddCell().SetString("nothing useful")

	path := filepath.Join(t.TempDir(), "bad.xlsx")
	require.NoError(t, f.Save(path))

	_, err = NewDTBResolver(path)
	require.Error(t, err)
}
