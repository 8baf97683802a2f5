// Package gpkg reads and writes multi-layer GeoPackage files natively on
// SQLite, including the GeoPackage binary geometry encoding.
package gpkg

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// gpMagic is the two-byte GeoPackage geometry blob signature.
var gpMagic = [2]byte{0x47, 0x50} // "GP"

const (
	// flagsLittleEndian sets the header byte-order bit.
	flagsLittleEndian = 0x01
	// flagsEnvelopeXY selects the 32-byte [minx maxx miny maxy] envelope.
	flagsEnvelopeXY = 0x02
)

// EncodeGeometry serializes a geometry as a GeoPackage binary blob:
// the GP header with an XY envelope followed by little-endian WKB.
func EncodeGeometry(g geom.T, srsID int32) ([]byte, error) {
	payload, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "gpkg: marshal wkb")
	}

	bounds := g.Bounds()

	var buf bytes.Buffer
	buf.Write(gpMagic[:])
	buf.WriteByte(0) // version
	buf.WriteByte(flagsLittleEndian | flagsEnvelopeXY)

	if err := binary.Write(&buf, binary.LittleEndian, srsID); err != nil {
		return nil, eris.Wrap(err, "gpkg: write srs id")
	}
	for _, v := range []float64{bounds.Min(0), bounds.Max(0), bounds.Min(1), bounds.Max(1)} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, eris.Wrap(err, "gpkg: write envelope")
		}
	}

	buf.Write(payload)
	return buf.Bytes(), nil
}

// DecodeGeometry parses a GeoPackage binary blob back into a geometry and
// its declared SRS id.
func DecodeGeometry(blob []byte) (geom.T, int32, error) {
	if len(blob) < 8 {
		return nil, 0, eris.New("gpkg: geometry blob too short")
	}
	if blob[0] != gpMagic[0] || blob[1] != gpMagic[1] {
		return nil, 0, eris.New("gpkg: geometry blob missing GP signature")
	}
	if blob[2] != 0 {
		return nil, 0, eris.Errorf("gpkg: unsupported geometry blob version %d", blob[2])
	}

	flags := blob[3]
	order := binary.ByteOrder(binary.BigEndian)
	if flags&flagsLittleEndian != 0 {
		order = binary.LittleEndian
	}
	srsID := int32(order.Uint32(blob[4:8]))

	envelopeSize, err := envelopeBytes(flags)
	if err != nil {
		return nil, 0, err
	}
	offset := 8 + envelopeSize
	if len(blob) < offset {
		return nil, 0, eris.New("gpkg: geometry blob truncated before wkb")
	}

	g, err := wkb.Unmarshal(blob[offset:])
	if err != nil {
		return nil, 0, eris.Wrap(err, "gpkg: unmarshal wkb")
	}
	return g, srsID, nil
}

// envelopeBytes maps the header envelope indicator to its byte length.
func envelopeBytes(flags byte) (int, error) {
	switch (flags >> 1) & 0x07 {
	case 0:
		return 0, nil
	case 1:
		return 32, nil
	case 2, 3:
		return 48, nil
	case 4:
		return 64, nil
	default:
		return 0, eris.Errorf("gpkg: invalid envelope indicator in flags %08b", flags)
	}
}

// envelopeOf returns the XY bounds of a set of geometries, for the
// gpkg_contents registration row.
func envelopeOf(gs []geom.T) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, g := range gs {
		b := g.Bounds()
		minX = math.Min(minX, b.Min(0))
		minY = math.Min(minY, b.Min(1))
		maxX = math.Max(maxX, b.Max(0))
		maxY = math.Max(maxY, b.Max(1))
	}
	return minX, minY, maxX, maxY
}
