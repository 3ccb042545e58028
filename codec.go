/*
Copyright © 2023 the meteodata-lab authors.
This file is part of meteodata-lab.

meteodata-lab is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

meteodata-lab is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with meteodata-lab.  If not, see <http://www.gnu.org/licenses/>.
*/

package meteodatalab

import (
	"fmt"
	"math"
	"time"

	"github.com/MeteoSwiss/meteodata-lab/grib"
)

// decoded holds the building blocks of one field extracted from a
// single message: the metadata, the level coordinate value, the grid
// and the values in grid scanning order.
type decoded struct {
	Meta   Metadata
	Level  float64
	PV     []float64
	Grid   Grid
	Values []float64
}

// decodeMessage decodes one message and resolves its parameter against
// the table of the given model family.
func decodeMessage(data []byte, params *ParamTable, fam Family) (*decoded, error) {
	m, err := grib.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("meteodatalab: %w", err)
	}
	return fieldParts(m, params, fam)
}

// fieldParts converts a decoded message into field building blocks.
func fieldParts(m *grib.Message, params *ParamTable, fam Family) (*decoded, error) {
	kind, level, err := levelFromSurfaces(m.Product.Surface1, m.Product.Surface2)
	if err != nil {
		return nil, err
	}
	name, err := params.ShortName(m.Discipline, m.Product.ParameterCategory,
		m.Product.ParameterNumber, kind, fam)
	if err != nil {
		return nil, err
	}
	p, def, err := params.Resolve(name, fam)
	if err != nil {
		return nil, err
	}
	g, native, err := gridFromDef(m.Grid)
	if err != nil {
		return nil, err
	}

	lead, err := m.Product.LeadTime()
	if err != nil {
		return nil, err
	}
	tr, err := m.Product.StatDuration()
	if err != nil {
		return nil, err
	}
	// For statistically processed products the forecast time marks the
	// start of the interval; the field is valid at its end.
	if !m.Product.EndOfInterval.IsZero() {
		lead = m.Product.EndOfInterval.Sub(m.ID.RefTime)
	} else if tr > 0 {
		lead += tr
	}

	vref := VRefGeo
	if native {
		vref = VRefNative
	}

	meta := Metadata{
		Param:       p,
		Family:      fam,
		Level:       kind,
		Grid:        g.Ref(),
		RefTime:     m.ID.RefTime,
		LeadTime:    lead,
		TimeRange:   tr,
		Member:      m.Product.Member,
		Units:       def.Units,
		ScaleFactor: 1,
		VRef:        vref,
		OriginZ:     kind.originZ(),
	}
	if len(m.Product.TimeRanges) > 0 {
		meta.StatProcess = m.Product.TimeRanges[0].StatProcess
	}
	return &decoded{Meta: meta, Level: level, PV: m.Product.PV, Grid: g, Values: m.Values}, nil
}

// levelFromSurfaces maps the fixed surfaces of a product to a level
// kind and level coordinate value. Mean sea level parameters are
// registered on the surface axis, so type 101 folds into LevelSurface.
func levelFromSurfaces(s1, s2 grib.FixedSurface) (LevelKind, float64, error) {
	switch s1.Type {
	case 1, 101:
		return LevelSurface, 0, nil
	case 4:
		return LevelZeroIsotherm, 0, nil
	case 100:
		if s2.Type != 255 {
			return 0, 0, &UnsupportedMetadataError{Key: "typeOfSecondFixedSurface", Value: int(s2.Type)}
		}
		return LevelPressure, s1.Value(), nil
	case 103:
		if s2.Type != 255 {
			return 0, 0, &UnsupportedMetadataError{Key: "typeOfSecondFixedSurface", Value: int(s2.Type)}
		}
		return LevelHeight, s1.Value(), nil
	case 107:
		if s2.Type != 255 {
			return 0, 0, &UnsupportedMetadataError{Key: "typeOfSecondFixedSurface", Value: int(s2.Type)}
		}
		return LevelIsentropic, s1.Value(), nil
	case 150:
		switch s2.Type {
		case 150:
			return LevelModelFull, s1.Value(), nil
		case 255:
			return LevelModelHalf, s1.Value(), nil
		}
		return 0, 0, &UnsupportedMetadataError{Key: "typeOfSecondFixedSurface", Value: int(s2.Type)}
	}
	return 0, 0, &UnsupportedMetadataError{Key: "typeOfFirstFixedSurface", Value: int(s1.Type)}
}

// surfacesForLevel is the inverse of levelFromSurfaces.
func surfacesForLevel(kind LevelKind, value float64) (s1, s2 grib.FixedSurface, err error) {
	unused := grib.FixedSurface{Type: 255}
	switch kind {
	case LevelSurface:
		return grib.FixedSurface{Type: 1}, unused, nil
	case LevelZeroIsotherm:
		return grib.FixedSurface{Type: 4}, unused, nil
	case LevelModelFull:
		k := uint32(math.Round(value))
		return grib.FixedSurface{Type: 150, ScaledValue: k},
			grib.FixedSurface{Type: 150, ScaledValue: k + 1}, nil
	case LevelModelHalf:
		return grib.FixedSurface{Type: 150, ScaledValue: uint32(math.Round(value))}, unused, nil
	case LevelPressure:
		s1, err = scaledSurface(100, value)
		return s1, unused, err
	case LevelHeight:
		s1, err = scaledSurface(103, value)
		return s1, unused, err
	case LevelIsentropic:
		s1, err = scaledSurface(107, value)
		return s1, unused, err
	}
	return s1, s2, &UnsupportedMetadataError{Key: "typeOfLevel", Value: kind.String()}
}

// scaledSurface encodes a level value with the smallest decimal scale
// factor that represents it exactly.
func scaledSurface(typ uint8, value float64) (grib.FixedSurface, error) {
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return grib.FixedSurface{}, &UnsupportedMetadataError{Key: "level", Value: value}
	}
	for sf := int8(0); sf <= 3; sf++ {
		scaled := value * math.Pow(10, float64(sf))
		r := math.Round(scaled)
		if r <= math.MaxUint32 && math.Abs(scaled-r) <= 1e-6*math.Max(1, scaled) {
			return grib.FixedSurface{Type: typ, ScaleFactor: sf, ScaledValue: uint32(r)}, nil
		}
	}
	return grib.FixedSurface{}, &UnsupportedMetadataError{Key: "level", Value: value}
}

// gridFromDef converts a wire grid definition to a registry grid. The
// second return reports whether vector components on that grid are
// resolved relative to the grid axes.
func gridFromDef(def grib.GridDef) (Grid, bool, error) {
	switch d := def.(type) {
	case *grib.LatLonGridDef:
		g, err := latLonFrom(d)
		if err != nil {
			return nil, false, err
		}
		native, err := vrefNativeFlag(d.ResolutionFlags)
		return &g, native, err
	case *grib.RotatedLatLonGridDef:
		g, err := latLonFrom(&d.LatLonGridDef)
		if err != nil {
			return nil, false, err
		}
		native, err := vrefNativeFlag(d.ResolutionFlags)
		if err != nil {
			return nil, false, err
		}
		return &RotatedLatLonGrid{
			LatLonGrid:   g,
			SouthPoleLat: d.SouthPoleLat,
			SouthPoleLon: d.SouthPoleLon,
			Angle:        d.Angle,
		}, native, nil
	case *grib.UnstructuredGridDef:
		if d.GridInReference != 1 {
			return nil, false, &UnsupportedMetadataError{Key: "numberOfGridInReference", Value: int(d.GridInReference)}
		}
		return &IconMeshGrid{
			UUID:             d.UUID,
			NCells:           d.NCells,
			NumberOfGridUsed: d.NumberOfGridUsed,
		}, false, nil
	}
	return nil, false, &UnsupportedMetadataError{Key: "gridDefinitionTemplateNumber", Value: fmt.Sprintf("%T", def)}
}

// latLonFrom builds a regular grid from a wire definition, deriving the
// increments from the corner points when they are not given.
func latLonFrom(d *grib.LatLonGridDef) (LatLonGrid, error) {
	g := LatLonGrid{
		Ny: d.Nj, Nx: d.Ni,
		Lat0: d.La1, Lon0: d.Lo1,
		DLat: d.Dj, DLon: d.Di,
		ScanNegX: d.ScanNegX, ScanPosY: d.ScanPosY,
	}
	given, err := GetCodeFlag(d.ResolutionFlags, 3, 4)
	if err != nil {
		return g, err
	}
	if (!given[0] || g.DLon == 0) && d.Ni > 1 {
		span := d.Lo2 - d.Lo1
		if d.ScanNegX {
			span = -span
		}
		g.DLon = math.Mod(span+360, 360) / float64(d.Ni-1)
	}
	if (!given[1] || g.DLat == 0) && d.Nj > 1 {
		span := d.La1 - d.La2
		if d.ScanPosY {
			span = -span
		}
		if span < 0 {
			return g, &UnsupportedMetadataError{Key: "latitudeOfLastGridPoint", Value: d.La2}
		}
		g.DLat = span / float64(d.Nj-1)
	}
	return g, nil
}

// vrefNativeFlag reads bit 5 of the resolution and component flags,
// which marks vector components as resolved relative to the grid.
func vrefNativeFlag(flags uint8) (bool, error) {
	bits, err := GetCodeFlag(flags, 5)
	if err != nil {
		return false, err
	}
	return bits[0], nil
}

// defFromGrid converts a registry grid back to its wire definition.
// Grids produced by reprojection have no grid template and cannot be
// written.
func defFromGrid(g Grid, vrefNative bool) (grib.GridDef, error) {
	// i and j direction increments are always given.
	indices := []int{3, 4}
	switch t := g.(type) {
	case *LatLonGrid:
		// On a geographic grid the native axes coincide with the
		// geographic ones, so bit 5 stays unset.
		flags, err := SetCodeFlag(indices...)
		if err != nil {
			return nil, err
		}
		d := latLonDef(t, flags)
		return &d, nil
	case *RotatedLatLonGrid:
		if vrefNative {
			indices = append(indices, 5)
		}
		flags, err := SetCodeFlag(indices...)
		if err != nil {
			return nil, err
		}
		return &grib.RotatedLatLonGridDef{
			LatLonGridDef: latLonDef(&t.LatLonGrid, flags),
			SouthPoleLat:  t.SouthPoleLat,
			SouthPoleLon:  t.SouthPoleLon,
			Angle:         t.Angle,
		}, nil
	case *IconMeshGrid:
		return &grib.UnstructuredGridDef{
			NCells:           t.NCells,
			NumberOfGridUsed: t.NumberOfGridUsed,
			GridInReference:  1,
			UUID:             t.UUID,
		}, nil
	}
	return nil, &UnsupportedMetadataError{Key: "grid", Value: string(g.Ref())}
}

func latLonDef(g *LatLonGrid, flags uint8) grib.LatLonGridDef {
	lo2, la2 := g.lastPoint()
	return grib.LatLonGridDef{
		Ni: g.Nx, Nj: g.Ny,
		La1: g.Lat0, Lo1: g.Lon0,
		La2: la2, Lo2: lo2,
		Di: g.DLon, Dj: g.DLat,
		ResolutionFlags: flags,
		ScanNegX:        g.ScanNegX,
		ScanPosY:        g.ScanPosY,
	}
}

// EncodeOptions control wire encoding choices that are not part of the
// field metadata.
type EncodeOptions struct {
	Centre    uint16
	SubCentre uint16
	// GeneratingProcessID identifies the model run.
	GeneratingProcessID uint8
	// EnsembleSize is the total member count written with ensemble
	// products.
	EnsembleSize uint8
	// DecimalScale and Bits select the simple packing precision.
	DecimalScale int16
	Bits         uint8
}

// DefaultEncodeOptions returns the encoding choices used when none are
// given: 16 bits per packed value and the MeteoSwiss originating
// centre.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{Centre: 215, Bits: 16}
}

// encodeMessage serializes the values of one horizontal slab. The
// metadata must describe that slab: its member, reference time, lead
// time and level value, with multi-valued axes already split away.
func encodeMessage(meta Metadata, g Grid, level float64, pv []float64, values []float64, opts EncodeOptions) ([]byte, error) {
	s1, s2, err := surfacesForLevel(meta.Level, level)
	if err != nil {
		return nil, err
	}
	def, err := defFromGrid(g, meta.VRef == VRefNative)
	if err != nil {
		return nil, err
	}
	if meta.LeadTime%time.Minute != 0 || meta.TimeRange%time.Minute != 0 {
		return nil, &UnsupportedMetadataError{Key: "leadTime", Value: meta.LeadTime}
	}
	fc := meta.LeadTime - meta.TimeRange
	if fc < 0 {
		return nil, &UnsupportedMetadataError{Key: "forecastTime", Value: fc}
	}

	typeOfData := uint8(1)
	switch {
	case meta.Member == 0:
		typeOfData = 3
	case meta.Member > 0:
		typeOfData = 4
	}

	product := grib.ProductDef{
		ParameterCategory:       meta.Param.Category,
		ParameterNumber:         meta.Param.Number,
		TypeOfGeneratingProcess: 2,
		GeneratingProcessID:     opts.GeneratingProcessID,
		TimeUnit:                grib.Minute,
		ForecastTime:            int32(fc / time.Minute),
		Surface1:                s1,
		Surface2:                s2,
		Member:                  meta.Member,
		PV:                      pv,
	}
	if meta.Member >= 0 {
		product.EnsembleType = 192
		product.EnsembleSize = opts.EnsembleSize
	}
	if meta.TimeRange > 0 {
		product.TimeRanges = []grib.TimeRange{{
			StatProcess:   meta.StatProcess,
			IncrementType: 2,
			RangeUnit:     grib.Minute,
			Length:        int32(meta.TimeRange / time.Minute),
			IncrementUnit: grib.Second,
		}}
		product.EndOfInterval = meta.RefTime.Add(meta.LeadTime).UTC()
	}

	m := &grib.Message{
		Discipline: meta.Param.Discipline,
		ID: grib.Identification{
			Centre:              opts.Centre,
			SubCentre:           opts.SubCentre,
			TablesVersion:       19,
			LocalTablesVersion:  1,
			SignificanceOfRT:    1,
			RefTime:             meta.RefTime.UTC(),
			TypeOfProcessedData: typeOfData,
		},
		Grid:    def,
		Product: product,
		Packing: grib.Packing{DecimalScale: opts.DecimalScale, Bits: opts.Bits},
		Values:  values,
	}
	data, err := grib.Encode(m)
	if err != nil {
		return nil, fmt.Errorf("meteodatalab: %w", err)
	}
	return data, nil
}
