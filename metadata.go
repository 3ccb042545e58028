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
)

// Family identifies the parameter naming convention of the originating
// model.
type Family string

const (
	FamilyCOSMO Family = "cosmo"
	FamilyICON  Family = "icon"
)

// Param is a parameter identity: the GRIB2 numeric triplet together with
// the short name it resolves from.
type Param struct {
	Discipline uint8
	Category   uint8
	Number     uint8
	ShortName  string
}

func (p Param) String() string {
	return fmt.Sprintf("%s (%d.%d.%d)", p.ShortName, p.Discipline, p.Category, p.Number)
}

// LevelKind identifies the vertical coordinate system that a field's
// level values refer to.
type LevelKind int

const (
	LevelUnknown LevelKind = iota
	LevelSurface
	// LevelModelFull are the model layer mid surfaces
	// (generalVerticalLayer).
	LevelModelFull
	// LevelModelHalf are the model layer interfaces (generalVertical).
	LevelModelHalf
	LevelPressure
	LevelHeight
	LevelIsentropic
	LevelZeroIsotherm
	// LevelIsosurface marks levels defined by constant values of an
	// arbitrary field. It has no encoding target.
	LevelIsosurface
)

var levelKindNames = map[LevelKind]string{
	LevelUnknown:      "unknown",
	LevelSurface:      "surface",
	LevelModelFull:    "generalVerticalLayer",
	LevelModelHalf:    "generalVertical",
	LevelPressure:     "isobaricInPa",
	LevelHeight:       "heightAboveGround",
	LevelIsentropic:   "theta",
	LevelZeroIsotherm: "isothermZero",
	LevelIsosurface:   "isosurface",
}

func (k LevelKind) String() string {
	if s, ok := levelKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("LevelKind(%d)", int(k))
}

// VCoordType returns the vertical coordinate type that groups level
// kinds sharing interpolation semantics.
func (k LevelKind) VCoordType() string {
	switch k {
	case LevelModelFull, LevelModelHalf:
		return "model_level"
	case LevelPressure:
		return "pressure"
	case LevelHeight:
		return "height"
	case LevelIsentropic:
		return "theta"
	default:
		return "surface"
	}
}

// originZ returns the vertical staggering offset implied by the level
// kind: layer interfaces sit half a level above the layer mid surfaces.
func (k LevelKind) originZ() float64 {
	if k == LevelModelHalf {
		return -0.5
	}
	return 0
}

// Vector reference frames for wind components.
const (
	VRefNative = "native" // components along the grid axes
	VRefGeo    = "geo"    // components along geographic east/north
)

// GridRef is an opaque key identifying an entry of a Registry. It is
// derived from the grid parameters, so two grids with equal parameters
// share a key.
type GridRef string

// Metadata describes the identity, grid, vertical axis and time axis of
// a field, independent of the encoding. Values have value semantics: the
// With methods return modified copies and never alias the receiver.
type Metadata struct {
	Param  Param
	Family Family
	Level  LevelKind
	Grid   GridRef

	// RefTime and LeadTime are the first (or only) time coordinate of
	// the field; multi-time fields carry the full axes as coordinates.
	RefTime  time.Time
	LeadTime time.Duration
	// TimeRange is the statistical processing interval for accumulated
	// or averaged parameters, zero for instantaneous ones.
	TimeRange time.Duration
	// StatProcess is the kind of statistical processing applied over
	// TimeRange (code table 4.10). It is meaningless when TimeRange is
	// zero.
	StatProcess uint8

	// Member is the ensemble member number, or -1 for deterministic
	// data.
	Member int

	Units string
	// ScaleFactor maps raw encoded values to the physical unit; it is 1
	// for all parameters encoded directly in their unit.
	ScaleFactor float64

	// VRef is the reference frame of vector components.
	VRef string

	// Staggering origin relative to the mass grid, in grid step units.
	OriginX float64
	OriginY float64
	OriginZ float64
}

// StaggeredHorizontal reports whether the field sits on horizontally
// staggered points.
func (m Metadata) StaggeredHorizontal() bool {
	return m.OriginX != 0 || m.OriginY != 0
}

// WithParam returns a copy of m with the parameter identity replaced.
func (m Metadata) WithParam(p Param) Metadata {
	m.Param = p
	return m
}

// WithLevel returns a copy of m with the level kind replaced and the
// vertical origin updated accordingly.
func (m Metadata) WithLevel(k LevelKind) Metadata {
	m.Level = k
	m.OriginZ = k.originZ()
	return m
}

// WithUnits returns a copy of m with the unit string replaced.
func (m Metadata) WithUnits(u string) Metadata {
	m.Units = u
	return m
}

// WithVRef returns a copy of m with the vector reference frame replaced.
func (m Metadata) WithVRef(v string) Metadata {
	m.VRef = v
	return m
}

// WithGrid returns a copy of m referring to a different grid.
func (m Metadata) WithGrid(ref GridRef) Metadata {
	m.Grid = ref
	return m
}

// WithMember returns a copy of m with the ensemble member replaced.
func (m Metadata) WithMember(member int) Metadata {
	m.Member = member
	return m
}

// WithTimes returns a copy of m with the time axis replaced.
func (m Metadata) WithTimes(ref time.Time, lead time.Duration) Metadata {
	m.RefTime = ref
	m.LeadTime = lead
	return m
}

// Equal reports structural equality of two metadata instances.
func (m Metadata) Equal(o Metadata) bool {
	return m.Param == o.Param &&
		m.Family == o.Family &&
		m.Level == o.Level &&
		m.Grid == o.Grid &&
		m.RefTime.Equal(o.RefTime) &&
		m.LeadTime == o.LeadTime &&
		m.TimeRange == o.TimeRange &&
		m.StatProcess == o.StatProcess &&
		m.Member == o.Member &&
		m.Units == o.Units &&
		m.ScaleFactor == o.ScaleFactor &&
		m.VRef == o.VRef &&
		m.OriginX == o.OriginX &&
		m.OriginY == o.OriginY &&
		m.OriginZ == o.OriginZ
}

// GetCodeFlag returns the bits of a single-byte code flag at the given
// indices, counted left to right starting at 1 as in the code tables.
func GetCodeFlag(value uint8, indices ...int) ([]bool, error) {
	o := make([]bool, len(indices))
	for i, index := range indices {
		if index < 1 || index > 8 {
			return nil, fmt.Errorf("meteodatalab: code flag index %d outside [1, 8]", index)
		}
		o[i] = value>>(8-index)&1 == 1
	}
	return o, nil
}

// SetCodeFlag returns a code flag byte with the bits at the given
// indices set, counted left to right starting at 1.
func SetCodeFlag(indices ...int) (uint8, error) {
	var value uint8
	for _, index := range indices {
		if index < 1 || index > 8 {
			return 0, fmt.Errorf("meteodatalab: code flag index %d outside [1, 8]", index)
		}
		value |= 1 << (8 - index)
	}
	return value, nil
}

// SetOriginXY computes the horizontal staggering origin of every field
// in ds relative to the grid of the named reference parameter, which is
// expected to sit on the mass grid. The origin is the offset of a
// field's first grid point from the reference first grid point in grid
// step units, rounded to one decimal.
func SetOriginXY(reg *Registry, ds Dataset, refParam string) error {
	ref, err := ds.Param(refParam)
	if err != nil {
		return err
	}
	refX, refY, err := firstGridPoint(reg, ref.Meta.Grid)
	if err != nil {
		return fmt.Errorf("meteodatalab: while locating reference grid origin: %w", err)
	}
	for _, f := range ds {
		x0, y0, err := firstGridPoint(reg, f.Meta.Grid)
		if err != nil {
			return fmt.Errorf("meteodatalab: while locating grid origin of %s: %w", f.Name, err)
		}
		dx, dy, err := gridIncrements(reg, f.Meta.Grid)
		if err != nil {
			return err
		}
		f.Meta.OriginX = math.Round((wrapLon(x0)-wrapLon(refX))/dx*10) / 10
		f.Meta.OriginY = math.Round((y0-refY)/dy*10) / 10
	}
	return nil
}

// wrapLon maps a longitude into [0, 360).
func wrapLon(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	return lon
}

func firstGridPoint(reg *Registry, ref GridRef) (x, y float64, err error) {
	g, err := reg.Grid(ref)
	if err != nil {
		return 0, 0, err
	}
	switch gr := g.(type) {
	case *LatLonGrid:
		return gr.Lon0, gr.Lat0, nil
	case *RotatedLatLonGrid:
		return gr.Lon0, gr.Lat0, nil
	default:
		return 0, 0, fmt.Errorf("meteodatalab: grid %s has no first-point origin", ref)
	}
}

func gridIncrements(reg *Registry, ref GridRef) (dx, dy float64, err error) {
	g, err := reg.Grid(ref)
	if err != nil {
		return 0, 0, err
	}
	switch gr := g.(type) {
	case *LatLonGrid:
		return gr.DLon, gr.DLat, nil
	case *RotatedLatLonGrid:
		return gr.DLon, gr.DLat, nil
	default:
		return 0, 0, fmt.Errorf("meteodatalab: grid %s has no regular increments", ref)
	}
}
