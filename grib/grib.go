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

// Package grib encodes and decodes GRIB edition 2 messages, covering
// the subset of grid, product and data representation templates used
// by the COSMO and ICON models: regular and rotated latitude/longitude
// grids, the unstructured triangular mesh, deterministic, ensemble and
// statistically processed products, and simple packing with an
// optional bitmap.
package grib

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotGRIB      = errors.New("grib: not a GRIB2 message")
	ErrEdition      = errors.New("grib: unsupported edition")
	ErrTruncated    = errors.New("grib: truncated message")
	ErrCorrupted    = errors.New("grib: corrupted message")
	ErrSectionOrder = errors.New("grib: sections out of order")
	ErrTemplate     = errors.New("grib: unsupported template")
	ErrMultiField   = errors.New("grib: multiple fields in one message")
	ErrBitmap       = errors.New("grib: unsupported bitmap indicator")
	ErrBitWidth     = errors.New("grib: invalid bit width")
	ErrGridSize     = errors.New("grib: grid size mismatch")
)

// A TimeUnit is an indicator of unit of time range (code table 4.4).
type TimeUnit uint8

const (
	Minute TimeUnit = 0
	Hour   TimeUnit = 1
	Day    TimeUnit = 2
	Second TimeUnit = 13
)

// Duration returns the length of one unit.
func (u TimeUnit) Duration() (time.Duration, error) {
	switch u {
	case Minute:
		return time.Minute, nil
	case Hour:
		return time.Hour, nil
	case Day:
		return 24 * time.Hour, nil
	case Second:
		return time.Second, nil
	}
	return 0, fmt.Errorf("%w: time unit %d", ErrTemplate, u)
}

// Identification holds the originator and reference time of a message
// (section 1).
type Identification struct {
	Centre              uint16
	SubCentre           uint16
	TablesVersion       uint8
	LocalTablesVersion  uint8
	SignificanceOfRT    uint8
	RefTime             time.Time
	ProductionStatus    uint8
	TypeOfProcessedData uint8
}

// A GridDef describes the horizontal grid of a message (section 3).
type GridDef interface {
	// NumPoints is the number of data points on the grid.
	NumPoints() int
	templateNumber() uint16
}

// LatLonGridDef is grid definition template 3.0, a regular
// latitude/longitude grid. Coordinates and increments are in degrees.
type LatLonGridDef struct {
	Ni, Nj   int
	La1, Lo1 float64
	La2, Lo2 float64
	Di, Dj   float64
	// Resolution and component flags (flag table 3.3). Bit 5 set means
	// vector components are resolved relative to the grid.
	ResolutionFlags uint8
	ScanNegX        bool
	ScanPosY        bool
}

func (g *LatLonGridDef) NumPoints() int         { return g.Ni * g.Nj }
func (g *LatLonGridDef) templateNumber() uint16 { return 0 }

// RotatedLatLonGridDef is grid definition template 3.1. Coordinates are
// in the rotated system; the southern pole position is geographic.
type RotatedLatLonGridDef struct {
	LatLonGridDef
	SouthPoleLat float64
	SouthPoleLon float64
	Angle        float64
}

func (g *RotatedLatLonGridDef) templateNumber() uint16 { return 1 }

// UnstructuredGridDef is grid definition template 3.101, the ICON
// triangular mesh referenced by its UUID.
type UnstructuredGridDef struct {
	NCells           int
	NumberOfGridUsed int
	GridInReference  uint8
	UUID             [16]byte
}

func (g *UnstructuredGridDef) NumPoints() int         { return g.NCells }
func (g *UnstructuredGridDef) templateNumber() uint16 { return 101 }

// A FixedSurface is one of the two level definitions of a product.
// Type 255 means the surface is not used.
type FixedSurface struct {
	Type        uint8
	ScaleFactor int8
	ScaledValue uint32
}

// Value returns the surface value with the decimal scaling applied.
func (s FixedSurface) Value() float64 {
	v := float64(s.ScaledValue)
	for i := int8(0); i < s.ScaleFactor; i++ {
		v /= 10
	}
	for i := s.ScaleFactor; i < 0; i++ {
		v *= 10
	}
	return v
}

// A TimeRange is one statistical processing interval of product
// definition templates 4.8 and 4.11.
type TimeRange struct {
	StatProcess   uint8
	IncrementType uint8
	RangeUnit     TimeUnit
	Length        int32
	IncrementUnit TimeUnit
	Increment     int32
}

// ProductDef holds the contents of section 4 for product definition
// templates 4.0, 4.1, 4.8 and 4.11.
type ProductDef struct {
	ParameterCategory uint8
	ParameterNumber   uint8

	TypeOfGeneratingProcess uint8
	BackgroundProcess       uint8
	GeneratingProcessID     uint8
	HoursAfterCutoff        uint16
	MinutesAfterCutoff      uint8

	TimeUnit     TimeUnit
	ForecastTime int32

	Surface1 FixedSurface
	Surface2 FixedSurface

	// Member is the perturbation number for ensemble products
	// (templates 4.1 and 4.11) and -1 for deterministic products.
	Member       int
	EnsembleType uint8
	EnsembleSize uint8

	// Statistical processing intervals (templates 4.8 and 4.11). An
	// empty slice marks an instantaneous product.
	TimeRanges    []TimeRange
	EndOfInterval time.Time
	MissingInStat uint32

	// Hybrid vertical coordinate parameters.
	PV []float64
}

// LeadTime returns the forecast time as a duration.
func (p *ProductDef) LeadTime() (time.Duration, error) {
	d, err := p.TimeUnit.Duration()
	if err != nil {
		return 0, err
	}
	return time.Duration(p.ForecastTime) * d, nil
}

// StatDuration returns the length of the outermost statistical
// processing interval, or zero for instantaneous products.
func (p *ProductDef) StatDuration() (time.Duration, error) {
	if len(p.TimeRanges) == 0 {
		return 0, nil
	}
	tr := p.TimeRanges[0]
	d, err := tr.RangeUnit.Duration()
	if err != nil {
		return 0, err
	}
	return time.Duration(tr.Length) * d, nil
}

// Packing holds the simple packing parameters of data representation
// template 5.0.
type Packing struct {
	Reference    float32
	BinaryScale  int16
	DecimalScale int16
	Bits         uint8
}

// A Message is one decoded GRIB2 field.
type Message struct {
	Discipline uint8
	ID         Identification
	Grid       GridDef
	Product    ProductDef
	Packing    Packing

	// Bitmap marks which grid points carry a value. It is nil when all
	// points are present.
	Bitmap []bool

	// Values holds one value per grid point in scanning order, NaN at
	// points masked by the bitmap.
	Values []float64
}

// Param returns the discipline, category and number triplet identifying
// the parameter.
func (m *Message) Param() (discipline, category, number uint8) {
	return m.Discipline, m.Product.ParameterCategory, m.Product.ParameterNumber
}
