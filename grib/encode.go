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

package grib

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/batchatco/go-thrower"
)

type writer struct {
	buf bytes.Buffer
}

func (w *writer) bytes(b []byte) { w.buf.Write(b) }

func (w *writer) uint8(v uint8) { w.buf.WriteByte(v) }

func (w *writer) uint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) uint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) float32(v float32) { w.uint32(math.Float32bits(v)) }

func (w *writer) int8sm(v int8) {
	if v < 0 {
		w.uint8(uint8(-v) | 0x80)
		return
	}
	w.uint8(uint8(v))
}

func (w *writer) int16sm(v int16) {
	if v < 0 {
		w.uint16(uint16(-v) | 0x8000)
		return
	}
	w.uint16(uint16(v))
}

func (w *writer) int32sm(v int32) {
	if v < 0 {
		w.uint32(uint32(-v) | 0x80000000)
		return
	}
	w.uint32(uint32(v))
}

// section writes one numbered section with its length prefix.
func (w *writer) section(num uint8, body func(w *writer)) {
	var b writer
	body(&b)
	w.uint32(uint32(b.buf.Len()) + 5)
	w.uint8(num)
	w.bytes(b.buf.Bytes())
}

// missing scale factor and scaled value octets.
const (
	missingByte  = 0xff
	missingInt32 = 0xffffffff
)

// Encode serializes a message. The packing bit width and decimal scale
// factor are taken from m.Packing; the reference value and binary scale
// factor are recomputed from the data. NaN values are represented
// through the bitmap section.
func Encode(m *Message) (out []byte, err error) {
	defer thrower.RecoverError(&err)
	assert(m.Grid != nil, "message without grid", ErrGridSize)
	assert(len(m.Values) == m.Grid.NumPoints(),
		fmt.Sprintf("%d values on a grid of %d points", len(m.Values), m.Grid.NumPoints()),
		ErrGridSize)
	assert(m.Packing.Bits <= 32, fmt.Sprint("bits per value ", m.Packing.Bits), ErrBitWidth)

	packed, pk, bitmap, numValues := pack(m.Values, m.Packing)

	var b writer
	b.section(1, func(w *writer) { encodeIdentification(w, &m.ID) })
	b.section(3, func(w *writer) { encodeGrid(w, m.Grid) })
	b.section(4, func(w *writer) { encodeProduct(w, &m.Product) })
	b.section(5, func(w *writer) {
		w.uint32(uint32(numValues))
		w.uint16(0) // data representation template 5.0
		w.float32(pk.Reference)
		w.int16sm(pk.BinaryScale)
		w.int16sm(pk.DecimalScale)
		w.uint8(pk.Bits)
		w.uint8(0) // original field values are floating point
	})
	b.section(6, func(w *writer) {
		if bitmap == nil {
			w.uint8(255)
			return
		}
		w.uint8(0)
		bits := make([]byte, (len(bitmap)+7)/8)
		for i, ok := range bitmap {
			if ok {
				bits[i>>3] |= 1 << (7 - i&7)
			}
		}
		w.bytes(bits)
	})
	b.section(7, func(w *writer) { w.bytes(packed) })
	b.bytes([]byte("7777"))

	var w writer
	w.bytes([]byte("GRIB"))
	w.uint16(0)
	w.uint8(m.Discipline)
	w.uint8(2)
	w.uint64(uint64(16 + b.buf.Len()))
	w.bytes(b.buf.Bytes())
	return w.buf.Bytes(), nil
}

func encodeIdentification(w *writer, id *Identification) {
	w.uint16(id.Centre)
	w.uint16(id.SubCentre)
	w.uint8(id.TablesVersion)
	w.uint8(id.LocalTablesVersion)
	w.uint8(id.SignificanceOfRT)
	encodeTime(w, id.RefTime)
	w.uint8(id.ProductionStatus)
	w.uint8(id.TypeOfProcessedData)
}

func encodeTime(w *writer, t time.Time) {
	t = t.UTC()
	w.uint16(uint16(t.Year()))
	w.uint8(uint8(t.Month()))
	w.uint8(uint8(t.Day()))
	w.uint8(uint8(t.Hour()))
	w.uint8(uint8(t.Minute()))
	w.uint8(uint8(t.Second()))
}

// wrap360 maps a longitude into [0, 360) for encoding.
func wrap360(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	return lon
}

func microdeg(v float64) int32 { return int32(math.Round(v * 1e6)) }

func encodeGrid(w *writer, g GridDef) {
	w.uint8(0) // grid definition per template
	w.uint32(uint32(g.NumPoints()))
	w.uint8(0) // no optional point list
	w.uint8(0)
	w.uint16(g.templateNumber())
	switch gg := g.(type) {
	case *LatLonGridDef:
		encodeLatLon(w, gg)
	case *RotatedLatLonGridDef:
		encodeLatLon(w, &gg.LatLonGridDef)
		w.int32sm(microdeg(gg.SouthPoleLat))
		w.uint32(uint32(microdeg(wrap360(gg.SouthPoleLon))))
		w.float32(float32(gg.Angle))
	case *UnstructuredGridDef:
		w.uint8(6) // spherical earth, radius 6371229 m
		w.uint8(uint8(gg.NumberOfGridUsed >> 16))
		w.uint8(uint8(gg.NumberOfGridUsed >> 8))
		w.uint8(uint8(gg.NumberOfGridUsed))
		w.uint8(gg.GridInReference)
		w.bytes(gg.UUID[:])
	default:
		fail(fmt.Sprintf("grid type %T", g), ErrTemplate)
	}
}

func encodeLatLon(w *writer, g *LatLonGridDef) {
	w.uint8(6) // spherical earth, radius 6371229 m
	for i := 0; i < 3; i++ {
		w.uint8(missingByte)
		w.uint32(missingInt32)
	}
	w.uint32(uint32(g.Ni))
	w.uint32(uint32(g.Nj))
	w.uint32(0)            // basic angle
	w.uint32(missingInt32) // subdivisions of basic angle
	w.int32sm(microdeg(g.La1))
	w.uint32(uint32(microdeg(wrap360(g.Lo1))))
	w.uint8(g.ResolutionFlags)
	w.int32sm(microdeg(g.La2))
	w.uint32(uint32(microdeg(wrap360(g.Lo2))))
	w.uint32(uint32(microdeg(g.Di)))
	w.uint32(uint32(microdeg(g.Dj)))
	var scan uint8
	if g.ScanNegX {
		scan |= 0x80
	}
	if g.ScanPosY {
		scan |= 0x40
	}
	w.uint8(scan)
}

func encodeProduct(w *writer, p *ProductDef) {
	template := uint16(0)
	switch {
	case p.Member >= 0 && len(p.TimeRanges) > 0:
		template = 11
	case p.Member >= 0:
		template = 1
	case len(p.TimeRanges) > 0:
		template = 8
	}
	w.uint16(uint16(len(p.PV)))
	w.uint16(template)
	w.uint8(p.ParameterCategory)
	w.uint8(p.ParameterNumber)
	w.uint8(p.TypeOfGeneratingProcess)
	w.uint8(p.BackgroundProcess)
	w.uint8(p.GeneratingProcessID)
	w.uint16(p.HoursAfterCutoff)
	w.uint8(p.MinutesAfterCutoff)
	w.uint8(uint8(p.TimeUnit))
	w.int32sm(p.ForecastTime)
	encodeSurface(w, p.Surface1)
	encodeSurface(w, p.Surface2)
	if template == 1 || template == 11 {
		w.uint8(p.EnsembleType)
		w.uint8(uint8(p.Member))
		w.uint8(p.EnsembleSize)
	}
	if template == 8 || template == 11 {
		encodeTime(w, p.EndOfInterval)
		w.uint8(uint8(len(p.TimeRanges)))
		w.uint32(p.MissingInStat)
		for _, tr := range p.TimeRanges {
			w.uint8(tr.StatProcess)
			w.uint8(tr.IncrementType)
			w.uint8(uint8(tr.RangeUnit))
			w.int32sm(tr.Length)
			w.uint8(uint8(tr.IncrementUnit))
			w.int32sm(tr.Increment)
		}
	}
	for _, v := range p.PV {
		w.float32(float32(v))
	}
}

func encodeSurface(w *writer, s FixedSurface) {
	w.uint8(s.Type)
	if s.Type == 255 {
		w.uint8(missingByte)
		w.uint32(missingInt32)
		return
	}
	w.int8sm(s.ScaleFactor)
	w.uint32(s.ScaledValue)
}

// pack quantizes the values using simple packing. The number of bits
// and the decimal scale factor come from the requested packing; the
// reference value and binary scale factor are chosen so that the
// scaled value range fits the bit width exactly.
func pack(values []float64, req Packing) (packed []byte, pk Packing, bitmap []bool, numValues int) {
	pk = Packing{DecimalScale: req.DecimalScale, Bits: req.Bits}
	if pk.Bits == 0 {
		pk.Bits = 16
	}

	dec := math.Pow(10, float64(pk.DecimalScale))
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			if bitmap == nil {
				bitmap = make([]bool, len(values))
				for i := range bitmap {
					bitmap[i] = true
				}
			}
			continue
		}
		if s := v * dec; s < min {
			min = s
		}
		if s := v * dec; s > max {
			max = s
		}
	}
	if bitmap != nil {
		for i, v := range values {
			bitmap[i] = !math.IsNaN(v)
		}
	}
	if math.IsInf(min, 1) {
		// No values present at all.
		pk.Bits = 0
		return nil, pk, bitmap, 0
	}

	pk.Reference = float32(min)
	ref := float64(pk.Reference)
	span := max - ref
	if span <= 0 {
		pk.Bits = 0
		numValues = countPresent(values, bitmap)
		return nil, pk, bitmap, numValues
	}
	maxX := math.Pow(2, float64(pk.Bits)) - 1
	e := int16(math.Ceil(math.Log2(span / maxX)))
	for span/math.Pow(2, float64(e)) > maxX {
		e++
	}
	pk.BinaryScale = e
	scale := math.Pow(2, float64(e))

	bits := int(pk.Bits)
	packed = make([]byte, (countPresent(values, bitmap)*bits+7)/8)
	pos := 0
	for i, v := range values {
		if bitmap != nil && !bitmap[i] {
			continue
		}
		x := math.Round((v*dec - ref) / scale)
		if x < 0 {
			x = 0
		}
		if x > maxX {
			x = maxX
		}
		u := uint64(x)
		for j := bits - 1; j >= 0; j-- {
			if u>>uint(j)&1 == 1 {
				packed[pos>>3] |= 1 << (7 - pos&7)
			}
			pos++
		}
		numValues++
	}
	return packed, pk, bitmap, numValues
}

func countPresent(values []float64, bitmap []bool) int {
	if bitmap == nil {
		return len(values)
	}
	n := 0
	for _, ok := range bitmap {
		if ok {
			n++
		}
	}
	return n
}
