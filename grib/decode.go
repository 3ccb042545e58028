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
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/batchatco/go-thrower"
)

func fail(message string, err error) {
	thrower.Throw(fmt.Errorf("%w: %s", err, message))
}

func assert(condition bool, message string, err error) {
	if condition {
		return
	}
	fail(message, err)
}

// reader is a cursor over a message buffer. All read methods throw
// ErrTruncated past the end of the buffer.
type reader struct {
	b   []byte
	off int
}

func (r *reader) require(n int) {
	if r.off+n > len(r.b) {
		thrower.Throw(ErrTruncated)
	}
}

func (r *reader) remaining() int { return len(r.b) - r.off }

func (r *reader) bytes(n int) []byte {
	r.require(n)
	b := r.b[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) skip(n int) {
	r.require(n)
	r.off += n
}

func (r *reader) uint8() uint8 { return r.bytes(1)[0] }

func (r *reader) uint16() uint16 { return binary.BigEndian.Uint16(r.bytes(2)) }

func (r *reader) uint32() uint32 { return binary.BigEndian.Uint32(r.bytes(4)) }

func (r *reader) uint64() uint64 { return binary.BigEndian.Uint64(r.bytes(8)) }

func (r *reader) float32() float32 { return math.Float32frombits(r.uint32()) }

// Negative integers are stored in sign and magnitude form rather than
// two's complement.
func (r *reader) int8sm() int8 {
	u := r.uint8()
	if u&0x80 != 0 {
		return -int8(u &^ 0x80)
	}
	return int8(u)
}

func (r *reader) int16sm() int16 {
	u := r.uint16()
	if u&0x8000 != 0 {
		return -int16(u &^ 0x8000)
	}
	return int16(u)
}

func (r *reader) int32sm() int32 {
	u := r.uint32()
	if u&0x80000000 != 0 {
		return -int32(u &^ 0x80000000)
	}
	return int32(u)
}

const microDeg = 1e-6

// Decode parses one GRIB2 message.
func Decode(data []byte) (m *Message, err error) {
	defer thrower.RecoverError(&err)
	r := &reader{b: data}

	// Section 0, indicator.
	assert(len(data) >= 16, "short indicator section", ErrTruncated)
	assert(string(r.bytes(4)) == "GRIB", "missing GRIB magic", ErrNotGRIB)
	r.skip(2)
	m = &Message{Discipline: r.uint8()}
	edition := r.uint8()
	assert(edition == 2, fmt.Sprint("edition ", edition), ErrEdition)
	total := r.uint64()
	assert(total >= 16+4 && total <= uint64(len(data)), "total length out of bounds", ErrTruncated)
	r.b = data[:total]

	// All sections except local use are required.
	const requiredSections = 1<<1 | 1<<3 | 1<<4 | 1<<5 | 1<<6 | 1<<7

	var (
		lastSec   = 0
		seen      = 0
		numValues = -1
	)
	for {
		if r.remaining() == 4 {
			assert(string(r.bytes(4)) == "7777", "missing end section", ErrCorrupted)
			assert(seen&requiredSections == requiredSections, "incomplete message", ErrCorrupted)
			return m, nil
		}
		r.require(5)
		secLen := int(r.uint32())
		secNum := int(r.uint8())
		assert(secLen >= 5, "section length too small", ErrCorrupted)
		if secNum <= lastSec {
			if lastSec == 7 {
				fail("repeated section group", ErrMultiField)
			}
			fail(fmt.Sprintf("section %d after %d", secNum, lastSec), ErrSectionOrder)
		}
		body := &reader{b: r.bytes(secLen - 5)}
		switch secNum {
		case 1:
			m.ID = decodeIdentification(body)
		case 2:
			// Local use section, not interpreted.
		case 3:
			m.Grid = decodeGrid(body)
		case 4:
			assert(m.Grid != nil, "product before grid", ErrSectionOrder)
			m.Product = decodeProduct(body)
		case 5:
			m.Packing, numValues = decodeRepresentation(body)
		case 6:
			assert(m.Grid != nil, "bitmap before grid", ErrSectionOrder)
			m.Bitmap = decodeBitmap(body, m.Grid.NumPoints())
		case 7:
			assert(numValues >= 0, "data before representation", ErrSectionOrder)
			assert(lastSec == 6, "data before bitmap section", ErrSectionOrder)
			m.Values = unpackValues(body, m.Packing, m.Bitmap, m.Grid.NumPoints(), numValues)
		default:
			fail(fmt.Sprint("section ", secNum), ErrCorrupted)
		}
		lastSec = secNum
		seen |= 1 << secNum
	}
}

func decodeIdentification(r *reader) Identification {
	id := Identification{
		Centre:             r.uint16(),
		SubCentre:          r.uint16(),
		TablesVersion:      r.uint8(),
		LocalTablesVersion: r.uint8(),
		SignificanceOfRT:   r.uint8(),
	}
	id.RefTime = decodeTime(r)
	id.ProductionStatus = r.uint8()
	id.TypeOfProcessedData = r.uint8()
	return id
}

func decodeTime(r *reader) time.Time {
	year := int(r.uint16())
	month := time.Month(r.uint8())
	day := int(r.uint8())
	hour := int(r.uint8())
	minute := int(r.uint8())
	second := int(r.uint8())
	return time.Date(year, month, day, hour, minute, second, 0, time.UTC)
}

func decodeGrid(r *reader) GridDef {
	r.uint8() // source of grid definition
	numPoints := int(r.uint32())
	assert(r.uint8() == 0, "optional point lists", ErrTemplate)
	r.uint8() // interpretation of list
	template := r.uint16()
	switch template {
	case 0, 1:
		g := decodeLatLon(r)
		assert(g.Ni*g.Nj == numPoints, "data point count", ErrGridSize)
		if template == 0 {
			return g
		}
		rot := &RotatedLatLonGridDef{LatLonGridDef: *g}
		rot.SouthPoleLat = float64(r.int32sm()) * microDeg
		rot.SouthPoleLon = float64(r.uint32()) * microDeg
		rot.Angle = float64(r.float32())
		return rot
	case 101:
		r.uint8() // shape of the earth
		g := &UnstructuredGridDef{NCells: numPoints}
		n := r.bytes(3)
		g.NumberOfGridUsed = int(n[0])<<16 | int(n[1])<<8 | int(n[2])
		g.GridInReference = r.uint8()
		copy(g.UUID[:], r.bytes(16))
		return g
	}
	fail(fmt.Sprint("grid definition template ", template), ErrTemplate)
	return nil
}

func decodeLatLon(r *reader) *LatLonGridDef {
	g := &LatLonGridDef{}
	r.uint8()  // shape of the earth
	r.skip(15) // earth radius and axes
	g.Ni = int(r.uint32())
	g.Nj = int(r.uint32())
	r.skip(8) // basic angle and subdivisions
	g.La1 = float64(r.int32sm()) * microDeg
	g.Lo1 = float64(r.uint32()) * microDeg
	g.ResolutionFlags = r.uint8()
	g.La2 = float64(r.int32sm()) * microDeg
	g.Lo2 = float64(r.uint32()) * microDeg
	g.Di = float64(r.uint32()) * microDeg
	g.Dj = float64(r.uint32()) * microDeg
	scan := r.uint8()
	g.ScanNegX = scan&0x80 != 0
	g.ScanPosY = scan&0x40 != 0
	assert(scan&0x3f == 0, "scanning mode", ErrTemplate)
	return g
}

func decodeProduct(r *reader) ProductDef {
	nv := int(r.uint16())
	template := r.uint16()
	p := ProductDef{Member: -1}
	switch template {
	case 0, 1, 8, 11:
	default:
		fail(fmt.Sprint("product definition template ", template), ErrTemplate)
	}
	p.ParameterCategory = r.uint8()
	p.ParameterNumber = r.uint8()
	p.TypeOfGeneratingProcess = r.uint8()
	p.BackgroundProcess = r.uint8()
	p.GeneratingProcessID = r.uint8()
	p.HoursAfterCutoff = r.uint16()
	p.MinutesAfterCutoff = r.uint8()
	p.TimeUnit = TimeUnit(r.uint8())
	p.ForecastTime = r.int32sm()
	p.Surface1 = decodeSurface(r)
	p.Surface2 = decodeSurface(r)
	if template == 1 || template == 11 {
		p.EnsembleType = r.uint8()
		p.Member = int(r.uint8())
		p.EnsembleSize = r.uint8()
	}
	if template == 8 || template == 11 {
		p.EndOfInterval = decodeTime(r)
		n := int(r.uint8())
		p.MissingInStat = r.uint32()
		assert(n > 0, "statistical product without time ranges", ErrCorrupted)
		p.TimeRanges = make([]TimeRange, n)
		for i := range p.TimeRanges {
			p.TimeRanges[i] = TimeRange{
				StatProcess:   r.uint8(),
				IncrementType: r.uint8(),
				RangeUnit:     TimeUnit(r.uint8()),
				Length:        r.int32sm(),
				IncrementUnit: TimeUnit(r.uint8()),
				Increment:     r.int32sm(),
			}
		}
	}
	if nv > 0 {
		p.PV = make([]float64, nv)
		for i := range p.PV {
			p.PV[i] = float64(r.float32())
		}
	}
	return p
}

func decodeSurface(r *reader) FixedSurface {
	s := FixedSurface{Type: r.uint8()}
	sf := r.uint8()
	sv := r.uint32()
	// Missing values are encoded with all bits set.
	if sf != 0xff {
		if sf&0x80 != 0 {
			s.ScaleFactor = -int8(sf &^ 0x80)
		} else {
			s.ScaleFactor = int8(sf)
		}
	}
	if sv != 0xffffffff {
		s.ScaledValue = sv
	}
	return s
}

func decodeRepresentation(r *reader) (Packing, int) {
	numValues := int(r.uint32())
	template := r.uint16()
	assert(template == 0, fmt.Sprint("data representation template ", template), ErrTemplate)
	pk := Packing{
		Reference:    r.float32(),
		BinaryScale:  r.int16sm(),
		DecimalScale: r.int16sm(),
		Bits:         r.uint8(),
	}
	assert(pk.Bits <= 32, fmt.Sprint("bits per value ", pk.Bits), ErrBitWidth)
	return pk, numValues
}

func decodeBitmap(r *reader, numPoints int) []bool {
	switch ind := r.uint8(); ind {
	case 255:
		return nil
	case 0:
		b := r.bytes((numPoints + 7) / 8)
		bitmap := make([]bool, numPoints)
		for i := range bitmap {
			bitmap[i] = b[i>>3]>>(7-i&7)&1 == 1
		}
		return bitmap
	default:
		fail(fmt.Sprint("bitmap indicator ", ind), ErrBitmap)
		return nil
	}
}

func unpackValues(r *reader, pk Packing, bitmap []bool, numPoints, numValues int) []float64 {
	present := numPoints
	if bitmap != nil {
		present = 0
		for _, ok := range bitmap {
			if ok {
				present++
			}
		}
	}
	assert(present == numValues, "bitmap and value counts differ", ErrCorrupted)

	out := make([]float64, numPoints)
	ref := float64(pk.Reference)
	scale := math.Pow(2, float64(pk.BinaryScale))
	dec := math.Pow(10, -float64(pk.DecimalScale))
	if pk.Bits == 0 {
		for i := range out {
			if bitmap != nil && !bitmap[i] {
				out[i] = math.NaN()
				continue
			}
			out[i] = ref * dec
		}
		return out
	}
	bits := int(pk.Bits)
	assert(r.remaining()*8 >= present*bits, "packed data too short", ErrTruncated)
	b := r.b[r.off:]
	pos := 0
	for i := range out {
		if bitmap != nil && !bitmap[i] {
			out[i] = math.NaN()
			continue
		}
		var x uint64
		for j := 0; j < bits; j++ {
			x = x<<1 | uint64(b[pos>>3]>>(7-pos&7)&1)
			pos++
		}
		out[i] = (ref + float64(x)*scale) * dec
	}
	return out
}
