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
	"io"
	"time"

	"github.com/MeteoSwiss/meteodata-lab/grib"
)

// Save writes every horizontal slab of a field as one encoded message.
// Fields that were decoded from messages carry the first message along
// as a template; its identification, process and packing keys are
// reused and only the keys the field metadata covers are overridden.
// Fields built from scratch are encoded from the metadata alone.
func Save(w io.Writer, reg *Registry, f *Field, opts *EncodeOptions) error {
	return encodeField(reg, f, opts, func(data []byte) error {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("meteodatalab: while writing message: %v", err)
		}
		return nil
	})
}

// Encode serializes a field into one encoded message per horizontal
// slab, in row-major order over the non-spatial dimensions.
func Encode(reg *Registry, f *Field, opts *EncodeOptions) ([][]byte, error) {
	var msgs [][]byte
	err := encodeField(reg, f, opts, func(data []byte) error {
		msgs = append(msgs, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func encodeField(reg *Registry, f *Field, opts *EncodeOptions, emit func([]byte) error) error {
	o := DefaultEncodeOptions()
	if opts != nil {
		o = *opts
	}
	g, err := reg.Grid(f.Meta.Grid)
	if err != nil {
		return err
	}

	var tmpl *grib.Message
	if len(f.Message) > 0 {
		tmpl, err = grib.Decode(f.Message)
		if err != nil {
			return fmt.Errorf("meteodatalab: field %s: invalid message template: %w", f.Name, err)
		}
	}

	spatial := 1
	outer := 1
	var outerDims []string
	var outerShape []int
	for i, d := range f.Dims {
		n := f.Data.Shape[i]
		switch d {
		case DimY, DimX, DimCell:
			spatial *= n
		default:
			outerDims = append(outerDims, d)
			outerShape = append(outerShape, n)
			outer *= n
		}
	}
	if spatial != g.NPoints() {
		return fmt.Errorf("meteodatalab: field %s has %d spatial values for %d grid points",
			f.Name, spatial, g.NPoints())
	}

	for n := 0; n < outer; n++ {
		meta := f.Meta
		level := 0.0
		if len(f.Levels) > 0 {
			level = f.Levels[0]
		}
		rem := n
		for i := len(outerDims) - 1; i >= 0; i-- {
			idx := rem % outerShape[i]
			rem /= outerShape[i]
			switch outerDims[i] {
			case DimMember:
				meta.Member = f.Members[idx]
			case DimRefTime:
				meta.RefTime = f.RefTimes[idx]
			case DimLeadTime:
				meta.LeadTime = f.LeadTimes[idx]
			case DimZ:
				level = f.Levels[idx]
			}
		}
		values := f.Data.Elements[n*spatial : (n+1)*spatial]
		data, err := encodeSlab(meta, g, level, f.PV, values, tmpl, o)
		if err != nil {
			return err
		}
		if err := emit(data); err != nil {
			return err
		}
	}
	return nil
}

// encodeSlab encodes one slab, against the template when one is given.
func encodeSlab(meta Metadata, g Grid, level float64, pv []float64, values []float64, tmpl *grib.Message, opts EncodeOptions) ([]byte, error) {
	if tmpl == nil {
		return encodeMessage(meta, g, level, pv, values, opts)
	}

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

	// Shallow copy; the shared slices are replaced, never mutated.
	m := *tmpl
	m.Discipline = meta.Param.Discipline
	m.ID.RefTime = meta.RefTime.UTC()
	m.Grid = def

	p := m.Product
	p.ParameterCategory = meta.Param.Category
	p.ParameterNumber = meta.Param.Number
	p.TimeUnit = grib.Minute
	p.ForecastTime = int32(fc / time.Minute)
	p.Surface1, p.Surface2 = s1, s2
	p.Member = meta.Member
	if meta.Member >= 0 && p.EnsembleType == 0 {
		p.EnsembleType = 192
		p.EnsembleSize = opts.EnsembleSize
	}
	p.PV = pv
	if meta.TimeRange > 0 {
		tr := grib.TimeRange{StatProcess: meta.StatProcess, IncrementType: 2, IncrementUnit: grib.Second}
		if len(p.TimeRanges) > 0 {
			tr = p.TimeRanges[0]
			tr.StatProcess = meta.StatProcess
		}
		tr.RangeUnit = grib.Minute
		tr.Length = int32(meta.TimeRange / time.Minute)
		p.TimeRanges = []grib.TimeRange{tr}
		p.EndOfInterval = meta.RefTime.Add(meta.LeadTime).UTC()
	} else {
		p.TimeRanges = nil
		p.EndOfInterval = time.Time{}
		p.MissingInStat = 0
	}
	m.Product = p

	if opts.Bits > 0 {
		m.Packing.Bits = opts.Bits
	}
	m.Bitmap = nil
	m.Values = values

	data, err := grib.Encode(&m)
	if err != nil {
		return nil, fmt.Errorf("meteodatalab: %w", err)
	}
	return data, nil
}
