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
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// LoadOptions configure the assembly of fields from a message source.
type LoadOptions struct {
	// Family selects the parameter tables; FamilyCOSMO when empty.
	Family Family
	// Registry receives the grids of the loaded fields and supplies the
	// parameter tables. A private registry is used when nil, in which
	// case the fields cannot be regridded later.
	Registry *Registry
	// Log receives skip and collision diagnostics.
	Log logrus.FieldLogger
}

func (o *LoadOptions) withDefaults() LoadOptions {
	var v LoadOptions
	if o != nil {
		v = *o
	}
	if v.Family == "" {
		v.Family = FamilyCOSMO
	}
	if v.Registry == nil {
		v.Registry = NewRegistry()
	}
	if v.Log == nil {
		v.Log = logrus.StandardLogger()
	}
	return v
}

// slabKey identifies one horizontal slab within a field's hypercube.
type slabKey struct {
	member int
	ref    time.Time
	lead   time.Duration
	level  float64
}

// fieldBuffer accumulates the slabs of one parameter until the source
// is exhausted.
type fieldBuffer struct {
	meta     Metadata
	grid     Grid
	pv       []float64
	tmpl     []byte
	ensemble bool
	slabs    map[slabKey][]float64
}

// Load assembles the named parameters from a message source into
// fields. Messages of one parameter are keyed by member, reference
// time, lead time and level value; the keys must fill a complete
// hypercube. With no names given, every parameter the tables resolve is
// loaded. Messages that do not resolve or use unsupported metadata are
// skipped with a log entry; corrupt messages fail the load.
func Load(src Source, names []string, opts *LoadOptions) (Dataset, error) {
	o := opts.withDefaults()
	var want map[string]bool
	if len(names) > 0 {
		want = make(map[string]bool, len(names))
		for _, n := range names {
			want[n] = true
		}
	}

	buffers := make(map[string]*fieldBuffer)
	results := decodeAll(src, o.Registry.Params, o.Family)
	// The pipeline goroutines exit only after the last result is
	// received, so drain the channel on early returns.
	defer func() {
		for range results {
		}
	}()
	for r := range results {
		if r.err != nil {
			var unk *UnknownParameterError
			var uns *UnsupportedMetadataError
			switch {
			case errors.As(r.err, &unk):
				o.Log.WithFields(logrus.Fields{"param": unk.ShortName}).Debug("skipping unknown parameter")
				continue
			case errors.As(r.err, &uns):
				o.Log.WithFields(logrus.Fields{"key": uns.Key}).Warn("skipping message with unsupported metadata")
				continue
			}
			return nil, r.err
		}
		d := r.dec
		name := d.Meta.Param.ShortName
		if want != nil && !want[name] {
			continue
		}

		b, ok := buffers[name]
		if !ok {
			b = &fieldBuffer{
				meta:     d.Meta,
				grid:     d.Grid,
				tmpl:     r.raw,
				ensemble: d.Meta.Member >= 0,
				slabs:    make(map[slabKey][]float64),
			}
			buffers[name] = b
		}
		if d.Grid.Ref() != b.grid.Ref() {
			return nil, &IncompatibleFieldsError{A: name, B: name, Reason: "messages on different grids"}
		}
		if len(b.pv) == 0 {
			b.pv = d.PV
		}
		key := slabKey{member: d.Meta.Member, ref: d.Meta.RefTime, lead: d.Meta.LeadTime, level: d.Level}
		if _, dup := b.slabs[key]; dup {
			o.Log.WithFields(logrus.Fields{"param": name, "key": fmt.Sprint(key)}).Warn("key collision")
		}
		b.slabs[key] = d.Values
	}

	loaded := make([]string, 0, len(buffers))
	for name := range buffers {
		loaded = append(loaded, name)
	}
	sort.Strings(loaded)
	ds := make(Dataset, len(buffers))
	for _, name := range loaded {
		b := buffers[name]
		f, err := b.build(name)
		if err != nil {
			return nil, err
		}
		o.Registry.AddGrid(b.grid)
		ds.Add(f)
	}
	if want != nil {
		for _, n := range names {
			if _, ok := ds[n]; !ok {
				return nil, &MissingInputFieldError{Param: n}
			}
		}
	}
	return ds, nil
}

// LoadSingleParam assembles one parameter from a message source.
func LoadSingleParam(src Source, name string, opts *LoadOptions) (*Field, error) {
	ds, err := Load(src, []string{name}, opts)
	if err != nil {
		return nil, err
	}
	return ds.Param(name)
}

// Decode builds a single-slab field from one encoded message and
// registers its grid.
func Decode(data []byte, reg *Registry, fam Family) (*Field, error) {
	d, err := decodeMessage(data, reg.Params, fam)
	if err != nil {
		return nil, err
	}
	b := &fieldBuffer{
		meta:     d.Meta,
		grid:     d.Grid,
		pv:       d.PV,
		tmpl:     data,
		ensemble: d.Meta.Member >= 0,
		slabs: map[slabKey][]float64{
			{member: d.Meta.Member, ref: d.Meta.RefTime, lead: d.Meta.LeadTime, level: d.Level}: d.Values,
		},
	}
	f, err := b.build(d.Meta.Param.ShortName)
	if err != nil {
		return nil, err
	}
	reg.AddGrid(d.Grid)
	return f, nil
}

// decodeResult pairs a decoded message with its raw bytes.
type decodeResult struct {
	dec *decoded
	raw []byte
	err error
}

// decodeAll decodes the messages of a source on bounded goroutines and
// yields the results in source order. The returned channel is closed
// after the last message; a source error is yielded as a final result.
func decodeAll(src Source, params *ParamTable, fam Family) <-chan decodeResult {
	workers := runtime.GOMAXPROCS(0)
	pending := make(chan chan decodeResult, workers)
	sem := make(chan struct{}, workers)

	go func() {
		defer close(pending)
		for {
			data, err := src.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				ch := make(chan decodeResult, 1)
				ch <- decodeResult{err: err}
				pending <- ch
				return
			}
			ch := make(chan decodeResult, 1)
			sem <- struct{}{}
			go func(data []byte) {
				defer func() { <-sem }()
				d, derr := decodeMessage(data, params, fam)
				ch <- decodeResult{dec: d, raw: data, err: derr}
			}(data)
			pending <- ch
		}
	}()

	out := make(chan decodeResult)
	go func() {
		defer close(out)
		for ch := range pending {
			out <- <-ch
		}
	}()
	return out
}

// build assembles the accumulated slabs into a field.
func (b *fieldBuffer) build(name string) (*Field, error) {
	members, refs, leads, levels := b.axes()

	dims := make([]string, 0, 6)
	shape := make([]int, 0, 6)
	if b.ensemble {
		dims = append(dims, DimMember)
		shape = append(shape, len(members))
	}
	dims = append(dims, DimRefTime, DimLeadTime, DimZ)
	shape = append(shape, len(refs), len(leads), len(levels))
	var npoints int
	if mesh, ok := b.grid.(*IconMeshGrid); ok {
		dims = append(dims, DimCell)
		shape = append(shape, mesh.NCells)
		npoints = mesh.NCells
	} else {
		ny, nx := gridShape(b.grid)
		dims = append(dims, DimY, DimX)
		shape = append(shape, ny, nx)
		npoints = ny * nx
	}

	meta := b.meta.WithTimes(refs[0], leads[0])
	if b.ensemble {
		meta = meta.WithMember(members[0])
	}
	f, err := NewField(name, dims, shape, meta)
	if err != nil {
		return nil, err
	}
	f.RefTimes = refs
	f.LeadTimes = leads
	f.Levels = append([]float64(nil), levels...)
	if b.ensemble {
		f.Members = members
	}
	f.Message = b.tmpl
	f.PV = b.pv

	nslabs := len(members) * len(refs) * len(leads) * len(levels)
	if len(b.slabs) != nslabs {
		return nil, fmt.Errorf("meteodatalab: param %s: %d of %d key combinations present",
			name, len(b.slabs), nslabs)
	}
	memberIdx := indexInts(members)
	refIdx := indexTimes(refs)
	leadIdx := indexDurations(leads)
	levelIdx := indexFloats(levels)
	for key, values := range b.slabs {
		if len(values) != npoints {
			return nil, fmt.Errorf("meteodatalab: param %s: slab has %d values for %d grid points",
				name, len(values), npoints)
		}
		n := memberIdx[key.member]
		n = n*len(refs) + refIdx[key.ref]
		n = n*len(leads) + leadIdx[key.lead]
		n = n*len(levels) + levelIdx[key.level]
		copy(f.Data.Elements[n*npoints:(n+1)*npoints], values)
	}

	if meta.Level == LevelSurface {
		return f.Squeeze(DimZ)
	}
	return f, nil
}

// axes returns the sorted unique coordinate values over all slab keys.
func (b *fieldBuffer) axes() (members []int, refs []time.Time, leads []time.Duration, levels []float64) {
	mset := make(map[int]bool)
	rset := make(map[time.Time]bool)
	lset := make(map[time.Duration]bool)
	zset := make(map[float64]bool)
	for key := range b.slabs {
		mset[key.member] = true
		rset[key.ref] = true
		lset[key.lead] = true
		zset[key.level] = true
	}
	for m := range mset {
		members = append(members, m)
	}
	sort.Ints(members)
	for r := range rset {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Before(refs[j]) })
	for l := range lset {
		leads = append(leads, l)
	}
	sort.Slice(leads, func(i, j int) bool { return leads[i] < leads[j] })
	for z := range zset {
		levels = append(levels, z)
	}
	sort.Float64s(levels)
	return members, refs, leads, levels
}

func indexInts(v []int) map[int]int {
	m := make(map[int]int, len(v))
	for i, x := range v {
		m[x] = i
	}
	return m
}

func indexTimes(v []time.Time) map[time.Time]int {
	m := make(map[time.Time]int, len(v))
	for i, x := range v {
		m[x] = i
	}
	return m
}

func indexDurations(v []time.Duration) map[time.Duration]int {
	m := make(map[time.Duration]int, len(v))
	for i, x := range v {
		m[x] = i
	}
	return m
}

func indexFloats(v []float64) map[float64]int {
	m := make(map[float64]int, len(v))
	for i, x := range v {
		m[x] = i
	}
	return m
}
