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
	"sort"
	"time"

	"github.com/ctessum/sparse"
)

// Dimension names, in canonical order. Every field stores its
// dimensions as a subsequence of this order, with either the y/x pair
// for structured grids or cell for unstructured meshes as the trailing
// spatial dimensions.
const (
	DimMember   = "eps"
	DimRefTime  = "ref_time"
	DimLeadTime = "lead_time"
	DimZ        = "z"
	DimY        = "y"
	DimX        = "x"
	DimCell     = "cell"
)

var dimRank = map[string]int{
	DimMember:   0,
	DimRefTime:  1,
	DimLeadTime: 2,
	DimZ:        3,
	DimY:        4,
	DimX:        5,
	DimCell:     4,
}

// A Field is a labeled hypercube of values of one parameter, together
// with the coordinates of its non-spatial dimensions and the metadata
// describing it. The spatial coordinates live in the grid the metadata
// refers to.
type Field struct {
	Name string
	Dims []string
	Data *sparse.DenseArray
	Meta Metadata

	// Coordinate values, parallel to the corresponding dimension.
	Members   []int
	RefTimes  []time.Time
	LeadTimes []time.Duration
	Levels    []float64

	// Message is the raw encoded message the field was decoded from,
	// reused as a template when the field is written back out. Derived
	// fields inherit it. Treated as read-only.
	Message []byte
	// PV holds the hybrid vertical coordinate parameters of model level
	// data. Treated as read-only.
	PV []float64
}

// NewField allocates a zero-valued field with the given dimensions and
// shape. The dimensions must follow canonical order.
func NewField(name string, dims []string, shape []int, meta Metadata) (*Field, error) {
	if err := checkDims(name, dims, shape); err != nil {
		return nil, err
	}
	return &Field{
		Name: name,
		Dims: append([]string(nil), dims...),
		Data: sparse.ZerosDense(shape...),
		Meta: meta,
	}, nil
}

func checkDims(name string, dims []string, shape []int) error {
	if len(dims) != len(shape) {
		return fmt.Errorf("meteodatalab: field %s: %d dimensions but %d axis lengths",
			name, len(dims), len(shape))
	}
	last := -1
	for i, d := range dims {
		r, ok := dimRank[d]
		if !ok {
			return fmt.Errorf("meteodatalab: field %s: unknown dimension %s", name, d)
		}
		if r <= last {
			return fmt.Errorf("meteodatalab: field %s: dimension %s out of canonical order", name, d)
		}
		if shape[i] < 1 {
			return fmt.Errorf("meteodatalab: field %s: dimension %s has length %d", name, d, shape[i])
		}
		last = r
	}
	return nil
}

// Axis returns the position of the named dimension.
func (f *Field) Axis(dim string) (int, error) {
	for i, d := range f.Dims {
		if d == dim {
			return i, nil
		}
	}
	return 0, &DimensionNotFoundError{Dim: dim, Field: f.Name}
}

// HasDim reports whether the field has the named dimension.
func (f *Field) HasDim(dim string) bool {
	_, err := f.Axis(dim)
	return err == nil
}

// Shape returns the axis lengths in dimension order.
func (f *Field) Shape() []int { return f.Data.Shape }

// Copy returns a deep copy of the field.
func (f *Field) Copy() *Field {
	o := &Field{
		Name: f.Name,
		Dims: append([]string(nil), f.Dims...),
		Data: f.Data.Copy(),
		Meta: f.Meta,
	}
	o.Members = append([]int(nil), f.Members...)
	o.RefTimes = append([]time.Time(nil), f.RefTimes...)
	o.LeadTimes = append([]time.Duration(nil), f.LeadTimes...)
	o.Levels = append([]float64(nil), f.Levels...)
	o.Message = f.Message
	o.PV = f.PV
	return o
}

// EmptyLike returns a zero-valued field with the same dimensions,
// coordinates and metadata as f.
func (f *Field) EmptyLike(name string) *Field {
	o := f.Copy()
	o.Name = name
	o.Data = sparse.ZerosDense(f.Data.Shape...)
	return o
}

// EmptyWithoutZ returns a zero-valued field shaped like f with the
// vertical axis removed.
func (f *Field) EmptyWithoutZ(name string) (*Field, error) {
	k, err := f.Axis(DimZ)
	if err != nil {
		return nil, err
	}
	dims := make([]string, 0, len(f.Dims)-1)
	shape := make([]int, 0, len(f.Dims)-1)
	for i, d := range f.Dims {
		if i == k {
			continue
		}
		dims = append(dims, d)
		shape = append(shape, f.Data.Shape[i])
	}
	o, err := NewField(name, dims, shape, f.Meta)
	if err != nil {
		return nil, err
	}
	copyCoords(o, f)
	o.Levels = nil
	return o, nil
}

// EmptyWithLevels returns a zero-valued field shaped like f with the
// vertical axis replaced by the given levels of the given kind. If f
// has no vertical axis, one is inserted.
func (f *Field) EmptyWithLevels(name string, kind LevelKind, levels []float64) (*Field, error) {
	dims := make([]string, 0, len(f.Dims)+1)
	shape := make([]int, 0, len(f.Dims)+1)
	inserted := false
	for i, d := range f.Dims {
		if d == DimZ {
			dims = append(dims, DimZ)
			shape = append(shape, len(levels))
			inserted = true
			continue
		}
		if !inserted && dimRank[d] > dimRank[DimZ] {
			dims = append(dims, DimZ)
			shape = append(shape, len(levels))
			inserted = true
		}
		dims = append(dims, d)
		shape = append(shape, f.Data.Shape[i])
	}
	o, err := NewField(name, dims, shape, f.Meta.WithLevel(kind))
	if err != nil {
		return nil, err
	}
	copyCoords(o, f)
	o.Levels = append([]float64(nil), levels...)
	return o, nil
}

// copyCoords carries the coordinate slices and the decode template over
// to a derived field.
func copyCoords(dst, src *Field) {
	for _, d := range dst.Dims {
		switch d {
		case DimMember:
			dst.Members = append([]int(nil), src.Members...)
		case DimRefTime:
			dst.RefTimes = append([]time.Time(nil), src.RefTimes...)
		case DimLeadTime:
			dst.LeadTimes = append([]time.Duration(nil), src.LeadTimes...)
		case DimZ:
			dst.Levels = append([]float64(nil), src.Levels...)
		}
	}
	dst.Message = src.Message
	dst.PV = src.PV
}

// Coordinate returns a numeric view of the coordinate values along a
// dimension: member numbers, reference times as Unix seconds, lead
// times as seconds, level values, or plain indices for spatial
// dimensions.
func (f *Field) Coordinate(dim string) ([]float64, error) {
	k, err := f.Axis(dim)
	if err != nil {
		return nil, err
	}
	n := f.Data.Shape[k]
	o := make([]float64, n)
	switch dim {
	case DimMember:
		for i, m := range f.Members {
			o[i] = float64(m)
		}
	case DimRefTime:
		for i, t := range f.RefTimes {
			o[i] = float64(t.Unix())
		}
	case DimLeadTime:
		for i, d := range f.LeadTimes {
			o[i] = d.Seconds()
		}
	case DimZ:
		copy(o, f.Levels)
	default:
		for i := range o {
			o[i] = float64(i)
		}
	}
	return o, nil
}

// Isel returns a new field holding the given positions along one
// dimension, in the given order.
func (f *Field) Isel(dim string, indices []int) (*Field, error) {
	k, err := f.Axis(dim)
	if err != nil {
		return nil, err
	}
	n := f.Data.Shape[k]
	for _, i := range indices {
		if i < 0 || i >= n {
			return nil, fmt.Errorf("meteodatalab: field %s: index %d outside dimension %s of length %d",
				f.Name, i, dim, n)
		}
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("meteodatalab: field %s: empty selection along %s", f.Name, dim)
	}
	shape := append([]int(nil), f.Data.Shape...)
	shape[k] = len(indices)
	o := &Field{
		Name: f.Name,
		Dims: append([]string(nil), f.Dims...),
		Data: sparse.ZerosDense(shape...),
		Meta: f.Meta,
	}
	copyCoords(o, f)
	o.selectCoords(dim, indices)

	outer, inner := 1, 1
	for i := 0; i < k; i++ {
		outer *= f.Data.Shape[i]
	}
	for i := k + 1; i < len(f.Data.Shape); i++ {
		inner *= f.Data.Shape[i]
	}
	for oi := 0; oi < outer; oi++ {
		for j, src := range indices {
			from := (oi*n + src) * inner
			to := (oi*len(indices) + j) * inner
			copy(o.Data.Elements[to:to+inner], f.Data.Elements[from:from+inner])
		}
	}
	return o, nil
}

func (f *Field) selectCoords(dim string, indices []int) {
	switch dim {
	case DimMember:
		o := make([]int, len(indices))
		for j, i := range indices {
			o[j] = f.Members[i]
		}
		f.Members = o
	case DimRefTime:
		o := make([]time.Time, len(indices))
		for j, i := range indices {
			o[j] = f.RefTimes[i]
		}
		f.RefTimes = o
	case DimLeadTime:
		o := make([]time.Duration, len(indices))
		for j, i := range indices {
			o[j] = f.LeadTimes[i]
		}
		f.LeadTimes = o
	case DimZ:
		o := make([]float64, len(indices))
		for j, i := range indices {
			o[j] = f.Levels[i]
		}
		f.Levels = o
	}
}

// Select returns a new field holding the positions along a dimension
// whose coordinate value satisfies keep, preserving order.
func (f *Field) Select(dim string, keep func(v float64) bool) (*Field, error) {
	coord, err := f.Coordinate(dim)
	if err != nil {
		return nil, err
	}
	var indices []int
	for i, v := range coord {
		if keep(v) {
			indices = append(indices, i)
		}
	}
	return f.Isel(dim, indices)
}

// Squeeze drops the named dimension, which must have length one.
func (f *Field) Squeeze(dim string) (*Field, error) {
	k, err := f.Axis(dim)
	if err != nil {
		return nil, err
	}
	if f.Data.Shape[k] != 1 {
		return nil, fmt.Errorf("meteodatalab: field %s: cannot squeeze dimension %s of length %d",
			f.Name, dim, f.Data.Shape[k])
	}
	dims := make([]string, 0, len(f.Dims)-1)
	shape := make([]int, 0, len(f.Dims)-1)
	for i, d := range f.Dims {
		if i == k {
			continue
		}
		dims = append(dims, d)
		shape = append(shape, f.Data.Shape[i])
	}
	o := &Field{
		Name: f.Name,
		Dims: dims,
		Data: sparse.ZerosDense(shape...),
		Meta: f.Meta,
	}
	copy(o.Data.Elements, f.Data.Elements)
	copyCoords(o, f)
	if dim == DimZ {
		o.Levels = nil
	}
	return o, nil
}

// ZLayout returns the element layout around the vertical axis: the
// product of the axis lengths before z, the number of levels, and the
// product of the axis lengths after z. The element at outer index o,
// level k and inner index i sits at (o*nz+k)*inner + i.
func (f *Field) ZLayout() (outer, nz, inner int, err error) {
	k, err := f.Axis(DimZ)
	if err != nil {
		return 0, 0, 0, err
	}
	outer, inner = 1, 1
	for i := 0; i < k; i++ {
		outer *= f.Data.Shape[i]
	}
	for i := k + 1; i < len(f.Data.Shape); i++ {
		inner *= f.Data.Shape[i]
	}
	return outer, f.Data.Shape[k], inner, nil
}

func subsetDims(sub, super []string) bool {
	for _, d := range sub {
		found := false
		for _, e := range super {
			if d == e {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// alignable checks that two fields live on the same grid and agree on
// the sizes and coordinate values of their shared dimensions.
func alignable(a, b *Field) error {
	if a.Meta.Grid != b.Meta.Grid {
		return &IncompatibleFieldsError{A: a.Name, B: b.Name, Reason: "different grids"}
	}
	for _, d := range a.Dims {
		if !b.HasDim(d) {
			continue
		}
		ai, _ := a.Axis(d)
		bi, _ := b.Axis(d)
		if a.Data.Shape[ai] != b.Data.Shape[bi] {
			return &IncompatibleFieldsError{A: a.Name, B: b.Name,
				Reason: fmt.Sprintf("dimension %s has lengths %d and %d", d, a.Data.Shape[ai], b.Data.Shape[bi])}
		}
		if !dimCoordsEqual(a, b, d) {
			return &IncompatibleFieldsError{A: a.Name, B: b.Name,
				Reason: fmt.Sprintf("coordinates differ along %s", d)}
		}
	}
	return nil
}

func dimCoordsEqual(a, b *Field, dim string) bool {
	switch dim {
	case DimMember:
		for i := range a.Members {
			if a.Members[i] != b.Members[i] {
				return false
			}
		}
	case DimRefTime:
		for i := range a.RefTimes {
			if !a.RefTimes[i].Equal(b.RefTimes[i]) {
				return false
			}
		}
	case DimLeadTime:
		for i := range a.LeadTimes {
			if a.LeadTimes[i] != b.LeadTimes[i] {
				return false
			}
		}
	case DimZ:
		for i := range a.Levels {
			if a.Levels[i] != b.Levels[i] {
				return false
			}
		}
	}
	return true
}

// expand gathers the elements of f into the layout given by dims and
// shape, repeating values along the dimensions f lacks. f's dimensions
// must be a subset of dims.
func expand(f *Field, dims []string, shape []int) *sparse.DenseArray {
	fstr := strides(f.Data.Shape)
	smap := make([]int, len(dims))
	for i, d := range dims {
		if j, err := f.Axis(d); err == nil {
			smap[i] = fstr[j]
		}
	}
	out := sparse.ZerosDense(shape...)
	idx := make([]int, len(dims))
	for i := range out.Elements {
		si := 0
		for ax, v := range idx {
			si += v * smap[ax]
		}
		out.Elements[i] = f.Data.Elements[si]
		for ax := len(idx) - 1; ax >= 0; ax-- {
			idx[ax]++
			if idx[ax] < shape[ax] {
				break
			}
			idx[ax] = 0
		}
	}
	return out
}

func strides(shape []int) []int {
	s := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = stride
		stride *= shape[i]
	}
	return s
}

// BroadcastTo returns the elements of f expanded to the layout of ref.
// If f has no vertical axis but ref does, the result follows ref's
// layout with the vertical axis removed, so that a surface field can be
// indexed alongside a volume field column by column.
func BroadcastTo(f, ref *Field) (*sparse.DenseArray, error) {
	if err := alignable(f, ref); err != nil {
		return nil, err
	}
	dims := make([]string, 0, len(ref.Dims))
	shape := make([]int, 0, len(ref.Dims))
	for i, d := range ref.Dims {
		if d == DimZ && !f.HasDim(DimZ) {
			continue
		}
		dims = append(dims, d)
		shape = append(shape, ref.Data.Shape[i])
	}
	if !subsetDims(f.Dims, dims) {
		return nil, &IncompatibleFieldsError{A: f.Name, B: ref.Name, Reason: "dimensions do not nest"}
	}
	return expand(f, dims, shape), nil
}

// Combine applies op element by element over two fields, broadcasting
// the one whose dimensions are a subset of the other's. The result
// carries the dimensions of the larger field and the metadata of a.
func Combine(name string, a, b *Field, op func(av, bv float64) float64) (*Field, error) {
	big, small := a, b
	swapped := false
	if !subsetDims(b.Dims, a.Dims) {
		if !subsetDims(a.Dims, b.Dims) {
			return nil, &IncompatibleFieldsError{A: a.Name, B: b.Name, Reason: "dimensions do not nest"}
		}
		big, small = b, a
		swapped = true
	}
	if err := alignable(a, b); err != nil {
		return nil, err
	}
	sm := expand(small, big.Dims, big.Data.Shape)
	o := big.EmptyLike(name)
	o.Meta = a.Meta
	if swapped {
		for i, bv := range big.Data.Elements {
			o.Data.Elements[i] = op(sm.Elements[i], bv)
		}
	} else {
		for i, bv := range big.Data.Elements {
			o.Data.Elements[i] = op(bv, sm.Elements[i])
		}
	}
	return o, nil
}

// Apply returns a new field with op applied to every element of f.
func Apply(name string, f *Field, op func(v float64) float64) *Field {
	o := f.EmptyLike(name)
	for i, v := range f.Data.Elements {
		o.Data.Elements[i] = op(v)
	}
	return o
}

// A Dataset holds the fields of one load request, keyed by parameter
// short name.
type Dataset map[string]*Field

// Param returns the field of the named parameter.
func (ds Dataset) Param(name string) (*Field, error) {
	f, ok := ds[name]
	if !ok {
		return nil, &MissingInputFieldError{Param: name}
	}
	return f, nil
}

// Add inserts a field under its name.
func (ds Dataset) Add(f *Field) { ds[f.Name] = f }

// Names returns the parameter names in sorted order.
func (ds Dataset) Names() []string {
	o := make([]string, 0, len(ds))
	for name := range ds {
		o = append(o, name)
	}
	sort.Strings(o)
	return o
}
