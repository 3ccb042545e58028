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
	"sort"

	"github.com/ctessum/sparse"
	"github.com/ctessum/unit"
)

// InterpMode selects the interpolation weighting between the two model
// levels bracketing a pressure target.
type InterpMode int

const (
	// LinearInLnP interpolates linearly in the logarithm of pressure.
	LinearInLnP InterpMode = iota
	// LinearInP interpolates linearly in pressure.
	LinearInP
	// NearestSurface takes the value of the nearer bracketing level.
	NearestSurface
)

// Extrapolation is the policy for target levels that fall outside the
// source level range of a column.
type Extrapolation int

const (
	// ExtrapolateNone reports an OutOfRangeError. This is the default.
	ExtrapolateNone Extrapolation = iota
	// ExtrapolateMissing fills with NaN.
	ExtrapolateMissing
	// ExtrapolateNearest takes the value of the closest source level.
	ExtrapolateNearest
)

// FoldMode selects which crossing to use when the target coordinate
// field is not monotonic with height, so that an isosurface may fold
// over itself.
type FoldMode int

const (
	// FoldLow takes the crossing at the lowest height.
	FoldLow FoldMode = iota
	// FoldHigh takes the crossing at the highest height.
	FoldHigh
	// FoldUndef fills points with more than one crossing with NaN.
	FoldUndef
)

// Supported target ranges for pressure and potential temperature
// coordinates.
const (
	pTargetMin  = 1.0
	pTargetMax  = 120000.0
	thTargetMin = 1.0
	thTargetMax = 1000.0
	hFillMin    = -1000.0
	hFillMax    = 100000.0
)

// checkModelLevels reports an error unless f sits on model levels with
// the given vertical staggering.
func checkModelLevels(f *Field, originZ float64) error {
	if f.Meta.Level.VCoordType() != "model_level" {
		return fmt.Errorf("meteodatalab: field %s must be defined on model levels", f.Name)
	}
	if f.Meta.OriginZ != originZ {
		return fmt.Errorf("meteodatalab: field %s has vertical staggering %g, want %g",
			f.Name, f.Meta.OriginZ, originZ)
	}
	return nil
}

// broadcastPair expands two fields to a common layout: the dimensions
// of one must be a subset of the other's.
func broadcastPair(a, b *Field) (ref *Field, av, bv *sparse.DenseArray, err error) {
	if err := alignable(a, b); err != nil {
		return nil, nil, nil, err
	}
	switch {
	case subsetDims(b.Dims, a.Dims):
		ref = a
	case subsetDims(a.Dims, b.Dims):
		ref = b
	default:
		return nil, nil, nil, &IncompatibleFieldsError{A: a.Name, B: b.Name, Reason: "dimensions do not nest"}
	}
	return ref, expand(a, ref.Dims, ref.Data.Shape), expand(b, ref.Dims, ref.Data.Shape), nil
}

// InterpolateToPressure interpolates a model-level field to constant
// pressure surfaces. p is the pressure on the same model levels as f,
// in Pa. The targets are sorted into ascending order; each must lie
// within [1, 120000] Pa. Columns where a target has no bracketing
// levels follow the extrapolation policy.
func InterpolateToPressure(f, p *Field, targets []*unit.Unit, mode InterpMode, extrap Extrapolation) (*Field, error) {
	if err := checkModelLevels(f, f.Meta.OriginZ); err != nil {
		return nil, err
	}
	if err := checkModelLevels(p, f.Meta.OriginZ); err != nil {
		return nil, err
	}
	tc, err := toSI(targets, pressureDims)
	if err != nil {
		return nil, err
	}
	sort.Float64s(tc)
	for _, v := range tc {
		if v < pTargetMin || v > pTargetMax {
			return nil, &OutOfRangeError{Target: v, Min: pTargetMin, Max: pTargetMax}
		}
	}

	ref, fv, pv, err := broadcastPair(f, p)
	if err != nil {
		return nil, err
	}
	out, err := ref.EmptyWithLevels(f.Name, LevelPressure, tc)
	if err != nil {
		return nil, err
	}
	out.Meta = f.Meta.WithLevel(LevelPressure)

	outer, nz, inner, err := ref.ZLayout()
	if err != nil {
		return nil, err
	}
	nt := len(tc)
	for oi := 0; oi < outer; oi++ {
		for i := 0; i < inner; i++ {
			at := func(k int) (fk, pk float64) {
				return fv.Elements[(oi*nz+k)*inner+i], pv.Elements[(oi*nz+k)*inner+i]
			}
			for ti, p0 := range tc {
				v, ok := interpColumn(at, nz, p0, mode)
				if !ok {
					switch extrap {
					case ExtrapolateMissing:
						v = math.NaN()
					case ExtrapolateNearest:
						v = nearestLevelValue(at, nz, p0)
					default:
						min, max := columnRange(at, nz)
						return nil, &OutOfRangeError{Target: p0, Min: min, Max: max}
					}
				}
				out.Data.Elements[(oi*nt+ti)*inner+i] = v
			}
		}
	}
	return out, nil
}

// interpColumn finds the topmost pair of adjacent levels bracketing p0
// and interpolates between them. Level pressure must exceed p0 at the
// lower level and not exceed it at the upper one; a target exactly on a
// source level therefore reproduces that level's value.
func interpColumn(at func(k int) (fk, pk float64), nz int, p0 float64, mode InterpMode) (float64, bool) {
	// The candidate with the lowest pressure is the topmost crossing.
	best, bestP := -1, math.Inf(1)
	for k := 1; k < nz; k++ {
		_, p2 := at(k)
		_, p1 := at(k - 1)
		if p2 > p0 && p1 <= p0 && p2 < bestP {
			best, bestP = k, p2
		}
	}
	if best < 0 {
		return 0, false
	}
	f2, p2 := at(best)
	f1, p1 := at(best - 1)
	var ratio float64
	switch mode {
	case LinearInP:
		ratio = (p0 - p1) / (p2 - p1)
	case LinearInLnP:
		ratio = (math.Log(p0) - math.Log(p1)) / (math.Log(p2) - math.Log(p1))
	case NearestSurface:
		if math.Abs(p0-p1) >= math.Abs(p0-p2) {
			ratio = 1
		} else {
			ratio = 0
		}
	}
	return (1-ratio)*f1 + ratio*f2, true
}

// nearestLevelValue returns the field value at the level whose pressure
// is closest to p0.
func nearestLevelValue(at func(k int) (fk, pk float64), nz int, p0 float64) float64 {
	best, bestDist := math.NaN(), math.Inf(1)
	for k := 0; k < nz; k++ {
		fk, pk := at(k)
		if d := math.Abs(pk - p0); d < bestDist {
			best, bestDist = fk, d
		}
	}
	return best
}

func columnRange(at func(k int) (fk, pk float64), nz int) (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for k := 0; k < nz; k++ {
		if _, pk := at(k); !math.IsNaN(pk) {
			if pk < min {
				min = pk
			}
			if pk > max {
				max = pk
			}
		}
	}
	return min, max
}

// InterpolateToTheta interpolates a model-level field to isentropic
// surfaces. th is the potential temperature on the same full model
// levels as f, in K, and h the corresponding level heights, used to
// select between crossings when the isentrope folds. Points without a
// crossing are filled with NaN.
func InterpolateToTheta(f *Field, mode FoldMode, th, h *Field, targets []*unit.Unit) (*Field, error) {
	tc, err := toSI(targets, temperatureDims)
	if err != nil {
		return nil, err
	}
	for _, v := range tc {
		if v < thTargetMin || v > thTargetMax {
			return nil, &OutOfRangeError{Target: v, Min: thTargetMin, Max: thTargetMax}
		}
	}
	out, err := interpolateFolded(f, mode, th, h, tc)
	if err != nil {
		return nil, err
	}
	out.Meta = f.Meta.WithLevel(LevelIsentropic)
	return out, nil
}

// InterpolateToCoord interpolates a model-level field to isosurfaces of
// an arbitrary target field on the same levels. The result's levels
// have no encoding target. FoldUndef is not supported.
func InterpolateToCoord(f *Field, mode FoldMode, tcField, h *Field, targets []float64) (*Field, error) {
	if mode == FoldUndef {
		return nil, fmt.Errorf("meteodatalab: fold mode undef is not supported for arbitrary coordinates")
	}
	out, err := interpolateFolded(f, mode, tcField, h, targets)
	if err != nil {
		return nil, err
	}
	out.Meta = f.Meta.WithLevel(LevelIsosurface)
	return out, nil
}

// interpolateFolded locates, per column and target value, the crossing
// of the coordinate field selected by the fold mode and interpolates f
// across it.
func interpolateFolded(f *Field, mode FoldMode, coord, h *Field, targets []float64) (*Field, error) {
	for _, fld := range []*Field{f, coord, h} {
		if err := checkModelLevels(fld, 0); err != nil {
			return nil, err
		}
	}
	ref, fv, cv, err := broadcastPair(f, coord)
	if err != nil {
		return nil, err
	}
	hv, err := BroadcastTo(h, ref)
	if err != nil {
		return nil, err
	}
	out, err := ref.EmptyWithLevels(f.Name, f.Meta.Level, targets)
	if err != nil {
		return nil, err
	}
	out.Meta = f.Meta

	outer, nz, inner, err := ref.ZLayout()
	if err != nil {
		return nil, err
	}
	nt := len(targets)
	for oi := 0; oi < outer; oi++ {
		for i := 0; i < inner; i++ {
			el := func(k int) (fk, ck, hk float64) {
				n := (oi*nz + k) * inner
				return fv.Elements[n+i], cv.Elements[n+i], hv.Elements[n+i]
			}
			for ti, c0 := range targets {
				out.Data.Elements[(oi*nt+ti)*inner+i] = foldedColumn(el, nz, c0, mode)
			}
		}
	}
	return out, nil
}

func foldedColumn(el func(k int) (fk, ck, hk float64), nz int, c0 float64, mode FoldMode) float64 {
	best := -1
	bestH := hFillMax
	if mode == FoldHigh {
		bestH = hFillMin
	}
	crossings := 0
	for k := 1; k < nz; k++ {
		_, c2, h2 := el(k)
		_, c1, _ := el(k - 1)
		if !((c2 >= c0 && c1 <= c0) || (c2 <= c0 && c1 >= c0)) {
			continue
		}
		if math.IsNaN(h2) {
			continue
		}
		crossings++
		switch mode {
		case FoldHigh:
			if h2 > bestH {
				best, bestH = k, h2
			}
		default:
			if h2 < bestH {
				best, bestH = k, h2
			}
		}
	}
	if best < 0 {
		return math.NaN()
	}
	if mode == FoldUndef && crossings > 1 {
		return math.NaN()
	}
	f2, c2, _ := el(best)
	f1, c1, _ := el(best - 1)
	ratio := 0.0
	if math.Abs(c2-c1) > 0 {
		ratio = (c0 - c1) / (c2 - c1)
	}
	return (1-ratio)*f1 + ratio*f2
}

// ScanDirection gives the scan order of FindLevelCrossing.
type ScanDirection int

const (
	// ScanDown scans from the first level (model top) toward the last.
	ScanDown ScanDirection = iota
	// ScanUp scans from the last level toward the first.
	ScanUp
)

// FindLevelCrossing scans each column of f in the given direction and
// returns the value of coord at the first place f crosses threshold. A
// point where f equals the threshold exactly counts as the crossing;
// between samples the coordinate is interpolated linearly. Columns
// without a crossing are set to NaN.
func FindLevelCrossing(f, coord *Field, threshold float64, dir ScanDirection) (*Field, error) {
	ref, fv, cv, err := broadcastPair(f, coord)
	if err != nil {
		return nil, err
	}
	outer, nz, inner, err := ref.ZLayout()
	if err != nil {
		return nil, err
	}
	tmpl := ref.EmptyLike(f.Name)
	tmpl.Meta = f.Meta
	out, err := tmpl.EmptyWithoutZ(f.Name)
	if err != nil {
		return nil, err
	}
	out.Meta = f.Meta.WithLevel(LevelSurface)

	for oi := 0; oi < outer; oi++ {
		for i := 0; i < inner; i++ {
			el := func(k int) (fk, ck float64) {
				n := (oi*nz + k) * inner
				return fv.Elements[n+i], cv.Elements[n+i]
			}
			out.Data.Elements[oi*inner+i] = scanCrossing(el, nz, threshold, dir)
		}
	}
	return out, nil
}

func scanCrossing(el func(k int) (fk, ck float64), nz int, threshold float64, dir ScanDirection) float64 {
	order := make([]int, nz)
	for k := range order {
		if dir == ScanUp {
			order[k] = nz - 1 - k
		} else {
			order[k] = k
		}
	}
	prev := -1
	for _, k := range order {
		fk, ck := el(k)
		if fk == threshold {
			return ck
		}
		if prev >= 0 {
			fp, cp := el(prev)
			if (fp-threshold)*(fk-threshold) < 0 {
				frac := (threshold - fp) / (fk - fp)
				return cp + frac*(ck-cp)
			}
		}
		prev = k
	}
	return math.NaN()
}
