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

	"github.com/ctessum/cdf"
)

// HybridCoefficients are the A and B weights defining the hybrid
// pressure coordinate on the model half levels: the pressure of half
// level k above surface pressure ps is AK[k] + BK[k]*ps. Level 1 is the
// model top.
type HybridCoefficients struct {
	AK, BK []float64
}

// NHalf returns the number of half levels.
func (c *HybridCoefficients) NHalf() int { return len(c.AK) }

// NFull returns the number of full levels.
func (c *HybridCoefficients) NFull() int { return len(c.AK) - 1 }

// Validate checks that the coefficients define a monotonic pressure
// axis at the reference surface pressure.
func (c *HybridCoefficients) Validate() error {
	if len(c.AK) != len(c.BK) {
		return fmt.Errorf("meteodatalab: %d A coefficients but %d B coefficients",
			len(c.AK), len(c.BK))
	}
	if len(c.AK) < 2 {
		return fmt.Errorf("meteodatalab: %d hybrid levels, need at least 2", len(c.AK))
	}
	p := func(k int) float64 { return c.AK[k] + c.BK[k]*SurfacePressureRef }
	increasing := p(1) > p(0)
	for k := 1; k < len(c.AK); k++ {
		if (p(k) > p(k-1)) != increasing || p(k) == p(k-1) {
			return &NonMonotonicLevelsError{Index: k}
		}
	}
	return nil
}

// CoefficientsFromPV splits a GRIB vertical coordinate parameter array
// into hybrid coefficients: the first half holds A, the second half B.
func CoefficientsFromPV(pv []float64) (*HybridCoefficients, error) {
	if len(pv) == 0 || len(pv)%2 != 0 {
		return nil, fmt.Errorf("meteodatalab: vertical coordinate parameter array has %d entries, need a positive even number", len(pv))
	}
	n := len(pv) / 2
	c := &HybridCoefficients{
		AK: append([]float64(nil), pv[:n]...),
		BK: append([]float64(nil), pv[n:]...),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadCoefficientsCDF reads the hybrid coefficients from the vct_a and
// vct_b variables of a NetCDF vertical grid description.
func LoadCoefficientsCDF(file *cdf.File) (*HybridCoefficients, error) {
	ak, err := cdfFloats(file, "vct_a")
	if err != nil {
		return nil, err
	}
	bk, err := cdfFloats(file, "vct_b")
	if err != nil {
		return nil, err
	}
	c := &HybridCoefficients{AK: ak, BK: bk}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// cdfFloats reads a whole NetCDF variable as float64 values.
func cdfFloats(file *cdf.File, name string) ([]float64, error) {
	dims := file.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("meteodatalab: read netcdf: variable %v not in file", name)
	}
	r := file.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("meteodatalab: read netcdf variable %s: %v", name, err)
	}
	switch b := buf.(type) {
	case []float64:
		return b, nil
	case []float32:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int32:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("meteodatalab: read netcdf variable %s: unsupported type %T", name, buf)
	}
}

// HalfLevelPressure expands the surface pressure field to the pressure
// on every model half level.
func HalfLevelPressure(c *HybridCoefficients, ps *Field) (*Field, error) {
	if ps.HasDim(DimZ) {
		return nil, fmt.Errorf("meteodatalab: surface pressure field %s has a vertical axis", ps.Name)
	}
	name := "P"
	if ps.Meta.Family == FamilyICON {
		name = "pres"
	}
	nz := c.NHalf()
	levels := make([]float64, nz)
	for k := range levels {
		levels[k] = float64(k + 1)
	}
	o, err := ps.EmptyWithLevels(name, LevelModelHalf, levels)
	if err != nil {
		return nil, err
	}
	o.Meta = o.Meta.WithParam(Param{Discipline: 0, Category: 3, Number: 0, ShortName: name}).
		WithUnits("Pa")
	outer := len(ps.Data.Elements)
	inner := horizontalSize(ps)
	outer /= inner
	for oi := 0; oi < outer; oi++ {
		for k := 0; k < nz; k++ {
			for i := 0; i < inner; i++ {
				p := ps.Data.Elements[oi*inner+i]
				o.Data.Elements[(oi*nz+k)*inner+i] = c.AK[k] + c.BK[k]*p
			}
		}
	}
	return o, nil
}

// FullLevelPressure expands the surface pressure field to the pressure
// on every model full level, taken as the mean of the bracketing half
// levels.
func FullLevelPressure(c *HybridCoefficients, ps *Field) (*Field, error) {
	half, err := HalfLevelPressure(c, ps)
	if err != nil {
		return nil, err
	}
	nz := c.NFull()
	levels := make([]float64, nz)
	for k := range levels {
		levels[k] = float64(k + 1)
	}
	o, err := ps.EmptyWithLevels(half.Name, LevelModelFull, levels)
	if err != nil {
		return nil, err
	}
	o.Meta = half.Meta.WithLevel(LevelModelFull)
	outer, nhalf, inner, err := half.ZLayout()
	if err != nil {
		return nil, err
	}
	for oi := 0; oi < outer; oi++ {
		for k := 0; k < nz; k++ {
			for i := 0; i < inner; i++ {
				a := half.Data.Elements[(oi*nhalf+k)*inner+i]
				b := half.Data.Elements[(oi*nhalf+k+1)*inner+i]
				o.Data.Elements[(oi*nz+k)*inner+i] = 0.5 * (a + b)
			}
		}
	}
	return o, nil
}

// LevelHeights estimates the height above the surface of every model
// full level for an isothermal atmosphere at temperature t0, from the
// hydrostatic relation z = (R_d*t0/g)*ln(ps/p).
func LevelHeights(c *HybridCoefficients, ps *Field, t0 float64) (*Field, error) {
	p, err := FullLevelPressure(c, ps)
	if err != nil {
		return nil, err
	}
	name := "HFL"
	if ps.Meta.Family == FamilyICON {
		name = "z_mc"
	}
	o := p.EmptyLike(name)
	o.Meta = p.Meta.WithParam(Param{Discipline: 0, Category: 3, Number: 6, ShortName: name}).
		WithUnits("m")
	scale := RDry * t0 / Gravity
	outer, nz, inner, err := p.ZLayout()
	if err != nil {
		return nil, err
	}
	for oi := 0; oi < outer; oi++ {
		for k := 0; k < nz; k++ {
			for i := 0; i < inner; i++ {
				psurf := ps.Data.Elements[oi*inner+i]
				pk := p.Data.Elements[(oi*nz+k)*inner+i]
				o.Data.Elements[(oi*nz+k)*inner+i] = scale * math.Log(psurf/pk)
			}
		}
	}
	return o, nil
}

// horizontalSize returns the number of horizontal points of a field.
func horizontalSize(f *Field) int {
	n := 1
	for i, d := range f.Dims {
		if d == DimY || d == DimX || d == DimCell {
			n *= f.Data.Shape[i]
		}
	}
	return n
}
