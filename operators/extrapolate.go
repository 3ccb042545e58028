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

package operators

import (
	"fmt"
	"math"

	"github.com/MeteoSwiss/meteodata-lab"
)

// Constants of the IFS FULLPOS extrapolation below the surface.
const (
	extrapLapseRate = 0.0065 // K m-1
	extrapH1        = 2000.0
	extrapH2        = 2500.0
	extrapT1        = 298.0
)

func extrapTZeroPrime(t, h float64) float64 {
	tt := t + extrapLapseRate*h
	tMin := math.Min(tt, extrapT1)
	if h > extrapH2 {
		return tMin
	}
	return 0.5*tMin + 0.5*tt
}

// extrapLapse is the effective lapse rate, reduced over high terrain so
// that extrapolated valley temperatures stay bounded.
func extrapLapse(h, t float64) float64 {
	if h < extrapH1 {
		return extrapLapseRate
	}
	return math.Max(extrapTZeroPrime(t, h)-t, 0) / h
}

// TemperatureSfc2P extrapolates the surface temperature tSfc in K to
// the target pressure level pTarget in Pa, from the surface height hSfc
// in m and the surface pressure pSfc in Pa. The extrapolation assumes a
// constant lapse rate and expands the hydrostatic relation in a
// dimensionless variable; its results fill levels below the surface and
// are not physically meaningful. Metadata other than the parameter
// identity is inherited from tSfc.
func TemperatureSfc2P(tSfc, hSfc, pSfc *meteodatalab.Field, pTarget float64) (*meteodatalab.Field, error) {
	la, err := meteodatalab.Combine("T", tSfc, hSfc, func(t, h float64) float64 {
		return extrapLapse(h, t)
	})
	if err != nil {
		return nil, err
	}
	y, err := meteodatalab.Combine("T", la, pSfc, func(l, ps float64) float64 {
		return l * meteodatalab.RDry / meteodatalab.Gravity * math.Log(pTarget/ps)
	})
	if err != nil {
		return nil, err
	}
	res, err := meteodatalab.Combine("T", tSfc, y, func(t, yv float64) float64 {
		return t * (1 + yv + yv*yv/2 + yv*yv*yv/6)
	})
	if err != nil {
		return nil, err
	}
	return isobaric(res, "T", pTarget)
}

// GeopotentialSfc2P extrapolates the surface geopotential to the target
// pressure level pTarget in Pa, from the surface height hSfc in m, the
// surface temperature tSfc in K and the surface pressure pSfc in Pa.
// The same caution as for TemperatureSfc2P applies, with the lapse rate
// held constant. Metadata other than the parameter identity is
// inherited from tSfc.
func GeopotentialSfc2P(hSfc, tSfc, pSfc *meteodatalab.Field, pTarget float64) (*meteodatalab.Field, error) {
	y := meteodatalab.Apply("FI", pSfc, func(ps float64) float64 {
		return extrapLapseRate * meteodatalab.RDry / meteodatalab.Gravity * math.Log(pTarget/ps)
	})
	a, err := meteodatalab.Combine("FI", tSfc, pSfc, func(t, ps float64) float64 {
		return -meteodatalab.RDry * t * math.Log(pTarget/ps)
	})
	if err != nil {
		return nil, err
	}
	b, err := meteodatalab.Combine("FI", a, y, func(av, yv float64) float64 {
		return av * (1 + yv/2 + yv*yv/6)
	})
	if err != nil {
		return nil, err
	}
	res, err := meteodatalab.Combine("FI", hSfc, b, func(h, bv float64) float64 {
		return h*meteodatalab.Gravity + bv
	})
	if err != nil {
		return nil, err
	}
	res.Meta = tSfc.Meta
	return isobaric(res, "FI", pTarget)
}

// ConstantK2P extends the lowermost model level of a field to the
// target pressure level pTarget in Pa. This is the extrapolation used
// for all parameters without a dedicated one.
func ConstantK2P(f *meteodatalab.Field, pTarget float64) (*meteodatalab.Field, error) {
	k, err := f.Axis(meteodatalab.DimZ)
	if err != nil {
		return nil, err
	}
	o, err := f.Isel(meteodatalab.DimZ, []int{f.Data.Shape[k] - 1})
	if err != nil {
		return nil, err
	}
	o.Levels = []float64{pTarget}
	o.Meta = o.Meta.WithLevel(meteodatalab.LevelPressure)
	return o, nil
}

// isobaric wraps a surface-shaped result as a single pressure level.
func isobaric(res *meteodatalab.Field, name string, pTarget float64) (*meteodatalab.Field, error) {
	if res.HasDim(meteodatalab.DimZ) {
		return nil, fmt.Errorf("meteodatalab: surface input field %s has a vertical axis", res.Name)
	}
	o, err := res.EmptyWithLevels(name, meteodatalab.LevelPressure, []float64{pTarget})
	if err != nil {
		return nil, err
	}
	copy(o.Data.Elements, res.Data.Elements)
	return derived(o, name)
}
