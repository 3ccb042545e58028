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
	"math"

	"github.com/MeteoSwiss/meteodata-lab"
)

// freezingPoint is the temperature of the zero degree isotherm in K.
const freezingPoint = 273.15

// FreezingLevelHeight computes the height of the zero degree isotherm
// in m amsl from the air temperature t in K and the heights of the
// layer interfaces hhl in m amsl.
//
// Each column is searched from the top of the atmosphere downwards for
// a layer mid surface at or above freezing whose upper neighbor is
// below freezing; when several qualify, the highest one wins. The
// height is interpolated linearly in temperature between the two mid
// surfaces. Columns without such a layer, and heights at or below zero,
// are set to NaN. With extrapolate, columns that are below freezing
// throughout but warm toward the ground are extended past the lowest
// layer with the same linear model, so the result may lie below the
// surface.
func FreezingLevelHeight(t, hhl *meteodatalab.Field, extrapolate bool) (*meteodatalab.Field, error) {
	hfl, err := halfToFull(hhl)
	if err != nil {
		return nil, err
	}
	hv, err := meteodatalab.BroadcastTo(hfl, t)
	if err != nil {
		return nil, err
	}
	outer, nz, inner, err := t.ZLayout()
	if err != nil {
		return nil, err
	}
	o, err := t.EmptyWithoutZ("HZEROCL")
	if err != nil {
		return nil, err
	}
	for oi := 0; oi < outer; oi++ {
		for i := 0; i < inner; i++ {
			at := func(k int) (tk, hk float64) {
				n := (oi*nz+k)*inner + i
				return t.Data.Elements[n], hv.Elements[n]
			}
			o.Data.Elements[oi*inner+i] = freezingHeight(at, nz, extrapolate)
		}
	}
	return derived(o, "HZEROCL")
}

func freezingHeight(at func(k int) (tk, hk float64), nz int, extrapolate bool) float64 {
	best := -1
	bestH := math.Inf(-1)
	for k := 1; k < nz; k++ {
		tk, hk := at(k)
		ta, _ := at(k - 1)
		if tk >= freezingPoint && ta < freezingPoint && hk > bestH {
			best, bestH = k, hk
		}
	}
	if best < 0 && extrapolate && nz >= 2 {
		allBelow := true
		for k := 0; k < nz; k++ {
			if tk, _ := at(k); !(tk < freezingPoint) {
				allBelow = false
				break
			}
		}
		tn, _ := at(nz - 1)
		ta, _ := at(nz - 2)
		if allBelow && tn-ta > 1e-10 {
			best = nz - 1
		}
	}
	if best < 0 {
		return math.NaN()
	}
	t1, h1 := at(best - 1)
	t2, h2 := at(best)
	h := h1 + (h2-h1)*(freezingPoint-t1)/(t2-t1)
	if !(h > 0) {
		return math.NaN()
	}
	return h
}
