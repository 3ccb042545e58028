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

import "github.com/MeteoSwiss/meteodata-lab"

// Brn computes the bulk Richardson number from the pressure p in Pa,
// the air temperature t in K, the specific humidity qv, the staggered
// wind components u and v in m s-1, the heights of the layer interfaces
// hhl in m amsl and the surface height hsurf in m amsl. The virtual
// potential temperature is accumulated from the bottom of each column.
// Metadata other than the parameter identity is inherited from p.
func Brn(reg *meteodatalab.Registry, p, t, qv, u, v, hhl, hsurf *meteodatalab.Field) (*meteodatalab.Field, error) {
	tv, err := ThetaV(p, t, qv)
	if err != nil {
		return nil, err
	}
	ud, err := Destagger(reg, u, meteodatalab.DimX)
	if err != nil {
		return nil, err
	}
	vd, err := Destagger(reg, v, meteodatalab.DimY)
	if err != nil {
		return nil, err
	}
	hfl, err := halfToFull(hhl)
	if err != nil {
		return nil, err
	}
	uu, err := meteodatalab.BroadcastTo(ud, tv)
	if err != nil {
		return nil, err
	}
	vv, err := meteodatalab.BroadcastTo(vd, tv)
	if err != nil {
		return nil, err
	}
	hh, err := meteodatalab.BroadcastTo(hfl, tv)
	if err != nil {
		return nil, err
	}
	hs, err := meteodatalab.BroadcastTo(hsurf, tv)
	if err != nil {
		return nil, err
	}
	outer, nz, inner, err := tv.ZLayout()
	if err != nil {
		return nil, err
	}
	o := tv.EmptyLike("BRN")
	o.Meta = p.Meta
	for oi := 0; oi < outer; oi++ {
		for i := 0; i < inner; i++ {
			bottom := tv.Data.Elements[(oi*nz+nz-1)*inner+i]
			surf := hs.Elements[oi*inner+i]
			sum := 0.0
			for k := nz - 1; k >= 0; k-- {
				n := (oi*nz+k)*inner + i
				sum += tv.Data.Elements[n]
				num := meteodatalab.Gravity * (hh.Elements[n] - surf) *
					(tv.Data.Elements[n] - bottom) * float64(nz-k)
				den := sum * (uu.Elements[n]*uu.Elements[n] + vv.Elements[n]*vv.Elements[n])
				o.Data.Elements[n] = num / den
			}
		}
	}
	return derived(o, "BRN")
}
