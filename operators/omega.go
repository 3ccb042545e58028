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

	"github.com/MeteoSwiss/meteodata-lab"
)

// OmegaSlope converts the eta coordinate vertical velocity etadot in
// s-1 to the pressure vertical velocity etadot*dp/deta in Pa s-1, as
// required by FLEXPART. ps is the unreduced surface pressure in Pa and
// c the hybrid level coefficients bracketing the levels of etadot. The
// layer values are unwound into an alternating cumulative difference
// from the top. Metadata other than the parameter identity is inherited
// from etadot.
func OmegaSlope(ps, etadot *meteodatalab.Field, c *meteodatalab.HybridCoefficients) (*meteodatalab.Field, error) {
	outer, nz, inner, err := etadot.ZLayout()
	if err != nil {
		return nil, err
	}
	if c.NFull() != nz {
		return nil, fmt.Errorf("meteodatalab: hybrid coefficients span %d levels but field %s has %d",
			c.NFull(), etadot.Name, nz)
	}
	pv, err := meteodatalab.BroadcastTo(ps, etadot)
	if err != nil {
		return nil, err
	}
	o := etadot.EmptyLike("omega")
	o.Meta = etadot.Meta.
		WithParam(meteodatalab.Param{Discipline: 0, Category: 2, Number: 32, ShortName: "omega"}).
		WithUnits("Pa s-1")
	for oi := 0; oi < outer; oi++ {
		for i := 0; i < inner; i++ {
			psv := pv.Elements[oi*inner+i]
			t := 0.0
			for k := 0; k < nz; k++ {
				dak := c.AK[k+1] - c.AK[k]
				dbk := c.BK[k+1] - c.BK[k]
				n := (oi*nz+k)*inner + i
				v := 2 * etadot.Data.Elements[n] * psv * (dak/psv + dbk) /
					(dak/meteodatalab.SurfacePressureRef + dbk)
				t = v - t
				o.Data.Elements[n] = t
			}
		}
	}
	return o, nil
}
