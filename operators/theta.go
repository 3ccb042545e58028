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

// thetaRefPressure is the reference pressure of the potential
// temperature in Pa.
const thetaRefPressure = 1e5

// Theta computes the potential temperature in K from the pressure p in
// Pa and the air temperature t in K. Metadata other than the parameter
// identity is inherited from p.
func Theta(p, t *meteodatalab.Field) (*meteodatalab.Field, error) {
	o, err := meteodatalab.Combine("PT", p, t, func(pv, tv float64) float64 {
		return math.Pow(thetaRefPressure/pv, rdocp) * tv
	})
	if err != nil {
		return nil, err
	}
	return derived(o, "PT")
}

// ThetaV computes the virtual potential temperature in K from the
// pressure p in Pa, the air temperature t in K and the specific
// humidity qv. Metadata other than the parameter identity is inherited
// from p.
func ThetaV(p, t, qv *meteodatalab.Field) (*meteodatalab.Field, error) {
	th, err := meteodatalab.Combine("THETA_V", p, t, func(pv, tv float64) float64 {
		return math.Pow(thetaRefPressure/pv, rdocp) * tv
	})
	if err != nil {
		return nil, err
	}
	o, err := meteodatalab.Combine("THETA_V", th, qv, func(thv, qvv float64) float64 {
		return thv * (1 + rvdO*qvv/(1-qvv))
	})
	if err != nil {
		return nil, err
	}
	return derived(o, "THETA_V")
}
