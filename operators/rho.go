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

// Rho computes the total density of the air mixture in kg m-3, assuming
// the perfect gas law with the pressure as the sum of the partial
// pressures. t is the temperature in K, p the pressure in Pa, qv the
// specific humidity and qc the specific cloud water content. The
// specific cloud ice content qi and the specific content of
// precipitating species qp are optional and may be nil. Metadata other
// than the parameter identity is inherited from p.
func Rho(t, p, qv, qc, qi, qp *meteodatalab.Field) (*meteodatalab.Field, error) {
	q := qc
	var err error
	if qi != nil {
		q, err = meteodatalab.Combine("RHO", q, qi, func(a, b float64) float64 { return a + b })
		if err != nil {
			return nil, err
		}
	}
	if qp != nil {
		q, err = meteodatalab.Combine("RHO", q, qp, func(a, b float64) float64 { return a + b })
		if err != nil {
			return nil, err
		}
	}
	den, err := meteodatalab.Combine("RHO", qv, q, func(qvv, qs float64) float64 {
		return 1 + rvdO*qvv - qs
	})
	if err != nil {
		return nil, err
	}
	den, err = meteodatalab.Combine("RHO", t, den, func(tv, d float64) float64 {
		return meteodatalab.RDry * tv * d
	})
	if err != nil {
		return nil, err
	}
	o, err := meteodatalab.Combine("RHO", p, den, func(pv, d float64) float64 {
		return pv / d
	})
	if err != nil {
		return nil, err
	}
	return derived(o, "RHO")
}
