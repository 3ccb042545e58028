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

// RelHum computes the relative humidity in percent over liquid water
// from the specific humidity qv, the temperature t in K and the
// pressure p in Pa. The result is bounded below by zero; clip also
// bounds it above by 100. Metadata other than the parameter identity is
// inherited from t.
func RelHum(qv, t, p *meteodatalab.Field, clip bool) (*meteodatalab.Field, error) {
	sat, err := meteodatalab.Combine("RELHUM", t, p, func(tv, pv float64) float64 {
		return SpecificHumidityFromVaporPressure(SatVaporPressureWater(tv), pv)
	})
	if err != nil {
		return nil, err
	}
	o, err := meteodatalab.Combine("RELHUM", sat, qv, func(qs, qvv float64) float64 {
		r := 100 * qvv / qs
		if r < 0 {
			return 0
		}
		if clip && r > 100 {
			return 100
		}
		return r
	})
	if err != nil {
		return nil, err
	}
	return derived(o, "RELHUM")
}
