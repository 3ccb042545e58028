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

// SatVaporPressureWater returns the pressure in Pa of water vapor at
// equilibrium over liquid water at temperature t in K.
func SatVaporPressureWater(t float64) float64 {
	return meteodatalab.B1 * math.Exp(meteodatalab.B2W*(t-meteodatalab.B3)/(t-meteodatalab.B4W))
}

// SpecificHumidityFromVaporPressure returns the specific water vapor
// content from the vapor pressure pv and the total pressure p, both in
// Pa, assuming the perfect gas law and approximating the specific
// content by the mixing ratio. The denominator is bounded away from
// zero.
func SpecificHumidityFromVaporPressure(pv, p float64) float64 {
	return rdv * pv / math.Max(p-oRdv*pv, 1)
}

// VaporPressureFromSpecificHumidity returns the partial pressure of
// water vapor, in the unit of p, from the specific humidity qv and the
// total pressure p.
func VaporPressureFromSpecificHumidity(qv, p float64) float64 {
	return qv * p / (rdv + oRdv*qv)
}
