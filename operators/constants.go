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

// Derived constants of moist air.
const (
	// rdv is the ratio of the gas constants of dry air and water vapor.
	rdv  = meteodatalab.RDry / meteodatalab.RVapor
	oRdv = 1 - rdv
	// rvd is the inverse ratio, rvdO its excess over one.
	rvd  = meteodatalab.RVapor / meteodatalab.RDry
	rvdO = rvd - 1
	// rdocp is the Poisson constant of dry air.
	rdocp = meteodatalab.RDry / meteodatalab.CpDry
)
