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

// Package meteodatalab processes gridded meteorological model output.
// It decodes GRIB messages into labeled multi-dimensional fields,
// interpolates them between vertical coordinate systems, resamples them
// onto other grids and coordinate reference systems, and encodes the
// results back into GRIB. Derived parameters are computed by the
// operators subpackage.
package meteodatalab

// Version is the version of this release of meteodata-lab.
const Version = "0.5.0"
