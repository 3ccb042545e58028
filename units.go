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

package meteodatalab

import (
	"fmt"

	"github.com/ctessum/unit"
)

// Dimensions of the quantities that can act as vertical target
// coordinates.
var (
	pressureDims = unit.Dimensions{
		unit.MassDim:   1,
		unit.LengthDim: -1,
		unit.TimeDim:   -2,
	}
	temperatureDims = unit.Dimensions{unit.TemperatureDim: 1}
	lengthDims      = unit.Dimensions{unit.LengthDim: 1}
)

// Pa returns the given pressure values as dimensioned quantities in
// pascals.
func Pa(values ...float64) []*unit.Unit {
	return newUnits(values, 1, pressureDims)
}

// HPa returns the given pressure values, expressed in hectopascals, as
// dimensioned quantities.
func HPa(values ...float64) []*unit.Unit {
	return newUnits(values, 100, pressureDims)
}

// Kelvin returns the given temperature values as dimensioned quantities
// in kelvins.
func Kelvin(values ...float64) []*unit.Unit {
	return newUnits(values, 1, temperatureDims)
}

// CentiKelvin returns the given temperature values, expressed in
// centikelvins, as dimensioned quantities.
func CentiKelvin(values ...float64) []*unit.Unit {
	return newUnits(values, 0.01, temperatureDims)
}

// Meters returns the given length values as dimensioned quantities in
// meters.
func Meters(values ...float64) []*unit.Unit {
	return newUnits(values, 1, lengthDims)
}

func newUnits(values []float64, factor float64, d unit.Dimensions) []*unit.Unit {
	o := make([]*unit.Unit, len(values))
	for i, v := range values {
		o[i] = unit.New(v*factor, d)
	}
	return o
}

// toSI checks that every target carries the wanted dimensions and
// returns the plain SI values.
func toSI(targets []*unit.Unit, want unit.Dimensions) ([]float64, error) {
	o := make([]float64, len(targets))
	for i, t := range targets {
		if err := t.Check(want); err != nil {
			return nil, fmt.Errorf("meteodatalab: target coordinate %d: %v", i, err)
		}
		o[i] = t.Value()
	}
	return o, nil
}
