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

// speedNames and directionNames map the x wind component to the name of
// the derived parameter.
var (
	speedNames     = map[string]string{"U": "SP", "U_10M": "SP_10M", "u": "SP", "u_10m": "SP_10M"}
	directionNames = map[string]string{"U": "DD", "U_10M": "DD_10M", "u": "DD", "u_10m": "DD_10M"}
)

// WindSpeed computes the horizontal wind speed from the two wind
// components. Terrain following grid deformation is not accounted for;
// the components must be located on the mass points. Metadata other
// than the parameter identity is inherited from u.
func WindSpeed(u, v *meteodatalab.Field) (*meteodatalab.Field, error) {
	if err := checkUnstaggered(u, v); err != nil {
		return nil, err
	}
	name, ok := speedNames[u.Name]
	if !ok {
		return nil, &meteodatalab.UnknownParameterError{ShortName: u.Name, Family: string(u.Meta.Family)}
	}
	o, err := meteodatalab.Combine(name, u, v, func(uv, vv float64) float64 {
		return math.Hypot(uv, vv)
	})
	if err != nil {
		return nil, err
	}
	return derived(o, name)
}

// WindDirection computes the horizontal wind direction with respect to
// geographic north in degrees. The components must be located on the
// mass points of a regular or rotated grid; components in the native
// reference frame of a rotated grid are realigned to geographic east
// and north first. Metadata other than the parameter identity is
// inherited from u.
func WindDirection(reg *meteodatalab.Registry, u, v *meteodatalab.Field) (*meteodatalab.Field, error) {
	if err := checkUnstaggered(u, v); err != nil {
		return nil, err
	}
	name, ok := directionNames[u.Name]
	if !ok {
		return nil, &meteodatalab.UnknownParameterError{ShortName: u.Name, Family: string(u.Meta.Family)}
	}
	ug, vg := u, v
	switch {
	case u.Meta.VRef == meteodatalab.VRefNative && v.Meta.VRef == meteodatalab.VRefNative:
		var err error
		ug, vg, err = meteodatalab.RotateVRef(reg, u, v)
		if err != nil {
			return nil, err
		}
	case u.Meta.VRef == meteodatalab.VRefGeo && v.Meta.VRef == meteodatalab.VRefGeo:
	default:
		return nil, &meteodatalab.IncompatibleFieldsError{
			A: u.Name, B: v.Name, Reason: "differing vector reference frames",
		}
	}
	o, err := meteodatalab.Combine(name, ug, vg, func(uv, vv float64) float64 {
		return 180/math.Pi*math.Atan2(uv, vv) + 180
	})
	if err != nil {
		return nil, err
	}
	o.Meta = u.Meta
	return derived(o, name)
}
