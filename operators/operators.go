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

// Package operators derives meteorological parameters from model output
// fields: thermodynamic quantities, wind speed and direction,
// destaggering, the freezing level, time aggregation and vertical
// extrapolation. Operators validate their inputs, compute elementwise
// over the backing arrays with NaN propagation, and rewrite the
// parameter identity of the result while inheriting the remaining
// metadata from a designated primary input.
package operators

import (
	"fmt"

	"github.com/MeteoSwiss/meteodata-lab"
)

// builtins resolves the short names of derived parameters.
var builtins = meteodatalab.NewParamTable()

// derived rewrites the parameter identity of f to the named parameter,
// taking the triplet, the units and, where the definition restricts it,
// the level kind from the built-in parameter dictionary. Names missing
// from the field's own family dictionary fall back to the COSMO one,
// which carries the full set of derived parameters.
func derived(f *meteodatalab.Field, name string) (*meteodatalab.Field, error) {
	p, def, err := builtins.Resolve(name, f.Meta.Family)
	if err != nil {
		if p2, def2, err2 := builtins.Resolve(name, meteodatalab.FamilyCOSMO); err2 == nil {
			p, def, err = p2, def2, nil
		}
	}
	if err != nil {
		return nil, err
	}
	f.Name = name
	f.Meta = f.Meta.WithParam(p).WithUnits(def.Units)
	if def.Level != meteodatalab.LevelUnknown {
		f.Meta = f.Meta.WithLevel(def.Level)
	}
	return f, nil
}

// checkUnstaggered rejects fields that sit on horizontally staggered
// points.
func checkUnstaggered(fields ...*meteodatalab.Field) error {
	for _, f := range fields {
		if f.Meta.StaggeredHorizontal() {
			return fmt.Errorf("meteodatalab: field %s is on staggered points", f.Name)
		}
	}
	return nil
}
