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

// Destagger moves a field from staggered points to the mass points
// along one dimension.
//
// Along x and y the field keeps its size: the first slot of the
// staggered dimension has no left neighbor and is duplicated, the rest
// are interpolated to the midpoints. The grid origin moves back by half
// a step and the result is registered as a new grid. Along z a field on
// the layer interfaces becomes a field on the layer mid surfaces, one
// level shorter.
func Destagger(reg *meteodatalab.Registry, f *meteodatalab.Field, dim string) (*meteodatalab.Field, error) {
	switch dim {
	case meteodatalab.DimX, meteodatalab.DimY:
		return destaggerHorizontal(reg, f, dim)
	case meteodatalab.DimZ:
		return halfToFull(f)
	}
	return nil, &meteodatalab.DimensionNotFoundError{Dim: dim, Field: f.Name}
}

func destaggerHorizontal(reg *meteodatalab.Registry, f *meteodatalab.Field, dim string) (*meteodatalab.Field, error) {
	origin := f.Meta.OriginX
	if dim == meteodatalab.DimY {
		origin = f.Meta.OriginY
	}
	if origin != 0.5 {
		return nil, fmt.Errorf("meteodatalab: field %s has staggering origin %g on %s, want 0.5", f.Name, origin, dim)
	}
	k, err := f.Axis(dim)
	if err != nil {
		return nil, err
	}
	g, err := reg.Grid(f.Meta.Grid)
	if err != nil {
		return nil, err
	}
	var ng meteodatalab.Grid
	switch gg := g.(type) {
	case *meteodatalab.LatLonGrid:
		base := shiftedGrid(gg, dim)
		ng = &base
	case *meteodatalab.RotatedLatLonGrid:
		ng = &meteodatalab.RotatedLatLonGrid{
			LatLonGrid:   shiftedGrid(&gg.LatLonGrid, dim),
			SouthPoleLat: gg.SouthPoleLat,
			SouthPoleLon: gg.SouthPoleLon,
			Angle:        gg.Angle,
		}
	default:
		return nil, &meteodatalab.UnsupportedMetadataError{Key: "gridType", Value: fmt.Sprintf("%T", g)}
	}

	o := f.EmptyLike(f.Name)
	pre, n, post := 1, f.Data.Shape[k], 1
	for _, s := range f.Data.Shape[:k] {
		pre *= s
	}
	for _, s := range f.Data.Shape[k+1:] {
		post *= s
	}
	for pi := 0; pi < pre; pi++ {
		for j := 0; j < n; j++ {
			for qi := 0; qi < post; qi++ {
				at := (pi*n+j)*post + qi
				if j == 0 {
					o.Data.Elements[at] = f.Data.Elements[at]
					continue
				}
				o.Data.Elements[at] = 0.5 * (f.Data.Elements[at-post] + f.Data.Elements[at])
			}
		}
	}
	o.Meta = o.Meta.WithGrid(reg.AddGrid(ng))
	if dim == meteodatalab.DimX {
		o.Meta.OriginX = 0
	} else {
		o.Meta.OriginY = 0
	}
	return o, nil
}

// shiftedGrid moves the grid origin back half a step along the
// staggered dimension. The staggering origin is measured in positive
// degree direction, so the shift does not depend on the scanning order.
func shiftedGrid(g *meteodatalab.LatLonGrid, dim string) meteodatalab.LatLonGrid {
	ng := meteodatalab.LatLonGrid{
		Ny: g.Ny, Nx: g.Nx,
		Lat0: g.Lat0, Lon0: g.Lon0,
		DLat: g.DLat, DLon: g.DLon,
		ScanNegX: g.ScanNegX, ScanPosY: g.ScanPosY,
	}
	if dim == meteodatalab.DimX {
		ng.Lon0 -= 0.5 * g.DLon
	} else {
		ng.Lat0 -= 0.5 * g.DLat
	}
	return ng
}

// halfToFull interpolates a field on the layer interfaces to the layer
// mid surfaces.
func halfToFull(f *meteodatalab.Field) (*meteodatalab.Field, error) {
	if f.Meta.Level != meteodatalab.LevelModelHalf || f.Meta.OriginZ != -0.5 {
		return nil, fmt.Errorf("meteodatalab: field %s is not on model half levels", f.Name)
	}
	outer, nz, inner, err := f.ZLayout()
	if err != nil {
		return nil, err
	}
	levels := make([]float64, nz-1)
	for i := range levels {
		levels[i] = float64(i + 1)
	}
	if len(f.Levels) >= nz {
		copy(levels, f.Levels[:nz-1])
	}
	o, err := f.EmptyWithLevels(f.Name, meteodatalab.LevelModelFull, levels)
	if err != nil {
		return nil, err
	}
	o.Meta.OriginZ = 0
	for oi := 0; oi < outer; oi++ {
		for j := 0; j < nz-1; j++ {
			for i := 0; i < inner; i++ {
				a := f.Data.Elements[(oi*nz+j)*inner+i]
				b := f.Data.Elements[(oi*nz+j+1)*inner+i]
				o.Data.Elements[(oi*(nz-1)+j)*inner+i] = 0.5 * (a + b)
			}
		}
	}
	return o, nil
}
