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
	"os"

	"github.com/ctessum/cdf"
)

// SaveNetCDF writes the fields of a dataset into one NetCDF file. This
// is the output format for grids without a message encoding, notably
// the projected grids produced by regridding. Member, time and level
// axes are written as coordinate variables; the geometry of each
// field's grid is attached to its variable as attributes. Fields that
// disagree on the length or coordinates of a dimension get a variant of
// its name suffixed with the field name.
func SaveNetCDF(w *os.File, reg *Registry, ds Dataset) error {
	names := ds.Names()
	if len(names) == 0 {
		return fmt.Errorf("meteodatalab: no fields to write")
	}

	var dimNames []string
	var dimLens []int
	coords := make(map[string][]float64)
	units := make(map[string]string)
	varDims := make(map[string][]string)
	claim := func(name string, n int, coord []float64) bool {
		for i, d := range dimNames {
			if d != name {
				continue
			}
			return dimLens[i] == n && sameCoord(coords[name], coord)
		}
		dimNames = append(dimNames, name)
		dimLens = append(dimLens, n)
		if coord != nil {
			coords[name] = coord
		}
		return true
	}
	for _, name := range names {
		f, err := ds.Param(name)
		if err != nil {
			return err
		}
		dims := make([]string, len(f.Dims))
		for i, d := range f.Dims {
			var coord []float64
			switch d {
			case DimMember, DimRefTime, DimLeadTime, DimZ:
				if coord, err = f.Coordinate(d); err != nil {
					return err
				}
			}
			dn := d
			if !claim(dn, f.Data.Shape[i], coord) {
				dn = d + "_" + name
				if !claim(dn, f.Data.Shape[i], coord) {
					return fmt.Errorf("meteodatalab: conflicting lengths for dimension %s of field %s", d, name)
				}
			}
			if coord != nil {
				units[dn] = coordUnits(d, f.Meta.Level)
			}
			dims[i] = dn
		}
		varDims[name] = dims
	}

	h := cdf.NewHeader(dimNames, dimLens)
	h.AddAttribute("", "source", "meteodata-lab v"+Version)
	for _, d := range dimNames {
		if _, ok := coords[d]; !ok {
			continue
		}
		h.AddVariable(d, []string{d}, []float64{0})
		if u := units[d]; u != "" {
			h.AddAttribute(d, "units", u)
		}
	}
	for _, name := range names {
		f, err := ds.Param(name)
		if err != nil {
			return err
		}
		h.AddVariable(name, varDims[name], []float64{0})
		if f.Meta.Units != "" {
			h.AddAttribute(name, "units", f.Meta.Units)
		}
		h.AddAttribute(name, "param", f.Meta.Param.String())
		h.AddAttribute(name, "level_type", f.Meta.Level.String())
		g, err := reg.Grid(f.Meta.Grid)
		if err != nil {
			return err
		}
		gridVarAttrs(h, name, g)
	}
	h.Define()

	cf, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("meteodatalab: while writing netcdf output: %v", err)
	}
	for _, d := range dimNames {
		c, ok := coords[d]
		if !ok {
			continue
		}
		if err := writeNetCDFVar(cf, d, c); err != nil {
			return err
		}
	}
	for _, name := range names {
		f, err := ds.Param(name)
		if err != nil {
			return err
		}
		if err := writeNetCDFVar(cf, name, f.Data.Elements); err != nil {
			return err
		}
	}
	return cdf.UpdateNumRecs(w)
}

// gridVarAttrs records the grid geometry of a variable. The dx and dy
// steps carry the sign of the scanning direction, so that the point
// coordinates follow from x0 + i*dx and y0 + j*dy.
func gridVarAttrs(h *cdf.Header, name string, g Grid) {
	h.AddAttribute(name, "grid", string(g.Ref()))
	switch t := g.(type) {
	case *LatLonGrid:
		h.AddAttribute(name, "crs", "geolatlon")
		latLonVarAttrs(h, name, t)
	case *RotatedLatLonGrid:
		h.AddAttribute(name, "crs", "rotlatlon")
		latLonVarAttrs(h, name, &t.LatLonGrid)
		npLon, npLat := t.NorthPole()
		h.AddAttribute(name, "north_pole_lon", []float64{npLon})
		h.AddAttribute(name, "north_pole_lat", []float64{npLat})
	case *ProjGrid:
		h.AddAttribute(name, "crs", t.CRS)
		h.AddAttribute(name, "x0", []float64{t.X0})
		h.AddAttribute(name, "y0", []float64{t.Y0})
		h.AddAttribute(name, "dx", []float64{t.Dx})
		h.AddAttribute(name, "dy", []float64{t.Dy})
	case *IconMeshGrid:
		h.AddAttribute(name, "uuidOfHGrid", FormatGridUUID(t.UUID))
		h.AddAttribute(name, "numberOfGridUsed", []int32{int32(t.NumberOfGridUsed)})
	}
}

func latLonVarAttrs(h *cdf.Header, name string, g *LatLonGrid) {
	sx, sy := 1.0, -1.0
	if g.ScanNegX {
		sx = -1
	}
	if g.ScanPosY {
		sy = 1
	}
	h.AddAttribute(name, "x0", []float64{g.Lon0})
	h.AddAttribute(name, "y0", []float64{g.Lat0})
	h.AddAttribute(name, "dx", []float64{sx * g.DLon})
	h.AddAttribute(name, "dy", []float64{sy * g.DLat})
}

func coordUnits(dim string, level LevelKind) string {
	switch dim {
	case DimRefTime:
		return "seconds since 1970-01-01 00:00:00"
	case DimLeadTime:
		return "s"
	case DimZ:
		switch level {
		case LevelPressure:
			return "Pa"
		case LevelHeight:
			return "m"
		case LevelIsentropic:
			return "K"
		}
	}
	return ""
}

func sameCoord(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func writeNetCDFVar(f *cdf.File, name string, data interface{}) error {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("meteodatalab: writing variable %s to netcdf file: %v", name, err)
	}
	return nil
}
