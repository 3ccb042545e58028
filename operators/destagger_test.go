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
	"errors"
	"math"
	"testing"

	"github.com/MeteoSwiss/meteodata-lab"
)

func TestDestaggerX(t *testing.T) {
	reg := meteodatalab.NewRegistry()
	ref := reg.AddGrid(&meteodatalab.LatLonGrid{
		Ny: 1, Nx: 3,
		Lat0: 45, Lon0: 10.05,
		DLat: 0.1, DLon: 0.1,
		ScanPosY: true,
	})
	dims := []string{meteodatalab.DimY, meteodatalab.DimX}
	f := testField(t, "U", dims, []int{1, 3}, []float64{1, 2, 3})
	f.Meta = f.Meta.WithGrid(ref)
	f.Meta.OriginX = 0.5

	o, err := Destagger(reg, f, meteodatalab.DimX)
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, []float64{1, 1.5, 2.5}, o.Data.Elements, 1e-12)
	if o.Meta.OriginX != 0 {
		t.Errorf("want origin 0 but have %g", o.Meta.OriginX)
	}
	g, err := reg.Grid(o.Meta.Grid)
	if err != nil {
		t.Fatal(err)
	}
	ll, ok := g.(*meteodatalab.LatLonGrid)
	if !ok {
		t.Fatalf("want *LatLonGrid but have %T", g)
	}
	if math.Abs(ll.Lon0-10.0) > 1e-9 {
		t.Errorf("want Lon0 10 but have %g", ll.Lon0)
	}
}

func TestDestaggerY(t *testing.T) {
	reg := meteodatalab.NewRegistry()
	ref := reg.AddGrid(&meteodatalab.RotatedLatLonGrid{
		LatLonGrid: meteodatalab.LatLonGrid{
			Ny: 3, Nx: 1,
			Lat0: 45.05, Lon0: 10,
			DLat: 0.1, DLon: 0.1,
			ScanPosY: true,
		},
		SouthPoleLat: -43, SouthPoleLon: -170,
	})
	dims := []string{meteodatalab.DimY, meteodatalab.DimX}
	f := testField(t, "V", dims, []int{3, 1}, []float64{1, 2, 3})
	f.Meta = f.Meta.WithGrid(ref)
	f.Meta.OriginY = 0.5

	o, err := Destagger(reg, f, meteodatalab.DimY)
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, []float64{1, 1.5, 2.5}, o.Data.Elements, 1e-12)
	if o.Meta.OriginY != 0 {
		t.Errorf("want origin 0 but have %g", o.Meta.OriginY)
	}
	g, err := reg.Grid(o.Meta.Grid)
	if err != nil {
		t.Fatal(err)
	}
	rg, ok := g.(*meteodatalab.RotatedLatLonGrid)
	if !ok {
		t.Fatalf("want *RotatedLatLonGrid but have %T", g)
	}
	if math.Abs(rg.Lat0-45.0) > 1e-9 {
		t.Errorf("want Lat0 45 but have %g", rg.Lat0)
	}
	if rg.SouthPoleLat != -43 || rg.SouthPoleLon != -170 {
		t.Errorf("rotated pole not carried over: %g %g", rg.SouthPoleLat, rg.SouthPoleLon)
	}
}

func TestDestaggerRequiresStaggeredOrigin(t *testing.T) {
	reg := meteodatalab.NewRegistry()
	ref := reg.AddGrid(&meteodatalab.LatLonGrid{Ny: 1, Nx: 2, Lat0: 45, Lon0: 10, DLat: 0.1, DLon: 0.1})
	dims := []string{meteodatalab.DimY, meteodatalab.DimX}
	f := testField(t, "T", dims, []int{1, 2}, []float64{1, 2})
	f.Meta = f.Meta.WithGrid(ref)

	if _, err := Destagger(reg, f, meteodatalab.DimX); err == nil {
		t.Fatal("want error for unstaggered field")
	}
}

func TestDestaggerZ(t *testing.T) {
	dims := []string{meteodatalab.DimZ, meteodatalab.DimY, meteodatalab.DimX}
	f := testField(t, "HHL", dims, []int{3, 1, 1}, []float64{10, 20, 40})
	f.Meta = f.Meta.WithLevel(meteodatalab.LevelModelHalf)
	f.Meta.OriginZ = -0.5

	o, err := Destagger(nil, f, meteodatalab.DimZ)
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, []float64{15, 30}, o.Data.Elements, 1e-12)
	if o.Meta.Level != meteodatalab.LevelModelFull {
		t.Errorf("want level %v but have %v", meteodatalab.LevelModelFull, o.Meta.Level)
	}
	if o.Meta.OriginZ != 0 {
		t.Errorf("want origin 0 but have %g", o.Meta.OriginZ)
	}
	wantLevels := []float64{1, 2}
	checkValues(t, wantLevels, o.Levels, 0)
}

func TestDestaggerZRequiresHalfLevels(t *testing.T) {
	dims := []string{meteodatalab.DimZ, meteodatalab.DimY, meteodatalab.DimX}
	f := testField(t, "T", dims, []int{3, 1, 1}, []float64{1, 2, 3})

	if _, err := Destagger(nil, f, meteodatalab.DimZ); err == nil {
		t.Fatal("want error for full level field")
	}
}

func TestDestaggerUnknownDim(t *testing.T) {
	dims := []string{meteodatalab.DimY, meteodatalab.DimX}
	f := testField(t, "T", dims, []int{1, 1}, []float64{1})

	_, err := Destagger(nil, f, "q")
	var notFound *meteodatalab.DimensionNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("want DimensionNotFoundError but have %v", err)
	}
}
