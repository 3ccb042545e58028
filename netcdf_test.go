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
	"os"
	"reflect"
	"testing"

	"github.com/ctessum/cdf"
)

func TestSaveNetCDF(t *testing.T) {
	reg := NewRegistry()
	g := &ProjGrid{CRS: "swiss", Ny: 2, Nx: 3, X0: 600000, Y0: 180000, Dx: 1000, Dy: 1000}
	ref := reg.AddGrid(g)

	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	tf := testField(t, "T", []string{DimZ, DimY, DimX}, []int{2, 2, 3}, vals)
	tf.Levels = []float64{85000, 50000}
	tf.Meta = tf.Meta.WithLevel(LevelPressure).WithGrid(ref).WithUnits("K")

	psVals := []float64{10, 20, 30, 40, 50, 60}
	ps := testField(t, "PS", []string{DimY, DimX}, []int{2, 3}, psVals)
	ps.Meta = ps.Meta.WithLevel(LevelSurface).WithGrid(ref).WithUnits("Pa")

	ds := Dataset{}
	ds.Add(tf)
	ds.Add(ps)

	f, err := os.CreateTemp(t.TempDir(), "out*.nc")
	if err != nil {
		t.Fatal(err)
	}
	if err := SaveNetCDF(f, reg, ds); err != nil {
		t.Fatal(err)
	}

	cf, err := cdf.Open(f)
	if err != nil {
		t.Fatal(err)
	}
	if have := cf.Header.Lengths("T"); !reflect.DeepEqual(have, []int{2, 2, 3}) {
		t.Errorf("want T lengths [2 2 3] but have %v", have)
	}
	if have := cf.Header.Lengths("PS"); !reflect.DeepEqual(have, []int{2, 3}) {
		t.Errorf("want PS lengths [2 3] but have %v", have)
	}
	z, err := cdfFloats(cf, "z")
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, []float64{85000, 50000}, z, 0)
	data, err := cdfFloats(cf, "T")
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, vals, data, 1e-12)
	data, err = cdfFloats(cf, "PS")
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, psVals, data, 1e-12)

	if have, _ := cf.Header.GetAttribute("T", "crs").(string); have != "swiss" {
		t.Errorf("want crs swiss but have %q", have)
	}
	if have, _ := cf.Header.GetAttribute("T", "units").(string); have != "K" {
		t.Errorf("want units K but have %q", have)
	}
	if have, _ := cf.Header.GetAttribute("T", "grid").(string); have != string(ref) {
		t.Errorf("want grid %s but have %q", ref, have)
	}
	if have, _ := cf.Header.GetAttribute("z", "units").(string); have != "Pa" {
		t.Errorf("want z units Pa but have %q", have)
	}
	x0, _ := cf.Header.GetAttribute("T", "x0").([]float64)
	if len(x0) != 1 || x0[0] != 600000 {
		t.Errorf("want x0 [600000] but have %v", x0)
	}
}

func TestSaveNetCDFSplitsConflictingDims(t *testing.T) {
	reg := NewRegistry()
	g := &LatLonGrid{Ny: 1, Nx: 2, Lat0: 46, Lon0: 7, DLat: 0.1, DLon: 0.1, ScanPosY: true}
	ref := reg.AddGrid(g)
	dims := []string{DimZ, DimY, DimX}

	tf := testField(t, "T", dims, []int{2, 1, 2}, []float64{1, 2, 3, 4})
	tf.Levels = []float64{85000, 50000}
	tf.Meta = tf.Meta.WithLevel(LevelPressure).WithGrid(ref)

	// Model levels 1 and 2 from the helper.
	qv := testField(t, "QV", dims, []int{2, 1, 2}, []float64{5, 6, 7, 8})
	qv.Meta = qv.Meta.WithGrid(ref)

	ds := Dataset{}
	ds.Add(tf)
	ds.Add(qv)

	f, err := os.CreateTemp(t.TempDir(), "out*.nc")
	if err != nil {
		t.Fatal(err)
	}
	if err := SaveNetCDF(f, reg, ds); err != nil {
		t.Fatal(err)
	}

	cf, err := cdf.Open(f)
	if err != nil {
		t.Fatal(err)
	}
	// QV sorts first and owns the z dimension; the conflicting level
	// coordinates of T move to a renamed one.
	z, err := cdfFloats(cf, "z")
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, []float64{1, 2}, z, 0)
	zt, err := cdfFloats(cf, "z_T")
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, []float64{85000, 50000}, zt, 0)
	data, err := cdfFloats(cf, "T")
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, []float64{1, 2, 3, 4}, data, 1e-12)
}

func TestSaveNetCDFEmpty(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out*.nc")
	if err != nil {
		t.Fatal(err)
	}
	if err := SaveNetCDF(f, NewRegistry(), Dataset{}); err == nil {
		t.Fatal("want error for empty dataset")
	}
}
