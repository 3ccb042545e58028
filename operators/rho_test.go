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
	"testing"

	"github.com/MeteoSwiss/meteodata-lab"
)

func TestRhoDryAir(t *testing.T) {
	dims := []string{meteodatalab.DimY, meteodatalab.DimX}
	tt := testField(t, "T", dims, []int{1, 1}, []float64{300})
	p := testField(t, "P", dims, []int{1, 1}, []float64{100000})
	qv := testField(t, "QV", dims, []int{1, 1}, []float64{0})
	qc := testField(t, "QC", dims, []int{1, 1}, []float64{0})

	rho, err := Rho(tt, p, qv, qc, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, []float64{100000 / (meteodatalab.RDry * 300)}, rho.Data.Elements, 1e-9)
	if rho.Name != "RHO" {
		t.Errorf("want name RHO but have %s", rho.Name)
	}
	if rho.Meta.Units != "kg m-3" {
		t.Errorf("want units kg m-3 but have %q", rho.Meta.Units)
	}
}

func TestRhoMoistureAndCondensate(t *testing.T) {
	dims := []string{meteodatalab.DimY, meteodatalab.DimX}
	tt := testField(t, "T", dims, []int{1, 1}, []float64{300})
	p := testField(t, "P", dims, []int{1, 1}, []float64{100000})
	qv := testField(t, "QV", dims, []int{1, 1}, []float64{0.01})
	qc := testField(t, "QC", dims, []int{1, 1}, []float64{0.002})
	qi := testField(t, "QI", dims, []int{1, 1}, []float64{0.001})
	qp := testField(t, "QR", dims, []int{1, 1}, []float64{0.003})

	rho, err := Rho(tt, p, qv, qc, qi, qp)
	if err != nil {
		t.Fatal(err)
	}
	want := 100000 / (meteodatalab.RDry * 300 * (1 + rvdO*0.01 - 0.006))
	checkValues(t, []float64{want}, rho.Data.Elements, 1e-9)

	// Vapor lightens, condensate loads.
	dry := testField(t, "QV", dims, []int{1, 1}, []float64{0})
	base, err := Rho(tt, p, dry, dry, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	moist, err := Rho(tt, p, qv, dry, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := Rho(tt, p, dry, qc, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if moist.Data.Elements[0] >= base.Data.Elements[0] {
		t.Error("moist air should be lighter than dry air")
	}
	if loaded.Data.Elements[0] <= base.Data.Elements[0] {
		t.Error("condensate should make the mixture heavier")
	}
}
