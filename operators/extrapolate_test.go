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
	"testing"

	"github.com/MeteoSwiss/meteodata-lab"
)

func TestExtrapLapse(t *testing.T) {
	cases := []struct {
		h, t, want float64
	}{
		{1000, 290, 0.0065},
		{3000, 280, 0.006},
		{2200, 290, 11.15 / 2200},
	}
	for _, c := range cases {
		have := extrapLapse(c.h, c.t)
		if math.Abs(have-c.want) > 1e-9 {
			t.Errorf("lapse at h=%g t=%g: want %g but have %g", c.h, c.t, c.want, have)
		}
	}
}

func surfaceField(t *testing.T, name string, val float64) *meteodatalab.Field {
	t.Helper()
	dims := []string{meteodatalab.DimY, meteodatalab.DimX}
	return testField(t, name, dims, []int{1, 1}, []float64{val})
}

func TestTemperatureSfc2P(t *testing.T) {
	tSfc := surfaceField(t, "T_S", 288)
	hSfc := surfaceField(t, "HSURF", 500)
	pSfc := surfaceField(t, "PS", 95000)

	// At the surface pressure itself the expansion is exact.
	o, err := TemperatureSfc2P(tSfc, hSfc, pSfc, 95000)
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, []float64{288}, o.Data.Elements, 1e-12)
	if o.Name != "T" {
		t.Errorf("want name T but have %s", o.Name)
	}
	if o.Meta.Level != meteodatalab.LevelPressure {
		t.Errorf("want level %v but have %v", meteodatalab.LevelPressure, o.Meta.Level)
	}
	checkValues(t, []float64{95000}, o.Levels, 0)

	o, err = TemperatureSfc2P(tSfc, hSfc, pSfc, 100000)
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, []float64{290.824}, o.Data.Elements, 0.01)
}

func TestGeopotentialSfc2P(t *testing.T) {
	tSfc := surfaceField(t, "T_S", 288)
	hSfc := surfaceField(t, "HSURF", 500)
	pSfc := surfaceField(t, "PS", 95000)

	o, err := GeopotentialSfc2P(hSfc, tSfc, pSfc, 95000)
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, []float64{500 * meteodatalab.Gravity}, o.Data.Elements, 1e-9)
	if o.Name != "FI" {
		t.Errorf("want name FI but have %s", o.Name)
	}
	if o.Meta.Level != meteodatalab.LevelPressure {
		t.Errorf("want level %v but have %v", meteodatalab.LevelPressure, o.Meta.Level)
	}
	checkValues(t, []float64{95000}, o.Levels, 0)

	o, err = GeopotentialSfc2P(hSfc, tSfc, pSfc, 100000)
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, []float64{642.1}, o.Data.Elements, 0.2)
}

func TestConstantK2P(t *testing.T) {
	dims := []string{meteodatalab.DimZ, meteodatalab.DimY, meteodatalab.DimX}
	f := testField(t, "QV", dims, []int{2, 1, 1}, []float64{7, 9})

	o, err := ConstantK2P(f, 85000)
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, []float64{9}, o.Data.Elements, 0)
	checkValues(t, []float64{85000}, o.Levels, 0)
	if o.Meta.Level != meteodatalab.LevelPressure {
		t.Errorf("want level %v but have %v", meteodatalab.LevelPressure, o.Meta.Level)
	}
	if o.Name != "QV" {
		t.Errorf("want name QV but have %s", o.Name)
	}
}
