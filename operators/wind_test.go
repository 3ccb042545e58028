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
	"testing"

	"github.com/MeteoSwiss/meteodata-lab"
)

func TestWindSpeed(t *testing.T) {
	dims := []string{meteodatalab.DimY, meteodatalab.DimX}
	u := testField(t, "U", dims, []int{1, 2}, []float64{3, 0})
	v := testField(t, "V", dims, []int{1, 2}, []float64{4, -2})

	sp, err := WindSpeed(u, v)
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, []float64{5, 2}, sp.Data.Elements, 1e-12)
	if sp.Name != "SP" {
		t.Errorf("want name SP but have %s", sp.Name)
	}
	want := meteodatalab.Param{Discipline: 0, Category: 2, Number: 1, ShortName: "SP"}
	if sp.Meta.Param != want {
		t.Errorf("want param %v but have %v", want, sp.Meta.Param)
	}
}

func TestWindSpeed10M(t *testing.T) {
	dims := []string{meteodatalab.DimY, meteodatalab.DimX}
	u := testField(t, "U_10M", dims, []int{1, 1}, []float64{1})
	v := testField(t, "V_10M", dims, []int{1, 1}, []float64{1})
	u.Meta = u.Meta.WithLevel(meteodatalab.LevelHeight)
	v.Meta = v.Meta.WithLevel(meteodatalab.LevelHeight)

	sp, err := WindSpeed(u, v)
	if err != nil {
		t.Fatal(err)
	}
	if sp.Name != "SP_10M" {
		t.Errorf("want name SP_10M but have %s", sp.Name)
	}
	if sp.Meta.Level != meteodatalab.LevelHeight {
		t.Errorf("want level %v but have %v", meteodatalab.LevelHeight, sp.Meta.Level)
	}
}

func TestWindSpeedRejectsStaggered(t *testing.T) {
	dims := []string{meteodatalab.DimY, meteodatalab.DimX}
	u := testField(t, "U", dims, []int{1, 1}, []float64{1})
	v := testField(t, "V", dims, []int{1, 1}, []float64{1})
	u.Meta.OriginX = 0.5

	if _, err := WindSpeed(u, v); err == nil {
		t.Fatal("want error for staggered component")
	}
}

func TestWindSpeedUnknownComponent(t *testing.T) {
	dims := []string{meteodatalab.DimY, meteodatalab.DimX}
	u := testField(t, "QV", dims, []int{1, 1}, []float64{1})
	v := testField(t, "V", dims, []int{1, 1}, []float64{1})

	_, err := WindSpeed(u, v)
	var unknown *meteodatalab.UnknownParameterError
	if !errors.As(err, &unknown) {
		t.Fatalf("want UnknownParameterError but have %v", err)
	}
}

func TestWindDirection(t *testing.T) {
	dims := []string{meteodatalab.DimY, meteodatalab.DimX}
	u := testField(t, "U", dims, []int{1, 4}, []float64{0, 1, 0, -1})
	v := testField(t, "V", dims, []int{1, 4}, []float64{-1, 0, 1, 0})
	u.Meta = u.Meta.WithVRef(meteodatalab.VRefGeo)
	v.Meta = v.Meta.WithVRef(meteodatalab.VRefGeo)

	dd, err := WindDirection(nil, u, v)
	if err != nil {
		t.Fatal(err)
	}
	// North, west, south and east winds in meteorological convention.
	checkValues(t, []float64{360, 270, 180, 90}, dd.Data.Elements, 1e-9)
	if dd.Name != "DD" {
		t.Errorf("want name DD but have %s", dd.Name)
	}
	if dd.Meta.Units != "degree" {
		t.Errorf("want units degree but have %q", dd.Meta.Units)
	}
}

func TestWindDirectionMixedVRef(t *testing.T) {
	dims := []string{meteodatalab.DimY, meteodatalab.DimX}
	u := testField(t, "U", dims, []int{1, 1}, []float64{1})
	v := testField(t, "V", dims, []int{1, 1}, []float64{1})
	u.Meta = u.Meta.WithVRef(meteodatalab.VRefGeo)
	v.Meta = v.Meta.WithVRef(meteodatalab.VRefNative)

	_, err := WindDirection(nil, u, v)
	var incompatible *meteodatalab.IncompatibleFieldsError
	if !errors.As(err, &incompatible) {
		t.Fatalf("want IncompatibleFieldsError but have %v", err)
	}
}
