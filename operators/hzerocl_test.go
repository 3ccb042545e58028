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

func halfLevelHeights(t *testing.T, vals []float64) *meteodatalab.Field {
	t.Helper()
	dims := []string{meteodatalab.DimZ, meteodatalab.DimY, meteodatalab.DimX}
	f := testField(t, "HHL", dims, []int{len(vals), 1, 1}, vals)
	f.Meta = f.Meta.WithLevel(meteodatalab.LevelModelHalf)
	f.Meta.OriginZ = -0.5
	return f
}

func TestFreezingLevelHeight(t *testing.T) {
	dims := []string{meteodatalab.DimZ, meteodatalab.DimY, meteodatalab.DimX}
	tt := testField(t, "T", dims, []int{3, 1, 1}, []float64{260, 270, 280})
	hhl := halfLevelHeights(t, []float64{3000, 2000, 1000, 0})

	o, err := FreezingLevelHeight(tt, hhl, false)
	if err != nil {
		t.Fatal(err)
	}
	// Full level heights are 2500, 1500 and 500 m. The freezing point
	// sits between the 270 K and 280 K levels.
	checkValues(t, []float64{1185}, o.Data.Elements, 1e-6)
	if o.Name != "HZEROCL" {
		t.Errorf("want name HZEROCL but have %s", o.Name)
	}
	if o.Meta.Level != meteodatalab.LevelZeroIsotherm {
		t.Errorf("want level %v but have %v", meteodatalab.LevelZeroIsotherm, o.Meta.Level)
	}
	if o.Meta.Units != "m" {
		t.Errorf("want units m but have %s", o.Meta.Units)
	}
	if o.HasDim(meteodatalab.DimZ) {
		t.Error("freezing level height should have no vertical axis")
	}
}

func TestFreezingLevelHeightNoCrossing(t *testing.T) {
	dims := []string{meteodatalab.DimZ, meteodatalab.DimY, meteodatalab.DimX}
	tt := testField(t, "T", dims, []int{3, 1, 1}, []float64{260, 265, 270})
	hhl := halfLevelHeights(t, []float64{3000, 2000, 1000, 0})

	o, err := FreezingLevelHeight(tt, hhl, false)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(o.Data.Elements[0]) {
		t.Errorf("want NaN but have %g", o.Data.Elements[0])
	}
}

func TestFreezingLevelHeightExtrapolate(t *testing.T) {
	dims := []string{meteodatalab.DimZ, meteodatalab.DimY, meteodatalab.DimX}
	tt := testField(t, "T", dims, []int{3, 1, 1}, []float64{250, 260, 265})
	hhl := halfLevelHeights(t, []float64{9000, 6000, 4000, 3000})

	o, err := FreezingLevelHeight(tt, hhl, true)
	if err != nil {
		t.Fatal(err)
	}
	// Extends the gradient between the two lowest full levels below
	// the bottom of the column.
	checkValues(t, []float64{1055}, o.Data.Elements, 1e-6)

	o, err = FreezingLevelHeight(tt, hhl, false)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(o.Data.Elements[0]) {
		t.Errorf("want NaN but have %g", o.Data.Elements[0])
	}
}

func TestFreezingLevelHeightBelowGround(t *testing.T) {
	dims := []string{meteodatalab.DimZ, meteodatalab.DimY, meteodatalab.DimX}
	tt := testField(t, "T", dims, []int{3, 1, 1}, []float64{260, 270, 280})
	hhl := halfLevelHeights(t, []float64{150, 50, -50, -150})

	o, err := FreezingLevelHeight(tt, hhl, false)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(o.Data.Elements[0]) {
		t.Errorf("want NaN but have %g", o.Data.Elements[0])
	}
}

func TestFreezingLevelHeightPicksHighestCrossing(t *testing.T) {
	dims := []string{meteodatalab.DimZ, meteodatalab.DimY, meteodatalab.DimX}
	tt := testField(t, "T", dims, []int{4, 1, 1}, []float64{272, 274, 272, 280})
	hhl := halfLevelHeights(t, []float64{5000, 4000, 3000, 2000, 1000})

	o, err := FreezingLevelHeight(tt, hhl, false)
	if err != nil {
		t.Fatal(err)
	}
	// Both the 274 K and the 280 K levels cross the freezing point from
	// below. The higher of the two wins.
	checkValues(t, []float64{3925}, o.Data.Elements, 1e-6)
}
