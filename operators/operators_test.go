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

func testField(t *testing.T, name string, dims []string, shape []int, vals []float64) *meteodatalab.Field {
	t.Helper()
	meta := meteodatalab.Metadata{
		Family:      meteodatalab.FamilyCOSMO,
		Member:      -1,
		ScaleFactor: 1,
	}
	f, err := meteodatalab.NewField(name, dims, shape, meta)
	if err != nil {
		t.Fatal(err)
	}
	if len(vals) != len(f.Data.Elements) {
		t.Fatalf("want %d values but have %d", len(f.Data.Elements), len(vals))
	}
	copy(f.Data.Elements, vals)
	for i, d := range dims {
		if d == meteodatalab.DimZ {
			f.Levels = make([]float64, shape[i])
			for k := range f.Levels {
				f.Levels[k] = float64(k + 1)
			}
			f.Meta = f.Meta.WithLevel(meteodatalab.LevelModelFull)
		}
	}
	return f
}

func checkValues(t *testing.T, want, have []float64, tol float64) {
	t.Helper()
	if len(want) != len(have) {
		t.Fatalf("want %d values but have %d", len(want), len(have))
	}
	for i := range want {
		if math.IsNaN(want[i]) {
			if !math.IsNaN(have[i]) {
				t.Errorf("value %d: want NaN but have %g", i, have[i])
			}
			continue
		}
		if math.Abs(want[i]-have[i]) > tol {
			t.Errorf("value %d: want %g but have %g", i, want[i], have[i])
		}
	}
}

func TestDerivedRename(t *testing.T) {
	f := testField(t, "X", []string{meteodatalab.DimY, meteodatalab.DimX}, []int{1, 1}, []float64{0})
	o, err := derived(f, "PT")
	if err != nil {
		t.Fatal(err)
	}
	if o.Name != "PT" {
		t.Errorf("want name PT but have %s", o.Name)
	}
	want := meteodatalab.Param{Discipline: 0, Category: 0, Number: 2, ShortName: "PT"}
	if o.Meta.Param != want {
		t.Errorf("want param %v but have %v", want, o.Meta.Param)
	}
	if o.Meta.Units != "K" {
		t.Errorf("want units K but have %q", o.Meta.Units)
	}
}

func TestDerivedAppliesLevelKind(t *testing.T) {
	f := testField(t, "X", []string{meteodatalab.DimY, meteodatalab.DimX}, []int{1, 1}, []float64{0})
	o, err := derived(f, "HZEROCL")
	if err != nil {
		t.Fatal(err)
	}
	if o.Meta.Level != meteodatalab.LevelZeroIsotherm {
		t.Errorf("want level %v but have %v", meteodatalab.LevelZeroIsotherm, o.Meta.Level)
	}
}

func TestDerivedFallsBackToCOSMO(t *testing.T) {
	f := testField(t, "x", []string{meteodatalab.DimY, meteodatalab.DimX}, []int{1, 1}, []float64{0})
	f.Meta.Family = meteodatalab.FamilyICON
	o, err := derived(f, "RELHUM")
	if err != nil {
		t.Fatal(err)
	}
	if o.Meta.Units != "%" {
		t.Errorf("want units %% but have %q", o.Meta.Units)
	}
	if o.Meta.Family != meteodatalab.FamilyICON {
		t.Errorf("want family %s but have %s", meteodatalab.FamilyICON, o.Meta.Family)
	}
}

func TestDerivedUnknownName(t *testing.T) {
	f := testField(t, "X", []string{meteodatalab.DimY, meteodatalab.DimX}, []int{1, 1}, []float64{0})
	_, err := derived(f, "NO_SUCH_PARAM")
	var unknown *meteodatalab.UnknownParameterError
	if !errors.As(err, &unknown) {
		t.Fatalf("want UnknownParameterError but have %v", err)
	}
}
