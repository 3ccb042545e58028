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
	"errors"
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	table := NewParamTable()
	p, def, err := table.Resolve("T", FamilyCOSMO)
	if err != nil {
		t.Fatal(err)
	}
	want := Param{Discipline: 0, Category: 0, Number: 0, ShortName: "T"}
	if p != want {
		t.Errorf("want %v but have %v", want, p)
	}
	if def.Units != "K" {
		t.Errorf("want units K but have %s", def.Units)
	}

	var unknown *UnknownParameterError
	if _, _, err := table.Resolve("NOPE", FamilyCOSMO); !errors.As(err, &unknown) {
		t.Errorf("want UnknownParameterError but have %v", err)
	}
	if _, _, err := table.Resolve("T", Family("gfs")); !errors.As(err, &unknown) {
		t.Errorf("want UnknownParameterError but have %v", err)
	}
}

func TestShortNamePrecedence(t *testing.T) {
	table := NewParamTable()
	cases := []struct {
		level LevelKind
		want  string
	}{
		{LevelModelHalf, "HHL"},
		{LevelSurface, "HSURF"},
		{LevelZeroIsotherm, "HZEROCL"},
	}
	for _, c := range cases {
		name, err := table.ShortName(0, 3, 6, c.level, FamilyCOSMO)
		if err != nil {
			t.Fatal(err)
		}
		if name != c.want {
			t.Errorf("level %v: want %s but have %s", c.level, c.want, name)
		}
	}
	// Geometric height is only defined on the level kinds above.
	if _, err := table.ShortName(0, 3, 6, LevelModelFull, FamilyCOSMO); err == nil {
		t.Error("want error for geometric height on model full levels")
	}

	// An exact level binding beats the any-level fallback.
	name, err := table.ShortName(0, 0, 0, LevelHeight, FamilyCOSMO)
	if err != nil {
		t.Fatal(err)
	}
	if name != "T_2M" {
		t.Errorf("want T_2M but have %s", name)
	}
	name, err = table.ShortName(0, 0, 0, LevelModelFull, FamilyCOSMO)
	if err != nil {
		t.Fatal(err)
	}
	if name != "T" {
		t.Errorf("want T but have %s", name)
	}
}

func TestMergeTOML(t *testing.T) {
	table := NewParamTable()
	overlay := `
[cosmo.T_SO]
discipline = 0
category = 3
number = 18
units = "K"
level = "surface"

[gfs.TMP]
discipline = 0
category = 0
number = 0
units = "K"
`
	if err := table.MergeTOML(strings.NewReader(overlay)); err != nil {
		t.Fatal(err)
	}
	p, def, err := table.Resolve("T_SO", FamilyCOSMO)
	if err != nil {
		t.Fatal(err)
	}
	if p.Number != 18 || def.Units != "K" {
		t.Errorf("want number 18 and units K but have %d and %s", p.Number, def.Units)
	}
	name, err := table.ShortName(0, 3, 18, LevelSurface, FamilyCOSMO)
	if err != nil {
		t.Fatal(err)
	}
	if name != "T_SO" {
		t.Errorf("want T_SO but have %s", name)
	}

	// New families can be introduced by an overlay.
	if _, _, err := table.Resolve("TMP", Family("gfs")); err != nil {
		t.Error(err)
	}
	// Built-in definitions stay available.
	if _, _, err := table.Resolve("T", FamilyCOSMO); err != nil {
		t.Error(err)
	}

	bad := `
[cosmo.BAD]
discipline = 0
category = 0
number = 99
level = "bogus"
`
	if err := table.MergeTOML(strings.NewReader(bad)); err == nil {
		t.Error("want error for unknown level kind")
	}
}
