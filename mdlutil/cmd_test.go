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

package mdlutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeteoSwiss/meteodata-lab"
)

func TestDefaults(t *testing.T) {
	cases := []struct {
		key, want string
	}{
		{"crs", "geolatlon"},
		{"resampling", "nearest"},
		{"ref-param", "HHL"},
		{"family", "cosmo"},
	}
	for _, c := range cases {
		if have := Cfg.GetString(c.key); have != c.want {
			t.Errorf("%s: want %q but have %q", c.key, c.want, have)
		}
	}
	if Cfg.GetBool("force") {
		t.Error("force should default to false")
	}
}

func TestSetConfigMissingFile(t *testing.T) {
	Cfg.Set("config", filepath.Join(t.TempDir(), "nonexistent.toml"))
	defer Cfg.Set("config", "")
	if err := setConfig(); err == nil {
		t.Fatal("want error for missing configuration file")
	}
}

func TestRegridRefusesOverwrite(t *testing.T) {
	outfile := filepath.Join(t.TempDir(), "out.grib")
	if err := os.WriteFile(outfile, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	err := Regrid("geolatlon", "nearest", "HHL", "cosmo", "", []string{"in.grib"}, outfile, []string{"T"}, nil, false)
	if err == nil {
		t.Fatal("want error for existing output file")
	}
	if !strings.Contains(err.Error(), "exists") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRegridUnknownResampling(t *testing.T) {
	outfile := filepath.Join(t.TempDir(), "out.grib")
	err := Regrid("geolatlon", "cubic", "HHL", "cosmo", "", []string{"in.grib"}, outfile, []string{"T"}, nil, false)
	if err == nil {
		t.Fatal("want error for unknown resampling method")
	}
}

func vectorField(t *testing.T, name string) *meteodatalab.Field {
	t.Helper()
	meta := meteodatalab.Metadata{
		Family:      meteodatalab.FamilyCOSMO,
		VRef:        meteodatalab.VRefGeo,
		Member:      -1,
		ScaleFactor: 1,
	}
	dims := []string{meteodatalab.DimY, meteodatalab.DimX}
	f, err := meteodatalab.NewField(name, dims, []int{1, 2}, meta)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestSelectMembers(t *testing.T) {
	meta := meteodatalab.Metadata{
		Family:      meteodatalab.FamilyCOSMO,
		Member:      0,
		ScaleFactor: 1,
	}
	dims := []string{meteodatalab.DimMember, meteodatalab.DimY, meteodatalab.DimX}
	f, err := meteodatalab.NewField("T", dims, []int{3, 1, 1}, meta)
	if err != nil {
		t.Fatal(err)
	}
	f.Members = []int{0, 1, 2}
	copy(f.Data.Elements, []float64{10, 20, 30})

	o, err := selectMembers(f, []int{0, 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(o.Members) != 2 || o.Members[0] != 0 || o.Members[1] != 2 {
		t.Errorf("want members [0 2] but have %v", o.Members)
	}
	if o.Data.Elements[0] != 10 || o.Data.Elements[1] != 30 {
		t.Errorf("want values [10 30] but have %v", o.Data.Elements)
	}

	same, err := selectMembers(f, nil)
	if err != nil {
		t.Fatal(err)
	}
	if same != f {
		t.Error("empty member list should pass the field through")
	}
}

func TestRotateVectorFieldsMissingCompanion(t *testing.T) {
	reg := meteodatalab.NewRegistry()
	ds := meteodatalab.Dataset{}
	ds.Add(vectorField(t, "U"))

	err := rotateVectorFields(reg, ds, meteodatalab.FamilyCOSMO)
	if err == nil {
		t.Fatal("want error for missing v component")
	}
	if !strings.Contains(err.Error(), "V") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRotateVectorFieldsGeoPassthrough(t *testing.T) {
	reg := meteodatalab.NewRegistry()
	ds := meteodatalab.Dataset{}
	u := vectorField(t, "U")
	v := vectorField(t, "V")
	u.Data.Elements[0] = 3
	v.Data.Elements[0] = 4
	ds.Add(u)
	ds.Add(v)

	if err := rotateVectorFields(reg, ds, meteodatalab.FamilyCOSMO); err != nil {
		t.Fatal(err)
	}
	uu, err := ds.Param("U")
	if err != nil {
		t.Fatal(err)
	}
	if uu.Data.Elements[0] != 3 {
		t.Errorf("want 3 but have %g", uu.Data.Elements[0])
	}
	if uu.Meta.VRef != meteodatalab.VRefGeo {
		t.Errorf("want vref %s but have %s", meteodatalab.VRefGeo, uu.Meta.VRef)
	}
}
