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
	"bytes"
	"errors"
	"io"
	"io/ioutil"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/MeteoSwiss/meteodata-lab/grib"
	"github.com/sirupsen/logrus"
)

func quietLog() *logrus.Logger {
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}

func TestSaveLoadRoundTrip(t *testing.T) {
	reg := NewRegistry()
	g := &LatLonGrid{Ny: 3, Nx: 4, Lat0: 45, Lon0: 5, DLat: 1, DLon: 1, ScanPosY: true}
	p, def, err := reg.Params.Resolve("T", FamilyCOSMO)
	if err != nil {
		t.Fatal(err)
	}
	refTime := time.Date(2023, 2, 1, 3, 0, 0, 0, time.UTC)
	vals := make([]float64, 24)
	for i := range vals {
		vals[i] = 250 + 0.5*float64(i)
	}
	f := testField(t, "T", []string{DimZ, DimY, DimX}, []int{2, 3, 4}, vals)
	f.Meta = f.Meta.WithParam(p).WithUnits(def.Units).
		WithGrid(reg.AddGrid(g)).WithVRef(VRefGeo).
		WithTimes(refTime, 2*time.Hour)

	var buf bytes.Buffer
	if err := Save(&buf, reg, f, nil); err != nil {
		t.Fatal(err)
	}

	reg2 := NewRegistry()
	ds, err := Load(NewReaderSource(&buf), []string{"T"},
		&LoadOptions{Registry: reg2, Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	o, err := ds.Param("T")
	if err != nil {
		t.Fatal(err)
	}

	wantDims := []string{DimRefTime, DimLeadTime, DimZ, DimY, DimX}
	if !reflect.DeepEqual(wantDims, o.Dims) {
		t.Errorf("want dims %v but have %v", wantDims, o.Dims)
	}
	if !reflect.DeepEqual([]int{1, 1, 2, 3, 4}, o.Shape()) {
		t.Errorf("want shape [1 1 2 3 4] but have %v", o.Shape())
	}
	if o.Meta.Param != p {
		t.Errorf("want %v but have %v", p, o.Meta.Param)
	}
	if o.Meta.Level != LevelModelFull || o.Meta.OriginZ != 0 {
		t.Errorf("want full levels but have %v with vertical origin %g",
			o.Meta.Level, o.Meta.OriginZ)
	}
	checkValues(t, []float64{1, 2}, o.Levels, 0)
	if !o.Meta.RefTime.Equal(refTime) {
		t.Errorf("want reference time %v but have %v", refTime, o.Meta.RefTime)
	}
	if o.Meta.LeadTime != 2*time.Hour {
		t.Errorf("want lead time 2h but have %v", o.Meta.LeadTime)
	}
	if o.Meta.Member != -1 {
		t.Errorf("want deterministic member -1 but have %d", o.Meta.Member)
	}
	if o.Meta.Units != "K" {
		t.Errorf("want units K but have %s", o.Meta.Units)
	}
	if o.Meta.VRef != VRefGeo {
		t.Errorf("want vector reference %q but have %q", VRefGeo, o.Meta.VRef)
	}
	og, err := reg2.Grid(o.Meta.Grid)
	if err != nil {
		t.Fatal(err)
	}
	if og.Ref() != g.Ref() {
		t.Errorf("want grid %s but have %s", g.Ref(), og.Ref())
	}
	checkValues(t, vals, o.Data.Elements, 1e-2)
}

func TestEncodeEnsemble(t *testing.T) {
	reg := NewRegistry()
	g := &LatLonGrid{Ny: 1, Nx: 2, Lat0: 45, Lon0: 5, DLat: 1, DLon: 1, ScanPosY: true}
	p, _, err := reg.Params.Resolve("PS", FamilyCOSMO)
	if err != nil {
		t.Fatal(err)
	}
	f := testField(t, "PS", []string{DimMember, DimY, DimX}, []int{2, 1, 2},
		[]float64{100000, 100100, 100200, 100300})
	f.Members = []int{1, 2}
	f.Meta = f.Meta.WithParam(p).WithLevel(LevelSurface).
		WithGrid(reg.AddGrid(g)).
		WithTimes(time.Date(2023, 2, 1, 3, 0, 0, 0, time.UTC), time.Hour)

	msgs, err := Encode(reg, f, &EncodeOptions{Centre: 215, Bits: 16, EnsembleSize: 21})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("want 2 messages but have %d", len(msgs))
	}
	m, err := grib.Decode(msgs[1])
	if err != nil {
		t.Fatal(err)
	}
	if m.Product.Member != 2 {
		t.Errorf("want member 2 but have %d", m.Product.Member)
	}
	if m.Product.EnsembleType != 192 || m.Product.EnsembleSize != 21 {
		t.Errorf("want ensemble type 192 with 21 members but have %d and %d",
			m.Product.EnsembleType, m.Product.EnsembleSize)
	}
	if m.ID.TypeOfProcessedData != 4 {
		t.Errorf("want perturbed forecast data type 4 but have %d", m.ID.TypeOfProcessedData)
	}
	checkValues(t, []float64{100200, 100300}, m.Values, 1e-2)
}

func TestSaveTemplateReuse(t *testing.T) {
	reg := NewRegistry()
	g := &LatLonGrid{Ny: 1, Nx: 2, Lat0: 45, Lon0: 5, DLat: 1, DLon: 1, ScanPosY: true}
	p, _, err := reg.Params.Resolve("T", FamilyCOSMO)
	if err != nil {
		t.Fatal(err)
	}
	f0 := testField(t, "T", []string{DimZ, DimY, DimX}, []int{1, 1, 2}, []float64{250, 260})
	f0.Levels = []float64{85000}
	f0.Meta = f0.Meta.WithParam(p).WithLevel(LevelPressure).
		WithGrid(reg.AddGrid(g)).
		WithTimes(time.Date(2023, 2, 1, 3, 0, 0, 0, time.UTC), time.Hour)

	msgs, err := Encode(reg, f0, &EncodeOptions{Centre: 78, SubCentre: 11, Bits: 16})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("want 1 message but have %d", len(msgs))
	}

	dec, err := Decode(msgs[0], reg, FamilyCOSMO)
	if err != nil {
		t.Fatal(err)
	}
	doubled := Apply("T", dec, func(v float64) float64 { return 2 * v })

	// A nil option set would encode with the default centre; the
	// template of the decoded message takes precedence.
	var buf bytes.Buffer
	if err := Save(&buf, reg, doubled, nil); err != nil {
		t.Fatal(err)
	}
	m, err := grib.Decode(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if m.ID.Centre != 78 || m.ID.SubCentre != 11 {
		t.Errorf("want centre 78:11 from the template but have %d:%d",
			m.ID.Centre, m.ID.SubCentre)
	}
	if m.Product.Surface1.Type != 100 || m.Product.Surface1.Value() != 85000 {
		t.Errorf("want pressure surface 85000 but have type %d value %g",
			m.Product.Surface1.Type, m.Product.Surface1.Value())
	}
	checkValues(t, []float64{500, 520}, m.Values, 1e-2)
}

func TestLoadSkipPolicies(t *testing.T) {
	reg := NewRegistry()
	g := &LatLonGrid{Ny: 1, Nx: 2, Lat0: 45, Lon0: 5, DLat: 1, DLon: 1, ScanPosY: true}
	gRef := reg.AddGrid(g)
	refTime := time.Date(2023, 2, 1, 3, 0, 0, 0, time.UTC)

	ps, _, err := reg.Params.Resolve("PS", FamilyCOSMO)
	if err != nil {
		t.Fatal(err)
	}
	a := testField(t, "PS", []string{DimY, DimX}, []int{1, 2}, []float64{100000, 100100})
	a.Meta = a.Meta.WithParam(ps).WithLevel(LevelSurface).WithGrid(gRef).WithTimes(refTime, time.Hour)
	aMsgs, err := Encode(reg, a, nil)
	if err != nil {
		t.Fatal(err)
	}

	// A triplet the tables do not know.
	b := testField(t, "XX", []string{DimY, DimX}, []int{1, 2}, []float64{1, 2})
	b.Meta = b.Meta.WithParam(Param{Discipline: 0, Category: 0, Number: 199, ShortName: "XX"}).
		WithLevel(LevelSurface).WithGrid(gRef).WithTimes(refTime, time.Hour)
	bMsgs, err := Encode(reg, b, nil)
	if err != nil {
		t.Fatal(err)
	}

	// A fixed surface type outside the supported set.
	c, err := grib.Encode(&grib.Message{
		Discipline: 0,
		ID: grib.Identification{
			Centre: 215, TablesVersion: 19, SignificanceOfRT: 1,
			RefTime: refTime, TypeOfProcessedData: 1,
		},
		Grid: &grib.LatLonGridDef{
			Ni: 2, Nj: 1, La1: 45, Lo1: 5, La2: 45, Lo2: 6, Di: 1, Dj: 1,
			ResolutionFlags: 48, ScanPosY: true,
		},
		Product: grib.ProductDef{
			ParameterCategory: 3, ParameterNumber: 0,
			TimeUnit: grib.Hour, ForecastTime: 1,
			Surface1: grib.FixedSurface{Type: 160},
			Surface2: grib.FixedSurface{Type: 255},
			Member:   -1,
		},
		Packing: grib.Packing{Bits: 16},
		Values:  []float64{1, 2},
	})
	if err != nil {
		t.Fatal(err)
	}

	reg2 := NewRegistry()
	ds, err := Load(NewBytesSource(aMsgs[0], bMsgs[0], c), nil,
		&LoadOptions{Registry: reg2, Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	if names := ds.Names(); len(names) != 1 || names[0] != "PS" {
		t.Errorf("want names [PS] but have %v", names)
	}

	// Corrupt bytes fail the load outright.
	_, err = Load(NewBytesSource([]byte("GRIBgarbage")), nil,
		&LoadOptions{Log: quietLog()})
	if err == nil {
		t.Error("want error for corrupt bytes")
	}
}

func TestFileSource(t *testing.T) {
	reg := NewRegistry()
	g := &LatLonGrid{Ny: 1, Nx: 2, Lat0: 45, Lon0: 5, DLat: 1, DLon: 1, ScanPosY: true}
	gRef := reg.AddGrid(g)
	ps, _, err := reg.Params.Resolve("PS", FamilyCOSMO)
	if err != nil {
		t.Fatal(err)
	}
	refTime := time.Date(2023, 2, 1, 3, 0, 0, 0, time.UTC)
	var msgs [][]byte
	for i := 0; i < 3; i++ {
		f := testField(t, "PS", []string{DimY, DimX}, []int{1, 2},
			[]float64{100000 + float64(i), 100100 + float64(i)})
		f.Meta = f.Meta.WithParam(ps).WithLevel(LevelSurface).WithGrid(gRef).
			WithTimes(refTime, time.Duration(i+1)*time.Hour)
		m, err := Encode(reg, f, nil)
		if err != nil {
			t.Fatal(err)
		}
		msgs = append(msgs, m...)
	}

	dir := t.TempDir()
	p1 := filepath.Join(dir, "lfff00010000")
	p2 := filepath.Join(dir, "lfff00030000")
	two := append(append([]byte{}, msgs[0]...), msgs[1]...)
	if err := ioutil.WriteFile(p1, two, 0644); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(p2, msgs[2], 0644); err != nil {
		t.Fatal(err)
	}

	src := NewFileSource(p1, p2)
	for i := range msgs {
		m, err := src.Next()
		if err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
		if !bytes.Equal(m, msgs[i]) {
			t.Errorf("message %d: want %d bytes but have %d", i, len(msgs[i]), len(m))
		}
	}
	if _, err := src.Next(); err != io.EOF {
		t.Errorf("want io.EOF but have %v", err)
	}

	src = NewFileSource(filepath.Join(dir, "missing"))
	if _, err := src.Next(); err == nil {
		t.Error("want error for a missing file")
	}
}

func TestLoadMissingRequested(t *testing.T) {
	reg := NewRegistry()
	g := &LatLonGrid{Ny: 1, Nx: 2, Lat0: 45, Lon0: 5, DLat: 1, DLon: 1, ScanPosY: true}
	ps, _, err := reg.Params.Resolve("PS", FamilyCOSMO)
	if err != nil {
		t.Fatal(err)
	}
	f := testField(t, "PS", []string{DimY, DimX}, []int{1, 2}, []float64{100000, 100100})
	f.Meta = f.Meta.WithParam(ps).WithLevel(LevelSurface).WithGrid(reg.AddGrid(g)).
		WithTimes(time.Date(2023, 2, 1, 3, 0, 0, 0, time.UTC), time.Hour)
	msgs, err := Encode(reg, f, nil)
	if err != nil {
		t.Fatal(err)
	}

	var missing *MissingInputFieldError
	_, err = Load(NewBytesSource(msgs[0]), []string{"PS", "QV"},
		&LoadOptions{Log: quietLog()})
	if !errors.As(err, &missing) {
		t.Fatalf("want MissingInputFieldError but have %v", err)
	}
	if missing.Param != "QV" {
		t.Errorf("want missing param QV but have %s", missing.Param)
	}
}

func TestLoadAssemblesCube(t *testing.T) {
	reg := NewRegistry()
	g := &LatLonGrid{Ny: 1, Nx: 2, Lat0: 45, Lon0: 5, DLat: 1, DLon: 1, ScanPosY: true}
	gRef := reg.AddGrid(g)
	p, _, err := reg.Params.Resolve("T", FamilyCOSMO)
	if err != nil {
		t.Fatal(err)
	}
	refTime := time.Date(2023, 2, 1, 3, 0, 0, 0, time.UTC)

	var msgs [][]byte
	for li, lead := range []time.Duration{time.Hour, 2 * time.Hour} {
		for k := 1; k <= 2; k++ {
			base := 100*float64(li+1) + 10*float64(k)
			f := testField(t, "T", []string{DimY, DimX}, []int{1, 2},
				[]float64{base, base + 1})
			f.Levels = []float64{float64(k)}
			f.Meta = f.Meta.WithParam(p).WithLevel(LevelModelFull).
				WithGrid(gRef).WithTimes(refTime, lead)
			m, err := Encode(reg, f, nil)
			if err != nil {
				t.Fatal(err)
			}
			msgs = append(msgs, m...)
		}
	}

	o, err := LoadSingleParam(NewBytesSource(msgs...), "T",
		&LoadOptions{Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual([]int{1, 2, 2, 1, 2}, o.Shape()) {
		t.Fatalf("want shape [1 2 2 1 2] but have %v", o.Shape())
	}
	if len(o.LeadTimes) != 2 || o.LeadTimes[0] != time.Hour || o.LeadTimes[1] != 2*time.Hour {
		t.Errorf("want lead times [1h 2h] but have %v", o.LeadTimes)
	}
	checkValues(t, []float64{1, 2}, o.Levels, 0)
	want := []float64{110, 111, 120, 121, 210, 211, 220, 221}
	checkValues(t, want, o.Data.Elements, 1e-2)

	// An incomplete hypercube is an error.
	_, err = Load(NewBytesSource(msgs[:3]...), []string{"T"},
		&LoadOptions{Log: quietLog()})
	if err == nil {
		t.Error("want error for an incomplete hypercube")
	}
}
