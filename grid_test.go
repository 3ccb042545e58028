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
	"math"
	"testing"
)

func TestRotationRoundTrip(t *testing.T) {
	const npLon, npLat = 190, 43
	points := [][2]float64{
		{0, 0},
		{0.5, -1.25},
		{-5, 10},
		{12, 4.5},
	}
	for _, p := range points {
		lon, lat := rotToGeo(npLon, npLat, p[0], p[1])
		rlon, rlat := geoToRot(npLon, npLat, lon, lat)
		if math.Abs(rlon-p[0]) > 1e-9 || math.Abs(rlat-p[1]) > 1e-9 {
			t.Errorf("want (%g, %g) but have (%g, %g)", p[0], p[1], rlon, rlat)
		}
	}
}

func TestNorthPole(t *testing.T) {
	g := &RotatedLatLonGrid{SouthPoleLat: -43, SouthPoleLon: 10}
	lon, lat := g.NorthPole()
	if lon != 190 || lat != 43 {
		t.Errorf("want north pole (190, 43) but have (%g, %g)", lon, lat)
	}
}

func TestLatLonGridCoordinates(t *testing.T) {
	g := &LatLonGrid{Ny: 2, Nx: 2, Lat0: 46, Lon0: 5, DLat: 1, DLon: 1, ScanPosY: true}
	lon, lat := g.Coordinates()
	checkValues(t, []float64{5, 6, 5, 6}, lon, 0)
	checkValues(t, []float64{46, 46, 47, 47}, lat, 0)

	// The default row order scans from north to south.
	g = &LatLonGrid{Ny: 2, Nx: 2, Lat0: 46, Lon0: 5, DLat: 1, DLon: 1}
	_, lat = g.Coordinates()
	checkValues(t, []float64{46, 46, 45, 45}, lat, 0)
}

func TestLatLonGridContains(t *testing.T) {
	g := &LatLonGrid{Ny: 3, Nx: 4, Lat0: 45, Lon0: 5, DLat: 1, DLon: 1, ScanPosY: true}
	cases := []struct {
		lon, lat float64
		want     bool
	}{
		{6.5, 46, true},
		{4.9, 46, false},
		{6, 47.5, false},
		// The same point spelled in the [-360, 0) convention.
		{-353.5, 46, true},
	}
	for _, c := range cases {
		if have := g.Contains(c.lon, c.lat); have != c.want {
			t.Errorf("Contains(%g, %g): want %v but have %v", c.lon, c.lat, c.want, have)
		}
	}
}

func TestRotateVRefIdentityPole(t *testing.T) {
	// With the rotated pole at the geographic pole the grid axes already
	// point east and north.
	reg := NewRegistry()
	g := &RotatedLatLonGrid{
		LatLonGrid:   LatLonGrid{Ny: 1, Nx: 2, Lat0: 45, Lon0: 5, DLat: 1, DLon: 1, ScanPosY: true},
		SouthPoleLat: -90,
		SouthPoleLon: 0,
	}
	ref := reg.AddGrid(g)
	u := testField(t, "U", []string{DimY, DimX}, []int{1, 2}, []float64{3, 5})
	u.Meta = u.Meta.WithGrid(ref).WithVRef(VRefNative)
	v := testField(t, "V", []string{DimY, DimX}, []int{1, 2}, []float64{4, -2})
	v.Meta = v.Meta.WithGrid(ref).WithVRef(VRefNative)

	uo, vo, err := RotateVRef(reg, u, v)
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, []float64{3, 5}, uo.Data.Elements, 1e-9)
	checkValues(t, []float64{4, -2}, vo.Data.Elements, 1e-9)
	if uo.Meta.VRef != VRefGeo || vo.Meta.VRef != VRefGeo {
		t.Errorf("want vector reference %q but have %q and %q",
			VRefGeo, uo.Meta.VRef, vo.Meta.VRef)
	}
}

func TestRotateVRefPreservesSpeed(t *testing.T) {
	reg := NewRegistry()
	g := &RotatedLatLonGrid{
		LatLonGrid:   LatLonGrid{Ny: 1, Nx: 1, Lat0: 0, Lon0: 0, DLat: 1, DLon: 1, ScanPosY: true},
		SouthPoleLat: -43,
		SouthPoleLon: 10,
	}
	ref := reg.AddGrid(g)
	u := testField(t, "U", []string{DimY, DimX}, []int{1, 1}, []float64{3})
	u.Meta = u.Meta.WithGrid(ref)
	v := testField(t, "V", []string{DimY, DimX}, []int{1, 1}, []float64{4})
	v.Meta = v.Meta.WithGrid(ref)

	uo, vo, err := RotateVRef(reg, u, v)
	if err != nil {
		t.Fatal(err)
	}
	speed2 := uo.Data.Elements[0]*uo.Data.Elements[0] + vo.Data.Elements[0]*vo.Data.Elements[0]
	if math.Abs(speed2-25) > 1e-9 {
		t.Errorf("want squared speed 25 but have %g", speed2)
	}
}

func TestRotateVRefChecks(t *testing.T) {
	reg := NewRegistry()
	rot := &RotatedLatLonGrid{
		LatLonGrid:   LatLonGrid{Ny: 1, Nx: 1, Lat0: 0, Lon0: 0, DLat: 1, DLon: 1, ScanPosY: true},
		SouthPoleLat: -43,
		SouthPoleLon: 10,
	}
	rotRef := reg.AddGrid(rot)
	u := testField(t, "U", []string{DimY, DimX}, []int{1, 1}, []float64{3})
	u.Meta = u.Meta.WithGrid(rotRef)
	v := testField(t, "V", []string{DimY, DimX}, []int{1, 1}, []float64{4})
	v.Meta = v.Meta.WithGrid(rotRef)

	staggered := testField(t, "U", []string{DimY, DimX}, []int{1, 1}, []float64{3})
	staggered.Meta = staggered.Meta.WithGrid(rotRef)
	staggered.Meta.OriginX = 0.5
	if _, _, err := RotateVRef(reg, staggered, v); err == nil {
		t.Error("want error for staggered components")
	}

	other := testField(t, "V", []string{DimY, DimX}, []int{1, 1}, []float64{4})
	other.Meta = other.Meta.WithGrid("other")
	var incompatible *IncompatibleFieldsError
	if _, _, err := RotateVRef(reg, u, other); !errors.As(err, &incompatible) {
		t.Errorf("want IncompatibleFieldsError but have %v", err)
	}

	plain := reg.AddGrid(&LatLonGrid{Ny: 1, Nx: 1, Lat0: 0, Lon0: 0, DLat: 1, DLon: 1})
	up := testField(t, "U", []string{DimY, DimX}, []int{1, 1}, []float64{3})
	up.Meta = up.Meta.WithGrid(plain)
	vp := testField(t, "V", []string{DimY, DimX}, []int{1, 1}, []float64{4})
	vp.Meta = vp.Meta.WithGrid(plain)
	var unsupported *UnsupportedMetadataError
	if _, _, err := RotateVRef(reg, up, vp); !errors.As(err, &unsupported) {
		t.Errorf("want UnsupportedMetadataError but have %v", err)
	}

	angled := &RotatedLatLonGrid{
		LatLonGrid:   LatLonGrid{Ny: 1, Nx: 1, Lat0: 0, Lon0: 0, DLat: 1, DLon: 1, ScanPosY: true},
		SouthPoleLat: -43,
		SouthPoleLon: 10,
		Angle:        15,
	}
	angledRef := reg.AddGrid(angled)
	ua := testField(t, "U", []string{DimY, DimX}, []int{1, 1}, []float64{3})
	ua.Meta = ua.Meta.WithGrid(angledRef)
	va := testField(t, "V", []string{DimY, DimX}, []int{1, 1}, []float64{4})
	va.Meta = va.Meta.WithGrid(angledRef)
	if _, _, err := RotateVRef(reg, ua, va); !errors.As(err, &unsupported) {
		t.Errorf("want UnsupportedMetadataError but have %v", err)
	}
}

func TestSwissLV03(t *testing.T) {
	// The old observatory of Bern is the projection origin.
	x, y := SwissLV03(7.438632495, 46.951082877)
	if math.Abs(x-600000) > 2 || math.Abs(y-200000) > 2 {
		t.Errorf("want approximately (600000, 200000) but have (%g, %g)", x, y)
	}
	lon, lat := SwissLV03Inverse(600000, 200000)
	if math.Abs(lon-7.438632495) > 1e-3 || math.Abs(lat-46.951082877) > 1e-3 {
		t.Errorf("want approximately (7.4386, 46.9511) but have (%g, %g)", lon, lat)
	}
}
