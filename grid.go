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
	"encoding/hex"
	"fmt"
	"math"
)

// A Grid describes the horizontal locations of a field's values.
// Implementations carry the parameters needed to reconstruct their
// encoding and to compute geographic coordinates for every point.
type Grid interface {
	// Ref returns the registry key of the grid. Grids with equal
	// parameters share a key.
	Ref() GridRef
	// NPoints returns the number of horizontal points.
	NPoints() int
	// Coordinates returns the geographic longitude and latitude in
	// degrees of every point in storage order. The returned slices are
	// shared and must not be modified.
	Coordinates() (lon, lat []float64)
	// Contains reports whether a geographic point lies inside the
	// grid's extent.
	Contains(lon, lat float64) bool
	// ProjString returns the grid's projection parameters in PROJ
	// notation.
	ProjString() string
}

// LatLonGrid is a regular grid in geographic coordinates.
type LatLonGrid struct {
	Ny, Nx int
	// First grid point in degrees.
	Lat0, Lon0 float64
	// Increments in degrees, always positive; the scanning flags give
	// the direction.
	DLat, DLon float64
	// ScanNegX orders points east to west, ScanPosY orders rows south
	// to north.
	ScanNegX, ScanPosY bool

	lonCache, latCache []float64
}

func (g *LatLonGrid) Ref() GridRef {
	return GridRef(fmt.Sprintf("ll:%d:%d:%.6f:%.6f:%.6f:%.6f:%t:%t",
		g.Ny, g.Nx, g.Lat0, g.Lon0, g.DLat, g.DLon, g.ScanNegX, g.ScanPosY))
}

func (g *LatLonGrid) NPoints() int { return g.Ny * g.Nx }

// point returns the native coordinates of row j, column i in storage
// order. Values are rounded to microdegrees, the resolution of the
// integer coordinates in the wire encoding.
func (g *LatLonGrid) point(j, i int) (lon, lat float64) {
	sx, sy := 1.0, -1.0
	if g.ScanNegX {
		sx = -1
	}
	if g.ScanPosY {
		sy = 1
	}
	return microRound(g.Lon0 + sx*float64(i)*g.DLon),
		microRound(g.Lat0 + sy*float64(j)*g.DLat)
}

func microRound(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// lastPoint returns the native coordinates of the last grid point.
func (g *LatLonGrid) lastPoint() (lon, lat float64) {
	return g.point(g.Ny-1, g.Nx-1)
}

func (g *LatLonGrid) Coordinates() (lon, lat []float64) {
	if g.lonCache == nil {
		g.lonCache = make([]float64, g.NPoints())
		g.latCache = make([]float64, g.NPoints())
		for j := 0; j < g.Ny; j++ {
			for i := 0; i < g.Nx; i++ {
				g.lonCache[j*g.Nx+i], g.latCache[j*g.Nx+i] = g.point(j, i)
			}
		}
	}
	return g.lonCache, g.latCache
}

// containsNative reports whether a point in native coordinates lies
// inside the grid's extent.
func (g *LatLonGrid) containsNative(lon, lat float64) bool {
	lonN, latN := g.lastPoint()
	latLo, latHi := g.Lat0, latN
	if latLo > latHi {
		latLo, latHi = latHi, latLo
	}
	if lat < latLo || lat > latHi {
		return false
	}
	span := g.DLon * float64(g.Nx-1)
	off := normLon(lon - g.Lon0)
	if g.ScanNegX {
		off = -off
	}
	return off >= 0 && off <= span
}

func (g *LatLonGrid) Contains(lon, lat float64) bool {
	return g.containsNative(lon, lat)
}

func (g *LatLonGrid) ProjString() string {
	return "+proj=longlat +datum=WGS84 +no_defs"
}

// RotatedLatLonGrid is a regular grid in rotated geographic
// coordinates, defined by the position of the rotated south pole.
type RotatedLatLonGrid struct {
	LatLonGrid
	// Geographic position of the rotated south pole in degrees.
	SouthPoleLat, SouthPoleLon float64
	// Angle of rotation about the pole axis. Only zero is supported by
	// the coordinate transforms.
	Angle float64

	geoLon, geoLat []float64
}

func (g *RotatedLatLonGrid) Ref() GridRef {
	return GridRef(fmt.Sprintf("rll:%d:%d:%.6f:%.6f:%.6f:%.6f:%t:%t:%.6f:%.6f:%.6f",
		g.Ny, g.Nx, g.Lat0, g.Lon0, g.DLat, g.DLon, g.ScanNegX, g.ScanPosY,
		g.SouthPoleLat, g.SouthPoleLon, g.Angle))
}

// NorthPole returns the geographic position of the rotated north pole
// in degrees.
func (g *RotatedLatLonGrid) NorthPole() (lon, lat float64) {
	return wrapLon(g.SouthPoleLon - 180), -g.SouthPoleLat
}

func (g *RotatedLatLonGrid) Coordinates() (lon, lat []float64) {
	if g.geoLon == nil {
		npLon, npLat := g.NorthPole()
		g.geoLon = make([]float64, g.NPoints())
		g.geoLat = make([]float64, g.NPoints())
		for j := 0; j < g.Ny; j++ {
			for i := 0; i < g.Nx; i++ {
				rlon, rlat := g.point(j, i)
				g.geoLon[j*g.Nx+i], g.geoLat[j*g.Nx+i] = rotToGeo(npLon, npLat, rlon, rlat)
			}
		}
	}
	return g.geoLon, g.geoLat
}

func (g *RotatedLatLonGrid) Contains(lon, lat float64) bool {
	npLon, npLat := g.NorthPole()
	rlon, rlat := geoToRot(npLon, npLat, lon, lat)
	return g.containsNative(rlon, rlat)
}

func (g *RotatedLatLonGrid) ProjString() string {
	npLon, npLat := g.NorthPole()
	return fmt.Sprintf("+proj=ob_tran +o_proj=longlat +o_lat_p=%g +lon_0=%g +datum=WGS84 +no_defs",
		npLat, npLon)
}

// IconMeshGrid is the unstructured triangular mesh of an ICON model,
// identified by the UUID of its horizontal grid. The cell center
// coordinates come from the grid file and may be absent until one is
// attached.
type IconMeshGrid struct {
	UUID   [16]byte
	NCells int
	// NumberOfGridUsed is the generation number assigned to the grid by
	// the ICON grid generator.
	NumberOfGridUsed int
	// Cell center coordinates in degrees.
	CLon, CLat []float64

	bbox *[4]float64
}

func (g *IconMeshGrid) Ref() GridRef {
	return GridRef("icon:" + hex.EncodeToString(g.UUID[:]))
}

func (g *IconMeshGrid) NPoints() int { return g.NCells }

func (g *IconMeshGrid) Coordinates() (lon, lat []float64) {
	return g.CLon, g.CLat
}

// Contains reports whether the point lies inside the bounding box of
// the cell centers. Without attached coordinates nothing is contained.
func (g *IconMeshGrid) Contains(lon, lat float64) bool {
	if g.CLon == nil {
		return false
	}
	if g.bbox == nil {
		lonMin, lonMax := math.Inf(1), math.Inf(-1)
		latMin, latMax := math.Inf(1), math.Inf(-1)
		for i := range g.CLon {
			l := normLon(g.CLon[i])
			if l < lonMin {
				lonMin = l
			}
			if l > lonMax {
				lonMax = l
			}
			if g.CLat[i] < latMin {
				latMin = g.CLat[i]
			}
			if g.CLat[i] > latMax {
				latMax = g.CLat[i]
			}
		}
		g.bbox = &[4]float64{lonMin, lonMax, latMin, latMax}
	}
	l := normLon(lon)
	return l >= g.bbox[0] && l <= g.bbox[1] && lat >= g.bbox[2] && lat <= g.bbox[3]
}

func (g *IconMeshGrid) ProjString() string {
	return "+proj=longlat +datum=WGS84 +no_defs"
}

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
)

// normLon maps a longitude into [-180, 180).
func normLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// rotToGeo converts a point from rotated to geographic coordinates,
// given the geographic position of the rotated north pole. All values
// are in degrees.
func rotToGeo(npLon, npLat, rlon, rlat float64) (lon, lat float64) {
	sinNpLat := math.Sin(deg2rad * npLat)
	cosNpLat := math.Cos(deg2rad * npLat)
	sinNpLon := math.Sin(deg2rad * npLon)
	cosNpLon := math.Cos(deg2rad * npLon)

	if rlon >= 180 {
		rlon -= 360
	}
	sinLat := math.Sin(deg2rad * rlat)
	cosLat := math.Cos(deg2rad * rlat)
	sinLon := math.Sin(deg2rad * rlon)
	cosLon := math.Cos(deg2rad * rlon)

	arg1 := cosNpLat*cosLat*cosLon + sinNpLat*sinLat
	lat = rad2deg * math.Asin(arg1)

	arg2 := sinNpLon*(-sinNpLat*cosLon*cosLat+cosNpLat*sinLat) - cosNpLon*sinLon*cosLat
	arg3 := cosNpLon*(-sinNpLat*cosLon*cosLat+cosNpLat*sinLat) + sinNpLon*sinLon*cosLat
	if math.Abs(arg3) < 1e-20 {
		arg3 = 1e-20
	}
	lon = rad2deg * math.Atan2(arg2, arg3)
	if lon < 0 {
		lon += 360
	}
	return lon, lat
}

// geoToRot converts a point from geographic to rotated coordinates. It
// inverts rotToGeo through the transpose of the rotation matrix.
func geoToRot(npLon, npLat, lon, lat float64) (rlon, rlat float64) {
	sinNpLat := math.Sin(deg2rad * npLat)
	cosNpLat := math.Cos(deg2rad * npLat)
	sinNpLon := math.Sin(deg2rad * npLon)
	cosNpLon := math.Cos(deg2rad * npLon)

	sinLat := math.Sin(deg2rad * lat)
	cosLat := math.Cos(deg2rad * lat)
	sinLon := math.Sin(deg2rad * lon)
	cosLon := math.Cos(deg2rad * lon)

	x := cosLat * cosLon
	y := cosLat * sinLon
	z := sinLat

	xr := -sinNpLat*cosNpLon*x - sinNpLat*sinNpLon*y + cosNpLat*z
	yr := sinNpLon*x - cosNpLon*y
	zr := cosNpLat*cosNpLon*x + cosNpLat*sinNpLon*y + sinNpLat*z

	rlat = rad2deg * math.Asin(zr)
	rlon = rad2deg * math.Atan2(yr, xr)
	return rlon, rlat
}

// windRotationFactors returns the sine and cosine factors that realign
// a vector from the rotated grid axes to geographic east and north at
// one geographic location.
func windRotationFactors(npLon, npLat, lon, lat float64) (sinD, cosD float64) {
	sinNp := math.Sin(deg2rad * npLat)
	cosNp := math.Cos(deg2rad * npLat)
	normLat := deg2rad * lat
	normDLon := deg2rad * (npLon - lon)
	arg1 := cosNp * math.Sin(normDLon)
	arg2 := sinNp*math.Cos(normLat) - cosNp*math.Sin(normLat)*math.Cos(normDLon)
	norm := 1 / math.Sqrt(arg1*arg1+arg2*arg2)
	return arg1 * norm, arg2 * norm
}

// RotateVRef realigns the components of a destaggered vector field from
// the rotated grid axes to geographic east and north. The returned
// fields carry the geo vector reference frame.
func RotateVRef(reg *Registry, u, v *Field) (*Field, *Field, error) {
	if u.Meta.OriginX != 0 || v.Meta.OriginY != 0 {
		return nil, nil, fmt.Errorf("meteodatalab: vector fields must be destaggered before rotation")
	}
	if u.Meta.Grid != v.Meta.Grid {
		return nil, nil, &IncompatibleFieldsError{A: u.Name, B: v.Name, Reason: "different grids"}
	}
	g, err := reg.Grid(u.Meta.Grid)
	if err != nil {
		return nil, nil, err
	}
	rg, ok := g.(*RotatedLatLonGrid)
	if !ok {
		return nil, nil, &UnsupportedMetadataError{Key: "gridType", Value: fmt.Sprintf("%T", g)}
	}
	if rg.Angle != 0 {
		return nil, nil, &UnsupportedMetadataError{Key: "angleOfRotation", Value: rg.Angle}
	}
	lon, lat := rg.Coordinates()
	npLon, npLat := rg.NorthPole()
	n := rg.NPoints()

	sinD := make([]float64, n)
	cosD := make([]float64, n)
	for i := 0; i < n; i++ {
		sinD[i], cosD[i] = windRotationFactors(npLon, npLat, lon[i], lat[i])
	}

	uo := u.EmptyLike(u.Name)
	vo := v.EmptyLike(v.Name)
	uo.Meta = u.Meta.WithVRef(VRefGeo)
	vo.Meta = v.Meta.WithVRef(VRefGeo)
	for i, uv := range u.Data.Elements {
		vv := v.Data.Elements[i]
		s, c := sinD[i%n], cosD[i%n]
		uo.Data.Elements[i] = uv*c + vv*s
		vo.Data.Elements[i] = -uv*s + vv*c
	}
	return uo, vo, nil
}

// SwissLV03 converts geographic coordinates to the Swiss CH1903 / LV03
// system using the approximate formula published by swisstopo. The
// precision is on the order of one meter.
func SwissLV03(lon, lat float64) (x, y float64) {
	normLat := (lat*3.6 - 169.02866) / 10
	if lon >= 180 {
		lon -= 360
	}
	normLon := (lon*3.6 - 26.7825) / 10
	y = 200147.07 +
		3745.25*normLon*normLon +
		normLat*(308807.95+
			76.63*normLat-
			194.56*normLon*normLon+
			119.79*normLat*normLat)
	x = 600072.37 + normLon*(211455.93-
		10938.51*normLat-
		0.36*normLat*normLat-
		44.54*normLon*normLon)
	return x, y
}

// SwissLV03Inverse converts Swiss CH1903 / LV03 coordinates back to
// geographic longitude and latitude, using the swisstopo approximate
// inverse formula.
func SwissLV03Inverse(x, y float64) (lon, lat float64) {
	yp := (x - 600000) / 1e6
	xp := (y - 200000) / 1e6
	lonP := 2.6779094 +
		4.728982*yp +
		0.791484*yp*xp +
		0.1306*yp*xp*xp -
		0.0436*yp*yp*yp
	latP := 16.9023892 +
		3.238272*xp -
		0.270978*yp*yp -
		0.002528*xp*xp -
		0.0447*yp*yp*xp -
		0.0140*xp*xp*xp
	return lonP * 100 / 36, latP * 100 / 36
}
