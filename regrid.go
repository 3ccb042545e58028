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
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
)

// Resampling is the method used to sample the source grid at the
// target points.
type Resampling int

const (
	NearestNeighbor Resampling = iota
	Bilinear
)

func (r Resampling) String() string {
	switch r {
	case NearestNeighbor:
		return "nearest"
	case Bilinear:
		return "bilinear"
	}
	return fmt.Sprintf("Resampling(%d)", int(r))
}

// ParseResampling maps a resampling name to its method.
func ParseResampling(s string) (Resampling, error) {
	switch s {
	case "nearest":
		return NearestNeighbor, nil
	case "bilinear":
		return Bilinear, nil
	}
	return 0, fmt.Errorf("meteodatalab: unknown resampling method %q", s)
}

// crsDef is one supported output coordinate reference system with
// transforms between its coordinates and geographic longitude/latitude.
type crsDef struct {
	name    string
	projStr string
	toGeo   func(x, y float64) (lon, lat float64, err error)
	fromGeo func(lon, lat float64) (x, y float64, err error)
}

const longlatProj = "+proj=longlat +datum=WGS84 +no_defs"

// Canonical projection parameters of the CRS aliases that are handled
// by closed-form transforms rather than a projection library.
const (
	swissLV03Proj = "+proj=somerc +lat_0=46.952405555555565 +lon_0=7.439583333333333 +k_0=1 +x_0=600000 +y_0=200000 +ellps=bessel +towgs84=674.374,15.056,405.346,0,0,0,0 +units=m +no_defs"
	swissLV95Proj = "+proj=somerc +lat_0=46.952405555555565 +lon_0=7.439583333333333 +k_0=1 +x_0=2600000 +y_0=1200000 +ellps=bessel +towgs84=674.374,15.056,405.346,0,0,0,0 +units=m +no_defs"
)

// projAliases are the CRS aliases backed by the projection library.
var projAliases = map[string]string{
	"boaga-west": "+proj=tmerc +lat_0=0 +lon_0=9 +k=0.9996 +x_0=1500000 +y_0=0 +a=6378388 +rf=297 +units=m +no_defs",
	"boaga-east": "+proj=tmerc +lat_0=0 +lon_0=15 +k=0.9996 +x_0=2520000 +y_0=0 +a=6378388 +rf=297 +units=m +no_defs",
	"utm32n":     "+proj=utm +zone=32 +datum=WGS84 +units=m +no_defs",
}

var (
	crsMx    sync.Mutex
	crsCache = make(map[string]*crsDef)
)

// lookupCRS resolves a CRS alias to its definition, building projection
// transforms on first use.
func lookupCRS(name string) (*crsDef, error) {
	crsMx.Lock()
	defer crsMx.Unlock()
	if d, ok := crsCache[name]; ok {
		return d, nil
	}
	d, err := buildCRS(name)
	if err != nil {
		return nil, err
	}
	crsCache[name] = d
	return d, nil
}

func buildCRS(name string) (*crsDef, error) {
	identity := func(a, b float64) (float64, float64, error) { return a, b, nil }
	switch name {
	case "geolatlon":
		return &crsDef{name: name, projStr: longlatProj, toGeo: identity, fromGeo: identity}, nil
	case "swiss", "swiss03":
		return &crsDef{
			name:    "swiss",
			projStr: swissLV03Proj,
			toGeo: func(x, y float64) (float64, float64, error) {
				lon, lat := SwissLV03Inverse(x, y)
				return lon, lat, nil
			},
			fromGeo: func(lon, lat float64) (float64, float64, error) {
				x, y := SwissLV03(lon, lat)
				return x, y, nil
			},
		}, nil
	case "swiss95":
		return &crsDef{
			name:    name,
			projStr: swissLV95Proj,
			toGeo: func(x, y float64) (float64, float64, error) {
				lon, lat := SwissLV03Inverse(x-2e6, y-1e6)
				return lon, lat, nil
			},
			fromGeo: func(lon, lat float64) (float64, float64, error) {
				x, y := SwissLV03(lon, lat)
				return x + 2e6, y + 1e6, nil
			},
		}, nil
	}
	projStr, ok := projAliases[name]
	if !ok {
		return nil, fmt.Errorf("meteodatalab: unknown coordinate reference system %q", name)
	}
	sr, err := proj.Parse(projStr)
	if err != nil {
		return nil, fmt.Errorf("meteodatalab: while parsing projection for %s: %v", name, err)
	}
	geoSR, err := proj.Parse(longlatProj)
	if err != nil {
		return nil, fmt.Errorf("meteodatalab: while parsing geographic projection: %v", err)
	}
	toGeo, err := sr.NewTransform(geoSR)
	if err != nil {
		return nil, fmt.Errorf("meteodatalab: while preparing transform from %s: %v", name, err)
	}
	fromGeo, err := geoSR.NewTransform(sr)
	if err != nil {
		return nil, fmt.Errorf("meteodatalab: while preparing transform to %s: %v", name, err)
	}
	return &crsDef{name: name, projStr: projStr, toGeo: toGeo, fromGeo: fromGeo}, nil
}

// A RegularGrid defines a regular target grid in an output coordinate
// reference system, with rows stored south to north.
type RegularGrid struct {
	CRS    string
	Nx, Ny int
	// Coordinates of the first and last grid points.
	XMin, XMax, YMin, YMax float64
}

// Dx returns the grid increment in the x direction.
func (g *RegularGrid) Dx() float64 {
	if g.Nx <= 1 {
		return 0
	}
	return (g.XMax - g.XMin) / float64(g.Nx-1)
}

// Dy returns the grid increment in the y direction.
func (g *RegularGrid) Dy() float64 {
	if g.Ny <= 1 {
		return 0
	}
	return (g.YMax - g.YMin) / float64(g.Ny-1)
}

// ParseTarget parses a target grid definition in the form
// crs,xmin,ymin,xmax,ymax,dx,dy.
func ParseTarget(op string) (*RegularGrid, error) {
	parts := strings.Split(op, ",")
	if len(parts) != 7 {
		return nil, fmt.Errorf("meteodatalab: target grid %q must have the form crs,xmin,ymin,xmax,ymax,dx,dy", op)
	}
	crs, err := lookupCRS(parts[0])
	if err != nil {
		return nil, err
	}
	vals := make([]float64, 6)
	for i, s := range parts[1:] {
		if vals[i], err = strconv.ParseFloat(s, 64); err != nil {
			return nil, fmt.Errorf("meteodatalab: while parsing target grid %q: %v", op, err)
		}
	}
	xmin, ymin, xmax, ymax, dx, dy := vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]
	if math.Abs(dx) < 1e-10 || math.Abs(dy) < 1e-10 {
		return nil, fmt.Errorf("meteodatalab: target grid %q has degenerate increments", op)
	}
	nx := (xmax-xmin)/dx + 1
	ny := (ymax-ymin)/dy + 1
	if math.Abs(nx-math.Round(nx)) > 1e-9 || math.Abs(ny-math.Round(ny)) > 1e-9 {
		return nil, fmt.Errorf("meteodatalab: target grid %q has inconsistent extent and increments", op)
	}
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("meteodatalab: target grid %q is empty", op)
	}
	return &RegularGrid{
		CRS: crs.name,
		Nx:  int(math.Round(nx)), Ny: int(math.Round(ny)),
		XMin: xmin, XMax: xmax, YMin: ymin, YMax: ymax,
	}, nil
}

// TargetFromGrid returns a target grid in the given CRS covering the
// extent of a structured source grid, with the same number of points.
func TargetFromGrid(src Grid, crsName string) (*RegularGrid, error) {
	crs, err := lookupCRS(crsName)
	if err != nil {
		return nil, err
	}
	var base *LatLonGrid
	switch g := src.(type) {
	case *LatLonGrid:
		base = g
	case *RotatedLatLonGrid:
		if g.Angle != 0 {
			return nil, &UnsupportedMetadataError{Key: "angleOfRotation", Value: g.Angle}
		}
		base = &g.LatLonGrid
	default:
		return nil, &UnsupportedMetadataError{Key: "gridType", Value: fmt.Sprintf("%T", src)}
	}
	if base.ScanNegX || !base.ScanPosY {
		return nil, &UnsupportedMetadataError{Key: "scanningMode", Value: fmt.Sprintf("%t,%t", base.ScanNegX, base.ScanPosY)}
	}
	lon, lat := src.Coordinates()
	xmin, xmax := math.Inf(1), math.Inf(-1)
	ymin, ymax := math.Inf(1), math.Inf(-1)
	for i := range lon {
		x, y, err := crs.fromGeo(normLon(lon[i]), lat[i])
		if err != nil {
			continue
		}
		if x < xmin {
			xmin = x
		}
		if x > xmax {
			xmax = x
		}
		if y < ymin {
			ymin = y
		}
		if y > ymax {
			ymax = y
		}
	}
	if math.IsInf(xmin, 1) {
		return nil, fmt.Errorf("meteodatalab: source grid extent does not transform to %s", crs.name)
	}
	return &RegularGrid{
		CRS: crs.name,
		Nx:  base.Nx, Ny: base.Ny,
		XMin: xmin, XMax: xmax, YMin: ymin, YMax: ymax,
	}, nil
}

// ProjGrid is a regular grid in a projected coordinate reference
// system, produced by regridding. It has no encoding target.
type ProjGrid struct {
	CRS    string
	Ny, Nx int
	X0, Y0 float64
	Dx, Dy float64

	lonCache, latCache []float64
}

func (g *ProjGrid) Ref() GridRef {
	return GridRef(fmt.Sprintf("proj:%s:%d:%d:%.3f:%.3f:%.3f:%.3f",
		g.CRS, g.Ny, g.Nx, g.X0, g.Y0, g.Dx, g.Dy))
}

func (g *ProjGrid) NPoints() int { return g.Ny * g.Nx }

func (g *ProjGrid) Coordinates() (lon, lat []float64) {
	if g.lonCache == nil {
		d, err := lookupCRS(g.CRS)
		if err != nil {
			return nil, nil
		}
		g.lonCache = make([]float64, g.NPoints())
		g.latCache = make([]float64, g.NPoints())
		for j := 0; j < g.Ny; j++ {
			for i := 0; i < g.Nx; i++ {
				x := g.X0 + float64(i)*g.Dx
				y := g.Y0 + float64(j)*g.Dy
				ln, lt, err := d.toGeo(x, y)
				if err != nil {
					ln, lt = math.NaN(), math.NaN()
				}
				g.lonCache[j*g.Nx+i], g.latCache[j*g.Nx+i] = ln, lt
			}
		}
	}
	return g.lonCache, g.latCache
}

func (g *ProjGrid) Contains(lon, lat float64) bool {
	d, err := lookupCRS(g.CRS)
	if err != nil {
		return false
	}
	x, y, err := d.fromGeo(lon, lat)
	if err != nil {
		return false
	}
	return x >= g.X0 && x <= g.X0+float64(g.Nx-1)*g.Dx &&
		y >= g.Y0 && y <= g.Y0+float64(g.Ny-1)*g.Dy
}

func (g *ProjGrid) ProjString() string {
	d, err := lookupCRS(g.CRS)
	if err != nil {
		return ""
	}
	return d.projStr
}

// tap is the sampling recipe for one target point: up to four source
// points and their weights. A tap with no points marks a target outside
// the source extent.
type tap struct {
	idx [4]int
	w   [4]float64
	n   int
}

// newSampler returns a function mapping a geographic point to the
// source points and weights that sample it.
func newSampler(ctx context.Context, reg *Registry, src Grid, method Resampling) (func(lon, lat float64) tap, error) {
	switch g := src.(type) {
	case *LatLonGrid:
		return structuredSampler(g, nil, method)
	case *RotatedLatLonGrid:
		if g.Angle != 0 {
			return nil, &UnsupportedMetadataError{Key: "angleOfRotation", Value: g.Angle}
		}
		npLon, npLat := g.NorthPole()
		toNative := func(lon, lat float64) (float64, float64) {
			return geoToRot(npLon, npLat, lon, lat)
		}
		return structuredSampler(&g.LatLonGrid, toNative, method)
	case *IconMeshGrid:
		if method != NearestNeighbor {
			return nil, fmt.Errorf("meteodatalab: %s resampling is not supported for the icon mesh", method)
		}
		index, err := reg.spatialIndex(ctx, src.Ref())
		if err != nil {
			return nil, err
		}
		return func(lon, lat float64) tap {
			if math.IsNaN(lon) || math.IsNaN(lat) {
				return tap{}
			}
			i := nearestPoint(index, geom.Point{X: normLon(lon), Y: lat}, 0.1)
			if i < 0 {
				return tap{}
			}
			return tap{idx: [4]int{i}, w: [4]float64{1}, n: 1}
		}, nil
	default:
		return nil, &UnsupportedMetadataError{Key: "gridType", Value: fmt.Sprintf("%T", src)}
	}
}

func structuredSampler(g *LatLonGrid, toNative func(lon, lat float64) (float64, float64), method Resampling) (func(lon, lat float64) tap, error) {
	if g.ScanNegX || !g.ScanPosY {
		return nil, &UnsupportedMetadataError{Key: "scanningMode", Value: fmt.Sprintf("%t,%t", g.ScanNegX, g.ScanPosY)}
	}
	nx, ny := g.Nx, g.Ny
	return func(lon, lat float64) tap {
		if math.IsNaN(lon) || math.IsNaN(lat) {
			return tap{}
		}
		nlon, nlat := lon, lat
		if toNative != nil {
			nlon, nlat = toNative(lon, lat)
		}
		fi := normLon(nlon-g.Lon0) / g.DLon
		fj := (nlat - g.Lat0) / g.DLat
		if method == NearestNeighbor {
			i, j := int(math.Round(fi)), int(math.Round(fj))
			if i < 0 || i >= nx || j < 0 || j >= ny {
				return tap{}
			}
			return tap{idx: [4]int{j*nx + i}, w: [4]float64{1}, n: 1}
		}
		i0, j0 := int(math.Floor(fi)), int(math.Floor(fj))
		// Targets exactly on the far edge still have a valid cell.
		if i0 == nx-1 && fi == float64(nx-1) {
			i0--
		}
		if j0 == ny-1 && fj == float64(ny-1) {
			j0--
		}
		if i0 < 0 || i0+1 >= nx || j0 < 0 || j0+1 >= ny {
			return tap{}
		}
		wx, wy := fi-float64(i0), fj-float64(j0)
		return tap{
			idx: [4]int{j0*nx + i0, j0*nx + i0 + 1, (j0+1)*nx + i0, (j0+1)*nx + i0 + 1},
			w:   [4]float64{(1 - wx) * (1 - wy), wx * (1 - wy), (1 - wx) * wy, wx * wy},
			n:   4,
		}
	}, nil
}

// Regrid resamples a field onto a target grid. The field must be
// destaggered. Target points outside the source extent are set to NaN.
// The output metadata refers to the newly registered output grid; grid
// bound metadata of the source, such as the mesh identity or staggering
// origins, is not carried over.
func Regrid(ctx context.Context, reg *Registry, f *Field, dst *RegularGrid, method Resampling) (*Field, error) {
	if f.Meta.StaggeredHorizontal() {
		return nil, fmt.Errorf("meteodatalab: field %s must be destaggered before regridding", f.Name)
	}
	src, err := reg.Grid(f.Meta.Grid)
	if err != nil {
		return nil, err
	}
	crs, err := lookupCRS(dst.CRS)
	if err != nil {
		return nil, err
	}
	sample, err := newSampler(ctx, reg, src, method)
	if err != nil {
		return nil, err
	}

	dx, dy := dst.Dx(), dst.Dy()
	taps := make([]tap, dst.Nx*dst.Ny)
	for jj := 0; jj < dst.Ny; jj++ {
		y := dst.YMin + float64(jj)*dy
		for ii := 0; ii < dst.Nx; ii++ {
			x := dst.XMin + float64(ii)*dx
			lon, lat, err := crs.toGeo(x, y)
			if err != nil {
				lon, lat = math.NaN(), math.NaN()
			}
			taps[jj*dst.Nx+ii] = sample(lon, lat)
		}
	}

	dims, shape := replaceHorizontal(f, dst.Ny, dst.Nx)
	out := &Field{
		Name: f.Name,
		Dims: dims,
		Data: sparse.ZerosDense(shape...),
	}
	copyCoords(out, f)

	innerSrc := horizontalSize(f)
	innerDst := dst.Ny * dst.Nx
	outer := len(f.Data.Elements) / innerSrc
	for o := 0; o < outer; o++ {
		srcBase := o * innerSrc
		dstBase := o * innerDst
		for t, tp := range taps {
			if tp.n == 0 {
				out.Data.Elements[dstBase+t] = math.NaN()
				continue
			}
			v := 0.0
			for a := 0; a < tp.n; a++ {
				v += tp.w[a] * f.Data.Elements[srcBase+tp.idx[a]]
			}
			out.Data.Elements[dstBase+t] = v
		}
	}

	var og Grid
	if crs.name == "geolatlon" {
		og = &LatLonGrid{
			Ny: dst.Ny, Nx: dst.Nx,
			Lat0: dst.YMin, Lon0: wrapLon(dst.XMin),
			DLat: dy, DLon: dx,
			ScanPosY: true,
		}
	} else {
		og = &ProjGrid{
			CRS: crs.name,
			Ny:  dst.Ny, Nx: dst.Nx,
			X0: dst.XMin, Y0: dst.YMin,
			Dx: dx, Dy: dy,
		}
	}
	out.Meta = f.Meta.WithGrid(reg.AddGrid(og))
	return out, nil
}

// replaceHorizontal returns the dimensions and shape of f with the
// horizontal dimensions replaced by a y/x pair of the given lengths.
func replaceHorizontal(f *Field, ny, nx int) (dims []string, shape []int) {
	for i, d := range f.Dims {
		if d == DimY || d == DimX || d == DimCell {
			continue
		}
		dims = append(dims, d)
		shape = append(shape, f.Data.Shape[i])
	}
	dims = append(dims, DimY, DimX)
	shape = append(shape, ny, nx)
	return dims, shape
}
