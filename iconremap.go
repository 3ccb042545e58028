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
	"os"
	"runtime"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/ctessum/requestcache"
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/mat"
)

// defaultRemapStencil is the number of mesh cells contributing to each
// target point.
const defaultRemapStencil = 4

// RemapCoeffs is a precomputed interpolation stencil from an ICON mesh
// onto a structured grid. For each target point it holds the mesh cell
// indices and weights of the contributing cells; an index of -1 marks
// an unused slot and a target with no contributing cells is outside the
// mesh.
type RemapCoeffs struct {
	MeshUUID [16]byte
	Grid     Grid
	Stencil  int
	Indices  []int32
	Weights  []float64
}

// ComputeRemapCoeffs builds radial basis function interpolation weights
// from the mesh onto the target grid. For each target point, the
// stencil nearest mesh cells are looked up in the spatial index and a
// Gaussian kernel system is solved for the weights, which are then
// normalized so that remapping a constant field reproduces the
// constant. Target points outside the mesh extent get an empty stencil.
func ComputeRemapCoeffs(ctx context.Context, reg *Registry, mesh *IconMeshGrid, target Grid, stencil int) (*RemapCoeffs, error) {
	switch target.(type) {
	case *LatLonGrid, *RotatedLatLonGrid:
	default:
		return nil, &UnsupportedMetadataError{Key: "gridType", Value: fmt.Sprintf("%T", target)}
	}
	if stencil <= 0 {
		stencil = defaultRemapStencil
	}
	if stencil > mesh.NCells {
		return nil, fmt.Errorf("meteodatalab: stencil %d larger than mesh with %d cells", stencil, mesh.NCells)
	}
	reg.AddGrid(mesh)
	index, err := reg.spatialIndex(ctx, mesh.Ref())
	if err != nil {
		return nil, err
	}

	tLon, tLat := target.Coordinates()
	npts := target.NPoints()
	c := &RemapCoeffs{
		MeshUUID: mesh.UUID,
		Grid:     target,
		Stencil:  stencil,
		Indices:  make([]int32, npts*stencil),
		Weights:  make([]float64, npts*stencil),
	}

	mx := make([]float64, mesh.NCells)
	my := make([]float64, mesh.NCells)
	mz := make([]float64, mesh.NCells)
	for i := 0; i < mesh.NCells; i++ {
		mx[i], my[i], mz[i] = lonLatVec(mesh.CLon[i], mesh.CLat[i])
	}

	a := mat.NewDense(stencil, stencil, nil)
	b := mat.NewVecDense(stencil, nil)
	for t := 0; t < npts; t++ {
		for s := 0; s < stencil; s++ {
			c.Indices[t*stencil+s] = -1
		}
		if !mesh.Contains(tLon[t], tLat[t]) {
			continue
		}
		idxs := nearestPoints(index, geom.Point{X: normLon(tLon[t]), Y: tLat[t]}, stencil, 0.05)
		if idxs == nil {
			continue
		}
		px, py, pz := lonLatVec(tLon[t], tLat[t])
		// Kernel shape from the stencil extent so that the exponents
		// stay well conditioned at any mesh resolution.
		eps := 0.0
		for i := 0; i < stencil; i++ {
			for j := i + 1; j < stencil; j++ {
				d := chord(mx[idxs[i]], my[idxs[i]], mz[idxs[i]], mx[idxs[j]], my[idxs[j]], mz[idxs[j]])
				if d > eps {
					eps = d
				}
			}
		}
		w := c.Weights[t*stencil : (t+1)*stencil]
		if eps == 0 {
			w[0] = 1
		} else {
			for i := 0; i < stencil; i++ {
				for j := 0; j < stencil; j++ {
					d := chord(mx[idxs[i]], my[idxs[i]], mz[idxs[i]], mx[idxs[j]], my[idxs[j]], mz[idxs[j]])
					a.Set(i, j, rbfKernel(d, eps))
				}
				b.SetVec(i, rbfKernel(chord(mx[idxs[i]], my[idxs[i]], mz[idxs[i]], px, py, pz), eps))
			}
			var sol mat.VecDense
			if err := sol.SolveVec(a, b); err != nil {
				// Degenerate stencil, fall back to the nearest cell.
				for i := range w {
					w[i] = 0
				}
				w[0] = 1
			} else {
				sum := 0.0
				for i := 0; i < stencil; i++ {
					w[i] = sol.AtVec(i)
					sum += w[i]
				}
				if math.Abs(sum) < 1e-12 {
					for i := range w {
						w[i] = 0
					}
					w[0] = 1
				} else {
					for i := range w {
						w[i] /= sum
					}
				}
			}
		}
		for s, i := range idxs {
			c.Indices[t*stencil+s] = int32(i)
		}
	}
	return c, nil
}

// rbfKernel is the Gaussian radial basis function.
func rbfKernel(d, eps float64) float64 {
	r := d / eps
	return math.Exp(-r * r)
}

// lonLatVec converts geographic coordinates to a unit vector.
func lonLatVec(lon, lat float64) (x, y, z float64) {
	sinLat, cosLat := math.Sincos(lat * deg2rad)
	sinLon, cosLon := math.Sincos(lon * deg2rad)
	return cosLat * cosLon, cosLat * sinLon, sinLat
}

// chord is the straight line distance between two points on the unit
// sphere.
func chord(ax, ay, az, bx, by, bz float64) float64 {
	dx, dy, dz := ax-bx, ay-by, az-bz
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Apply remaps a field from the mesh onto the stencil's target grid.
func (c *RemapCoeffs) Apply(reg *Registry, f *Field) (*Field, error) {
	src, err := reg.Grid(f.Meta.Grid)
	if err != nil {
		return nil, err
	}
	mesh, ok := src.(*IconMeshGrid)
	if !ok {
		return nil, &UnsupportedMetadataError{Key: "gridType", Value: fmt.Sprintf("%T", src)}
	}
	if mesh.UUID != c.MeshUUID {
		return nil, &IncompatibleFieldsError{A: f.Name, B: "remap coefficients",
			Reason: fmt.Sprintf("grid uuid %s does not match %s",
				FormatGridUUID(mesh.UUID), FormatGridUUID(c.MeshUUID))}
	}
	ny, nx := gridShape(c.Grid)
	dims, shape := replaceHorizontal(f, ny, nx)
	out := &Field{
		Name: f.Name,
		Dims: dims,
		Data: sparse.ZerosDense(shape...),
	}
	copyCoords(out, f)

	innerSrc := horizontalSize(f)
	innerDst := ny * nx
	outer := len(f.Data.Elements) / innerSrc
	for o := 0; o < outer; o++ {
		srcBase := o * innerSrc
		dstBase := o * innerDst
		for t := 0; t < innerDst; t++ {
			if c.Indices[t*c.Stencil] < 0 {
				out.Data.Elements[dstBase+t] = math.NaN()
				continue
			}
			v := 0.0
			for s := 0; s < c.Stencil; s++ {
				i := c.Indices[t*c.Stencil+s]
				if i < 0 {
					break
				}
				v += c.Weights[t*c.Stencil+s] * f.Data.Elements[srcBase+int(i)]
			}
			out.Data.Elements[dstBase+t] = v
		}
	}
	out.Meta = f.Meta.WithGrid(reg.AddGrid(c.Grid))
	return out, nil
}

func gridShape(g Grid) (ny, nx int) {
	switch gg := g.(type) {
	case *LatLonGrid:
		return gg.Ny, gg.Nx
	case *RotatedLatLonGrid:
		return gg.Ny, gg.Nx
	}
	return 1, g.NPoints()
}

// remapRequest identifies one set of remap coefficients.
type remapRequest struct {
	mesh    *IconMeshGrid
	target  Grid
	stencil int
}

// RemapCoeffs returns cached remap coefficients from the mesh onto the
// target grid, computing them on first use.
func (r *Registry) RemapCoeffs(ctx context.Context, mesh *IconMeshGrid, target Grid, stencil int) (*RemapCoeffs, error) {
	r.remapInit.Do(func() {
		r.remapCache = requestcache.NewCache(r.remapWorker, runtime.GOMAXPROCS(-1),
			requestcache.Deduplicate(), requestcache.Memory(4))
	})
	req := r.remapCache.NewRequest(ctx, remapRequest{mesh: mesh, target: target, stencil: stencil},
		fmt.Sprintf("remap_%s_%s_%d", mesh.Ref(), target.Ref(), stencil))
	resultI, err := req.Result()
	if err != nil {
		return nil, err
	}
	return resultI.(*RemapCoeffs), nil
}

func (r *Registry) remapWorker(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(remapRequest)
	return ComputeRemapCoeffs(ctx, r, req.mesh, req.target, req.stencil)
}

// DefaultRemapTarget returns the standard structured output grid of a
// known model, in either geographic ("geolatlon") or rotated
// ("rotlatlon") coordinates.
func DefaultRemapTarget(model, gridType string) (Grid, error) {
	switch model + "/" + gridType {
	case "icon-ch1-eps/geolatlon":
		return &LatLonGrid{Ny: 641, Nx: 1141, Lat0: 43.6, Lon0: 5.5,
			DLat: 0.01, DLon: 0.01, ScanPosY: true}, nil
	case "icon-ch2-eps/geolatlon":
		return &LatLonGrid{Ny: 321, Nx: 571, Lat0: 43.6, Lon0: 5.5,
			DLat: 0.02, DLon: 0.02, ScanPosY: true}, nil
	case "icon-ch1-eps/rotlatlon":
		return &RotatedLatLonGrid{LatLonGrid: LatLonGrid{
			Ny: 786, Nx: 1170, Lat0: -4.46, Lon0: 353.14,
			DLat: 0.01, DLon: 0.01, ScanPosY: true,
		}, SouthPoleLat: -43, SouthPoleLon: 10}, nil
	case "icon-ch2-eps/rotlatlon":
		return &RotatedLatLonGrid{LatLonGrid: LatLonGrid{
			Ny: 390, Nx: 582, Lat0: -4.42, Lon0: 353.18,
			DLat: 0.02, DLon: 0.02, ScanPosY: true,
		}, SouthPoleLat: -43, SouthPoleLon: 10}, nil
	}
	return nil, fmt.Errorf("meteodatalab: no default %s grid for model %s", gridType, model)
}

// IconToGeoLatLon remaps a field from the ICON mesh onto the standard
// geographic grid of its model.
func IconToGeoLatLon(ctx context.Context, reg *Registry, f *Field) (*Field, error) {
	return iconToDefault(ctx, reg, f, "geolatlon")
}

// IconToRotLatLon remaps a field from the ICON mesh onto the standard
// rotated grid of its model.
func IconToRotLatLon(ctx context.Context, reg *Registry, f *Field) (*Field, error) {
	return iconToDefault(ctx, reg, f, "rotlatlon")
}

func iconToDefault(ctx context.Context, reg *Registry, f *Field, gridType string) (*Field, error) {
	src, err := reg.Grid(f.Meta.Grid)
	if err != nil {
		return nil, err
	}
	mesh, ok := src.(*IconMeshGrid)
	if !ok {
		return nil, &UnsupportedMetadataError{Key: "gridType", Value: fmt.Sprintf("%T", src)}
	}
	model, err := IconModelName(mesh.UUID)
	if err != nil {
		return nil, err
	}
	target, err := DefaultRemapTarget(model, gridType)
	if err != nil {
		return nil, err
	}
	coeffs, err := reg.RemapCoeffs(ctx, mesh, target, defaultRemapStencil)
	if err != nil {
		return nil, err
	}
	return coeffs.Apply(reg, f)
}

// LoadRemapCoeffs reads remap coefficients from a NetCDF file written
// by WriteRemapCoeffs.
func LoadRemapCoeffs(rw cdf.ReaderWriterAt) (*RemapCoeffs, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("meteodatalab: while opening remap coefficients: %v", err)
	}
	uuidAttr, ok := f.Header.GetAttribute("", "uuidOfHGrid").(string)
	if !ok {
		return nil, fmt.Errorf("meteodatalab: remap coefficients have no uuidOfHGrid attribute")
	}
	uuid, err := ParseGridUUID(uuidAttr)
	if err != nil {
		return nil, err
	}
	target, err := remapTargetFromAttrs(f)
	if err != nil {
		return nil, err
	}
	lengths := f.Header.Lengths("rbf_B_wgt")
	if len(lengths) != 2 {
		return nil, fmt.Errorf("meteodatalab: rbf_B_wgt has %d dimensions, want 2", len(lengths))
	}
	npts, stencil := lengths[0], lengths[1]
	if npts != target.NPoints() {
		return nil, fmt.Errorf("meteodatalab: remap coefficients have %d targets, grid has %d",
			npts, target.NPoints())
	}
	weights, err := cdfFloats(f, "rbf_B_wgt")
	if err != nil {
		return nil, err
	}
	idxFloats, err := cdfFloats(f, "rbf_B_glbidx")
	if err != nil {
		return nil, err
	}
	indices := make([]int32, len(idxFloats))
	for i, v := range idxFloats {
		indices[i] = int32(v)
	}
	return &RemapCoeffs{
		MeshUUID: uuid,
		Grid:     target,
		Stencil:  stencil,
		Indices:  indices,
		Weights:  weights,
	}, nil
}

func remapTargetFromAttrs(f *cdf.File) (Grid, error) {
	attr := func(name string) (float64, error) {
		switch v := f.Header.GetAttribute("", name).(type) {
		case []float64:
			return v[0], nil
		case []float32:
			return float64(v[0]), nil
		case []int32:
			return float64(v[0]), nil
		}
		return 0, fmt.Errorf("meteodatalab: remap coefficients have no %s attribute", name)
	}
	var vals [6]float64
	var err error
	for i, name := range []string{"nx", "ny", "xmin", "ymin", "dx", "dy"} {
		if vals[i], err = attr(name); err != nil {
			return nil, err
		}
	}
	base := LatLonGrid{
		Nx: int(vals[0]), Ny: int(vals[1]),
		Lon0: vals[2], Lat0: vals[3],
		DLon: vals[4], DLat: vals[5],
		ScanPosY: true,
	}
	gridType, ok := f.Header.GetAttribute("", "grid_type").(string)
	if !ok {
		return nil, fmt.Errorf("meteodatalab: remap coefficients have no grid_type attribute")
	}
	switch gridType {
	case "geolatlon":
		return &base, nil
	case "rotlatlon":
		npLon, err := attr("north_pole_lon")
		if err != nil {
			return nil, err
		}
		npLat, err := attr("north_pole_lat")
		if err != nil {
			return nil, err
		}
		return &RotatedLatLonGrid{LatLonGrid: base,
			SouthPoleLon: wrapLon(npLon + 180), SouthPoleLat: -npLat}, nil
	}
	return nil, fmt.Errorf("meteodatalab: unknown remap grid type %q", gridType)
}

// WriteRemapCoeffs writes remap coefficients to a NetCDF file.
func WriteRemapCoeffs(w *os.File, c *RemapCoeffs) error {
	npts := len(c.Indices) / c.Stencil
	h := cdf.NewHeader([]string{"tgt", "stencil"}, []int{npts, c.Stencil})
	h.AddAttribute("", "uuidOfHGrid", FormatGridUUID(c.MeshUUID))
	switch g := c.Grid.(type) {
	case *LatLonGrid:
		h.AddAttribute("", "grid_type", "geolatlon")
		addGridAttrs(h, g)
	case *RotatedLatLonGrid:
		h.AddAttribute("", "grid_type", "rotlatlon")
		addGridAttrs(h, &g.LatLonGrid)
		npLon, npLat := g.NorthPole()
		h.AddAttribute("", "north_pole_lon", []float64{npLon})
		h.AddAttribute("", "north_pole_lat", []float64{npLat})
	default:
		return &UnsupportedMetadataError{Key: "gridType", Value: fmt.Sprintf("%T", c.Grid)}
	}
	h.AddVariable("rbf_B_glbidx", []string{"tgt", "stencil"}, []int32{0})
	h.AddVariable("rbf_B_wgt", []string{"tgt", "stencil"}, []float64{0})
	h.Define()
	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("meteodatalab: while writing remap coefficients: %v", err)
	}
	if err := writeNetCDFVar(f, "rbf_B_glbidx", c.Indices); err != nil {
		return err
	}
	if err := writeNetCDFVar(f, "rbf_B_wgt", c.Weights); err != nil {
		return err
	}
	return cdf.UpdateNumRecs(w)
}

func addGridAttrs(h *cdf.Header, g *LatLonGrid) {
	h.AddAttribute("", "nx", []int32{int32(g.Nx)})
	h.AddAttribute("", "ny", []int32{int32(g.Ny)})
	h.AddAttribute("", "xmin", []float64{g.Lon0})
	h.AddAttribute("", "ymin", []float64{g.Lat0})
	h.AddAttribute("", "dx", []float64{g.DLon})
	h.AddAttribute("", "dy", []float64{g.DLat})
}
