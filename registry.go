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
	"runtime"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/requestcache"
)

// A Registry tracks the grids referenced by field metadata and caches
// derived structures such as spatial indexes and remapping weights. A
// single registry is shared by all fields of a processing pipeline.
type Registry struct {
	mx    sync.RWMutex
	grids map[GridRef]Grid

	// Params resolves parameter names for all fields loaded through
	// this registry.
	Params *ParamTable

	coordInit  sync.Once
	coordCache *requestcache.Cache

	indexInit  sync.Once
	indexCache *requestcache.Cache

	remapInit  sync.Once
	remapCache *requestcache.Cache
}

// NewRegistry returns an empty registry with the built-in parameter
// table.
func NewRegistry() *Registry {
	return &Registry{
		grids:  make(map[GridRef]Grid),
		Params: NewParamTable(),
	}
}

// AddGrid registers g and returns its key. Registering a grid with the
// same parameters twice keeps the first instance.
func (r *Registry) AddGrid(g Grid) GridRef {
	ref := g.Ref()
	r.mx.Lock()
	if _, ok := r.grids[ref]; !ok {
		r.grids[ref] = g
	}
	r.mx.Unlock()
	return ref
}

// Grid returns the grid registered under ref.
func (r *Registry) Grid(ref GridRef) (Grid, error) {
	r.mx.RLock()
	g, ok := r.grids[ref]
	r.mx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("meteodatalab: unknown grid %s", ref)
	}
	return g, nil
}

// AttachIconGrid fills in the cell center coordinates of a registered
// ICON mesh from a grid description, matching by UUID.
func (r *Registry) AttachIconGrid(mesh *IconMeshGrid) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	g, ok := r.grids[mesh.Ref()]
	if !ok {
		r.grids[mesh.Ref()] = mesh
		return nil
	}
	existing, ok := g.(*IconMeshGrid)
	if !ok {
		return fmt.Errorf("meteodatalab: grid %s is not an icon mesh", mesh.Ref())
	}
	if existing.NCells != mesh.NCells {
		return fmt.Errorf("meteodatalab: icon grid %s has %d cells, fields have %d",
			mesh.Ref(), mesh.NCells, existing.NCells)
	}
	existing.CLon = mesh.CLon
	existing.CLat = mesh.CLat
	return nil
}

// Reproject converts points from the native coordinate system of the
// src grid to that of the dst grid. Geographic grids and the ICON mesh
// use geographic longitude and latitude, rotated grids their rotated
// coordinates, and projected grids the map coordinates of their
// coordinate reference system.
func (r *Registry) Reproject(src, dst GridRef, x, y []float64) ([]float64, []float64, error) {
	if len(x) != len(y) {
		return nil, nil, fmt.Errorf("meteodatalab: reproject needs matching coordinate slices, have %d and %d",
			len(x), len(y))
	}
	sg, err := r.Grid(src)
	if err != nil {
		return nil, nil, err
	}
	dg, err := r.Grid(dst)
	if err != nil {
		return nil, nil, err
	}
	toGeo, err := nativeToGeo(sg)
	if err != nil {
		return nil, nil, err
	}
	fromGeo, err := geoToNative(dg)
	if err != nil {
		return nil, nil, err
	}
	xo := make([]float64, len(x))
	yo := make([]float64, len(y))
	for i := range x {
		lon, lat, err := toGeo(x[i], y[i])
		if err != nil {
			return nil, nil, err
		}
		if xo[i], yo[i], err = fromGeo(lon, lat); err != nil {
			return nil, nil, err
		}
	}
	return xo, yo, nil
}

// nativeToGeo returns the transform from a grid's native coordinates
// to geographic longitude and latitude.
func nativeToGeo(g Grid) (func(x, y float64) (float64, float64, error), error) {
	switch gg := g.(type) {
	case *RotatedLatLonGrid:
		if gg.Angle != 0 {
			return nil, &UnsupportedMetadataError{Key: "angleOfRotation", Value: gg.Angle}
		}
		npLon, npLat := gg.NorthPole()
		return func(x, y float64) (float64, float64, error) {
			lon, lat := rotToGeo(npLon, npLat, x, y)
			return lon, lat, nil
		}, nil
	case *ProjGrid:
		crs, err := lookupCRS(gg.CRS)
		if err != nil {
			return nil, err
		}
		return crs.toGeo, nil
	}
	return func(x, y float64) (float64, float64, error) { return x, y, nil }, nil
}

// geoToNative is the inverse of nativeToGeo.
func geoToNative(g Grid) (func(lon, lat float64) (float64, float64, error), error) {
	switch gg := g.(type) {
	case *RotatedLatLonGrid:
		if gg.Angle != 0 {
			return nil, &UnsupportedMetadataError{Key: "angleOfRotation", Value: gg.Angle}
		}
		npLon, npLat := gg.NorthPole()
		return func(lon, lat float64) (float64, float64, error) {
			rlon, rlat := geoToRot(npLon, npLat, lon, lat)
			return rlon, rlat, nil
		}, nil
	case *ProjGrid:
		crs, err := lookupCRS(gg.CRS)
		if err != nil {
			return nil, err
		}
		return crs.fromGeo, nil
	}
	return func(lon, lat float64) (float64, float64, error) { return lon, lat, nil }, nil
}

// gridCoords pairs the coordinate arrays of one grid.
type gridCoords struct {
	lon, lat []float64
}

// Coordinates returns the geographic longitude and latitude of every
// point of the grid registered under ref, in storage order. The arrays
// are computed once per grid key and shared between callers, so they
// must not be modified.
func (r *Registry) Coordinates(ctx context.Context, ref GridRef) (lon, lat []float64, err error) {
	r.coordInit.Do(func() {
		r.coordCache = requestcache.NewCache(r.buildCoords, runtime.GOMAXPROCS(-1),
			requestcache.Deduplicate(), requestcache.Memory(8))
	})
	req := r.coordCache.NewRequest(ctx, ref, "coords_"+string(ref))
	resultI, err := req.Result()
	if err != nil {
		return nil, nil, err
	}
	c := resultI.(*gridCoords)
	return c.lon, c.lat, nil
}

func (r *Registry) buildCoords(ctx context.Context, request interface{}) (interface{}, error) {
	ref := request.(GridRef)
	g, err := r.Grid(ref)
	if err != nil {
		return nil, err
	}
	lon, lat := g.Coordinates()
	if lon == nil {
		return nil, fmt.Errorf("meteodatalab: grid %s has no coordinates", ref)
	}
	return &gridCoords{lon: lon, lat: lat}, nil
}

// gridPoint is one horizontal grid point in a spatial index, holding
// its storage-order position.
type gridPoint struct {
	geom.Point
	i int
}

// spatialIndex returns an rtree over the geographic coordinates of the
// grid registered under ref, building and caching it on first use.
func (r *Registry) spatialIndex(ctx context.Context, ref GridRef) (*rtree.Rtree, error) {
	r.indexInit.Do(func() {
		r.indexCache = requestcache.NewCache(r.buildIndex, runtime.GOMAXPROCS(-1),
			requestcache.Deduplicate(), requestcache.Memory(4))
	})
	req := r.indexCache.NewRequest(ctx, ref, "index_"+string(ref))
	resultI, err := req.Result()
	if err != nil {
		return nil, err
	}
	return resultI.(*rtree.Rtree), nil
}

func (r *Registry) buildIndex(ctx context.Context, request interface{}) (interface{}, error) {
	ref := request.(GridRef)
	lon, lat, err := r.Coordinates(ctx, ref)
	if err != nil {
		return nil, err
	}
	index := rtree.NewTree(25, 50)
	for i := range lon {
		index.Insert(&gridPoint{Point: geom.Point{X: normLon(lon[i]), Y: lat[i]}, i: i})
	}
	return index, nil
}

// maxSearchRadius bounds the doubling search so that a query far away
// from any grid point terminates.
const maxSearchRadius = 1440.0

// nearestPoint returns the storage-order index of the grid point
// closest to p, searching the index with boxes of doubling radius. It
// returns -1 when the index is empty.
func nearestPoint(index *rtree.Rtree, p geom.Point, radius float64) int {
	for {
		hits := index.SearchIntersect(rtree.ToRect(p, radius))
		if len(hits) == 0 {
			if radius > maxSearchRadius {
				return -1
			}
			radius *= 2
			continue
		}
		best, bestDist := -1, math.Inf(1)
		for _, hI := range hits {
			h := hI.(*gridPoint)
			dx, dy := h.X-p.X, h.Y-p.Y
			if d := dx*dx + dy*dy; d < bestDist {
				best, bestDist = h.i, d
			}
		}
		// Hits inside the box are not necessarily the global nearest;
		// widen once more if the best hit is further than the box
		// radius.
		if math.Sqrt(bestDist) > radius && radius <= maxSearchRadius {
			radius *= 2
			continue
		}
		return best
	}
}

// nearestPoints returns the storage-order indices of the k grid points
// closest to p, ordered by distance. It returns nil when the index has
// fewer than k points.
func nearestPoints(index *rtree.Rtree, p geom.Point, k int, radius float64) []int {
	for {
		hits := index.SearchIntersect(rtree.ToRect(p, radius))
		if len(hits) < k {
			if radius > maxSearchRadius {
				return nil
			}
			radius *= 2
			continue
		}
		type hit struct {
			i    int
			dist float64
		}
		hs := make([]hit, len(hits))
		for n, hI := range hits {
			h := hI.(*gridPoint)
			dx, dy := h.X-p.X, h.Y-p.Y
			hs[n] = hit{i: h.i, dist: dx*dx + dy*dy}
		}
		for a := 0; a < k; a++ {
			min := a
			for b := a + 1; b < len(hs); b++ {
				if hs[b].dist < hs[min].dist {
					min = b
				}
			}
			hs[a], hs[min] = hs[min], hs[a]
		}
		if math.Sqrt(hs[k-1].dist) > radius && radius <= maxSearchRadius {
			radius *= 2
			continue
		}
		o := make([]int, k)
		for a := 0; a < k; a++ {
			o[a] = hs[a].i
		}
		return o
	}
}
