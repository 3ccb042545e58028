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
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/MeteoSwiss/meteodata-lab"
	"github.com/MeteoSwiss/meteodata-lab/operators"
)

// Regrid loads the named parameters from the input files, rotates
// vector pairs to the geographic vector reference, resamples every
// field onto a regular grid in the target coordinate reference system
// and writes the encoded results to outfile. Output on the geolatlon
// system is encoded as GRIB; projected systems have no grid template
// and are written as NetCDF.
func Regrid(crsName, resampling, refParam, family, paramsFile string, infiles []string, outfile string, params []string, members []int, force bool) error {
	method, err := meteodatalab.ParseResampling(resampling)
	if err != nil {
		return err
	}
	fam := meteodatalab.Family(family)

	if _, err := os.Stat(outfile); err == nil && !force {
		return fmt.Errorf("meteodata-lab: output file %s exists, pass --force to overwrite it", outfile)
	}

	reg := meteodatalab.NewRegistry()
	if paramsFile != "" {
		f, err := os.Open(paramsFile)
		if err != nil {
			return fmt.Errorf("meteodata-lab: problem opening parameter definitions: %v", err)
		}
		err = reg.Params.MergeTOML(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	requested := make(map[string]bool, len(params))
	for _, name := range params {
		requested[name] = true
	}
	// The reference parameter rides along to anchor the staggering
	// origins, without being written to the output.
	loadNames := append([]string(nil), params...)
	if !requested[refParam] {
		loadNames = append(loadNames, refParam)
	}

	src := meteodatalab.NewFileSource(infiles...)
	defer src.Close()
	Log.WithFields(logrus.Fields{
		"files":  len(infiles),
		"params": strings.Join(params, ","),
	}).Info("loading fields")
	ds, err := meteodatalab.Load(src, loadNames, &meteodatalab.LoadOptions{
		Family:   fam,
		Registry: reg,
		Log:      Log,
	})
	if err != nil {
		return err
	}
	if err := meteodatalab.SetOriginXY(reg, ds, refParam); err != nil {
		return err
	}
	if err := rotateVectorFields(reg, ds, fam); err != nil {
		return err
	}

	w, err := os.Create(outfile)
	if err != nil {
		return fmt.Errorf("meteodata-lab: problem creating output file: %v", err)
	}
	defer w.Close()
	toNetCDF := crsName != "geolatlon"
	out := meteodatalab.Dataset{}

	ctx := context.Background()
	for _, name := range ds.Names() {
		if name == refParam && !requested[name] {
			continue
		}
		f, err := ds.Param(name)
		if err != nil {
			return err
		}
		if f, err = selectMembers(f, members); err != nil {
			return err
		}
		g, err := reg.Grid(f.Meta.Grid)
		if err != nil {
			return err
		}
		dst, err := meteodatalab.TargetFromGrid(g, crsName)
		if err != nil {
			return err
		}
		Log.WithFields(logrus.Fields{
			"param": name,
			"crs":   crsName,
			"ny":    dst.Ny,
			"nx":    dst.Nx,
		}).Info("regridding field")
		o, err := meteodatalab.Regrid(ctx, reg, f, dst, method)
		if err != nil {
			return err
		}
		if toNetCDF {
			out.Add(o)
			continue
		}
		if err := meteodatalab.Save(w, reg, o, nil); err != nil {
			return err
		}
	}
	if toNetCDF {
		if err := meteodatalab.SaveNetCDF(w, reg, out); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("meteodata-lab: problem writing %s: %v", outfile, err)
	}
	Log.WithFields(logrus.Fields{"file": outfile}).Info("wrote output")
	return nil
}

// selectMembers restricts an ensemble field to the given member
// numbers. Fields without a member axis pass through unchanged.
func selectMembers(f *meteodatalab.Field, members []int) (*meteodatalab.Field, error) {
	if len(members) == 0 || !f.HasDim(meteodatalab.DimMember) {
		return f, nil
	}
	want := make(map[int]bool, len(members))
	for _, m := range members {
		want[m] = true
	}
	return f.Select(meteodatalab.DimMember, func(v float64) bool { return want[int(v)] })
}

// rotateVectorFields turns the vector pairs of the dataset to the
// geographic vector reference, destaggering the components first. The
// companion of every vector component is looked up in the parameter
// dictionary and must be part of the dataset.
func rotateVectorFields(reg *meteodatalab.Registry, ds meteodatalab.Dataset, fam meteodatalab.Family) error {
	done := make(map[string]bool)
	var pairs [][2]string
	for _, name := range ds.Names() {
		if done[name] {
			continue
		}
		done[name] = true
		_, def, err := reg.Params.Resolve(name, fam)
		if err != nil {
			return err
		}
		switch {
		case def.UComponent != "":
			if _, err := ds.Param(def.UComponent); err != nil || done[def.UComponent] {
				return fmt.Errorf("meteodata-lab: the u component %s of %s must be part of PARAMS", def.UComponent, name)
			}
			done[def.UComponent] = true
			pairs = append(pairs, [2]string{def.UComponent, name})
		case def.VComponent != "":
			if _, err := ds.Param(def.VComponent); err != nil || done[def.VComponent] {
				return fmt.Errorf("meteodata-lab: the v component %s of %s must be part of PARAMS", def.VComponent, name)
			}
			done[def.VComponent] = true
			pairs = append(pairs, [2]string{name, def.VComponent})
		}
	}

	for _, pair := range pairs {
		u, err := ds.Param(pair[0])
		if err != nil {
			return err
		}
		v, err := ds.Param(pair[1])
		if err != nil {
			return err
		}
		Log.WithFields(logrus.Fields{"u": u.Name, "v": v.Name}).Info("rotating vector components")
		if u.Meta.OriginX != 0 {
			if u, err = operators.Destagger(reg, u, meteodatalab.DimX); err != nil {
				return err
			}
		}
		if v.Meta.OriginY != 0 {
			if v, err = operators.Destagger(reg, v, meteodatalab.DimY); err != nil {
				return err
			}
		}
		switch {
		case u.Meta.VRef == meteodatalab.VRefNative && v.Meta.VRef == meteodatalab.VRefNative:
			if u, v, err = meteodatalab.RotateVRef(reg, u, v); err != nil {
				return err
			}
		case u.Meta.VRef == meteodatalab.VRefGeo && v.Meta.VRef == meteodatalab.VRefGeo:
			// Already on the geographic reference.
		default:
			return &meteodatalab.IncompatibleFieldsError{A: u.Name, B: v.Name, Reason: "differing vector reference frames"}
		}
		ds.Add(u)
		ds.Add(v)
	}
	return nil
}
