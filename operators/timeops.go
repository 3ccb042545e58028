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
	"fmt"
	"math"
	"time"

	"github.com/MeteoSwiss/meteodata-lab"
)

// leadLayout splits the element layout of f around the lead time axis.
func leadLayout(f *meteodatalab.Field) (pre, n, post int, err error) {
	k, err := f.Axis(meteodatalab.DimLeadTime)
	if err != nil {
		return 0, 0, 0, err
	}
	pre, post = 1, 1
	for _, s := range f.Data.Shape[:k] {
		pre *= s
	}
	for _, s := range f.Data.Shape[k+1:] {
		post *= s
	}
	n = f.Data.Shape[k]
	if len(f.LeadTimes) != n {
		return 0, 0, 0, fmt.Errorf("meteodatalab: field %s has no lead time coordinate", f.Name)
	}
	return pre, n, post, nil
}

// nstepsFor returns the number of lead time steps spanning dt. The lead
// time axis must have a uniform step and dt must land exactly on one of
// its entries.
func nstepsFor(leads []time.Duration, dt time.Duration) (int, error) {
	if len(leads) > 1 {
		step := leads[1] - leads[0]
		for i := 2; i < len(leads); i++ {
			if leads[i]-leads[i-1] != step {
				return 0, fmt.Errorf("meteodatalab: field has an irregular lead time step")
			}
		}
	}
	for i, l := range leads {
		if l-leads[0] == dt {
			return i, nil
		}
	}
	return 0, fmt.Errorf("meteodatalab: %s is not a multiple of the lead time step", dt)
}

// TimeRate computes the rate of change over dt, assuming the input is a
// value accumulated between consecutive lead times. The result drops
// the first lead time.
func TimeRate(f *meteodatalab.Field, dt time.Duration) (*meteodatalab.Field, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("meteodatalab: time rate interval must be positive, have %s", dt)
	}
	pre, n, post, err := leadLayout(f)
	if err != nil {
		return nil, err
	}
	if n < 2 {
		return nil, fmt.Errorf("meteodatalab: field %s needs at least two lead times", f.Name)
	}
	idx := make([]int, n-1)
	for i := range idx {
		idx[i] = i + 1
	}
	o, err := f.Isel(meteodatalab.DimLeadTime, idx)
	if err != nil {
		return nil, err
	}
	o.Meta = o.Meta.WithTimes(o.Meta.RefTime, o.LeadTimes[0])
	for pi := 0; pi < pre; pi++ {
		for j := 0; j < n-1; j++ {
			ratio := float64(f.LeadTimes[j+1]-f.LeadTimes[j]) / float64(dt)
			for qi := 0; qi < post; qi++ {
				hi := f.Data.Elements[(pi*n+j+1)*post+qi]
				lo := f.Data.Elements[(pi*n+j)*post+qi]
				o.Data.Elements[(pi*(n-1)+j)*post+qi] = (hi - lo) / ratio
			}
		}
	}
	return o, nil
}

// Delta computes the difference of the field over dt along the lead
// time axis. Entries with no sample dt earlier are NaN.
func Delta(f *meteodatalab.Field, dt time.Duration) (*meteodatalab.Field, error) {
	pre, n, post, err := leadLayout(f)
	if err != nil {
		return nil, err
	}
	ns, err := nstepsFor(f.LeadTimes, dt)
	if err != nil {
		return nil, err
	}
	o := f.EmptyLike(f.Name)
	for pi := 0; pi < pre; pi++ {
		for j := 0; j < n; j++ {
			for qi := 0; qi < post; qi++ {
				at := (pi*n+j)*post + qi
				if j < ns {
					o.Data.Elements[at] = math.NaN()
					continue
				}
				o.Data.Elements[at] = f.Data.Elements[at] - f.Data.Elements[(pi*n+j-ns)*post+qi]
			}
		}
	}
	return o, nil
}

// ResampleAverage recomputes values averaged from the reference time as
// values averaged over dt, for every lead time. Entries with no sample
// dt earlier are NaN. Known as tdelta in fieldextra.
func ResampleAverage(f *meteodatalab.Field, dt time.Duration) (*meteodatalab.Field, error) {
	pre, n, post, err := leadLayout(f)
	if err != nil {
		return nil, err
	}
	ns, err := nstepsFor(f.LeadTimes, dt)
	if err != nil {
		return nil, err
	}
	o := f.EmptyLike(f.Name)
	for pi := 0; pi < pre; pi++ {
		for j := 0; j < n; j++ {
			w := float64(f.LeadTimes[j]) / float64(dt)
			for qi := 0; qi < post; qi++ {
				at := (pi*n+j)*post + qi
				if j < ns {
					o.Data.Elements[at] = math.NaN()
					continue
				}
				wp := float64(f.LeadTimes[j-ns]) / float64(dt)
				o.Data.Elements[at] = f.Data.Elements[at]*w - f.Data.Elements[(pi*n+j-ns)*post+qi]*wp
			}
		}
	}
	return o, nil
}

// Resample subsamples the lead time axis at the given interval,
// starting from the first entry. No interpolation is performed.
func Resample(f *meteodatalab.Field, interval time.Duration) (*meteodatalab.Field, error) {
	_, n, _, err := leadLayout(f)
	if err != nil {
		return nil, err
	}
	ns, err := nstepsFor(f.LeadTimes, interval)
	if err != nil {
		return nil, err
	}
	if ns < 1 {
		return nil, fmt.Errorf("meteodatalab: resample interval must be positive, have %s", interval)
	}
	var idx []int
	for i := 0; i < n; i += ns {
		idx = append(idx, i)
	}
	return f.Isel(meteodatalab.DimLeadTime, idx)
}
