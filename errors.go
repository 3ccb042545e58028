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

import "fmt"

// DimensionNotFoundError reports a request for a named dimension that is
// not present in a field.
type DimensionNotFoundError struct {
	Dim   string // requested dimension name
	Field string // short name of the field
}

func (e DimensionNotFoundError) Error() string {
	return fmt.Sprintf("meteodatalab: dimension %q not found in field %s", e.Dim, e.Field)
}

// MissingInputFieldError reports that an operator input declared as
// required was absent from the provided dataset.
type MissingInputFieldError struct {
	Param string
}

func (e MissingInputFieldError) Error() string {
	return fmt.Sprintf("meteodatalab: required input field %s is missing", e.Param)
}

// IncompatibleFieldsError reports an attempt to combine two fields which
// do not share a grid or time axis. Combining them elementwise would be
// physically meaningless, so the operation is refused instead.
type IncompatibleFieldsError struct {
	A, B   string // short names of the two fields
	Reason string
}

func (e IncompatibleFieldsError) Error() string {
	return fmt.Sprintf("meteodatalab: fields %s and %s are incompatible: %s", e.A, e.B, e.Reason)
}

// NonMonotonicLevelsError reports vertical level coefficients or level
// values that are not strictly monotonic in the level index. This
// indicates malformed input; the values are never silently reordered or
// clamped.
type NonMonotonicLevelsError struct {
	Index int // first offending level index
}

func (e NonMonotonicLevelsError) Error() string {
	return fmt.Sprintf("meteodatalab: vertical levels are not monotonic at index %d", e.Index)
}

// OutOfRangeError reports a vertical interpolation target that lies
// outside the source coordinate range of at least one column while
// extrapolation is disabled.
type OutOfRangeError struct {
	Target   float64
	Min, Max float64 // source coordinate range of the offending column
}

func (e OutOfRangeError) Error() string {
	return fmt.Sprintf("meteodatalab: target coordinate %g outside source range [%g, %g] and extrapolation is disabled",
		e.Target, e.Min, e.Max)
}

// UnknownParameterError reports a parameter short name with no entry in
// the dictionary of the originating model family.
type UnknownParameterError struct {
	ShortName string
	Family    string
}

func (e UnknownParameterError) Error() string {
	return fmt.Sprintf("meteodatalab: unknown parameter %q for model family %s", e.ShortName, e.Family)
}

// UnsupportedMetadataError reports a metadata value that has no
// representation in the encoding, for example a level kind outside the
// supported template set. Encoding never guesses a substitute.
type UnsupportedMetadataError struct {
	Key   string
	Value interface{}
}

func (e UnsupportedMetadataError) Error() string {
	return fmt.Sprintf("meteodatalab: metadata %s=%v has no encoding target", e.Key, e.Value)
}
