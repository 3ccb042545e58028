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
	"strings"

	"github.com/ctessum/cdf"
)

// iconModels maps horizontal grid UUIDs to the model they belong to.
var iconModels = map[string]string{
	"17643da2-5749-59b6-44d2-54a3cd6e2bc0": "icon-ch1-eps",
	"bbbd5a09-8554-9924-3c7a-4aa4c8762920": "icon-ch2-eps",
}

// ParseGridUUID parses a grid UUID in hex format, with or without
// dashes.
func ParseGridUUID(s string) ([16]byte, error) {
	var u [16]byte
	b, err := hex.DecodeString(strings.ReplaceAll(s, "-", ""))
	if err != nil {
		return u, fmt.Errorf("meteodatalab: invalid grid uuid %q: %v", s, err)
	}
	if len(b) != 16 {
		return u, fmt.Errorf("meteodatalab: invalid grid uuid %q: %d bytes", s, len(b))
	}
	copy(u[:], b)
	return u, nil
}

// FormatGridUUID formats a grid UUID in the canonical dashed hex form.
func FormatGridUUID(u [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", u[0:4], u[4:6], u[6:8], u[8:10], u[10:16])
}

// IconModelName returns the name of the model that the horizontal grid
// with the given UUID belongs to.
func IconModelName(u [16]byte) (string, error) {
	model, ok := iconModels[FormatGridUUID(u)]
	if !ok {
		return "", fmt.Errorf("meteodatalab: unknown grid uuid %s", FormatGridUUID(u))
	}
	return model, nil
}

// LoadIconMesh reads the cell center coordinates and grid UUID from an
// ICON grid description file. Coordinates are stored in radians in the
// file and converted to degrees.
func LoadIconMesh(rw cdf.ReaderWriterAt) (*IconMeshGrid, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("meteodatalab: while opening icon grid file: %v", err)
	}
	uuidAttr, ok := f.Header.GetAttribute("", "uuidOfHGrid").(string)
	if !ok {
		return nil, fmt.Errorf("meteodatalab: icon grid file has no uuidOfHGrid attribute")
	}
	uuid, err := ParseGridUUID(uuidAttr)
	if err != nil {
		return nil, err
	}
	clon, err := cdfFloats(f, "clon")
	if err != nil {
		return nil, err
	}
	clat, err := cdfFloats(f, "clat")
	if err != nil {
		return nil, err
	}
	if len(clon) != len(clat) {
		return nil, fmt.Errorf("meteodatalab: icon grid file has %d clon values but %d clat values",
			len(clon), len(clat))
	}
	for i := range clon {
		clon[i] *= rad2deg
		clat[i] *= rad2deg
	}
	return &IconMeshGrid{
		UUID:   uuid,
		NCells: len(clon),
		CLon:   clon,
		CLat:   clat,
	}, nil
}
