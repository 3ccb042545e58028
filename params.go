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
	"fmt"
	"io"
	"sort"

	"github.com/BurntSushi/toml"
)

// ParamDef describes one named parameter of a model family: its GRIB2
// triplet, physical unit, and how it relates to other parameters.
type ParamDef struct {
	Discipline uint8
	Category   uint8
	Number     uint8
	Units      string
	Description string
	// Level restricts the short name to one level kind. Names with
	// LevelUnknown apply to any level kind the triplet appears on.
	Level LevelKind
	// UComponent and VComponent name the matching wind component for
	// vector parameters, empty otherwise.
	UComponent string
	VComponent string
	// LocalUse marks parameters from the local (192+) part of the code
	// tables.
	LocalUse bool
}

type tripletKey struct {
	discipline, category, number uint8
	level                        LevelKind
}

// ParamTable resolves parameter short names to their definitions and
// GRIB2 triplets back to short names, per model family.
type ParamTable struct {
	byName    map[Family]map[string]ParamDef
	byTriplet map[Family]map[tripletKey]string
}

// NewParamTable returns a table preloaded with the built-in COSMO and
// ICON parameter definitions.
func NewParamTable() *ParamTable {
	t := &ParamTable{
		byName:    make(map[Family]map[string]ParamDef),
		byTriplet: make(map[Family]map[tripletKey]string),
	}
	t.register(FamilyCOSMO, cosmoParams)
	t.register(FamilyICON, iconParams)
	return t
}

func (t *ParamTable) register(fam Family, defs map[string]ParamDef) {
	if t.byName[fam] == nil {
		t.byName[fam] = make(map[string]ParamDef)
	}
	if t.byTriplet[fam] == nil {
		t.byTriplet[fam] = make(map[tripletKey]string)
	}
	// Sort for deterministic precedence when two names share a triplet.
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		def := defs[name]
		t.byName[fam][name] = def
		key := tripletKey{def.Discipline, def.Category, def.Number, def.Level}
		if _, ok := t.byTriplet[fam][key]; !ok {
			t.byTriplet[fam][key] = name
		}
	}
}

// Resolve returns the parameter identity and definition for a short
// name within a model family.
func (t *ParamTable) Resolve(shortName string, fam Family) (Param, ParamDef, error) {
	defs, ok := t.byName[fam]
	if !ok {
		return Param{}, ParamDef{}, &UnknownParameterError{ShortName: shortName, Family: string(fam)}
	}
	def, ok := defs[shortName]
	if !ok {
		return Param{}, ParamDef{}, &UnknownParameterError{ShortName: shortName, Family: string(fam)}
	}
	p := Param{
		Discipline: def.Discipline,
		Category:   def.Category,
		Number:     def.Number,
		ShortName:  shortName,
	}
	return p, def, nil
}

// ShortName returns the short name bound to a GRIB2 triplet on the
// given level kind. Names registered for a specific level kind take
// precedence over names registered for any level kind.
func (t *ParamTable) ShortName(discipline, category, number uint8, level LevelKind, fam Family) (string, error) {
	triplets, ok := t.byTriplet[fam]
	if !ok {
		return "", &UnknownParameterError{
			ShortName: fmt.Sprintf("%d.%d.%d", discipline, category, number),
			Family:    string(fam),
		}
	}
	if name, ok := triplets[tripletKey{discipline, category, number, level}]; ok {
		return name, nil
	}
	if name, ok := triplets[tripletKey{discipline, category, number, LevelUnknown}]; ok {
		return name, nil
	}
	return "", &UnknownParameterError{
		ShortName: fmt.Sprintf("%d.%d.%d", discipline, category, number),
		Family:    string(fam),
	}
}

// tomlParamDef mirrors ParamDef for decoding user overlays, with the
// level kind spelled as its code-table name.
type tomlParamDef struct {
	Discipline  uint8
	Category    uint8
	Number      uint8
	Units       string
	Description string
	Level       string
	UComponent  string
	VComponent  string
	LocalUse    bool
}

// MergeTOML overlays parameter definitions read from r onto the table.
// The expected layout is one section per family, one subsection per
// short name:
//
//	[cosmo.T_SO]
//	discipline = 0
//	category = 3
//	number = 18
//	units = "K"
//
// Overlaid names shadow built-in names; triplet bindings of overlaid
// names take precedence over built-in bindings.
func (t *ParamTable) MergeTOML(r io.Reader) error {
	var doc map[string]map[string]tomlParamDef
	if _, err := toml.DecodeReader(r, &doc); err != nil {
		return fmt.Errorf("meteodatalab: while decoding parameter table: %v", err)
	}
	for famName, defs := range doc {
		fam := Family(famName)
		converted := make(map[string]ParamDef, len(defs))
		for name, d := range defs {
			level, err := parseLevelKind(d.Level)
			if err != nil {
				return fmt.Errorf("meteodatalab: in parameter %s.%s: %v", famName, name, err)
			}
			converted[name] = ParamDef{
				Discipline:  d.Discipline,
				Category:    d.Category,
				Number:      d.Number,
				Units:       d.Units,
				Description: d.Description,
				Level:       level,
				UComponent:  d.UComponent,
				VComponent:  d.VComponent,
				LocalUse:    d.LocalUse,
			}
		}
		if t.byName[fam] == nil {
			t.byName[fam] = make(map[string]ParamDef)
		}
		if t.byTriplet[fam] == nil {
			t.byTriplet[fam] = make(map[tripletKey]string)
		}
		// Rebind triplets so that overlays win over built-ins.
		for name, def := range converted {
			t.byName[fam][name] = def
			t.byTriplet[fam][tripletKey{def.Discipline, def.Category, def.Number, def.Level}] = name
		}
	}
	return nil
}

func parseLevelKind(s string) (LevelKind, error) {
	if s == "" {
		return LevelUnknown, nil
	}
	for k, name := range levelKindNames {
		if name == s {
			return k, nil
		}
	}
	return LevelUnknown, fmt.Errorf("unknown level kind %q", s)
}

// cosmoParams are the built-in COSMO short names. The triplets follow
// the WMO code tables plus the DWD local extensions.
var cosmoParams = map[string]ParamDef{
	"T":        {Discipline: 0, Category: 0, Number: 0, Units: "K", Description: "Temperature"},
	"T_2M":     {Discipline: 0, Category: 0, Number: 0, Units: "K", Description: "2m temperature", Level: LevelHeight},
	"PT":       {Discipline: 0, Category: 0, Number: 2, Units: "K", Description: "Potential temperature"},
	"THETA_V":  {Discipline: 0, Category: 0, Number: 15, Units: "K", Description: "Virtual potential temperature"},
	"P":        {Discipline: 0, Category: 3, Number: 0, Units: "Pa", Description: "Pressure"},
	"PS":       {Discipline: 0, Category: 3, Number: 0, Units: "Pa", Description: "Surface pressure", Level: LevelSurface},
	"PMSL":     {Discipline: 0, Category: 3, Number: 1, Units: "Pa", Description: "Mean sea level pressure", Level: LevelSurface},
	"FI":       {Discipline: 0, Category: 3, Number: 4, Units: "m2 s-2", Description: "Geopotential"},
	"HHL":      {Discipline: 0, Category: 3, Number: 6, Units: "m", Description: "Height of half levels", Level: LevelModelHalf},
	"HSURF":    {Discipline: 0, Category: 3, Number: 6, Units: "m", Description: "Surface height", Level: LevelSurface},
	"HZEROCL":  {Discipline: 0, Category: 3, Number: 6, Units: "m", Description: "Height of freezing level", Level: LevelZeroIsotherm},
	"RHO":      {Discipline: 0, Category: 3, Number: 10, Units: "kg m-3", Description: "Air density"},
	"U":        {Discipline: 0, Category: 2, Number: 2, Units: "m s-1", Description: "U component of wind", VComponent: "V"},
	"V":        {Discipline: 0, Category: 2, Number: 3, Units: "m s-1", Description: "V component of wind", UComponent: "U"},
	"W":        {Discipline: 0, Category: 2, Number: 9, Units: "m s-1", Description: "Vertical velocity"},
	"U_10M":    {Discipline: 0, Category: 2, Number: 2, Units: "m s-1", Description: "10m U component of wind", Level: LevelHeight, VComponent: "V_10M"},
	"V_10M":    {Discipline: 0, Category: 2, Number: 3, Units: "m s-1", Description: "10m V component of wind", Level: LevelHeight, UComponent: "U_10M"},
	"SP":       {Discipline: 0, Category: 2, Number: 1, Units: "m s-1", Description: "Wind speed"},
	"SP_10M":   {Discipline: 0, Category: 2, Number: 1, Units: "m s-1", Description: "10m wind speed", Level: LevelHeight},
	"DD":       {Discipline: 0, Category: 2, Number: 0, Units: "degree", Description: "Wind direction"},
	"DD_10M":   {Discipline: 0, Category: 2, Number: 0, Units: "degree", Description: "10m wind direction", Level: LevelHeight},
	"QV":       {Discipline: 0, Category: 1, Number: 0, Units: "kg kg-1", Description: "Specific humidity"},
	"RELHUM":   {Discipline: 0, Category: 1, Number: 1, Units: "%", Description: "Relative humidity"},
	"QC":       {Discipline: 0, Category: 1, Number: 22, Units: "kg kg-1", Description: "Cloud water mixing ratio"},
	"QI":       {Discipline: 0, Category: 1, Number: 23, Units: "kg kg-1", Description: "Cloud ice mixing ratio"},
	"QR":       {Discipline: 0, Category: 1, Number: 24, Units: "kg kg-1", Description: "Rain mixing ratio"},
	"QS":       {Discipline: 0, Category: 1, Number: 25, Units: "kg kg-1", Description: "Snow mixing ratio"},
	"QG":       {Discipline: 0, Category: 1, Number: 32, Units: "kg kg-1", Description: "Graupel mixing ratio"},
	"TOT_PREC": {Discipline: 0, Category: 1, Number: 52, Units: "kg m-2", Description: "Total precipitation", Level: LevelSurface},
	"BRN":      {Discipline: 0, Category: 7, Number: 192, Units: "1", Description: "Bulk Richardson number", LocalUse: true},
}

// iconParams are the built-in ICON short names. ICON uses lower-case
// names and carries the half-level height as z_ifc.
var iconParams = map[string]ParamDef{
	"t":            {Discipline: 0, Category: 0, Number: 0, Units: "K", Description: "Temperature"},
	"t_2m":         {Discipline: 0, Category: 0, Number: 0, Units: "K", Description: "2m temperature", Level: LevelHeight},
	"theta_v":      {Discipline: 0, Category: 0, Number: 15, Units: "K", Description: "Virtual potential temperature"},
	"pres":         {Discipline: 0, Category: 3, Number: 0, Units: "Pa", Description: "Pressure"},
	"pres_sfc":     {Discipline: 0, Category: 3, Number: 0, Units: "Pa", Description: "Surface pressure", Level: LevelSurface},
	"pres_msl":     {Discipline: 0, Category: 3, Number: 1, Units: "Pa", Description: "Mean sea level pressure", Level: LevelSurface},
	"geopot":       {Discipline: 0, Category: 3, Number: 4, Units: "m2 s-2", Description: "Geopotential"},
	"z_ifc":        {Discipline: 0, Category: 3, Number: 6, Units: "m", Description: "Height of half levels", Level: LevelModelHalf},
	"topography_c": {Discipline: 0, Category: 3, Number: 6, Units: "m", Description: "Surface height", Level: LevelSurface},
	"rho":          {Discipline: 0, Category: 3, Number: 10, Units: "kg m-3", Description: "Air density"},
	"u":            {Discipline: 0, Category: 2, Number: 2, Units: "m s-1", Description: "Zonal wind", VComponent: "v"},
	"v":            {Discipline: 0, Category: 2, Number: 3, Units: "m s-1", Description: "Meridional wind", UComponent: "u"},
	"w":            {Discipline: 0, Category: 2, Number: 9, Units: "m s-1", Description: "Vertical velocity", Level: LevelModelHalf},
	"u_10m":        {Discipline: 0, Category: 2, Number: 2, Units: "m s-1", Description: "10m zonal wind", Level: LevelHeight, VComponent: "v_10m"},
	"v_10m":        {Discipline: 0, Category: 2, Number: 3, Units: "m s-1", Description: "10m meridional wind", Level: LevelHeight, UComponent: "u_10m"},
	"qv":           {Discipline: 0, Category: 1, Number: 0, Units: "kg kg-1", Description: "Specific humidity"},
	"qc":           {Discipline: 0, Category: 1, Number: 22, Units: "kg kg-1", Description: "Cloud water mixing ratio"},
	"qi":           {Discipline: 0, Category: 1, Number: 23, Units: "kg kg-1", Description: "Cloud ice mixing ratio"},
	"qr":           {Discipline: 0, Category: 1, Number: 24, Units: "kg kg-1", Description: "Rain mixing ratio"},
	"qs":           {Discipline: 0, Category: 1, Number: 25, Units: "kg kg-1", Description: "Snow mixing ratio"},
	"qg":           {Discipline: 0, Category: 1, Number: 32, Units: "kg kg-1", Description: "Graupel mixing ratio"},
	"tot_prec":     {Discipline: 0, Category: 1, Number: 52, Units: "kg m-2", Description: "Total precipitation", Level: LevelSurface},
}
