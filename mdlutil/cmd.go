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

// Package mdlutil holds the command line interface of meteodata-lab.
package mdlutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MeteoSwiss/meteodata-lab"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

// Log receives the progress and summary lines of the commands.
var Log = logrus.StandardLogger()

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to meteodata-lab.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "crs",
			usage: `
              crs specifies the coordinate reference system of the
              output grid. Supported values are geolatlon, swiss,
              swiss95, boaga-west, boaga-east and utm32n. geolatlon
              output is encoded as GRIB, all other systems as NetCDF.`,
			defaultVal: "geolatlon",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "resampling",
			usage: `
              resampling specifies the resampling method. Supported
              values are nearest and bilinear.`,
			defaultVal: "nearest",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "ref-param",
			usage: `
              ref-param names the parameter whose grid defines the
              reference for the staggering origins of all other
              parameters. It is loaded from the input files even when
              it is not part of PARAMS.`,
			defaultVal: "HHL",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "family",
			usage: `
              family selects the parameter naming convention of the
              model family, cosmo or icon.`,
			defaultVal: "cosmo",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "params-file",
			usage: `
              params-file is the path to a TOML file with parameter
              definitions that extend the built-in dictionary.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "members",
			usage: `
              members restricts ensemble fields to the given member
              numbers. All members are kept when the list is empty.`,
			defaultVal: []int{},
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
		{
			name: "force",
			usage: `
              force overwrites OUTFILE when it already exists.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{regridCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("METEODATALAB")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case []int:
				if option.shorthand == "" {
					set.IntSlice(option.name, option.defaultVal.([]int), option.usage)
				} else {
					set.IntSliceP(option.name, option.shorthand, option.defaultVal.([]int), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(regridCmd)

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableSorting:  true,
	})
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("meteodata-lab: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "meteodata-lab",
	Short: "A toolbox for processing gridded meteorological data.",
	Long: `meteodata-lab decodes, transforms and re-encodes GRIB output of the
COSMO and ICON weather models. Use the subcommands specified below to
access the functionality.

Refer to the subcommand documentation for configuration options and default
settings. Configuration can be changed by using a configuration file (and
providing the path to the file using the --config flag), by using
command-line arguments, or by setting environment variables in the format
'METEODATALAB_var' where 'var' is the name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration
information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of meteodata-lab.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("meteodata-lab v%s\n", meteodatalab.Version)
	},
	DisableAutoGenTag: true,
}

// regridCmd is a command that resamples fields onto another grid.
var regridCmd = &cobra.Command{
	Use:   "regrid INFILE... OUTFILE PARAMS",
	Short: "Resample fields to another coordinate reference system.",
	Long: `regrid loads the parameters named in PARAMS from the INFILE messages,
rotates vector pairs to the geographic vector reference, resamples every
field onto a regular grid in the target coordinate reference system and
writes the encoded results to OUTFILE. Results on the geolatlon system
are encoded as GRIB; projected systems have no GRIB grid template, so
their results are written as a NetCDF file.

PARAMS is a comma separated list of short names following the convention
of the selected model family. Both components of a vector parameter must
be part of PARAMS.`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		infiles := args[:len(args)-2]
		outfile := args[len(args)-2]
		params := strings.Split(args[len(args)-1], ",")
		members, err := cast.ToIntSliceE(Cfg.Get("members"))
		if err != nil {
			return fmt.Errorf("meteodata-lab: reading 'members': %v", err)
		}
		return Regrid(
			Cfg.GetString("crs"),
			Cfg.GetString("resampling"),
			Cfg.GetString("ref-param"),
			Cfg.GetString("family"),
			Cfg.GetString("params-file"),
			infiles,
			outfile,
			params,
			members,
			Cfg.GetBool("force"),
		)
	},
	DisableAutoGenTag: true,
}
