/*
Copyright © 2018 the InMAP authors.
This file is part of WRFPost.

WRFPost is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

WRFPost is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with WRFPost.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package wrfpostutil provides a command-line interface for the
// wrfpost WRF output postprocessor.
package wrfpostutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/wrfpost"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to wrfpost.
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
			name: "WRFOut",
			usage: `
              WRFOut is the location of the WRF output files.
              [DATE] should be used as a wild card for the simulation date.`,
			defaultVal: "wrfout_d01_[DATE]",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), varsCmd.Flags()},
		},
		{
			name: "StartDate",
			usage: `
              StartDate is the date of the beginning of the period of
              interest, in the format "YYYYMMDD".`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), varsCmd.Flags()},
		},
		{
			name: "EndDate",
			usage: `
              EndDate is the date of the end of the period of
              interest, in the format "YYYYMMDD".`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), varsCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path of the combined NetCDF file
              to create.`,
			shorthand:  "o",
			defaultVal: "wrfpost_output.ncf",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Variables",
			usage: `
              Variables lists the WRF output variables to include in
              the result. The coordinate variables XLAT and XLONG
              are always included.`,
			defaultVal: []string{"T2", "Q2", "PSFC", "U10", "V10", "HGT"},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Diagnostics",
			usage: `
              Diagnostics lists the derived variables to calculate from
              the WRF output. Refer to the 'variables' command for the
              available options.`,
			defaultVal: []string{"rh2", "slp", "wspd10"},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "allvars",
			usage: `
              allvars specifies whether to include every variable in
              the WRF output instead of the ones listed in Variables.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("WRFPOST")

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
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
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
	Root.AddCommand(runCmd)
	Root.AddCommand(varsCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("wrfpost: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "wrfpost",
	Short: "A WRF output postprocessor.",
	Long: `wrfpost combines meteorology variables that the WRF model splits across
a series of output files into a single georeferenced, CF-compliant NetCDF file,
optionally deriving additional variables along the way.

Refer to the subcommand documentation for configuration options and default
settings. Configuration can be changed by using a configuration file (and
providing the path to the file using the --config flag), by using command-line
arguments, or by setting environment variables in the format 'WRFPOST_var'
where 'var' is the name of the variable to be set. Many configuration variables
are additionally allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of wrfpost.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("wrfpost v%s\n", wrfpost.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Combine WRF output into a single file",
	Long: `run reads the configured variables from the WRF output files, combines
them along the time dimension, derives the configured diagnostic variables,
and writes the georeferenced result to a single CF-compliant NetCDF file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Run(
			os.ExpandEnv(Cfg.GetString("WRFOut")),
			os.ExpandEnv(Cfg.GetString("StartDate")),
			os.ExpandEnv(Cfg.GetString("EndDate")),
			os.ExpandEnv(Cfg.GetString("OutputFile")),
			expandStringSlice(GetStringSlice("Variables", Cfg)),
			expandStringSlice(GetStringSlice("Diagnostics", Cfg)),
			Cfg.GetBool("allvars"),
		)
	},
	DisableAutoGenTag: true,
}

var varsCmd = &cobra.Command{
	Use:   "variables",
	Short: "List the available variables",
	Long: `variables lists the variables present in the first WRF output file,
along with the diagnostic variables that can be derived from them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := wrfpost.NewWRF(
			os.ExpandEnv(Cfg.GetString("WRFOut")),
			os.ExpandEnv(Cfg.GetString("StartDate")),
			os.ExpandEnv(Cfg.GetString("EndDate")),
			nil,
		)
		if err != nil {
			return err
		}
		vars, err := w.Variables()
		if err != nil {
			return err
		}
		cmd.Printf("WRF output variables:\n  %s\n", strings.Join(vars, " "))
		cmd.Printf("Derived variables:\n  %s\n", strings.Join(wrfpost.DiagnosticNames(), " "))
		return nil
	},
	DisableAutoGenTag: true,
}

// GetStringSlice returns a string-slice configuration variable, which
// may be specified in the configuration file as a list or as a
// comma-separated string.
func GetStringSlice(varName string, cfg *viper.Viper) []string {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case []string:
		return v
	case []interface{}:
		return cast.ToStringSlice(v)
	case string:
		var o []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				o = append(o, s)
			}
		}
		return o
	}
	return cfg.GetStringSlice(varName)
}

func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}
