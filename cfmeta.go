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

package wrfpost

import (
	"fmt"
	"regexp"
	"time"

	"github.com/ctessum/sparse"
)

var varNameRE = regexp.MustCompile(`^[A-Za-z]\w*$`)

// checkVarName returns an error if name is not a valid NetCDF
// variable name.
func checkVarName(name string) error {
	if !varNameRE.MatchString(name) {
		return fmt.Errorf("wrfpost: variable name %s is not valid; names must start "+
			"with a letter and may only contain letters, digits, and underscores", name)
	}
	return nil
}

// cfTimeUnits is the format of the epoch in CF time units strings.
const cfTimeUnits = "2006-01-02 15:04:05"

// standardNames maps variable names to their CF standard names, for
// the variables that have one.
var standardNames = map[string]string{
	"XLAT":        "latitude",
	"XLONG":       "longitude",
	"x":           "projection_x_coordinate",
	"y":           "projection_y_coordinate",
	"time":        "time",
	"T2":          "air_temperature",
	"Q2":          "specific_humidity",
	"PSFC":        "surface_air_pressure",
	"U10":         "eastward_wind",
	"V10":         "northward_wind",
	"HGT":         "surface_altitude",
	"pressure":    "air_pressure",
	"temperature": "air_temperature",
	"height":      "height",
	"slp":         "air_pressure_at_sea_level",
	"wspd10":      "wind_speed",
	"rh2":         "relative_humidity",
}

// gridMappingVar is the name of the variable that holds the CF grid
// mapping attributes.
const gridMappingVar = "crs"

// AnnotateCF adds the metadata required for the dataset to be written
// as a CF-compliant file: global conventions attributes, a numeric time
// coordinate, a grid mapping variable describing the projection, and
// standard names, units, and coordinate references for each variable.
// Georeference must be called first.
func (d *Dataset) AnnotateCF() error {
	d.SetAttr("Conventions", "CF-1.6")
	d.SetAttr("history", fmt.Sprintf("%s: created by wrfpost",
		time.Now().Format(cfTimeUnits)))

	if err := d.addTimeCoord(); err != nil {
		return err
	}
	if err := d.addGridMapping(); err != nil {
		return err
	}

	for _, name := range d.VariableNames() {
		v := d.Data[name]
		if s, ok := standardNames[name]; ok {
			v.Attrs["standard_name"] = s
		}
		if v.Description != "" {
			v.Attrs["long_name"] = v.Description
		}
		if v.Units == "" {
			v.Units = "1"
		}
		if name == gridMappingVar || name == "x" || name == "y" || name == "time" {
			continue
		}
		if hasDims(v, "south_north", "west_east") {
			v.Attrs["grid_mapping"] = gridMappingVar
			if _, ok := v.Attrs["coordinates"]; !ok {
				v.Attrs["coordinates"] = "XLONG XLAT"
			}
		}
	}
	if v, ok := d.Data["x"]; ok {
		v.Attrs["axis"] = "X"
	}
	if v, ok := d.Data["y"]; ok {
		v.Attrs["axis"] = "Y"
	}
	if v, ok := d.Data["XLAT"]; ok {
		v.Units = "degree_north"
		delete(v.Attrs, "coordinates")
	}
	if v, ok := d.Data["XLONG"]; ok {
		v.Units = "degree_east"
		delete(v.Attrs, "coordinates")
	}
	return nil
}

// addTimeCoord adds a numeric "time" coordinate variable matching the
// Times field, with a CF units epoch at the first record.
func (d *Dataset) addTimeCoord() error {
	if _, ok := d.Data["time"]; ok {
		return nil
	}
	if len(d.Times) == 0 {
		return fmt.Errorf("wrfpost: dataset has no time stamps")
	}
	epoch := d.Times[0]
	t := sparse.ZerosDense(len(d.Times))
	for i, tt := range d.Times {
		t.Set(tt.Sub(epoch).Hours(), i)
	}
	units := fmt.Sprintf("hours since %s", epoch.Format(cfTimeUnits))
	if err := d.AddVariable("time", []string{"Time"}, "time", units, t); err != nil {
		return err
	}
	d.Data["time"].Attrs["calendar"] = "standard"
	d.Data["time"].Attrs["axis"] = "T"
	return nil
}

// addGridMapping adds the CF grid mapping variable describing the
// grid projection.
func (d *Dataset) addGridMapping() error {
	if _, ok := d.Data[gridMappingVar]; ok {
		return nil
	}
	if d.Global == nil {
		return fmt.Errorf("wrfpost: dataset is missing grid information")
	}
	g := d.Global

	// The grid mapping variable is a dummy scalar; the projection
	// parameters are held in its attributes.
	if err := d.AddVariable(gridMappingVar, []string{}, "grid projection", "",
		sparse.ZerosDense()); err != nil {
		return err
	}
	attrs := d.Data[gridMappingVar].Attrs
	attrs["earth_radius"] = []float64{wrfEarthRadius}
	switch g.MapProj {
	case 1:
		attrs["grid_mapping_name"] = "lambert_conformal_conic"
		attrs["standard_parallel"] = []float64{g.TrueLat1, g.TrueLat2}
		attrs["longitude_of_central_meridian"] = []float64{g.StandLon}
		attrs["latitude_of_projection_origin"] = []float64{g.MoadCenLat}
	case 3:
		attrs["grid_mapping_name"] = "mercator"
		attrs["standard_parallel"] = []float64{g.TrueLat1}
		attrs["longitude_of_projection_origin"] = []float64{g.StandLon}
	case 6:
		attrs["grid_mapping_name"] = "latitude_longitude"
	default:
		return fmt.Errorf("wrfpost: no CF grid mapping for projection type MAP_PROJ=%d", g.MapProj)
	}
	if sr, ok := d.Attrs["spatial_ref"].(*SpatialRef); ok {
		attrs["proj4"] = sr.Proj4
	}
	return nil
}

func hasDims(v *Variable, dims ...string) bool {
	for _, want := range dims {
		found := false
		for _, have := range v.Dims {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// sanitizeAttr converts an attribute value to one of the types that can
// be stored in a NetCDF file. Spatial references are replaced with
// their PROJ.4 strings, and scalar numbers, booleans, and times are
// converted to equivalent serializable values. Values of any other type
// cause an error.
func sanitizeAttr(name string, val interface{}) (interface{}, error) {
	switch v := val.(type) {
	case string, []uint8, []int16, []int32, []float32, []float64:
		return v, nil
	case *SpatialRef:
		return v.Proj4, nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case int:
		return []int32{int32(v)}, nil
	case int32:
		return []int32{v}, nil
	case float32:
		return []float32{v}, nil
	case float64:
		return []float64{v}, nil
	case time.Time:
		return v.Format(cfTimeUnits), nil
	}
	return nil, fmt.Errorf("wrfpost: attribute %s has type %T, which cannot be stored in a NetCDF file", name, val)
}
