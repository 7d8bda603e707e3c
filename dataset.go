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

// Package wrfpost combines output from the WRF meteorological model
// (http://www.wrf-model.org), which is split across a series of NetCDF
// files, into a single dataset, derives additional meteorological
// variables from the model output, georeferences the result, and writes
// it to a single CF-compliant NetCDF file.
package wrfpost

import (
	"fmt"
	"sort"
	"time"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// A Variable holds the data and metadata for a single dataset variable.
type Variable struct {
	// Dims are the names of the dimensions of this variable, in order.
	Dims []string

	// Description and Units describe the variable contents.
	Description string
	Units       string

	// Attrs holds any additional variable attributes.
	Attrs map[string]interface{}

	// Data holds the variable data, with one array dimension per
	// entry in Dims.
	Data *sparse.DenseArray
}

// Dataset is an in-memory collection of gridded meteorological
// variables that share a set of named dimensions, along with dataset-level
// attributes. It is the intermediate representation between reading WRF
// output and writing a CF-compliant result file.
type Dataset struct {
	// Times holds the time stamp of each record along the time dimension.
	Times []time.Time

	// Global holds the grid and projection information of the WRF
	// output the dataset was read from.
	Global *WRFGlobal

	// Attrs holds dataset-level attributes.
	Attrs map[string]interface{}

	// Data holds the dataset variables, keyed by name.
	Data map[string]*Variable

	dimNames []string
	dimLen   map[string]int
}

// NewDataset creates a new empty dataset.
func NewDataset() *Dataset {
	return &Dataset{
		Attrs:  make(map[string]interface{}),
		Data:   make(map[string]*Variable),
		dimLen: make(map[string]int),
	}
}

// AddDimension adds a dimension with the given name and length to the
// dataset. Adding a dimension that already exists is not an error as long
// as the lengths match.
func (d *Dataset) AddDimension(name string, length int) error {
	if length <= 0 {
		return fmt.Errorf("wrfpost: dimension %s has invalid length %d", name, length)
	}
	if l, ok := d.dimLen[name]; ok {
		if l != length {
			return fmt.Errorf("wrfpost: dimension %s length mismatch: have %d, already have %d", name, length, l)
		}
		return nil
	}
	d.dimNames = append(d.dimNames, name)
	d.dimLen[name] = length
	return nil
}

// Dimension returns the length of the named dimension, and whether
// the dimension exists.
func (d *Dataset) Dimension(name string) (int, bool) {
	l, ok := d.dimLen[name]
	return l, ok
}

// DimensionNames returns the names of the dataset dimensions in the
// order they were added.
func (d *Dataset) DimensionNames() []string {
	o := make([]string, len(d.dimNames))
	copy(o, d.dimNames)
	return o
}

// AddVariable adds a variable to the dataset. All of the dimensions in
// dims must have already been added with AddDimension, and the shape of
// data must match their lengths.
func (d *Dataset) AddVariable(name string, dims []string, description, units string, data *sparse.DenseArray) error {
	if err := checkVarName(name); err != nil {
		return err
	}
	if len(dims) != len(data.Shape) {
		return fmt.Errorf("wrfpost: variable %s has %d dimensions but data has %d", name, len(dims), len(data.Shape))
	}
	for i, dim := range dims {
		l, ok := d.dimLen[dim]
		if !ok {
			return fmt.Errorf("wrfpost: variable %s: unknown dimension %s", name, dim)
		}
		if data.Shape[i] != l {
			return fmt.Errorf("wrfpost: variable %s dimension %s: data length %d doesn't match dimension length %d",
				name, dim, data.Shape[i], l)
		}
	}
	d.Data[name] = &Variable{
		Dims:        dims,
		Description: description,
		Units:       units,
		Attrs:       make(map[string]interface{}),
		Data:        data,
	}
	return nil
}

// VariableNames returns the names of the dataset variables in
// alphabetical order.
func (d *Dataset) VariableNames() []string {
	names := make([]string, 0, len(d.Data))
	for n := range d.Data {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SetVarAttr sets attribute attr of variable v to val.
func (d *Dataset) SetVarAttr(v, attr string, val interface{}) error {
	vv, ok := d.Data[v]
	if !ok {
		return fmt.Errorf("wrfpost: setting attribute %s: no variable %s", attr, v)
	}
	vv.Attrs[attr] = val
	return nil
}

// SetAttr sets dataset-level attribute name to val.
func (d *Dataset) SetAttr(name string, val interface{}) {
	d.Attrs[name] = val
}

// Summary returns a one-line summary of the named variable giving its
// minimum, mean, and maximum values.
func (d *Dataset) Summary(name string) (string, error) {
	v, ok := d.Data[name]
	if !ok {
		return "", fmt.Errorf("wrfpost: summarizing: no variable %s", name)
	}
	e := v.Data.Elements
	return fmt.Sprintf("%s [%s]: min %g, mean %g, max %g", name, v.Units,
		floats.Min(e), stat.Mean(e, nil), floats.Max(e)), nil
}
