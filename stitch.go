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
	"io"
	"sort"

	"github.com/ctessum/sparse"
)

// coordVars are the georeference variables that are always carried
// along with the data variables.
var coordVars = []string{"XLAT", "XLONG"}

// Stitch reads the given variables from the WRF output file series and
// concatenates them along the time dimension into a single dataset.
// All other dimensions must match among the files in the series; the
// returned dataset takes its coordinates and grid information from the
// first file. The XLAT and XLONG coordinate variables are always
// included, whether or not they are requested.
func (w *WRF) Stitch(vars []string) (*Dataset, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("wrfpost: no variables specified")
	}

	times, err := w.times()
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("wrfpost: no records between %v and %v", w.start, w.end)
	}

	d := NewDataset()
	d.Times = times
	if err := d.AddDimension("Time", len(times)); err != nil {
		return nil, err
	}

	d.Global, err = w.Global()
	if err != nil {
		return nil, err
	}
	d.SetAttr("TITLE", d.Global.Title)

	varList := make([]string, len(vars))
	copy(varList, vars)
	sort.Strings(varList)

	for _, v := range varList {
		if err := w.stitchVar(d, v); err != nil {
			return nil, err
		}
	}
	var missingCoords []string
	for _, v := range coordVars {
		if _, ok := d.Data[v]; ok {
			continue
		}
		ok, err := w.hasVariable(v)
		if err != nil {
			return nil, err
		}
		if !ok {
			missingCoords = append(missingCoords, v)
			continue
		}
		if err := w.addCoord(d, v); err != nil {
			return nil, err
		}
	}
	if len(missingCoords) > 0 {
		if err := reconstructCoords(d, missingCoords, w.msgChan); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// stitchVar reads all time steps of variable v and adds the
// concatenated result to d.
func (w *WRF) stitchVar(d *Dataset, v string) error {
	m, err := w.varInfo(v)
	if err != nil {
		return err
	}
	for i, dim := range m.dims {
		if err := d.AddDimension(dim, m.shape[i]); err != nil {
			return err
		}
	}

	recSize := 1
	for _, l := range m.shape {
		recSize *= l
	}
	nt := len(d.Times)
	data := sparse.ZerosDense(append([]int{nt}, m.shape...)...)

	next := w.read(v)
	t := 0
	for {
		rec, err := next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		if !shapesMatch(rec.Shape, m.shape) {
			return fmt.Errorf("wrfpost: variable %s: time step %d has shape %v but the first file has shape %v",
				v, t, rec.Shape, m.shape)
		}
		if t >= nt {
			return fmt.Errorf("wrfpost: variable %s has more than %d time steps", v, nt)
		}
		copy(data.Elements[t*recSize:(t+1)*recSize], rec.Elements)
		t++
	}
	if t != nt {
		return fmt.Errorf("wrfpost: variable %s has %d time steps but the time coordinate has %d", v, t, nt)
	}

	dims := append([]string{"Time"}, m.dims...)
	if err := d.AddVariable(v, dims, m.description, m.units, data); err != nil {
		return err
	}
	return setWRFAttrs(d, v, m)
}

// addCoord adds coordinate variable v to d, using only the first time
// step of the first file in the series; WRF repeats the coordinates in
// every record. The remaining files in the series must hold the same
// coordinate values as the first one.
func (w *WRF) addCoord(d *Dataset, v string) error {
	m, err := w.varInfo(v)
	if err != nil {
		return err
	}
	for i, dim := range m.dims {
		if err := d.AddDimension(dim, m.shape[i]); err != nil {
			return err
		}
	}
	f, ff, err := ncfFromTemplate(w.wrfOut, wrfFormat, w.start)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := readNCF(v, ff, 0)
	if err != nil {
		return fmt.Errorf("wrfpost: %s: %v", fileFromTemplate(w.wrfOut, wrfFormat, w.start), err)
	}
	for date := w.start.Add(w.fileDelta); date.Before(w.end); date = date.Add(w.fileDelta) {
		fileName := fileFromTemplate(w.wrfOut, wrfFormat, date)
		f2, ff2, err := ncfFromTemplate(w.wrfOut, wrfFormat, date)
		if err != nil {
			return err
		}
		rec, err := readNCF(v, ff2, 0)
		f2.Close()
		if err != nil {
			return fmt.Errorf("wrfpost: %s: %v", fileName, err)
		}
		if !arraysEqual(rec, data) {
			return fmt.Errorf("wrfpost: coordinate %s in %s does not match the first file in the series", v, fileName)
		}
	}
	if err := d.AddVariable(v, m.dims, m.description, m.units, data); err != nil {
		return err
	}
	return setWRFAttrs(d, v, m)
}

// setWRFAttrs copies the WRF attributes that aren't held directly
// by the Variable struct.
func setWRFAttrs(d *Dataset, v string, m *varMeta) error {
	attrs := []struct{ name, val string }{
		{"stagger", m.stagger},
		{"MemoryOrder", m.memoryOrder},
		{"coordinates", m.coordinates},
	}
	for _, a := range attrs {
		if a.val == "" {
			continue
		}
		if err := d.SetVarAttr(v, a.name, a.val); err != nil {
			return err
		}
	}
	return nil
}

func shapesMatch(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func arraysEqual(a, b *sparse.DenseArray) bool {
	if !shapesMatch(a.Shape, b.Shape) {
		return false
	}
	for i, v := range a.Elements {
		if b.Elements[i] != v {
			return false
		}
	}
	return true
}

// Variables returns the names of all of the floating-point variables
// in the first file of the series.
func (w *WRF) Variables() ([]string, error) {
	f, ff, err := ncfFromTemplate(w.wrfOut, wrfFormat, w.start)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var o []string
	for _, v := range ff.Header.Variables() {
		if v == "Times" {
			continue
		}
		if _, ok := ff.Header.ZeroValue(v, 1).([]float32); !ok {
			continue
		}
		o = append(o, v)
	}
	sort.Strings(o)
	return o, nil
}
