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
	"os"
	"sort"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// dateStrLen is the length of the time stamps in the "Times" variable.
const dateStrLen = len(wrfTimeFormat)

// Write writes the dataset to w as a NetCDF file, with the time
// dimension as the record dimension. Variables are written in
// alphabetical order so the output is the same every time.
func (d *Dataset) Write(w *os.File) error {
	if len(d.Times) == 0 {
		return fmt.Errorf("wrfpost: writing dataset: no time stamps")
	}

	dimNames := []string{"Time", "DateStrLen"}
	dimLens := []int{0, dateStrLen} // length 0 marks the record dimension
	for _, n := range d.dimNames {
		// Time and DateStrLen are declared above; a dataset read back
		// from a written file carries both.
		if n == "Time" || n == "DateStrLen" {
			continue
		}
		dimNames = append(dimNames, n)
		dimLens = append(dimLens, d.dimLen[n])
	}
	h := cdf.NewHeader(dimNames, dimLens)

	attrNames := make([]string, 0, len(d.Attrs))
	for n := range d.Attrs {
		attrNames = append(attrNames, n)
	}
	sort.Strings(attrNames)
	for _, n := range attrNames {
		val, err := sanitizeAttr(n, d.Attrs[n])
		if err != nil {
			return err
		}
		h.AddAttribute("", n, val)
	}

	h.AddVariable("Times", []string{"Time", "DateStrLen"}, "")

	// Sort the names so they write in the same order every time.
	names := d.VariableNames()
	for _, name := range names {
		v := d.Data[name]
		h.AddVariable(name, v.Dims, zeroValue(name))
		h.AddAttribute(name, "description", v.Description)
		h.AddAttribute(name, "units", v.Units)
		vAttrNames := make([]string, 0, len(v.Attrs))
		for n := range v.Attrs {
			vAttrNames = append(vAttrNames, n)
		}
		sort.Strings(vAttrNames)
		for _, n := range vAttrNames {
			val, err := sanitizeAttr(n, v.Attrs[n])
			if err != nil {
				return fmt.Errorf("wrfpost: variable %s: %v", name, err)
			}
			h.AddAttribute(name, n, val)
		}
	}
	h.Define()
	if errs := h.Check(); len(errs) != 0 {
		return fmt.Errorf("wrfpost: invalid netcdf header: %v", errs[0])
	}

	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return err
	}

	for i, t := range d.Times {
		wr := f.Writer("Times", []int{i, 0}, []int{i + 1, dateStrLen})
		if _, err := wr.Write(t.Format(wrfTimeFormat)); err != nil && err != io.EOF {
			return fmt.Errorf("wrfpost: writing Times record %d: %v", i, err)
		}
	}
	for _, name := range names {
		v := d.Data[name]
		if err := writeNCF(f, name, v.Data); err != nil {
			return fmt.Errorf("wrfpost: writing variable %s to netcdf file: %v", name, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

// zeroValue returns a zero value of the NetCDF storage type for the
// named variable. Most variables are stored as 32-bit floats; the time
// coordinate keeps full precision and the grid mapping variable is a
// dummy integer.
func zeroValue(name string) interface{} {
	switch name {
	case "time":
		return []float64{0}
	case gridMappingVar:
		return []int32{0}
	}
	return []float32{0}
}

// writeNCF writes the data for variable Var to f, one record at a
// time if the variable has a record dimension.
func writeNCF(f *cdf.File, Var string, data *sparse.DenseArray) error {
	// Check that data matches dimensions.
	n := 1
	for _, v := range data.Shape {
		n *= v
	}
	if len(data.Elements) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data.Elements))
	}

	if !f.Header.IsRecordVariable(Var) {
		end := f.Header.Lengths(Var)
		start := make([]int, len(end))
		w := f.Writer(Var, start, end)
		// The strided writer reports io.EOF when a write ends exactly
		// at its upper bound, which is not an error here.
		if _, err := w.Write(toStorage(Var, data.Elements)); err != nil && err != io.EOF {
			return err
		}
		return nil
	}

	nrec := data.Shape[0]
	recSize := n / nrec
	for i := 0; i < nrec; i++ {
		start := make([]int, len(data.Shape))
		end := make([]int, len(data.Shape))
		copy(end, data.Shape)
		start[0], end[0] = i, i+1
		w := f.Writer(Var, start, end)
		if _, err := w.Write(toStorage(Var, data.Elements[i*recSize:(i+1)*recSize])); err != nil && err != io.EOF {
			return err
		}
	}
	return nil
}

// toStorage converts data to the storage type returned by zeroValue.
func toStorage(name string, data []float64) interface{} {
	switch zeroValue(name).(type) {
	case []float64:
		o := make([]float64, len(data))
		copy(o, data)
		return o
	case []int32:
		o := make([]int32, len(data))
		for i, v := range data {
			o[i] = int32(v)
		}
		return o
	}
	o := make([]float32, len(data))
	for i, v := range data {
		o[i] = float32(v)
	}
	return o
}

// WriteFile writes the dataset to the given file and then reads the
// file back in to confirm that it can be successfully reopened.
// If msgChan is not nil, status messages will be sent to it.
func (d *Dataset) WriteFile(filename string, msgChan chan string) error {
	w, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("wrfpost: creating output file: %v", err)
	}
	if err := d.Write(w); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if msgChan != nil {
		msgChan <- fmt.Sprintf("Wrote %s; reading it back to check", filename)
	}

	d2, err := ReadFile(filename)
	if err != nil {
		return fmt.Errorf("wrfpost: reading back %s: %v", filename, err)
	}
	for _, name := range d.VariableNames() {
		v2, ok := d2.Data[name]
		if !ok {
			return fmt.Errorf("wrfpost: checking %s: variable %s is missing", filename, name)
		}
		if !shapesMatch(d.Data[name].Data.Shape, v2.Data.Shape) {
			return fmt.Errorf("wrfpost: checking %s: variable %s has shape %v but should have %v",
				filename, name, v2.Data.Shape, d.Data[name].Data.Shape)
		}
	}
	if len(d2.Times) != len(d.Times) {
		return fmt.Errorf("wrfpost: checking %s: have %d time stamps but should have %d",
			filename, len(d2.Times), len(d.Times))
	}
	if msgChan != nil {
		msgChan <- fmt.Sprintf("Finished writing %d variables and %d time steps to %s",
			len(d.Data), len(d.Times), filename)
	}
	return nil
}

// ReadFile reads a NetCDF file that was created by Write back into
// a Dataset.
func ReadFile(filename string) (*Dataset, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadDataset(f)
}

// ReadDataset reads a NetCDF file that was created by Write back into
// a Dataset.
func ReadDataset(f *os.File) (*Dataset, error) {
	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("wrfpost: opening netcdf file: %v", err)
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	nrec := int(ff.Header.NumRecs(fi.Size()))

	d := NewDataset()
	for _, n := range ff.Header.Attributes("") {
		d.Attrs[n] = ff.Header.GetAttribute("", n)
	}

	dims := ff.Header.Dimensions("")
	lens := ff.Header.Lengths("")
	for i, n := range dims {
		l := lens[i]
		if l == 0 {
			l = nrec
		}
		if err := d.AddDimension(n, l); err != nil {
			return nil, err
		}
	}

	if _, ok := d.Dimension("Time"); ok {
		d.Times, err = readTimes(f, ff)
		if err != nil {
			return nil, err
		}
	}

	for _, v := range ff.Header.Variables() {
		if v == "Times" {
			continue
		}
		if err := readVariable(f, ff, d, v, nrec); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// readVariable reads variable v from ff and adds it to d.
func readVariable(f *os.File, ff *cdf.File, d *Dataset, v string, nrec int) error {
	dims := ff.Header.Dimensions(v)
	shape := ff.Header.Lengths(v)
	n := 1
	for i, l := range shape {
		if l == 0 {
			l = nrec
			shape[i] = l
		}
		n *= l
	}
	start := make([]int, len(shape))
	end := make([]int, len(shape))
	copy(end, shape)
	if ff.Header.IsRecordVariable(v) {
		for i := 1; i < len(end); i++ {
			end[i] = 0
		}
	}
	r := ff.Reader(v, start, end)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return fmt.Errorf("wrfpost: reading variable %s: %v", v, err)
	}

	data := sparse.ZerosDense(shape...)
	switch b := buf.(type) {
	case []float32:
		for i, val := range b {
			data.Elements[i] = float64(val)
		}
	case []float64:
		copy(data.Elements, b)
	case []int32:
		for i, val := range b {
			data.Elements[i] = float64(val)
		}
	case []int16:
		for i, val := range b {
			data.Elements[i] = float64(val)
		}
	default:
		return fmt.Errorf("wrfpost: variable %s has unsupported type %T", v, buf)
	}

	description := attrString(ff, v, "description")
	units := attrString(ff, v, "units")
	if err := d.AddVariable(v, dims, description, units, data); err != nil {
		return err
	}
	for _, a := range ff.Header.Attributes(v) {
		if a == "description" || a == "units" {
			continue
		}
		val := ff.Header.GetAttribute(v, a)
		if s, ok := val.(string); ok {
			val = strings.TrimSpace(s)
		}
		d.Data[v].Attrs[a] = val
	}
	return nil
}

// Process runs the whole pipeline: it stitches the given WRF variables
// together, derives the given diagnostic variables, georeferences and
// annotates the result, and writes it to outputFile.
func Process(w *WRF, vars, diagnostics []string, outputFile string) (*Dataset, error) {
	d, err := w.Stitch(vars)
	if err != nil {
		return nil, err
	}
	if err := d.Derive(diagnostics); err != nil {
		return nil, err
	}
	if err := d.Georeference(); err != nil {
		return nil, err
	}
	if err := d.AnnotateCF(); err != nil {
		return nil, err
	}
	if err := d.WriteFile(outputFile, w.msgChan); err != nil {
		return nil, err
	}
	return d, nil
}
