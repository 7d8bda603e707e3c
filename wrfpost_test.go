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
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// Test grid size.
const (
	testNx  = 3
	testNy  = 2
	testNz  = 2
	testNzS = 3 // staggered
	testDx  = 12000.
	testDy  = 12000.
)

// testVars describes the variables in the generated WRF output files.
var testVars = []struct {
	name        string
	staggered   bool // vertically staggered 3-D variable
	surface     bool // 2-D variable
	coord       bool // coordinate variable, constant in time
	base        float64
	description string
	units       string
}{
	{name: "T2", surface: true, base: 280, description: "TEMP at 2 M", units: "K"},
	{name: "Q2", surface: true, base: 0.5, description: "QV at 2 M", units: "kg kg-1"},
	{name: "PSFC", surface: true, base: 100000, description: "SFC PRESSURE", units: "Pa"},
	{name: "U10", surface: true, base: 3, description: "U at 10 M", units: "m s-1"},
	{name: "V10", surface: true, base: 4, description: "V at 10 M", units: "m s-1"},
	{name: "HGT", surface: true, base: 100, description: "Terrain Height", units: "m"},
	{name: "HFX", surface: true, base: 150, description: "UPWARD HEAT FLUX AT THE SURFACE", units: "W m-2"},
	{name: "UST", surface: true, base: 0.5, description: "U* IN SIMILARITY THEORY", units: "m s-1"},
	{name: "XLAT", surface: true, coord: true, base: 40, description: "LATITUDE, SOUTH IS NEGATIVE", units: "degree_north"},
	{name: "XLONG", surface: true, coord: true, base: -97, description: "LONGITUDE, WEST IS NEGATIVE", units: "degree_east"},
	{name: "P", base: 500, description: "perturbation pressure", units: "Pa"},
	{name: "PB", base: 90000, description: "BASE STATE PRESSURE", units: "Pa"},
	{name: "T", base: 10, description: "perturbation potential temperature (theta-t0)", units: "K"},
	{name: "PH", staggered: true, base: 50, description: "perturbation geopotential", units: "m2 s-2"},
	{name: "PHB", staggered: true, base: 1000, description: "base-state geopotential", units: "m2 s-2"},
}

// testVal is the value of every test variable at a given global time
// step and grid index. The components are exactly representable as
// 32-bit floats so values survive the round trip through the files.
func testVal(base float64, t, k, j, i int) float64 {
	return base + float64(t) + 0.5*float64(k) + 0.25*float64(j) + 0.125*float64(i)
}

// writeTestWRF writes out a two-day series of daily WRF output files
// with hourly records to a temporary directory, returning the file
// name template and the directory, which the caller should delete
// when finished.
func writeTestWRF(t *testing.T) (template, dir string) {
	t.Helper()
	dir, err := ioutil.TempDir("", "wrfpost")
	if err != nil {
		t.Fatal(err)
	}
	template = filepath.Join(dir, "wrfout_d01_[DATE]")
	start, err := time.Parse(inDateFormat, "20050101")
	if err != nil {
		t.Fatal(err)
	}
	for day := 0; day < 2; day++ {
		date := start.AddDate(0, 0, day)
		name := filepath.Join(dir, "wrfout_d01_"+date.Format(wrfFormat))
		if err := writeTestWRFFile(name, date, day*24); err != nil {
			t.Fatalf("writing test file %s: %v", name, err)
		}
	}
	return template, dir
}

func writeTestWRFFile(name string, date time.Time, tOffset int) error {
	return writeCustomWRFFile(name, date, tOffset, testNx, 24, 0, true)
}

// writeCustomWRFFile is like writeTestWRFFile but allows the grid
// width, the record count, an offset added to the coordinate variable
// values, and whether the coordinate variables are present to vary,
// for tests of the file-series consistency checks.
func writeCustomWRFFile(name string, date time.Time, tOffset, nx, nrec int, coordShift float64, withCoords bool) error {
	h := cdf.NewHeader(
		[]string{"Time", "DateStrLen", "west_east", "south_north", "bottom_top", "bottom_top_stag"},
		[]int{0, dateStrLen, nx, testNy, testNz, testNzS})

	h.AddAttribute("", "TITLE", " OUTPUT FROM WRF V3.8.1 MODEL")
	h.AddAttribute("", "DX", []float32{testDx})
	h.AddAttribute("", "DY", []float32{testDy})
	h.AddAttribute("", "CEN_LAT", []float32{40})
	h.AddAttribute("", "CEN_LON", []float32{-97})
	h.AddAttribute("", "MOAD_CEN_LAT", []float32{40})
	h.AddAttribute("", "STAND_LON", []float32{-97})
	h.AddAttribute("", "TRUELAT1", []float32{33})
	h.AddAttribute("", "TRUELAT2", []float32{45})
	h.AddAttribute("", "MAP_PROJ", []int32{1})

	h.AddVariable("Times", []string{"Time", "DateStrLen"}, "")
	for _, v := range testVars {
		if v.coord && !withCoords {
			continue
		}
		dims := []string{"Time", "bottom_top", "south_north", "west_east"}
		if v.surface {
			dims = []string{"Time", "south_north", "west_east"}
		} else if v.staggered {
			dims = []string{"Time", "bottom_top_stag", "south_north", "west_east"}
		}
		h.AddVariable(v.name, dims, []float32{0})
		h.AddAttribute(v.name, "description", v.description)
		h.AddAttribute(v.name, "units", v.units)
		h.AddAttribute(v.name, "stagger", "")
		h.AddAttribute(v.name, "coordinates", "XLONG XLAT")
	}
	h.Define()
	if errs := h.Check(); len(errs) != 0 {
		return errs[0]
	}

	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	ff, err := cdf.Create(f, h)
	if err != nil {
		return err
	}

	for r := 0; r < nrec; r++ {
		stamp := date.Add(time.Duration(r) * time.Hour).Format(wrfTimeFormat)
		w := ff.Writer("Times", []int{r, 0}, []int{r + 1, dateStrLen})
		if _, err := w.Write(stamp); err != nil && err != io.EOF {
			return err
		}
		for _, v := range testVars {
			if v.coord && !withCoords {
				continue
			}
			nz := testNz
			if v.surface {
				nz = 1
			} else if v.staggered {
				nz = testNzS
			}
			buf := make([]float32, nz*testNy*nx)
			for k := 0; k < nz; k++ {
				for j := 0; j < testNy; j++ {
					for i := 0; i < nx; i++ {
						val := testVal(v.base, tOffset+r, k, j, i)
						if v.coord {
							// Coordinates repeat in every record.
							val = testVal(v.base, 0, k, j, i) + coordShift
						}
						buf[k*testNy*nx+j*nx+i] = float32(val)
					}
				}
			}
			start := []int{r, 0, 0, 0}
			end := []int{r + 1, nz, testNy, nx}
			if v.surface {
				start, end = start[:3], []int{r + 1, testNy, nx}
			}
			w := ff.Writer(v.name, start, end)
			if _, err := w.Write(buf); err != nil && err != io.EOF {
				return fmt.Errorf("variable %s: %v", v.name, err)
			}
		}
	}
	return cdf.UpdateNumRecs(f)
}

// newTestWRF writes out a test file series and returns a reader for it
// along with the directory holding the files, which the caller should
// delete when finished.
func newTestWRF(t *testing.T) (*WRF, string) {
	t.Helper()
	template, dir := writeTestWRF(t)
	w, err := NewWRF(template, "20050101", "20050103", nil)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}
	return w, dir
}

func arrayCompare(have, want *sparse.DenseArray, tolerance float64, name string, t *testing.T) {
	t.Helper()
	if !reflect.DeepEqual(want.Shape, have.Shape) {
		t.Errorf("%s: want shape %v but have shape %v", name, want.Shape, have.Shape)
		return
	}
	for i, wantv := range want.Elements {
		havev := have.Elements[i]
		if math.IsNaN(havev) || math.IsInf(havev, 0) {
			t.Errorf("%s, element %d: is %g", name, i, havev)
		} else if math.IsNaN(wantv) || math.IsInf(wantv, 0) {
			t.Errorf("%s, golden data element %d: is %g", name, i, wantv)
		}
		if havev == wantv {
			continue
		}
		if math.Abs(havev-wantv)/math.Abs(havev+wantv)*2 > tolerance {
			t.Errorf("%s, element %d: want %g but have %g", name, i, wantv, havev)
		}
	}
}
