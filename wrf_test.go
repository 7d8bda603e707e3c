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
	"io"
	"os"
	"strings"
	"testing"
	"time"
)

func TestNewWRF(t *testing.T) {
	tests := []struct {
		start, end string
		wantErr    bool
	}{
		{"20050101", "20050103", false},
		{"20050103", "20050101", true},
		{"2005-01-01", "20050103", true},
		{"20050101", "20050101", true},
	}
	for _, test := range tests {
		_, err := NewWRF("wrfout_d01_[DATE]", test.start, test.end, nil)
		if (err != nil) != test.wantErr {
			t.Errorf("NewWRF(%s, %s): error %v, wantErr %v", test.start, test.end, err, test.wantErr)
		}
	}
}

func TestTimes(t *testing.T) {
	w, dir := newTestWRF(t)
	defer os.RemoveAll(dir)

	times, err := w.times()
	if err != nil {
		t.Fatal(err)
	}
	if len(times) != 48 {
		t.Fatalf("have %d time stamps, want 48", len(times))
	}
	start, _ := time.Parse(wrfTimeFormat, "2005-01-01_00:00:00")
	for i, tt := range times {
		want := start.Add(time.Duration(i) * time.Hour)
		if !tt.Equal(want) {
			t.Errorf("time stamp %d: have %v, want %v", i, tt, want)
		}
	}
}

func TestRead(t *testing.T) {
	w, dir := newTestWRF(t)
	defer os.RemoveAll(dir)

	next := w.read("T2")
	var n int
	for {
		data, err := next()
		if err != nil {
			if err == io.EOF {
				break
			}
			t.Fatal(err)
		}
		if len(data.Shape) != 2 || data.Shape[0] != testNy || data.Shape[1] != testNx {
			t.Fatalf("record %d: unexpected shape %v", n, data.Shape)
		}
		want := testVal(280, n, 0, 1, 2)
		if have := data.Get(1, 2); have != want {
			t.Errorf("record %d: have %g, want %g", n, have, want)
		}
		n++
	}
	if n != 48 {
		t.Errorf("read %d records, want 48", n)
	}
}

func TestReadMissingVariable(t *testing.T) {
	w, dir := newTestWRF(t)
	defer os.RemoveAll(dir)

	next := w.read("XXXX")
	_, err := next()
	if err == nil {
		t.Fatal("reading a missing variable should cause an error")
	}
	// The error names both the variable and the file it was missing from.
	if !strings.Contains(err.Error(), "XXXX") ||
		!strings.Contains(err.Error(), "wrfout_d01_2005-01-01_00_00_00") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestVarInfo(t *testing.T) {
	w, dir := newTestWRF(t)
	defer os.RemoveAll(dir)

	m, err := w.varInfo("P")
	if err != nil {
		t.Fatal(err)
	}
	wantDims := []string{"bottom_top", "south_north", "west_east"}
	if len(m.dims) != len(wantDims) {
		t.Fatalf("have dims %v, want %v", m.dims, wantDims)
	}
	for i, d := range wantDims {
		if m.dims[i] != d {
			t.Errorf("dim %d: have %s, want %s", i, m.dims[i], d)
		}
	}
	if m.units != "Pa" {
		t.Errorf("have units %q, want %q", m.units, "Pa")
	}
	if m.description != "perturbation pressure" {
		t.Errorf("have description %q", m.description)
	}
	if m.coordinates != "XLONG XLAT" {
		t.Errorf("have coordinates %q", m.coordinates)
	}

	if _, err := w.varInfo("XXXX"); err == nil {
		t.Error("missing variable should cause an error")
	}
}

func TestGlobal(t *testing.T) {
	w, dir := newTestWRF(t)
	defer os.RemoveAll(dir)

	g, err := w.Global()
	if err != nil {
		t.Fatal(err)
	}
	if g.Dx != testDx || g.Dy != testDy {
		t.Errorf("have dx, dy = %g, %g; want %g, %g", g.Dx, g.Dy, testDx, testDy)
	}
	if g.CenLat != 40 || g.CenLon != -97 {
		t.Errorf("have center %g, %g; want 40, -97", g.CenLat, g.CenLon)
	}
	if g.TrueLat1 != 33 || g.TrueLat2 != 45 {
		t.Errorf("have true latitudes %g, %g; want 33, 45", g.TrueLat1, g.TrueLat2)
	}
	if g.MapProj != 1 {
		t.Errorf("have MAP_PROJ %d, want 1", g.MapProj)
	}
	if g.Title == "" {
		t.Error("missing title")
	}
}
