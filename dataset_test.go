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
	"reflect"
	"testing"

	"github.com/ctessum/sparse"
)

func TestAddDimension(t *testing.T) {
	d := NewDataset()
	if err := d.AddDimension("west_east", 3); err != nil {
		t.Fatal(err)
	}
	if err := d.AddDimension("west_east", 3); err != nil {
		t.Errorf("re-adding a matching dimension: %v", err)
	}
	if err := d.AddDimension("west_east", 4); err == nil {
		t.Error("conflicting dimension length should cause an error")
	}
	if err := d.AddDimension("south_north", 0); err == nil {
		t.Error("zero-length dimension should cause an error")
	}
	if l, ok := d.Dimension("west_east"); !ok || l != 3 {
		t.Errorf("have length %d, %v; want 3, true", l, ok)
	}
	if _, ok := d.Dimension("bottom_top"); ok {
		t.Error("dimension bottom_top should not exist")
	}
}

func TestAddVariable(t *testing.T) {
	d := NewDataset()
	if err := d.AddDimension("south_north", 2); err != nil {
		t.Fatal(err)
	}
	if err := d.AddDimension("west_east", 3); err != nil {
		t.Fatal(err)
	}

	data := sparse.ZerosDense(2, 3)
	if err := d.AddVariable("T2", []string{"south_north", "west_east"}, "TEMP at 2 M", "K", data); err != nil {
		t.Fatal(err)
	}
	if err := d.AddVariable("bad name", []string{"south_north", "west_east"}, "", "", data); err == nil {
		t.Error("invalid variable name should cause an error")
	}
	if err := d.AddVariable("T3", []string{"south_north"}, "", "", data); err == nil {
		t.Error("dimension count mismatch should cause an error")
	}
	if err := d.AddVariable("T4", []string{"west_east", "south_north"}, "", "", data); err == nil {
		t.Error("dimension length mismatch should cause an error")
	}
	if err := d.AddVariable("T5", []string{"south_north", "bottom_top"}, "", "", data); err == nil {
		t.Error("unknown dimension should cause an error")
	}

	if err := d.SetVarAttr("T2", "stagger", ""); err != nil {
		t.Error(err)
	}
	if err := d.SetVarAttr("T9", "stagger", ""); err == nil {
		t.Error("setting an attribute of a missing variable should cause an error")
	}
}

func TestVariableNames(t *testing.T) {
	d := NewDataset()
	if err := d.AddDimension("west_east", 3); err != nil {
		t.Fatal(err)
	}
	for _, n := range []string{"XLAT", "T2", "pressure", "HGT"} {
		if err := d.AddVariable(n, []string{"west_east"}, "", "", sparse.ZerosDense(3)); err != nil {
			t.Fatal(err)
		}
	}
	want := []string{"HGT", "T2", "XLAT", "pressure"}
	if have := d.VariableNames(); !reflect.DeepEqual(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestSummary(t *testing.T) {
	d := NewDataset()
	if err := d.AddDimension("west_east", 3); err != nil {
		t.Fatal(err)
	}
	data := sparse.ZerosDense(3)
	for i, v := range []float64{1, 2, 6} {
		data.Set(v, i)
	}
	if err := d.AddVariable("T2", []string{"west_east"}, "2-m temperature", "K", data); err != nil {
		t.Fatal(err)
	}
	have, err := d.Summary("T2")
	if err != nil {
		t.Fatal(err)
	}
	want := "T2 [K]: min 1, mean 3, max 6"
	if have != want {
		t.Errorf("have %q, want %q", have, want)
	}
	if _, err := d.Summary("T9"); err == nil {
		t.Error("summarizing a missing variable should cause an error")
	}
}
