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
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// WRF reads meteorology data from a series of WRF output files.
type WRF struct {
	wrfOut string

	start, end time.Time

	recordDelta, fileDelta time.Duration

	msgChan chan string
}

const (
	// wrfFormat is the format of dates in WRF file names.
	wrfFormat = "2006-01-02_15_04_05"

	// wrfTimeFormat is the format of time stamps in the WRF
	// "Times" variable.
	wrfTimeFormat = "2006-01-02_15:04:05"

	// inDateFormat is the format of dates in the configuration file.
	inDateFormat = "20060102"
)

// NewWRF initializes a WRF output file reader. WRFOut is the location
// of the files; [DATE] should be used as a wild card for the simulation
// date. startDate and endDate are the dates of the beginning and end of
// the period of interest, respectively, in the format "YYYYMMDD".
// If msgChan is not nil, status messages will be sent to it.
func NewWRF(WRFOut, startDate, endDate string, msgChan chan string) (*WRF, error) {
	w := WRF{
		wrfOut:  WRFOut,
		msgChan: msgChan,
	}

	var err error
	w.start, err = time.Parse(inDateFormat, startDate)
	if err != nil {
		return nil, fmt.Errorf("wrfpost: start time: %v", err)
	}
	w.end, err = time.Parse(inDateFormat, endDate)
	if err != nil {
		return nil, fmt.Errorf("wrfpost: end time: %v", err)
	}

	if !w.end.After(w.start) {
		return nil, fmt.Errorf("wrfpost: end time %v is not after start time %v", w.end, w.start)
	}

	w.recordDelta, err = time.ParseDuration("1h")
	if err != nil {
		return nil, fmt.Errorf("wrfpost: recordDelta: %v", err)
	}
	w.fileDelta, err = time.ParseDuration("24h")
	if err != nil {
		return nil, fmt.Errorf("wrfpost: fileDelta: %v", err)
	}
	return &w, nil
}

// NextData is a type of function that returns data for the next time
// step of a variable. It should return the io.EOF error after the last
// time step.
type NextData func() (*sparse.DenseArray, error)

func (w *WRF) read(varName string) NextData {
	return nextDataNCF(w.wrfOut, wrfFormat, varName, w.start, w.end, w.recordDelta, w.fileDelta, readNCF, w.msgChan)
}

// nextDataNCF returns a function that sequentially retrieves time series data
// for the specified variable (varName) from a series of NetCDF files
// with the given file name template between the given start and end times.
// fileDelta and recordDelta specify the length of time between each file
// and each record within a file, respectively. dateFormat is the format
// in which dates appear in the filename.
func nextDataNCF(fileTemplate string, dateFormat string, varName string, start, end time.Time, recordDelta, fileDelta time.Duration, readFunc readNCFFunc, msgChan chan string) NextData {
	recordsPerFile := int(fileDelta / recordDelta)
	var i int
	date := start
	return func() (*sparse.DenseArray, error) {
		if !date.Before(end) {
			return nil, io.EOF
		}
		f, ff, err := ncfFromTemplate(fileTemplate, dateFormat, date)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		data, err := readFunc(varName, ff, i)
		if err != nil {
			return nil, fmt.Errorf("wrfpost: %s: %v", fileFromTemplate(fileTemplate, dateFormat, date), err)
		}
		i++
		if i == recordsPerFile {
			if msgChan != nil {
				msgChan <- fmt.Sprintf("Read %d records of %s from %s", i, varName,
					fileFromTemplate(fileTemplate, dateFormat, date))
			}
			i = 0
			date = date.Add(fileDelta)
		}
		return data, err
	}
}

// readNCFFunc is a function that can read information from a
// NetCDF file.
type readNCFFunc func(varName string, file *cdf.File, index int) (*sparse.DenseArray, error)

// readNCF reads variable v out of netcdf file ff at the index 0 value
// specified by hour.
func readNCF(v string, ff *cdf.File, hour int) (*sparse.DenseArray, error) {
	dims := ff.Header.Lengths(v)
	if len(dims) == 0 {
		return nil, fmt.Errorf("variable %s not in file", v)
	}
	dims = dims[1:]
	nread := 1
	for _, dim := range dims {
		nread *= dim
	}
	start, end := make([]int, len(dims)+1), make([]int, len(dims)+1)
	start[0], end[0] = hour, hour+1
	r := ff.Reader(v, start, end)
	buf := r.Zero(nread)
	_, err := r.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("reading variable %s: %v", v, err)
	}
	data := sparse.ZerosDense(dims...)
	for i, val := range buf.([]float32) {
		data.Elements[i] = float64(val)
	}
	return data, nil
}

// fileFromTemplate returns the file name corresponding to the given date.
func fileFromTemplate(fileTemplate, dateFormat string, date time.Time) string {
	return strings.Replace(fileTemplate, "[DATE]", date.Format(dateFormat), -1)
}

// ncfFromTemplate opens the NetCDF file corresponding to the given date.
func ncfFromTemplate(fileTemplate, dateFormat string, date time.Time) (*os.File, *cdf.File, error) {
	file := fileFromTemplate(fileTemplate, dateFormat, date)
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, err
	}
	ff, err := cdf.Open(f)
	if err != nil {
		return nil, nil, err
	}
	return f, ff, err
}

// times returns the time stamps of all of the records in the file series,
// as read from the WRF "Times" variable.
func (w *WRF) times() ([]time.Time, error) {
	var o []time.Time
	for date := w.start; date.Before(w.end); date = date.Add(w.fileDelta) {
		f, ff, err := ncfFromTemplate(w.wrfOut, wrfFormat, date)
		if err != nil {
			return nil, err
		}
		t, err := readTimes(f, ff)
		f.Close()
		if err != nil {
			return nil, err
		}
		o = append(o, t...)
	}
	return o, nil
}

// readTimes decodes the "Times" character variable in a WRF output file.
func readTimes(f *os.File, ff *cdf.File) ([]time.Time, error) {
	dims := ff.Header.Lengths("Times")
	if len(dims) != 2 {
		return nil, fmt.Errorf("wrfpost: reading Times: expected 2 dimensions but have %d", len(dims))
	}
	strLen := dims[1]
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	nrec := int(ff.Header.NumRecs(fi.Size()))
	r := ff.Reader("Times", []int{0, 0}, []int{nrec, 0})
	buf := r.Zero(nrec * strLen)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("wrfpost: reading Times: %v", err)
	}
	b := buf.([]uint8)
	o := make([]time.Time, nrec)
	for i := 0; i < nrec; i++ {
		s := strings.TrimSpace(string(b[i*strLen : (i+1)*strLen]))
		o[i], err = time.Parse(wrfTimeFormat, s)
		if err != nil {
			return nil, fmt.Errorf("wrfpost: parsing time stamp %s: %v", s, err)
		}
	}
	return o, nil
}

// hasVariable reports whether the first file in the series contains
// variable v.
func (w *WRF) hasVariable(v string) (bool, error) {
	f, ff, err := ncfFromTemplate(w.wrfOut, wrfFormat, w.start)
	if err != nil {
		return false, err
	}
	defer f.Close()
	for _, vv := range ff.Header.Variables() {
		if vv == v {
			return true, nil
		}
	}
	return false, nil
}

// varMeta holds the metadata of a variable in a WRF output file.
type varMeta struct {
	dims        []string // dimension names, not including the time dimension
	shape       []int    // dimension lengths, not including the time dimension
	description string
	units       string
	stagger     string
	memoryOrder string
	coordinates string
}

// varInfo reads the metadata of variable v from the first file in the
// series.
func (w *WRF) varInfo(v string) (*varMeta, error) {
	f, ff, err := ncfFromTemplate(w.wrfOut, wrfFormat, w.start)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dims := ff.Header.Dimensions(v)
	if len(dims) == 0 {
		return nil, fmt.Errorf("wrfpost: variable %s not in file", v)
	}
	m := &varMeta{
		dims:        dims[1:],
		shape:       ff.Header.Lengths(v)[1:],
		description: attrString(ff, v, "description"),
		units:       attrString(ff, v, "units"),
		stagger:     attrString(ff, v, "stagger"),
		memoryOrder: attrString(ff, v, "MemoryOrder"),
		coordinates: attrString(ff, v, "coordinates"),
	}
	return m, nil
}

// attrString returns the string value of attribute a of variable v,
// or "" if the attribute is missing or not a string.
func attrString(ff *cdf.File, v, a string) string {
	att := ff.Header.GetAttribute(v, a)
	if att == nil {
		return ""
	}
	if s, ok := att.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// WRFGlobal holds the global grid and projection attributes of a WRF
// output file series.
type WRFGlobal struct {
	Title string

	// Dx and Dy are the grid cell edge lengths [m].
	Dx, Dy float64

	// CenLat and CenLon are the center point of the grid.
	CenLat, CenLon float64

	// MoadCenLat, StandLon, TrueLat1, and TrueLat2 are the
	// spatial projection parameters.
	MoadCenLat, StandLon, TrueLat1, TrueLat2 float64

	// MapProj is the projection type: 1 = Lambert conformal conic,
	// 2 = polar stereographic, 3 = Mercator, 6 = latitude-longitude.
	MapProj int
}

// Global reads the global attributes from the first file in the series.
func (w *WRF) Global() (*WRFGlobal, error) {
	f, ff, err := ncfFromTemplate(w.wrfOut, wrfFormat, w.start)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readGlobal(ff)
}

func readGlobal(ff *cdf.File) (*WRFGlobal, error) {
	g := &WRFGlobal{Title: attrString(ff, "", "TITLE")}
	var err error
	floats := []struct {
		name string
		dst  *float64
	}{
		{"DX", &g.Dx},
		{"DY", &g.Dy},
		{"CEN_LAT", &g.CenLat},
		{"CEN_LON", &g.CenLon},
		{"MOAD_CEN_LAT", &g.MoadCenLat},
		{"STAND_LON", &g.StandLon},
		{"TRUELAT1", &g.TrueLat1},
		{"TRUELAT2", &g.TrueLat2},
	}
	for _, a := range floats {
		*a.dst, err = globalAttrFloat(ff, a.name)
		if err != nil {
			return nil, err
		}
	}
	g.MapProj, err = globalAttrInt(ff, "MAP_PROJ")
	if err != nil {
		return nil, err
	}
	return g, nil
}

// globalAttrFloat returns the value of the named global attribute as a
// float64.
func globalAttrFloat(ff *cdf.File, name string) (float64, error) {
	att := ff.Header.GetAttribute("", name)
	if att == nil {
		return 0, fmt.Errorf("wrfpost: missing global attribute %s", name)
	}
	switch a := att.(type) {
	case []float32:
		if len(a) > 0 {
			return float64(a[0]), nil
		}
	case []float64:
		if len(a) > 0 {
			return a[0], nil
		}
	case []int32:
		if len(a) > 0 {
			return float64(a[0]), nil
		}
	}
	return 0, fmt.Errorf("wrfpost: global attribute %s is not a number: %v", name, att)
}

// globalAttrInt returns the value of the named global attribute as an int.
func globalAttrInt(ff *cdf.File, name string) (int, error) {
	att := ff.Header.GetAttribute("", name)
	if att == nil {
		return 0, fmt.Errorf("wrfpost: missing global attribute %s", name)
	}
	if a, ok := att.([]int32); ok && len(a) > 0 {
		return int(a[0]), nil
	}
	return 0, fmt.Errorf("wrfpost: global attribute %s is not an integer: %v", name, att)
}
