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

	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
)

// wrfEarthRadius is the radius [m] of the spherical earth that WRF
// projections are defined on.
const wrfEarthRadius = 6370000.

// wrfLongLat returns the geographic coordinate system that WRF latitudes
// and longitudes are defined in. It uses the same spherical earth as the
// grid projections so that transforming between the two does not apply
// a datum shift.
func wrfLongLat() (*proj.SR, error) {
	return proj.Parse(fmt.Sprintf("+proj=longlat +a=%g +b=%g",
		wrfEarthRadius, wrfEarthRadius))
}

// SpatialRef pairs a parsed spatial reference with the PROJ.4 string
// it was created from.
type SpatialRef struct {
	*proj.SR
	Proj4 string
}

// Proj4 returns the PROJ.4 representation of the grid projection.
func (g *WRFGlobal) Proj4() (string, error) {
	switch g.MapProj {
	case 1: // Lambert conformal conic
		return fmt.Sprintf("+proj=lcc +lat_1=%g +lat_2=%g +lat_0=%g +lon_0=%g "+
			"+x_0=0 +y_0=0 +a=%g +b=%g +to_meter=1",
			g.TrueLat1, g.TrueLat2, g.MoadCenLat, g.StandLon,
			wrfEarthRadius, wrfEarthRadius), nil
	case 2: // polar stereographic
		return "", fmt.Errorf("wrfpost: polar stereographic grids (MAP_PROJ=2) are not supported")
	case 3: // Mercator
		return fmt.Sprintf("+proj=merc +lat_ts=%g +lon_0=%g "+
			"+x_0=0 +y_0=0 +a=%g +b=%g +to_meter=1",
			g.TrueLat1, g.StandLon, wrfEarthRadius, wrfEarthRadius), nil
	case 6: // latitude-longitude
		return fmt.Sprintf("+proj=longlat +a=%g +b=%g", wrfEarthRadius, wrfEarthRadius), nil
	}
	return "", fmt.Errorf("wrfpost: unknown projection type MAP_PROJ=%d", g.MapProj)
}

// SR returns the spatial reference of the grid projection.
func (g *WRFGlobal) SR() (*SpatialRef, error) {
	p4, err := g.Proj4()
	if err != nil {
		return nil, err
	}
	sr, err := proj.Parse(p4)
	if err != nil {
		return nil, fmt.Errorf("wrfpost: parsing projection %s: %v", p4, err)
	}
	return &SpatialRef{SR: sr, Proj4: p4}, nil
}

// Georeference adds the projected x and y coordinate variables to the
// dataset and attaches the grid spatial reference as the "spatial_ref"
// dataset attribute. The coordinates are reconstructed from the grid
// center point and cell size, so that cell (j, i) of an unstaggered
// variable is centered at (x[i], y[j]).
func (d *Dataset) Georeference() error {
	if d.Global == nil {
		return fmt.Errorf("wrfpost: dataset is missing grid information")
	}
	g := d.Global
	sr, err := g.SR()
	if err != nil {
		return err
	}
	d.SetAttr("spatial_ref", sr)
	d.SetAttr("proj4", sr.Proj4)

	longlat, err := wrfLongLat()
	if err != nil {
		return err
	}
	toGrid, err := longlat.NewTransform(sr.SR)
	if err != nil {
		return err
	}
	xc, yc, err := toGrid(g.CenLon, g.CenLat)
	if err != nil {
		return fmt.Errorf("wrfpost: projecting grid center point: %v", err)
	}

	nx, ok := d.Dimension("west_east")
	if !ok {
		return fmt.Errorf("wrfpost: dataset is missing the west_east dimension")
	}
	ny, ok := d.Dimension("south_north")
	if !ok {
		return fmt.Errorf("wrfpost: dataset is missing the south_north dimension")
	}

	units := "m"
	if g.MapProj == 6 {
		units = "degree"
	}

	x := sparse.ZerosDense(nx)
	for i := 0; i < nx; i++ {
		x.Set(xc+(float64(i)-float64(nx-1)/2)*g.Dx, i)
	}
	if err := d.AddVariable("x", []string{"west_east"}, "x coordinate of projection", units, x); err != nil {
		return err
	}

	y := sparse.ZerosDense(ny)
	for j := 0; j < ny; j++ {
		y.Set(yc+(float64(j)-float64(ny-1)/2)*g.Dy, j)
	}
	return d.AddVariable("y", []string{"south_north"}, "y coordinate of projection", units, y)
}

// reconstructCoords computes the named coordinate variables (XLAT,
// XLONG) from the grid projection, for file series that do not carry
// them.
func reconstructCoords(d *Dataset, names []string, msgChan chan string) error {
	if err := d.Georeference(); err != nil {
		return err
	}
	lat, lon, err := d.LatLon()
	if err != nil {
		return err
	}
	dims := []string{"south_north", "west_east"}
	for _, v := range names {
		switch v {
		case "XLAT":
			err = d.AddVariable(v, dims, "latitude, computed from the grid projection", "degree_north", lat)
		case "XLONG":
			err = d.AddVariable(v, dims, "longitude, computed from the grid projection", "degree_east", lon)
		default:
			err = fmt.Errorf("wrfpost: cannot reconstruct coordinate %s", v)
		}
		if err != nil {
			return err
		}
	}
	if msgChan != nil {
		msgChan <- fmt.Sprintf("Computed %v from the grid projection", names)
	}
	return nil
}

// LatLon calculates the latitude and longitude of each unstaggered grid
// cell center by inverse-projecting the x and y coordinate variables.
// The result can be compared against the WRF XLAT and XLONG variables.
func (d *Dataset) LatLon() (lat, lon *sparse.DenseArray, err error) {
	if d.Global == nil {
		return nil, nil, fmt.Errorf("wrfpost: dataset is missing grid information")
	}
	sr, err := d.Global.SR()
	if err != nil {
		return nil, nil, err
	}
	longlat, err := wrfLongLat()
	if err != nil {
		return nil, nil, err
	}
	fromGrid, err := sr.NewTransform(longlat)
	if err != nil {
		return nil, nil, err
	}
	x, err := d.get("x")
	if err != nil {
		return nil, nil, fmt.Errorf("wrfpost: %v (call Georeference first)", err)
	}
	y, err := d.get("y")
	if err != nil {
		return nil, nil, fmt.Errorf("wrfpost: %v (call Georeference first)", err)
	}
	ny, nx := y.Shape[0], x.Shape[0]
	lat = sparse.ZerosDense(ny, nx)
	lon = sparse.ZerosDense(ny, nx)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			λ, φ, err := fromGrid(x.Get(i), y.Get(j))
			if err != nil {
				return nil, nil, fmt.Errorf("wrfpost: unprojecting cell (%d, %d): %v", j, i, err)
			}
			lon.Set(λ, j, i)
			lat.Set(φ, j, i)
		}
	}
	return lat, lon, nil
}
