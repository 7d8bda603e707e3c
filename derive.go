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
	"math"
	"sort"

	"github.com/ctessum/atmos/acm2"
	"github.com/ctessum/sparse"
)

// Physical constants.
const (
	g     = 9.80665 // m/s2
	rr    = 287.058 // (J /kg K), specific gas constant for dry air
	po    = 101300. // Pa, reference pressure
	kappa = 0.2854  // related to von karman's constant
)

// diagnostics are the variables that can be derived from WRF output,
// keyed by output variable name.
var diagnostics = map[string]func(*Dataset) error{
	"pressure":    derivePressure,
	"temperature": deriveTemperature,
	"height":      deriveHeight,
	"slp":         deriveSLP,
	"wspd10":      deriveWindSpeed10,
	"rh2":         deriveRH2,
	"obukhov":     deriveObukhov,
}

// DiagnosticNames returns the names of the variables that Derive can
// add to a dataset, in alphabetical order.
func DiagnosticNames() []string {
	names := make([]string, 0, len(diagnostics))
	for n := range diagnostics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Derive adds the named derived variables to the dataset. The WRF
// variables each one requires must already be present; refer to the
// returned error for the missing inputs, if any. Derived variables are
// added in alphabetical order, so a derived variable may use another
// one that sorts before it as an input.
func (d *Dataset) Derive(names []string) error {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	for _, n := range sorted {
		f, ok := diagnostics[n]
		if !ok {
			return fmt.Errorf("wrfpost: no derived variable %s; options are %v", n, DiagnosticNames())
		}
		if err := f(d); err != nil {
			return fmt.Errorf("wrfpost: deriving %s: %v", n, err)
		}
	}
	return nil
}

// get returns the data for variable v, which is typically an input
// to a derived variable.
func (d *Dataset) get(v string) (*sparse.DenseArray, error) {
	vv, ok := d.Data[v]
	if !ok {
		return nil, fmt.Errorf("missing input variable %s; include it when stitching", v)
	}
	return vv.Data, nil
}

// addDerived adds a derived variable to the dataset, borrowing its
// dimensions from the input variable it was derived from.
func (d *Dataset) addDerived(name, from, description, units string, data *sparse.DenseArray) error {
	src, ok := d.Data[from]
	if !ok {
		return fmt.Errorf("missing input variable %s", from)
	}
	dims := make([]string, len(src.Dims))
	copy(dims, src.Dims)
	if err := d.AddVariable(name, dims, description, units, data); err != nil {
		return err
	}
	return d.SetVarAttr(name, "coordinates", "XLONG XLAT")
}

// derivePressure calculates ambient pressure [Pa] as the sum of the
// WRF perturbation pressure (P) and baseline pressure (PB).
func derivePressure(d *Dataset) error {
	p, err := d.get("P")
	if err != nil {
		return err
	}
	pb, err := d.get("PB")
	if err != nil {
		return err
	}
	pressure := pb.Copy()
	pressure.AddDense(p)
	return d.addDerived("pressure", "P", "ambient pressure", "Pa", pressure)
}

// deriveTemperature converts the WRF perturbation potential temperature
// (T) to ambient temperature [K], using the derived pressure variable.
func deriveTemperature(d *Dataset) error {
	thetaPerturb, err := d.get("T")
	if err != nil {
		return err
	}
	p, err := d.get("pressure")
	if err != nil {
		return fmt.Errorf("%v (derive pressure first)", err)
	}
	T := sparse.ZerosDense(thetaPerturb.Shape...)
	for i, tp := range thetaPerturb.Elements {
		T.Elements[i] = thetaPerturbToTemperature(tp, p.Elements[i])
	}
	return d.addDerived("temperature", "T", "ambient temperature", "K", T)
}

// thetaPerturbToTemperature converts perturbation potential temperature
// [K] at pressure p [Pa] to ambient temperature [K].
func thetaPerturbToTemperature(thetaPerturb, p float64) float64 {
	pressureCorrection := math.Pow(p/po, kappa)
	// potential temperature, K
	θ := thetaPerturb + 300.
	// Ambient temperature, K
	return θ * pressureCorrection
}

// deriveHeight calculates the height above ground [m] of the layer
// interfaces from the WRF perturbation (PH) and baseline (PHB)
// geopotentials.
func deriveHeight(d *Dataset) error {
	ph, err := d.get("PH")
	if err != nil {
		return err
	}
	phb, err := d.get("PHB")
	if err != nil {
		return err
	}
	layerHeights := sparse.ZerosDense(ph.Shape...)
	for t := 0; t < ph.Shape[0]; t++ {
		for k := 0; k < ph.Shape[1]; k++ {
			for j := 0; j < ph.Shape[2]; j++ {
				for i := 0; i < ph.Shape[3]; i++ {
					h := (ph.Get(t, k, j, i) + phb.Get(t, k, j, i) -
						ph.Get(t, 0, j, i) - phb.Get(t, 0, j, i)) / g // m
					layerHeights.Set(h, t, k, j, i)
				}
			}
		}
	}
	return d.addDerived("height", "PH", "height above ground of layer interfaces", "m", layerHeights)
}

// deriveSLP reduces the WRF surface pressure (PSFC) to sea level [Pa]
// using the terrain height (HGT) and 2-m temperature (T2), assuming a
// standard atmosphere lapse rate below ground.
func deriveSLP(d *Dataset) error {
	psfc, err := d.get("PSFC")
	if err != nil {
		return err
	}
	t2, err := d.get("T2")
	if err != nil {
		return err
	}
	hgt, err := d.get("HGT")
	if err != nil {
		return err
	}
	const γ = 0.0065 // K/m, standard atmosphere lapse rate
	slp := sparse.ZerosDense(psfc.Shape...)
	for i, p := range psfc.Elements {
		h := hgt.Elements[i]
		T := t2.Elements[i]
		slp.Elements[i] = p * math.Pow(1-γ*h/(T+γ*h), -g/(rr*γ))
	}
	return d.addDerived("slp", "PSFC", "sea level pressure", "Pa", slp)
}

// deriveWindSpeed10 calculates the scalar wind speed [m s-1] at 10 m
// above ground from the U10 and V10 wind components.
func deriveWindSpeed10(d *Dataset) error {
	u10, err := d.get("U10")
	if err != nil {
		return err
	}
	v10, err := d.get("V10")
	if err != nil {
		return err
	}
	wspd := sparse.ZerosDense(u10.Shape...)
	for i, u := range u10.Elements {
		v := v10.Elements[i]
		wspd.Elements[i] = math.Sqrt(u*u + v*v)
	}
	return d.addDerived("wspd10", "U10", "wind speed at 10 m above ground", "m s-1", wspd)
}

// deriveRH2 calculates relative humidity [%] at 2 m above ground from
// the 2-m water vapor mixing ratio (Q2), 2-m temperature (T2), and
// surface pressure (PSFC), using the Magnus saturation vapor pressure
// approximation.
func deriveRH2(d *Dataset) error {
	q2, err := d.get("Q2")
	if err != nil {
		return err
	}
	t2, err := d.get("T2")
	if err != nil {
		return err
	}
	psfc, err := d.get("PSFC")
	if err != nil {
		return err
	}
	rh := sparse.ZerosDense(q2.Shape...)
	for i, q := range q2.Elements {
		tc := t2.Elements[i] - 273.15 // °C
		es := 611.2 * math.Exp(17.67*tc/(tc+243.5))
		e := q * psfc.Elements[i] / (0.622 + q)
		r := 100 * e / es
		if r > 100 {
			r = 100
		} else if r < 0 {
			r = 0
		}
		rh.Elements[i] = r
	}
	return d.addDerived("rh2", "Q2", "relative humidity at 2 m above ground", "%", rh)
}

// deriveObukhov calculates the Monin-Obukhov length [m] from the
// surface heat flux (HFX), friction velocity (UST), 2-m temperature
// (T2), and surface pressure (PSFC).
func deriveObukhov(d *Dataset) error {
	hfx, err := d.get("HFX")
	if err != nil {
		return err
	}
	ust, err := d.get("UST")
	if err != nil {
		return err
	}
	t2, err := d.get("T2")
	if err != nil {
		return err
	}
	psfc, err := d.get("PSFC")
	if err != nil {
		return err
	}
	L := sparse.ZerosDense(hfx.Shape...)
	for i, hflux := range hfx.Elements {
		T := t2.Elements[i]
		ρ := psfc.Elements[i] / (rr * T) // air density [kg/m3]
		L.Elements[i] = acm2.ObukhovLen(hflux, ρ, T, ust.Elements[i])
	}
	return d.addDerived("obukhov", "HFX", "Monin-Obukhov length", "m", L)
}
