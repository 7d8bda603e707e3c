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

package wrfpostutil

import (
	"fmt"
	"log"

	"github.com/spatialmodel/wrfpost"
)

// Run combines WRF output files as specified by the given configuration
// variables: it stitches the listed variables (or every variable, if
// allVars is true) from the files in WRFOut between StartDate and
// EndDate into a single dataset, derives the listed diagnostic
// variables, and writes the georeferenced result to OutputFile.
func Run(WRFOut, StartDate, EndDate, OutputFile string, variables, diagnostics []string, allVars bool) error {
	vars := []string{WRFOut, StartDate, EndDate, OutputFile}
	varNames := []string{"WRFOut", "StartDate", "EndDate", "OutputFile"}
	for i, v := range vars {
		if v == "" {
			return fmt.Errorf("wrfpost: configuration variable %s is not specified", varNames[i])
		}
	}

	msgChan := make(chan string)
	go func() {
		for {
			log.Println(<-msgChan)
		}
	}()

	w, err := wrfpost.NewWRF(WRFOut, StartDate, EndDate, msgChan)
	if err != nil {
		return err
	}
	if allVars {
		variables, err = w.Variables()
		if err != nil {
			return err
		}
	}
	d, err := wrfpost.Process(w, variables, diagnostics, OutputFile)
	if err != nil {
		return err
	}
	for _, name := range d.VariableNames() {
		s, err := d.Summary(name)
		if err != nil {
			return err
		}
		msgChan <- s
	}
	return nil
}
