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

// Command wrfpost is a command-line interface for combining WRF model
// output into a single CF-compliant NetCDF file.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/wrfpost/wrfpostutil"
)

func main() {
	if err := wrfpostutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
