/*
Copyright © 2023 the meteodata-lab authors.
This file is part of meteodata-lab.

meteodata-lab is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

meteodata-lab is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with meteodata-lab.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command meteodata-lab is a command-line interface for processing
// gridded meteorological data.
package main

import (
	"fmt"
	"os"

	"github.com/MeteoSwiss/meteodata-lab/mdlutil"
)

func main() {
	if err := mdlutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
