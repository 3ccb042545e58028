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

package meteodatalab

// Physical constants, following the COSMO data assimilation
// documentation.
const (
	// Gravity is the gravitational acceleration in m s-2.
	Gravity = 9.80665
	// EarthAngularVelocity is the angular velocity of the earth in s-1.
	EarthAngularVelocity = 7.2921e-5
	// EarthRadius is the mean radius of the earth in m.
	EarthRadius = 6371229.0
	// RDry is the gas constant of dry air in J kg-1 K-1.
	RDry = 287.05
	// RVapor is the gas constant of water vapor in J kg-1 K-1.
	RVapor = 461.51
	// CpDry is the specific heat capacity of dry air at constant
	// pressure in J kg-1 K-1.
	CpDry = 1005.0
	// B1, B2W, B3 and B4W are the coefficients of the saturation vapor
	// pressure formula over water, in Pa and K.
	B1  = 611.21
	B2W = 17.502
	B3  = 273.16
	B4W = 32.19
	// SurfacePressureRef is the reference surface pressure in Pa.
	SurfacePressureRef = 101325.0
	// EmissivitySurface is the longwave emissivity of the ground.
	EmissivitySurface = 0.996
	// Boltzmann is the Stefan-Boltzmann constant in W m-2 K-4.
	Boltzmann = 5.6697e-8
)
