// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dft

import (
	"math/cmplx"

	"github.com/emer/etable/etensor"
	"gonum.org/v1/gonum/dsp/fourier"
)

// ModSpec returns the 2-D modulation power spectrum of a patch of
// ny x nx values (row-major), with zero modulation shifted to the centre
// at [ny/2, nx/2]
func ModSpec(patch []float64, ny, nx int) *etensor.Float64 {
	grid := make([]complex128, ny*nx)
	for i, v := range patch[:ny*nx] {
		grid[i] = complex(v, 0)
	}
	rowfft := fourier.NewCmplxFFT(nx)
	row := make([]complex128, nx)
	for y := 0; y < ny; y++ {
		copy(row, grid[y*nx:(y+1)*nx])
		row = rowfft.Coefficients(row, row)
		copy(grid[y*nx:(y+1)*nx], row)
	}
	colfft := fourier.NewCmplxFFT(ny)
	col := make([]complex128, ny)
	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			col[y] = grid[y*nx+x]
		}
		col = colfft.Coefficients(col, col)
		for y := 0; y < ny; y++ {
			grid[y*nx+x] = col[y]
		}
	}

	ms := &etensor.Float64{}
	ms.SetShape([]int{ny, nx}, nil, []string{"Y", "X"})
	for y := 0; y < ny; y++ {
		sy := (y + ny/2) % ny
		for x := 0; x < nx; x++ {
			sx := (x + nx/2) % nx
			a := cmplx.Abs(grid[y*nx+x])
			ms.Values[sy*nx+sx] = a * a
		}
	}
	return ms
}

// CenterOfMass returns the power-weighted mean position of a 2-D tensor,
// as (y, x). Returns the centre if the total is zero.
func CenterOfMass(tsr *etensor.Float64) (float64, float64) {
	ny, nx := tsr.Dim(0), tsr.Dim(1)
	var sum, cy, cx float64
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			v := tsr.Values[y*nx+x]
			sum += v
			cy += v * float64(y)
			cx += v * float64(x)
		}
	}
	if sum == 0 {
		return float64(ny-1) / 2, float64(nx-1) / 2
	}
	return cy / sum, cx / sum
}

// MarginalPeaks returns the index of the largest mean along each axis:
// the row whose mean over X is largest, and the column whose mean over Y is largest
func MarginalPeaks(tsr *etensor.Float64) (int, int) {
	ny, nx := tsr.Dim(0), tsr.Dim(1)
	rows := make([]float64, ny)
	cols := make([]float64, nx)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			v := tsr.Values[y*nx+x]
			rows[y] += v
			cols[x] += v
		}
	}
	return argmax(rows), argmax(cols)
}

func argmax(v []float64) int {
	mi := 0
	for i, x := range v {
		if x > v[mi] {
			mi = i
		}
	}
	return mi
}
