// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package dft computes power spectra: the power of one window of sound,
and the 2-D modulation power spectrum of a spectro-temporal patch such
as a dictionary element.
*/
package dft

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Params are the parameters for the power spectrum of a window
type Params struct {
	CompLogPow bool    `def:"true" desc:"compute the log of the power as well -- generaly more useful than raw power values"`
	LogMin     float64 `viewif:"CompLogPow" def:"-100" desc:"minimum value a log can produce -- puts a lower limit on log output"`
	LogOffSet  float64 `viewif:"CompLogPow" def:"0" desc:"add this amount when taking the log of the dft power -- e.g., 1.0 makes everything positive -- affects the relative contrast of the outputs"`
	PrevSmooth float64 `def:"0" desc:"how much of the previous step's power value to include in this one -- smooths out the power spectrum which can be artificially bumpy due to discrete window samples"`
	CurSmooth  float64 `inactive:"+" desc:" how much of current power to include"`
}

func (dp *Params) Defaults() {
	dp.CompLogPow = true
	dp.LogMin = -100
	dp.LogOffSet = 0
	dp.PrevSmooth = 0
	dp.Update()
}

func (dp *Params) Update() {
	dp.CurSmooth = 1.0 - dp.PrevSmooth
}

// DFT computes the power spectrum of windows of a fixed number of samples
type DFT struct {
	Params
	WinSamples int          `inactive:"+" desc:"number of samples in one window"`
	Coefs      []complex128 `inactive:"+" desc:"fourier coefficients of the last window, up to the nyquist frequency"`
	fft        *fourier.FFT
}

// NewDFT returns a DFT with default params for windows of winSamples
func NewDFT(winSamples int) *DFT {
	dt := &DFT{WinSamples: winSamples}
	dt.Defaults()
	dt.fft = fourier.NewFFT(winSamples)
	return dt
}

// NPower returns the number of power values: winSamples/2 + 1
func (dt *DFT) NPower() int {
	return dt.WinSamples/2 + 1
}

// Power computes the power of window into power, and its log into logPower
// if CompLogPow and logPower is non-nil. Unless first, the previous contents
// of power are blended in according to PrevSmooth.
func (dt *DFT) Power(window []float64, first bool, power, logPower []float64) {
	dt.Coefs = dt.fft.Coefficients(dt.Coefs, window)
	for k := 0; k < dt.NPower(); k++ {
		rl := real(dt.Coefs[k])
		im := imag(dt.Coefs[k])
		powr := rl*rl + im*im
		if !first {
			powr = dt.PrevSmooth*power[k] + dt.CurSmooth*powr
		}
		power[k] = powr
		if dt.CompLogPow && logPower != nil {
			powr += dt.LogOffSet
			if powr == 0 {
				logPower[k] = dt.LogMin
			} else {
				logPower[k] = math.Max(dt.LogMin, math.Log(powr))
			}
		}
	}
}
