// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mel

import (
	"math"

	"github.com/emer/etable/etensor"
	"gonum.org/v1/gonum/dsp/fourier"
)

// FilterBank contains mel frequency feature bank sampling parameters
type FilterBank struct {
	NFilters    int     `view:"+" def:"32,26" desc:"number of Mel frequency filters to compute"`
	LoHz        float64 `view:"+" def:"120,300" step:"10.0" desc:"low frequency end of mel frequency spectrum"`
	HiHz        float64 `view:"+" def:"10000,8000" step:"1000.0" desc:"high frequency end of mel frequency spectrum -- must be <= sample_rate / 2 (i.e., less than the Nyquist frequencY"`
	LogOff      float64 `view:"+" def:"0" desc:"on add this amount when taking the log of the Mel filter sums to produce the filter-bank output -- e.g., 1.0 makes everything positive -- affects the relative contrast of the outputs"`
	LogMin      float64 `view:"+" def:"-10" desc:"minimum value a log can produce -- puts a lower limit on log output"`
	Renorm      bool    `desc:" whether to perform renormalization of the mel values"`
	RenormMin   float64 `viewif:"Renorm" step:"1.0" desc:"minimum value to use for renormalization -- you must experiment with range of inputs to determine appropriate values"`
	RenormMax   float64 `viewif:"Renorm" step:"1.0" desc:"maximum value to use for renormalization -- you must experiment with range of inputs to determine appropriate values"`
	RenormScale float64 `view:"-" desc:"1.0 / (ren_max - ren_min)"`
}

//Defaults initializes FBank values - these are the ones you most likely need to adjust for your particular signals
func (mfb *FilterBank) Defaults() {
	mfb.LoHz = 0
	mfb.HiHz = 8000.0
	mfb.NFilters = 32
	mfb.LogOff = 0.0
	mfb.LogMin = -10.0
	mfb.Renorm = true
	mfb.RenormMin = -6.0
	mfb.RenormMax = 4.0
}

// Params
type Params struct {
	FBank   FilterBank      `view:"inline"`
	BinPts  []int           `view:"-" desc:" mel scale points in fft bins"`
	HzPts   []float64       `view:"-" desc:" mel scale points in hz"`
	Filters etensor.Float64 `view:"no-inline" desc:" [NFilters, maxBins] the actual filters"`
	MFCC    bool            `view:"+" def:"false" desc:" compute cepstrum discrete cosine transform (dct) of the mel-frequency filter bank features"`
	NCoefs  int             `viewif:"MFCC" def:"13" desc:" number of mfcc coefficients to output -- typically 1/2 of the number of filterbank features"`
	dct     *fourier.DCT
}

// Defaults
func (mel *Params) Defaults() {
	mel.MFCC = false
	mel.NCoefs = 13
	mel.FBank.Defaults()
}

// NOut returns the number of values per step: NCoefs with MFCC, else NFilters
func (mel *Params) NOut() int {
	if mel.MFCC {
		return mel.NCoefs
	}
	return mel.FBank.NFilters
}

// InitFilters computes the filter bin values, for a dft of dftSize samples
func (mel *Params) InitFilters(dftSize int, sampleRate int) {
	mel.BinPts = make([]int, mel.FBank.NFilters+2) // plus 2 because we need end points to create the right number of bins
	mel.HzPts = make([]float64, mel.FBank.NFilters+2)
	// the dct has NFilters outputs
	if mel.NCoefs > mel.FBank.NFilters {
		mel.NCoefs = mel.FBank.NFilters
	}
	mel.dct = nil
	if mel.FBank.Renorm {
		mel.FBank.RenormScale = 1.0 / (mel.FBank.RenormMax - mel.FBank.RenormMin)
	}

	hiMel := FreqToMel(mel.FBank.HiHz)
	loMel := FreqToMel(mel.FBank.LoHz)
	incr := (hiMel - loMel) / float64(mel.FBank.NFilters+1)

	for i := 0; i < len(mel.BinPts); i++ {
		ml := loMel + float64(i)*incr
		hz := MelToFreq(ml)
		mel.HzPts[i] = hz
		mel.BinPts[i] = FreqToBin(hz, float64(dftSize), float64(sampleRate))
	}

	maxBins := 0
	for f := 0; f < mel.FBank.NFilters; f++ {
		if w := mel.BinPts[f+2] - mel.BinPts[f] + 1; w > maxBins {
			maxBins = w
		}
	}
	mel.Filters.SetShape([]int{mel.FBank.NFilters, maxBins}, nil, []string{"Filter", "Bin"})
	mel.Filters.SetZeros()

	for f := 0; f < mel.FBank.NFilters; f++ {
		binMin := mel.BinPts[f]
		binCtr := mel.BinPts[f+1]
		binMax := mel.BinPts[f+2]
		pkmin := float64(binCtr - binMin)
		pkmax := float64(binMax - binCtr)

		fi := 0
		bin := 0
		for bin = binMin; bin <= binCtr; bin, fi = bin+1, fi+1 {
			fval := 1.0
			if pkmin > 0 {
				fval = float64(bin-binMin) / pkmin
			}
			mel.Filters.Set([]int{f, fi}, fval)
		}
		for ; bin <= binMax; bin, fi = bin+1, fi+1 {
			fval := float64(binMax-bin) / pkmax
			mel.Filters.Set([]int{f, fi}, fval)
		}
	}
	if mel.MFCC {
		mel.dct = fourier.NewDCT(mel.FBank.NFilters)
	}
}

// FilterDft applies the mel filters to the power of a dft, writing the log
// filter-bank energies into fbank (NFilters long)
func (mel *Params) FilterDft(power []float64, fbank []float64) {
	for flt := 0; flt < mel.FBank.NFilters; flt++ {
		minBin := mel.BinPts[flt]
		maxBin := mel.BinPts[flt+2]

		sum := 0.0
		fi := 0
		for bin := minBin; bin <= maxBin && bin < len(power); bin, fi = bin+1, fi+1 {
			sum += mel.Filters.Value([]int{flt, fi}) * power[bin]
		}
		sum += mel.FBank.LogOff
		var val float64
		if sum == 0 {
			val = mel.FBank.LogMin
		} else {
			val = math.Log(sum)
		}
		if mel.FBank.Renorm {
			val -= mel.FBank.RenormMin
			if val < 0.0 {
				val = 0.0
			}
			val *= mel.FBank.RenormScale
			if val > 1.0 {
				val = 1.0
			}
		}
		fbank[flt] = val
	}
}

// CepstrumDct applies a discrete cosine transform (DCT) to the mel filterbank
// values, writing the first NCoefs cepstrum coefficients into mfcc.
// NCoefs is capped at NFilters by InitFilters.
// The first coefficient is replaced by the log energy.
func (mel *Params) CepstrumDct(fbank []float64, mfcc []float64) {
	if mel.dct == nil {
		mel.dct = fourier.NewDCT(mel.FBank.NFilters)
	}
	out := mel.dct.Transform(nil, fbank)
	el0 := out[0]
	out[0] = math.Log(1.0 + el0*el0) // replace with log energy instead..
	nc := mel.NCoefs
	if nc > len(out) {
		nc = len(out)
	}
	copy(mfcc, out[:nc])
}

// FreqToMel converts frequency to mel scale
func FreqToMel(freq float64) float64 {
	return 1127.0 * math.Log(1.0+freq/700.0) // 1127 because we are using natural log
}

// MelToFreq converts mel scale to frequency
func MelToFreq(mel float64) float64 {
	return 700.0 * (math.Exp(mel/1127.0) - 1.0)
}

// FreqToBin converts frequency into FFT bin number, using parameters of number of FFT bins and sample rate
func FreqToBin(freq, nFft, sampleRate float64) int {
	return int(math.Floor(((nFft + 1) * freq) / sampleRate))
}
