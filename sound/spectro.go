// Copyright (c) 2021, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sound

import (
	"errors"
	"fmt"
	"math"

	"github.com/emer/dictlearn/dft"
	"github.com/emer/dictlearn/mel"
	"github.com/emer/etable/etensor"
)

// Params defines the windowing of the sound into spectrogram segments
type Params struct {
	WinMs     float64 `def:"25" desc:"input window -- number of milliseconds worth of sound to filter at a time"`
	StepMs    float64 `def:"5,10,12.5" desc:"input step -- number of milliseconds worth of sound that the input is stepped along to obtain the next window sample"`
	SegmentMs float64 `def:"100" desc:"length of full segment's worth of input -- must be a multiple of StepMs -- one segment is SegmentMs / StepMs = SegmentSteps wide in time, and number of filters in frequency"`
	StrideMs  float64 `def:"100" desc:"how far to move from one segment to the next"`
	Channel   int     `desc:"specific channel to process, if input has multiple channels"`

	// these are calculated
	WinSamples   int `inactive:"+" desc:"number of samples to process each step"`
	StepSamples  int `inactive:"+" desc:"number of samples to step input by"`
	SegmentSteps int `inactive:"+" desc:"number of steps in one segment"`
	StrideSteps  int `inactive:"+" desc:"number of steps from one segment to the next"`
}

func (sp *Params) Defaults() {
	sp.WinMs = 25.0
	sp.StepMs = 10.0
	sp.SegmentMs = 100.0
	sp.StrideMs = 100.0
	sp.Channel = 0
}

// Update computes the sample and step counts for the given sample rate
func (sp *Params) Update(sampleRate int) {
	sp.WinSamples = MSecToSamples(sp.WinMs, sampleRate)
	sp.StepSamples = MSecToSamples(sp.StepMs, sampleRate)
	sp.SegmentSteps = int(math.Round(sp.SegmentMs / sp.StepMs))
	sp.StrideSteps = int(math.Round(sp.StrideMs / sp.StepMs))
	if sp.StrideSteps < 1 {
		sp.StrideSteps = 1
	}
}

// Spectro computes log mel spectrograms of a signal, window by window,
// and cuts them into segments that serve as stimuli
type Spectro struct {
	Params     Params
	Dft        dft.Params `desc:"power spectrum parameters"`
	Mel        mel.Params `view:"no-inline"`
	SampleRate int        `inactive:"+"`
	proc       *dft.DFT
	power      []float64
	fbank      []float64
}

func (sp *Spectro) Defaults() {
	sp.Params.Defaults()
	sp.Dft.Defaults()
	sp.Mel.Defaults()
}

// Init sets up the dft and mel filters for sounds of the given sample rate
func (sp *Spectro) Init(sampleRate int) error {
	if sampleRate <= 0 {
		return errors.New("sound.Spectro: sample rate <= 0")
	}
	sp.SampleRate = sampleRate
	sp.Params.Update(sampleRate)
	if sp.Params.WinSamples < 2 || sp.Params.StepSamples < 1 || sp.Params.SegmentSteps < 1 {
		return fmt.Errorf("sound.Spectro: windows of %d samples stepped by %d are too small", sp.Params.WinSamples, sp.Params.StepSamples)
	}
	sp.proc = dft.NewDFT(sp.Params.WinSamples)
	sp.proc.Params = sp.Dft
	sp.proc.Update()
	sp.Mel.InitFilters(sp.Params.WinSamples, sampleRate) // call after non-default values are set!
	sp.power = make([]float64, sp.proc.NPower())
	sp.fbank = make([]float64, sp.Mel.FBank.NFilters)
	return nil
}

// NSteps returns the number of whole windows in a signal of n samples
func (sp *Spectro) NSteps(n int) int {
	if n < sp.Params.WinSamples {
		return 0
	}
	return (n-sp.Params.WinSamples)/sp.Params.StepSamples + 1
}

// Steps returns the [NSteps, NOut] spectrogram of sig, with mel filter-bank
// energies (or cepstral coefficients if Mel.MFCC) for every window
func (sp *Spectro) Steps(sig []float64) *etensor.Float64 {
	nst := sp.NSteps(len(sig))
	nout := sp.Mel.NOut()
	tsr := &etensor.Float64{}
	tsr.SetShape([]int{nst, nout}, nil, []string{"Step", "Freq"})
	for st := 0; st < nst; st++ {
		start := st * sp.Params.StepSamples
		win := sig[start : start+sp.Params.WinSamples]
		sp.proc.Power(win, st == 0, sp.power, nil)
		sp.Mel.FilterDft(sp.power, sp.fbank)
		out := tsr.Values[st*nout : (st+1)*nout]
		if sp.Mel.MFCC {
			sp.Mel.CepstrumDct(sp.fbank, out)
		} else {
			copy(out, sp.fbank)
		}
	}
	return tsr
}

// Segments returns the [NSegments, SegmentSteps, NOut] segments of the
// spectrogram of sig, StrideSteps apart
func (sp *Spectro) Segments(sig []float64) *etensor.Float64 {
	steps := sp.Steps(sig)
	nst := steps.Dim(0)
	nout := sp.Mel.NOut()
	segst := sp.Params.SegmentSteps
	nseg := 0
	if nst >= segst {
		nseg = (nst-segst)/sp.Params.StrideSteps + 1
	}
	tsr := &etensor.Float64{}
	tsr.SetShape([]int{nseg, segst, nout}, nil, []string{"Segment", "Step", "Freq"})
	sz := segst * nout
	for sg := 0; sg < nseg; sg++ {
		st := sg * sp.Params.StrideSteps
		copy(tsr.Values[sg*sz:(sg+1)*sz], steps.Values[st*nout:st*nout+sz])
	}
	return tsr
}

// LoadSegments loads a wav file and returns the spectrogram segments of
// the Params.Channel channel
func (sp *Spectro) LoadSegments(fn string) (*etensor.Float64, error) {
	var snd Wave
	if err := snd.Load(fn); err != nil {
		return nil, err
	}
	if err := sp.Init(snd.SampleRate()); err != nil {
		return nil, err
	}
	return sp.Segments(snd.Samples(sp.Params.Channel)), nil
}

// Waveforms returns the [NSegments, segSamples] raw segments of sig,
// strideSamples apart
func Waveforms(sig []float64, segSamples, strideSamples int) *etensor.Float64 {
	if strideSamples < 1 {
		strideSamples = segSamples
	}
	nseg := 0
	if len(sig) >= segSamples {
		nseg = (len(sig)-segSamples)/strideSamples + 1
	}
	tsr := &etensor.Float64{}
	tsr.SetShape([]int{nseg, segSamples}, nil, []string{"Segment", "Sample"})
	for sg := 0; sg < nseg; sg++ {
		st := sg * strideSamples
		copy(tsr.Values[sg*segSamples:(sg+1)*segSamples], sig[st:st+segSamples])
	}
	return tsr
}

// MSecToSamples converts milliseconds to samples, in terms of sample_rate
func MSecToSamples(ms float64, rate int) int {
	return int(math.Round(ms * 0.001 * float64(rate)))
}

// SamplesToMSec converts samples to milliseconds, in terms of sample_rate
func SamplesToMSec(samples int, rate int) float64 {
	return 1000.0 * float64(samples) / float64(rate)
}
