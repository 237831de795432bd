// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package sound loads wav files and turns them into stimuli for a sparse
coding model: raw waveform segments, or log mel spectrogram segments
computed one window at a time.
*/
package sound

import (
	"fmt"
	"log"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

type Wave struct {
	Buf *audio.IntBuffer `inactive:"+"`
}

// Load loads the sound file and decodes it
func (snd *Wave) Load(fn string) error {
	f, err := os.Open(fn)
	if err != nil {
		log.Printf("sound.Load: couldn't open %s %v", fn, err)
		return err
	}
	defer f.Close()
	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return fmt.Errorf("sound.Load: %s is not a valid wav file", fn)
	}
	snd.Buf, err = d.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("sound.Load: decoding %s: %w", fn, err)
	}
	return nil
}

// WriteWave encodes the signal data and writes it to file using the sample rate and
// other values of the buf object
func (snd *Wave) WriteWave(fn string) error {
	out, err := os.Create(fn)
	if err != nil {
		log.Printf("unable to create %s: %v", fn, err)
		return err
	}
	defer out.Close()

	PCM := 1
	e := wav.NewEncoder(out, snd.SampleRate(), snd.Buf.SourceBitDepth, snd.Channels(), PCM)
	if err = e.Write(snd.Buf); err != nil {
		log.Printf("Encoding failed on write: %v", err)
		return err
	}
	return e.Close()
}

// SampleRate returns the sample rate of the sound or 0 if snd is not loaded
func (snd *Wave) SampleRate() int {
	if snd == nil || snd.Buf == nil {
		return 0
	}
	return snd.Buf.Format.SampleRate
}

// Channels returns the number of channels in the wav data or 0 if snd is not loaded
func (snd *Wave) Channels() int {
	if snd == nil || snd.Buf == nil {
		return 0
	}
	return snd.Buf.Format.NumChannels
}

// NFrames returns the number of samples per channel
func (snd *Wave) NFrames() int {
	if snd == nil || snd.Buf == nil {
		return 0
	}
	return snd.Buf.NumFrames()
}

// Samples returns one channel of the sound as values normalized to -1..1
func (snd *Wave) Samples(channel int) []float64 {
	nch := snd.Channels()
	if channel < 0 || channel >= nch {
		channel = 0
	}
	nf := snd.NFrames()
	sig := make([]float64, nf)
	for i := 0; i < nf; i++ {
		sig[i] = snd.FloatAtIdx(i*nch + channel)
	}
	return sig
}

// FloatAtIdx returns the raw sample at idx scaled by the source bit depth
func (snd *Wave) FloatAtIdx(idx int) float64 {
	v := float64(snd.Buf.Data[idx])
	switch snd.Buf.SourceBitDepth {
	case 32:
		return v / float64(0x7FFFFFFF)
	case 24:
		return v / float64(0x7FFFFF)
	case 16:
		return v / float64(0x7FFF)
	case 8:
		return v / float64(0x7F)
	}
	return 0
}

// FromSamples sets the sound to a single channel of 16 bit samples
// from values in -1..1
func (snd *Wave) FromSamples(sig []float64, sampleRate int) {
	data := make([]int, len(sig))
	for i, v := range sig {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		data[i] = int(v * float64(0x7FFF))
	}
	snd.Buf = &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
}
