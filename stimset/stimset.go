// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package stimset supplies batches of stimulus vectors to a dictionary
learner: rows of a data matrix, random patches of images, and
PCA-reduced spectrogram or waveform segments. Batches are D x n
matrices with one stimulus per column.
*/
package stimset

import (
	"errors"
	"fmt"

	"github.com/emer/etable/etensor"
	"github.com/goki/ki/kit"
	"gonum.org/v1/gonum/mat"
)

// Source is a supply of stimuli of a fixed dimension
type Source interface {
	// RandBatch returns n stimuli drawn at random, one per column
	RandBatch(n int) *mat.Dense

	// AllData returns every stimulus the source can enumerate, one per column
	AllData() *mat.Dense

	// DataSize returns the dimension D of one stimulus
	DataSize() int
}

// Transformer is implemented by sources whose vectors are an encoding of
// the original stimuli, such as principal components
type Transformer interface {
	// ToStim returns the original-space stimulus for an encoded vector
	ToStim(vec []float64) []float64

	// StimShape returns the shape of one original stimulus
	StimShape() []int
}

// ErrUnsupportedFormat is returned when a kind of data is requested without
// the auxiliary parameters it needs
var ErrUnsupportedFormat = errors.New("stimset: unsupported stimulus format")

// Kind is the kind of data a Source is built from
type Kind int32

//go:generate stringer -type=Kind

var KiT_Kind = kit.Enums.AddEnum(KindN, kit.NotBitFlag, nil)

func (ev Kind) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *Kind) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

const (
	// Matrix data are stimulus vectors, one per row
	Matrix Kind = iota

	// Image data are [NImages, Y, X] images, sampled as random patches
	Image

	// Spectro data are spectrogram segments, one per row, encoded by PCA
	Spectro

	// Waveform data are raw waveform segments, one per row, encoded by PCA
	Waveform

	KindN
)

// Options are the auxiliary parameters of the different kinds of source
type Options struct {
	StimShape []int  `desc:"shape of one original stimulus -- image patch size (default 16x16), required for Spectro"`
	Buffer    int    `def:"20" desc:"image patches are kept this many pixels away from the image border"`
	NPCs      int    `desc:"number of principal components kept -- required for Spectro and Waveform"`
	Seed      uint64 `desc:"seed for the order of stimuli and the positions of image patches"`
}

func (op *Options) Defaults() {
	op.Buffer = 20
}

// New returns the source for the given kind of data, checking that the
// options it needs are present
func New(kind Kind, data *etensor.Float64, opts *Options) (Source, error) {
	if opts == nil {
		opts = &Options{}
		opts.Defaults()
	}
	switch kind {
	case Matrix:
		return NewMatSet(data, opts.Seed)
	case Image:
		shp := opts.StimShape
		if len(shp) == 0 {
			shp = []int{16, 16}
		}
		return NewImageSet(data, shp, opts.Buffer, opts.Seed)
	case Spectro:
		if opts.NPCs <= 0 || len(opts.StimShape) == 0 {
			return nil, fmt.Errorf("%w: PC representations of spectrograms need NPCs and the StimShape of the original stimuli", ErrUnsupportedFormat)
		}
		return NewPCSet(data, opts.StimShape, opts.NPCs, opts.Seed)
	case Waveform:
		if opts.NPCs <= 0 {
			return nil, fmt.Errorf("%w: waveform data need NPCs", ErrUnsupportedFormat)
		}
		return NewWaveformSet(data, opts.StimShape, opts.NPCs, opts.Seed)
	}
	return nil, fmt.Errorf("%w: kind %v", ErrUnsupportedFormat, kind)
}

// rowsOf returns the number of rows of data and the size of each
func rowsOf(data *etensor.Float64) (int, int, error) {
	if data == nil || data.NumDims() < 2 {
		return 0, 0, fmt.Errorf("stimset: data must have at least 2 dims, one stimulus per row")
	}
	nr := data.Dim(0)
	if nr == 0 {
		return 0, 0, fmt.Errorf("stimset: no stimuli in data")
	}
	return nr, data.Len() / nr, nil
}
