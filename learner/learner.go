// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package learner learns a sparse, over-complete dictionary for a stream of
stimuli. Each trial draws a batch from a stimset.Source, infers sparse
coefficients with an lca.Engine, takes one gradient step on the
dictionary and records running statistics. Progress is checkpointed to
a JSON file that can be loaded to resume learning.
*/
package learner

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/emer/dictlearn/dft"
	"github.com/emer/dictlearn/dict"
	"github.com/emer/dictlearn/lca"
	"github.com/emer/dictlearn/stats"
	"github.com/emer/dictlearn/stimset"
	"github.com/emer/emergent/env"
	"github.com/emer/etable/etable"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Learner is a dictionary learner with LCA inference
type Learner struct {
	Config
	Q        *mat.Dense     `desc:"N x D dictionary, one unit-norm element per row"`
	Stats    *stats.Running `desc:"running statistics, saved and restored with the dictionary"`
	Src      stimset.Source `view:"-" desc:"supply of stimuli"`
	Engine   lca.Engine     `view:"-" desc:"sparse inference engine"`
	Trial    env.Ctr        `inactive:"+" desc:"trial counter of the current run"`
	TrialLog etable.Table   `view:"no-inline" desc:"one row per trial of the current run"`

	logFile *os.File
	logHdrs bool
	saves   sync.WaitGroup
	saveMu  sync.Mutex
}

// New returns a learner with a random dictionary for stimuli from src
func New(cfg *Config, src stimset.Source) (*Learner, error) {
	l := &Learner{Config: *cfg, Src: src}
	l.Update()
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, &ConfigError{"Src", "a stimulus source is required"}
	}
	if err := l.InitEngine(); err != nil {
		return nil, err
	}
	l.Q = dict.Rand(l.NUnits, src.DataSize(), rand.NewSource(l.Seed))
	l.Stats = stats.New(l.NUnits, l.MovingAvgRate)
	l.ConfigTrialLog(&l.TrialLog)
	return l, nil
}

// InitEngine creates the inference engine for the configured Backend
func (l *Learner) InitEngine() error {
	en, err := lca.NewEngine(l.Backend, l.Workers)
	if err != nil {
		return &ConfigError{"Backend", err.Error()}
	}
	l.Engine = en
	return nil
}

// Infer returns the sparse coefficients of stimuli x (D x B) over the
// current dictionary
func (l *Learner) Infer(x mat.Matrix, diag bool) (*lca.Result, error) {
	return l.Engine.Infer(l.Q, x, &l.LCA, diag)
}

// Learn takes one gradient step on the dictionary for stimuli x and
// coefficients s, returning the mean-squared reconstruction error.
// The dictionary is unchanged if an error is returned.
func (l *Learner) Learn(x, s mat.Matrix) (float64, error) {
	nq, errv, err := dict.Update(l.Q, x, s, l.LearnRate, l.Theta, l.Normalize)
	if err != nil {
		return 0, err
	}
	l.Q = nq
	return errv, nil
}

// AdjustRates multiplies the learning rate and theta by factor
func (l *Learner) AdjustRates(factor float64) {
	l.LearnRate *= factor
	l.Theta *= factor
}

// SNR returns the signal to noise ratio of reconstructing x from coefficients s
func (l *Learner) SNR(x, s mat.Matrix) (float64, error) {
	return dict.SNR(l.Q, x, s)
}

// TestInference runs inference with diagnostics on a fresh batch, using
// niter steps per block instead of LCA.NIter if niter > 0. It logs and
// returns the SNR of the result.
func (l *Learner) TestInference(niter int) (*lca.Result, float64, error) {
	pars := l.LCA
	if niter > 0 {
		pars.NIter = niter
	}
	x := l.Src.RandBatch(l.BatchSize)
	res, err := l.Engine.Infer(l.Q, x, &pars, true)
	if err != nil {
		return nil, 0, err
	}
	snr, err := l.SNR(x, res.S)
	if err != nil {
		return nil, 0, err
	}
	log.Printf("Final SNR: %v\n", snr)
	return res, snr, nil
}

// SortDict orders the dictionary elements by how often they are used,
// least used first. Usage is the fraction of stimuli for which an element
// is active, measured on all the data of the source if allStims, and
// otherwise on a batch of batch stimuli (10 x BatchSize if batch <= 0).
// Returns the sorted usages.
func (l *Learner) SortDict(batch int, allStims bool) ([]float64, error) {
	var x *mat.Dense
	if allStims {
		x = l.Src.AllData()
	} else {
		if batch <= 0 {
			batch = 10 * l.BatchSize
		}
		x = l.Src.RandBatch(batch)
	}
	res, err := l.Infer(x, false)
	if err != nil {
		return nil, err
	}
	nu, ns := res.S.Dims()
	usage := make([]float64, nu)
	for i := 0; i < nu; i++ {
		for _, v := range res.S.RawRowView(i) {
			if v != 0 {
				usage[i]++
			}
		}
		usage[i] /= float64(ns)
	}
	return l.sortBy(usage), nil
}

// FastSort orders the dictionary elements by their moving-average L0
// usage, or L1 usage if l1. Returns the sorted usages.
func (l *Learner) FastSort(l1 bool) []float64 {
	usage := l.Stats.L0
	if l1 {
		usage = l.Stats.L1
	}
	return l.sortBy(append([]float64(nil), usage...))
}

// sortBy sorts usage in place and permutes the dictionary and statistics to match
func (l *Learner) sortBy(usage []float64) []float64 {
	perm := make([]int, len(usage))
	floats.Argsort(usage, perm)
	l.Q = dict.Permute(l.Q, perm)
	l.Stats.Sort(perm)
	return usage
}

// OrientedDict returns the dictionary with each element flipped if the
// mean activity of its unit is negative
func (l *Learner) OrientedDict() *mat.Dense {
	return dict.Oriented(l.Q, l.Stats.MeanActs)
}

// ModCentroids returns, for each dictionary element, the (y, x) centre of
// mass of its modulation power spectrum, or the peaks of its marginals if
// usePeaks. Elements are first mapped back to the original stimulus space
// if the source encodes stimuli, and shape defaults to the source's
// stimulus shape.
func (l *Learner) ModCentroids(shape []int, usePeaks bool) ([][2]float64, error) {
	tr, encoded := l.Src.(stimset.Transformer)
	if len(shape) == 0 && encoded {
		shape = tr.StimShape()
	}
	if len(shape) != 2 {
		return nil, &ConfigError{"StimShape", fmt.Sprintf("modulation spectra need a 2D stimulus shape, got %v", shape)}
	}
	nu, _ := l.Q.Dims()
	cents := make([][2]float64, nu)
	for i := 0; i < nu; i++ {
		elem := l.Q.RawRowView(i)
		if encoded {
			elem = tr.ToStim(elem)
		}
		if len(elem) != shape[0]*shape[1] {
			return nil, &ConfigError{"StimShape", fmt.Sprintf("shape %v does not hold elements of %d values", shape, len(elem))}
		}
		ms := dft.ModSpec(elem, shape[0], shape[1])
		if usePeaks {
			py, px := dft.MarginalPeaks(ms)
			cents[i] = [2]float64{float64(py), float64(px)}
		} else {
			cy, cx := dft.CenterOfMass(ms)
			cents[i] = [2]float64{cy, cx}
		}
	}
	return cents, nil
}

// ExportDict writes the dictionary to a tab-separated file
func (l *Learner) ExportDict(fname string) error {
	return dict.ExportTSV(l.Q, fname)
}
