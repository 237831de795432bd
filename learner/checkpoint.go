// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package learner

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/emer/dictlearn/stats"
	"gonum.org/v1/gonum/mat"
)

// Params are the hyperparameters stored in a checkpoint
type Params struct {
	LearnRate  float64
	Theta      float64
	MinThresh  float64
	InfRate    float64
	NIter      int
	Adapt      float64
	MaxIter    int
	Tolerance  float64
	SoftThresh bool
}

// Checkpoint is the saved state of a learner: enough to resume learning
// with identical statistics. Older checkpoints have no Stats and only
// the error history, and may have no Params.
type Checkpoint struct {
	NUnits    int
	DataSize  int
	Dict      []float64      `desc:"NUnits x DataSize dictionary in row-major order"`
	Params    *Params        `json:",omitempty" desc:"hyperparameters"`
	Stats     *stats.Running `json:",omitempty" desc:"full statistics bundle"`
	ErrorHist []float64      `json:",omitempty" desc:"error history, only in checkpoints without Stats"`
}

// snapshot returns a checkpoint that shares no memory with the learner
func (l *Learner) snapshot() *Checkpoint {
	nu, dim := l.Q.Dims()
	ck := &Checkpoint{NUnits: nu, DataSize: dim, Dict: make([]float64, 0, nu*dim)}
	for i := 0; i < nu; i++ {
		ck.Dict = append(ck.Dict, l.Q.RawRowView(i)...)
	}
	ck.Params = &Params{
		LearnRate:  l.LearnRate,
		Theta:      l.Theta,
		MinThresh:  l.LCA.MinThresh,
		InfRate:    l.LCA.InfRate,
		NIter:      l.LCA.NIter,
		Adapt:      l.LCA.Adapt,
		MaxIter:    l.LCA.MaxIter,
		Tolerance:  l.LCA.Tolerance,
		SoftThresh: l.LCA.SoftThresh,
	}
	ck.Stats = l.Stats.Clone()
	return ck
}

// Save writes a checkpoint of the learner to fname, or ParamFile if fname
// is empty, and makes that file the ParamFile. Files ending in .gz are compressed.
func (l *Learner) Save(fname string) error {
	if fname == "" {
		fname = l.ParamFile
	}
	if fname == "" {
		return &ConfigError{"ParamFile", "a filename is required to save"}
	}
	l.ParamFile = fname
	return l.writeCheckpoint(l.snapshot(), fname)
}

func (l *Learner) writeCheckpoint(ck *Checkpoint, fname string) error {
	l.saveMu.Lock()
	defer l.saveMu.Unlock()
	f, err := os.Create(fname)
	if err != nil {
		return &PersistenceError{"save", fname, err}
	}
	var w io.Writer = f
	var gz *gzip.Writer
	if filepath.Ext(fname) == ".gz" {
		gz = gzip.NewWriter(f)
		w = gz
	}
	err = json.NewEncoder(w).Encode(ck)
	if gz != nil {
		if cerr := gz.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &PersistenceError{"save", fname, err}
	}
	return nil
}

// ReadCheckpoint reads a checkpoint file written by Save
func ReadCheckpoint(fname string) (*Checkpoint, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, &PersistenceError{"load", fname, err}
	}
	defer f.Close()
	var r io.Reader = f
	if filepath.Ext(fname) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, &PersistenceError{"load", fname, err}
		}
		defer gz.Close()
		r = gz
	}
	ck := &Checkpoint{}
	if err := json.NewDecoder(r).Decode(ck); err != nil {
		return nil, &PersistenceError{"load", fname, err}
	}
	if ck.NUnits < 1 || ck.DataSize < 1 || len(ck.Dict) != ck.NUnits*ck.DataSize {
		return nil, &PersistenceError{"load", fname, fmt.Errorf("dictionary of %d values is not %d x %d", len(ck.Dict), ck.NUnits, ck.DataSize)}
	}
	if ck.Stats != nil && ck.Stats.NUnits() != ck.NUnits {
		return nil, &PersistenceError{"load", fname, fmt.Errorf("statistics for %d units, dictionary has %d", ck.Stats.NUnits(), ck.NUnits)}
	}
	return ck, nil
}

// Load restores the dictionary, hyperparameters and statistics from the
// checkpoint fname, or ParamFile if fname is empty, and makes that file
// the ParamFile. Checkpoints without statistics restore the error history
// and start the other statistics afresh, and checkpoints without
// hyperparameters keep the current ones. The learner is unchanged if an
// error is returned.
func (l *Learner) Load(fname string) error {
	if fname == "" {
		fname = l.ParamFile
	}
	if fname == "" {
		return &ConfigError{"ParamFile", "a filename is required to load"}
	}
	ck, err := ReadCheckpoint(fname)
	if err != nil {
		return err
	}
	if l.Src != nil && l.Src.DataSize() != ck.DataSize {
		return &PersistenceError{"load", fname, fmt.Errorf("dictionary elements have %d values, stimuli have %d", ck.DataSize, l.Src.DataSize())}
	}
	cf := l.Config
	cf.NUnits = ck.NUnits
	if ps := ck.Params; ps != nil {
		cf.LearnRate = ps.LearnRate
		cf.Theta = ps.Theta
		cf.LCA.MinThresh = ps.MinThresh
		cf.LCA.InfRate = ps.InfRate
		cf.LCA.NIter = ps.NIter
		cf.LCA.Adapt = ps.Adapt
		cf.LCA.MaxIter = ps.MaxIter
		cf.LCA.Tolerance = ps.Tolerance
		cf.LCA.SoftThresh = ps.SoftThresh
	}
	if err := cf.Validate(); err != nil {
		return &PersistenceError{"load", fname, err}
	}
	cf.ParamFile = fname
	l.Config = cf
	l.Q = mat.NewDense(ck.NUnits, ck.DataSize, ck.Dict)
	if ck.Stats != nil {
		l.Stats = ck.Stats
	} else {
		l.Stats = stats.New(ck.NUnits, l.MovingAvgRate)
		l.Stats.ErrorHist = ck.ErrorHist
	}
	return nil
}
