// Copyright (c) 2022, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package learner

import (
	"bufio"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/emer/dictlearn/dict"
	"github.com/emer/dictlearn/lca"
	"github.com/emer/dictlearn/stimset"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const difTol = 1.0e-9

// synthSource returns stimuli that are each the sum of two elements of a
// random generating dictionary
func synthSource(dim, nstim int, seed uint64) *stimset.MatSet {
	gen := dict.Rand(12, dim, rand.NewSource(seed))
	rnd := rand.New(rand.NewSource(seed + 1))
	x := mat.NewDense(dim, nstim, nil)
	for j := 0; j < nstim; j++ {
		for k := 0; k < 2; k++ {
			u := rnd.Intn(12)
			a := 1 + rnd.Float64()
			for i := 0; i < dim; i++ {
				x.Set(i, j, x.At(i, j)+a*gen.At(u, i))
			}
		}
	}
	return stimset.NewMatSetDense(x, seed)
}

func testConfig() *Config {
	cf := &Config{}
	cf.Defaults()
	cf.NUnits = 10
	cf.BatchSize = 20
	cf.Theta = 0.01
	cf.MovingAvgRate = 0.1
	cf.LCA.InfRate = 0.05
	cf.LCA.NIter = 40
	cf.LCA.MinThresh = 0.05
	cf.LCA.MaxIter = 2
	cf.Seed = 1
	return cf
}

func newTestLearner(t *testing.T, cf *Config) *Learner {
	t.Helper()
	l, err := New(cf, synthSource(6, 200, 7))
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func checkUnitRows(t *testing.T, q *mat.Dense) {
	t.Helper()
	nu, _ := q.Dims()
	for i := 0; i < nu; i++ {
		if n := floats.Norm(q.RawRowView(i), 2); math.Abs(n-1) > difTol {
			t.Errorf("element %d has norm %v", i, n)
		}
	}
}

func TestNewConfig(t *testing.T) {
	cf := testConfig()
	l := newTestLearner(t, cf)
	if l.LearnRate != 1.0/20 {
		t.Errorf("default learning rate %v, want 1/BatchSize", l.LearnRate)
	}
	nu, dim := l.Q.Dims()
	if nu != 10 || dim != 6 {
		t.Errorf("dictionary is %dx%d", nu, dim)
	}
	checkUnitRows(t, l.Q)

	var ce *ConfigError
	bad := testConfig()
	bad.NUnits = 0
	if _, err := New(bad, synthSource(6, 10, 1)); !errors.As(err, &ce) || ce.Field != "NUnits" {
		t.Errorf("got %v, want NUnits ConfigError", err)
	}
	bad = testConfig()
	bad.LCA.MaxIter = 0
	if _, err := New(bad, synthSource(6, 10, 1)); !errors.As(err, &ce) || ce.Field != "LCA" {
		t.Errorf("got %v, want LCA ConfigError", err)
	}
	if _, err := New(testConfig(), nil); !errors.As(err, &ce) {
		t.Errorf("got %v, want ConfigError for missing source", err)
	}
}

func TestRun(t *testing.T) {
	l := newTestLearner(t, testConfig())
	if err := l.Run(5); err != nil {
		t.Fatal(err)
	}
	checkUnitRows(t, l.Q)
	if l.Stats.NTrials() != 5 {
		t.Errorf("recorded %d trials, want 5", l.Stats.NTrials())
	}
	if l.TrialLog.Rows != 5 {
		t.Errorf("trial log has %d rows, want 5", l.TrialLog.Rows)
	}
	if l.TrialLog.CellFloat("Error", 4) != l.Stats.ErrorHist[4] {
		t.Errorf("trial log error does not match history")
	}
	for _, v := range l.Stats.L0 {
		if v < 0 {
			t.Errorf("negative usage %v", v)
		}
	}
	if err := l.Run(0); err != nil {
		t.Errorf("zero trials: %v", err)
	}
}

func TestRunBatched(t *testing.T) {
	cf := testConfig()
	cf.Backend = lca.Batched
	cf.Workers = 3
	l := newTestLearner(t, cf)
	if l.Engine.Caps().Retries {
		t.Errorf("batched engine reports retries")
	}
	if err := l.Run(3); err != nil {
		t.Fatal(err)
	}
	checkUnitRows(t, l.Q)
}

func TestAdjustRates(t *testing.T) {
	l := newTestLearner(t, testConfig())
	lr, th := l.LearnRate, l.Theta
	l.AdjustRates(0.5)
	if l.LearnRate != lr/2 || l.Theta != th/2 {
		t.Errorf("rates %v %v, want %v %v", l.LearnRate, l.Theta, lr/2, th/2)
	}

	cf := testConfig()
	cf.RateDecay = 0.5
	l = newTestLearner(t, cf)
	lr, th = l.LearnRate, l.Theta
	if err := l.Run(3); err != nil {
		t.Fatal(err)
	}
	if l.LearnRate != lr/8 || l.Theta != th/8 {
		t.Errorf("after 3 decayed trials rates %v %v, want %v %v", l.LearnRate, l.Theta, lr/8, th/8)
	}
}

func TestDivergedStopsRun(t *testing.T) {
	cf := testConfig()
	cf.LCA.InfRate = 50
	cf.LCA.NIter = 500
	l := newTestLearner(t, cf)
	err := l.Run(4)
	var de *lca.DivergedError
	if !errors.As(err, &de) {
		t.Fatalf("got %v, want DivergedError", err)
	}
	if l.Stats.NTrials() != 0 {
		t.Errorf("statistics recorded for a diverged trial")
	}
}

func TestSaveLoad(t *testing.T) {
	for _, fn := range []string{"ck.json", "ck.json.gz"} {
		l := newTestLearner(t, testConfig())
		if err := l.Run(4); err != nil {
			t.Fatal(err)
		}
		l.AdjustRates(0.7)
		path := filepath.Join(t.TempDir(), fn)
		if err := l.Save(path); err != nil {
			t.Fatal(err)
		}
		if l.ParamFile != path {
			t.Errorf("ParamFile %q after save, want %q", l.ParamFile, path)
		}

		cf := testConfig()
		cf.Seed = 99
		ld := newTestLearner(t, cf)
		if err := ld.Load(path); err != nil {
			t.Fatal(err)
		}
		if !mat.Equal(ld.Q, l.Q) {
			t.Errorf("%s: dictionary differs after load", fn)
		}
		if ld.LearnRate != l.LearnRate || ld.Theta != l.Theta || ld.LCA != l.LCA {
			t.Errorf("%s: parameters differ after load", fn)
		}
		if !floats.Equal(ld.Stats.ErrorHist, l.Stats.ErrorHist) || !floats.Equal(ld.Stats.L1Hist, l.Stats.L1Hist) ||
			!floats.Equal(ld.Stats.L0, l.Stats.L0) || !floats.Equal(ld.Stats.MeanActs, l.Stats.MeanActs) {
			t.Errorf("%s: statistics differ after load", fn)
		}
		if !mat.Equal(ld.Stats.Corr, l.Stats.Corr) {
			t.Errorf("%s: correlation matrix differs after load", fn)
		}
		// resumes from the loaded state
		if err := ld.Run(1); err != nil {
			t.Fatal(err)
		}
		if ld.Stats.NTrials() != 5 {
			t.Errorf("%s: resumed run has %d trials", fn, ld.Stats.NTrials())
		}
	}
}

func TestSaveNoFile(t *testing.T) {
	l := newTestLearner(t, testConfig())
	var ce *ConfigError
	if err := l.Save(""); !errors.As(err, &ce) {
		t.Errorf("got %v, want ConfigError", err)
	}
}

func TestLoadErrors(t *testing.T) {
	l := newTestLearner(t, testConfig())
	var pe *PersistenceError
	err := l.Load(filepath.Join(t.TempDir(), "none.json"))
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want PersistenceError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("PersistenceError does not unwrap to the cause: %v", pe.Err)
	}

	// dictionary for stimuli of another size
	other, err := New(testConfig(), synthSource(4, 20, 2))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "other.json")
	if err := other.Save(path); err != nil {
		t.Fatal(err)
	}
	if err := l.Load(path); !errors.As(err, &pe) {
		t.Errorf("got %v, want PersistenceError for mismatched data size", err)
	}
}

func writeJSON(t *testing.T, rec interface{}) string {
	t.Helper()
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "legacy.json")
	if err := os.WriteFile(path, b, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadLegacy(t *testing.T) {
	// dictionary and error history only
	q := dict.Rand(3, 6, rand.NewSource(5))
	path := writeJSON(t, map[string]interface{}{
		"NUnits":    3,
		"DataSize":  6,
		"Dict":      q.RawMatrix().Data,
		"ErrorHist": []float64{0.5, 0.4, 0.3},
	})
	l := newTestLearner(t, testConfig())
	lr, th, lp := l.LearnRate, l.Theta, l.LCA
	if err := l.Load(path); err != nil {
		t.Fatal(err)
	}
	if l.NUnits != 3 || !mat.Equal(l.Q, q) {
		t.Errorf("legacy dictionary not restored")
	}
	if l.LearnRate != lr || l.Theta != th || l.LCA != lp {
		t.Errorf("legacy load changed parameters: lr %v theta %v lca %+v", l.LearnRate, l.Theta, l.LCA)
	}
	if err := l.Validate(); err != nil {
		t.Errorf("invalid config after legacy load: %v", err)
	}
	if !floats.Equal(l.Stats.ErrorHist, []float64{0.5, 0.4, 0.3}) || l.Stats.NUnits() != 3 {
		t.Errorf("legacy statistics: %v, %d units", l.Stats.ErrorHist, l.Stats.NUnits())
	}
	if err := l.Run(2); err != nil {
		t.Fatal(err)
	}
	if l.Stats.NTrials() != 5 || len(l.Stats.L0Hist) != 2 {
		t.Fatalf("resumed legacy run: %d errors, %d L0 entries", l.Stats.NTrials(), len(l.Stats.L0Hist))
	}
	for i, v := range l.Stats.L0Hist {
		if v <= 0 {
			t.Errorf("trial %d of resumed run has no active units", i)
		}
	}
	ck, err := ReadCheckpoint(path)
	if err != nil {
		t.Fatal(err)
	}
	if ck.Params == nil || ck.Params.InfRate != lp.InfRate || ck.Params.NIter != lp.NIter {
		t.Errorf("resumed run saved parameters %+v", ck.Params)
	}

	// parameters present in a legacy record are restored
	path = writeJSON(t, map[string]interface{}{
		"NUnits":    3,
		"DataSize":  6,
		"Dict":      q.RawMatrix().Data,
		"Params":    Params{LearnRate: 0.02, Theta: 0.01, MinThresh: 0.3, InfRate: 0.01, NIter: 50, Adapt: 0.9, MaxIter: 3, Tolerance: 0.02},
		"ErrorHist": []float64{0.5},
	})
	l = newTestLearner(t, testConfig())
	if err := l.Load(path); err != nil {
		t.Fatal(err)
	}
	if l.LCA.NIter != 50 || l.LearnRate != 0.02 || l.LCA.MaxIter != 3 {
		t.Errorf("legacy parameters not restored: lr %v lca %+v", l.LearnRate, l.LCA)
	}
}

func TestLoadInvalidParams(t *testing.T) {
	q := dict.Rand(3, 6, rand.NewSource(6))
	path := writeJSON(t, map[string]interface{}{
		"NUnits":   3,
		"DataSize": 6,
		"Dict":     q.RawMatrix().Data,
		"Params":   Params{LearnRate: 0.02, Theta: 0.01},
	})
	l := newTestLearner(t, testConfig())
	oldQ, oldCfg := l.Q, l.Config
	var pe *PersistenceError
	if err := l.Load(path); !errors.As(err, &pe) {
		t.Fatalf("got %v, want PersistenceError for zero inference parameters", err)
	}
	if l.Q != oldQ || l.Config != oldCfg {
		t.Errorf("failed load changed the learner")
	}
}

func TestCheckpointing(t *testing.T) {
	for _, async := range []bool{false, true} {
		cf := testConfig()
		cf.ParamFile = filepath.Join(t.TempDir(), "run.json.gz")
		cf.SaveEvery = 2
		cf.AsyncSave = async
		l := newTestLearner(t, cf)
		if err := l.Run(3); err != nil {
			t.Fatal(err)
		}
		ck, err := ReadCheckpoint(cf.ParamFile)
		if err != nil {
			t.Fatal(err)
		}
		if ck.Stats.NTrials() != 3 {
			t.Errorf("async %v: last checkpoint has %d trials, want 3", async, ck.Stats.NTrials())
		}
		if !floats.Equal(ck.Dict, l.Q.RawMatrix().Data) {
			t.Errorf("async %v: checkpoint dictionary differs from learner", async)
		}
	}
}

func TestCheckpointFailureContinues(t *testing.T) {
	for _, async := range []bool{false, true} {
		cf := testConfig()
		cf.ParamFile = filepath.Join(t.TempDir(), "missing", "run.json")
		cf.SaveEvery = 1
		cf.AsyncSave = async
		l := newTestLearner(t, cf)
		if err := l.Run(3); err != nil {
			t.Fatalf("async %v: checkpoint failure stopped the run: %v", async, err)
		}
		if l.Stats.NTrials() != 3 {
			t.Errorf("async %v: %d trials ran, want 3", async, l.Stats.NTrials())
		}
	}
}

func TestSort(t *testing.T) {
	l := newTestLearner(t, testConfig())
	if err := l.Run(5); err != nil {
		t.Fatal(err)
	}
	oldQ := mat.DenseCopyOf(l.Q)
	oldL1 := append([]float64(nil), l.Stats.L1...)
	us := l.FastSort(true)
	if !sort.Float64sAreSorted(us) || !floats.Equal(us, l.Stats.L1) {
		t.Errorf("fast sort usages %v", us)
	}
	// each element moved together with its statistics
	nu, _ := l.Q.Dims()
	for i := 0; i < nu; i++ {
		found := false
		for j := 0; j < nu; j++ {
			if floats.Equal(l.Q.RawRowView(i), oldQ.RawRowView(j)) && l.Stats.L1[i] == oldL1[j] {
				found = true
			}
		}
		if !found {
			t.Errorf("element %d lost its statistics", i)
		}
	}

	us, err := l.SortDict(0, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(us) != nu || !sort.Float64sAreSorted(us) {
		t.Errorf("sort dict usages %v", us)
	}
	for _, u := range us {
		if u < 0 || u > 1 {
			t.Errorf("usage %v outside 0..1", u)
		}
	}
	if _, err := l.SortDict(30, false); err != nil {
		t.Error(err)
	}
}

func TestTestInference(t *testing.T) {
	l := newTestLearner(t, testConfig())
	res, snr, err := l.TestInference(10)
	if err != nil {
		t.Fatal(err)
	}
	if res.Diag == nil || res.Diag.NIters() < 10 {
		t.Errorf("no diagnostics from test inference")
	}
	if math.IsNaN(snr) || snr <= 0 {
		t.Errorf("snr %v", snr)
	}
	if l.LCA.NIter != 40 {
		t.Errorf("test inference changed NIter to %d", l.LCA.NIter)
	}
}

func TestModCentroids(t *testing.T) {
	l := newTestLearner(t, testConfig())
	cents, err := l.ModCentroids([]int{2, 3}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(cents) != 10 {
		t.Fatalf("got %d centroids", len(cents))
	}
	for _, c := range cents {
		if c[0] < 0 || c[0] > 1 || c[1] < 0 || c[1] > 2 {
			t.Errorf("centroid %v outside the spectrum", c)
		}
	}
	if _, err := l.ModCentroids([]int{2, 3}, true); err != nil {
		t.Error(err)
	}
	var ce *ConfigError
	if _, err := l.ModCentroids(nil, false); !errors.As(err, &ce) {
		t.Errorf("got %v, want ConfigError without a shape", err)
	}
}

func TestOrientedExport(t *testing.T) {
	l := newTestLearner(t, testConfig())
	l.Stats.MeanActs[0] = -1
	oq := l.OrientedDict()
	if oq.At(0, 0) != -l.Q.At(0, 0) || oq.At(1, 0) != l.Q.At(1, 0) {
		t.Errorf("oriented dictionary not flipped where mean activity is negative")
	}
	fn := filepath.Join(t.TempDir(), "dict.tsv")
	if err := l.ExportDict(fn); err != nil {
		t.Fatal(err)
	}
}

func TestTrialLogFile(t *testing.T) {
	l := newTestLearner(t, testConfig())
	fn := filepath.Join(t.TempDir(), "trials.tsv")
	if err := l.OpenLog(fn); err != nil {
		t.Fatal(err)
	}
	if err := l.Run(3); err != nil {
		t.Fatal(err)
	}
	if err := l.CloseLog(); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(fn)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	if n != 4 {
		t.Errorf("log file has %d lines, want header + 3", n)
	}
}

func TestConfigJSON(t *testing.T) {
	cf := testConfig()
	cf.Backend = lca.Batched
	cf.LCA.MaxIter = lca.Unbounded
	fn := filepath.Join(t.TempDir(), "cfg.json")
	if err := cf.SaveJSON(fn); err != nil {
		t.Fatal(err)
	}
	ld := &Config{}
	ld.Defaults()
	if err := ld.OpenJSON(fn); err != nil {
		t.Fatal(err)
	}
	if *ld != *cf {
		t.Errorf("config differs after JSON round trip: %+v", ld)
	}
}
