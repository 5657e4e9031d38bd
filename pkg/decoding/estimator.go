// Package decoding fits SpaceNet decoders: linear models over voxel
// features regularised by a mix of L1 and a spatial penalty (Graph-Net or
// TV-L1), with the penalty strength chosen by cross-validation.
package decoding

import (
	"log/slog"
	"math"
	"runtime"
	"sort"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"spacenet/pkg/solver"
	"spacenet/pkg/volume"
)

// MNI152BrainVolume is the volume, in mm^3, of the MNI152 template brain.
// The screening percentile is scaled by the ratio of the mask volume to it.
const MNI152BrainVolume = 1827243.0

// Config holds the estimator hyperparameters. It is validated once by New
// and never modified afterwards.
type Config struct {
	Penalty solver.Penalty
	Loss    solver.Loss

	// Classification selects label binarisation and stratified folds.
	Classification bool

	// Alpha, when positive, fixes the penalty and skips cross-validation.
	Alpha float64
	// Alphas is an explicit grid; nil derives NAlphas values per fold.
	Alphas  []float64
	NAlphas int
	Eps     float64

	L1Ratio             float64
	ScreeningPercentile float64

	MaxIter int
	Tol     float64

	// CV is the number of folds used when Folds is nil.
	CV    int
	Folds []Fold

	Debias      bool
	Standardize bool

	// NJobs bounds the number of concurrent path tasks; 0 means GOMAXPROCS.
	NJobs int

	Cache  *PathCache
	Logger *slog.Logger
}

// DefaultConfig returns the usual settings for a regressor or, with
// classification set, a logistic classifier.
func DefaultConfig(classification bool) Config {
	cfg := Config{
		Penalty:             solver.SmoothLasso,
		Loss:                solver.MSE,
		Classification:      classification,
		NAlphas:             10,
		Eps:                 1e-3,
		L1Ratio:             0.5,
		ScreeningPercentile: 20,
		MaxIter:             1000,
		Tol:                 1e-4,
		CV:                  8,
		Standardize:         true,
		NJobs:               1,
	}
	if classification {
		cfg.Loss = solver.Logistic
	}
	return cfg
}

// Validate checks every hyperparameter and returns the first violation.
func (c Config) Validate() error {
	switch c.Penalty {
	case solver.SmoothLasso, solver.TVL1:
	default:
		return errors.Wrapf(ErrInvalidPenalty, "got %v", c.Penalty)
	}
	switch c.Loss {
	case solver.MSE, solver.Logistic:
	default:
		return errors.Wrapf(ErrInvalidLoss, "got %v", c.Loss)
	}
	if c.Loss == solver.Logistic && !c.Classification {
		return ErrLogisticRegression
	}
	if !(c.L1Ratio >= 0 && c.L1Ratio <= 1) {
		return errors.Wrapf(ErrL1Ratio, "got %g", c.L1Ratio)
	}
	if !(c.ScreeningPercentile >= 0 && c.ScreeningPercentile <= 100) {
		return errors.Wrapf(ErrScreeningPercentile, "got %g", c.ScreeningPercentile)
	}
	if c.Alpha < 0 || math.IsNaN(c.Alpha) {
		return errors.Wrapf(ErrInvalidHyperparam, "alpha %g", c.Alpha)
	}
	for _, a := range c.Alphas {
		if !(a > 0) || math.IsInf(a, 0) {
			return errors.Wrapf(ErrInvalidHyperparam, "alphas entry %g", a)
		}
	}
	if c.Alpha == 0 && len(c.Alphas) == 0 {
		if c.NAlphas < 1 {
			return errors.Wrapf(ErrInvalidHyperparam, "n_alphas %d", c.NAlphas)
		}
		if c.NAlphas > 1 && !(c.Eps > 0 && c.Eps < 1) {
			return errors.Wrapf(ErrInvalidHyperparam, "eps %g", c.Eps)
		}
	}
	if c.MaxIter < 1 {
		return errors.Wrapf(ErrInvalidHyperparam, "max_iter %d", c.MaxIter)
	}
	if !(c.Tol > 0) {
		return errors.Wrapf(ErrInvalidHyperparam, "tol %g", c.Tol)
	}
	if c.Folds == nil && c.CV < 2 {
		return errors.Wrapf(ErrFolds, "cv %d", c.CV)
	}
	if c.NJobs < 0 {
		return errors.Wrapf(ErrInvalidHyperparam, "n_jobs %d", c.NJobs)
	}
	return nil
}

// Estimator fits Models for one validated Config.
type Estimator struct {
	cfg    Config
	logger *slog.Logger
}

// New validates cfg and returns an Estimator. The slices in cfg are copied.
func New(cfg Config) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Alphas = append([]float64(nil), cfg.Alphas...)
	if cfg.Folds != nil {
		folds := make([]Fold, len(cfg.Folds))
		for i, f := range cfg.Folds {
			folds[i] = Fold{Train: append([]int(nil), f.Train...), Test: append([]int(nil), f.Test...)}
		}
		cfg.Folds = folds
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.L1Ratio == 0 || cfg.L1Ratio == 1 {
		logger.Warn("l1_ratio should be strictly between 0 and 1", "l1_ratio", cfg.L1Ratio)
	}
	return &Estimator{cfg: cfg, logger: logger}, nil
}

// Config returns a copy of the estimator configuration.
func (e *Estimator) Config() Config { return e.cfg }

// Fit learns a model from features X (samples x voxels), responses y and
// the mask giving the voxel layout of the columns of X. A nil mask treats
// the features as a one-dimensional chain. X and y are not modified.
func (e *Estimator) Fit(X mat.Matrix, y []float64, mask *volume.Mask) (*Model, error) {
	cfg := e.cfg
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return nil, errors.Wrapf(ErrNoSamples, "design is %dx%d", n, p)
	}
	if len(y) != n {
		return nil, errors.Wrapf(ErrDimensionMismatch, "%d samples, %d targets", n, len(y))
	}
	if mask == nil {
		var err error
		if mask, err = volume.FullMask([]int{p}); err != nil {
			return nil, err
		}
	}
	if mask.Count() != p {
		return nil, errors.Wrapf(ErrDimensionMismatch, "mask has %d active voxels, X has %d features", mask.Count(), p)
	}

	m := &Model{
		Mask:           mask.Clone(),
		classification: cfg.Classification,
		standardize:    cfg.Standardize,
	}

	// responses: one column per sub-problem
	var targets [][]float64
	if cfg.Classification {
		classes, binarized, err := binarize(y)
		if err != nil {
			return nil, err
		}
		m.Classes = classes
		targets = binarized
	} else {
		targets = [][]float64{append([]float64(nil), y...)}
	}

	design := mat.DenseCopyOf(X)
	m.xMean = make([]float64, p)
	m.xStd = make([]float64, p)
	for j := range m.xStd {
		m.xStd[j] = 1
	}
	yMeans := make([]float64, len(targets))
	if cfg.Standardize {
		standardizeColumns(design, m.xMean, m.xStd)
		if !cfg.Classification {
			for c, t := range targets {
				yMeans[c] = stat.Mean(t, nil)
				for i := range t {
					t[i] -= yMeans[c]
				}
			}
		}
	}

	alphas := cfg.Alphas
	if cfg.Alpha > 0 {
		alphas = []float64{cfg.Alpha}
	}
	folds, err := e.folds(alphas, y, n)
	if err != nil {
		return nil, err
	}
	m.Folds = folds

	percentile := e.screeningPercentile(mask)

	var tasks []PathTask
	for c := range targets {
		for _, fold := range folds {
			tasks = append(tasks, PathTask{
				Penalty:             cfg.Penalty,
				Loss:                cfg.Loss,
				X:                   design,
				Y:                   targets[c],
				Mask:                mask.Clone(),
				Alphas:              alphas,
				NAlphas:             cfg.NAlphas,
				Eps:                 cfg.Eps,
				L1Ratio:             cfg.L1Ratio,
				Fold:                fold,
				Class:               c,
				Debias:              cfg.Debias,
				YMean:               yMeans[c],
				ScreeningPercentile: percentile,
				Tol:                 cfg.Tol,
				MaxIter:             cfg.MaxIter,
				Logger:              e.logger,
			})
		}
	}

	nJobs := cfg.NJobs
	if nJobs == 0 {
		nJobs = runtime.GOMAXPROCS(0)
	}
	e.logger.Info("fitting",
		"penalty", cfg.Penalty.String(),
		"loss", cfg.Loss.String(),
		"problems", len(targets),
		"folds", len(folds),
		"features", p,
		"screening_percentile", percentile)
	results, err := runPaths(tasks, nJobs, cfg.Cache, e.logger)
	if err != nil {
		return nil, err
	}

	// bagging: average the refitted maps of every fold
	nProblems := len(targets)
	w := make([][]float64, nProblems)
	m.CVScores = make([][][]float64, nProblems)
	for c := range w {
		w[c] = make([]float64, p+1)
	}
	for _, r := range results {
		for j, v := range r.W {
			w[r.Class][j] += v
		}
		m.CVScores[r.Class] = append(m.CVScores[r.Class], r.TestScores)
		m.BestAlphas = append(m.BestAlphas, r.BestAlpha)
	}
	m.Coef = make([][]float64, nProblems)
	m.Intercept = make([]float64, nProblems)
	for c := range w {
		for j := range w[c] {
			w[c][j] /= float64(len(folds))
		}
		m.Coef[c] = w[c][:p]
		m.Intercept[c] = w[c][p]
	}
	m.Alpha = mean(m.BestAlphas)
	return m, nil
}

// FitVolumes masks images through masker, fits and keeps the masker for
// CoefVolumes and PredictVolumes.
func (e *Estimator) FitVolumes(masker Masker, images []volume.Volume, y []float64) (*Model, error) {
	X, mask, err := masker.FitTransform(images)
	if err != nil {
		return nil, errors.Wrap(err, "masking")
	}
	m, err := e.Fit(X, y, mask)
	if err != nil {
		return nil, err
	}
	m.masker = masker
	return m, nil
}

// folds returns the cross-validation splits: a single train-only fold when
// there is exactly one alpha, the configured folds, or generated ones.
func (e *Estimator) folds(alphas, labels []float64, n int) ([]Fold, error) {
	if len(alphas) == 1 {
		return SingleFold(n), nil
	}
	if e.cfg.Folds != nil {
		if err := ValidateFolds(e.cfg.Folds, n); err != nil {
			return nil, err
		}
		return e.cfg.Folds, nil
	}
	if e.cfg.Classification {
		return StratifiedKFold(labels, e.cfg.CV)
	}
	return KFold(n, e.cfg.CV)
}

// screeningPercentile scales the configured percentile by the physical
// volume of the mask relative to the reference brain. Masks without voxel
// sizes are taken as is.
func (e *Estimator) screeningPercentile(mask *volume.Mask) float64 {
	pct := e.cfg.ScreeningPercentile
	if len(mask.VoxelSize) != mask.Ndim() {
		return pct
	}
	vol := mask.PhysicalVolume()
	if vol > MNI152BrainVolume {
		e.logger.Warn("mask is larger than the standard brain", "mask_mm3", vol, "mni152_mm3", MNI152BrainVolume)
	}
	corrected := pct * vol / MNI152BrainVolume
	e.logger.Info("screening percentile corrected for mask volume",
		"mask_mm3", vol, "original", pct, "corrected", corrected)
	return corrected
}

// binarize encodes labels as +-1 targets. Two classes give one problem
// (positive is the larger label); more give one-vs-rest problems.
func binarize(y []float64) ([]float64, [][]float64, error) {
	set := map[float64]struct{}{}
	for _, v := range y {
		set[v] = struct{}{}
	}
	classes := make([]float64, 0, len(set))
	for v := range set {
		classes = append(classes, v)
	}
	sort.Float64s(classes)
	if len(classes) < 2 {
		return nil, nil, errors.Wrapf(ErrTooFewClasses, "got %d", len(classes))
	}
	positives := classes
	if len(classes) == 2 {
		positives = classes[1:]
	}
	out := make([][]float64, len(positives))
	for c, pos := range positives {
		t := make([]float64, len(y))
		for i, v := range y {
			if v == pos {
				t[i] = 1
			} else {
				t[i] = -1
			}
		}
		out[c] = t
	}
	return classes, out, nil
}

// standardizeColumns centres every column of X in place and scales it to
// unit population variance, recording the statistics. Constant columns
// keep a unit scale.
func standardizeColumns(X *mat.Dense, means, stds []float64) {
	n, p := X.Dims()
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, X)
		mu, variance := stat.PopMeanVariance(col, nil)
		sd := math.Sqrt(variance)
		if sd == 0 {
			sd = 1
		}
		means[j], stds[j] = mu, sd
		for i := range col {
			col[i] = (col[i] - mu) / sd
		}
		X.SetCol(j, col)
	}
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}
