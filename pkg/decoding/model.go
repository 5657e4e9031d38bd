package decoding

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"spacenet/pkg/volume"
)

// Model is a fitted decoder. Coefficients live in the standardised feature
// space recorded at fit time; DecisionFunction applies the same
// standardisation to new samples.
type Model struct {
	// Coef holds one coefficient map per sub-problem: a single one for
	// regression and binary classification, one per class otherwise.
	Coef      [][]float64
	Intercept []float64

	// Classes are the sorted labels seen at fit time; nil for regression.
	Classes []float64

	// CVScores[c][f] lists the held-out scores of the alphas scanned on
	// fold f of sub-problem c.
	CVScores [][][]float64

	// BestAlphas is the selected alpha of every (sub-problem, fold) task,
	// Alpha their mean.
	BestAlphas []float64
	Alpha      float64

	Mask  *volume.Mask
	Folds []Fold

	xMean, xStd    []float64
	standardize    bool
	classification bool
	masker         Masker
}

// NFeatures is the number of input features the model expects.
func (m *Model) NFeatures() int {
	if m == nil || len(m.Coef) == 0 {
		return 0
	}
	return len(m.Coef[0])
}

// DecisionFunction returns, for every row of X, the affine score of every
// sub-problem (n_samples x len(Coef)).
func (m *Model) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if m == nil || len(m.Coef) == 0 {
		return nil, ErrNotFitted
	}
	n, p := X.Dims()
	if p != m.NFeatures() {
		return nil, errors.Wrapf(ErrDimensionMismatch, "X has %d features, model expects %d", p, m.NFeatures())
	}
	out := mat.NewDense(n, len(m.Coef), nil)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		if m.standardize {
			for j := range row {
				row[j] = (row[j] - m.xMean[j]) / m.xStd[j]
			}
		}
		for c, coef := range m.Coef {
			out.Set(i, c, floats.Dot(row, coef)+m.Intercept[c])
		}
	}
	return out, nil
}

// Predict returns the regression prediction, or the predicted label: the
// positive class when the binary score is positive, the argmax otherwise.
func (m *Model) Predict(X mat.Matrix) ([]float64, error) {
	scores, err := m.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n, k := scores.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		row := scores.RawRowView(i)
		switch {
		case !m.classification:
			out[i] = row[0]
		case k == 1:
			if row[0] > 0 {
				out[i] = m.Classes[1]
			} else {
				out[i] = m.Classes[0]
			}
		default:
			out[i] = m.Classes[floats.MaxIdx(row)]
		}
	}
	return out, nil
}

// CoefVolumes maps every coefficient vector back to an image through the
// masker used by FitVolumes, or through masker when non-nil.
func (m *Model) CoefVolumes(masker Masker) ([]volume.Volume, error) {
	if m == nil || len(m.Coef) == 0 {
		return nil, ErrNotFitted
	}
	if masker == nil {
		masker = m.masker
	}
	if masker == nil {
		masker = volume.NewArrayMasker(m.Mask)
	}
	out := make([]volume.Volume, len(m.Coef))
	for c, coef := range m.Coef {
		v, err := masker.InverseTransform(coef)
		if err != nil {
			return nil, errors.Wrapf(err, "coefficient map %d", c)
		}
		out[c] = v
	}
	return out, nil
}

// PredictVolumes masks images with the fit-time masker and predicts.
func (m *Model) PredictVolumes(images []volume.Volume) ([]float64, error) {
	if m == nil || m.masker == nil {
		return nil, errors.Wrap(ErrNotFitted, "no masker: fit with FitVolumes")
	}
	X, err := m.masker.Transform(images)
	if err != nil {
		return nil, errors.Wrap(err, "masking")
	}
	return m.Predict(X)
}
