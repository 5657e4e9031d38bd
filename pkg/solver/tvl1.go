package solver

import (
	"spacenet/pkg/fista"
	"spacenet/pkg/objective"
	"spacenet/pkg/prox"
)

// tvProx evaluates the TV-L1 prox of a flat coefficient vector on the
// mask's grid and gathers the active voxels back. With intercept set, the
// last entry of w is passed through unpenalised.
func (pb *problem) tvProx(w []float64, weight, dgapTol float64, init []float64, intercept bool) ([]float64, prox.Info) {
	p := pb.nFeatures
	opts := prox.DefaultTVL1Options()
	opts.L1Ratio = pb.L1Ratio
	opts.Weight = weight
	opts.DgapTol = dgapTol
	if len(init) >= p {
		opts.Init = pb.mask.Unmask(init[:p])
	}
	img := pb.mask.Unmask(w[:p])
	if !intercept {
		out, info := prox.TVL1(img, pb.mask.Shape, opts)
		return pb.mask.Gather(out), info
	}
	out, info := prox.TVL1WithIntercept(append(img, w[p]), pb.mask.Shape, opts)
	last := len(out) - 1
	return append(pb.mask.Gather(out[:last]), out[last]), info
}

func (pb *problem) tvEnergy(coef []float64) float64 {
	return pb.alpha * objective.TVL1(pb.mask.Unmask(coef), pb.mask.Shape, pb.L1Ratio)
}

// TVL1SquaredLoss minimises 0.5*||y - Xw||^2 + alpha*TVL1(w) with the exact
// TV-L1 prox.
func TVL1SquaredLoss(params Params) (Result, error) {
	pb, err := prepare(params)
	if err != nil {
		return Result{}, err
	}
	X, y := pb.X, pb.Y
	return pb.solve(fista.Problem{
		Smooth:     func(w []float64) float64 { return objective.SquaredLoss(X, y, w) },
		SmoothGrad: func(w []float64) []float64 { return objective.SquaredLossGrad(X, y, w) },
		Prox: func(w []float64, step, dgapTol float64, init []float64) ([]float64, prox.Info) {
			return pb.tvProx(w, pb.alpha*step, dgapTol, init, false)
		},
		Energy: func(w []float64) float64 {
			return objective.SquaredLoss(X, y, w) + pb.tvEnergy(w)
		},
		Lipschitz: MSE.lipschitzMargin() * objective.SquaredLossLipschitz(X),
		Size:      pb.nFeatures,
	})
}

// TVL1Logistic minimises the logistic loss plus alpha*TVL1 of the
// coefficients; the trailing intercept is not penalised.
func TVL1Logistic(params Params) (Result, error) {
	pb, err := prepare(params)
	if err != nil {
		return Result{}, err
	}
	X, y := pb.X, pb.Y
	p := pb.nFeatures
	return pb.solve(fista.Problem{
		Smooth:     func(w []float64) float64 { return objective.Logistic(X, y, w) },
		SmoothGrad: func(w []float64) []float64 { return objective.LogisticGrad(X, y, w) },
		Prox: func(w []float64, step, dgapTol float64, init []float64) ([]float64, prox.Info) {
			return pb.tvProx(w, pb.alpha*step, dgapTol, init, true)
		},
		Energy: func(w []float64) float64 {
			return objective.Logistic(X, y, w) + pb.tvEnergy(pb.coef(w))
		},
		Lipschitz: Logistic.lipschitzMargin() * objective.LogisticLipschitz(X),
		Size:      p + 1,
	})
}
