package solver

import (
	"gonum.org/v1/gonum/floats"

	"spacenet/pkg/fista"
	"spacenet/pkg/objective"
	"spacenet/pkg/prox"
)

// spatialEnergy returns 0.5 * weight * sum over active voxels of the squared
// forward differences of unmask(coef), and optionally its gradient with
// respect to coef, -weight * Div(M * Gradient(unmask(coef))) on the mask.
func (pb *problem) spatialEnergy(coef []float64, weight float64, withGrad bool) (float64, []float64) {
	if weight == 0 {
		if withGrad {
			return 0, make([]float64, len(coef))
		}
		return 0, nil
	}
	shape := pb.mask.Shape
	img := pb.mask.Unmask(coef)
	n := len(img)
	g := objective.Gradient(img, shape)
	for d := range shape {
		ch := g[d*n : (d+1)*n]
		for i, on := range pb.mask.Data {
			if !on {
				ch[i] = 0
			}
		}
	}
	energy := 0.5 * weight * floats.Dot(g, g)
	if !withGrad {
		return energy, nil
	}
	grad := pb.mask.Gather(objective.Div(g, shape))
	floats.Scale(-weight, grad)
	return energy, grad
}

// graphNetWeights splits alpha into the spatial and sparse weights.
func (pb *problem) graphNetWeights() (gradWeight, l1Weight float64) {
	if pb.L1Ratio == 0 || pb.L1Ratio == 1 {
		pb.logger.Warn("smooth-lasso with a degenerate l1_ratio: the penalty is pure smoothing or pure lasso",
			"l1_ratio", pb.L1Ratio)
	}
	return pb.alpha * (1 - pb.L1Ratio), pb.alpha * pb.L1Ratio
}

// spatialLipschitz bounds the spectral norm of the masked Laplacian by the
// grid degree 4*ndim.
func (pb *problem) spatialLipschitz(gradWeight float64) float64 {
	return 4 * float64(pb.mask.Ndim()) * gradWeight
}

// SmoothLassoSquaredLoss minimises
// 0.5*||y - Xw||^2 + 0.5*alpha*(1-r)*||grad w||^2 + alpha*r*||w||_1.
func SmoothLassoSquaredLoss(params Params) (Result, error) {
	pb, err := prepare(params)
	if err != nil {
		return Result{}, err
	}
	gw, l1w := pb.graphNetWeights()
	X, y := pb.X, pb.Y

	smooth := func(w []float64) float64 {
		e, _ := pb.spatialEnergy(w, gw, false)
		return objective.SquaredLoss(X, y, w) + e
	}
	return pb.solve(fista.Problem{
		Smooth: smooth,
		SmoothGrad: func(w []float64) []float64 {
			grad := objective.SquaredLossGrad(X, y, w)
			_, sg := pb.spatialEnergy(w, gw, true)
			floats.Add(grad, sg)
			return grad
		},
		Prox: func(w []float64, step, _ float64, _ []float64) ([]float64, prox.Info) {
			return prox.L1(w, step*l1w), prox.Info{Converged: true}
		},
		Energy: func(w []float64) float64 {
			return smooth(w) + l1w*floats.Norm(w, 1)
		},
		Lipschitz: MSE.lipschitzMargin() * (objective.SquaredLossLipschitz(X) + pb.spatialLipschitz(gw)),
		Size:      pb.nFeatures,
	})
}

// SmoothLassoLogistic is the logistic counterpart of SmoothLassoSquaredLoss.
// The returned vector has n_features+1 entries, the intercept last.
func SmoothLassoLogistic(params Params) (Result, error) {
	pb, err := prepare(params)
	if err != nil {
		return Result{}, err
	}
	gw, l1w := pb.graphNetWeights()
	X, y := pb.X, pb.Y
	p := pb.nFeatures

	smooth := func(w []float64) float64 {
		e, _ := pb.spatialEnergy(pb.coef(w), gw, false)
		return objective.Logistic(X, y, w) + e
	}
	return pb.solve(fista.Problem{
		Smooth: smooth,
		SmoothGrad: func(w []float64) []float64 {
			grad := objective.LogisticGrad(X, y, w)
			_, sg := pb.spatialEnergy(pb.coef(w), gw, true)
			floats.Add(grad[:p], sg)
			return grad
		},
		Prox: func(w []float64, step, _ float64, _ []float64) ([]float64, prox.Info) {
			out := make([]float64, len(w))
			prox.L1Into(out[:p], w[:p], step*l1w)
			out[p] = w[p]
			return out, prox.Info{Converged: true}
		},
		Energy: func(w []float64) float64 {
			return smooth(w) + l1w*floats.Norm(pb.coef(w), 1)
		},
		Lipschitz: Logistic.lipschitzMargin() * (objective.LogisticLipschitz(X) + pb.spatialLipschitz(gw)),
		Size:      p + 1,
	})
}
