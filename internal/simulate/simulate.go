// Package simulate draws synthetic decoding datasets on a voxel grid: a
// sparse, spatially structured weight map made of two opposite-sign cubes,
// smoothed Gaussian noise images as samples and a noisy linear response.
package simulate

import (
	"math"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"spacenet/internal/ndimage"
	"spacenet/pkg/volume"
)

// ErrOptions is returned for unusable simulation settings.
var ErrOptions = errors.New("simulate: invalid options")

// Options controls Generate.
type Options struct {
	Shape []int

	TrainSamples int
	TestSamples  int

	// Smoothing is the Gaussian width, in voxels, of the sample images.
	Smoothing float64

	// SNR is std(signal) / std(noise) of the response. Zero means no noise.
	SNR float64

	// Classification thresholds the response at zero into labels 0 and 1.
	Classification bool

	Seed uint64
}

// Dataset is a simulated train/test split.
type Dataset struct {
	Mask *volume.Mask

	// Weights is the true coefficient map over the active voxels.
	Weights []float64

	TrainImages, TestImages []volume.Volume

	XTrain, XTest *mat.Dense
	YTrain, YTest []float64
}

// Generate draws a dataset. The same options always give the same data.
func Generate(opts Options) (*Dataset, error) {
	if opts.TrainSamples < 1 || opts.TestSamples < 0 {
		return nil, errors.Wrapf(ErrOptions, "%d train, %d test samples", opts.TrainSamples, opts.TestSamples)
	}
	if opts.SNR < 0 || opts.Smoothing < 0 {
		return nil, errors.Wrapf(ErrOptions, "snr %g, smoothing %g", opts.SNR, opts.Smoothing)
	}
	for _, s := range opts.Shape {
		if s < 4 {
			return nil, errors.Wrapf(ErrOptions, "shape %v: every axis needs at least 4 voxels", opts.Shape)
		}
	}
	mask, err := volume.FullMask(opts.Shape)
	if err != nil {
		return nil, err
	}

	src := rand.NewSource(opts.Seed)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	weights := Weights(opts.Shape)
	n := opts.TrainSamples + opts.TestSamples
	images := make([]volume.Volume, n)
	signal := make([]float64, n)
	for i := range images {
		data := make([]float64, mask.Len())
		for j := range data {
			data[j] = normal.Rand()
		}
		data = ndimage.GaussianFilter(data, opts.Shape, opts.Smoothing)
		images[i] = volume.Volume{Shape: append([]int(nil), opts.Shape...), Data: data}
		signal[i] = floats.Dot(data, weights)
	}

	y := append([]float64(nil), signal...)
	if opts.SNR > 0 {
		sigma := stat.StdDev(signal, nil) / opts.SNR
		noise := distuv.Normal{Mu: 0, Sigma: sigma, Src: src}
		for i := range y {
			y[i] += noise.Rand()
		}
	}
	if opts.Classification {
		for i, v := range y {
			if v > 0 {
				y[i] = 1
			} else {
				y[i] = 0
			}
		}
	}

	masker := volume.NewArrayMasker(mask)
	ds := &Dataset{
		Mask:        mask,
		Weights:     mask.Gather(weights),
		TrainImages: images[:opts.TrainSamples],
		TestImages:  images[opts.TrainSamples:],
		YTrain:      y[:opts.TrainSamples],
		YTest:       y[opts.TrainSamples:],
	}
	if ds.XTrain, err = masker.Transform(ds.TrainImages); err != nil {
		return nil, err
	}
	if opts.TestSamples > 0 {
		if ds.XTest, err = masker.Transform(ds.TestImages); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// Weights returns the true weight map on the full grid: +1 on a cube
// around the first quarter of every axis, -1 on a cube around the third
// quarter, 0 elsewhere. Each cube is a third of the extent wide, at least
// two voxels.
func Weights(shape []int) []float64 {
	size, _ := volume.Size(shape)
	w := make([]float64, size)
	coords := make([]int, len(shape))
	for i := range w {
		volume.Coords(shape, i, coords)
		pos, neg := true, true
		for d, c := range coords {
			half := int(math.Max(1, float64(shape[d])/6))
			if abs(c-shape[d]/4) > half {
				pos = false
			}
			if abs(c-3*shape[d]/4) > half {
				neg = false
			}
		}
		switch {
		case pos:
			w[i] = 1
		case neg:
			w[i] = -1
		}
	}
	return w
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
