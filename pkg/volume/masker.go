package volume

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

// ArrayMasker converts in-memory volumes into design-matrix rows and weight
// vectors back into volumes. It is the masking collaborator used when the
// images are already decoded into Volume values.
type ArrayMasker struct {
	// supplied is the caller's mask, nil when it is computed from the data
	supplied *Mask
	mask     *Mask
}

// NewArrayMasker returns a masker bound to mask. A nil mask is computed at
// every FitTransform as the voxels that are non-zero in at least one image.
func NewArrayMasker(mask *Mask) *ArrayMasker {
	return &ArrayMasker{supplied: mask, mask: mask}
}

// Mask returns the mask in use, nil before the first FitTransform when no
// mask was supplied.
func (a *ArrayMasker) Mask() *Mask { return a.mask }

// FitTransform resolves the mask and stacks every image, restricted to the
// mask support, as one row of the returned matrix.
func (a *ArrayMasker) FitTransform(images []Volume) (*mat.Dense, *Mask, error) {
	if len(images) == 0 {
		return nil, nil, errors.Wrap(ErrShape, "no image to mask")
	}
	mask := a.supplied
	if mask == nil {
		var err error
		if mask, err = supportMask(images); err != nil {
			return nil, nil, err
		}
	}
	a.mask = mask
	X, err := a.Transform(images)
	if err != nil {
		return nil, nil, err
	}
	return X, a.mask, nil
}

// supportMask marks the voxels that are non-zero in at least one image.
func supportMask(images []Volume) (*Mask, error) {
	mask, err := NewMask(images[0].Shape, make([]bool, images[0].Len()))
	if err != nil {
		return nil, err
	}
	for _, img := range images {
		if img.Len() != mask.Len() {
			return nil, errors.Wrapf(ErrMaskMismatch, "image has %d voxels, expected %d", img.Len(), mask.Len())
		}
		for i, v := range img.Data {
			if v != 0 {
				mask.Data[i] = true
			}
		}
	}
	if mask.Count() == 0 {
		return nil, ErrEmptyMask
	}
	return mask, nil
}

// Transform masks every image with the fitted mask.
func (a *ArrayMasker) Transform(images []Volume) (*mat.Dense, error) {
	if a.mask == nil {
		return nil, errors.Wrap(ErrEmptyMask, "masker is not fitted")
	}
	if len(images) == 0 {
		return nil, errors.Wrap(ErrShape, "no image to mask")
	}
	nFeatures := a.mask.Count()
	if nFeatures == 0 {
		return nil, ErrEmptyMask
	}
	X := mat.NewDense(len(images), nFeatures, nil)
	for i, img := range images {
		if img.Len() != a.mask.Len() {
			return nil, errors.Wrapf(ErrMaskMismatch, "image %d has %d voxels, expected %d", i, img.Len(), a.mask.Len())
		}
		X.SetRow(i, a.mask.Gather(img.Data))
	}
	return X, nil
}

// InverseTransform scatters a weight vector back into a volume of the mask
// shape.
func (a *ArrayMasker) InverseTransform(coef []float64) (Volume, error) {
	if a.mask == nil {
		return Volume{}, errors.Wrap(ErrEmptyMask, "masker is not fitted")
	}
	if len(coef) != a.mask.Count() {
		return Volume{}, errors.Wrapf(ErrMaskMismatch, "got %d coefficients for %d active voxels", len(coef), a.mask.Count())
	}
	return Volume{
		Shape: append([]int(nil), a.mask.Shape...),
		Data:  a.mask.Unmask(coef),
	}, nil
}
