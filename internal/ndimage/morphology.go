package ndimage

import "spacenet/pkg/volume"

// BinaryErosion keeps a voxel when it and all of its face neighbours are
// set. Neighbours outside the array take borderValue.
func BinaryErosion(mask []bool, shape []int, borderValue bool) []bool {
	out := make([]bool, len(mask))
	strides := volume.Strides(shape)
	coords := make([]int, len(shape))
	for i, on := range mask {
		if !on {
			continue
		}
		volume.Coords(shape, i, coords)
		keep := true
		for d := 0; d < len(shape) && keep; d++ {
			if coords[d] > 0 {
				keep = mask[i-strides[d]]
			} else {
				keep = borderValue
			}
			if !keep {
				break
			}
			if coords[d] < shape[d]-1 {
				keep = mask[i+strides[d]]
			} else {
				keep = borderValue
			}
		}
		out[i] = keep
	}
	return out
}

// BinaryDilation sets every voxel that is set or has a set face neighbour.
func BinaryDilation(mask []bool, shape []int) []bool {
	out := make([]bool, len(mask))
	strides := volume.Strides(shape)
	coords := make([]int, len(shape))
	for i, on := range mask {
		if !on {
			continue
		}
		out[i] = true
		volume.Coords(shape, i, coords)
		for d := range shape {
			if coords[d] > 0 {
				out[i-strides[d]] = true
			}
			if coords[d] < shape[d]-1 {
				out[i+strides[d]] = true
			}
		}
	}
	return out
}

// BinaryOpening is erosion followed by dilation. It removes set regions
// thinner than the structuring element.
func BinaryOpening(mask []bool, shape []int) []bool {
	return BinaryDilation(BinaryErosion(mask, shape, false), shape)
}

// BinaryClosing is dilation followed by erosion. It fills unset voxels
// enclosed by set ones. The erosion treats the outside as set so the
// result always contains the input.
func BinaryClosing(mask []bool, shape []int) []bool {
	return BinaryErosion(BinaryDilation(mask, shape), shape, true)
}
