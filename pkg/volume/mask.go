package volume

import (
	"github.com/cockroachdb/errors"
)

// Mask is a boolean support over a regular voxel grid. Active voxels map
// one to one, in row-major order, onto the columns of a design matrix.
type Mask struct {
	// Shape is the extent of the grid along every axis
	Shape []int

	// Data flags the active voxels in row-major order
	Data []bool

	// VoxelSize is the physical size of a voxel in mm along every axis.
	// A nil slice means isotropic 1mm voxels.
	VoxelSize []float64
}

// NewMask validates shape against data and returns a mask owning a copy of
// both.
func NewMask(shape []int, data []bool) (*Mask, error) {
	n, err := Size(shape)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, errors.Wrapf(ErrShape, "shape %v holds %d voxels, got %d", shape, n, len(data))
	}
	return &Mask{
		Shape: append([]int(nil), shape...),
		Data:  append([]bool(nil), data...),
	}, nil
}

// FullMask returns a mask of the given shape with every voxel active.
func FullMask(shape []int) (*Mask, error) {
	n, err := Size(shape)
	if err != nil {
		return nil, err
	}
	data := make([]bool, n)
	for i := range data {
		data[i] = true
	}
	return &Mask{Shape: append([]int(nil), shape...), Data: data}, nil
}

// Ndim returns the number of axes.
func (m *Mask) Ndim() int { return len(m.Shape) }

// Len returns the number of voxels in the grid, active or not.
func (m *Mask) Len() int { return len(m.Data) }

// Count returns the number of active voxels.
func (m *Mask) Count() int {
	n := 0
	for _, on := range m.Data {
		if on {
			n++
		}
	}
	return n
}

// Indices returns the flat indices of the active voxels in row-major order.
func (m *Mask) Indices() []int {
	idx := make([]int, 0, m.Count())
	for i, on := range m.Data {
		if on {
			idx = append(idx, i)
		}
	}
	return idx
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	out := &Mask{
		Shape: append([]int(nil), m.Shape...),
		Data:  append([]bool(nil), m.Data...),
	}
	if m.VoxelSize != nil {
		out.VoxelSize = append([]float64(nil), m.VoxelSize...)
	}
	return out
}

// Unmask scatters a flat weight vector into an all-zero array of the mask's
// shape, at the active voxels.
func (m *Mask) Unmask(w []float64) []float64 {
	out := make([]float64, len(m.Data))
	m.UnmaskInto(out, w)
	return out
}

// UnmaskInto is Unmask writing into dst, which must have m.Len() elements.
// Inactive voxels of dst are zeroed.
func (m *Mask) UnmaskInto(dst, w []float64) {
	j := 0
	for i, on := range m.Data {
		if on {
			dst[i] = w[j]
			j++
		} else {
			dst[i] = 0
		}
	}
}

// Gather extracts the active voxels of a full array into a flat vector.
func (m *Mask) Gather(img []float64) []float64 {
	out := make([]float64, 0, m.Count())
	for i, on := range m.Data {
		if on {
			out = append(out, img[i])
		}
	}
	return out
}

// PhysicalVolume returns the volume of the support in mm^3.
func (m *Mask) PhysicalVolume() float64 {
	voxel := 1.0
	for _, s := range m.VoxelSize {
		voxel *= s
	}
	return voxel * float64(m.Count())
}

// Crop returns a mask with the same support on a tighter bounding box.
// One voxel of margin is kept on the low side of every axis so that the
// forward differences entering the support stay inside the box.
func (m *Mask) Crop() (*Mask, error) {
	ndim := m.Ndim()
	lo := make([]int, ndim)
	hi := make([]int, ndim)
	for d := range lo {
		lo[d] = m.Shape[d]
		hi[d] = -1
	}
	coords := make([]int, ndim)
	found := false
	for i, on := range m.Data {
		if !on {
			continue
		}
		found = true
		Coords(m.Shape, i, coords)
		for d, c := range coords {
			if c < lo[d] {
				lo[d] = c
			}
			if c > hi[d] {
				hi[d] = c
			}
		}
	}
	if !found {
		return nil, ErrEmptyMask
	}

	shape := make([]int, ndim)
	for d := range lo {
		if lo[d] > 0 {
			lo[d]--
		}
		shape[d] = hi[d] - lo[d] + 1
	}

	n, _ := Size(shape)
	out := &Mask{Shape: shape, Data: make([]bool, n)}
	if m.VoxelSize != nil {
		out.VoxelSize = append([]float64(nil), m.VoxelSize...)
	}
	src := make([]int, ndim)
	for j := range out.Data {
		Coords(shape, j, coords)
		for d := range coords {
			src[d] = coords[d] + lo[d]
		}
		out.Data[j] = m.Data[Offset(m.Shape, src)]
	}
	return out, nil
}

// SubsetOf reports whether every active voxel of m is active in other.
func (m *Mask) SubsetOf(other *Mask) bool {
	if len(m.Data) != len(other.Data) {
		return false
	}
	for i, on := range m.Data {
		if on && !other.Data[i] {
			return false
		}
	}
	return true
}
