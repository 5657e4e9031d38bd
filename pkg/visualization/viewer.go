// Package visualization renders decoder coefficient maps as 2D slices.
//
// Values are drawn with a diverging blue-white-red colormap centred on
// zero, so that the sign of a weight reads at a glance.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"

	"spacenet/pkg/volume"
)

var (
	// ErrAxis is returned for an axis other than x, y or z.
	ErrAxis = errors.New("visualization: invalid axis")

	// ErrPosition is returned when a slice index is outside the volume.
	ErrPosition = errors.New("visualization: slice position out of range")

	// ErrShape is returned for volumes that are not three-dimensional.
	ErrShape = errors.New("visualization: volume must be 3D")
)

// Viewer slices a 3D coefficient map.
type Viewer struct {
	vol volume.Volume

	// scale is the largest absolute value, mapped to full colour
	scale float64

	// threshold hides weights whose magnitude is below it
	threshold float64
}

// NewViewer creates a viewer for a 3D volume stored in row-major order
// (axis z fastest).
func NewViewer(vol volume.Volume) (*Viewer, error) {
	if len(vol.Shape) != 3 {
		return nil, errors.Wrapf(ErrShape, "got %d axes", len(vol.Shape))
	}
	scale := 0.0
	if len(vol.Data) > 0 {
		scale = math.Max(floats.Max(vol.Data), -floats.Min(vol.Data))
	}
	return &Viewer{vol: vol, scale: scale}, nil
}

// SetThreshold hides every weight with |w| < t.
func (v *Viewer) SetThreshold(t float64) { v.threshold = math.Abs(t) }

// Scale returns the magnitude mapped to full colour.
func (v *Viewer) Scale() float64 { return v.scale }

// Diverging maps w in [-scale, scale] to blue, white and red. Values
// outside the range saturate.
func Diverging(w, scale float64) color.RGBA {
	if scale <= 0 || w == 0 || math.IsNaN(w) {
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	t := math.Min(math.Abs(w)/scale, 1)
	fade := uint8(math.Round(255 * (1 - t)))
	if w > 0 {
		return color.RGBA{R: 255, G: fade, B: fade, A: 255}
	}
	return color.RGBA{R: fade, G: fade, B: 255, A: 255}
}

func axisIndex(axis string) (int, error) {
	switch strings.ToLower(axis) {
	case "x":
		return 0, nil
	case "y":
		return 1, nil
	case "z":
		return 2, nil
	}
	return 0, errors.Wrapf(ErrAxis, "%q (must be x, y, or z)", axis)
}

// ExtractSlice extracts a 2D slice orthogonal to the given axis. The image
// columns and rows follow the two remaining axes in order.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	a, err := axisIndex(axis)
	if err != nil {
		return nil, err
	}
	shape := v.vol.Shape
	if position < 0 || position >= shape[a] {
		return nil, errors.Wrapf(ErrPosition, "%s=%d, extent %d", axis, position, shape[a])
	}
	var cols, rows int
	switch a {
	case 0:
		cols, rows = 1, 2
	case 1:
		cols, rows = 0, 2
	default:
		cols, rows = 0, 1
	}

	img := image.NewRGBA(image.Rect(0, 0, shape[cols], shape[rows]))
	coords := make([]int, 3)
	coords[a] = position
	for r := 0; r < shape[rows]; r++ {
		for c := 0; c < shape[cols]; c++ {
			coords[cols], coords[rows] = c, r
			w := v.vol.Data[volume.Offset(shape, coords)]
			if math.Abs(w) < v.threshold {
				w = 0
			}
			// image rows grow downwards
			img.SetRGBA(c, shape[rows]-1-r, Diverging(w, v.scale))
		}
	}
	return img, nil
}

// SaveSlice saves an extracted slice as a PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSliceSequence extracts and saves every slice along the specified
// axis and returns the written paths.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) ([]string, error) {
	a, err := axisIndex(axis)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	var paths []string
	for pos := 0; pos < v.vol.Shape[a]; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return nil, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", strings.ToLower(axis), pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return nil, errors.Wrapf(err, "saving %s", filename)
		}
		paths = append(paths, filename)
	}

	return paths, nil
}
