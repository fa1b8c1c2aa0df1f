package emath

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg" // Move to https://pkg.go.dev/golang.org/x/image/font#Drawer sometime
)

// A FloatGrid is a grid of floats, one per pixel of some image. We use
// them to hold per-pixel source coordinates, so they can be dumped out
// and looked at.
type FloatGrid struct {
	stride int
	values []float64
}

func NewFloatGrid(w, h int) FloatGrid {
	return FloatGrid{
		stride: w,
		values: make([]float64, w*h),
	}
}

func (fg *FloatGrid) Set(x, y int, v float64) { fg.values[fg.stride*y+x] = v }
func (fg *FloatGrid) Get(x, y int) float64    { return fg.values[fg.stride*y+x] }
func (fg *FloatGrid) Dx() int                 { return fg.stride }

func (fg *FloatGrid) Dy() int {
	if fg.stride == 0 {
		return 0
	}
	return len(fg.values) / fg.stride
}

// Row returns the backing slice for row y, so a worker can fill it without
// touching any other row.
func (fg *FloatGrid) Row(y int) []float64 {
	return fg.values[fg.stride*y : fg.stride*(y+1)]
}

// MinMax ignores NaNs. An empty (or all-NaN) grid returns NaN, NaN.
func (fg *FloatGrid) MinMax() (float64, float64) {
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range fg.values {
		if math.IsNaN(v) {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min > max {
		return math.NaN(), math.NaN()
	}
	return min, max
}

func (fg *FloatGrid) Stats() string {
	min, max := fg.MinMax()
	return fmt.Sprintf("fg[%dx%d, vals{%f,%f}]", fg.Dx(), fg.Dy(), min, max)
}

// ToImg saves a simple grayscale PNG, based on the range of values in
// the grid, with the title drawn in the top left corner.
func (fg *FloatGrid) ToImg(title, filename string) error {
	if fg.Dx() == 0 || fg.Dy() == 0 {
		return fmt.Errorf("toimg '%s': empty grid", filename)
	}

	min, max := fg.MinMax()
	span := max - min
	if span == 0 || math.IsNaN(span) {
		span = 1
	}

	img := image.NewRGBA64(image.Rectangle{Max: image.Point{fg.Dx(), fg.Dy()}})
	for x := 0; x < fg.Dx(); x++ {
		for y := 0; y < fg.Dy(); y++ {
			v := fg.Get(x, y)
			if math.IsNaN(v) {
				continue // leave it black
			}
			gray := GammaExpand_F64((v - min) / span)
			g := uint16(gray * 65535.0)
			img.Set(x, y, color.RGBA64{g, g, g, 0xFFFF})
		}
	}

	dc := gg.NewContextForImage(img)
	dc.SetRGB(1, 0, 0)
	dc.DrawString(title, 10, 20)
	if err := dc.SavePNG(filename); err != nil {
		return fmt.Errorf("toimg '%s': %v", filename, err)
	}
	return nil
}
