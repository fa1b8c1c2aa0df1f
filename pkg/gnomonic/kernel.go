package gnomonic

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/image/draw" // for its interpolation kernels

	"github.com/abworrall/gnoproj/pkg/emath"
)

// A Kernel is the interpolation used to resample the panorama at a
// fractional coordinate. The zero Kernel means Bicubic.
type Kernel struct {
	name string
	k    *draw.Kernel
}

var (
	// Bilinear blends the 2x2 nearest source pixels.
	Bilinear = Kernel{"bilinear", draw.BiLinear}

	// Bicubic blends the 4x4 nearest source pixels with the Catmull-Rom
	// cubic; smoother, but four times the work.
	Bicubic = Kernel{"bicubic", draw.CatmullRom}

	Kernels = []Kernel{Bilinear, Bicubic}
)

func (k Kernel) String() string {
	if k.k == nil {
		return Bicubic.name
	}
	return k.name
}

// ParseKernel looks a kernel up by name; "" gives the default.
func ParseKernel(name string) (Kernel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "bicubic", "cubic", "catmullrom":
		return Bicubic, nil
	case "bilinear", "linear":
		return Bilinear, nil
	}
	return Kernel{}, fmt.Errorf("no interpolation kernel named '%s', wanted one of %v", name, Kernels)
}

func (k Kernel) kernel() *draw.Kernel {
	if k.k == nil {
		return Bicubic.k
	}
	return k.k
}

// A sampler reads one source buffer through a kernel. Each worker owns
// its own sampler; the scratch slices are not shared.
type sampler struct {
	src     *ImageBuffer
	k       *draw.Kernel
	support int
	wrap    int // if >0, columns wrap modulo this (the tile spans the whole panorama)

	cols []int
	rows []int
	wx   []float64
	wy   []float64
	acc  []float64
}

func newSampler(src *ImageBuffer, k Kernel, wrap int) *sampler {
	dk := k.kernel()
	support := int(math.Ceil(dk.Support))
	taps := 2 * support

	return &sampler{
		src:     src,
		k:       dk,
		support: support,
		wrap:    wrap,
		cols:    make([]int, taps),
		rows:    make([]int, taps),
		wx:      make([]float64, taps),
		wy:      make([]float64, taps),
		acc:     make([]float64, src.Channels),
	}
}

func (s *sampler) weight(t float64) float64 {
	t = math.Abs(t)
	if t >= s.k.Support {
		return 0
	}
	return s.k.At(t)
}

// taps fills idx and w with the source indices and weights around pos
// along one axis, and returns the sum of the weights.
func (s *sampler) taps(pos float64, size int, wrap int, idx []int, w []float64) float64 {
	first := int(math.Floor(pos)) - s.support + 1
	sum := 0.0
	for i := range idx {
		p := first + i
		w[i] = s.weight(pos - float64(p))
		sum += w[i]

		if wrap > 0 {
			p = emath.WrapInt(p, wrap)
		}
		idx[i] = emath.ClampInt(p, 0, size-1)
	}
	return sum
}

// sample writes the interpolated value at (x,y) into out, one sample
// per channel. Rows are clamped to the buffer; columns wrap or clamp.
func (s *sampler) sample(x, y float64, out []uint8) {
	src := s.src
	sumX := s.taps(x, src.Width, s.wrap, s.cols, s.wx)
	sumY := s.taps(y, src.Height, 0, s.rows, s.wy)

	for c := range s.acc {
		s.acc[c] = 0
	}

	for j, row := range s.rows {
		if s.wy[j] == 0 {
			continue
		}
		for i, col := range s.cols {
			w := s.wx[i] * s.wy[j]
			if w == 0 {
				continue
			}
			p := src.Pix[src.Offset(col, row):]
			for c := range s.acc {
				s.acc[c] += w * float64(p[c])
			}
		}
	}

	norm := sumX * sumY
	if norm == 0 {
		norm = 1
	}
	for c := range s.acc {
		out[c] = uint8(emath.Clamp(math.Round(s.acc[c]/norm), 0, 255))
	}
}
