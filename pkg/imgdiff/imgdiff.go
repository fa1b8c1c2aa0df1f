package imgdiff

import (
	"errors"
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/skypies/util/histogram"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/abworrall/gnoproj/pkg/emath"
	"github.com/abworrall/gnoproj/pkg/gnomonic"
)

// A Report describes how two same-sized images differ. Sample
// differences are absolute, in 8-bit intensity levels.
type Report struct {
	NumSamples int

	MeanAbsDiff   float64
	StdDevAbsDiff float64
	MaxAbsDiff    float64

	MeanLabDistance float64 // CIE L*a*b* distance per pixel, only for 3+ channel images

	Hist histogram.Histogram // Of the absolute sample differences

	// Per pixel, the largest difference over the channels
	Diff emath.FloatGrid
}

func (r Report) String() string {
	str := fmt.Sprintf("%d samples: mean abs diff %.3f (sd %.3f), max %.0f",
		r.NumSamples, r.MeanAbsDiff, r.StdDevAbsDiff, r.MaxAbsDiff)
	if r.MeanLabDistance > 0 {
		str += fmt.Sprintf(", mean Lab distance %.4f", r.MeanLabDistance)
	}
	return str + "\n" + fmt.Sprintf("%v", r.Hist)
}

// ErrTooDifferent is returned by Check when the images differ by more
// than the threshold.
var ErrTooDifferent = errors.New("images too different")

// Check passes if the mean abs difference is no more than maxMean. A
// maxMean <= 0 means no threshold.
func (r Report) Check(maxMean float64) error {
	if maxMean > 0 && r.MeanAbsDiff > maxMean {
		return fmt.Errorf("%w: mean abs difference %.3f exceeds %.3f", ErrTooDifferent, r.MeanAbsDiff, maxMean)
	}
	return nil
}

// Compare diffs two buffers sample by sample.
func Compare(a, b *gnomonic.ImageBuffer) (Report, error) {
	r := Report{
		Hist: histogram.Histogram{NumBuckets: 256, ValMin: 0, ValMax: 256},
	}

	if a == nil || b == nil {
		return r, fmt.Errorf("compare: nil image")
	}
	if a.Width != b.Width || a.Height != b.Height || a.Channels != b.Channels {
		return r, fmt.Errorf("compare: %s and %s differ in shape", a, b)
	}
	if a.Width*a.Height*a.Channels == 0 {
		return r, fmt.Errorf("compare: empty images")
	}

	diffs := make([]float64, 0, len(a.Pix))
	labs := []float64{}
	r.Diff = emath.NewFloatGrid(a.Width, a.Height)

	for y := 0; y < a.Height; y++ {
		rowA, rowB := a.Row(y), b.Row(y)
		for x := 0; x < a.Width; x++ {
			pixMax := 0.0
			for c := 0; c < a.Channels; c++ {
				i := x*a.Channels + c
				d := math.Abs(float64(rowA[i]) - float64(rowB[i]))
				diffs = append(diffs, d)
				r.Hist.Add(histogram.ScalarVal(int(d)))
				pixMax = math.Max(pixMax, d)
			}
			r.Diff.Set(x, y, pixMax)

			if a.Channels >= 3 {
				i := x * a.Channels
				labs = append(labs, toColorful(rowA[i:i+3]).DistanceLab(toColorful(rowB[i:i+3])))
			}
		}
	}

	r.NumSamples = len(diffs)
	r.MeanAbsDiff = stat.Mean(diffs, nil)
	r.MaxAbsDiff = floats.Max(diffs)
	if len(diffs) > 1 {
		r.StdDevAbsDiff = stat.StdDev(diffs, nil)
	}
	if len(labs) > 0 {
		r.MeanLabDistance = stat.Mean(labs, nil)
	}

	return r, nil
}

func toColorful(rgb []uint8) colorful.Color {
	return colorful.Color{R: float64(rgb[0]) / 255.0, G: float64(rgb[1]) / 255.0, B: float64(rgb[2]) / 255.0}
}

// WriteDiffImage renders the per-pixel differences as a PNG, with the
// summary as its title.
func (r Report) WriteDiffImage(filename string) error {
	title := fmt.Sprintf("mean %.2f, max %.0f", r.MeanAbsDiff, r.MaxAbsDiff)
	return r.Diff.ToImg(title, filename)
}
