package gnomonic

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/abworrall/gnoproj/pkg/calib"
)

// A Request says how to project: which mode, which kernel, and how many
// goroutines to spread the rows over (<=0 means one per CPU).
type Request struct {
	Mode    Mode
	Kernel  Kernel
	Workers int
}

func (r Request) String() string {
	return fmt.Sprintf("Request[%v, %v, workers=%d]", r.Mode, r.Kernel, r.Workers)
}

// Project renders the rectilinear image that the calibrated sensor
// would have captured, by resampling src, a tile cut from the full
// panorama at the record's tile origin.
//
// The output is SensorWidth x SensorHeight, with as many channels as
// src. Project never modifies src, and either returns a complete
// buffer or an error.
func Project(src *ImageBuffer, rec calib.Record, req Request) (*ImageBuffer, error) {
	if req.Mode == nil {
		req.Mode = SensorMode(rec)
	}

	m, err := NewMapper(rec, req.Mode)
	if err != nil {
		return nil, err
	}
	if err := src.checkSource(); err != nil {
		return nil, err
	}
	if err := checkTile(src, rec); err != nil {
		return nil, err
	}

	// A tile that covers the whole width of the panorama can wrap at the
	// seam; anything narrower is clamped at its edges.
	wrap := 0
	if src.Width >= rec.PanoramaFullWidth {
		wrap = rec.PanoramaFullWidth
	}

	dst := NewImageBuffer(rec.SensorWidth, rec.SensorHeight, src.Channels)

	nWorkers := req.Workers
	if nWorkers <= 0 {
		nWorkers = runtime.NumCPU()
	}
	if nWorkers > dst.Height {
		nWorkers = dst.Height
	}

	var wg sync.WaitGroup
	rowsChan := make(chan int, dst.Height)

	// Kick off worker pool. Each worker writes only the rows it is handed.
	for i := 0; i < nWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := newSampler(src, req.Kernel, wrap)
			for v := range rowsChan {
				projectRow(m, s, dst, v)
			}
		}()
	}

	// Feed in jobs
	for v := 0; v < dst.Height; v++ {
		rowsChan <- v
	}
	close(rowsChan)

	wg.Wait()

	return dst, nil
}

func projectRow(m *Mapper, s *sampler, dst *ImageBuffer, v int) {
	row := dst.Row(v)
	for u := 0; u < dst.Width; u++ {
		x, y := m.Tile(float64(u), float64(v), s.src.Width)
		s.sample(x, y, row[u*dst.Channels:(u+1)*dst.Channels])
	}
}

// checkTile makes sure the source tile fits inside the panorama it was
// supposedly cut from. The panorama carries one extra column and row of
// wrap padding, which a tile may include. Columns wrap, so a tile may run
// off the right hand edge and carry on from column 0; rows do not.
func checkTile(src *ImageBuffer, rec calib.Record) error {
	if src.Width > rec.PanoramaFullWidth+1 || rec.TileOriginY+src.Height > rec.PanoramaFullHeight {
		return fmt.Errorf("%w: %s at (%d,%d) does not fit in panorama %dx%d", ErrSourceBufferTooSmall,
			src, rec.TileOriginX, rec.TileOriginY, rec.PanoramaFullWidth, rec.PanoramaFullHeight)
	}
	return nil
}
