package gnomonic

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/gnoproj/pkg/calib"
)

// The calibration used by most tests; a 100x100 sensor looking along
// the seam of a 3600x1800 panorama.
func testRecord() calib.Record {
	return calib.Record{
		SensorWidth:        100,
		SensorHeight:       100,
		PanoramaFullWidth:  3600,
		PanoramaFullHeight: 1800,
		PrincipalPointX:    50,
		PrincipalPointY:    50,
		FocalLength:        3.0,
		PixelPitch:         0.0022,
	}
}

func flatPanorama(rec calib.Record, channels int, samples ...uint8) *ImageBuffer {
	src := NewImageBuffer(rec.PanoramaFullWidth, rec.PanoramaFullHeight, channels)
	src.Fill(samples...)
	return src
}

// stripedPanorama is a single channel panorama whose value depends only
// on the column; k full periods of a sine around the globe.
func stripedPanorama(rec calib.Record, k int) *ImageBuffer {
	src := NewImageBuffer(rec.PanoramaFullWidth, rec.PanoramaFullHeight, 1)
	for x := 0; x < src.Width; x++ {
		val := uint8(math.Round(128 + 100*math.Sin(2*math.Pi*float64(k*x)/float64(src.Width))))
		for y := 0; y < src.Height; y++ {
			src.Pix[src.Offset(x, y)] = val
		}
	}
	return src
}

func TestProjectOutputSize(t *testing.T) {
	rec := testRecord()
	rec.SensorWidth, rec.SensorHeight = 64, 48
	src := flatPanorama(rec, 3, 10, 20, 30)

	for _, k := range Kernels {
		dst, err := Project(src, rec, Request{Mode: SensorMode(rec), Kernel: k})
		require.NoError(t, err)
		assert.Equal(t, 64, dst.Width)
		assert.Equal(t, 48, dst.Height)
		assert.Equal(t, 3, dst.Channels)
		assert.Len(t, dst.Pix, 64*48*3)
	}
}

func TestProjectMidGray(t *testing.T) {
	rec := testRecord()
	src := flatPanorama(rec, 3, 128, 128, 128)

	dst, err := Project(src, rec, Request{Mode: SensorMode(rec)})
	require.NoError(t, err)
	require.Len(t, dst.Pix, 100*100*3)
	for i, p := range dst.Pix {
		if p != 128 {
			t.Fatalf("sample %d: got %d, wanted 128", i, p)
		}
	}
}

func TestProjectFlatFieldAllKernels(t *testing.T) {
	rec := testRecord()
	rec.Azimuth, rec.Elevation, rec.Roll, rec.Heading = 0.7, -0.3, 1.2, 0.1
	src := flatPanorama(rec, 3, 17, 200, 99)

	for _, k := range Kernels {
		for _, mode := range []Mode{SensorMode(rec), Confocal{FocalLength: 2.0}} {
			dst, err := Project(src, rec, Request{Mode: mode, Kernel: k, Workers: 3})
			require.NoError(t, err)
			for i := 0; i < len(dst.Pix); i += 3 {
				require.Equal(t, []uint8{17, 200, 99}, dst.Pix[i:i+3], "kernel %v, mode %v, pixel %d", k, mode, i/3)
			}
		}
	}
}

func TestProjectIsIdempotent(t *testing.T) {
	rec := testRecord()
	rec.Azimuth = 0.4
	src := stripedPanorama(rec, 50)

	req := Request{Mode: SensorMode(rec), Kernel: Bicubic}
	a, err := Project(src, rec, req)
	require.NoError(t, err)

	req.Workers = 1
	b, err := Project(src, rec, req)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(a.Pix, b.Pix))
}

func TestProjectDoesNotModifySource(t *testing.T) {
	rec := testRecord()
	src := stripedPanorama(rec, 7)
	orig := append([]uint8(nil), src.Pix...)

	_, err := Project(src, rec, Request{})
	require.NoError(t, err)
	assert.True(t, bytes.Equal(orig, src.Pix))
}

func TestConfocalFocalBounds(t *testing.T) {
	rec := testRecord()
	rec.SensorWidth, rec.SensorHeight = 16, 16
	src := flatPanorama(rec, 1, 42)

	for _, f := range []float64{MinFocal, 3.0, MaxFocal} {
		dst, err := Project(src, rec, Request{Mode: Confocal{FocalLength: f}})
		require.NoError(t, err, "focal %v", f)
		assert.NotNil(t, dst)

		_, err = ConfocalMode(f)
		assert.NoError(t, err)
	}

	for _, f := range []float64{0.049, 500.1, -3, 0, math.NaN(), math.Inf(1)} {
		dst, err := Project(src, rec, Request{Mode: Confocal{FocalLength: f}})
		assert.ErrorIs(t, err, ErrFocalOutOfRange, "focal %v", f)
		assert.Nil(t, dst)

		_, err = ConfocalMode(f)
		assert.ErrorIs(t, err, ErrFocalOutOfRange)
	}
}

func TestSelectMode(t *testing.T) {
	rec := testRecord()

	m, err := SelectMode(rec, nil)
	require.NoError(t, err)
	assert.Equal(t, Sensor{PrincipalPointX: 50, PrincipalPointY: 50, FocalLength: 3.0}, m)

	f := 8.0
	m, err = SelectMode(rec, &f)
	require.NoError(t, err)
	assert.Equal(t, Confocal{FocalLength: 8.0}, m)

	f = 600
	_, err = SelectMode(rec, &f)
	assert.ErrorIs(t, err, ErrFocalOutOfRange)
}

func TestConfocalLooksTheOtherWay(t *testing.T) {
	rec := testRecord()

	conf, err := NewMapper(rec, Confocal{FocalLength: 3.0})
	require.NoError(t, err)
	x, y := conf.Panorama(49.5, 49.5)
	assert.InDelta(t, 1800.0, x, 1e-6)
	assert.InDelta(t, 899.5, y, 1e-6)

	lon, lat := conf.LonLat(49.5, 49.5)
	assert.InDelta(t, math.Pi, lon, 1e-9)
	assert.InDelta(t, 0.0, lat, 1e-9)

	sens, err := NewMapper(rec, SensorMode(rec))
	require.NoError(t, err)
	x, y = sens.Panorama(50, 50)
	assert.InDelta(t, 0.0, math.Min(x, 3600-x), 1e-6)
	assert.InDelta(t, 899.5, y, 1e-6)
}

func TestSensorRotationOrder(t *testing.T) {
	rec := testRecord()
	rec.Heading = math.Pi / 2

	// Looking along the optical axis with a quarter turn of heading puts
	// the centre a quarter of the way round the panorama.
	m, err := NewMapper(rec, SensorMode(rec))
	require.NoError(t, err)
	x, _ := m.Panorama(50, 50)
	assert.InDelta(t, 900.0, x, 1e-6)

	// Azimuth and heading are both yaws, so they add when elevation is zero.
	rec.Heading, rec.Azimuth = math.Pi/4, math.Pi/4
	m, err = NewMapper(rec, SensorMode(rec))
	require.NoError(t, err)
	x, _ = m.Panorama(50, 50)
	assert.InDelta(t, 900.0, x, 1e-6)

	// Positive elevation looks up, towards row 0.
	rec.Heading, rec.Azimuth, rec.Elevation = 0, 0, math.Pi/4
	m, err = NewMapper(rec, SensorMode(rec))
	require.NoError(t, err)
	_, y := m.Panorama(50, 50)
	assert.InDelta(t, 0.25*1799, y, 1e-6)
}

func TestPrincipalPointOnlyUsedBySensorMode(t *testing.T) {
	rec := testRecord()
	rec.PrincipalPointX, rec.PrincipalPointY = 10, 90

	sens, err := NewMapper(rec, SensorMode(rec))
	require.NoError(t, err)
	x, y := sens.Panorama(10, 90)
	assert.InDelta(t, 0.0, math.Min(x, 3600-x), 1e-6)
	assert.InDelta(t, 899.5, y, 1e-6)

	conf, err := NewMapper(rec, Confocal{FocalLength: 3.0})
	require.NoError(t, err)
	x, _ = conf.Panorama(49.5, 49.5)
	assert.InDelta(t, 1800.0, x, 1e-6)
}

func TestSeamSamplesAcrossWrap(t *testing.T) {
	src := NewImageBuffer(8, 4, 1)
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			src.Pix[src.Offset(x, y)] = uint8(10 * x)
		}
	}

	out := make([]uint8, 1)

	s := newSampler(src, Bilinear, 8)
	s.sample(7.5, 1, out)
	assert.Equal(t, uint8(35), out[0]) // halfway between column 7 (70) and column 0 (0)

	s = newSampler(src, Bilinear, 0)
	s.sample(7.5, 1, out)
	assert.Equal(t, uint8(70), out[0]) // clamped to the last column
}

func TestProjectIsContinuousAtSeam(t *testing.T) {
	rec := testRecord()
	src := stripedPanorama(rec, 100)

	for _, k := range Kernels {
		dst, err := Project(src, rec, Request{Mode: SensorMode(rec), Kernel: k})
		require.NoError(t, err)

		// The centre column of the output looks straight at the seam.
		row := dst.Row(50)
		for u := 1; u < dst.Width; u++ {
			diff := math.Abs(float64(row[u]) - float64(row[u-1]))
			assert.Less(t, diff, 12.0, "kernel %v, columns %d,%d: %d vs %d", k, u-1, u, row[u-1], row[u])
		}
	}
}

func TestBicubicAgreesWithBilinear(t *testing.T) {
	rec := testRecord()
	rec.Elevation = 0.2
	src := NewImageBuffer(rec.PanoramaFullWidth, rec.PanoramaFullHeight, 1)
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			v := 128 + 60*math.Sin(2*math.Pi*float64(20*x)/float64(src.Width)) + 40*math.Cos(float64(y)/30)
			src.Pix[src.Offset(x, y)] = uint8(math.Round(v))
		}
	}

	lin, err := Project(src, rec, Request{Mode: SensorMode(rec), Kernel: Bilinear})
	require.NoError(t, err)
	cub, err := Project(src, rec, Request{Mode: SensorMode(rec), Kernel: Bicubic})
	require.NoError(t, err)

	total := 0.0
	for i := range lin.Pix {
		total += math.Abs(float64(lin.Pix[i]) - float64(cub.Pix[i]))
	}
	assert.Less(t, total/float64(len(lin.Pix)), 2.0)
}

func TestProjectInvalidCalibration(t *testing.T) {
	src := flatPanorama(testRecord(), 1, 1)

	for name, mutate := range map[string]func(*calib.Record){
		"zero width":      func(r *calib.Record) { r.SensorWidth = 0 },
		"negative height": func(r *calib.Record) { r.SensorHeight = -4 },
		"zero pitch":      func(r *calib.Record) { r.PixelPitch = 0 },
		"NaN roll":        func(r *calib.Record) { r.Roll = math.NaN() },
		"flat panorama":   func(r *calib.Record) { r.PanoramaFullHeight = 1 },
	} {
		rec := testRecord()
		mutate(&rec)
		dst, err := Project(src, rec, Request{Mode: SensorMode(testRecord())})
		assert.ErrorIs(t, err, ErrInvalidCalibration, name)
		assert.ErrorIs(t, err, calib.ErrInvalidCalibration, name)
		assert.Nil(t, dst, name)
	}

	// The sensor mode focal length is checked too.
	rec := testRecord()
	_, err := Project(src, rec, Request{Mode: Sensor{PrincipalPointX: 50, PrincipalPointY: 50}})
	assert.ErrorIs(t, err, ErrInvalidCalibration)
}

func TestProjectSourceTooSmall(t *testing.T) {
	rec := testRecord()

	for name, src := range map[string]*ImageBuffer{
		"nil":         nil,
		"empty":       NewImageBuffer(0, 0, 3),
		"short pix":   {Width: 10, Height: 10, Channels: 3, Pix: make([]uint8, 299)},
		"too wide":    NewImageBuffer(3602, 10, 1),
		"too tall":    NewImageBuffer(10, 1801, 1),
		"no channels": {Width: 10, Height: 10},
	} {
		dst, err := Project(src, rec, Request{})
		assert.ErrorIs(t, err, ErrSourceBufferTooSmall, name)
		assert.Nil(t, dst, name)
	}

	// A tile that runs off the bottom of the panorama from its origin.
	rec.TileOriginY = 1700
	_, err := Project(NewImageBuffer(200, 200, 1), rec, Request{})
	assert.ErrorIs(t, err, ErrSourceBufferTooSmall)
}

func TestProjectFromTile(t *testing.T) {
	// Cut a tile out of a full panorama, and check projecting from the
	// tile matches projecting from the whole thing.
	rec := testRecord()
	rec.Heading = math.Pi / 2 // looking at column 900
	full := stripedPanorama(rec, 90)

	whole, err := Project(full, rec, Request{Kernel: Bilinear})
	require.NoError(t, err)

	tileRec := rec
	tileRec.TileOriginX, tileRec.TileOriginY = 800, 800
	tile := NewImageBuffer(200, 200, 1)
	for y := 0; y < tile.Height; y++ {
		copy(tile.Row(y), full.Row(y+800)[800:1000])
	}

	part, err := Project(tile, tileRec, Request{Kernel: Bilinear})
	require.NoError(t, err)
	assert.Equal(t, whole.Pix, part.Pix)
}

func TestProjectFromTileAcrossSeam(t *testing.T) {
	// The sensor looks at column 0, and the tile runs from 3500 round to
	// 100; projecting from it should match projecting from the whole.
	rec := testRecord()
	full := stripedPanorama(rec, 90)

	tileRec := rec
	tileRec.TileOriginX, tileRec.TileOriginY = 3500, 800
	tile := NewImageBuffer(200, 200, 1)
	for y := 0; y < tile.Height; y++ {
		src := full.Row(y + 800)
		copy(tile.Row(y), src[3500:])
		copy(tile.Row(y)[100:], src[:100])
	}

	for _, kernel := range Kernels {
		whole, err := Project(full, rec, Request{Kernel: kernel})
		require.NoError(t, err)
		part, err := Project(tile, tileRec, Request{Kernel: kernel})
		require.NoError(t, err, kernel.String())

		// Tile coords are offset by a whole number of columns, but reach
		// them by different float arithmetic, so allow a rounding flip.
		for i := range whole.Pix {
			d := int(whole.Pix[i]) - int(part.Pix[i])
			require.LessOrEqual(t, d*d, 1, "%s: sample %d: %d vs %d", kernel, i, whole.Pix[i], part.Pix[i])
		}
	}
}

func TestTileStraddlingSeam(t *testing.T) {
	rec := testRecord()
	rec.TileOriginX = 3500
	m, err := NewMapper(rec, SensorMode(rec))
	require.NoError(t, err)

	// The centre of the sensor looks at column 0, which is column 100 of a
	// 200 wide tile starting at 3500.
	x, _ := m.Tile(50, 50, 200)
	assert.InDelta(t, 100.0, x, 1e-6)

	// Something just left of the tile comes out negative, to be clamped.
	assert.InDelta(t, -10.0, m.tileColumn(3490, 200), 1e-9)
	assert.InDelta(t, 250.0, m.tileColumn(150, 200), 1e-9)
}

func TestMapCoordinates(t *testing.T) {
	rec := testRecord()
	xs, ys, err := MapCoordinates(rec, Confocal{FocalLength: 3.0})
	require.NoError(t, err)
	assert.Equal(t, 100, xs.Dx())
	assert.Equal(t, 100, ys.Dy())

	// Columns increase left to right, rows top to bottom, around 1800,899.5.
	assert.Less(t, xs.Get(10, 50), xs.Get(90, 50))
	assert.Less(t, ys.Get(50, 10), ys.Get(50, 90))
	assert.InDelta(t, 1800, xs.Get(50, 50), 1)
	assert.InDelta(t, 899.5, ys.Get(50, 50), 1)

	_, _, err = MapCoordinates(calib.Record{}, Confocal{FocalLength: 3.0})
	assert.ErrorIs(t, err, ErrInvalidCalibration)
}

func TestParseKernel(t *testing.T) {
	for in, want := range map[string]Kernel{
		"":           Bicubic,
		"bicubic":    Bicubic,
		"CatmullRom": Bicubic,
		"bilinear":   Bilinear,
		" linear ":   Bilinear,
	} {
		k, err := ParseKernel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want.String(), k.String(), in)
	}

	_, err := ParseKernel("lanczos")
	assert.Error(t, err)

	assert.Equal(t, "bicubic", Kernel{}.String())
}
