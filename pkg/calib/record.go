package calib

import (
	"errors"
	"fmt"

	"github.com/abworrall/gnoproj/pkg/emath"
)

var (
	// ErrInvalidCalibration is returned when a record's fields are not
	// physically usable (non-positive sizes, non-finite values, ...).
	ErrInvalidCalibration = errors.New("invalid calibration")

	// ErrCalibrationNotFound is returned for a sensor index the store does not have.
	ErrCalibrationNotFound = errors.New("calibration not found")

	// ErrCalibrationSourceUnreadable is returned when the store could not be read or parsed.
	ErrCalibrationSourceUnreadable = errors.New("calibration source unreadable")
)

// A Record holds the geometric and optical parameters of one sensor
// channel of the rig. Angles are radians, lengths are millimetres,
// everything else is pixels. Records are values; nothing mutates one
// once it has been built.
type Record struct {
	SensorWidth  int // Size of the rectilinear output
	SensorHeight int

	PanoramaFullWidth  int // Size of the full stitched panorama the tile was cut from
	PanoramaFullHeight int // Raw value; has one extra row for wrapping, see EffectiveHeight

	TileOriginX int // Top left of the tile, within the full panorama
	TileOriginY int

	PrincipalPointX float64
	PrincipalPointY float64

	FocalLength float64 // mm
	PixelPitch  float64 // mm

	Azimuth   float64
	Heading   float64
	Elevation float64
	Roll      float64

	Pupil Pupil // Informational only; the projection ignores it
}

// Pupil describes where the entrance pupil of the sensor sits on the rig, in mm.
type Pupil struct {
	Radius  float64
	Height  float64
	Forward float64
}

// NewRecord validates r, and returns it if it is usable.
func NewRecord(r Record) (Record, error) {
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// EffectiveHeight is the panorama height the projection maps latitude
// onto; the stored height carries one extra row of wrap padding.
func (r Record) EffectiveHeight() int { return r.PanoramaFullHeight - 1 }

func (r Record) Validate() error {
	switch {
	case r.SensorWidth <= 0 || r.SensorHeight <= 0:
		return fmt.Errorf("%w: sensor size %dx%d", ErrInvalidCalibration, r.SensorWidth, r.SensorHeight)
	case r.PanoramaFullWidth <= 0 || r.PanoramaFullHeight <= 1:
		return fmt.Errorf("%w: panorama size %dx%d", ErrInvalidCalibration, r.PanoramaFullWidth, r.PanoramaFullHeight)
	case r.TileOriginX < 0 || r.TileOriginY < 0 || r.TileOriginX >= r.PanoramaFullWidth || r.TileOriginY >= r.PanoramaFullHeight:
		return fmt.Errorf("%w: tile origin (%d,%d) outside panorama %dx%d", ErrInvalidCalibration,
			r.TileOriginX, r.TileOriginY, r.PanoramaFullWidth, r.PanoramaFullHeight)
	case !emath.IsFinite(r.FocalLength) || r.FocalLength <= 0:
		return fmt.Errorf("%w: focal length %v", ErrInvalidCalibration, r.FocalLength)
	case !emath.IsFinite(r.PixelPitch) || r.PixelPitch <= 0:
		return fmt.Errorf("%w: pixel pitch %v", ErrInvalidCalibration, r.PixelPitch)
	}

	for _, v := range []float64{r.PrincipalPointX, r.PrincipalPointY, r.Azimuth, r.Heading, r.Elevation, r.Roll} {
		if !emath.IsFinite(v) {
			return fmt.Errorf("%w: non-finite value in %s", ErrInvalidCalibration, r)
		}
	}

	return nil
}

func (r Record) String() string {
	return fmt.Sprintf("Calib[sensor %dx%d, pano %dx%d @(%d,%d), pp(%.2f,%.2f), f=%.4fmm, pitch=%.5fmm, "+
		"az=%.3f hd=%.3f el=%.3f roll=%.3f deg]",
		r.SensorWidth, r.SensorHeight, r.PanoramaFullWidth, r.PanoramaFullHeight, r.TileOriginX, r.TileOriginY,
		r.PrincipalPointX, r.PrincipalPointY, r.FocalLength, r.PixelPitch,
		emath.Rad2Deg(r.Azimuth), emath.Rad2Deg(r.Heading), emath.Rad2Deg(r.Elevation), emath.Rad2Deg(r.Roll))
}
