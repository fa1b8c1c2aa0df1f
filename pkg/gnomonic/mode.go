package gnomonic

import (
	"errors"
	"fmt"
	"math"

	"github.com/abworrall/gnoproj/pkg/calib"
)

const (
	// Bounds on a user supplied (confocal) focal length, in mm.
	MinFocal = 0.05
	MaxFocal = 500.0
)

var (
	// ErrInvalidCalibration is the calib package's error, so callers can use either.
	ErrInvalidCalibration = calib.ErrInvalidCalibration

	ErrFocalOutOfRange      = errors.New("focal length out of range")
	ErrSourceBufferTooSmall = errors.New("source buffer too small")
)

// A Mode is either Sensor or Confocal. The two use different
// principal points, focal lengths and rotation compositions, so each
// carries only the fields it needs.
type Mode interface {
	isMode()
	String() string
}

// Sensor mode reproduces what the calibrated sensor saw: the
// calibrated principal point and focal length, and the four calibrated
// angles applied as separate rotations.
type Sensor struct {
	PrincipalPointX float64
	PrincipalPointY float64
	FocalLength     float64 // mm
}

// Confocal mode renders every sensor with the same focal length, about
// the centre of the image, looking along azimuth+heading+pi.
type Confocal struct {
	FocalLength float64 // mm
}

func (Sensor) isMode()   {}
func (Confocal) isMode() {}

func (m Sensor) String() string {
	return fmt.Sprintf("sensor[pp(%.2f,%.2f), f=%.4fmm]", m.PrincipalPointX, m.PrincipalPointY, m.FocalLength)
}
func (m Confocal) String() string { return fmt.Sprintf("confocal[f=%.4fmm]", m.FocalLength) }

// SensorMode takes the principal point and focal length from the record.
func SensorMode(rec calib.Record) Sensor {
	return Sensor{
		PrincipalPointX: rec.PrincipalPointX,
		PrincipalPointY: rec.PrincipalPointY,
		FocalLength:     rec.FocalLength,
	}
}

// ConfocalMode checks the focal length against [MinFocal, MaxFocal].
func ConfocalMode(focal float64) (Confocal, error) {
	if err := checkFocal(focal); err != nil {
		return Confocal{}, err
	}
	return Confocal{FocalLength: focal}, nil
}

// SelectMode picks Sensor mode when no focal length was supplied, and
// Confocal mode otherwise.
func SelectMode(rec calib.Record, userFocal *float64) (Mode, error) {
	if userFocal == nil {
		return SensorMode(rec), nil
	}
	return ConfocalMode(*userFocal)
}

func checkFocal(focal float64) error {
	if math.IsNaN(focal) || focal < MinFocal || focal > MaxFocal {
		return fmt.Errorf("%w: %g mm is outside [%g, %g] mm", ErrFocalOutOfRange, focal, MinFocal, MaxFocal)
	}
	return nil
}
