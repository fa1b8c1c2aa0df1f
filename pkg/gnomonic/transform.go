package gnomonic

import (
	"fmt"
	"math"

	"github.com/abworrall/gnoproj/pkg/calib"
	"github.com/abworrall/gnoproj/pkg/emath"
)

// A Mapper maps a pixel of the rectilinear (sensor) image to the point
// of the equirectangular panorama that the pixel sees.
//
// The sensor frame has X to the right, Y down and Z along the optical
// axis. The panorama frame uses the same axes; longitude is measured
// from +Z towards +X and maps onto [0, PanoramaFullWidth), latitude
// goes from -pi/2 (up, row 0) to +pi/2 (down, the last real row).
type Mapper struct {
	Rotation emath.Mat3 // sensor frame -> panorama frame

	cx, cy  float64 // optical centre, px
	focalPx float64 // focal length in pixels

	panW, panH       float64 // panH excludes the wrap padding row
	originX, originY float64
}

// NewMapper validates the record and the mode, and precomputes the
// rotation for that mode.
func NewMapper(rec calib.Record, mode Mode) (*Mapper, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	m := Mapper{
		panW:    float64(rec.PanoramaFullWidth),
		panH:    float64(rec.EffectiveHeight()),
		originX: float64(rec.TileOriginX),
		originY: float64(rec.TileOriginY),
	}

	switch mode := mode.(type) {
	case Sensor:
		if !emath.IsFinite(mode.FocalLength) || mode.FocalLength <= 0 {
			return nil, fmt.Errorf("%w: sensor focal length %v", ErrInvalidCalibration, mode.FocalLength)
		}
		m.cx, m.cy = mode.PrincipalPointX, mode.PrincipalPointY
		m.focalPx = mode.FocalLength / rec.PixelPitch
		m.Rotation = SensorRotation(rec)

	case Confocal:
		if err := checkFocal(mode.FocalLength); err != nil {
			return nil, err
		}
		m.cx = float64(rec.SensorWidth-1) / 2.0
		m.cy = float64(rec.SensorHeight-1) / 2.0
		m.focalPx = mode.FocalLength / rec.PixelPitch
		m.Rotation = ConfocalRotation(rec)

	default:
		return nil, fmt.Errorf("unknown projection mode %v", mode)
	}

	return &m, nil
}

// SensorRotation applies the four calibrated angles as separate
// rotations: roll first, then azimuth, elevation and finally heading.
func SensorRotation(rec calib.Record) emath.Mat3 {
	// Remember they compose back to front - rightmost operations performed first
	return emath.Compose(
		emath.RotY(rec.Heading),
		emath.RotX(rec.Elevation),
		emath.RotY(rec.Azimuth),
		emath.RotZ(rec.Roll),
	)
}

// ConfocalRotation folds azimuth and heading into one yaw, turned by
// half a revolution, then applies elevation and roll.
func ConfocalRotation(rec calib.Record) emath.Mat3 {
	return emath.Compose(
		emath.RotY(rec.Azimuth+rec.Heading+math.Pi),
		emath.RotX(rec.Elevation),
		emath.RotZ(rec.Roll),
	)
}

func (m *Mapper) String() string {
	return fmt.Sprintf("Mapper[c(%.2f,%.2f), f=%.2fpx, pano %.0fx%.0f @(%.0f,%.0f)]",
		m.cx, m.cy, m.focalPx, m.panW, m.panH, m.originX, m.originY)
}

// Ray is the unit vector, in the panorama frame, seen by sensor pixel (u,v).
func (m *Mapper) Ray(u, v float64) emath.Vec3 {
	ray := emath.Vec3{u - m.cx, v - m.cy, m.focalPx}.Normalize()
	return m.Rotation.Apply(ray)
}

// LonLat returns the longitude in [0, 2pi) and latitude in [-pi/2, pi/2]
// seen by sensor pixel (u,v).
func (m *Mapper) LonLat(u, v float64) (float64, float64) {
	r := m.Ray(u, v)
	lon := emath.Mod(math.Atan2(r[0], r[2]), 2*math.Pi)
	lat := math.Asin(emath.Clamp(r[1], -1, 1))
	return lon, lat
}

// Panorama returns the fractional coordinate in the full panorama seen
// by sensor pixel (u,v). x is in [0, PanoramaFullWidth).
func (m *Mapper) Panorama(u, v float64) (float64, float64) {
	lon, lat := m.LonLat(u, v)
	x := emath.Mod(lon/(2*math.Pi)*m.panW, m.panW)
	y := (lat/math.Pi + 0.5) * m.panH
	return x, y
}

// Tile returns the coordinate relative to a tile tileWidth pixels wide,
// cut from the panorama at the record's tile origin. Columns are taken
// modulo the panorama width, picking whichever copy is nearest the tile,
// so a tile that straddles the seam still sees contiguous coordinates.
func (m *Mapper) Tile(u, v float64, tileWidth int) (float64, float64) {
	x, y := m.Panorama(u, v)
	return m.tileColumn(x, float64(tileWidth)), y - m.originY
}

func (m *Mapper) tileColumn(x, tileWidth float64) float64 {
	xt := emath.Mod(x-m.originX, m.panW)
	if tileWidth < m.panW && xt >= tileWidth+(m.panW-tileWidth)/2 {
		xt -= m.panW
	}
	return xt
}

// MapCoordinates returns, for every pixel of the sensor image, the
// panorama column and row it samples. Useful for eyeballing a calibration.
func MapCoordinates(rec calib.Record, mode Mode) (emath.FloatGrid, emath.FloatGrid, error) {
	m, err := NewMapper(rec, mode)
	if err != nil {
		return emath.FloatGrid{}, emath.FloatGrid{}, err
	}

	xs := emath.NewFloatGrid(rec.SensorWidth, rec.SensorHeight)
	ys := emath.NewFloatGrid(rec.SensorWidth, rec.SensorHeight)
	for v := 0; v < rec.SensorHeight; v++ {
		for u := 0; u < rec.SensorWidth; u++ {
			x, y := m.Panorama(float64(u), float64(v))
			xs.Set(u, v, x)
			ys.Set(u, v, y)
		}
	}

	return xs, ys, nil
}
