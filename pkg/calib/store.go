package calib

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/abworrall/gnoproj/pkg/emath"
)

/* Example calibration file, at <mountpoint>/<mac>/calibration.yaml

camera: eyesis4pi
channels:
  - sensor_width: 2592
    sensor_height: 1936
    image_full_width: 14264
    image_full_length: 7133
    x_position: 12880
    y_position: 2456
    px0: 1296.31
    py0: 968.12
    focal_length: 4.5341
    pixel_size: 2.2
    azimuth: -1.9143
    heading: 0.5207
    elevation: -0.3571
    roll: 90.4378
    radius: 40.9
    height: 0.0
    entrance_pupil_forward: 15.1

Angles are in degrees and pixel_size in micrometres, which is how the
calibration tooling writes them out; Lookup converts them.

*/

// A Store hands out calibration records by sensor index.
type Store interface {
	Lookup(sensorIndex int) (Record, error)
	Channels() int
}

// A Locator says where to find the calibration for one camera: the MAC
// address of the camera, and the mount point of the calibration data.
type Locator struct {
	MAC        string
	MountPoint string
}

// NormalizedMAC lowercases the address and uses ':' separators.
func (l Locator) NormalizedMAC() string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(l.MAC)), "-", ":")
}

func (l Locator) Path() string {
	return filepath.Join(l.MountPoint, l.NormalizedMAC(), "calibration.yaml")
}

func (l Locator) String() string { return fmt.Sprintf("%s@%s", l.NormalizedMAC(), l.MountPoint) }

// ChannelData is one channel as it appears in the calibration file.
type ChannelData struct {
	SensorWidth     int `yaml:"sensor_width"`
	SensorHeight    int `yaml:"sensor_height"`
	ImageFullWidth  int `yaml:"image_full_width"`
	ImageFullLength int `yaml:"image_full_length"`
	XPosition       int `yaml:"x_position"`
	YPosition       int `yaml:"y_position"`

	Px0         float64 `yaml:"px0"`
	Py0         float64 `yaml:"py0"`
	FocalLength float64 `yaml:"focal_length"` // mm
	PixelSize   float64 `yaml:"pixel_size"`   // um

	Azimuth   float64 `yaml:"azimuth"` // degrees, all four
	Heading   float64 `yaml:"heading"`
	Elevation float64 `yaml:"elevation"`
	Roll      float64 `yaml:"roll"`

	Radius               float64 `yaml:"radius"`
	Height               float64 `yaml:"height"`
	EntrancePupilForward float64 `yaml:"entrance_pupil_forward"`
}

// ToRecord converts the file's units into the record's, and validates.
func (cd ChannelData) ToRecord() (Record, error) {
	return NewRecord(Record{
		SensorWidth:        cd.SensorWidth,
		SensorHeight:       cd.SensorHeight,
		PanoramaFullWidth:  cd.ImageFullWidth,
		PanoramaFullHeight: cd.ImageFullLength,
		TileOriginX:        cd.XPosition,
		TileOriginY:        cd.YPosition,
		PrincipalPointX:    cd.Px0,
		PrincipalPointY:    cd.Py0,
		FocalLength:        cd.FocalLength,
		PixelPitch:         0.001 * cd.PixelSize,
		Azimuth:            emath.Deg2Rad(cd.Azimuth),
		Heading:            emath.Deg2Rad(cd.Heading),
		Elevation:          emath.Deg2Rad(cd.Elevation),
		Roll:               emath.Deg2Rad(cd.Roll),
		Pupil: Pupil{
			Radius:  cd.Radius,
			Height:  cd.Height,
			Forward: cd.EntrancePupilForward,
		},
	})
}

// YAMLStore is a Store backed by a single YAML calibration file.
type YAMLStore struct {
	Camera   string        `yaml:"camera"`
	Channel  []ChannelData `yaml:"channels"`
	Filename string        `yaml:"-"`
}

// OpenYAMLStore loads the calibration file that the locator points at.
func OpenYAMLStore(loc Locator) (*YAMLStore, error) {
	if loc.MAC == "" {
		return nil, fmt.Errorf("%w: no MAC address given", ErrCalibrationSourceUnreadable)
	}
	return LoadYAMLStore(loc.Path())
}

func LoadYAMLStore(filename string) (*YAMLStore, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: read '%s': %v", ErrCalibrationSourceUnreadable, filename, err)
	}
	return NewYAMLStore(contents, filename)
}

func NewYAMLStore(b []byte, filename string) (*YAMLStore, error) {
	s := YAMLStore{}
	if err := yaml.UnmarshalStrict(b, &s); err != nil {
		return nil, fmt.Errorf("%w: parse '%s': %v", ErrCalibrationSourceUnreadable, filename, err)
	}
	if len(s.Channel) == 0 {
		return nil, fmt.Errorf("%w: '%s' lists no channels", ErrCalibrationSourceUnreadable, filename)
	}
	s.Filename = filename
	return &s, nil
}

func (s *YAMLStore) Channels() int { return len(s.Channel) }

func (s *YAMLStore) Lookup(sensorIndex int) (Record, error) {
	if sensorIndex < 0 || sensorIndex >= len(s.Channel) {
		return Record{}, fmt.Errorf("%w: sensor index %d out of range [0,%d) in '%s'",
			ErrCalibrationNotFound, sensorIndex, len(s.Channel), s.Filename)
	}
	r, err := s.Channel[sensorIndex].ToRecord()
	if err != nil {
		return Record{}, fmt.Errorf("channel %d in '%s': %w", sensorIndex, s.Filename, err)
	}
	return r, nil
}

func (s *YAMLStore) AsYaml() string {
	b, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Sprintf("# can't marshal calibration yaml: %v\n", err)
	}
	return string(b)
}

// Records is an in-memory Store, handy when the records come from somewhere other than a file.
type Records []Record

func (rs Records) Channels() int { return len(rs) }

func (rs Records) Lookup(sensorIndex int) (Record, error) {
	if sensorIndex < 0 || sensorIndex >= len(rs) {
		return Record{}, fmt.Errorf("%w: sensor index %d out of range [0,%d)", ErrCalibrationNotFound, sensorIndex, len(rs))
	}
	return NewRecord(rs[sensorIndex])
}
