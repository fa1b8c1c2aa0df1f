package rectify

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/abworrall/gnoproj/pkg/calib"
	"github.com/abworrall/gnoproj/pkg/gnomonic"
	"github.com/abworrall/gnoproj/pkg/imgio"
)

type Config struct {
	Verbosity int

	MAC        string // Which camera; picks the calibration file under MountPoint
	MountPoint string

	Focal     float64 // mm. If non-zero, render every sensor confocally at this focal length
	ExifFocal bool    // Take the confocal focal length from each tile's EXIF instead

	Kernel  string // "bicubic" or "bilinear"
	Workers int    // Goroutines per projection; 0 means one per CPU

	OutputDir string // Defaults to next to the input
	Format    string // Output format; defaults to the input's
	Overwrite bool

	DebugMaps bool // Also write out PNGs of the source coords each sensor pixel maps to
}

func NewConfig() Config {
	return Config{
		Kernel: gnomonic.Bicubic.String(),
	}
}

func newConfigFromYaml(b []byte) (Config, error) {
	c := NewConfig()
	err := yaml.UnmarshalStrict(b, &c)
	return c, err
}

func loadConfig(filename string) (Config, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("config read %s: %v", filename, err)
	}

	return newConfigFromYaml(contents)
}

func (c Config) AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Fatalf("Can't marshal config yaml: %v\n", err)
	}
	return string(b)
}

func (c Config) Locator() calib.Locator {
	return calib.Locator{MAC: c.MAC, MountPoint: c.MountPoint}
}

func (c Config) GetKernel() (gnomonic.Kernel, error) {
	return gnomonic.ParseKernel(c.Kernel)
}

// Validate catches bad settings before any files get touched.
func (c Config) Validate() error {
	if _, err := c.GetKernel(); err != nil {
		return err
	}
	if c.Focal != 0 {
		if c.ExifFocal {
			return fmt.Errorf("config: can't have both a fixed focal length and EXIF focal lengths")
		}
		if _, err := gnomonic.ConfocalMode(c.Focal); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if c.Format != "" {
		if _, err := imgio.Format(c.Format); err != nil {
			return fmt.Errorf("config: %v", err)
		}
	}
	return nil
}

func (c Config) Confocal() bool { return c.Focal != 0 || c.ExifFocal }
