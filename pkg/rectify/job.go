package rectify

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codahale/hdrhistogram"

	"github.com/abworrall/gnoproj/pkg/calib"
	"github.com/abworrall/gnoproj/pkg/gnomonic"
	"github.com/abworrall/gnoproj/pkg/imgio"
)

// ErrOutputExists is returned when the rectified image is already on
// disk, and we weren't asked to overwrite it.
var ErrOutputExists = errors.New("output already exists")

// A Job is a batch of tiles to rectify with one configuration, against
// one camera's calibration.
type Job struct {
	Config

	Store calib.Store // If nil, opened from Config.Locator() on first use
	Files []string

	timings *hdrhistogram.Histogram // microseconds per projection
}

func NewJob() *Job {
	return &Job{
		Config:  NewConfig(),
		timings: newTimings(),
	}
}

func newTimings() *hdrhistogram.Histogram {
	return hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3)
}

func (j *Job) LoadFilesAndDirs(args ...string) error {
	for _, arg := range args {
		item, err := os.Stat(arg)

		switch {

		case err != nil:
			return fmt.Errorf("load %s: %v", arg, err)

		case item.IsDir():
			// Is a dir, recurse into contents
			contents, err := os.ReadDir(arg)
			if err != nil {
				return fmt.Errorf("readdir %s: %v", arg, err)
			}
			for _, content := range contents {
				if err := j.LoadFilesAndDirs(filepath.Join(arg, content.Name())); err != nil {
					return fmt.Errorf("load %s: %v", arg, err)
				}
			}

		default: // is a file, load it
			if err := j.loadFile(arg); err != nil {
				return fmt.Errorf("loadfile %s: %v", arg, err)
			}
		}
	}

	return nil
}

func (j *Job) loadFile(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {

	case ".yaml", ".yml":
		cfg, err := loadConfig(filename)
		if err != nil {
			return fmt.Errorf("Loading %s as config YAML failed: %v", filename, err)
		}
		j.Config = cfg
		Logf("Loaded base configuration from %s\n", filename)

	case ".tif", ".tiff", ".jpg", ".jpeg", ".png", ".bmp":
		if IsOutput(filename) {
			return nil
		}
		j.Files = append(j.Files, filename)

	default:
		if j.Verbosity > 1 {
			Logf("Ignoring %s\n", filename)
		}
	}

	return nil
}

func (j *Job) store() (calib.Store, error) {
	if j.Store == nil {
		s, err := calib.OpenYAMLStore(j.Locator())
		if err != nil {
			return nil, err
		}
		if j.Verbosity > 0 {
			Logf("Loaded calibration for %s from %s (%d channels)\n", j.Locator(), s.Filename, s.Channels())
		}
		j.Store = s
	}
	return j.Store, nil
}

// OutputFilename is where ProcessFile writes the rectified image for a tile.
func (j *Job) OutputFilename(n Name) (string, error) {
	ext := ""
	if j.Format != "" {
		format, err := imgio.Format(j.Format)
		if err != nil {
			return "", err
		}
		ext = imgio.Ext(format)
	}
	return n.Output(j.OutputDir, j.Confocal(), ext), nil
}

func (j *Job) mode(filename string, rec calib.Record) (gnomonic.Mode, error) {
	var focal *float64

	if j.Focal != 0 {
		f := j.Focal
		focal = &f

	} else if j.ExifFocal {
		ex, err := imgio.ReadExif(filename)
		if err != nil {
			return nil, err
		}
		focal = &ex.FocalLength
	}

	return gnomonic.SelectMode(rec, focal)
}

// ProcessFile rectifies one tile, and returns the name of the file it wrote.
func (j *Job) ProcessFile(filename string) (string, error) {
	name, err := ParseName(filename)
	if err != nil {
		return "", err
	}

	outFilename, err := j.OutputFilename(name)
	if err != nil {
		return "", err
	}
	if !j.Overwrite {
		if _, err := os.Stat(outFilename); err == nil {
			return outFilename, fmt.Errorf("%w: '%s'", ErrOutputExists, outFilename)
		}
	}

	store, err := j.store()
	if err != nil {
		return "", err
	}
	rec, err := store.Lookup(name.Channel)
	if err != nil {
		return "", err
	}

	mode, err := j.mode(filename, rec)
	if err != nil {
		return "", fmt.Errorf("mode '%s': %w", filename, err)
	}
	kernel, err := j.GetKernel()
	if err != nil {
		return "", err
	}

	src, err := imgio.Decode(filename)
	if err != nil {
		return "", err
	}

	tStart := time.Now()
	dst, err := gnomonic.Project(src, rec, gnomonic.Request{Mode: mode, Kernel: kernel, Workers: j.Workers})
	if err != nil {
		return "", fmt.Errorf("project '%s': %w", filename, err)
	}
	elapsed := time.Since(tStart)
	if j.timings == nil {
		j.timings = newTimings()
	}
	j.timings.RecordValue(max(elapsed.Microseconds(), 1))

	if j.OutputDir != "" {
		if err := os.MkdirAll(j.OutputDir, 0755); err != nil {
			return "", fmt.Errorf("mkdir '%s': %v", j.OutputDir, err)
		}
	}
	if err := imgio.Encode(dst, outFilename); err != nil {
		return "", err
	}

	if j.DebugMaps {
		if err := writeDebugMaps(rec, mode, outFilename); err != nil {
			return outFilename, err
		}
	}

	if j.Verbosity > 0 {
		Logf("%s: %s %v, %s -> %s (%s)\n", name, mode, kernel, src, outFilename, elapsed)
	}
	if j.Verbosity > 1 {
		Logf("%s: %s\n", name, rec)
	}

	return outFilename, nil
}

// writeDebugMaps renders the panorama column and row that each sensor
// pixel samples, as two grayscale PNGs next to the output.
func writeDebugMaps(rec calib.Record, mode gnomonic.Mode, outFilename string) error {
	xs, ys, err := gnomonic.MapCoordinates(rec, mode)
	if err != nil {
		return err
	}

	stem := strings.TrimSuffix(outFilename, filepath.Ext(outFilename))
	if err := xs.ToImg(fmt.Sprintf("x: %s", xs.Stats()), stem+"-mapx.png"); err != nil {
		return fmt.Errorf("debug map x: %v", err)
	}
	if err := ys.ToImg(fmt.Sprintf("y: %s", ys.Stats()), stem+"-mapy.png"); err != nil {
		return fmt.Errorf("debug map y: %v", err)
	}
	return nil
}

// Summary says how a Run went.
type Summary struct {
	Processed int
	Skipped   int
	Failed    int

	Timings *hdrhistogram.Histogram // microseconds per projection
}

func (s Summary) String() string {
	str := fmt.Sprintf("%d processed, %d skipped, %d failed", s.Processed, s.Skipped, s.Failed)
	if s.Timings != nil && s.Timings.TotalCount() > 0 {
		ms := func(us int64) float64 { return float64(us) / 1000.0 }
		str += fmt.Sprintf("; projection ms: mean %.1f, p50 %.1f, p99 %.1f, max %.1f",
			s.Timings.Mean()/1000.0, ms(s.Timings.ValueAtQuantile(50)), ms(s.Timings.ValueAtQuantile(99)),
			ms(s.Timings.Max()))
	}
	return str
}

// Run processes every queued file. Outputs that already exist are
// skipped; other failures are logged, and the first one is returned
// once everything has been attempted.
func (j *Job) Run() (Summary, error) {
	if j.timings == nil {
		j.timings = newTimings()
	}
	s := Summary{Timings: j.timings}
	var firstErr error

	for _, filename := range j.Files {
		outFilename, err := j.ProcessFile(filename)

		switch {
		case err == nil:
			s.Processed++

		case errors.Is(err, ErrOutputExists):
			s.Skipped++
			if j.Verbosity > 0 {
				Logf("%s: skipping, %s already exists\n", filename, outFilename)
			}

		default:
			s.Failed++
			Logf("%s: %v\n", filename, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if firstErr != nil {
		return s, fmt.Errorf("%d of %d files failed, first: %w", s.Failed, len(j.Files), firstErr)
	}
	return s, nil
}
