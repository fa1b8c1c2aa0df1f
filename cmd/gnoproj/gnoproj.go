package main

import (
	"flag"
	"log"

	"github.com/abworrall/gnoproj/pkg/rectify"
)

var (
	fVerbosity  int
	fMAC        string
	fMountPoint string
	fFocal      float64
	fExifFocal  bool
	fKernel     string
	fOutputDir  string
	fFormat     string
	fWorkers    int
	fOverwrite  bool
	fDebugMaps  bool
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.StringVar(&fMAC, "mac", "", "MAC address of the camera, to find its calibration")
	flag.StringVar(&fMountPoint, "mount", "", "where the calibration data is mounted")
	flag.Float64Var(&fFocal, "focal", 0, "render all sensors confocally, at this focal length (mm)")
	flag.BoolVar(&fExifFocal, "exiffocal", false, "render confocally, at the focal length in each tile's EXIF")
	flag.StringVar(&fKernel, "kernel", "", "interpolation kernel: bicubic or bilinear")
	flag.StringVar(&fOutputDir, "o", "", "directory for output images (default: next to the input)")
	flag.StringVar(&fFormat, "format", "", "output image format: tiff, png, jpeg, bmp, hdr (default: same as input)")
	flag.IntVar(&fWorkers, "workers", 0, "goroutines per projection (default: one per CPU)")
	flag.BoolVar(&fOverwrite, "overwrite", false, "overwrite existing outputs, instead of skipping them")
	flag.BoolVar(&fDebugMaps, "debugmaps", false, "also write PNGs of the panorama coords each sensor pixel samples")
	flag.Parse()

	log.Printf("gnoproj starting\n")
}

func main() {
	job := rectify.NewJob()
	if err := job.LoadFilesAndDirs(flag.Args()...); err != nil {
		log.Fatal(err)
	}

	// Override the config file with command line args, if relevant
	if fVerbosity > 0 {
		job.Verbosity = fVerbosity
	}
	if fMAC != "" {
		job.MAC = fMAC
	}
	if fMountPoint != "" {
		job.MountPoint = fMountPoint
	}
	if fFocal != 0 {
		job.Focal = fFocal
	}
	if fExifFocal {
		job.ExifFocal = true
	}
	if fKernel != "" {
		job.Kernel = fKernel
	}
	if fOutputDir != "" {
		job.OutputDir = fOutputDir
	}
	if fFormat != "" {
		job.Format = fFormat
	}
	if fWorkers > 0 {
		job.Workers = fWorkers
	}
	if fOverwrite {
		job.Overwrite = true
	}
	if fDebugMaps {
		job.DebugMaps = true
	}

	if err := job.Validate(); err != nil {
		log.Fatal(err)
	}
	if len(job.Files) == 0 {
		log.Fatal("no tiles to rectify; pass some image files or directories")
	}

	if job.Verbosity > 0 {
		log.Printf("Final configuration:-\n\n%s\n", job.Config.AsYaml())
	}

	summary, err := job.Run()
	log.Printf("Done: %s\n", summary)
	if err != nil {
		log.Fatal(err)
	}
}
