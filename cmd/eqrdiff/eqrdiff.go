package main

import (
	"flag"
	"log"

	"github.com/abworrall/gnoproj/pkg/imgdiff"
	"github.com/abworrall/gnoproj/pkg/imgio"
)

var (
	fDiffImage string
	fMaxMean   float64
)

func init() {
	flag.StringVar(&fDiffImage, "o", "", "if set, write a PNG of the per-pixel differences here")
	flag.Float64Var(&fMaxMean, "maxmean", 0, "if >0, fail when the mean abs difference exceeds this")
	flag.Parse()
}

// eqrdiff compares two images (usually the same tile, rectified two
// different ways) and prints how much they differ.
func main() {
	if flag.NArg() != 2 {
		log.Fatal("usage: eqrdiff [-o diff.png] [-maxmean N] a.tiff b.tiff")
	}

	a, err := imgio.Decode(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	b, err := imgio.Decode(flag.Arg(1))
	if err != nil {
		log.Fatal(err)
	}

	r, err := imgdiff.Compare(a, b)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("%s vs %s: %s\n", flag.Arg(0), flag.Arg(1), r)

	if fDiffImage != "" {
		if err := r.WriteDiffImage(fDiffImage); err != nil {
			log.Fatal(err)
		}
		log.Printf("diff image written '%s'\n", fDiffImage)
	}

	if err := r.Check(fMaxMean); err != nil {
		log.Fatal(err)
	}
}
