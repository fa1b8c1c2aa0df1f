package imgio

import (
	"fmt"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Exif holds the bits of the EXIF metadata we care about.
type Exif struct {
	FocalLength float64 // mm, 0 if absent
	Time        time.Time
}

func (e Exif) String() string {
	return fmt.Sprintf("Exif[f=%.4fmm, %s]", e.FocalLength, e.Time.Format(time.RFC3339))
}

// ReadExif pulls the focal length and capture time out of an image
// file. The focal length is required; the time is best effort.
func ReadExif(filename string) (Exif, error) {
	e := Exif{}

	reader, err := os.Open(filename)
	if err != nil {
		return e, fmt.Errorf("open+r exif '%s': %v", filename, err)
	}
	defer reader.Close()

	ex, err := exif.Decode(reader)
	if err != nil {
		return e, fmt.Errorf("exif parsing '%s': %v", filename, err)
	}

	if tag, err := ex.Get(exif.FocalLength); err != nil {
		return e, fmt.Errorf("exif FocalLength '%s': %v", filename, err)
	} else if num, denom, err := tag.Rat2(0); err != nil {
		return e, fmt.Errorf("exif FocalLength '%s': %v", filename, err)
	} else if denom == 0 {
		return e, fmt.Errorf("exif FocalLength '%s': bad value '%d/%d'", filename, num, denom)
	} else {
		e.FocalLength = float64(num) / float64(denom)
	}

	if t, err := ex.DateTime(); err == nil {
		e.Time = t
	}

	return e, nil
}
