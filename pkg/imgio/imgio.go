package imgio

// Decoding and encoding of the tiles and the rectified images, chosen by filename extension.

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/abworrall/gnoproj/pkg/gnomonic"
)

var Formats = []string{"tiff", "png", "jpeg", "bmp", "hdr"}

// Format maps a filename, or a bare extension, onto one of Formats.
func Format(filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		ext = strings.ToLower(strings.TrimPrefix(filename, "."))
	}

	switch ext {
	case "tif", "tiff":
		return "tiff", nil
	case "png":
		return "png", nil
	case "jpg", "jpeg":
		return "jpeg", nil
	case "bmp":
		return "bmp", nil
	case "hdr":
		return "hdr", nil
	}
	return "", fmt.Errorf("no image format for '%s', wanted one of %v", filename, Formats)
}

// Ext is the extension we write files of the given format with.
func Ext(format string) string {
	switch format {
	case "tiff":
		return ".tiff"
	case "jpeg":
		return ".jpg"
	}
	return "." + format
}

// Decode loads an image file into a 3-channel buffer.
func Decode(filename string) (*gnomonic.ImageBuffer, error) {
	format, err := Format(filename)
	if err != nil {
		return nil, err
	}

	reader, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open+r img '%s': %v", filename, err)
	}
	defer reader.Close()

	var img image.Image
	switch format {
	case "tiff":
		img, err = tiff.Decode(reader)
	case "png":
		img, err = png.Decode(reader)
	case "jpeg":
		img, err = jpeg.Decode(reader)
	case "bmp":
		img, err = bmp.Decode(reader)
	default:
		return nil, fmt.Errorf("decode '%s': can't read %s files", filename, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%s loading '%s': %v", format, filename, err)
	}

	return gnomonic.FromImage(img), nil
}

// Encode writes the buffer out, in the format implied by the filename.
func Encode(buf *gnomonic.ImageBuffer, filename string) error {
	format, err := Format(filename)
	if err != nil {
		return err
	}

	writer, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	}

	switch format {
	case "tiff":
		err = tiff.Encode(writer, buf, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case "png":
		err = png.Encode(writer, buf)
	case "jpeg":
		err = jpeg.Encode(writer, buf, &jpeg.Options{Quality: 95})
	case "bmp":
		err = bmp.Encode(writer, buf)
	case "hdr":
		err = rgbe.Encode(writer, hdrBuffer{buf})
	}

	if cerr := writer.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(filename) // no half-written outputs
		return fmt.Errorf("%s writing '%s': %v", format, filename, err)
	}
	return nil
}

func WritePNG(img image.Image, filename string) error {
	if writer, err := os.Create(filename); err != nil {
		return fmt.Errorf("open+w '%s': %v", filename, err)
	} else {
		defer writer.Close()
		return png.Encode(writer, img)
	}
}

// hdrBuffer presents an 8-bit buffer as linear floats in [0,1], so it
// can go through the radiance encoder.
type hdrBuffer struct {
	*gnomonic.ImageBuffer
}

var _ hdr.Image = hdrBuffer{}

// Implement golang's image.Image interface (the rest is embedded)
func (b hdrBuffer) ColorModel() color.Model { return hdrcolor.RGBModel }
func (b hdrBuffer) At(x, y int) color.Color { return b.HDRAt(x, y) }

// Implement hdr.Image interface
func (b hdrBuffer) Size() int { return b.Width * b.Height }
func (b hdrBuffer) HDRAt(x, y int) hdrcolor.Color {
	r, g, bl, _ := b.ImageBuffer.At(x, y).RGBA()
	return hdrcolor.RGB{R: float64(r) / 0xffff, G: float64(g) / 0xffff, B: float64(bl) / 0xffff}
}
