package gnomonic

import (
	"fmt"
	"image"
	"image/color"
)

// An ImageBuffer is a plain 8-bit raster: row major, with the channels
// of each pixel interleaved. It implements image.Image so the codecs
// can encode it as-is.
type ImageBuffer struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

func NewImageBuffer(w, h, channels int) *ImageBuffer {
	return &ImageBuffer{
		Width:    w,
		Height:   h,
		Channels: channels,
		Pix:      make([]uint8, w*h*channels),
	}
}

func (b *ImageBuffer) String() string {
	return fmt.Sprintf("ImageBuffer[%dx%dx%d]", b.Width, b.Height, b.Channels)
}

// Offset is the index of the first sample of pixel (x,y) in Pix.
func (b *ImageBuffer) Offset(x, y int) int { return (y*b.Width + x) * b.Channels }

// Row returns the samples of row y.
func (b *ImageBuffer) Row(y int) []uint8 {
	rowLen := b.Width * b.Channels
	return b.Pix[y*rowLen : (y+1)*rowLen]
}

// Fill sets every pixel to the given samples (one per channel).
func (b *ImageBuffer) Fill(samples ...uint8) {
	for i := 0; i < len(b.Pix); i += b.Channels {
		copy(b.Pix[i:i+b.Channels], samples)
	}
}

// Implement golang's image.Image interface
func (b *ImageBuffer) Bounds() image.Rectangle { return image.Rect(0, 0, b.Width, b.Height) }

func (b *ImageBuffer) ColorModel() color.Model {
	if b.Channels == 1 {
		return color.GrayModel
	}
	return color.RGBAModel
}

// At treats 1 channel as gray, 2 as gray+alpha, 3 as RGB and 4+ as RGBA.
func (b *ImageBuffer) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return color.RGBA{}
	}
	p := b.Pix[b.Offset(x, y) : b.Offset(x, y)+b.Channels]

	switch b.Channels {
	case 1:
		return color.Gray{p[0]}
	case 2:
		return color.NRGBA{p[0], p[0], p[0], p[1]}
	case 3:
		return color.RGBA{p[0], p[1], p[2], 0xFF}
	default:
		return color.NRGBA{p[0], p[1], p[2], p[3]}
	}
}

// FromImage copies any image.Image into a new 3-channel RGB buffer.
// Alpha is dropped.
func FromImage(img image.Image) *ImageBuffer {
	bounds := img.Bounds()
	buf := NewImageBuffer(bounds.Dx(), bounds.Dy(), 3)

	for y := 0; y < bounds.Dy(); y++ {
		row := buf.Row(y)
		for x := 0; x < bounds.Dx(); x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			row[3*x+0] = uint8(r >> 8)
			row[3*x+1] = uint8(g >> 8)
			row[3*x+2] = uint8(b >> 8)
		}
	}

	return buf
}

// checkSource returns an error unless the buffer is non-empty and Pix
// really holds Width*Height*Channels samples.
func (b *ImageBuffer) checkSource() error {
	if b == nil {
		return fmt.Errorf("%w: nil source", ErrSourceBufferTooSmall)
	}
	if b.Width <= 0 || b.Height <= 0 || b.Channels <= 0 {
		return fmt.Errorf("%w: empty source %s", ErrSourceBufferTooSmall, b)
	}
	if need := b.Width * b.Height * b.Channels; len(b.Pix) < need {
		return fmt.Errorf("%w: %s has %d samples, needs %d", ErrSourceBufferTooSmall, b, len(b.Pix), need)
	}
	return nil
}
