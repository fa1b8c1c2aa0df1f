package rectify

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// A Name is what we learn from the filename of a panorama tile. Tiles
// are named <sec>_<usec>-<channel>[-anything].<ext>, e.g.
// 1334548375_590000-7-EQR.jpg is channel 7 of the frame taken at
// 1334548375.590000.
type Name struct {
	Dir       string
	Timestamp string // <sec>_<usec>
	Channel   int    // Index of the sensor on the rig
	Ext       string // without the dot
}

func ParseName(filename string) (Name, error) {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	n := Name{
		Dir: filepath.Dir(filename),
		Ext: strings.TrimPrefix(ext, "."),
	}

	bits := strings.Split(stem, "-")
	if len(bits) < 2 {
		return n, fmt.Errorf("parse name '%s': want <sec>_<usec>-<channel>", filename)
	}

	ts := strings.Split(bits[0], "_")
	if len(ts) != 2 || !allDigits(ts[0]) || !allDigits(ts[1]) {
		return n, fmt.Errorf("parse name '%s': bad timestamp '%s'", filename, bits[0])
	}
	n.Timestamp = bits[0]

	if !allDigits(bits[1]) {
		return n, fmt.Errorf("parse name '%s': bad channel '%s'", filename, bits[1])
	}
	channel, err := strconv.Atoi(bits[1])
	if err != nil {
		return n, fmt.Errorf("parse name '%s': channel: %v", filename, err)
	}
	n.Channel = channel

	return n, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (n Name) String() string { return fmt.Sprintf("%s-%d", n.Timestamp, n.Channel) }

// Suffix is what tells sensor and confocal outputs apart.
func Suffix(confocal bool) string {
	if confocal {
		return "RECT-CONFOC"
	}
	return "RECT-SENSOR"
}

// Output is the name of the rectified image for this tile. An empty dir
// means next to the input, an empty ext means the input's extension.
func (n Name) Output(dir string, confocal bool, ext string) string {
	if dir == "" {
		dir = n.Dir
	}
	if ext == "" {
		ext = n.Ext
	}
	ext = strings.TrimPrefix(ext, ".")

	return filepath.Join(dir, fmt.Sprintf("%s-%d-%s.%s", n.Timestamp, n.Channel, Suffix(confocal), ext))
}

// IsOutput spots files we wrote ourselves, so a rerun over a directory
// does not try to rectify its own results. That includes the debug maps,
// which carry the suffix in the middle of their names.
func IsOutput(filename string) bool {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return strings.Contains(stem, "-"+Suffix(true)) || strings.Contains(stem, "-"+Suffix(false))
}
