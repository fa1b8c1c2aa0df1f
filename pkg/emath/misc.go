package emath

import "math"

// Some functions that only operate on basic types, that are useful

// https://www.sjbrown.co.uk/posts/gamma-correct-rendering/ - "linear RGB to sRGB"
// `f` is assumed to be in the range [0,1]
func GammaExpand_F64(f float64) float64 {
	if f <= 0.0031308 {
		return 12.92 * f
	}
	return 1.055*math.Pow(f, 1.0/2.4) - 0.055
}

func Deg2Rad(deg float64) float64 { return deg * math.Pi / 180.0 }
func Rad2Deg(rad float64) float64 { return rad * 180.0 / math.Pi }

// Mod is a floored modulus; the result is always in [0, m) for m > 0.
func Mod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	if r >= m { // -tiny + m can round up to m
		r = 0
	}
	return r
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	} else if v > hi {
		return hi
	}
	return v
}

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	} else if v > hi {
		return hi
	}
	return v
}

// WrapInt is the integer flavour of Mod.
func WrapInt(v, m int) int {
	v %= m
	if v < 0 {
		v += m
	}
	return v
}

// IsFinite is false for NaN and +/-Inf.
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
