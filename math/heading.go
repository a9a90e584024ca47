// math/heading.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

// HeadingDifference returns the minimum difference between two
// headings. (i.e., the result is always in the range [0,180].)
func HeadingDifference(a float32, b float32) float32 {
	var d float32
	if a > b {
		d = a - b
	} else {
		d = b - a
	}
	if d > 180 {
		d = 360 - d
	}
	return d
}

// Reduces it to [0,360).
func NormalizeHeading(h float32) float32 {
	h = Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

func OppositeHeading(h float32) float32 {
	return NormalizeHeading(h + 180)
}
