// Package geometry resolves where a frame overlay is drawn on a photo and
// how large it is, from the frame's declarative placement and the photo's
// pixel dimensions.
//
// A size of 100% or more is "edge-to-edge": the overlay is stretched to the
// photo's exact dimensions and drawn at the origin whatever its position.
// Below 100% the overlay keeps the photo's aspect ratio (frames are authored
// for the target aspect) and is anchored according to its position.
package geometry

import "math"

// Position names an anchor for an overlay smaller than the photo.
type Position string

const (
	Center      Position = "center"
	TopLeft     Position = "top-left"
	TopRight    Position = "top-right"
	BottomLeft  Position = "bottom-left"
	BottomRight Position = "bottom-right"
	Custom      Position = "custom"
)

// EdgeToEdge is the size percentage at and above which the overlay covers the photo.
const EdgeToEdge = 100

// Size limits accepted for Placement.Size.
const (
	MinSize = 1
	MaxSize = 200
)

// Placement is the geometric part of a frame descriptor.
type Placement struct {
	Position Position
	// X and Y are percentage offsets (0-100), used only by Custom.
	X, Y float64
	// Size is a percentage of the photo's dimensions.
	Size int
	// Width and Height are the nominal asset dimensions, used as the base
	// size when the photo dimensions are unknown.
	Width, Height int
}

// Size is a resolved pixel size.
type Size struct {
	Width, Height int
}

// Point is a resolved pixel offset from the photo's top-left corner.
type Point struct {
	X, Y int
}

// ValidPosition reports whether p is one of the known anchors.
func ValidPosition(p Position) bool {
	switch p {
	case Center, TopLeft, TopRight, BottomLeft, BottomRight, Custom:
		return true
	}
	return false
}

// IsEdgeToEdge reports whether the placement covers the whole photo.
func (p Placement) IsEdgeToEdge() bool {
	return p.Size >= EdgeToEdge
}

// ResolveSize returns the overlay size for a photo of photoWidth x photoHeight.
func ResolveSize(p Placement, photoWidth, photoHeight int) Size {
	if p.IsEdgeToEdge() {
		return Size{Width: photoWidth, Height: photoHeight}
	}

	scale := float64(p.Size) / 100

	if photoWidth <= 0 || photoHeight <= 0 {
		return Size{
			Width:  round(float64(p.Width) * scale),
			Height: round(float64(p.Height) * scale),
		}
	}

	aspect := float64(photoWidth) / float64(photoHeight)
	if photoWidth > photoHeight {
		w := float64(photoWidth) * scale
		return Size{Width: round(w), Height: round(w / aspect)}
	}
	h := float64(photoHeight) * scale
	return Size{Width: round(h * aspect), Height: round(h)}
}

// ResolvePosition returns the overlay's top-left corner on the photo.
// Custom placements may overflow the photo; every other anchor keeps the
// overlay inside it.
func ResolvePosition(p Placement, photoWidth, photoHeight int) Point {
	if p.IsEdgeToEdge() {
		return Point{}
	}

	size := ResolveSize(p, photoWidth, photoHeight)
	switch p.Position {
	case TopLeft:
		return Point{}
	case TopRight:
		return Point{X: photoWidth - size.Width}
	case BottomLeft:
		return Point{Y: photoHeight - size.Height}
	case BottomRight:
		return Point{X: photoWidth - size.Width, Y: photoHeight - size.Height}
	case Custom:
		return Point{
			X: round(p.X / 100 * float64(photoWidth)),
			Y: round(p.Y / 100 * float64(photoHeight)),
		}
	default:
		return Point{
			X: (photoWidth - size.Width) / 2,
			Y: (photoHeight - size.Height) / 2,
		}
	}
}

func round(v float64) int {
	return int(math.Round(v))
}
