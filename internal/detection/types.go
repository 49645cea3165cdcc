package detection

import (
	"image"
	"math"
)

// DefaultConfidence is the minimum model confidence a prediction needs to
// become a Detection when the caller does not choose a threshold.
const DefaultConfidence = 0.3

// Box is an axis-aligned rectangle in floating point pixel coordinates, as
// produced by a model or by the face heuristic before clamping.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns X2 - X1.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns Y2 - Y1.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// BoundingBox is a clamped rectangle in integer pixel coordinates.
//
// (X1, Y1) is the top-left corner (inclusive) and (X2, Y2) the bottom-right
// corner (exclusive).
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Rect converts the box to an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Empty reports whether the box covers no pixels. An inverted box is empty.
func (b BoundingBox) Empty() bool { return b.X1 >= b.X2 || b.Y1 >= b.Y2 }

// Width returns X2 - X1.
func (b BoundingBox) Width() int { return b.X2 - b.X1 }

// Height returns Y2 - Y1.
func (b BoundingBox) Height() int { return b.Y2 - b.Y1 }

// Detection is one face region found in an image.
//
// Number is the 1-based position of the detection in the order the model
// produced it. It is not sorted by confidence or position.
type Detection struct {
	BBox       BoundingBox `json:"bbox"`
	Confidence float64     `json:"confidence"`
	Number     int         `json:"number"`
}

// ClampBox clamps every coordinate of b into bounds and truncates to
// integer pixels.
func ClampBox(b Box, bounds image.Rectangle) BoundingBox {
	clamp := func(v float64, lo, hi int) int {
		v = math.Max(float64(lo), math.Min(float64(hi), v))
		return int(v)
	}
	return BoundingBox{
		X1: clamp(b.X1, bounds.Min.X, bounds.Max.X),
		Y1: clamp(b.Y1, bounds.Min.Y, bounds.Max.Y),
		X2: clamp(b.X2, bounds.Min.X, bounds.Max.X),
		Y2: clamp(b.Y2, bounds.Min.Y, bounds.Max.Y),
	}
}
