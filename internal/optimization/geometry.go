// Package optimization holds the pieces shared by the segmentation and
// routing engines: planar geometry and the engine error type.
package optimization

import "math"

// Point is a position in a two dimensional Euclidean plane.
type Point struct {
	X float64
	Y float64
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Lerp returns w*a + (1-w)*b, the point a fraction w of the way from b to a.
func Lerp(a, b Point, w float64) Point {
	return Point{
		X: w*a.X + (1-w)*b.X,
		Y: w*a.Y + (1-w)*b.Y,
	}
}
