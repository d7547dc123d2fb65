// Package geometry implements the planar helpers used for zone coverage and
// lane membership. All coordinates are normalized to the [0,1] frame space.
package geometry

import (
	"encoding/json"
	"fmt"
	"math"
)

// Point is a vertex in normalized frame coordinates.
// It is encoded in JSON as a two element array [x, y].
type Point struct {
	X, Y float64
}

// MarshalJSON encodes the point as [x, y].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON decodes a [x, y] pair.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("point must be an [x, y] array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("point must have exactly 2 coordinates, got %d", len(pair))
	}
	p.X, p.Y = pair[0], pair[1]
	return nil
}

// InUnitRange reports whether both coordinates are within [0,1].
func (p Point) InUnitRange() bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

// Box is an axis-aligned rectangle.
type Box struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns the horizontal extent, never negative.
func (b Box) Width() float64 { return math.Max(0, b.MaxX-b.MinX) }

// Height returns the vertical extent, never negative.
func (b Box) Height() float64 { return math.Max(0, b.MaxY-b.MinY) }

// Area returns Width * Height.
func (b Box) Area() float64 { return b.Width() * b.Height() }

// Empty reports whether the box has no area.
func (b Box) Empty() bool { return b.Width() == 0 || b.Height() == 0 }

// Center returns the midpoint of the box.
func (b Box) Center() Point {
	return Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

// PolygonArea returns the absolute area of a simple polygon using the
// shoelace formula. Fewer than three points yield 0.
func PolygonArea(points []Point) float64 {
	n := len(points)
	if n < 3 {
		return 0
	}

	var sum float64
	for i := range n {
		j := (i + 1) % n
		sum += points[i].X*points[j].Y - points[j].X*points[i].Y
	}
	return math.Abs(sum) / 2
}

// PolygonBounds returns the axis-aligned bounds of the points.
// An empty slice yields the zero Box.
func PolygonBounds(points []Point) Box {
	if len(points) == 0 {
		return Box{}
	}

	b := Box{MinX: points[0].X, MinY: points[0].Y, MaxX: points[0].X, MaxY: points[0].Y}
	for _, p := range points[1:] {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b
}

// PointInPolygon reports whether p lies inside polygon using even-odd ray
// casting towards +X. An edge is crossed when p.Y is in the half-open range
// (min(y1,y2), max(y1,y2)] and p.X is left of the edge; vertical edges count
// whenever p.X <= their x. Polygons with fewer than three points contain nothing.
func PointInPolygon(p Point, polygon []Point) bool {
	n := len(polygon)
	if n < 3 {
		return false
	}

	inside := false
	for i := range n {
		a := polygon[i]
		b := polygon[(i+1)%n]

		if p.Y <= math.Min(a.Y, b.Y) || p.Y > math.Max(a.Y, b.Y) {
			continue
		}
		if p.X > math.Max(a.X, b.X) {
			continue
		}

		if a.X == b.X {
			inside = !inside
			continue
		}

		// a.Y != b.Y here, the half-open interval excludes horizontal edges.
		xCross := (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y) + a.X
		if p.X <= xCross {
			inside = !inside
		}
	}
	return inside
}

// IntersectionArea returns the overlapping area of two boxes, 0 when they
// are disjoint or only touch.
func IntersectionArea(a, b Box) float64 {
	w := math.Min(a.MaxX, b.MaxX) - math.Max(a.MinX, b.MinX)
	h := math.Min(a.MaxY, b.MaxY) - math.Max(a.MinY, b.MinY)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Clamp01 limits v to [0,1].
func Clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
