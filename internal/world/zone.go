package world

import "math"

// Zone is a circular settlement region: a center position and a radius.
// Membership is Euclidean distance from the center.
type Zone struct {
	Name   string  `json:"name"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Contains reports whether the position lies within the zone.
func (z Zone) Contains(x, y float64) bool {
	dx := x - z.X
	dy := y - z.Y
	return math.Sqrt(dx*dx+dy*dy) <= z.Radius
}
