// Package gps simulates the vehicle position used to geotag detections.
// There is no receiver behind it: the position starts at a configured point
// and moves by a fixed step every processed frame.
package gps

import (
	"fmt"

	geo "github.com/kellydunn/golang-geo"
)

// Position is a latitude/longitude pair in decimal degrees.
type Position struct {
	Lat float64
	Lon float64
}

// Delta is the per-frame step added to a Position.
type Delta struct {
	Lat float64
	Lon float64
}

// String formats the position the way the console log prints it.
func (p Position) String() string {
	return fmt.Sprintf("Lat: %.5f, Lon: %.5f", p.Lat, p.Lon)
}

// Point converts the position to a golang-geo point.
func (p Position) Point() *geo.Point {
	return geo.NewPoint(p.Lat, p.Lon)
}

// Advance returns p moved by d. Coordinates are not wrapped or clamped, so a
// long run may drift outside valid geographic ranges.
func Advance(p Position, d Delta) Position {
	return Position{
		Lat: p.Lat + d.Lat,
		Lon: p.Lon + d.Lon,
	}
}

// Distance returns the great circle distance between a and b in kilometres.
func Distance(a, b Position) float64 {
	return a.Point().GreatCircleDistance(b.Point())
}

// Simulator stands in for a positioning sensor.
type Simulator struct {
	start   Position
	delta   Delta
	current Position
	steps   int
}

// NewSimulator creates a simulator positioned at start.
func NewSimulator(start Position, delta Delta) *Simulator {
	return &Simulator{
		start:   start,
		delta:   delta,
		current: start,
	}
}

// Current returns the simulated position.
func (s *Simulator) Current() Position {
	return s.current
}

// Advance moves the simulated position by one step and returns it.
func (s *Simulator) Advance() Position {
	s.current = Advance(s.current, s.delta)
	s.steps++
	return s.current
}

// Steps returns how many times Advance has been called.
func (s *Simulator) Steps() int {
	return s.steps
}

// Start returns the position the simulator was created with.
func (s *Simulator) Start() Position {
	return s.start
}

// Delta returns the per-step increment.
func (s *Simulator) Delta() Delta {
	return s.delta
}
