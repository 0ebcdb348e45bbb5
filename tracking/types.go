package tracking

import (
	"potholepatrol/gps"
)

// LocationEntry is the recorded position of one qualifying detection.
type LocationEntry struct {
	gps.Position
	Frame      int     // zero-based index of the frame the detection came from
	Confidence float64 // detection confidence, 0..1
	ClassName  string
}

// LocationLog is the ordered, append-only record of qualifying detections.
// Several entries may share a position when one frame has several qualifying
// detections.
type LocationLog struct {
	entries []LocationEntry
}

// NewLocationLog creates an empty log.
func NewLocationLog() *LocationLog {
	return &LocationLog{}
}

// Append records one entry at the end of the log.
func (l *LocationLog) Append(e LocationEntry) {
	l.entries = append(l.entries, e)
}

// Len returns the number of recorded entries.
func (l *LocationLog) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the entries in insertion order.
func (l *LocationLog) Entries() []LocationEntry {
	out := make([]LocationEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// FramesWithDetections returns how many distinct frames contributed entries.
func (l *LocationLog) FramesWithDetections() int {
	seen := make(map[int]struct{})
	for _, e := range l.entries {
		seen[e.Frame] = struct{}{}
	}
	return len(seen)
}
