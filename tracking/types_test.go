package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potholepatrol/gps"
)

func TestLocationLogAppendOrder(t *testing.T) {
	log := NewLocationLog()
	require.Equal(t, 0, log.Len())
	assert.Empty(t, log.Entries())

	p1 := gps.Position{Lat: 28.6304, Lon: 77.2177}
	p2 := gps.Position{Lat: 28.63045, Lon: 77.21775}

	log.Append(LocationEntry{Position: p1, Frame: 0, Confidence: 0.9, ClassName: "pothole"})
	log.Append(LocationEntry{Position: p2, Frame: 1, Confidence: 0.6, ClassName: "pothole"})
	log.Append(LocationEntry{Position: p2, Frame: 1, Confidence: 0.7, ClassName: "pothole"})

	require.Equal(t, 3, log.Len())
	entries := log.Entries()
	assert.Equal(t, p1, entries[0].Position)
	assert.Equal(t, p2, entries[1].Position, "duplicates are kept in order")
	assert.Equal(t, p2, entries[2].Position)
	assert.Equal(t, 0.7, entries[2].Confidence)
	assert.Equal(t, 2, log.FramesWithDetections())
}

func TestLocationLogEntriesIsACopy(t *testing.T) {
	log := NewLocationLog()
	log.Append(LocationEntry{Position: gps.Position{Lat: 1, Lon: 2}})

	entries := log.Entries()
	entries[0].Lat = 99

	assert.Equal(t, 1.0, log.Entries()[0].Lat)
}
