package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func TestIsQuitKey(t *testing.T) {
	assert.True(t, isQuitKey('q', 'q'))
	assert.True(t, isQuitKey(0x100|'q', 'q'), "modifier bits are masked off")
	assert.False(t, isQuitKey('Q', 'q'))
	assert.False(t, isQuitKey(-1, 'q'), "no key pressed")
	assert.False(t, isQuitKey(' ', 'q'))
}

func TestHeadless(t *testing.T) {
	frame := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	defer frame.Close()

	var sink Sink = &Headless{}
	for i := 0; i < 3; i++ {
		sink.Show(frame)
		assert.False(t, sink.PollStop())
	}

	assert.NoError(t, sink.Close())
}

func TestNewWindowRejectsBadSize(t *testing.T) {
	_, err := NewWindow(DefaultTitle, 0, DefaultHeight, DefaultQuit)
	assert.Error(t, err)
}
