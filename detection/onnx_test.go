package detection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// minimalModel encodes a ModelProto with an IR version, a producer name and
// an (empty) graph.
func minimalModel() []byte {
	var b []byte
	b = protowire.AppendTag(b, onnxFieldIRVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, 8)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, "pytorch")
	b = protowire.AppendTag(b, onnxFieldGraph, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte{0x0a, 0x00})
	return b
}

func TestCheckONNXBytesAcceptsModel(t *testing.T) {
	assert.NoError(t, checkONNXBytes(minimalModel()))
}

func TestCheckONNXBytesRejects(t *testing.T) {
	model := minimalModel()

	for name, b := range map[string][]byte{
		"empty":     nil,
		"text":      []byte("this is not an onnx model"),
		"truncated": model[:len(model)-1],
		"no graph":  model[:4],
		"zip":       []byte("PK\x03\x04\x14\x00\x00\x00"),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, checkONNXBytes(b))
		})
	}
}

func TestCheckONNXModel(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.onnx")
	require.NoError(t, os.WriteFile(good, minimalModel(), 0o644))
	assert.NoError(t, checkONNXModel(good))

	bad := filepath.Join(dir, "bad.onnx")
	require.NoError(t, os.WriteFile(bad, []byte{0xff, 0xff, 0xff}, 0o644))
	assert.True(t, errors.Is(checkONNXModel(bad), ErrModelLoad))

	assert.True(t, errors.Is(checkONNXModel(filepath.Join(dir, "missing.onnx")), ErrModelLoad))
}
