package detection

import (
	"os"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// ModelProto field numbers we rely on.
const (
	onnxFieldIRVersion protowire.Number = 1
	onnxFieldGraph     protowire.Number = 7
	onnxMaxField       protowire.Number = 25
)

// checkONNXModel walks the top-level fields of an ONNX ModelProto and
// rejects files that are not one. OpenCV aborts the process on some
// malformed inputs, so nothing reaches ReadNetFromONNX without passing here.
func checkONNXModel(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(ErrModelLoad, "read model %s: %v", path, err)
	}
	if err := checkONNXBytes(data); err != nil {
		return errors.Wrapf(ErrModelLoad, "%s: %v", path, err)
	}
	return nil
}

func checkONNXBytes(b []byte) error {
	if len(b) == 0 {
		return errors.New("model file is empty")
	}

	var hasIRVersion, hasGraph bool
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "not an ONNX model")
		}
		if num > onnxMaxField || (typ != protowire.VarintType && typ != protowire.BytesType) {
			return errors.Errorf("not an ONNX model: unexpected field %d (wire type %d)", num, typ)
		}
		b = b[n:]

		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return errors.Wrapf(protowire.ParseError(m), "truncated ONNX field %d", num)
		}
		b = b[m:]

		switch num {
		case onnxFieldIRVersion:
			hasIRVersion = typ == protowire.VarintType
		case onnxFieldGraph:
			hasGraph = typ == protowire.BytesType
		}
	}

	if !hasIRVersion || !hasGraph {
		return errors.New("ONNX model has no IR version or graph")
	}
	return nil
}
