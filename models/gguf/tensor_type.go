package gguf

// TensorType represents the data type or quantization format of a tensor in a GGUF file.
// This package only needs tensor type tags well enough to report them (ListTensorNames,
// TensorInfo); it never dequantizes tensor payloads, so no per-type block/element sizing
// lives here — that belongs to a downstream inference engine, out of scope for a tokenizer.
type TensorType uint32

const (
	TensorTypeF32     TensorType = 0
	TensorTypeF16     TensorType = 1
	TensorTypeQ4_0    TensorType = 2
	TensorTypeQ4_1    TensorType = 3
	TensorTypeQ5_0    TensorType = 6
	TensorTypeQ5_1    TensorType = 7
	TensorTypeQ8_0    TensorType = 8
	TensorTypeQ8_1    TensorType = 9
	TensorTypeQ2_K    TensorType = 10
	TensorTypeQ3_K    TensorType = 11
	TensorTypeQ4_K    TensorType = 12
	TensorTypeQ5_K    TensorType = 13
	TensorTypeQ6_K    TensorType = 14
	TensorTypeQ8_K    TensorType = 15
	TensorTypeIQ2_XXS TensorType = 16
	TensorTypeIQ2_XS  TensorType = 17
	TensorTypeIQ3_XXS TensorType = 18
	TensorTypeIQ1_S   TensorType = 19
	TensorTypeIQ4_NL  TensorType = 20
	TensorTypeIQ3_S   TensorType = 21
	TensorTypeIQ2_S   TensorType = 22
	TensorTypeIQ4_XS  TensorType = 23
	TensorTypeI8      TensorType = 24
	TensorTypeI16     TensorType = 25
	TensorTypeI32     TensorType = 26
	TensorTypeI64     TensorType = 27
	TensorTypeF64     TensorType = 28
	TensorTypeIQ1_M   TensorType = 29
	TensorTypeBF16    TensorType = 30
	TensorTypeTQ1_0   TensorType = 34
	TensorTypeTQ2_0   TensorType = 35
	TensorTypeMXFP4   TensorType = 39
)

// String returns a human-readable name for the tensor type.
func (t TensorType) String() string {
	switch t {
	case TensorTypeF32:
		return "F32"
	case TensorTypeF16:
		return "F16"
	case TensorTypeQ4_0:
		return "Q4_0"
	case TensorTypeQ4_1:
		return "Q4_1"
	case TensorTypeQ5_0:
		return "Q5_0"
	case TensorTypeQ5_1:
		return "Q5_1"
	case TensorTypeQ8_0:
		return "Q8_0"
	case TensorTypeQ8_1:
		return "Q8_1"
	case TensorTypeQ2_K:
		return "Q2_K"
	case TensorTypeQ3_K:
		return "Q3_K"
	case TensorTypeQ4_K:
		return "Q4_K"
	case TensorTypeQ5_K:
		return "Q5_K"
	case TensorTypeQ6_K:
		return "Q6_K"
	case TensorTypeQ8_K:
		return "Q8_K"
	case TensorTypeIQ2_XXS:
		return "IQ2_XXS"
	case TensorTypeIQ2_XS:
		return "IQ2_XS"
	case TensorTypeIQ3_XXS:
		return "IQ3_XXS"
	case TensorTypeIQ1_S:
		return "IQ1_S"
	case TensorTypeIQ4_NL:
		return "IQ4_NL"
	case TensorTypeIQ3_S:
		return "IQ3_S"
	case TensorTypeIQ2_S:
		return "IQ2_S"
	case TensorTypeIQ4_XS:
		return "IQ4_XS"
	case TensorTypeI8:
		return "I8"
	case TensorTypeI16:
		return "I16"
	case TensorTypeI32:
		return "I32"
	case TensorTypeI64:
		return "I64"
	case TensorTypeF64:
		return "F64"
	case TensorTypeIQ1_M:
		return "IQ1_M"
	case TensorTypeBF16:
		return "BF16"
	case TensorTypeTQ1_0:
		return "TQ1_0"
	case TensorTypeTQ2_0:
		return "TQ2_0"
	case TensorTypeMXFP4:
		return "MXFP4"
	default:
		return "UNKNOWN"
	}
}

// TensorInfo holds parsed information about a single tensor in a GGUF file.
type TensorInfo struct {
	Name   string
	Shape  []uint64 // Dimensions in GGUF native order (innermost first).
	Type   TensorType
	Offset uint64 // Byte offset within the tensor data section.
}

// NumElements returns the total number of elements in the tensor.
func (ti *TensorInfo) NumElements() uint64 {
	if len(ti.Shape) == 0 {
		return 0
	}
	n := uint64(1)
	for _, d := range ti.Shape {
		n *= d
	}
	return n
}
