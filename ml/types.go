// types.go - Datentypen und Konstanten fuer ML-Operationen
// Dieses Modul definiert den Speichertyp von Checkpoint-Tensoren.
package ml

import "strings"

// DType represents the storage type of tensor elements in a checkpoint.
// Computation always happens in float32.
type DType int

const (
	DTypeOther DType = iota
	DTypeF32
	DTypeF16
	DTypeBF16
	DTypeF64
	DTypeI64
	DTypeI32
)

func (d DType) String() string {
	switch d {
	case DTypeF32:
		return "F32"
	case DTypeF16:
		return "F16"
	case DTypeBF16:
		return "BF16"
	case DTypeF64:
		return "F64"
	case DTypeI64:
		return "I64"
	case DTypeI32:
		return "I32"
	default:
		return "OTHER"
	}
}

// ParseDType maps safetensors dtype names ("F32", "BF16", ...) to a DType.
func ParseDType(s string) DType {
	switch strings.ToUpper(s) {
	case "F32":
		return DTypeF32
	case "F16":
		return DTypeF16
	case "BF16":
		return DTypeBF16
	case "F64":
		return DTypeF64
	case "I64":
		return DTypeI64
	case "I32":
		return DTypeI32
	default:
		return DTypeOther
	}
}

// Size returns the number of bytes per element.
func (d DType) Size() int {
	switch d {
	case DTypeF16, DTypeBF16:
		return 2
	case DTypeF32, DTypeI32:
		return 4
	case DTypeF64, DTypeI64:
		return 8
	default:
		return 0
	}
}
