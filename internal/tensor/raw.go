package tensor

import (
	"fmt"
	"unsafe"
)

// RawTensor is a flat host buffer together with its shape and data type.
//
// It is deliberately simple: no views, no copy-on-write, no device handles.
// The recurrent op surface only ever hands whole, contiguous buffers to a
// compute engine, so anything fancier would be dead weight.
type RawTensor struct {
	data  []byte
	shape Shape
	dtype DataType
}

// NewRaw creates a zero-filled tensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &RawTensor{
		data:  make([]byte, shape.NumElements()*dtype.Size()),
		shape: shape.Clone(),
		dtype: dtype,
	}, nil
}

// Empty returns a tensor with no elements. The op surface uses it for
// outputs that exist only for some model configurations (e.g. the cell
// state of non-LSTM models) and for the reserve space in inference mode.
func Empty(dtype DataType) *RawTensor {
	return &RawTensor{shape: Shape{}, dtype: dtype}
}

// FromSlice creates a Float32 tensor backed by a copy of data.
func FromSlice(data []float32, shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	t, err := NewRaw(shape, Float32)
	if err != nil {
		return nil, err
	}
	copy(t.AsFloat32(), data)
	return t, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// IsEmpty reports whether the tensor holds no elements.
func (r *RawTensor) IsEmpty() bool {
	return r.NumElements() == 0
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data)
}

// Data returns the raw byte slice.
func (r *RawTensor) Data() []byte {
	return r.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	if len(r.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// Zero overwrites every element with zero.
func (r *RawTensor) Zero() {
	for i := range r.data {
		r.data[i] = 0
	}
}
