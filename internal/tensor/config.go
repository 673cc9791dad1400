package tensor

import "github.com/born-ml/ndbuf/internal/parallel"

// Config carries the settings that creation functions would otherwise read from
// global state. Pass it explicitly to every call site that allocates.
type Config struct {
	DefaultFloat DataType        // Data type used when callers ask for "a float buffer".
	Allocator    Allocator       // Backing store for new buffers.
	Parallel     parallel.Config // Fan-out for strided copies.
}

// DefaultConfig returns Float32, the shared heap allocator and CPU-count parallelism.
func DefaultConfig() Config {
	return Config{
		DefaultFloat: Float32,
		Allocator:    DefaultAllocator(),
		Parallel:     parallel.DefaultConfig(),
	}
}

func (c Config) allocator() Allocator {
	if c.Allocator == nil {
		return DefaultAllocator()
	}
	return c.Allocator
}

// Allocate creates a zero-filled buffer with the configured allocator.
func (c Config) Allocate(dtype DataType, length int) (*Buffer, error) {
	return AllocateWith(c.allocator(), dtype, length)
}

// Zeros allocates a zero-filled view with default strides in order.
func (c Config) Zeros(dtype DataType, shape Shape, order Order) (*View, error) {
	if err := shape.Validate(); err != nil {
		return nil, WrapError("zeros", ErrShape, err)
	}
	buf, err := c.Allocate(dtype, shape.NumElements())
	if err != nil {
		return nil, err
	}
	v, err := c.newView(buf, shape, order)
	buf.Release() // The view holds its own reference.
	return v, err
}

// FromFloat64s allocates a view of the default float type holding data,
// which is interpreted in the given order.
func (c Config) FromFloat64s(data []float64, shape Shape, order Order) (*View, error) {
	return FromSlice(c, c.DefaultFloat, data, shape, order)
}

// FromSlice allocates a view of dtype holding data converted element by element.
// data is laid out according to order.
func FromSlice[T HostType](c Config, dtype DataType, data []T, shape Shape, order Order) (*View, error) {
	if err := shape.Validate(); err != nil {
		return nil, WrapError("from slice", ErrShape, err)
	}
	if shape.NumElements() != len(data) {
		return nil, Errorf("from slice", ErrShape, "shape %v requires %d elements, but got %d",
			shape, shape.NumElements(), len(data))
	}
	buf, err := FromArrayWith(c.allocator(), dtype, data)
	if err != nil {
		return nil, err
	}
	v, err := c.newView(buf, shape, order)
	buf.Release()
	return v, err
}

// NewView wraps buf in a view with default strides; the view takes its own reference.
func (c Config) NewView(buf *Buffer, shape Shape, order Order) (*View, error) {
	return c.newView(buf, shape, order)
}
