package serialization

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/nlpodyssey/safetensors"
	"github.com/nlpodyssey/safetensors/dtype"
	"github.com/nlpodyssey/safetensors/float16"
	"k8s.io/klog/v2"

	"github.com/born-ml/ndbuf/internal/tensor"
)

// Entry is a named view stored in a file.
type Entry struct {
	Name string
	View *tensor.View
}

// File is the loaded content of a safetensors stream.
// Entries are in name order; each view owns a fresh row-major buffer.
type File struct {
	Entries  []Entry
	Metadata map[string]string
}

// Lookup returns the view stored under name.
func (f *File) Lookup(name string) (*tensor.View, bool) {
	for _, e := range f.Entries {
		if e.Name == name {
			return e.View, true
		}
	}
	return nil, false
}

// Release drops the file's references on every loaded view.
func (f *File) Release() {
	for _, e := range f.Entries {
		e.View.Release()
	}
}

var toDType = map[tensor.DataType]dtype.DType{
	tensor.Bool:     dtype.Bool,
	tensor.Int8:     dtype.I8,
	tensor.Int16:    dtype.I16,
	tensor.Int32:    dtype.I32,
	tensor.Int64:    dtype.I64,
	tensor.Uint8:    dtype.U8,
	tensor.Uint16:   dtype.U16,
	tensor.Uint32:   dtype.U32,
	tensor.Uint64:   dtype.U64,
	tensor.Float16:  dtype.F16,
	tensor.BFloat16: dtype.BF16,
	tensor.Float32:  dtype.F32,
	tensor.Float64:  dtype.F64,
}

func fromDType(dt dtype.DType) (tensor.DataType, error) {
	for k, v := range toDType {
		if v == dt {
			return k, nil
		}
	}
	return 0, tensor.Errorf("load", tensor.ErrUnsupportedConversion, "safetensors dtype %s has no buffer type", dt)
}

// Save writes entries and metadata to w in safetensors format.
//
// Views are written row-major whatever their strides. A "checksum" metadata
// entry is added (replacing any given one). String views cannot be stored.
func Save(w io.Writer, entries []Entry, metadata map[string]string) error {
	if err := validateEntries(entries); err != nil {
		return err
	}
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })

	tensors := make([]safetensors.Tensor, 0, len(sorted))
	chunks := make([][]byte, 0, len(sorted))
	for _, e := range sorted {
		buf, err := rowMajor(e.View)
		if err != nil {
			return fmt.Errorf("serialization: tensor %q: %w", e.Name, err)
		}
		defer buf.Release()

		shape := []int(e.View.Shape())
		t, err := safetensors.NewTensor(e.Name, toDType[buf.DType()], shape, typedData(buf))
		if err != nil {
			return fmt.Errorf("serialization: tensor %q: %w", e.Name, err)
		}
		tensors = append(tensors, t)
		chunks = append(chunks, buf.Bytes())
	}

	meta := maps.Clone(metadata)
	if meta == nil {
		meta = make(map[string]string, 1)
	}
	meta[checksumKey] = formatChecksum(chunksChecksum(chunks))

	if err := safetensors.Serialize(w, tensors, meta); err != nil {
		return fmt.Errorf("serialization: failed to write safetensors: %w", err)
	}
	klog.V(2).Infof("serialization: saved %d tensors", len(tensors))
	return nil
}

// rowMajor returns a dense row-major copy of v's elements.
func rowMajor(v *tensor.View) (*tensor.Buffer, error) {
	if v.DType() == tensor.String {
		return nil, tensor.Errorf("save", tensor.ErrUnsupportedConversion, "string views have no safetensors type")
	}
	d, err := v.Dup(tensor.RowMajor)
	if err != nil {
		return nil, err
	}
	buf := d.Buffer().Share()
	d.Release()
	return buf, nil
}

// typedData returns buf's elements as the slice type safetensors expects for its dtype.
func typedData(buf *tensor.Buffer) any {
	switch buf.DType() {
	case tensor.Bool:
		return tensor.Data[bool](buf)
	case tensor.Int8:
		return tensor.Data[int8](buf)
	case tensor.Int16:
		return tensor.Data[int16](buf)
	case tensor.Int32:
		return tensor.Data[int32](buf)
	case tensor.Int64:
		return tensor.Data[int64](buf)
	case tensor.Uint8:
		return tensor.Data[uint8](buf)
	case tensor.Uint16:
		return tensor.Data[uint16](buf)
	case tensor.Uint32:
		return tensor.Data[uint32](buf)
	case tensor.Uint64:
		return tensor.Data[uint64](buf)
	case tensor.Float16:
		return halves[float16.F16](tensor.Data[tensor.F16](buf))
	case tensor.BFloat16:
		return halves[float16.BF16](tensor.Data[tensor.BF16](buf))
	case tensor.Float32:
		return tensor.Data[float32](buf)
	case tensor.Float64:
		return tensor.Data[float64](buf)
	}
	return nil
}

func halves[D float16.F16 | float16.BF16, S tensor.F16 | tensor.BF16](src []S) []D {
	out := make([]D, len(src))
	for i, h := range src {
		out[i] = D(h)
	}
	return out
}

// Load reads a safetensors stream into views allocated with the default config.
// headerLimit bounds the header size; zero or negative means no limit.
func Load(r io.Reader, headerLimit int) (*File, error) {
	return LoadWith(tensor.DefaultConfig(), r, headerLimit)
}

// LoadWith is Load allocating from cfg.
// The data checksum is verified when the file carries one.
func LoadWith(cfg tensor.Config, r io.Reader, headerLimit int) (*File, error) {
	st, err := safetensors.ReadAllRaw(r, headerLimit)
	if err != nil {
		return nil, fmt.Errorf("serialization: failed to read safetensors: %w", err)
	}
	if len(st.Tensors) > MaxTensorCount {
		return nil, &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(st.Tensors), MaxTensorCount),
			Err:     ErrTooManyTensors,
		}
	}
	raws := st.Tensors
	slices.SortFunc(raws, func(a, b safetensors.RawTensor) int { return strings.Compare(a.Name(), b.Name()) })

	if stored, ok := st.Metadata[checksumKey]; ok {
		want, err := parseChecksum(stored)
		if err != nil {
			return nil, err
		}
		chunks := make([][]byte, len(raws))
		for i, rt := range raws {
			chunks[i] = rt.Data()
		}
		if err := ValidateChecksum(chunksChecksum(chunks), want); err != nil {
			return nil, err
		}
	} else {
		klog.V(2).Info("serialization: file has no checksum")
	}

	f := &File{Metadata: st.Metadata}
	for _, rt := range raws {
		v, err := fromRaw(cfg, rt)
		if err != nil {
			f.Release()
			return nil, err
		}
		f.Entries = append(f.Entries, Entry{Name: rt.Name(), View: v})
	}
	return f, nil
}

// fromRaw copies a raw tensor into a new row-major view.
func fromRaw(cfg tensor.Config, rt safetensors.RawTensor) (*tensor.View, error) {
	if err := ValidateTensorName(rt.Name()); err != nil {
		return nil, err
	}
	dt, err := fromDType(rt.DType())
	if err != nil {
		return nil, err
	}
	shape := tensor.Shape{}
	if s := rt.Shape(); len(s) > 0 {
		shape = tensor.Shape(s).Clone()
	}
	buf, err := cfg.Allocate(dt, shape.NumElements())
	if err != nil {
		return nil, err
	}
	defer buf.Release()
	if len(rt.Data()) != buf.ByteSize() {
		return nil, &ValidationError{
			Type:    "size_mismatch",
			Tensor:  rt.Name(),
			Details: fmt.Sprintf("%d data bytes for shape %v of %s", len(rt.Data()), shape, dt),
			Err:     tensor.ErrShape,
		}
	}
	if buf.ByteSize() > 0 {
		copy(buf.Bytes(), rt.Data())
	}
	return cfg.NewView(buf, shape, tensor.RowMajor)
}
