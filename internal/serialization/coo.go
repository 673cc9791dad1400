package serialization

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"

	"github.com/born-ml/ndbuf/internal/sparse"
	"github.com/born-ml/ndbuf/internal/tensor"
)

// Tensor names and metadata key of a stored COO set.
const (
	IndicesName   = "indices"
	ValuesName    = "values"
	DenseShapeKey = "dense_shape"
)

// SaveCOO writes c as an "indices" [nnz, rank] tensor, a "values" [nnz]
// tensor and a "dense_shape" metadata entry.
func SaveCOO(w io.Writer, c *sparse.COO, metadata map[string]string) error {
	nnz, rank := c.NNZ(), c.Rank()
	indices, err := tensor.NewView(c.Indices, tensor.Shape{nnz, rank}, tensor.RowMajor)
	if err != nil {
		return err
	}
	defer indices.Release()
	values, err := tensor.NewView(c.Values, tensor.Shape{nnz}, tensor.RowMajor)
	if err != nil {
		return err
	}
	defer values.Release()

	shape, err := json.Marshal([]int(c.DenseShape))
	if err != nil {
		return fmt.Errorf("serialization: failed to marshal dense shape: %w", err)
	}
	meta := maps.Clone(metadata)
	if meta == nil {
		meta = make(map[string]string, 2)
	}
	meta[DenseShapeKey] = string(shape)

	return Save(w, []Entry{
		{Name: IndicesName, View: indices},
		{Name: ValuesName, View: values},
	}, meta)
}

// LoadCOO reads a set written by SaveCOO, allocating with the default config.
func LoadCOO(r io.Reader, headerLimit int) (*sparse.COO, error) {
	return LoadCOOWith(tensor.DefaultConfig(), r, headerLimit)
}

// LoadCOOWith is LoadCOO allocating from cfg.
func LoadCOOWith(cfg tensor.Config, r io.Reader, headerLimit int) (*sparse.COO, error) {
	f, err := LoadWith(cfg, r, headerLimit)
	if err != nil {
		return nil, err
	}
	defer f.Release()

	indices, ok := f.Lookup(IndicesName)
	if !ok {
		return nil, missing(IndicesName)
	}
	values, ok := f.Lookup(ValuesName)
	if !ok {
		return nil, missing(ValuesName)
	}

	raw, ok := f.Metadata[DenseShapeKey]
	if !ok {
		return nil, &ValidationError{Type: "dense_shape", Details: "metadata entry missing", Err: tensor.ErrShape}
	}
	var dense []int
	if err := json.Unmarshal([]byte(raw), &dense); err != nil {
		return nil, &ValidationError{Type: "dense_shape", Details: fmt.Sprintf("%q: %v", raw, err), Err: tensor.ErrShape}
	}

	is, vs := indices.Shape(), values.Shape()
	if len(is) != 2 || len(vs) != 1 || is[0] != vs[0] || is[1] != len(dense) {
		return nil, &ValidationError{
			Type:    "coo_layout",
			Details: fmt.Sprintf("indices %v and values %v do not describe entries of %v", is, vs, dense),
			Err:     tensor.ErrShape,
		}
	}
	return sparse.NewCOO(indices.Buffer(), values.Buffer(), dense)
}

func missing(name string) error {
	return &ValidationError{
		Type:    "missing_tensor",
		Tensor:  name,
		Details: "not present in COO file",
		Err:     ErrMissingTensor,
	}
}
