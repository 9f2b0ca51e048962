package vectorstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
)

// flatMagic prefixes every serialized FlatIndex.
const flatMagic = "DQFI"

const flatVersion uint32 = 1

// maxDim bounds the dimension accepted from serialized data.
const maxDim = 1 << 16

// Neighbor is a single search hit: position in the index and squared L2 distance.
type Neighbor struct {
	Pos      int
	Distance float64
}

// FlatIndex is an exact nearest-neighbor index over squared Euclidean distance.
// Vectors are stored contiguously in insertion order; position i is the i-th added vector.
type FlatIndex struct {
	dim  int
	data []float32
}

// NewFlatIndex creates an empty index for vectors of length dim.
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

// Dim returns the vector length accepted by the index.
func (f *FlatIndex) Dim() int { return f.dim }

// Count returns the number of stored vectors.
func (f *FlatIndex) Count() int {
	if f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

// Add appends vectors in order. Either all vectors are added or none.
func (f *FlatIndex) Add(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("flat: vector %d has dim %d, index dim %d", i, len(v), f.dim)
		}
	}
	for _, v := range vectors {
		f.data = append(f.data, v...)
	}
	return nil
}

// Search returns up to k neighbors ordered by ascending distance.
// Equal distances keep insertion order.
func (f *FlatIndex) Search(query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("flat: query dim %d != index dim %d", len(query), f.dim)
	}
	n := f.Count()
	if n == 0 || k <= 0 {
		return nil, nil
	}

	hits := make([]Neighbor, n)
	for i := 0; i < n; i++ {
		hits[i] = Neighbor{Pos: i, Distance: squaredL2(query, f.data[i*f.dim:(i+1)*f.dim])}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })

	if k > n {
		k = n
	}
	return hits[:k], nil
}

// Reset drops all vectors, keeping the dimension.
func (f *FlatIndex) Reset() {
	f.data = nil
}

// MarshalBinary stores: magic, version(uint32), dim(uint32), n(uint32), then n*dim float32.
func (f *FlatIndex) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, len(flatMagic)+12+4*len(f.data))
	out = append(out, flatMagic...)
	out = binary.LittleEndian.AppendUint32(out, flatVersion)
	out = binary.LittleEndian.AppendUint32(out, uint32(f.dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(f.Count()))
	for _, v := range f.data {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out, nil
}

// UnmarshalBinary restores the index from bytes produced by MarshalBinary.
func (f *FlatIndex) UnmarshalBinary(data []byte) error {
	header := len(flatMagic) + 12
	if len(data) < header || string(data[:len(flatMagic)]) != flatMagic {
		return errors.New("flat: invalid header")
	}
	off := len(flatMagic)
	getU32 := func() uint32 { v := binary.LittleEndian.Uint32(data[off : off+4]); off += 4; return v }

	if v := getU32(); v != flatVersion {
		return fmt.Errorf("flat: unsupported version %d", v)
	}
	dim := int(getU32())
	n := int(getU32())
	if dim <= 0 || dim > maxDim {
		return fmt.Errorf("flat: invalid dim %d", dim)
	}
	// Checked by division: n*dim*4 overflows int for hostile headers.
	payload, row := len(data)-header, 4*dim
	if payload%row != 0 || payload/row != n {
		return fmt.Errorf("flat: payload of %d bytes does not hold %d vectors of dim %d", payload, n, dim)
	}

	vals := make([]float32, n*dim)
	for i := range vals {
		vals[i] = math.Float32frombits(getU32())
	}
	f.dim = dim
	f.data = vals
	return nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
