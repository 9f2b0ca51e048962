package vectorstore

import (
	"encoding/binary"
	"testing"
)

func TestFlatIndex_MarshalRoundTrip(t *testing.T) {
	idx := NewFlatIndex(2)
	if err := idx.Add([][]float32{{1, 2}, {3, 4}, {-1, 0.5}}); err != nil {
		t.Fatal(err)
	}
	data, err := idx.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	var restored FlatIndex
	if err := restored.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if restored.Dim() != 2 || restored.Count() != 3 {
		t.Fatalf("unexpected shape dim=%d count=%d", restored.Dim(), restored.Count())
	}
	for i, v := range idx.data {
		if restored.data[i] != v {
			t.Fatalf("value %d: got %v, want %v", i, restored.data[i], v)
		}
	}
}

func TestFlatIndex_EmptyRoundTrip(t *testing.T) {
	data, _ := NewFlatIndex(8).MarshalBinary()
	var restored FlatIndex
	if err := restored.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if restored.Dim() != 8 || restored.Count() != 0 {
		t.Errorf("unexpected shape dim=%d count=%d", restored.Dim(), restored.Count())
	}
}

func TestFlatIndex_UnmarshalRejectsBadInput(t *testing.T) {
	good, _ := func() ([]byte, error) {
		idx := NewFlatIndex(2)
		_ = idx.Add([][]float32{{1, 2}})
		return idx.MarshalBinary()
	}()

	cases := map[string][]byte{
		"empty":     nil,
		"bad magic": append([]byte("XXXX"), good[4:]...),
		"truncated": good[:len(good)-2],
		"trailing":  append(append([]byte{}, good...), 0, 0, 0, 0),
		// n*dim*4 wraps to 0 in 64-bit int arithmetic.
		"overflowing header": flatHeader(1<<31, 1<<31),
		"dim above bound":    flatHeader(maxDim+1, 0),
		"count beyond data":  append(flatHeader(maxDim, 1<<31), make([]byte, 4*maxDim)...),
		"zero dim":           flatHeader(0, 0),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			var idx FlatIndex
			if err := idx.UnmarshalBinary(data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFlatIndex_AddIsAllOrNothing(t *testing.T) {
	idx := NewFlatIndex(2)
	if err := idx.Add([][]float32{{1, 1}, {1}}); err == nil {
		t.Fatal("expected error")
	}
	if idx.Count() != 0 {
		t.Errorf("expected no vectors added, got %d", idx.Count())
	}
}

func TestFlatIndex_SearchDistances(t *testing.T) {
	idx := NewFlatIndex(2)
	_ = idx.Add([][]float32{{3, 4}, {0, 0}})
	hits, err := idx.Search([]float32{0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].Pos != 1 || hits[0].Distance != 0 {
		t.Errorf("unexpected first hit %+v", hits[0])
	}
	if hits[1].Pos != 0 || hits[1].Distance != 25 {
		t.Errorf("unexpected second hit %+v", hits[1])
	}
}

func flatHeader(dim, n uint32) []byte {
	b := []byte(flatMagic)
	b = binary.LittleEndian.AppendUint32(b, flatVersion)
	b = binary.LittleEndian.AppendUint32(b, dim)
	return binary.LittleEndian.AppendUint32(b, n)
}
