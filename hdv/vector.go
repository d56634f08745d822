// Package hdv implements the hyperdimensional vector algebra underlying glyph
// encoding. Vectors are bitpacked []uint64 slices carrying bipolar semantics
// (bit 1 ↔ +1, bit 0 ↔ −1); binding and similarity are bitwise.
package hdv

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/bits"
)

// Vector is an immutable bitpacked hypervector.
// Padding bits in the final word are always zero.
type Vector struct {
	dims int
	data []uint64
}

// New returns a zero-valued Vector of the given dimension.
// In bipolar terms a zero-valued vector is all −1.
func New(dims int) Vector {
	if dims <= 0 {
		panic("hdv: dims must be positive")
	}
	return Vector{dims: dims, data: make([]uint64, numWords(dims))}
}

// FromWords constructs a Vector from a raw word slice.
// len(data) must equal ceil(dims/64). Padding bits are zeroed automatically.
func FromWords(dims int, data []uint64) Vector {
	if dims <= 0 {
		panic("hdv: dims must be positive")
	}
	needed := numWords(dims)
	if len(data) != needed {
		panic("hdv: data length does not match dims")
	}
	copied := make([]uint64, needed)
	copy(copied, data)
	zeroPadding(copied, dims)
	return Vector{dims: dims, data: copied}
}

func (v Vector) Dims() int { return v.dims }

// IsZero reports whether v carries no words, i.e. it is the zero value of the
// type rather than an encoded vector.
func (v Vector) IsZero() bool { return v.data == nil }

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	data := make([]uint64, len(v.data))
	copy(data, v.data)
	return Vector{dims: v.dims, data: data}
}

// Equal reports whether a and b have identical dimension and bits.
func Equal(a, b Vector) bool {
	if a.dims != b.dims {
		return false
	}
	for i := range a.data {
		if a.data[i] != b.data[i] {
			return false
		}
	}
	return true
}

// Permute performs a cyclic right-shift of the bit array by one position:
// result[i] = v[(i+1) % dims].
// Applying Permute dims times returns the original vector.
// Used for positional encoding in ordered structures.
func (v Vector) Permute() Vector {
	result := v.Clone()
	w := len(result.data)

	bit0 := result.data[0] & 1
	for i := 0; i < w-1; i++ {
		result.data[i] = (result.data[i] >> 1) | ((result.data[i+1] & 1) << 63)
	}
	highBit := uint((v.dims - 1) % 64)
	result.data[w-1] = (result.data[w-1] >> 1) | (bit0 << highBit)

	return result
}

// Bind associates two vectors via XOR (bipolar elementwise multiplication up
// to sign convention). The operation is its own inverse:
// Bind(Bind(a, b), b) == a. The result is quasi-orthogonal to both inputs.
func Bind(a, b Vector) (Vector, error) {
	if a.dims != b.dims {
		return Vector{}, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, a.dims, b.dims)
	}
	result := New(a.dims)
	for i := range result.data {
		result.data[i] = a.data[i] ^ b.data[i]
	}
	return result, nil
}

// Metric selects the similarity measure.
type Metric uint8

const (
	// Cosine is the normalized dot product over bipolar components, in [-1, 1].
	Cosine Metric = iota
	// Hamming is the fraction of agreeing components, in [0, 1].
	Hamming
)

func (m Metric) String() string {
	switch m {
	case Cosine:
		return "cosine"
	case Hamming:
		return "hamming"
	default:
		return fmt.Sprintf("metric(%d)", uint8(m))
	}
}

// Similarity returns the similarity of a and b under the given metric.
// For bitpacked bipolar vectors both metrics derive from the Hamming
// distance: hamming = 1 − dist/dims, cosine = 1 − 2·dist/dims.
func Similarity(a, b Vector, m Metric) (float64, error) {
	if a.dims != b.dims {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, a.dims, b.dims)
	}
	var dist int
	for i := range a.data {
		dist += bits.OnesCount64(a.data[i] ^ b.data[i])
	}
	agree := 1.0 - float64(dist)/float64(a.dims)
	if m == Cosine {
		return 2*agree - 1, nil
	}
	return agree, nil
}

// vectorJSON is the wire form of a Vector inside model bundles.
type vectorJSON struct {
	Dims int    `json:"dims"`
	Data string `json:"data"` // little-endian words, base64
}

// MarshalJSON encodes the vector as {dims, base64(words)}.
func (v Vector) MarshalJSON() ([]byte, error) {
	raw := make([]byte, 8*len(v.data))
	for i, w := range v.data {
		binary.LittleEndian.PutUint64(raw[8*i:], w)
	}
	return json.Marshal(vectorJSON{
		Dims: v.dims,
		Data: base64.StdEncoding.EncodeToString(raw),
	})
}

// UnmarshalJSON decodes a vector produced by MarshalJSON.
func (v *Vector) UnmarshalJSON(b []byte) error {
	var wire vectorJSON
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	if wire.Dims == 0 && wire.Data == "" {
		*v = Vector{}
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(wire.Data)
	if err != nil {
		return fmt.Errorf("hdv: bad vector payload: %w", err)
	}
	if wire.Dims <= 0 || len(raw) != 8*numWords(wire.Dims) {
		return fmt.Errorf("hdv: vector payload does not match dims %d", wire.Dims)
	}
	data := make([]uint64, numWords(wire.Dims))
	for i := range data {
		data[i] = binary.LittleEndian.Uint64(raw[8*i:])
	}
	zeroPadding(data, wire.Dims)
	*v = Vector{dims: wire.Dims, data: data}
	return nil
}

func numWords(dims int) int {
	return (dims + 63) / 64
}

func zeroPadding(data []uint64, dims int) {
	if rem := dims % 64; rem != 0 {
		data[len(data)-1] &= (uint64(1) << uint(rem)) - 1
	}
}
