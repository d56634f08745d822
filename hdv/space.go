package hdv

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
)

// tiebreakKey is reserved; user-facing symbol keys never start with NUL.
const tiebreakKey = "\x00tiebreak"

// Random generates a deterministic pseudorandom Vector for the given seed.
// The same (dims, seed) pair always produces the same vector.
// Vectors from different seeds are quasi-orthogonal with overwhelming probability.
func Random(dims int, seed uint64) Vector {
	v := New(dims)
	r := rand.New(rand.NewSource(int64(seed))) //nolint:gosec
	for i := range v.data {
		v.data[i] = r.Uint64()
	}
	zeroPadding(v.data, dims)
	return v
}

// Space is a seeded vector space: a deterministic symbol generator with a
// memoizing cache, plus the bundling operations that need the space's
// tiebreak vector. Two Spaces with the same (dims, seed) produce bit-identical
// symbols for the same key, cache or no cache. Safe for concurrent use.
type Space struct {
	dims int
	seed uint64
	id   string
	tie  Vector

	mu    sync.RWMutex
	cache map[string]Vector

	counts  sync.Pool // *[]int32, for Bundle
	weights sync.Pool // *[]float64, for WeightedBundle
}

// NewSpace creates a Space of the given dimension and seed.
// Panics if dims is not positive.
func NewSpace(dims int, seed uint64) *Space {
	if dims <= 0 {
		panic("hdv: dims must be positive")
	}
	s := &Space{
		dims:  dims,
		seed:  seed,
		id:    fmt.Sprintf("%d-%016x", dims, seed),
		cache: make(map[string]Vector),
	}
	s.tie = s.derive(tiebreakKey)
	s.counts = sync.Pool{New: func() any {
		buf := make([]int32, dims)
		return &buf
	}}
	s.weights = sync.Pool{New: func() any {
		buf := make([]float64, dims)
		return &buf
	}}
	return s
}

// ID identifies the (dimension, seed) space. Vectors from spaces with
// different IDs are not comparable.
func (s *Space) ID() string { return s.id }

func (s *Space) Dims() int { return s.dims }

func (s *Space) Seed() uint64 { return s.seed }

// Symbol returns the deterministic symbol vector for key.
// The result is a pure function of (dims, seed, key); the cache is a
// memoization layer only.
func (s *Space) Symbol(key string) Vector {
	s.mu.RLock()
	v, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok = s.cache[key]; ok {
		return v
	}
	v = s.derive(key)
	s.cache[key] = v
	return v
}

// derive computes a symbol without touching the cache.
// FNV-1a widens string keys to 64 bits; a Knuth multiplicative hash mixed
// with the space seed isolates namespaces, as unrelated keys must land on
// unrelated PRNG streams.
func (s *Space) derive(key string) Vector {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return Random(s.dims, s.seed^h.Sum64()*2654435761+1)
}

// ClearCache discards all memoized symbols. Determinism is unaffected:
// regenerated symbols are bit-identical to the discarded ones.
func (s *Space) ClearCache() {
	s.mu.Lock()
	s.cache = make(map[string]Vector)
	s.mu.Unlock()
}

// CacheSize reports the number of memoized symbols. Diagnostic only.
func (s *Space) CacheSize() int {
	s.mu.RLock()
	n := len(s.cache)
	s.mu.RUnlock()
	return n
}

// Bundle returns the majority-vote superposition of the given vectors.
// A component whose bipolar sum is exactly zero takes the corresponding bit
// of the space's tiebreak vector, so the result is deterministic for any
// input count. Returns ErrEmptyInput on no vectors and ErrDimensionMismatch
// if any vector does not belong to this space's dimension.
func (s *Space) Bundle(vecs ...Vector) (Vector, error) {
	if len(vecs) == 0 {
		return Vector{}, ErrEmptyInput
	}
	for _, v := range vecs {
		if v.dims != s.dims {
			return Vector{}, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, v.dims, s.dims)
		}
	}

	bp := s.counts.Get().(*[]int32)
	counts := *bp
	for i := range counts {
		counts[i] = 0
	}
	defer s.counts.Put(bp)

	for _, v := range vecs {
		accumulate(counts, v)
	}

	result := New(s.dims)
	for i, c := range counts {
		// bipolar sum = 2c − n
		switch sum := 2*int(c) - len(vecs); {
		case sum > 0:
			result.data[i/64] |= 1 << uint(i%64)
		case sum == 0:
			result.data[i/64] |= s.tie.data[i/64] & (1 << uint(i%64))
		}
	}
	return result, nil
}

// Weighted pairs a vector with its bundling weight.
type Weighted struct {
	Vec    Vector
	Weight float64
}

// WeightedBundle returns the sign of the weighted bipolar sum of the given
// vectors. Entries with weight ≤ 0 are excluded entirely. Zero-sum components
// take the space's tiebreak bit. Returns ErrEmptyInput when no entry has a
// positive weight.
func (s *Space) WeightedBundle(pairs ...Weighted) (Vector, error) {
	var used int
	for _, p := range pairs {
		if p.Weight <= 0 {
			continue
		}
		if p.Vec.dims != s.dims {
			return Vector{}, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, p.Vec.dims, s.dims)
		}
		used++
	}
	if used == 0 {
		return Vector{}, ErrEmptyInput
	}

	bp := s.weights.Get().(*[]float64)
	sums := *bp
	for i := range sums {
		sums[i] = 0
	}
	defer s.weights.Put(bp)

	for _, p := range pairs {
		if p.Weight <= 0 {
			continue
		}
		for w, word := range p.Vec.data {
			base := w * 64
			limit := 64
			if base+limit > s.dims {
				limit = s.dims - base
			}
			for b := 0; b < limit; b++ {
				if word>>uint(b)&1 == 1 {
					sums[base+b] += p.Weight
				} else {
					sums[base+b] -= p.Weight
				}
			}
		}
	}

	result := New(s.dims)
	for i, sum := range sums {
		switch {
		case sum > 0:
			result.data[i/64] |= 1 << uint(i%64)
		case sum == 0:
			result.data[i/64] |= s.tie.data[i/64] & (1 << uint(i%64))
		}
	}
	return result, nil
}

func accumulate(counts []int32, v Vector) {
	dims := v.dims
	for w, word := range v.data {
		base := w * 64
		limit := 64
		if base+limit > dims {
			limit = dims - base
		}
		for b := 0; b < limit; b++ {
			counts[base+b] += int32(word >> uint(b) & 1)
		}
	}
}
