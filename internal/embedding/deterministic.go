// Package embedding generates deterministic embedding vectors from text.
// It is the fallback used by adapters whose backend has no native embedding
// endpoint or returns a structurally invalid payload.
package embedding

import (
	"crypto/sha256"
	"encoding/binary"
)

// DefaultDim is the vector length used when a request does not ask for a
// specific dimension count.
const DefaultDim = 16

// Vector maps text to a dim-length float vector with every element in
// [-1, 1). The mapping is pure: identical (text, dim) pairs always produce
// identical output. The digest is consumed in 4-byte big-endian windows;
// when exhausted it is extended by re-hashing digest||counter.
func Vector(text string, dim int) []float64 {
	if dim <= 0 {
		dim = DefaultDim
	}

	base := sha256.Sum256([]byte(text))
	buf := base[:]

	out := make([]float64, 0, dim)
	var counter uint32
	for len(out) < dim {
		for i := 0; i+4 <= len(buf) && len(out) < dim; i += 4 {
			u := binary.BigEndian.Uint32(buf[i : i+4])
			out = append(out, float64(u)/(1<<32)*2-1)
		}
		if len(out) < dim {
			counter++
			var ctr [4]byte
			binary.BigEndian.PutUint32(ctr[:], counter)
			next := sha256.Sum256(append(base[:], ctr[:]...))
			buf = next[:]
		}
	}
	return out
}
