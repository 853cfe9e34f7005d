package cachedbert

import (
	"fmt"

	"github.com/born-ml/cachedbert/internal/tensor"
)

// LayerCache holds the keys and values one layer has produced so far, each
// shaped [batch, num_heads, past_len, head_dim].
//
// The zero value is the empty cache. A cache is either empty or holds both
// tensors with identical shapes; a half-populated cache cannot be built.
// LayerCache values are immutable: Append returns a new cache and leaves the
// receiver untouched, so a caller can keep an older snapshot and branch from
// it.
//
// Example:
//
//	var c cachedbert.LayerCache // empty
//	c = c.Append(k, v)          // past_len == k.Dim(2)
type LayerCache struct {
	keys   *tensor.Tensor
	values *tensor.Tensor
}

// NewLayerCache wraps keys and values. Both must be rank 4 with equal shapes.
func NewLayerCache(keys, values *tensor.Tensor) LayerCache {
	if keys == nil || values == nil {
		panic("NewLayerCache: keys and values must both be non-nil")
	}
	if keys.Rank() != 4 {
		panic(fmt.Sprintf("NewLayerCache: expected [batch, heads, len, head_dim], got %v", keys.Shape()))
	}
	if !keys.Shape().Equal(values.Shape()) {
		panic(fmt.Sprintf("NewLayerCache: keys %v and values %v differ in shape", keys.Shape(), values.Shape()))
	}
	return LayerCache{keys: keys, values: values}
}

// IsEmpty reports whether the cache holds no positions.
func (c LayerCache) IsEmpty() bool {
	return c.keys == nil
}

// Len returns the number of cached positions.
func (c LayerCache) Len() int {
	if c.keys == nil {
		return 0
	}
	return c.keys.Dim(2)
}

// Keys returns the cached keys, or nil when empty.
func (c LayerCache) Keys() *tensor.Tensor {
	return c.keys
}

// Values returns the cached values, or nil when empty.
func (c LayerCache) Values() *tensor.Tensor {
	return c.values
}

// Append concatenates keys and values after the cached positions along the
// sequence axis.
func (c LayerCache) Append(keys, values *tensor.Tensor) LayerCache {
	if c.IsEmpty() {
		return NewLayerCache(keys, values)
	}
	return NewLayerCache(
		tensor.Cat([]*tensor.Tensor{c.keys, keys}, 2),
		tensor.Cat([]*tensor.Tensor{c.values, values}, 2),
	)
}

// Truncate keeps the first n positions. n == 0 yields the empty cache.
func (c LayerCache) Truncate(n int) LayerCache {
	if n < 0 || n > c.Len() {
		panic(fmt.Sprintf("LayerCache.Truncate: length %d out of range [0, %d]", n, c.Len()))
	}
	switch n {
	case 0:
		return LayerCache{}
	case c.Len():
		return c
	}
	return NewLayerCache(c.keys.Narrow(2, 0, n), c.values.Narrow(2, 0, n))
}

// StackCache holds one LayerCache per layer, ordered bottom to top.
//
// A nil or zero-length StackCache and a StackCache of empty entries both
// mean "no history" (a cold start).
type StackCache []LayerCache

// NewStackCache returns a cold cache for numLayers layers.
func NewStackCache(numLayers int) StackCache {
	return make(StackCache, numLayers)
}

// IsCold reports whether no layer holds any position.
func (s StackCache) IsCold() bool {
	for _, c := range s {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// PastLength returns the number of cached positions (0 when cold).
func (s StackCache) PastLength() int {
	if s.IsCold() {
		return 0
	}
	return s[0].Len()
}

// Truncate returns a cache whose every layer keeps its first n positions.
func (s StackCache) Truncate(n int) StackCache {
	out := make(StackCache, len(s))
	for i, c := range s {
		out[i] = c.Truncate(n)
	}
	return out
}

// Validate panics unless s has exactly numLayers entries that are either all
// empty or all populated with the same batch size and length.
func (s StackCache) Validate(numLayers int) {
	if len(s) != numLayers {
		panic(fmt.Sprintf("StackCache: expected %d layer caches, got %d", numLayers, len(s)))
	}
	if numLayers == 0 {
		return
	}

	first := s[0]
	for i, c := range s[1:] {
		if c.IsEmpty() != first.IsEmpty() {
			panic(fmt.Sprintf("StackCache: layer %d emptiness differs from layer 0", i+1))
		}
		if c.IsEmpty() {
			continue
		}
		if c.Len() != first.Len() || c.keys.Dim(0) != first.keys.Dim(0) {
			panic(fmt.Sprintf("StackCache: layer %d holds %v, layer 0 holds %v",
				i+1, c.keys.Shape(), first.keys.Shape()))
		}
	}
}
