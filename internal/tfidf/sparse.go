package tfidf

import "math"

// SparseVector stores the non-zero entries of a vector as parallel arrays.
// Indices are strictly ascending.
type SparseVector struct {
	Indices []int
	Values  []float64
}

// Len returns the number of stored entries.
func (v SparseVector) Len() int { return len(v.Indices) }

// IsZero reports whether the vector has no non-zero weight.
func (v SparseVector) IsZero() bool {
	for _, x := range v.Values {
		if x != 0 {
			return false
		}
	}
	return true
}

// Norm returns the L2 norm.
func (v SparseVector) Norm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Dot returns the dot product of two sparse vectors using a merge join over
// their sorted indices.
func (v SparseVector) Dot(other SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(other.Indices) {
		switch {
		case v.Indices[i] == other.Indices[j]:
			sum += v.Values[i] * other.Values[j]
			i++
			j++
		case v.Indices[i] < other.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// normalize scales the vector in place to unit length. Zero vectors are left
// untouched.
func (v SparseVector) normalize() {
	norm := v.Norm()
	if norm == 0 {
		return
	}
	for i := range v.Values {
		v.Values[i] /= norm
	}
}

// valid reports whether indices are ascending, within [0, dims) and paired
// with values.
func (v SparseVector) valid(dims int) bool {
	if len(v.Indices) != len(v.Values) {
		return false
	}
	prev := -1
	for _, idx := range v.Indices {
		if idx <= prev || idx >= dims {
			return false
		}
		prev = idx
	}
	return true
}
