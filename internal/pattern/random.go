package pattern

import "math/rand/v2"

// Random samples a pattern uniformly and independently per dimension over
// each dimension's natural range.
//
// Uniform independent dimensions are an exploration aid only; real sensor
// readings are neither uniform nor independent.
func Random(rng *rand.Rand) Pattern {
	var v [NumDimensions]float32
	for i, d := range Dimensions {
		v[i] = d.Min + (d.Max-d.Min)*rng.Float32()
	}
	return FromVector(v)
}
