package pattern

import "math"

// NormalizedPattern holds the nine dimensions mapped into [0,1].
type NormalizedPattern struct {
	Brightness    float32 `json:"brightness"`
	ColorTemp     float32 `json:"color_temp"`
	FocalDistance float32 `json:"focal_distance"`
	Volume        float32 `json:"volume"`
	Tempo         float32 `json:"tempo"`
	Pitch         float32 `json:"pitch"`
	Temperature   float32 `json:"temperature"`
	Movement      float32 `json:"movement"`
	Arousal       float32 `json:"arousal"`
}

// Normalize maps each dimension into [0,1] and clamps.
//
// Tempo is scaled by its maximum only, without subtracting the floor. Since
// the floor is 0 this matches the other dimensions today, but derived targets
// depend on it, so keep the formula as is.
func Normalize(p Pattern) NormalizedPattern {
	return NormalizedPattern{
		Brightness:    clamp01(p.Brightness),
		ColorTemp:     clamp01((p.ColorTemp - ColorTempMin) / (ColorTempMax - ColorTempMin)),
		FocalDistance: clamp01(p.FocalDistance),
		Volume:        clamp01(p.Volume),
		Tempo:         clamp01(p.Tempo / TempoMax),
		Pitch:         clamp01((p.Pitch - PitchMin) / (PitchMax - PitchMin)),
		Temperature:   clamp01((p.Temperature - TemperatureMin) / (TemperatureMax - TemperatureMin)),
		Movement:      clamp01(p.Movement),
		Arousal:       clamp01(p.Arousal),
	}
}

// Vector returns the normalized values in canonical order.
func (n NormalizedPattern) Vector() [NumDimensions]float32 {
	return [NumDimensions]float32{
		n.Brightness,
		n.ColorTemp,
		n.FocalDistance,
		n.Volume,
		n.Tempo,
		n.Pitch,
		n.Temperature,
		n.Movement,
		n.Arousal,
	}
}

// Distance returns the Euclidean distance between two normalized patterns.
func Distance(a, b NormalizedPattern) float32 {
	va, vb := a.Vector(), b.Vector()
	var sum float32
	for i := range va {
		d := va[i] - vb[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}

// NormalizedDistance normalizes both patterns and returns their distance.
func NormalizedDistance(a, b Pattern) float32 {
	return Distance(Normalize(a), Normalize(b))
}

// clamp01 clamps v into [0,1]. NaN maps to 0.
func clamp01(v float32) float32 {
	switch {
	case v > 1:
		return 1
	case v >= 0:
		return v
	default:
		return 0
	}
}
