// Package pattern defines the nine-dimensional sensory feature vector used as
// a rendezvous target, its natural-unit ranges, and the normalization that
// maps every dimension into [0,1] before any distance is computed.
package pattern

import (
	"fmt"
	"math"
)

// NumDimensions is the number of sensory dimensions in a Pattern.
const NumDimensions = 9

// Natural-unit bounds for each dimension.
const (
	BrightnessMin float32 = 0
	BrightnessMax float32 = 1

	ColorTempMin float32 = 2000 // Kelvin
	ColorTempMax float32 = 10000

	FocalDistanceMin float32 = 0
	FocalDistanceMax float32 = 1

	VolumeMin float32 = 0
	VolumeMax float32 = 1

	TempoMin float32 = 0 // BPM
	TempoMax float32 = 300

	PitchMin float32 = 20 // Hertz
	PitchMax float32 = 20000

	TemperatureMin float32 = 10 // Celsius
	TemperatureMax float32 = 40

	MovementMin float32 = 0
	MovementMax float32 = 1

	ArousalMin float32 = 0
	ArousalMax float32 = 1
)

// Dimension describes one field of a Pattern.
type Dimension struct {
	Name string
	Unit string
	Min  float32
	Max  float32
}

// Dimensions lists every field in canonical order. Token derivation assigns
// digest chunks in this order, so it must never be rearranged.
var Dimensions = [NumDimensions]Dimension{
	{Name: "brightness", Unit: "", Min: BrightnessMin, Max: BrightnessMax},
	{Name: "color_temp", Unit: "K", Min: ColorTempMin, Max: ColorTempMax},
	{Name: "focal_distance", Unit: "", Min: FocalDistanceMin, Max: FocalDistanceMax},
	{Name: "volume", Unit: "", Min: VolumeMin, Max: VolumeMax},
	{Name: "tempo", Unit: "BPM", Min: TempoMin, Max: TempoMax},
	{Name: "pitch", Unit: "Hz", Min: PitchMin, Max: PitchMax},
	{Name: "temperature", Unit: "C", Min: TemperatureMin, Max: TemperatureMax},
	{Name: "movement", Unit: "", Min: MovementMin, Max: MovementMax},
	{Name: "arousal", Unit: "", Min: ArousalMin, Max: ArousalMax},
}

// Pattern is a sensory feature vector in natural units. Fields may hold
// out-of-range values (sensor noise); Normalize clamps them.
type Pattern struct {
	Brightness    float32 `json:"brightness" yaml:"brightness"`
	ColorTemp     float32 `json:"color_temp" yaml:"color_temp"`
	FocalDistance float32 `json:"focal_distance" yaml:"focal_distance"`
	Volume        float32 `json:"volume" yaml:"volume"`
	Tempo         float32 `json:"tempo" yaml:"tempo"`
	Pitch         float32 `json:"pitch" yaml:"pitch"`
	Temperature   float32 `json:"temperature" yaml:"temperature"`
	Movement      float32 `json:"movement" yaml:"movement"`
	Arousal       float32 `json:"arousal" yaml:"arousal"`
}

// Zeros returns a Pattern with every field set to 0.
func Zeros() Pattern {
	return Pattern{}
}

// Vector returns the fields in canonical order.
func (p Pattern) Vector() [NumDimensions]float32 {
	return [NumDimensions]float32{
		p.Brightness,
		p.ColorTemp,
		p.FocalDistance,
		p.Volume,
		p.Tempo,
		p.Pitch,
		p.Temperature,
		p.Movement,
		p.Arousal,
	}
}

// FromVector builds a Pattern from values in canonical order.
func FromVector(v [NumDimensions]float32) Pattern {
	return Pattern{
		Brightness:    v[0],
		ColorTemp:     v[1],
		FocalDistance: v[2],
		Volume:        v[3],
		Tempo:         v[4],
		Pitch:         v[5],
		Temperature:   v[6],
		Movement:      v[7],
		Arousal:       v[8],
	}
}

// InRange reports whether every field lies within its natural range.
func (p Pattern) InRange() bool {
	v := p.Vector()
	for i, d := range Dimensions {
		if v[i] < d.Min || v[i] > d.Max || math.IsNaN(float64(v[i])) {
			return false
		}
	}
	return true
}

// String renders the pattern with units, e.g. for CLI output.
func (p Pattern) String() string {
	return fmt.Sprintf("brightness=%.4f color_temp=%.2fK focal_distance=%.4f volume=%.4f tempo=%.2fBPM pitch=%.2fHz temperature=%.2fC movement=%.4f arousal=%.4f",
		p.Brightness, p.ColorTemp, p.FocalDistance, p.Volume, p.Tempo, p.Pitch, p.Temperature, p.Movement, p.Arousal)
}

// Quantize maps a 16-bit sample linearly into [min, max], with 0 -> min and
// 65535 -> max. It is the only bridge between digest bytes and domain values.
func Quantize(value uint16, min, max float32) float32 {
	t := float32(value) / 65535
	// The explicit conversion keeps the product rounded to float32 before the
	// add, so the result does not depend on FMA availability.
	return min + float32((max-min)*t)
}
