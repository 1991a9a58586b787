package srt

import (
	"fmt"
	"math"
	"testing"

	"github.com/nvandessel/rendezvous/internal/pattern"
)

func assertClose(t *testing.T, label string, got, want, tol float32) {
	t.Helper()
	if diff := math.Abs(float64(got - want)); diff > float64(tol) {
		t.Errorf("%s out of tolerance: got=%v want=%v diff=%v", label, got, want, diff)
	}
}

func assertPatternClose(t *testing.T, got, want pattern.Pattern, tol float32) {
	t.Helper()
	g, w := got.Vector(), want.Vector()
	for i, d := range pattern.Dimensions {
		assertClose(t, d.Name, g[i], w[i], tol)
	}
}

func TestPatternFromToken_Golden(t *testing.T) {
	tests := []struct {
		salt string
		want pattern.Pattern
	}{
		{
			salt: "alpha",
			want: pattern.Pattern{
				Brightness:    0.6505379,
				ColorTemp:     8464.454,
				FocalDistance: 0.1207599,
				Volume:        0.4094301,
				Tempo:         119.63836,
				Pitch:         15938.757,
				Temperature:   25.549553,
				Movement:      0.30618754,
				Arousal:       0.6899062,
			},
		},
		{
			salt: "beta",
			want: pattern.Pattern{
				Brightness:    0.043427177,
				ColorTemp:     4914.473,
				FocalDistance: 0.5757839,
				Volume:        0.5407492,
				Tempo:         179.16228,
				Pitch:         14068.652,
				Temperature:   33.150837,
				Movement:      0.7570611,
				Arousal:       0.7669337,
			},
		},
	}

	tok := sequentialToken(t)
	for _, tt := range tests {
		t.Run(tt.salt, func(t *testing.T) {
			assertPatternClose(t, PatternFromToken(tok, []byte(tt.salt)), tt.want, 1e-3)
		})
	}
}

func TestPatternFromToken_Deterministic(t *testing.T) {
	tok := FromBytes([Size]byte{1, 2, 3})
	for _, salt := range []string{"", "a", "oracle-state", "a longer salt with spaces"} {
		a := PatternFromToken(tok, []byte(salt))
		b := PatternFromToken(tok, []byte(salt))
		if a != b {
			t.Errorf("salt %q: derivation not deterministic: %+v vs %+v", salt, a, b)
		}
	}
}

func TestPatternFromToken_SaltSensitivity(t *testing.T) {
	tok := FromBytes([Size]byte{9})
	base := PatternFromToken(tok, []byte("salt-0"))

	changed := 0
	for i := 1; i <= 5; i++ {
		if PatternFromToken(tok, []byte(fmt.Sprintf("salt-%d", i))) != base {
			changed++
		}
	}
	if changed < 2 {
		t.Errorf("only %d of 5 salts changed the derived pattern", changed)
	}
}

func TestPatternFromToken_TokenAvalanche(t *testing.T) {
	a := FromBytes([Size]byte{})
	b := a
	b[31] ^= 0x01

	va := PatternFromToken(a, []byte("alpha")).Vector()
	vb := PatternFromToken(b, []byte("alpha")).Vector()
	differing := 0
	for i := range va {
		if va[i] != vb[i] {
			differing++
		}
	}
	if differing < pattern.NumDimensions/2 {
		t.Errorf("one-bit token change altered only %d dimensions", differing)
	}
}

func TestPatternFromToken_InRange(t *testing.T) {
	tok := sequentialToken(t)
	for i := 0; i < 100; i++ {
		p := PatternFromToken(tok, []byte(fmt.Sprintf("%d", i)))
		if !p.InRange() {
			t.Fatalf("derived pattern out of range: %+v", p)
		}
	}
}

func TestPatternFromDigest_ChunkOrder(t *testing.T) {
	var digest [32]byte
	// brightness chunk = 0xffff, color_temp chunk = 0x0000, tempo chunk = 0xffff
	digest[0], digest[1] = 0xff, 0xff
	digest[8], digest[9] = 0xff, 0xff
	// reserved bytes must not matter
	for i := DigestBytesUsed; i < len(digest); i++ {
		digest[i] = 0x5a
	}

	p := PatternFromDigest(digest)
	if p.Brightness != pattern.BrightnessMax {
		t.Errorf("Brightness = %v, want max", p.Brightness)
	}
	if p.ColorTemp != pattern.ColorTempMin {
		t.Errorf("ColorTemp = %v, want min", p.ColorTemp)
	}
	if p.Tempo != pattern.TempoMax {
		t.Errorf("Tempo = %v, want max", p.Tempo)
	}
	if p.Arousal != pattern.ArousalMin {
		t.Errorf("Arousal = %v, want min", p.Arousal)
	}
}
