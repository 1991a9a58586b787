package matching

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/nvandessel/rendezvous/internal/pattern"
)

var (
	near = pattern.Zeros()
	far  = pattern.Pattern{
		Brightness: pattern.BrightnessMax,
		Arousal:    pattern.ArousalMax,
	}
)

func TestMatcher_RespectsWindowSize(t *testing.T) {
	m := NewMatcher(NewConfig(0.05, 3))
	target := pattern.Zeros()

	if m.Observe(near, target) {
		t.Error("observation 1 matched before window filled")
	}
	if m.Observe(near, target) {
		t.Error("observation 2 matched before window filled")
	}
	if !m.Observe(near, target) {
		t.Error("observation 3 should match with full window")
	}
}

func TestMatcher_WindowPopulationGate(t *testing.T) {
	for _, n := range []int{1, 2, 5, 10} {
		m := NewMatcher(NewConfig(0.1, n))
		target := pattern.Zeros()

		for i := 1; i < n; i++ {
			if m.Observe(near, target) {
				t.Fatalf("window %d: call %d returned true early", n, i)
			}
		}
		for i := 0; i < 3; i++ {
			if !m.Observe(near, target) {
				t.Fatalf("window %d: call %d should be matched", n, n+i)
			}
		}

		if m.Observe(far, target) {
			t.Fatalf("window %d: out-of-threshold observation still matched", n)
		}
		for i := 1; i < n; i++ {
			if m.Observe(near, target) {
				t.Fatalf("window %d: matched %d calls after break", n, i)
			}
		}
		if !m.Observe(near, target) {
			t.Fatalf("window %d: did not recover after %d clean calls", n, n)
		}
	}
}

func TestMatcher_RejectsFarPatterns(t *testing.T) {
	m := NewMatcher(NewConfig(0.1, 2))
	target := pattern.Pattern{Brightness: pattern.BrightnessMin, Arousal: pattern.ArousalMin}

	if m.Observe(far, target) {
		t.Error("far pattern matched")
	}
	if m.Observe(far, target) {
		t.Error("far pattern matched with full window")
	}
}

func TestMatcher_ZeroWindowIsInstantaneous(t *testing.T) {
	m := NewMatcher(NewConfig(0.1, 0))
	target := pattern.Zeros()

	sequence := []struct {
		measured pattern.Pattern
		want     bool
	}{
		{near, true},
		{far, false},
		{near, true},
		{near, true},
		{far, false},
		{far, false},
		{near, true},
	}
	for i, step := range sequence {
		if got := m.Observe(step.measured, target); got != step.want {
			t.Errorf("call %d: Observe() = %v, want %v", i, got, step.want)
		}
		if m.Len() != 0 {
			t.Errorf("call %d: zero window retained %d entries", i, m.Len())
		}
	}
}

func TestMatcher_EpsilonMonotonicity(t *testing.T) {
	target := pattern.Zeros()
	measured := pattern.Pattern{Brightness: 0.3, ColorTemp: 4000, Tempo: 60}
	d := pattern.NormalizedDistance(measured, target)
	if d <= 0 {
		t.Fatalf("test pair has non-positive distance %v", d)
	}

	above := []float32{d, d * 1.01, d + 0.5, 10}
	for _, eps := range above {
		if !NewMatcher(NewConfig(eps, 1)).Observe(measured, target) {
			t.Errorf("epsilon %v >= distance %v did not match", eps, d)
		}
	}

	below := []float32{0, d * 0.5, math.Nextafter32(d, 0)}
	for _, eps := range below {
		if NewMatcher(NewConfig(eps, 1)).Observe(measured, target) {
			t.Errorf("epsilon %v < distance %v matched", eps, d)
		}
	}
}

func TestMatcher_EpsilonChangesBehavior(t *testing.T) {
	measured := pattern.Zeros()
	target := pattern.Pattern{Brightness: pattern.BrightnessMax}

	strict := NewMatcher(NewConfig(0.01, 1))
	loose := NewMatcher(NewConfig(1.5, 1))

	if strict.Observe(measured, target) {
		t.Error("strict matcher matched distance 1")
	}
	if !loose.Observe(measured, target) {
		t.Error("loose matcher rejected distance 1")
	}
}

func TestMatcher_ZeroEpsilonExactMatch(t *testing.T) {
	target := pattern.Pattern{Brightness: 0.5, Pitch: 440}
	m := NewMatcher(NewConfig(0, 1))
	if !m.Observe(target, target) {
		t.Error("identical pattern rejected at epsilon 0")
	}
	// Out-of-range noise that clamps to the same normalized value still matches.
	clamped := NewMatcher(NewConfig(0, 1))
	if !clamped.Observe(pattern.Pattern{Brightness: 3}, pattern.Pattern{Brightness: 1}) {
		t.Error("clamped values should be identical after normalization")
	}
}

func TestMatcher_WindowOfOneRolls(t *testing.T) {
	m := NewMatcher(NewConfig(0.1, 1))
	target := pattern.Zeros()

	if !m.Observe(near, target) {
		t.Error("window 1 should match on first hit")
	}
	if m.Observe(far, target) {
		t.Error("window 1 should drop the match on a miss")
	}
	if !m.Observe(near, target) {
		t.Error("window 1 should match again on the next hit")
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestMatcher_Evaluate(t *testing.T) {
	m := NewMatcher(NewConfig(0.5, 2))
	target := pattern.Zeros()

	obs := m.Evaluate(pattern.Pattern{Brightness: 0.3}, target)
	if math.Abs(float64(obs.Distance)-0.3) > 1e-6 {
		t.Errorf("Distance = %v, want 0.3", obs.Distance)
	}
	if !obs.Within || obs.Matched || obs.Filled != 1 {
		t.Errorf("first observation = %+v", obs)
	}

	obs = m.Evaluate(pattern.Pattern{Brightness: 0.3}, target)
	if !obs.Matched || obs.Filled != 2 {
		t.Errorf("second observation = %+v", obs)
	}
}

func TestMatcher_Reset(t *testing.T) {
	m := NewMatcher(NewConfig(0.1, 2))
	target := pattern.Zeros()
	m.Observe(near, target)
	m.Observe(near, target)

	m.Reset()
	if m.Len() != 0 {
		t.Errorf("Len() after Reset = %d", m.Len())
	}
	if m.Observe(near, target) {
		t.Error("matched immediately after Reset")
	}
}

func TestNewConfig_ClampsNegatives(t *testing.T) {
	cfg := NewConfig(-1, -4)
	if cfg.Epsilon != 0 || cfg.WindowSize != 0 {
		t.Errorf("NewConfig(-1, -4) = %+v", cfg)
	}

	m := NewMatcher(Config{Epsilon: 0.2, WindowSize: -3})
	if m.Config().WindowSize != 0 {
		t.Errorf("matcher kept negative window: %+v", m.Config())
	}
}

func TestMatcher_HugeWindow(t *testing.T) {
	for _, w := range []int{1 << 30, math.MaxInt} {
		m := NewMatcher(NewConfig(0.1, w))
		target := pattern.Zeros()
		for i := 0; i < 100; i++ {
			if m.Observe(near, target) {
				t.Fatalf("window %d matched after %d observations", w, i+1)
			}
		}
		if m.Len() != 100 {
			t.Errorf("window %d: Len() = %d, want 100", w, m.Len())
		}
	}
}

// TestMatcher_AgreesWithSlidingWindow compares the decisions against a
// literal "last N outcomes all within" check over random outcome sequences.
func TestMatcher_AgreesWithSlidingWindow(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	target := pattern.Zeros()

	for _, w := range []int{1, 2, 3, 5, 8} {
		m := NewMatcher(NewConfig(0.1, w))
		var history []bool
		for i := 0; i < 500; i++ {
			within := rng.IntN(4) != 0
			measured := far
			if within {
				measured = near
			}
			history = append(history, within)

			want := len(history) >= w
			for _, h := range history[max(0, len(history)-w):] {
				want = want && h
			}

			obs := m.Evaluate(measured, target)
			if obs.Matched != want {
				t.Fatalf("window %d step %d: Matched = %v, want %v", w, i, obs.Matched, want)
			}
			if obs.Filled != min(len(history), w) {
				t.Fatalf("window %d step %d: Filled = %d", w, i, obs.Filled)
			}
		}
	}
}
