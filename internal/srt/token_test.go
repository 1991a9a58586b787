package srt

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
)

const sequentialHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func sequentialToken(t *testing.T) Token {
	t.Helper()
	tok, err := ParseHex(sequentialHex)
	if err != nil {
		t.Fatalf("ParseHex(%q): %v", sequentialHex, err)
	}
	return tok
}

func TestParseHex_Valid(t *testing.T) {
	tok := sequentialToken(t)
	for i := 0; i < Size; i++ {
		if tok[i] != byte(i) {
			t.Fatalf("byte %d = %#x, want %#x", i, tok[i], i)
		}
	}
}

func TestParseHex_CaseInsensitive(t *testing.T) {
	lower, err := ParseHex(strings.Repeat("ab", Size))
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	upper, err := ParseHex(strings.Repeat("AB", Size))
	if err != nil {
		t.Fatalf("upper: %v", err)
	}
	if lower != upper {
		t.Errorf("case changed the parsed token")
	}
	if upper.String() != strings.Repeat("ab", Size) {
		t.Errorf("String() = %q, want lowercase", upper.String())
	}
}

func TestParseHex_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		wantPos int
	}{
		{"empty", "", ErrInvalidLength, -1},
		{"too short", sequentialHex[:62], ErrInvalidLength, -1},
		{"too long", sequentialHex + "00", ErrInvalidLength, -1},
		{"non hex first char", "g" + sequentialHex[1:], ErrInvalidCharacter, 0},
		{"non hex low nibble", sequentialHex[:9] + "z" + sequentialHex[10:], ErrInvalidCharacter, 9},
		{"space", sequentialHex[:63] + " ", ErrInvalidCharacter, 63},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHex(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseHex() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantPos >= 0 {
				var charErr *CharError
				if !errors.As(err, &charErr) {
					t.Fatalf("error %v is not a *CharError", err)
				}
				if charErr.Pos != tt.wantPos {
					t.Errorf("Pos = %d, want %d", charErr.Pos, tt.wantPos)
				}
				if errors.Is(err, ErrInvalidLength) {
					t.Error("character error also matched ErrInvalidLength")
				}
			}
		})
	}
}

func TestFromSlice(t *testing.T) {
	if _, err := FromSlice(make([]byte, 31)); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("31 bytes: error = %v, want ErrInvalidLength", err)
	}
	if _, err := FromSlice(make([]byte, 33)); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("33 bytes: error = %v, want ErrInvalidLength", err)
	}

	var lenErr *LengthError
	_, err := FromSlice(nil)
	if !errors.As(err, &lenErr) || lenErr.Got != 0 || lenErr.Want != Size {
		t.Errorf("nil slice: error = %#v", err)
	}

	src := bytes.Repeat([]byte{7}, Size)
	tok, err := FromSlice(src)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	src[0] = 9
	if tok[0] != 7 {
		t.Error("token aliases the input slice")
	}
}

func TestHexRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1))
	for i := 0; i < 200; i++ {
		var b [Size]byte
		for j := range b {
			b[j] = byte(rng.UintN(256))
		}
		tok := FromBytes(b)
		parsed, err := ParseHex(tok.String())
		if err != nil {
			t.Fatalf("ParseHex(%q): %v", tok.String(), err)
		}
		if parsed != tok {
			t.Fatalf("round trip mismatch for %x", b)
		}
		if len(tok.String()) != HexLen {
			t.Fatalf("String() length = %d", len(tok.String()))
		}
	}
}

func TestEqual(t *testing.T) {
	a := FromBytes([Size]byte{1})
	b := FromBytes([Size]byte{1})
	c := FromBytes([Size]byte{2})
	if !a.Equal(b) {
		t.Error("equal tokens compared unequal")
	}
	if a.Equal(c) {
		t.Error("different tokens compared equal")
	}
}

func TestGenerate(t *testing.T) {
	src := bytes.NewReader(bytes.Repeat([]byte{0xaa}, Size))
	tok, err := Generate(src)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if tok.String() != strings.Repeat("aa", Size) {
		t.Errorf("Generate() = %s", tok)
	}

	if _, err := Generate(bytes.NewReader(make([]byte, 5))); err == nil {
		t.Error("expected error for short entropy source")
	}
}

func TestFingerprint(t *testing.T) {
	tok := sequentialToken(t)
	fp := tok.Fingerprint()
	if len(fp) != 16 {
		t.Errorf("Fingerprint length = %d, want 16", len(fp))
	}
	if strings.Contains(sequentialHex, fp) {
		t.Error("fingerprint leaks token bytes")
	}
	if fp != tok.Fingerprint() {
		t.Error("fingerprint not stable")
	}
}

func TestToken_JSON(t *testing.T) {
	type wrapper struct {
		Token Token `json:"token"`
	}
	tok := sequentialToken(t)

	data, err := json.Marshal(wrapper{Token: tok})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), sequentialHex) {
		t.Errorf("JSON %s does not carry hex form", data)
	}

	var got wrapper
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Token != tok {
		t.Error("JSON round trip changed token")
	}

	if err := json.Unmarshal([]byte(`{"token":"xyz"}`), &got); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("bad token error = %v, want ErrInvalidLength", err)
	}
}
