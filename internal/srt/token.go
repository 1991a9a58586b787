// Package srt implements the Semantic Rendezvous Token: a 32-byte shared
// secret and the deterministic derivation of a target pattern from it.
package srt

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Size is the length of a token in bytes.
const Size = 32

// HexLen is the length of a token's hex form.
const HexLen = Size * 2

var (
	// ErrInvalidLength is matched by errors for inputs of the wrong length.
	ErrInvalidLength = errors.New("invalid token length")

	// ErrInvalidCharacter is matched by errors for non-hex input characters.
	ErrInvalidCharacter = errors.New("invalid hex character in token")
)

// LengthError reports a byte slice or hex string of the wrong length.
type LengthError struct {
	Got  int
	Want int
	Hex  bool
}

func (e *LengthError) Error() string {
	unit := "bytes"
	if e.Hex {
		unit = "hex characters"
	}
	return fmt.Sprintf("%s: got %d %s, want %d", ErrInvalidLength, e.Got, unit, e.Want)
}

// Is makes LengthError match ErrInvalidLength.
func (e *LengthError) Is(target error) bool { return target == ErrInvalidLength }

// CharError reports a non-hex character at a byte offset of the input.
type CharError struct {
	Pos  int
	Char byte
}

func (e *CharError) Error() string {
	return fmt.Sprintf("%s: %q at position %d", ErrInvalidCharacter, e.Char, e.Pos)
}

// Is makes CharError match ErrInvalidCharacter.
func (e *CharError) Is(target error) bool { return target == ErrInvalidCharacter }

// Token is an opaque 32-byte shared secret. Callers must supply bytes with
// full entropy; no password stretching is performed.
type Token [Size]byte

// FromBytes wraps a 32-byte array.
func FromBytes(b [Size]byte) Token {
	return Token(b)
}

// FromSlice copies b into a Token. b must be exactly Size bytes long.
func FromSlice(b []byte) (Token, error) {
	if len(b) != Size {
		return Token{}, &LengthError{Got: len(b), Want: Size}
	}
	var t Token
	copy(t[:], b)
	return t, nil
}

// ParseHex parses a 64-character hex string, case-insensitively.
func ParseHex(s string) (Token, error) {
	if len(s) != HexLen {
		return Token{}, &LengthError{Got: len(s), Want: HexLen, Hex: true}
	}
	var t Token
	for i := 0; i < Size; i++ {
		hi, ok := fromHexChar(s[2*i])
		if !ok {
			return Token{}, &CharError{Pos: 2 * i, Char: s[2*i]}
		}
		lo, ok := fromHexChar(s[2*i+1])
		if !ok {
			return Token{}, &CharError{Pos: 2*i + 1, Char: s[2*i+1]}
		}
		t[i] = hi<<4 | lo
	}
	return t, nil
}

// Generate reads a fresh token from r, normally crypto/rand.Reader.
func Generate(r io.Reader) (Token, error) {
	var t Token
	if _, err := io.ReadFull(r, t[:]); err != nil {
		return Token{}, fmt.Errorf("reading token entropy: %w", err)
	}
	return t, nil
}

// Bytes returns a copy of the raw token bytes.
func (t Token) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, t[:])
	return b
}

// Hex returns the canonical lowercase hex form.
func (t Token) Hex() string {
	return hex.EncodeToString(t[:])
}

// String returns the canonical lowercase hex form. This is the secret itself;
// use Fingerprint when logging.
func (t Token) String() string {
	return t.Hex()
}

// Equal compares two tokens in constant time.
func (t Token) Equal(other Token) bool {
	return subtle.ConstantTimeCompare(t[:], other[:]) == 1
}

// IsZero reports whether every byte is zero.
func (t Token) IsZero() bool {
	return t == Token{}
}

// Fingerprint returns a short non-secret identifier: the first 8 bytes of
// SHA-256 over the token, hex encoded.
func (t Token) Fingerprint() string {
	sum := sha256.Sum256(t[:])
	return hex.EncodeToString(sum[:8])
}

// MarshalText implements encoding.TextMarshaler.
func (t Token) MarshalText() ([]byte, error) {
	return []byte(t.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Token) UnmarshalText(text []byte) error {
	parsed, err := ParseHex(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func fromHexChar(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
