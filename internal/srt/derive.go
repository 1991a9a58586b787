package srt

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"github.com/nvandessel/rendezvous/internal/pattern"
)

// DigestBytesUsed is the number of leading digest bytes consumed by
// derivation. The remaining bytes are reserved for future dimensions.
const DigestBytesUsed = pattern.NumDimensions * 2

// Digest returns HMAC-SHA256 keyed by the token over salt.
func Digest(t Token, salt []byte) [sha256.Size]byte {
	mac := hmac.New(sha256.New, t[:])
	mac.Write(salt)
	var out [sha256.Size]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// PatternFromToken derives the target pattern for (token, salt).
//
// Each dimension takes one big-endian uint16 from the digest, in the order
// of pattern.Dimensions. Peers on other implementations depend on this exact
// layout.
func PatternFromToken(t Token, salt []byte) pattern.Pattern {
	return PatternFromDigest(Digest(t, salt))
}

// PatternFromDigest quantizes a digest into a pattern.
func PatternFromDigest(digest [sha256.Size]byte) pattern.Pattern {
	var v [pattern.NumDimensions]float32
	for i, d := range pattern.Dimensions {
		chunk := binary.BigEndian.Uint16(digest[2*i : 2*i+2])
		v[i] = pattern.Quantize(chunk, d.Min, d.Max)
	}
	return pattern.FromVector(v)
}
