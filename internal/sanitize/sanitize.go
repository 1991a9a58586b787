// Package sanitize cleans untrusted strings before they reach logs, audit
// entries or terminal output. Values that feed derivation (tokens, salts)
// are never rewritten; they are only bounded.
package sanitize

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLabelLength is the maximum length of a label written to logs.
const MaxLabelLength = 128

// MaxSaltLength bounds salts accepted from remote callers.
const MaxSaltLength = 1024

// Label returns s on a single line with control and format characters
// removed, truncated to MaxLabelLength bytes on a rune boundary. Device IDs
// from MQTT topics and error messages quoting user input go through here.
func Label(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == utf8.RuneError:
			continue
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteByte(' ')
		case unicode.IsControl(r) || unicode.Is(unicode.Cf, r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())

	if len(out) > MaxLabelLength {
		cut := MaxLabelLength
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut] + "..."
	}
	return out
}

// CheckSalt rejects salts that are too long or not valid UTF-8. Salts are
// passed through unchanged otherwise.
func CheckSalt(salt string) error {
	if len(salt) > MaxSaltLength {
		return fmt.Errorf("salt is %d bytes, maximum is %d", len(salt), MaxSaltLength)
	}
	if !utf8.ValidString(salt) {
		return fmt.Errorf("salt is not valid UTF-8")
	}
	return nil
}
