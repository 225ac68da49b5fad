package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// legacyEncodings maps accepted Options.Encoding names to decoders.
var legacyEncodings = map[string]encoding.Encoding{
	"latin1":       charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"iso-8859-15":  charmap.ISO8859_15,
}

// decodeText converts raw bytes to UTF-8. BOM-marked UTF-8 and UTF-16 are
// always honoured; other input must be valid UTF-8 unless a legacy encoding
// is configured.
func decodeText(name string, b []byte, enc string) (string, error) {
	switch {
	case bytes.HasPrefix(b, bomUTF8):
		b = b[len(bomUTF8):]
	case bytes.HasPrefix(b, bomUTF16LE), bytes.HasPrefix(b, bomUTF16BE):
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), b)
		if err != nil {
			return "", &EncodingError{Name: name, Encoding: "utf-16", Offset: -1, Err: err}
		}
		return string(out), nil
	}

	enc = strings.ToLower(strings.TrimSpace(enc))
	if enc == "" || enc == "utf-8" || enc == "utf8" {
		if off := invalidUTF8Offset(b); off >= 0 {
			return "", &EncodingError{Name: name, Encoding: "utf-8", Offset: off, Err: errors.New("invalid UTF-8 sequence")}
		}
		if i := bytes.IndexByte(b, 0); i >= 0 {
			return "", &EncodingError{Name: name, Encoding: "utf-8", Offset: i, Err: errors.New("NUL byte in text input (UTF-16 without BOM?)")}
		}
		return string(b), nil
	}
	e, ok := legacyEncodings[enc]
	if !ok {
		return "", &EncodingError{Name: name, Encoding: enc, Offset: -1, Err: fmt.Errorf("unsupported encoding %q", enc)}
	}
	out, err := e.NewDecoder().Bytes(b)
	if err != nil {
		return "", &EncodingError{Name: name, Encoding: enc, Offset: -1, Err: err}
	}
	return string(out), nil
}

func invalidUTF8Offset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}
