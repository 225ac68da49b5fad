package ingest

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ParseDelimiter maps a user-supplied delimiter name to a rune; "" means auto.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case ",", "comma":
		return ',', nil
	case "\t", "tab", `\t`:
		return '\t', nil
	case ";", "semicolon":
		return ';', nil
	case "|", "pipe":
		return '|', nil
	}
	return 0, fmt.Errorf("unsupported delimiter %q (use ','|';'|'|'|'tab')", s)
}

// ParseDecimal maps a decimal separator name to a rune; "" means auto-detect.
func ParseDecimal(s string) (rune, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return 0, nil
	case ",", "comma":
		return ',', nil
	case ".", "dot":
		return '.', nil
	}
	return 0, fmt.Errorf("unsupported decimal separator %q (use '.'|'comma')", s)
}

// ParseThousands maps a thousands separator name to a rune; "" means auto-detect.
func ParseThousands(s string) (rune, error) {
	if s == " " {
		return ' ', nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return 0, nil
	case ",", "comma":
		return ',', nil
	case ".", "dot":
		return '.', nil
	case "space":
		return ' ', nil
	case "'", "apostrophe":
		return '\'', nil
	}
	return 0, fmt.Errorf("unsupported thousands separator %q (use ','|'.'|'space')", s)
}

// SeparatorName renders a delimiter or separator rune in the form the parsers accept.
func SeparatorName(r rune) string {
	switch r {
	case 0:
		return ""
	case '\t':
		return "tab"
	case ' ':
		return "space"
	}
	if !utf8.ValidRune(r) {
		return ""
	}
	return string(r)
}
