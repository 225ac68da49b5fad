package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultSentinels mirrors the missing-value tokens recognized by pandas.
var DefaultSentinels = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None", "n/a", "nan", "null",
}

// ParseOptions controls cell interpretation.
type ParseOptions struct {
	// DecimalSeparator; 0 settles one separator per column from its cells.
	DecimalSeparator rune
	// ThousandsSeparator; 0 means whichever of ',' and '.' is not the decimal
	// separator. Spaces inside a number are accepted only when this is ' '.
	ThousandsSeparator rune
	// Sentinels are literal tokens treated as missing after trimming. nil means DefaultSentinels.
	Sentinels []string

	sentinelSet map[string]struct{}
}

var defaultSentinelSet = sentinelSet(DefaultSentinels)

func sentinelSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens)+1)
	for _, t := range tokens {
		set[strings.TrimSpace(t)] = struct{}{}
	}
	// A blank cell is always absent.
	set[""] = struct{}{}
	return set
}

// WithSentinels returns a copy using the given sentinel tokens.
func (o ParseOptions) WithSentinels(tokens []string) ParseOptions {
	o.Sentinels = tokens
	o.sentinelSet = nil
	if tokens != nil {
		o.sentinelSet = sentinelSet(tokens)
	}
	return o
}

// IsMissing reports whether a raw cell is a sentinel token.
func (o ParseOptions) IsMissing(v string) bool {
	set := o.sentinelSet
	if set == nil {
		if o.Sentinels != nil {
			set = sentinelSet(o.Sentinels)
		} else {
			set = defaultSentinelSet
		}
	}
	_, ok := set[strings.TrimSpace(v)]
	return ok
}

// Classify resolves the type tag of a column from every non-missing cell.
// A single cell that fails a class rules that class out; a column with no
// non-missing cells is textual.
func Classify(raw []string, missing []bool, opt ParseOptions) Type {
	t, _ := classify(raw, missing, opt)
	return t
}

// classify also returns the number format settled for the column.
func classify(raw []string, missing []bool, opt ParseOptions) (Type, ParseOptions) {
	numOpt, num := NumberFormat(raw, missing, opt)
	boo, tim := true, true
	seen := false
	for i, v := range raw {
		if missing[i] {
			continue
		}
		seen = true
		if num {
			if _, ok := ParseNumber(v, numOpt); !ok {
				num = false
			}
		}
		if boo {
			if _, ok := ParseBool(v); !ok {
				boo = false
			}
		}
		if tim {
			if _, ok := ParseTime(v); !ok {
				tim = false
			}
		}
		if !num && !boo && !tim {
			return Textual, numOpt
		}
	}
	switch {
	case !seen:
		return Textual, numOpt
	case num:
		return Numeric, numOpt
	case boo:
		return Boolean, numOpt
	case tim:
		return Temporal, numOpt
	}
	return Textual, numOpt
}

// ParseBool accepts true/false in any letter case.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04:05",
	"1/2/2006 15:04", "1/2/2006 15:04:05", "2006-01",
}

// ParseTime tries the supported date and timestamp layouts.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func cleanNumber(s string) string {
	raw := strings.ReplaceAll(strings.TrimSpace(s), "%", "")
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.ReplaceAll(raw, "\u202F", " ")
	return strings.TrimSpace(raw)
}

// decimalHint reports the decimal separator a single value implies. A lone
// ',' or '.' could be either separator, so sure is false for it.
func decimalHint(raw string) (dec rune, sure bool) {
	nc, nd := strings.Count(raw, ","), strings.Count(raw, ".")
	switch {
	case nc > 0 && nd > 0:
		if strings.LastIndex(raw, ",") > strings.LastIndex(raw, ".") {
			return ',', true
		}
		return '.', true
	case nc > 1:
		return '.', true
	case nd > 1:
		return ',', true
	case nc == 1:
		return ',', false
	case nd == 1:
		return '.', false
	}
	return 0, false
}

func otherSeparator(dec rune) rune {
	if dec == ',' {
		return '.'
	}
	return ','
}

// NumberFormat settles one decimal and thousands separator for a whole
// column. Values that are unambiguous ("1,234.5", "1.000,5", "1,000,000")
// decide it; otherwise a lone ',' or '.' is taken as the decimal separator.
// ok is false when the values imply different decimal separators.
func NumberFormat(raw []string, missing []bool, opt ParseOptions) (ParseOptions, bool) {
	if opt.DecimalSeparator == 0 {
		switch opt.ThousandsSeparator {
		case ',':
			opt.DecimalSeparator = '.'
		case '.':
			opt.DecimalSeparator = ','
		}
	}
	if opt.DecimalSeparator == 0 {
		var sure, weak rune
		weakMixed := false
		for i, v := range raw {
			if missing[i] {
				continue
			}
			d, ok := decimalHint(cleanNumber(v))
			switch {
			case d == 0:
			case ok:
				if sure != 0 && sure != d {
					return opt, false
				}
				sure = d
			default:
				if weak != 0 && weak != d {
					weakMixed = true
				}
				weak = d
			}
		}
		dec := sure
		if dec == 0 {
			if weakMixed {
				return opt, false
			}
			dec = weak
		}
		if dec == 0 {
			dec = '.'
		}
		opt.DecimalSeparator = dec
	}
	if opt.ThousandsSeparator == 0 {
		opt.ThousandsSeparator = otherSeparator(opt.DecimalSeparator)
	}
	return opt, true
}

// ParseNumber parses a locale-formatted number with an optional percent
// sign. Without a configured decimal separator the value picks its own; use
// NumberFormat to settle one for a column first. Thousands groups must hold
// three digits.
func ParseNumber(s string, opt ParseOptions) (float64, bool) {
	raw := cleanNumber(s)
	if raw == "" {
		return 0, false
	}
	dec, thou := opt.DecimalSeparator, opt.ThousandsSeparator
	if dec == 0 {
		switch thou {
		case ',':
			dec = '.'
		case '.':
			dec = ','
		default:
			if dec, _ = decimalHint(raw); dec == 0 {
				dec = '.'
			}
		}
	}
	if thou == 0 {
		thou = otherSeparator(dec)
	}

	intPart, frac, hasFrac := raw, "", false
	if i := strings.LastIndex(raw, string(dec)); i >= 0 {
		intPart, frac, hasFrac = raw[:i], raw[i+utf8.RuneLen(dec):], true
	}
	if thou != dec && strings.ContainsRune(intPart, thou) {
		groups := strings.Split(intPart, string(thou))
		head := strings.TrimLeft(groups[0], "+-")
		if head == "" || len(head) > 3 {
			return 0, false
		}
		for _, g := range groups[1:] {
			if len(g) != 3 {
				return 0, false
			}
		}
		intPart = strings.Join(groups, "")
	}
	num := intPart
	if hasFrac {
		num += "." + frac
	}
	for _, r := range num {
		if !(r >= '0' && r <= '9') && !strings.ContainsRune("+-.eE", r) {
			return 0, false
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
