// Package fonts maps arbitrary document font names onto a fixed set of
// substitute fonts and measures text in them. The substitute set is the 12
// classic core fonts: three families (sans, serif, mono) in regular, bold,
// italic and bold-italic.
package fonts

import (
	"regexp"
	"strings"
)

// Builtin substitute font names. The short names follow the base-14
// convention: helv (Helvetica), tiro (Times Roman), cour (Courier), with
// b/i/bi style suffixes.
const (
	DefaultFont = "helv"
)

var builtinFonts = map[string]bool{
	"helv": true, "helvb": true, "helvi": true, "helvbi": true,
	"tiro": true, "tirob": true, "tiroi": true, "tirobi": true,
	"cour": true, "courb": true, "couri": true, "courbi": true,
}

// IsBuiltin reports whether name is one of the 12 substitute fonts.
func IsBuiltin(name string) bool { return builtinFonts[name] }

// Resolution is the outcome of mapping a font name to a builtin.
// Fidelity is 1.0 for an exact builtin name, 0.9 for a family-keyword
// match, 0.7 for a missing or unknown name that fell back to the default.
type Resolution struct {
	Builtin  string
	Fidelity float64
	Reason   string
}

var (
	separatorRun = regexp.MustCompile(`[,_\s]+`)
	hyphenRun    = regexp.MustCompile(`-+`)
)

var sansTokens = map[string]bool{
	"calibri": true, "arial": true, "arialmt": true,
	"helvetica": true, "sans": true, "sansserif": true,
}

var serifTokens = map[string]bool{
	"times": true, "timesnewroman": true, "timesnewromanpsmt": true, "serif": true,
}

var monoTokens = map[string]bool{
	"courier": true, "mono": true, "monospace": true,
}

// NormalizeName strips a subset prefix ("ABCDEF+Name"), lowercases, and
// collapses separators into single hyphens.
func NormalizeName(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return ""
	}
	if prefix, remainder, ok := strings.Cut(cleaned, "+"); ok {
		if isSubsetPrefix(prefix) {
			cleaned = remainder
		}
	}
	normalized := separatorRun.ReplaceAllString(strings.ToLower(cleaned), "-")
	normalized = hyphenRun.ReplaceAllString(normalized, "-")
	return strings.Trim(normalized, "-")
}

func isSubsetPrefix(prefix string) bool {
	stripped := strings.ReplaceAll(prefix, " ", "")
	if len(prefix) != 6 || stripped == "" {
		return false
	}
	for _, r := range stripped {
		alnum := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !alnum {
			return false
		}
	}
	return true
}

func detectFamily(tokens []string, normalized string) (string, string) {
	candidates := append(append([]string(nil), tokens...), strings.ReplaceAll(normalized, "-", ""))
	for _, tok := range candidates {
		if sansTokens[tok] {
			return "helv", "family_map"
		}
	}
	for _, tok := range candidates {
		if serifTokens[tok] {
			return "tiro", "family_map"
		}
	}
	for _, tok := range candidates {
		if monoTokens[tok] {
			return "cour", "family_map"
		}
	}
	if builtinFonts[normalized] {
		return normalized, "builtin"
	}
	return "helv", "unknown_fallback"
}

// Resolve maps an arbitrary (often subsetted) font name onto a builtin
// substitute with a fidelity score.
func Resolve(raw string) Resolution {
	normalized := NormalizeName(raw)
	if normalized == "" {
		return Resolution{Builtin: DefaultFont, Fidelity: 0.7, Reason: "missing_font"}
	}

	var tokens []string
	for _, tok := range strings.Split(normalized, "-") {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}

	family, reason := detectFamily(tokens, normalized)

	isBold := false
	isItalic := false
	for _, tok := range tokens {
		if strings.Contains(tok, "bold") {
			isBold = true
		}
		if tok == "italic" || tok == "oblique" || strings.Contains(tok, "italic") {
			isItalic = true
		}
	}

	base := family
	// Style suffixes compose onto bare family names only; an exact
	// builtin match like "helvbi" already carries its style.
	if family == "helv" || family == "tiro" || family == "cour" {
		switch {
		case isBold && isItalic:
			base = family + "bi"
		case isBold:
			base = family + "b"
		case isItalic:
			base = family + "i"
		}
	}

	if !builtinFonts[base] {
		return Resolution{Builtin: DefaultFont, Fidelity: 0.7, Reason: "unknown_fallback"}
	}
	switch reason {
	case "builtin":
		return Resolution{Builtin: base, Fidelity: 1.0, Reason: reason}
	case "family_map":
		return Resolution{Builtin: base, Fidelity: 0.9, Reason: reason}
	default:
		return Resolution{Builtin: base, Fidelity: 0.7, Reason: reason}
	}
}
