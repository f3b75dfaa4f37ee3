// Package imutil implements the core's utility belt (C10): markup
// escape/strip/linkify, base16, UTF-8 salvage, time parsing, and URI
// helpers. Every exported function here is pure, grounded on
// libpurple's util.h declarations (purple_markup_escape_text,
// purple_markup_linkify, purple_base16_encode, purple_url_encode, …)
// and on the teacher's own regexp-based link detection in
// linkpreview.go.
package imutil

import (
	"regexp"
	"strings"
)

// EscapeText escapes the five XML/HTML-significant characters, matching
// purple_markup_escape_text.
func EscapeText(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return r.Replace(s)
}

var htmlEntities = map[string]string{
	"&amp;":  "&",
	"&lt;":   "<",
	"&gt;":   ">",
	"&quot;": "\"",
	"&#39;":  "'",
	"&apos;": "'",
	"&nbsp;": " ",
}

// UnescapeText reverses EscapeText: entities only, no <br> handling,
// matching purple_unescape_text.
func UnescapeText(s string) string {
	return unescapeEntities(s)
}

// UnescapeHTML reverses EscapeText and additionally folds <br> (in any
// case/attribute form) into a newline, matching purple_unescape_html.
func UnescapeHTML(s string) string {
	s = brTagPattern.ReplaceAllString(s, "\n")
	return unescapeEntities(s)
}

var brTagPattern = regexp.MustCompile(`(?i)<br\s*/?>`)

var entityPattern = regexp.MustCompile(`&(?:[a-zA-Z]+|#[0-9]+|#x[0-9a-fA-F]+);`)

func unescapeEntities(s string) string {
	return entityPattern.ReplaceAllStringFunc(s, func(ent string) string {
		if repl, ok := htmlEntities[ent]; ok {
			return repl
		}
		return ent
	})
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes all tags, folding <br> into a newline before
// stripping the rest, matching purple_markup_strip_html.
func StripHTML(s string) string {
	s = brTagPattern.ReplaceAllString(s, "\n")
	s = tagPattern.ReplaceAllString(s, "")
	return unescapeEntities(s)
}

// urlPattern mirrors the teacher's own linkPreviewTimeout detection
// regex in linkpreview.go, broadened slightly to also catch xmpp: URIs
// since C10 requires linkify to work across every wire protocol, not
// just chat links shown in a browser preview.
var urlPattern = regexp.MustCompile(`(?:https?|xmpp)://[^\s<>"]+`)

// Linkify wraps any bare URL in s with an anchor tag, matching
// purple_markup_linkify. Text already inside an anchor is left alone by
// virtue of operating on the escaped/plain body text the protocol
// layers hand it (callers apply this before further HTML markup is
// added).
func Linkify(s string) string {
	return urlPattern.ReplaceAllStringFunc(s, func(url string) string {
		return `<a href="` + url + `">` + url + `</a>`
	})
}

// Slice returns the substring of s between character offsets x and y
// (not byte offsets), matching purple_markup_slice's character-offset
// contract. Out-of-range offsets clamp rather than panic.
func Slice(s string, x, y int) string {
	r := []rune(s)
	if x < 0 {
		x = 0
	}
	if y > len(r) {
		y = len(r)
	}
	if x >= y {
		return ""
	}
	return string(r[x:y])
}

// IsRTL reports whether s's first strong-directionality rune is from a
// right-to-left script (Hebrew or Arabic block), matching
// purple_markup_is_rtl's "first character with inherent direction"
// heuristic.
func IsRTL(s string) bool {
	for _, r := range s {
		switch {
		case r >= 0x0590 && r <= 0x05FF: // Hebrew
			return true
		case r >= 0x0600 && r <= 0x06FF: // Arabic
			return true
		case (r >= 0x0041 && r <= 0x007A):
			return false
		}
	}
	return false
}

// GetCSSProperty extracts a single property value out of an inline
// style attribute string (e.g. "color: red; font-weight: bold"),
// matching purple_markup_get_css_property.
func GetCSSProperty(style, property string) (string, bool) {
	for _, decl := range strings.Split(style, ";") {
		parts := strings.SplitN(decl, ":", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), property) {
			return strings.TrimSpace(parts[1]), true
		}
	}
	return "", false
}
