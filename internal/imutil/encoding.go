package imutil

import (
	"encoding/hex"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Base16Encode is a thin name-matching wrapper over encoding/hex,
// matching purple_base16_encode.
func Base16Encode(data []byte) string { return hex.EncodeToString(data) }

// Base16Decode reverses Base16Encode, matching purple_base16_decode.
func Base16Decode(s string) ([]byte, error) { return hex.DecodeString(s) }

// Base16EncodeChunked encodes data as colon-separated byte pairs
// ("01:23:ab"), matching purple_base16_encode_chunked.
func Base16EncodeChunked(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = hex.EncodeToString([]byte{b})
	}
	return strings.Join(parts, ":")
}

// Base16DecodeChunked reverses Base16EncodeChunked.
func Base16DecodeChunked(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(strings.ReplaceAll(s, ":", ""))
}

// URLEncode percent-encodes s for use in a query component, matching
// purple_url_encode.
func URLEncode(s string) string { return url.QueryEscape(s) }

// URLDecode reverses URLEncode, matching purple_url_decode. Malformed
// input is returned unchanged rather than erroring, matching the
// source's "best effort" decode behavior.
func URLDecode(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// EmailIsValid applies a pragmatic (not RFC 5322-exhaustive) validity
// check, matching purple_email_is_valid's intent of rejecting obviously
// malformed addresses rather than fully validating them.
func EmailIsValid(address string) bool {
	at := strings.IndexByte(address, '@')
	if at <= 0 || at == len(address)-1 {
		return false
	}
	local, domain := address[:at], address[at+1:]
	if strings.ContainsAny(local, " \t\r\n") {
		return false
	}
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return false
	}
	return !strings.ContainsAny(domain, " \t\r\n@")
}

// UriEscapeForOpen shell-escapes unescaped for safe use as a single
// argument to an "open URL in browser" command line, matching
// purple_uri_escape_for_open: wraps in single quotes, escaping any
// embedded single quote as '\''.
func UriEscapeForOpen(unescaped string) string {
	return "'" + strings.ReplaceAll(unescaped, "'", `'\''`) + "'"
}

// StrReplace replaces every occurrence of delimiter in s with
// replacement, matching purple_strreplace (a named wrapper over the
// same semantics as strings.ReplaceAll, kept as a distinct name so
// callers porting protocol code can find the familiar spelling).
func StrReplace(s, delimiter, replacement string) string {
	return strings.ReplaceAll(s, delimiter, replacement)
}

// StrCaseStr finds needle in haystack case-insensitively, matching
// purple_strcasestr. Returns -1 if not found.
func StrCaseStr(haystack, needle string) int {
	return strings.Index(strings.ToLower(haystack), strings.ToLower(needle))
}

// StrCaseCmp compares a and b case-insensitively: it lower-cases both
// and compares the results byte-wise. No locale collation is applied.
func StrCaseCmp(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// HasWord reports whether needle appears in haystack as a whole,
// case-insensitive word (bounded by non-letter/digit runes or string
// edges), matching purple_message_meify/has_word style boundary checks
// used for mention/keyword detection.
func HasWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	lowerHay := strings.ToLower(haystack)
	lowerNeedle := strings.ToLower(needle)
	start := 0
	for {
		idx := strings.Index(lowerHay[start:], lowerNeedle)
		if idx < 0 {
			return false
		}
		abs := start + idx
		before := rune(' ')
		if abs > 0 {
			before, _ = utf8.DecodeLastRuneInString(lowerHay[:abs])
		}
		afterIdx := abs + len(lowerNeedle)
		after := rune(' ')
		if afterIdx < len(lowerHay) {
			after, _ = utf8.DecodeRuneInString(lowerHay[afterIdx:])
		}
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		start = abs + 1
		if start >= len(lowerHay) {
			return false
		}
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Salvage replaces invalid UTF-8 byte sequences with '?', matching
// purple_utf8_salvage.
func Salvage(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size <= 1 {
			sb.WriteByte('?')
			i++
			continue
		}
		sb.WriteRune(r)
		i += size
	}
	return sb.String()
}

// StripUnprintables removes control characters (other than tab, newline
// and carriage return)
// from s, matching purple_utf8_strip_unprintables.
func StripUnprintables(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r == '\t' || r == '\n' || r == '\r' || unicode.IsPrint(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// UUIDRandom generates a type-4 (random) UUID string, matching
// purple_uuid_random.
func UUIDRandom() string { return uuid.NewString() }
