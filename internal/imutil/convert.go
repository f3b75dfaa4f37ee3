package imutil

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// TryConvert guesses b's encoding and returns it re-encoded as UTF-8,
// matching purple_utf8_try_convert's "best effort" contract: protocols
// like IRC carry no encoding metadata, so a legacy-encoded message must
// be sniffed rather than rejected. Valid UTF-8 is returned unchanged
// without sniffing, since that's overwhelmingly the common case.
func TryConvert(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	reader, err := charset.NewReader(bytes.NewReader(b), "")
	if err != nil {
		return Salvage(string(b))
	}
	decoded, err := io.ReadAll(reader)
	if err != nil || !utf8.Valid(decoded) {
		return Salvage(string(b))
	}
	return string(decoded)
}
