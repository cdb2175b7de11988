package ingest

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeLine returns raw as UTF-8, falling back to a lossy Latin-1
// (ISO-8859-1) decode when it isn't already valid UTF-8 (§6: game
// servers occasionally emit Latin-1 player names in log lines).
func decodeLine(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
