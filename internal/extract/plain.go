package extract

import (
	"strings"
	"unicode/utf8"
)

// plainText returns the content as a string. Invalid UTF-8 sequences are
// replaced so downstream embedding never sees broken runes.
func plainText(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	return strings.ToValidUTF8(string(content), "�")
}
