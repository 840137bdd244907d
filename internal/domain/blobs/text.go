package blobs

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// ErrNotUTF8 is returned by DecodeText for binary or otherwise non UTF-8 content.
var ErrNotUTF8 = errors.New("content is not valid UTF-8")

// DecodeText decodes object content as UTF-8, dropping a leading byte order mark.
func DecodeText(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", ErrNotUTF8
	}
	out, err := unicode.UTF8BOM.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
