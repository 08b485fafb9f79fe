package util

import (
	"errors"
	"strings"
)

// ErrInvalidFileName is returned when nothing usable is left of a file name.
var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName reduces name to a flat, portable file name: path
// separators and whitespace become underscores, characters outside
// [A-Za-z0-9._-] are dropped, and leading or trailing dots and underscores
// are trimmed so the result can never address a parent directory.
func SanitizeFileName(name string) (string, error) {
	name = strings.NewReplacer("/", " ", `\`, " ").Replace(name)
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
				return r
			case r == '.' || r == '_' || r == '-':
				return r
			default:
				return -1
			}
		}, w)
	}
	s := strings.Trim(strings.Join(words, "_"), "._")
	if s == "" {
		return "", ErrInvalidFileName
	}
	return s, nil
}
