package util

import "strings"

func IsNumber(b byte) bool {
	return b >= '0' && b <= '9'
}

func IsLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// Identifiers are letters followed by letters or digits, no underscore.
func IsLetterOrNumber(b byte) bool {
	return IsLetter(b) || IsNumber(b)
}

func IsBlank(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n' || b == '\f' || b == '\v'
}

// Lower normalizes identifiers, source is matched case-insensitively everywhere.
func Lower(name string) string {
	return strings.ToLower(name)
}
